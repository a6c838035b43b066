package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"imgvault/internal/config"
	"imgvault/internal/deps"
)

// VaultProbe is the slice of the vault the checks need.
type VaultProbe interface {
	Root() string
	Health() error
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckVault reports whether the vault can accept originals.
func CheckVault(v VaultProbe) Result {
	const name = "Vault"
	if v == nil {
		return Result{Name: name, Detail: "unavailable"}
	}
	if err := v.Health(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", v.Root(), err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", v.Root())}
}

// CheckEncoder reports whether the configured backend can produce the target
// format. The builtin encoders are compiled in; the external backend needs
// its binary on PATH.
func CheckEncoder(cfg *config.Config) Result {
	name := "Encoder (" + cfg.Conversion.TargetFormat + ")"
	if cfg.Conversion.Backend != config.BackendExternal {
		return Result{Name: name, Passed: true, Detail: "builtin"}
	}
	status, ok := EncoderStatus(cfg)
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("no external encoder for %q", cfg.Conversion.TargetFormat)}
	}
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	return Result{Name: name, Passed: true, Detail: status.Path}
}

// EncoderStatus resolves the external encoder binary for the target format.
func EncoderStatus(cfg *config.Config) (deps.Status, bool) {
	req, ok := deps.EncoderRequirement(cfg.Conversion.TargetFormat, cfg.Conversion.Backend != config.BackendExternal)
	if !ok {
		return deps.Status{}, false
	}
	if cfg.Conversion.TargetFormat == config.FormatWebP {
		req.Command = cfg.CWebPBinary()
	} else {
		req.Command = cfg.AVIFEncBinary()
	}
	return deps.CheckBinary(req), true
}
