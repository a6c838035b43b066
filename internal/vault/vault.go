package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
)

const (
	htaccessName    = ".htaccess"
	htaccessContent = "Deny from all\nOptions -Indexes\n"
	indexName       = "index.html"
)

// ErrOutsideUploads is returned by ResolvePath for paths that are not inside
// the uploads tree, or that already live inside the vault.
var ErrOutsideUploads = errors.New("path outside uploads directory")

// Vault owns the protected backup directory for one installation.
type Vault struct {
	uploadsDir string
	root       string
	logger     *slog.Logger

	mu    sync.Mutex
	ready bool
}

// New returns a vault rooted at <uploadsDir>/<prefix>-<hash(secret)>. Nothing
// is created on disk until the first ResolvePath call.
func New(uploadsDir, prefix, secret string, logger *slog.Logger) (*Vault, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("vault secret is empty")
	}
	uploadsDir = filepath.Clean(uploadsDir)
	if !filepath.IsAbs(uploadsDir) {
		return nil, fmt.Errorf("uploads directory %q is not absolute", uploadsDir)
	}
	hash, err := DirHash(secret)
	if err != nil {
		return nil, err
	}
	return &Vault{
		uploadsDir: uploadsDir,
		root:       filepath.Join(uploadsDir, prefix+"-"+hash),
		logger:     logging.NewComponentLogger(logger, "vault"),
	}, nil
}

// Root returns the absolute vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// UploadsDir returns the uploads tree the vault mirrors.
func (v *Vault) UploadsDir() string {
	return v.uploadsDir
}

// Contains reports whether path lies inside the vault root.
func (v *Vault) Contains(path string) bool {
	rel, err := filepath.Rel(v.root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ResolvePath maps an original file inside the uploads tree to its mirror
// location inside the vault. The vault root and the mirror's parent directory
// are created on demand. The result depends only on the secret and the
// relative path.
func (v *Vault) ResolvePath(originalAbs string) (string, error) {
	rel, err := v.relative(originalAbs)
	if err != nil {
		return "", err
	}
	if err := v.ensureRoot(); err != nil {
		return "", err
	}
	target := filepath.Join(v.root, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create vault subdirectory: %w", err)
	}
	return target, nil
}

func (v *Vault) relative(originalAbs string) (string, error) {
	cleaned := filepath.Clean(originalAbs)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %q is not absolute", ErrOutsideUploads, originalAbs)
	}
	rel, err := filepath.Rel(v.uploadsDir, cleaned)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideUploads, originalAbs)
	}
	if v.Contains(cleaned) {
		return "", fmt.Errorf("%w: %s is already inside the vault", ErrOutsideUploads, originalAbs)
	}
	return rel, nil
}

func (v *Vault) ensureRoot() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ready {
		if info, err := os.Stat(v.root); err == nil && info.IsDir() {
			return nil
		}
		v.ready = false
	}
	if err := os.MkdirAll(v.root, 0o750); err != nil {
		return fmt.Errorf("create vault root: %w", err)
	}
	if err := v.writeMarkers(); err != nil {
		return err
	}
	v.ready = true
	return nil
}

// writeMarkers drops the web-server deny rules and an empty index into the
// root. Existing markers are left alone.
func (v *Vault) writeMarkers() error {
	markers := map[string]string{
		htaccessName: htaccessContent,
		indexName:    "",
	}
	for name, content := range markers {
		path := filepath.Join(v.root, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := fileutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write vault marker %s: %w", name, err)
		}
	}
	return nil
}

// MoveIn moves source into the vault at vaultPath, replacing any stale entry.
// It returns false, with nothing moved, if source does not exist or the move
// fails.
func (v *Vault) MoveIn(source, vaultPath string) bool {
	if !v.Contains(vaultPath) || filepath.Clean(vaultPath) == v.root {
		logging.WarnWithContext(v.logger, "refusing vault move-in outside vault root", "vault_move_in_rejected",
			logging.String("source", source),
			logging.String("vault_path", vaultPath),
			logging.String(logging.FieldErrorHint, "resolve vault paths with ResolvePath"),
			logging.String(logging.FieldImpact, "asset left at its live path"),
		)
		return false
	}
	if info, err := os.Stat(source); err != nil || !info.Mode().IsRegular() {
		v.logger.Debug("vault move-in source missing", logging.String("source", source))
		return false
	}
	if err := os.MkdirAll(filepath.Dir(vaultPath), 0o750); err != nil {
		v.moveFailed("vault_move_in_failed", source, vaultPath, err)
		return false
	}
	if err := fileutil.MoveFile(source, vaultPath); err != nil {
		v.moveFailed("vault_move_in_failed", source, vaultPath, err)
		return false
	}
	v.logger.Debug("original vaulted", logging.String("source", source), logging.String("vault_path", vaultPath))
	return true
}

// MoveOut moves a vaulted file back to destination. It returns false, with
// nothing moved, if vaultPath does not exist or the move fails.
func (v *Vault) MoveOut(vaultPath, destination string) bool {
	if info, err := os.Stat(vaultPath); err != nil || !info.Mode().IsRegular() {
		v.logger.Debug("vault move-out source missing", logging.String("vault_path", vaultPath))
		return false
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		v.moveFailed("vault_move_out_failed", vaultPath, destination, err)
		return false
	}
	if err := fileutil.MoveFile(vaultPath, destination); err != nil {
		v.moveFailed("vault_move_out_failed", vaultPath, destination, err)
		return false
	}
	v.logger.Debug("original returned from vault", logging.String("vault_path", vaultPath), logging.String("destination", destination))
	return true
}

func (v *Vault) moveFailed(eventType, from, to string, err error) {
	logging.WarnWithContext(v.logger, "vault move failed", eventType,
		logging.String("from", from),
		logging.String("to", to),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions and free space under the uploads directory"),
		logging.String(logging.FieldImpact, "file left at its previous location"),
	)
}

// CheckHealth reports whether the vault can accept files: the root exists and
// is writable, or, before first use, the uploads directory is.
func (v *Vault) CheckHealth() bool {
	return v.Health() == nil
}

// Health is CheckHealth with the reason attached.
func (v *Vault) Health() error {
	target := v.root
	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		target = v.uploadsDir
		info, err = os.Stat(target)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", target)
	}
	if err := unix.Access(target, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s is not writable: %w", target, err)
	}
	return nil
}

// Stats summarises vault usage.
type Stats struct {
	Root      string `json:"root" yaml:"root"`
	Exists    bool   `json:"exists" yaml:"exists"`
	Files     int    `json:"files" yaml:"files"`
	Bytes     int64  `json:"bytes" yaml:"bytes"`
	FreeBytes uint64 `json:"free_bytes" yaml:"free_bytes"`
}

// Stats walks the vault and reports file count, stored bytes, and free space
// on the filesystem holding it.
func (v *Vault) Stats() (Stats, error) {
	stats := Stats{Root: v.root}
	probe := v.uploadsDir
	if info, err := os.Stat(v.root); err == nil && info.IsDir() {
		stats.Exists = true
		probe = v.root
		err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || isMarker(v.root, path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			stats.Files++
			stats.Bytes += info.Size()
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("walk vault: %w", err)
		}
	}
	var fsStat unix.Statfs_t
	if err := unix.Statfs(probe, &fsStat); err == nil {
		stats.FreeBytes = fsStat.Bavail * uint64(fsStat.Bsize)
	}
	return stats, nil
}

func isMarker(root, path string) bool {
	if filepath.Dir(path) != root {
		return false
	}
	name := filepath.Base(path)
	return name == htaccessName || name == indexName
}

// Purge deletes the whole vault tree. Used by uninstall only.
func (v *Vault) Purge() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.RemoveAll(v.root); err != nil {
		return fmt.Errorf("remove vault root: %w", err)
	}
	v.ready = false
	v.logger.Info("vault removed", logging.String("root", v.root), logging.String(logging.FieldEventType, "vault_purged"))
	return nil
}
