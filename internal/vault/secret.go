package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"

	"imgvault/internal/fileutil"
)

const hashInfo = "imgvault vault directory v1"

// LoadOrCreateSecret returns configured when non-empty. Otherwise it reads the
// secret persisted at path, generating and saving a new random one on first use.
func LoadOrCreateSecret(path, configured string) (string, error) {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read vault secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate vault secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create secret directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist vault secret: %w", err)
	}
	return secret, nil
}

// DirHash derives the 8 hex character suffix of the vault directory name.
func DirHash(secret string) (string, error) {
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(hashInfo))
	out := make([]byte, 4)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", fmt.Errorf("derive vault hash: %w", err)
	}
	return hex.EncodeToString(out), nil
}
