package optimizer

import (
	"errors"
	"path/filepath"
	"strings"
)

// externalValue is the persisted form of NoOriginal.
const externalValue = "external"

// OriginalKind distinguishes a vaulted original from an asset that was
// already in the target format when first seen.
type OriginalKind int

const (
	NoOriginal OriginalKind = iota
	StoredAt
)

// Original is the value of an asset's original-path record.
type Original struct {
	Kind OriginalKind
	Path string
}

// NoOriginalRecord marks an asset as converted with nothing to restore.
func NoOriginalRecord() Original {
	return Original{Kind: NoOriginal}
}

// StoredAtRecord points at a vaulted original.
func StoredAtRecord(path string) Original {
	return Original{Kind: StoredAt, Path: filepath.Clean(path)}
}

// String returns the persisted form.
func (o Original) String() string {
	if o.Kind == NoOriginal {
		return externalValue
	}
	return o.Path
}

// Restorable reports whether the record points at a vaulted file.
func (o Original) Restorable() bool {
	return o.Kind == StoredAt && o.Path != ""
}

// ParseOriginal decodes a persisted record.
func ParseOriginal(value string) (Original, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == externalValue:
		return NoOriginalRecord(), nil
	case filepath.IsAbs(value):
		return StoredAtRecord(value), nil
	default:
		return Original{}, errors.New("original record is neither a vault path nor " + externalValue)
	}
}
