package services_test

import (
	"errors"
	"strings"
	"testing"

	"imgvault/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrConversionFailed, "codec", "encode", "webp encoder failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"codec", "encode", "webp encoder failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToStore(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected store marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestCountsAsAttempt(t *testing.T) {
	conversion := services.Wrap(services.ErrConversionFailed, "optimizer", "optimize", "decode", errors.New("bad"))
	if !services.CountsAsAttempt(conversion) {
		t.Fatal("expected conversion failure to count")
	}
	if !services.CountsAsAttempt(services.Wrap(services.ErrFileNotFound, "optimizer", "optimize", "", nil)) {
		t.Fatal("expected missing file to count")
	}
	for _, marker := range []error{services.ErrAssetBusy, services.ErrVaultingFailed, services.ErrCodecUnavailable} {
		if services.CountsAsAttempt(services.Wrap(marker, "optimizer", "optimize", "", nil)) {
			t.Fatalf("did not expect %v to count", marker)
		}
	}
	recovery := services.Wrap(services.ErrRecoveryFailed, "optimizer", "rollback", "", conversion)
	if services.CountsAsAttempt(recovery) {
		t.Fatal("recovery failure must not count as an attempt")
	}
	if !services.IsDataLoss(recovery) {
		t.Fatal("expected recovery failure to be flagged as data loss")
	}
}
