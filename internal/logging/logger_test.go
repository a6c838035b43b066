package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imgvault/internal/config"
	"imgvault/internal/logging"
	"imgvault/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "imgvault.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if !strings.Contains(string(content), "session_id=") {
		t.Fatalf("expected session id in log line, got %q", content)
	}
}

func TestConsoleLoggerRendersAssetSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithAssetID(context.Background(), 42)
	ctx = services.WithOperation(ctx, "optimize")
	component := logging.NewComponentLogger(logger, "optimizer")
	logging.WithContext(ctx, component).Info("asset optimized", logging.Int64("savings_bytes", 1200))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO optimizer:", "Asset #42 (optimize)", "asset optimized", "savings_bytes=1.2KiB"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(services.WithAssetID(context.Background(), 7), "req-1")
	logging.WarnWithContext(logging.WithContext(ctx, logger), "vault nearly full", "vault_capacity")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload[logging.FieldAssetID] != float64(7) {
		t.Fatalf("unexpected asset id: %v", payload[logging.FieldAssetID])
	}
	if payload[logging.FieldCorrelationID] != "req-1" {
		t.Fatalf("unexpected correlation id: %v", payload[logging.FieldCorrelationID])
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected %s to be injected", key)
		}
	}
}

func TestWarnWithContextKeepsCallerHint(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "move failed", "vault_move_in_failed",
		logging.String(logging.FieldErrorHint, "free some space"),
		logging.String(logging.FieldEventType, "custom_event"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload[logging.FieldErrorHint] != "free some space" {
		t.Fatalf("error hint overwritten: %v", payload[logging.FieldErrorHint])
	}
	if payload[logging.FieldEventType] != "custom_event" {
		t.Fatalf("event type overwritten: %v", payload[logging.FieldEventType])
	}
	if payload[logging.FieldImpact] != "operation completed with warnings" {
		t.Fatalf("impact default missing: %v", payload[logging.FieldImpact])
	}
	if strings.Count(string(content), logging.FieldErrorHint) != 1 {
		t.Fatalf("expected one error hint, got %s", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("expected nop logger to be disabled")
	}
}

func TestLoggersRedactSecretsAndStampProcess(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		t.Run(format, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), format+".log")
			logger, err := logging.New(logging.Options{
				Format:      format,
				Level:       "info",
				OutputPaths: []string{logPath},
				Process:     "imgvaultd",
			})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.Info("api configured", logging.String("token", "hunter2"), logging.String("bind", "127.0.0.1:7488"))

			content, err := os.ReadFile(logPath)
			if err != nil {
				t.Fatalf("read log file: %v", err)
			}
			line := string(content)
			if strings.Contains(line, "hunter2") {
				t.Fatalf("token leaked into %q", line)
			}
			for _, fragment := range []string{"[redacted]", "imgvaultd", "127.0.0.1:7488"} {
				if !strings.Contains(line, fragment) {
					t.Fatalf("expected %q in %q", fragment, line)
				}
			}
		})
	}
}

func TestJSONLoggerWritesDurationsAsMilliseconds(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("step finished", logging.Duration("elapsed", 1500*time.Millisecond), logging.Int64("savings_bytes", -2048))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["elapsed_ms"] != float64(1500) {
		t.Fatalf("unexpected elapsed_ms: %v", payload["elapsed_ms"])
	}
	if payload["savings_bytes"] != float64(-2048) {
		t.Fatalf("byte counts should stay numeric, got %v", payload["savings_bytes"])
	}
}

func TestNewRotatesOversizedLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "imgvault.log")
	if err := os.WriteFile(logPath, []byte(strings.Repeat("x", 64)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}, MaxFileBytes: 32})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("fresh start")

	rotated, err := os.ReadFile(logPath + ".1")
	if err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	if !strings.HasPrefix(string(rotated), "xxxx") {
		t.Fatalf("rotated file should hold the old content, got %q", rotated)
	}
	current, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(current), "xxxx") || !strings.Contains(string(current), "fresh start") {
		t.Fatalf("unexpected current log %q", current)
	}
}
