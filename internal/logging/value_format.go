package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const redacted = "[redacted]"

// sensitiveKeys never reach a log sink in clear text.
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"api_token":     {},
	"secret":        {},
	"vault_secret":  {},
	"authorization": {},
}

func isSensitive(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// attrString renders a value for the console subject line, unquoted.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return rawValue(v)
}

// formatAttr renders key=value pairs for the console handler. Byte counts
// (keys ending in _bytes) are shown in IEC units.
func formatAttr(key string, v slog.Value) string {
	if isSensitive(key) {
		return redacted
	}
	v = v.Resolve()
	if strings.HasSuffix(key, "_bytes") {
		switch v.Kind() {
		case slog.KindInt64:
			return byteSize(v.Int64())
		case slog.KindUint64:
			return strings.ReplaceAll(humanize.IBytes(v.Uint64()), " ", "")
		}
	}
	s := rawValue(v)
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func byteSize(n int64) string {
	if n < 0 {
		return "-" + strings.ReplaceAll(humanize.IBytes(uint64(-n)), " ", "")
	}
	return strings.ReplaceAll(humanize.IBytes(uint64(n)), " ", "")
}

func rawValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
