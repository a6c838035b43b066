package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

type statusKind struct {
	label string
	color string
}

var (
	statusInfo  = statusKind{label: "INFO", color: ansiBlue}
	statusOK    = statusKind{label: "OK", color: ansiGreen}
	statusWarn  = statusKind{label: "WARN", color: ansiYellow}
	statusError = statusKind{label: "ERROR", color: ansiRed}
)

func passFail(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

// statusWriter renders aligned "label: [KIND] detail" lines.
type statusWriter struct {
	out      io.Writer
	colorize bool
	width    int
}

func newStatusWriter(out io.Writer) *statusWriter {
	return &statusWriter{out: out, colorize: isTerminal(out), width: 22}
}

func (w *statusWriter) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	fmt.Fprintln(w.out, w.paint(ansiBlue, line))
	fmt.Fprintln(w.out, w.paint(ansiBlue, rule))
}

func (w *statusWriter) line(label string, kind statusKind, detail string) {
	text := "[" + kind.label + "]"
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(w.out, w.paint(kind.color, fmt.Sprintf("  %-*s %s", w.width, label+":", text)))
}

func (w *statusWriter) blank() {
	fmt.Fprintln(w.out)
}

func (w *statusWriter) paint(color, s string) string {
	if !w.colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

// isTerminal reports whether writer is an interactive terminal. Colour and
// progress bars are only drawn there.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
