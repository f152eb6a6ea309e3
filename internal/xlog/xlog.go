// Package xlog is the shared verbose-logging helper used across the
// transport core, following the teacher's log.Printf-gated-by-a-bool idiom
// rather than a structured logging library (see DESIGN.md).
package xlog

import (
	"log"
	"strings"
)

// Verbose enables vlogf output package-wide, mirroring the teacher's
// VerboseLogs switch.
var Verbose = false

// Logger bundles an optional user-supplied *log.Logger with the
// Vlogf/Condlogf helpers; client.Client holds one as its Log field.
type Logger struct {
	Out *log.Logger
}

func (l *Logger) Logf(format string, args ...any) {
	if l.Out != nil {
		l.Out.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (l *Logger) Vlogf(format string, args ...any) {
	if Verbose {
		l.Logf(format, args...)
	}
}

// Condlogf demotes boring, expected errors (closed connections) to vlogf.
func (l *Logger) Condlogf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	str := err.Error()
	if strings.Contains(str, "use of closed network connection") ||
		strings.Contains(str, "EOF") {
		l.Vlogf(format, args...)
		return
	}
	l.Logf(format, args...)
}
