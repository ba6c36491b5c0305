// Package storaxlog provides the structured diagnostic logger used by the
// core engines and the orchestrator. It is deliberately separate from
// internal/output, which renders human-facing CLI text: storaxlog carries
// events a crash-recovery engine needs to be debuggable (ambiguous journal
// records, WAL recovery decisions, lock timeouts, integrity mismatches),
// while internal/output carries what a user asked to see on their terminal.
package storaxlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New creates a logger writing to w at the given level. Passing nil for w
// defaults to os.Stderr, where warnings and errors otherwise surface.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for tests and callers that
// don't want diagnostic output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
