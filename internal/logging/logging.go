// Package logging constructs the worker's single *logharbour.Logger and is
// the only place logharbour is configured; every other package receives a
// logger via constructor injection, mirroring jobs/examples/batch-recovery's
// getLogger() and the NewLoggerContext/NewLogger pair used throughout
// jobs/recovery.go.
package logging

import (
	"io"
	"os"

	"github.com/remiges-tech/logharbour/logharbour"
)

// New builds a structured logger for the given worker id that writes to w.
// Unlike the teacher's examples (which hard-code os.Stdout), this accepts
// an io.Writer so tests can capture output.
func New(workerID string, w io.Writer) *logharbour.Logger {
	lctx := logharbour.NewLoggerContext(logharbour.DefaultPriority)
	return logharbour.NewLogger(lctx, workerID, w)
}

// NewStdout is the production constructor, using a fallback writer so a
// broken stdout pipe never panics the process mid-write.
func NewStdout(workerID string) *logharbour.Logger {
	fw := logharbour.NewFallbackWriter(os.Stdout, os.Stdout)
	return New(workerID, fw)
}
