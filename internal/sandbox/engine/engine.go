// Package engine executes run specifications inside an isolated sandbox.
package engine

import (
	"context"

	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox.
//
// Run always reaps the spawned process before returning, whether it exited
// normally, crashed, or broke a limit. A spawn failure (missing helper or
// target binary) is returned as an error with code SandboxSpawnError and is
// distinct from both limit violations and the child's own exit status.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.ExecutionReport, error)
	KillSubmission(ctx context.Context, submissionID string) error
}
