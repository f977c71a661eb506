package runner

import (
	"context"

	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/spec"
)

// CompileRequest stages one submission's source and builds it.
type CompileRequest struct {
	SubmissionID string
	Language     string
	SourceCode   string
	Limits       spec.ResourceLimit
}

// ExecuteRequest runs a previously compiled (or staged) submission against
// one test input.
type ExecuteRequest struct {
	SubmissionID string
	TaskID       string
	Language     string
	StdinPath    string
	Limits       spec.ResourceLimit
}

// Runner turns language-agnostic judge requests into sandbox runs.
//
// Compile must be called once per submission before Execute; for interpreted
// languages it only stages the source and reports a skipped compile. Execute
// may be called concurrently for distinct TaskIDs of the same submission.
type Runner interface {
	Compile(ctx context.Context, req CompileRequest) (result.CompileOutcome, error)
	Execute(ctx context.Context, req ExecuteRequest) (result.ExecutionReport, error)
	Cleanup(submissionID string)
}
