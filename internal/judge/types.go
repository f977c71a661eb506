// Package judge implements the submission pipeline: admission, compile,
// per-test execution, classification, scoring and result assembly.
package judge

import (
	"context"
	"time"

	"arbiter/internal/sandbox/result"
)

// SubmissionState tracks a submission through the pipeline.
type SubmissionState string

const (
	StateQueued        SubmissionState = "queued"
	StateCompiling     SubmissionState = "compiling"
	StateCompileFailed SubmissionState = "compile_failed"
	StateRunning       SubmissionState = "running"
	StateCompleted     SubmissionState = "completed"
	StateCancelled     SubmissionState = "cancelled"
	StateFailed        SubmissionState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s SubmissionState) Terminal() bool {
	switch s {
	case StateCompileFailed, StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Submission is one contestant's attempt at a problem.
type Submission struct {
	ID          string    `json:"id"`
	Submitter   string    `json:"submitter"`
	ProblemID   string    `json:"problem_id"`
	Language    string    `json:"language"`
	SourceCode  string    `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// OutcomeKind classifies one test run.
type OutcomeKind string

const (
	OutcomePass             OutcomeKind = "pass"
	OutcomeFail             OutcomeKind = "fail"
	OutcomeTimeout          OutcomeKind = "timeout"
	OutcomeRuntimeError     OutcomeKind = "runtime_error"
	OutcomeResourceExceeded OutcomeKind = "resource_exceeded"
)

// TestOutcome is the judged result of one test case.
type TestOutcome struct {
	TestID     string      `json:"test_id"`
	Kind       OutcomeKind `json:"kind"`
	ExitCode   int         `json:"exit_code"`
	WallTimeMs int64       `json:"wall_time_ms"`
	CPUTimeMs  int64       `json:"cpu_time_ms"`
	MemoryKB   int64       `json:"memory_kb"`
	Stdout     string      `json:"stdout,omitempty"`
	Stderr     string      `json:"stderr,omitempty"`
	Hidden     bool        `json:"hidden"`
	Weight     float64     `json:"weight"`
}

// Passed reports whether the test counts toward the score.
func (t TestOutcome) Passed() bool {
	return t.Kind == OutcomePass
}

// SubmissionResult is the terminal record of a judged submission.
type SubmissionResult struct {
	Submission Submission            `json:"submission"`
	State      SubmissionState       `json:"state"`
	Compile    result.CompileOutcome `json:"compile"`
	Tests      []TestOutcome         `json:"tests"`
	Score      float64               `json:"score"`
	Success    bool                  `json:"success"`
	ElapsedMs  int64                 `json:"elapsed_ms"`
	Error      string                `json:"error,omitempty"`
}

// Redacted returns a copy safe to show the submitter: hidden tests keep
// their verdict kind and timings but lose captured output.
func (r SubmissionResult) Redacted() SubmissionResult {
	out := r
	out.Tests = make([]TestOutcome, len(r.Tests))
	for i, t := range r.Tests {
		if t.Hidden {
			t.Stdout = ""
			t.Stderr = ""
		}
		out.Tests[i] = t
	}
	return out
}

// HistoryWriter persists terminal submission results. Implementations must
// be atomic per submission: either the full result lands or nothing does.
type HistoryWriter interface {
	WriteResult(ctx context.Context, res SubmissionResult) error
}

// StatusReporter publishes in-flight state transitions for observers.
type StatusReporter interface {
	ReportState(ctx context.Context, submissionID string, state SubmissionState) error
	ReportProgress(ctx context.Context, submissionID string, done, total int) error
}
