// Package result defines sandbox execution reports and compile outcomes.
package result

// LimitKind identifies which resource limit a run exceeded, if any.
type LimitKind string

const (
	LimitNone     LimitKind = ""
	LimitWallTime LimitKind = "wall_time"
	LimitCPUTime  LimitKind = "cpu_time"
	LimitMemory   LimitKind = "memory"
	LimitOutput   LimitKind = "output"
)

// ExecutionReport captures everything observable about one sandboxed run.
// Exceeded is resolved by the engine with wall time taking precedence over
// cpu time, then memory, then output size.
type ExecutionReport struct {
	ExitCode        int       `json:"exit_code"`
	Stdout          string    `json:"stdout"`
	Stderr          string    `json:"stderr"`
	StdoutTruncated bool      `json:"stdout_truncated"`
	StderrTruncated bool      `json:"stderr_truncated"`
	WallTimeMs      int64     `json:"wall_time_ms"`
	CPUTimeMs       int64     `json:"cpu_time_ms"`
	MemoryKB        int64     `json:"memory_kb"`
	OutputBytes     int64     `json:"output_bytes"`
	Exceeded        LimitKind `json:"exceeded,omitempty"`
	OomKilled       bool      `json:"oom_killed,omitempty"`
}

// TimedOut reports whether the run was stopped for exceeding a time limit.
func (r ExecutionReport) TimedOut() bool {
	return r.Exceeded == LimitWallTime || r.Exceeded == LimitCPUTime
}

// ResourceExceeded reports whether the run broke the memory or output ceiling.
func (r ExecutionReport) ResourceExceeded() bool {
	return r.Exceeded == LimitMemory || r.Exceeded == LimitOutput
}

// CompileOutcome is the result of building a submission's source.
// A failed build is an expected, reportable outcome, not a runner error.
type CompileOutcome struct {
	OK         bool      `json:"ok"`
	Skipped    bool      `json:"skipped"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	WallTimeMs int64     `json:"wall_time_ms"`
	Exceeded   LimitKind `json:"exceeded,omitempty"`
}
