package judge

import (
	"context"
	"sync"
	"testing"
	"time"

	"arbiter/internal/events"
	"arbiter/internal/packet"
	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/runner"
	appErr "arbiter/pkg/errors"
)

type fakeRunner struct {
	mu           sync.Mutex
	compile      result.CompileOutcome
	compileErr   error
	reports      map[string]result.ExecutionReport // task ID -> report
	blockExecute bool
	cleaned      []string
}

func (f *fakeRunner) Compile(ctx context.Context, req runner.CompileRequest) (result.CompileOutcome, error) {
	if f.compileErr != nil {
		return result.CompileOutcome{}, f.compileErr
	}
	return f.compile, nil
}

func (f *fakeRunner) Execute(ctx context.Context, req runner.ExecuteRequest) (result.ExecutionReport, error) {
	if f.blockExecute {
		<-ctx.Done()
		return result.ExecutionReport{}, ctx.Err()
	}
	f.mu.Lock()
	report, ok := f.reports[req.TaskID]
	f.mu.Unlock()
	if !ok {
		report = result.ExecutionReport{Stdout: "?"}
	}
	return report, nil
}

func (f *fakeRunner) Cleanup(submissionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, submissionID)
}

type fakeHistory struct {
	mu      sync.Mutex
	results []SubmissionResult
	done    chan SubmissionResult
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{done: make(chan SubmissionResult, 8)}
}

func (f *fakeHistory) WriteResult(ctx context.Context, res SubmissionResult) error {
	f.mu.Lock()
	f.results = append(f.results, res)
	f.mu.Unlock()
	f.done <- res
	return nil
}

func (f *fakeHistory) wait(t *testing.T) SubmissionResult {
	t.Helper()
	select {
	case res := <-f.done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		return SubmissionResult{}
	}
}

type fakeAttempts struct {
	count int
	err   error
}

func (f *fakeAttempts) CountAttempts(ctx context.Context, submitter, problemID string) (int, error) {
	return f.count, f.err
}

type fakeStatus struct {
	mu     sync.Mutex
	states []SubmissionState
}

func (f *fakeStatus) ReportState(ctx context.Context, id string, state SubmissionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	return nil
}

func (f *fakeStatus) ReportProgress(ctx context.Context, id string, done, total int) error {
	return nil
}

func inline(s string) *string { return &s }

func testPacket() *packet.Packet {
	return &packet.Packet{
		Name: "test",
		Languages: []runner.LanguageSpec{
			{Name: "go", SourceFile: "main.go", BinaryFile: "main", CompileCmd: "go build {src}", RunCmd: "{bin}", Profile: "default"},
		},
		Problems: []packet.Problem{
			{
				ID:    "p1",
				Title: "Echo",
				Tests: []packet.TestCase{
					{ID: "t1", Input: inline("a"), Expected: inline("a"), Weight: 1},
					{ID: "t2", Input: inline("b"), Expected: inline("b"), Weight: 1, Hidden: true},
				},
			},
		},
		Judge: packet.JudgeSettings{
			TestParallel:   2,
			MaxSubmissions: 3,
			MaxCodeBytes:   1024,
		},
	}
}

func newTestPipeline(t *testing.T, run runner.Runner, hist *fakeHistory, attempts AttemptCounter) (*Pipeline, *Registry, *fakeStatus) {
	t.Helper()
	reg := NewRegistry(0)
	stat := &fakeStatus{}
	bus := events.NewDispatcher(64)
	pkt := testPacket()
	exec := NewExecutor(run, false)
	cfg := Config{IORoot: t.TempDir(), TestParallel: 2}
	return NewPipeline(cfg, pkt, reg, run, exec, hist, stat, attempts, bus), reg, stat
}

func TestPipelineFullPass(t *testing.T) {
	run := &fakeRunner{
		compile: result.CompileOutcome{OK: true},
		reports: map[string]result.ExecutionReport{
			"t1": {Stdout: "a"},
			"t2": {Stdout: "b"},
		},
	}
	hist := newFakeHistory()
	pipeline, reg, stat := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code", SubmittedAt: time.Now()}
	if err := pipeline.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := hist.wait(t)
	if res.State != StateCompleted {
		t.Fatalf("state = %v, want completed (err %q)", res.State, res.Error)
	}
	if res.Score != 1.0 || !res.Success {
		t.Fatalf("score = %v success = %v, want 1.0 true", res.Score, res.Success)
	}
	if len(res.Tests) != 2 {
		t.Fatalf("tests = %d, want 2", len(res.Tests))
	}
	// Outcomes stay in packet order.
	if res.Tests[0].TestID != "t1" || res.Tests[1].TestID != "t2" {
		t.Fatalf("test order = %s, %s", res.Tests[0].TestID, res.Tests[1].TestID)
	}

	pipeline.Shutdown()
	if reg.Len() != 0 {
		t.Fatalf("registry len = %d after completion, want 0", reg.Len())
	}

	stat.mu.Lock()
	defer stat.mu.Unlock()
	want := []SubmissionState{StateQueued, StateCompiling, StateRunning, StateCompleted}
	if len(stat.states) != len(want) {
		t.Fatalf("states = %v, want %v", stat.states, want)
	}
	for i, s := range want {
		if stat.states[i] != s {
			t.Fatalf("states[%d] = %v, want %v", i, stat.states[i], s)
		}
	}
}

func TestPipelinePartialScore(t *testing.T) {
	run := &fakeRunner{
		compile: result.CompileOutcome{OK: true},
		reports: map[string]result.ExecutionReport{
			"t1": {Stdout: "a"},
			"t2": {Stdout: "wrong"},
		},
	}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code"}
	if err := pipeline.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := hist.wait(t)
	if res.Score != 0.5 || res.Success {
		t.Fatalf("score = %v success = %v, want 0.5 false", res.Score, res.Success)
	}
	pipeline.Shutdown()
}

func TestPipelineCompileFailure(t *testing.T) {
	run := &fakeRunner{
		compile: result.CompileOutcome{OK: false, ExitCode: 1, Stderr: "syntax error"},
	}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "bad"}
	if err := pipeline.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := hist.wait(t)
	if res.State != StateCompileFailed {
		t.Fatalf("state = %v, want compile_failed", res.State)
	}
	if len(res.Tests) != 0 {
		t.Fatalf("tests = %d for compile failure, want 0", len(res.Tests))
	}
	if res.Compile.Stderr != "syntax error" {
		t.Fatalf("compile stderr = %q", res.Compile.Stderr)
	}
	pipeline.Shutdown()
}

func TestPipelineCancellation(t *testing.T) {
	run := &fakeRunner{
		compile:      result.CompileOutcome{OK: true},
		blockExecute: true,
	}
	hist := newFakeHistory()
	pipeline, reg, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code"}
	if err := pipeline.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Let the pipeline reach the running phase before cancelling.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, state, ok := reg.Get("s1")
		if ok && state == StateRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("submission never reached running state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !pipeline.Cancel("s1") {
		t.Fatal("cancel returned false")
	}

	res := hist.wait(t)
	if res.State != StateCancelled {
		t.Fatalf("state = %v, want cancelled", res.State)
	}
	if len(res.Tests) != 0 || res.Score != 0 || res.Success {
		t.Fatalf("cancelled result carries outcomes: %+v", res)
	}
	pipeline.Shutdown()
}

func TestPipelineRejectsDuplicateFlight(t *testing.T) {
	run := &fakeRunner{
		compile:      result.CompileOutcome{OK: true},
		blockExecute: true,
	}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code"}
	if err := pipeline.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}

	dup := Submission{ID: "s2", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code"}
	err := pipeline.Submit(context.Background(), dup)
	if !appErr.Is(err, appErr.SubmissionInFlight) {
		t.Fatalf("duplicate submit error = %v, want SubmissionInFlight", err)
	}

	pipeline.Cancel("s1")
	hist.wait(t)
	pipeline.Shutdown()
}

func TestPipelineAttemptLimit(t *testing.T) {
	run := &fakeRunner{compile: result.CompileOutcome{OK: true}}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{count: 3})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code"}
	err := pipeline.Submit(context.Background(), sub)
	if !appErr.Is(err, appErr.AttemptsExhausted) {
		t.Fatalf("submit error = %v, want AttemptsExhausted", err)
	}
}

func TestPipelineRejectsOversizedCode(t *testing.T) {
	run := &fakeRunner{compile: result.CompileOutcome{OK: true}}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	big := make([]byte, 2048)
	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: string(big)}
	err := pipeline.Submit(context.Background(), sub)
	if !appErr.Is(err, appErr.CodeTooLarge) {
		t.Fatalf("submit error = %v, want CodeTooLarge", err)
	}
}

func TestPipelineRejectsUnknownProblem(t *testing.T) {
	run := &fakeRunner{compile: result.CompileOutcome{OK: true}}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "nope", Language: "go", SourceCode: "code"}
	err := pipeline.Submit(context.Background(), sub)
	if !appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("submit error = %v, want ProblemNotFound", err)
	}
}

func TestPipelineCleansUpRunner(t *testing.T) {
	run := &fakeRunner{
		compile: result.CompileOutcome{OK: true},
		reports: map[string]result.ExecutionReport{
			"t1": {Stdout: "a"},
			"t2": {Stdout: "b"},
		},
	}
	hist := newFakeHistory()
	pipeline, _, _ := newTestPipeline(t, run, hist, &fakeAttempts{})

	sub := Submission{ID: "s1", Submitter: "alice", ProblemID: "p1", Language: "go", SourceCode: "code"}
	if err := pipeline.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	hist.wait(t)
	pipeline.Shutdown()

	run.mu.Lock()
	defer run.mu.Unlock()
	if len(run.cleaned) != 1 || run.cleaned[0] != "s1" {
		t.Fatalf("cleaned = %v, want [s1]", run.cleaned)
	}
}
