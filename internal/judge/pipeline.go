package judge

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"arbiter/internal/events"
	"arbiter/internal/packet"
	"arbiter/internal/sandbox/runner"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// AttemptCounter reports how many terminal submissions a contestant already
// has for a problem. Backed by the history store.
type AttemptCounter interface {
	CountAttempts(ctx context.Context, submitter, problemID string) (int, error)
}

// Config tunes the pipeline.
type Config struct {
	IORoot       string `yaml:"io_root"`
	MaxInFlight  int    `yaml:"max_in_flight"`
	TestParallel int    `yaml:"test_parallelism"`
}

// Pipeline drives a submission from admission to a terminal state.
type Pipeline struct {
	cfg      Config
	pkt      *packet.Packet
	registry *Registry
	runner   runner.Runner
	executor *Executor
	history  HistoryWriter
	status   StatusReporter
	attempts AttemptCounter
	bus      *events.Dispatcher
	wg       sync.WaitGroup
}

func NewPipeline(cfg Config, pkt *packet.Packet, reg *Registry, r runner.Runner, exec *Executor, history HistoryWriter, status StatusReporter, attempts AttemptCounter, bus *events.Dispatcher) *Pipeline {
	if cfg.TestParallel <= 0 {
		cfg.TestParallel = pkt.Judge.TestParallel
	}
	if cfg.TestParallel <= 0 {
		cfg.TestParallel = 1
	}
	if cfg.IORoot == "" {
		cfg.IORoot = filepath.Join(os.TempDir(), "arbiter-io")
	}
	return &Pipeline{
		cfg:      cfg,
		pkt:      pkt,
		registry: reg,
		runner:   r,
		executor: exec,
		history:  history,
		status:   status,
		attempts: attempts,
		bus:      bus,
	}
}

// Submit validates and admits a submission, then judges it asynchronously.
// The returned error covers admission only; judging outcomes land in the
// history store and on the event bus.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) error {
	if err := p.validate(ctx, sub); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := p.registry.Admit(sub, cancel); err != nil {
		cancel()
		return err
	}

	p.reportState(runCtx, sub.ID, StateQueued)
	p.bus.Publish(events.Event{
		Kind:       events.KindSubmissionQueued,
		Username:   sub.Submitter,
		Submission: sub.ID,
		Problem:    sub.ProblemID,
	})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.process(runCtx, sub)
	}()
	return nil
}

func (p *Pipeline) validate(ctx context.Context, sub Submission) error {
	if sub.ID == "" || sub.Submitter == "" {
		return appErr.ValidationError("submission", "id and submitter are required")
	}
	if int64(len(sub.SourceCode)) > p.pkt.Judge.MaxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "source exceeds %d bytes", p.pkt.Judge.MaxCodeBytes)
	}
	if _, err := p.pkt.Problem(sub.ProblemID); err != nil {
		return err
	}
	if p.attempts != nil && p.pkt.Judge.MaxSubmissions > 0 {
		used, err := p.attempts.CountAttempts(ctx, sub.Submitter, sub.ProblemID)
		if err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "count attempts failed")
		}
		if used >= p.pkt.Judge.MaxSubmissions {
			return appErr.Newf(appErr.AttemptsExhausted,
				"submission limit of %d reached for problem %s", p.pkt.Judge.MaxSubmissions, sub.ProblemID)
		}
	}
	return nil
}

// process runs the compile and test phases and finalizes exactly once.
func (p *Pipeline) process(ctx context.Context, sub Submission) {
	start := time.Now()
	res := SubmissionResult{Submission: sub}

	defer p.runner.Cleanup(sub.ID)

	prob, err := p.pkt.Problem(sub.ProblemID)
	if err != nil {
		res.State = StateFailed
		res.Error = err.Error()
		p.finalize(ctx, res, start)
		return
	}

	p.reportState(ctx, sub.ID, StateCompiling)
	compile, err := p.runner.Compile(ctx, runner.CompileRequest{
		SubmissionID: sub.ID,
		Language:     sub.Language,
		SourceCode:   sub.SourceCode,
		Limits:       p.pkt.Judge.CompileLimits,
	})
	if err != nil {
		res.State = p.stateForError(ctx, err)
		res.Error = err.Error()
		p.finalize(ctx, res, start)
		return
	}
	res.Compile = compile
	if !compile.OK {
		res.State = StateCompileFailed
		p.finalize(ctx, res, start)
		return
	}

	p.reportState(ctx, sub.ID, StateRunning)
	tests, err := p.runTests(ctx, sub, prob)
	if err != nil {
		res.State = p.stateForError(ctx, err)
		res.Error = err.Error()
		p.finalize(ctx, res, start)
		return
	}

	res.Tests = tests
	res.Score = ComputeScore(tests)
	res.Success = IsSuccess(compile.OK, res.Score)
	res.State = StateCompleted
	p.finalize(ctx, res, start)
}

// runTests executes every test with bounded parallelism. Outcomes land in
// packet order regardless of completion order. The first error cancels the
// remaining runs.
func (p *Pipeline) runTests(ctx context.Context, sub Submission, prob packet.Problem) ([]TestOutcome, error) {
	ioDir := filepath.Join(p.cfg.IORoot, sub.ID)
	if err := os.MkdirAll(ioDir, 0750); err != nil {
		return nil, appErr.Wrapf(err, appErr.ScratchSpaceError, "create io dir failed")
	}
	defer os.RemoveAll(ioDir)

	testCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]TestOutcome, len(prob.Tests))
	errs := make([]error, len(prob.Tests))
	sem := make(chan struct{}, p.cfg.TestParallel)
	var done int64
	var doneMu sync.Mutex
	var wg sync.WaitGroup

	for i, tc := range prob.Tests {
		wg.Add(1)
		go func(i int, tc packet.TestCase) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-testCtx.Done():
				errs[i] = testCtx.Err()
				return
			}
			if testCtx.Err() != nil {
				errs[i] = testCtx.Err()
				return
			}
			outcome, err := p.executor.RunTest(testCtx, sub, p.pkt, tc, prob.Limits, ioDir)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			outcomes[i] = outcome

			doneMu.Lock()
			done++
			completed := int(done)
			doneMu.Unlock()
			p.reportProgress(ctx, sub.ID, completed, len(prob.Tests))
			p.bus.Publish(events.Event{
				Kind:       events.KindTestEvaluation,
				Username:   sub.Submitter,
				Submission: sub.ID,
				Problem:    sub.ProblemID,
				TestID:     tc.ID,
				Outcome:    string(outcome.Kind),
			})
		}(i, tc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

// finalize persists the terminal result, publishes the evaluation event and
// releases the registry slot. Cancelled submissions keep no test outcomes.
func (p *Pipeline) finalize(ctx context.Context, res SubmissionResult, start time.Time) {
	res.ElapsedMs = time.Since(start).Milliseconds()
	if res.State == StateCancelled {
		res.Tests = nil
		res.Score = 0
		res.Success = false
	}

	if !p.registry.Remove(res.Submission.ID) {
		// Already finalized on another path.
		return
	}
	p.reportState(ctx, res.Submission.ID, res.State)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.history.WriteResult(persistCtx, res); err != nil {
		logger.Error(persistCtx, "persist submission result failed",
			zap.String("submission_id", res.Submission.ID), zap.Error(err))
	}

	p.bus.Publish(events.Event{
		Kind:       events.KindSubmissionEvaluated,
		Username:   res.Submission.Submitter,
		Submission: res.Submission.ID,
		Problem:    res.Submission.ProblemID,
		State:      string(res.State),
		Score:      res.Score,
		Success:    res.Success,
	})
}

func (p *Pipeline) stateForError(ctx context.Context, err error) SubmissionState {
	if ctx.Err() != nil || appErr.Is(err, appErr.SubmissionCancelled) {
		return StateCancelled
	}
	return StateFailed
}

// Cancel aborts an in-flight submission. The judging goroutine observes the
// cancelled context and finalizes with StateCancelled.
func (p *Pipeline) Cancel(submissionID string) bool {
	return p.registry.Cancel(submissionID)
}

// Shutdown waits for in-flight submissions to finalize.
func (p *Pipeline) Shutdown() {
	p.wg.Wait()
}

func (p *Pipeline) reportState(ctx context.Context, id string, state SubmissionState) {
	p.registry.SetState(id, state)
	if p.status == nil {
		return
	}
	if err := p.status.ReportState(ctx, id, state); err != nil {
		logger.Warn(ctx, "report state failed", zap.String("submission_id", id), zap.Error(err))
	}
	p.bus.Publish(events.Event{
		Kind:       events.KindSubmissionState,
		Submission: id,
		State:      string(state),
	})
}

func (p *Pipeline) reportProgress(ctx context.Context, id string, done, total int) {
	if p.status == nil {
		return
	}
	if err := p.status.ReportProgress(ctx, id, done, total); err != nil {
		logger.Warn(ctx, "report progress failed", zap.String("submission_id", id), zap.Error(err))
	}
}
