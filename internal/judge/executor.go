package judge

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"arbiter/internal/packet"
	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/runner"
	"arbiter/internal/sandbox/spec"
	appErr "arbiter/pkg/errors"
)

// Executor runs one submission against one test case and classifies the
// outcome. Classification precedence: wall timeout, then cpu, then memory,
// then output, then nonzero exit, then byte comparison.
type Executor struct {
	runner     runner.Runner
	trimOutput bool
}

func NewExecutor(r runner.Runner, trimOutput bool) *Executor {
	return &Executor{runner: r, trimOutput: trimOutput}
}

// RunTest materializes the test input, executes the staged submission and
// classifies the report against the expected output.
func (e *Executor) RunTest(ctx context.Context, sub Submission, pkt *packet.Packet, tc packet.TestCase, limits spec.ResourceLimit, scratchDir string) (TestOutcome, error) {
	input, err := pkt.InputBytes(tc)
	if err != nil {
		return TestOutcome{}, err
	}
	expected, err := pkt.ExpectedBytes(tc)
	if err != nil {
		return TestOutcome{}, err
	}

	stdinPath := filepath.Join(scratchDir, tc.ID+".in")
	if err := os.WriteFile(stdinPath, input, 0640); err != nil {
		return TestOutcome{}, appErr.Wrapf(err, appErr.ScratchSpaceError, "write test input failed")
	}
	defer os.Remove(stdinPath)

	report, err := e.runner.Execute(ctx, runner.ExecuteRequest{
		SubmissionID: sub.ID,
		TaskID:       tc.ID,
		Language:     sub.Language,
		StdinPath:    stdinPath,
		Limits:       limits,
	})
	if err != nil {
		return TestOutcome{}, err
	}

	return e.classify(tc, report, expected), nil
}

func (e *Executor) classify(tc packet.TestCase, report result.ExecutionReport, expected []byte) TestOutcome {
	outcome := TestOutcome{
		TestID:     tc.ID,
		ExitCode:   report.ExitCode,
		WallTimeMs: report.WallTimeMs,
		CPUTimeMs:  report.CPUTimeMs,
		MemoryKB:   report.MemoryKB,
		Stdout:     report.Stdout,
		Stderr:     report.Stderr,
		Hidden:     tc.Hidden,
		Weight:     tc.Weight,
	}

	switch {
	case report.TimedOut():
		outcome.Kind = OutcomeTimeout
	case report.ResourceExceeded():
		outcome.Kind = OutcomeResourceExceeded
	case report.ExitCode != 0:
		outcome.Kind = OutcomeRuntimeError
	case e.outputMatches([]byte(report.Stdout), expected, report.StdoutTruncated):
		outcome.Kind = OutcomePass
	default:
		outcome.Kind = OutcomeFail
	}
	return outcome
}

// outputMatches compares actual bytes against expected. Truncated captures
// can never match. With trimming enabled, trailing whitespace on each line
// and trailing newlines are ignored.
func (e *Executor) outputMatches(actual, expected []byte, truncated bool) bool {
	if truncated {
		return false
	}
	if e.trimOutput {
		return bytes.Equal(normalizeOutput(actual), normalizeOutput(expected))
	}
	return bytes.Equal(actual, expected)
}

func normalizeOutput(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t\r")
	}
	joined := bytes.Join(lines, []byte("\n"))
	return bytes.TrimRight(joined, "\n")
}
