//go:build linux

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/security"
	"arbiter/internal/sandbox/spec"
	appErr "arbiter/pkg/errors"
)

func TestResolveExceededWallTimeWins(t *testing.T) {
	report := result.ExecutionReport{CPUTimeMs: 5000, OomKilled: true, OutputBytes: 1 << 30}
	limits := spec.ResourceLimit{CPUTimeMs: 1000, MemoryMB: 64, OutputMaxBytes: 1024}
	got := resolveExceeded(report, limits, true, nil)
	if got != result.LimitWallTime {
		t.Fatalf("exceeded = %q, want wall_time", got)
	}
}

func TestResolveExceededCPUBeforeMemory(t *testing.T) {
	report := result.ExecutionReport{CPUTimeMs: 1500, OomKilled: true}
	limits := spec.ResourceLimit{CPUTimeMs: 1000, MemoryMB: 64}
	got := resolveExceeded(report, limits, false, nil)
	if got != result.LimitCPUTime {
		t.Fatalf("exceeded = %q, want cpu_time", got)
	}
}

func TestResolveExceededOomKill(t *testing.T) {
	report := result.ExecutionReport{OomKilled: true}
	got := resolveExceeded(report, spec.ResourceLimit{}, false, nil)
	if got != result.LimitMemory {
		t.Fatalf("exceeded = %q, want memory", got)
	}
}

func TestResolveExceededMemoryPeak(t *testing.T) {
	report := result.ExecutionReport{MemoryKB: 200 * 1024}
	limits := spec.ResourceLimit{MemoryMB: 128}
	got := resolveExceeded(report, limits, false, nil)
	if got != result.LimitMemory {
		t.Fatalf("exceeded = %q, want memory", got)
	}
}

func TestResolveExceededOutput(t *testing.T) {
	report := result.ExecutionReport{OutputBytes: 4096}
	limits := spec.ResourceLimit{OutputMaxBytes: 1024}
	got := resolveExceeded(report, limits, false, nil)
	if got != result.LimitOutput {
		t.Fatalf("exceeded = %q, want output", got)
	}
}

func TestResolveExceededNone(t *testing.T) {
	report := result.ExecutionReport{CPUTimeMs: 100, MemoryKB: 1024, OutputBytes: 10}
	limits := spec.ResourceLimit{CPUTimeMs: 1000, MemoryMB: 64, OutputMaxBytes: 1024}
	got := resolveExceeded(report, limits, false, nil)
	if got != result.LimitNone {
		t.Fatalf("exceeded = %q, want none", got)
	}
}

func TestReadLimitedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	content := strings.Repeat("x", 100)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	data, truncated := readLimitedFile(path, 1000)
	if truncated || data != content {
		t.Fatalf("data len = %d truncated = %v", len(data), truncated)
	}

	data, truncated = readLimitedFile(path, 10)
	if !truncated || len(data) != 10 {
		t.Fatalf("data len = %d truncated = %v, want 10 true", len(data), truncated)
	}

	data, truncated = readLimitedFile(filepath.Join(t.TempDir(), "missing"), 10)
	if truncated || data != "" {
		t.Fatalf("missing file: data = %q truncated = %v", data, truncated)
	}
}

func TestResolveHostPathLongestPrefix(t *testing.T) {
	runSpec := spec.RunSpec{
		BindMounts: []spec.MountSpec{
			{Source: "/host/scratch", Target: "/box"},
			{Source: "/host/scratch/t1", Target: "/box/t1"},
		},
	}
	got := resolveHostPath("/box/t1/run.out", runSpec)
	if got != "/host/scratch/t1/run.out" {
		t.Fatalf("resolved = %q", got)
	}

	got = resolveHostPath("/box/compile.err", runSpec)
	if got != "/host/scratch/compile.err" {
		t.Fatalf("resolved = %q", got)
	}

	// Unmapped paths pass through.
	got = resolveHostPath("/elsewhere/x", runSpec)
	if got != "/elsewhere/x" {
		t.Fatalf("resolved = %q", got)
	}
}

func TestValidateRunSpec(t *testing.T) {
	good := spec.RunSpec{
		SubmissionID: "s1",
		TaskID:       "t1",
		WorkDir:      "/w",
		Cmd:          []string{"true"},
		Profile:      "default",
	}
	if err := validateRunSpec(good); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	bad := good
	bad.Cmd = nil
	if err := validateRunSpec(bad); err == nil {
		t.Fatal("empty cmd accepted")
	}

	bad = good
	bad.Profile = ""
	if err := validateRunSpec(bad); err == nil {
		t.Fatal("empty profile accepted")
	}
}

func writeFakeHelper(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "helper.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func plainRunSpec(dir string) spec.RunSpec {
	return spec.RunSpec{
		SubmissionID: "s1",
		TaskID:       "t1",
		WorkDir:      dir,
		Cmd:          []string{"true"},
		Profile:      "default",
		StdoutPath:   filepath.Join(dir, "run.out"),
		StderrPath:   filepath.Join(dir, "run.err"),
	}
}

// A helper that dies during setup exits 127 with the reason on its own
// stderr. That must surface as a SandboxSpawnError, never as the target's
// runtime failure.
func TestRunReportsSetupFailureAsSpawnError(t *testing.T) {
	dir := t.TempDir()
	helper := writeFakeHelper(t, "cat >/dev/null\necho 'resolve nosuch: not found in sandbox PATH' >&2\nexit 127\n")

	eng, err := NewEngine(Config{HelperPath: helper}, security.NewStaticResolver(nil))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	report, err := eng.Run(context.Background(), plainRunSpec(dir))
	if !appErr.Is(err, appErr.SandboxSpawnError) {
		t.Fatalf("err = %v, want SandboxSpawnError", err)
	}
	if report.ExitCode != HelperSetupExitCode {
		t.Fatalf("exit code = %d, want %d", report.ExitCode, HelperSetupExitCode)
	}
}

func TestRunKeepsChildExitCodeAndOutput(t *testing.T) {
	dir := t.TempDir()
	script := fmt.Sprintf("cat >/dev/null\necho wrong answer > %s\nexit 3\n", filepath.Join(dir, "run.out"))
	helper := writeFakeHelper(t, script)

	eng, err := NewEngine(Config{HelperPath: helper}, security.NewStaticResolver(nil))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	report, err := eng.Run(context.Background(), plainRunSpec(dir))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", report.ExitCode)
	}
	if report.Stdout != "wrong answer\n" {
		t.Fatalf("stdout = %q", report.Stdout)
	}
	if report.Exceeded != result.LimitNone {
		t.Fatalf("exceeded = %q, want none", report.Exceeded)
	}
}

func TestDurationFromMs(t *testing.T) {
	if d := durationFromMs(0); d != 0 {
		t.Fatalf("durationFromMs(0) = %v", d)
	}
	if d := durationFromMs(1500); d.Milliseconds() != 1500 {
		t.Fatalf("durationFromMs(1500) = %v", d)
	}
}
