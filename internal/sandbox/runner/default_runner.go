package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/shlex"

	"arbiter/internal/sandbox/engine"
	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/spec"
	appErr "arbiter/pkg/errors"
)

// Config controls scratch-space layout and per-phase limit defaults.
type Config struct {
	ScratchRoot   string             `yaml:"scratch_root"`
	CompileLimits spec.ResourceLimit `yaml:"compile_limits"`
	RunLimits     spec.ResourceLimit `yaml:"run_limits"`
}

type defaultRunner struct {
	cfg    Config
	engine engine.Engine
	langs  LanguageRepository

	mu     sync.Mutex
	staged map[string]stagedSubmission
}

type stagedSubmission struct {
	lang    LanguageSpec
	workDir string
	binPath string
	srcPath string
}

// NewDefaultRunner builds the standard runner on top of a sandbox engine.
func NewDefaultRunner(cfg Config, eng engine.Engine, langs LanguageRepository) (Runner, error) {
	if eng == nil {
		return nil, appErr.ValidationError("engine", "required")
	}
	if langs == nil {
		return nil, appErr.ValidationError("languages", "required")
	}
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = filepath.Join(os.TempDir(), "arbiter-scratch")
	}
	return &defaultRunner{
		cfg:    cfg,
		engine: eng,
		langs:  langs,
		staged: make(map[string]stagedSubmission),
	}, nil
}

func (r *defaultRunner) Compile(ctx context.Context, req CompileRequest) (result.CompileOutcome, error) {
	if req.SubmissionID == "" {
		return result.CompileOutcome{}, appErr.ValidationError("submission_id", "required")
	}
	lang, err := r.langs.GetLanguage(req.Language)
	if err != nil {
		return result.CompileOutcome{}, err
	}

	workDir, err := r.prepareWorkDir(req.SubmissionID)
	if err != nil {
		return result.CompileOutcome{}, err
	}

	srcPath := filepath.Join(workDir, lang.SourceFile)
	if err := writeSourceFile(srcPath, req.SourceCode); err != nil {
		r.removeWorkDir(workDir)
		return result.CompileOutcome{}, appErr.Wrapf(err, appErr.ScratchSpaceError, "write source failed")
	}

	staged := stagedSubmission{lang: lang, workDir: workDir, srcPath: srcPath}

	if !lang.Compiled() {
		r.store(req.SubmissionID, staged)
		return result.CompileOutcome{OK: true, Skipped: true}, nil
	}

	binPath := filepath.Join(workDir, lang.BinaryFile)
	cmd, err := buildCommand(lang.CompileCmd, srcPath, binPath)
	if err != nil {
		r.removeWorkDir(workDir)
		return result.CompileOutcome{}, err
	}

	limits := spec.Merge(r.cfg.CompileLimits, req.Limits)
	runSpec := spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TaskID:       "compile",
		WorkDir:      workDir,
		Cmd:          cmd,
		StdoutPath:   filepath.Join(workDir, "compile.out"),
		StderrPath:   filepath.Join(workDir, "compile.err"),
		BindMounts:   []spec.MountSpec{{Source: workDir, Target: workDir}},
		Profile:      lang.Profile,
		Limits:       limits,
	}

	report, err := r.engine.Run(ctx, runSpec)
	if err != nil {
		r.removeWorkDir(workDir)
		return result.CompileOutcome{}, err
	}

	outcome := result.CompileOutcome{
		OK:         report.ExitCode == 0 && report.Exceeded == result.LimitNone,
		ExitCode:   report.ExitCode,
		Stdout:     report.Stdout,
		Stderr:     report.Stderr,
		WallTimeMs: report.WallTimeMs,
		Exceeded:   report.Exceeded,
	}
	if !outcome.OK {
		r.removeWorkDir(workDir)
		return outcome, nil
	}

	staged.binPath = binPath
	r.store(req.SubmissionID, staged)
	return outcome, nil
}

func (r *defaultRunner) Execute(ctx context.Context, req ExecuteRequest) (result.ExecutionReport, error) {
	staged, ok := r.lookup(req.SubmissionID)
	if !ok {
		return result.ExecutionReport{}, appErr.Newf(appErr.JudgeSystemError, "submission %s is not staged", req.SubmissionID)
	}
	lang := staged.lang

	// Each test gets its own directory so parallel runs never share files.
	taskDir := filepath.Join(staged.workDir, req.TaskID)
	if err := os.MkdirAll(taskDir, 0750); err != nil {
		return result.ExecutionReport{}, appErr.Wrapf(err, appErr.ScratchSpaceError, "create task dir failed")
	}
	defer os.RemoveAll(taskDir)

	var srcPath, binPath string
	if lang.Compiled() {
		binPath = filepath.Join(taskDir, lang.BinaryFile)
		if err := copyFile(staged.binPath, binPath, 0750); err != nil {
			return result.ExecutionReport{}, appErr.Wrapf(err, appErr.ScratchSpaceError, "stage binary failed")
		}
	} else {
		srcPath = filepath.Join(taskDir, lang.SourceFile)
		if err := copyFile(staged.srcPath, srcPath, 0640); err != nil {
			return result.ExecutionReport{}, appErr.Wrapf(err, appErr.ScratchSpaceError, "stage source failed")
		}
	}

	cmd, err := buildCommand(lang.RunCmd, srcPath, binPath)
	if err != nil {
		return result.ExecutionReport{}, err
	}

	limits := scaleLimits(spec.Merge(r.cfg.RunLimits, req.Limits), lang)
	runSpec := spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TaskID:       req.TaskID,
		WorkDir:      taskDir,
		Cmd:          cmd,
		StdinPath:    req.StdinPath,
		StdoutPath:   filepath.Join(taskDir, "run.out"),
		StderrPath:   filepath.Join(taskDir, "run.err"),
		BindMounts:   buildMounts(taskDir, req.StdinPath),
		Profile:      lang.Profile,
		Limits:       limits,
	}

	return r.engine.Run(ctx, runSpec)
}

func (r *defaultRunner) Cleanup(submissionID string) {
	// Reap any straggler processes before tearing the scratch space down.
	_ = r.engine.KillSubmission(context.Background(), submissionID)

	r.mu.Lock()
	staged, ok := r.staged[submissionID]
	delete(r.staged, submissionID)
	r.mu.Unlock()
	if ok {
		r.removeWorkDir(staged.workDir)
	}
}

func (r *defaultRunner) prepareWorkDir(submissionID string) (string, error) {
	workDir := filepath.Join(r.cfg.ScratchRoot, submissionID)
	if err := os.RemoveAll(workDir); err != nil {
		return "", appErr.Wrapf(err, appErr.ScratchSpaceError, "clear work dir failed")
	}
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return "", appErr.Wrapf(err, appErr.ScratchSpaceError, "create work dir failed")
	}
	return workDir, nil
}

func (r *defaultRunner) removeWorkDir(workDir string) {
	if workDir != "" {
		_ = os.RemoveAll(workDir)
	}
}

func (r *defaultRunner) store(submissionID string, staged stagedSubmission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[submissionID] = staged
}

func (r *defaultRunner) lookup(submissionID string) (stagedSubmission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged, ok := r.staged[submissionID]
	return staged, ok
}

// buildCommand expands {src} and {bin} placeholders in a command template.
func buildCommand(template, srcPath, binPath string) ([]string, error) {
	parts, err := shlex.Split(template)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.LanguageNotSupported, "invalid command template %q", template)
	}
	if len(parts) == 0 {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "empty command template")
	}
	cmd := make([]string, len(parts))
	for i, part := range parts {
		part = strings.ReplaceAll(part, "{src}", srcPath)
		part = strings.ReplaceAll(part, "{bin}", binPath)
		cmd[i] = part
	}
	return cmd, nil
}

func scaleLimits(limits spec.ResourceLimit, lang LanguageSpec) spec.ResourceLimit {
	limits.CPUTimeMs = scaleLimit(limits.CPUTimeMs, lang.TimeMultiplier)
	limits.WallTimeMs = scaleLimit(limits.WallTimeMs, lang.TimeMultiplier)
	limits.MemoryMB = scaleLimit(limits.MemoryMB, lang.MemoryMultiplier)
	return limits
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 || multiplier <= 0 {
		return value
	}
	return int64(float64(value) * multiplier)
}

func buildMounts(taskDir, stdinPath string) []spec.MountSpec {
	mounts := []spec.MountSpec{{Source: taskDir, Target: taskDir}}
	if stdinPath != "" {
		mounts = append(mounts, spec.MountSpec{
			Source:   filepath.Dir(stdinPath),
			Target:   filepath.Dir(stdinPath),
			ReadOnly: true,
		})
	}
	return mounts
}

func writeSourceFile(path, code string) error {
	return os.WriteFile(path, []byte(code), 0640)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Sync()
}
