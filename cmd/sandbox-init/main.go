//go:build linux

// Command sandbox-init is the in-sandbox half of the engine. It reads an
// InitRequest from stdin, applies mounts, rlimits, IO redirection and the
// seccomp filter, then execs the target command. Any setup failure exits
// with code 127 so the engine can tell it apart from the child's own exit.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"arbiter/internal/sandbox/engine"
	"arbiter/internal/sandbox/spec"
)

// hostStderr stays connected to the engine even after redirectIO points
// fd 2 at the run's stderr file. fail() must write here, not to fd 2,
// or the engine never sees the setup error.
var hostStderr = os.Stderr

func main() {
	if fd, err := unix.FcntlInt(os.Stderr.Fd(), unix.F_DUPFD_CLOEXEC, 3); err == nil {
		hostStderr = os.NewFile(uintptr(fd), "host-stderr")
	}

	var req engine.InitRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fail("decode init request: %v", err)
	}
	if err := setup(req); err != nil {
		fail("%v", err)
	}

	cmd := req.RunSpec.Cmd
	path, err := lookPath(cmd[0])
	if err != nil {
		fail("resolve %s: %v", cmd[0], err)
	}
	env := req.RunSpec.Env
	if len(env) == 0 {
		env = []string{"PATH=/usr/local/bin:/usr/bin:/bin"}
	}
	if err := syscall.Exec(path, cmd, env); err != nil {
		fail("exec %s: %v", path, err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(hostStderr, format+"\n", args...)
	os.Exit(engine.HelperSetupExitCode)
}

func setup(req engine.InitRequest) error {
	if req.EnableNs {
		if err := setupMounts(req); err != nil {
			return err
		}
		if err := unix.Sethostname([]byte("sandbox")); err != nil {
			return fmt.Errorf("set hostname: %w", err)
		}
	}
	if err := os.Chdir(req.RunSpec.WorkDir); err != nil {
		return fmt.Errorf("chdir to workdir: %w", err)
	}
	if err := applyRlimits(req.RunSpec.Limits); err != nil {
		return err
	}
	if err := redirectIO(req.RunSpec); err != nil {
		return err
	}
	if req.EnableSeccomp && req.Isolation.SeccompProfile != "" {
		if err := applySeccomp(req.Isolation.SeccompProfile); err != nil {
			return err
		}
	}
	return nil
}

func setupMounts(req engine.InitRequest) error {
	// Stop mount events from leaking back to the host.
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make mounts private: %w", err)
	}

	root := req.Isolation.RootFS
	for _, m := range req.RunSpec.BindMounts {
		target := m.Target
		if root != "" {
			target = filepath.Join(root, m.Target)
		}
		if err := os.MkdirAll(target, 0750); err != nil {
			return fmt.Errorf("create mount target %s: %w", target, err)
		}
		flags := uintptr(unix.MS_BIND | unix.MS_REC)
		if err := unix.Mount(m.Source, target, "", flags, ""); err != nil {
			return fmt.Errorf("bind mount %s -> %s: %w", m.Source, target, err)
		}
		if m.ReadOnly {
			remount := flags | unix.MS_REMOUNT | unix.MS_RDONLY
			if err := unix.Mount(m.Source, target, "", remount, ""); err != nil {
				return fmt.Errorf("remount %s read-only: %w", target, err)
			}
		}
	}

	if root != "" {
		procDir := filepath.Join(root, "proc")
		if err := os.MkdirAll(procDir, 0555); err != nil {
			return fmt.Errorf("create proc dir: %w", err)
		}
		if err := unix.Mount("proc", procDir, "proc", 0, ""); err != nil {
			return fmt.Errorf("mount proc: %w", err)
		}
		if err := unix.Chroot(root); err != nil {
			return fmt.Errorf("chroot to %s: %w", root, err)
		}
		if err := os.Chdir("/"); err != nil {
			return fmt.Errorf("chdir after chroot: %w", err)
		}
	}
	return nil
}

func applyRlimits(limits spec.ResourceLimit) error {
	set := func(resource int, value uint64) error {
		rl := &unix.Rlimit{Cur: value, Max: value}
		return unix.Setrlimit(resource, rl)
	}
	if limits.CPUTimeMs > 0 {
		// Round up so sub-second budgets still get one full second.
		secs := uint64((limits.CPUTimeMs + 999) / 1000)
		if err := set(unix.RLIMIT_CPU, secs); err != nil {
			return fmt.Errorf("set cpu rlimit: %w", err)
		}
	}
	if limits.StackMB > 0 {
		if err := set(unix.RLIMIT_STACK, uint64(limits.StackMB)*1024*1024); err != nil {
			return fmt.Errorf("set stack rlimit: %w", err)
		}
	}
	if limits.OutputMaxBytes > 0 {
		// Headroom above the judged limit so the overrun is observable.
		if err := set(unix.RLIMIT_FSIZE, uint64(limits.OutputMaxBytes)*2); err != nil {
			return fmt.Errorf("set fsize rlimit: %w", err)
		}
	}
	if err := set(unix.RLIMIT_NOFILE, 64); err != nil {
		return fmt.Errorf("set nofile rlimit: %w", err)
	}
	if err := set(unix.RLIMIT_CORE, 0); err != nil {
		return fmt.Errorf("set core rlimit: %w", err)
	}
	return nil
}

func redirectIO(runSpec spec.RunSpec) error {
	if runSpec.StdinPath != "" {
		in, err := os.Open(runSpec.StdinPath)
		if err != nil {
			return fmt.Errorf("open stdin: %w", err)
		}
		if err := unix.Dup3(int(in.Fd()), 0, 0); err != nil {
			return fmt.Errorf("dup stdin: %w", err)
		}
	} else {
		devNull, err := os.Open(os.DevNull)
		if err != nil {
			return fmt.Errorf("open /dev/null: %w", err)
		}
		if err := unix.Dup3(int(devNull.Fd()), 0, 0); err != nil {
			return fmt.Errorf("dup /dev/null: %w", err)
		}
	}
	if runSpec.StdoutPath != "" {
		out, err := os.OpenFile(runSpec.StdoutPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
		if err != nil {
			return fmt.Errorf("open stdout: %w", err)
		}
		if err := unix.Dup3(int(out.Fd()), 1, 0); err != nil {
			return fmt.Errorf("dup stdout: %w", err)
		}
	}
	if runSpec.StderrPath != "" {
		errFile, err := os.OpenFile(runSpec.StderrPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
		if err != nil {
			return fmt.Errorf("open stderr: %w", err)
		}
		if err := unix.Dup3(int(errFile.Fd()), 2, 0); err != nil {
			return fmt.Errorf("dup stderr: %w", err)
		}
	}
	return nil
}

func lookPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	for _, dir := range []string{"/usr/local/bin", "/usr/bin", "/bin"} {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("not found in sandbox PATH")
}
