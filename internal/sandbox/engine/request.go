package engine

import (
	"arbiter/internal/sandbox/security"
	"arbiter/internal/sandbox/spec"
)

// InitRequest is the wire format handed to the sandbox-init helper on stdin.
// The helper applies mounts, rlimits, IO redirection and seccomp, then execs
// the target command.
type InitRequest struct {
	RunSpec       spec.RunSpec              `json:"run_spec"`
	Isolation     security.IsolationProfile `json:"isolation"`
	EnableSeccomp bool                      `json:"enable_seccomp"`
	EnableNs      bool                      `json:"enable_ns"`
}

// Helper setup failures exit with this code so the engine can tell a spawn
// failure apart from the sandboxed child's own exit status.
const HelperSetupExitCode = 127
