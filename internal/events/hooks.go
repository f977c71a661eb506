package events

import (
	"context"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// HookRunner executes Lua scripts in response to competition events. Each
// event kind maps to at most one script; the script receives a table named
// `event` and runs in a fresh interpreter state.
type HookRunner struct {
	mu      sync.Mutex
	scripts map[Kind]string // kind -> script source
}

func NewHookRunner() *HookRunner {
	return &HookRunner{scripts: make(map[Kind]string)}
}

// LoadScript reads and registers a script for one event kind. The script is
// compiled once here to surface syntax errors at startup.
func (h *HookRunner) LoadScript(kind Kind, path string) error {
	if path == "" {
		return nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return appErr.Wrapf(err, appErr.HookScriptError, "read hook script %q failed", path)
	}
	state := lua.NewState()
	defer state.Close()
	if _, err := state.LoadString(string(src)); err != nil {
		return appErr.Wrapf(err, appErr.HookScriptError, "compile hook script %q failed", path)
	}
	h.mu.Lock()
	h.scripts[kind] = string(src)
	h.mu.Unlock()
	return nil
}

// HandleEvent runs the script registered for the event's kind, if any.
// Script failures are logged, never propagated into the judge path.
func (h *HookRunner) HandleEvent(ev Event) {
	h.mu.Lock()
	src, ok := h.scripts[ev.Kind]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := runScript(src, ev); err != nil {
		logger.Error(context.Background(), "hook script failed",
			zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func runScript(src string, ev Event) error {
	state := lua.NewState()
	defer state.Close()

	table := state.NewTable()
	state.SetField(table, "kind", lua.LString(ev.Kind))
	state.SetField(table, "at", lua.LNumber(ev.At.Unix()))
	state.SetField(table, "username", lua.LString(ev.Username))
	state.SetField(table, "submission_id", lua.LString(ev.Submission))
	state.SetField(table, "problem_id", lua.LString(ev.Problem))
	state.SetField(table, "state", lua.LString(ev.State))
	state.SetField(table, "test_id", lua.LString(ev.TestID))
	state.SetField(table, "outcome", lua.LString(ev.Outcome))
	state.SetField(table, "score", lua.LNumber(ev.Score))
	state.SetField(table, "success", lua.LBool(ev.Success))
	state.SetField(table, "message", lua.LString(ev.Message))
	state.SetGlobal("event", table)

	if err := state.DoString(src); err != nil {
		return appErr.Wrapf(err, appErr.HookScriptError, "run hook script failed")
	}
	return nil
}
