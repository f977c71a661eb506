package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	appErr "arbiter/pkg/errors"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.lua")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHookRunnerExecutesScript(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.txt")
	script := `
local f = io.open("` + outPath + `", "w")
f:write(event.kind .. " " .. event.username .. " " .. event.outcome)
f:close()
`
	h := NewHookRunner()
	if err := h.LoadScript(KindTestEvaluation, writeScript(t, script)); err != nil {
		t.Fatalf("load: %v", err)
	}

	h.HandleEvent(Event{
		Kind:     KindTestEvaluation,
		At:       time.Now(),
		Username: "alice",
		Outcome:  "pass",
	})

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("hook output not written: %v", err)
	}
	want := "test_evaluation alice pass"
	if string(data) != want {
		t.Fatalf("output = %q, want %q", data, want)
	}
}

func TestHookRunnerIgnoresOtherKinds(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.txt")
	script := `local f = io.open("` + outPath + `", "w") f:write("ran") f:close()`

	h := NewHookRunner()
	if err := h.LoadScript(KindAnnouncement, writeScript(t, script)); err != nil {
		t.Fatalf("load: %v", err)
	}

	h.HandleEvent(Event{Kind: KindCheckIn})
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Fatal("hook ran for an unbound event kind")
	}
}

func TestHookRunnerRejectsBadSyntax(t *testing.T) {
	h := NewHookRunner()
	err := h.LoadScript(KindAnnouncement, writeScript(t, "this is not lua ("))
	if !appErr.Is(err, appErr.HookScriptError) {
		t.Fatalf("err = %v, want HookScriptError", err)
	}
}

func TestHookRunnerMissingFile(t *testing.T) {
	h := NewHookRunner()
	err := h.LoadScript(KindAnnouncement, "/nonexistent/hook.lua")
	if !appErr.Is(err, appErr.HookScriptError) {
		t.Fatalf("err = %v, want HookScriptError", err)
	}
}

func TestHookRunnerEmptyPathIsNoop(t *testing.T) {
	h := NewHookRunner()
	if err := h.LoadScript(KindAnnouncement, ""); err != nil {
		t.Fatalf("empty path: %v", err)
	}
	// Runtime failures stay contained.
	h.HandleEvent(Event{Kind: KindAnnouncement})
}

func TestHookRunnerRuntimeErrorIsContained(t *testing.T) {
	h := NewHookRunner()
	if err := h.LoadScript(KindCheckIn, writeScript(t, `error("boom")`)); err != nil {
		t.Fatalf("load: %v", err)
	}
	// Must not panic.
	h.HandleEvent(Event{Kind: KindCheckIn})
}
