package judge

import (
	"testing"

	appErr "arbiter/pkg/errors"
)

func newSub(id, submitter, problem string) Submission {
	return Submission{ID: id, Submitter: submitter, ProblemID: problem}
}

func TestRegistryAdmitRejectsDuplicateFlight(t *testing.T) {
	reg := NewRegistry(0)
	if err := reg.Admit(newSub("s1", "alice", "p1"), nil); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	err := reg.Admit(newSub("s2", "alice", "p1"), nil)
	if !appErr.Is(err, appErr.SubmissionInFlight) {
		t.Fatalf("second admit error = %v, want SubmissionInFlight", err)
	}

	// A different problem for the same submitter is fine.
	if err := reg.Admit(newSub("s3", "alice", "p2"), nil); err != nil {
		t.Fatalf("admit other problem: %v", err)
	}
	// Same problem for a different submitter is fine.
	if err := reg.Admit(newSub("s4", "bob", "p1"), nil); err != nil {
		t.Fatalf("admit other submitter: %v", err)
	}
}

func TestRegistryCapacity(t *testing.T) {
	reg := NewRegistry(1)
	if err := reg.Admit(newSub("s1", "alice", "p1"), nil); err != nil {
		t.Fatalf("admit: %v", err)
	}
	err := reg.Admit(newSub("s2", "bob", "p1"), nil)
	if !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("admit at capacity error = %v, want JudgeQueueFull", err)
	}

	reg.Remove("s1")
	if err := reg.Admit(newSub("s2", "bob", "p1"), nil); err != nil {
		t.Fatalf("admit after removal: %v", err)
	}
}

func TestRegistryRemoveExactlyOnce(t *testing.T) {
	reg := NewRegistry(0)
	if err := reg.Admit(newSub("s1", "alice", "p1"), nil); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !reg.Remove("s1") {
		t.Fatal("first remove returned false")
	}
	if reg.Remove("s1") {
		t.Fatal("second remove returned true")
	}
	if reg.Remove("never-admitted") {
		t.Fatal("remove of unknown id returned true")
	}
}

func TestRegistryRemoveFreesFlightSlot(t *testing.T) {
	reg := NewRegistry(0)
	if err := reg.Admit(newSub("s1", "alice", "p1"), nil); err != nil {
		t.Fatalf("admit: %v", err)
	}
	reg.Remove("s1")
	if err := reg.Admit(newSub("s2", "alice", "p1"), nil); err != nil {
		t.Fatalf("re-admit after removal: %v", err)
	}
}

func TestRegistryCancelInvokesHook(t *testing.T) {
	reg := NewRegistry(0)
	called := false
	if err := reg.Admit(newSub("s1", "alice", "p1"), func() { called = true }); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !reg.Cancel("s1") {
		t.Fatal("cancel returned false")
	}
	if !called {
		t.Fatal("cancel hook not invoked")
	}
	if reg.Cancel("unknown") {
		t.Fatal("cancel of unknown id returned true")
	}
}

func TestRegistryStateTracking(t *testing.T) {
	reg := NewRegistry(0)
	if err := reg.Admit(newSub("s1", "alice", "p1"), nil); err != nil {
		t.Fatalf("admit: %v", err)
	}
	reg.SetState("s1", StateRunning)
	_, state, ok := reg.Get("s1")
	if !ok || state != StateRunning {
		t.Fatalf("state = %v ok = %v, want running true", state, ok)
	}

	snap := reg.Snapshot()
	if snap["s1"] != StateRunning {
		t.Fatalf("snapshot state = %v, want running", snap["s1"])
	}

	// Unknown IDs are ignored.
	reg.SetState("ghost", StateRunning)
	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1", reg.Len())
	}
}
