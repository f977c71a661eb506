package result

import "testing"

func TestTimedOut(t *testing.T) {
	if !(ExecutionReport{Exceeded: LimitWallTime}).TimedOut() {
		t.Fatal("wall time limit not reported as timeout")
	}
	if !(ExecutionReport{Exceeded: LimitCPUTime}).TimedOut() {
		t.Fatal("cpu time limit not reported as timeout")
	}
	if (ExecutionReport{Exceeded: LimitMemory}).TimedOut() {
		t.Fatal("memory limit reported as timeout")
	}
	if (ExecutionReport{}).TimedOut() {
		t.Fatal("clean run reported as timeout")
	}
}

func TestResourceExceeded(t *testing.T) {
	if !(ExecutionReport{Exceeded: LimitMemory}).ResourceExceeded() {
		t.Fatal("memory limit not reported as resource exceeded")
	}
	if !(ExecutionReport{Exceeded: LimitOutput}).ResourceExceeded() {
		t.Fatal("output limit not reported as resource exceeded")
	}
	if (ExecutionReport{Exceeded: LimitWallTime}).ResourceExceeded() {
		t.Fatal("wall time limit reported as resource exceeded")
	}
	if (ExecutionReport{}).ResourceExceeded() {
		t.Fatal("clean run reported as resource exceeded")
	}
}
