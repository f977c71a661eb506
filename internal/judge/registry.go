package judge

import (
	"sync"

	appErr "arbiter/pkg/errors"
)

// entry is one in-flight submission with its cancel hook.
type entry struct {
	submission Submission
	state      SubmissionState
	cancel     func()
}

// Registry tracks in-flight submissions and enforces the one-at-a-time rule
// per (submitter, problem). Removal is exactly-once: the second caller for
// the same ID gets false.
type Registry struct {
	mu       sync.Mutex
	byID     map[string]*entry
	inFlight map[string]string // submitter+problem -> submission ID
	capacity int
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		byID:     make(map[string]*entry),
		inFlight: make(map[string]string),
		capacity: capacity,
	}
}

func flightKey(submitter, problemID string) string {
	return submitter + "\x00" + problemID
}

// Admit registers a submission. It fails when the same submitter already has
// this problem in flight, or when the registry is at capacity.
func (r *Registry) Admit(sub Submission, cancel func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := flightKey(sub.Submitter, sub.ProblemID)
	if existing, ok := r.inFlight[key]; ok {
		return appErr.Newf(appErr.SubmissionInFlight,
			"submission %s for problem %s is already being judged", existing, sub.ProblemID)
	}
	if r.capacity > 0 && len(r.byID) >= r.capacity {
		return appErr.Newf(appErr.JudgeQueueFull, "judge queue is full")
	}
	r.byID[sub.ID] = &entry{submission: sub, state: StateQueued, cancel: cancel}
	r.inFlight[key] = sub.ID
	return nil
}

// SetState records an in-flight transition. Unknown IDs are ignored, the
// submission may have been removed concurrently.
func (r *Registry) SetState(id string, state SubmissionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.state = state
	}
}

// Get returns the submission and its current state.
func (r *Registry) Get(id string) (Submission, SubmissionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Submission{}, "", false
	}
	return e.submission, e.state, true
}

// Cancel requests cancellation of an in-flight submission.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Remove drops a submission; the first caller wins.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.inFlight, flightKey(e.submission.Submitter, e.submission.ProblemID))
	return true
}

// Snapshot lists all in-flight submissions with their states.
func (r *Registry) Snapshot() map[string]SubmissionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]SubmissionState, len(r.byID))
	for id, e := range r.byID {
		out[id] = e.state
	}
	return out
}

// Len returns the number of in-flight submissions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
