// Package events carries competition events from the judge and server to
// subscribers: websocket fan-out, the message queue bridge and hook scripts.
package events

import "time"

// Kind names an event type.
type Kind string

const (
	KindSubmissionQueued    Kind = "submission_queued"
	KindSubmissionState     Kind = "submission_state"
	KindTestEvaluation      Kind = "test_evaluation"
	KindSubmissionEvaluated Kind = "submission_evaluated"
	KindCompetitionPause    Kind = "competition_pause"
	KindCompetitionUnpause  Kind = "competition_unpause"
	KindCompetitionComplete Kind = "competition_complete"
	KindAnnouncement        Kind = "announcement"
	KindCheckIn             Kind = "check_in"
	KindTeamKick            Kind = "team_kick"
	KindTeamBan             Kind = "team_ban"
)

// Event is one competition occurrence. Payload fields are populated per
// kind; unused ones stay zero.
type Event struct {
	Kind       Kind      `json:"kind"`
	At         time.Time `json:"at"`
	Username   string    `json:"username,omitempty"`
	Submission string    `json:"submission_id,omitempty"`
	Problem    string    `json:"problem_id,omitempty"`
	State      string    `json:"state,omitempty"`
	TestID     string    `json:"test_id,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Success    bool      `json:"success,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Handler consumes events. Handlers must not block; slow consumers should
// buffer internally.
type Handler interface {
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev Event)

func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }
