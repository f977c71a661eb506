// Package clock tracks competition time: start, pause spans and end.
package clock

import (
	"context"
	"sync"
	"time"

	appErr "arbiter/pkg/errors"
)

// Info is a point-in-time view of the competition clock.
type Info struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Paused          bool          `json:"paused"`
	TotalTimePaused time.Duration `json:"total_time_paused"`
	Remaining       time.Duration `json:"remaining"`
	Finished        bool          `json:"finished"`
}

// Clock is safe for concurrent use. Pause stops the countdown; the paused
// span extends the effective end time.
type Clock struct {
	mu          sync.Mutex
	startedAt   time.Time
	duration    time.Duration
	pausedAt    time.Time
	totalPaused time.Duration
	now         func() time.Time
}

func New(duration time.Duration) *Clock {
	return &Clock{duration: duration, now: time.Now}
}

// NewWithNow injects a time source, used by tests.
func NewWithNow(duration time.Duration, now func() time.Time) *Clock {
	return &Clock{duration: duration, now: now}
}

// Start begins the countdown. Starting twice is an error.
func (c *Clock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.startedAt.IsZero() {
		return appErr.Newf(appErr.InvalidParams, "competition already started")
	}
	c.startedAt = c.now()
	return nil
}

// Pause freezes the countdown.
func (c *Clock) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return appErr.Newf(appErr.InvalidParams, "competition not started")
	}
	if !c.pausedAt.IsZero() {
		return appErr.Newf(appErr.CompetitionPaused, "competition already paused")
	}
	c.pausedAt = c.now()
	return nil
}

// Unpause resumes the countdown, accumulating the paused span.
func (c *Clock) Unpause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pausedAt.IsZero() {
		return appErr.Newf(appErr.InvalidParams, "competition is not paused")
	}
	c.totalPaused += c.now().Sub(c.pausedAt)
	c.pausedAt = time.Time{}
	return nil
}

// NotifyFinished blocks until the countdown reaches zero, then invokes fn
// exactly once and returns. Returns without calling fn when ctx is
// cancelled first. Callers run it in its own goroutine.
func (c *Clock) NotifyFinished(ctx context.Context, poll time.Duration, fn func()) {
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Snapshot().Finished {
				fn()
				return
			}
		}
	}
}

// Running reports whether submissions should be accepted right now.
func (c *Clock) Running() bool {
	info := c.Snapshot()
	return !info.StartedAt.IsZero() && !info.Paused && !info.Finished
}

// Snapshot returns the current clock view.
func (c *Clock) Snapshot() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		StartedAt:       c.startedAt,
		Duration:        c.duration,
		Paused:          !c.pausedAt.IsZero(),
		TotalTimePaused: c.totalPaused,
	}
	if c.startedAt.IsZero() {
		info.Remaining = c.duration
		return info
	}

	reference := c.now()
	if info.Paused {
		reference = c.pausedAt
	}
	elapsed := reference.Sub(c.startedAt) - c.totalPaused
	remaining := c.duration - elapsed
	if remaining <= 0 {
		remaining = 0
		info.Finished = true
	}
	info.Remaining = remaining
	return info
}
