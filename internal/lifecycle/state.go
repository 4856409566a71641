// Package lifecycle drives a prediction from submission to a terminal state.
package lifecycle

import "movieposter/internal/domain"

// State is the client-side view of where a prediction stands.
type State int

const (
	StateSubmitted State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
	StateAbandoned
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateAbandoned:
		return "abandoned"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal states are absorbing.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Job is the held state of one submitted prediction.
type Job struct {
	State      State
	Prediction domain.Prediction
	Attempts   int
	Err        error
}

// Done reports whether the job reached a terminal state.
func (j Job) Done() bool {
	return j.State.Terminal()
}

// Submit seeds a job with the snapshot returned at creation. The job stays
// Submitted until polling begins; an already settled snapshot is applied
// directly.
func Submit(initial domain.Prediction) Job {
	job := Job{State: StateSubmitted, Prediction: initial}
	if initial.Status.Terminal() {
		return Advance(job, initial)
	}
	return job
}

// Advance replaces the held snapshot and derives the next state from its
// status. Terminal jobs are returned unchanged.
func Advance(job Job, snapshot domain.Prediction) Job {
	if job.State.Terminal() {
		return job
	}
	job.Prediction = snapshot
	switch snapshot.Status {
	case domain.PredictionSucceeded:
		job.State = StateSucceeded
	case domain.PredictionFailed, domain.PredictionCanceled:
		job.State = StateFailed
	case domain.PredictionTimedOut:
		job.State = StateTimedOut
	default:
		job.State = StatePolling
	}
	return job
}
