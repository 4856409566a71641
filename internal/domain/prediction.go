package domain

import (
	"strings"
	"time"
)

// PredictionStatus is the status token reported by the generation service.
type PredictionStatus string

const (
	PredictionStarting   PredictionStatus = "starting"
	PredictionProcessing PredictionStatus = "processing"
	PredictionSucceeded  PredictionStatus = "succeeded"
	PredictionFailed     PredictionStatus = "failed"
	PredictionCanceled   PredictionStatus = "canceled"
	// PredictionTimedOut is recorded locally when a prediction never settled
	// within the worker's age limit. The generation service never reports it.
	PredictionTimedOut PredictionStatus = "timed_out"
)

// Terminal reports whether no further status change can happen. Unknown
// tokens are treated as still running.
func (s PredictionStatus) Terminal() bool {
	switch s {
	case PredictionSucceeded, PredictionFailed, PredictionCanceled, PredictionTimedOut:
		return true
	default:
		return false
	}
}

// Prediction is a snapshot of an asynchronous image generation job. Snapshots
// are replaced wholesale, never merged.
type Prediction struct {
	ID          string           `json:"id"`
	Status      PredictionStatus `json:"status"`
	Output      []string         `json:"output,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	Model       string           `json:"model,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// PosterURL returns the last output URL, which is the final image for
// multi-step models.
func (p Prediction) PosterURL() string {
	for i := len(p.Output) - 1; i >= 0; i-- {
		if u := strings.TrimSpace(p.Output[i]); u != "" {
			return u
		}
	}
	return ""
}

// PredictionRecord is the persisted view of a prediction plus what produced it.
type PredictionRecord struct {
	Prediction
	Prompt    string
	Style     string
	ActorID   int
	ActorName string
	UpdatedAt time.Time
}
