package domain

import "time"

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunRecord is the journal entry for one download run.
type RunRecord struct {
	ID       string    `json:"id"`
	Playlist string    `json:"playlist"`
	BaseURL  string    `json:"base_url"`
	Dest     string    `json:"dest"`
	Status   RunStatus `json:"status"`

	// Scheduled is the segment count after resume filtering, i.e. the number
	// of segments this run actually planned to fetch.
	Scheduled int `json:"scheduled"`
	Written   int `json:"written"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
