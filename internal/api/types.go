// Package api defines the JSON payloads exchanged between the daemon's
// HTTP surface and the CLI, plus the client the CLI uses to reach a
// running daemon.
package api

import "time"

// TickInfo mirrors the coordinator's report of its most recent tick.
type TickInfo struct {
	At         time.Time `json:"at"`
	Work       string    `json:"work,omitempty"`
	TopicIndex int       `json:"topic_index,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Skipped    string    `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running        bool     `json:"running"`
	PID            int      `json:"pid"`
	ActiveRunID    string   `json:"active_run_id,omitempty"`
	PublishedRunID string   `json:"published_run_id,omitempty"`
	DetailCursor   int      `json:"detail_cursor"`
	LastTick       TickInfo `json:"last_tick"`
	StateDBPath    string   `json:"state_db_path"`
	LockFilePath   string   `json:"lock_file_path"`
}

// TopicValidation is one track's validation result in a ValidateResponse.
type TopicValidation struct {
	TopicIndex int    `json:"topic_index"`
	Key        string `json:"key"`
	Valid      bool   `json:"valid"`
	SizeBytes  int64  `json:"size_bytes"`
	Reason     string `json:"reason,omitempty"`
}

// ValidateResponse is the /api/validate payload.
type ValidateResponse struct {
	RunID             string            `json:"run_id"`
	Promoted          bool              `json:"promoted"`
	PreviousPublished string            `json:"previous_published,omitempty"`
	ValidCount        int               `json:"valid_count"`
	Results           []TopicValidation `json:"results"`
}

// TriggerResponse is the /api/trigger payload.
type TriggerResponse struct {
	Tick TickInfo `json:"tick"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status string `json:"status"`
}
