package upload

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record describes one file part handled by a Session.
type Record struct {
	ID          uuid.UUID `json:"id"`
	RecipientID string    `json:"recipientId,omitempty"`
	Field       string    `json:"field,omitempty"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	Bytes       int64     `json:"bytes"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}
