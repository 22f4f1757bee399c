package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job represents one submitted-capture analysis attempt for data transfer
// between layers.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Owner        string          `json:"owner"`
	SourceName   string          `json:"source_name"`
	Status       string          `json:"status"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// WithoutResult returns a copy suitable for list views, dropping the full
// result payload (summary stays, it is small).
func (j Job) WithoutResult() Job {
	j.Result = nil
	return j
}
