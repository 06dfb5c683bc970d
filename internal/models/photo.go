package models

import "time"

type ProcessingStatus string

const (
	PhotoPending    ProcessingStatus = "pending"
	PhotoProcessing ProcessingStatus = "processing"
	PhotoProcessed  ProcessingStatus = "processed"
	PhotoFailed     ProcessingStatus = "failed"
)

// Photo is one uploaded image within an event. Status only moves
// pending -> processing -> processed|failed; reprocessing re-enters at
// processing.
type Photo struct {
	ID              string           `json:"id" db:"id"`
	EventID         string           `json:"event_id" db:"event_id"`
	ObjectKey       string           `json:"object_key" db:"object_key"`
	Status          ProcessingStatus `json:"status" db:"status"`
	ProcessingError string           `json:"processing_error,omitempty" db:"processing_error"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}
