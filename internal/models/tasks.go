package models

// PhotoTask is the message published to NATS for worker processing.
type PhotoTask struct {
	PhotoID string `json:"photo_id"`
	EventID string `json:"event_id"`
}

// ReclusterTask asks a worker to rebuild all clusters for an event.
// Threshold <= 0 means "use the configured default".
type ReclusterTask struct {
	EventID   string  `json:"event_id"`
	Threshold float64 `json:"threshold,omitempty"`
}
