package models

import "time"

// MatchFeedback is a user's yes/no judgment that a photo belongs to a
// cluster. Append-only; duplicate feedback for the same pair is allowed.
type MatchFeedback struct {
	ID        string    `json:"id" db:"id"`
	ClusterID string    `json:"cluster_id" db:"cluster_id"`
	PhotoID   string    `json:"photo_id" db:"photo_id"`
	IsMatch   bool      `json:"is_match" db:"is_match"`
	UserID    *string   `json:"user_id,omitempty" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
