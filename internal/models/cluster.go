package models

import "time"

// PersonCluster is a hypothesized identity within one event. FaceCount and
// PhotoCount are stored aggregates; the clustering code keeps them in sync
// with actual FaceDetection membership.
type PersonCluster struct {
	ID          string     `json:"id" db:"id"`
	EventID     string     `json:"event_id" db:"event_id"`
	RepFaceID   string     `json:"rep_face_id" db:"rep_face_id"`
	RepPhotoID  string     `json:"rep_photo_id" db:"rep_photo_id"`
	DisplayName string     `json:"display_name,omitempty" db:"display_name"`
	Tags        []string   `json:"tags" db:"tags"`
	FaceCount   int        `json:"face_count" db:"face_count"`
	PhotoCount  int        `json:"photo_count" db:"photo_count"`
	ClaimedBy   *string    `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// HasTag reports whether the cluster already carries the exact tag.
func (c *PersonCluster) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
