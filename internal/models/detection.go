package models

import "time"

// BoundingBox is x1, y1, x2, y2 in pixel coordinates.
type BoundingBox [4]float32

// FaceDetection is one detected face within a photo. ClusterID and
// ClusterConfidence are set by assignment and may be reset by re-clustering;
// everything else is immutable after creation.
type FaceDetection struct {
	ID                string      `json:"id" db:"id"`
	PhotoID           string      `json:"photo_id" db:"photo_id"`
	BBox              BoundingBox `json:"bbox" db:"bbox"`
	Confidence        float32     `json:"confidence" db:"confidence"`
	Embedding         []float32   `json:"-" db:"embedding"`
	ClusterID         *string     `json:"cluster_id,omitempty" db:"cluster_id"`
	ClusterConfidence float64     `json:"cluster_confidence,omitempty" db:"cluster_confidence"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

// ClothingItem is one garment observed on a person.
type ClothingItem struct {
	Type           string  `json:"type"`
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color,omitempty"`
	Confidence     float32 `json:"confidence"`
}

// ClothingAttributes describes the clothing of one person-in-photo.
// FaceDetectionID links to the co-located face and is nil when the person was
// detected without a usable face.
type ClothingAttributes struct {
	ID              string         `json:"id" db:"id"`
	PhotoID         string         `json:"photo_id" db:"photo_id"`
	FaceDetectionID *string        `json:"face_detection_id,omitempty" db:"face_detection_id"`
	DominantColors  []string       `json:"dominant_colors" db:"dominant_colors"`
	Items           []ClothingItem `json:"items" db:"items"`
	Descriptors     []string       `json:"descriptors" db:"descriptors"`
	Confidence      float32        `json:"confidence" db:"confidence"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// BibDetection is an OCR'd bib or jersey number. BibNumber stays a string to
// preserve leading zeros and alphanumeric bibs.
type BibDetection struct {
	ID              string      `json:"id" db:"id"`
	PhotoID         string      `json:"photo_id" db:"photo_id"`
	FaceDetectionID *string     `json:"face_detection_id,omitempty" db:"face_detection_id"`
	BibNumber       string      `json:"bib_number" db:"bib_number"`
	BBox            BoundingBox `json:"bbox" db:"bbox"`
	Confidence      float32     `json:"confidence" db:"confidence"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}
