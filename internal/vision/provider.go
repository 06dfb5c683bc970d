// Package vision defines the contract of the external vision provider that
// turns raw image bytes into face embeddings, clothing descriptors and OCR'd
// bib text. The provider's ML internals are opaque; this package only ships
// the types and a remote HTTP client.
package vision

import (
	"context"
	"fmt"

	"github.com/your-org/snapmatch/internal/models"
)

type TextType string

const (
	TextBibNumber    TextType = "bib-number"
	TextJerseyNumber TextType = "jersey-number"
	TextGeneric      TextType = "generic-text"
)

// IsBib reports whether the detected text is a wearable number worth
// indexing for bib search.
func (t TextType) IsBib() bool {
	return t == TextBibNumber || t == TextJerseyNumber
}

// Face is one detected face. Embedding dimensionality is fixed per
// deployment and must be consistent for all comparisons within an event.
type Face struct {
	Embedding  []float32          `json:"embedding"`
	BBox       models.BoundingBox `json:"bounding_box"`
	Confidence float32            `json:"confidence"`
}

// Person is one detected person with clothing attributes. FaceIndex points
// into Analysis.Faces and is nil when the person has no usable face.
type Person struct {
	FaceIndex      *int                  `json:"face_index,omitempty"`
	DominantColors []string              `json:"dominant_colors"`
	ClothingItems  []models.ClothingItem `json:"clothing_items"`
	Descriptors    []string              `json:"descriptors"`
	Confidence     float32               `json:"confidence"`
}

// TextDetection is one piece of recognized text. PersonIndex points into
// Analysis.Persons when the text sits on a detected person.
type TextDetection struct {
	Text        string             `json:"text"`
	Type        TextType           `json:"type"`
	BBox        models.BoundingBox `json:"bounding_box"`
	Confidence  float32            `json:"confidence"`
	PersonIndex *int               `json:"person_index,omitempty"`
}

// Analysis is the full provider output for one photo.
type Analysis struct {
	Faces          []Face          `json:"faces"`
	Persons        []Person        `json:"persons"`
	TextDetections []TextDetection `json:"text_detections"`
}

// Provider analyzes one photo. Implementations must be safe for concurrent
// use.
type Provider interface {
	AnalyzePhoto(ctx context.Context, image []byte) (*Analysis, error)
}

// ProviderError is a failed or timed-out vision call. Retryable tells the
// caller whether resubmitting the same photo may succeed.
type ProviderError struct {
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("vision provider: %s", e.Message)
}
