package storage

import (
	"context"
	"errors"

	"github.com/your-org/snapmatch/internal/models"
)

// ErrNotFound is returned when a photo, face, cluster or feedback record does
// not exist.
var ErrNotFound = errors.New("record not found")

// defaultPageSize applies when a paginated query is called with limit <= 0.
const defaultPageSize = 50

// EventEmbedding is one face embedding in the candidate pool of an event,
// together with its current cluster assignment (nil when unassigned).
type EventEmbedding struct {
	FaceID    string
	PhotoID   string
	ClusterID *string
	Embedding []float32
}

// Store is the persistence contract of the clustering and search core.
//
// Cluster updates are last-write-wins on the whole record: callers read, then
// write the full new value. Deleting a cluster orphans the clusterId pointer
// of its member faces; it never deletes the faces themselves.
type Store interface {
	// Photos. DeleteEvent cascades to photos, their detections and the
	// event's clusters.
	CreatePhoto(ctx context.Context, p *models.Photo) error
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	UpdatePhotoStatus(ctx context.Context, id string, status models.ProcessingStatus, errMsg string) error
	ListPhotosByEvent(ctx context.Context, eventID string) ([]models.Photo, error)
	DeleteEvent(ctx context.Context, eventID string) error

	// Face detections.
	CreateFaceDetection(ctx context.Context, f *models.FaceDetection) error
	GetFaceDetection(ctx context.Context, id string) (*models.FaceDetection, error)
	SetFaceCluster(ctx context.Context, faceID string, clusterID *string, confidence float64) error
	ListFacesByPhoto(ctx context.Context, photoID string) ([]models.FaceDetection, error)
	ListFacesByCluster(ctx context.Context, clusterID string) ([]models.FaceDetection, error)
	// DeletePhotoDetections removes every face, clothing and bib detection of
	// one photo; used before reprocessing.
	DeletePhotoDetections(ctx context.Context, photoID string) error
	// GetEventEmbeddings returns every face embedding for every photo in the
	// event, including ones not yet assigned to a cluster.
	GetEventEmbeddings(ctx context.Context, eventID string) ([]EventEmbedding, error)

	// Person clusters.
	CreateCluster(ctx context.Context, c *models.PersonCluster) error
	GetCluster(ctx context.Context, id string) (*models.PersonCluster, error)
	UpdateCluster(ctx context.Context, c *models.PersonCluster) error
	DeleteCluster(ctx context.Context, id string) error
	ListClustersByEvent(ctx context.Context, eventID string) ([]models.PersonCluster, error)
	// GetClusterPhotos derives the distinct photos currently linked to the
	// cluster through its face detections, in a stable order. limit <= 0
	// falls back to defaultPageSize.
	GetClusterPhotos(ctx context.Context, clusterID string, limit, offset int) ([]models.Photo, int, error)

	// Clothing attributes.
	CreateClothing(ctx context.Context, c *models.ClothingAttributes) error
	ListClothingByPhoto(ctx context.Context, photoID string) ([]models.ClothingAttributes, error)
	ListClothingByEvent(ctx context.Context, eventID string) ([]models.ClothingAttributes, error)

	// Bib detections.
	CreateBibDetection(ctx context.Context, b *models.BibDetection) error
	ListBibsByPhoto(ctx context.Context, photoID string) ([]models.BibDetection, error)
	ListBibsByEvent(ctx context.Context, eventID string) ([]models.BibDetection, error)

	// Match feedback (append-only).
	CreateFeedback(ctx context.Context, f *models.MatchFeedback) error
	ListFeedbackByCluster(ctx context.Context, clusterID string) ([]models.MatchFeedback, error)
}
