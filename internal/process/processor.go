// Package process drives the per-photo pipeline: fetch bytes, call the
// vision provider, persist detections, assign faces to person clusters and
// tag the clusters with observed bibs and clothing.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/your-org/snapmatch/internal/cluster"
	"github.com/your-org/snapmatch/internal/config"
	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/observability"
	"github.com/your-org/snapmatch/internal/storage"
	"github.com/your-org/snapmatch/internal/vision"
)

// ObjectStore fetches original photo bytes by object key.
type ObjectStore interface {
	GetPhoto(ctx context.Context, key string) ([]byte, error)
}

type Processor struct {
	store    storage.Store
	objects  ObjectStore
	provider vision.Provider
	engine   *cluster.Engine

	minFaceConfidence float64
	minBibConfidence  float64
}

func NewProcessor(store storage.Store, objects ObjectStore, provider vision.Provider, engine *cluster.Engine, cfg config.MatchingConfig) *Processor {
	return &Processor{
		store:             store,
		objects:           objects,
		provider:          provider,
		engine:            engine,
		minFaceConfidence: cfg.MinFaceConfidence,
		minBibConfidence:  cfg.MinBibConfidence,
	}
}

// ProcessPhoto runs the full pipeline for one photo. The photo moves
// strictly pending -> processing -> processed|failed; any provider or
// persistence error lands it on failed with the error message, never on a
// partially processed state. Reprocessing a failed or processed photo first
// clears its previous detections.
func (p *Processor) ProcessPhoto(ctx context.Context, photoID string) error {
	photo, err := p.store.GetPhoto(ctx, photoID)
	if err != nil {
		return fmt.Errorf("load photo %s: %w", photoID, err)
	}

	if err := p.store.UpdatePhotoStatus(ctx, photoID, models.PhotoProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	image, err := p.objects.GetPhoto(ctx, photo.ObjectKey)
	if err != nil {
		return p.fail(ctx, photoID, fmt.Errorf("fetch image: %w", err))
	}

	analysis, err := p.provider.AnalyzePhoto(ctx, image)
	if err != nil {
		var pe *vision.ProviderError
		if errors.As(err, &pe) && pe.Retryable {
			slog.Warn("vision call failed, photo can be resubmitted", "photo_id", photoID, "error", pe.Message)
		}
		return p.fail(ctx, photoID, err)
	}

	if err := p.persistAnalysis(ctx, photo, analysis); err != nil {
		return p.fail(ctx, photoID, err)
	}

	if err := p.store.UpdatePhotoStatus(ctx, photoID, models.PhotoProcessed, ""); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	observability.PhotosProcessed.WithLabelValues("processed").Inc()
	return nil
}

// SubmitFeedback records a user's judgment that a photo does or does not
// show the cluster's person. Feedback is append-only; repeated submissions
// for the same pair all count.
func (p *Processor) SubmitFeedback(ctx context.Context, clusterID, photoID string, isMatch bool, userID *string) (*models.MatchFeedback, error) {
	if _, err := p.store.GetCluster(ctx, clusterID); err != nil {
		return nil, fmt.Errorf("load cluster %s: %w", clusterID, err)
	}
	if _, err := p.store.GetPhoto(ctx, photoID); err != nil {
		return nil, fmt.Errorf("load photo %s: %w", photoID, err)
	}

	fb := &models.MatchFeedback{
		ClusterID: clusterID,
		PhotoID:   photoID,
		IsMatch:   isMatch,
		UserID:    userID,
	}
	if err := p.store.CreateFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return fb, nil
}

func (p *Processor) fail(ctx context.Context, photoID string, cause error) error {
	if err := p.store.UpdatePhotoStatus(ctx, photoID, models.PhotoFailed, cause.Error()); err != nil {
		slog.Error("mark photo failed", "photo_id", photoID, "error", err)
	}
	observability.PhotosProcessed.WithLabelValues("failed").Inc()
	return fmt.Errorf("process photo %s: %w", photoID, cause)
}

func (p *Processor) persistAnalysis(ctx context.Context, photo *models.Photo, analysis *vision.Analysis) error {
	// Reprocessing appends nothing: drop the previous detection set first.
	if err := p.store.DeletePhotoDetections(ctx, photo.ID); err != nil {
		return fmt.Errorf("clear previous detections: %w", err)
	}

	// Faces above the detection floor, assigned as they are persisted.
	// faceIDs maps provider face index -> stored detection id.
	faceIDs := make(map[int]string, len(analysis.Faces))
	clusterByFace := make(map[string]string)
	for i, face := range analysis.Faces {
		if float64(face.Confidence) < p.minFaceConfidence {
			continue
		}
		fd := &models.FaceDetection{
			PhotoID:    photo.ID,
			BBox:       face.BBox,
			Confidence: face.Confidence,
			Embedding:  face.Embedding,
		}
		if err := p.store.CreateFaceDetection(ctx, fd); err != nil {
			return fmt.Errorf("persist face: %w", err)
		}
		faceIDs[i] = fd.ID
		observability.FacesDetected.Inc()

		asg, err := p.engine.Assign(ctx, photo.EventID, fd.ID, photo.ID, face.Embedding)
		if err != nil {
			return fmt.Errorf("assign face: %w", err)
		}
		clusterByFace[fd.ID] = asg.ClusterID
	}

	// Clothing, linked to the co-located face when one survived the floor.
	type taggable struct {
		clusterID string
		tags      []string
	}
	var pending []taggable

	personFace := make(map[int]*string, len(analysis.Persons))
	for i, person := range analysis.Persons {
		var faceID *string
		if person.FaceIndex != nil {
			if id, ok := faceIDs[*person.FaceIndex]; ok {
				faceID = &id
			}
		}
		personFace[i] = faceID

		rec := &models.ClothingAttributes{
			PhotoID:         photo.ID,
			FaceDetectionID: faceID,
			DominantColors:  person.DominantColors,
			Items:           person.ClothingItems,
			Descriptors:     person.Descriptors,
			Confidence:      person.Confidence,
		}
		if err := p.store.CreateClothing(ctx, rec); err != nil {
			return fmt.Errorf("persist clothing: %w", err)
		}
		if faceID != nil {
			if clusterID, ok := clusterByFace[*faceID]; ok {
				pending = append(pending, taggable{clusterID: clusterID, tags: person.Descriptors})
			}
		}
	}

	// Bib and jersey numbers above the OCR floor.
	for _, text := range analysis.TextDetections {
		if !text.Type.IsBib() || float64(text.Confidence) < p.minBibConfidence {
			continue
		}
		var faceID *string
		if text.PersonIndex != nil {
			if id, ok := personFace[*text.PersonIndex]; ok {
				faceID = id
			}
		}
		bib := &models.BibDetection{
			PhotoID:         photo.ID,
			FaceDetectionID: faceID,
			BibNumber:       text.Text,
			BBox:            text.BBox,
			Confidence:      text.Confidence,
		}
		if err := p.store.CreateBibDetection(ctx, bib); err != nil {
			return fmt.Errorf("persist bib: %w", err)
		}
		observability.BibsDetected.Inc()
		if faceID != nil {
			if clusterID, ok := clusterByFace[*faceID]; ok {
				pending = append(pending, taggable{
					clusterID: clusterID,
					tags:      []string{"bib:" + strings.TrimSpace(text.Text)},
				})
			}
		}
	}

	// Detections are all persisted; now fold descriptors and bib numbers
	// into the cluster tag sets.
	for _, t := range pending {
		if err := p.engine.AddClusterTags(ctx, t.clusterID, t.tags); err != nil {
			return fmt.Errorf("tag cluster %s: %w", t.clusterID, err)
		}
	}
	return nil
}
