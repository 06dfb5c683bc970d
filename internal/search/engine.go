// Package search answers the three identity queries of an event: who matches
// this face, who wears this bib number, who wears clothing like this. All
// paths are read-only.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/your-org/snapmatch/internal/embedding"
	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/observability"
	"github.com/your-org/snapmatch/internal/storage"
)

// DefaultFaceThreshold is the similarity floor for face search. It is looser
// than the clustering threshold on purpose: search favors recall.
const DefaultFaceThreshold = 0.6

// previewPhotoLimit caps the matching-photo preview per result.
const previewPhotoLimit = 5

// Clothing criteria contribute additively to the match score.
const (
	primaryColorWeight   = 0.4
	secondaryColorWeight = 0.2
	descriptorWeight     = 0.4
)

// ClusterSearchResult is one ranked hit.
type ClusterSearchResult struct {
	Cluster         models.PersonCluster `json:"cluster"`
	Similarity      float64              `json:"similarity"`
	MatchingPhotos  []models.Photo       `json:"matching_photos"`
	TotalPhotoCount int                  `json:"total_photo_count"`
}

// Engine answers search queries against one Store. faceThreshold is the
// deployment-configured default for face search; callers may still override
// it per query.
type Engine struct {
	store         storage.Store
	faceThreshold float64
}

func NewEngine(store storage.Store, faceThreshold float64) *Engine {
	if faceThreshold <= 0 {
		faceThreshold = DefaultFaceThreshold
	}
	return &Engine{store: store, faceThreshold: faceThreshold}
}

// hit accumulates per-cluster evidence while scanning an event.
type hit struct {
	sum      float64
	count    int
	best     float64
	photoIDs []string
	seen     map[string]bool
}

func (h *hit) addPhoto(photoID string) {
	if h.seen == nil {
		h.seen = make(map[string]bool)
	}
	if !h.seen[photoID] {
		h.seen[photoID] = true
		h.photoIDs = append(h.photoIDs, photoID)
	}
}

// ByFace scores every cluster of the event by the mean similarity of its
// member faces that clear the threshold against the reference embedding.
// Clusters with no qualifying face are absent from the results. A threshold
// of 0 or below means the engine's configured default.
func (e *Engine) ByFace(ctx context.Context, eventID string, ref []float32, threshold float64) ([]ClusterSearchResult, error) {
	if threshold <= 0 {
		threshold = e.faceThreshold
	}
	defer observe("face", time.Now())

	embs, err := e.store.GetEventEmbeddings(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event embeddings: %w", err)
	}

	hits := make(map[string]*hit)
	var order []string
	for _, em := range embs {
		if em.ClusterID == nil {
			continue
		}
		sim, err := embedding.CosineSimilarity(ref, em.Embedding)
		if err != nil || sim < threshold {
			continue
		}
		h, ok := hits[*em.ClusterID]
		if !ok {
			h = &hit{}
			hits[*em.ClusterID] = h
			order = append(order, *em.ClusterID)
		}
		h.sum += sim
		h.count++
		h.addPhoto(em.PhotoID)
	}

	for _, h := range hits {
		h.best = h.sum / float64(h.count)
	}
	return e.collect(ctx, hits, order)
}

// ByBib finds clusters whose photos carry the given bib number. Matching is
// exact equality after trimming and case-folding; OCR confidence does not
// grade the score, an exact match is maximal.
//
// A bib only links to a photo, so it is attributed through every clustered
// face in that photo. A photo with several people fans the bib out to all of
// their clusters.
func (e *Engine) ByBib(ctx context.Context, eventID, bib string) ([]ClusterSearchResult, error) {
	defer observe("bib", time.Now())

	want := normalizeBib(bib)
	if want == "" {
		return nil, nil
	}

	bibs, err := e.store.ListBibsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event bibs: %w", err)
	}

	hits := make(map[string]*hit)
	var order []string
	for _, b := range bibs {
		if normalizeBib(b.BibNumber) != want {
			continue
		}
		faces, err := e.store.ListFacesByPhoto(ctx, b.PhotoID)
		if err != nil {
			return nil, fmt.Errorf("faces for photo %s: %w", b.PhotoID, err)
		}
		for _, f := range faces {
			if f.ClusterID == nil {
				continue
			}
			h, ok := hits[*f.ClusterID]
			if !ok {
				h = &hit{best: 1.0}
				hits[*f.ClusterID] = h
				order = append(order, *f.ClusterID)
			}
			h.addPhoto(b.PhotoID)
		}
	}
	return e.collect(ctx, hits, order)
}

// ClothingFilter selects clothing records. Criteria are conjunctive: every
// specified field must match for a record to count at all.
type ClothingFilter struct {
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	ClothingType   string `json:"clothing_type,omitempty"`
	Descriptor     string `json:"descriptor,omitempty"`
}

// Empty reports whether no criterion is set.
func (f ClothingFilter) Empty() bool {
	return f.PrimaryColor == "" && f.SecondaryColor == "" && f.ClothingType == "" && f.Descriptor == ""
}

// ByClothing scores clusters by their best-matching clothing record.
// Records without a clustered linked face never surface.
func (e *Engine) ByClothing(ctx context.Context, eventID string, filter ClothingFilter) ([]ClusterSearchResult, error) {
	defer observe("clothing", time.Now())

	records, err := e.store.ListClothingByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event clothing: %w", err)
	}

	hits := make(map[string]*hit)
	var order []string
	for _, rec := range records {
		score, ok := scoreClothing(rec, filter)
		if !ok || rec.FaceDetectionID == nil {
			continue
		}
		face, err := e.store.GetFaceDetection(ctx, *rec.FaceDetectionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("linked face %s: %w", *rec.FaceDetectionID, err)
		}
		if face.ClusterID == nil {
			continue
		}
		h, okHit := hits[*face.ClusterID]
		if !okHit {
			h = &hit{}
			hits[*face.ClusterID] = h
			order = append(order, *face.ClusterID)
		}
		if score > h.best {
			h.best = score
		}
		h.addPhoto(rec.PhotoID)
	}
	return e.collect(ctx, hits, order)
}

// collect resolves accumulated hits into ranked results, dropping hits whose
// cluster has meanwhile been deleted.
func (e *Engine) collect(ctx context.Context, hits map[string]*hit, order []string) ([]ClusterSearchResult, error) {
	results := make([]ClusterSearchResult, 0, len(order))
	for _, clusterID := range order {
		cl, err := e.store.GetCluster(ctx, clusterID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("cluster %s: %w", clusterID, err)
		}

		h := hits[clusterID]
		preview := h.photoIDs
		if len(preview) > previewPhotoLimit {
			preview = preview[:previewPhotoLimit]
		}
		photos := make([]models.Photo, 0, len(preview))
		for _, photoID := range preview {
			p, err := e.store.GetPhoto(ctx, photoID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("photo %s: %w", photoID, err)
			}
			photos = append(photos, *p)
		}

		results = append(results, ClusterSearchResult{
			Cluster:         *cl,
			Similarity:      h.best,
			MatchingPhotos:  photos,
			TotalPhotoCount: len(h.photoIDs),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return results, nil
}

func normalizeBib(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// scoreClothing checks the conjunctive filter and returns the additive score
// of the criteria that passed.
func scoreClothing(rec models.ClothingAttributes, f ClothingFilter) (float64, bool) {
	if f.Empty() {
		return 0, false
	}

	score := 0.0
	if f.PrimaryColor != "" {
		if !matchesPrimaryColor(rec, f.PrimaryColor) {
			return 0, false
		}
		score += primaryColorWeight
	}
	if f.SecondaryColor != "" {
		if !matchesSecondaryColor(rec, f.SecondaryColor) {
			return 0, false
		}
		score += secondaryColorWeight
	}
	if f.ClothingType != "" {
		if !matchesType(rec, f.ClothingType) {
			return 0, false
		}
	}
	if f.Descriptor != "" {
		if !matchesDescriptor(rec, f.Descriptor) {
			return 0, false
		}
		score += descriptorWeight
	}
	return score, true
}

func matchesPrimaryColor(rec models.ClothingAttributes, color string) bool {
	for _, c := range rec.DominantColors {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	for _, item := range rec.Items {
		if strings.EqualFold(item.PrimaryColor, color) {
			return true
		}
	}
	return false
}

func matchesSecondaryColor(rec models.ClothingAttributes, color string) bool {
	for _, item := range rec.Items {
		if strings.EqualFold(item.SecondaryColor, color) {
			return true
		}
	}
	return false
}

func matchesType(rec models.ClothingAttributes, typ string) bool {
	for _, item := range rec.Items {
		if strings.EqualFold(item.Type, typ) {
			return true
		}
	}
	return false
}

func matchesDescriptor(rec models.ClothingAttributes, desc string) bool {
	needle := strings.ToLower(desc)
	for _, d := range rec.Descriptors {
		if strings.Contains(strings.ToLower(d), needle) {
			return true
		}
	}
	return false
}

func observe(path string, start time.Time) {
	observability.SearchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}
