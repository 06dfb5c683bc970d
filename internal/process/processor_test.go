package process

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/snapmatch/internal/cluster"
	"github.com/your-org/snapmatch/internal/config"
	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/search"
	"github.com/your-org/snapmatch/internal/storage"
	"github.com/your-org/snapmatch/internal/vision"
)

type fakeObjects struct {
	data map[string][]byte
	err  error
}

func (f *fakeObjects) GetPhoto(ctx context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[key], nil
}

type fakeProvider struct {
	analysis *vision.Analysis
	err      error
}

func (f *fakeProvider) AnalyzePhoto(ctx context.Context, image []byte) (*vision.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func unitVec(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func intPtr(i int) *int { return &i }

func testMatching() config.MatchingConfig {
	return config.MatchingConfig{
		ClusterThreshold:    0.7,
		FaceSearchThreshold: 0.6,
		MinFaceConfidence:   0.8,
		MinBibConfidence:    0.7,
	}
}

func setup(t *testing.T, provider vision.Provider) (*Processor, *storage.MemoryStore, *models.Photo) {
	t.Helper()
	s := storage.NewMemoryStore()
	p := &models.Photo{EventID: "ev1", ObjectKey: "photos/ev1/a.jpg"}
	require.NoError(t, s.CreatePhoto(context.Background(), p))

	objects := &fakeObjects{data: map[string][]byte{p.ObjectKey: []byte("jpeg-bytes")}}
	engine := cluster.NewEngine(s, 0.7)
	return NewProcessor(s, objects, provider, engine, testMatching()), s, p
}

func TestProcessPhotoFullPipeline(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{analysis: &vision.Analysis{
		Faces: []vision.Face{
			{Embedding: unitVec(1), Confidence: 0.95},
			{Embedding: unitVec(0.2), Confidence: 0.5}, // below the 0.8 floor
		},
		Persons: []vision.Person{
			{
				FaceIndex:      intPtr(0),
				DominantColors: []string{"red"},
				Descriptors:    []string{"red jacket"},
				Confidence:     0.9,
			},
		},
		TextDetections: []vision.TextDetection{
			{Text: " 1427 ", Type: vision.TextBibNumber, Confidence: 0.92, PersonIndex: intPtr(0)},
			{Text: "finish line", Type: vision.TextGeneric, Confidence: 0.99},
			{Text: "33", Type: vision.TextBibNumber, Confidence: 0.4}, // below the 0.7 floor
		},
	}}

	p, s, photo := setup(t, provider)
	require.NoError(t, p.ProcessPhoto(ctx, photo.ID))

	got, err := s.GetPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoProcessed, got.Status)
	assert.Empty(t, got.ProcessingError)

	// Only the confident face survives, and it is clustered.
	faces, err := s.ListFacesByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, faces, 1)
	require.NotNil(t, faces[0].ClusterID)

	// Only bib-type text above the floor is persisted.
	bibs, err := s.ListBibsByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, bibs, 1)
	assert.Equal(t, " 1427 ", bibs[0].BibNumber)
	require.NotNil(t, bibs[0].FaceDetectionID)
	assert.Equal(t, faces[0].ID, *bibs[0].FaceDetectionID)

	clothing, err := s.ListClothingByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, clothing, 1)

	// Descriptors and the normalized bib number land on the cluster tags.
	cl, err := s.GetCluster(ctx, *faces[0].ClusterID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"red jacket", "bib:1427"}, cl.Tags)
}

func TestProcessPhotoProviderFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{err: &vision.ProviderError{Message: "model overloaded", Retryable: true}}

	p, s, photo := setup(t, provider)
	err := p.ProcessPhoto(ctx, photo.ID)
	require.Error(t, err)

	got, err := s.GetPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoFailed, got.Status)
	assert.Contains(t, got.ProcessingError, "model overloaded")

	faces, err := s.ListFacesByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestProcessPhotoFetchFailure(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	photo := &models.Photo{EventID: "ev1", ObjectKey: "photos/ev1/a.jpg"}
	require.NoError(t, s.CreatePhoto(ctx, photo))

	objects := &fakeObjects{err: errors.New("connection refused")}
	engine := cluster.NewEngine(s, 0.7)
	p := NewProcessor(s, objects, &fakeProvider{analysis: &vision.Analysis{}}, engine, testMatching())

	require.Error(t, p.ProcessPhoto(ctx, photo.ID))
	got, err := s.GetPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoFailed, got.Status)
	assert.Contains(t, got.ProcessingError, "connection refused")
}

func TestProcessPhotoMissingPhoto(t *testing.T) {
	s := storage.NewMemoryStore()
	engine := cluster.NewEngine(s, 0.7)
	p := NewProcessor(s, &fakeObjects{}, &fakeProvider{}, engine, testMatching())

	err := p.ProcessPhoto(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessPhotoNoDetections(t *testing.T) {
	ctx := context.Background()
	p, s, photo := setup(t, &fakeProvider{analysis: &vision.Analysis{}})

	require.NoError(t, p.ProcessPhoto(ctx, photo.ID))
	got, err := s.GetPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoProcessed, got.Status)
}

func TestReprocessReplacesDetections(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{analysis: &vision.Analysis{
		Faces: []vision.Face{{Embedding: unitVec(1), Confidence: 0.95}},
	}}
	p, s, photo := setup(t, provider)

	require.NoError(t, p.ProcessPhoto(ctx, photo.ID))
	first, err := s.ListFacesByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second run replaces rather than appends.
	require.NoError(t, p.ProcessPhoto(ctx, photo.ID))
	second, err := s.ListFacesByPhoto(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestSubmitFeedback(t *testing.T) {
	ctx := context.Background()
	p, s, photo := setup(t, &fakeProvider{analysis: &vision.Analysis{}})

	c := &models.PersonCluster{EventID: "ev1", Tags: []string{}}
	require.NoError(t, s.CreateCluster(ctx, c))

	user := "user-1"
	fb, err := p.SubmitFeedback(ctx, c.ID, photo.ID, true, &user)
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)

	// Duplicates are allowed and all recorded.
	_, err = p.SubmitFeedback(ctx, c.ID, photo.ID, true, &user)
	require.NoError(t, err)

	all, err := s.ListFeedbackByCluster(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = p.SubmitFeedback(ctx, "missing", photo.ID, false, nil)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// Two photos of one runner go through the full pipeline, every search path
// finds the merged cluster, and a stricter re-clustering pass splits it.
func TestEventProcessingSearchAndRecluster(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	engine := cluster.NewEngine(s, 0.7)
	objects := &fakeObjects{data: map[string][]byte{}}

	analyses := []*vision.Analysis{
		{
			Faces: []vision.Face{{Embedding: unitVec(1), Confidence: 0.95}},
			Persons: []vision.Person{
				{
					FaceIndex:      intPtr(0),
					DominantColors: []string{"red"},
					Descriptors:    []string{"red jacket"},
					Confidence:     0.9,
				},
			},
			TextDetections: []vision.TextDetection{
				{Text: " 1427 ", Type: vision.TextBibNumber, Confidence: 0.92, PersonIndex: intPtr(0)},
			},
		},
		{Faces: []vision.Face{{Embedding: unitVec(0.75), Confidence: 0.95}}},
	}

	for i, a := range analyses {
		photo := &models.Photo{EventID: "ev1", ObjectKey: "photos/ev1/" + string(rune('a'+i)) + ".jpg"}
		require.NoError(t, s.CreatePhoto(ctx, photo))
		objects.data[photo.ObjectKey] = []byte("jpeg")
		p := NewProcessor(s, objects, &fakeProvider{analysis: a}, engine, testMatching())
		require.NoError(t, p.ProcessPhoto(ctx, photo.ID))
	}

	// Similarity 0.75 clears the 0.7 threshold, so both faces merge.
	clusters, err := s.ListClustersByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].FaceCount)
	assert.Equal(t, 2, clusters[0].PhotoCount)
	assert.ElementsMatch(t, []string{"red jacket", "bib:1427"}, clusters[0].Tags)

	se := search.NewEngine(s, 0)

	// Face search averages the qualifying member similarities.
	faceHits, err := se.ByFace(ctx, "ev1", unitVec(1), 0)
	require.NoError(t, err)
	require.Len(t, faceHits, 1)
	assert.InDelta(t, 0.875, faceHits[0].Similarity, 1e-9)
	assert.Equal(t, 2, faceHits[0].TotalPhotoCount)

	// Bib matching is exact: a prefix misses, whitespace is forgiven.
	empty, err := se.ByBib(ctx, "ev1", "142")
	require.NoError(t, err)
	assert.Empty(t, empty)

	bibHits, err := se.ByBib(ctx, "ev1", " 1427 ")
	require.NoError(t, err)
	require.Len(t, bibHits, 1)
	assert.Equal(t, clusters[0].ID, bibHits[0].Cluster.ID)
	assert.Equal(t, 1.0, bibHits[0].Similarity)

	clothingHits, err := se.ByClothing(ctx, "ev1", search.ClothingFilter{
		PrimaryColor: "red",
		Descriptor:   "jacket",
	})
	require.NoError(t, err)
	require.Len(t, clothingHits, 1)
	assert.InDelta(t, 0.8, clothingHits[0].Similarity, 1e-9)

	empty, err = se.ByClothing(ctx, "ev1", search.ClothingFilter{PrimaryColor: "blue"})
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Re-clustering at 0.95 separates the two faces again.
	n, err := engine.Recluster(ctx, "ev1", 0.95)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clusters, err = s.ListClustersByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	for _, cl := range clusters {
		assert.Equal(t, 1, cl.FaceCount)
		assert.Equal(t, 1, cl.PhotoCount)
	}
}

func TestProcessPhotoSamePersonAcrossPhotos(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	engine := cluster.NewEngine(s, 0.7)
	objects := &fakeObjects{data: map[string][]byte{}}

	analyses := []*vision.Analysis{
		{Faces: []vision.Face{{Embedding: unitVec(1), Confidence: 0.95}}},
		{Faces: []vision.Face{{Embedding: unitVec(0.9), Confidence: 0.95}}},
	}

	var photoIDs []string
	for i, a := range analyses {
		photo := &models.Photo{EventID: "ev1", ObjectKey: "photos/ev1/" + string(rune('a'+i)) + ".jpg"}
		require.NoError(t, s.CreatePhoto(ctx, photo))
		objects.data[photo.ObjectKey] = []byte("jpeg")
		p := NewProcessor(s, objects, &fakeProvider{analysis: a}, engine, testMatching())
		require.NoError(t, p.ProcessPhoto(ctx, photo.ID))
		photoIDs = append(photoIDs, photo.ID)
	}

	clusters, err := s.ListClustersByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].FaceCount)
	assert.Equal(t, 2, clusters[0].PhotoCount)

	photos, total, err := s.GetClusterPhotos(ctx, clusters[0].ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, photos, 2)
	assert.ElementsMatch(t, photoIDs, []string{photos[0].ID, photos[1].ID})
}
