package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/snapmatch/internal/models"
)

func newTestPhoto(t *testing.T, s *MemoryStore, eventID string) *models.Photo {
	t.Helper()
	p := &models.Photo{EventID: eventID, ObjectKey: "photos/" + eventID + "/x.jpg"}
	require.NoError(t, s.CreatePhoto(context.Background(), p))
	return p
}

func newTestFace(t *testing.T, s *MemoryStore, photoID string, emb []float32) *models.FaceDetection {
	t.Helper()
	f := &models.FaceDetection{PhotoID: photoID, Confidence: 0.95, Embedding: emb}
	require.NoError(t, s.CreateFaceDetection(context.Background(), f))
	return f
}

func TestPhotoLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestPhoto(t, s, "ev1")
	require.NotEmpty(t, p.ID)
	assert.Equal(t, models.PhotoPending, p.Status)

	got, err := s.GetPhoto(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.UpdatePhotoStatus(ctx, p.ID, models.PhotoFailed, "provider timeout"))
	got, err = s.GetPhoto(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoFailed, got.Status)
	assert.Equal(t, "provider timeout", got.ProcessingError)

	_, err = s.GetPhoto(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	photos, err := s.ListPhotosByEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestCreateFaceRequiresPhoto(t *testing.T) {
	s := NewMemoryStore()
	f := &models.FaceDetection{PhotoID: "missing"}
	require.ErrorIs(t, s.CreateFaceDetection(context.Background(), f), ErrNotFound)
}

func TestSetFaceClusterMovesIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestPhoto(t, s, "ev1")
	f := newTestFace(t, s, p.ID, []float32{1, 0})

	c1 := &models.PersonCluster{EventID: "ev1", RepFaceID: f.ID, RepPhotoID: p.ID}
	c2 := &models.PersonCluster{EventID: "ev1", RepFaceID: f.ID, RepPhotoID: p.ID}
	require.NoError(t, s.CreateCluster(ctx, c1))
	require.NoError(t, s.CreateCluster(ctx, c2))

	require.NoError(t, s.SetFaceCluster(ctx, f.ID, &c1.ID, 0.9))
	faces, err := s.ListFacesByCluster(ctx, c1.ID)
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, 0.9, faces[0].ClusterConfidence)

	require.NoError(t, s.SetFaceCluster(ctx, f.ID, &c2.ID, 0.8))
	faces, err = s.ListFacesByCluster(ctx, c1.ID)
	require.NoError(t, err)
	assert.Empty(t, faces)
	faces, err = s.ListFacesByCluster(ctx, c2.ID)
	require.NoError(t, err)
	assert.Len(t, faces, 1)

	// Unassign entirely.
	require.NoError(t, s.SetFaceCluster(ctx, f.ID, nil, 0))
	got, err := s.GetFaceDetection(ctx, f.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ClusterID)
}

func TestDeleteClusterOrphansFaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestPhoto(t, s, "ev1")
	f := newTestFace(t, s, p.ID, []float32{1, 0})

	c := &models.PersonCluster{EventID: "ev1", RepFaceID: f.ID, RepPhotoID: p.ID}
	require.NoError(t, s.CreateCluster(ctx, c))
	require.NoError(t, s.SetFaceCluster(ctx, f.ID, &c.ID, 1.0))

	require.NoError(t, s.DeleteCluster(ctx, c.ID))

	_, err := s.GetCluster(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// The face survives with a dangling pointer; readers treat it as
	// unassigned because the cluster no longer resolves.
	got, err := s.GetFaceDetection(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClusterID)
	assert.Equal(t, c.ID, *got.ClusterID)

	faces, err := s.ListFacesByCluster(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestGetClusterPhotosPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c := &models.PersonCluster{EventID: "ev1", RepFaceID: "f", RepPhotoID: "p"}
	require.NoError(t, s.CreateCluster(ctx, c))

	var photoIDs []string
	for i := 0; i < 7; i++ {
		p := newTestPhoto(t, s, "ev1")
		f := newTestFace(t, s, p.ID, []float32{1, 0})
		require.NoError(t, s.SetFaceCluster(ctx, f.ID, &c.ID, 1.0))
		photoIDs = append(photoIDs, p.ID)
	}
	// A second face in an already-linked photo must not duplicate it.
	extra := newTestFace(t, s, photoIDs[0], []float32{0, 1})
	require.NoError(t, s.SetFaceCluster(ctx, extra.ID, &c.ID, 1.0))

	page, total, err := s.GetClusterPhotos(ctx, c.ID, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, page, 5)

	page, total, err = s.GetClusterPhotos(ctx, c.ID, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, page, 2)

	page, _, err = s.GetClusterPhotos(ctx, c.ID, 5, 50)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestGetClusterPhotosDefaultLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c := &models.PersonCluster{EventID: "ev1", RepFaceID: "f", RepPhotoID: "p"}
	require.NoError(t, s.CreateCluster(ctx, c))

	for i := 0; i < defaultPageSize+5; i++ {
		p := newTestPhoto(t, s, "ev1")
		f := newTestFace(t, s, p.ID, []float32{1, 0})
		require.NoError(t, s.SetFaceCluster(ctx, f.ID, &c.ID, 1.0))
	}

	// limit <= 0 means the default page size, not everything.
	page, total, err := s.GetClusterPhotos(ctx, c.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize+5, total)
	assert.Len(t, page, defaultPageSize)

	page, _, err = s.GetClusterPhotos(ctx, c.ID, -1, defaultPageSize)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestDeletePhotoDetections(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestPhoto(t, s, "ev1")
	f := newTestFace(t, s, p.ID, []float32{1, 0})
	require.NoError(t, s.CreateClothing(ctx, &models.ClothingAttributes{PhotoID: p.ID, FaceDetectionID: &f.ID}))
	require.NoError(t, s.CreateBibDetection(ctx, &models.BibDetection{PhotoID: p.ID, BibNumber: "1427"}))

	require.NoError(t, s.DeletePhotoDetections(ctx, p.ID))

	faces, err := s.ListFacesByPhoto(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, faces)
	clothing, err := s.ListClothingByPhoto(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, clothing)
	bibs, err := s.ListBibsByPhoto(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, bibs)

	// The photo record itself stays.
	_, err = s.GetPhoto(ctx, p.ID)
	require.NoError(t, err)
}

func TestDeleteEventCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := newTestPhoto(t, s, "ev1")
	f := newTestFace(t, s, p.ID, []float32{1, 0})
	c := &models.PersonCluster{EventID: "ev1", RepFaceID: f.ID, RepPhotoID: p.ID}
	require.NoError(t, s.CreateCluster(ctx, c))
	require.NoError(t, s.SetFaceCluster(ctx, f.ID, &c.ID, 1.0))
	require.NoError(t, s.CreateFeedback(ctx, &models.MatchFeedback{ClusterID: c.ID, PhotoID: p.ID, IsMatch: true}))

	other := newTestPhoto(t, s, "ev2")

	require.NoError(t, s.DeleteEvent(ctx, "ev1"))

	_, err := s.GetPhoto(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFaceDetection(ctx, f.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetCluster(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
	fb, err := s.ListFeedbackByCluster(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, fb)

	// Other events are untouched.
	_, err = s.GetPhoto(ctx, other.ID)
	require.NoError(t, err)
}

func TestGetEventEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p1 := newTestPhoto(t, s, "ev1")
	p2 := newTestPhoto(t, s, "ev1")
	f1 := newTestFace(t, s, p1.ID, []float32{1, 0})
	newTestFace(t, s, p2.ID, []float32{0, 1})

	c := &models.PersonCluster{EventID: "ev1", RepFaceID: f1.ID, RepPhotoID: p1.ID}
	require.NoError(t, s.CreateCluster(ctx, c))
	require.NoError(t, s.SetFaceCluster(ctx, f1.ID, &c.ID, 1.0))

	embs, err := s.GetEventEmbeddings(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, embs, 2)

	assigned := 0
	for _, em := range embs {
		if em.ClusterID != nil {
			assigned++
			assert.Equal(t, c.ID, *em.ClusterID)
		}
	}
	assert.Equal(t, 1, assigned)
}

func TestUpdateClusterPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c := &models.PersonCluster{EventID: "ev1", RepFaceID: "f", RepPhotoID: "p", Tags: []string{}}
	require.NoError(t, s.CreateCluster(ctx, c))

	c.DisplayName = "Runner 1427"
	c.Tags = []string{"bib:1427"}
	c.FaceCount = 3
	require.NoError(t, s.UpdateCluster(ctx, c))

	got, err := s.GetCluster(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Runner 1427", got.DisplayName)
	assert.Equal(t, []string{"bib:1427"}, got.Tags)
	assert.Equal(t, 3, got.FaceCount)
	assert.Equal(t, "ev1", got.EventID)

	missing := &models.PersonCluster{ID: "nope", EventID: "ev1"}
	require.ErrorIs(t, s.UpdateCluster(ctx, missing), ErrNotFound)
}

func TestClothingAndBibsByEvent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p1 := newTestPhoto(t, s, "ev1")
	p2 := newTestPhoto(t, s, "ev2")

	require.NoError(t, s.CreateClothing(ctx, &models.ClothingAttributes{PhotoID: p1.ID, DominantColors: []string{"red"}}))
	require.NoError(t, s.CreateClothing(ctx, &models.ClothingAttributes{PhotoID: p2.ID, DominantColors: []string{"blue"}}))
	require.NoError(t, s.CreateBibDetection(ctx, &models.BibDetection{PhotoID: p1.ID, BibNumber: "7"}))

	clothing, err := s.ListClothingByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, clothing, 1)
	assert.Equal(t, []string{"red"}, clothing[0].DominantColors)

	bibs, err := s.ListBibsByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, bibs, 1)

	bibs, err = s.ListBibsByEvent(ctx, "ev2")
	require.NoError(t, err)
	assert.Empty(t, bibs)
}
