package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/snapmatch/internal/models"
)

// MemoryStore is the in-memory reference implementation of Store: plain maps
// plus explicit secondary indexes, guarded by a single RWMutex. Secondary
// indexes keep insertion order so pagination stays stable between calls.
type MemoryStore struct {
	mu sync.RWMutex

	photos   map[string]*models.Photo
	faces    map[string]*models.FaceDetection
	clusters map[string]*models.PersonCluster
	clothing map[string]*models.ClothingAttributes
	bibs     map[string]*models.BibDetection
	feedback map[string]*models.MatchFeedback

	photosByEvent     map[string][]string
	facesByPhoto      map[string][]string
	facesByCluster    map[string][]string
	clustersByEvent   map[string][]string
	clothingByPhoto   map[string][]string
	bibsByPhoto       map[string][]string
	feedbackByCluster map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		photos:   make(map[string]*models.Photo),
		faces:    make(map[string]*models.FaceDetection),
		clusters: make(map[string]*models.PersonCluster),
		clothing: make(map[string]*models.ClothingAttributes),
		bibs:     make(map[string]*models.BibDetection),
		feedback: make(map[string]*models.MatchFeedback),

		photosByEvent:     make(map[string][]string),
		facesByPhoto:      make(map[string][]string),
		facesByCluster:    make(map[string][]string),
		clustersByEvent:   make(map[string][]string),
		clothingByPhoto:   make(map[string][]string),
		bibsByPhoto:       make(map[string][]string),
		feedbackByCluster: make(map[string][]string),
	}
}

// --- Photos ---

func (s *MemoryStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fillMeta(&p.ID, &p.CreatedAt)
	if p.Status == "" {
		p.Status = models.PhotoPending
	}
	s.photos[p.ID] = clonePhoto(p)
	s.photosByEvent[p.EventID] = append(s.photosByEvent[p.EventID], p.ID)
	return nil
}

func (s *MemoryStore) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePhoto(p), nil
}

func (s *MemoryStore) UpdatePhotoStatus(ctx context.Context, id string, status models.ProcessingStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.ProcessingError = errMsg
	return nil
}

func (s *MemoryStore) ListPhotosByEvent(ctx context.Context, eventID string) ([]models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.photosByEvent[eventID]
	photos := make([]models.Photo, 0, len(ids))
	for _, id := range ids {
		photos = append(photos, *clonePhoto(s.photos[id]))
	}
	return photos, nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, photoID := range s.photosByEvent[eventID] {
		s.deletePhotoDetectionsLocked(photoID)
		delete(s.photos, photoID)
	}
	delete(s.photosByEvent, eventID)

	for _, clusterID := range s.clustersByEvent[eventID] {
		delete(s.clusters, clusterID)
		delete(s.facesByCluster, clusterID)
		for _, fbID := range s.feedbackByCluster[clusterID] {
			delete(s.feedback, fbID)
		}
		delete(s.feedbackByCluster, clusterID)
	}
	delete(s.clustersByEvent, eventID)
	return nil
}

// --- Face detections ---

func (s *MemoryStore) CreateFaceDetection(ctx context.Context, f *models.FaceDetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[f.PhotoID]; !ok {
		return ErrNotFound
	}
	fillMeta(&f.ID, &f.CreatedAt)
	s.faces[f.ID] = cloneFace(f)
	s.facesByPhoto[f.PhotoID] = append(s.facesByPhoto[f.PhotoID], f.ID)
	if f.ClusterID != nil {
		s.facesByCluster[*f.ClusterID] = append(s.facesByCluster[*f.ClusterID], f.ID)
	}
	return nil
}

func (s *MemoryStore) GetFaceDetection(ctx context.Context, id string) (*models.FaceDetection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.faces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFace(f), nil
}

func (s *MemoryStore) SetFaceCluster(ctx context.Context, faceID string, clusterID *string, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.faces[faceID]
	if !ok {
		return ErrNotFound
	}
	if f.ClusterID != nil {
		s.facesByCluster[*f.ClusterID] = removeID(s.facesByCluster[*f.ClusterID], faceID)
	}
	if clusterID != nil {
		id := *clusterID
		f.ClusterID = &id
		f.ClusterConfidence = confidence
		s.facesByCluster[id] = append(s.facesByCluster[id], faceID)
	} else {
		f.ClusterID = nil
		f.ClusterConfidence = 0
	}
	return nil
}

func (s *MemoryStore) ListFacesByPhoto(ctx context.Context, photoID string) ([]models.FaceDetection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.facesByPhoto[photoID]
	faces := make([]models.FaceDetection, 0, len(ids))
	for _, id := range ids {
		faces = append(faces, *cloneFace(s.faces[id]))
	}
	return faces, nil
}

func (s *MemoryStore) ListFacesByCluster(ctx context.Context, clusterID string) ([]models.FaceDetection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.facesByCluster[clusterID]
	faces := make([]models.FaceDetection, 0, len(ids))
	for _, id := range ids {
		faces = append(faces, *cloneFace(s.faces[id]))
	}
	return faces, nil
}

func (s *MemoryStore) DeletePhotoDetections(ctx context.Context, photoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletePhotoDetectionsLocked(photoID)
	return nil
}

func (s *MemoryStore) deletePhotoDetectionsLocked(photoID string) {
	for _, faceID := range s.facesByPhoto[photoID] {
		if f := s.faces[faceID]; f != nil && f.ClusterID != nil {
			s.facesByCluster[*f.ClusterID] = removeID(s.facesByCluster[*f.ClusterID], faceID)
		}
		delete(s.faces, faceID)
	}
	delete(s.facesByPhoto, photoID)

	for _, id := range s.clothingByPhoto[photoID] {
		delete(s.clothing, id)
	}
	delete(s.clothingByPhoto, photoID)

	for _, id := range s.bibsByPhoto[photoID] {
		delete(s.bibs, id)
	}
	delete(s.bibsByPhoto, photoID)
}

func (s *MemoryStore) GetEventEmbeddings(ctx context.Context, eventID string) ([]EventEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EventEmbedding
	for _, photoID := range s.photosByEvent[eventID] {
		for _, faceID := range s.facesByPhoto[photoID] {
			f := s.faces[faceID]
			e := EventEmbedding{
				FaceID:    f.ID,
				PhotoID:   f.PhotoID,
				Embedding: append([]float32(nil), f.Embedding...),
			}
			if f.ClusterID != nil {
				id := *f.ClusterID
				e.ClusterID = &id
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Person clusters ---

func (s *MemoryStore) CreateCluster(ctx context.Context, c *models.PersonCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fillMeta(&c.ID, &c.CreatedAt)
	s.clusters[c.ID] = cloneCluster(c)
	s.clustersByEvent[c.EventID] = append(s.clustersByEvent[c.EventID], c.ID)
	return nil
}

func (s *MemoryStore) GetCluster(ctx context.Context, id string) (*models.PersonCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clusters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCluster(c), nil
}

func (s *MemoryStore) UpdateCluster(ctx context.Context, c *models.PersonCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.clusters[c.ID]
	if !ok {
		return ErrNotFound
	}
	upd := cloneCluster(c)
	// A cluster's event and creation time never change.
	upd.EventID = old.EventID
	upd.CreatedAt = old.CreatedAt
	s.clusters[c.ID] = upd
	return nil
}

func (s *MemoryStore) DeleteCluster(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.clusters, id)
	s.clustersByEvent[c.EventID] = removeID(s.clustersByEvent[c.EventID], id)
	// Member faces keep their now-dangling cluster pointer; cleanup is the
	// caller's responsibility (normally a re-clustering pass).
	delete(s.facesByCluster, id)
	return nil
}

func (s *MemoryStore) ListClustersByEvent(ctx context.Context, eventID string) ([]models.PersonCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.clustersByEvent[eventID]
	clusters := make([]models.PersonCluster, 0, len(ids))
	for _, id := range ids {
		clusters = append(clusters, *cloneCluster(s.clusters[id]))
	}
	return clusters, nil
}

func (s *MemoryStore) GetClusterPhotos(ctx context.Context, clusterID string, limit, offset int) ([]models.Photo, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.clusters[clusterID]; !ok {
		return nil, 0, ErrNotFound
	}

	seen := make(map[string]bool)
	var photoIDs []string
	for _, faceID := range s.facesByCluster[clusterID] {
		pid := s.faces[faceID].PhotoID
		if !seen[pid] {
			seen[pid] = true
			photoIDs = append(photoIDs, pid)
		}
	}

	total := len(photoIDs)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.Photo{}, total, nil
	}
	end := total
	if offset+limit < end {
		end = offset + limit
	}

	photos := make([]models.Photo, 0, end-offset)
	for _, pid := range photoIDs[offset:end] {
		photos = append(photos, *clonePhoto(s.photos[pid]))
	}
	return photos, total, nil
}

// --- Clothing attributes ---

func (s *MemoryStore) CreateClothing(ctx context.Context, c *models.ClothingAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[c.PhotoID]; !ok {
		return ErrNotFound
	}
	fillMeta(&c.ID, &c.CreatedAt)
	s.clothing[c.ID] = cloneClothing(c)
	s.clothingByPhoto[c.PhotoID] = append(s.clothingByPhoto[c.PhotoID], c.ID)
	return nil
}

func (s *MemoryStore) ListClothingByPhoto(ctx context.Context, photoID string) ([]models.ClothingAttributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.clothingByPhoto[photoID]
	out := make([]models.ClothingAttributes, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneClothing(s.clothing[id]))
	}
	return out, nil
}

func (s *MemoryStore) ListClothingByEvent(ctx context.Context, eventID string) ([]models.ClothingAttributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ClothingAttributes
	for _, photoID := range s.photosByEvent[eventID] {
		for _, id := range s.clothingByPhoto[photoID] {
			out = append(out, *cloneClothing(s.clothing[id]))
		}
	}
	return out, nil
}

// --- Bib detections ---

func (s *MemoryStore) CreateBibDetection(ctx context.Context, b *models.BibDetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[b.PhotoID]; !ok {
		return ErrNotFound
	}
	fillMeta(&b.ID, &b.CreatedAt)
	s.bibs[b.ID] = cloneBib(b)
	s.bibsByPhoto[b.PhotoID] = append(s.bibsByPhoto[b.PhotoID], b.ID)
	return nil
}

func (s *MemoryStore) ListBibsByPhoto(ctx context.Context, photoID string) ([]models.BibDetection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bibsByPhoto[photoID]
	out := make([]models.BibDetection, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneBib(s.bibs[id]))
	}
	return out, nil
}

func (s *MemoryStore) ListBibsByEvent(ctx context.Context, eventID string) ([]models.BibDetection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.BibDetection
	for _, photoID := range s.photosByEvent[eventID] {
		for _, id := range s.bibsByPhoto[photoID] {
			out = append(out, *cloneBib(s.bibs[id]))
		}
	}
	return out, nil
}

// --- Match feedback ---

func (s *MemoryStore) CreateFeedback(ctx context.Context, f *models.MatchFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fillMeta(&f.ID, &f.CreatedAt)
	s.feedback[f.ID] = cloneFeedback(f)
	s.feedbackByCluster[f.ClusterID] = append(s.feedbackByCluster[f.ClusterID], f.ID)
	return nil
}

func (s *MemoryStore) ListFeedbackByCluster(ctx context.Context, clusterID string) ([]models.MatchFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.feedbackByCluster[clusterID]
	out := make([]models.MatchFeedback, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneFeedback(s.feedback[id]))
	}
	return out, nil
}

// --- helpers ---

func fillMeta(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func clonePhoto(p *models.Photo) *models.Photo {
	cp := *p
	return &cp
}

func cloneFace(f *models.FaceDetection) *models.FaceDetection {
	cp := *f
	cp.Embedding = append([]float32(nil), f.Embedding...)
	if f.ClusterID != nil {
		id := *f.ClusterID
		cp.ClusterID = &id
	}
	return &cp
}

func cloneCluster(c *models.PersonCluster) *models.PersonCluster {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	if c.ClaimedBy != nil {
		v := *c.ClaimedBy
		cp.ClaimedBy = &v
	}
	if c.ClaimedAt != nil {
		t := *c.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}

func cloneClothing(c *models.ClothingAttributes) *models.ClothingAttributes {
	cp := *c
	cp.DominantColors = append([]string(nil), c.DominantColors...)
	cp.Items = append([]models.ClothingItem(nil), c.Items...)
	cp.Descriptors = append([]string(nil), c.Descriptors...)
	if c.FaceDetectionID != nil {
		id := *c.FaceDetectionID
		cp.FaceDetectionID = &id
	}
	return &cp
}

func cloneBib(b *models.BibDetection) *models.BibDetection {
	cp := *b
	if b.FaceDetectionID != nil {
		id := *b.FaceDetectionID
		cp.FaceDetectionID = &id
	}
	return &cp
}

func cloneFeedback(f *models.MatchFeedback) *models.MatchFeedback {
	cp := *f
	if f.UserID != nil {
		v := *f.UserID
		cp.UserID = &v
	}
	return &cp
}
