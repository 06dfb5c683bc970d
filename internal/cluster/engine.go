// Package cluster groups face detections into person identities within an
// event: incremental assignment of new faces and full batch re-clustering.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/snapmatch/internal/embedding"
	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/observability"
	"github.com/your-org/snapmatch/internal/storage"
)

// DefaultThreshold is the similarity floor for attaching a face to an
// existing cluster.
const DefaultThreshold = 0.7

// Engine runs assignment and re-clustering against a Store. All mutations
// for one event are serialized behind a per-event mutex, so concurrent
// photo-processing requests cannot lose counter or tag updates.
type Engine struct {
	store     storage.Store
	locks     *eventLocks
	threshold float64
}

func NewEngine(store storage.Store, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{
		store:     store,
		locks:     newEventLocks(),
		threshold: threshold,
	}
}

// Assignment is the outcome of assigning one face.
type Assignment struct {
	ClusterID  string
	Similarity float64
	// Created is true when no existing cluster qualified and a new one was
	// seeded with this face.
	Created bool
}

// memberPool is the candidate signature of one cluster: the set of its
// member embeddings, compared pairwise and averaged on demand. No running
// centroid vector is kept.
type memberPool struct {
	clusterID string
	photoIDs  map[string]bool
	members   [][]float32
}

// Assign attaches the face to the best-matching cluster of the event, or
// creates a new cluster when none reaches the threshold. The face detection
// must already be persisted.
func (e *Engine) Assign(ctx context.Context, eventID, faceID, photoID string, emb []float32) (*Assignment, error) {
	lock := e.locks.get(eventID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		observability.AssignDuration.Observe(time.Since(start).Seconds())
	}()

	pools, err := e.candidatePools(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var best *memberPool
	bestSim := -1.0
	for _, pool := range pools {
		sim, ok := meanSimilarity(emb, pool.members)
		if !ok {
			continue
		}
		// Ties keep the earlier candidate in iteration order.
		if sim > bestSim {
			bestSim = sim
			best = pool
		}
	}

	if best == nil || bestSim < e.threshold {
		cl := &models.PersonCluster{
			EventID:    eventID,
			RepFaceID:  faceID,
			RepPhotoID: photoID,
			Tags:       []string{},
			FaceCount:  1,
			PhotoCount: 1,
		}
		if err := e.store.CreateCluster(ctx, cl); err != nil {
			return nil, fmt.Errorf("create cluster: %w", err)
		}
		if err := e.store.SetFaceCluster(ctx, faceID, &cl.ID, 1.0); err != nil {
			return nil, fmt.Errorf("link face to new cluster: %w", err)
		}
		observability.ClustersCreated.Inc()
		slog.Debug("seeded new cluster", "event_id", eventID, "cluster_id", cl.ID, "face_id", faceID)
		return &Assignment{ClusterID: cl.ID, Similarity: 1.0, Created: true}, nil
	}

	if err := e.store.SetFaceCluster(ctx, faceID, &best.clusterID, bestSim); err != nil {
		return nil, fmt.Errorf("link face to cluster: %w", err)
	}

	cl, err := e.store.GetCluster(ctx, best.clusterID)
	if err != nil {
		return nil, fmt.Errorf("load cluster for counters: %w", err)
	}
	cl.FaceCount++
	if !best.photoIDs[photoID] {
		cl.PhotoCount++
	}
	if err := e.store.UpdateCluster(ctx, cl); err != nil {
		return nil, fmt.Errorf("update cluster counters: %w", err)
	}

	return &Assignment{ClusterID: best.clusterID, Similarity: bestSim}, nil
}

// AddClusterTags appends tags to the cluster's tag set, de-duplicated by
// exact string equality. The read-modify-write runs under the event lock.
func (e *Engine) AddClusterTags(ctx context.Context, clusterID string, tags []string) error {
	cl, err := e.store.GetCluster(ctx, clusterID)
	if err != nil {
		return err
	}

	lock := e.locks.get(cl.EventID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the first read only resolved the event.
	cl, err = e.store.GetCluster(ctx, clusterID)
	if err != nil {
		return err
	}

	changed := false
	for _, tag := range tags {
		if tag == "" || cl.HasTag(tag) {
			continue
		}
		cl.Tags = append(cl.Tags, tag)
		changed = true
	}
	if !changed {
		return nil
	}
	return e.store.UpdateCluster(ctx, cl)
}

// candidatePools groups the event's embeddings by their current cluster.
// Unassigned faces and faces pointing at deleted clusters contribute to no
// pool. Pools come back in the store's cluster listing order.
func (e *Engine) candidatePools(ctx context.Context, eventID string) ([]*memberPool, error) {
	embs, err := e.store.GetEventEmbeddings(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event embeddings: %w", err)
	}
	clusters, err := e.store.ListClustersByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event clusters: %w", err)
	}

	byID := make(map[string]*memberPool, len(clusters))
	pools := make([]*memberPool, 0, len(clusters))
	for _, cl := range clusters {
		pool := &memberPool{clusterID: cl.ID, photoIDs: make(map[string]bool)}
		byID[cl.ID] = pool
		pools = append(pools, pool)
	}

	for _, em := range embs {
		if em.ClusterID == nil {
			continue
		}
		pool, ok := byID[*em.ClusterID]
		if !ok {
			continue
		}
		pool.members = append(pool.members, em.Embedding)
		pool.photoIDs[em.PhotoID] = true
	}

	out := pools[:0]
	for _, pool := range pools {
		if len(pool.members) > 0 {
			out = append(out, pool)
		}
	}
	return out, nil
}

// meanSimilarity is the average cosine similarity between emb and every
// member. Comparisons that fail (malformed member embeddings) are skipped;
// ok is false when nothing could be compared.
func meanSimilarity(emb []float32, members [][]float32) (float64, bool) {
	var sum float64
	n := 0
	for _, m := range members {
		sim, err := embedding.CosineSimilarity(emb, m)
		if err != nil {
			continue
		}
		sum += sim
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
