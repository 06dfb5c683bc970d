package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/observability"
)

// passCluster is one cluster being built during a re-clustering pass.
type passCluster struct {
	seedFaceID  string
	seedPhotoID string
	faceIDs     []string
	sims        []float64
	members     [][]float32
}

// Recluster discards every cluster of the event and rebuilds from scratch
// with a greedy single pass over the embeddings in store order: each face
// attaches to the first cluster of this pass whose mean similarity meets the
// threshold, else starts a new one. Counters are recomputed from actual
// membership afterwards. Returns the number of resulting clusters.
//
// The pass is O(n²) in the worst case; fine at per-event face counts, a
// scaling limit beyond that.
func (e *Engine) Recluster(ctx context.Context, eventID string, threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = e.threshold
	}

	lock := e.locks.get(eventID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		observability.ReclusterDuration.Observe(time.Since(start).Seconds())
	}()

	old, err := e.store.ListClustersByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list clusters: %w", err)
	}
	for _, cl := range old {
		if err := e.store.DeleteCluster(ctx, cl.ID); err != nil {
			return 0, fmt.Errorf("delete cluster %s: %w", cl.ID, err)
		}
	}

	embs, err := e.store.GetEventEmbeddings(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("event embeddings: %w", err)
	}

	var built []*passCluster
	for _, em := range embs {
		attached := false
		for _, pc := range built {
			sim, ok := meanSimilarity(em.Embedding, pc.members)
			if !ok || sim < threshold {
				continue
			}
			pc.faceIDs = append(pc.faceIDs, em.FaceID)
			pc.sims = append(pc.sims, sim)
			pc.members = append(pc.members, em.Embedding)
			attached = true
			break
		}
		if !attached {
			built = append(built, &passCluster{
				seedFaceID:  em.FaceID,
				seedPhotoID: em.PhotoID,
				faceIDs:     []string{em.FaceID},
				sims:        []float64{1.0},
				members:     [][]float32{em.Embedding},
			})
		}
	}

	for _, pc := range built {
		cl := &models.PersonCluster{
			EventID:    eventID,
			RepFaceID:  pc.seedFaceID,
			RepPhotoID: pc.seedPhotoID,
			Tags:       []string{},
		}
		if err := e.store.CreateCluster(ctx, cl); err != nil {
			return 0, fmt.Errorf("create cluster: %w", err)
		}
		for i, faceID := range pc.faceIDs {
			if err := e.store.SetFaceCluster(ctx, faceID, &cl.ID, pc.sims[i]); err != nil {
				return 0, fmt.Errorf("link face %s: %w", faceID, err)
			}
		}

		// Recompute counters from actual membership rather than trusting the
		// running tallies of the pass.
		faces, err := e.store.ListFacesByCluster(ctx, cl.ID)
		if err != nil {
			return 0, fmt.Errorf("list cluster faces: %w", err)
		}
		photos := make(map[string]bool)
		for _, f := range faces {
			photos[f.PhotoID] = true
		}
		cl.FaceCount = len(faces)
		cl.PhotoCount = len(photos)
		if err := e.store.UpdateCluster(ctx, cl); err != nil {
			return 0, fmt.Errorf("update cluster counters: %w", err)
		}
	}

	slog.Info("re-clustered event",
		"event_id", eventID,
		"threshold", threshold,
		"faces", len(embs),
		"clusters", len(built),
	)
	return len(built), nil
}
