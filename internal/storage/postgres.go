package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/snapmatch/internal/config"
	"github.com/your-org/snapmatch/internal/models"
)

// PostgresStore is the durable Store backend: pgx pool + pgvector columns for
// face embeddings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema. embeddingDim must match the vision provider's
// embedding dimensionality for the deployment.
func (s *PostgresStore) Migrate(ctx context.Context, embeddingDim int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS photos (
			id               TEXT PRIMARY KEY,
			event_id         TEXT NOT NULL,
			object_key       TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'pending',
			processing_error TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS photos_event_idx ON photos(event_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS face_detections (
			id                 TEXT PRIMARY KEY,
			photo_id           TEXT NOT NULL REFERENCES photos(id),
			bbox               DOUBLE PRECISION[4] NOT NULL,
			confidence         REAL NOT NULL,
			embedding          vector(%d) NOT NULL,
			cluster_id         TEXT,
			cluster_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS face_detections_photo_idx ON face_detections(photo_id)`,
		`CREATE INDEX IF NOT EXISTS face_detections_cluster_idx ON face_detections(cluster_id)`,
		`CREATE TABLE IF NOT EXISTS person_clusters (
			id           TEXT PRIMARY KEY,
			event_id     TEXT NOT NULL,
			rep_face_id  TEXT NOT NULL DEFAULT '',
			rep_photo_id TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			tags         TEXT[] NOT NULL DEFAULT '{}',
			face_count   INTEGER NOT NULL DEFAULT 0,
			photo_count  INTEGER NOT NULL DEFAULT 0,
			claimed_by   TEXT,
			claimed_at   TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS person_clusters_event_idx ON person_clusters(event_id)`,
		`CREATE TABLE IF NOT EXISTS clothing_attributes (
			id                TEXT PRIMARY KEY,
			photo_id          TEXT NOT NULL REFERENCES photos(id),
			face_detection_id TEXT,
			dominant_colors   TEXT[] NOT NULL DEFAULT '{}',
			items             JSONB NOT NULL DEFAULT '[]',
			descriptors       TEXT[] NOT NULL DEFAULT '{}',
			confidence        REAL NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS clothing_attributes_photo_idx ON clothing_attributes(photo_id)`,
		`CREATE TABLE IF NOT EXISTS bib_detections (
			id                TEXT PRIMARY KEY,
			photo_id          TEXT NOT NULL REFERENCES photos(id),
			face_detection_id TEXT,
			bib_number        TEXT NOT NULL,
			bbox              DOUBLE PRECISION[4] NOT NULL,
			confidence        REAL NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS bib_detections_photo_idx ON bib_detections(photo_id)`,
		`CREATE TABLE IF NOT EXISTS match_feedback (
			id         TEXT PRIMARY KEY,
			cluster_id TEXT NOT NULL,
			photo_id   TEXT NOT NULL,
			is_match   BOOLEAN NOT NULL,
			user_id    TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS match_feedback_cluster_idx ON match_feedback(cluster_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateVectorIndex builds the IVFFlat index for face similarity scans. Call
// it once the table holds some data.
func (s *PostgresStore) CreateVectorIndex(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS face_detections_vector_idx
		ON face_detections USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// --- Photos ---

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	fillMeta(&p.ID, &p.CreatedAt)
	if p.Status == "" {
		p.Status = models.PhotoPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO photos (id, event_id, object_key, status, processing_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.EventID, p.ObjectKey, p.Status, p.ProcessingError, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	p := &models.Photo{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, object_key, status, processing_error, created_at FROM photos WHERE id = $1`, id,
	).Scan(&p.ID, &p.EventID, &p.ObjectKey, &p.Status, &p.ProcessingError, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePhotoStatus(ctx context.Context, id string, status models.ProcessingStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE photos SET status = $1, processing_error = $2 WHERE id = $3`,
		status, errMsg, id)
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPhotosByEvent(ctx context.Context, eventID string) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, object_key, status, processing_error, created_at
		 FROM photos WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete event: %w", err)
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		`DELETE FROM match_feedback WHERE cluster_id IN (SELECT id FROM person_clusters WHERE event_id = $1)`,
		`DELETE FROM clothing_attributes WHERE photo_id IN (SELECT id FROM photos WHERE event_id = $1)`,
		`DELETE FROM bib_detections WHERE photo_id IN (SELECT id FROM photos WHERE event_id = $1)`,
		`DELETE FROM face_detections WHERE photo_id IN (SELECT id FROM photos WHERE event_id = $1)`,
		`DELETE FROM person_clusters WHERE event_id = $1`,
		`DELETE FROM photos WHERE event_id = $1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt, eventID); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// --- Face detections ---

func (s *PostgresStore) CreateFaceDetection(ctx context.Context, f *models.FaceDetection) error {
	fillMeta(&f.ID, &f.CreatedAt)
	vec := pgvector.NewVector(f.Embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_detections (id, photo_id, bbox, confidence, embedding, cluster_id, cluster_confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.PhotoID, bboxSlice(f.BBox), f.Confidence, vec, f.ClusterID, f.ClusterConfidence, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create face detection: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFaceDetection(ctx context.Context, id string) (*models.FaceDetection, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, photo_id, bbox, confidence, embedding, cluster_id, cluster_confidence, created_at
		 FROM face_detections WHERE id = $1`, id)
	f, err := scanFace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get face detection: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) SetFaceCluster(ctx context.Context, faceID string, clusterID *string, confidence float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE face_detections SET cluster_id = $1, cluster_confidence = $2 WHERE id = $3`,
		clusterID, confidence, faceID)
	if err != nil {
		return fmt.Errorf("set face cluster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListFacesByPhoto(ctx context.Context, photoID string) ([]models.FaceDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, bbox, confidence, embedding, cluster_id, cluster_confidence, created_at
		 FROM face_detections WHERE photo_id = $1 ORDER BY created_at, id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list faces by photo: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

func (s *PostgresStore) ListFacesByCluster(ctx context.Context, clusterID string) ([]models.FaceDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, bbox, confidence, embedding, cluster_id, cluster_confidence, created_at
		 FROM face_detections WHERE cluster_id = $1 ORDER BY created_at, id`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("list faces by cluster: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

func (s *PostgresStore) DeletePhotoDetections(ctx context.Context, photoID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete detections: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"clothing_attributes", "bib_detections", "face_detections"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE photo_id = $1`, photoID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetEventEmbeddings(ctx context.Context, eventID string) ([]EventEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.photo_id, f.cluster_id, f.embedding
		 FROM face_detections f
		 JOIN photos p ON p.id = f.photo_id
		 WHERE p.event_id = $1
		 ORDER BY f.created_at, f.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event embeddings: %w", err)
	}
	defer rows.Close()

	var out []EventEmbedding
	for rows.Next() {
		var e EventEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.FaceID, &e.PhotoID, &e.ClusterID, &vec); err != nil {
			return nil, fmt.Errorf("scan event embedding: %w", err)
		}
		e.Embedding = vec.Slice()
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Person clusters ---

func (s *PostgresStore) CreateCluster(ctx context.Context, c *models.PersonCluster) error {
	fillMeta(&c.ID, &c.CreatedAt)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO person_clusters (id, event_id, rep_face_id, rep_photo_id, display_name, tags, face_count, photo_count, claimed_by, claimed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.EventID, c.RepFaceID, c.RepPhotoID, c.DisplayName, c.Tags,
		c.FaceCount, c.PhotoCount, c.ClaimedBy, c.ClaimedAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create cluster: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCluster(ctx context.Context, id string) (*models.PersonCluster, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, event_id, rep_face_id, rep_photo_id, display_name, tags, face_count, photo_count, claimed_by, claimed_at, created_at
		 FROM person_clusters WHERE id = $1`, id)
	c, err := scanCluster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCluster(ctx context.Context, c *models.PersonCluster) error {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE person_clusters
		 SET rep_face_id = $1, rep_photo_id = $2, display_name = $3, tags = $4,
		     face_count = $5, photo_count = $6, claimed_by = $7, claimed_at = $8
		 WHERE id = $9`,
		c.RepFaceID, c.RepPhotoID, c.DisplayName, c.Tags,
		c.FaceCount, c.PhotoCount, c.ClaimedBy, c.ClaimedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update cluster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCluster(ctx context.Context, id string) error {
	// Member faces keep their dangling cluster_id on purpose; a re-clustering
	// pass overwrites it.
	tag, err := s.pool.Exec(ctx, `DELETE FROM person_clusters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cluster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListClustersByEvent(ctx context.Context, eventID string) ([]models.PersonCluster, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, rep_face_id, rep_photo_id, display_name, tags, face_count, photo_count, claimed_by, claimed_at, created_at
		 FROM person_clusters WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []models.PersonCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, *c)
	}
	return clusters, rows.Err()
}

func (s *PostgresStore) GetClusterPhotos(ctx context.Context, clusterID string, limit, offset int) ([]models.Photo, int, error) {
	if _, err := s.GetCluster(ctx, clusterID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT photo_id) FROM face_detections WHERE cluster_id = $1`, clusterID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count cluster photos: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.event_id, p.object_key, p.status, p.processing_error, p.created_at
		 FROM photos p
		 JOIN (
			SELECT photo_id, MIN(created_at) AS first_seen
			FROM face_detections WHERE cluster_id = $1 GROUP BY photo_id
		 ) m ON m.photo_id = p.id
		 ORDER BY m.first_seen, p.id
		 LIMIT $2 OFFSET $3`, clusterID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("cluster photos: %w", err)
	}
	defer rows.Close()

	photos, err := scanPhotos(rows)
	if err != nil {
		return nil, 0, err
	}
	return photos, total, nil
}

// --- Clothing attributes ---

func (s *PostgresStore) CreateClothing(ctx context.Context, c *models.ClothingAttributes) error {
	fillMeta(&c.ID, &c.CreatedAt)
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshal clothing items: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO clothing_attributes (id, photo_id, face_detection_id, dominant_colors, items, descriptors, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PhotoID, c.FaceDetectionID, c.DominantColors, items, c.Descriptors, c.Confidence, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create clothing: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListClothingByPhoto(ctx context.Context, photoID string) ([]models.ClothingAttributes, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, face_detection_id, dominant_colors, items, descriptors, confidence, created_at
		 FROM clothing_attributes WHERE photo_id = $1 ORDER BY created_at, id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list clothing by photo: %w", err)
	}
	defer rows.Close()
	return scanClothingRows(rows)
}

func (s *PostgresStore) ListClothingByEvent(ctx context.Context, eventID string) ([]models.ClothingAttributes, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.photo_id, c.face_detection_id, c.dominant_colors, c.items, c.descriptors, c.confidence, c.created_at
		 FROM clothing_attributes c
		 JOIN photos p ON p.id = c.photo_id
		 WHERE p.event_id = $1 ORDER BY c.created_at, c.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list clothing by event: %w", err)
	}
	defer rows.Close()
	return scanClothingRows(rows)
}

// --- Bib detections ---

func (s *PostgresStore) CreateBibDetection(ctx context.Context, b *models.BibDetection) error {
	fillMeta(&b.ID, &b.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bib_detections (id, photo_id, face_detection_id, bib_number, bbox, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.PhotoID, b.FaceDetectionID, b.BibNumber, bboxSlice(b.BBox), b.Confidence, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create bib detection: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBibsByPhoto(ctx context.Context, photoID string) ([]models.BibDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, face_detection_id, bib_number, bbox, confidence, created_at
		 FROM bib_detections WHERE photo_id = $1 ORDER BY created_at, id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list bibs by photo: %w", err)
	}
	defer rows.Close()
	return scanBibRows(rows)
}

func (s *PostgresStore) ListBibsByEvent(ctx context.Context, eventID string) ([]models.BibDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.id, b.photo_id, b.face_detection_id, b.bib_number, b.bbox, b.confidence, b.created_at
		 FROM bib_detections b
		 JOIN photos p ON p.id = b.photo_id
		 WHERE p.event_id = $1 ORDER BY b.created_at, b.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list bibs by event: %w", err)
	}
	defer rows.Close()
	return scanBibRows(rows)
}

// --- Match feedback ---

func (s *PostgresStore) CreateFeedback(ctx context.Context, f *models.MatchFeedback) error {
	fillMeta(&f.ID, &f.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_feedback (id, cluster_id, photo_id, is_match, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.ClusterID, f.PhotoID, f.IsMatch, f.UserID, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFeedbackByCluster(ctx context.Context, clusterID string) ([]models.MatchFeedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cluster_id, photo_id, is_match, user_id, created_at
		 FROM match_feedback WHERE cluster_id = $1 ORDER BY created_at, id`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []models.MatchFeedback
	for rows.Next() {
		var f models.MatchFeedback
		if err := rows.Scan(&f.ID, &f.ClusterID, &f.PhotoID, &f.IsMatch, &f.UserID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- scan helpers ---

func bboxSlice(b models.BoundingBox) []float64 {
	return []float64{float64(b[0]), float64(b[1]), float64(b[2]), float64(b[3])}
}

func bboxFromSlice(v []float64) models.BoundingBox {
	var b models.BoundingBox
	for i := 0; i < len(v) && i < 4; i++ {
		b[i] = float32(v[i])
	}
	return b
}

func scanPhotos(rows pgx.Rows) ([]models.Photo, error) {
	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.ObjectKey, &p.Status, &p.ProcessingError, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func scanFace(row pgx.Row) (*models.FaceDetection, error) {
	f := &models.FaceDetection{}
	var bbox []float64
	var vec pgvector.Vector
	if err := row.Scan(&f.ID, &f.PhotoID, &bbox, &f.Confidence, &vec, &f.ClusterID, &f.ClusterConfidence, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.BBox = bboxFromSlice(bbox)
	f.Embedding = vec.Slice()
	return f, nil
}

func scanFaces(rows pgx.Rows) ([]models.FaceDetection, error) {
	var faces []models.FaceDetection
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, *f)
	}
	return faces, rows.Err()
}

func scanCluster(row pgx.Row) (*models.PersonCluster, error) {
	c := &models.PersonCluster{}
	if err := row.Scan(&c.ID, &c.EventID, &c.RepFaceID, &c.RepPhotoID, &c.DisplayName, &c.Tags,
		&c.FaceCount, &c.PhotoCount, &c.ClaimedBy, &c.ClaimedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func scanClothingRows(rows pgx.Rows) ([]models.ClothingAttributes, error) {
	var out []models.ClothingAttributes
	for rows.Next() {
		var c models.ClothingAttributes
		var items []byte
		if err := rows.Scan(&c.ID, &c.PhotoID, &c.FaceDetectionID, &c.DominantColors, &items,
			&c.Descriptors, &c.Confidence, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan clothing: %w", err)
		}
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return nil, fmt.Errorf("unmarshal clothing items: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanBibRows(rows pgx.Rows) ([]models.BibDetection, error) {
	var out []models.BibDetection
	for rows.Next() {
		var b models.BibDetection
		var bbox []float64
		if err := rows.Scan(&b.ID, &b.PhotoID, &b.FaceDetectionID, &b.BibNumber, &bbox, &b.Confidence, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bib: %w", err)
		}
		b.BBox = bboxFromSlice(bbox)
		out = append(out, b)
	}
	return out, rows.Err()
}
