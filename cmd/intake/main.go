// Command intake uploads a directory of event photos: each image goes to
// object storage, gets a pending photo record, and is enqueued for the
// workers. It is how photographers' batches enter the system.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/snapmatch/internal/config"
	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/observability"
	"github.com/your-org/snapmatch/internal/queue"
	"github.com/your-org/snapmatch/internal/storage"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	eventID := flag.String("event", "", "event the photos belong to (required)")
	dir := flag.String("dir", "", "directory of image files to upload (required)")
	flag.Parse()

	if *eventID == "" || *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: intake -event <event-id> -dir <photo-dir>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Error("ensure minio bucket", "error", err)
		os.Exit(1)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		slog.Error("read photo directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	uploaded, skipped := 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExts[ext] {
			skipped++
			continue
		}

		path := filepath.Join(*dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("read file", "path", path, "error", err)
			os.Exit(1)
		}

		// Upload before the record exists so a pending photo never points
		// at a missing object.
		photoID := uuid.NewString()
		key := fmt.Sprintf("photos/%s/%s%s", *eventID, photoID, ext)
		contentType := mime.TypeByExtension(ext)
		if err := minioStore.PutPhoto(ctx, key, data, contentType); err != nil {
			slog.Error("upload photo", "path", path, "error", err)
			os.Exit(1)
		}

		photo := &models.Photo{
			ID:        photoID,
			EventID:   *eventID,
			ObjectKey: key,
			Status:    models.PhotoPending,
		}
		if err := db.CreatePhoto(ctx, photo); err != nil {
			slog.Error("create photo record", "path", path, "error", err)
			os.Exit(1)
		}

		if err := producer.PublishPhoto(ctx, models.PhotoTask{
			PhotoID: photo.ID,
			EventID: *eventID,
		}); err != nil {
			slog.Error("enqueue photo", "photo_id", photo.ID, "error", err)
			os.Exit(1)
		}

		uploaded++
		slog.Info("photo enqueued", "photo_id", photo.ID, "file", entry.Name())
	}

	fmt.Printf("event %s: %d photos enqueued, %d files skipped\n", *eventID, uploaded, skipped)
}
