// Command recluster rebuilds the person clusters of one event from scratch.
// It talks to Postgres directly; run it when the threshold changed or the
// incremental assignments have drifted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/your-org/snapmatch/internal/cluster"
	"github.com/your-org/snapmatch/internal/config"
	"github.com/your-org/snapmatch/internal/models"
	"github.com/your-org/snapmatch/internal/observability"
	"github.com/your-org/snapmatch/internal/queue"
	"github.com/your-org/snapmatch/internal/storage"
)

func enqueueTask(ctx context.Context, cfg *config.Config, eventID string, threshold float64) error {
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		return err
	}
	return producer.PublishRecluster(ctx, models.ReclusterTask{
		EventID:   eventID,
		Threshold: threshold,
	})
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	eventID := flag.String("event", "", "event to re-cluster (required)")
	threshold := flag.Float64("threshold", 0, "similarity threshold; 0 means the configured default")
	enqueue := flag.Bool("enqueue", false, "publish a re-cluster task instead of running in-process")
	flag.Parse()

	if *eventID == "" {
		fmt.Fprintln(os.Stderr, "usage: recluster -event <event-id> [-threshold 0.7] [-enqueue]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	if *enqueue {
		if err := enqueueTask(ctx, cfg, *eventID, *threshold); err != nil {
			slog.Error("enqueue recluster", "error", err)
			os.Exit(1)
		}
		slog.Info("recluster task enqueued", "event_id", *eventID)
		return
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := cluster.NewEngine(db, cfg.Matching.ClusterThreshold)
	n, err := engine.Recluster(ctx, *eventID, *threshold)
	if err != nil {
		slog.Error("recluster", "event_id", *eventID, "error", err)
		os.Exit(1)
	}
	fmt.Printf("event %s: %d clusters\n", *eventID, n)
}
