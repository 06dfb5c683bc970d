// Command search queries the person clusters of one event by bib number,
// clothing, or a reference face embedding, and prints the ranked results as
// JSON. It talks to Postgres directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/your-org/snapmatch/internal/config"
	"github.com/your-org/snapmatch/internal/observability"
	"github.com/your-org/snapmatch/internal/search"
	"github.com/your-org/snapmatch/internal/storage"
)

// loadEmbedding reads a JSON float array, e.g. one face embedding exported
// from the vision service.
func loadEmbedding(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var emb []float32
	if err := json.Unmarshal(data, &emb); err != nil {
		return nil, fmt.Errorf("parse embedding %s: %w", path, err)
	}
	return emb, nil
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	eventID := flag.String("event", "", "event to search (required)")
	bib := flag.String("bib", "", "bib number to search for")
	embeddingPath := flag.String("embedding", "", "path to a JSON face embedding to search for")
	threshold := flag.Float64("threshold", 0, "face similarity threshold; 0 means the configured default")
	color := flag.String("color", "", "clothing primary color")
	secondary := flag.String("secondary", "", "clothing secondary color")
	clothingType := flag.String("type", "", "clothing type")
	descriptor := flag.String("descriptor", "", "clothing descriptor substring")
	flag.Parse()

	if *eventID == "" {
		fmt.Fprintln(os.Stderr, "usage: search -event <event-id> (-bib <n> | -embedding <file> | clothing flags)")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := search.NewEngine(db, cfg.Matching.FaceSearchThreshold)
	ctx := context.Background()

	filter := search.ClothingFilter{
		PrimaryColor:   *color,
		SecondaryColor: *secondary,
		ClothingType:   *clothingType,
		Descriptor:     *descriptor,
	}

	var results []search.ClusterSearchResult
	switch {
	case *bib != "":
		results, err = engine.ByBib(ctx, *eventID, *bib)
	case *embeddingPath != "":
		var emb []float32
		emb, err = loadEmbedding(*embeddingPath)
		if err == nil {
			results, err = engine.ByFace(ctx, *eventID, emb, *threshold)
		}
	case !filter.Empty():
		results, err = engine.ByClothing(ctx, *eventID, filter)
	default:
		fmt.Fprintln(os.Stderr, "nothing to search for: pass -bib, -embedding or clothing flags")
		os.Exit(2)
	}
	if err != nil {
		slog.Error("search", "event_id", *eventID, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		slog.Error("encode results", "error", err)
		os.Exit(1)
	}
}
