package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ideonautics/ideabank/internal/blob"
	"github.com/ideonautics/ideabank/internal/config"
	"github.com/ideonautics/ideabank/internal/embedding"
	"github.com/ideonautics/ideabank/internal/engine"
	"github.com/ideonautics/ideabank/internal/server"
	"github.com/ideonautics/ideabank/internal/storage"
	"github.com/ideonautics/ideabank/internal/storage/postgres"
	"github.com/ideonautics/ideabank/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (overrides IDEABANK_CONFIG)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("IDEABANK_CONFIG", *configPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	var store storage.ConceptStore
	switch cfg.Storage.StorageEngine {
	case "postgres":
		store, err = postgres.NewConceptStore(cfg.Storage.PostgresDSN)
	case "sqlite", "":
		store, err = sqlite.NewConceptStore(cfg.Storage.DataPath)
	default:
		log.Fatalf("Unsupported storage engine: %q", cfg.Storage.StorageEngine)
	}
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize blob storage for proposal documents
	var blobs blob.Store
	switch cfg.Blob.Backend {
	case "gcs":
		blobs, err = blob.NewGCSStore(ctx, cfg.Blob.Bucket)
	case "filesystem", "":
		blobs, err = blob.NewFilesystemStore(filepath.Join(cfg.Storage.DataPath, "proposals"))
	default:
		log.Fatalf("Unsupported blob backend: %q", cfg.Blob.Backend)
	}
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	// Initialize embedding provider
	embedder, err := embedding.NewGenerator(cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}

	// Initialize search orchestrator
	search, err := engine.NewSearchOrchestrator(store, embedder, engine.Options{
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		DefaultTopK:         cfg.Search.DefaultTopK,
		MaxTopK:             cfg.Search.MaxTopK,
		Deadline:            cfg.Search.Deadline,
		Workers:             cfg.Embedding.Workers,
		CacheSize:           cfg.Search.CacheSize,
		CacheTTL:            cfg.Search.CacheTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize search: %v", err)
	}
	defer search.Close()

	addr, _ := server.Start(ctx, cfg, store, blobs, search, embedder)
	log.Printf("IdeaBank API running at http://%s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
