package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aula/internal/alert"
	"aula/internal/api"
	"aula/internal/blob"
	"aula/internal/classroom"
	"aula/internal/config"
	"aula/internal/detection"
	"aula/internal/pipeline"
	"aula/internal/ws"
)

func main() {
	var (
		addrF = flag.String("addr", "", "Listen address (overrides AULA_ADDR)")
		dbF   = flag.String("db", "", "SQLite database path (overrides AULA_DB_PATH)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[aula] ", log.Ltime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *addrF != "" {
		cfg.Addr = *addrF
	}
	if *dbF != "" {
		cfg.DBPath = *dbF
	}

	store, err := classroom.NewStore(cfg.DBPath)
	if err != nil {
		logger.Fatalf("opening database: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatalf("migrating database: %v", err)
	}

	// The detection backend is selected once at startup; both variants feed
	// the same pipeline.
	var detector detection.Backend
	switch cfg.InferenceMode {
	case "remote":
		detector = detection.NewRemote(cfg.InferenceEndpoint, cfg.InferenceTimeout)
		logger.Printf("using remote inference at %s", cfg.InferenceEndpoint)
	default:
		detector = detection.NewEmbedded(detection.EmbeddedConfig{Workers: cfg.DetectionWorkers})
		logger.Printf("using embedded inference (workers: %d)", cfg.DetectionWorkers)
	}

	var blobs blob.Store
	mediaDir := ""
	switch cfg.BlobBackend {
	case "http":
		blobs = blob.NewHTTPStore(cfg.BlobEndpoint)
	default:
		fsStore, err := blob.NewFSStore(cfg.BlobDir, cfg.BlobBaseURL)
		if err != nil {
			logger.Fatalf("media store: %v", err)
		}
		blobs = fsStore
		mediaDir = fsStore.Dir()
	}

	var alerts alert.Dispatcher
	switch cfg.AlertBackend {
	case "sendgrid":
		alerts = alert.NewSendgridDispatcher(cfg.SendgridAPIKey, cfg.AlertFrom, cfg.AlertRecipient)
	default:
		alerts = alert.NewConsoleDispatcher()
	}

	hub := ws.NewHub()
	orch := pipeline.New(store, blobs, detector, hub, alerts, cfg.Location())
	server := api.New(store, orch, hub, mediaDir)

	// Create channel used by both the signal handler and server goroutine
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := server.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	logger.Printf("exiting (%v)", <-errc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	logger.Println("exited")
}
