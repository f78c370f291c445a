// Package main implements the Pathwise answering API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/PathwiseAI/pathwise-engine/engine/corpus"
	"github.com/PathwiseAI/pathwise-engine/engine/rag"
	"github.com/PathwiseAI/pathwise-engine/engine/semantic"
	"github.com/PathwiseAI/pathwise-engine/engine/vector"
	"github.com/PathwiseAI/pathwise-engine/engine/verify"
	"github.com/PathwiseAI/pathwise-engine/pkg/metrics"
	"github.com/PathwiseAI/pathwise-engine/pkg/mid"
	"github.com/PathwiseAI/pathwise-engine/pkg/natsutil"
	"github.com/PathwiseAI/pathwise-engine/pkg/oai"
	"github.com/PathwiseAI/pathwise-engine/pkg/ollama"
	"github.com/nats-io/nats.go"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	DataDir       string
	EmbedBackend  string // "openai" or "ollama"
	VectorBackend string // "local" or "qdrant"
	QdrantURL     string
	QdrantPrefix  string
	OpenAIKey     string
	OpenAIBase    string
	OllamaURL     string
	OllamaModel   string
	NATSURL       string
	CORSOrigin    string
	MaxBodyBytes  int64
}

func loadConfig() Config {
	maxBody, err := strconv.ParseInt(envOr("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil {
		maxBody = 1 << 20
	}
	return Config{
		Port:          envOr("PORT", "8080"),
		DataDir:       envOr("DATA_DIR", "./data"),
		EmbedBackend:  envOr("EMBED_BACKEND", "openai"),
		VectorBackend: envOr("VECTOR_BACKEND", "local"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		QdrantPrefix:  envOr("QDRANT_PREFIX", "pathwise"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:    os.Getenv("OPENAI_BASE_URL"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		NATSURL:       os.Getenv("NATS_URL"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		MaxBodyBytes:  maxBody,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oaiClient := oai.New(oai.Options{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBase,
	})

	// --- Embedder ---
	var embedder vector.Embedder
	switch cfg.EmbedBackend {
	case "ollama":
		embedder = ollama.NewEmbedClient(cfg.OllamaURL, cfg.OllamaModel)
	default:
		embedder = oaiClient
	}

	// --- Vector backend ---
	var backend corpus.VectorBackend
	switch cfg.VectorBackend {
	case "qdrant":
		store, err := semantic.New(cfg.QdrantURL)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer store.Close()
		backend = semantic.NewBackend(store, embedder, cfg.QdrantPrefix)
	default:
		backend = corpus.LocalVectorBackend(embedder)
	}

	reg := metrics.New()
	pipe := metrics.NewPipeline(reg)

	manager := corpus.NewManager()
	builder := corpus.NewBuilder(backend, corpus.DefaultBuildOptions(), logger)

	app := &application{
		svc: rag.New(manager, oaiClient, oaiClient,
			verify.New(verify.DefaultOptions()), rag.DefaultOptions(), logger),
		manager: manager,
		builder: builder,
		metrics: pipe,
		logger:  logger,
	}

	// --- Bootstrap corpus from disk ---
	if docs, err := corpus.LoadDir(cfg.DataDir); err != nil {
		logger.Warn("no corpus bootstrap, waiting for ingestion", "dir", cfg.DataDir, "err", err)
	} else if err := app.rebuild(ctx, docs); err != nil {
		logger.Warn("corpus bootstrap failed, waiting for ingestion", "err", err)
	}

	// --- Ingestion transport ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		sub, err := natsutil.Subscribe(nc, corpus.SnapshotSubject, func(ctx context.Context, snap corpus.Snapshot) {
			logger.Info("corpus snapshot received", "docs", len(snap.Documents))
			if err := app.rebuild(ctx, snap.Documents); err != nil {
				logger.Error("corpus rebuild failed", "err", err)
			}
		})
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", app.handleHealth)
	mux.HandleFunc("POST /api/ask", app.handleAsk)
	mux.HandleFunc("POST /api/advice", app.handleAdvice)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.MaxBody(cfg.MaxBodyBytes),
		mid.OTel("pathwise-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
