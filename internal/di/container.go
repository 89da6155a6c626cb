// Package di wires the codebase retrieval core's collaborators from a
// loaded config.Config, the way the teacher's container builds its
// vector store, embedding service, and managers from one place rather
// than scattering constructor calls through main.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"codecortex/internal/assembler"
	"codecortex/internal/chunking"
	"codecortex/internal/circuitbreaker"
	"codecortex/internal/config"
	"codecortex/internal/embeddings"
	"codecortex/internal/formatting"
	"codecortex/internal/indexer"
	"codecortex/internal/logging"
	"codecortex/internal/ranker"
	"codecortex/internal/resilience"
	"codecortex/internal/retriever"
	"codecortex/internal/search"
	"codecortex/internal/storage"
	"codecortex/internal/storage/pgstore"
	"codecortex/internal/storage/qdrantstore"
	"codecortex/internal/storage/sqlitestore"
)

// Container holds every collaborator built from config, constructed
// once at startup and handed out to the MCP server and CLIs.
type Container struct {
	cfg *config.Config

	Logger   logging.Logger
	Embedder embeddings.Provider

	Vectors  storage.VectorStore
	Metadata storage.MetadataStore
	Graph    storage.GraphStore

	Chunker    *chunking.Chunker
	Checkpoint *indexer.CheckpointStore
	Indexer    *indexer.Indexer

	Executor  *search.Executor
	Ranker    *ranker.Ranker
	Assembler *assembler.Assembler
	Retriever *retriever.Retriever

	Lock            *resilience.PipelineLock
	Guard           *resilience.PipelineGuard
	Status          *resilience.StatusReporter
	Escalator       *resilience.ErrorEscalator
	Feedback        *resilience.FeedbackStore
	GapDetector     *resilience.GapDetector
	HealthCheck     *resilience.HealthCheck
	Instrumentation *resilience.Instrumentation
}

// New builds a Container from cfg. Store and embedding construction is
// the only part that can fail (dial errors, bad paths); everything
// downstream of those collaborators is pure wiring.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level))

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("di: build embedder: %w", err)
	}

	vectors, err := buildVectorStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("di: build vector store: %w", err)
	}

	metadata, err := buildMetadataStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("di: build metadata store: %w", err)
	}

	graph := storage.NewMemoryGraphStore()

	chunker := chunking.New(chunking.DefaultConfig())
	checkpoint := indexer.NewCheckpointStore(cfg.Index.CheckpointPath)
	idx := indexer.New(chunker, embedder, vectors, metadata, graph, checkpoint, logger, indexer.Config{
		BatchSize: cfg.Index.BatchSize,
		Pipeline:  cfg.Index.PipelineDepth,
	})

	executor := search.New(embedder, vectors, metadata, graph)
	rk := ranker.New()
	asm := assembler.New(metadata)

	formatterName := formatting.Name(cfg.Retrieval.Formatter)
	rtr := retriever.New(executor, rk, asm, graph, metadata, formatterName, logger)

	redisClient := buildRedisClient(cfg)
	feedback := resilience.NewFeedbackStore(cfg.Resilience.FeedbackLogPath)

	return &Container{
		cfg:      cfg,
		Logger:   logger,
		Embedder: embedder,

		Vectors:  vectors,
		Metadata: metadata,
		Graph:    graph,

		Chunker:    chunker,
		Checkpoint: checkpoint,
		Indexer:    idx,

		Executor:  executor,
		Ranker:    rk,
		Assembler: asm,
		Retriever: rtr,

		Lock:            resilience.NewPipelineLock(lockPath(cfg), "codecortex"),
		Guard:           resilience.NewPipelineGuard(redisClient),
		Status:          resilience.NewStatusReporter(manifestPath(cfg)),
		Escalator:       resilience.NewErrorEscalator(),
		Feedback:        feedback,
		GapDetector:     resilience.NewGapDetector(feedback),
		HealthCheck:     resilience.NewHealthCheck(vectors, metadata, graph),
		Instrumentation: resilience.NewInstrumentation(),
	}, nil
}

// Config returns the configuration the container was built from, for
// callers (the HTTP entrypoint's auth middleware) that need a setting
// not otherwise exposed as a collaborator.
func (c *Container) Config() *config.Config {
	return c.cfg
}

// HealthCheckAll probes every configured store, returning an error
// summarizing any that did not report ok. Startup uses this as a
// best-effort readiness signal, not a hard gate.
func (c *Container) HealthCheckAll(ctx context.Context) error {
	report := c.HealthCheck.Check(ctx)
	if report.Vector != resilience.ComponentOK || report.Metadata != resilience.ComponentOK || report.Graph != resilience.ComponentOK {
		return fmt.Errorf("di: health check degraded: vector=%s metadata=%s graph=%s", report.Vector, report.Metadata, report.Graph)
	}
	return nil
}

func buildEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	var base embeddings.Provider
	switch cfg.Embedding.Provider {
	case "mock", "":
		base = embeddings.NewMockProvider(cfg.Embedding.Dimensions)
	case "openai":
		provider, err := embeddings.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Embedding.Timeout)
		if err != nil {
			return nil, err
		}
		base = provider
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Embedding.Provider)
	}

	cached := embeddings.NewCachedProvider(base, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL)
	return embeddings.NewRetryableProvider(cached, &circuitbreaker.Config{
		FailureThreshold:      5,
		SuccessThreshold:      2,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 8,
	}), nil
}

func buildVectorStore(ctx context.Context, cfg *config.Config) (storage.VectorStore, error) {
	switch cfg.VectorDB.Backend {
	case "memory", "":
		return storage.NewMemoryVectorStore(cfg.VectorDB.Dimensions), nil
	case "qdrant":
		return qdrantstore.New(ctx, qdrantstore.Config{
			Host:       cfg.VectorDB.Host,
			Port:       cfg.VectorDB.Port,
			APIKey:     cfg.VectorDB.APIKey,
			UseTLS:     cfg.VectorDB.UseTLS,
			Collection: cfg.VectorDB.Collection,
			Dimensions: cfg.VectorDB.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q", cfg.VectorDB.Backend)
	}
}

func buildMetadataStore(cfg *config.Config) (storage.MetadataStore, error) {
	switch cfg.Metadata.Backend {
	case "memory", "":
		return storage.NewMemoryMetadataStore(), nil
	case "postgres":
		return pgstore.Open(cfg.Metadata.DatabaseURL, cfg.Metadata.MaxOpenConns, cfg.Metadata.MaxIdleConns)
	case "sqlite":
		return sqlitestore.Open(cfg.Metadata.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported metadata store backend %q", cfg.Metadata.Backend)
	}
}

// buildRedisClient returns nil when no Redis URL is configured:
// PipelineGuard falls back to its in-memory cooldown map in that case.
func buildRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Resilience.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.Resilience.RedisURL)
	if err != nil {
		return nil
	}
	return redis.NewClient(opts)
}

func lockPath(cfg *config.Config) string {
	return cfg.Index.Dir + "/pipeline.lock"
}

func manifestPath(cfg *config.Config) string {
	return cfg.Index.Dir + "/manifest.json"
}
