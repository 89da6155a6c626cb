// Package indexer drives chunking, embedding, and store writes with
// checkpointing, the way the teacher's persistence layer drives
// write-then-checkpoint for long-running imports.
package indexer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"codecortex/internal/chunking"
	"codecortex/internal/embeddings"
	cerrors "codecortex/internal/errors"
	"codecortex/internal/logging"
	"codecortex/internal/storage"
	"codecortex/pkg/codeunit"
)

// pendingChunk pairs a chunk awaiting embedding with the unit it was
// derived from, so a batch can still mirror unit metadata after the
// chunk loop has lost track of which unit produced which chunk.
type pendingChunk struct {
	unit  *codeunit.Unit
	chunk *codeunit.Chunk
}

const (
	// DefaultBatchSize is B from spec.md §4.4.
	DefaultBatchSize = 64
	// DefaultPipeline is P from spec.md §5: up to this many embed_batch
	// calls may be in flight at once.
	DefaultPipeline = 4
)

// Config tunes batch size and pipeline depth.
type Config struct {
	BatchSize int
	Pipeline  int
}

// DefaultConfig matches spec.md's defaults (B=64, P=4).
func DefaultConfig() Config {
	return Config{BatchSize: DefaultBatchSize, Pipeline: DefaultPipeline}
}

// Result summarizes one index_all/index_incremental run.
type Result struct {
	UnitsProcessed int
	UnitsSkipped   int
	ChunksIndexed  int
	ChunksSkipped  int
	BatchesFailed  int
}

// Indexer computes chunks, embeds them, and writes vectors/metadata/graph
// edges, checkpointing after each successful batch.
type Indexer struct {
	chunker    *chunking.Chunker
	embedder   embeddings.Provider
	vectors    storage.VectorStore
	metadata   storage.MetadataStore
	graph      storage.GraphStore
	checkpoint *CheckpointStore
	logger     logging.Logger
	cfg        Config
}

// New builds an Indexer from its collaborators, the teacher's
// constructor-takes-all-collaborators idiom.
func New(chunker *chunking.Chunker, embedder embeddings.Provider, vectors storage.VectorStore, metadata storage.MetadataStore, graph storage.GraphStore, checkpoint *CheckpointStore, logger logging.Logger, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Pipeline <= 0 {
		cfg.Pipeline = DefaultPipeline
	}
	return &Indexer{
		chunker:    chunker,
		embedder:   embedder,
		vectors:    vectors,
		metadata:   metadata,
		graph:      graph,
		checkpoint: checkpoint,
		logger:     logger,
		cfg:        cfg,
	}
}

// IndexAll processes every unit regardless of checkpoint state, the way
// a full reindex ignores prior progress on source_hash but still skips
// chunks whose content_hash was already embedded.
func (idx *Indexer) IndexAll(ctx context.Context, units []*codeunit.Unit) (*Result, error) {
	return idx.run(ctx, units)
}

// IndexIncremental only submits units whose source_hash differs from
// the last checkpointed value for that identifier.
func (idx *Indexer) IndexIncremental(ctx context.Context, units []*codeunit.Unit) (*Result, error) {
	cp, err := idx.checkpoint.Load()
	if err != nil {
		return nil, cerrors.NewPermanentError("load checkpoint", err)
	}

	changed := make([]*codeunit.Unit, 0, len(units))
	skipped := 0
	for _, u := range units {
		if cp.UnitChanged(u.Identifier, u.SourceHash) {
			changed = append(changed, u)
		} else {
			skipped++
		}
	}

	result, err := idx.run(ctx, changed)
	if result != nil {
		result.UnitsSkipped += skipped
	}
	return result, err
}

// run is the shared body of IndexAll/IndexIncremental: chunk every
// unit, batch the resulting chunks, embed and store each batch (up to
// Pipeline in flight), checkpoint after each success, then rebuild the
// graph store from the units that made it through.
func (idx *Indexer) run(ctx context.Context, units []*codeunit.Unit) (*Result, error) {
	cp, err := idx.checkpoint.Load()
	if err != nil {
		return nil, cerrors.NewPermanentError("load checkpoint", err)
	}

	var all []pendingChunk
	for _, u := range units {
		for _, c := range idx.chunker.Chunk(u) {
			if cp.Has(c.ContentHash) {
				continue
			}
			all = append(all, pendingChunk{unit: u, chunk: c})
		}
	}

	result := &Result{UnitsProcessed: len(units)}

	batches := make([][]pendingChunk, 0, len(all)/idx.cfg.BatchSize+1)
	for i := 0; i < len(all); i += idx.cfg.BatchSize {
		end := i + idx.cfg.BatchSize
		if end > len(all) {
			end = len(all)
		}
		batches = append(batches, all[i:end])
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Pipeline)

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			indexed, failed := idx.processBatch(gctx, batch)

			mu.Lock()
			defer mu.Unlock()
			result.ChunksIndexed += indexed
			result.ChunksSkipped += failed
			if failed > 0 && indexed == 0 {
				result.BatchesFailed++
			}
			// Only a batch whose every chunk was stored is marked; a
			// partly failed batch is embedded again on the next run.
			if failed == 0 {
				for _, p := range batch {
					if p.chunk != nil {
						cp.Mark(p.chunk.ContentHash)
					}
				}
			}
			return idx.checkpoint.Save(cp)
		})
	}

	if err := g.Wait(); err != nil {
		return result, cerrors.NewPermanentError("index run", err)
	}

	for _, u := range units {
		cp.MarkUnit(u.Identifier, u.SourceHash)
	}
	if err := idx.checkpoint.Save(cp); err != nil {
		return result, cerrors.NewPermanentError("save final checkpoint", err)
	}

	if err := idx.graph.Rebuild(ctx, units); err != nil {
		idx.logger.ErrorContext(ctx, "graph rebuild failed", "error", err.Error())
	}

	return result, nil
}

// processBatch embeds and stores one batch of chunks. A dimension
// mismatch skips just that chunk; any other per-chunk error skips the
// chunk and is logged; the batch otherwise continues. The resilience
// wrapper around idx.embedder already retries transient failures, so a
// returned error here means the retry budget was exhausted.
func (idx *Indexer) processBatch(ctx context.Context, batch []pendingChunk) (indexed, failed int) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.chunk.Content
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		idx.logger.ErrorContext(ctx, "embed_batch failed, skipping batch", "error", err.Error(), "batch_size", len(batch))
		return 0, len(batch)
	}

	for i, p := range batch {
		vec64 := vectors[i]
		vec32 := make([]float32, len(vec64))
		for j, v := range vec64 {
			vec32[j] = float32(v)
		}

		if len(vec32) != idx.vectors.Dimensions() {
			idx.logger.WarnContext(ctx, "dimension mismatch, skipping chunk",
				"chunk_id", p.chunk.ID(), "got", len(vec32), "want", idx.vectors.Dimensions())
			failed++
			continue
		}

		meta := map[string]interface{}{
			"parent":       p.chunk.ParentIdentifier,
			"type":         string(p.chunk.ParentType),
			"chunk_type":   string(p.chunk.ChunkType),
			"content_hash": p.chunk.ContentHash,
		}
		if p.unit.FilePath != "" {
			meta["file_path"] = p.unit.FilePath
		}

		if err := idx.vectors.Store(ctx, p.chunk.ID(), vec32, meta); err != nil {
			idx.logger.ErrorContext(ctx, "vector store write failed, skipping chunk",
				"chunk_id", p.chunk.ID(), "error", err.Error())
			failed++
			continue
		}

		if err := idx.metadata.Upsert(ctx, p.unit); err != nil {
			idx.logger.ErrorContext(ctx, "metadata store write failed",
				"identifier", p.unit.Identifier, "error", err.Error())
		}

		indexed++
	}

	return indexed, failed
}
