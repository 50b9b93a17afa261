package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/Aman-CERP/docindex/internal/chunk"
	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine is the index/query API over one store.
type Engine struct {
	chunks *chunk.Service
	embed  *embed.Service
	store  *store.Store

	logger         *slog.Logger
	extractWorkers int
	defaultK       int
	lexicalBoost   float64
	minScore       float64

	// mu serializes batches and cache invalidation; queries do not take it.
	mu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExtractWorkers bounds concurrent extraction in Index.
func WithExtractWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.extractWorkers = n
		}
	}
}

// WithRanking overrides the query ranking parameters. Non-positive k and
// negative boost or score keep the defaults.
func WithRanking(defaultK int, lexicalBoost, minScore float64) EngineOption {
	return func(e *Engine) {
		if defaultK > 0 {
			e.defaultK = defaultK
		}
		if lexicalBoost >= 0 {
			e.lexicalBoost = lexicalBoost
		}
		if minScore >= 0 {
			e.minScore = minScore
		}
	}
}

// NewEngine creates an engine over the given services.
func NewEngine(chunks *chunk.Service, embedder *embed.Service, st *store.Store, opts ...EngineOption) (*Engine, error) {
	if chunks == nil || embedder == nil || st == nil {
		return nil, ErrNilDependency
	}
	e := &Engine{
		chunks:         chunks,
		embed:          embedder,
		store:          st,
		logger:         slog.Default(),
		extractWorkers: runtime.NumCPU(),
		defaultK:       DefaultK,
		lexicalBoost:   DefaultLexicalBoost,
		minScore:       DefaultMinScore,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewFromConfig builds the chunker, embedding service and store described by
// cfg and wires them into an Engine.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	embedder, err := embed.NewServiceFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st, err := store.New(store.Options{
		Dir:         cfg.Storage.Dir,
		LockTimeout: config.Duration(cfg.Storage.LockTimeout, store.DefaultLockTimeout),
		Logger:      logger,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	chunks := chunk.NewService(
		chunk.NewWindowChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		chunk.NewRegistry(),
		logger,
	)
	return NewEngine(chunks, embedder, st,
		WithLogger(logger),
		WithExtractWorkers(cfg.Performance.ExtractWorkers),
		WithRanking(cfg.Retrieval.DefaultK, cfg.Retrieval.LexicalBoost, cfg.Retrieval.MinScore),
	)
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// Flush persists pending store changes.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Flush(ctx)
}

// InvalidateCache drops the in-memory store so the next call reloads from disk.
func (e *Engine) InvalidateCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.InvalidateCache()
}

// InvalidateIfChanged reloads only after a foreign write to the store files.
func (e *Engine) InvalidateIfChanged() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.InvalidateIfChanged()
}

// Reset empties the store on disk and in memory.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Reset(ctx)
}

// ExportSnapshot flushes and returns the store files.
func (e *Engine) ExportSnapshot(ctx context.Context) (store.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ExportSnapshot(ctx)
}

// ImportSnapshot restores the store files and invalidates the cache.
func (e *Engine) ImportSnapshot(ctx context.Context, snap store.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ImportSnapshot(ctx, snap)
}

// Stats loads the store if needed and reports its state.
func (e *Engine) Stats(ctx context.Context) Stats {
	if _, err := e.store.Load(ctx); err != nil {
		e.logger.Warn("stats_load_failed", slog.String("error", err.Error()))
	}
	return Stats{
		Store:       e.store.Stats(),
		HasProvider: e.embed.HasProvider(),
		Provider:    e.embed.ProviderName(),
		Dimensions:  e.embed.Dimensions(),
	}
}

// Sources lists indexed sources in first-indexed order with their chunk counts.
func (e *Engine) Sources(ctx context.Context) ([]SourceInfo, error) {
	if _, err := e.store.Load(ctx); err != nil {
		return nil, err
	}
	var out []SourceInfo
	pos := make(map[string]int)
	for _, r := range e.store.Records() {
		i, ok := pos[r.Source]
		if !ok {
			i = len(out)
			pos[r.Source] = i
			out = append(out, SourceInfo{Source: r.Source})
		}
		out[i].Chunks++
	}
	return out, nil
}

// SourceRecords returns the stored chunks of one source ordered by chunk id.
func (e *Engine) SourceRecords(ctx context.Context, source string) ([]store.Record, error) {
	if _, err := e.store.Load(ctx); err != nil {
		return nil, err
	}
	var out []store.Record
	for _, r := range e.store.Records() {
		if r.Source == source {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b store.Record) int { return a.ChunkID - b.ChunkID })
	return out, nil
}

// Close releases the embedding provider. Unflushed changes are not written.
func (e *Engine) Close() error {
	return e.embed.Close()
}
