package retrieval

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docindex/internal/chunk"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/store"
)

// extracted is the outcome of chunking one source.
type extracted struct {
	chunks chunk.SourceChunks
	err    error
}

// Index extracts, chunks, embeds and stores each path. Extraction runs
// concurrently; store mutation happens in input order. A failing source or
// chunk is counted as skipped and the batch continues. A mode or dimension
// mismatch aborts the call and discards everything it appended.
func (e *Engine) Index(ctx context.Context, paths []string, opts IndexOptions) (IndexResult, error) {
	return e.IndexBatch(ctx, paths, nil, opts)
}

// IndexDocuments indexes already-extracted text.
func (e *Engine) IndexDocuments(ctx context.Context, docs []Document, opts IndexOptions) (IndexResult, error) {
	return e.IndexBatch(ctx, nil, docs, opts)
}

// IndexBatch indexes paths followed by docs as a single batch: one flush at
// the end, and a mismatch anywhere discards the whole batch.
func (e *Engine) IndexBatch(ctx context.Context, paths []string, docs []Document, opts IndexOptions) (IndexResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.store.Load(ctx); err != nil {
		return IndexResult{}, err
	}

	results := make([]extracted, len(paths), len(paths)+len(docs))
	g := new(errgroup.Group)
	g.SetLimit(e.extractWorkers)
	for i, path := range paths {
		g.Go(func() error {
			sc, err := e.chunks.ChunkFile(ctx, path)
			if err != nil {
				sc.Source = filepath.Base(path)
			}
			results[i] = extracted{chunks: sc, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return IndexResult{}, err
	}

	for _, d := range docs {
		results = append(results, extracted{chunks: e.chunks.ChunkText(d.Source, d.Text)})
	}
	return e.ingest(ctx, results, opts)
}

func (e *Engine) ingest(ctx context.Context, sources []extracted, opts IndexOptions) (IndexResult, error) {
	start := time.Now()
	var res IndexResult

	for _, src := range sources {
		if src.err != nil {
			res.Skipped++
			res.Failures = append(res.Failures, failure(src.chunks.Source, -1, src.err))
			e.logger.Warn("source_skipped",
				append([]any{slog.String("source", src.chunks.Source)}, errAttrs(src.err)...)...)
			continue
		}

		for _, c := range src.chunks.All() {
			hash := c.Hash()
			if e.store.Contains(hash) {
				res.Skipped++
				continue
			}

			vec, err := e.embed.Embed(ctx, c.Text, opts.Preference)
			if err != nil {
				if ctx.Err() != nil {
					e.store.InvalidateCache()
					return IndexResult{}, ctx.Err()
				}
				res.Skipped++
				res.Failures = append(res.Failures, failure(c.Source, c.Index, err))
				e.logger.Warn("chunk_embedding_failed",
					append([]any{slog.String("source", c.Source), slog.Int("chunk", c.Index)}, errAttrs(err)...)...)
				continue
			}

			added, err := e.store.Append(ctx, store.Record{
				Source:   c.Source,
				ChunkID:  c.Index,
				Text:     c.Text,
				TextHash: hash,
			}, vec)
			if err != nil {
				e.store.InvalidateCache()
				e.logger.Error("index_aborted",
					append([]any{slog.String("source", c.Source), slog.Int("chunk", c.Index)}, errAttrs(err)...)...)
				return IndexResult{}, err
			}
			if !added {
				res.Skipped++
				continue
			}
			res.Indexed++
		}
	}

	if err := e.store.Flush(ctx); err != nil {
		return IndexResult{}, err
	}
	res.Mode, _, _ = e.store.Locked()

	e.logger.Info("index_completed",
		slog.Int("sources", len(sources)),
		slog.Int("indexed", res.Indexed),
		slog.Int("skipped", res.Skipped),
		slog.String("mode", string(res.Mode)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func failure(source string, chunkIdx int, err error) SourceFailure {
	return SourceFailure{
		Source: source,
		Chunk:  chunkIdx,
		Code:   docerrors.GetCode(err),
		Error:  err.Error(),
	}
}

func errAttrs(err error) []any {
	attrs := docerrors.LogAttrs(err)
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
