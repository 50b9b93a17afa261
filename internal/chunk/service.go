package chunk

import (
	"context"
	"log/slog"
	"path/filepath"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Service turns source files into chunk lists.
type Service struct {
	chunker  *WindowChunker
	registry *Registry
	logger   *slog.Logger
}

// NewService wires a chunker to an extractor registry.
func NewService(chunker *WindowChunker, registry *Registry, logger *slog.Logger) *Service {
	if chunker == nil {
		chunker = NewWindowChunker(DefaultSize, DefaultOverlap)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{chunker: chunker, registry: registry, logger: logger}
}

// Chunker returns the underlying window chunker.
func (s *Service) Chunker() *WindowChunker { return s.chunker }

// ChunkFile extracts path and splits it into windows. The source label is the
// file's base name. Any extraction failure is returned as ERR_207.
func (s *Service) ChunkFile(ctx context.Context, path string) (SourceChunks, error) {
	source := filepath.Base(path)

	text, err := s.registry.For(path).Extract(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return SourceChunks{}, ctx.Err()
		}
		return SourceChunks{}, docerrors.ExtractionError(source, err).WithDetail("path", path)
	}

	chunks := s.ChunkText(source, text)
	s.logger.Debug("source_chunked",
		slog.String("source", source),
		slog.Int("chunks", len(chunks.Chunks)),
		slog.Int("chars", len(text)))
	return chunks, nil
}

// ChunkText splits already-extracted text.
func (s *Service) ChunkText(source, text string) SourceChunks {
	return SourceChunks{Source: source, Chunks: s.chunker.Split(text)}
}
