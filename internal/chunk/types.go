package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Window defaults, in whitespace tokens.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunk is one retrievable window of a source document.
// Identity is the content hash of Text, not Source+Index: two sources that
// produce the same text yield one stored chunk.
type Chunk struct {
	Source string
	Index  int
	Text   string
}

// Hash returns the content hash used for deduplication.
func (c Chunk) Hash() string {
	return ContentHash(c.Text)
}

// ContentHash returns the lowercase hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SourceChunks is the chunked form of one source document.
type SourceChunks struct {
	Source string
	Chunks []string
}

// All returns the windows as Chunk values in order.
func (s SourceChunks) All() []Chunk {
	out := make([]Chunk, len(s.Chunks))
	for i, text := range s.Chunks {
		out[i] = Chunk{Source: s.Source, Index: i, Text: text}
	}
	return out
}

// Extractor turns a file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
