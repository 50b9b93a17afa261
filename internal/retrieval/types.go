// Package retrieval ties chunking, embedding and the vector store together.
//
// Engine.Index ingests a batch of sources with per-source error isolation and
// a single flush. Engine.Query embeds the query in the store's locked mode,
// runs an exact similarity search and applies a lexical boost.
package retrieval

import (
	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Defaults for query ranking.
const (
	DefaultK            = 5
	DefaultLexicalBoost = 0.05
	DefaultMinScore     = 0.01
)

// Document is already-extracted text to index under a source label.
type Document struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// IndexOptions tunes one Index call.
type IndexOptions struct {
	// Preference forces an embedding path. The zero value embeds
	// opportunistically.
	Preference embed.Preference
}

// SourceFailure records one skipped source or chunk.
type SourceFailure struct {
	Source string `json:"source"`
	// Chunk is the failing chunk index, or -1 when the whole source failed.
	Chunk int    `json:"chunk"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// IndexResult summarizes an Index call.
type IndexResult struct {
	Indexed  int             `json:"indexed"`
	Skipped  int             `json:"skipped"`
	Mode     embed.Mode      `json:"mode"`
	Failures []SourceFailure `json:"failures,omitempty"`
}

// Result is one ranked query hit.
type Result struct {
	Source  string  `json:"source"`
	ChunkID int     `json:"chunkId"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// SourceInfo summarizes one indexed source.
type SourceInfo struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// Stats combines store and embedding state.
type Stats struct {
	Store       store.Stats `json:"store"`
	HasProvider bool        `json:"has_provider"`
	Provider    string      `json:"provider,omitempty"`
	Dimensions  int         `json:"deterministic_dimensions"`
}
