// Package store persists chunk records and their vectors.
//
// A Store keeps an exact flat index and a metadata list in lockstep: the
// record at position i describes the vector at position i. Both are written
// to a storage directory and reloaded lazily on first use.
package store

import (
	"time"

	"github.com/Aman-CERP/docindex/internal/embed"
)

// Record describes one stored chunk.
type Record struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	ChunkID  int    `json:"chunkId"`
	Text     string `json:"text"`
	TextHash string `json:"textHash"`
}

// Metadata is the persisted form of the record list.
type Metadata struct {
	Dimension int        `json:"dimension"`
	Mode      embed.Mode `json:"mode"`
	Records   []Record   `json:"records"`
}

// Candidate is a search hit joined with its record.
type Candidate struct {
	Record Record
	Score  float32
	// Pos is the insertion position, used as the tie-breaker.
	Pos int
}

// LoadReport describes what Load found on disk.
type LoadReport struct {
	Records int
	// Truncated is the number of metadata records dropped to match the index.
	Truncated int
	Empty     bool
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Dir           string     `json:"dir"`
	Records       int        `json:"records"`
	Dimension     int        `json:"dimension"`
	Mode          embed.Mode `json:"mode,omitempty"`
	Loaded        bool       `json:"loaded"`
	Dirty         bool       `json:"dirty"`
	IndexBytes    int64      `json:"index_bytes"`
	MetadataBytes int64      `json:"metadata_bytes"`
	LastFlush     time.Time  `json:"last_flush,omitzero"`
	LastLoadError string     `json:"last_load_error,omitempty"`
}
