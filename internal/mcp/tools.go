package mcp

import (
	"time"

	"github.com/Aman-CERP/docindex/internal/retrieval"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Tool names.
const (
	ToolIndexDocuments  = "index_documents"
	ToolQuery           = "query"
	ToolFlush           = "flush"
	ToolInvalidateCache = "invalidate_cache"
	ToolIndexStatus     = "index_status"
)

// IndexDocumentsInput defines the input schema for index_documents.
type IndexDocumentsInput struct {
	Paths     []string             `json:"paths,omitempty" jsonschema:"local file paths to extract and index (txt, md, csv, tsv, xlsx, pdf)"`
	Documents []retrieval.Document `json:"documents,omitempty" jsonschema:"already-extracted text to index, each with a source label"`
	Prefer    string               `json:"prefer,omitempty" jsonschema:"embedding path: empty for automatic, provider or deterministic"`
}

// IndexDocumentsOutput defines the output schema for index_documents.
type IndexDocumentsOutput struct {
	Indexed  int                       `json:"indexed" jsonschema:"chunks newly stored"`
	Skipped  int                       `json:"skipped" jsonschema:"duplicate chunks plus failed sources and chunks"`
	Mode     string                    `json:"mode,omitempty" jsonschema:"embedding mode the store is locked to"`
	Failures []retrieval.SourceFailure `json:"failures,omitempty"`
	Summary  string                    `json:"summary"`
}

// QueryInput defines the input schema for query.
type QueryInput struct {
	Query string `json:"query" jsonschema:"natural language or keyword query"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of results, default 5"`
}

// QueryOutput defines the output schema for query.
type QueryOutput struct {
	Query    string             `json:"query"`
	Count    int                `json:"count"`
	Results  []retrieval.Result `json:"results"`
	Markdown string             `json:"markdown"`
}

// FlushInput takes no parameters.
type FlushInput struct{}

// FlushOutput reports the store after a flush.
type FlushOutput struct {
	Records int  `json:"records"`
	Dirty   bool `json:"dirty"`
}

// InvalidateCacheInput takes no parameters.
type InvalidateCacheInput struct{}

// InvalidateCacheOutput confirms the cache was dropped.
type InvalidateCacheOutput struct {
	Invalidated bool `json:"invalidated"`
}

// IndexStatusInput takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for index_status.
type IndexStatusOutput struct {
	Store      StoreInfo              `json:"store"`
	Sources    []retrieval.SourceInfo `json:"sources"`
	Embeddings EmbeddingInfo          `json:"embeddings"`
}

// StoreInfo is the serializable view of store.Stats.
type StoreInfo struct {
	Dir           string `json:"dir"`
	Records       int    `json:"records"`
	Dimension     int    `json:"dimension"`
	Loaded        bool   `json:"loaded"`
	Dirty         bool   `json:"dirty"`
	IndexBytes    int64  `json:"index_bytes"`
	MetadataBytes int64  `json:"metadata_bytes"`
	LastFlush     string `json:"last_flush,omitempty"`
	LastLoadError string `json:"last_load_error,omitempty"`
}

func storeInfo(st store.Stats) StoreInfo {
	info := StoreInfo{
		Dir:           st.Dir,
		Records:       st.Records,
		Dimension:     st.Dimension,
		Loaded:        st.Loaded,
		Dirty:         st.Dirty,
		IndexBytes:    st.IndexBytes,
		MetadataBytes: st.MetadataBytes,
		LastLoadError: st.LastLoadError,
	}
	if !st.LastFlush.IsZero() {
		info.LastFlush = st.LastFlush.Format(time.RFC3339)
	}
	return info
}

// EmbeddingInfo describes the active embedding configuration so clients can
// judge result quality.
type EmbeddingInfo struct {
	HasProvider bool   `json:"has_provider"`
	Provider    string `json:"provider,omitempty"`
	// ActiveMode is the store's locked mode, empty while the store is empty.
	ActiveMode              string `json:"active_mode,omitempty"`
	DeterministicDimensions int    `json:"deterministic_dimensions"`
	// SemanticQuality is "high" for provider vectors, "keyword" for the
	// deterministic fallback and "none" for an empty store.
	SemanticQuality string `json:"semantic_quality"`
}
