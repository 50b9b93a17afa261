package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/retrieval"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/pkg/version"
)

const serverName = "docindex"

// Query limits.
const (
	maxK = 50
)

// Engine is the subset of retrieval.Engine the server needs.
type Engine interface {
	IndexBatch(ctx context.Context, paths []string, docs []retrieval.Document, opts retrieval.IndexOptions) (retrieval.IndexResult, error)
	Query(ctx context.Context, text string, k int) ([]retrieval.Result, error)
	Flush(ctx context.Context) error
	InvalidateCache()
	Stats(ctx context.Context) retrieval.Stats
	Sources(ctx context.Context) ([]retrieval.SourceInfo, error)
	SourceRecords(ctx context.Context, source string) ([]store.Record, error)
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolIndexDocuments,
		Description: "Extract, chunk, embed and store documents. Accepts local file paths and/or inline text. Duplicate chunks are skipped; a bad source is skipped without failing the batch.",
	},
	{
		Name:        ToolQuery,
		Description: "Search the indexed documents. Ranks chunks by embedding similarity plus a bonus for each query word found in the chunk.",
	},
	{
		Name:        ToolFlush,
		Description: "Write pending index changes to disk.",
	},
	{
		Name:        ToolInvalidateCache,
		Description: "Drop the in-memory index so the next call reloads it from disk, e.g. after a restore.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Report record count, embedding mode, provider availability and indexed sources.",
	},
}

// Server is the MCP server for docindex.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger
}

// NewServer creates a server over engine and registers its tools and resources.
func NewServer(engine Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.Version}, nil)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) { return serverName, version.Version }

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), toolInfos...)
}

// CallTool invokes a tool by name with JSON-shaped arguments, bypassing the
// transport.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolIndexDocuments:
		in, err := decodeArgs[IndexDocumentsInput](args)
		if err != nil {
			return nil, err
		}
		_, out, err := s.handleIndexDocuments(ctx, nil, in)
		return out, err
	case ToolQuery:
		in, err := decodeArgs[QueryInput](args)
		if err != nil {
			return nil, err
		}
		_, out, err := s.handleQuery(ctx, nil, in)
		return out, err
	case ToolFlush:
		_, out, err := s.handleFlush(ctx, nil, FlushInput{})
		return out, err
	case ToolInvalidateCache:
		_, out, err := s.handleInvalidateCache(ctx, nil, InvalidateCacheInput{})
		return out, err
	case ToolIndexStatus:
		_, out, err := s.handleIndexStatus(ctx, nil, IndexStatusInput{})
		return out, err
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	data, err := json.Marshal(args)
	if err != nil {
		return in, NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, NewInvalidParamsError(err.Error())
	}
	return in, nil
}

func (s *Server) registerTools() {
	desc := make(map[string]string, len(toolInfos))
	for _, t := range toolInfos {
		desc[t.Name] = t.Description
	}

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexDocuments, Description: desc[ToolIndexDocuments]}, s.handleIndexDocuments)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolQuery, Description: desc[ToolQuery]}, s.handleQuery)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolFlush, Description: desc[ToolFlush]}, s.handleFlush)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolInvalidateCache, Description: desc[ToolInvalidateCache]}, s.handleInvalidateCache)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: desc[ToolIndexStatus]}, s.handleIndexStatus)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

func (s *Server) handleIndexDocuments(ctx context.Context, _ *mcp.CallToolRequest, in IndexDocumentsInput) (
	*mcp.CallToolResult,
	IndexDocumentsOutput,
	error,
) {
	if len(in.Paths) == 0 && len(in.Documents) == 0 {
		return nil, IndexDocumentsOutput{}, NewInvalidParamsError("paths or documents are required")
	}
	pref, ok := embed.ParsePreference(in.Prefer)
	if !ok {
		return nil, IndexDocumentsOutput{}, NewInvalidParamsError(fmt.Sprintf("prefer must be empty, provider or deterministic, got %q", in.Prefer))
	}

	requestID := generateRequestID()
	start := time.Now()
	opts := retrieval.IndexOptions{Preference: pref}

	total, err := s.engine.IndexBatch(ctx, in.Paths, in.Documents, opts)
	if err != nil {
		s.logFailure(ToolIndexDocuments, requestID, start, err)
		return nil, IndexDocumentsOutput{}, MapError(err)
	}

	s.logger.Info("mcp_index_documents",
		slog.String("request_id", requestID),
		slog.Int("indexed", total.Indexed),
		slog.Int("skipped", total.Skipped),
		slog.Duration("duration", time.Since(start)))

	return nil, IndexDocumentsOutput{
		Indexed:  total.Indexed,
		Skipped:  total.Skipped,
		Mode:     string(total.Mode),
		Failures: total.Failures,
		Summary:  FormatIndexResult(total),
	}, nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if in.Query == "" {
		return nil, QueryOutput{}, NewInvalidParamsError("query parameter is required")
	}
	k := clampLimit(in.K, 0, 1, maxK)

	requestID := generateRequestID()
	start := time.Now()
	results, err := s.engine.Query(ctx, in.Query, k)
	if err != nil {
		s.logFailure(ToolQuery, requestID, start, err)
		return nil, QueryOutput{}, MapError(err)
	}

	s.logger.Info("mcp_query",
		slog.String("request_id", requestID),
		slog.Int("k", k),
		slog.Int("result_count", len(results)),
		slog.Duration("duration", time.Since(start)))

	return nil, QueryOutput{
		Query:    in.Query,
		Count:    len(results),
		Results:  results,
		Markdown: FormatQueryResults(in.Query, results),
	}, nil
}

func (s *Server) handleFlush(ctx context.Context, _ *mcp.CallToolRequest, _ FlushInput) (
	*mcp.CallToolResult,
	FlushOutput,
	error,
) {
	if err := s.engine.Flush(ctx); err != nil {
		return nil, FlushOutput{}, MapError(err)
	}
	st := s.engine.Stats(ctx).Store
	return nil, FlushOutput{Records: st.Records, Dirty: st.Dirty}, nil
}

func (s *Server) handleInvalidateCache(_ context.Context, _ *mcp.CallToolRequest, _ InvalidateCacheInput) (
	*mcp.CallToolResult,
	InvalidateCacheOutput,
	error,
) {
	s.engine.InvalidateCache()
	s.logger.Info("mcp_cache_invalidated")
	return nil, InvalidateCacheOutput{Invalidated: true}, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	st := s.engine.Stats(ctx)
	sources, err := s.engine.Sources(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	if sources == nil {
		sources = []retrieval.SourceInfo{}
	}

	quality := "none"
	switch st.Store.Mode {
	case embed.ModeProvider:
		quality = "high"
	case embed.ModeDeterministic:
		quality = "keyword"
	}

	return nil, IndexStatusOutput{
		Store:   storeInfo(st.Store),
		Sources: sources,
		Embeddings: EmbeddingInfo{
			HasProvider:             st.HasProvider,
			Provider:                st.Provider,
			ActiveMode:              string(st.Store.Mode),
			DeterministicDimensions: st.Dimensions,
			SemanticQuality:         quality,
		},
	}, nil
}

func (s *Server) logFailure(tool, requestID string, start time.Time, err error) {
	s.logger.Error("mcp_tool_failed",
		slog.String("tool", tool),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("error", err.Error()))
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
