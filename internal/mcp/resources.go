package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "docindex://"

// SourcesURI lists indexed sources.
const SourcesURI = uriScheme + "sources"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         SourcesURI,
		Name:        "sources",
		Description: "Indexed sources with their chunk counts",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: SourcesURI + "/{source}",
		Name:        "source-chunks",
		Description: "Stored chunk text of one source, in chunk order",
		MIMEType:    "text/plain",
	}, s.handleSourceResource)
}

func (s *Server) handleSourcesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sources, err := s.engine.Sources(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	if sources == nil {
		return textResult(req.Params.URI, "application/json", "[]"), nil
	}
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sources: %w", err)
	}
	return textResult(req.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleSourceResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	source := extractSource(req.Params.URI)
	if source == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	records, err := s.engine.SourceRecords(ctx, source)
	if err != nil {
		return nil, MapError(err)
	}
	if len(records) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[chunk %d]\n%s", r.ChunkID, r.Text)
	}
	return textResult(req.Params.URI, "text/plain", sb.String()), nil
}

func textResult(uri, mime, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mime, Text: text}},
	}
}

// extractSource returns the unescaped source name from docindex://sources/{source}.
func extractSource(uri string) string {
	const prefix = SourcesURI + "/"
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	source, err := url.PathUnescape(rest)
	if err != nil {
		return ""
	}
	return source
}
