package embed

import (
	"context"
	"net/http"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures a local Ollama embedding backend.
type OllamaConfig struct {
	Host   string
	Model  string
	Retry  docerrors.RetryConfig
	Client *http.Client
}

// OllamaProvider calls POST {Host}/api/embed.
type OllamaProvider struct {
	cfg    OllamaConfig
	client *http.Client
}

// OllamaEmbedRequest is the request body for /api/embed.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// OllamaEmbedResponse is the response body for /api/embed.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// NewOllamaProvider returns a provider for cfg. No health check is made;
// an unreachable server surfaces on the first Embed call.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		return nil, docerrors.New(docerrors.ErrCodeProviderMissing, "ollama model is empty", nil)
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = docerrors.DefaultRetryConfig()
	}
	client := cfg.Client
	if client == nil {
		client = newHTTPClient()
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &OllamaProvider{cfg: cfg, client: client}, nil
}

// Name returns "ollama/model".
func (p *OllamaProvider) Name() string { return "ollama/" + p.cfg.Model }

// Embed requests one embedding, retrying transient failures.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return docerrors.RetryWithResult(ctx, p.cfg.Retry, func() ([]float32, error) {
		var resp OllamaEmbedResponse
		req := OllamaEmbedRequest{Model: p.cfg.Model, Input: text}
		if err := postJSON(ctx, p.client, p.cfg.Host+"/api/embed", nil, req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) == 0 {
			return nil, docerrors.New(docerrors.ErrCodeProviderMalformed, "ollama returned no embeddings", nil)
		}
		return toFloat32(resp.Embeddings[0])
	})
}

// Close releases idle connections.
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

var _ Provider = (*OllamaProvider)(nil)
