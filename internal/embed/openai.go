package embed

import (
	"context"
	"net/http"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// OpenAIConfig configures an OpenAI-compatible /embeddings endpoint.
// The same client serves custom, primary, OpenAI and OpenRouter backends;
// they differ only in base URL, key, model and extra headers.
type OpenAIConfig struct {
	// Label names the backend in logs and Vector.Provider.
	Label   string
	BaseURL string
	APIKey  string
	Model   string
	Headers map[string]string

	Retry   docerrors.RetryConfig
	Limiter *RateLimiter
	Client  *http.Client
}

// OpenAIProvider calls POST {BaseURL}/embeddings.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	url    string
	client *http.Client
}

type openAIRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIProvider validates cfg and returns a provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, docerrors.New(docerrors.ErrCodeProviderMissing, "embedding endpoint is empty", nil)
	}
	if cfg.APIKey == "" {
		return nil, docerrors.New(docerrors.ErrCodeProviderMissing, "embedding API key is empty", nil)
	}
	if cfg.Label == "" {
		cfg.Label = "openai"
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = docerrors.DefaultRetryConfig()
	}
	client := cfg.Client
	if client == nil {
		client = newHTTPClient()
	}
	return &OpenAIProvider{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
		client: client,
	}, nil
}

// Name returns "label/model".
func (p *OpenAIProvider) Name() string {
	if p.cfg.Model == "" {
		return p.cfg.Label
	}
	return p.cfg.Label + "/" + p.cfg.Model
}

// Embed requests one embedding, retrying transient failures.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return docerrors.RetryWithResult(ctx, p.cfg.Retry, func() ([]float32, error) {
		if err := p.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vec, err := p.embedOnce(ctx, text)
		if se := asStatusError(err); se != nil && se.status == http.StatusTooManyRequests {
			p.cfg.Limiter.Backoff(se.retryAfter)
		}
		return vec, err
	})
}

func (p *OpenAIProvider) embedOnce(ctx context.Context, text string) ([]float32, error) {
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	for k, v := range p.cfg.Headers {
		headers[k] = v
	}

	var resp openAIResponse
	if err := postJSON(ctx, p.client, p.url, headers, openAIRequest{Model: p.cfg.Model, Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, docerrors.New(docerrors.ErrCodeProviderMalformed, "embedding response has no data", nil)
	}
	return toFloat32(resp.Data[0].Embedding)
}

// Close releases idle connections.
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func asStatusError(err error) *statusError {
	de, ok := docerrors.As(err)
	if !ok {
		return nil
	}
	se, _ := de.Cause.(*statusError)
	return se
}

var _ Provider = (*OpenAIProvider)(nil)
