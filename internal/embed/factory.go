package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/docindex/internal/config"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// ProviderType names a configured backend.
type ProviderType string

const (
	ProviderCustom     ProviderType = "custom"
	ProviderPrimary    ProviderType = "primary"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
	ProviderNone       ProviderType = "none"
)

// ProviderOrder is the resolution precedence, highest first.
var ProviderOrder = []ProviderType{
	ProviderCustom, ProviderPrimary, ProviderOpenAI, ProviderOpenRouter, ProviderOllama,
}

// SelectProvider returns the first configured provider type.
func SelectProvider(p config.ProvidersConfig) ProviderType {
	switch {
	case p.Custom.Endpoint != "" && p.Custom.APIKey != "":
		return ProviderCustom
	case p.Primary.Endpoint != "" && p.Primary.APIKey != "" && p.Primary.AssistantID != "":
		return ProviderPrimary
	case p.OpenAI.APIKey != "":
		return ProviderOpenAI
	case p.OpenRouter.APIKey != "":
		return ProviderOpenRouter
	case p.Ollama.Host != "":
		return ProviderOllama
	default:
		return ProviderNone
	}
}

// NewProvider builds the provider selected by SelectProvider, or nil for ProviderNone.
func NewProvider(cfg config.EmbeddingsConfig, limiter *RateLimiter) (Provider, ProviderType, error) {
	p := cfg.Providers
	kind := SelectProvider(p)

	var (
		provider Provider
		err      error
	)
	switch kind {
	case ProviderCustom:
		provider, err = NewOpenAIProvider(OpenAIConfig{
			Label: string(kind), BaseURL: p.Custom.Endpoint, APIKey: p.Custom.APIKey,
			Model: p.Custom.Model, Limiter: limiter,
		})
	case ProviderPrimary:
		provider, err = NewOpenAIProvider(OpenAIConfig{
			Label: string(kind), BaseURL: p.Primary.Endpoint, APIKey: p.Primary.APIKey,
			Model: p.Primary.Model, Limiter: limiter,
			Headers: map[string]string{"X-Assistant-Id": p.Primary.AssistantID},
		})
	case ProviderOpenAI:
		provider, err = NewOpenAIProvider(OpenAIConfig{
			Label: string(kind), BaseURL: p.OpenAI.Endpoint, APIKey: p.OpenAI.APIKey,
			Model: p.OpenAI.Model, Limiter: limiter,
		})
	case ProviderOpenRouter:
		provider, err = NewOpenAIProvider(OpenAIConfig{
			Label: string(kind), BaseURL: p.OpenRouter.Endpoint, APIKey: p.OpenRouter.APIKey,
			Model: p.OpenRouter.Model, Limiter: limiter,
			Headers: map[string]string{
				"HTTP-Referer": p.OpenRouter.Referer,
				"X-Title":      p.OpenRouter.Title,
			},
		})
	case ProviderOllama:
		provider, err = NewOllamaProvider(OllamaConfig{Host: p.Ollama.Host, Model: p.Ollama.Model})
	}
	if err != nil {
		return nil, kind, fmt.Errorf("configure %s embedding provider: %w", kind, err)
	}
	return provider, kind, nil
}

// NewServiceFromConfig resolves the provider once, wraps it with caching and
// rate limiting, and returns the Service. A failing Redis connection is logged
// and the service continues with the in-process cache only.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ec := cfg.Embeddings

	limiter := NewRateLimiter(ec.RateLimit, ec.RateBurst)
	provider, kind, err := NewProvider(ec, limiter)
	if err != nil {
		return nil, docerrors.ConfigError(err.Error(), err)
	}

	if provider != nil {
		var shared SharedCache
		if ec.RedisURL != "" {
			rc, err := NewRedisCacheFromURL(ctx, ec.RedisURL, config.Duration(ec.RedisTTL, 0))
			if err != nil {
				logger.Warn("embedding_cache_redis_unavailable", slog.String("error", err.Error()))
			} else {
				shared = rc
			}
		}
		if ec.CacheSize > 0 || shared != nil {
			provider = NewCachedProvider(provider, ec.CacheSize, shared, logger)
		}
	}

	logger.Info("embedding_provider_resolved",
		slog.String("provider", string(kind)),
		slog.Int("deterministic_dimensions", ec.Dimensions))

	return NewService(provider, ServiceOptions{
		Dimensions: ec.Dimensions,
		Timeout:    config.Duration(ec.Timeout, DefaultTimeout),
		Breaker: docerrors.NewCircuitBreaker("embedding_provider",
			docerrors.WithMaxFailures(5),
			docerrors.WithResetTimeout(30*time.Second),
			docerrors.WithStateChange(func(name string, from, to docerrors.State) {
				logger.Warn("embedding_circuit_state",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			})),
		Logger: logger,
	}), nil
}
