package embed

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/logging"
)

func TestSelectProvider_Precedence(t *testing.T) {
	full := config.ProvidersConfig{
		Custom:     config.EndpointConfig{Endpoint: "https://custom", APIKey: "c"},
		Primary:    config.EndpointConfig{Endpoint: "https://primary", APIKey: "p", AssistantID: "asst"},
		OpenAI:     config.EndpointConfig{APIKey: "o"},
		OpenRouter: config.OpenRouterConfig{EndpointConfig: config.EndpointConfig{APIKey: "r"}},
		Ollama:     config.OllamaConfig{Host: "http://localhost:11434"},
	}

	tests := []struct {
		name  string
		strip func(*config.ProvidersConfig)
		want  ProviderType
	}{
		{"all configured", func(*config.ProvidersConfig) {}, ProviderCustom},
		{"custom missing key", func(p *config.ProvidersConfig) { p.Custom.APIKey = "" }, ProviderPrimary},
		{"primary missing assistant", func(p *config.ProvidersConfig) {
			p.Custom = config.EndpointConfig{}
			p.Primary.AssistantID = ""
		}, ProviderOpenAI},
		{"openrouter only", func(p *config.ProvidersConfig) {
			p.Custom, p.Primary, p.OpenAI = config.EndpointConfig{}, config.EndpointConfig{}, config.EndpointConfig{}
		}, ProviderOpenRouter},
		{"ollama only", func(p *config.ProvidersConfig) {
			*p = config.ProvidersConfig{Ollama: p.Ollama}
		}, ProviderOllama},
		{"nothing", func(p *config.ProvidersConfig) { *p = config.ProvidersConfig{} }, ProviderNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := full
			tt.strip(&p)
			assert.Equal(t, tt.want, SelectProvider(p))
		})
	}
}

func TestNewProvider_NoneReturnsNil(t *testing.T) {
	p, kind, err := NewProvider(config.NewConfig().Embeddings, nil)

	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, ProviderNone, kind)
}

func TestNewProvider_PrimarySendsAssistantHeader(t *testing.T) {
	var gotAssistant string
	srv := openAIServer(t, 8, nil, func(r *http.Request) {
		gotAssistant = r.Header.Get("X-Assistant-Id")
	})
	cfg := config.NewConfig().Embeddings
	cfg.Providers.Primary = config.EndpointConfig{Endpoint: srv.URL, APIKey: "k", AssistantID: "asst_42", Model: "m"}

	p, kind, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, ProviderPrimary, kind)
	assert.Equal(t, "asst_42", gotAssistant)
}

func TestNewServiceFromConfig_WiresCaches(t *testing.T) {
	// Given: an OpenAI-compatible server and a redis
	srv := openAIServer(t, 12, nil, nil)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.NewConfig()
	cfg.Embeddings.Providers.Custom = config.EndpointConfig{Endpoint: srv.URL, APIKey: "k", Model: "m"}
	cfg.Embeddings.RedisURL = "redis://" + mr.Addr() + "/0"

	// When: building the service and embedding
	svc, err := NewServiceFromConfig(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer svc.Close()
	v, err := svc.EmbedStrict(context.Background(), "cache me")

	// Then: the provider answered and redis now holds the vector
	require.NoError(t, err)
	assert.Equal(t, ModeProvider, v.Mode)
	assert.Len(t, v.Values, 12)
	assert.Equal(t, "custom/m", svc.ProviderName())
	assert.Len(t, mr.Keys(), 1)
}

func TestNewServiceFromConfig_RedisDownStillWorks(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.RedisURL = "redis://127.0.0.1:1/0"
	cfg.Embeddings.Providers.OpenAI.APIKey = "k"

	svc, err := NewServiceFromConfig(context.Background(), cfg, logging.Discard())

	require.NoError(t, err)
	assert.True(t, svc.HasProvider())
}

func TestNewServiceFromConfig_NoProvider(t *testing.T) {
	svc, err := NewServiceFromConfig(context.Background(), config.NewConfig(), logging.Discard())

	require.NoError(t, err)
	assert.False(t, svc.HasProvider())
	assert.Equal(t, 384, svc.Dimensions())
}
