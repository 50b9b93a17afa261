package embed

import (
	"context"
	"log/slog"
	"strings"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// DefaultTimeout is the per-call provider deadline.
const DefaultTimeout = 30 * time.Second

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Dimensions of deterministic vectors (default 384).
	Dimensions int
	// Timeout bounds each provider call, retries included.
	Timeout time.Duration
	// Breaker guards the opportunistic path. Nil builds a default breaker.
	Breaker *docerrors.CircuitBreaker
	Logger  *slog.Logger
}

// Service is the single entry point for embeddings. It is safe for
// concurrent use and is constructed once per process.
type Service struct {
	provider Provider
	dims     int
	timeout  time.Duration
	breaker  *docerrors.CircuitBreaker
	logger   *slog.Logger
}

// NewService returns a Service. provider may be nil, in which case only
// deterministic vectors are produced and EmbedStrict always fails.
func NewService(provider Provider, opts ServiceOptions) *Service {
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDeterministicDimensions
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Breaker == nil {
		opts.Breaker = docerrors.NewCircuitBreaker("embedding_provider")
	}
	return &Service{
		provider: provider,
		dims:     opts.Dimensions,
		timeout:  opts.Timeout,
		breaker:  opts.Breaker,
		logger:   opts.Logger,
	}
}

// HasProvider reports whether a remote provider is configured.
func (s *Service) HasProvider() bool { return s.provider != nil }

// ProviderName returns the configured provider's name, or "".
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Dimensions returns the deterministic vector width.
func (s *Service) Dimensions() int { return s.dims }

// Embed dispatches on pref.
func (s *Service) Embed(ctx context.Context, text string, pref Preference) (Vector, error) {
	switch pref {
	case PreferProvider:
		return s.EmbedStrict(ctx, text)
	case PreferDeterministic:
		return s.EmbedDeterministic(text), nil
	default:
		return s.EmbedOpportunistic(ctx, text)
	}
}

// EmbedDeterministic returns the hash-derived vector. It never calls a provider.
func (s *Service) EmbedDeterministic(text string) Vector {
	text = Truncate(text)
	if isBlank(text) {
		text = ""
	}
	return Vector{Values: Deterministic(text, s.dims), Mode: ModeDeterministic}
}

// EmbedOpportunistic tries the provider and falls back to the deterministic
// vector on any provider failure. The only error it returns is ctx's.
func (s *Service) EmbedOpportunistic(ctx context.Context, text string) (Vector, error) {
	text = Truncate(text)
	if isBlank(text) || s.provider == nil {
		return s.EmbedDeterministic(text), nil
	}

	if !s.breaker.Allow() {
		s.logger.Debug("embedding_provider_skipped",
			slog.String("provider", s.provider.Name()),
			slog.String("reason", "circuit_open"))
		return s.EmbedDeterministic(text), nil
	}

	values, err := s.callProvider(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return Vector{}, ctx.Err()
		}
		attrs := append([]any{slog.String("provider", s.provider.Name())}, attrsOf(err)...)
		s.logger.Warn("embedding_fallback_deterministic", attrs...)
		return s.EmbedDeterministic(text), nil
	}
	return Vector{Values: values, Mode: ModeProvider, Provider: s.provider.Name()}, nil
}

// EmbedStrict calls the provider and returns ERR_502 on any failure,
// including when no provider is configured. Blank text still yields the
// deterministic vector of "" without a remote call.
func (s *Service) EmbedStrict(ctx context.Context, text string) (Vector, error) {
	text = Truncate(text)
	if isBlank(text) {
		return s.EmbedDeterministic(text), nil
	}
	if s.provider == nil {
		return Vector{}, docerrors.EmbeddingError("no embedding provider is configured", nil)
	}

	values, err := s.callProvider(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return Vector{}, ctx.Err()
		}
		return Vector{}, docerrors.EmbeddingError("embedding provider failed: "+err.Error(), err).
			WithDetail("provider", s.provider.Name())
	}
	return Vector{Values: values, Mode: ModeProvider, Provider: s.provider.Name()}, nil
}

// callProvider applies the per-call deadline and records the outcome on the breaker.
func (s *Service) callProvider(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	values, err := s.provider.Embed(callCtx, text)
	if err == nil && len(values) == 0 {
		err = docerrors.New(docerrors.ErrCodeProviderMalformed, "provider returned an empty embedding", nil)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.breaker.RecordFailure()
		}
		return nil, err
	}

	s.breaker.RecordSuccess()
	s.logger.Debug("embedding_provider_call",
		slog.String("provider", s.provider.Name()),
		slog.Int("dimension", len(values)),
		slog.Duration("elapsed", time.Since(start)))
	return values, nil
}

// Close releases the provider.
func (s *Service) Close() error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Close()
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

func attrsOf(err error) []any {
	attrs := docerrors.LogAttrs(err)
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
