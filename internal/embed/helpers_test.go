package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
)

// fakeProvider is an in-memory Provider for service tests.
type fakeProvider struct {
	name  string
	dims  int
	err   error
	calls atomic.Int32
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(len(text)+i) / 100
	}
	return v, nil
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Close() error { return nil }

// openAIServer serves /embeddings with vectors of dims and records requests.
func openAIServer(t *testing.T, dims int, status *atomic.Int32, seen func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen(r)
		}
		if status != nil {
			if code := status.Load(); code != 0 {
				w.WriteHeader(int(code))
				_, _ = w.Write([]byte(`{"error":"nope"}`))
				return
			}
		}
		emb := make([]float64, dims)
		for i := range emb {
			emb[i] = float64(i+1) / float64(dims)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": emb, "index": 0}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastRetry() docerrors.RetryConfig {
	cfg := docerrors.DefaultRetryConfig()
	cfg.MaxRetries = 2
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func quietService(p Provider) *Service {
	return NewService(p, ServiceOptions{Dimensions: 384, Logger: logging.Discard()})
}
