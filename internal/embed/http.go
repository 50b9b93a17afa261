package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

const (
	defaultPoolSize = 4
	maxErrorBody    = 512
)

// newHTTPClient returns a pooled client. No client-level timeout is set:
// deadlines come from the caller's context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultPoolSize,
			MaxIdleConnsPerHost: defaultPoolSize,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// statusError is a non-2xx provider response.
type statusError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("provider returned status %d", e.status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

// RetryAfter reports the server's Retry-After hint.
func (e *statusError) RetryAfter() time.Duration { return e.retryAfter }

// postJSON sends body to url and decodes a 2xx response into out.
// Failures are classified: transport errors, 429 and 5xx are retryable,
// other 4xx are rejections, undecodable bodies are malformed.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return docerrors.InternalError("failed to marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return docerrors.ConfigError(fmt.Sprintf("invalid provider endpoint %q", url), err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := docerrors.ErrCodeNetworkUnavailable
		var timeout interface{ Timeout() bool }
		if errors.As(err, &timeout) && timeout.Timeout() {
			code = docerrors.ErrCodeNetworkTimeout
		}
		return docerrors.New(code, "embedding provider unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &statusError{
			status:     resp.StatusCode,
			body:       strings.TrimSpace(string(raw)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return docerrors.New(docerrors.ErrCodeNetworkUnavailable, se.Error(), se).
				WithDetail("status", strconv.Itoa(resp.StatusCode))
		}
		return docerrors.New(docerrors.ErrCodeProviderRejected, se.Error(), se).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return docerrors.New(docerrors.ErrCodeProviderMalformed, "failed to decode embedding response", err)
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

// toFloat32 converts a decoded embedding, rejecting empty or non-finite values.
func toFloat32(values []float64) ([]float32, error) {
	if len(values) == 0 {
		return nil, docerrors.New(docerrors.ErrCodeProviderMalformed, "provider returned an empty embedding", nil)
	}
	out := make([]float32, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.Abs(v) > math.MaxFloat32 {
			return nil, docerrors.New(docerrors.ErrCodeProviderMalformed, "provider returned a non-finite component", nil)
		}
		out[i] = float32(v)
	}
	return out, nil
}
