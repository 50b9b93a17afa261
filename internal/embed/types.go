// Package embed produces vectors for chunk and query text.
//
// A Service wraps an optional remote Provider and a deterministic
// hash-based fallback. Every vector carries the Mode that produced it so the
// store can refuse to mix incompatible spaces.
package embed

import (
	"context"
	"math"
)

// Mode identifies how a vector was produced.
type Mode string

const (
	ModeProvider      Mode = "provider"
	ModeDeterministic Mode = "deterministic"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeProvider || m == ModeDeterministic
}

// Preference selects an embedding path.
type Preference string

const (
	// PreferAuto tries the provider and falls back to deterministic.
	PreferAuto Preference = ""
	// PreferProvider fails instead of falling back.
	PreferProvider Preference = "provider"
	// PreferDeterministic never calls a provider.
	PreferDeterministic Preference = "deterministic"
)

// ParsePreference maps a config or flag value to a Preference.
func ParsePreference(s string) (Preference, bool) {
	switch Preference(s) {
	case PreferAuto, PreferProvider, PreferDeterministic:
		return Preference(s), true
	}
	return PreferAuto, false
}

const (
	// DefaultDeterministicDimensions is the width of fallback vectors.
	DefaultDeterministicDimensions = 384
	// MaxTextChars caps the characters sent to any embedding path.
	MaxTextChars = 16000
)

// Vector is an embedding plus its provenance.
type Vector struct {
	Values   []float32
	Mode     Mode
	Provider string
}

// Dimension returns len(Values).
func (v Vector) Dimension() int { return len(v.Values) }

// Provider is a remote embedding backend.
type Provider interface {
	// Embed returns the raw embedding for text. Implementations must honor ctx.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small".
	Name() string
	Close() error
}

// Truncate returns the first MaxTextChars characters of text.
func Truncate(text string) string {
	if len(text) <= MaxTextChars {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxTextChars {
			return text[:i]
		}
		n++
	}
	return text
}

// Normalize returns v scaled to unit length. A zero vector is returned as a
// zero vector of the same length.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
