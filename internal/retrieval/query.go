package retrieval

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/docindex/internal/embed"
)

// Query returns up to k chunks ranked by cosine similarity plus a flat
// boost per distinct query term found in the chunk text. k <= 0 uses the
// configured default. An empty store or blank query returns no results.
func (e *Engine) Query(ctx context.Context, text string, k int) ([]Result, error) {
	start := time.Now()
	if k <= 0 {
		k = e.defaultK
	}
	if _, err := e.store.Load(ctx); err != nil {
		return nil, err
	}
	mode, _, ok := e.store.Locked()
	if !ok || strings.TrimSpace(text) == "" {
		return []Result{}, nil
	}

	var vec embed.Vector
	if mode == embed.ModeDeterministic {
		vec = e.embed.EmbedDeterministic(text)
	} else {
		var err error
		if vec, err = e.embed.EmbedStrict(ctx, text); err != nil {
			return nil, err
		}
	}

	candidates, err := e.store.Search(ctx, vec.Values, k)
	if err != nil {
		return nil, err
	}

	terms := queryTerms(text)
	type ranked struct {
		Result
		pos int
	}
	hits := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		score := float64(c.Score) + e.lexicalBoost*float64(countTerms(c.Record.Text, terms))
		hits = append(hits, ranked{
			Result: Result{Source: c.Record.Source, ChunkID: c.Record.ChunkID, Text: c.Record.Text, Score: score},
			pos:    c.Pos,
		})
	}
	slices.SortStableFunc(hits, func(a, b ranked) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.pos - b.pos
	})

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if mode == embed.ModeDeterministic && h.Score <= e.minScore {
			continue
		}
		out = append(out, h.Result)
		if len(out) == k {
			break
		}
	}

	e.logger.Debug("query_completed",
		slog.String("mode", string(mode)),
		slog.Int("candidates", len(candidates)),
		slog.Int("results", len(out)),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

// queryTerms returns the distinct lower-cased whitespace tokens of q.
func queryTerms(q string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(q)) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// countTerms counts terms that occur as substrings of the lower-cased text.
func countTerms(text string, terms []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}
