package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/chunk"
	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/embed"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/internal/store"
)

// mapProvider returns fixed vectors by text; unknown text gets fallback.
type mapProvider struct {
	vectors  map[string][]float32
	fallback []float32
	failOn   string
}

func (p *mapProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if p.failOn != "" && strings.Contains(text, p.failOn) {
		return nil, errors.New("provider refused")
	}
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return p.fallback, nil
}

func (p *mapProvider) Name() string { return "map/test" }
func (p *mapProvider) Close() error { return nil }

func newEngine(t *testing.T, dir string, provider embed.Provider) *Engine {
	t.Helper()
	return newEngineWithDims(t, dir, provider, 64)
}

func newEngineWithDims(t *testing.T, dir string, provider embed.Provider, dims int) *Engine {
	t.Helper()
	quiet := logging.Discard()
	emb := embed.NewService(provider, embed.ServiceOptions{Dimensions: dims, Logger: quiet})
	st, err := store.New(store.Options{Dir: dir, Logger: quiet})
	require.NoError(t, err)
	chunks := chunk.NewService(chunk.NewWindowChunker(50, 10), nil, quiet)
	e, err := NewEngine(chunks, emb, st, WithLogger(quiet), WithExtractWorkers(2))
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func docs(texts ...string) []Document {
	out := make([]Document, len(texts))
	for i, text := range texts {
		out[i] = Document{Source: "doc" + string(rune('a'+i)), Text: text}
	}
	return out
}

func TestEngine_IndexIsIdempotent(t *testing.T) {
	// Given: a file indexed once
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "notes.txt", "meeting notes for the quarterly review")
	e := newEngine(t, t.TempDir(), nil)
	first, err := e.Index(ctx, []string{src}, IndexOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Indexed)

	// When: indexing it again
	second, err := e.Index(ctx, []string{src}, IndexOptions{})

	// Then: nothing new is stored
	require.NoError(t, err)
	assert.Equal(t, 0, second.Indexed)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, embed.ModeDeterministic, second.Mode)
	assert.Equal(t, 1, e.Store().Len())
}

func TestEngine_CrossSourceDedup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "identical body text")
	b := writeFile(t, dir, "b.md", "identical body text")
	e := newEngine(t, t.TempDir(), nil)

	res, err := e.Index(ctx, []string{a, b}, IndexOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Failures)

	got, err := e.Query(ctx, "identical body text", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.txt", got[0].Source, "first source in input order wins")
}

func TestEngine_PartialBatchFailure(t *testing.T) {
	// Given: one good file, one missing file and one unreadable spreadsheet
	ctx := context.Background()
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "useful content survives")
	broken := writeFile(t, dir, "broken.xlsx", "this is not a zip archive")
	missing := filepath.Join(dir, "missing.txt")
	e := newEngine(t, t.TempDir(), nil)

	// When: indexing the batch
	res, err := e.Index(ctx, []string{missing, good, broken}, IndexOptions{})

	// Then: the good source is stored and the others are skipped
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "missing.txt", res.Failures[0].Source)
	assert.Equal(t, -1, res.Failures[0].Chunk)
	assert.Equal(t, docerrors.ErrCodeExtractionFailed, res.Failures[0].Code)
	assert.Equal(t, "broken.xlsx", res.Failures[1].Source)
}

func TestEngine_PartialBatchFailure_MiddleSource(t *testing.T) {
	// Given: three sources where the middle one cannot be parsed
	ctx := context.Background()
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "alpha beta gamma")
	broken := writeFile(t, dir, "broken.xlsx", "not a zip archive")
	words := make([]string, 120)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	third := writeFile(t, dir, "third.txt", strings.Join(words, " "))
	e := newEngine(t, t.TempDir(), nil)

	// When: indexing the batch in that order
	res, err := e.Index(ctx, []string{first, broken, third}, IndexOptions{})

	// Then: the broken source is skipped and the others contribute all of their chunks
	require.NoError(t, err)
	thirdChunks := len(chunk.NewWindowChunker(50, 10).Split(strings.Join(words, " ")))
	require.Equal(t, 3, thirdChunks)
	assert.Equal(t, 1+thirdChunks, res.Indexed)
	assert.GreaterOrEqual(t, res.Skipped, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken.xlsx", res.Failures[0].Source)
	assert.Equal(t, 1+thirdChunks, e.Store().Len())
}

func TestEngine_ChunkEmbeddingFailureIsSkipped(t *testing.T) {
	ctx := context.Background()
	p := &mapProvider{fallback: []float32{1, 2, 3}, failOn: "poison"}
	e := newEngine(t, t.TempDir(), p)

	res, err := e.IndexDocuments(ctx, docs("healthy chunk", "poison chunk", "another healthy chunk"),
		IndexOptions{Preference: embed.PreferProvider})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Chunk)
	assert.Equal(t, docerrors.ErrCodeEmbeddingFailed, res.Failures[0].Code)
	assert.Equal(t, embed.ModeProvider, res.Mode)
}

func TestEngine_DeterministicFallbackIsStable(t *testing.T) {
	// Given: a provider that always fails, so indexing falls back
	ctx := context.Background()
	dir := t.TempDir()
	e := newEngine(t, dir, &mapProvider{failOn: " "})
	res, err := e.IndexDocuments(ctx, docs("fallback vectors are stable"), IndexOptions{})
	require.NoError(t, err)
	require.Equal(t, embed.ModeDeterministic, res.Mode)

	// When: a later process with no provider queries the same text
	later := newEngine(t, dir, nil)
	got, err := later.Query(ctx, "fallback vectors are stable", 1)

	// Then: the stored vector matches exactly
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0+4*DefaultLexicalBoost, got[0].Score, 1e-5)
}

func TestEngine_ModeLockEnforced(t *testing.T) {
	// Given: a store built without a provider
	ctx := context.Background()
	dir := t.TempDir()
	offline := newEngine(t, dir, nil)
	_, err := offline.IndexDocuments(ctx, docs("offline chunk"), IndexOptions{})
	require.NoError(t, err)

	// When: a provider-backed process adds to the same store
	online := newEngine(t, dir, &mapProvider{fallback: []float32{0.1, 0.2, 0.3}})
	res, err := online.IndexDocuments(ctx, docs("first new chunk", "second new chunk"), IndexOptions{})

	// Then: the whole call fails and nothing is kept
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeModeMismatch, docerrors.GetCode(err))
	assert.True(t, docerrors.IsFatal(err))
	assert.Equal(t, IndexResult{}, res)

	meta, _, err := store.Files{Dir: dir}.ReadMetadata()
	require.NoError(t, err)
	assert.Len(t, meta.Records, 1)
	_, err = online.Store().Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, online.Store().Len())
}

func TestEngine_IndexBatchMismatchDiscardsWholeBatch(t *testing.T) {
	// Given: a provider whose vector width changes between the file and the inline document
	ctx := context.Background()
	dir := t.TempDir()
	src := writeFile(t, t.TempDir(), "a.txt", "file text")
	p := &mapProvider{
		vectors:  map[string][]float32{"inline text": {1, 0, 0, 0}},
		fallback: []float32{1, 0, 0},
	}
	e := newEngine(t, dir, p)

	// When: indexing the path and the document as one batch
	res, err := e.IndexBatch(ctx, []string{src}, docs("inline text"), IndexOptions{})

	// Then: the call fails and the file's chunk is not kept either
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeDimensionMismatch, docerrors.GetCode(err))
	assert.Equal(t, IndexResult{}, res)

	reopened := newEngine(t, dir, nil)
	_, err = reopened.Store().Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Store().Len())
}

func TestEngine_ForcedDeterministicAgainstProviderStore(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, t.TempDir(), &mapProvider{fallback: []float32{1, 0, 0}})
	_, err := e.IndexDocuments(ctx, docs("provider chunk"), IndexOptions{})
	require.NoError(t, err)

	_, err = e.IndexDocuments(ctx, docs("forced chunk"), IndexOptions{Preference: embed.PreferDeterministic})

	assert.Equal(t, docerrors.ErrCodeModeMismatch, docerrors.GetCode(err))
}

func TestEngine_QueryOrdering(t *testing.T) {
	// Given: a deterministic store at the default dimension
	ctx := context.Background()
	e := newEngineWithDims(t, t.TempDir(), nil, embed.DefaultDeterministicDimensions)
	_, err := e.IndexDocuments(ctx, docs(
		"apple pie recipe",
		"banana bread recipe",
		"database transaction log",
	), IndexOptions{})
	require.NoError(t, err)

	// When: querying with words from the first two chunks
	got, err := e.Query(ctx, "apple recipe", 5)

	// Then: apple ranks above banana, and the unrelated chunk ranks last if it is kept at all
	require.NoError(t, err)
	var texts []string
	for _, r := range got {
		texts = append(texts, r.Text)
	}
	require.GreaterOrEqual(t, len(texts), 2, "results: %v", texts)
	assert.Equal(t, "apple pie recipe", texts[0])
	assert.Equal(t, "banana bread recipe", texts[1])
	if len(texts) == 3 {
		assert.Equal(t, "database transaction log", texts[2])
	}
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestEngine_QueryKeywordOverlapRanksFirst(t *testing.T) {
	// Given: a deterministic store with five one-chunk documents
	ctx := context.Background()
	e := newEngine(t, t.TempDir(), nil)
	_, err := e.IndexDocuments(ctx, docs(
		"the invoice was paid",
		"quarterly total revenue",
		"invoice total",
		"weather report sunny",
		"invoice total due today",
	), IndexOptions{})
	require.NoError(t, err)

	// When: querying
	got, err := e.Query(ctx, "invoice total", 10)

	// Then: the exact match is first, full keyword overlap next, weak matches are dropped
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Less(t, len(got), 5)
	assert.Equal(t, "invoice total", got[0].Text)
	assert.InDelta(t, 1.1, got[0].Score, 1e-5)
	assert.Equal(t, "docc", got[0].Source)
	assert.Equal(t, 0, got[0].ChunkID)
	assert.Equal(t, "invoice total due today", got[1].Text)
	for _, r := range got {
		assert.Greater(t, r.Score, DefaultMinScore)
	}
}

func TestEngine_QueryTruncatesToK(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, t.TempDir(), nil)
	_, err := e.IndexDocuments(ctx, docs("invoice total", "invoice total due today", "quarterly total revenue"), IndexOptions{})
	require.NoError(t, err)

	got, err := e.Query(ctx, "invoice total", 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "invoice total", got[0].Text)
	assert.Equal(t, "invoice total due today", got[1].Text)
}

func TestEngine_ProviderQueryBoostReorders(t *testing.T) {
	// Given: a provider store where keyword overlap should win a near tie
	ctx := context.Background()
	p := &mapProvider{
		vectors: map[string][]float32{
			"apple pie":          {1, 0, 0},
			"banana split apple": {0.9, 0.1, 0},
			"cherry tart":        {0, 1, 0},
			"banana":             {1, 0, 0},
		},
		fallback: []float32{0, 0, 1},
	}
	e := newEngine(t, t.TempDir(), p)
	_, err := e.IndexDocuments(ctx, docs("apple pie", "banana split apple", "cherry tart"), IndexOptions{})
	require.NoError(t, err)

	// When: querying for a term only the second document contains
	got, err := e.Query(ctx, "banana", 5)

	// Then: the boost lifts it above the exact vector match, and the
	// zero-score document is kept because the provider path has no threshold
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "banana split apple", got[0].Text)
	assert.Equal(t, "apple pie", got[1].Text)
	assert.Equal(t, "cherry tart", got[2].Text)
}

func TestEngine_ProviderQueryFailsHard(t *testing.T) {
	ctx := context.Background()
	p := &mapProvider{fallback: []float32{1, 0}}
	e := newEngine(t, t.TempDir(), p)
	_, err := e.IndexDocuments(ctx, docs("stored with provider"), IndexOptions{})
	require.NoError(t, err)

	p.failOn = "query"
	_, err = e.Query(ctx, "query text", 3)

	assert.Equal(t, docerrors.ErrCodeEmbeddingFailed, docerrors.GetCode(err))
}

func TestEngine_EmptyStoreQuery(t *testing.T) {
	e := newEngine(t, t.TempDir(), nil)

	got, err := e.Query(context.Background(), "anything at all", 5)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEngine_BlankQuery(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, t.TempDir(), nil)
	_, err := e.IndexDocuments(ctx, docs("something stored"), IndexOptions{})
	require.NoError(t, err)

	got, err := e.Query(ctx, "   ", 5)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_IndexFlushesOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e := newEngine(t, dir, nil)

	_, err := e.IndexDocuments(ctx, docs("one", "two", "three"), IndexOptions{})
	require.NoError(t, err)

	meta, ok, err := store.Files{Dir: dir}.ReadMetadata()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, meta.Records, 3)
	assert.False(t, e.Stats(ctx).Store.Dirty)
}

func TestEngine_InvalidateCacheSeesRestore(t *testing.T) {
	// Given: an engine that has loaded its store, and a snapshot from elsewhere
	ctx := context.Background()
	other := newEngine(t, t.TempDir(), nil)
	_, err := other.IndexDocuments(ctx, docs("restored content"), IndexOptions{})
	require.NoError(t, err)
	snap, err := other.ExportSnapshot(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	e := newEngine(t, dir, nil)
	_, err = e.Query(ctx, "x", 1)
	require.NoError(t, err)

	// When: the files are replaced behind the engine's back
	require.NoError(t, store.Files{Dir: dir}.ImportSnapshot(snap))
	assert.True(t, e.InvalidateIfChanged())

	// Then: queries see the restored data
	got, err := e.Query(ctx, "restored content", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "restored content", got[0].Text)
}

func TestEngine_Stats(t *testing.T) {
	e := newEngine(t, t.TempDir(), &mapProvider{fallback: []float32{1}})

	st := e.Stats(context.Background())

	assert.True(t, st.HasProvider)
	assert.Equal(t, "map/test", st.Provider)
	assert.Equal(t, 64, st.Dimensions)
	assert.True(t, st.Store.Loaded)
	assert.Equal(t, 0, st.Store.Records)
}

func TestNewEngine_NilDependency(t *testing.T) {
	_, err := NewEngine(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.Dir = t.TempDir()

	e, err := NewFromConfig(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, cfg.Storage.Dir, e.Store().Files().Dir)
	assert.Equal(t, DefaultK, e.defaultK)
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"invoice", "total"}, queryTerms("Invoice  TOTAL invoice"))
	assert.Equal(t, 2, countTerms("The Invoice Total", []string{"invoice", "total", "due"}))
}

func TestEngine_SourcesAndRecords(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, t.TempDir(), nil)
	long := strings.Repeat("word ", 80)
	_, err := e.IndexDocuments(ctx, []Document{
		{Source: "long.txt", Text: long + "tail"},
		{Source: "short.txt", Text: "brief"},
	}, IndexOptions{})
	require.NoError(t, err)

	sources, err := e.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "long.txt", sources[0].Source)
	assert.Greater(t, sources[0].Chunks, 1)

	recs, err := e.SourceRecords(ctx, "short.txt")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "brief", recs[0].Text)
}
