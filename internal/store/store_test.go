package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/embed"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := New(Options{Dir: dir, LockTimeout: time.Second, Logger: logging.Discard()})
	require.NoError(t, err)
	return s
}

func rec(source string, chunkID int, text string) Record {
	return Record{Source: source, ChunkID: chunkID, Text: text, TextHash: "h-" + text}
}

func detVec(text string) embed.Vector {
	return embed.Vector{Values: embed.Deterministic(text, 32), Mode: embed.ModeDeterministic}
}

func TestStore_EmptyDirectoryLoadsEmpty(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	report, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Empty)
	_, _, locked := s.Locked()
	assert.False(t, locked)

	got, err := s.Search(context.Background(), []float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_AppendDedupsByHash(t *testing.T) {
	// Given: a store with one record
	ctx := context.Background()
	s := newTestStore(t, t.TempDir())
	added, err := s.Append(ctx, rec("a.txt", 0, "alpha"), detVec("alpha"))
	require.NoError(t, err)
	require.True(t, added)

	// When: the same text arrives from another source
	added, err = s.Append(ctx, rec("b.txt", 3, "alpha"), detVec("alpha"))

	// Then: it is skipped, not an error
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("h-alpha"))
}

func TestStore_ModeLock(t *testing.T) {
	// Given: a store locked to deterministic 32-dim vectors
	ctx := context.Background()
	s := newTestStore(t, t.TempDir())
	_, err := s.Append(ctx, rec("a", 0, "first"), detVec("first"))
	require.NoError(t, err)

	mode, dim, ok := s.Locked()
	require.True(t, ok)
	assert.Equal(t, embed.ModeDeterministic, mode)
	assert.Equal(t, 32, dim)

	// When/Then: a provider vector is rejected
	_, err = s.Append(ctx, rec("a", 1, "second"), embed.Vector{Values: make32(), Mode: embed.ModeProvider})
	assert.Equal(t, docerrors.ErrCodeModeMismatch, docerrors.GetCode(err))
	assert.True(t, docerrors.IsFatal(err))

	// When/Then: a different dimension is rejected
	_, err = s.Append(ctx, rec("a", 2, "third"), embed.Vector{Values: embed.Deterministic("third", 16), Mode: embed.ModeDeterministic})
	assert.Equal(t, docerrors.ErrCodeDimensionMismatch, docerrors.GetCode(err))

	assert.Equal(t, 1, s.Len())
}

func make32() []float32 {
	v := make([]float32, 32)
	v[0] = 1
	return v
}

func TestStore_SearchQueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir())
	_, err := s.Append(ctx, rec("a", 0, "x"), detVec("x"))
	require.NoError(t, err)

	_, err = s.Search(ctx, []float32{1, 0, 0}, 3)

	assert.Equal(t, docerrors.ErrCodeQueryDimensionMismatch, docerrors.GetCode(err))
}

func TestStore_SearchFindsExactText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir())
	for i, text := range []string{"red apples", "green pears", "blue plums"} {
		_, err := s.Append(ctx, rec("fruit.txt", i, text), detVec(text))
		require.NoError(t, err)
	}

	got, err := s.Search(ctx, embed.Deterministic("green pears", 32), 10)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "green pears", got[0].Record.Text)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	assert.Equal(t, 1, got[0].Pos)
}

func TestStore_FlushAndReload(t *testing.T) {
	// Given: a flushed store
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t, dir)
	_, err := s.Append(ctx, rec("a.txt", 0, "persist me"), detVec("persist me"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	// When: a fresh process opens the directory
	other := newTestStore(t, dir)
	report, err := other.Load(ctx)

	// Then: the record, lock and id are all there
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.True(t, other.Contains("h-persist me"))
	mode, dim, ok := other.Locked()
	assert.True(t, ok)
	assert.Equal(t, embed.ModeDeterministic, mode)
	assert.Equal(t, 32, dim)

	meta, _, err := Files{Dir: dir}.ReadMetadata()
	require.NoError(t, err)
	require.Len(t, meta.Records, 1)
	assert.NotEmpty(t, meta.Records[0].ID)
	assert.Equal(t, 32, meta.Dimension)
}

func TestStore_MetadataFileShape(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t, dir)
	_, err := s.Append(ctx, Record{ID: "fixed", Source: "s", ChunkID: 4, Text: "t", TextHash: "h"}, detVec("t"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	raw, err := os.ReadFile(Files{Dir: dir}.MetadataPath())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "deterministic", doc["mode"])
	records := doc["records"].([]any)
	first := records[0].(map[string]any)
	assert.Equal(t, "fixed", first["id"])
	assert.Equal(t, float64(4), first["chunkId"])
	assert.Equal(t, "h", first["textHash"])
}

func TestStore_LoadTruncatesExtraMetadata(t *testing.T) {
	// Given: metadata with one more record than the index, as left by an
	// interrupted flush
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t, dir)
	_, err := s.Append(ctx, rec("a", 0, "kept"), detVec("kept"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	files := Files{Dir: dir}
	meta, _, err := files.ReadMetadata()
	require.NoError(t, err)
	meta.Records = append(meta.Records, rec("a", 1, "orphan"))
	require.NoError(t, files.WriteMetadata(meta))

	// When: loading
	other := newTestStore(t, dir)
	report, err := other.Load(ctx)

	// Then: metadata is cut back to the index count
	require.NoError(t, err)
	assert.Equal(t, 1, report.Truncated)
	assert.Equal(t, 1, other.Len())
	assert.False(t, other.Contains("h-orphan"))
	assert.True(t, other.Stats().Dirty)
}

func TestStore_FlushEmptyStoreRemovesFiles(t *testing.T) {
	// Given: metadata listing a record while the index holds no vectors
	ctx := context.Background()
	dir := t.TempDir()
	files := Files{Dir: dir}
	require.NoError(t, files.WriteIndex(NewFlatIndex(0)))
	require.NoError(t, files.WriteMetadata(Metadata{
		Dimension: 32,
		Mode:      embed.ModeDeterministic,
		Records:   []Record{rec("a", 0, "orphan")},
	}))
	s := newTestStore(t, dir)
	report, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Truncated)
	require.Equal(t, 0, s.Len())

	// When: flushing the repaired, now empty store
	require.NoError(t, s.Flush(ctx))

	// Then: no file with a blank mode is left behind
	assert.NoFileExists(t, files.MetadataPath())
	assert.NoFileExists(t, files.IndexPath())
	assert.False(t, s.Stats().Dirty)

	reopened := newTestStore(t, dir)
	report, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, report.Empty)
	_, _, ok := reopened.Locked()
	assert.False(t, ok)
}

func TestStore_LoadRejectsIndexAheadOfMetadata(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files := Files{Dir: dir}
	idx := NewFlatIndex(0)
	_, _ = idx.Add([]float32{1, 0})
	require.NoError(t, files.WriteIndex(idx))
	require.NoError(t, files.WriteMetadata(Metadata{Dimension: 2, Mode: embed.ModeDeterministic}))

	_, err := newTestStore(t, dir).Load(ctx)

	assert.Equal(t, docerrors.ErrCodeFileCorrupt, docerrors.GetCode(err))
}

func TestStore_LoadCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Files{Dir: dir}.IndexPath(), []byte("garbage"), 0644))
	s := newTestStore(t, dir)

	_, err := s.Load(context.Background())

	assert.Equal(t, docerrors.ErrCodeCorruptIndex, docerrors.GetCode(err))
	assert.NotEmpty(t, s.Stats().LastLoadError)
}

func TestStore_InvalidateCacheReloads(t *testing.T) {
	// Given: two stores over one directory
	ctx := context.Background()
	dir := t.TempDir()
	reader := newTestStore(t, dir)
	_, err := reader.Load(ctx)
	require.NoError(t, err)

	writer := newTestStore(t, dir)
	_, err = writer.Append(ctx, rec("a", 0, "new"), detVec("new"))
	require.NoError(t, err)
	require.NoError(t, writer.Flush(ctx))

	// When: the reader is told the files changed
	assert.Equal(t, 0, reader.Len())
	assert.True(t, reader.InvalidateIfChanged())
	_, err = reader.Load(ctx)

	// Then: it sees the other writer's record
	require.NoError(t, err)
	assert.Equal(t, 1, reader.Len())
	assert.False(t, reader.InvalidateIfChanged())
}

func TestStore_InvalidateIfChangedIgnoresOwnFlush(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir())
	_, err := s.Append(ctx, rec("a", 0, "mine"), detVec("mine"))
	require.NoError(t, err)

	assert.False(t, s.InvalidateIfChanged(), "dirty store is never dropped")
	require.NoError(t, s.Flush(ctx))

	assert.False(t, s.InvalidateIfChanged())
	assert.Equal(t, 1, s.Len())
}

func TestStore_ResetReleasesLock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t, dir)
	_, err := s.Append(ctx, rec("a", 0, "x"), detVec("x"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	require.NoError(t, s.Reset(ctx))

	_, _, ok := s.Locked()
	assert.False(t, ok)
	assert.NoFileExists(t, Files{Dir: dir}.IndexPath())
	added, err := s.Append(ctx, rec("a", 0, "x"), embed.Vector{Values: make32(), Mode: embed.ModeProvider})
	require.NoError(t, err)
	assert.True(t, added)
}

func TestStore_FlushWaitsForOtherProcessLock(t *testing.T) {
	// Given: the directory lock held elsewhere
	ctx := context.Background()
	dir := t.TempDir()
	held := NewFileLock(dir, time.Second)
	require.NoError(t, held.Lock(ctx))
	defer func() { _ = held.Unlock() }()

	s, err := New(Options{Dir: dir, LockTimeout: 50 * time.Millisecond, Logger: logging.Discard()})
	require.NoError(t, err)

	// When: loading needs the shared lock
	_, err = s.Load(ctx)

	// Then: it gives up with a retryable locked error
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeStoreLocked, docerrors.GetCode(err))
	assert.True(t, docerrors.IsRetryable(err))
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	// Given: a store with unflushed data
	ctx := context.Background()
	src := newTestStore(t, t.TempDir())
	_, err := src.Append(ctx, rec("a", 0, "backup"), detVec("backup"))
	require.NoError(t, err)

	// When: exporting and importing into another directory
	snap, err := src.ExportSnapshot(ctx)
	require.NoError(t, err)
	dst := newTestStore(t, t.TempDir())
	_, err = dst.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, dst.ImportSnapshot(ctx, snap))

	// Then: the restored store answers queries
	got, err := dst.Search(ctx, embed.Deterministic("backup", 32), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "backup", got[0].Record.Text)
}

func TestStore_ImportSnapshotRejectsGarbage(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	err := s.ImportSnapshot(context.Background(), Snapshot{Index: "%%%", Metadata: "e30="})

	assert.Equal(t, docerrors.ErrCodeInvalidSnapshot, docerrors.GetCode(err))
}

func TestStore_NewRequiresDir(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
