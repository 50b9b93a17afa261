package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docindex/internal/embed"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// DefaultLockTimeout bounds how long Load and Flush wait for another process.
const DefaultLockTimeout = 10 * time.Second

const rebuildHint = "Clear the storage directory and rebuild the index with a single embedding mode"

// Options configures a Store.
type Options struct {
	Dir         string
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Store is the in-memory view of one storage directory. It loads lazily on
// first use and writes back only on Flush.
type Store struct {
	files  Files
	lock   *FileLock
	logger *slog.Logger

	mu        sync.RWMutex
	loaded    bool
	dirty     bool
	index     *FlatIndex
	records   []Record
	hashes    map[string]struct{}
	mode      embed.Mode
	report    LoadReport
	loadErr   error
	seen      fingerprint
	lastFlush time.Time
}

// New creates a Store over opts.Dir. Nothing is read until first use.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, docerrors.ConfigError("storage directory is required", nil)
	}
	if opts.LockTimeout == 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		files:  Files{Dir: opts.Dir},
		lock:   NewFileLock(opts.Dir, opts.LockTimeout),
		logger: opts.Logger,
		index:  NewFlatIndex(0),
		hashes: make(map[string]struct{}),
	}, nil
}

// Files returns the on-disk layout.
func (s *Store) Files() Files { return s.files }

// Load reads the store from disk on first call and returns the report of
// that load. Later calls return the cached report until InvalidateCache.
func (s *Store) Load(ctx context.Context) (LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return LoadReport{}, err
	}
	return s.report, nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	err := s.load(ctx)
	s.loadErr = err
	return err
}

func (s *Store) load(ctx context.Context) error {
	if err := s.lock.RLock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("store_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	idx, _, err := s.files.ReadIndex()
	if err != nil {
		return err
	}
	meta, _, err := s.files.ReadMetadata()
	if err != nil {
		return err
	}

	report := LoadReport{}
	n := idx.Len()
	switch {
	case len(meta.Records) > n:
		report.Truncated = len(meta.Records) - n
		s.logger.Warn("store_metadata_truncated",
			slog.String("dir", s.files.Dir),
			slog.Int("metadata_records", len(meta.Records)),
			slog.Int("index_vectors", n))
		meta.Records = meta.Records[:n]
	case len(meta.Records) < n:
		return docerrors.New(docerrors.ErrCodeFileCorrupt,
			fmt.Sprintf("index has %d vectors but metadata has %d records", n, len(meta.Records)), nil).
			WithDetail("dir", s.files.Dir).
			WithSuggestion(rebuildHint)
	}
	if n > 0 {
		if meta.Dimension != idx.Dimension() {
			return docerrors.New(docerrors.ErrCodeFileCorrupt,
				fmt.Sprintf("metadata dimension %d does not match index dimension %d", meta.Dimension, idx.Dimension()), nil).
				WithSuggestion(rebuildHint)
		}
		if !meta.Mode.Valid() {
			return docerrors.New(docerrors.ErrCodeFileCorrupt,
				fmt.Sprintf("unknown embedding mode %q in metadata", meta.Mode), nil).
				WithSuggestion(rebuildHint)
		}
	} else {
		idx = NewFlatIndex(0)
		meta = Metadata{}
	}

	hashes := make(map[string]struct{}, len(meta.Records))
	for _, r := range meta.Records {
		hashes[r.TextHash] = struct{}{}
	}

	s.index = idx
	s.records = meta.Records
	s.hashes = hashes
	s.mode = meta.Mode
	s.loaded = true
	s.dirty = report.Truncated > 0
	s.seen = s.files.fingerprint()
	report.Records = len(s.records)
	report.Empty = len(s.records) == 0
	s.report = report

	s.logger.Info("store_loaded",
		slog.String("dir", s.files.Dir),
		slog.Int("records", report.Records),
		slog.Int("dimension", idx.Dimension()),
		slog.String("mode", string(s.mode)))
	return nil
}

// Contains reports whether a chunk with this text hash is stored. It only
// consults memory; call Load first.
func (s *Store) Contains(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[hash]
	return ok
}

// Locked returns the mode and dimension fixed by the first insert. ok is
// false while the store is empty.
func (s *Store) Locked() (mode embed.Mode, dim int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return "", 0, false
	}
	return s.mode, s.index.Dimension(), true
}

// Records returns a copy of the in-memory records in insertion order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Len returns the number of records in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Append stores rec with vec. It returns false without error when a record
// with the same TextHash already exists. The first insert fixes the store's
// mode and dimension; later vectors that disagree are rejected.
func (s *Store) Append(ctx context.Context, rec Record, vec embed.Vector) (bool, error) {
	if rec.TextHash == "" {
		return false, docerrors.ValidationError("record text hash is required", nil)
	}
	if vec.Dimension() == 0 || !vec.Mode.Valid() {
		return false, docerrors.ValidationError("vector must be non-empty with a known mode", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return false, err
	}
	if _, ok := s.hashes[rec.TextHash]; ok {
		return false, nil
	}

	if len(s.records) > 0 {
		if vec.Mode != s.mode {
			return false, docerrors.New(docerrors.ErrCodeModeMismatch,
				fmt.Sprintf("store holds %s vectors, got a %s vector", s.mode, vec.Mode), nil).
				WithDetail("store_mode", string(s.mode)).
				WithDetail("vector_mode", string(vec.Mode)).
				WithSuggestion(rebuildHint)
		}
		if d := s.index.Dimension(); vec.Dimension() != d {
			return false, docerrors.New(docerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("store holds %d-dimensional vectors, got %d", d, vec.Dimension()), nil).
				WithDetail("store_dimension", strconv.Itoa(d)).
				WithDetail("vector_dimension", strconv.Itoa(vec.Dimension())).
				WithSuggestion(rebuildHint)
		}
	} else {
		s.index = NewFlatIndex(vec.Dimension())
		s.mode = vec.Mode
	}

	if _, err := s.index.Add(embed.Normalize(vec.Values)); err != nil {
		return false, docerrors.InternalError("failed to add vector", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records = append(s.records, rec)
	s.hashes[rec.TextHash] = struct{}{}
	s.dirty = true
	return true, nil
}

// Search returns up to k stored records ranked by cosine similarity to q.
// An empty store returns no candidates.
func (s *Store) Search(ctx context.Context, q []float32, k int) ([]Candidate, error) {
	s.mu.Lock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 || k <= 0 {
		return nil, nil
	}
	if d := s.index.Dimension(); len(q) != d {
		return nil, docerrors.New(docerrors.ErrCodeQueryDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, store has %d", len(q), d), nil).
			WithSuggestion("Query with the embedding provider that built this index")
	}

	hits := s.index.Search(embed.Normalize(q), k)
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{Record: s.records[h.Pos], Score: h.Score, Pos: h.Pos}
	}
	return out, nil
}

// Flush writes pending changes to disk. Metadata is written before the
// index so an interrupted flush leaves metadata ahead, which Load repairs.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	if !s.loaded || !s.dirty {
		return nil
	}
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("store_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	start := time.Now()
	if len(s.records) == 0 {
		// An empty store has no mode or dimension to record.
		if err := s.files.Remove(); err != nil {
			return err
		}
	} else {
		meta := Metadata{Dimension: s.index.Dimension(), Mode: s.mode, Records: s.records}
		if err := s.files.WriteMetadata(meta); err != nil {
			return err
		}
		if err := s.files.WriteIndex(s.index); err != nil {
			return err
		}
	}
	s.dirty = false
	s.seen = s.files.fingerprint()
	s.lastFlush = time.Now()
	s.logger.Info("store_flushed",
		slog.String("dir", s.files.Dir),
		slog.Int("records", len(s.records)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// InvalidateCache drops the in-memory state, including unflushed changes.
// The next operation reloads from disk.
func (s *Store) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

func (s *Store) invalidateLocked() {
	if s.dirty {
		s.logger.Warn("store_invalidated_dirty", slog.Int("records", len(s.records)))
	}
	s.loaded = false
	s.dirty = false
	s.index = NewFlatIndex(0)
	s.records = nil
	s.hashes = make(map[string]struct{})
	s.mode = ""
	s.report = LoadReport{}
	s.logger.Debug("store_invalidated", slog.String("dir", s.files.Dir))
}

// InvalidateIfChanged drops the in-memory state only if the files on disk
// differ from what this Store last loaded or flushed. A store with unflushed
// changes is left alone.
func (s *Store) InvalidateIfChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.dirty {
		return false
	}
	if s.files.fingerprint().equal(s.seen) {
		return false
	}
	s.invalidateLocked()
	return true
}

// Reset removes both files and empties the store, releasing the mode lock.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.files.Remove(); err != nil {
		return err
	}
	s.invalidateLocked()
	s.loaded = true
	s.seen = s.files.fingerprint()
	s.report = LoadReport{Empty: true}
	s.logger.Info("store_reset", slog.String("dir", s.files.Dir))
	return nil
}

// ExportSnapshot flushes pending changes and returns both files encoded.
func (s *Store) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(ctx); err != nil {
		return Snapshot{}, err
	}
	if err := s.lock.RLock(ctx); err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.files.ExportSnapshot()
}

// ImportSnapshot replaces the files on disk with snap and drops the
// in-memory state so the next operation sees the restored store.
func (s *Store) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.files.ImportSnapshot(snap); err != nil {
		return err
	}
	s.invalidateLocked()
	s.logger.Info("store_snapshot_imported", slog.String("dir", s.files.Dir))
	return nil
}

// Stats reports the current state without loading.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Dir:       s.files.Dir,
		Records:   len(s.records),
		Dimension: s.index.Dimension(),
		Mode:      s.mode,
		Loaded:    s.loaded,
		Dirty:     s.dirty,
		LastFlush: s.lastFlush,
	}
	if s.loadErr != nil {
		st.LastLoadError = s.loadErr.Error()
	}
	if fi, err := os.Stat(s.files.IndexPath()); err == nil {
		st.IndexBytes = fi.Size()
	}
	if fi, err := os.Stat(s.files.MetadataPath()); err == nil {
		st.MetadataBytes = fi.Size()
	}
	return st
}
