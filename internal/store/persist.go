package store

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

const (
	IndexFileName    = "index.bin"
	MetadataFileName = "metadata.json"
)

// Files names the durable layout of a storage directory.
type Files struct {
	Dir string
}

// IndexPath returns the flat index file path.
func (f Files) IndexPath() string { return filepath.Join(f.Dir, IndexFileName) }

// MetadataPath returns the metadata file path.
func (f Files) MetadataPath() string { return filepath.Join(f.Dir, MetadataFileName) }

// ReadIndex loads the flat index. A missing file yields an empty index and
// ok=false.
func (f Files) ReadIndex() (idx *FlatIndex, ok bool, err error) {
	file, err := os.Open(f.IndexPath())
	if errors.Is(err, fs.ErrNotExist) {
		return NewFlatIndex(0), false, nil
	}
	if err != nil {
		return nil, false, docerrors.IOError("failed to open index file", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("failed to close index file", slog.String("error", cerr.Error()))
		}
	}()

	idx = NewFlatIndex(0)
	if _, err := idx.ReadFrom(file); err != nil {
		return nil, false, docerrors.New(docerrors.ErrCodeCorruptIndex, "failed to read index file", err).
			WithDetail("path", f.IndexPath()).
			WithSuggestion("Clear the storage directory and rebuild the index")
	}
	return idx, true, nil
}

// WriteIndex atomically replaces the index file.
func (f Files) WriteIndex(idx *FlatIndex) error {
	return writeAtomic(f.IndexPath(), func(w io.Writer) error {
		_, err := idx.WriteTo(w)
		return err
	})
}

// ReadMetadata loads the metadata file. A missing file yields empty
// metadata and ok=false.
func (f Files) ReadMetadata() (meta Metadata, ok bool, err error) {
	data, err := os.ReadFile(f.MetadataPath())
	if errors.Is(err, fs.ErrNotExist) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, docerrors.IOError("failed to read metadata file", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, false, docerrors.New(docerrors.ErrCodeFileCorrupt, "failed to decode metadata file", err).
			WithDetail("path", f.MetadataPath()).
			WithSuggestion("Clear the storage directory and rebuild the index")
	}
	return meta, true, nil
}

// WriteMetadata atomically replaces the metadata file.
func (f Files) WriteMetadata(meta Metadata) error {
	if meta.Records == nil {
		meta.Records = []Record{}
	}
	return writeAtomic(f.MetadataPath(), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
}

// Remove deletes both files. Missing files are not an error.
func (f Files) Remove() error {
	for _, p := range []string{f.MetadataPath(), f.IndexPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return docerrors.IOError("failed to remove store file", err).WithDetail("path", p)
		}
	}
	return nil
}

// fingerprint identifies one version of the two files on disk.
type fingerprint struct {
	IndexSize, MetaSize int64
	IndexMod, MetaMod   time.Time
}

func (f Files) fingerprint() fingerprint {
	var fp fingerprint
	if st, err := os.Stat(f.IndexPath()); err == nil {
		fp.IndexSize, fp.IndexMod = st.Size(), st.ModTime()
	}
	if st, err := os.Stat(f.MetadataPath()); err == nil {
		fp.MetaSize, fp.MetaMod = st.Size(), st.ModTime()
	}
	return fp
}

func (fp fingerprint) equal(o fingerprint) bool {
	return fp.IndexSize == o.IndexSize && fp.MetaSize == o.MetaSize &&
		fp.IndexMod.Equal(o.IndexMod) && fp.MetaMod.Equal(o.MetaMod)
}

// writeAtomic writes to a temp file in the same directory and renames it
// over path.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return docerrors.IOError("failed to create storage directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return docerrors.IOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return docerrors.IOError(fmt.Sprintf("failed to write %s", filepath.Base(path)), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return docerrors.IOError("failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return docerrors.IOError("failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return docerrors.IOError("failed to rename temp file", err)
	}
	return nil
}

// Snapshot carries both store files verbatim, base64 encoded, for backup
// and restore transports.
type Snapshot struct {
	Index    string `json:"index"`
	Metadata string `json:"metadata"`
}

// ExportSnapshot reads the files on disk into a Snapshot. Missing files
// export as empty strings.
func (f Files) ExportSnapshot() (Snapshot, error) {
	var snap Snapshot
	for _, part := range []struct {
		path string
		dst  *string
	}{{f.IndexPath(), &snap.Index}, {f.MetadataPath(), &snap.Metadata}} {
		data, err := os.ReadFile(part.path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Snapshot{}, docerrors.IOError("failed to read store file", err).WithDetail("path", part.path)
		}
		*part.dst = base64.StdEncoding.EncodeToString(data)
	}
	return snap, nil
}

// ImportSnapshot validates snap and atomically writes both files. An empty
// snapshot clears the directory.
func (f Files) ImportSnapshot(snap Snapshot) error {
	if snap.Index == "" && snap.Metadata == "" {
		return f.Remove()
	}
	if snap.Index == "" || snap.Metadata == "" {
		return invalidSnapshot("snapshot must carry both index and metadata", nil)
	}

	rawIndex, err := base64.StdEncoding.DecodeString(snap.Index)
	if err != nil {
		return invalidSnapshot("index is not valid base64", err)
	}
	rawMeta, err := base64.StdEncoding.DecodeString(snap.Metadata)
	if err != nil {
		return invalidSnapshot("metadata is not valid base64", err)
	}

	idx := NewFlatIndex(0)
	if _, err := idx.ReadFrom(bytes.NewReader(rawIndex)); err != nil {
		return invalidSnapshot("index payload is corrupt", err)
	}
	var meta Metadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return invalidSnapshot("metadata payload is corrupt", err)
	}
	if len(meta.Records) < idx.Len() {
		return invalidSnapshot(fmt.Sprintf("metadata has %d records for %d vectors", len(meta.Records), idx.Len()), nil)
	}
	if idx.Len() > 0 && meta.Dimension != idx.Dimension() {
		return invalidSnapshot(fmt.Sprintf("metadata dimension %d does not match index dimension %d", meta.Dimension, idx.Dimension()), nil)
	}

	if err := writeAtomic(f.MetadataPath(), func(w io.Writer) error {
		_, err := w.Write(rawMeta)
		return err
	}); err != nil {
		return err
	}
	return writeAtomic(f.IndexPath(), func(w io.Writer) error {
		_, err := w.Write(rawIndex)
		return err
	})
}

func invalidSnapshot(msg string, cause error) error {
	return docerrors.New(docerrors.ErrCodeInvalidSnapshot, msg, cause)
}
