package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"slices"
)

const (
	flatMagic   = "DIXF"
	flatVersion = uint32(1)
	// flatHeaderSize is magic + version + dimension + count.
	flatHeaderSize = 4 + 4 + 4 + 8
)

// ErrBadIndexFile is returned by ReadFrom for a truncated or corrupted file.
var ErrBadIndexFile = errors.New("invalid index file")

// Hit is one similarity result from a FlatIndex.
type Hit struct {
	Pos   int
	Score float32
}

// FlatIndex is an exact inner-product index. Vectors are stored in insertion
// order; callers normalize them first so scores are cosine similarities.
type FlatIndex struct {
	dim  int
	data []float32
}

// NewFlatIndex creates an empty index. A dimension of 0 is fixed by the
// first Add.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dimension returns the vector width, or 0 for an unset empty index.
func (f *FlatIndex) Dimension() int { return f.dim }

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends v and returns its position.
func (f *FlatIndex) Add(v []float32) (int, error) {
	if len(v) == 0 {
		return 0, fmt.Errorf("empty vector")
	}
	if f.dim == 0 {
		f.dim = len(v)
	}
	if len(v) != f.dim {
		return 0, fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), f.dim)
	}
	pos := f.Len()
	f.data = append(f.data, v...)
	return pos, nil
}

// Vector returns a copy of the vector at pos.
func (f *FlatIndex) Vector(pos int) []float32 {
	return slices.Clone(f.data[pos*f.dim : (pos+1)*f.dim])
}

// Search returns up to k hits ordered by descending score. Equal scores keep
// ascending position order.
func (f *FlatIndex) Search(q []float32, k int) []Hit {
	n := f.Len()
	if k <= 0 || n == 0 || len(q) != f.dim {
		return nil
	}
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var s float32
		for j, x := range row {
			s += x * q[j]
		}
		hits[i] = Hit{Pos: i, Score: s}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if k < n {
		hits = hits[:k]
	}
	return hits
}

// WriteTo serializes the index:
//
//	"DIXF" | version u32 | dimension u32 | count u64 | count*dimension f32 | crc32 u32
//
// All integers and floats are little-endian. The checksum covers every
// preceding byte.
func (f *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(w, crc))

	var hdr [flatHeaderSize]byte
	copy(hdr[:4], flatMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], flatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(f.dim))
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(f.Len()))
	if _, err := bw.Write(hdr[:]); err != nil {
		return 0, err
	}
	var buf [4]byte
	for _, x := range f.data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
		if _, err := bw.Write(buf[:]); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(buf[:], crc.Sum32())
	if _, err := w.Write(buf[:]); err != nil {
		return 0, err
	}
	return int64(flatHeaderSize + 4*len(f.data) + 4), nil
}

// ReadFrom replaces the index contents with a serialization produced by WriteTo.
func (f *FlatIndex) ReadFrom(r io.Reader) (int64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	n := int64(len(raw))
	if len(raw) < flatHeaderSize+4 {
		return n, fmt.Errorf("%w: %d bytes", ErrBadIndexFile, len(raw))
	}
	if !bytes.Equal(raw[:4], []byte(flatMagic)) {
		return n, fmt.Errorf("%w: bad magic", ErrBadIndexFile)
	}
	if v := binary.LittleEndian.Uint32(raw[4:8]); v != flatVersion {
		return n, fmt.Errorf("%w: unsupported version %d", ErrBadIndexFile, v)
	}
	body, trailer := raw[:len(raw)-4], raw[len(raw)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return n, fmt.Errorf("%w: checksum mismatch", ErrBadIndexFile)
	}

	dim := int(binary.LittleEndian.Uint32(raw[8:12]))
	count := binary.LittleEndian.Uint64(raw[12:20])
	payload := body[flatHeaderSize:]
	if count > 0 && dim == 0 {
		return n, fmt.Errorf("%w: zero dimension with %d vectors", ErrBadIndexFile, count)
	}
	if uint64(len(payload)) != count*uint64(dim)*4 {
		return n, fmt.Errorf("%w: payload is %d bytes, header claims %d vectors of %d", ErrBadIndexFile, len(payload), count, dim)
	}

	data := make([]float32, len(payload)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	f.dim = dim
	f.data = data
	return n, nil
}
