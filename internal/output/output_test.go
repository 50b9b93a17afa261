package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/retrieval"
	"github.com/Aman-CERP/docindex/internal/store"
)

func plain() (*Writer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithColor(buf, false), buf
}

func TestWriter_StatusLines(t *testing.T) {
	// Given: a plain writer
	w, buf := plain()

	// When: printing each kind of status
	w.Success("Index complete")
	w.Warningf("%d sources skipped", 2)
	w.Errorf("store locked: %s", "busy")
	w.Status("", "indented")

	// Then: icons and messages appear one per line
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"✓ Index complete",
		"! 2 sources skipped",
		"✗ store locked: busy",
		"   indented",
	}, lines)
}

func TestNew_BufferIsNotATerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.False(t, IsTTY(buf))

	New(buf).Success("ok")

	assert.Equal(t, "✓ ok\n", buf.String())
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, NoColorEnv())
}

func TestWriter_Code(t *testing.T) {
	w, buf := plain()

	w.Code("a\nb")

	assert.Equal(t, "\n  a\n  b\n\n", buf.String())
}

func TestWriter_Results(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		w, buf := plain()
		w.Results("tax", nil)
		assert.Contains(t, buf.String(), `No results for "tax"`)
	})

	t.Run("ranked", func(t *testing.T) {
		w, buf := plain()
		w.Results("tax", []retrieval.Result{
			{Source: "a.txt", ChunkID: 0, Text: "tax   return\nfiled", Score: 1.05},
			{Source: "b.txt", ChunkID: 3, Text: "other", Score: 0.2},
		})
		out := buf.String()
		assert.Contains(t, out, `2 result(s) for "tax"`)
		assert.Contains(t, out, " 1. 1.050 a.txt #0")
		assert.Contains(t, out, "    tax return filed")
		assert.Contains(t, out, " 2. 0.200 b.txt #3")
	})
}

func TestWriter_IndexResult(t *testing.T) {
	w, buf := plain()

	w.IndexResult(retrieval.IndexResult{
		Indexed: 4,
		Skipped: 1,
		Mode:    embed.ModeDeterministic,
		Failures: []retrieval.SourceFailure{
			{Source: "bad.pdf", Chunk: -1, Error: "cannot read"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "! Indexed 4 chunk(s), skipped 1 [deterministic]")
	assert.Contains(t, out, "bad.pdf: cannot read")
}

func TestWriter_Stats(t *testing.T) {
	w, buf := plain()

	w.Stats(retrieval.Stats{
		Store: store.Stats{
			Dir:        "/data/store",
			Records:    12,
			Dimension:  384,
			Mode:       embed.ModeDeterministic,
			IndexBytes: 2048,
			LastFlush:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Dimensions: 384,
	}, []retrieval.SourceInfo{{Source: "notes.md", Chunks: 12}})

	out := buf.String()
	assert.Contains(t, out, "/data/store")
	assert.Contains(t, out, "deterministic")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
	assert.Contains(t, out, "none (deterministic only)")
	assert.Contains(t, out, "12 chunk(s)")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "0 B", humanBytes(0))
	assert.Equal(t, "1023 B", humanBytes(1023))
	assert.Equal(t, "1.5 KB", humanBytes(1536))
	assert.Equal(t, "1.0 MB", humanBytes(1<<20))
}

func TestPreview_Truncates(t *testing.T) {
	long := strings.Repeat("x", previewRunes+5)
	assert.Equal(t, strings.Repeat("x", previewRunes)+"…", preview(long))
}
