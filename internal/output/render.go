package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/docindex/internal/retrieval"
)

const previewRunes = 200

// Results prints ranked query results.
func (w *Writer) Results(query string, results []retrieval.Result) {
	if len(results) == 0 {
		w.Warningf("No results for %q", query)
		return
	}
	w.Header(fmt.Sprintf("%d result(s) for %q", len(results), query))
	for i, r := range results {
		_, _ = fmt.Fprintf(w.out, "\n%2d. %s %s\n", i+1,
			w.styles.Score.Render(fmt.Sprintf("%.3f", r.Score)),
			w.styles.Label.Render(fmt.Sprintf("%s #%d", r.Source, r.ChunkID)))
		_, _ = fmt.Fprintf(w.out, "    %s\n", preview(r.Text))
	}
}

// IndexResult prints an indexing summary and each failure.
func (w *Writer) IndexResult(res retrieval.IndexResult) {
	msg := fmt.Sprintf("Indexed %d chunk(s), skipped %d", res.Indexed, res.Skipped)
	if res.Mode != "" {
		msg += fmt.Sprintf(" [%s]", res.Mode)
	}
	if len(res.Failures) > 0 {
		w.Warning(msg)
	} else {
		w.Success(msg)
	}
	for _, f := range res.Failures {
		where := f.Source
		if f.Chunk >= 0 {
			where = fmt.Sprintf("%s #%d", f.Source, f.Chunk)
		}
		w.Status("", w.styles.Dim.Render(fmt.Sprintf("%s: %s", where, f.Error)))
	}
}

// Stats prints store and embedding status.
func (w *Writer) Stats(st retrieval.Stats, sources []retrieval.SourceInfo) {
	w.Header("Store")
	w.Field("Directory", st.Store.Dir)
	w.Field("Records", st.Store.Records)
	mode := string(st.Store.Mode)
	if mode == "" {
		mode = "unlocked"
	}
	w.Field("Mode", mode)
	if st.Store.Dimension > 0 {
		w.Field("Dimension", st.Store.Dimension)
	}
	w.Field("Index size", humanBytes(st.Store.IndexBytes))
	w.Field("Metadata size", humanBytes(st.Store.MetadataBytes))
	if !st.Store.LastFlush.IsZero() {
		w.Field("Last flush", st.Store.LastFlush.Format(time.RFC3339))
	}
	if st.Store.LastLoadError != "" {
		w.Field("Load error", w.styles.Error.Render(st.Store.LastLoadError))
	}

	w.Newline()
	w.Header("Embeddings")
	provider := "none (deterministic only)"
	if st.HasProvider {
		provider = st.Provider
	}
	w.Field("Provider", provider)
	w.Field("Fallback dims", st.Dimensions)

	if len(sources) > 0 {
		w.Newline()
		w.Header("Sources")
		for _, s := range sources {
			w.Field(s.Source, fmt.Sprintf("%d chunk(s)", s.Chunks))
		}
	}
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "…"
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
