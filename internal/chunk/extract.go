package chunk

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither a registered
// format nor valid UTF-8 text.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Registry maps lowercase file extensions to extractors.
type Registry struct {
	byExt    map[string]Extractor
	fallback Extractor
}

// NewRegistry returns a registry with the built-in extractors:
// plain text, CSV/TSV, XLSX and PDF.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:    make(map[string]Extractor),
		fallback: ExtractorFunc(extractSniffedText),
	}
	for _, ext := range []string{".txt", ".md", ".markdown", ".log", ".json", ".yaml", ".yml"} {
		r.Register(ext, ExtractorFunc(extractText))
	}
	r.Register(".csv", delimitedExtractor(','))
	r.Register(".tsv", delimitedExtractor('\t'))
	r.Register(".xlsx", ExtractorFunc(extractSpreadsheet))
	r.Register(".xlsm", ExtractorFunc(extractSpreadsheet))
	r.Register(".pdf", ExtractorFunc(extractPDF))
	return r
}

// Register sets the extractor for ext (with or without the leading dot).
func (r *Registry) Register(ext string, e Extractor) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.byExt[ext] = e
}

// For returns the extractor for path's extension, or the text sniffer.
func (r *Registry) For(path string) Extractor {
	if e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return e
	}
	return r.fallback
}

// Extensions lists the registered extensions.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

func extractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func extractSniffedText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return string(data), nil
}

func delimitedExtractor(comma rune) Extractor {
	return ExtractorFunc(func(ctx context.Context, path string) (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.Comma = comma
		r.FieldsPerRecord = -1
		r.LazyQuotes = true

		var sb strings.Builder
		for {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			record, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
			}
			writeRow(&sb, record)
		}
		return sb.String(), nil
	})
}

func extractSpreadsheet(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		sb.WriteString(sheet)
		sb.WriteByte('\n')
		for _, row := range rows {
			writeRow(&sb, row)
		}
	}
	return sb.String(), nil
}

func extractPDF(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// writeRow writes non-empty cells separated by spaces, then a newline.
func writeRow(sb *strings.Builder, cells []string) {
	wrote := false
	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if wrote {
			sb.WriteByte(' ')
		}
		sb.WriteString(cell)
		wrote = true
	}
	if wrote {
		sb.WriteByte('\n')
	}
}
