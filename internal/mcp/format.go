package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docindex/internal/retrieval"
)

// maxSnippet caps chunk text shown in markdown output.
const maxSnippet = 600

// FormatQueryResults renders query results as markdown.
func FormatQueryResults(query string, results []retrieval.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s (chunk %d)\n", i+1, r.Source, r.ChunkID)
		fmt.Fprintf(&sb, "**Score:** %.3f\n\n", r.Score)
		sb.WriteString("```\n")
		sb.WriteString(snippet(r.Text))
		sb.WriteString("\n```\n\n")
	}
	return sb.String()
}

// FormatIndexResult renders an index summary as markdown.
func FormatIndexResult(res retrieval.IndexResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Indexed %d chunk(s), skipped %d", res.Indexed, res.Skipped)
	if res.Mode != "" {
		fmt.Fprintf(&sb, " (mode: %s)", res.Mode)
	}
	sb.WriteString(".\n")
	for _, f := range res.Failures {
		if f.Chunk < 0 {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Source, f.Error)
		} else {
			fmt.Fprintf(&sb, "- %s chunk %d: %s\n", f.Source, f.Chunk, f.Error)
		}
	}
	return sb.String()
}

func snippet(text string) string {
	r := []rune(text)
	if len(r) <= maxSnippet {
		return text
	}
	return string(r[:maxSnippet]) + "..."
}

// clampLimit returns limit bounded to [min, max], or defaultVal when limit <= 0.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
