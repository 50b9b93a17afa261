package chunk

import (
	"iter"
	"strings"
)

// WindowChunker splits text into overlapping windows of whitespace tokens.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker returns a chunker with the given window size and overlap.
// Non-positive size falls back to DefaultSize; overlap is clamped so the
// stride is at least one token.
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &WindowChunker{size: size, overlap: overlap}
}

// Size returns the window size in tokens.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the number of tokens shared by consecutive windows.
func (c *WindowChunker) Overlap() int { return c.overlap }

// Stride returns the distance between window starts.
func (c *WindowChunker) Stride() int { return c.size - c.overlap }

// Windows yields the chunks of text lazily. The sequence is finite and can be
// ranged over more than once; each pass re-tokenizes text.
//
// Tokens are joined by single spaces. Text shorter than one window yields one
// chunk, text with no tokens yields none. The last window is the first one
// that reaches the end of the token stream.
func (c *WindowChunker) Windows(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		tokens := strings.Fields(text)
		n := len(tokens)
		if n == 0 {
			return
		}

		stride := c.Stride()
		for start := 0; start < n; start += stride {
			end := min(start+c.size, n)
			window := strings.TrimSpace(strings.Join(tokens[start:end], " "))
			if window != "" && !yield(window) {
				return
			}
			if end == n {
				return
			}
		}
	}
}

// Split collects Windows into a slice.
func (c *WindowChunker) Split(text string) []string {
	var out []string
	for w := range c.Windows(text) {
		out = append(out, w)
	}
	return out
}
