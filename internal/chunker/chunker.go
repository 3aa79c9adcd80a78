// Package chunker splits extracted document text into overlapping,
// bounded-size segments used as the atomic retrieval unit.
package chunker

import (
	"crypto/md5"
	"fmt"
	"strings"
	"unicode"
)

// DefaultChunkSize is the default window size in characters.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default overlap between consecutive windows.
const DefaultChunkOverlap = 160

// wordBreakRatio is the fraction of the window behind which a space must
// fall for the trailing partial word to be trimmed. Breaking earlier would
// produce pathologically short chunks. Tunable default, not load-bearing.
const wordBreakRatio = 0.5

// Chunk is a bounded span of a source document.
type Chunk struct {
	Text        string
	Order       int
	ContentHash string
	Page        *int
}

// Options configures the splitter.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Splitter produces deterministic chunk sequences. Same input and options
// always yield the same boundaries; there is no internal state.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a Splitter, falling back to defaults for non-positive sizes
// and clamping the overlap below the chunk size.
func New(opts Options) *Splitter {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := opts.ChunkOverlap
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Splitter{chunkSize: size, overlap: overlap}
}

// Split cuts text into overlapping chunks. Empty or whitespace-only input
// yields no chunks. Text that already fits returns exactly one chunk.
func (s *Splitter) Split(text string) []Chunk {
	return s.split(text, nil, 0)
}

// SplitPages chunks each page independently while keeping Order as one
// monotonically increasing counter across the whole document. Each chunk
// records its originating 1-based page.
func (s *Splitter) SplitPages(pages []string) []Chunk {
	var out []Chunk
	order := 0
	for i, page := range pages {
		pageNo := i + 1
		chunks := s.split(page, &pageNo, order)
		order += len(chunks)
		out = append(out, chunks...)
	}
	return out
}

func (s *Splitter) split(text string, page *int, startOrder int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []Chunk{makeChunk(text, startOrder, page)}
	}

	step := s.chunkSize - s.overlap
	var chunks []Chunk
	order := startOrder
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		last := false
		if end >= len(runes) {
			end = len(runes)
			last = true
		}

		cut := end
		if !last {
			// Trim the trailing partial word back to the nearest space,
			// but only when that space sits in the second half of the
			// window.
			if sp := lastSpaceBefore(runes, start, end); sp-start > int(float64(s.chunkSize)*wordBreakRatio) {
				cut = sp
			}
		}

		piece := strings.TrimRight(string(runes[start:cut]), " \t\n\r")
		if piece != "" {
			chunks = append(chunks, makeChunk(piece, order, page))
			order++
		}
		if last {
			break
		}
	}
	return chunks
}

// lastSpaceBefore returns the index of the last whitespace rune in
// [start, end), or -1 when none exists.
func lastSpaceBefore(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

func makeChunk(text string, order int, page *int) Chunk {
	c := Chunk{
		Text:        text,
		Order:       order,
		ContentHash: HashContent(text),
	}
	if page != nil {
		p := *page
		c.Page = &p
	}
	return c
}

// HashContent returns the content-addressed identifier for a chunk body.
func HashContent(text string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(text)))
}
