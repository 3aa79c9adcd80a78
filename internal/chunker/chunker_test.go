package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := New(Options{})
		assert.Equal(t, DefaultChunkSize, s.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, s.overlap)
	})

	t.Run("overlap clamped below chunk size", func(t *testing.T) {
		s := New(Options{ChunkSize: 100, ChunkOverlap: 150})
		assert.Less(t, s.overlap, s.chunkSize)
	})
}

func TestSplit_EmptyInput(t *testing.T) {
	s := New(Options{ChunkSize: 800, ChunkOverlap: 160})
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\t  "))
}

func TestSplit_SingleChunk(t *testing.T) {
	s := New(Options{ChunkSize: 800, ChunkOverlap: 160})
	chunks := s.Split("a short document")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Order)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Equal(t, HashContent("a short document"), chunks[0].ContentHash)
	assert.Nil(t, chunks[0].Page)
}

func TestSplit_TwoThousandChars(t *testing.T) {
	// 2000 chars with chunkSize=800, chunkOverlap=160 -> 3 chunks, each
	// <=800 chars, consecutive chunks sharing a 160-char overlap region.
	text := strings.Repeat("abcdefghij", 200)
	s := New(Options{ChunkSize: 800, ChunkOverlap: 160})
	chunks := s.Split(text)

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 800)
		assert.Equal(t, i, c.Order)
	}
	// Overlap: the first 160 chars of chunk N+1 equal the last 160 chars
	// of the untrimmed window of chunk N.
	assert.Equal(t, chunks[0].Text[640:800], chunks[1].Text[:160])
	assert.Equal(t, chunks[1].Text[640:800], chunks[2].Text[:160])
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	s := New(Options{ChunkSize: 300, ChunkOverlap: 60})
	a := s.Split(text)
	b := s.Split(text)
	assert.Equal(t, a, b)
}

func TestSplit_WordBreakInSecondHalf(t *testing.T) {
	// A space near the end of the window should become the cut point.
	text := strings.Repeat("x", 90) + " " + strings.Repeat("y", 120)
	s := New(Options{ChunkSize: 100, ChunkOverlap: 20})
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	// Window [0,100) has its last space at index 90 (> 50), so the first
	// chunk is trimmed back to the word boundary.
	assert.Equal(t, strings.Repeat("x", 90), chunks[0].Text)
}

func TestSplit_NoBreakInFirstHalf(t *testing.T) {
	// The only space falls in the first half of the window, so the window
	// is not trimmed (avoids a pathologically short chunk).
	text := strings.Repeat("x", 30) + " " + strings.Repeat("y", 200)
	s := New(Options{ChunkSize: 100, ChunkOverlap: 20})
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0].Text, 100)
}

func TestSplit_IdempotentOnFittingChunk(t *testing.T) {
	text := strings.Repeat("abcdefghij", 200)
	s := New(Options{ChunkSize: 800, ChunkOverlap: 160})
	for _, c := range s.Split(text) {
		again := s.Split(c.Text)
		require.Len(t, again, 1)
		assert.Equal(t, c.Text, again[0].Text)
	}
}

func TestSplitPages(t *testing.T) {
	pages := []string{
		strings.Repeat("a", 500),
		"",
		strings.Repeat("b", 1000),
	}
	s := New(Options{ChunkSize: 800, ChunkOverlap: 160})
	chunks := s.SplitPages(pages)

	require.Len(t, chunks, 3)
	// Order increases across the whole document.
	for i, c := range chunks {
		assert.Equal(t, i, c.Order)
	}
	require.NotNil(t, chunks[0].Page)
	assert.Equal(t, 1, *chunks[0].Page)
	require.NotNil(t, chunks[1].Page)
	assert.Equal(t, 3, *chunks[1].Page)
	assert.Equal(t, 3, *chunks[2].Page)
}
