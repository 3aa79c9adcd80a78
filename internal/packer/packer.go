// Package packer selects fused chunks under a token budget and builds the
// citation-annotated context block handed to the language model.
package packer

import (
	"fmt"
	"strings"

	"kimuntu-rag-go/internal/model"
)

// DefaultReserveTokens is held back from the budget for the prompt frame.
const DefaultReserveTokens = 100

// charsPerToken is the calibrated character-to-token ratio. A heuristic,
// not a tokenizer: deterministic and monotonic in text length so budget
// checks reproduce across runs.
const charsPerToken = 4

// citationOverheadTokens covers the "[R#] (source)\n" framing per chunk.
const citationOverheadTokens = 8

// EstimateTokens approximates the token count of text from its length.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Pack greedily selects chunks, in rank order, that fit within
// maxTokens - reserveTokens. A chunk that does not fit is skipped, not
// fatal: a lower-ranked but smaller chunk may still fit. Citations are
// numbered 1-based in acceptance order.
func Pack(chunks []model.RetrievedChunk, maxTokens, reserveTokens int) model.PackedContext {
	if reserveTokens < 0 {
		reserveTokens = DefaultReserveTokens
	}
	budget := maxTokens - reserveTokens

	var sb strings.Builder
	var citations []model.Citation
	tokenCount := 0
	used := 0

	for _, chunk := range chunks {
		cost := EstimateTokens(chunk.Content) + citationOverheadTokens
		if tokenCount+cost > budget {
			continue
		}

		id := used + 1
		sb.WriteString(fmt.Sprintf("[R%d] (%s) %s\n", id, chunk.Metadata.DocumentName, chunk.Content))
		citations = append(citations, model.Citation{
			ID:      id,
			Source:  chunk.Metadata.DocumentName,
			Page:    chunk.Metadata.Page,
			Section: chunk.Metadata.Section,
			Excerpt: excerpt(chunk.Content),
		})
		tokenCount += cost
		used++
	}

	return model.PackedContext{
		Context:         sb.String(),
		Citations:       citations,
		TokenCount:      tokenCount,
		ChunksUsed:      used,
		ChunksTruncated: len(chunks) - used,
	}
}

// excerptLen bounds the citation preview.
const excerptLen = 120

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLen {
		return content
	}
	return string(runes[:excerptLen]) + "…"
}

// ValidateChunks pre-checks a candidate list before packing. Violations
// are collected rather than returned on first hit so the caller can report
// every problem at once.
func ValidateChunks(chunks []model.RetrievedChunk) []string {
	var errs []string
	prevRank := 0
	for i, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			errs = append(errs, fmt.Sprintf("chunk %d: empty content", i))
		}
		if c.Metadata.DocumentID == "" {
			errs = append(errs, fmt.Sprintf("chunk %d: missing metadata.document_id", i))
		}
		if c.Rank < prevRank {
			errs = append(errs, fmt.Sprintf("chunk %d: rank %d decreases from previous rank %d", i, c.Rank, prevRank))
		}
		prevRank = c.Rank
	}
	return errs
}
