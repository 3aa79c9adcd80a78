package packer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimuntu-rag-go/internal/model"
)

// chunkOfTokens builds a chunk whose estimated cost (content plus
// citation overhead) is exactly tokens.
func chunkOfTokens(id string, rank, tokens int) model.RetrievedChunk {
	contentTokens := tokens - citationOverheadTokens
	return model.RetrievedChunk{
		ID:      id,
		Content: strings.Repeat("x", contentTokens*charsPerToken),
		Metadata: model.ChunkMetadata{
			DocumentID:   "doc-" + id,
			DocumentName: id + ".txt",
		},
		Score: 1.0 / float64(rank),
		Rank:  rank,
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))

	// Monotonic in text length.
	prev := 0
	for i := 1; i < 64; i++ {
		est := EstimateTokens(strings.Repeat("a", i))
		assert.GreaterOrEqual(t, est, prev)
		prev = est
	}
}

func TestPack_BudgetScenario(t *testing.T) {
	// Five 300-token chunks into maxTokens=1000, reserveTokens=100:
	// exactly 3 fit the 900 budget, 2 are truncated.
	chunks := make([]model.RetrievedChunk, 0, 5)
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunkOfTokens(string(rune('A'+i)), i+1, 300))
	}

	packed := Pack(chunks, 1000, 100)
	assert.Equal(t, 3, packed.ChunksUsed)
	assert.Equal(t, 2, packed.ChunksTruncated)
	assert.LessOrEqual(t, packed.TokenCount, 900)
}

func TestPack_Conservation(t *testing.T) {
	chunks := []model.RetrievedChunk{
		chunkOfTokens("A", 1, 500),
		chunkOfTokens("B", 2, 700),
		chunkOfTokens("C", 3, 100),
	}
	packed := Pack(chunks, 1000, 100)
	assert.Equal(t, len(chunks), packed.ChunksUsed+packed.ChunksTruncated)
}

func TestPack_SkipsOversizedButKeepsSmaller(t *testing.T) {
	// The second chunk overflows the budget but the smaller third one
	// still fits; packing must not abort on first overflow.
	chunks := []model.RetrievedChunk{
		chunkOfTokens("A", 1, 400),
		chunkOfTokens("B", 2, 600),
		chunkOfTokens("C", 3, 200),
	}
	packed := Pack(chunks, 1000, 100)

	assert.Equal(t, 2, packed.ChunksUsed)
	assert.Equal(t, 1, packed.ChunksTruncated)
	assert.Contains(t, packed.Context, "A.txt")
	assert.NotContains(t, packed.Context, "B.txt")
	assert.Contains(t, packed.Context, "C.txt")
}

func TestPack_CitationsNumberedByAcceptance(t *testing.T) {
	chunks := []model.RetrievedChunk{
		chunkOfTokens("A", 1, 400),
		chunkOfTokens("B", 2, 600), // skipped
		chunkOfTokens("C", 3, 200),
	}
	packed := Pack(chunks, 1000, 100)

	require.Len(t, packed.Citations, 2)
	assert.Equal(t, 1, packed.Citations[0].ID)
	assert.Equal(t, "A.txt", packed.Citations[0].Source)
	// C gets citation id 2 even though its fused rank is 3.
	assert.Equal(t, 2, packed.Citations[1].ID)
	assert.Equal(t, "C.txt", packed.Citations[1].Source)
	assert.Contains(t, packed.Context, "[R1] (A.txt)")
	assert.Contains(t, packed.Context, "[R2] (C.txt)")
}

func TestPack_EmptyInput(t *testing.T) {
	packed := Pack(nil, 1000, 100)
	assert.Empty(t, packed.Context)
	assert.Empty(t, packed.Citations)
	assert.Zero(t, packed.TokenCount)
	assert.Zero(t, packed.ChunksUsed)
	assert.Zero(t, packed.ChunksTruncated)
}

func TestValidateChunks(t *testing.T) {
	t.Run("valid list", func(t *testing.T) {
		chunks := []model.RetrievedChunk{
			chunkOfTokens("A", 1, 100),
			chunkOfTokens("B", 2, 100),
		}
		assert.Empty(t, ValidateChunks(chunks))
	})

	t.Run("collects all violations", func(t *testing.T) {
		chunks := []model.RetrievedChunk{
			{ID: "A", Content: "  ", Metadata: model.ChunkMetadata{}, Rank: 2},
			{ID: "B", Content: "ok", Metadata: model.ChunkMetadata{DocumentID: "d"}, Rank: 1},
		}
		errs := ValidateChunks(chunks)
		require.Len(t, errs, 3)
		assert.Contains(t, errs[0], "empty content")
		assert.Contains(t, errs[1], "missing metadata.document_id")
		assert.Contains(t, errs[2], "rank 1 decreases")
	})
}
