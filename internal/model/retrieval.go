package model

// RetrievedChunk is the fusion-ready representation of a search hit.
// Score is on the fused, comparable scale; Rank is the 1-based position
// after fusion.
type RetrievedChunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Rank     int           `json:"rank"`
}

// Citation binds a packed chunk to its source document. ID is the 1-based
// acceptance index matching the in-text marker (R1, R2, ...). Never mutated
// after packing.
type Citation struct {
	ID      int    `json:"id"`
	Source  string `json:"source"`
	Page    *int   `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
	URL     string `json:"url,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// PackedContext is the unit handed to the language model.
type PackedContext struct {
	Context         string     `json:"context"`
	Citations       []Citation `json:"citations"`
	TokenCount      int        `json:"token_count"`
	ChunksUsed      int        `json:"chunks_used"`
	ChunksTruncated int        `json:"chunks_truncated"`
}
