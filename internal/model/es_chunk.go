package model

// EsChunk is the document shape stored in the Elasticsearch index.
// One entry per chunk; the document id plus chunk order forms the ES _id,
// so re-ingesting a document replaces rather than appends.
type EsChunk struct {
	ChunkKey     string    `json:"chunk_key"` // documentID_chunkOrder
	DocumentID   string    `json:"document_id"`
	TenantID     string    `json:"tenant_id"`
	DocumentName string    `json:"document_name"`
	ChunkOrder   int       `json:"chunk_order"`
	ContentHash  string    `json:"content_hash"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	Page         *int      `json:"page,omitempty"`
}

// SearchResult is a single hit from either the lexical or the vector
// adapter. Scores are on the producing method's own scale and are not
// comparable across methods.
type SearchResult struct {
	ID       string        `json:"id"`
	Score    float64       `json:"score"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata carries the source attribution for a chunk.
type ChunkMetadata struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	ChunkOrder   int    `json:"chunk_order"`
	Page         *int   `json:"page,omitempty"`
	Section      string `json:"section,omitempty"`
}
