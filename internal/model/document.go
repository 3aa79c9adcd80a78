// Package model defines the Go structs mapped to database tables and the
// wire shapes used by the retrieval pipeline.
package model

import "time"

// Document ingest statuses.
const (
	DocStatusPending    = 0
	DocStatusProcessing = 1
	DocStatusCompleted  = 2
	DocStatusFailed     = 3
)

// Document maps to the 'documents' table. One row per uploaded file,
// scoped to the owning tenant.
type Document struct {
	ID          string     `gorm:"type:varchar(32);primaryKey" json:"id"` // md5 of tenant id + file content
	TenantID    string     `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	UserID      string     `gorm:"type:varchar(64);not null" json:"userId"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Mime        string     `gorm:"type:varchar(128)" json:"mime"`
	Size        int64      `gorm:"not null" json:"size"`
	StoragePath string     `gorm:"type:varchar(255);not null" json:"storagePath"`
	Status      int        `gorm:"type:tinyint;not null;default:0" json:"status"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	IndexedAt   *time.Time `gorm:"default:null" json:"indexedAt"`
}

// TableName sets the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// DocumentChunk maps to the 'document_chunks' table. One row per indexed
// chunk, kept alongside the search index for audit and re-embedding.
type DocumentChunk struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID  string `gorm:"type:varchar(32);not null;index;column:document_id" json:"documentId"`
	TenantID    string `gorm:"type:varchar(64);not null;index;column:tenant_id" json:"tenantId"`
	ChunkOrder  int    `gorm:"not null;column:chunk_order" json:"chunkOrder"`
	ContentHash string `gorm:"type:varchar(32);not null;column:content_hash" json:"contentHash"`
	TextContent string `gorm:"type:text;column:text_content" json:"textContent"`
	Page        *int   `gorm:"default:null;column:page" json:"page,omitempty"`
}

// TableName sets the table name for DocumentChunk.
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
