// Package repository defines the data access interfaces and implementations.
package repository

import (
	"errors"
	"fmt"
	"time"

	"kimuntu-rag-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository defines persistence for document metadata and chunk rows.
type DocumentRepository interface {
	Create(doc *model.Document) error
	GetByID(tenantID, documentID string) (*model.Document, error)
	FindByTenant(tenantID string) ([]model.Document, error)
	UpdateStatus(documentID string, status int) error
	MarkIndexed(documentID string) error
	Delete(tenantID, documentID string) error

	ReplaceChunks(documentID string, chunks []model.DocumentChunk) error
	FindChunksByDocument(documentID string) ([]model.DocumentChunk, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository instance.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create inserts a new document metadata record.
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// GetByID fetches a document by ID, scoped to the tenant.
func (r *documentRepository) GetByID(tenantID, documentID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ? AND tenant_id = ?", documentID, tenantID).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByTenant lists all documents belonging to a tenant.
func (r *documentRepository) FindByTenant(tenantID string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// UpdateStatus updates the ingest status of a document.
func (r *documentRepository) UpdateStatus(documentID string, status int) error {
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Update("status", status).Error
}

// MarkIndexed sets the document to completed and records the indexing time.
func (r *documentRepository) MarkIndexed(documentID string) error {
	now := time.Now()
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
		"status":     model.DocStatusCompleted,
		"indexed_at": &now,
	}).Error
}

// Delete removes a document and its chunk rows, scoped to the tenant.
func (r *documentRepository) Delete(tenantID, documentID string) error {
	var errs []error
	if err := r.db.Where("document_id = ? AND tenant_id = ?", documentID, tenantID).Delete(&model.DocumentChunk{}).Error; err != nil {
		errs = append(errs, err)
	}
	if err := r.db.Where("id = ? AND tenant_id = ?", documentID, tenantID).Delete(&model.Document{}).Error; err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("partial failure deleting document records (documentID=%s): %v", documentID, errors.Join(errs...))
	}
	return nil
}

// ReplaceChunks deletes a document's existing chunk rows and inserts the new
// set in one transaction. Re-ingesting a document never leaves stale rows.
func (r *documentRepository) ReplaceChunks(documentID string, chunks []model.DocumentChunk) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
}

// FindChunksByDocument lists a document's chunk rows in order.
func (r *documentRepository) FindChunksByDocument(documentID string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.Where("document_id = ?", documentID).Order("chunk_order asc").Find(&chunks).Error
	return chunks, err
}
