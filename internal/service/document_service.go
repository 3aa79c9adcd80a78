package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"kimuntu-rag-go/internal/config"
	"kimuntu-rag-go/internal/model"
	"kimuntu-rag-go/internal/repository"
	"kimuntu-rag-go/pkg/es"
	"kimuntu-rag-go/pkg/kafka"
	"kimuntu-rag-go/pkg/log"
	"kimuntu-rag-go/pkg/storage"
	"kimuntu-rag-go/pkg/tasks"

	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// DocumentStatusDTO reports where a document sits in the ingest flow.
type DocumentStatusDTO struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	IndexedAt  string `json:"indexedAt,omitempty"`
}

// DocumentService defines document lifecycle operations: upload, listing,
// status and deletion.
type DocumentService interface {
	Upload(ctx context.Context, tenantID, userID, fileName string, reader io.Reader) (*model.Document, error)
	List(tenantID string) ([]model.Document, error)
	Status(ctx context.Context, tenantID, documentID string) (*DocumentStatusDTO, error)
	Delete(ctx context.Context, tenantID, documentID string) error
}

type documentService struct {
	docRepo    repository.DocumentRepository
	statusRepo repository.IngestStatusRepository
	minioCfg   config.MinIOConfig
	esCfg      config.ElasticsearchConfig
}

// NewDocumentService creates a new DocumentService instance.
func NewDocumentService(
	docRepo repository.DocumentRepository,
	statusRepo repository.IngestStatusRepository,
	minioCfg config.MinIOConfig,
	esCfg config.ElasticsearchConfig,
) DocumentService {
	return &documentService{
		docRepo:    docRepo,
		statusRepo: statusRepo,
		minioCfg:   minioCfg,
		esCfg:      esCfg,
	}
}

// Upload stores the document bytes in MinIO, records its metadata and
// enqueues an ingest task. Re-uploading the same content for the same
// tenant re-ingests it; chunks are replaced, not duplicated.
func (s *documentService) Upload(ctx context.Context, tenantID, userID, fileName string, reader io.Reader) (*model.Document, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	log.Infof("[DocumentService] uploading, tenant: %s, fileName: %s", tenantID, fileName)

	// 1. Buffer the content and derive the tenant-scoped document ID
	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if size == 0 {
		return nil, errors.New("uploaded file is empty")
	}
	documentID := documentIdentity(tenantID, buf.Bytes())
	log.Infof("[DocumentService] step 1: content read, size: %d bytes, documentID: %s", size, documentID)

	// 2. Store the raw bytes in MinIO
	storagePath := fmt.Sprintf("tenants/%s/%s/%s", tenantID, documentID, fileName)
	log.Infof("[DocumentService] step 2: storing object, bucket: %s, object: %s", s.minioCfg.BucketName, storagePath)
	_, err = storage.MinioClient.PutObject(ctx, s.minioCfg.BucketName, storagePath,
		bytes.NewReader(buf.Bytes()), size, minio.PutObjectOptions{})
	if err != nil {
		log.Errorf("[DocumentService] failed to store object: %v", err)
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	// 3. Upsert the metadata record
	log.Info("[DocumentService] step 3: recording document metadata")
	doc := &model.Document{
		ID:          documentID,
		TenantID:    tenantID,
		UserID:      userID,
		Name:        fileName,
		Size:        size,
		StoragePath: storagePath,
		Status:      model.DocStatusPending,
	}
	existing, err := s.docRepo.GetByID(tenantID, documentID)
	switch {
	case err == nil:
		// Same content re-uploaded; reset it to pending for re-ingestion.
		doc.CreatedAt = existing.CreatedAt
		if err := s.docRepo.UpdateStatus(documentID, model.DocStatusPending); err != nil {
			return nil, fmt.Errorf("failed to reset document status: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.docRepo.Create(doc); err != nil {
			return nil, fmt.Errorf("failed to record document: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}

	// 4. Enqueue the ingest task
	log.Info("[DocumentService] step 4: enqueueing ingest task")
	_ = s.statusRepo.SetStatus(ctx, documentID, repository.IngestStatusQueued)
	task := tasks.DocumentIngestTask{
		DocumentID:  documentID,
		TenantID:    tenantID,
		UserID:      userID,
		FileName:    fileName,
		StoragePath: storagePath,
	}
	if err := kafka.ProduceIngestTask(task); err != nil {
		log.Errorf("[DocumentService] failed to enqueue ingest task: %v", err)
		return nil, fmt.Errorf("failed to enqueue ingest task: %w", err)
	}

	log.Infof("[DocumentService] upload accepted, documentID: %s", documentID)
	return doc, nil
}

// List returns all documents belonging to a tenant.
func (s *documentService) List(tenantID string) ([]model.Document, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	return s.docRepo.FindByTenant(tenantID)
}

// Status reports a document's ingest progress. The live Redis status wins
// over the persisted one while the document is in flight.
func (s *documentService) Status(ctx context.Context, tenantID, documentID string) (*DocumentStatusDTO, error) {
	doc, err := s.docRepo.GetByID(tenantID, documentID)
	if err != nil {
		return nil, errors.New("document not found")
	}

	status, err := s.statusRepo.GetStatus(ctx, documentID)
	if err != nil || status == "" {
		status = persistedStatusLabel(doc.Status)
	}

	dto := &DocumentStatusDTO{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     status,
	}
	if doc.IndexedAt != nil {
		dto.IndexedAt = doc.IndexedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto, nil
}

// Delete removes a document everywhere: search index, object storage and
// the metadata store.
func (s *documentService) Delete(ctx context.Context, tenantID, documentID string) error {
	doc, err := s.docRepo.GetByID(tenantID, documentID)
	if err != nil {
		return errors.New("document not found")
	}

	log.Infof("[DocumentService] deleting document, tenant: %s, documentID: %s", tenantID, documentID)
	if err := es.DeleteByDocumentID(ctx, s.esCfg.IndexName, tenantID, documentID); err != nil {
		return fmt.Errorf("failed to delete indexed chunks: %w", err)
	}

	if err := storage.MinioClient.RemoveObject(ctx, s.minioCfg.BucketName, doc.StoragePath, minio.RemoveObjectOptions{}); err != nil {
		// The index and metadata cleanup still proceed; a stray object is
		// recoverable, stale search results are not.
		log.Warnf("[DocumentService] failed to remove object '%s': %v", doc.StoragePath, err)
	}

	return s.docRepo.Delete(tenantID, documentID)
}

// documentIdentity derives the content-addressed document ID. The tenant
// is part of the hash, so the same file uploaded by two tenants yields two
// independent documents; the ES chunk keys and ingest status keys built
// from this ID inherit the tenant scoping.
func documentIdentity(tenantID string, content []byte) string {
	h := md5.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func persistedStatusLabel(status int) string {
	switch status {
	case model.DocStatusPending:
		return repository.IngestStatusQueued
	case model.DocStatusProcessing:
		return repository.IngestStatusProcessing
	case model.DocStatusCompleted:
		return repository.IngestStatusCompleted
	case model.DocStatusFailed:
		return repository.IngestStatusFailed
	default:
		return "unknown"
	}
}
