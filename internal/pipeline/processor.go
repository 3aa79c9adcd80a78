// Package pipeline implements the document ingestion flow consumed off Kafka.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"kimuntu-rag-go/internal/chunker"
	"kimuntu-rag-go/internal/config"
	"kimuntu-rag-go/internal/model"
	"kimuntu-rag-go/internal/repository"
	"kimuntu-rag-go/pkg/embedding"
	"kimuntu-rag-go/pkg/es"
	"kimuntu-rag-go/pkg/log"
	"kimuntu-rag-go/pkg/storage"
	"kimuntu-rag-go/pkg/tasks"
	"kimuntu-rag-go/pkg/tika"

	"github.com/minio/minio-go/v7"
)

// Processor holds the dependencies for document ingestion.
type Processor struct {
	tikaClient      *tika.Client
	embeddingClient embedding.Client
	splitter        *chunker.Splitter
	esCfg           config.ElasticsearchConfig
	minioCfg        config.MinIOConfig
	embeddingCfg    config.EmbeddingConfig
	docRepo         repository.DocumentRepository
	statusRepo      repository.IngestStatusRepository
}

// NewProcessor creates a new Processor instance.
func NewProcessor(
	tikaClient *tika.Client,
	embeddingClient embedding.Client,
	splitter *chunker.Splitter,
	esCfg config.ElasticsearchConfig,
	minioCfg config.MinIOConfig,
	embeddingCfg config.EmbeddingConfig,
	docRepo repository.DocumentRepository,
	statusRepo repository.IngestStatusRepository,
) *Processor {
	return &Processor{
		tikaClient:      tikaClient,
		embeddingClient: embeddingClient,
		splitter:        splitter,
		esCfg:           esCfg,
		minioCfg:        minioCfg,
		embeddingCfg:    embeddingCfg,
		docRepo:         docRepo,
		statusRepo:      statusRepo,
	}
}

// Process runs the full ingestion flow for one document: download, extract,
// chunk, embed, index. Re-processing the same document is idempotent; the
// old chunks are replaced, never accumulated.
func (p *Processor) Process(ctx context.Context, task tasks.DocumentIngestTask) error {
	log.Infof("[Processor] processing document, documentID: %s, fileName: %s, tenant: %s", task.DocumentID, task.FileName, task.TenantID)

	_ = p.statusRepo.SetStatus(ctx, task.DocumentID, repository.IngestStatusProcessing)
	_ = p.docRepo.UpdateStatus(task.DocumentID, model.DocStatusProcessing)

	if err := p.process(ctx, task); err != nil {
		_ = p.statusRepo.SetStatus(ctx, task.DocumentID, repository.IngestStatusFailed)
		_ = p.docRepo.UpdateStatus(task.DocumentID, model.DocStatusFailed)
		return err
	}

	_ = p.statusRepo.SetStatus(ctx, task.DocumentID, repository.IngestStatusCompleted)
	if err := p.docRepo.MarkIndexed(task.DocumentID); err != nil {
		log.Errorf("[Processor] failed to mark document as indexed, documentID: %s, error: %v", task.DocumentID, err)
	}

	log.Infof("[Processor] document processed successfully, documentID: %s", task.DocumentID)
	return nil
}

func (p *Processor) process(ctx context.Context, task tasks.DocumentIngestTask) error {
	// 1. Download the document from MinIO
	log.Infof("[Processor] step 1: downloading from MinIO, bucket: %s, object: %s", p.minioCfg.BucketName, task.StoragePath)
	object, err := storage.MinioClient.GetObject(ctx, p.minioCfg.BucketName, task.StoragePath, minio.GetObjectOptions{})
	if err != nil {
		log.Errorf("[Processor] failed to download from MinIO, object: %s, error: %v", task.StoragePath, err)
		return fmt.Errorf("failed to download document from MinIO: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		log.Errorf("[Processor] failed to read MinIO object stream, error: %v", err)
		return fmt.Errorf("failed to read MinIO object stream: %w", err)
	}
	log.Infof("[Processor] step 1: download complete, size: %d bytes", size)
	if size == 0 {
		log.Warnf("[Processor] document '%s' is empty, aborting", task.FileName)
		return errors.New("document content is empty")
	}

	// 2. Extract plain text with Tika
	log.Info("[Processor] step 2: extracting text with Tika")
	textContent, err := p.tikaClient.ExtractText(bytes.NewReader(buf.Bytes()), task.FileName)
	if err != nil {
		log.Errorf("[Processor] Tika extraction failed, fileName: %s, error: %v", task.FileName, err)
		return fmt.Errorf("failed to extract text with Tika: %w", err)
	}
	if textContent == "" {
		log.Warnf("[Processor] Tika returned empty text, aborting, fileName: %s", task.FileName)
		return errors.New("extracted text is empty")
	}
	log.Infof("[Processor] step 2: extraction complete, length: %d characters", utf8.RuneCountInString(textContent))

	// 3. Split into overlapping chunks
	log.Info("[Processor] step 3: splitting text into chunks")
	chunks := p.splitter.Split(textContent)
	log.Infof("[Processor] step 3: split complete, %d chunks", len(chunks))
	if len(chunks) == 0 {
		log.Warnf("[Processor] no chunks produced, aborting, fileName: %s", task.FileName)
		return errors.New("no chunks produced")
	}

	// 4. Replace chunk rows in the database
	log.Info("[Processor] step 4: storing chunk rows")
	chunkRows := make([]model.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		chunkRows = append(chunkRows, model.DocumentChunk{
			DocumentID:  task.DocumentID,
			TenantID:    task.TenantID,
			ChunkOrder:  chunk.Order,
			ContentHash: chunk.ContentHash,
			TextContent: chunk.Text,
			Page:        chunk.Page,
		})
	}
	if err := p.docRepo.ReplaceChunks(task.DocumentID, chunkRows); err != nil {
		log.Errorf("[Processor] step 4: failed to store chunk rows, error: %v", err)
		return fmt.Errorf("failed to store chunk rows: %w", err)
	}
	log.Infof("[Processor] step 4: stored %d chunk rows", len(chunkRows))

	// 5. Embed all chunk texts in batches
	log.Info("[Processor] step 5: embedding chunk texts")
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embeddingClient.EmbedBatch(ctx, texts)
	if err != nil {
		log.Errorf("[Processor] step 5: embedding failed, error: %v", err)
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	log.Infof("[Processor] step 5: embedded %d chunks", len(vectors))

	// 6. Replace the document's chunks in Elasticsearch
	log.Info("[Processor] step 6: indexing chunks into Elasticsearch")
	if err := es.DeleteByDocumentID(ctx, p.esCfg.IndexName, task.TenantID, task.DocumentID); err != nil {
		log.Errorf("[Processor] step 6: failed to delete stale chunks, error: %v", err)
		return fmt.Errorf("failed to delete stale chunks: %w", err)
	}

	esChunks := make([]model.EsChunk, 0, len(chunks))
	for i, chunk := range chunks {
		esChunks = append(esChunks, model.EsChunk{
			ChunkKey:     fmt.Sprintf("%s_%d", task.DocumentID, chunk.Order),
			DocumentID:   task.DocumentID,
			TenantID:     task.TenantID,
			DocumentName: task.FileName,
			ChunkOrder:   chunk.Order,
			ContentHash:  chunk.ContentHash,
			TextContent:  chunk.Text,
			Vector:       vectors[i],
			ModelVersion: p.embeddingCfg.Model,
			Page:         chunk.Page,
		})
	}
	if err := es.BulkIndexChunks(ctx, p.esCfg.IndexName, esChunks); err != nil {
		log.Errorf("[Processor] step 6: bulk indexing failed, error: %v", err)
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	log.Infof("[Processor] step 6: indexed %d chunks", len(esChunks))

	return nil
}
