// Package tasks defines the structures for tasks that are sent to Kafka.
package tasks

// DocumentIngestTask represents one document ingestion job. The document
// bytes already live in object storage; the task carries only references.
type DocumentIngestTask struct {
	DocumentID  string `json:"document_id"`
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
}
