package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Ingest status values surfaced to clients while a document works its way
// through the queue.
const (
	IngestStatusQueued     = "queued"
	IngestStatusProcessing = "processing"
	IngestStatusCompleted  = "completed"
	IngestStatusFailed     = "failed"
)

// ingestStatusTTL bounds how long a status key lives in Redis.
const ingestStatusTTL = 24 * time.Hour

// IngestStatusRepository tracks per-document ingest progress in Redis.
type IngestStatusRepository interface {
	SetStatus(ctx context.Context, documentID, status string) error
	GetStatus(ctx context.Context, documentID string) (string, error)
}

type ingestStatusRepository struct {
	redisClient *redis.Client
}

// NewIngestStatusRepository creates a new IngestStatusRepository instance.
func NewIngestStatusRepository(redisClient *redis.Client) IngestStatusRepository {
	return &ingestStatusRepository{redisClient: redisClient}
}

func (r *ingestStatusRepository) statusKey(documentID string) string {
	return "ingest:status:" + documentID
}

// SetStatus stores the current ingest status for a document.
func (r *ingestStatusRepository) SetStatus(ctx context.Context, documentID, status string) error {
	return r.redisClient.Set(ctx, r.statusKey(documentID), status, ingestStatusTTL).Err()
}

// GetStatus returns the stored ingest status, or an empty string when the
// key is missing or expired.
func (r *ingestStatusRepository) GetStatus(ctx context.Context, documentID string) (string, error) {
	val, err := r.redisClient.Get(ctx, r.statusKey(documentID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return val, nil
}
