package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"kimuntu-rag-go/internal/model"
	"kimuntu-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

type vectorSearcher struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewVectorSearcher creates a kNN similarity searcher over the chunk index.
func NewVectorSearcher(esClient *elasticsearch.Client, indexName string) VectorSearcher {
	return &vectorSearcher{esClient: esClient, indexName: indexName}
}

// SearchVector runs a kNN query against the vector field, filtered to the
// tenant inside the knn clause so candidates from other tenants are never
// considered.
func (s *vectorSearcher) SearchVector(ctx context.Context, tenantID string, queryVector []float32, k int) ([]model.SearchResult, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              k,
			"num_candidates": k * 4,
			"filter":         tenantFilter(tenantID),
		},
		"size": k,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode vector query: %w", err)
	}

	results, err := executeSearch(ctx, s.esClient, s.indexName, &buf)
	if err != nil {
		log.Errorf("[VectorSearch] search failed, tenant: %s, error: %v", tenantID, err)
		return nil, err
	}
	log.Infof("[VectorSearch] tenant: %s, query hit %d results", tenantID, len(results))
	return results, nil
}
