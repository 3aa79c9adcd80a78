// Package search provides the lexical and vector retrieval adapters over
// Elasticsearch. Each adapter returns an independent ranked candidate list;
// rank fusion happens downstream.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"kimuntu-rag-go/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// LexicalSearcher runs keyword (BM25) retrieval scoped to one tenant.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, tenantID, query string, k int) ([]model.SearchResult, error)
}

// VectorSearcher runs embedding similarity retrieval scoped to one tenant.
type VectorSearcher interface {
	SearchVector(ctx context.Context, tenantID string, queryVector []float32, k int) ([]model.SearchResult, error)
}

// executeSearch sends a query body to the index and decodes the hits into
// ranked SearchResults.
func executeSearch(ctx context.Context, client *elasticsearch.Client, indexName string, body io.Reader) ([]model.SearchResult, error) {
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(indexName),
		client.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	return decodeHits(res)
}

func decodeHits(res *esapi.Response) ([]model.SearchResult, error) {
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.SearchResult{
			ID:      hit.Source.ChunkKey,
			Score:   hit.Score,
			Content: hit.Source.TextContent,
			Metadata: model.ChunkMetadata{
				DocumentID:   hit.Source.DocumentID,
				DocumentName: hit.Source.DocumentName,
				ChunkOrder:   hit.Source.ChunkOrder,
				Page:         hit.Source.Page,
			},
		})
	}
	return results, nil
}

// tenantFilter builds the term clause that scopes every search to one
// tenant. It is part of the query itself, never post-filtering.
func tenantFilter(tenantID string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{"tenant_id": tenantID},
	}
}
