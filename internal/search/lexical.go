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

type lexicalSearcher struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewLexicalSearcher creates a BM25 keyword searcher over the chunk index.
func NewLexicalSearcher(esClient *elasticsearch.Client, indexName string) LexicalSearcher {
	return &lexicalSearcher{esClient: esClient, indexName: indexName}
}

// SearchLexical runs a BM25 match query against text_content, filtered to
// the tenant.
func (s *lexicalSearcher) SearchLexical(ctx context.Context, tenantID, query string, k int) ([]model.SearchResult, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"text_content": query,
					},
				},
				"filter": tenantFilter(tenantID),
			},
		},
		"size": k,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode lexical query: %w", err)
	}

	results, err := executeSearch(ctx, s.esClient, s.indexName, &buf)
	if err != nil {
		log.Errorf("[LexicalSearch] search failed, tenant: %s, error: %v", tenantID, err)
		return nil, err
	}
	log.Infof("[LexicalSearch] tenant: %s, query hit %d results", tenantID, len(results))
	return results, nil
}
