// Package es provides the Elasticsearch client and index management.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kimuntu-rag-go/internal/config"
	"kimuntu-rag-go/internal/model"
	"kimuntu-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

var ESClient *elasticsearch.Client

// InitES initializes the Elasticsearch client and ensures the chunk index exists.
func InitES(esCfg config.ElasticsearchConfig, vectorDims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, vectorDims)
}

// createIndexIfNotExists checks whether the index exists and creates it otherwise.
func createIndexIfNotExists(indexName string, vectorDims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("failed to check whether index exists: %v", err)
		return err
	}
	// 200 means the index already exists.
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", indexName)
		return nil
	}
	// 404 means the index is missing and must be created.
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("unexpected status code while checking index '%s': %d", indexName, res.StatusCode)
		return fmt.Errorf("unexpected status code while checking index: %d", res.StatusCode)
	}

	if vectorDims <= 0 {
		vectorDims = 1536
	}

	// tenant_id is a keyword so tenant filters are exact term matches.
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_key": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"tenant_id": { "type": "keyword" },
				"document_name": { "type": "keyword" },
				"chunk_order": { "type": "integer" },
				"content_hash": { "type": "keyword" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"page": { "type": "integer" }
			}
		}
	}`, vectorDims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("failed to create index '%s': %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("Elasticsearch returned an error while creating index '%s': %s", indexName, res.String())
		return errors.New("Elasticsearch returned an error while creating index")
	}

	log.Infof("index '%s' created", indexName)
	return nil
}

// BulkIndexChunks indexes a batch of chunk documents with a single bulk request.
func BulkIndexChunks(ctx context.Context, indexName string, chunks []model.EsChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, chunk := range chunks {
		meta := map[string]map[string]string{
			"index": {"_index": indexName, "_id": chunk.ChunkKey},
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		docBytes, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := ESClient.Bulk(
		bytes.NewReader(buf.Bytes()),
		ESClient.Bulk.WithContext(ctx),
		ESClient.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("bulk indexing returned an error: %s", res.String())
		return errors.New("failed to bulk index chunks")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, op := range item {
				if op.Error != nil {
					log.Errorf("bulk item failed with status %d: %s", op.Status, op.Error.Reason)
				}
			}
		}
		return errors.New("one or more bulk items failed")
	}

	return nil
}

// DeleteByDocumentID removes all chunks belonging to a document within a tenant.
// Re-ingesting a document deletes its old chunks first so stale content never
// lingers in the index.
func DeleteByDocumentID(ctx context.Context, indexName, tenantID, documentID string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"tenant_id": tenantID}},
					{"term": map[string]interface{}{"document_id": documentID}},
				},
			},
		},
	}
	queryBytes, err := json.Marshal(query)
	if err != nil {
		return err
	}

	res, err := ESClient.DeleteByQuery(
		[]string{indexName},
		bytes.NewReader(queryBytes),
		ESClient.DeleteByQuery.WithContext(ctx),
		ESClient.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("delete by query returned an error: %s", res.String())
		return errors.New("failed to delete document chunks")
	}

	return nil
}
