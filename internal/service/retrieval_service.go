// Package service contains the application's business logic layer.
package service

import (
	"context"
	"errors"
	"fmt"

	"kimuntu-rag-go/internal/cache"
	"kimuntu-rag-go/internal/config"
	"kimuntu-rag-go/internal/fusion"
	"kimuntu-rag-go/internal/guard"
	"kimuntu-rag-go/internal/model"
	"kimuntu-rag-go/internal/packer"
	"kimuntu-rag-go/internal/ratelimit"
	"kimuntu-rag-go/internal/search"
	"kimuntu-rag-go/pkg/embedding"
	"kimuntu-rag-go/pkg/log"

	"golang.org/x/sync/errgroup"
)

// ErrRateLimited is returned when a tenant has exhausted its request budget.
var ErrRateLimited = errors.New("tenant rate limit exceeded")

// ErrEmptyQuery is returned when the query is blank.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrMissingTenant is returned when no tenant ID was provided.
var ErrMissingTenant = errors.New("tenant id must not be empty")

// RetrievalResult is the outcome of one retrieval request. Issues carry
// guard findings on the retrieved content; they never abort the request.
type RetrievalResult struct {
	Chunks []model.RetrievedChunk `json:"chunks"`
	Packed *model.PackedContext   `json:"packed"`
	Issues []guard.Issue          `json:"issues"`
}

// RetrievalService orchestrates hybrid retrieval: recall, fusion, guarding
// and context packing.
type RetrievalService interface {
	Retrieve(ctx context.Context, tenantID, query string, topK int) (*RetrievalResult, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	lexical         search.LexicalSearcher
	vector          search.VectorSearcher
	fusionEngine    *fusion.Engine
	limiter         *ratelimit.Limiter
	queryCache      *cache.TTLCache
	cfg             config.RetrievalConfig
	snippetMaxLen   int
}

// NewRetrievalService creates a new RetrievalService instance. The limiter
// and cache are shared process-wide and injected from main.
func NewRetrievalService(
	embeddingClient embedding.Client,
	lexical search.LexicalSearcher,
	vector search.VectorSearcher,
	fusionEngine *fusion.Engine,
	limiter *ratelimit.Limiter,
	queryCache *cache.TTLCache,
	cfg config.RetrievalConfig,
	snippetMaxLen int,
) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		lexical:         lexical,
		vector:          vector,
		fusionEngine:    fusionEngine,
		limiter:         limiter,
		queryCache:      queryCache,
		cfg:             cfg,
		snippetMaxLen:   snippetMaxLen,
	}
}

// Retrieve runs the full retrieval flow for one query.
func (s *retrievalService) Retrieve(ctx context.Context, tenantID, query string, topK int) (*RetrievalResult, error) {
	// 1. Validate inputs
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	log.Infof("[RetrievalService] retrieving, tenant: %s, query: '%s', topK: %d", tenantID, query, topK)

	// 2. Rate limit per tenant
	if !s.limiter.Allow(tenantID) {
		log.Warnf("[RetrievalService] tenant rate limited: %s", tenantID)
		return nil, ErrRateLimited
	}

	// 3. Serve from cache when possible
	cacheKey := cache.Key(tenantID, query, topK)
	if cached, ok := s.queryCache.Get(cacheKey); ok {
		if result, ok := cached.(*RetrievalResult); ok {
			log.Infof("[RetrievalService] cache hit, tenant: %s", tenantID)
			return result, nil
		}
	}

	// 4. Embed the query. Embedding failure fails the whole request; a
	// vector-less hybrid search would silently return worse results.
	log.Info("[RetrievalService] step 1: embedding query")
	queryVector, err := s.embeddingClient.EmbedQuery(ctx, query)
	if err != nil {
		log.Errorf("[RetrievalService] query embedding failed: %v", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 5. Run lexical and vector recall in parallel
	log.Info("[RetrievalService] step 2: running lexical and vector recall")
	recallK := s.cfg.RecallK
	if recallK < topK {
		recallK = topK
	}

	var lexicalResults, vectorResults []model.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexicalResults, err = s.lexical.SearchLexical(gctx, tenantID, query, recallK)
		return err
	})
	g.Go(func() error {
		var err error
		vectorResults, err = s.vector.SearchVector(gctx, tenantID, queryVector, recallK)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Errorf("[RetrievalService] recall failed: %v", err)
		return nil, fmt.Errorf("recall failed: %w", err)
	}
	log.Infof("[RetrievalService] step 2: recall complete, lexical: %d, vector: %d", len(lexicalResults), len(vectorResults))

	// 6. Fuse the two ranked lists
	log.Info("[RetrievalService] step 3: fusing ranked lists")
	chunks := s.fusionEngine.Fuse(lexicalResults, vectorResults, topK)
	log.Infof("[RetrievalService] step 3: fusion complete, %d chunks", len(chunks))

	// 7. Guard the retrieved content before it reaches any prompt. Findings
	// are reported as issues; suspicious content is sanitized, not dropped.
	log.Info("[RetrievalService] step 4: scanning and sanitizing chunks")
	snippets := make([]string, len(chunks))
	for i := range chunks {
		snippets[i] = chunks[i].Content
	}
	issues := guard.ScanSnippets(snippets)
	for i := range chunks {
		chunks[i].Content = guard.Sanitize(chunks[i].Content, s.snippetMaxLen)
	}

	// 8. Pack into a token-budgeted context. An empty chunk list packs into
	// an empty context; that is a degraded answer, not an error.
	log.Info("[RetrievalService] step 5: packing context")
	packed := packer.Pack(chunks, s.cfg.MaxTokens, s.cfg.ReserveTokens)
	log.Infof("[RetrievalService] step 5: packed %d chunks, %d tokens, %d truncated", packed.ChunksUsed, packed.TokenCount, packed.ChunksTruncated)

	result := &RetrievalResult{
		Chunks: chunks,
		Packed: &packed,
		Issues: issues,
	}
	s.queryCache.Set(cacheKey, result)

	log.Infof("[RetrievalService] retrieval complete, tenant: %s, %d chunks", tenantID, len(chunks))
	return result, nil
}
