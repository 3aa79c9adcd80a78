package handler

import (
	"errors"
	"net/http"
	"strconv"

	"kimuntu-rag-go/internal/service"
	"kimuntu-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler handles hybrid retrieval requests.
type SearchHandler struct {
	retrievalService service.RetrievalService
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(retrievalService service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrievalService: retrievalService}
}

// Search runs hybrid retrieval for one query.
// Contract: 400 on missing input, 500 on provider failure, 200 with
// {"ok": true, "items": [...], "count": n} on success.
func (h *SearchHandler) Search(c *gin.Context) {
	tenantID := c.Query("tenantId")
	query := c.Query("q")
	log.Infof("[SearchHandler] received search, tenant: %s, q: '%s'", tenantID, query)

	if tenantID == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId and q are required"})
		return
	}

	topK := 0
	if topKStr := c.Query("topK"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "topK must be a positive integer"})
			return
		}
		topK = parsed
	}

	result, err := h.retrievalService.Retrieve(c.Request.Context(), tenantID, query, topK)
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		log.Errorf("[SearchHandler] retrieval failed, tenant: %s, error: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	log.Infof("[SearchHandler] search succeeded, tenant: %s, %d items", tenantID, len(result.Chunks))
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"items": result.Chunks,
		"count": len(result.Chunks),
	})
}
