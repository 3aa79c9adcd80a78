package handler

import (
	"net/http"

	"kimuntu-rag-go/internal/service"
	"kimuntu-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler handles document management requests.
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler instance.
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// List returns the tenant's documents.
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	docs, err := h.docService.List(tenantID)
	if err != nil {
		log.Errorf("[DocumentHandler] list failed, tenant: %s, error: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "items": docs, "count": len(docs)})
}

// Status reports a document's ingest progress.
func (h *DocumentHandler) Status(c *gin.Context) {
	tenantID := c.Query("tenantId")
	documentID := c.Param("id")
	if tenantID == "" || documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId and document id are required"})
		return
	}

	status, err := h.docService.Status(c.Request.Context(), tenantID, documentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "data": status})
}

// Delete removes a document from the index, object storage and metadata.
func (h *DocumentHandler) Delete(c *gin.Context) {
	tenantID := c.Query("tenantId")
	documentID := c.Param("id")
	if tenantID == "" || documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId and document id are required"})
		return
	}

	if err := h.docService.Delete(c.Request.Context(), tenantID, documentID); err != nil {
		log.Warnf("[DocumentHandler] delete failed, tenant: %s, documentID: %s, error: %v", tenantID, documentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
