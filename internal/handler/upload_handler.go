// Package handler contains the HTTP controller logic.
package handler

import (
	"net/http"

	"kimuntu-rag-go/internal/service"
	"kimuntu-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler handles document upload requests.
type UploadHandler struct {
	docService service.DocumentService
}

// NewUploadHandler creates a new UploadHandler instance.
func NewUploadHandler(docService service.DocumentService) *UploadHandler {
	return &UploadHandler{docService: docService}
}

// Upload accepts a multipart document and enqueues it for ingestion.
// Contract: 400 on missing input, 500 on provider failure, 200 with
// {"ok": true, ...} on success.
func (h *UploadHandler) Upload(c *gin.Context) {
	tenantID := c.PostForm("tenantId")
	userID := c.PostForm("userId")
	if tenantID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId and userId are required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	log.Infof("[UploadHandler] received upload, tenant: %s, fileName: %s, size: %d", tenantID, fileHeader.Filename, fileHeader.Size)

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})
		return
	}
	defer file.Close()

	doc, err := h.docService.Upload(c.Request.Context(), tenantID, userID, fileHeader.Filename, file)
	if err != nil {
		log.Errorf("[UploadHandler] upload failed, tenant: %s, error: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"documentId": doc.ID,
		"name":       doc.Name,
		"status":     "queued",
	})
}
