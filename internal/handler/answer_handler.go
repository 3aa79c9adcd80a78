package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"kimuntu-rag-go/internal/service"
	"kimuntu-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AnswerHandler handles grounded-answer requests, both one-shot and
// streamed over websocket.
type AnswerHandler struct {
	answerService service.AnswerService
}

// NewAnswerHandler creates a new AnswerHandler instance.
func NewAnswerHandler(answerService service.AnswerService) *AnswerHandler {
	return &AnswerHandler{answerService: answerService}
}

// answerBody is the flat request shape.
type answerBody struct {
	TenantID string `json:"tenantId"`
	Query    string `json:"query"`
	TopK     int    `json:"topK"`
}

// legacyAnswerBody is the old {plan, request} wrapper kept for backward
// compatibility during the schema migration.
type legacyAnswerBody struct {
	Plan    json.RawMessage `json:"plan"`
	Request *answerBody     `json:"request"`
}

// normalizeAnswerBody accepts either shape and returns the canonical flat
// one. The discriminant is the presence of a "request" object; the shape
// decision never leaks past this boundary.
func normalizeAnswerBody(raw []byte) (*answerBody, error) {
	var legacy legacyAnswerBody
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy.Request != nil {
		return legacy.Request, nil
	}

	var flat answerBody
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.New("invalid request body")
	}
	return &flat, nil
}

// Answer generates a grounded answer for one query.
func (h *AnswerHandler) Answer(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read request body"})
		return
	}

	body, err := normalizeAnswerBody(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.TenantID == "" || body.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId and query are required"})
		return
	}
	log.Infof("[AnswerHandler] received answer request, tenant: %s", body.TenantID)

	result, err := h.answerService.Answer(c.Request.Context(), service.AnswerRequest{
		TenantID: body.TenantID,
		Query:    body.Query,
		TopK:     body.TopK,
	})
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		log.Errorf("[AnswerHandler] answer failed, tenant: %s, error: %v", body.TenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate answer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "data": result})
}

// Stream upgrades to a websocket and streams one answer per received
// query message.
func (h *AnswerHandler) Stream(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	topK := 0
	if topKStr := c.Query("topK"); topKStr != "" {
		if parsed, err := strconv.Atoi(topKStr); err == nil && parsed > 0 {
			topK = parsed
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	log.Infof("websocket connection established, tenant: %s", tenantID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("failed to read websocket message: %v", err)
			break
		}

		req := service.AnswerRequest{
			TenantID: tenantID,
			Query:    string(message),
			TopK:     topK,
		}
		if err := h.answerService.StreamAnswer(c.Request.Context(), req, conn, nil); err != nil {
			log.Errorf("failed to stream answer: %v", err)
			errResp := map[string]string{"error": "answer service temporarily unavailable"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			break
		}
	}
}
