package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kimuntu-rag-go/internal/config"
	"kimuntu-rag-go/internal/guard"
	"kimuntu-rag-go/internal/model"
	"kimuntu-rag-go/pkg/llm"
	"kimuntu-rag-go/pkg/log"

	"github.com/gorilla/websocket"
)

// AnswerRequest is one grounded-answer request, already normalized by the
// HTTP layer.
type AnswerRequest struct {
	TenantID string
	Query    string
	TopK     int
}

// AnswerResult carries the generated answer with its citations and any
// guard findings. Guard findings are reported, never fatal.
type AnswerResult struct {
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
	Issues    []guard.Issue    `json:"issues"`
	TokensIn  int              `json:"tokens_in"`
	TokensOut int              `json:"tokens_out"`
}

// AnswerService generates grounded answers over retrieved context.
type AnswerService interface {
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error)
	StreamAnswer(ctx context.Context, req AnswerRequest, ws *websocket.Conn, shouldStop func() bool) error
}

type answerService struct {
	retrievalService RetrievalService
	llmClient        llm.Client
	llmCfg           config.LLMConfig
}

// NewAnswerService creates a new AnswerService instance.
func NewAnswerService(retrievalService RetrievalService, llmClient llm.Client, llmCfg config.LLMConfig) AnswerService {
	return &answerService{
		retrievalService: retrievalService,
		llmClient:        llmClient,
		llmCfg:           llmCfg,
	}
}

// Answer runs retrieval, generates the answer and validates its citations.
func (s *answerService) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	log.Infof("[AnswerService] answering, tenant: %s, query: '%s'", req.TenantID, req.Query)

	// 1. Retrieve and pack context
	retrieval, err := s.retrievalService.Retrieve(ctx, req.TenantID, req.Query, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	// 2. Compose messages and call the LLM
	messages := s.composeMessages(retrieval.Packed, req.Query)
	completion, err := s.llmClient.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	// 3. Validate the answer against the cited sources
	issues := s.validateAnswer(completion.Text, retrieval)

	log.Infof("[AnswerService] answer generated, tenant: %s, %d citations, %d issues", req.TenantID, len(retrieval.Packed.Citations), len(issues))
	return &AnswerResult{
		Answer:    completion.Text,
		Citations: retrieval.Packed.Citations,
		Issues:    issues,
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
	}, nil
}

// StreamAnswer runs retrieval and streams the generated answer over the
// websocket, followed by a completion notification carrying citations and
// guard findings.
func (s *answerService) StreamAnswer(ctx context.Context, req AnswerRequest, ws *websocket.Conn, shouldStop func() bool) error {
	log.Infof("[AnswerService] streaming answer, tenant: %s, query: '%s'", req.TenantID, req.Query)

	retrieval, err := s.retrievalService.Retrieve(ctx, req.TenantID, req.Query, req.TopK)
	if err != nil {
		return fmt.Errorf("failed to retrieve context: %w", err)
	}

	messages := s.composeMessages(retrieval.Packed, req.Query)

	// Intercept the websocket writer to capture the full answer for
	// post-stream citation validation.
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, interceptor); err != nil {
		return err
	}

	issues := s.validateAnswer(answerBuilder.String(), retrieval)
	sendCompletion(ws, retrieval.Packed.Citations, issues)
	return nil
}

// composeMessages builds the system and user messages. The packed context
// is wrapped in reference delimiters so the model can tell retrieved text
// apart from instructions.
func (s *answerService) composeMessages(packed *model.PackedContext, query string) []llm.Message {
	rules := s.llmCfg.Prompt.Rules
	refStart := s.llmCfg.Prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := s.llmCfg.Prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	if rules != "" {
		sys.WriteString(rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if packed != nil && packed.Context != "" {
		sys.WriteString(packed.Context)
	} else {
		noRes := s.llmCfg.Prompt.NoResultText
		if noRes == "" {
			noRes = "(no retrieval results this turn)"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)

	return []llm.Message{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: query},
	}
}

// validateAnswer merges retrieval-time guard findings with citation checks
// on the generated text.
func (s *answerService) validateAnswer(answer string, retrieval *RetrievalResult) []guard.Issue {
	issues := append([]guard.Issue{}, retrieval.Issues...)

	sources := make([]guard.Source, 0, len(retrieval.Packed.Citations))
	for _, c := range retrieval.Packed.Citations {
		sources = append(sources, guard.Source{
			Marker: fmt.Sprintf("R%d", c.ID),
			Name:   c.Source,
		})
	}
	retrievalUsed := retrieval.Packed.ChunksUsed > 0
	issues = append(issues, guard.ValidateCitations(answer, sources, retrievalUsed)...)

	// An answer that itself reads like an injection payload usually means
	// the model echoed poisoned context.
	if score := guard.RiskScore(answer); score >= answerRiskThreshold {
		issues = append(issues, guard.Issue{
			Code:     guard.CodePromptInjection,
			Severity: guard.SeverityWarning,
			Message:  fmt.Sprintf("generated answer has injection risk score %.2f", score),
		})
	}
	return issues
}

// answerRiskThreshold flags answers whose guard risk score suggests echoed
// injection content.
const answerRiskThreshold = 0.5

// wsWriterInterceptor wraps a websocket.Conn to capture written chunks.
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage satisfies the llm.MessageWriter interface.
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// Stop flag set, skip delivery.
		return nil
	}
	w.writer.Write(data)
	// Wrap each raw chunk as {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion sends the final notification JSON after a stream.
func sendCompletion(ws *websocket.Conn, citations []model.Citation, issues []guard.Issue) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"citations": citations,
		"issues":    issues,
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
