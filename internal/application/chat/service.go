// Package chat answers user messages with retrieval-augmented prompts.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/memory"
	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/conversation"
	"github.com/Ntarekp/teamSynth/internal/domain/knowledge"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sanitize"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 500
	defaultTopK     = 5
)

var ErrEmptyMessage = errors.New("message is required")

// Retriever finds knowledge chunks relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Chunk, error)
}

// Request is a single chat message.
type Request struct {
	Message   string
	Context   any
	UserID    string
	SessionID string
}

// Reply is the assistant's answer.
type Reply struct {
	Response  string    `json:"response"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
}

// Service is the chat orchestrator.
type Service struct {
	model     model.Generator
	modelName string
	knowledge Retriever
	memory    *memory.Service
	topK      int
	logger    zerolog.Logger
}

// NewService creates a chat service. retriever may be nil, in which case
// prompts carry no retrieved context.
func NewService(gen model.Generator, modelName string, retriever Retriever, mem *memory.Service, topK int, logger zerolog.Logger) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Service{
		model:     gen,
		modelName: modelName,
		knowledge: retriever,
		memory:    mem,
		topK:      topK,
		logger:    logger.With().Str("service", "chat").Logger(),
	}
}

// Chat answers req. Retrieval and history failures degrade the prompt; a
// model failure is returned unchanged and nothing is written to memory.
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	message := sanitize.Text(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()
	}
	log := s.logger.With().Str("session_id", sessionID).Logger()

	chunks := s.retrieve(ctx, message, log)
	history, err := s.memory.Recent(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("conversation history unavailable")
		history = nil
	}

	prompt := BuildPrompt(chunks, history, renderContext(req.Context), message)
	text, err := s.model.Generate(ctx, prompt, model.Options{Temperature: chatTemperature, MaxTokens: chatMaxTokens})
	if err != nil {
		metrics.ChatRequests.WithLabelValues("model_error").Inc()
		return nil, err
	}
	text = strings.TrimSpace(text)

	unlock := s.memory.Lock(sessionID)
	err = s.memory.Append(ctx, sessionID,
		conversation.NewTurn(conversation.SenderUser, message),
		conversation.NewTurn(conversation.SenderAssistant, text),
	)
	unlock()
	if err != nil {
		log.Warn().Err(err).Msg("failed to store conversation")
	}

	metrics.ChatRequests.WithLabelValues("ok").Inc()
	return &Reply{
		Response:  text,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Model:     s.modelName,
	}, nil
}

func (s *Service) retrieve(ctx context.Context, query string, log zerolog.Logger) []knowledge.Chunk {
	if s.knowledge == nil {
		metrics.RetrievedChunks.Observe(0)
		return nil
	}
	chunks, err := s.knowledge.Search(ctx, query, s.topK)
	if err != nil {
		log.Warn().Err(err).Msg("knowledge retrieval failed, continuing without context")
		chunks = nil
	}
	metrics.RetrievedChunks.Observe(float64(len(chunks)))
	return chunks
}

func renderContext(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return sanitize.Text(c)
	default:
		b, err := json.Marshal(c)
		if err != nil || string(b) == "null" || string(b) == "{}" {
			return ""
		}
		return string(b)
	}
}

// BuildPrompt assembles the chat prompt from retrieved knowledge, recent
// turns, optional caller context and the message.
func BuildPrompt(chunks []knowledge.Chunk, history []conversation.Turn, callerContext, message string) string {
	var b strings.Builder
	b.WriteString("You are TeamWell Bridge AI, an empathic enterprise assistant focused on team wellness and productivity.\n\n")

	b.WriteString("Context from team knowledge base:\n")
	if len(chunks) == 0 {
		b.WriteString("No relevant knowledge found.\n")
	}
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Text)
		b.WriteString("\n")
	}

	b.WriteString("\nRecent conversation:\n")
	if len(history) == 0 {
		b.WriteString("No previous messages.\n")
	}
	for _, t := range history {
		fmt.Fprintf(&b, "%s: %s\n", t.Sender, t.Content)
	}

	if callerContext != "" {
		fmt.Fprintf(&b, "\nCurrent conversation context:\n%s\n", callerContext)
	}

	fmt.Fprintf(&b, "\nUser message: %s\n\n", message)
	b.WriteString(`Provide a helpful, empathetic response that:
1. Addresses the user's specific needs
2. Uses relevant information from the knowledge base
3. Suggests actionable next steps
4. Maintains a supportive, professional tone
5. Considers team wellness and productivity

Response:`)
	return b.String()
}
