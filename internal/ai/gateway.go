// Package ai holds the language-model collaborators: the gateway client,
// the JSON extractor, the memory bank, and the prompt builder.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/parlo-ai/parlo/pkg/schema"
)

// ChatMessage is one turn of a chat exchange.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallRequest describes one call to the language model.
// When History is supplied it is sent as chat turns; otherwise the
// Context map is embedded as developer metadata alongside the instruction.
type CallRequest struct {
	Instruction  string
	SystemPrompt string
	Context      map[string]any
	History      []ChatMessage

	// Extraction selects the low-temperature JSON-object response mode
	// used for memory extraction.
	Extraction bool
}

// Gateway is the opaque call-with-prompt language-model service.
type Gateway interface {
	Call(ctx context.Context, req CallRequest) (string, error)
}

// OpenAIGateway calls an OpenAI-compatible chat-completions endpoint.
type OpenAIGateway struct {
	baseURL         string
	apiKey          string
	model           string
	extractionModel string
	client          *http.Client
	logger          *slog.Logger
}

// NewOpenAIGateway creates a gateway against the given base URL
// (e.g. "https://api.openai.com/v1").
func NewOpenAIGateway(baseURL, apiKey, model, extractionModel string, logger *slog.Logger) *OpenAIGateway {
	if extractionModel == "" {
		extractionModel = model
	}
	return &OpenAIGateway{
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		extractionModel: extractionModel,
		client:          &http.Client{Timeout: 60 * time.Second},
		logger:          logger,
	}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call performs a synchronous chat completion. Failures are returned as
// errors; callers degrade per handler (apology string, unset variables)
// rather than propagating.
func (g *OpenAIGateway) Call(ctx context.Context, req CallRequest) (string, error) {
	if g.apiKey == "" {
		return "", schema.NewError(schema.ErrCodeGateway, "AI gateway API key not configured")
	}

	body := chatCompletionRequest{
		Model:       g.model,
		Messages:    g.buildMessages(req),
		Temperature: 0.2,
		MaxTokens:   800,
		Stop:        []string{"</json>", "</end>"},
	}
	if req.Extraction {
		body.Model = g.extractionModel
		body.Temperature = 0.1
		body.MaxTokens = 200
		body.Stop = nil
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeGateway, "marshal chat request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", schema.NewError(schema.ErrCodeGateway, "create chat request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeGateway, "chat request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.ErrorContext(ctx, "gateway returned non-200", "status", resp.StatusCode, "body", string(snippet))
		return "", schema.NewErrorf(schema.ErrCodeGateway, "chat request failed: status %d", resp.StatusCode)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", schema.NewError(schema.ErrCodeGateway, "decode chat response").WithCause(err)
	}
	if len(completion.Choices) == 0 {
		return "", schema.NewError(schema.ErrCodeGateway, "chat response contained no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// buildMessages shapes the wire messages. With history, the turns are sent
// as-is after the system prompt. Without it, the context map rides along as
// developer metadata so it is never mistaken for an assistant turn.
func (g *OpenAIGateway) buildMessages(req CallRequest) []ChatMessage {
	if len(req.History) > 0 {
		messages := make([]ChatMessage, 0, len(req.History)+1)
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
		return append(messages, req.History...)
	}

	ctxJSON, err := json.Marshal(req.Context)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	return []ChatMessage{
		{Role: "system", Content: req.SystemPrompt},
		{Role: "developer", Content: fmt.Sprintf("CONTEXT DATA:\n%s", ctxJSON)},
		{Role: "user", Content: req.Instruction},
	}
}
