package engine

import (
	"context"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// Fallback replies for the chat step's degradation paths.
const (
	chatNoConversationRef   = "I'm sorry, I couldn't access the conversation."
	chatConversationMissing = "I'm sorry, I couldn't find the conversation."
	chatNoUserMessage       = "I'm ready to help! What can I do for you?"
	chatCallFailed          = "I'm sorry, I couldn't generate a response. Please try again."
)

const defaultChatSystemPrompt = `You are a helpful and friendly assistant for booking appointments and consultations.
You should:
- Be conversational and natural
- Ask clarifying questions when needed
- Remember information from the conversation
- Help users book appointments by collecting: name, preferred date/time, and reason for visit
- Be concise but friendly
- Confirm details before finalizing bookings

Respond naturally to the user's messages. Keep responses short and conversational.`

const keyMessagesSinceExtraction = "messages_since_extraction"

// ChatHandler generates a conversational reply from rolling memory instead
// of the full transcript. Memory is refreshed every third turn, or whenever
// it is empty; between refreshes only a counter advances. The model sees
// the rendered memory in the system prompt plus the last three raw
// messages, keeping token cost flat as the conversation grows.
type ChatHandler struct {
	deps Deps
}

func (h *ChatHandler) Execute(ctx context.Context, ec *ExecContext, step schema.StepDefinition) (Result, error) {
	conversationID := ec.ConversationID()
	if conversationID == "" {
		return Reply(chatNoConversationRef), nil
	}

	if _, err := h.deps.Store.GetConversation(ctx, ec.TenantID, conversationID); err != nil {
		if schema.CodeOf(err) == schema.ErrCodeNotFound {
			return Reply(chatConversationMissing), nil
		}
		return Continue(), schema.NewError(schema.ErrCodeExecution, "chat step: load conversation").WithCause(err)
	}

	stored, err := h.deps.Store.ListMessages(ctx, conversationID)
	if err != nil {
		return Continue(), schema.NewError(schema.ErrCodeExecution, "chat step: load messages").WithCause(err)
	}
	history := make([]ai.ChatMessage, len(stored))
	for i, m := range stored {
		history[i] = ai.ChatMessage{Role: m.Role, Content: m.Content}
	}

	memory := h.refreshMemory(ctx, ec, history)

	systemPrompt := step.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultChatSystemPrompt
	}
	if rendered := ai.BuildContextPrompt(memory); rendered != "" {
		systemPrompt += "\n\n" + rendered
	}

	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if !hasUserMessage(recent) {
		return Reply(chatNoUserMessage), nil
	}

	reply, err := h.deps.Gateway.Call(ctx, ai.CallRequest{
		SystemPrompt: systemPrompt,
		History:      recent,
	})
	if err != nil || reply == "" {
		if err != nil {
			h.deps.Logger.WarnContext(ctx, "chat step call failed", "error", err)
		}
		return Reply(chatCallFailed), nil
	}
	return Reply(reply), nil
}

// refreshMemory applies the extraction cadence: every third turn, or
// whenever memory is empty, fresh facts are extracted and merged in;
// otherwise only the counter advances.
func (h *ChatHandler) refreshMemory(ctx context.Context, ec *ExecContext, history []ai.ChatMessage) map[string]any {
	memory := ec.Memory()
	sinceExtraction := intFromAny(ec.Get(keyMessagesSinceExtraction), 0)

	if sinceExtraction >= 3 || len(memory) == 0 {
		extracted := h.deps.Memory.ExtractMemory(ctx, history)
		memory = ai.MergeMemory(memory, extracted)
		ec.SetMemory(memory)
		ec.Set(keyMessagesSinceExtraction, 0)
	} else {
		ec.Set(keyMessagesSinceExtraction, sinceExtraction+1)
	}
	return memory
}

func hasUserMessage(messages []ai.ChatMessage) bool {
	for _, m := range messages {
		if m.Role == "user" {
			return true
		}
	}
	return false
}
