package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TenantID(ctx))
	assert.Empty(t, ConversationID(ctx))
	assert.Empty(t, StepType(ctx))

	ctx = WithTenantID(ctx, "t-1")
	ctx = WithConversationID(ctx, "c-1")
	ctx = WithStepType(ctx, "chat")

	assert.Equal(t, "t-1", TenantID(ctx))
	assert.Equal(t, "c-1", ConversationID(ctx))
	assert.Equal(t, "chat", StepType(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithConversationID(WithTenantID(context.Background(), "tenant-42"), "conv-7")
	logger.InfoContext(ctx, "turn processed")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"tenant_id":"tenant-42"`)
	assert.Contains(t, out, `"conversation_id":"conv-7"`)
	assert.NotContains(t, out, "step_type")
}
