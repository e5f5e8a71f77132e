package ai

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	reply   string
	err     error
	lastReq CallRequest
}

func (s *stubGateway) Call(_ context.Context, req CallRequest) (string, error) {
	s.lastReq = req
	return s.reply, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestExtractMemory(t *testing.T) {
	gw := &stubGateway{reply: `{"customer_name": "Ada", "preferred_time": "10am"}`}
	bank, err := NewMemoryBank(gw, testLogger())
	require.NoError(t, err)

	memory := bank.ExtractMemory(context.Background(), []ChatMessage{
		{Role: "user", Content: "Hi, I'm Ada, can I come at 10am?"},
		{Role: "assistant", Content: "Of course!"},
	})

	assert.Equal(t, map[string]any{"customer_name": "Ada", "preferred_time": "10am"}, memory)
	assert.True(t, gw.lastReq.Extraction)
	require.Len(t, gw.lastReq.History, 1)
	assert.Contains(t, gw.lastReq.History[0].Content, "User: Hi, I'm Ada, can I come at 10am?")
	assert.Contains(t, gw.lastReq.History[0].Content, "Assistant: Of course!")
}

func TestExtractMemoryEmptyTranscript(t *testing.T) {
	bank, err := NewMemoryBank(&stubGateway{}, testLogger())
	require.NoError(t, err)
	assert.Empty(t, bank.ExtractMemory(context.Background(), nil))
}

func TestExtractMemoryLimitsTranscript(t *testing.T) {
	gw := &stubGateway{reply: `{}`}
	bank, err := NewMemoryBank(gw, testLogger())
	require.NoError(t, err)

	var messages []ChatMessage
	for i := 0; i < 15; i++ {
		messages = append(messages, ChatMessage{Role: "user", Content: "turn"})
	}
	messages[4].Content = "ancient detail"
	messages[14].Content = "recent detail"

	bank.ExtractMemory(context.Background(), messages)

	assert.Contains(t, gw.lastReq.History[0].Content, "recent detail")
	assert.NotContains(t, gw.lastReq.History[0].Content, "ancient detail")
}

func TestExtractMemoryDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "gateway error", err: assert.AnError},
		{name: "no json in reply", reply: "I cannot help with that."},
		{name: "schema violation", reply: `{"customer_name": 42}`},
		{name: "unexpected field", reply: `{"favorite_color": "blue"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, err := NewMemoryBank(&stubGateway{reply: tt.reply, err: tt.err}, testLogger())
			require.NoError(t, err)
			memory := bank.ExtractMemory(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
			assert.Empty(t, memory)
		})
	}
}

func TestMergeMemory(t *testing.T) {
	old := map[string]any{
		"customer_name": "Ada",
		"status":        "collecting_info",
	}
	extraction := map[string]any{
		"customer_name":  "",     // blank never erases
		"status":         "null", // literal null string is absent
		"preferred_date": "2026-09-01",
		"notes":          nil,
	}

	merged := MergeMemory(old, extraction)

	assert.Equal(t, map[string]any{
		"customer_name":  "Ada",
		"status":         "collecting_info",
		"preferred_date": "2026-09-01",
	}, merged)
	assert.Equal(t, "collecting_info", old["status"], "merge must not mutate the input")
}

func TestBuildContextPrompt(t *testing.T) {
	t.Run("empty memory", func(t *testing.T) {
		assert.Empty(t, BuildContextPrompt(map[string]any{}))
	})

	t.Run("full memory", func(t *testing.T) {
		prompt := BuildContextPrompt(map[string]any{
			"customer_name":  "Ada",
			"preferred_date": "2026-09-01",
			"preferred_time": "10am",
			"service_type":   "haircut",
			"status":         "confirmed",
			"notes":          "prefers mornings",
		})
		assert.Equal(t, "Customer information:\n- Name: Ada\n- Preferred date: 2026-09-01\n- Preferred time: 10am\n- Service type: haircut\n- Status: confirmed\n- Notes: prefers mornings", prompt)
	})

	t.Run("partial memory without name", func(t *testing.T) {
		prompt := BuildContextPrompt(map[string]any{"preferred_time": "10am"})
		assert.Equal(t, "- Preferred time: 10am", prompt)
	})
}
