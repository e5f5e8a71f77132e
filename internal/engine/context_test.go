package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextGetSetRoutesReservedKeys(t *testing.T) {
	ec := NewExecContext()

	ec.Set("last_question", "What is your name?")
	assert.Equal(t, "What is your name?", ec.LastQuestion())
	assert.Equal(t, "What is your name?", ec.Get("last_question"))

	ec.Set("conversation_id", "conv-1")
	assert.Equal(t, "conv-1", ec.ConversationID())

	ec.Set("memory", map[string]any{"customer_name": "Ada"})
	assert.Equal(t, map[string]any{"customer_name": "Ada"}, ec.Memory())

	ec.Set("halted", true)
	assert.True(t, ec.Halted())

	ec.Set("last_saved_record_id", "rec-9")
	assert.Equal(t, "rec-9", ec.LastSavedRecordID())

	// Ordinary keys land in the generic map.
	ec.Set("motivation", map[string]any{"reply": "curious"})
	assert.Equal(t, map[string]any{"reply": "curious"}, ec.Get("motivation"))

	// Unset reserved keys read as nil.
	fresh := NewExecContext()
	assert.Nil(t, fresh.Get("last_question"))
	assert.Nil(t, fresh.Get("halted_at"))
	assert.Nil(t, fresh.Get("memory"))
	assert.Nil(t, fresh.Get("halted"))
}

func TestContextRoundTrip(t *testing.T) {
	ec := NewExecContext()
	ec.Set("name", "Ada")
	ec.Set("motivation", map[string]any{"reply": "curious"})
	ec.SetLastQuestion("What brings you here?")
	ec.SetHaltedAt(2)
	ec.SetMemory(map[string]any{"customer_name": "Ada"})
	ec.SetConversationID("conv-1")
	ec.SetLastSavedRecordID("rec-9")
	ec.Halt()
	ec.AppendError("Unknown model: bogus")
	ec.AppendOutput(map[string]any{"model": "lead", "id": "rec-9"})
	ec.AdvanceStep()
	ec.AdvanceStep()

	raw, err := MarshalContext(ec)
	require.NoError(t, err)

	restored, err := UnmarshalContext(raw)
	require.NoError(t, err)

	assert.Equal(t, ec.State(), restored.State())
	assert.Equal(t, ec.CurrentStepIndex(), restored.CurrentStepIndex())
	assert.Equal(t, ec.Errors(), restored.Errors())
	assert.Equal(t, "What brings you here?", restored.LastQuestion())
	assert.Equal(t, 2, restored.HaltedAt())
	assert.Equal(t, "conv-1", restored.ConversationID())
	assert.Equal(t, "rec-9", restored.LastSavedRecordID())
	assert.True(t, restored.Halted())
	require.Len(t, restored.Outputs(), 1)

	// The transient references never survive serialization.
	assert.Nil(t, restored.Customer)
	assert.Empty(t, restored.TenantID)

	// A second round trip is stable.
	raw2, err := MarshalContext(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(raw2))
}

func TestContextRoundTripEmpty(t *testing.T) {
	restored, err := UnmarshalContext(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.CurrentStepIndex())
	assert.Empty(t, restored.State())
	assert.Equal(t, -1, restored.HaltedAt())
}

func TestContextCursorNeverDecreases(t *testing.T) {
	ec := NewExecContext()
	ec.advanceTo(3)
	assert.Equal(t, 3, ec.CurrentStepIndex())
	ec.advanceTo(1)
	assert.Equal(t, 3, ec.CurrentStepIndex())
}
