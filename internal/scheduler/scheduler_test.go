package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlo-ai/parlo/internal/store"
)

type fakeStore struct {
	store.Store

	cutoffs []time.Time
	closed  int64
	err     error
}

func (f *fakeStore) CloseIdleConversations(_ context.Context, idleBefore time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, idleBefore)
	return f.closed, f.err
}

func TestNewSweeperRejectsBadSpec(t *testing.T) {
	_, err := NewSweeper(&fakeStore{}, "not a cron spec", time.Hour, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}

func TestSweepUsesIdleCutoff(t *testing.T) {
	st := &fakeStore{closed: 2}
	s, err := NewSweeper(st, "*/15 * * * *", 72*time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	before := time.Now().UTC().Add(-72 * time.Hour)
	s.Sweep(context.Background())
	after := time.Now().UTC().Add(-72 * time.Hour)

	require.Len(t, st.cutoffs, 1)
	cutoff := st.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
}

func TestSweeperStartStop(t *testing.T) {
	s, err := NewSweeper(&fakeStore{}, "0 * * * *", time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()), "second start must be rejected")
	s.Stop()
}
