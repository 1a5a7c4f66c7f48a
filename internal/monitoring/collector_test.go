package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/store"
)

type mockReplies struct {
	recs  []store.ReplyRecord
	err   error
	since time.Time
}

func (m *mockReplies) ListReplies(_ context.Context, since time.Time) ([]store.ReplyRecord, error) {
	m.since = since
	return m.recs, m.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCollector(r ReplyLister) *Collector {
	c := NewCollector(r)
	c.now = func() time.Time { return fixedNow }
	return c
}

func rec(route model.ReplyTier, intent model.Intent, failed bool, age time.Duration) store.ReplyRecord {
	return store.ReplyRecord{
		Route:       route,
		Intent:      intent,
		Confidence:  0.8,
		Failed:      failed,
		ProcessedAt: fixedNow.Add(-age),
	}
}

func TestCollector_Collect(t *testing.T) {
	replies := &mockReplies{recs: []store.ReplyRecord{
		rec(model.RouteTier3, model.IntentUnclear, false, time.Hour),
		rec(model.RouteTier2, model.IntentObjection, false, time.Hour),
		rec(model.RouteAutoHandled, model.IntentUnsubscribe, false, 2*time.Hour),
		rec(model.RouteCategoryB, model.IntentNotInterested, true, 3*time.Hour),
		// Outside the window; the lister may over-return.
		rec(model.RouteTier3, model.IntentUnclear, true, 48*time.Hour),
	}}

	snap, err := newTestCollector(replies).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, fixedNow.Add(-24*time.Hour), replies.since)
	assert.Equal(t, 4, snap.RepliesTotal)
	assert.Equal(t, 1, snap.ByRoute[model.RouteTier3])
	assert.Equal(t, 1, snap.ByIntent[model.IntentObjection])
	assert.Equal(t, 1, snap.Failed)
	assert.InDelta(t, 0.25, snap.EscalationRate, 0.001)
	assert.InDelta(t, 0.25, snap.FailureRate, 0.001)
	assert.InDelta(t, 0.8, snap.AvgConfidence, 0.001)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, fixedNow, snap.CollectedAt)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := newTestCollector(&mockReplies{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.RepliesTotal)
	assert.Zero(t, snap.FailureRate)
	assert.Zero(t, snap.EscalationRate)
}

func TestCollector_ListError(t *testing.T) {
	_, err := newTestCollector(&mockReplies{err: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list replies")
}
