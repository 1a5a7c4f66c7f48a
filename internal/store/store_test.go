package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-triage/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("LeadHashRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, found, err := s.GetLeadHash(ctx, "l1")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.SaveLeadHash(ctx, "l1", "abc"))
		require.NoError(t, s.SaveLeadHash(ctx, "l1", "def"))

		hash, found, err := s.GetLeadHash(ctx, "l1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "def", hash)
	})

	t.Run("SaveScoreAndGetLead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		res := &model.ScoringResult{
			LeadID:           "l2",
			Score:            72,
			Tier:             model.TierPriority,
			VerticalDetected: "fintech",
			BrainUsed:        "brain_fintech_v1",
			ScoringBreakdown: []model.BreakdownEntry{{RuleID: "fin_size", Score: 25, MaxScore: 25}},
			RecommendedAngle: model.AngleROI,
		}
		require.NoError(t, s.SaveScore(ctx, res, "hash-1"))

		rec, err := s.GetLead(ctx, "l2")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, model.StatusScored, rec.Status)
		require.NotNil(t, rec.Score)
		assert.Equal(t, 72, *rec.Score)
		assert.Equal(t, model.TierPriority, rec.Tier)
		assert.Equal(t, "fintech", rec.Vertical)
		assert.Equal(t, "hash-1", rec.ContentHash)
		require.NotNil(t, rec.Result)
		assert.Equal(t, "fin_size", rec.Result.ScoringBreakdown[0].RuleID)

		missing, err := s.GetLead(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("StatusUpdatesMergeFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpdateLeadStatus(ctx, "l3", map[string]any{
			"status":         model.StatusNotInterested,
			"decline_reason": "no budget",
		}))
		require.NoError(t, s.UpdateLeadStatus(ctx, "l3", map[string]any{
			"profile_summary": "Ann Lee, CFO at Acme",
		}))

		rec, err := s.GetLead(ctx, "l3")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, model.StatusNotInterested, rec.Status)
		assert.Nil(t, rec.Score)
		assert.Equal(t, "no budget", rec.Fields["decline_reason"])
		assert.Equal(t, "Ann Lee, CFO at Acme", rec.Fields["profile_summary"])

		// Rescoring keeps a reply-driven status.
		require.NoError(t, s.SaveScore(ctx, &model.ScoringResult{LeadID: "l3", Score: 10, Tier: model.TierDisqualified}, "h"))
		rec, err = s.GetLead(ctx, "l3")
		require.NoError(t, err)
		assert.Equal(t, model.StatusNotInterested, rec.Status)
		assert.Equal(t, 10, *rec.Score)
	})

	t.Run("Approvals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older := model.ApprovalItem{
			ReplyID: "r1", LeadID: "l1", Channel: model.ChannelEmail, Recipient: "ann@acme.com",
			Draft: "first", CreatedAt: time.Now().Add(-time.Hour),
			Classification: model.Classification{Intent: model.IntentObjection, Confidence: 0.7},
		}
		newer := older
		newer.ReplyID = "r2"
		newer.Draft = "second"
		newer.CreatedAt = time.Now()

		require.NoError(t, s.SaveApproval(ctx, older))
		require.NoError(t, s.SaveApproval(ctx, newer))

		items, err := s.ListApprovals(ctx, 10)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "r2", items[0].ReplyID)
		assert.NotEmpty(t, items[0].ID)
		assert.Equal(t, model.IntentObjection, items[1].Classification.Intent)

		items, err = s.ListApprovals(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("Escalation", func(t *testing.T) {
		s := newStore(t)
		err := s.SaveEscalation(context.Background(), model.Escalation{
			ReplyID: "r9", LeadID: "l9", Reason: "referral",
			Payload: model.ReplyPayload{ReplyID: "r9", ReplyText: "talk to Bob"},
		})
		assert.NoError(t, err)
	})

	t.Run("ReplyLogWindow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		require.NoError(t, s.RecordReply(ctx, ReplyRecord{ReplyID: "old", LeadID: "l1", Route: model.RouteTier1, ProcessedAt: now.Add(-48 * time.Hour)}))
		require.NoError(t, s.RecordReply(ctx, ReplyRecord{ReplyID: "a", LeadID: "l1", Intent: model.IntentReferral, Route: model.RouteTier3, ProcessedAt: now.Add(-time.Hour)}))
		require.NoError(t, s.RecordReply(ctx, ReplyRecord{ReplyID: "b", LeadID: "l2", Route: model.RouteCategoryB, Failed: true, Errors: []string{"status update failed"}, ProcessedAt: now}))

		recs, err := s.ListReplies(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "a", recs[0].ReplyID)
		assert.Equal(t, model.RouteTier3, recs[0].Route)
		assert.Nil(t, recs[0].Errors)
		assert.True(t, recs[1].Failed)
		assert.Equal(t, []string{"status update failed"}, recs[1].Errors)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestReplyRecordFromOutcome(t *testing.T) {
	out := &model.ReplyOutcome{
		ReplyID:        "r1",
		LeadID:         "l1",
		Classification: model.Classification{Intent: model.IntentNotInterested, Confidence: 0.9},
		Decision:       model.RouteDecision{Route: model.RouteCategoryB},
		CategoryB:      &model.CategoryBOutput{Success: false},
		ProcessedAt:    time.Unix(100, 0),
	}
	rec := ReplyRecordFromOutcome(out)
	assert.True(t, rec.Failed)
	assert.Equal(t, model.RouteCategoryB, rec.Route)
	assert.Equal(t, model.IntentNotInterested, rec.Intent)

	out.CategoryB.Success = true
	assert.False(t, ReplyRecordFromOutcome(out).Failed)

	out.Errors = []string{"boom"}
	assert.True(t, ReplyRecordFromOutcome(out).Failed)
}
