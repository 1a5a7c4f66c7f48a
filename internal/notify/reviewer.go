package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/model"
)

// ReviewStore persists review items.
type ReviewStore interface {
	SaveApproval(ctx context.Context, item model.ApprovalItem) error
	SaveEscalation(ctx context.Context, e model.Escalation) error
}

// Reviewer records review items and notifies the review channels. It
// implements triage.ApprovalQueue and triage.Escalator.
type Reviewer struct {
	store      ReviewStore
	approvals  *Webhook
	escalation *Webhook
}

// NewReviewer creates a Reviewer. Any argument may be nil, but an item
// with neither a store nor a webhook is rejected.
func NewReviewer(store ReviewStore, approvals, escalation *Webhook) *Reviewer {
	return &Reviewer{store: store, approvals: approvals, escalation: escalation}
}

// Enqueue stores a Tier-2 draft and pings the approval channel. The store
// is the queue of record, so a failed ping is only logged.
func (r *Reviewer) Enqueue(ctx context.Context, item model.ApprovalItem) error {
	if r.store == nil && r.approvals == nil {
		return eris.New("notify: no approval queue configured")
	}
	if r.store != nil {
		if err := r.store.SaveApproval(ctx, item); err != nil {
			return eris.Wrap(err, "notify: save approval")
		}
	}

	err := r.approvals.Post(ctx, Event{
		Type:      EventApprovalRequested,
		LeadID:    item.LeadID,
		ReplyID:   item.ReplyID,
		Data:      item,
		Timestamp: stamp(item.CreatedAt),
	})
	if err != nil {
		if r.store == nil {
			return eris.Wrap(err, "notify: post approval")
		}
		zap.L().Warn("notify: approval webhook failed",
			zap.String("approval_id", item.ID),
			zap.Error(err),
		)
	}
	return nil
}

// Escalate stores a Tier-3 hand-off and alerts the escalation channel.
// A configured webhook that fails is an error: an unseen escalation is lost.
func (r *Reviewer) Escalate(ctx context.Context, e model.Escalation) error {
	if r.store == nil && r.escalation == nil {
		return eris.New("notify: no escalation channel configured")
	}
	if r.store != nil {
		if err := r.store.SaveEscalation(ctx, e); err != nil {
			return eris.Wrap(err, "notify: save escalation")
		}
	}
	err := r.escalation.Post(ctx, Event{
		Type:      EventEscalation,
		LeadID:    e.LeadID,
		ReplyID:   e.ReplyID,
		Data:      e,
		Timestamp: stamp(e.CreatedAt),
	})
	return eris.Wrap(err, "notify: post escalation")
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
