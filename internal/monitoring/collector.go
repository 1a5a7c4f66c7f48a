// Package monitoring computes reply-handling health from the reply log and
// alerts a webhook when escalation or failure rates run high.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/store"
)

// MetricsSnapshot holds a point-in-time view of reply handling.
type MetricsSnapshot struct {
	RepliesTotal int                     `json:"replies_total"`
	ByRoute      map[model.ReplyTier]int `json:"by_route"`
	ByIntent     map[model.Intent]int    `json:"by_intent"`
	Failed       int                     `json:"failed"`

	EscalationRate float64 `json:"escalation_rate"`
	FailureRate    float64 `json:"failure_rate"`
	AvgConfidence  float64 `json:"avg_confidence"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ReplyLister reads the reply log.
type ReplyLister interface {
	ListReplies(ctx context.Context, since time.Time) ([]store.ReplyRecord, error)
}

// Collector gathers metrics from the reply log.
type Collector struct {
	replies ReplyLister
	now     func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(replies ReplyLister) *Collector {
	return &Collector{replies: replies, now: time.Now}
}

// Collect gathers a snapshot of reply metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ByRoute:       make(map[model.ReplyTier]int),
		ByIntent:      make(map[model.Intent]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	recs, err := c.replies.ListReplies(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list replies")
	}

	var confidence float64
	for _, r := range recs {
		if r.ProcessedAt.Before(cutoff) {
			continue
		}
		snap.RepliesTotal++
		snap.ByRoute[r.Route]++
		snap.ByIntent[r.Intent]++
		confidence += r.Confidence
		if r.Failed {
			snap.Failed++
		}
	}

	if snap.RepliesTotal > 0 {
		total := float64(snap.RepliesTotal)
		snap.EscalationRate = float64(snap.ByRoute[model.RouteTier3]) / total
		snap.FailureRate = float64(snap.Failed) / total
		snap.AvgConfidence = confidence / total
	}
	return snap, nil
}
