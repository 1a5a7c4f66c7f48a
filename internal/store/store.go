// Package store persists lead scores, statuses, review items and the reply
// log for the triage engine.
package store

import (
	"context"
	"time"

	"github.com/sells-group/lead-triage/internal/model"
)

// LeadRecord is the persisted state of a lead.
type LeadRecord struct {
	LeadID      string               `json:"lead_id"`
	Status      string               `json:"status,omitempty"`
	Score       *int                 `json:"score,omitempty"`
	Tier        model.LeadTier       `json:"tier,omitempty"`
	Vertical    string               `json:"vertical,omitempty"`
	BrainID     string               `json:"brain_id,omitempty"`
	ContentHash string               `json:"content_hash,omitempty"`
	Fields      map[string]any       `json:"fields,omitempty"`
	Result      *model.ScoringResult `json:"result,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ReplyRecord is one entry of the reply log.
type ReplyRecord struct {
	ID          string          `json:"id"`
	ReplyID     string          `json:"reply_id"`
	LeadID      string          `json:"lead_id"`
	Intent      model.Intent    `json:"intent"`
	Confidence  float64         `json:"confidence"`
	Route       model.ReplyTier `json:"route"`
	Failed      bool            `json:"failed"`
	Errors      []string        `json:"errors,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// ReplyRecordFromOutcome builds the reply log entry for a triage outcome.
func ReplyRecordFromOutcome(out *model.ReplyOutcome) ReplyRecord {
	failed := len(out.Errors) > 0
	if out.CategoryB != nil && !out.CategoryB.Success {
		failed = true
	}
	return ReplyRecord{
		ReplyID:     out.ReplyID,
		LeadID:      out.LeadID,
		Intent:      out.Classification.Intent,
		Confidence:  out.Classification.Confidence,
		Route:       out.Decision.Route,
		Failed:      failed,
		Errors:      out.Errors,
		ProcessedAt: out.ProcessedAt,
	}
}

// Store defines the persistence interface for the triage engine.
type Store interface {
	// Lead hashes (dedup.HashStore)
	GetLeadHash(ctx context.Context, leadID string) (string, bool, error)
	SaveLeadHash(ctx context.Context, leadID, hash string) error

	// Leads
	SaveScore(ctx context.Context, result *model.ScoringResult, hash string) error
	GetLead(ctx context.Context, leadID string) (*LeadRecord, error)
	UpdateLeadStatus(ctx context.Context, leadID string, fields map[string]any) error

	// Review queues
	SaveApproval(ctx context.Context, item model.ApprovalItem) error
	ListApprovals(ctx context.Context, limit int) ([]model.ApprovalItem, error)
	SaveEscalation(ctx context.Context, e model.Escalation) error

	// Reply log
	RecordReply(ctx context.Context, rec ReplyRecord) error
	ListReplies(ctx context.Context, since time.Time) ([]ReplyRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// splitStatus separates the status column from the free-form fields.
func splitStatus(fields map[string]any) (status string, rest map[string]any) {
	rest = make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "status" {
			if s, ok := v.(string); ok {
				status = s
				continue
			}
		}
		rest[k] = v
	}
	return status, rest
}
