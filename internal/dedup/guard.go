package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/model"
)

// DefaultBudget bounds the hash lookup on the scoring fast path.
const DefaultBudget = 100 * time.Millisecond

// HashStore persists the last content hash recorded per lead.
type HashStore interface {
	GetLeadHash(ctx context.Context, leadID string) (hash string, found bool, err error)
	SaveLeadHash(ctx context.Context, leadID, hash string) error
}

// Guard compares a lead's current content hash with the recorded one.
type Guard struct {
	store  HashStore
	budget time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithBudget overrides the lookup budget. Non-positive values keep the default.
func WithBudget(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.budget = d
		}
	}
}

// NewGuard creates a Guard over store. A nil store makes every check
// report not_found, so force_rescore is only observable with a real store.
func NewGuard(store HashStore, opts ...Option) *Guard {
	g := &Guard{store: store, budget: DefaultBudget}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check decides whether lead should be rescored. Lookup failures and
// timeouts fail open to not_found.
func (g *Guard) Check(ctx context.Context, lead model.Lead, force bool) model.DuplicateCheckResult {
	hash := ContentHash(lead)
	notFound := model.DuplicateCheckResult{ShouldRescore: true, Reason: model.DuplicateNotFound, Hash: hash}

	if g == nil || g.store == nil {
		return notFound
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.budget)
	defer cancel()

	prior, found, err := g.store.GetLeadHash(lookupCtx, lead.LeadID)
	if err != nil {
		zap.L().Warn("dedup: hash lookup failed, treating lead as new",
			zap.String("lead_id", lead.LeadID),
			zap.Duration("budget", g.budget),
			zap.Error(err),
		)
		return notFound
	}
	if !found {
		return notFound
	}

	same := prior == hash
	res := model.DuplicateCheckResult{IsDuplicate: same, Hash: hash}
	switch {
	case force:
		res.ShouldRescore = true
		res.Reason = model.DuplicateForceRescore
	case !same:
		res.ShouldRescore = true
		res.Reason = model.DuplicateDataChanged
	default:
		res.Reason = model.DuplicateUnchanged
	}
	return res
}

// Record stores hash as the latest content hash for leadID.
func (g *Guard) Record(ctx context.Context, leadID, hash string) error {
	if g == nil || g.store == nil {
		return nil
	}
	return g.store.SaveLeadHash(ctx, leadID, hash)
}
