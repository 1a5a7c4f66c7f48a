// Package leadscorer orchestrates vertical detection, rule evaluation,
// tiering, enrichment checks and duplicate detection for inbound leads.
package leadscorer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/brain"
	"github.com/sells-group/lead-triage/internal/dedup"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/scorer"
	"github.com/sells-group/lead-triage/internal/status"
	"github.com/sells-group/lead-triage/internal/vertical"
)

// ErrInvalidLead is returned when a lead lacks the identity the pipeline needs.
var ErrInvalidLead = eris.New("leadscorer: invalid lead")

// ResultStore persists scoring results with the content hash they were
// computed from.
type ResultStore interface {
	SaveScore(ctx context.Context, result *model.ScoringResult, hash string) error
}

// Agent scores leads against the brain of their detected vertical.
// It is safe for concurrent use.
type Agent struct {
	detector   vertical.Detector
	library    brain.Library
	guard      *dedup.Guard
	results    ResultStore
	status     status.Updater
	thresholds scorer.Thresholds
	now        func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithGuard sets the duplicate guard used by Process.
func WithGuard(g *dedup.Guard) Option {
	return func(a *Agent) { a.guard = g }
}

// WithResultStore persists results produced by Process.
func WithResultStore(s ResultStore) Option {
	return func(a *Agent) { a.results = s }
}

// WithStatusUpdater pushes a "scored" status for each processed lead.
func WithStatusUpdater(u status.Updater) Option {
	return func(a *Agent) { a.status = u }
}

// WithThresholds overrides the default tier thresholds.
func WithThresholds(t scorer.Thresholds) Option {
	return func(a *Agent) { a.thresholds = t }
}

// WithClock overrides the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates an Agent. Without WithGuard every lead is treated as new.
func New(detector vertical.Detector, library brain.Library, opts ...Option) *Agent {
	a := &Agent{
		detector:   detector,
		library:    library,
		guard:      dedup.NewGuard(nil),
		thresholds: scorer.DefaultThresholds(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// prepareLead rejects leads missing identity and clears malformed optional
// values.
func prepareLead(lead model.Lead) (model.Lead, error) {
	if err := model.Validate(lead); err != nil {
		return lead, eris.Wrapf(ErrInvalidLead, "%v", err)
	}
	return lead.Sanitized(), nil
}

// ScoreLead detects the lead's vertical, evaluates the matching brain's
// rules and assigns a tier. It only fails for leads missing identity.
func (a *Agent) ScoreLead(ctx context.Context, lead model.Lead) (*model.ScoringResult, error) {
	lead, err := prepareLead(lead)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "leadscorer: score lead")
	}
	return a.score(lead), nil
}

func (a *Agent) score(lead model.Lead) *model.ScoringResult {
	start := a.now()
	log := zap.L().With(zap.String("lead_id", lead.LeadID))

	det := a.detector.Detect(lead)
	b, manual := a.brainFor(det)
	if manual {
		log.Debug("leadscorer: vertical unknown, using default brain",
			zap.String("brain_id", b.ID),
			zap.String("industry", lead.Industry),
		)
	}

	ev := scorer.Evaluate(lead, b.RuleSet())
	tier := scorer.AssignTier(ev.Score, ev.Disqualified(), a.thresholds)

	res := &model.ScoringResult{
		LeadID:               lead.LeadID,
		Score:                ev.Score,
		Tier:                 tier,
		VerticalDetected:     b.Vertical,
		DetectionMethod:      det.Method,
		DetectionConfidence:  det.Confidence,
		NeedsManualClassify:  manual,
		BrainUsed:            b.ID,
		ScoringBreakdown:     ev.Breakdown,
		RecommendedAngle:     ev.Angle,
		PersonalizationHints: ev.Hints,
		KnockoutRule:         ev.KnockoutRule,
		RulesEvaluated:       ev.RulesEvaluated,
		RulesVersion:         b.RulesVersion(),
	}
	if det.Known() {
		res.VerticalDetected = det.Vertical
	} else {
		res.DetectionMethod = model.DetectionDefault
		res.DetectionConfidence = 0
	}
	if res.PersonalizationHints == nil {
		res.PersonalizationHints = []string{}
	}

	end := a.now()
	res.ProcessingTimeMs = end.Sub(start).Milliseconds()
	res.Timestamp = end.UTC()

	log.Debug("leadscorer: scored",
		zap.Int("score", res.Score),
		zap.String("tier", string(res.Tier)),
		zap.String("vertical", res.VerticalDetected),
		zap.String("brain_id", res.BrainUsed),
	)
	return res
}

// brainFor resolves the brain for a detection. The second return is true
// when the lead needs manual classification.
func (a *Agent) brainFor(det vertical.Detection) (*brain.Brain, bool) {
	if !det.Known() {
		return a.library.Default(), true
	}
	if b, ok := a.library.ForVertical(det.Vertical); ok {
		return b, false
	}
	zap.L().Warn("leadscorer: no brain for detected vertical, using default",
		zap.String("vertical", det.Vertical),
	)
	return a.library.Default(), false
}

// Process runs the full agent flow: duplicate check, scoring, enrichment
// check, then hash and result persistence. Unchanged leads are skipped
// unless force is set. Persistence failures are reported in the outcome's
// Errors and do not fail the call.
func (a *Agent) Process(ctx context.Context, lead model.Lead, force bool) (*model.LeadOutcome, error) {
	lead, err := prepareLead(lead)
	if err != nil {
		return nil, err
	}

	out := &model.LeadOutcome{LeadID: lead.LeadID}
	out.Duplicate = a.guard.Check(ctx, lead, force)
	if !out.Duplicate.ShouldRescore {
		out.Skipped = true
		zap.L().Info("leadscorer: lead unchanged, skipping",
			zap.String("lead_id", lead.LeadID),
		)
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "leadscorer: process")
	}

	out.Result = a.score(lead)
	out.Enrichment = scorer.CheckEnrichment(lead)

	if err := a.guard.Record(ctx, lead.LeadID, out.Duplicate.Hash); err != nil {
		out.Errors = append(out.Errors, eris.Wrap(err, "leadscorer: record hash").Error())
	}
	if a.results != nil {
		if err := a.results.SaveScore(ctx, out.Result, out.Duplicate.Hash); err != nil {
			out.Errors = append(out.Errors, eris.Wrap(err, "leadscorer: save score").Error())
		}
	}
	if a.status != nil {
		fields := map[string]any{
			"status":     model.StatusScored,
			"score":      out.Result.Score,
			"tier":       string(out.Result.Tier),
			"email":      lead.Email,
			"name":       lead.DisplayName(),
			"updated_at": out.Result.Timestamp,
		}
		if err := a.status.Update(ctx, lead.LeadID, fields); err != nil {
			out.Errors = append(out.Errors, eris.Wrap(err, "leadscorer: update status").Error())
		}
	}

	for _, e := range out.Errors {
		zap.L().Warn("leadscorer: degraded step", zap.String("lead_id", lead.LeadID), zap.String("error", e))
	}
	return out, nil
}
