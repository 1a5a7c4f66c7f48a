package leadscorer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-triage/internal/model"
)

// DefaultConcurrency is the number of leads scored in parallel by default.
const DefaultConcurrency = 5

// ProgressFunc is called once per lead, in input order, with the number of
// leads finished so far.
type ProgressFunc func(processed, total int)

// BatchOptions configures ScoreBatch and ProcessBatch.
type BatchOptions struct {
	Concurrency int
	Force       bool
	OnProgress  ProgressFunc
}

func (o BatchOptions) limit() int {
	if o.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

// ScoreBatch scores leads with bounded concurrency. The result slice is in
// input order; leads rejected as invalid carry an Error and no tier.
// Individual failures never abort the batch.
func (a *Agent) ScoreBatch(ctx context.Context, leads []model.Lead, opts BatchOptions) []model.ScoringResult {
	results := make([]model.ScoringResult, len(leads))
	runOrdered(ctx, len(leads), opts, func(ctx context.Context, i int) bool {
		res, err := a.ScoreLead(ctx, leads[i])
		if err != nil {
			results[i] = model.ScoringResult{
				LeadID:    leads[i].LeadID,
				Error:     err.Error(),
				Timestamp: a.now().UTC(),
			}
			return false
		}
		results[i] = *res
		return true
	})
	return results
}

// ProcessBatch runs Process over leads with bounded concurrency. Invalid
// leads yield an outcome whose Errors explain the rejection.
func (a *Agent) ProcessBatch(ctx context.Context, leads []model.Lead, opts BatchOptions) []model.LeadOutcome {
	outcomes := make([]model.LeadOutcome, len(leads))
	runOrdered(ctx, len(leads), opts, func(ctx context.Context, i int) bool {
		out, err := a.Process(ctx, leads[i], opts.Force)
		if err != nil {
			outcomes[i] = model.LeadOutcome{LeadID: leads[i].LeadID, Errors: []string{err.Error()}}
			return false
		}
		outcomes[i] = *out
		return len(out.Errors) == 0
	})
	return outcomes
}

// runOrdered executes fn for every index with at most opts.limit() in
// flight, and reports progress strictly in index order from a single
// goroutine.
func runOrdered(ctx context.Context, n int, opts BatchOptions, fn func(ctx context.Context, i int) bool) {
	if n == 0 {
		return
	}

	start := time.Now()
	var succeeded, failed atomic.Int64

	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}

	reported := make(chan struct{})
	go func() {
		defer close(reported)
		for i := range n {
			<-done[i]
			if opts.OnProgress != nil {
				opts.OnProgress(i+1, n)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())
	for i := range n {
		g.Go(func() error {
			defer close(done[i])
			if fn(gctx, i) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	<-reported

	zap.L().Info("leadscorer: batch complete",
		zap.Int("total", n),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
}
