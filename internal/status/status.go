// Package status pushes lead status changes to the systems of record: the
// local store, a Notion leads database, and Salesforce.
package status

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-triage/internal/resilience"
)

// ErrLeadNotFound is returned when the target system has no record for a lead.
var ErrLeadNotFound = eris.New("status: lead not found")

// Updater writes status fields for a lead. The "status" key carries the
// lead status; other keys are free-form.
type Updater interface {
	Update(ctx context.Context, leadID string, fields map[string]any) error
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context, leadID string, fields map[string]any) error

// Update calls f.
func (f UpdaterFunc) Update(ctx context.Context, leadID string, fields map[string]any) error {
	return f(ctx, leadID, fields)
}

// Named tags an Updater with the service name used in logs and breakers.
type Named struct {
	Name    string
	Updater Updater
}

// Fanout writes to a primary updater and mirrors the same fields to the rest
// concurrently. Only the primary's error is returned; mirror failures are
// logged.
type Fanout struct {
	primary Named
	mirrors []Named
	policy  *resilience.Policy
}

// NewFanout builds a Fanout. policy may be nil.
func NewFanout(primary Named, policy *resilience.Policy, mirrors ...Named) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors, policy: policy}
}

// Update implements Updater.
func (f *Fanout) Update(ctx context.Context, leadID string, fields map[string]any) error {
	targets := append([]Named{f.primary}, f.mirrors...)
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		if t.Updater == nil {
			continue
		}
		g.Go(func() error {
			errs[i] = f.policy.Call(ctx, t.Name, "update_status", func(ctx context.Context) error {
				return t.Updater.Update(ctx, leadID, copyFields(fields))
			})
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs[1:] {
		if err != nil {
			zap.L().Warn("status: mirror update failed",
				zap.String("target", targets[i+1].Name),
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
		}
	}
	if errs[0] != nil {
		return eris.Wrapf(errs[0], "status: update %s via %s", leadID, f.primary.Name)
	}
	return nil
}

// Targets returns the configured target names, primary first.
func (f *Fanout) Targets() []string {
	names := []string{f.primary.Name}
	for _, m := range f.mirrors {
		names = append(names, m.Name)
	}
	return names
}

// IsNotFound reports whether err means the lead has no record in the target.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// copyFields gives each target its own map so adapters can add keys.
func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
