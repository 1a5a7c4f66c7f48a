package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates reply health on an interval and posts alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a Checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

// Run checks once per interval until ctx is cancelled. Failed checks are
// logged and retried on the next tick.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	log := zap.L().With(zap.String("component", "monitoring"))
	log.Info("reply health checks started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("reply health checks stopped")
			return
		case <-t.C:
			if _, _, err := c.Check(ctx); err != nil {
				log.Error("reply health check failed", zap.Error(err))
			}
		}
	}
}

// Check collects one snapshot and sends an alert per breached threshold.
func (c *Checker) Check(ctx context.Context) (*MetricsSnapshot, []Alert, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return nil, nil, eris.Wrap(err, "monitoring: collect")
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) > 0 {
		sent := c.alerter.SendAlerts(ctx, alerts)
		zap.L().Info("monitoring: thresholds breached",
			zap.Int("replies", snap.RepliesTotal),
			zap.Int("alerts", len(alerts)),
			zap.Int("delivered", sent),
		)
	}
	return snap, alerts, nil
}
