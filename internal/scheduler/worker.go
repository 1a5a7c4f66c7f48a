package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/categoryb"
	"github.com/sells-group/lead-triage/internal/messaging"
	"github.com/sells-group/lead-triage/internal/resilience"
)

const defaultConcurrency = 10

// Worker processes queued referral tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	messenger messaging.Messenger
}

// NewWorker creates a Worker that sends referrals through m.
func NewWorker(cfg Config, m messaging.Messenger) (*Worker, error) {
	if cfg.RedisURL == "" {
		return nil, eris.New("scheduler: redis url not configured")
	}
	opt, err := redisClientOpt(cfg.RedisURL, cfg.TLSInsecure)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.queue(): 1},
		Logger:      zap.S(),
	})

	w := &Worker{server: server, mux: asynq.NewServeMux(), messenger: m}
	w.mux.HandleFunc(TaskReferralSend, w.handleReferral)
	return w, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	zap.L().Info("scheduler: worker started")
	return eris.Wrap(w.server.Run(w.mux), "scheduler: worker stopped")
}

func (w *Worker) handleReferral(ctx context.Context, task *asynq.Task) error {
	job, err := ParseReferralTask(task)
	if err != nil {
		// Malformed payloads never succeed on retry.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := categoryb.Send(ctx, w.messenger, job); err != nil {
		if !resilience.IsTransient(err) {
			zap.L().Error("scheduler: referral send failed permanently",
				zap.String("lead_id", job.LeadID),
				zap.Error(err),
			)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
