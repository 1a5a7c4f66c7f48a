package categoryb

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/messaging"
)

// ReferralJob is a referral request waiting to be sent.
type ReferralJob struct {
	LeadID  string            `json:"lead_id"`
	ReplyID string            `json:"reply_id"`
	Message messaging.Message `json:"message"`
}

// Dispatch reports what a Dispatcher did with a job.
type Dispatch struct {
	Sent      bool
	SentAt    *time.Time
	Scheduled bool
}

// Dispatcher delivers a referral job after delay.
type Dispatcher interface {
	Dispatch(ctx context.Context, job ReferralJob, delay time.Duration) (Dispatch, error)
}

// InlineDispatcher waits out the delay in the calling goroutine and then
// sends. Cancelling ctx during the wait sends nothing.
type InlineDispatcher struct {
	messenger messaging.Messenger
	after     func(time.Duration) <-chan time.Time
	now       func() time.Time
}

// NewInlineDispatcher creates an InlineDispatcher.
func NewInlineDispatcher(m messaging.Messenger) *InlineDispatcher {
	return &InlineDispatcher{messenger: m, after: time.After, now: time.Now}
}

// Dispatch implements Dispatcher.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job ReferralJob, delay time.Duration) (Dispatch, error) {
	if delay > 0 {
		zap.L().Debug("categoryb: waiting before referral send",
			zap.String("lead_id", job.LeadID),
			zap.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return Dispatch{}, eris.Wrap(ctx.Err(), "categoryb: referral delay cancelled")
		case <-d.after(delay):
		}
	}
	if err := Send(ctx, d.messenger, job); err != nil {
		return Dispatch{}, err
	}
	at := d.now().UTC()
	return Dispatch{Sent: true, SentAt: &at}, nil
}

// Send delivers a referral job immediately. Queue workers call it once the
// scheduled delay has elapsed.
func Send(ctx context.Context, m messaging.Messenger, job ReferralJob) error {
	if err := m.Send(ctx, job.Message); err != nil {
		return eris.Wrapf(err, "categoryb: send referral to lead %s", job.LeadID)
	}
	zap.L().Info("categoryb: referral request sent",
		zap.String("lead_id", job.LeadID),
		zap.String("channel", string(job.Message.Channel)),
	)
	return nil
}

// BackgroundDispatcher hands jobs to an inner dispatcher on its own
// goroutine, bound to a long-lived context instead of the caller's. It is
// used by the HTTP server so a referral delay neither holds the request
// open nor dies with it. Cancelling the base context drops pending sends.
type BackgroundDispatcher struct {
	base  context.Context
	inner Dispatcher
	wg    sync.WaitGroup
}

// NewBackgroundDispatcher creates a BackgroundDispatcher. base should live
// as long as the process serves requests.
func NewBackgroundDispatcher(base context.Context, inner Dispatcher) *BackgroundDispatcher {
	return &BackgroundDispatcher{base: base, inner: inner}
}

// Dispatch implements Dispatcher. It returns once the job is scheduled.
func (d *BackgroundDispatcher) Dispatch(_ context.Context, job ReferralJob, delay time.Duration) (Dispatch, error) {
	if err := d.base.Err(); err != nil {
		return Dispatch{}, eris.Wrap(err, "categoryb: dispatcher stopped")
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.inner.Dispatch(d.base, job, delay); err != nil {
			zap.L().Error("categoryb: background referral failed",
				zap.String("lead_id", job.LeadID),
				zap.String("reply_id", job.ReplyID),
				zap.Error(err),
			)
		}
	}()
	return Dispatch{Scheduled: true}, nil
}

// Wait blocks until every scheduled job has been sent or dropped.
func (d *BackgroundDispatcher) Wait() {
	d.wg.Wait()
}
