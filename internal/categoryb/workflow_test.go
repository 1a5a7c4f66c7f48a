package categoryb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-triage/internal/messaging"
	"github.com/sells-group/lead-triage/internal/model"
)

type fakeStatus struct {
	mu      sync.Mutex
	updates []map[string]any
	failOn  string
}

func (f *fakeStatus) Update(_ context.Context, _ string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := fields[f.failOn]; ok {
		return errors.New("notion unavailable")
	}
	f.updates = append(f.updates, fields)
	return nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []messaging.Message
}

func (f *fakeMessenger) Send(_ context.Context, m messaging.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func instantDispatcher(m messaging.Messenger) *InlineDispatcher {
	d := NewInlineDispatcher(m)
	d.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return d
}

func declineReply(text string) model.ReplyPayload {
	return model.ReplyPayload{
		ReplyID:     "r1",
		Source:      "email",
		ReplyText:   text,
		ThreadID:    "<msg-1@acme.com>",
		LeadID:      "l1",
		LeadEmail:   "ann@bh.com",
		LeadName:    "Ann Lee",
		LeadTitle:   "VP of Finance",
		LeadCompany: "Blue Harbor Capital",
		BrainID:     "brain_iro_v1",
	}
}

const politeDecline = "Thanks for reaching out, not a priority for us. Best of luck!"

func TestWorkflow_AutoSend(t *testing.T) {
	t.Parallel()
	st := &fakeStatus{}
	msg := &fakeMessenger{}
	cfg := DefaultConfig()
	cfg.PainPoint = "shareholder communications"
	w := NewWorkflow(st, instantDispatcher(msg), nil, cfg)

	out, steps := w.RunWith(context.Background(), declineReply(politeDecline), model.Classification{Reasoning: "polite decline"}, RunOptions{})
	assert.True(t, out.Success)
	assert.True(t, out.LeadStatusUpdated)
	assert.Equal(t, model.StatusNotInterested, out.NewStatus)
	assert.True(t, out.ProfileSummaryGenerated)
	assert.True(t, out.AirtableUpdated)
	assert.True(t, out.ReferralEvaluation.AutoSendReferral)
	assert.True(t, out.ReferralSent)
	require.NotNil(t, out.ReferralSentAt)
	assert.Empty(t, out.Errors)
	assert.True(t, steps.Referral.OK())

	require.Len(t, msg.sent, 1)
	sent := msg.sent[0]
	assert.Equal(t, model.ChannelEmail, sent.Channel)
	assert.Equal(t, "ann@bh.com", sent.Recipient)
	assert.Equal(t, DefaultSubject, sent.Subject)
	assert.Contains(t, sent.Body, "Hi Ann,")
	assert.Contains(t, sent.Body, "shareholder communications")

	require.Len(t, st.updates, 2)
	assert.Equal(t, model.StatusNotInterested, st.updates[0]["status"])
	assert.Contains(t, st.updates[1]["profile_summary"], "Company: Blue Harbor Capital")
}

func TestWorkflow_AutoSendDisabled(t *testing.T) {
	t.Parallel()
	st := &fakeStatus{}
	msg := &fakeMessenger{}
	w := NewWorkflow(st, instantDispatcher(msg), nil, DefaultConfig())

	out, _ := w.RunWith(context.Background(), declineReply(politeDecline), model.Classification{}, RunOptions{DisableAutoSend: true})
	assert.True(t, out.Success)
	assert.False(t, out.ReferralSent)
	assert.True(t, out.ManualFollowUp)
	assert.Equal(t, model.StatusReferralFollowUp, out.NewStatus)
	assert.Empty(t, msg.sent)
	assert.Equal(t, true, st.updates[len(st.updates)-1]["manual_follow_up"])
}

func TestWorkflow_PotentialWithoutAutoSend(t *testing.T) {
	t.Parallel()
	st := &fakeStatus{}
	msg := &fakeMessenger{}
	w := NewWorkflow(st, instantDispatcher(msg), nil, DefaultConfig())

	out := w.Run(context.Background(), declineReply("Not interested."), model.Classification{})
	assert.True(t, out.ReferralEvaluation.ReferralPotential)
	assert.False(t, out.ReferralEvaluation.AutoSendReferral)
	assert.True(t, out.ManualFollowUp)
	assert.Empty(t, msg.sent)
}

func TestWorkflow_NoPotential(t *testing.T) {
	t.Parallel()
	st := &fakeStatus{}
	w := NewWorkflow(st, instantDispatcher(&fakeMessenger{}), nil, DefaultConfig())

	out := w.Run(context.Background(), declineReply("Stop emailing me."), model.Classification{})
	assert.True(t, out.Success)
	assert.False(t, out.ReferralEvaluation.ReferralPotential)
	assert.False(t, out.ManualFollowUp)
	assert.Len(t, st.updates, 2)
}

func TestWorkflow_StepFailuresDoNotBlock(t *testing.T) {
	t.Parallel()
	st := &fakeStatus{failOn: "status"}
	msg := &fakeMessenger{}
	w := NewWorkflow(st, instantDispatcher(msg), nil, DefaultConfig())

	out, steps := w.RunWith(context.Background(), declineReply(politeDecline), model.Classification{}, RunOptions{})
	assert.False(t, out.Success)
	assert.False(t, out.LeadStatusUpdated)
	assert.Empty(t, out.NewStatus)
	assert.False(t, steps.Status.OK())
	assert.True(t, steps.Summary.OK(), "summary still stored")
	assert.True(t, out.AirtableUpdated)
	assert.True(t, out.ReferralSent, "referral still sent")
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "update status")
}

func TestWorkflow_SummaryFailure(t *testing.T) {
	t.Parallel()
	st := &fakeStatus{failOn: "profile_summary"}
	w := NewWorkflow(st, instantDispatcher(&fakeMessenger{}), nil, DefaultConfig())

	out := w.Run(context.Background(), declineReply("No."), model.Classification{})
	assert.True(t, out.Success, "success needs the status update and a generated summary")
	assert.False(t, out.AirtableUpdated)
	assert.NotEmpty(t, out.ProfileSummary)
	require.Len(t, out.Errors, 1)
}

func TestInlineDispatcher_CancelledDelay(t *testing.T) {
	t.Parallel()
	msg := &fakeMessenger{}
	d := NewInlineDispatcher(msg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := d.Dispatch(ctx, ReferralJob{LeadID: "l1"}, time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, res.Sent)
	assert.Empty(t, msg.sent, "no partial send")
}

func TestWorkflow_CancelledDelayReportsError(t *testing.T) {
	t.Parallel()
	msg := &fakeMessenger{}
	cfg := DefaultConfig()
	cfg.Delay = time.Hour
	w := NewWorkflow(&fakeStatus{}, NewInlineDispatcher(msg), nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := w.Run(ctx, declineReply(politeDecline), model.Classification{})
	assert.True(t, out.Success)
	assert.False(t, out.ReferralSent)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "referral delay cancelled")
	assert.Empty(t, msg.sent)
}

func TestBackgroundDispatcher(t *testing.T) {
	t.Parallel()

	job := ReferralJob{LeadID: "l1", ReplyID: "r1", Message: messaging.Message{Channel: model.ChannelEmail, Recipient: "ann@acme.com", Body: "hi"}}

	t.Run("outlives the caller context", func(t *testing.T) {
		t.Parallel()
		m := &fakeMessenger{}
		d := NewBackgroundDispatcher(context.Background(), instantDispatcher(m))

		reqCtx, cancel := context.WithCancel(context.Background())
		res, err := d.Dispatch(reqCtx, job, time.Second)
		cancel()
		require.NoError(t, err)
		assert.True(t, res.Scheduled)
		assert.False(t, res.Sent)

		d.Wait()
		m.mu.Lock()
		defer m.mu.Unlock()
		assert.Len(t, m.sent, 1)
	})

	t.Run("base cancellation drops pending sends", func(t *testing.T) {
		t.Parallel()
		m := &fakeMessenger{}
		base, cancel := context.WithCancel(context.Background())
		d := NewBackgroundDispatcher(base, NewInlineDispatcher(m))

		_, err := d.Dispatch(context.Background(), job, time.Hour)
		require.NoError(t, err)
		cancel()
		d.Wait()
		assert.Empty(t, m.sent)

		_, err = d.Dispatch(context.Background(), job, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dispatcher stopped")
	})
}
