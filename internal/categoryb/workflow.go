package categoryb

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/brain"
	"github.com/sells-group/lead-triage/internal/messaging"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/status"
)

// Defaults for the referral request.
const (
	DefaultDelay   = 30 * time.Second
	DefaultSubject = "Quick favor"
	DefaultBody    = `Hi {{first_name}},

Understood, and thanks for letting me know. Is there anyone in your network focused on {{pain_point}} who might find this useful? A quick intro would be much appreciated.`
)

// Config tunes the referral step.
type Config struct {
	Delay     time.Duration `mapstructure:"delay" yaml:"delay"`
	PainPoint string        `mapstructure:"pain_point" yaml:"pain_point"`
	AutoSend  bool          `mapstructure:"auto_send" yaml:"auto_send"`
	Subject   string        `mapstructure:"subject" yaml:"subject"`
	Template  string        `mapstructure:"template" yaml:"template"`
}

// DefaultConfig enables auto-send with a 30 second delay.
func DefaultConfig() Config {
	return Config{Delay: DefaultDelay, AutoSend: true, Subject: DefaultSubject, Template: DefaultBody}
}

// RunOptions are per-call overrides.
type RunOptions struct {
	DisableAutoSend bool
}

// Result is the outcome of one workflow step.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the step succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

func attempt[T any](fn func() (T, error)) Result[T] {
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

// Steps holds every step result of one run.
type Steps struct {
	Status   Result[string]
	Summary  Result[string]
	Referral Result[Dispatch]
	FollowUp Result[bool]
}

// Workflow runs the not-interested steps. Each step is attempted regardless
// of earlier failures.
type Workflow struct {
	status     status.Updater
	dispatcher Dispatcher
	library    brain.Library
	cfg        Config
}

// NewWorkflow creates a Workflow. library may be nil; it supplies the pain
// point when the config has none.
func NewWorkflow(u status.Updater, d Dispatcher, library brain.Library, cfg Config) *Workflow {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Template == "" {
		cfg.Template = DefaultBody
	}
	return &Workflow{status: u, dispatcher: d, library: library, cfg: cfg}
}

// Run implements triage.NotInterestedWorkflow.
func (w *Workflow) Run(ctx context.Context, reply model.ReplyPayload, c model.Classification) *model.CategoryBOutput {
	out, _ := w.RunWith(ctx, reply, c, RunOptions{})
	return out
}

// RunWith runs the workflow and also returns the individual step results.
func (w *Workflow) RunWith(ctx context.Context, reply model.ReplyPayload, c model.Classification, opts RunOptions) (*model.CategoryBOutput, Steps) {
	log := zap.L().With(zap.String("lead_id", reply.LeadID), zap.String("reply_id", reply.ReplyID))
	var s Steps

	s.Status = attempt(func() (string, error) {
		err := w.status.Update(ctx, reply.LeadID, map[string]any{
			"status":     model.StatusNotInterested,
			"email":      reply.LeadEmail,
			"reply_id":   reply.ReplyID,
			"updated_at": time.Now().UTC(),
		})
		return model.StatusNotInterested, eris.Wrap(err, "categoryb: update status")
	})

	summary := BuildSummary(reply, c)
	s.Summary = attempt(func() (string, error) {
		err := w.status.Update(ctx, reply.LeadID, map[string]any{
			"email":           reply.LeadEmail,
			"profile_summary": summary,
		})
		return summary, eris.Wrap(err, "categoryb: store profile summary")
	})

	ev := Evaluate(reply)
	out := &model.CategoryBOutput{
		LeadStatusUpdated:       s.Status.OK(),
		ProfileSummaryGenerated: summary != "",
		ProfileSummary:          summary,
		AirtableUpdated:         s.Summary.OK(),
		ReferralEvaluation:      ev,
	}
	if s.Status.OK() {
		out.NewStatus = s.Status.Value
	}

	autoSend := ev.AutoSendReferral && w.cfg.AutoSend && !opts.DisableAutoSend && w.dispatcher != nil
	switch {
	case autoSend:
		s.Referral = attempt(func() (Dispatch, error) {
			return w.dispatcher.Dispatch(ctx, w.referralJob(reply), w.cfg.Delay)
		})
		if s.Referral.OK() {
			out.ReferralSent = s.Referral.Value.Sent
			out.ReferralSentAt = s.Referral.Value.SentAt
			out.ReferralScheduled = s.Referral.Value.Scheduled
		}
	case ev.ReferralPotential:
		s.FollowUp = attempt(func() (bool, error) {
			err := w.status.Update(ctx, reply.LeadID, map[string]any{
				"status":           model.StatusReferralFollowUp,
				"email":            reply.LeadEmail,
				"manual_follow_up": true,
			})
			return err == nil, eris.Wrap(err, "categoryb: flag manual follow-up")
		})
		out.ManualFollowUp = s.FollowUp.Value
		if out.ManualFollowUp {
			out.NewStatus = model.StatusReferralFollowUp
		}
	}

	for _, err := range []error{s.Status.Err, s.Summary.Err, s.Referral.Err, s.FollowUp.Err} {
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			log.Warn("categoryb: step failed", zap.Error(err))
		}
	}
	out.Success = out.LeadStatusUpdated && out.ProfileSummaryGenerated

	log.Info("categoryb: workflow complete",
		zap.Bool("success", out.Success),
		zap.Bool("referral_potential", ev.ReferralPotential),
		zap.Bool("referral_sent", out.ReferralSent),
		zap.Bool("referral_scheduled", out.ReferralScheduled),
		zap.Bool("manual_follow_up", out.ManualFollowUp),
	)
	return out, s
}

func (w *Workflow) referralJob(reply model.ReplyPayload) ReferralJob {
	body, _ := brain.Render(w.cfg.Template, map[string]string{
		"first_name": reply.FirstName(),
		"pain_point": w.painPoint(reply.BrainID),
		"company":    reply.LeadCompany,
	})
	return ReferralJob{
		LeadID:  reply.LeadID,
		ReplyID: reply.ReplyID,
		Message: messaging.Message{
			Channel:   reply.Channel(),
			Recipient: reply.Recipient(),
			Subject:   w.cfg.Subject,
			Body:      body,
			ThreadID:  reply.ThreadID,
		},
	}
}

func (w *Workflow) painPoint(brainID string) string {
	if w.cfg.PainPoint != "" {
		return w.cfg.PainPoint
	}
	if w.library != nil {
		if b, ok := w.library.Brain(brainID); ok && b.PainPoint != "" {
			return b.PainPoint
		}
	}
	return "this problem"
}
