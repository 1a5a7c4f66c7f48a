package triage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/brain"
	"github.com/sells-group/lead-triage/internal/messaging"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/status"
	"github.com/sells-group/lead-triage/internal/store"
)

// ErrInvalidReply is returned for reply payloads that fail validation.
var ErrInvalidReply = eris.New("triage: invalid reply")

// ApprovalQueue holds Tier-2 drafts until a human approves them.
type ApprovalQueue interface {
	Enqueue(ctx context.Context, item model.ApprovalItem) error
}

// Escalator hands Tier-3 replies to a human.
type Escalator interface {
	Escalate(ctx context.Context, e model.Escalation) error
}

// NotInterestedWorkflow handles Category B replies.
type NotInterestedWorkflow interface {
	Run(ctx context.Context, reply model.ReplyPayload, c model.Classification) *model.CategoryBOutput
}

// LeadLookup returns the stored state of a lead, or nil when unknown.
type LeadLookup interface {
	GetLead(ctx context.Context, leadID string) (*store.LeadRecord, error)
}

// ReplyLog records every handled reply.
type ReplyLog interface {
	RecordReply(ctx context.Context, rec store.ReplyRecord) error
}

// Deps are the collaborators of a Handler. Classifier, Router, Library,
// Status, Messenger, Approvals and Escalator are required.
type Deps struct {
	Classifier Classifier
	Router     *Router
	Library    brain.Library
	Status     status.Updater
	Messenger  messaging.Messenger
	Approvals  ApprovalQueue
	Escalator  Escalator
	CategoryB  NotInterestedWorkflow
	Leads      LeadLookup
	Replies    ReplyLog
	SenderName string
	Now        func() time.Time
}

// Handler runs the reply pipeline: classify, route, act, record.
type Handler struct {
	d Deps
}

// NewHandler validates deps and creates a Handler.
func NewHandler(d Deps) (*Handler, error) {
	switch {
	case d.Classifier == nil:
		return nil, eris.New("triage: classifier is required")
	case d.Router == nil:
		return nil, eris.New("triage: router is required")
	case d.Library == nil:
		return nil, eris.New("triage: brain library is required")
	case d.Status == nil:
		return nil, eris.New("triage: status updater is required")
	case d.Messenger == nil:
		return nil, eris.New("triage: messenger is required")
	case d.Approvals == nil:
		return nil, eris.New("triage: approval queue is required")
	case d.Escalator == nil:
		return nil, eris.New("triage: escalator is required")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{d: d}, nil
}

// HandleReply triages one reply. Only invalid payloads return an error;
// collaborator failures are collected in the outcome.
func (h *Handler) HandleReply(ctx context.Context, reply model.ReplyPayload) (*model.ReplyOutcome, error) {
	if err := model.Validate(reply); err != nil {
		return nil, eris.Wrapf(ErrInvalidReply, "%v", err)
	}

	log := zap.L().With(
		zap.String("reply_id", reply.ReplyID),
		zap.String("lead_id", reply.LeadID),
	)
	out := &model.ReplyOutcome{ReplyID: reply.ReplyID, LeadID: reply.LeadID}

	c, err := h.d.Classifier.Classify(ctx, reply.ReplyText, reply.ThreadMessages)
	if err != nil {
		log.Warn("triage: classification failed, escalating", zap.Error(err))
		out.Errors = append(out.Errors, err.Error())
		c = model.Classification{Intent: model.IntentUnclear, Sentiment: model.SentimentNeutral, Reasoning: "classifier unavailable"}
	}
	out.Classification = c

	out.Decision = h.d.Router.Route(c, h.leadContext(ctx, reply))
	log.Debug("triage: routed",
		zap.String("intent", string(c.Intent)),
		zap.Float64("confidence", c.Confidence),
		zap.String("route", string(out.Decision.Route)),
		zap.String("reason", out.Decision.Reason),
	)

	switch out.Decision.Route {
	case model.RouteAutoHandled:
		h.autoHandle(ctx, reply, out)
	case model.RouteTier1:
		h.autoRespond(ctx, reply, out)
	case model.RouteTier2:
		h.queueDraft(ctx, reply, out)
	case model.RouteCategoryB:
		h.notInterested(ctx, reply, out)
	default:
		h.escalate(ctx, reply, out)
	}

	out.ProcessedAt = h.d.Now().UTC()
	if h.d.Replies != nil {
		if err := h.d.Replies.RecordReply(ctx, store.ReplyRecordFromOutcome(out)); err != nil {
			log.Warn("triage: record reply failed", zap.Error(err))
		}
	}
	return out, nil
}

func (h *Handler) leadContext(ctx context.Context, reply model.ReplyPayload) LeadContext {
	lc := LeadContext{Title: reply.LeadTitle}
	if h.d.Leads == nil {
		return lc
	}
	rec, err := h.d.Leads.GetLead(ctx, reply.LeadID)
	if err != nil {
		zap.L().Warn("triage: lead lookup failed", zap.String("lead_id", reply.LeadID), zap.Error(err))
		return lc
	}
	if rec != nil {
		lc.Score = rec.Score
	}
	return lc
}

func (h *Handler) autoHandle(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome) {
	st := model.StatusOutOfOffice
	if out.Classification.Intent == model.IntentUnsubscribe {
		st = model.StatusUnsubscribed
	}
	h.setStatus(ctx, reply, out, st, nil)
}

func (h *Handler) autoRespond(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome) {
	b := h.brainFor(reply.BrainID)
	tpl, ok := b.Template(out.Classification.Intent, 1)
	if !ok {
		h.downgrade(ctx, reply, out, "no tier-1 template")
		return
	}
	body, missing := brain.Render(tpl.Text, h.vars(reply, b))
	if len(missing) > 0 {
		zap.L().Debug("triage: template variables missing",
			zap.String("template_id", tpl.ID),
			zap.Strings("missing", missing),
		)
		h.downgrade(ctx, reply, out, "tier-1 template has unfilled variables")
		return
	}

	err := h.d.Messenger.Send(ctx, messaging.Message{
		Channel:   reply.Channel(),
		Recipient: reply.Recipient(),
		Subject:   tpl.Subject,
		Body:      body,
		ThreadID:  reply.ThreadID,
	})
	if err != nil {
		out.Errors = append(out.Errors, eris.Wrap(err, "triage: send tier-1 response").Error())
		h.downgrade(ctx, reply, out, "tier-1 send failed")
		return
	}
	out.ResponseSent = true
	out.Draft = body
	h.setStatus(ctx, reply, out, model.StatusReplied, map[string]any{"template_id": tpl.ID})
}

// downgrade re-routes a Tier-1 reply to the approval queue.
func (h *Handler) downgrade(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome, reason string) {
	out.Decision.Route = model.RouteTier2
	out.Decision.Reason = reason
	h.queueDraft(ctx, reply, out)
}

func (h *Handler) queueDraft(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome) {
	b := h.brainFor(reply.BrainID)
	text, templateID := draftSource(b, out.Classification.Intent, reply.ReplyText)
	draft, _ := brain.Render(text, h.vars(reply, b))
	out.Draft = draft

	item := model.ApprovalItem{
		ID:             uuid.New().String(),
		ReplyID:        reply.ReplyID,
		LeadID:         reply.LeadID,
		Channel:        reply.Channel(),
		Recipient:      reply.Recipient(),
		Draft:          draft,
		TemplateID:     templateID,
		Classification: out.Classification,
		CreatedAt:      h.d.Now().UTC(),
	}
	if err := h.d.Approvals.Enqueue(ctx, item); err != nil {
		out.Errors = append(out.Errors, eris.Wrap(err, "triage: enqueue approval").Error())
		zap.L().Error("triage: approval enqueue failed", zap.String("reply_id", reply.ReplyID), zap.Error(err))
		return
	}
	out.DraftQueued = true
	h.setStatus(ctx, reply, out, model.StatusAwaitingApproval, map[string]any{"approval_id": item.ID})
}

const fallbackDraft = "Hi {{first_name}},\n\nThanks for getting back to me. "

// draftSource picks the text a Tier-2 draft starts from: a matching
// objection handler, then the intent's tier-2 and tier-1 templates.
func draftSource(b *brain.Brain, intent model.Intent, replyText string) (text, id string) {
	if intent == model.IntentObjection {
		if oh, ok := b.MatchObjection(replyText); ok {
			return oh.Response, oh.ID
		}
	}
	for _, tier := range []int{2, 1} {
		if t, ok := b.Template(intent, tier); ok {
			return t.Text, t.ID
		}
	}
	return fallbackDraft, ""
}

func (h *Handler) escalate(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome) {
	e := model.Escalation{
		ID:             uuid.New().String(),
		ReplyID:        reply.ReplyID,
		LeadID:         reply.LeadID,
		Reason:         out.Decision.Reason,
		Classification: out.Classification,
		Payload:        reply,
		CreatedAt:      h.d.Now().UTC(),
	}
	if err := h.d.Escalator.Escalate(ctx, e); err != nil {
		out.Errors = append(out.Errors, eris.Wrap(err, "triage: escalate").Error())
		zap.L().Error("triage: escalation failed", zap.String("reply_id", reply.ReplyID), zap.Error(err))
		return
	}
	out.Escalated = true
	h.setStatus(ctx, reply, out, model.StatusEscalated, map[string]any{"escalation_id": e.ID})
}

func (h *Handler) notInterested(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome) {
	if h.d.CategoryB == nil {
		h.setStatus(ctx, reply, out, model.StatusNotInterested, nil)
		return
	}
	res := h.d.CategoryB.Run(ctx, reply, out.Classification)
	out.CategoryB = res
	out.StatusUpdated = res.LeadStatusUpdated
}

func (h *Handler) setStatus(ctx context.Context, reply model.ReplyPayload, out *model.ReplyOutcome, st string, extra map[string]any) {
	fields := map[string]any{
		"status":     st,
		"email":      reply.LeadEmail,
		"reply_id":   reply.ReplyID,
		"updated_at": h.d.Now().UTC(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := h.d.Status.Update(ctx, reply.LeadID, fields); err != nil {
		out.Errors = append(out.Errors, eris.Wrapf(err, "triage: set status %s", st).Error())
		zap.L().Warn("triage: status update failed",
			zap.String("lead_id", reply.LeadID),
			zap.String("status", st),
			zap.Error(err),
		)
		return
	}
	out.StatusUpdated = true
}

func (h *Handler) brainFor(id string) *brain.Brain {
	if b, ok := h.d.Library.Brain(id); ok {
		return b
	}
	zap.L().Warn("triage: unknown brain, using default", zap.String("brain_id", id))
	return h.d.Library.Default()
}

func (h *Handler) vars(reply model.ReplyPayload, b *brain.Brain) map[string]string {
	return map[string]string{
		"first_name":  reply.FirstName(),
		"name":        reply.LeadName,
		"company":     reply.LeadCompany,
		"title":       reply.LeadTitle,
		"pain_point":  b.PainPoint,
		"vertical":    b.Name,
		"sender_name": h.d.SenderName,
	}
}
