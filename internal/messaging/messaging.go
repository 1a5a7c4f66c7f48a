// Package messaging delivers outbound replies over email and LinkedIn.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/resilience"
)

// ErrUnsupportedChannel is returned when no sender serves a channel.
var ErrUnsupportedChannel = eris.New("messaging: unsupported channel")

// Message is one outbound message. Recipient is an email address for email
// and a conversation id for LinkedIn.
type Message struct {
	Channel   model.Channel `json:"channel"`
	Recipient string        `json:"recipient"`
	Subject   string        `json:"subject,omitempty"`
	Body      string        `json:"body"`
	// ThreadID threads an email reply onto the lead's message when set.
	ThreadID string `json:"thread_id,omitempty"`
}

// Messenger sends a message on its channel.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// Router dispatches messages to the sender registered for their channel.
type Router struct {
	senders map[model.Channel]Messenger
	policy  *resilience.Policy
}

// NewRouter creates a Router. policy may be nil.
func NewRouter(policy *resilience.Policy) *Router {
	return &Router{senders: make(map[model.Channel]Messenger), policy: policy}
}

// Register sets the sender for a channel.
func (r *Router) Register(ch model.Channel, m Messenger) *Router {
	r.senders[ch] = m
	return r
}

// Channels lists the registered channels.
func (r *Router) Channels() []model.Channel {
	out := make([]model.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}

// Send implements Messenger.
func (r *Router) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Recipient) == "" {
		return eris.New("messaging: recipient is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return eris.New("messaging: body is required")
	}
	sender, ok := r.senders[msg.Channel]
	if !ok {
		return eris.Wrapf(ErrUnsupportedChannel, "messaging: channel %q", msg.Channel)
	}

	service := fmt.Sprintf("messaging.%s", msg.Channel)
	err := r.policy.Call(ctx, service, "send", func(ctx context.Context) error {
		return sender.Send(ctx, msg)
	})
	if err != nil {
		return eris.Wrapf(err, "messaging: send %s", msg.Channel)
	}
	zap.L().Info("messaging: sent",
		zap.String("channel", string(msg.Channel)),
		zap.String("recipient", msg.Recipient),
	)
	return nil
}

// LogSender records messages instead of delivering them.
type LogSender struct{}

// Send implements Messenger.
func (LogSender) Send(_ context.Context, msg Message) error {
	zap.L().Info("messaging: dry run",
		zap.String("channel", string(msg.Channel)),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.Int("body_len", len(msg.Body)),
	)
	return nil
}

// retryable marks err transient for the retry policy when check says so.
func retryable[T error](err error, check func(T) bool) error {
	var target T
	if errors.As(err, &target) && check(target) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
