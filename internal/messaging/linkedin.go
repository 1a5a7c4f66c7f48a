package messaging

import (
	"context"

	"github.com/sells-group/lead-triage/pkg/heyreach"
)

// LinkedInSender posts messages into HeyReach conversations.
type LinkedInSender struct {
	client heyreach.Client
}

// NewLinkedInSender creates a LinkedInSender.
func NewLinkedInSender(c heyreach.Client) *LinkedInSender {
	return &LinkedInSender{client: c}
}

// Send implements Messenger. Recipient is the HeyReach conversation id.
func (s *LinkedInSender) Send(ctx context.Context, m Message) error {
	_, err := s.client.SendMessage(ctx, m.Recipient, m.Body)
	if err != nil {
		return retryable(err, func(e *heyreach.APIError) bool { return e.Retryable() })
	}
	return nil
}
