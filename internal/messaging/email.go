package messaging

import (
	"context"
	"net"
	"time"

	"github.com/rotisserie/eris"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// EmailSender delivers plain-text replies over SMTP.
type EmailSender struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, msg *gomail.Msg) error
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(cfg SMTPConfig) *EmailSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	s := &EmailSender{cfg: cfg}
	s.dial = s.dialAndSend
	return s
}

// Send implements Messenger.
func (s *EmailSender) Send(ctx context.Context, m Message) error {
	msg, err := s.buildMessage(m)
	if err != nil {
		return err
	}
	if err := s.dial(ctx, msg); err != nil {
		return retryable(err, func(se *gomail.SendError) bool { return se.IsTemp() })
	}
	return nil
}

func (s *EmailSender) buildMessage(m Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return nil, eris.Wrap(err, "email: from")
	}
	if err := msg.To(m.Recipient); err != nil {
		return nil, eris.Wrap(err, "email: to")
	}
	msg.Subject(m.Subject)
	if m.ThreadID != "" {
		msg.SetGenHeader(gomail.HeaderInReplyTo, m.ThreadID)
		msg.SetGenHeader(gomail.HeaderReferences, m.ThreadID)
	}
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)
	return msg, nil
}

func (s *EmailSender) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithDialContextFunc(func(dctx context.Context, network, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, network, addr)
		}),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "email: smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "email: smtp send")
	}
	return nil
}
