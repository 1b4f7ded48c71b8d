// Package mail sends outbound email. Delivery is best-effort: callers get
// a success flag, never an error.
package mail

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/BivasNandan/Law-Aid-sub001/internal/config"
	"github.com/BivasNandan/Law-Aid-sub001/internal/metrics"
)

type Sender interface {
	Send(ctx context.Context, to, subject, html string) bool
}

// New returns an SMTP sender when cfg is complete, otherwise a sender that
// logs and skips.
func New(cfg config.SMTPConfig, logger zerolog.Logger) Sender {
	logger = logger.With().Str("component", "mail").Logger()
	if !cfg.Configured() {
		return skip{logger: logger}
	}
	return &SMTP{cfg: cfg, logger: logger, timeout: 15 * time.Second}
}

type SMTP struct {
	cfg     config.SMTPConfig
	logger  zerolog.Logger
	timeout time.Duration
}

func (s *SMTP) Send(ctx context.Context, to, subject, html string) bool {
	msg, err := s.message(to, subject, html)
	if err != nil {
		s.fail(to, err)
		return false
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.User),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTimeout(s.timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		s.fail(to, err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.fail(to, err)
		return false
	}

	metrics.EmailsSent.WithLabelValues("sent").Inc()
	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return true
}

func (s *SMTP) message(to, subject, html string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)
	return msg, nil
}

func (s *SMTP) fail(to string, err error) {
	metrics.EmailsSent.WithLabelValues("failed").Inc()
	s.logger.Error().Err(err).Str("to", to).Msg("failed to send email")
}

type skip struct {
	logger zerolog.Logger
}

func (s skip) Send(_ context.Context, to, subject, _ string) bool {
	metrics.EmailsSent.WithLabelValues("skipped").Inc()
	s.logger.Warn().Str("to", to).Str("subject", subject).Msg("SMTP not configured, skipping email")
	return false
}
