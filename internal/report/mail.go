package report

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/newfindings/internal/config"
	"github.com/yairfalse/newfindings/internal/telemetry"
)

// ErrDelivery wraps every failure to hand a report to the SMTP relay.
var ErrDelivery = errors.New("email delivery failed")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidateEmail checks addr against the accepted recipient shape.
func ValidateEmail(addr string) error {
	if !emailPattern.MatchString(addr) {
		return fmt.Errorf("invalid email address: %s", addr)
	}
	return nil
}

// Subject returns the report email subject.
func Subject(assessment string, since time.Time) string {
	return fmt.Sprintf("Dome 9: %s Assessment - New Findings Since %s", assessment, since.Format("2006-01-02"))
}

// Message is a report email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer sends report emails through an SMTP relay.
type Mailer struct {
	cfg     config.SMTPConfig
	metrics *telemetry.Metrics
}

// NewMailer creates a mailer for the relay in cfg. metrics may be nil.
func NewMailer(cfg config.SMTPConfig, metrics *telemetry.Metrics) *Mailer {
	return &Mailer{cfg: cfg, metrics: metrics}
}

// Send delivers msg. Errors wrap ErrDelivery.
func (m *Mailer) Send(ctx context.Context, msg Message) (err error) {
	span := trace.SpanFromContext(ctx)
	defer func() {
		telemetry.RecordEmailEvent(span, len(msg.To), err)
	}()

	mm, err := m.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	client, err := mail.NewClient(m.cfg.Server, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	log.Debug().
		Ctx(ctx).
		Str("server", m.cfg.Server).
		Int("port", m.cfg.Port).
		Bool("ssl", m.cfg.SSL).
		Strs("to", msg.To).
		Msg("Sending report email")

	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	m.metrics.RecordEmailSent(ctx)
	log.Info().Ctx(ctx).Strs("to", msg.To).Msg("Report email sent")
	return nil
}

func (m *Mailer) buildMessage(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("no recipients")
	}

	mm := mail.NewMsg()
	if err := mm.From(m.cfg.User); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.cfg.User, err)
	}
	if err := mm.To(msg.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return mm, nil
}

func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if auth, ok := m.authType(); ok {
		opts = append(opts,
			mail.WithSMTPAuth(auth),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

// authType picks the login mechanism. Without SSL the relay may not offer
// STARTTLS, so PLAIN is allowed over an unencrypted connection.
func (m *Mailer) authType() (mail.SMTPAuthType, bool) {
	if m.cfg.Password == "" {
		return "", false
	}
	if m.cfg.SSL {
		return mail.SMTPAuthPlain, true
	}
	return mail.SMTPAuthPlainNoEnc, true
}
