package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SESService is the part of the SES client the mailer uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends through Amazon SES, throttled to the account's send rate.
type SESMailer struct {
	client  SESService
	source  string
	limiter *rate.Limiter
}

// NewSESMailer builds an SES mailer. A non-positive perSecond disables the
// limiter.
func NewSESMailer(client SESService, source string, perSecond float64, burst int) *SESMailer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &SESMailer{
		client:  client,
		source:  source,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ses rate limit: %w", err)
	}

	body := &types.Body{Text: &types.Content{Data: aws.String(msg.Text)}}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML)}
	}

	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body:    body,
		},
		Source: aws.String(m.source),
	})
	return err
}

// SMTPConfig is what the SMTP mailer needs to reach a relay.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	UseTLS    bool
	FromEmail string
	FromName  string
}

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends through an SMTP relay. A connection is opened per message.
type SMTPMailer struct {
	dialer   smtpDialer
	from     string
	fromName string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return &SMTPMailer{dialer: d, from: cfg.FromEmail, fromName: cfg.FromName}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}
	return m.dialer.DialAndSend(m.build(msg))
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.fromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}
	return gm
}
