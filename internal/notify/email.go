package notify

import (
	"context"

	"coaching-notifier/internal/models"
)

// EmailSender delivers through a Mailer.
type EmailSender struct {
	mailer Mailer
}

// NewEmailHandler returns the email channel handler.
func NewEmailHandler(mailer Mailer, deps Dependencies) *Handler {
	return NewHandler(&EmailSender{mailer: mailer}, deps)
}

func (s *EmailSender) Channel() models.Channel { return models.ChannelEmail }

func (s *EmailSender) Deliver(ctx context.Context, d Delivery) error {
	if d.Recipient.Email == "" {
		return ErrNoAddress
	}
	return s.mailer.Send(ctx, Message{
		To:      d.Recipient.Email,
		Subject: d.Content.Subject,
		Text:    d.Content.Body,
		HTML:    d.Content.HTML,
	})
}
