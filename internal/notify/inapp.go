package notify

import (
	"context"

	"coaching-notifier/internal/inbox"
	"coaching-notifier/internal/models"
)

// InboxWriter persists in-app notifications.
type InboxWriter interface {
	Create(ctx context.Context, in inbox.CreateInput) (*models.Notification, error)
}

// InAppSender writes a notification row to the recipient's inbox.
type InAppSender struct {
	inbox InboxWriter
}

// NewInAppHandler returns the in-app channel handler.
func NewInAppHandler(w InboxWriter, deps Dependencies) *Handler {
	return NewHandler(&InAppSender{inbox: w}, deps)
}

func (s *InAppSender) Channel() models.Channel { return models.ChannelInApp }

func (s *InAppSender) Deliver(ctx context.Context, d Delivery) error {
	_, err := s.inbox.Create(ctx, inbox.CreateInput{
		UserID:   d.Recipient.UserID,
		Kind:     string(d.Kind),
		Title:    d.Content.Title,
		Message:  d.Content.Body,
		Metadata: d.Metadata,
	})
	return err
}
