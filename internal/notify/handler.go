// Package notify turns bus events into email, in-app and SMS deliveries.
package notify

import (
	"context"
	"errors"
	"time"

	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/common/metrics"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/models"
	"coaching-notifier/internal/notify/templates"
	"coaching-notifier/internal/preferences"
)

// ErrNoAddress is returned by a sender when the recipient cannot be reached
// on its channel, such as a user without a phone number.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Sender delivers rendered content on one channel.
type Sender interface {
	Channel() models.Channel
	Deliver(ctx context.Context, d Delivery) error
}

// Delivery is one rendered notification for one recipient.
type Delivery struct {
	Recipient *models.Recipient
	Kind      eventbus.Kind
	Content   templates.Content
	Metadata  map[string]interface{}
}

// PreferenceReader loads or lazily creates a user's preferences.
type PreferenceReader interface {
	Get(ctx context.Context, userID string) (*preferences.Preferences, error)
}

// Dependencies are shared by every channel handler.
type Dependencies struct {
	Directory   Directory
	Preferences PreferenceReader
	Logger      logger.Logger
	AppURL      string
	// Timeout bounds a single delivery. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// Handler runs the common delivery flow for one channel: resolve the
// recipient, check preferences, render, deliver. Nothing it encounters is
// returned to the bus.
type Handler struct {
	sender  Sender
	deps    Dependencies
	logger  logger.Logger
	channel models.Channel
}

func NewHandler(sender Sender, deps Dependencies) *Handler {
	channel := sender.Channel()
	return &Handler{
		sender:  sender,
		deps:    deps,
		channel: channel,
		logger:  deps.Logger.WithFields(map[string]interface{}{"channel": string(channel)}),
	}
}

func (h *Handler) Name() string { return string(h.channel) }

func (h *Handler) Channel() models.Channel { return h.channel }

func (h *Handler) HandleSessionReminder(ctx context.Context, e eventbus.SessionReminder) error {
	h.handle(ctx, e.Kind(), e.ClientID, func(r *models.Recipient) (templates.Data, map[string]interface{}, bool) {
		tz := e.Timezone
		if tz == "" {
			tz = r.Timezone
		}
		return templates.Data{
				RecipientName: r.DisplayName,
				CoachName:     e.CoachName,
				SessionDate:   e.SessionDate,
				Timezone:      tz,
				AppURL:        h.deps.AppURL,
			}, map[string]interface{}{
				"clientId":    e.ClientID,
				"sessionDate": e.SessionDate.UTC().Format(time.RFC3339),
			}, true
	})
	return nil
}

func (h *Handler) HandleSessionSummaryPosted(ctx context.Context, e eventbus.SessionSummaryPosted) error {
	h.handle(ctx, e.Kind(), e.ClientID, func(r *models.Recipient) (templates.Data, map[string]interface{}, bool) {
		session, err := h.deps.Directory.Session(ctx, e.SessionID)
		if err != nil {
			fields := map[string]interface{}{
				"clientId":  e.ClientID,
				"sessionId": e.SessionID,
			}
			if errors.Is(err, ErrSessionNotFound) {
				h.logger.Warn("session not found, nothing to notify", fields)
			} else {
				h.logger.WithError(err).Error("session lookup failed", fields)
			}
			return templates.Data{}, nil, false
		}
		return templates.Data{
				RecipientName: r.DisplayName,
				CoachName:     e.CoachName,
				SessionDate:   session.HeldAt,
				Timezone:      r.Timezone,
				AppURL:        h.deps.AppURL,
			}, map[string]interface{}{
				"clientId":  e.ClientID,
				"sessionId": e.SessionID,
			}, true
	})
	return nil
}

func (h *Handler) HandleResourceShared(ctx context.Context, e eventbus.ResourceShared) error {
	h.handle(ctx, e.Kind(), e.ClientID, func(r *models.Recipient) (templates.Data, map[string]interface{}, bool) {
		meta := map[string]interface{}{
			"clientId":   e.ClientID,
			"resourceId": e.ResourceID,
		}
		if e.URL != "" {
			meta["url"] = e.URL
		}
		return templates.Data{
			RecipientName: r.DisplayName,
			CoachName:     e.CoachName,
			ResourceTitle: e.Title,
			ResourceURL:   e.URL,
			AppURL:        h.deps.AppURL,
		}, meta, true
	})
	return nil
}

type dataFunc func(r *models.Recipient) (templates.Data, map[string]interface{}, bool)

func (h *Handler) handle(ctx context.Context, kind eventbus.Kind, clientID string, build dataFunc) {
	fields := map[string]interface{}{
		"kind":     string(kind),
		"clientId": clientID,
	}

	recipient, err := h.deps.Directory.RecipientForClient(ctx, clientID)
	switch {
	case errors.Is(err, ErrNoLinkedUser):
		h.logger.Debug("client has no user account, skipping", fields)
		h.record(kind, models.StatusSkipped)
		return
	case errors.Is(err, ErrClientNotFound):
		h.logger.Warn("client not found, skipping", fields)
		h.record(kind, models.StatusSkipped)
		return
	case err != nil:
		h.logger.WithError(err).Error("recipient lookup failed", fields)
		h.record(kind, models.StatusFailed)
		return
	}
	fields["userId"] = recipient.UserID

	prefs, err := h.deps.Preferences.Get(ctx, recipient.UserID)
	if err != nil {
		h.logger.WithError(err).Error("preference lookup failed", fields)
		h.record(kind, models.StatusFailed)
		return
	}
	if !prefs.Enabled(h.channel, kind) {
		h.logger.Debug("channel disabled by preference", fields)
		h.record(kind, models.StatusDisabled)
		return
	}

	data, meta, ok := build(recipient)
	if !ok {
		h.record(kind, models.StatusSkipped)
		return
	}

	content, err := templates.Render(kind, h.channel, data)
	if err != nil {
		h.logger.WithError(err).Error("render failed", fields)
		h.record(kind, models.StatusFailed)
		return
	}

	if h.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.Timeout)
		defer cancel()
	}

	err = h.sender.Deliver(ctx, Delivery{
		Recipient: recipient,
		Kind:      kind,
		Content:   content,
		Metadata:  meta,
	})
	switch {
	case errors.Is(err, ErrNoAddress):
		h.logger.Debug("recipient unreachable on channel, skipping", fields)
		h.record(kind, models.StatusSkipped)
	case err != nil:
		h.logger.WithError(err).Error("delivery failed", fields)
		h.record(kind, models.StatusFailed)
	default:
		h.logger.Info("notification delivered", fields)
		h.record(kind, models.StatusSent)
	}
}

func (h *Handler) record(kind eventbus.Kind, status string) {
	metrics.Deliveries.WithLabelValues(string(h.channel), string(kind), status).Inc()
}
