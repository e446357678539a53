package notify

import "coaching-notifier/internal/eventbus"

// Register subscribes every handler to every event kind and returns the
// subscriptions in registration order.
func Register(bus *eventbus.Bus, handlers ...*Handler) []eventbus.Subscription {
	subs := make([]eventbus.Subscription, 0, len(handlers)*len(eventbus.Kinds))
	for _, h := range handlers {
		name := h.Name()
		subs = append(subs,
			eventbus.Subscribe(bus, name, h.HandleSessionReminder),
			eventbus.Subscribe(bus, name, h.HandleSessionSummaryPosted),
			eventbus.Subscribe(bus, name, h.HandleResourceShared),
		)
	}
	return subs
}
