package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coaching-notifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	return New(logger.NewTestLogger(t))
}

func reminder(clientID string) SessionReminder {
	return SessionReminder{
		ClientID:    clientID,
		SessionDate: time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC),
		Timezone:    "America/New_York",
		CoachName:   "Dana",
	}
}

// ==========================
// Failure Isolation
// ==========================

func TestEmit_FailingHandlersDoNotStopSiblings(t *testing.T) {
	bus := newTestBus(t)

	const n = 6
	var completed atomic.Int32
	for i := 0; i < n; i++ {
		switch i {
		case 2:
			Subscribe(bus, "erroring", func(ctx context.Context, p SessionReminder) error {
				return errors.New("smtp unavailable")
			})
		case 4:
			Subscribe(bus, "panicking", func(ctx context.Context, p SessionReminder) error {
				panic("nil recipient")
			})
		default:
			Subscribe(bus, "ok", func(ctx context.Context, p SessionReminder) error {
				time.Sleep(5 * time.Millisecond)
				completed.Add(1)
				return nil
			})
		}
	}

	assert.NotPanics(t, func() { bus.Emit(context.Background(), reminder("c1")) })
	assert.Equal(t, int32(n-2), completed.Load(), "every healthy handler settles before Emit returns")
}

func TestEmit_NoSubscribers(t *testing.T) {
	bus := newTestBus(t)

	done := make(chan struct{})
	go func() {
		bus.Emit(context.Background(), reminder("c1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit without subscribers should return immediately")
	}
}

func TestEmit_NilPayload(t *testing.T) {
	bus := newTestBus(t)
	assert.NotPanics(t, func() { bus.Emit(context.Background(), nil) })
}

func TestEmit_TypedNilPayload(t *testing.T) {
	bus := newTestBus(t)

	var calls atomic.Int32
	Subscribe(bus, "r", func(ctx context.Context, p SessionReminder) error { calls.Add(1); return nil })

	var p *SessionReminder
	assert.NotPanics(t, func() { bus.Emit(context.Background(), p) })
	assert.Zero(t, calls.Load())
}

func TestSubscribe_PointerPayloadIsRejected(t *testing.T) {
	bus := newTestBus(t)

	var sub Subscription
	assert.NotPanics(t, func() {
		sub = Subscribe(bus, "ptr", func(ctx context.Context, p *SessionReminder) error { return nil })
	})
	assert.Equal(t, Kind(""), sub.Kind())
	assert.Zero(t, bus.Count(KindSessionReminder))

	bus.Unsubscribe(sub)
	bus.Emit(context.Background(), reminder("c1"))
}

// ==========================
// Dispatch Semantics
// ==========================

func TestEmit_HandlersRunConcurrently(t *testing.T) {
	bus := newTestBus(t)

	var arrived sync.WaitGroup
	arrived.Add(2)
	var overlapped atomic.Int32

	rendezvous := func(ctx context.Context, p ResourceShared) error {
		arrived.Done()
		waited := make(chan struct{})
		go func() { arrived.Wait(); close(waited) }()
		select {
		case <-waited:
			overlapped.Add(1)
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("sibling handler never started")
		}
	}
	Subscribe(bus, "a", rendezvous)
	Subscribe(bus, "b", rendezvous)

	bus.Emit(context.Background(), ResourceShared{ClientID: "c1", ResourceID: "r1"})
	assert.Equal(t, int32(2), overlapped.Load())
}

func TestEmit_RoutesByKind(t *testing.T) {
	bus := newTestBus(t)

	var reminders, shares atomic.Int32
	Subscribe(bus, "reminders", func(ctx context.Context, p SessionReminder) error {
		reminders.Add(1)
		assert.Equal(t, "c1", p.ClientID)
		assert.Equal(t, "Dana", p.CoachName)
		return nil
	})
	Subscribe(bus, "shares", func(ctx context.Context, p ResourceShared) error {
		shares.Add(1)
		return nil
	})

	bus.Emit(context.Background(), reminder("c1"))

	assert.Equal(t, int32(1), reminders.Load())
	assert.Equal(t, int32(0), shares.Load())
}

func TestEmit_DetachedFromCallerCancellation(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	Subscribe(bus, "ctx", func(ctx context.Context, p SessionSummaryPosted) error {
		sawErr = ctx.Err()
		return nil
	})

	bus.Emit(ctx, SessionSummaryPosted{ClientID: "c1", SessionID: "s1"})
	assert.NoError(t, sawErr)
}

// ==========================
// Subscription Table
// ==========================

func TestSubscribe_DuplicatesInvokedOncePerRegistration(t *testing.T) {
	bus := newTestBus(t)

	var calls atomic.Int32
	h := func(ctx context.Context, p SessionReminder) error {
		calls.Add(1)
		return nil
	}
	first := Subscribe(bus, "dup", h)
	Subscribe(bus, "dup", h)
	require.Equal(t, 2, bus.Count(KindSessionReminder))

	bus.Emit(context.Background(), reminder("c1"))
	assert.Equal(t, int32(2), calls.Load())

	bus.Unsubscribe(first)
	bus.Emit(context.Background(), reminder("c1"))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, bus.Count(KindSessionReminder))
}

func TestUnsubscribe_UnknownIsNoOp(t *testing.T) {
	bus := newTestBus(t)

	sub := Subscribe(bus, "only", func(ctx context.Context, p ResourceShared) error { return nil })
	assert.Equal(t, KindResourceShared, sub.Kind())

	bus.Unsubscribe(Subscription{})
	bus.Unsubscribe(Subscription{kind: KindSessionReminder, id: 999})
	assert.Equal(t, 1, bus.Count(KindResourceShared))

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	assert.Equal(t, 0, bus.Count(KindResourceShared))
}

func TestReset_ClearsAllKinds(t *testing.T) {
	bus := newTestBus(t)

	var calls atomic.Int32
	Subscribe(bus, "r", func(ctx context.Context, p SessionReminder) error { calls.Add(1); return nil })
	Subscribe(bus, "s", func(ctx context.Context, p ResourceShared) error { calls.Add(1); return nil })

	bus.Reset()
	bus.Emit(context.Background(), reminder("c1"))
	bus.Emit(context.Background(), ResourceShared{ClientID: "c1"})

	assert.Equal(t, int32(0), calls.Load())
	for _, k := range Kinds {
		assert.Zero(t, bus.Count(k))
	}
}

func TestBus_IndependentInstances(t *testing.T) {
	a, b := newTestBus(t), newTestBus(t)
	Subscribe(a, "a", func(ctx context.Context, p SessionReminder) error { return nil })

	assert.Equal(t, 1, a.Count(KindSessionReminder))
	assert.Equal(t, 0, b.Count(KindSessionReminder))
}

func TestBus_ConcurrentSubscribeAndEmit(t *testing.T) {
	bus := newTestBus(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := Subscribe(bus, "churn", func(ctx context.Context, p SessionReminder) error { return nil })
			bus.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), reminder("c1"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, bus.Count(KindSessionReminder))
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindSessionReminder.Valid())
	assert.True(t, KindResourceShared.Valid())
	assert.False(t, Kind("invoice_paid").Valid())
}
