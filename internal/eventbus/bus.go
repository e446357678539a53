// Package eventbus is the in-process publish/subscribe registry that fans
// domain events out to delivery handlers.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/common/metrics"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandlerFunc consumes one payload variant. The bus derives the kind from P,
// so a handler can only ever receive the payload shape it declares.
type HandlerFunc[P Payload] func(ctx context.Context, payload P) error

// Subscription identifies one registration. The zero value matches nothing.
type Subscription struct {
	kind Kind
	id   uint64
}

func (s Subscription) Kind() Kind { return s.kind }

type registration struct {
	id     uint64
	name   string
	invoke func(ctx context.Context, p Payload) error
}

// Bus holds the subscription table. Construct one per process with New and
// pass it to producers and consumers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]registration

	log    logger.Logger
	tracer trace.Tracer
}

type Option func(*Bus)

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) { b.tracer = t }
}

func New(log logger.Logger, opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[Kind][]registration),
		log:    log.WithFields(map[string]interface{}{"component": "eventbus"}),
		tracer: otel.Tracer("coaching-notifier/eventbus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for P's kind. Registering the same handler twice
// yields two subscriptions and two invocations per emit.
// Payloads are value types; a pointer P is rejected with an error log and a
// zero Subscription that matches nothing.
func Subscribe[P Payload](b *Bus, name string, h HandlerFunc[P]) Subscription {
	var zero P
	kind, ok := kindOf(zero)
	if !ok {
		b.log.Error("cannot subscribe to a nil payload type", map[string]interface{}{
			"handler": name,
			"type":    fmt.Sprintf("%T", zero),
		})
		return Subscription{}
	}

	reg := registration{
		name: name,
		invoke: func(ctx context.Context, p Payload) error {
			typed, ok := p.(P)
			if !ok {
				return fmt.Errorf("payload %T does not match handler for %s", p, kind)
			}
			return h(ctx, typed)
		},
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	reg.id = b.nextID
	b.subs[kind] = append(b.subs[kind], reg)

	return Subscription{kind: kind, id: reg.id}
}

// Unsubscribe removes one registration. Unknown or already removed
// subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.subs[sub.kind]
	for i, reg := range regs {
		if reg.id != sub.id {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, sub.kind)
		} else {
			b.subs[sub.kind] = next
		}
		return
	}
}

// Reset drops every subscription.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.subs = make(map[Kind][]registration)
	b.mu.Unlock()
}

// Count returns the number of registrations for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Emit runs every handler registered for the payload's kind concurrently and
// returns once all of them have settled. Handler errors and panics are logged
// and counted; none of them reach the caller. Handlers are detached from the
// caller's cancellation and run to completion.
func (b *Bus) Emit(ctx context.Context, p Payload) {
	kind, ok := kindOf(p)
	if !ok {
		b.log.Warn("dropping nil payload", map[string]interface{}{"type": fmt.Sprintf("%T", p)})
		return
	}
	metrics.EventsEmitted.WithLabelValues(string(kind)).Inc()

	b.mu.RLock()
	regs := append([]registration(nil), b.subs[kind]...)
	b.mu.RUnlock()

	if len(regs) == 0 {
		b.log.Debug("no subscribers", map[string]interface{}{"kind": string(kind)})
		return
	}

	ctx, span := b.tracer.Start(context.WithoutCancel(ctx), "eventbus.emit", trace.WithAttributes(
		attribute.String("event.kind", string(kind)),
		attribute.Int("event.handlers", len(regs)),
	))
	defer span.End()

	var wg conc.WaitGroup
	for _, reg := range regs {
		wg.Go(func() { b.invoke(ctx, kind, reg, p) })
	}
	wg.Wait()
}

func (b *Bus) invoke(ctx context.Context, kind Kind, reg registration, p Payload) {
	ctx, span := b.tracer.Start(ctx, "eventbus.handler", trace.WithAttributes(
		attribute.String("event.kind", string(kind)),
		attribute.String("handler", reg.name),
	))
	defer span.End()

	start := time.Now()
	var err error
	var catcher panics.Catcher
	catcher.Try(func() { err = reg.invoke(ctx, p) })

	fields := map[string]interface{}{
		"kind":      string(kind),
		"handler":   reg.name,
		"clientId":  p.ClientRef(),
		"elapsedMs": time.Since(start).Milliseconds(),
	}

	outcome := metrics.OutcomeOK
	if r := catcher.Recovered(); r != nil {
		outcome = metrics.OutcomePanic
		fields["panic"] = fmt.Sprint(r.Value)
		fields["stack"] = string(r.Stack)
		b.log.Error("event handler panicked", fields)
		span.SetStatus(codes.Error, "panic")
	} else if err != nil {
		outcome = metrics.OutcomeError
		fields["error"] = err.Error()
		b.log.Error("event handler failed", fields)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	metrics.HandlerInvocations.WithLabelValues(string(kind), reg.name, outcome).Inc()
	metrics.HandlerDuration.WithLabelValues(string(kind), reg.name).Observe(time.Since(start).Seconds())
}

// kindOf returns p's kind, or false for a nil interface or a nil pointer
// payload whose value-receiver Kind would panic.
func kindOf(p Payload) (kind Kind, ok bool) {
	if p == nil {
		return "", false
	}
	defer func() {
		if recover() != nil {
			kind, ok = "", false
		}
	}()
	return p.Kind(), true
}
