package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/trolleylabs/trolley-backend/pkg/enums"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	"github.com/trolleylabs/trolley-backend/pkg/metrics"
)

// Envelope is the transport-neutral shape of a committed domain event.
// Payload is the stored JSON, header fields included.
type Envelope struct {
	EventID          string              `json:"event_id"`
	AggregateType    enums.AggregateType `json:"aggregate_type"`
	AggregateID      string              `json:"aggregate_id"`
	AggregateVersion int                 `json:"aggregate_version"`
	EventType        string              `json:"event_type"`
	OccurredAt       time.Time           `json:"occurred_at"`
	Payload          json.RawMessage     `json:"payload"`
}

// Handler consumes committed envelopes. Handlers run synchronously on the
// publisher's goroutine and must be quick; anything slow buffers internally.
type Handler func(ctx context.Context, envelope Envelope)

// Bus is the in-process publish seam between the write path and secondary
// consumers. Publishing happens after the owning transaction commits, so a
// subscriber may observe an envelope at most once and never a rolled-back
// write.
type Bus struct {
	logg    *logger.Logger
	metrics *metrics.BusMetrics

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New builds an empty bus.
func New(logg *logger.Logger, busMetrics *metrics.BusMetrics) *Bus {
	return &Bus{
		logg:     logg,
		metrics:  busMetrics,
		handlers: map[string]Handler{},
	}
}

// Subscribe registers a named handler. Re-registering a name replaces the
// previous handler.
func (b *Bus) Subscribe(name string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

// Publish fans envelopes out to every subscriber. A panicking subscriber is
// recovered and logged; it never fails the publisher or the other handlers.
func (b *Bus) Publish(ctx context.Context, envelopes []Envelope) {
	if len(envelopes) == 0 {
		return
	}

	b.mu.RLock()
	handlers := make(map[string]Handler, len(b.handlers))
	for name, handler := range b.handlers {
		handlers[name] = handler
	}
	b.mu.RUnlock()

	for _, envelope := range envelopes {
		b.metrics.IncPublished(envelope.AggregateType.String(), envelope.EventType)
		for name, handler := range handlers {
			b.dispatch(ctx, name, handler, envelope)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, name string, handler Handler, envelope Envelope) {
	defer func() {
		if r := recover(); r != nil && b.logg != nil {
			b.logg.Error(ctx, fmt.Sprintf("event bus subscriber %s panicked", name),
				fmt.Errorf("panic: %v", r))
		}
	}()
	handler(ctx, envelope)
}
