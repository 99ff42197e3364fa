package analytics

import (
	"context"
	"time"

	"github.com/trolleylabs/trolley-backend/pkg/eventbus"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

// SubscriberName identifies the analytics handler on the event bus.
const SubscriberName = "analytics-export"

// Subscriber maps committed envelopes to BigQuery rows. Export is best
// effort: insert failures are logged and never reach the request path.
type Subscriber struct {
	logg   *logger.Logger
	writer *Writer
	now    func() time.Time
}

// NewSubscriber builds the bus handler around a writer.
func NewSubscriber(logg *logger.Logger, writer *Writer) *Subscriber {
	return &Subscriber{
		logg:   logg,
		writer: writer,
		now:    time.Now,
	}
}

// Handle implements eventbus.Handler.
func (s *Subscriber) Handle(ctx context.Context, envelope eventbus.Envelope) {
	row := EventRow{
		EventID:          envelope.EventID,
		AggregateType:    envelope.AggregateType.String(),
		AggregateID:      envelope.AggregateID,
		AggregateVersion: envelope.AggregateVersion,
		EventType:        envelope.EventType,
		OccurredAt:       envelope.OccurredAt,
		Payload:          string(envelope.Payload),
		RecordedAt:       s.now().UTC(),
	}
	if err := s.writer.Insert(ctx, row); err != nil {
		s.logg.Error(ctx, "failed to export event to analytics", err)
	}
}
