package analytics

import "time"

// EventRow is one domain event flattened for the BigQuery events table.
// Payload carries the stored event JSON verbatim.
type EventRow struct {
	EventID          string    `bigquery:"event_id"`
	AggregateType    string    `bigquery:"aggregate_type"`
	AggregateID      string    `bigquery:"aggregate_id"`
	AggregateVersion int       `bigquery:"aggregate_version"`
	EventType        string    `bigquery:"event_type"`
	OccurredAt       time.Time `bigquery:"occurred_at"`
	Payload          string    `bigquery:"payload"`
	RecordedAt       time.Time `bigquery:"recorded_at"`
}
