package events

import "time"

// Envelope is the canonical cross-context event shape in Compass.
// Service-local envelopes (see the ordering ports) must stay field-compatible
// with this contract so consumers can decode any context's events.
type Envelope struct {
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	PartitionKey string         `json:"partition_key"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Payload      map[string]any `json:"payload"`
}
