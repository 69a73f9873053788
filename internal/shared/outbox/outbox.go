package outbox

import "time"

// Message is the outbox row contract: persisted inside the same DB
// transaction as the state change it describes, then relayed to the message
// bus by the worker. PartitionKey keeps per-list delivery ordered.
type Message struct {
	ID           string
	EventType    string
	PartitionKey string
	Payload      []byte
	Status       string // pending, published
	CreatedAt    time.Time
	PublishedAt  *time.Time
}
