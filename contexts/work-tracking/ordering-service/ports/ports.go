package ports

import (
	"context"
	"time"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Partition is the set of ordering rows sharing one context and entity kind;
// the unit within which a total order is maintained.
type Partition struct {
	Context entities.ListContext
	Kind    entities.EntityKind
}

// Key renders a stable partition identifier, also used as the event
// partition key so consumers see per-list ordering changes in sequence.
func (p Partition) Key() string {
	return string(p.Context.Kind) + ":" + p.Context.GroupID + ":" + string(p.Kind)
}

// PositionChange reassigns one existing row's position during a rebalance.
type PositionChange struct {
	OrderingID string
	Position   string
}

// EventEnvelope is the ordering event shape written to the outbox and
// published on the bus.
type EventEnvelope struct {
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	PartitionKey string         `json:"partition_key"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Payload      map[string]any `json:"payload"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type AddItemInput struct {
	Context     entities.ListContext
	Entity      entities.EntityRef
	UserID      string
	WorkspaceID string
	After       *entities.EntityRef
	Before      *entities.EntityRef
}

type MoveItemInput struct {
	Context entities.ListContext
	Entity  entities.EntityRef
	After   *entities.EntityRef
	Before  *entities.EntityRef
}

type MoveAcrossListsInput struct {
	Source      entities.ListContext
	Destination entities.ListContext
	Entity      entities.EntityRef
	After       *entities.EntityRef
	Before      *entities.EntityRef
}

// Repository persists ordering rows. Mutations that carry rebalance moves or
// events must apply everything in one storage transaction; a failed write
// rolls the whole renumbering back. Implementations surface storage write
// conflicts (unique constraint violations) as domain ErrOrderingConflict.
type Repository interface {
	// GetOrdering looks up the row for one (context, entity) membership.
	GetOrdering(ctx context.Context, listCtx entities.ListContext, entity entities.EntityRef) (entities.Ordering, bool, error)

	// ListPartition returns the partition's rows sorted by position
	// ascending, excluding the given entity's own row when set.
	ListPartition(ctx context.Context, partition Partition, exclude *entities.EntityRef) ([]entities.Ordering, error)

	// Insert writes a new row, applies any rebalance moves, and appends the
	// event to the outbox atomically.
	Insert(ctx context.Context, row entities.Ordering, moves []PositionChange, event EventEnvelope) error

	// Reposition rewrites context and position on an existing row (identity
	// preserved), applies any rebalance moves, and appends the event
	// atomically.
	Reposition(ctx context.Context, orderingID string, target entities.ListContext, position string, updatedAt time.Time, moves []PositionChange, event EventEnvelope) error

	// Remove deletes the row for (context, entity) if present and reports
	// whether one was removed. The event is appended only when a row was
	// removed.
	Remove(ctx context.Context, listCtx entities.ListContext, entity entities.EntityRef, event EventEnvelope) (bool, error)

	// RemoveAllForEntity deletes every row referencing the entity across all
	// contexts and returns the count. The event is appended (with the count
	// added to its payload) only when at least one row was removed.
	RemoveAllForEntity(ctx context.Context, entity entities.EntityRef, event EventEnvelope) (int, error)
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
