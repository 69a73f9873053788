package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
	domainerrors "compass/contexts/work-tracking/ordering-service/domain/errors"
	"compass/contexts/work-tracking/ordering-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is an in-memory ordering repository used by tests and the in-memory
// module wiring. Mutations mimic the relational adapter: moves and the
// primary write apply together, and both uniqueness constraints are checked
// after the whole batch, the way a deferred constraint behaves.
type Store struct {
	mu sync.RWMutex

	rows   map[string]entities.Ordering
	outbox map[string]outboxRecord
}

func NewStore(seed []entities.Ordering) *Store {
	rows := make(map[string]entities.Ordering, len(seed))
	for _, row := range seed {
		rows[row.OrderingID] = row
	}
	return &Store{
		rows:   rows,
		outbox: make(map[string]outboxRecord),
	}
}

func (s *Store) GetOrdering(
	_ context.Context,
	listCtx entities.ListContext,
	entity entities.EntityRef,
) (entities.Ordering, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.Context.Equal(listCtx) && row.Entity == entity {
			return row, true, nil
		}
	}
	return entities.Ordering{}, false, nil
}

func (s *Store) ListPartition(
	_ context.Context,
	partition ports.Partition,
	exclude *entities.EntityRef,
) ([]entities.Ordering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ordering, 0)
	for _, row := range s.rows {
		if !row.Context.Equal(partition.Context) || row.Entity.Kind != partition.Kind {
			continue
		}
		if exclude != nil && row.Entity == *exclude {
			continue
		}
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

func (s *Store) Insert(
	_ context.Context,
	row entities.Ordering,
	moves []ports.PositionChange,
	event ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneRows()
	if err := applyMoves(next, moves, row.UpdatedAt); err != nil {
		return err
	}
	next[row.OrderingID] = row
	if err := checkConstraints(next); err != nil {
		return err
	}
	s.rows = next
	return s.appendOutbox(event)
}

func (s *Store) Reposition(
	_ context.Context,
	orderingID string,
	target entities.ListContext,
	position string,
	updatedAt time.Time,
	moves []ports.PositionChange,
	event ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneRows()
	if err := applyMoves(next, moves, updatedAt); err != nil {
		return err
	}
	row, ok := next[orderingID]
	if !ok {
		return domainerrors.ErrOrderingConflict
	}
	row.Context = target
	row.Position = position
	row.UpdatedAt = updatedAt.UTC()
	next[orderingID] = row
	if err := checkConstraints(next); err != nil {
		return err
	}
	s.rows = next
	return s.appendOutbox(event)
}

func (s *Store) Remove(
	_ context.Context,
	listCtx entities.ListContext,
	entity entities.EntityRef,
	event ports.EventEnvelope,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.Context.Equal(listCtx) && row.Entity == entity {
			delete(s.rows, id)
			return true, s.appendOutbox(event)
		}
	}
	return false, nil
}

func (s *Store) RemoveAllForEntity(
	_ context.Context,
	entity entities.EntityRef,
	event ports.EventEnvelope,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, row := range s.rows {
		if row.Entity == entity {
			delete(s.rows, id)
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	event.Payload["removed_count"] = count
	return count, s.appendOutbox(event)
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	pending := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		pending = append(pending, record.message)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].OutboxID < pending[j].OutboxID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	record.published = true
	s.outbox[outboxID] = record
	return nil
}

// Now implements ports.Clock.
func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// NewID implements ports.IDGenerator.
func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// Snapshot returns every ordering row sorted by partition and position.
// Intended for test assertions.
func (s *Store) Snapshot() []entities.Ordering {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ordering, 0, len(s.rows))
	for _, row := range s.rows {
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool {
		left := partitionKeyOf(items[i]) + "|" + items[i].Position
		right := partitionKeyOf(items[j]) + "|" + items[j].Position
		return left < right
	})
	return items
}

func (s *Store) appendOutbox(event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	createdAt := event.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[event.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) cloneRows() map[string]entities.Ordering {
	next := make(map[string]entities.Ordering, len(s.rows)+1)
	for id, row := range s.rows {
		next[id] = row
	}
	return next
}

func applyMoves(rows map[string]entities.Ordering, moves []ports.PositionChange, updatedAt time.Time) error {
	for _, move := range moves {
		row, ok := rows[move.OrderingID]
		if !ok {
			return domainerrors.ErrOrderingConflict
		}
		row.Position = move.Position
		row.UpdatedAt = updatedAt.UTC()
		rows[move.OrderingID] = row
	}
	return nil
}

func checkConstraints(rows map[string]entities.Ordering) error {
	members := make(map[string]struct{}, len(rows))
	positions := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		memberKey := partitionKeyOf(row) + "|" + row.Entity.ID
		if _, dup := members[memberKey]; dup {
			return domainerrors.ErrOrderingConflict
		}
		members[memberKey] = struct{}{}
		positionKey := partitionKeyOf(row) + "|" + row.Position
		if _, dup := positions[positionKey]; dup {
			return domainerrors.ErrOrderingConflict
		}
		positions[positionKey] = struct{}{}
	}
	return nil
}

func partitionKeyOf(row entities.Ordering) string {
	return string(row.Context.Kind) + "|" + row.Context.GroupID + "|" + string(row.Entity.Kind)
}

var _ ports.Repository = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
