package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
	domainerrors "compass/contexts/work-tracking/ordering-service/domain/errors"
	"compass/contexts/work-tracking/ordering-service/ports"
)

// Service is the single authority for list membership and ordering. It owns
// the read-partition / compute-position / write-row protocol; the storage
// transaction supplied by the repository is the unit of atomicity.
//
// ErrOrderingConflict from any operation means a concurrent writer won a race
// on the same partition; callers retry the whole operation.
type Service struct {
	Repo        ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

const (
	EventItemAdded    = "ordering.item_added"
	EventItemMoved    = "ordering.item_moved"
	EventItemRemoved  = "ordering.item_removed"
	EventEntityPurged = "ordering.entity_purged"
)

// AddItem creates the ordering row for an entity entering a list context.
// Without neighbor hints the item is appended at the end.
func (s Service) AddItem(ctx context.Context, input ports.AddItemInput) (entities.Ordering, error) {
	if err := validateContext(input.Context); err != nil {
		return entities.Ordering{}, err
	}
	if !input.Entity.Valid() {
		return entities.Ordering{}, domainerrors.ErrInvalidEntity
	}

	if _, found, err := s.Repo.GetOrdering(ctx, input.Context, input.Entity); err != nil {
		return entities.Ordering{}, err
	} else if found {
		return entities.Ordering{}, domainerrors.ErrAlreadyOrdered
	}

	partition := ports.Partition{Context: input.Context, Kind: input.Entity.Kind}
	rows, err := s.Repo.ListPartition(ctx, partition, &input.Entity)
	if err != nil {
		return entities.Ordering{}, err
	}
	plan, err := planPosition(rows, input.After, input.Before)
	if err != nil {
		return entities.Ordering{}, err
	}

	now := s.now()
	id, err := s.newID(ctx)
	if err != nil {
		return entities.Ordering{}, err
	}
	row := entities.Ordering{
		OrderingID:  id,
		UserID:      input.UserID,
		WorkspaceID: input.WorkspaceID,
		Context:     input.Context,
		Entity:      input.Entity,
		Position:    plan.Position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	event, err := s.newEvent(ctx, EventItemAdded, partition, row)
	if err != nil {
		return entities.Ordering{}, err
	}
	if err := s.Repo.Insert(ctx, row, plan.Moves, event); err != nil {
		return entities.Ordering{}, err
	}
	s.logMutation("ordering item added", "ordering_item_added", row, plan)
	return row, nil
}

// MoveItem recomputes the position of an entity inside the context it
// already belongs to. The row is updated in place.
func (s Service) MoveItem(ctx context.Context, input ports.MoveItemInput) (entities.Ordering, error) {
	if err := validateContext(input.Context); err != nil {
		return entities.Ordering{}, err
	}
	if !input.Entity.Valid() {
		return entities.Ordering{}, domainerrors.ErrInvalidEntity
	}

	current, found, err := s.Repo.GetOrdering(ctx, input.Context, input.Entity)
	if err != nil {
		return entities.Ordering{}, err
	}
	if !found {
		return entities.Ordering{}, domainerrors.ErrNotFound
	}

	partition := ports.Partition{Context: input.Context, Kind: input.Entity.Kind}
	rows, err := s.Repo.ListPartition(ctx, partition, &input.Entity)
	if err != nil {
		return entities.Ordering{}, err
	}
	plan, err := planPosition(rows, input.After, input.Before)
	if err != nil {
		return entities.Ordering{}, err
	}

	now := s.now()
	updated := current
	updated.Position = plan.Position
	updated.UpdatedAt = now

	event, err := s.newEvent(ctx, EventItemMoved, partition, updated)
	if err != nil {
		return entities.Ordering{}, err
	}
	if err := s.Repo.Reposition(ctx, current.OrderingID, input.Context, plan.Position, now, plan.Moves, event); err != nil {
		return entities.Ordering{}, err
	}
	s.logMutation("ordering item moved", "ordering_item_moved", updated, plan)
	return updated, nil
}

// MoveItemAcrossLists relocates an entity's row from one context to another,
// preserving row identity: context and position are rewritten on the same
// row, no delete and re-insert.
func (s Service) MoveItemAcrossLists(ctx context.Context, input ports.MoveAcrossListsInput) (entities.Ordering, error) {
	if err := validateContext(input.Source); err != nil {
		return entities.Ordering{}, err
	}
	if err := validateContext(input.Destination); err != nil {
		return entities.Ordering{}, err
	}
	if !input.Entity.Valid() {
		return entities.Ordering{}, domainerrors.ErrInvalidEntity
	}

	current, found, err := s.Repo.GetOrdering(ctx, input.Source, input.Entity)
	if err != nil {
		return entities.Ordering{}, err
	}
	if !found {
		return entities.Ordering{}, domainerrors.ErrNotFound
	}
	if !input.Destination.Equal(input.Source) {
		if _, occupied, err := s.Repo.GetOrdering(ctx, input.Destination, input.Entity); err != nil {
			return entities.Ordering{}, err
		} else if occupied {
			return entities.Ordering{}, domainerrors.ErrAlreadyOrdered
		}
	}

	partition := ports.Partition{Context: input.Destination, Kind: input.Entity.Kind}
	rows, err := s.Repo.ListPartition(ctx, partition, &input.Entity)
	if err != nil {
		return entities.Ordering{}, err
	}
	plan, err := planPosition(rows, input.After, input.Before)
	if err != nil {
		return entities.Ordering{}, err
	}

	now := s.now()
	updated := current
	updated.Context = input.Destination
	updated.Position = plan.Position
	updated.UpdatedAt = now

	event, err := s.newEvent(ctx, EventItemMoved, partition, updated)
	if err != nil {
		return entities.Ordering{}, err
	}
	if err := s.Repo.Reposition(ctx, current.OrderingID, input.Destination, plan.Position, now, plan.Moves, event); err != nil {
		return entities.Ordering{}, err
	}
	s.logMutation("ordering item moved across lists", "ordering_item_moved_across", updated, plan)
	return updated, nil
}

// RemoveItem deletes the row for (context, entity) if present. Removing an
// absent membership is not an error.
func (s Service) RemoveItem(ctx context.Context, listCtx entities.ListContext, entity entities.EntityRef) (bool, error) {
	if err := validateContext(listCtx); err != nil {
		return false, err
	}
	if !entity.Valid() {
		return false, domainerrors.ErrInvalidEntity
	}

	current, found, err := s.Repo.GetOrdering(ctx, listCtx, entity)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	partition := ports.Partition{Context: listCtx, Kind: entity.Kind}
	event, err := s.newEvent(ctx, EventItemRemoved, partition, current)
	if err != nil {
		return false, err
	}
	return s.Repo.Remove(ctx, listCtx, entity, event)
}

// DeleteAllOrderingsForEntity removes every row referencing the entity across
// all contexts. Used only when the entity itself is destroyed; returns the
// number of rows removed.
func (s Service) DeleteAllOrderingsForEntity(ctx context.Context, entity entities.EntityRef) (int, error) {
	if !entity.Valid() {
		return 0, domainerrors.ErrInvalidEntity
	}

	eventID, err := s.newID(ctx)
	if err != nil {
		return 0, err
	}
	event := ports.EventEnvelope{
		EventID:      eventID,
		EventType:    EventEntityPurged,
		PartitionKey: string(entity.Kind) + ":" + entity.ID,
		OccurredAt:   s.now(),
		Payload: map[string]any{
			"entity_type": string(entity.Kind),
			"entity_id":   entity.ID,
		},
	}
	count, err := s.Repo.RemoveAllForEntity(ctx, entity, event)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		ResolveLogger(s.Logger).Info("ordering rows purged for entity",
			"event", "ordering_entity_purged",
			"module", "work-tracking/ordering-service",
			"layer", "application",
			"entity_type", string(entity.Kind),
			"entity_id", entity.ID,
			"removed_count", count,
		)
	}
	return count, nil
}

// ListItems returns a partition's rows in display order. Position strings are
// opaque to callers; only their relative order matters.
func (s Service) ListItems(ctx context.Context, listCtx entities.ListContext, kind entities.EntityKind) ([]entities.Ordering, error) {
	if err := validateContext(listCtx); err != nil {
		return nil, err
	}
	return s.Repo.ListPartition(ctx, ports.Partition{Context: listCtx, Kind: kind}, nil)
}

func validateContext(listCtx entities.ListContext) error {
	if !listCtx.Valid() {
		return domainerrors.ErrInvalidContext
	}
	return nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGenerator == nil {
		return "", errors.New("ordering service requires an id generator")
	}
	return s.IDGenerator.NewID(ctx)
}

func (s Service) newEvent(ctx context.Context, eventType string, partition ports.Partition, row entities.Ordering) (ports.EventEnvelope, error) {
	eventID, err := s.newID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partition.Key(),
		OccurredAt:   s.now(),
		Payload: map[string]any{
			"ordering_id":  row.OrderingID,
			"context_type": string(row.Context.Kind),
			"context_id":   row.Context.GroupID,
			"entity_type":  string(row.Entity.Kind),
			"entity_id":    row.Entity.ID,
			"position":     row.Position,
		},
	}, nil
}

func (s Service) logMutation(msg, eventName string, row entities.Ordering, plan positionPlan) {
	logger := ResolveLogger(s.Logger).With(
		"event", eventName,
		"module", "work-tracking/ordering-service",
		"layer", "application",
		"ordering_id", row.OrderingID,
		"context_type", string(row.Context.Kind),
		"entity_type", string(row.Entity.Kind),
		"entity_id", row.Entity.ID,
	)
	if plan.rebalanced() {
		logger.Info(msg+" with partition rebalance", "reassigned_rows", len(plan.Moves))
		return
	}
	logger.Debug(msg)
}
