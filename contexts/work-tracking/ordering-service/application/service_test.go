package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
	domainerrors "compass/contexts/work-tracking/ordering-service/domain/errors"
	"compass/contexts/work-tracking/ordering-service/ports"
)

type repositionCall struct {
	orderingID string
	target     entities.ListContext
	position   string
	moves      []ports.PositionChange
	event      ports.EventEnvelope
}

type testRepo struct {
	rows []entities.Ordering

	insertedRow   entities.Ordering
	insertedMoves []ports.PositionChange
	insertedEvent ports.EventEnvelope
	inserts       int

	reposition repositionCall

	removeEvents []ports.EventEnvelope
}

func (r *testRepo) GetOrdering(_ context.Context, listCtx entities.ListContext, entity entities.EntityRef) (entities.Ordering, bool, error) {
	for _, row := range r.rows {
		if row.Context.Equal(listCtx) && row.Entity == entity {
			return row, true, nil
		}
	}
	return entities.Ordering{}, false, nil
}

func (r *testRepo) ListPartition(_ context.Context, partition ports.Partition, exclude *entities.EntityRef) ([]entities.Ordering, error) {
	items := make([]entities.Ordering, 0)
	for _, row := range r.rows {
		if !row.Context.Equal(partition.Context) || row.Entity.Kind != partition.Kind {
			continue
		}
		if exclude != nil && row.Entity == *exclude {
			continue
		}
		items = append(items, row)
	}
	return items, nil
}

func (r *testRepo) Insert(_ context.Context, row entities.Ordering, moves []ports.PositionChange, event ports.EventEnvelope) error {
	r.insertedRow = row
	r.insertedMoves = moves
	r.insertedEvent = event
	r.inserts++
	return nil
}

func (r *testRepo) Reposition(_ context.Context, orderingID string, target entities.ListContext, position string, _ time.Time, moves []ports.PositionChange, event ports.EventEnvelope) error {
	r.reposition = repositionCall{
		orderingID: orderingID,
		target:     target,
		position:   position,
		moves:      moves,
		event:      event,
	}
	return nil
}

func (r *testRepo) Remove(_ context.Context, listCtx entities.ListContext, entity entities.EntityRef, event ports.EventEnvelope) (bool, error) {
	for i, row := range r.rows {
		if row.Context.Equal(listCtx) && row.Entity == entity {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			r.removeEvents = append(r.removeEvents, event)
			return true, nil
		}
	}
	return false, nil
}

func (r *testRepo) RemoveAllForEntity(_ context.Context, entity entities.EntityRef, event ports.EventEnvelope) (int, error) {
	kept := r.rows[:0]
	count := 0
	for _, row := range r.rows {
		if row.Entity == entity {
			count++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	if count > 0 {
		r.removeEvents = append(r.removeEvents, event)
	}
	return count, nil
}

type seqIDs struct {
	n int
}

func (g *seqIDs) NewID(_ context.Context) (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(repo *testRepo) Service {
	return Service{
		Repo:        repo,
		Clock:       fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)},
		IDGenerator: &seqIDs{},
	}
}

func orderingRow(id string, listCtx entities.ListContext, entity entities.EntityRef, position string) entities.Ordering {
	return entities.Ordering{
		OrderingID:  id,
		UserID:      "user-1",
		WorkspaceID: "ws-1",
		Context:     listCtx,
		Entity:      entity,
		Position:    position,
	}
}

func TestAddItemIntoEmptyListUsesMiddleRank(t *testing.T) {
	repo := &testRepo{}
	service := newTestService(repo)

	row, err := service.AddItem(context.Background(), ports.AddItemInput{
		Context:     entities.StatusList(),
		Entity:      entities.Task("task-1"),
		UserID:      "user-1",
		WorkspaceID: "ws-1",
	})
	if err != nil {
		t.Fatalf("expected add into empty list to succeed, got %v", err)
	}
	if row.Position != "i" {
		t.Fatalf("expected the middle rank for an empty list, got %q", row.Position)
	}
	if len(repo.insertedMoves) != 0 {
		t.Fatalf("expected no reassignments for an empty list, got %d", len(repo.insertedMoves))
	}
	if repo.insertedEvent.EventType != EventItemAdded {
		t.Fatalf("expected %q event, got %q", EventItemAdded, repo.insertedEvent.EventType)
	}
	if !row.CreatedAt.Equal(row.UpdatedAt) {
		t.Fatalf("expected created_at == updated_at on insert, got %v / %v", row.CreatedAt, row.UpdatedAt)
	}
}

func TestAddItemWithoutHintsAppendsAfterLastRow(t *testing.T) {
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), entities.Task("task-1"), "i"),
	}}
	service := newTestService(repo)

	row, err := service.AddItem(context.Background(), ports.AddItemInput{
		Context:     entities.StatusList(),
		Entity:      entities.Task("task-2"),
		UserID:      "user-1",
		WorkspaceID: "ws-1",
	})
	if err != nil {
		t.Fatalf("expected append to succeed, got %v", err)
	}
	if row.Position <= "i" {
		t.Fatalf("expected appended rank to sort after %q, got %q", "i", row.Position)
	}
	if len(repo.insertedMoves) != 0 {
		t.Fatalf("expected a plain append without reassignments, got %d moves", len(repo.insertedMoves))
	}
}

func TestAddItemValidation(t *testing.T) {
	service := newTestService(&testRepo{})

	_, err := service.AddItem(context.Background(), ports.AddItemInput{
		Context: entities.ListContext{Kind: entities.ContextKindGroup},
		Entity:  entities.Task("task-1"),
	})
	if !errors.Is(err, domainerrors.ErrInvalidContext) {
		t.Fatalf("expected ErrInvalidContext for group without id, got %v", err)
	}

	_, err = service.AddItem(context.Background(), ports.AddItemInput{
		Context: entities.StatusList(),
		Entity:  entities.EntityRef{Kind: "epic", ID: "x"},
	})
	if !errors.Is(err, domainerrors.ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity for unknown kind, got %v", err)
	}

	_, err = service.AddItem(context.Background(), ports.AddItemInput{
		Context: entities.StatusList(),
		Entity:  entities.Task(""),
	})
	if !errors.Is(err, domainerrors.ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity for empty id, got %v", err)
	}
}

func TestAddItemRejectsDuplicateMembership(t *testing.T) {
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), entities.Task("task-1"), "i"),
	}}
	service := newTestService(repo)

	_, err := service.AddItem(context.Background(), ports.AddItemInput{
		Context: entities.StatusList(),
		Entity:  entities.Task("task-1"),
	})
	if !errors.Is(err, domainerrors.ErrAlreadyOrdered) {
		t.Fatalf("expected ErrAlreadyOrdered, got %v", err)
	}
	if repo.inserts != 0 {
		t.Fatalf("expected no insert on duplicate membership, got %d", repo.inserts)
	}
}

func TestAddItemBetweenExhaustedNeighborsRebalancesPartition(t *testing.T) {
	first := entities.Task("task-1")
	second := entities.Task("task-2")
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), first, "i"),
		orderingRow("row-2", entities.StatusList(), second, "i0"),
	}}
	service := newTestService(repo)

	row, err := service.AddItem(context.Background(), ports.AddItemInput{
		Context:     entities.StatusList(),
		Entity:      entities.Task("task-3"),
		UserID:      "user-1",
		WorkspaceID: "ws-1",
		After:       &first,
		Before:      &second,
	})
	if err != nil {
		t.Fatalf("expected insert between adjacent ranks to rebalance, got %v", err)
	}
	if len(repo.insertedMoves) != 2 {
		t.Fatalf("expected every existing row reassigned, got %d moves", len(repo.insertedMoves))
	}
	if !(repo.insertedMoves[0].Position < row.Position && row.Position < repo.insertedMoves[1].Position) {
		t.Fatalf("expected new rank between reassigned neighbors, got %q / %q / %q",
			repo.insertedMoves[0].Position, row.Position, repo.insertedMoves[1].Position)
	}
}

func TestMoveItemUnknownEntityReturnsNotFound(t *testing.T) {
	service := newTestService(&testRepo{})

	_, err := service.MoveItem(context.Background(), ports.MoveItemInput{
		Context: entities.StatusList(),
		Entity:  entities.Task("task-1"),
	})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMoveItemKeepsRowIdentity(t *testing.T) {
	target := entities.Task("task-1")
	anchor := entities.Task("task-2")
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), target, "i"),
		orderingRow("row-2", entities.StatusList(), anchor, "r"),
	}}
	service := newTestService(repo)

	row, err := service.MoveItem(context.Background(), ports.MoveItemInput{
		Context: entities.StatusList(),
		Entity:  target,
		After:   &anchor,
	})
	if err != nil {
		t.Fatalf("expected move to succeed, got %v", err)
	}
	if row.OrderingID != "row-1" {
		t.Fatalf("expected the existing row id to survive a move, got %q", row.OrderingID)
	}
	if repo.reposition.orderingID != "row-1" {
		t.Fatalf("expected row-1 repositioned, got %q", repo.reposition.orderingID)
	}
	if row.Position <= "r" {
		t.Fatalf("expected rank after %q, got %q", "r", row.Position)
	}
	if repo.reposition.event.EventType != EventItemMoved {
		t.Fatalf("expected %q event, got %q", EventItemMoved, repo.reposition.event.EventType)
	}
}

func TestMoveAcrossListsRejectsOccupiedDestination(t *testing.T) {
	group := entities.Group("group-1")
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), entities.Task("task-1"), "i"),
		orderingRow("row-2", group, entities.Task("task-1"), "i"),
	}}
	service := newTestService(repo)

	_, err := service.MoveItemAcrossLists(context.Background(), ports.MoveAcrossListsInput{
		Source:      entities.StatusList(),
		Destination: group,
		Entity:      entities.Task("task-1"),
	})
	if !errors.Is(err, domainerrors.ErrAlreadyOrdered) {
		t.Fatalf("expected ErrAlreadyOrdered for occupied destination, got %v", err)
	}
}

func TestMoveAcrossListsPreservesIdentityAndRetargetsContext(t *testing.T) {
	group := entities.Group("group-1")
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), entities.Task("task-1"), "i"),
	}}
	service := newTestService(repo)

	row, err := service.MoveItemAcrossLists(context.Background(), ports.MoveAcrossListsInput{
		Source:      entities.StatusList(),
		Destination: group,
		Entity:      entities.Task("task-1"),
	})
	if err != nil {
		t.Fatalf("expected cross-list move to succeed, got %v", err)
	}
	if row.OrderingID != "row-1" {
		t.Fatalf("expected identity preserved across lists, got %q", row.OrderingID)
	}
	if !row.Context.Equal(group) {
		t.Fatalf("expected row retargeted to %v, got %v", group, row.Context)
	}
	if row.Position != "i" {
		t.Fatalf("expected middle rank in empty destination, got %q", row.Position)
	}
	if !repo.reposition.target.Equal(group) {
		t.Fatalf("expected reposition into the destination context, got %v", repo.reposition.target)
	}
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), entities.Task("task-1"), "i"),
	}}
	service := newTestService(repo)

	removed, err := service.RemoveItem(context.Background(), entities.StatusList(), entities.Task("task-1"))
	if err != nil || !removed {
		t.Fatalf("expected first removal to report true, got %v / %v", removed, err)
	}
	removed, err = service.RemoveItem(context.Background(), entities.StatusList(), entities.Task("task-1"))
	if err != nil || removed {
		t.Fatalf("expected repeat removal to report false without error, got %v / %v", removed, err)
	}
	if len(repo.removeEvents) != 1 {
		t.Fatalf("expected exactly one removal event, got %d", len(repo.removeEvents))
	}
}

func TestRemoveItemEventReferencesRemovedRow(t *testing.T) {
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), entities.Task("task-1"), "i"),
	}}
	service := newTestService(repo)

	if _, err := service.RemoveItem(context.Background(), entities.StatusList(), entities.Task("task-1")); err != nil {
		t.Fatalf("removal failed: %v", err)
	}
	event := repo.removeEvents[0]
	if event.EventType != EventItemRemoved {
		t.Fatalf("expected %q event, got %q", EventItemRemoved, event.EventType)
	}
	if event.Payload["ordering_id"] != "row-1" {
		t.Fatalf("expected removal event to carry the row id, got %v", event.Payload["ordering_id"])
	}
	if event.Payload["position"] != "i" {
		t.Fatalf("expected removal event to carry the removed position, got %v", event.Payload["position"])
	}
}

func TestDeleteAllOrderingsForEntityReturnsCount(t *testing.T) {
	task := entities.Task("task-1")
	repo := &testRepo{rows: []entities.Ordering{
		orderingRow("row-1", entities.StatusList(), task, "i"),
		orderingRow("row-2", entities.Group("group-1"), task, "i"),
		orderingRow("row-3", entities.Group("group-2"), entities.Task("task-2"), "i"),
	}}
	service := newTestService(repo)

	count, err := service.DeleteAllOrderingsForEntity(context.Background(), task)
	if err != nil {
		t.Fatalf("expected purge to succeed, got %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows purged, got %d", count)
	}
	if len(repo.rows) != 1 || repo.rows[0].OrderingID != "row-3" {
		t.Fatalf("expected only the unrelated row to survive, got %v", repo.rows)
	}
}
