package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
	domainerrors "compass/contexts/work-tracking/ordering-service/domain/errors"
	"compass/contexts/work-tracking/ordering-service/ports"
)

func seedRow(id, position string, listCtx entities.ListContext, entity entities.EntityRef) entities.Ordering {
	return entities.Ordering{
		OrderingID:  id,
		UserID:      "user-1",
		WorkspaceID: "ws-1",
		Context:     listCtx,
		Entity:      entity,
		Position:    position,
		CreatedAt:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testEvent(id string) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:    id,
		EventType:  "ordering.item_added",
		OccurredAt: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		Payload:    map[string]any{},
	}
}

func TestStoreRejectsDuplicatePositionInPartition(t *testing.T) {
	store := NewStore([]entities.Ordering{
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
	})

	err := store.Insert(context.Background(),
		seedRow("row-2", "i", entities.StatusList(), entities.Task("task-2")),
		nil, testEvent("evt-1"))
	if !errors.Is(err, domainerrors.ErrOrderingConflict) {
		t.Fatalf("expected ErrOrderingConflict for duplicate position, got %v", err)
	}
}

func TestStoreAllowsSamePositionAcrossPartitions(t *testing.T) {
	store := NewStore([]entities.Ordering{
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
	})

	err := store.Insert(context.Background(),
		seedRow("row-2", "i", entities.Group("group-1"), entities.Task("task-1")),
		nil, testEvent("evt-1"))
	if err != nil {
		t.Fatalf("expected insert into a different partition to succeed, got %v", err)
	}
	err = store.Insert(context.Background(),
		seedRow("row-3", "i", entities.StatusList(), entities.Initiative("init-1")),
		nil, testEvent("evt-2"))
	if err != nil {
		t.Fatalf("expected initiative partition to be independent, got %v", err)
	}
}

func TestStoreRejectsDuplicateMembership(t *testing.T) {
	store := NewStore([]entities.Ordering{
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
	})

	err := store.Insert(context.Background(),
		seedRow("row-2", "r", entities.StatusList(), entities.Task("task-1")),
		nil, testEvent("evt-1"))
	if !errors.Is(err, domainerrors.ErrOrderingConflict) {
		t.Fatalf("expected ErrOrderingConflict for duplicate membership, got %v", err)
	}
}

func TestStoreAppliesMovesAtomicallyWithInsert(t *testing.T) {
	store := NewStore([]entities.Ordering{
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
		seedRow("row-2", "i0", entities.StatusList(), entities.Task("task-2")),
	})

	// Renumber both rows and land the new one between them. The new position
	// reuses row-2's old rank, which only works because moves and the insert
	// are checked as one batch.
	err := store.Insert(context.Background(),
		seedRow("row-3", "i0", entities.StatusList(), entities.Task("task-3")),
		[]ports.PositionChange{
			{OrderingID: "row-1", Position: "90"},
			{OrderingID: "row-2", Position: "r0"},
		}, testEvent("evt-1"))
	if err != nil {
		t.Fatalf("expected batched rebalance insert to succeed, got %v", err)
	}

	rows, err := store.ListPartition(context.Background(), ports.Partition{
		Context: entities.StatusList(),
		Kind:    entities.EntityKindTask,
	}, nil)
	if err != nil {
		t.Fatalf("list partition failed: %v", err)
	}
	want := []string{"task-1", "task-3", "task-2"}
	for i := range want {
		if rows[i].Entity.ID != want[i] {
			t.Fatalf("expected order %v, got %v", want, rows)
		}
	}
}

func TestStoreMoveAgainstMissingRowConflicts(t *testing.T) {
	store := NewStore(nil)

	err := store.Insert(context.Background(),
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
		[]ports.PositionChange{{OrderingID: "ghost", Position: "r"}},
		testEvent("evt-1"))
	if !errors.Is(err, domainerrors.ErrOrderingConflict) {
		t.Fatalf("expected ErrOrderingConflict for a stale move target, got %v", err)
	}
	if len(store.Snapshot()) != 0 {
		t.Fatalf("expected failed batch to leave the store untouched")
	}
}

func TestStoreOutboxLifecycle(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if err := store.Insert(ctx,
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
		nil, testEvent("evt-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected one pending outbox row, got %v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-1", time.Now()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after publish, got %d", len(pending))
	}
	if err := store.MarkOutboxPublished(ctx, "ghost", time.Now()); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown outbox id, got %v", err)
	}
}

func TestStorePurgeAnnotatesEventWithCount(t *testing.T) {
	store := NewStore([]entities.Ordering{
		seedRow("row-1", "i", entities.StatusList(), entities.Task("task-1")),
		seedRow("row-2", "i", entities.Group("group-1"), entities.Task("task-1")),
	})
	ctx := context.Background()

	count, err := store.RemoveAllForEntity(ctx, entities.Task("task-1"), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows purged, got %d", count)
	}
	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected a single purge event, got %d", len(pending))
	}
}
