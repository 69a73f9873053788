package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
	domainerrors "compass/contexts/work-tracking/ordering-service/domain/errors"
	"compass/contexts/work-tracking/ordering-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository is the gorm-backed ordering store. Every mutation that carries
// rebalance moves or an event runs in one transaction; the position
// uniqueness constraint is deferred to commit so a rebalance may pass
// through transient duplicates while rows are rewritten one by one.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// InTransaction runs fn against a transaction-scoped repository so a caller
// can compose read-partition, compute and write inside one transaction
// boundary.
func (r *Repository) InTransaction(ctx context.Context, fn func(ports.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, logger: r.logger})
	})
}

// EnsureSchema creates the orderings and outbox tables with the constraints
// the ordering protocol relies on:
//   - orderings_unique_member: at most one row per (context, entity);
//   - orderings_unique_position: no duplicate position inside a partition,
//     deferred so whole-partition rebalances commit atomically (its index
//     also serves the ordered range scans);
//   - orderings_entity_lookup: the delete-all-for-entity path.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orderings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			context_type TEXT NOT NULL,
			context_id TEXT,
			entity_type TEXT NOT NULL,
			task_id TEXT,
			initiative_id TEXT,
			position TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'orderings_unique_member') THEN
				ALTER TABLE orderings ADD CONSTRAINT orderings_unique_member
					UNIQUE NULLS NOT DISTINCT (context_type, context_id, entity_type, task_id, initiative_id);
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'orderings_unique_position') THEN
				ALTER TABLE orderings ADD CONSTRAINT orderings_unique_position
					UNIQUE NULLS NOT DISTINCT (context_type, context_id, entity_type, position)
					DEFERRABLE INITIALLY DEFERRED;
			END IF;
		END $$`,
		`CREATE INDEX IF NOT EXISTS orderings_entity_lookup
			ON orderings (entity_type, initiative_id, task_id)`,
		`CREATE TABLE IF NOT EXISTS ordering_outbox (
			outbox_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			payload BYTEA NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			published_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS ordering_outbox_pending
			ON ordering_outbox (status, created_at)`,
	}
	for _, statement := range statements {
		if err := r.db.WithContext(ctx).Exec(statement).Error; err != nil {
			return r.logError("ordering_repo_ensure_schema_failed", err)
		}
	}
	return nil
}

func (r *Repository) GetOrdering(
	ctx context.Context,
	listCtx entities.ListContext,
	entity entities.EntityRef,
) (entities.Ordering, bool, error) {
	var row orderingModel
	err := entityScope(contextScope(r.db.WithContext(ctx), listCtx), entity).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ordering{}, false, nil
		}
		return entities.Ordering{}, false, r.logError("ordering_repo_get_failed", err,
			"entity_type", string(entity.Kind),
			"entity_id", entity.ID,
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListPartition(
	ctx context.Context,
	partition ports.Partition,
	exclude *entities.EntityRef,
) ([]entities.Ordering, error) {
	tx := contextScope(r.db.WithContext(ctx), partition.Context).
		Where("entity_type = ?", string(partition.Kind))
	if exclude != nil {
		switch exclude.Kind {
		case entities.EntityKindTask:
			tx = tx.Where("task_id IS DISTINCT FROM ?", exclude.ID)
		case entities.EntityKindInitiative:
			tx = tx.Where("initiative_id IS DISTINCT FROM ?", exclude.ID)
		}
	}
	var rows []orderingModel
	if err := tx.Order("position ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("ordering_repo_list_partition_failed", err,
			"partition", partition.Key(),
		)
	}
	items := make([]entities.Ordering, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Insert(
	ctx context.Context,
	row entities.Ordering,
	moves []ports.PositionChange,
	event ports.EventEnvelope,
) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return r.logError("ordering_repo_insert_marshal_failed", err, "event_id", event.EventID)
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyMoves(tx, moves, row.UpdatedAt); err != nil {
			return err
		}
		model := orderingModelFromEntity(row)
		if err := tx.Create(&model).Error; err != nil {
			if isWriteConflict(err) {
				return domainerrors.ErrOrderingConflict
			}
			return err
		}
		return appendOutbox(tx, event, payload)
	})
	if err != nil {
		if isWriteConflict(err) {
			// Deferred constraints fire at commit.
			return domainerrors.ErrOrderingConflict
		}
		if errors.Is(err, domainerrors.ErrOrderingConflict) {
			return err
		}
		return r.logError("ordering_repo_insert_failed", err,
			"ordering_id", row.OrderingID,
			"entity_id", row.Entity.ID,
		)
	}
	return nil
}

func (r *Repository) Reposition(
	ctx context.Context,
	orderingID string,
	target entities.ListContext,
	position string,
	updatedAt time.Time,
	moves []ports.PositionChange,
	event ports.EventEnvelope,
) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return r.logError("ordering_repo_reposition_marshal_failed", err, "event_id", event.EventID)
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyMoves(tx, moves, updatedAt); err != nil {
			return err
		}
		result := tx.Model(&orderingModel{}).
			Where("id = ?", orderingID).
			Updates(map[string]any{
				"context_type": string(target.Kind),
				"context_id":   nullableString(target.GroupID),
				"position":     position,
				"updated_at":   updatedAt.UTC(),
			})
		if result.Error != nil {
			if isWriteConflict(result.Error) {
				return domainerrors.ErrOrderingConflict
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			// The row vanished between read and write.
			return domainerrors.ErrOrderingConflict
		}
		return appendOutbox(tx, event, payload)
	})
	if err != nil {
		if isWriteConflict(err) {
			return domainerrors.ErrOrderingConflict
		}
		if errors.Is(err, domainerrors.ErrOrderingConflict) {
			return err
		}
		return r.logError("ordering_repo_reposition_failed", err, "ordering_id", orderingID)
	}
	return nil
}

func (r *Repository) Remove(
	ctx context.Context,
	listCtx entities.ListContext,
	entity entities.EntityRef,
	event ports.EventEnvelope,
) (bool, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return false, r.logError("ordering_repo_remove_marshal_failed", err, "event_id", event.EventID)
	}
	removed := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := entityScope(contextScope(tx, listCtx), entity).Delete(&orderingModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true
		return appendOutbox(tx, event, payload)
	})
	if err != nil {
		return false, r.logError("ordering_repo_remove_failed", err,
			"entity_type", string(entity.Kind),
			"entity_id", entity.ID,
		)
	}
	return removed, nil
}

func (r *Repository) RemoveAllForEntity(
	ctx context.Context,
	entity entities.EntityRef,
	event ports.EventEnvelope,
) (int, error) {
	count := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := entityScope(tx.Where("entity_type = ?", string(entity.Kind)), entity).
			Delete(&orderingModel{})
		if result.Error != nil {
			return result.Error
		}
		count = int(result.RowsAffected)
		if count == 0 {
			return nil
		}
		if event.Payload == nil {
			event.Payload = map[string]any{}
		}
		event.Payload["removed_count"] = count
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return appendOutbox(tx, event, payload)
	})
	if err != nil {
		return 0, r.logError("ordering_repo_remove_all_failed", err,
			"entity_type", string(entity.Kind),
			"entity_id", entity.ID,
		)
	}
	return count, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ordering_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ordering_repo_mark_outbox_published_failed", result.Error, "outbox_id", outboxID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func applyMoves(tx *gorm.DB, moves []ports.PositionChange, updatedAt time.Time) error {
	for _, move := range moves {
		result := tx.Model(&orderingModel{}).
			Where("id = ?", move.OrderingID).
			Updates(map[string]any{
				"position":   move.Position,
				"updated_at": updatedAt.UTC(),
			})
		if result.Error != nil {
			if isWriteConflict(result.Error) {
				return domainerrors.ErrOrderingConflict
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			// The partition changed under us; the computed plan is stale.
			return domainerrors.ErrOrderingConflict
		}
	}
	return nil
}

func appendOutbox(tx *gorm.DB, event ports.EventEnvelope, payload []byte) error {
	row := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return tx.Create(&row).Error
}

func contextScope(tx *gorm.DB, listCtx entities.ListContext) *gorm.DB {
	tx = tx.Where("context_type = ?", string(listCtx.Kind))
	if listCtx.Kind == entities.ContextKindGroup {
		return tx.Where("context_id = ?", listCtx.GroupID)
	}
	return tx.Where("context_id IS NULL")
}

func entityScope(tx *gorm.DB, entity entities.EntityRef) *gorm.DB {
	if entity.Kind == entities.EntityKindInitiative {
		return tx.Where("initiative_id = ?", entity.ID)
	}
	return tx.Where("task_id = ?", entity.ID)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "work-tracking/ordering-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ordering repository operation failed", fields...)
	return err
}

type orderingModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	UserID       string    `gorm:"column:user_id"`
	WorkspaceID  string    `gorm:"column:workspace_id"`
	ContextType  string    `gorm:"column:context_type"`
	ContextID    *string   `gorm:"column:context_id"`
	EntityType   string    `gorm:"column:entity_type"`
	TaskID       *string   `gorm:"column:task_id"`
	InitiativeID *string   `gorm:"column:initiative_id"`
	Position     string    `gorm:"column:position"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (orderingModel) TableName() string {
	return "orderings"
}

func orderingModelFromEntity(item entities.Ordering) orderingModel {
	row := orderingModel{
		ID:          item.OrderingID,
		UserID:      item.UserID,
		WorkspaceID: item.WorkspaceID,
		ContextType: string(item.Context.Kind),
		ContextID:   nullableString(item.Context.GroupID),
		EntityType:  string(item.Entity.Kind),
		Position:    item.Position,
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
	}
	switch item.Entity.Kind {
	case entities.EntityKindInitiative:
		row.InitiativeID = nullableString(item.Entity.ID)
	default:
		row.TaskID = nullableString(item.Entity.ID)
	}
	return row
}

func (m orderingModel) toEntity() entities.Ordering {
	listCtx := entities.StatusList()
	if m.ContextType == string(entities.ContextKindGroup) && m.ContextID != nil {
		listCtx = entities.Group(*m.ContextID)
	}
	entity := entities.EntityRef{Kind: entities.EntityKind(m.EntityType)}
	switch {
	case m.TaskID != nil:
		entity.ID = *m.TaskID
	case m.InitiativeID != nil:
		entity.ID = *m.InitiativeID
	}
	return entities.Ordering{
		OrderingID:  m.ID,
		UserID:      m.UserID,
		WorkspaceID: m.WorkspaceID,
		Context:     listCtx,
		Entity:      entity,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ordering_outbox"
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// isWriteConflict covers the two storage signals the service treats as a
// retryable ordering conflict: unique violations (23505) from racing writers
// and serialization failures (40001) when running at SERIALIZABLE.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" || pgErr.Code == "40001"
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
