package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"compass/contexts/work-tracking/ordering-service/application"
	"compass/contexts/work-tracking/ordering-service/domain/entities"
	domainerrors "compass/contexts/work-tracking/ordering-service/domain/errors"
	"compass/contexts/work-tracking/ordering-service/ports"
	httptransport "compass/contexts/work-tracking/ordering-service/transport/http"
)

// Handler adapts transport DTOs to the ordering service. Handlers are
// transport-framework free so callers can mount them behind any router.
type Handler struct {
	Ordering application.Service
	Logger   *slog.Logger
}

func (h Handler) AddItemHandler(
	ctx context.Context,
	userID string,
	workspaceID string,
	req httptransport.AddItemRequest,
) (httptransport.OrderingResponse, error) {
	listCtx, err := decodeContext(req.Context)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	entity, err := decodeEntity(req.Entity)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	after, err := decodeOptionalEntity(req.After)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	before, err := decodeOptionalEntity(req.Before)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	row, err := h.Ordering.AddItem(ctx, ports.AddItemInput{
		Context:     listCtx,
		Entity:      entity,
		UserID:      userID,
		WorkspaceID: workspaceID,
		After:       after,
		Before:      before,
	})
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	return encodeOrdering(row), nil
}

func (h Handler) MoveItemHandler(
	ctx context.Context,
	req httptransport.MoveItemRequest,
) (httptransport.OrderingResponse, error) {
	listCtx, err := decodeContext(req.Context)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	entity, err := decodeEntity(req.Entity)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	after, err := decodeOptionalEntity(req.After)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	before, err := decodeOptionalEntity(req.Before)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	row, err := h.Ordering.MoveItem(ctx, ports.MoveItemInput{
		Context: listCtx,
		Entity:  entity,
		After:   after,
		Before:  before,
	})
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	return encodeOrdering(row), nil
}

func (h Handler) MoveAcrossListsHandler(
	ctx context.Context,
	req httptransport.MoveAcrossListsRequest,
) (httptransport.OrderingResponse, error) {
	source, err := decodeContext(req.Source)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	destination, err := decodeContext(req.Destination)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	entity, err := decodeEntity(req.Entity)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	after, err := decodeOptionalEntity(req.After)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	before, err := decodeOptionalEntity(req.Before)
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	row, err := h.Ordering.MoveItemAcrossLists(ctx, ports.MoveAcrossListsInput{
		Source:      source,
		Destination: destination,
		Entity:      entity,
		After:       after,
		Before:      before,
	})
	if err != nil {
		return httptransport.OrderingResponse{}, err
	}
	return encodeOrdering(row), nil
}

func (h Handler) RemoveItemHandler(
	ctx context.Context,
	req httptransport.RemoveItemRequest,
) (httptransport.RemoveItemResponse, error) {
	listCtx, err := decodeContext(req.Context)
	if err != nil {
		return httptransport.RemoveItemResponse{}, err
	}
	entity, err := decodeEntity(req.Entity)
	if err != nil {
		return httptransport.RemoveItemResponse{}, err
	}
	removed, err := h.Ordering.RemoveItem(ctx, listCtx, entity)
	if err != nil {
		return httptransport.RemoveItemResponse{}, err
	}
	return httptransport.RemoveItemResponse{Removed: removed}, nil
}

func (h Handler) DeleteForEntityHandler(
	ctx context.Context,
	entityDTO httptransport.EntityRefDTO,
) (httptransport.DeleteForEntityResponse, error) {
	entity, err := decodeEntity(entityDTO)
	if err != nil {
		return httptransport.DeleteForEntityResponse{}, err
	}
	count, err := h.Ordering.DeleteAllOrderingsForEntity(ctx, entity)
	if err != nil {
		return httptransport.DeleteForEntityResponse{}, err
	}
	return httptransport.DeleteForEntityResponse{RemovedCount: count}, nil
}

func (h Handler) ListItemsHandler(
	ctx context.Context,
	contextDTO httptransport.ListContextDTO,
	entityType string,
) (httptransport.ListItemsResponse, error) {
	listCtx, err := decodeContext(contextDTO)
	if err != nil {
		return httptransport.ListItemsResponse{}, err
	}
	kind := entities.EntityKind(entityType)
	if kind != entities.EntityKindTask && kind != entities.EntityKindInitiative {
		return httptransport.ListItemsResponse{}, domainerrors.ErrInvalidEntity
	}
	rows, err := h.Ordering.ListItems(ctx, listCtx, kind)
	if err != nil {
		return httptransport.ListItemsResponse{}, err
	}
	items := make([]httptransport.OrderingResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, encodeOrdering(row))
	}
	return httptransport.ListItemsResponse{Items: items}, nil
}

func decodeContext(dto httptransport.ListContextDTO) (entities.ListContext, error) {
	listCtx := entities.ListContext{
		Kind:    entities.ContextKind(dto.Type),
		GroupID: dto.GroupID,
	}
	if !listCtx.Valid() {
		return entities.ListContext{}, domainerrors.ErrInvalidContext
	}
	return listCtx, nil
}

func decodeEntity(dto httptransport.EntityRefDTO) (entities.EntityRef, error) {
	entity := entities.EntityRef{
		Kind: entities.EntityKind(dto.Type),
		ID:   dto.ID,
	}
	if !entity.Valid() {
		return entities.EntityRef{}, domainerrors.ErrInvalidEntity
	}
	return entity, nil
}

func decodeOptionalEntity(dto *httptransport.EntityRefDTO) (*entities.EntityRef, error) {
	if dto == nil {
		return nil, nil
	}
	entity, err := decodeEntity(*dto)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func encodeOrdering(row entities.Ordering) httptransport.OrderingResponse {
	return httptransport.OrderingResponse{
		OrderingID:  row.OrderingID,
		UserID:      row.UserID,
		WorkspaceID: row.WorkspaceID,
		Context: httptransport.ListContextDTO{
			Type:    string(row.Context.Kind),
			GroupID: row.Context.GroupID,
		},
		Entity: httptransport.EntityRefDTO{
			Type: string(row.Entity.Kind),
			ID:   row.Entity.ID,
		},
		Position:  row.Position,
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
