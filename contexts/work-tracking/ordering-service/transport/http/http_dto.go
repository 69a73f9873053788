package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EntityRefDTO names an orderable item on the wire. Type is "task" or
// "initiative".
type EntityRefDTO struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ListContextDTO names the list an item is ordered in. Type is "status_list"
// (group_id empty) or "group" (group_id required).
type ListContextDTO struct {
	Type    string `json:"type"`
	GroupID string `json:"group_id,omitempty"`
}

type AddItemRequest struct {
	Context ListContextDTO `json:"context"`
	Entity  EntityRefDTO   `json:"entity"`
	After   *EntityRefDTO  `json:"after,omitempty"`
	Before  *EntityRefDTO  `json:"before,omitempty"`
}

type MoveItemRequest struct {
	Context ListContextDTO `json:"context"`
	Entity  EntityRefDTO   `json:"entity"`
	After   *EntityRefDTO  `json:"after,omitempty"`
	Before  *EntityRefDTO  `json:"before,omitempty"`
}

type MoveAcrossListsRequest struct {
	Source      ListContextDTO `json:"source"`
	Destination ListContextDTO `json:"destination"`
	Entity      EntityRefDTO   `json:"entity"`
	After       *EntityRefDTO  `json:"after,omitempty"`
	Before      *EntityRefDTO  `json:"before,omitempty"`
}

type RemoveItemRequest struct {
	Context ListContextDTO `json:"context"`
	Entity  EntityRefDTO   `json:"entity"`
}

type OrderingResponse struct {
	OrderingID  string         `json:"ordering_id"`
	UserID      string         `json:"user_id"`
	WorkspaceID string         `json:"workspace_id"`
	Context     ListContextDTO `json:"context"`
	Entity      EntityRefDTO   `json:"entity"`
	Position    string         `json:"position"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type RemoveItemResponse struct {
	Removed bool `json:"removed"`
}

type DeleteForEntityResponse struct {
	RemovedCount int `json:"removed_count"`
}

type ListItemsResponse struct {
	Items []OrderingResponse `json:"items"`
}
