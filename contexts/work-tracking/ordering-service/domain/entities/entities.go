package entities

import "time"

// EntityKind discriminates the kinds of work items that can be ordered.
type EntityKind string

const (
	EntityKindTask       EntityKind = "task"
	EntityKindInitiative EntityKind = "initiative"
)

// EntityRef identifies one orderable work item. Build values with Task or
// Initiative so kind and id always travel together.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

func Task(id string) EntityRef {
	return EntityRef{Kind: EntityKindTask, ID: id}
}

func Initiative(id string) EntityRef {
	return EntityRef{Kind: EntityKindInitiative, ID: id}
}

func (r EntityRef) IsZero() bool {
	return r.ID == "" && r.Kind == ""
}

func (r EntityRef) Valid() bool {
	if r.ID == "" {
		return false
	}
	return r.Kind == EntityKindTask || r.Kind == EntityKindInitiative
}

// ContextKind discriminates the kinds of lists an item can belong to.
type ContextKind string

const (
	// ContextKindStatusList is the implicit per-status column.
	ContextKindStatusList ContextKind = "status_list"

	// ContextKindGroup is a user-defined collection with its own id.
	ContextKindGroup ContextKind = "group"
)

// ListContext names the list an Ordering row belongs to: either the implicit
// status column or a user-defined group. Build values with StatusList or
// Group.
type ListContext struct {
	Kind    ContextKind
	GroupID string
}

func StatusList() ListContext {
	return ListContext{Kind: ContextKindStatusList}
}

func Group(id string) ListContext {
	return ListContext{Kind: ContextKindGroup, GroupID: id}
}

// Valid reports whether the context is well formed: groups carry an id,
// status lists never do.
func (c ListContext) Valid() bool {
	switch c.Kind {
	case ContextKindStatusList:
		return c.GroupID == ""
	case ContextKindGroup:
		return c.GroupID != ""
	default:
		return false
	}
}

func (c ListContext) Equal(other ListContext) bool {
	return c.Kind == other.Kind && c.GroupID == other.GroupID
}

// Ordering is one membership of an entity in a list context, positioned by an
// opaque rank string. Lexicographic order of Position within a partition
// (context plus entity kind) is the display order.
type Ordering struct {
	OrderingID  string
	UserID      string
	WorkspaceID string
	Context     ListContext
	Entity      EntityRef
	Position    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
