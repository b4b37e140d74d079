package routing

import (
	"sgbridge/internal/constants"
	"sgbridge/internal/event"
)

// Kind partitions incoming events by the routing action they require.
type Kind int

const (
	// KindUnroutable events carry nothing to forward; they are dropped.
	KindUnroutable Kind = iota
	// KindSchemaChange events invalidate every cached route.
	KindSchemaChange
	// KindProjectSyncURLChange events invalidate one project's route.
	KindProjectSyncURLChange
	// KindEntityChange events are forwarded to the project's sync endpoint.
	KindEntityChange
)

func (k Kind) String() string {
	switch k {
	case KindSchemaChange:
		return "schema_change"
	case KindProjectSyncURLChange:
		return "project_sync_url_change"
	case KindEntityChange:
		return "entity_change"
	default:
		return "unroutable"
	}
}

// Classification is the routing decision derived from an event before any
// cache or network work happens.
type Classification struct {
	Kind Kind

	// ProjectID is the invalidation target for KindProjectSyncURLChange and
	// the route lookup key for KindEntityChange.
	ProjectID int64

	// EntityType and EntityID address the changed entity for
	// KindEntityChange.
	EntityType string
	EntityID   int64
}

// Classify inspects an event and decides how it must be routed.
//
// Project changes are never forwarded: either they modify the sync url field
// and invalidate that project's route, or they are dropped.
func Classify(e *event.Event) Classification {
	if e.IsSchemaChange() {
		return Classification{Kind: KindSchemaChange}
	}

	if e.EventType == event.ProjectChangeEventType {
		if e.AttributeName == constants.SyncURLFieldName && e.Entity != nil && e.Entity.ID != 0 {
			return Classification{
				Kind:      KindProjectSyncURLChange,
				ProjectID: e.Entity.ID,
			}
		}
		return Classification{Kind: KindUnroutable}
	}

	if e.Project == nil || e.Project.ID == 0 {
		return Classification{Kind: KindUnroutable}
	}

	entityType, entityID, ok := e.EntityMeta()
	if !ok {
		return Classification{Kind: KindUnroutable}
	}

	return Classification{
		Kind:       KindEntityChange,
		ProjectID:  e.Project.ID,
		EntityType: entityType,
		EntityID:   entityID,
	}
}
