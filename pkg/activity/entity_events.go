package activity

import (
	"strings"
	"time"

	"github.com/stoewer/go-strcase"
)

// DefaultChannel is the channel applied to entity events without one.
const DefaultChannel = "entities"

// EntityObjectType is used when an event is not about a single entity, such
// as clearing the cache.
const EntityObjectType = "entity"

// EntityEventInput describes one entity lifecycle change.
type EntityEventInput struct {
	Action     string
	ObjectType string
	ObjectID   string
	State      string
	Property   string
	Facets     []string
	OldValue   any
	NewValue   any
	ActorID    string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// EntityVerb returns the verb for an action name, e.g. "MergeOnQuery"
// becomes "entity.merge_on_query".
func EntityVerb(action string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		return ""
	}
	return "entity." + strcase.SnakeCase(action)
}

// BuildEntityEvent constructs a normalized activity event for an entity
// change. Old and new values land in metadata.
func BuildEntityEvent(input EntityEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectType := strings.TrimSpace(input.ObjectType)
	if objectType == "" {
		objectType = EntityObjectType
	}
	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = objectType
	}

	return NormalizeEvent(Event{
		Action:     input.Action,
		ObjectType: objectType,
		ObjectID:   objectID,
		State:      input.State,
		Property:   input.Property,
		Facets:     input.Facets,
		ActorID:    input.ActorID,
		TenantID:   input.TenantID,
		Channel:    input.Channel,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	})
}

// HasFacet reports whether event carries facet.
func HasFacet(event Event, facet string) bool {
	return event.HasFacet(facet)
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
