// Package usersink forwards entity activity to a go-users ActivitySink,
// turning cache changes into an audit trail.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-tracking/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// ModificationsOnly drops events without the modification facet, keeping
	// attach and detach noise out of the audit log.
	ModificationsOnly bool
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if h.ModificationsOnly && !activity.HasFacet(normalized, "modification") {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       recordData(normalized),
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// recordData flattens the change fields next to the event metadata. Cache
// wide events carry no entity_key.
func recordData(event activity.Event) map[string]any {
	data := make(map[string]any, len(event.Metadata)+5)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.ObjectType != activity.EntityObjectType {
		data["entity_key"] = event.Key()
	}
	if event.Action != "" {
		data["action"] = event.Action
	}
	if event.State != "" {
		data["state"] = event.State
	}
	if event.Property != "" {
		data["property"] = event.Property
	}
	if len(event.Facets) > 0 {
		data["facets"] = append([]string{}, event.Facets...)
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
