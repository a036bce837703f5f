package activity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// Event is one entity lifecycle change as seen by activity hooks.
// Action is the tracking action name, Verb its dotted form.
type Event struct {
	Verb       string
	Action     string
	ObjectType string
	ObjectID   string
	State      string
	Property   string
	Facets     []string
	ActorID    string
	TenantID   string
	Channel    string
	// Metadata holds old_value, new_value and caller supplied keys.
	Metadata   map[string]any
	OccurredAt time.Time
}

// Key returns "Type:ID", or the bare object type for cache-wide events.
func (e Event) Key() string {
	if e.ObjectType == EntityObjectType || e.ObjectID == "" {
		return e.ObjectType
	}
	return e.ObjectType + ":" + e.ObjectID
}

// HasFacet reports whether the event carries facet.
func (e Event) HasFacet(facet string) bool {
	return slices.Contains(e.Facets, facet)
}

// ActivityHook receives normalized entity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and forwards it to every hook. Events without a
// verb or object are dropped. Hook failures are joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e Event) routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// NormalizeEvent trims identifiers, copies facets and metadata, fills the
// verb from the action and stamps the event time when missing.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Action = strings.TrimSpace(event.Action)
	normalized.Verb = strings.TrimSpace(event.Verb)
	if normalized.Verb == "" {
		normalized.Verb = EntityVerb(normalized.Action)
	}
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.State = strings.TrimSpace(event.State)
	normalized.Property = strings.TrimSpace(event.Property)
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.Facets = cloneFacets(event.Facets)
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneFacets(src []string) []string {
	if len(src) == 0 {
		return nil
	}
	out := make([]string, 0, len(src))
	for _, facet := range src {
		if facet = strings.TrimSpace(facet); facet != "" {
			out = append(out, facet)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
