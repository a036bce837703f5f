package activity

import (
	"context"
	"strings"
)

// Config controls emission. Channel, ActorID and TenantID are stamped on
// events that do not carry their own.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
}

// Emitter sends entity events to hooks with the configured defaults.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	defaults Event
}

// NewEmitter builds an emitter. It is disabled when cfg.Enabled is false or
// no non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	kept := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   kept,
		enabled: cfg.Enabled && len(kept) > 0,
		defaults: Event{
			Channel:  channel,
			ActorID:  strings.TrimSpace(cfg.ActorID),
			TenantID: strings.TrimSpace(cfg.TenantID),
		},
	}
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit applies the defaults and notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.defaults.Channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.defaults.ActorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.defaults.TenantID
	}
	return e.hooks.Notify(ctx, event)
}
