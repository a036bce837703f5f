package tracking

import "github.com/goliatone/go-tracking/pkg/activity"

func defaultActivityConfig() activity.Config {
	return activity.Config{Enabled: true, Channel: activity.DefaultChannel}
}

// WithActivityHooks mirrors entity change notifications to activity hooks.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) ManagerOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *managerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the activity emitter defaults.
func WithActivityConfig(config activity.Config) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.activity = config
	}
}

// ActivityHooks returns a copy of the configured activity hooks.
func (m *EntityManager) ActivityHooks() activity.Hooks {
	if m == nil {
		return nil
	}
	return cloneActivityHooks(m.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
