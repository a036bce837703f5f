package tracking

import (
	"fmt"
	"time"
)

// MergeOrigin names where incoming entity data came from.
type MergeOrigin uint8

const (
	MergeOriginQuery MergeOrigin = iota + 1
	MergeOriginImport
	MergeOriginSave
)

func (o MergeOrigin) String() string {
	switch o {
	case MergeOriginQuery:
		return "query"
	case MergeOriginImport:
		return "import"
	case MergeOriginSave:
		return "save"
	default:
		return "unknown"
	}
}

func (o MergeOrigin) attachAction() Action {
	switch o {
	case MergeOriginQuery:
		return ActionAttachOnQuery
	case MergeOriginImport:
		return ActionAttachOnImport
	default:
		return ActionAttach
	}
}

func (o MergeOrigin) mergeAction() Action {
	switch o {
	case MergeOriginQuery:
		return ActionMergeOnQuery
	case MergeOriginImport:
		return ActionMergeOnImport
	default:
		return ActionMergeOnSave
	}
}

// MergeStrategy decides what happens when incoming data targets an entity
// with pending changes.
type MergeStrategy uint8

const (
	// PreserveChanges leaves Added, Modified and Deleted targets untouched.
	PreserveChanges MergeStrategy = iota + 1
	// OverwriteChanges merges into every target and resets it to Unchanged.
	OverwriteChanges
)

func (s MergeStrategy) String() string {
	switch s {
	case PreserveChanges:
		return "preserve_changes"
	case OverwriteChanges:
		return "overwrite_changes"
	default:
		return "unknown"
	}
}

func (s MergeStrategy) valid() bool {
	return s == PreserveChanges || s == OverwriteChanges
}

// Merger is implemented by entities that copy values from an incoming
// instance of the same type.
type Merger interface {
	MergeFrom(source Entity) error
}

// MergeFunc copies values from source into target.
type MergeFunc func(target, source Entity) error

// MergeEntity reconciles incoming with the cache. A new key attaches incoming
// as Unchanged. An existing key merges incoming's values into the cached
// entity, unless the strategy preserves its pending changes, and the cached
// entity is returned. The zero strategy uses the manager default.
func (m *EntityManager) MergeEntity(incoming Entity, origin MergeOrigin, strategy MergeStrategy) (Entity, error) {
	e, _, err := m.mergeEntity(incoming, EntityStateUnchanged, origin, strategy)
	return e, err
}

type mergeOutcome uint8

const (
	mergeAttached mergeOutcome = iota + 1
	mergeCopied
	mergeSkipped
	mergeSame
)

func (m *EntityManager) mergeEntity(incoming Entity, attachState EntityState, origin MergeOrigin, strategy MergeStrategy) (Entity, mergeOutcome, error) {
	if incoming == nil || incoming.Aspect() == nil {
		return nil, 0, ErrEntityRequired
	}
	if origin < MergeOriginQuery || origin > MergeOriginSave {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidMergeOrigin, origin)
	}
	if !strategy.valid() {
		strategy = m.cfg.strategy
	}

	key := incoming.EntityKey()
	target, exists := m.entities[key]
	if !exists {
		if err := m.attach(incoming, attachState, origin.attachAction()); err != nil {
			return nil, 0, err
		}
		return incoming, mergeAttached, nil
	}

	aspect := target.Aspect()
	if target == incoming {
		if origin == MergeOriginSave {
			aspect.AcceptChanges()
		}
		return target, mergeSame, nil
	}
	if strategy == PreserveChanges && aspect.state.IsAddedModifiedOrDeleted() {
		m.log(TrackingLogEvent{Op: "merge", Action: "skip", Key: key, State: aspect.state})
		return target, mergeSkipped, nil
	}

	start := time.Now()
	err := m.whileLoading(func() error { return m.copyValues(target, incoming) })
	if err != nil {
		m.log(TrackingLogEvent{Op: "merge", Action: origin.mergeAction().Name(), Key: key, State: aspect.state, Err: err})
		return nil, 0, err
	}
	aspect.SetUnchanged()
	action := origin.mergeAction()
	m.publishEntityChanged(EntityChangedArgs{Action: action, Entity: target})
	m.log(TrackingLogEvent{Op: "merge", Action: action.Name(), Key: key, State: aspect.state, Count: 1, Duration: time.Since(start)})
	return target, mergeCopied, nil
}

func (m *EntityManager) copyValues(target, source Entity) error {
	if merger, ok := target.(Merger); ok {
		return merger.MergeFrom(source)
	}
	if m.cfg.mergeFunc != nil {
		return m.cfg.mergeFunc(target, source)
	}
	return fmt.Errorf("%w: %s", ErrMergeUnsupported, target.EntityKey())
}

// MergeQueryResults merges every result inside one bulk scope, so each array
// touched by the merge publishes a single coalesced change. Merging stops at
// the first failure; entities merged before it stay merged.
func (m *EntityManager) MergeQueryResults(results []Entity, strategy MergeStrategy) ([]Entity, error) {
	merged := make([]Entity, 0, len(results))
	err := m.Bulk(func() error {
		for _, result := range results {
			e, err := m.MergeEntity(result, MergeOriginQuery, strategy)
			if err != nil {
				return err
			}
			merged = append(merged, e)
		}
		return nil
	})
	if err != nil {
		return merged, fmt.Errorf("tracking: merge query results: %w", err)
	}
	return merged, nil
}

// whileLoading runs fn with tracking suppressed. The counter is restored even
// when fn panics.
func (m *EntityManager) whileLoading(fn func() error) error {
	m.loading++
	defer func() { m.loading-- }()
	return fn()
}
