package tracking

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrActionSetSealed indicates an attempt to register an action after the
	// owning set was sealed.
	ErrActionSetSealed = errors.New("tracking: action set is sealed")
	// ErrDuplicateAction indicates a name collision inside one action set.
	ErrDuplicateAction = errors.New("tracking: action already registered")
	// ErrActionNameRequired indicates an empty action name.
	ErrActionNameRequired = errors.New("tracking: action name must not be empty")
	// ErrConflictingFacets indicates an action declared as both attach and detach.
	ErrConflictingFacets = errors.New("tracking: action cannot be both attach and detach")
)

// ActionFacets are the orthogonal flags carried by every Action.
type ActionFacets struct {
	Attach       bool
	Detach       bool
	Modification bool
}

// Action is an immutable symbolic cause of an entity change. Two actions are
// equal only when they were produced by the same ActionSet.Add call. The zero
// value is the unknown action and reports no facets.
type Action struct {
	sym *actionSymbol
}

type actionSymbol struct {
	name    string
	ordinal int
	facets  ActionFacets
	set     *ActionSet
}

// Name returns the registered name, or "unknown" for the zero Action.
func (a Action) Name() string {
	if a.sym == nil {
		return "unknown"
	}
	return a.sym.name
}

func (a Action) String() string {
	return a.Name()
}

// Ordinal returns the registration index within the owning set, -1 for the
// zero Action.
func (a Action) Ordinal() int {
	if a.sym == nil {
		return -1
	}
	return a.sym.ordinal
}

// IsZero reports whether a is the unknown action.
func (a Action) IsZero() bool {
	return a.sym == nil
}

// Facets returns the stored facet flags.
func (a Action) Facets() ActionFacets {
	if a.sym == nil {
		return ActionFacets{}
	}
	return a.sym.facets
}

// IsAttach reports whether the action associates an entity with a cache.
func (a Action) IsAttach() bool { return a.Facets().Attach }

// IsDetach reports whether the action removes an entity from a cache.
func (a Action) IsDetach() bool { return a.Facets().Detach }

// IsModification reports whether the action signals changed entity values.
func (a Action) IsModification() bool { return a.Facets().Modification }

// IsAttachAction reports the attach facet of a.
func IsAttachAction(a Action) bool { return a.IsAttach() }

// IsDetachAction reports the detach facet of a.
func IsDetachAction(a Action) bool { return a.IsDetach() }

// IsModificationAction reports the modification facet of a.
func IsModificationAction(a Action) bool { return a.IsModification() }

// ActionSet is an append-only registry of actions. Once sealed it rejects
// further registrations. It is safe for concurrent use.
type ActionSet struct {
	mu      sync.RWMutex
	name    string
	actions []Action
	byName  map[string]Action
	sealed  bool
}

// NewActionSet constructs an empty, unsealed set.
func NewActionSet(name string) *ActionSet {
	return &ActionSet{
		name:   name,
		byName: map[string]Action{},
	}
}

// Name returns the set name.
func (s *ActionSet) Name() string {
	return s.name
}

// Add registers a new action under name.
func (s *ActionSet) Add(name string, facets ActionFacets) (Action, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Action{}, ErrActionNameRequired
	}
	if facets.Attach && facets.Detach {
		return Action{}, fmt.Errorf("%w: %s", ErrConflictingFacets, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return Action{}, fmt.Errorf("%w: %s cannot accept %q", ErrActionSetSealed, s.name, name)
	}
	if _, exists := s.byName[name]; exists {
		return Action{}, fmt.Errorf("%w: %s", ErrDuplicateAction, name)
	}
	action := Action{sym: &actionSymbol{
		name:    name,
		ordinal: len(s.actions),
		facets:  facets,
		set:     s,
	}}
	s.actions = append(s.actions, action)
	s.byName[name] = action
	return action, nil
}

func (s *ActionSet) mustAdd(name string, facets ActionFacets) Action {
	action, err := s.Add(name, facets)
	if err != nil {
		panic(err)
	}
	return action
}

// Seal closes the set. Sealing twice is a no-op.
func (s *ActionSet) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (s *ActionSet) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Lookup resolves an action by name.
func (s *ActionSet) Lookup(name string) (Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	action, ok := s.byName[strings.TrimSpace(name)]
	return action, ok
}

// Contains reports whether a was registered through this set.
func (s *ActionSet) Contains(a Action) bool {
	return a.sym != nil && a.sym.set == s
}

// Actions returns the registered actions in registration order.
func (s *ActionSet) Actions() []Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out
}

var entityActions = NewActionSet("EntityAction")

// Built-in entity actions. The set is sealed during package initialisation.
var (
	// ActionAttach: entity was attached through AttachEntity.
	ActionAttach = entityActions.mustAdd("Attach", ActionFacets{Attach: true})
	// ActionAttachOnQuery: entity was attached as the result of a query.
	ActionAttachOnQuery = entityActions.mustAdd("AttachOnQuery", ActionFacets{Attach: true})
	// ActionAttachOnImport: entity was attached as the result of an import.
	ActionAttachOnImport = entityActions.mustAdd("AttachOnImport", ActionFacets{Attach: true})
	// ActionDetach: entity was detached.
	ActionDetach = entityActions.mustAdd("Detach", ActionFacets{Detach: true})
	// ActionMergeOnQuery: query results were merged into a cached entity.
	ActionMergeOnQuery = entityActions.mustAdd("MergeOnQuery", ActionFacets{Modification: true})
	// ActionMergeOnImport: imported values were merged into a cached entity.
	ActionMergeOnImport = entityActions.mustAdd("MergeOnImport", ActionFacets{Modification: true})
	// ActionMergeOnSave: save results were merged into a cached entity.
	ActionMergeOnSave = entityActions.mustAdd("MergeOnSave", ActionFacets{Modification: true})
	// ActionPropertyChange: a property value changed.
	ActionPropertyChange = entityActions.mustAdd("PropertyChange", ActionFacets{Modification: true})
	// ActionEntityStateChange: the entity state changed.
	ActionEntityStateChange = entityActions.mustAdd("EntityStateChange", ActionFacets{})
	// ActionAcceptChanges: pending changes were committed.
	ActionAcceptChanges = entityActions.mustAdd("AcceptChanges", ActionFacets{})
	// ActionRejectChanges: pending changes were rolled back. A rollback is
	// also reported as a modification.
	ActionRejectChanges = entityActions.mustAdd("RejectChanges", ActionFacets{Modification: true})
	// ActionClear: the cache was cleared and every entity detached.
	ActionClear = entityActions.mustAdd("Clear", ActionFacets{Detach: true})
)

func init() {
	entityActions.Seal()
}

// EntityActions returns the sealed set holding the built-in actions.
func EntityActions() *ActionSet {
	return entityActions
}

// ParseAction resolves a built-in action by name.
func ParseAction(name string) (Action, bool) {
	return entityActions.Lookup(name)
}
