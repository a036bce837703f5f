package tracking

import "strings"

// EntityState is the lifecycle state of a tracked entity. The zero value is
// EntityStateDetached.
type EntityState uint8

const (
	EntityStateDetached EntityState = iota
	EntityStateAdded
	EntityStateUnchanged
	EntityStateModified
	EntityStateDeleted
)

func (s EntityState) String() string {
	switch s {
	case EntityStateDetached:
		return "Detached"
	case EntityStateAdded:
		return "Added"
	case EntityStateUnchanged:
		return "Unchanged"
	case EntityStateModified:
		return "Modified"
	case EntityStateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// ParseEntityState converts a state name, ignoring case. Unknown names report
// false.
func ParseEntityState(value string) (EntityState, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "detached":
		return EntityStateDetached, true
	case "added":
		return EntityStateAdded, true
	case "unchanged":
		return EntityStateUnchanged, true
	case "modified":
		return EntityStateModified, true
	case "deleted":
		return EntityStateDeleted, true
	default:
		return EntityStateDetached, false
	}
}

func (s EntityState) IsDetached() bool  { return s == EntityStateDetached }
func (s EntityState) IsAdded() bool     { return s == EntityStateAdded }
func (s EntityState) IsUnchanged() bool { return s == EntityStateUnchanged }
func (s EntityState) IsModified() bool  { return s == EntityStateModified }
func (s EntityState) IsDeleted() bool   { return s == EntityStateDeleted }

// IsUnchangedOrModified reports Unchanged or Modified.
func (s EntityState) IsUnchangedOrModified() bool {
	return s == EntityStateUnchanged || s == EntityStateModified
}

// IsAddedModifiedOrDeleted reports whether the entity has changes pending a save.
func (s EntityState) IsAddedModifiedOrDeleted() bool {
	return s == EntityStateAdded || s == EntityStateModified || s == EntityStateDeleted
}

func (s EntityState) valid() bool {
	return s <= EntityStateDeleted
}

// Next returns the state reached from s when action a is applied. Actions
// that do not move the state machine return s unchanged.
//
//	Detached  --attach-->          Unchanged
//	Unchanged --PropertyChange-->  Modified
//	Added|Modified --Accept-->     Unchanged, Deleted --Accept--> Detached
//	Added --Reject-->              Detached, Modified|Deleted --Reject--> Unchanged
//	any --Detach|Clear-->          Detached
//
// Merge actions keep the current state: merged values become the baseline.
func (s EntityState) Next(a Action) EntityState {
	switch {
	case a.IsDetach():
		return EntityStateDetached
	case a.IsAttach():
		if s == EntityStateDetached {
			return EntityStateUnchanged
		}
		return s
	}
	switch a {
	case ActionPropertyChange:
		if s == EntityStateUnchanged {
			return EntityStateModified
		}
	case ActionAcceptChanges:
		switch s {
		case EntityStateAdded, EntityStateModified:
			return EntityStateUnchanged
		case EntityStateDeleted:
			return EntityStateDetached
		}
	case ActionRejectChanges:
		switch s {
		case EntityStateAdded:
			return EntityStateDetached
		case EntityStateModified, EntityStateDeleted:
			return EntityStateUnchanged
		}
	}
	return s
}
