package tracking

import (
	"errors"
	"fmt"
)

var (
	// ErrDetachedCollection indicates a mutation on an array whose owner was
	// released by a detach or clear.
	ErrDetachedCollection = errors.New("tracking: collection is detached from its owner")
	// ErrSnapshotInvariant indicates an array snapshot observed while its owner
	// is Unchanged.
	ErrSnapshotInvariant = errors.New("tracking: original values present on an unchanged owner")
	// ErrComplexObjectOwned indicates an add of a complex value that already
	// belongs to another owner.
	ErrComplexObjectOwned = errors.New("tracking: complex object is already attached; clone it or remove it from its current owner")
	// ErrIndexOutOfRange indicates a positional access outside the array bounds.
	ErrIndexOutOfRange = errors.New("tracking: index out of range")

	// ErrEntityRequired indicates a nil entity argument.
	ErrEntityRequired = errors.New("tracking: entity is required")
	// ErrEntityOwnedElsewhere indicates an entity attached to another manager.
	ErrEntityOwnedElsewhere = errors.New("tracking: entity belongs to another manager")
	// ErrDuplicateKey indicates a key collision on attach.
	ErrDuplicateKey = errors.New("tracking: entity key already attached")
	// ErrInvalidAttachState indicates Detached or an unknown state passed to attach.
	ErrInvalidAttachState = errors.New("tracking: invalid attach state")
	// ErrInvalidKey indicates an entity key without type or id.
	ErrInvalidKey = errors.New("tracking: entity key requires type and id")
	// ErrKeyMismatch is returned when an entity built from a record reports
	// a different key than the record.
	ErrKeyMismatch = errors.New("tracking: entity key does not match record")
	// ErrMergeUnsupported indicates a merge against an entity that cannot copy values.
	ErrMergeUnsupported = errors.New("tracking: entity does not support merging")
	// ErrInvalidMergeOrigin indicates an unknown merge origin.
	ErrInvalidMergeOrigin = errors.New("tracking: invalid merge origin")
	// ErrNotExportable indicates an Export over an entity without PropertyReader.
	ErrNotExportable = errors.New("tracking: entity does not expose its properties")
	// ErrUnknownEntityType indicates an imported record without a registered factory.
	ErrUnknownEntityType = errors.New("tracking: no factory registered for entity type")
)

// InvariantError reports a violated tracking invariant. These are programming
// defects: they are returned to the caller and never swallowed.
type InvariantError struct {
	Op       string
	Property string
	Err      error
}

func (e *InvariantError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Property != "" {
		return fmt.Sprintf("tracking: %s %q: %v", e.Op, e.Property, e.Err)
	}
	return fmt.Sprintf("tracking: %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func invariant(op, property string, err error) error {
	return &InvariantError{Op: op, Property: property, Err: err}
}
