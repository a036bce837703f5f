package tracking

import "sync"

// DefaultSlot is process-scoped state with a documented initial value and an
// explicit replace operation. Components receive a slot by reference instead
// of reading ambient globals. It is safe for concurrent use.
type DefaultSlot[T any] struct {
	mu      sync.RWMutex
	initial T
	value   T
}

// NewDefaultSlot returns a slot holding initial.
func NewDefaultSlot[T any](initial T) *DefaultSlot[T] {
	return &DefaultSlot[T]{initial: initial, value: initial}
}

// Get returns the current value.
func (s *DefaultSlot[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Replace installs value and returns the previous one.
func (s *DefaultSlot[T]) Replace(value T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.value
	s.value = value
	return prev
}

// Update installs fn(current) atomically and returns the new value.
func (s *DefaultSlot[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	return s.value
}

// Reset restores the initial value.
func (s *DefaultSlot[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = s.initial
}

// ComparisonDefaults holds the default ComparisonPolicy.
type ComparisonDefaults struct {
	slot *DefaultSlot[*ComparisonPolicy]
}

// NewComparisonDefaults returns defaults starting at initial, or at
// CaseInsensitiveSQL when initial is nil.
func NewComparisonDefaults(initial *ComparisonPolicy) *ComparisonDefaults {
	if initial == nil {
		initial = CaseInsensitiveSQL
	}
	return &ComparisonDefaults{slot: NewDefaultSlot(initial)}
}

// Default returns the current default policy.
func (d *ComparisonDefaults) Default() *ComparisonPolicy {
	if d == nil {
		return CaseInsensitiveSQL
	}
	return d.slot.Get()
}

// Replace installs policy as is and returns the previous default. Nil restores
// the initial policy.
func (d *ComparisonDefaults) Replace(policy *ComparisonPolicy) *ComparisonPolicy {
	if policy == nil {
		prev := d.slot.Get()
		d.slot.Reset()
		return prev
	}
	return d.slot.Replace(policy)
}

// Reset restores the initial policy.
func (d *ComparisonDefaults) Reset() {
	d.slot.Reset()
}

var processComparisonDefaults = NewComparisonDefaults(CaseInsensitiveSQL)

// ProcessComparisonDefaults returns the process-wide defaults, initialised to
// CaseInsensitiveSQL.
func ProcessComparisonDefaults() *ComparisonDefaults {
	return processComparisonDefaults
}
