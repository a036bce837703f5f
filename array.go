package tracking

import (
	"fmt"
	"iter"
)

// ArrayChanged is the payload of ObservableArray.ArrayChanged. Added and
// Removed are never nil and never alias the array's storage.
type ArrayChanged[T any] struct {
	Array   *ObservableArray[T]
	Added   []T
	Removed []T
}

// arrayBehavior differentiates primitive and complex element handling.
type arrayBehavior[T any] interface {
	goodAdds(a *ObservableArray[T], adds []T) []T
	checkAdds(a *ObservableArray[T], adds []T) error
	processAdds(a *ObservableArray[T], adds []T)
	processRemoves(a *ObservableArray[T], removes []T)
	// restore runs after a reject swapped current for the snapshot.
	restore(a *ObservableArray[T], current, restored []T)
	acceptItems(a *ObservableArray[T])
	rejectItems(a *ObservableArray[T])
	releaseItems(a *ObservableArray[T])
	reattachItems(a *ObservableArray[T])
}

// ObservableArray is an array-valued property of an entity or complex value.
// Every mutation snapshots the pre-change contents (once per Modified
// episode), moves an Unchanged owner to Modified and publishes the delta on
// ArrayChanged, coalesced while a bulk scope is open.
type ObservableArray[T any] struct {
	owner    Owner
	released Owner
	property string
	items    []T
	orig     []T
	hasOrig  bool
	changed  *Event[ArrayChanged[T]]
	pending  *ArrayChanged[T]
	behavior arrayBehavior[T]
}

func newObservableArray[T any](owner Owner, property string, behavior arrayBehavior[T], items []T) *ObservableArray[T] {
	a := &ObservableArray[T]{
		owner:    owner,
		property: property,
		items:    cloneItems(items),
		changed:  NewEvent[ArrayChanged[T]]("arrayChanged"),
		behavior: behavior,
	}
	a.register()
	return a
}

func (a *ObservableArray[T]) register() {
	if r, ok := a.owner.(childRegistrar); ok {
		r.registerChild(a)
	}
}

func (a *ObservableArray[T]) unregister() {
	if r, ok := a.owner.(childRegistrar); ok {
		r.unregisterChild(a)
	}
}

// Owner returns the owning structure, nil once released by a detach.
func (a *ObservableArray[T]) Owner() Owner {
	return a.owner
}

// ParentProperty returns the owner's property name holding this array.
func (a *ObservableArray[T]) ParentProperty() string {
	return a.property
}

// PropertyPath returns the dotted path from the owning entity.
func (a *ObservableArray[T]) PropertyPath() string {
	if a.owner == nil {
		return a.property
	}
	return a.owner.PropertyPath(a.property)
}

// ArrayChanged returns the change event.
func (a *ObservableArray[T]) ArrayChanged() *Event[ArrayChanged[T]] {
	return a.changed
}

// Len returns the number of elements.
func (a *ObservableArray[T]) Len() int {
	return len(a.items)
}

// At returns the element at index i.
func (a *ObservableArray[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(a.items) {
		var zero T
		return zero, false
	}
	return a.items[i], true
}

// Items returns a copy of the current elements.
func (a *ObservableArray[T]) Items() []T {
	return cloneItems(a.items)
}

// All iterates the current elements.
func (a *ObservableArray[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range a.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// IndexFunc returns the index of the first element satisfying fn, or -1.
func (a *ObservableArray[T]) IndexFunc(fn func(T) bool) int {
	for i, item := range a.items {
		if fn(item) {
			return i
		}
	}
	return -1
}

// OriginalValues returns a copy of the pre-modification snapshot. The second
// result is false when no snapshot is held.
func (a *ObservableArray[T]) OriginalValues() ([]T, bool) {
	if !a.hasOrig {
		return nil, false
	}
	return cloneItems(a.orig), true
}

// HasChanges reports whether a snapshot is held.
func (a *ObservableArray[T]) HasChanges() bool {
	return a.hasOrig
}

// Push appends items and returns the new length.
func (a *ObservableArray[T]) Push(items ...T) (int, error) {
	if err := a.checkOwner("push"); err != nil {
		return len(a.items), err
	}
	adds := a.behavior.goodAdds(a, items)
	if len(adds) == 0 {
		return len(a.items), nil
	}
	if err := a.behavior.checkAdds(a, adds); err != nil {
		return len(a.items), err
	}
	if err := a.beforeChange("push"); err != nil {
		return len(a.items), err
	}
	a.items = append(a.items, adds...)
	a.behavior.processAdds(a, adds)
	a.publish(adds, nil)
	return len(a.items), nil
}

// Unshift prepends items and returns the new length.
func (a *ObservableArray[T]) Unshift(items ...T) (int, error) {
	if err := a.checkOwner("unshift"); err != nil {
		return len(a.items), err
	}
	adds := a.behavior.goodAdds(a, items)
	if len(adds) == 0 {
		return len(a.items), nil
	}
	if err := a.behavior.checkAdds(a, adds); err != nil {
		return len(a.items), err
	}
	if err := a.beforeChange("unshift"); err != nil {
		return len(a.items), err
	}
	next := make([]T, 0, len(adds)+len(a.items))
	next = append(next, adds...)
	a.items = append(next, a.items...)
	a.behavior.processAdds(a, adds)
	a.publish(adds, nil)
	return len(a.items), nil
}

// Pop removes and returns the last element. An empty array is left untouched
// and reports false.
func (a *ObservableArray[T]) Pop() (T, bool, error) {
	var zero T
	if err := a.checkOwner("pop"); err != nil {
		return zero, false, err
	}
	if len(a.items) == 0 {
		return zero, false, nil
	}
	if err := a.beforeChange("pop"); err != nil {
		return zero, false, err
	}
	last := len(a.items) - 1
	item := a.items[last]
	a.items[last] = zero
	a.items = a.items[:last]
	removed := []T{item}
	a.behavior.processRemoves(a, removed)
	a.publish(nil, removed)
	return item, true, nil
}

// Shift removes and returns the first element. An empty array is left
// untouched and reports false.
func (a *ObservableArray[T]) Shift() (T, bool, error) {
	var zero T
	if err := a.checkOwner("shift"); err != nil {
		return zero, false, err
	}
	if len(a.items) == 0 {
		return zero, false, nil
	}
	if err := a.beforeChange("shift"); err != nil {
		return zero, false, err
	}
	item := a.items[0]
	a.items = cloneItems(a.items[1:])
	removed := []T{item}
	a.behavior.processRemoves(a, removed)
	a.publish(nil, removed)
	return item, true, nil
}

// RemoveAt removes the element at index i.
func (a *ObservableArray[T]) RemoveAt(i int) (T, error) {
	var zero T
	if err := a.checkOwner("remove"); err != nil {
		return zero, err
	}
	if i < 0 || i >= len(a.items) {
		return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(a.items))
	}
	removed, err := a.Splice(i, 1)
	if err != nil {
		return zero, err
	}
	return removed[0], nil
}

// RemoveFunc removes every element satisfying fn as a single change and
// returns the number removed.
func (a *ObservableArray[T]) RemoveFunc(fn func(T) bool) (int, error) {
	if err := a.checkOwner("remove"); err != nil {
		return 0, err
	}
	var keep, removed []T
	for _, item := range a.items {
		if fn(item) {
			removed = append(removed, item)
			continue
		}
		keep = append(keep, item)
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := a.beforeChange("remove"); err != nil {
		return 0, err
	}
	a.items = keep
	a.behavior.processRemoves(a, removed)
	a.publish(nil, removed)
	return len(removed), nil
}

// Splice removes deleteCount elements at start, inserts items in their place
// and returns the removed elements. A negative start counts from the end;
// out-of-range arguments are clamped. A splice that neither removes nor
// inserts anything is a no-op.
func (a *ObservableArray[T]) Splice(start, deleteCount int, items ...T) ([]T, error) {
	if err := a.checkOwner("splice"); err != nil {
		return []T{}, err
	}
	n := len(a.items)
	switch {
	case start < 0:
		start = max(n+start, 0)
	case start > n:
		start = n
	}
	deleteCount = min(max(deleteCount, 0), n-start)

	adds := a.behavior.goodAdds(a, items)
	if deleteCount == 0 && len(adds) == 0 {
		return []T{}, nil
	}
	if err := a.behavior.checkAdds(a, adds); err != nil {
		return []T{}, err
	}
	if err := a.beforeChange("splice"); err != nil {
		return []T{}, err
	}

	removed := cloneItems(a.items[start : start+deleteCount])
	next := make([]T, 0, n-deleteCount+len(adds))
	next = append(next, a.items[:start]...)
	next = append(next, adds...)
	next = append(next, a.items[start+deleteCount:]...)
	a.items = next

	if len(removed) > 0 {
		a.behavior.processRemoves(a, removed)
	}
	if len(adds) > 0 {
		a.behavior.processAdds(a, adds)
	}
	a.publish(adds, removed)
	return removed, nil
}

// Replace swaps the whole contents for items as one change.
func (a *ObservableArray[T]) Replace(items ...T) error {
	_, err := a.Splice(0, len(a.items), items...)
	return err
}

// AcceptChanges drops the snapshot; the current contents become the baseline.
func (a *ObservableArray[T]) AcceptChanges() {
	a.orig = nil
	a.hasOrig = false
}

// RejectChanges restores the snapshot, if any, and drops it.
func (a *ObservableArray[T]) RejectChanges() {
	if !a.hasOrig {
		return
	}
	current := a.items
	a.items = a.orig
	a.orig = nil
	a.hasOrig = false
	a.behavior.restore(a, current, a.items)
}

// CheckConsistency returns an InvariantError when a snapshot is held while
// the owning entity is Unchanged.
func (a *ObservableArray[T]) CheckConsistency() error {
	if !a.hasOrig || a.owner == nil {
		return nil
	}
	if aspect := a.owner.TrackingAspect(); aspect != nil && aspect.EntityState().IsUnchanged() {
		return invariant("check", a.PropertyPath(), ErrSnapshotInvariant)
	}
	return nil
}

func (a *ObservableArray[T]) checkOwner(op string) error {
	if a.owner == nil {
		return fmt.Errorf("tracking: %s %q: %w", op, a.property, ErrDetachedCollection)
	}
	return nil
}

// beforeChange runs ahead of every effective mutation.
func (a *ObservableArray[T]) beforeChange(op string) error {
	aspect := a.owner.TrackingAspect()
	if aspect == nil || isLoading(aspect) {
		return nil
	}
	if aspect.EntityState().IsUnchanged() {
		if a.hasOrig {
			return invariant(op, a.PropertyPath(), ErrSnapshotInvariant)
		}
		aspect.SetModified()
	}
	if aspect.EntityState().IsModified() && !a.hasOrig {
		a.orig = cloneItems(a.items)
		a.hasOrig = true
	}
	return nil
}

func (a *ObservableArray[T]) publications() *PublicationQueue {
	if a.owner == nil {
		return nil
	}
	aspect := a.owner.TrackingAspect()
	if aspect == nil {
		return nil
	}
	return aspect.Publications()
}

func (a *ObservableArray[T]) publish(added, removed []T) {
	args := ArrayChanged[T]{Array: a, Added: cloneItems(added), Removed: cloneItems(removed)}
	queue := a.publications()
	if !queue.Active() {
		a.changed.Publish(args)
		return
	}
	if a.pending == nil {
		a.pending = &args
		queue.enqueue(a)
		return
	}
	a.pending.Added = append(a.pending.Added, args.Added...)
	a.pending.Removed = append(a.pending.Removed, args.Removed...)
}

func (a *ObservableArray[T]) flushPending() {
	pending := a.pending
	a.pending = nil
	if pending != nil {
		a.changed.Publish(*pending)
	}
}

func (a *ObservableArray[T]) discardPending() {
	a.pending = nil
}

func (a *ObservableArray[T]) acceptChanges() {
	a.AcceptChanges()
	a.behavior.acceptItems(a)
}

func (a *ObservableArray[T]) rejectChanges() {
	a.RejectChanges()
	a.behavior.rejectItems(a)
}

func (a *ObservableArray[T]) release() {
	if a.owner == nil {
		return
	}
	a.behavior.releaseItems(a)
	a.released = a.owner
	a.owner = nil
}

func (a *ObservableArray[T]) reattach() {
	if a.released == nil {
		return
	}
	a.owner = a.released
	a.released = nil
	a.behavior.reattachItems(a)
}

func cloneItems[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
