package tracking

// NewPrimitiveArray returns an observable array of scalar values owned by
// owner under property. Elements carry no ownership.
func NewPrimitiveArray[T any](owner Owner, property string, items ...T) *ObservableArray[T] {
	return newObservableArray[T](owner, property, primitiveBehavior[T]{}, items)
}

// NewComplexArray returns an observable array of complex values. Each element
// becomes owned by owner under property; elements already owned elsewhere
// are rejected.
func NewComplexArray[T ComplexObject](owner Owner, property string, items ...T) (*ObservableArray[T], error) {
	behavior := complexBehavior[T]{}
	a := newObservableArray[T](owner, property, behavior, nil)
	adds := behavior.goodAdds(a, items)
	if err := behavior.checkAdds(a, adds); err != nil {
		a.unregister()
		return nil, err
	}
	a.items = adds
	behavior.processAdds(a, adds)
	return a, nil
}

type primitiveBehavior[T any] struct{}

func (primitiveBehavior[T]) goodAdds(_ *ObservableArray[T], adds []T) []T {
	return cloneItems(adds)
}

func (primitiveBehavior[T]) checkAdds(*ObservableArray[T], []T) error { return nil }
func (primitiveBehavior[T]) processAdds(*ObservableArray[T], []T)     {}
func (primitiveBehavior[T]) processRemoves(*ObservableArray[T], []T)  {}
func (primitiveBehavior[T]) restore(*ObservableArray[T], []T, []T)    {}
func (primitiveBehavior[T]) acceptItems(*ObservableArray[T])          {}
func (primitiveBehavior[T]) rejectItems(*ObservableArray[T])          {}
func (primitiveBehavior[T]) releaseItems(*ObservableArray[T])         {}
func (primitiveBehavior[T]) reattachItems(*ObservableArray[T])        {}

type complexBehavior[T ComplexObject] struct{}

// goodAdds drops elements already owned by this array's owner and
// duplicates within the same call.
func (complexBehavior[T]) goodAdds(a *ObservableArray[T], adds []T) []T {
	out := make([]T, 0, len(adds))
	seen := make(map[*ComplexAspect]struct{}, len(adds))
	for _, item := range adds {
		c := item.Complex()
		if c == nil {
			continue
		}
		if c.owner != nil && c.owner == a.owner {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, item)
	}
	return out
}

func (complexBehavior[T]) checkAdds(a *ObservableArray[T], adds []T) error {
	for _, item := range adds {
		if item.Complex().owner != nil {
			return invariant("add", a.PropertyPath(), ErrComplexObjectOwned)
		}
	}
	return nil
}

func (complexBehavior[T]) processAdds(a *ObservableArray[T], adds []T) {
	for _, item := range adds {
		item.Complex().setParent(a.owner, a.property)
	}
}

func (complexBehavior[T]) processRemoves(a *ObservableArray[T], removes []T) {
	for _, item := range removes {
		if c := item.Complex(); c.owner == a.owner {
			c.clearParent()
		}
	}
}

// restore re-parents the snapshot elements after a reject.
func (b complexBehavior[T]) restore(a *ObservableArray[T], current, restored []T) {
	b.processRemoves(a, current)
	b.processAdds(a, restored)
}

func (complexBehavior[T]) acceptItems(a *ObservableArray[T]) {
	for _, item := range a.items {
		item.Complex().acceptChanges()
	}
}

func (complexBehavior[T]) rejectItems(a *ObservableArray[T]) {
	for _, item := range a.items {
		item.Complex().rejectChanges()
	}
}

func (complexBehavior[T]) releaseItems(a *ObservableArray[T]) {
	for _, item := range a.items {
		item.Complex().release()
	}
}

func (complexBehavior[T]) reattachItems(a *ObservableArray[T]) {
	for _, item := range a.items {
		item.Complex().reattach()
	}
}
