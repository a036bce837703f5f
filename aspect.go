package tracking

// TrackingAspect is the per-entity change tracking surface consulted by
// observable arrays before they record a mutation.
type TrackingAspect interface {
	EntityState() EntityState
	SetModified()
	// Publications returns the queue used to defer change notifications, or
	// nil when the entity is not attached to a manager.
	Publications() *PublicationQueue
}

// Owner is a structured value (an entity or a nested complex value) that owns
// array-valued properties.
type Owner interface {
	// TrackingAspect resolves the aspect of the owning entity, or nil when the
	// owner is not (yet) part of a tracked entity.
	TrackingAspect() TrackingAspect
	// PropertyPath returns the dotted path of property relative to the
	// owning entity.
	PropertyPath(property string) string
}

// PropertyOwner is an Owner whose scalar properties can be tracked with
// SetProperty. It is implemented by EntityAspect and ComplexAspect.
type PropertyOwner interface {
	Owner
	properties() *propertyTracker
	notifyPropertyChanged(property string, oldValue, newValue any)
}

// trackedChild is a nested tracked value (array or complex value) that follows
// the accept/reject/release lifecycle of its owner.
type trackedChild interface {
	acceptChanges()
	rejectChanges()
	release()
	reattach()
}

type childRegistrar interface {
	registerChild(trackedChild)
	unregisterChild(trackedChild)
}

type originalValue struct {
	value   any
	restore func()
}

// propertyTracker holds the pre-modification values of scalar properties
// and the nested values that share the owner's lifecycle.
type propertyTracker struct {
	originals map[string]originalValue
	order     []string
	children  []trackedChild
}

// record keeps the first value seen for name during one Modified episode.
func (p *propertyTracker) record(name string, value any, restore func()) {
	if _, ok := p.originals[name]; ok {
		return
	}
	if p.originals == nil {
		p.originals = map[string]originalValue{}
	}
	p.originals[name] = originalValue{value: value, restore: restore}
	p.order = append(p.order, name)
}

func (p *propertyTracker) has(name string) bool {
	_, ok := p.originals[name]
	return ok
}

func (p *propertyTracker) values() map[string]any {
	if len(p.originals) == 0 {
		return nil
	}
	out := make(map[string]any, len(p.originals))
	for name, original := range p.originals {
		out[name] = original.value
	}
	return out
}

// accept drops recorded originals here and in every child.
func (p *propertyTracker) accept() {
	p.originals = nil
	p.order = nil
	for _, child := range p.children {
		child.acceptChanges()
	}
}

// reject restores recorded originals, newest first, then rejects children.
func (p *propertyTracker) reject() {
	for i := len(p.order) - 1; i >= 0; i-- {
		if original, ok := p.originals[p.order[i]]; ok && original.restore != nil {
			original.restore()
		}
	}
	p.originals = nil
	p.order = nil
	for _, child := range p.children {
		child.rejectChanges()
	}
}

func (p *propertyTracker) releaseChildren() {
	for _, child := range p.children {
		child.release()
	}
}

func (p *propertyTracker) reattachChildren() {
	for _, child := range p.children {
		child.reattach()
	}
}

func (p *propertyTracker) addChild(child trackedChild) {
	for _, existing := range p.children {
		if existing == child {
			return
		}
	}
	p.children = append(p.children, child)
}

func (p *propertyTracker) removeChild(child trackedChild) {
	for i, existing := range p.children {
		if existing == child {
			p.children = append(p.children[:i:i], p.children[i+1:]...)
			return
		}
	}
}

// SetProperty assigns value to *field on behalf of owner and records the
// change. The first change of a property on an Unchanged or Modified entity
// stores the previous value so RejectChanges can restore it; an Unchanged
// entity becomes Modified. While the owning manager is merging, values are
// assigned without tracking. It reports whether the value changed.
func SetProperty[V comparable](owner PropertyOwner, name string, field *V, value V) bool {
	if field == nil || *field == value {
		return false
	}
	old := *field
	if owner == nil {
		*field = value
		return true
	}
	if aspect := owner.TrackingAspect(); aspect != nil && !isLoading(aspect) {
		state := aspect.EntityState()
		if state.IsUnchangedOrModified() {
			owner.properties().record(name, old, func() { *field = old })
		}
		if state.IsUnchanged() {
			aspect.SetModified()
		}
	}
	*field = value
	owner.notifyPropertyChanged(owner.PropertyPath(name), old, value)
	return true
}

func isLoading(aspect TrackingAspect) bool {
	entity, ok := aspect.(*EntityAspect)
	return ok && entity.manager != nil && entity.manager.loading > 0
}
