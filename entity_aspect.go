package tracking

// PropertyChangedArgs is published on EntityAspect.PropertyChanged. An empty
// PropertyName means every property may have changed (after a reject).
type PropertyChangedArgs struct {
	Entity       Entity
	PropertyName string
	OldValue     any
	NewValue     any
}

// EntityAspect carries the tracking state of one entity. Embed it by value in
// entity structs; the embedding struct satisfies Entity once it also
// provides EntityKey.
type EntityAspect struct {
	entity          Entity
	manager         *EntityManager
	state           EntityState
	props           propertyTracker
	propertyChanged *Event[PropertyChangedArgs]
}

// Aspect returns a. It lets embedding structs satisfy Entity.
func (a *EntityAspect) Aspect() *EntityAspect {
	return a
}

// Entity returns the attached entity, nil before the first attach.
func (a *EntityAspect) Entity() Entity {
	return a.entity
}

// Manager returns the owning manager, nil when detached.
func (a *EntityAspect) Manager() *EntityManager {
	return a.manager
}

// EntityState returns the lifecycle state.
func (a *EntityAspect) EntityState() EntityState {
	return a.state
}

// TrackingAspect implements Owner.
func (a *EntityAspect) TrackingAspect() TrackingAspect {
	return a
}

// PropertyPath implements Owner. Entity properties are their own path.
func (a *EntityAspect) PropertyPath(property string) string {
	return property
}

// Publications returns the manager's queue, nil when detached.
func (a *EntityAspect) Publications() *PublicationQueue {
	if a.manager == nil {
		return nil
	}
	return a.manager.pubs
}

// PropertyChanged returns the per-entity property change event.
func (a *EntityAspect) PropertyChanged() *Event[PropertyChangedArgs] {
	if a.propertyChanged == nil {
		a.propertyChanged = NewEvent[PropertyChangedArgs]("propertyChanged")
	}
	return a.propertyChanged
}

// OriginalValues returns the recorded pre-modification scalar values keyed by
// property name, nil when nothing was recorded.
func (a *EntityAspect) OriginalValues() map[string]any {
	return a.props.values()
}

// HasOriginalValue reports whether property has a recorded original value.
func (a *EntityAspect) HasOriginalValue(property string) bool {
	return a.props.has(property)
}

// SetModified marks an attached entity Modified. Detached aspects ignore it.
func (a *EntityAspect) SetModified() {
	if a.manager == nil || a.state == EntityStateModified {
		return
	}
	a.state = EntityStateModified
	a.manager.notifyStateChange(a, true)
}

// SetUnchanged clears recorded originals (scalar and nested arrays) and marks
// the entity Unchanged.
func (a *EntityAspect) SetUnchanged() {
	if a.manager == nil {
		return
	}
	a.props.accept()
	if a.state == EntityStateUnchanged {
		return
	}
	a.state = EntityStateUnchanged
	a.manager.notifyStateChange(a, false)
}

// SetAdded marks an attached entity Added.
func (a *EntityAspect) SetAdded() {
	if a.manager == nil || a.state == EntityStateAdded {
		return
	}
	a.state = EntityStateAdded
	a.manager.notifyStateChange(a, true)
}

// SetDeleted marks the entity Deleted. An Added entity has nothing to delete
// on the server and is detached instead.
func (a *EntityAspect) SetDeleted() {
	switch {
	case a.manager == nil, a.state == EntityStateDeleted:
		return
	case a.state == EntityStateAdded:
		a.manager.detach(a, ActionDetach)
	default:
		a.state = EntityStateDeleted
		a.manager.notifyStateChange(a, true)
	}
}

// SetDetached removes the entity from its manager. It reports whether the
// entity was attached.
func (a *EntityAspect) SetDetached() bool {
	if a.manager == nil {
		return false
	}
	return a.manager.detach(a, ActionDetach)
}

// AcceptChanges makes the current values the new baseline. A Deleted entity
// is detached.
func (a *EntityAspect) AcceptChanges() {
	m := a.manager
	if m == nil {
		return
	}
	if a.state == EntityStateDeleted {
		m.detach(a, ActionDetach)
		return
	}
	a.SetUnchanged()
	m.publishEntityChanged(EntityChangedArgs{Action: ActionAcceptChanges, Entity: a.entity})
}

// RejectChanges restores recorded originals (scalar and nested arrays). An
// Added entity is detached; any other attached entity becomes Unchanged.
func (a *EntityAspect) RejectChanges() {
	m := a.manager
	if m == nil {
		return
	}
	m.whileRejecting(a.props.reject)

	if a.state == EntityStateAdded {
		m.detach(a, ActionDetach)
		return
	}
	a.SetUnchanged()
	if a.propertyChanged != nil {
		a.propertyChanged.Publish(PropertyChangedArgs{Entity: a.entity})
	}
	m.publishEntityChanged(EntityChangedArgs{Action: ActionRejectChanges, Entity: a.entity})
}

func (a *EntityAspect) properties() *propertyTracker {
	return &a.props
}

func (a *EntityAspect) notifyPropertyChanged(property string, oldValue, newValue any) {
	if a.propertyChanged != nil {
		a.propertyChanged.Publish(PropertyChangedArgs{
			Entity:       a.entity,
			PropertyName: property,
			OldValue:     oldValue,
			NewValue:     newValue,
		})
	}
	m := a.manager
	if m == nil || m.rejecting > 0 || m.loading > 0 {
		return
	}
	m.publishEntityChanged(EntityChangedArgs{
		Action:       ActionPropertyChange,
		Entity:       a.entity,
		PropertyName: property,
		OldValue:     oldValue,
		NewValue:     newValue,
	})
}

func (a *EntityAspect) registerChild(child trackedChild) {
	a.props.addChild(child)
}

func (a *EntityAspect) unregisterChild(child trackedChild) {
	a.props.removeChild(child)
}

func (a *EntityAspect) release() {
	a.props.releaseChildren()
}

func (a *EntityAspect) reattach() {
	a.props.reattachChildren()
}

// whileRejecting runs fn with notifications suppressed. The counter is
// restored even when fn panics.
func (m *EntityManager) whileRejecting(fn func()) {
	m.rejecting++
	defer func() { m.rejecting-- }()
	fn()
}
