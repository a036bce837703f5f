package tracking

// ComplexObject is a structured value without identity that lives inside an
// entity, either as a scalar property or as an element of a complex array.
type ComplexObject interface {
	Complex() *ComplexAspect
}

// ComplexAspect records the ownership of a complex value. Embed it by value;
// a complex value belongs to at most one owner at a time.
type ComplexAspect struct {
	owner    Owner
	property string
	props    propertyTracker
}

// Complex returns c. It lets embedding structs satisfy ComplexObject.
func (c *ComplexAspect) Complex() *ComplexAspect {
	return c
}

// Owner returns the structure this value belongs to, nil when unowned.
func (c *ComplexAspect) Owner() Owner {
	return c.owner
}

// ParentProperty returns the owner's property holding this value.
func (c *ComplexAspect) ParentProperty() string {
	return c.property
}

// TrackingAspect resolves the owning entity's aspect through the owner chain.
func (c *ComplexAspect) TrackingAspect() TrackingAspect {
	if c.owner == nil {
		return nil
	}
	return c.owner.TrackingAspect()
}

// PropertyPath returns the dotted path of property from the owning entity.
func (c *ComplexAspect) PropertyPath(property string) string {
	if c.owner == nil {
		return property
	}
	return c.owner.PropertyPath(c.property) + "." + property
}

// OriginalValues returns the recorded pre-modification scalar values.
func (c *ComplexAspect) OriginalValues() map[string]any {
	return c.props.values()
}

// AttachComplex makes owner the owner of value under property. Values owned
// by a different owner are rejected with ErrComplexObjectOwned.
func AttachComplex(owner Owner, property string, value ComplexObject) error {
	if value == nil {
		return nil
	}
	c := value.Complex()
	if c.owner != nil {
		if c.owner == owner && c.property == property {
			return nil
		}
		return invariant("attach complex", property, ErrComplexObjectOwned)
	}
	c.owner = owner
	c.property = property
	if r, ok := owner.(childRegistrar); ok {
		r.registerChild(c)
	}
	return nil
}

// DetachComplex releases value from its owner so it can be attached elsewhere.
func DetachComplex(value ComplexObject) {
	if value == nil {
		return
	}
	c := value.Complex()
	if r, ok := c.owner.(childRegistrar); ok {
		r.unregisterChild(c)
	}
	c.owner = nil
	c.property = ""
}

func (c *ComplexAspect) properties() *propertyTracker {
	return &c.props
}

func (c *ComplexAspect) notifyPropertyChanged(property string, oldValue, newValue any) {
	if c.owner == nil {
		return
	}
	if ea, ok := c.owner.TrackingAspect().(*EntityAspect); ok && ea != nil {
		ea.notifyPropertyChanged(property, oldValue, newValue)
	}
}

func (c *ComplexAspect) registerChild(child trackedChild) {
	c.props.addChild(child)
}

func (c *ComplexAspect) unregisterChild(child trackedChild) {
	c.props.removeChild(child)
}

func (c *ComplexAspect) acceptChanges() {
	c.props.accept()
}

func (c *ComplexAspect) rejectChanges() {
	c.props.reject()
}

func (c *ComplexAspect) release() {
	c.props.releaseChildren()
}

func (c *ComplexAspect) reattach() {
	c.props.reattachChildren()
}

// setParent assigns ownership without registering c as a scalar child; array
// elements follow the lifecycle of their array instead.
func (c *ComplexAspect) setParent(owner Owner, property string) {
	c.owner = owner
	c.property = property
}

func (c *ComplexAspect) clearParent() {
	c.owner = nil
	c.property = ""
}
