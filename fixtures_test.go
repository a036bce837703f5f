package tracking_test

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-tracking"
)

type address struct {
	tracking.ComplexAspect
	city string
}

func (a *address) City() string { return a.city }

func (a *address) SetCity(city string) {
	tracking.SetProperty(a.Complex(), "city", &a.city, city)
}

type lineItem struct {
	tracking.ComplexAspect
	sku string
	qty int
}

func newLineItem(sku string, qty int) *lineItem {
	return &lineItem{sku: sku, qty: qty}
}

func (l *lineItem) SetQty(qty int) {
	tracking.SetProperty(l.Complex(), "qty", &l.qty, qty)
}

type order struct {
	tracking.EntityAspect
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`

	Tags     *tracking.ObservableArray[string]    `json:"-"`
	Lines    *tracking.ObservableArray[*lineItem] `json:"-"`
	Shipping *address                             `json:"-"`
}

func newOrder(id, status string, tags ...string) *order {
	o := &order{ID: id, Status: status}
	if err := o.bind(tags, ""); err != nil {
		panic(err)
	}
	return o
}

func (o *order) bind(tags []string, city string) error {
	o.Tags = tracking.NewPrimitiveArray(o.Aspect(), "tags", tags...)
	lines, err := tracking.NewComplexArray[*lineItem](o.Aspect(), "lines")
	if err != nil {
		return err
	}
	o.Lines = lines
	o.Shipping = &address{city: city}
	return tracking.AttachComplex(o.Aspect(), "shipping", o.Shipping)
}

func (o *order) EntityKey() tracking.EntityKey {
	return tracking.EntityKey{Type: "Order", ID: o.ID}
}

func (o *order) SetStatus(status string) bool {
	return tracking.SetProperty(o.Aspect(), "status", &o.Status, status)
}

func (o *order) SetTotal(total float64) bool {
	return tracking.SetProperty(o.Aspect(), "total", &o.Total, total)
}

func (o *order) Properties() map[string]any {
	return map[string]any{
		"id":     o.ID,
		"status": o.Status,
		"total":  o.Total,
		"tags":   o.Tags.Items(),
		"city":   o.Shipping.City(),
	}
}

func (o *order) MergeFrom(source tracking.Entity) error {
	src, ok := source.(*order)
	if !ok {
		return fmt.Errorf("order: cannot merge %T", source)
	}
	o.SetStatus(src.Status)
	o.SetTotal(src.Total)
	o.Shipping.SetCity(src.Shipping.City())
	if incoming := src.Tags.Items(); !slices.Equal(incoming, o.Tags.Items()) {
		return o.Tags.Replace(incoming...)
	}
	return nil
}

func (o *order) RestoreOriginal(property string, value any) error {
	switch property {
	case "status":
		status, ok := value.(string)
		if !ok {
			return fmt.Errorf("order: status original %T", value)
		}
		o.Status = status
	case "total":
		total, ok := value.(float64)
		if !ok {
			return fmt.Errorf("order: total original %T", value)
		}
		o.Total = total
	default:
		return fmt.Errorf("order: unknown property %q", property)
	}
	return nil
}

func (o *order) BindRecord(record tracking.EntityRecord) error {
	var tags []string
	switch raw := record.Values["tags"].(type) {
	case []string:
		tags = raw
	case []any:
		for _, v := range raw {
			tags = append(tags, fmt.Sprint(v))
		}
	}
	city, _ := record.Values["city"].(string)
	return o.bind(tags, city)
}

type customer struct {
	tracking.EntityAspect
	id   string
	name string
}

func newCustomer(id, name string) *customer {
	return &customer{id: id, name: name}
}

func (c *customer) EntityKey() tracking.EntityKey {
	return tracking.EntityKey{Type: "Customer", ID: c.id}
}

func (c *customer) SetName(name string) {
	tracking.SetProperty(c.Aspect(), "name", &c.name, name)
}

func (c *customer) Properties() map[string]any {
	return map[string]any{"id": c.id, "name": c.name}
}

type bare struct {
	tracking.EntityAspect
	id string
}

func (b *bare) EntityKey() tracking.EntityKey {
	return tracking.EntityKey{Type: "Bare", ID: b.id}
}

type arrayRecorder[T any] struct {
	events []tracking.ArrayChanged[T]
}

func recordArray[T any](a *tracking.ObservableArray[T]) *arrayRecorder[T] {
	r := &arrayRecorder[T]{}
	a.ArrayChanged().Subscribe(func(args tracking.ArrayChanged[T]) {
		r.events = append(r.events, args)
	})
	return r
}

func attachUnchanged(m *tracking.EntityManager, entities ...tracking.Entity) {
	for _, e := range entities {
		if err := m.AttachEntity(e, tracking.EntityStateUnchanged); err != nil {
			panic(err)
		}
	}
}
