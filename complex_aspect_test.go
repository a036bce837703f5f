package tracking_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-tracking"
)

func TestComplexArrayOwnership(t *testing.T) {
	m := tracking.NewEntityManager()
	first := newOrder("1", "open")
	second := newOrder("2", "open")
	attachUnchanged(m, first, second)

	item := newLineItem("sku-1", 1)
	if _, err := first.Lines.Push(item, item); err != nil {
		t.Fatalf("push: %v", err)
	}
	if first.Lines.Len() != 1 {
		t.Fatalf("expected duplicate in one call to be dropped, got %d", first.Lines.Len())
	}
	if item.Owner() != first.Aspect() || item.ParentProperty() != "lines" {
		t.Fatalf("expected item owned by first order")
	}
	if n, _ := first.Lines.Push(item); n != 1 {
		t.Fatalf("re-adding an owned element must be ignored, len=%d", n)
	}

	_, err := second.Lines.Push(item)
	var invariantErr *tracking.InvariantError
	if !errors.Is(err, tracking.ErrComplexObjectOwned) || !errors.As(err, &invariantErr) {
		t.Fatalf("expected owned element rejected, got %v", err)
	}
	if invariantErr.Property != "lines" {
		t.Fatalf("unexpected invariant property %q", invariantErr.Property)
	}

	if _, err := first.Lines.RemoveAt(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if item.Owner() != nil {
		t.Fatalf("removed element must be released")
	}
	if _, err := second.Lines.Push(item); err != nil {
		t.Fatalf("push released element elsewhere: %v", err)
	}
}

func TestComplexArrayRejectRestoresElements(t *testing.T) {
	m := tracking.NewEntityManager()
	o := newOrder("1", "open")
	kept := newLineItem("kept", 1)
	dropped := newLineItem("dropped", 2)
	if _, err := o.Lines.Push(kept, dropped); err != nil {
		t.Fatalf("seed: %v", err)
	}
	attachUnchanged(m, o)

	kept.SetQty(5)
	if !o.EntityState().IsModified() {
		t.Fatalf("nested change must modify the entity, got %s", o.EntityState())
	}
	if _, err := o.Lines.RemoveAt(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added := newLineItem("added", 3)
	if _, err := o.Lines.Push(added); err != nil {
		t.Fatalf("push: %v", err)
	}

	o.RejectChanges()

	if o.Lines.Len() != 2 {
		t.Fatalf("expected two lines after reject, got %d", o.Lines.Len())
	}
	if got, _ := o.Lines.At(1); got != dropped || dropped.Owner() != o.Aspect() {
		t.Fatalf("expected dropped element restored and re-owned")
	}
	if added.Owner() != nil {
		t.Fatalf("expected added element released by reject")
	}
	if kept.qty != 1 {
		t.Fatalf("expected nested scalar restored, got %d", kept.qty)
	}
	if kept.OriginalValues() != nil {
		t.Fatalf("expected nested originals cleared, got %v", kept.OriginalValues())
	}
}

func TestComplexScalarPropertyTracking(t *testing.T) {
	m := tracking.NewEntityManager()
	o := newOrder("1", "open")
	o.Shipping.SetCity("Lisbon")
	attachUnchanged(m, o)

	var changes []tracking.EntityChangedArgs
	m.EntityChanged().Subscribe(func(args tracking.EntityChangedArgs) {
		if args.Action == tracking.ActionPropertyChange {
			changes = append(changes, args)
		}
	})

	o.Shipping.SetCity("Porto")
	if len(changes) != 1 || changes[0].PropertyName != "shipping.city" || changes[0].OldValue != "Lisbon" {
		t.Fatalf("unexpected nested property change %+v", changes)
	}
	if o.Shipping.OriginalValues()["city"] != "Lisbon" {
		t.Fatalf("expected nested original recorded, got %v", o.Shipping.OriginalValues())
	}

	o.RejectChanges()
	if o.Shipping.City() != "Lisbon" || !o.EntityState().IsUnchanged() {
		t.Fatalf("expected city restored, got %q state=%s", o.Shipping.City(), o.EntityState())
	}
}

func TestAttachComplexRejectsSecondOwner(t *testing.T) {
	first := newOrder("1", "open")
	second := newOrder("2", "open")

	if err := tracking.AttachComplex(second.Aspect(), "shipping", first.Shipping); !errors.Is(err, tracking.ErrComplexObjectOwned) {
		t.Fatalf("expected ErrComplexObjectOwned, got %v", err)
	}
	if err := tracking.AttachComplex(first.Aspect(), "shipping", first.Shipping); err != nil {
		t.Fatalf("re-attaching to the same owner must be a no-op: %v", err)
	}
	tracking.DetachComplex(first.Shipping)
	if first.Shipping.Owner() != nil {
		t.Fatalf("expected owner cleared")
	}
	if err := tracking.AttachComplex(second.Aspect(), "billing", first.Shipping); err != nil {
		t.Fatalf("attach released value: %v", err)
	}
	if first.Shipping.PropertyPath("city") != "billing.city" {
		t.Fatalf("unexpected path %q", first.Shipping.PropertyPath("city"))
	}
}
