package activity

import "testing"

func TestEntityVerb(t *testing.T) {
	cases := map[string]string{
		"Attach":            "entity.attach",
		"MergeOnQuery":      "entity.merge_on_query",
		"EntityStateChange": "entity.entity_state_change",
		"  ":                "",
	}
	for action, want := range cases {
		if got := EntityVerb(action); got != want {
			t.Fatalf("EntityVerb(%q) = %q, want %q", action, got, want)
		}
	}
}

func TestBuildEntityEventCarriesChangeMetadata(t *testing.T) {
	facets := []string{"modification"}
	event := BuildEntityEvent(EntityEventInput{
		ActorID:    " actor ",
		Action:     "PropertyChange",
		ObjectType: "Order",
		ObjectID:   " 7 ",
		State:      "Modified",
		Property:   "shipping.city",
		Facets:     facets,
		OldValue:   "Lisbon",
		NewValue:   "Porto",
		Metadata:   map[string]any{"custom": "value"},
	})

	if event.Verb != "entity.property_change" {
		t.Fatalf("unexpected verb %q", event.Verb)
	}
	if event.ObjectType != "Order" || event.ObjectID != "7" || event.ActorID != "actor" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.Action != "PropertyChange" || event.State != "Modified" || event.Property != "shipping.city" {
		t.Fatalf("unexpected change fields: %+v", event)
	}
	if event.Metadata["old_value"] != "Lisbon" || event.Metadata["new_value"] != "Porto" || event.Metadata["custom"] != "value" {
		t.Fatalf("unexpected metadata values: %+v", event.Metadata)
	}
	if !HasFacet(event, "modification") || HasFacet(event, "attach") {
		t.Fatalf("unexpected facets: %+v", event.Facets)
	}
	facets[0] = "changed"
	if !HasFacet(event, "modification") {
		t.Fatalf("expected facets to be copied")
	}
}

func TestBuildEntityEventWithoutEntity(t *testing.T) {
	event := BuildEntityEvent(EntityEventInput{Action: "Clear", Facets: []string{"detach"}})
	if event.Verb != "entity.clear" {
		t.Fatalf("unexpected verb %q", event.Verb)
	}
	if event.ObjectType != EntityObjectType || event.ObjectID != EntityObjectType {
		t.Fatalf("expected fallback object fields, got %+v", event)
	}
	if event.State != "" || event.Metadata != nil {
		t.Fatalf("expected no state or metadata, got %+v", event)
	}
}
