package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	facets := []string{" modification ", " "}
	evt := Event{
		Action:     " PropertyChange ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		ObjectType: " Order ",
		ObjectID:   " 42 ",
		State:      " Modified ",
		Property:   " status ",
		Channel:    " entities ",
		Facets:     facets,
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "entity.property_change" || got.Action != "PropertyChange" {
		t.Fatalf("expected verb derived from action, got %+v", got)
	}
	if got.ObjectType != "Order" || got.ObjectID != "42" || got.State != "Modified" || got.Property != "status" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.TenantID != "tenant" || got.Channel != "entities" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if len(got.Facets) != 1 || !got.HasFacet("modification") {
		t.Fatalf("expected blank facets dropped, got %v", got.Facets)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
	got.Facets[0] = "changed"
	if facets[0] != " modification " {
		t.Fatalf("expected original facets untouched: %+v", facets)
	}
}

func TestEventKey(t *testing.T) {
	cases := []struct {
		event Event
		want  string
	}{
		{Event{ObjectType: "Order", ObjectID: "7"}, "Order:7"},
		{Event{ObjectType: EntityObjectType, ObjectID: EntityObjectType}, EntityObjectType},
		{Event{ObjectType: "Order"}, "Order"},
	}
	for _, tc := range cases {
		if got := tc.event.Key(); got != tc.want {
			t.Fatalf("Key() = %q, want %q", got, tc.want)
		}
	}
}

func TestCaptureHookHelpers(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	events := []Event{
		{Action: "Attach", ObjectType: "Order", ObjectID: "1"},
		{Action: "Attach", ObjectType: "Order", ObjectID: "2"},
		{Action: "PropertyChange", ObjectType: "Order", ObjectID: "1"},
	}
	for _, event := range events {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	verbs := capture.Verbs()
	want := []string{"entity.attach", "entity.attach", "entity.property_change"}
	if len(verbs) != len(want) {
		t.Fatalf("expected verbs %v, got %v", want, verbs)
	}
	for i := range want {
		if verbs[i] != want[i] {
			t.Fatalf("expected verbs %v, got %v", want, verbs)
		}
	}
	if got := capture.ForKey("Order:1"); len(got) != 2 || got[1].Action != "PropertyChange" {
		t.Fatalf("expected two events for Order:1, got %+v", got)
	}
	capture.Reset()
	if len(capture.Events) != 0 {
		t.Fatalf("expected reset to drop events, got %d", len(capture.Events))
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	errFirst := errors.New("boom1")
	errSecond := errors.New("boom2")
	capture := &CaptureHook{}
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return errFirst }),
		nil,
		HookFunc(func(context.Context, Event) error { return errSecond }),
	}

	err := hooks.Notify(nil, Event{Verb: "entity.property_change", ObjectType: "Order", ObjectID: "1"})
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: "entity.attach", ObjectType: "Order", ObjectID: "1"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if !enabled.Enabled() {
		t.Fatalf("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events[0].Channel)
	}
}

func TestEmitterWithoutHooksIsDisabled(t *testing.T) {
	if NewEmitter(nil, Config{Enabled: true}).Enabled() {
		t.Fatalf("expected emitter without hooks to be disabled")
	}
	var nilEmitter *Emitter
	if err := nilEmitter.Emit(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil emitter to be a no-op, got %v", err)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "entity.attach",
		ObjectType: "Order",
		ObjectID:   "1",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events[0].Channel)
	}
	if capture.Events[0].ActorID != "" {
		t.Fatalf("expected no actor without a default, got %q", capture.Events[0].ActorID)
	}
	if !capture.Events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events[0].OccurredAt)
	}
}

func TestEmitterStampsIdentityDefaults(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{nil, capture}, Config{Enabled: true, ActorID: " svc ", TenantID: "acme"})

	events := []Event{
		{Verb: "entity.attach", ObjectType: "Order", ObjectID: "1"},
		{Verb: "entity.attach", ObjectType: "Order", ObjectID: "2", ActorID: "alice", TenantID: "other"},
	}
	for _, event := range events {
		if err := emitter.Emit(context.Background(), event); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	if len(capture.Events) != 2 {
		t.Fatalf("expected two events, got %d", len(capture.Events))
	}
	if got := capture.Events[0]; got.ActorID != "svc" || got.TenantID != "acme" {
		t.Fatalf("expected defaults stamped, got %+v", got)
	}
	if got := capture.Events[1]; got.ActorID != "alice" || got.TenantID != "other" {
		t.Fatalf("expected explicit identity preserved, got %+v", got)
	}
}
