package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-tracking/pkg/state"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		ref     state.Ref
		want    string
		wantErr bool
	}{
		{name: "valid", ref: state.Ref{Domain: "orders", Name: "ws-1"}, want: "orders/ws-1"},
		{name: "trimmed", ref: state.Ref{Domain: " orders ", Name: "ws-1 "}, want: "orders/ws-1"},
		{name: "missing domain", ref: state.Ref{Name: "ws-1"}, wantErr: true},
		{name: "missing name", ref: state.Ref{Domain: "orders"}, wantErr: true},
		{name: "separator", ref: state.Ref{Domain: "orders", Name: "a/b"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.wantErr {
				if !errors.Is(err, state.ErrInvalidRef) {
					t.Fatalf("expected ErrInvalidRef, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := state.NewMemoryStore[map[string]int]()
	ref := state.Ref{Domain: "orders", Name: "ws-1"}
	ctx := context.Background()

	if _, _, ok, err := store.Load(ctx, ref); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	meta := state.Meta{SnapshotID: "s1", ETag: "e1", Extra: map[string]string{"k": "v"}}
	if _, err := store.Save(ctx, ref, map[string]int{"a": 1}, meta); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta.Extra["k"] = "mutated"

	snapshot, loaded, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if snapshot["a"] != 1 {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
	if loaded.ETag != "e1" || loaded.Extra["k"] != "v" {
		t.Fatalf("meta not isolated from caller: %+v", loaded)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, ok, _ := store.Load(ctx, ref); ok {
		t.Fatalf("expected snapshot deleted")
	}
}

func TestMemoryStoreRejectsInvalidRef(t *testing.T) {
	store := state.NewMemoryStore[int]()
	if _, err := store.Save(context.Background(), state.Ref{}, 1, state.Meta{}); !errors.Is(err, state.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}
