package tracking_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/goliatone/go-tracking"
	"github.com/goliatone/go-tracking/pkg/state"
	"github.com/goliatone/go-tracking/pkg/state/sqlitestore"
)

func orderFactory(opts ...tracking.DecodeOption[order]) tracking.ManagerOption {
	return tracking.WithEntityFactory("order", tracking.DecodeFactory[order](opts...))
}

func TestExportCapturesStateAndOriginals(t *testing.T) {
	m := tracking.NewEntityManager()
	o := newOrder("1", "open", "rush")
	o.Shipping.SetCity("Lisbon")
	attachUnchanged(m, o)
	o.SetStatus("paid")

	snapshot, err := m.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(snapshot.Entities) != 1 || snapshot.ExportedAt.IsZero() {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	record := snapshot.Entities[0]
	if record.Key() != o.EntityKey() || record.State != "Modified" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Values["status"] != "paid" || record.Values["city"] != "Lisbon" || record.Original["status"] != "open" {
		t.Fatalf("unexpected record values %+v", record)
	}

	attachUnchanged(m, &bare{id: "x"})
	if _, err := m.Export(); !errors.Is(err, tracking.ErrNotExportable) {
		t.Fatalf("expected ErrNotExportable, got %v", err)
	}
}

func TestImportAttachesInExportedState(t *testing.T) {
	source := tracking.NewEntityManager()
	unchanged := newOrder("1", "open", "a")
	modified := newOrder("2", "open")
	added := newOrder("3", "draft")
	attachUnchanged(source, unchanged, modified)
	if err := source.AddEntity(added); err != nil {
		t.Fatalf("add: %v", err)
	}
	modified.SetStatus("paid")

	snapshot, err := source.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	target := tracking.NewEntityManager(orderFactory())
	var attachActions int
	target.EntityChanged().Subscribe(func(args tracking.EntityChangedArgs) {
		if args.Action == tracking.ActionAttachOnImport {
			attachActions++
		}
	})
	imported, err := target.Import(snapshot, tracking.ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 3 || attachActions != 3 {
		t.Fatalf("expected three imports, got %d (%d attach events)", len(imported), attachActions)
	}

	got, ok := tracking.Lookup[*order](target, tracking.EntityKey{Type: "Order", ID: "1"})
	if !ok || !got.EntityState().IsUnchanged() || !slices.Equal(got.Tags.Items(), []string{"a"}) {
		t.Fatalf("unexpected imported order %+v", got)
	}
	if _, err := got.Tags.Push("b"); err != nil || !got.EntityState().IsModified() {
		t.Fatalf("imported arrays must be owned by the imported entity: %v", err)
	}
	if paid, _ := tracking.Lookup[*order](target, tracking.EntityKey{Type: "Order", ID: "2"}); paid.Status != "paid" || !paid.EntityState().IsModified() {
		t.Fatalf("expected modified order imported, got %q %s", paid.Status, paid.EntityState())
	}
	if draft, _ := tracking.Lookup[*order](target, tracking.EntityKey{Type: "Order", ID: "3"}); !draft.EntityState().IsAdded() {
		t.Fatalf("expected added order imported, got %s", draft.EntityState())
	}
}

func TestImportedModifiedEntitiesRejectToOriginals(t *testing.T) {
	source := tracking.NewEntityManager()
	o := newOrder("1", "open")
	o.Total = 10
	attachUnchanged(source, o)
	o.SetStatus("paid")
	o.SetTotal(25)
	snapshot, err := source.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	viaJSON := func(t *testing.T) tracking.Snapshot {
		raw, err := json.Marshal(snapshot)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded tracking.Snapshot
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return decoded
	}

	cases := map[string]struct {
		snapshot func(*testing.T) tracking.Snapshot
		cached   bool
	}{
		"fresh manager":      {snapshot: func(*testing.T) tracking.Snapshot { return snapshot }},
		"json round trip":    {snapshot: viaJSON},
		"merge into a cache": {snapshot: func(*testing.T) tracking.Snapshot { return snapshot }, cached: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			target := tracking.NewEntityManager(orderFactory())
			if tc.cached {
				attachUnchanged(target, newOrder("1", "shipped"))
			}
			if _, err := target.Import(tc.snapshot(t), tracking.ImportOptions{Strategy: tracking.OverwriteChanges}); err != nil {
				t.Fatalf("import: %v", err)
			}
			got, ok := tracking.Lookup[*order](target, tracking.EntityKey{Type: "Order", ID: "1"})
			if !ok || got.Status != "paid" || !got.EntityState().IsModified() {
				t.Fatalf("expected modified paid order, got %+v", got)
			}
			originals := got.OriginalValues()
			if originals["status"] != "open" || originals["total"] != float64(10) {
				t.Fatalf("expected exported originals, got %+v", originals)
			}

			got.RejectChanges()
			if got.Status != "open" || got.Total != 10 || !got.EntityState().IsUnchanged() {
				t.Fatalf("expected reject to restore originals, got %q %v %s", got.Status, got.Total, got.EntityState())
			}
			if got.OriginalValues() != nil {
				t.Fatalf("expected originals cleared, got %+v", got.OriginalValues())
			}
		})
	}
}

func TestImportLogsUnrestorableOriginals(t *testing.T) {
	snapshot := tracking.Snapshot{Entities: []tracking.EntityRecord{{
		Type:     "Order",
		ID:       "1",
		State:    "Modified",
		Values:   map[string]any{"id": "1", "status": "paid"},
		Original: map[string]any{"status": "open", "coupon": "SPRING"},
	}}}
	var logged []tracking.TrackingLogEvent
	m := tracking.NewEntityManager(orderFactory(), tracking.WithLogger(tracking.TrackingLoggerFunc(func(e tracking.TrackingLogEvent) {
		if e.Op == "reject" {
			logged = append(logged, e)
		}
	})))
	if _, err := m.Import(snapshot, tracking.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, _ := tracking.Lookup[*order](m, tracking.EntityKey{Type: "Order", ID: "1"})
	if !got.HasOriginalValue("coupon") || !got.HasOriginalValue("status") {
		t.Fatalf("expected every exported original seeded, got %+v", got.OriginalValues())
	}
	got.RejectChanges()
	if got.Status != "open" {
		t.Fatalf("expected status restored, got %q", got.Status)
	}
	if len(logged) != 1 || logged[0].Err == nil {
		t.Fatalf("expected the unknown property restore to be logged, got %+v", logged)
	}
}

func TestImportMergesExistingEntities(t *testing.T) {
	m := tracking.NewEntityManager(orderFactory())
	cached := newOrder("1", "open")
	attachUnchanged(m, cached)

	snapshot := tracking.Snapshot{Entities: []tracking.EntityRecord{{
		Type:   "Order",
		ID:     "1",
		State:  "Deleted",
		Values: map[string]any{"id": "1", "status": "void", "tags": []any{"x"}},
	}}}
	imported, err := m.Import(snapshot, tracking.ImportOptions{Strategy: tracking.OverwriteChanges})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported[0] != cached || cached.Status != "void" || !slices.Equal(cached.Tags.Items(), []string{"x"}) {
		t.Fatalf("expected merge into cached entity, got %q %v", cached.Status, cached.Tags.Items())
	}
	if !cached.EntityState().IsDeleted() {
		t.Fatalf("expected imported state applied, got %s", cached.EntityState())
	}
}

func TestImportErrors(t *testing.T) {
	m := tracking.NewEntityManager(orderFactory(tracking.DecodeStrict[order]()))
	cases := map[string]struct {
		record tracking.EntityRecord
		want   error
	}{
		"unknown type": {tracking.EntityRecord{Type: "Invoice", ID: "1", State: "Unchanged"}, tracking.ErrUnknownEntityType},
		"bad state":    {tracking.EntityRecord{Type: "Order", ID: "1", State: "Detached"}, tracking.ErrInvalidAttachState},
		"key mismatch": {tracking.EntityRecord{Type: "Order", ID: "1", State: "Unchanged", Values: map[string]any{"id": "2"}}, tracking.ErrKeyMismatch},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Import(tracking.Snapshot{Entities: []tracking.EntityRecord{tc.record}}, tracking.ImportOptions{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	strict := tracking.EntityRecord{Type: "Order", ID: "1", State: "Unchanged", Values: map[string]any{"id": "1", "unknown": true}}
	if _, err := m.Import(tracking.Snapshot{Entities: []tracking.EntityRecord{strict}}, tracking.ImportOptions{}); err == nil {
		t.Fatalf("expected strict decoding to reject unknown values")
	}
	if m.Len() != 0 {
		t.Fatalf("failed imports must not attach anything, got %d", m.Len())
	}
}

func TestManagerPersistsThroughStateStores(t *testing.T) {
	stores := map[string]func(t *testing.T) state.Store[tracking.Snapshot]{
		"memory": func(*testing.T) state.Store[tracking.Snapshot] {
			return state.NewMemoryStore[tracking.Snapshot]()
		},
		"sqlite": func(t *testing.T) state.Store[tracking.Snapshot] {
			store, err := sqlitestore.Open[tracking.Snapshot](filepath.Join(t.TempDir(), "cache.db"))
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			persister, err := state.NewPersister(newStore(t), state.Ref{Domain: "orders", Name: "workspace-1"})
			if err != nil {
				t.Fatalf("persister: %v", err)
			}

			source := tracking.NewEntityManager()
			o := newOrder("1", "open", "a", "b")
			o.Shipping.SetCity("Porto")
			attachUnchanged(source, o)
			meta, err := persister.Save(ctx, source, "")
			if err != nil {
				t.Fatalf("save: %v", err)
			}

			restored := tracking.NewEntityManager(orderFactory())
			if _, ok, err := persister.Restore(ctx, restored); err != nil || !ok {
				t.Fatalf("restore: ok=%v err=%v", ok, err)
			}
			got, ok := tracking.Lookup[*order](restored, o.EntityKey())
			if !ok || got.Status != "open" || got.Shipping.City() != "Porto" || !slices.Equal(got.Tags.Items(), []string{"a", "b"}) {
				t.Fatalf("unexpected restored order %+v", got)
			}

			o.SetStatus("paid")
			if _, err := persister.Save(ctx, source, "stale"); !errors.Is(err, state.ErrETagMismatch) {
				t.Fatalf("expected ErrETagMismatch, got %v", err)
			}
			if _, err := persister.Save(ctx, source, meta.ETag); err != nil {
				t.Fatalf("save with current etag: %v", err)
			}
		})
	}
}
