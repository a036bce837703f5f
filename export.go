package tracking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-tracking/internal/hydrate"
)

// EntityRecord is the exported form of one entity.
type EntityRecord struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	State    string         `json:"state"`
	Values   map[string]any `json:"values"`
	Original map[string]any `json:"original,omitempty"`
}

// Key returns the record's entity key.
func (r EntityRecord) Key() EntityKey {
	return EntityKey{Type: r.Type, ID: r.ID}
}

// Snapshot is the exported content of a manager, in attach order.
type Snapshot struct {
	Entities   []EntityRecord `json:"entities"`
	ExportedAt time.Time      `json:"exported_at"`
}

// EntityFactory builds a detached entity from an exported record.
type EntityFactory func(EntityRecord) (Entity, error)

// RecordBinder is implemented by entities that finish construction from the
// record after decoding, typically to build their observable arrays.
type RecordBinder interface {
	BindRecord(EntityRecord) error
}

// OriginalRestorer is implemented by entities that can write an exported
// original value back into property. Import uses it so RejectChanges on an
// imported Modified entity returns it to its originals.
type OriginalRestorer interface {
	RestoreOriginal(property string, value any) error
}

// DecodeContext identifies the record handed to decode hooks.
type DecodeContext = hydrate.Context

// DecodeOption configures DecodeFactory.
type DecodeOption[T any] = hydrate.DecoderOption[T]

// DecodeStrict rejects record values without a matching field.
func DecodeStrict[T any]() DecodeOption[T] {
	return hydrate.WithDisallowUnknownFields[T]()
}

// DecodeUseNumber keeps numeric values as json.Number.
func DecodeUseNumber[T any]() DecodeOption[T] {
	return hydrate.WithUseNumber[T]()
}

// DecodeWithPreHook rewrites record values before they are decoded.
func DecodeWithPreHook[T any](hook func(DecodeContext, map[string]any) (map[string]any, error)) DecodeOption[T] {
	return hydrate.WithPreHook[T](hook)
}

// DecodeFactory returns an EntityFactory that decodes record values into a
// new *T through T's json tags. When *T implements RecordBinder it is bound
// to the record after decoding.
func DecodeFactory[T any, PT interface {
	*T
	Entity
}](opts ...DecodeOption[T]) EntityFactory {
	decoder := hydrate.NewDecoder[T](opts...)
	return func(record EntityRecord) (Entity, error) {
		values := record.Values
		if values == nil {
			values = map[string]any{}
		}
		decoded, err := decoder.Decode(hydrate.Context{Type: record.Type, ID: record.ID}, values)
		if err != nil {
			return nil, err
		}
		entity := PT(&decoded)
		if binder, ok := any(entity).(RecordBinder); ok {
			if err := binder.BindRecord(record); err != nil {
				return nil, fmt.Errorf("tracking: bind %s: %w", record.Key(), err)
			}
		}
		return entity, nil
	}
}

// Export captures every attached entity. Each one must implement
// PropertyReader.
func (m *EntityManager) Export() (Snapshot, error) {
	snapshot := Snapshot{
		Entities:   make([]EntityRecord, 0, len(m.order)),
		ExportedAt: time.Now().UTC(),
	}
	for _, key := range m.order {
		e := m.entities[key]
		reader, ok := e.(PropertyReader)
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNotExportable, key)
		}
		aspect := e.Aspect()
		snapshot.Entities = append(snapshot.Entities, EntityRecord{
			Type:     key.Type,
			ID:       key.ID,
			State:    aspect.state.String(),
			Values:   reader.Properties(),
			Original: aspect.OriginalValues(),
		})
	}
	m.log(TrackingLogEvent{Op: "export", Count: len(snapshot.Entities)})
	return snapshot, nil
}

// ImportOptions configures Import. The zero Strategy uses the manager
// default.
type ImportOptions struct {
	Strategy MergeStrategy
}

// Import merges snapshot into the cache inside one bulk scope. Unknown keys
// attach in their exported state; known keys merge with MergeOnImport and
// take the exported state unless the strategy preserved them. It returns the
// cached entity for every record processed before the first failure.
func (m *EntityManager) Import(snapshot Snapshot, opts ImportOptions) ([]Entity, error) {
	start := time.Now()
	imported := make([]Entity, 0, len(snapshot.Entities))
	err := m.Bulk(func() error {
		for _, record := range snapshot.Entities {
			e, err := m.importRecord(record, opts.Strategy)
			if err != nil {
				return err
			}
			imported = append(imported, e)
		}
		return nil
	})
	m.log(TrackingLogEvent{Op: "import", Action: ActionMergeOnImport.Name(), Count: len(imported), Duration: time.Since(start), Err: err})
	if err != nil {
		return imported, fmt.Errorf("tracking: import: %w", err)
	}
	return imported, nil
}

// Restore imports snapshot with the default strategy.
func (m *EntityManager) Restore(snapshot Snapshot) error {
	_, err := m.Import(snapshot, ImportOptions{})
	return err
}

func (m *EntityManager) importRecord(record EntityRecord, strategy MergeStrategy) (Entity, error) {
	state, ok := ParseEntityState(record.State)
	if !ok || state.IsDetached() {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidAttachState, record.Key(), record.State)
	}
	factory, ok := m.cfg.factories[strings.ToLower(strings.TrimSpace(record.Type))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, record.Type)
	}
	incoming, err := factory(record)
	if err != nil {
		return nil, fmt.Errorf("tracking: build %s: %w", record.Key(), err)
	}
	if incoming == nil || incoming.Aspect() == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", ErrEntityRequired, record.Type)
	}
	if key := incoming.EntityKey(); key.ID != record.ID || !strings.EqualFold(key.Type, record.Type) {
		return nil, fmt.Errorf("%w: factory built %s for record %s", ErrKeyMismatch, key, record.Key())
	}

	e, outcome, err := m.mergeEntity(incoming, state, MergeOriginImport, strategy)
	if err != nil {
		return nil, err
	}
	if outcome == mergeCopied {
		applyImportedState(e.Aspect(), state)
	}
	if state == EntityStateModified && (outcome == mergeCopied || outcome == mergeAttached) {
		seedOriginals(e, record.Original)
	}
	return e, nil
}

// seedOriginals records exported originals on a Modified entity. Without an
// OriginalRestorer the values are reported by OriginalValues but
// RejectChanges leaves the properties as they are.
func seedOriginals(e Entity, originals map[string]any) {
	if len(originals) == 0 {
		return
	}
	restorer, _ := e.(OriginalRestorer)
	names := make([]string, 0, len(originals))
	for name := range originals {
		names = append(names, name)
	}
	sort.Strings(names)
	aspect := e.Aspect()
	for _, name := range names {
		value := originals[name]
		var restore func()
		if restorer != nil {
			property := name
			restore = func() {
				if err := restorer.RestoreOriginal(property, value); err != nil {
					aspect.manager.log(TrackingLogEvent{Op: "reject", Action: "restore", Key: e.EntityKey(), State: aspect.state, Err: err})
				}
			}
		}
		aspect.props.record(name, value, restore)
	}
}

func applyImportedState(aspect *EntityAspect, state EntityState) {
	switch state {
	case EntityStateAdded:
		aspect.SetAdded()
	case EntityStateModified:
		aspect.SetModified()
	case EntityStateDeleted:
		aspect.SetDeleted()
	}
}
