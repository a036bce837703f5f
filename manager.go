package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-tracking/pkg/activity"
)

// EntityKey identifies an entity inside a manager.
type EntityKey struct {
	Type string
	ID   string
}

func (k EntityKey) String() string {
	return k.Type + ":" + k.ID
}

// Valid reports whether both type and id are set.
func (k EntityKey) Valid() bool {
	return strings.TrimSpace(k.Type) != "" && strings.TrimSpace(k.ID) != ""
}

// Entity is a tracked value with identity. Embed EntityAspect and provide
// EntityKey to satisfy it.
type Entity interface {
	Aspect() *EntityAspect
	EntityKey() EntityKey
}

// EntityChangedArgs is published on EntityManager.EntityChanged. Entity is nil
// for ActionClear.
type EntityChangedArgs struct {
	Action       Action
	Entity       Entity
	PropertyName string
	OldValue     any
	NewValue     any
}

// HasChangesChangedArgs is published when the manager-wide pending change
// flag flips.
type HasChangesChangedArgs struct {
	Manager    *EntityManager
	HasChanges bool
}

// EntityManager is the in-memory cache of tracked entities. It owns the
// publication queue shared by every attached entity. It is not safe for
// concurrent use.
type EntityManager struct {
	cfg     managerConfig
	emitter *activity.Emitter

	entities map[EntityKey]Entity
	order    []EntityKey

	pubs              *PublicationQueue
	entityChanged     *Event[EntityChangedArgs]
	hasChangesChanged *Event[HasChangesChangedArgs]
	hasChanges        bool

	rejecting int
	loading   int
}

// NewEntityManager constructs an empty manager.
func NewEntityManager(opts ...ManagerOption) *EntityManager {
	cfg := applyManagerOptions(opts)
	return &EntityManager{
		cfg:               cfg,
		emitter:           activity.NewEmitter(cfg.activityHooks, cfg.activity),
		entities:          map[EntityKey]Entity{},
		pubs:              NewPublicationQueue(),
		entityChanged:     NewEvent[EntityChangedArgs]("entityChanged"),
		hasChangesChanged: NewEvent[HasChangesChangedArgs]("hasChangesChanged"),
	}
}

// EntityChanged returns the manager-wide entity change event.
func (m *EntityManager) EntityChanged() *Event[EntityChangedArgs] {
	return m.entityChanged
}

// HasChangesChanged returns the event raised when HasChanges flips.
func (m *EntityManager) HasChangesChanged() *Event[HasChangesChangedArgs] {
	return m.hasChangesChanged
}

// Publications returns the manager's publication queue.
func (m *EntityManager) Publications() *PublicationQueue {
	return m.pubs
}

// ComparisonPolicy returns the policy local queries use: the pinned policy
// when configured, otherwise the current default.
func (m *EntityManager) ComparisonPolicy() *ComparisonPolicy {
	if m.cfg.policy != nil {
		return m.cfg.policy
	}
	return m.cfg.defaults.Default()
}

// ComparisonDefaults returns the defaults slot the manager reads.
func (m *EntityManager) ComparisonDefaults() *ComparisonDefaults {
	return m.cfg.defaults
}

// Len returns the number of attached entities.
func (m *EntityManager) Len() int {
	return len(m.order)
}

// Bulk runs fn inside a publication scope: array change notifications raised
// by fn are coalesced into one event per array when the outermost scope
// closes, even when fn fails.
func (m *EntityManager) Bulk(fn func() error) error {
	return m.pubs.Run(fn)
}

// AttachEntity attaches e in state. Attaching an entity already owned by m
// is a no-op.
func (m *EntityManager) AttachEntity(e Entity, state EntityState) error {
	return m.attach(e, state, ActionAttach)
}

// AddEntity attaches e as Added.
func (m *EntityManager) AddEntity(e Entity) error {
	return m.attach(e, EntityStateAdded, ActionAttach)
}

func (m *EntityManager) attach(e Entity, state EntityState, action Action) error {
	start := time.Now()
	if e == nil || e.Aspect() == nil {
		return ErrEntityRequired
	}
	if state.IsDetached() || !state.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidAttachState, state)
	}
	aspect := e.Aspect()
	key := e.EntityKey()
	if aspect.manager == m {
		return nil
	}
	if aspect.manager != nil {
		return fmt.Errorf("%w: %s", ErrEntityOwnedElsewhere, key)
	}
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}
	if _, exists := m.entities[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}

	aspect.entity = e
	aspect.manager = m
	aspect.state = state
	aspect.reattach()
	if !state.IsModified() {
		aspect.props.accept()
	}
	m.entities[key] = e
	m.order = append(m.order, key)

	m.publishEntityChanged(EntityChangedArgs{Action: action, Entity: e})
	m.updateHasChanges(state.IsAddedModifiedOrDeleted())
	m.log(TrackingLogEvent{Op: "attach", Action: action.Name(), Key: key, State: state, Count: 1, Duration: time.Since(start)})
	return nil
}

// DetachEntity removes e from the cache. Its arrays stop accepting mutations
// until it is attached again. It reports whether e was attached to m.
func (m *EntityManager) DetachEntity(e Entity) (bool, error) {
	if e == nil || e.Aspect() == nil {
		return false, ErrEntityRequired
	}
	aspect := e.Aspect()
	if aspect.manager == nil {
		return false, nil
	}
	if aspect.manager != m {
		return false, fmt.Errorf("%w: %s", ErrEntityOwnedElsewhere, e.EntityKey())
	}
	return m.detach(aspect, ActionDetach), nil
}

func (m *EntityManager) detach(aspect *EntityAspect, action Action) bool {
	if aspect.manager != m {
		return false
	}
	e := aspect.entity
	key := e.EntityKey()
	delete(m.entities, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	aspect.release()
	aspect.state = EntityStateDetached
	aspect.manager = nil

	m.publishEntityChanged(EntityChangedArgs{Action: action, Entity: e})
	m.updateHasChanges(false)
	m.log(TrackingLogEvent{Op: "detach", Action: action.Name(), Key: key, State: EntityStateDetached, Count: 1})
	return true
}

// Clear detaches every entity and publishes a single ActionClear.
func (m *EntityManager) Clear() {
	count := len(m.order)
	for _, key := range m.order {
		aspect := m.entities[key].Aspect()
		aspect.release()
		aspect.state = EntityStateDetached
		aspect.manager = nil
	}
	m.entities = map[EntityKey]Entity{}
	m.order = nil

	m.publishEntityChanged(EntityChangedArgs{Action: ActionClear})
	m.updateHasChanges(false)
	m.log(TrackingLogEvent{Op: "clear", Action: ActionClear.Name(), Count: count})
}

// GetEntity returns the entity attached under key.
func (m *EntityManager) GetEntity(key EntityKey) (Entity, bool) {
	e, ok := m.entities[key]
	return e, ok
}

// Lookup returns the entity under key typed as T.
func Lookup[T Entity](m *EntityManager, key EntityKey) (T, bool) {
	var zero T
	e, ok := m.GetEntity(key)
	if !ok {
		return zero, false
	}
	typed, ok := e.(T)
	return typed, ok
}

// Entities returns attached entities in attach order, optionally filtered by
// state.
func (m *EntityManager) Entities(states ...EntityState) []Entity {
	out := make([]Entity, 0, len(m.order))
	for _, key := range m.order {
		e := m.entities[key]
		if len(states) > 0 && !stateIn(e.Aspect().state, states) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetChanges returns entities that are Added, Modified or Deleted.
func (m *EntityManager) GetChanges() []Entity {
	return m.Entities(EntityStateAdded, EntityStateModified, EntityStateDeleted)
}

// HasChanges reports whether any attached entity has pending changes.
func (m *EntityManager) HasChanges() bool {
	return m.hasChanges
}

// AcceptChanges accepts the changes of every pending entity.
func (m *EntityManager) AcceptChanges() {
	changes := m.GetChanges()
	for _, e := range changes {
		e.Aspect().AcceptChanges()
	}
	m.log(TrackingLogEvent{Op: "accept", Action: ActionAcceptChanges.Name(), Count: len(changes)})
}

// RejectChanges rejects the changes of every pending entity and returns them.
func (m *EntityManager) RejectChanges() []Entity {
	changes := m.GetChanges()
	for _, e := range changes {
		e.Aspect().RejectChanges()
	}
	m.log(TrackingLogEvent{Op: "reject", Action: ActionRejectChanges.Name(), Count: len(changes)})
	return changes
}

// CheckConsistency verifies that no attached Unchanged entity holds recorded
// originals.
func (m *EntityManager) CheckConsistency() error {
	for _, key := range m.order {
		aspect := m.entities[key].Aspect()
		if aspect.state.IsUnchanged() && len(aspect.props.originals) > 0 {
			return invariant("check", key.String(), ErrSnapshotInvariant)
		}
	}
	return nil
}

func (m *EntityManager) notifyStateChange(aspect *EntityAspect, needsSave bool) {
	m.publishEntityChanged(EntityChangedArgs{Action: ActionEntityStateChange, Entity: aspect.entity})
	m.updateHasChanges(needsSave)
}

// updateHasChanges flips the flag to true when needsSave, otherwise it
// rescans the cache.
func (m *EntityManager) updateHasChanges(needsSave bool) {
	next := needsSave
	if !needsSave {
		next = m.scanChanges()
	}
	if next == m.hasChanges {
		return
	}
	m.hasChanges = next
	m.hasChangesChanged.Publish(HasChangesChangedArgs{Manager: m, HasChanges: next})
}

func (m *EntityManager) scanChanges() bool {
	for _, key := range m.order {
		if m.entities[key].Aspect().state.IsAddedModifiedOrDeleted() {
			return true
		}
	}
	return false
}

func (m *EntityManager) publishEntityChanged(args EntityChangedArgs) {
	m.entityChanged.Publish(args)
	if !m.emitter.Enabled() {
		return
	}
	input := activity.EntityEventInput{
		Action:   args.Action.Name(),
		Facets:   facetNames(args.Action),
		Property: args.PropertyName,
		OldValue: args.OldValue,
		NewValue: args.NewValue,
	}
	if args.Entity != nil {
		key := args.Entity.EntityKey()
		input.ObjectType = key.Type
		input.ObjectID = key.ID
		input.State = args.Entity.Aspect().state.String()
	}
	if err := m.emitter.Emit(context.Background(), activity.BuildEntityEvent(input)); err != nil {
		m.log(TrackingLogEvent{Op: "activity", Action: args.Action.Name(), Err: err})
	}
}

func (m *EntityManager) log(event TrackingLogEvent) {
	m.cfg.logger.LogTracking(event)
}

func facetNames(a Action) []string {
	var out []string
	if a.IsAttach() {
		out = append(out, "attach")
	}
	if a.IsDetach() {
		out = append(out, "detach")
	}
	if a.IsModification() {
		out = append(out, "modification")
	}
	return out
}

func stateIn(state EntityState, states []EntityState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}
