package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PersisterOption configures a Persister.
type PersisterOption[T any] func(*Persister[T])

// WithClock overrides the timestamp source.
func WithClock[T any](now func() time.Time) PersisterOption[T] {
	return func(p *Persister[T]) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSnapshotIDs overrides the snapshot id generator.
func WithSnapshotIDs[T any](next func() string) PersisterOption[T] {
	return func(p *Persister[T]) {
		if next != nil {
			p.nextID = next
		}
	}
}

// Persister saves and restores one snapshot with optimistic concurrency.
type Persister[T any] struct {
	store  Store[T]
	ref    Ref
	now    func() time.Time
	nextID func() string
}

// NewPersister validates ref and binds it to store.
func NewPersister[T any](store Store[T], ref Ref, opts ...PersisterOption[T]) (*Persister[T], error) {
	if store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, err
	}
	p := &Persister[T]{
		store:  store,
		ref:    ref,
		now:    time.Now,
		nextID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Ref returns the bound reference.
func (p *Persister[T]) Ref() Ref {
	return p.ref
}

// Save exports src and stores it. When expectedETag is set it must match the
// stored snapshot's ETag, otherwise ErrETagMismatch is returned and nothing
// is written.
func (p *Persister[T]) Save(ctx context.Context, src Source[T], expectedETag string) (Meta, error) {
	if src == nil {
		return Meta{}, fmt.Errorf("state: source is required")
	}
	_, current, ok, err := p.store.Load(ctx, p.ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %s/%s: %w", p.ref.Domain, p.ref.Name, err)
	}
	if err := checkETag(expectedETag, current, ok); err != nil {
		return current, err
	}
	snapshot, err := src.Export()
	if err != nil {
		return Meta{}, fmt.Errorf("state: export %s/%s: %w", p.ref.Domain, p.ref.Name, err)
	}
	return p.write(ctx, snapshot, current)
}

// Restore loads the stored snapshot into sink. ok is false when nothing is
// stored; sink is not called in that case.
func (p *Persister[T]) Restore(ctx context.Context, sink Sink[T]) (Meta, bool, error) {
	if sink == nil {
		return Meta{}, false, fmt.Errorf("state: sink is required")
	}
	snapshot, meta, ok, err := p.store.Load(ctx, p.ref)
	if err != nil {
		return Meta{}, false, fmt.Errorf("state: load %s/%s: %w", p.ref.Domain, p.ref.Name, err)
	}
	if !ok {
		return Meta{}, false, nil
	}
	if err := sink.Restore(snapshot); err != nil {
		return meta, true, fmt.Errorf("state: restore %s/%s: %w", p.ref.Domain, p.ref.Name, err)
	}
	return meta, true, nil
}

// Mutate loads the stored snapshot (or the zero value), applies fn and saves
// the result under the same ETag rules as Save.
func (p *Persister[T]) Mutate(ctx context.Context, expectedETag string, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}
	snapshot, current, ok, err := p.store.Load(ctx, p.ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %s/%s: %w", p.ref.Domain, p.ref.Name, err)
	}
	if !ok {
		snapshot = zero
		current = Meta{}
	}
	if err := checkETag(expectedETag, current, ok); err != nil {
		return zero, current, err
	}
	if err := fn(&snapshot); err != nil {
		return zero, current, err
	}
	meta, err := p.write(ctx, snapshot, current)
	if err != nil {
		return zero, current, err
	}
	return snapshot, meta, nil
}

func (p *Persister[T]) write(ctx context.Context, snapshot T, current Meta) (Meta, error) {
	etag, err := ETag(snapshot)
	if err != nil {
		return Meta{}, err
	}
	meta := mergeMeta(current, Meta{
		SnapshotID: p.nextID(),
		ETag:       etag,
		UpdatedAt:  p.now(),
	})
	saved, err := p.store.Save(ctx, p.ref, snapshot, meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s/%s: %w", p.ref.Domain, p.ref.Name, err)
	}
	return saved, nil
}

func checkETag(expected string, current Meta, ok bool) error {
	if expected == "" {
		return nil
	}
	if !ok || current.ETag != expected {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, current.ETag)
	}
	return nil
}

// ETag returns the content hash of snapshot's JSON encoding.
func ETag[T any](snapshot T) (string, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("state: encode snapshot: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}
