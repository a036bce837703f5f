package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrETagMismatch indicates a save against a snapshot that changed since
	// it was loaded.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrInvalidRef indicates a Ref missing its domain or name, or containing
	// a path separator.
	ErrInvalidRef = errors.New("state: invalid ref")
)

// Ref identifies one persisted snapshot, for example the cache of one
// workspace: Ref{Domain: "orders", Name: "workspace-1"}.
type Ref struct {
	Domain string
	Name   string
}

// Identifier returns the canonical storage key "domain/name".
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	name := strings.TrimSpace(r.Name)
	if domain == "" || name == "" {
		return "", fmt.Errorf("%w: domain and name are required", ErrInvalidRef)
	}
	if strings.Contains(domain, "/") || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %q/%q contains a separator", ErrInvalidRef, domain, name)
	}
	return domain + "/" + name, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot per Ref.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Source produces the snapshot to persist.
type Source[T any] interface {
	Export() (T, error)
}

// Sink receives a restored snapshot.
type Sink[T any] interface {
	Restore(T) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(T) error

// Restore implements Sink.
func (f SinkFunc[T]) Restore(snapshot T) error {
	if f == nil {
		return nil
	}
	return f(snapshot)
}

// Mutator edits a loaded snapshot in place.
type Mutator[T any] func(*T) error

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
