// Package state persists entity cache snapshots.
//
// A Store[T] loads and saves exactly one snapshot per Ref. Persister[T] sits
// on top of a Store and adds what callers of the cache need: exporting a
// Source, optimistic concurrency through ETags, and restoring a snapshot into
// a Sink.
//
// Data flow:
//
//	Source.Export -> Persister.Save -> Store.Save
//	Store.Load -> Persister.Restore -> Sink.Restore
//
// ETags are derived from the JSON encoding of the snapshot, so saving the
// same content twice yields the same ETag.
package state
