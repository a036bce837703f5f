package tracking_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-tracking"
)

func TestPublicationQueueNestedScopesFlattenIntoOuter(t *testing.T) {
	q := tracking.NewPublicationQueue()
	if q.Active() {
		t.Fatalf("new queue must be idle")
	}
	err := q.Run(func() error {
		return q.Run(func() error {
			if q.Depth() != 2 || !q.Active() {
				t.Fatalf("expected nested depth 2, got %d", q.Depth())
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if q.Active() || q.Depth() != 0 {
		t.Fatalf("expected queue closed after outer scope")
	}
}

func TestPublicationQueueClosesOnError(t *testing.T) {
	q := tracking.NewPublicationQueue()
	boom := errors.New("boom")
	if err := q.Run(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if q.Active() {
		t.Fatalf("expected scope closed after error")
	}
	var nilQueue *tracking.PublicationQueue
	if nilQueue.Active() || nilQueue.Depth() != 0 || nilQueue.Pending() != 0 {
		t.Fatalf("nil queue must read as idle")
	}
}
