package tracking

// pendingPublisher is implemented by collections that accumulate change
// payloads while a bulk scope is open.
type pendingPublisher interface {
	flushPending()
	discardPending()
}

// PublicationQueue coalesces collection change notifications raised during a
// bulk operation (query merge, import). While a scope is open every
// collection enqueues itself once and folds further deltas into a single
// pending payload; closing the outermost scope publishes one event per
// collection in first-mutation order. Nested scopes flatten into the
// outermost one.
type PublicationQueue struct {
	depth   int
	pending []pendingPublisher
}

// NewPublicationQueue returns an idle queue.
func NewPublicationQueue() *PublicationQueue {
	return &PublicationQueue{}
}

// Active reports whether a bulk scope is open.
func (q *PublicationQueue) Active() bool {
	return q != nil && q.depth > 0
}

// Depth returns the current scope nesting depth.
func (q *PublicationQueue) Depth() int {
	if q == nil {
		return 0
	}
	return q.depth
}

// Pending returns the number of collections holding a deferred payload.
func (q *PublicationQueue) Pending() int {
	if q == nil {
		return 0
	}
	return len(q.pending)
}

// Run executes fn inside a bulk scope. The scope is closed on every exit
// path, including a returned error or a panic; deltas recorded before the
// failure are still published when the outermost scope closes.
func (q *PublicationQueue) Run(fn func() error) error {
	q.begin()
	defer q.end()
	if fn == nil {
		return nil
	}
	return fn()
}

func (q *PublicationQueue) begin() {
	q.depth++
}

func (q *PublicationQueue) end() {
	if q.depth == 0 {
		return
	}
	q.depth--
	if q.depth == 0 {
		q.flush()
	}
}

func (q *PublicationQueue) enqueue(p pendingPublisher) {
	q.pending = append(q.pending, p)
}

func (q *PublicationQueue) flush() {
	pending := q.pending
	q.pending = nil
	next := 0
	// A panicking subscriber must not strand payloads on the remaining
	// collections, otherwise they would never enqueue again.
	defer func() {
		for _, p := range pending[next:] {
			p.discardPending()
		}
	}()
	for next < len(pending) {
		p := pending[next]
		next++
		p.flushPending()
	}
}
