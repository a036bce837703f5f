package tracking

import "fmt"

// SubscriptionToken identifies one subscription on an Event. Tokens start at 1.
type SubscriptionToken uint64

// EventOption configures an Event.
type EventOption func(*eventConfig)

type eventConfig struct {
	onError func(error)
}

// WithErrorHandler recovers panicking subscribers, reports them to fn and
// continues delivery with the next subscriber.
func WithErrorHandler(fn func(error)) EventOption {
	return func(cfg *eventConfig) {
		cfg.onError = fn
	}
}

type subscription[T any] struct {
	token   SubscriptionToken
	handler func(T)
}

// Event is a synchronous publish/subscribe channel. Handlers run in
// subscription order on the publishing goroutine. Event is not safe for
// concurrent use.
type Event[T any] struct {
	name        string
	subscribers []subscription[T]
	nextToken   SubscriptionToken
	disabled    bool
	cfg         eventConfig
}

// NewEvent constructs a named event.
func NewEvent[T any](name string, opts ...EventOption) *Event[T] {
	cfg := eventConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Event[T]{name: name, nextToken: 1, cfg: cfg}
}

// Name returns the event name.
func (e *Event[T]) Name() string {
	return e.name
}

// Subscribe registers handler and returns the token used to unsubscribe.
// A nil handler is ignored and yields the zero token.
func (e *Event[T]) Subscribe(handler func(T)) SubscriptionToken {
	if handler == nil {
		return 0
	}
	token := e.nextToken
	e.nextToken++
	e.subscribers = append(e.subscribers, subscription[T]{token: token, handler: handler})
	return token
}

// Unsubscribe removes the subscription identified by token. It reports false
// when the token is unknown or already removed.
func (e *Event[T]) Unsubscribe(token SubscriptionToken) bool {
	for i, sub := range e.subscribers {
		if sub.token != token {
			continue
		}
		next := make([]subscription[T], 0, len(e.subscribers)-1)
		next = append(next, e.subscribers[:i]...)
		next = append(next, e.subscribers[i+1:]...)
		e.subscribers = next
		return true
	}
	return false
}

// SubscriberCount returns the number of active subscriptions.
func (e *Event[T]) SubscriberCount() int {
	return len(e.subscribers)
}

// SetEnabled toggles delivery. Disabled events drop publications.
func (e *Event[T]) SetEnabled(enabled bool) {
	e.disabled = !enabled
}

// Enabled reports whether publications are delivered.
func (e *Event[T]) Enabled() bool {
	return !e.disabled
}

// Publish delivers payload to every subscriber registered at call time. It
// reports whether any subscriber was invoked.
func (e *Event[T]) Publish(payload T) bool {
	if e == nil || e.disabled || len(e.subscribers) == 0 {
		return false
	}
	// Subscriptions added or removed by a handler apply to the next publish.
	subscribers := e.subscribers
	for _, sub := range subscribers {
		e.deliver(sub, payload)
	}
	return true
}

func (e *Event[T]) deliver(sub subscription[T], payload T) {
	if e.cfg.onError == nil {
		sub.handler(payload)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			e.cfg.onError(fmt.Errorf("tracking: unable to publish on %q: %w", e.name, err))
		}
	}()
	sub.handler(payload)
}
