// Package hydrate turns exported entity values back into typed structs.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the record being decoded.
type Context struct {
	Type string
	ID   string
}

func (c Context) label() string {
	if c.Type == "" && c.ID == "" {
		return "<record>"
	}
	return c.Type + ":" + c.ID
}

// PreHook lets callers rename or normalise values before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON round trip.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts record values into T through a JSON round trip, so T's
// json tags define the mapping.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	configure []func(*json.Decoder)
	custom    CustomDecoder[T]
}

// WithPreHook runs hook before decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook runs hook after decoding.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber keeps numbers as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configure = append(d.configure, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields rejects values without a matching field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configure = append(d.configure, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithCustomDecoder replaces the JSON round trip.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a decoder.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts values into T. values is never mutated.
func (d *Decoder[T]) Decode(ctx Context, values map[string]any) (T, error) {
	var zero T
	if values == nil {
		return zero, fmt.Errorf("hydrate: values are nil for %s", ctx.label())
	}

	current, err := clone(values)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone values for %s: %w", ctx.label(), err)
	}
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s: %w", ctx.label(), err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		if result, err = d.custom(ctx, current); err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %s: %w", ctx.label(), err)
		}
	} else if result, err = d.roundTrip(current); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s: %w", ctx.label(), err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) roundTrip(values map[string]any) (T, error) {
	var result T
	raw, err := json.Marshal(values)
	if err != nil {
		return result, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	for _, configure := range d.configure {
		configure(dec)
	}
	err = dec.Decode(&result)
	return result, err
}

func clone(values map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
