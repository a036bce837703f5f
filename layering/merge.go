// Package layering overlays partially populated configuration values.
//
// Layers are ordered strongest first. A nil pointer, map, slice or interface
// in a stronger layer is treated as "unset" and inherits the weaker value;
// structs merge field by field; every other kind is taken from the strongest
// layer as is.
package layering

import "reflect"

// Merge overlays layers, strongest first, and returns a deep copy that never
// aliases any input.
func Merge[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}
	target := reflect.TypeOf(&zero).Elem()
	out := deepCopy(reflect.ValueOf(&layers[len(layers)-1]).Elem())
	for i := len(layers) - 2; i >= 0; i-- {
		out = overlay(reflect.ValueOf(&layers[i]).Elem(), out)
	}
	if !out.IsValid() {
		return zero
	}
	result := reflect.New(target).Elem()
	result.Set(out)
	return result.Interface().(T)
}

// Clone returns a deep copy of value.
func Clone[T any](value T) T {
	return Merge(value)
}

func isUnset(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func overlay(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() || isUnset(strong) {
		if weak.IsValid() && (!strong.IsValid() || weak.Type() == strong.Type()) {
			return deepCopy(weak)
		}
		return deepCopy(strong)
	}
	sameType := weak.IsValid() && weak.Type() == strong.Type() && !isUnset(weak)

	switch strong.Kind() {
	case reflect.Pointer:
		var inner reflect.Value
		if sameType {
			inner = weak.Elem()
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(overlay(strong.Elem(), inner))
		return out
	case reflect.Struct:
		out := deepCopy(strong)
		for i := range strong.NumField() {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			var inner reflect.Value
			if sameType {
				inner = weak.Field(i)
			}
			field.Set(overlay(strong.Field(i), inner))
		}
		return out
	case reflect.Map:
		out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if sameType {
			for it := weak.MapRange(); it.Next(); {
				out.SetMapIndex(it.Key(), deepCopy(it.Value()))
			}
		}
		for it := strong.MapRange(); it.Next(); {
			if existing := out.MapIndex(it.Key()); existing.IsValid() {
				out.SetMapIndex(it.Key(), overlay(it.Value(), existing))
				continue
			}
			out.SetMapIndex(it.Key(), deepCopy(it.Value()))
		}
		return out
	default:
		// Slices replace rather than append; scalars always win.
		return deepCopy(strong)
	}
}

func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range v.NumField() {
			if field := out.Field(i); field.CanSet() {
				field.Set(deepCopy(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for it := v.MapRange(); it.Next(); {
			out.SetMapIndex(it.Key(), deepCopy(it.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := range v.Len() {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
