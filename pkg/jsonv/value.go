// Package jsonv is an ordered JSON value model.
//
// A value is one of:
//   - nil (JSON null)
//   - bool
//   - [json.Number] (numbers keep their source text)
//   - string
//   - *[Array]
//   - *[Object] (unique keys, insertion order preserved)
//
// Parse accepts JSONC (comments, trailing commas) and Marshal writes a canonical
// indented form, so Marshal(Parse(Marshal(v))) == Marshal(v).
package jsonv

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strconv"
)

// ErrUnsupported indicates a Go value that has no JSON representation.
var ErrUnsupported = errors.New("unsupported value")

// Object is a JSON object with insertion-ordered keys.
//
// The zero value is an empty object ready to use.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{}
}

// Len returns the number of members.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns the member names in order. The slice is a copy.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// Has reports whether key is a member.
func (o *Object) Has(key string) bool {
	_, ok := o.vals[key]

	return ok
}

// Get returns the member value and whether it exists.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.vals[key]

	return v, ok
}

// Set stores value under key. Existing members keep their position,
// new members are appended.
func (o *Object) Set(key string, value any) {
	if o.vals == nil {
		o.vals = make(map[string]any)
	}

	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.vals[key] = value
}

// Delete removes key. Returns false if key was not a member.
func (o *Object) Delete(key string) bool {
	if _, ok := o.vals[key]; !ok {
		return false
	}

	delete(o.vals, key)

	idx := slices.Index(o.keys, key)
	o.keys = slices.Delete(o.keys, idx, idx+1)

	return true
}

// Rename changes the name of member from to the name to, keeping its position.
// It fails if from is absent or to already names another member.
func (o *Object) Rename(from, to string) error {
	if from == to {
		if !o.Has(from) {
			return fmt.Errorf("rename %q: no such member", from)
		}

		return nil
	}

	v, ok := o.vals[from]
	if !ok {
		return fmt.Errorf("rename %q: no such member", from)
	}

	if o.Has(to) {
		return fmt.Errorf("rename %q to %q: member exists", from, to)
	}

	idx := slices.Index(o.keys, from)
	o.keys[idx] = to

	delete(o.vals, from)
	o.vals[to] = v

	return nil
}

// Array is a JSON array.
type Array struct {
	Elems []any
}

// NewArray returns an array holding elems.
func NewArray(elems ...any) *Array {
	return &Array{Elems: elems}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.Elems)
}

// IsContainer reports whether v is an *Object or *Array.
func IsContainer(v any) bool {
	switch v.(type) {
	case *Object, *Array:
		return true
	default:
		return false
	}
}

// TypeName returns the JSON type name of v, used in error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case *Array:
		return "array"
	case *Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// From converts a Go value into the value model.
//
// Model values are deep-copied. Go maps with string keys become objects with
// keys in sorted order, slices become arrays and numeric types become
// [json.Number]. Any other type fails with [ErrUnsupported].
func From(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string, json.Number:
		return val, nil
	case *Object:
		if val == nil {
			return nil, nil
		}

		return Clone(val), nil
	case *Array:
		if val == nil {
			return nil, nil
		}

		return Clone(val), nil
	case int:
		return json.Number(strconv.Itoa(val)), nil
	case int64:
		return json.Number(strconv.FormatInt(val, 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(val), 10)), nil
	case uint:
		return json.Number(strconv.FormatUint(uint64(val), 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(val, 10)), nil
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		obj := NewObject()

		for _, k := range keys {
			conv, err := From(val[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}

			obj.Set(k, conv)
		}

		return obj, nil
	case []any:
		arr := &Array{Elems: make([]any, 0, len(val))}

		for i, elem := range val {
			conv, err := From(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}

			arr.Elems = append(arr.Elems, conv)
		}

		return arr, nil
	case []string:
		arr := &Array{Elems: make([]any, 0, len(val))}
		for _, s := range val {
			arr.Elems = append(arr.Elems, s)
		}

		return arr, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

func fromFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, f)
	}

	return json.Number(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v any) any {
	switch val := v.(type) {
	case *Object:
		out := &Object{
			keys: slices.Clone(val.keys),
			vals: make(map[string]any, len(val.vals)),
		}

		for k, child := range val.vals {
			out.vals[k] = Clone(child)
		}

		return out
	case *Array:
		out := &Array{Elems: make([]any, len(val.Elems))}
		for i, child := range val.Elems {
			out.Elems[i] = Clone(child)
		}

		return out
	default:
		return v
	}
}

// Equal reports whether a and b are the same JSON value. Object member order
// is significant, numbers compare by source text.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}

		for i, k := range av.keys {
			if bv.keys[i] != k || !Equal(av.vals[k], bv.vals[k]) {
				return false
			}
		}

		return true
	case *Array:
		bv, ok := b.(*Array)
		if !ok || av.Len() != bv.Len() {
			return false
		}

		for i := range av.Elems {
			if !Equal(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}

		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Native converts v into plain Go values (map[string]any, []any, float64,
// string, bool, nil). Member order is lost.
func Native(v any) any {
	switch val := v.(type) {
	case *Object:
		out := make(map[string]any, val.Len())
		for k, child := range val.vals {
			out[k] = Native(child)
		}

		return out
	case *Array:
		out := make([]any, len(val.Elems))
		for i, child := range val.Elems {
			out[i] = Native(child)
		}

		return out
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}

		return f
	default:
		return v
	}
}
