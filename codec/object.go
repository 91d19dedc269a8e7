package codec

import (
	"iter"
	"slices"
	"strconv"
)

// Number holds the literal of a decoded number.
type Number string

// Int64 parses the literal as a base 10 integer.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Uint64 parses the literal as an unsigned base 10 integer.
func (n Number) Uint64() (uint64, error) {
	return strconv.ParseUint(string(n), 10, 64)
}

// Float64 parses the literal as a float.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Object is an object node of the value tree. The zero value is an empty object.
type Object struct {
	// Line of the opening brace in the decoded text, zero if unknown.
	Line int

	keys   []string
	values map[string]any
}

// NewObject returns an empty object with room for size properties.
func NewObject(size int) *Object {
	return &Object{
		keys:   make([]string, 0, size),
		values: make(map[string]any, size),
	}
}

// Set sets a property. A new key is appended, an existing key keeps its position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = map[string]any{}
	}

	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.values[key] = value
}

// Get returns the value of a property.
func (o *Object) Get(key string) (any, bool) {
	value, ok := o.values[key]
	return value, ok
}

// Delete removes a property.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}

	delete(o.values, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// Len returns the number of properties.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns a copy of the keys in order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// All iterates the properties in order.
func (o *Object) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range o.keys {
			if !yield(key, o.values[key]) {
				return
			}
		}
	}
}

// orderedKeys returns the keys with first moved to the front, if present.
func (o *Object) orderedKeys(first string) []string {
	if first == "" {
		return o.keys
	}

	idx := slices.Index(o.keys, first)
	if idx <= 0 {
		return o.keys
	}

	keys := make([]string, 0, len(o.keys))
	keys = append(keys, first)
	keys = append(keys, o.keys[:idx]...)
	keys = append(keys, o.keys[idx+1:]...)
	return keys
}
