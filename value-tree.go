package remodel

import (
	"iter"

	"github.com/go-gum/remodel/codec"
)

// treeSource adapts a value of a codec tree to a Source.
type treeSource struct {
	value any
}

var _ KindSource = treeSource{}
var _ LineSource = treeSource{}

// TreeSource returns a Source reading the given codec tree.
func TreeSource(tree any) Source {
	return treeSource{value: tree}
}

func (t treeSource) Kind() ValueKind {
	switch t.value.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case codec.Number, int64, uint64, float64:
		return KindNumber
	case string:
		return KindString
	case *codec.Object:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindUnknown
	}
}

func (t treeSource) Line() int {
	if obj, ok := t.value.(*codec.Object); ok {
		return obj.Line
	}

	return 0
}

func (t treeSource) Bool() (bool, error) {
	if value, ok := t.value.(bool); ok {
		return value, nil
	}

	return false, ErrNotSupported
}

func (t treeSource) Int() (int64, error) {
	return intOf(t.value)
}

func (t treeSource) Uint() (uint64, error) {
	return uintOf(t.value)
}

func (t treeSource) Float() (float64, error) {
	return floatOf(t.value)
}

func (t treeSource) String() (string, error) {
	if value, ok := t.value.(string); ok {
		return value, nil
	}

	return "", ErrNotSupported
}

func (t treeSource) Get(key string) (Source, error) {
	obj, ok := t.value.(*codec.Object)
	if !ok {
		return nil, ErrNotSupported
	}

	value, ok := obj.Get(key)
	if !ok {
		return nil, ErrNoValue
	}

	return treeSource{value: value}, nil
}

func (t treeSource) KeyValues() (iter.Seq2[Source, Source], error) {
	obj, ok := t.value.(*codec.Object)
	if !ok {
		return nil, ErrNotSupported
	}

	it := func(yield func(Source, Source) bool) {
		for key, value := range obj.All() {
			if !yield(StringSource(key), treeSource{value: value}) {
				return
			}
		}
	}

	return it, nil
}

func (t treeSource) Iter() (iter.Seq[Source], error) {
	values, ok := t.value.([]any)
	if !ok {
		return nil, ErrNotSupported
	}

	it := func(yield func(Source) bool) {
		for _, value := range values {
			if !yield(treeSource{value: value}) {
				return
			}
		}
	}

	return it, nil
}
