package remodel

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"

	"github.com/go-gum/remodel/codec"
)

var tyTextMarshaler = reflect.TypeFor[encoding.TextMarshaler]()
var tyObject = reflect.TypeFor[*codec.Object]()

// encoder turns Go values into a codec tree following the policies of a profile.
type encoder struct {
	profile  Profile
	compiler *Compiler
}

// encodeState tracks the references being written to detect cycles.
type encodeState struct {
	*encoder
	active map[any]struct{}
}

// sliceRef identifies a slice by its backing array and length.
type sliceRef struct {
	ptr uintptr
	len int
}

func (e *encoder) encode(value any) (any, error) {
	state := encodeState{encoder: e, active: map[any]struct{}{}}
	return state.encodeValue(reflect.ValueOf(value), false)
}

// encodeValue returns the tree of v. tag forces a discriminator on struct values.
func (s *encodeState) encodeValue(v reflect.Value, tag bool) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Type() == tyObject {
		// already a tree
		if v.IsNil() {
			return nil, nil
		}

		return v.Interface(), nil
	}

	if text, ok, err := marshalText(v); ok {
		return text, err
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	case reflect.String:
		return v.String(), nil

	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}

		return s.encodeValue(v.Elem(), tag)

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}

		release, err := s.enter(v.Pointer(), v.Type())
		if err != nil {
			return nil, err
		}

		defer release()

		return s.encodeValue(v.Elem(), tag)

	case reflect.Struct:
		return s.encodeStruct(v, tag)

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}

		release, err := s.enter(v.Pointer(), v.Type())
		if err != nil {
			return nil, err
		}

		defer release()

		return s.encodeMap(v, tag)

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}

		if v.Len() > 0 {
			release, err := s.enter(sliceRef{ptr: v.Pointer(), len: v.Len()}, v.Type())
			if err != nil {
				return nil, err
			}

			defer release()
		}

		return s.encodeElements(v, tag)

	case reflect.Array:
		return s.encodeElements(v, tag)

	default:
		return nil, NotSupportedError{Type: v.Type()}
	}
}

// enter marks a reference as being written. The returned func must be called once the
// reference is written.
func (s *encodeState) enter(ref any, ty reflect.Type) (func(), error) {
	if _, ok := s.active[ref]; ok {
		return nil, fmt.Errorf("value of type %s: %w", ty, ErrCycle)
	}

	s.active[ref] = struct{}{}
	return func() { delete(s.active, ref) }, nil
}

func marshalText(v reflect.Value) (string, bool, error) {
	var marshaler encoding.TextMarshaler

	switch {
	case v.Kind() == reflect.Pointer && v.IsNil():
		return "", false, nil

	case v.Type().Implements(tyTextMarshaler):
		if v.Kind() == reflect.Interface && v.IsNil() {
			return "", false, nil
		}

		marshaler = v.Interface().(encoding.TextMarshaler)

	case v.CanAddr() && reflect.PointerTo(v.Type()).Implements(tyTextMarshaler):
		marshaler = v.Addr().Interface().(encoding.TextMarshaler)

	default:
		return "", false, nil
	}

	text, err := marshaler.MarshalText()
	if err != nil {
		return "", true, fmt.Errorf("marshal %s as text: %w", v.Type(), err)
	}

	return string(text), true, nil
}

func (s *encodeState) encodeStruct(v reflect.Value, tag bool) (any, error) {
	desc, err := s.compiler.DescriptorOf(v.Type(), false)
	if err != nil {
		return nil, fmt.Errorf("descriptor of %s: %w", v.Type(), err)
	}

	obj := codec.NewObject(len(desc.properties) + 1)

	if s.profile.inline() && (desc.registered || s.profile.TagImplicit || tag) {
		obj.Set(DiscriminatorKey, desc.typeID)
	}

	for _, prop := range desc.properties {
		field := v.FieldByIndex(prop.index)
		if prop.omitEmpty && field.IsZero() {
			continue
		}

		value, err := s.encodeValue(field, prop.nested)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: %w", prop.name, desc.typeID, err)
		}

		// nulls are not written
		if value == nil {
			continue
		}

		obj.Set(prop.name, value)
	}

	if !desc.extras {
		return obj, nil
	}

	extra := modelOf(v).ExtraAttributes()

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if key == DiscriminatorKey || desc.Declares(key) {
			return nil, &AttributeNameCollisionError{
				TypeID: desc.typeID,
				Name:   key,
				Reason: "extra attribute shadows a declared property",
			}
		}

		value, err := s.encodeValue(reflect.ValueOf(extra[key]), false)
		if err != nil {
			return nil, fmt.Errorf("extra attribute %q of %q: %w", key, desc.typeID, err)
		}

		if value == nil {
			continue
		}

		obj.Set(key, value)
	}

	return obj, nil
}

// modelOf returns the Model implemented by the pointer to v.
func modelOf(v reflect.Value) Model {
	if v.CanAddr() {
		return v.Addr().Interface().(Model)
	}

	// copy values that are not addressable. the bag is shared with the original
	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)
	return ptr.Interface().(Model)
}

func (s *encodeState) encodeMap(v reflect.Value, tag bool) (any, error) {
	type entry struct {
		key   string
		value reflect.Value
	}

	entries := make([]entry, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKeyOf(iter.Key())
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry{key: key, value: iter.Value()})
	}

	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		default:
			return 0
		}
	})

	obj := codec.NewObject(len(entries))

	for _, entry := range entries {
		value, err := s.encodeValue(entry.value, tag)
		if err != nil {
			return nil, fmt.Errorf("map key %q: %w", entry.key, err)
		}

		obj.Set(entry.key, value)
	}

	return obj, nil
}

func mapKeyOf(key reflect.Value) (string, error) {
	if text, ok, err := marshalText(key); ok {
		return text, err
	}

	switch key.Kind() {
	case reflect.String:
		return key.String(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(key.Int(), 10), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(key.Uint(), 10), nil

	case reflect.Interface:
		if !key.IsNil() {
			return mapKeyOf(key.Elem())
		}
	}

	return "", fmt.Errorf("map key: %w", NotSupportedError{Type: key.Type()})
}

func (s *encodeState) encodeElements(v reflect.Value, tag bool) (any, error) {
	values := make([]any, 0, v.Len())

	for idx := range v.Len() {
		value, err := s.encodeValue(v.Index(idx), tag)
		if err != nil {
			return nil, fmt.Errorf("element idx=%d: %w", idx, err)
		}

		values = append(values, value)
	}

	return values, nil
}
