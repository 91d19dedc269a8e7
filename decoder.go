package remodel

import (
	"encoding"
	"errors"
	"fmt"
	"iter"
	"math"
	"reflect"
	"strconv"
	"sync"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// A setter sets the reflect.Value to a value extracted from the given Source
type setter func(Source, reflect.Value) error

// The types of one setter build. A type maps to nil while in construction and to its
// setter once built.
type typeSet map[reflect.Type]setter

var tyTextUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()
var tyAny = reflect.TypeFor[any]()

// decoder applies sources to Go values following the policies of a profile.
type decoder struct {
	profile  Profile
	compiler *Compiler

	// Require values for declared properties. Set to true to fail with ErrNoValue
	// if a value is missing in a Source
	requireValues bool

	// Cache for setters, indexed by reflect.Type
	setterCache sync.Map
}

func newDecoder(profile Profile, compiler *Compiler, requireValues bool) *decoder {
	return &decoder{
		profile:       profile,
		compiler:      compiler,
		requireValues: requireValues,
	}
}

func (d *decoder) decode(source Source, target reflect.Value) error {
	// build the setter for the targets type
	setter, err := d.setterFor(target.Type())
	if err != nil {
		return err
	}

	return setter(source, target)
}

// setterFor returns the setter of ty. Setters of a build are published to the cache
// only after the whole build succeeded.
func (d *decoder) setterFor(ty reflect.Type) (setter, error) {
	if cached, ok := d.setterCache.Load(ty); ok {
		return cached.(setter), nil
	}

	build := typeSet{}

	setter, err := d.setterOf(build, ty)
	if err != nil {
		return nil, err
	}

	for builtType, builtSetter := range build {
		d.setterCache.LoadOrStore(builtType, builtSetter)
	}

	return setter, nil
}

func (d *decoder) setterOf(inConstruction typeSet, ty reflect.Type) (setter, error) {
	if cached, ok := d.setterCache.Load(ty); ok {
		return cached.(setter), nil
	}

	if staged, ok := inConstruction[ty]; ok {
		if staged != nil {
			return staged, nil
		}

		// detected a cycle. return a setter that looks up the setter of this build
		// when executed. the build is complete by then, or it failed and was discarded.
		lazySetter := func(source Source, target reflect.Value) error {
			built := inConstruction[ty]
			if built == nil {
				return fmt.Errorf("setter of recursive type %s: %w", ty, ErrNotSupported)
			}

			return built(source, target)
		}

		return lazySetter, nil
	}

	inConstruction[ty] = nil

	setter, err := d.makeSetterOf(inConstruction, ty)
	if err != nil {
		return nil, err
	}

	setter = nullable(setter)

	inConstruction[ty] = setter

	return setter, nil
}

// nullable resets the target to its zero value if the source holds null.
func nullable(set setter) setter {
	return func(source Source, target reflect.Value) error {
		if kindOf(source) == KindNull {
			target.SetZero()
			return nil
		}

		return set(source, target)
	}
}

func (d *decoder) makeSetterOf(inConstruction typeSet, ty reflect.Type) (setter, error) {
	if reflect.PointerTo(ty).Implements(tyTextUnmarshaler) {
		return setTextUnmarshaler, nil
	}

	switch ty.Kind() {
	case reflect.Bool:
		return setBool, nil

	case reflect.Int:
		switch unsafe.Sizeof(int(0)) {
		case 4:
			return makeSetInt(IntSource.Int32, reflect.Value.SetInt, math.MinInt, math.MaxInt), nil
		case 8:
			return makeSetInt(IntSource.Int64, reflect.Value.SetInt, math.MinInt, math.MaxInt), nil
		default:
			panic("int must be 4 or 8 byte")
		}

	case reflect.Int8:
		return makeSetInt(IntSource.Int8, reflect.Value.SetInt, math.MinInt8, math.MaxInt8), nil

	case reflect.Int16:
		return makeSetInt(IntSource.Int16, reflect.Value.SetInt, math.MinInt16, math.MaxInt16), nil

	case reflect.Int32:
		return makeSetInt(IntSource.Int32, reflect.Value.SetInt, math.MinInt32, math.MaxInt32), nil

	case reflect.Int64:
		return makeSetInt(IntSource.Int64, reflect.Value.SetInt, math.MinInt64, math.MaxInt64), nil

	case reflect.Uint:
		switch unsafe.Sizeof(uint(0)) {
		case 4:
			return makeSetUint(IntSource.Uint32, math.MaxUint), nil
		case 8:
			return makeSetUint(IntSource.Uint64, math.MaxUint), nil
		default:
			panic("uint must be 4 or 8 byte")
		}

	case reflect.Uint8:
		return makeSetUint(IntSource.Uint8, math.MaxUint8), nil

	case reflect.Uint16:
		return makeSetUint(IntSource.Uint16, math.MaxUint16), nil

	case reflect.Uint32:
		return makeSetUint(IntSource.Uint32, math.MaxUint32), nil

	case reflect.Uint64:
		return makeSetUint(IntSource.Uint64, math.MaxUint64), nil

	case reflect.Float32, reflect.Float64:
		return setFloat, nil

	case reflect.String:
		return setString, nil

	case reflect.Interface:
		return d.makeSetInterface(ty)

	case reflect.Pointer:
		return d.makeSetPointer(inConstruction, ty)

	case reflect.Struct:
		return d.makeSetStruct(inConstruction, ty)

	case reflect.Slice:
		return d.makeSetSlice(inConstruction, ty)

	case reflect.Array:
		return d.makeSetArray(inConstruction, ty)

	case reflect.Map:
		return d.makeSetMap(inConstruction, ty)

	default:
		return nil, NotSupportedError{Type: ty}
	}
}

func (d *decoder) makeSetStruct(inConstruction typeSet, ty reflect.Type) (setter, error) {
	desc, err := d.compiler.DescriptorOf(ty, false)
	if err != nil {
		return nil, fmt.Errorf("descriptor of %s: %w", ty, err)
	}

	setters := make([]setter, 0, len(desc.properties))

	for _, prop := range desc.properties {
		de, err := d.setterOf(inConstruction, prop.ty)
		if err != nil {
			return nil, fmt.Errorf("setter for field %q: %w", prop.name, err)
		}

		setters = append(setters, de)
	}

	// undeclared properties need a second pass over the source
	visitUnknown := desc.extras || d.profile.UnknownFields == UnknownFieldsFail

	setter := func(source Source, target reflect.Value) error {
		if kind := kindOf(source); kind != KindUnknown && kind != KindObject {
			return withLine(source, fmt.Errorf("%s value for %s: %w", kind, ty, ErrNotSupported))
		}

		if d.profile.inline() {
			if err := d.checkDiscriminator(source, desc); err != nil {
				return withLine(source, err)
			}
		}

		for idx, prop := range desc.properties {
			fieldSource, err := source.Get(prop.name)
			switch {
			case errors.Is(err, ErrNoValue):
				if d.requireValues {
					return withLine(source, fmt.Errorf("field %q: %w", prop.name, err))
				}

				// It is okay to not get a value at all,
				// in that case we just skip the field
				continue

			case err != nil:
				return withLine(source, fmt.Errorf("lookup child %q: %w", prop.name, err))
			}

			fieldValue := target.FieldByIndex(prop.index)
			if err := setters[idx](fieldSource, fieldValue); err != nil {
				return withLine(source, fmt.Errorf("set field %q on %q: %w", prop.name, target.Type(), err))
			}
		}

		if !visitUnknown {
			return nil
		}

		keyValues, err := source.KeyValues()
		switch {
		case errors.Is(err, ErrNotSupported):
			// the source can not list its properties
			return nil

		case err != nil:
			return withLine(source, fmt.Errorf("iterate properties: %w", err))
		}

		for keySource, valueSource := range keyValues {
			key, err := keySource.String()
			if err != nil {
				return withLine(source, fmt.Errorf("property name: %w", err))
			}

			if key == DiscriminatorKey || desc.Declares(key) {
				continue
			}

			if !desc.extras {
				return withLine(source, fmt.Errorf("property %q of %q: %w", key, desc.typeID, ErrUnknownField))
			}

			value, err := d.decodeDynamic(valueSource, tyAny)
			if err != nil {
				return withLine(source, fmt.Errorf("set extra attribute %q on %q: %w", key, target.Type(), err))
			}

			target.Addr().Interface().(Model).SetAttribute(key, value)
		}

		return nil
	}

	return setter, nil
}

// checkDiscriminator verifies that a discriminator, if present, names the type being decoded.
func (d *decoder) checkDiscriminator(source Source, desc *Descriptor) error {
	typeID, ok, err := discriminatorOf(source)
	if err != nil || !ok || typeID == desc.typeID {
		return err
	}

	if _, err := d.compiler.Resolve(typeID, d.profile.TagImplicit); err != nil {
		return err
	}

	return fmt.Errorf("discriminator %q on type %q: %w", typeID, desc.typeID, ErrDiscriminatorMismatch)
}

// discriminatorOf reads the discriminator of an object source.
func discriminatorOf(source Source) (string, bool, error) {
	value, err := source.Get(DiscriminatorKey)
	switch {
	case errors.Is(err, ErrNoValue), errors.Is(err, ErrNotSupported):
		return "", false, nil

	case err != nil:
		return "", false, fmt.Errorf("lookup discriminator: %w", err)
	}

	if kindOf(value) == KindNull {
		return "", false, nil
	}

	typeID, err := value.String()
	if err != nil {
		return "", false, fmt.Errorf("discriminator: %w", err)
	}

	return typeID, true, nil
}

func (d *decoder) makeSetInterface(ty reflect.Type) (setter, error) {
	// non-empty interfaces need a type that can implement them
	if ty.NumMethod() > 0 && !reflect.PointerTo(tyGeneric).Implements(ty) && !d.compiler.implements(ty) {
		return nil, NotSupportedError{Type: ty}
	}

	setter := func(source Source, target reflect.Value) error {
		value, err := d.decodeDynamic(source, ty)
		if err != nil {
			return err
		}

		if value == nil {
			target.SetZero()
			return nil
		}

		rv := reflect.ValueOf(value)
		if !rv.Type().AssignableTo(ty) {
			return fmt.Errorf("value of type %s is not assignable to %s: %w", rv.Type(), ty, ErrNotSupported)
		}

		target.Set(rv)
		return nil
	}

	return setter, nil
}

// decodeDynamic builds a value for an interface type from the kind of the source.
// Objects with a discriminator become a pointer to the named type.
func (d *decoder) decodeDynamic(source Source, static reflect.Type) (any, error) {
	switch kindOf(source) {
	case KindNull:
		return nil, nil

	case KindBool:
		boolValue, err := source.Bool()
		if err != nil {
			return nil, fmt.Errorf("get bool value: %w", err)
		}

		return boolValue, nil

	case KindNumber:
		return dynamicNumber(source)

	case KindArray:
		sourceIter, err := source.Iter()
		if err != nil {
			return nil, fmt.Errorf("as iter: %w", err)
		}

		values := []any{}
		for elementSource := range sourceIter {
			value, err := d.decodeDynamic(elementSource, tyAny)
			if err != nil {
				return nil, fmt.Errorf("element idx=%d: %w", len(values), err)
			}

			values = append(values, value)
		}

		return values, nil

	case KindObject:
		return d.decodeDynamicObject(source, static)

	default:
		// strings and sources that do not know their kind
		stringValue, err := source.String()
		if err != nil {
			return nil, fmt.Errorf("get string value: %w", err)
		}

		return stringValue, nil
	}
}

func (d *decoder) decodeDynamicObject(source Source, static reflect.Type) (any, error) {
	if d.profile.inline() {
		typeID, ok, err := discriminatorOf(source)
		if err != nil {
			return nil, withLine(source, err)
		}

		if ok {
			desc, err := d.compiler.Resolve(typeID, d.profile.TagImplicit)
			if err != nil {
				return nil, withLine(source, err)
			}

			target := reflect.New(desc.ty)
			if err := d.decode(source, target.Elem()); err != nil {
				return nil, err
			}

			return target.Interface(), nil
		}
	}

	if static != tyAny && reflect.PointerTo(tyGeneric).Implements(static) {
		generic := &Generic{}
		if err := d.decode(source, reflect.ValueOf(generic).Elem()); err != nil {
			return nil, err
		}

		return generic, nil
	}

	keyValues, err := source.KeyValues()
	if err != nil {
		return nil, withLine(source, fmt.Errorf("iterate key/value pairs: %w", err))
	}

	values := map[string]any{}
	for keySource, valueSource := range keyValues {
		key, err := keySource.String()
		if err != nil {
			return nil, withLine(source, fmt.Errorf("property name: %w", err))
		}

		value, err := d.decodeDynamic(valueSource, tyAny)
		if err != nil {
			return nil, withLine(source, fmt.Errorf("property %q: %w", key, err))
		}

		values[key] = value
	}

	return values, nil
}

func (d *decoder) makeSetMap(inConstruction typeSet, ty reflect.Type) (setter, error) {
	keySetter, err := d.setterOf(inConstruction, ty.Key())
	if err != nil {
		return nil, fmt.Errorf("setter for key type %q: %w", ty, err)
	}

	valueSetter, err := d.setterOf(inConstruction, ty.Elem())
	if err != nil {
		return nil, fmt.Errorf("setter for value type %q: %w", ty, err)
	}

	keyType := ty.Key()
	valueType := ty.Elem()

	setter := func(source Source, target reflect.Value) error {
		keyValues, err := source.KeyValues()
		if err != nil {
			return withLine(source, fmt.Errorf("iterate key/value pairs: %w", err))
		}

		mapTarget := reflect.MakeMap(ty)

		for keySource, valueSource := range keyValues {
			keyTarget := reflect.New(keyType).Elem()
			if err := keySetter(keySource, keyTarget); err != nil {
				return withLine(source, fmt.Errorf("set key: %w", err))
			}

			valueTarget := reflect.New(valueType).Elem()
			if err := valueSetter(valueSource, valueTarget); err != nil {
				return withLine(source, fmt.Errorf("set value of key %v: %w", keyTarget, err))
			}

			mapTarget.SetMapIndex(keyTarget, valueTarget)
		}

		target.Set(mapTarget)

		return nil
	}

	return setter, nil
}

func (d *decoder) makeSetSlice(inConstruction typeSet, ty reflect.Type) (setter, error) {
	elementSetter, err := d.setterOf(inConstruction, ty.Elem())
	if err != nil {
		return nil, fmt.Errorf("setter for element type %q: %w", ty, err)
	}

	// a empty element
	placeholderValue := reflect.New(ty.Elem()).Elem()

	setter := func(source Source, target reflect.Value) error {
		sourceIter, err := source.Iter()
		if err != nil {
			return fmt.Errorf("as iter: %w", err)
		}

		// the decoded elements replace any previous content
		values := reflect.New(ty).Elem()
		values.Set(reflect.MakeSlice(ty, 0, 0))

		for elementSource := range sourceIter {
			// add an empty element to grow the list
			values.Set(reflect.Append(values, placeholderValue))

			idx := values.Len() - 1
			elementValue := values.Index(idx)
			if err := elementSetter(elementSource, elementValue); err != nil {
				return fmt.Errorf("set element idx=%d: %w", idx, err)
			}
		}

		target.Set(values)

		return nil
	}

	return setter, nil
}

func (d *decoder) makeSetArray(inConstruction typeSet, ty reflect.Type) (setter, error) {
	elementSetter, err := d.setterOf(inConstruction, ty.Elem())
	if err != nil {
		return nil, fmt.Errorf("setter for element type %q: %w", ty, err)
	}

	// number of elements in the array
	elementCount := ty.Len()

	setter := func(source Source, target reflect.Value) error {
		sourceIter, err := source.Iter()
		if err != nil {
			return fmt.Errorf("as iter: %w", err)
		}

		next, stop := iter.Pull(sourceIter)
		defer stop()

		for idx := 0; idx < elementCount; idx++ {
			elementSource, ok := next()
			if !ok {
				break
			}

			elementValue := target.Index(idx)
			if err := elementSetter(elementSource, elementValue); err != nil {
				return fmt.Errorf("set element idx=%d: %w", idx, err)
			}
		}

		return nil
	}

	return setter, nil
}

func (d *decoder) makeSetPointer(inConstruction typeSet, ty reflect.Type) (setter, error) {
	pointeeType := ty.Elem()

	pointeeSetter, err := d.setterOf(inConstruction, pointeeType)
	if err != nil {
		return nil, err
	}

	setter := func(source Source, target reflect.Value) error {
		// newValue is now a pointer to an instance of the pointeeType
		newValue := reflect.New(pointeeType)
		if err := pointeeSetter(source, newValue.Elem()); err != nil {
			return err
		}

		// set pointer to the new value
		target.Set(newValue)

		return nil
	}

	return setter, nil
}

func setBool(source Source, target reflect.Value) error {
	boolValue, err := source.Bool()
	if err != nil {
		return fmt.Errorf("get bool value: %w", err)
	}

	target.SetBool(boolValue)
	return nil
}

func makeSetInt[T constraints.Signed](
	parse func(IntSource) (T, error),
	setValue func(reflect.Value, int64),
	minValue, maxValue int64,
) setter {
	return func(source Source, target reflect.Value) error {
		if intSource, ok := source.(IntSource); ok {
			parsedValue, err := parse(intSource)
			if err != nil {
				return fmt.Errorf("get %T value: %w", parsedValue, err)
			}

			setValue(target, int64(parsedValue))
			return nil
		}

		// no int source, need to fallback to Source.Int
		intValue, err := source.Int()
		if err != nil {
			return fmt.Errorf("get int value: %w", err)
		}

		if intValue < minValue || intValue > maxValue {
			return fmt.Errorf("invalid %s value %d: %w", target.Type(), intValue, strconv.ErrRange)
		}

		setValue(target, intValue)
		return nil
	}
}

func makeSetUint[T constraints.Unsigned](parse func(IntSource) (T, error), maxValue uint64) setter {
	return func(source Source, target reflect.Value) error {
		if intSource, ok := source.(IntSource); ok {
			parsedValue, err := parse(intSource)
			if err != nil {
				return fmt.Errorf("get %T value: %w", parsedValue, err)
			}

			target.SetUint(uint64(parsedValue))
			return nil
		}

		// no int source, need to fallback to Source.Uint
		uintValue, err := source.Uint()
		if err != nil {
			return fmt.Errorf("get uint value: %w", err)
		}

		if uintValue > maxValue {
			return fmt.Errorf("invalid %s value %d: %w", target.Type(), uintValue, strconv.ErrRange)
		}

		target.SetUint(uintValue)
		return nil
	}
}

func setFloat(source Source, target reflect.Value) error {
	floatValue, err := source.Float()
	if err != nil {
		return fmt.Errorf("get float value: %w", err)
	}

	if target.OverflowFloat(floatValue) {
		return fmt.Errorf("invalid %s value %v: %w", target.Type(), floatValue, strconv.ErrRange)
	}

	target.SetFloat(floatValue)
	return nil
}

func setString(source Source, target reflect.Value) error {
	stringValue, err := source.String()
	if err != nil {
		return fmt.Errorf("get string value: %w", err)
	}

	target.SetString(stringValue)

	return nil
}

func setTextUnmarshaler(source Source, target reflect.Value) error {
	text, err := source.String()
	if err != nil {
		return fmt.Errorf("get string value: %w", err)
	}

	m := target.Addr().Interface().(encoding.TextUnmarshaler)
	return m.UnmarshalText([]byte(text))
}
