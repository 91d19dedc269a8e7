package remodel

import "iter"

// Source represents the abstract interface to a serialized data source. Decoded text is
// exposed as a Source before it is applied to Go values, and [Mapper.Unmarshal] accepts
// any other implementation, e.g. URL query values or request path parameters.
//
// A [Source] provides methods to interpret the source data in different forms:
//   - **Primitive types**: Supports conversion to basic Go types such as `bool`, `int`, `uint`,
//     `float`, and `string`.
//   - **Objects**: Accesses nested data structures using [Source.Get], which retrieves
//     a value corresponding to a specified key.
//   - **Slices**: Iterates over list-like structures using [Source.Iter].
//   - **Maps**: Handles key-value pairs via [Source.KeyValues]. Struct targets use it to find
//     properties they do not declare.
//
// If converting the [Source] into a particular type isn't possible, the method must return
// [ErrNotSupported] as the error.
//
// There is no requirement for [Source] methods to be idempotent. A binary Source may stream
// data from an [io.Reader] as it is asked for values.
//
// The package includes ready-to-use implementations that can be embedded:
//
//  1. **[StringSource]**: parses strings into integers, floats and booleans using `strconv`.
//  2. **[EmptySource]**: returns [ErrNotSupported] for all methods.
type Source interface {
	// Bool returns the current value as a bool.
	// Returns error ErrNotSupported if the value can not be represented as such.
	Bool() (bool, error)

	// Int returns the current value as an int64.
	// Returns error ErrNotSupported if the value can not be represented as such.
	Int() (int64, error)

	// Uint returns the current value as an uint64.
	// Returns error ErrNotSupported if the value can not be represented as such.
	Uint() (uint64, error)

	// Float returns the current value as a float64.
	// Returns error ErrNotSupported if the value can not be represented as such.
	Float() (float64, error)

	// String returns the current value as a string.
	// Returns error ErrNotSupported if the value can not be represented as such.
	String() (string, error)

	// Get returns a child value of this [Source] if it exists.
	// Returns error [ErrNotSupported] if the current [Source] does not have any
	// child values. If the [Source] does have children, but just not the
	// requested child, [ErrNoValue] must be returned.
	Get(key string) (Source, error)

	// KeyValues interprets the [Source] as a map and iterates over the
	// elements within. It yields a pair of key and value [Source] instances.
	// Returns [ErrNotSupported] if the [Source] is not iterable.
	KeyValues() (iter.Seq2[Source, Source], error)

	// Iter interprets the [Source] as a slice and iterates over the
	// elements within.
	// Returns [ErrNotSupported] if the [Source] is not iterable.
	Iter() (iter.Seq[Source], error)
}

// IntSource extends the [Source] interface by adding methods for extracting
// integer values of specific bit sizes. This is valuable for decoding binary formats
// where the size of a value is dictated by the target type.
//
// Sized methods are preferred over [Source.Int] and [Source.Uint] when present.
type IntSource interface {
	Source

	Int8() (int8, error)
	Int16() (int16, error)
	Int32() (int32, error)
	Int64() (int64, error)

	Uint8() (uint8, error)
	Uint16() (uint16, error)
	Uint32() (uint32, error)
	Uint64() (uint64, error)
}

// ValueKind classifies the value behind a [KindSource].
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// KindSource is implemented by sources that know the kind of their value. Null values
// reset the target to its zero value, and values decoded into an interface are
// built from the kind.
type KindSource interface {
	Source
	Kind() ValueKind
}

// LineSource is implemented by sources that know the line their value was read from.
// The line is attached to decode errors.
type LineSource interface {
	Source
	Line() int
}

func kindOf(source Source) ValueKind {
	if src, ok := source.(KindSource); ok {
		return src.Kind()
	}

	return KindUnknown
}
