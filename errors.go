package remodel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var ErrNoValue = errors.New("no value")
var ErrNotSupported = errors.New("not supported")

// ErrUnknownField is returned when a profile that fails on unknown fields meets a property
// the type does not declare and the type has no extra attribute bag.
var ErrUnknownField = errors.New("unknown field")

// ErrCycle is returned when a value references itself and can not be written.
var ErrCycle = errors.New("reference cycle")

// ErrDiscriminatorMismatch is returned when a discriminator names a registered type
// other than the static type being decoded.
var ErrDiscriminatorMismatch = errors.New("discriminator mismatch")

type NotSupportedError struct {
	Type reflect.Type
}

func (n NotSupportedError) Error() string {
	return fmt.Sprintf("type %q is not supported", n.Type)
}

// MetaNotFoundError is returned when no Meta is registered for a type id or Go type.
type MetaNotFoundError struct {
	TypeID string
	GoType reflect.Type
}

func (e *MetaNotFoundError) Error() string {
	if e.TypeID == "" && e.GoType != nil {
		return fmt.Sprintf("no meta registered for go type %s", e.GoType)
	}

	return fmt.Sprintf("no meta registered for type id %q", e.TypeID)
}

// AttributeNameCollisionError is returned when an attribute name is empty, reserved
// or used twice for the same type.
type AttributeNameCollisionError struct {
	TypeID string
	Name   string
	Reason string
}

func (e *AttributeNameCollisionError) Error() string {
	return fmt.Sprintf("type %q: attribute %q: %s", e.TypeID, e.Name, e.Reason)
}

// InvalidMetaError is returned when a Meta does not describe a usable Go type.
type InvalidMetaError struct {
	TypeID string
	Reason string
}

func (e *InvalidMetaError) Error() string {
	return fmt.Sprintf("invalid meta %q: %s", e.TypeID, e.Reason)
}

// UnknownTypeError is returned when a discriminator names a type that is not registered.
type UnknownTypeError struct {
	TypeID string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.TypeID)
}

// PartialUpdateConflictError is returned when an update carries a discriminator
// naming another type than the update target.
type PartialUpdateConflictError struct {
	TargetTypeID string
	SourceTypeID string
}

func (e *PartialUpdateConflictError) Error() string {
	return fmt.Sprintf("can not update %q with a value of type %q", e.TargetTypeID, e.SourceTypeID)
}

// SerializationError wraps any failure to write a value.
type SerializationError struct {
	Type reflect.Type
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %s", typeName(e.Type), e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// DeserializationError wraps any failure to read a value. Line is the line of the
// innermost object that was decoded when the failure occurred, zero if unknown.
type DeserializationError struct {
	Source string
	Line   int
	Column int
	Err    error
}

func (e *DeserializationError) Error() string {
	var b strings.Builder
	b.WriteString("deserialize")

	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}

	if e.Line > 0 {
		fmt.Fprintf(&b, " on line %d", e.Line)
	}

	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// lineError attaches the line of the object being decoded to an error.
// It does not change the message.
type lineError struct {
	line int
	err  error
}

func (e *lineError) Error() string {
	return e.err.Error()
}

func (e *lineError) Unwrap() error {
	return e.err
}

// withLine wraps err with the line of source, unless a line is already attached.
func withLine(source Source, err error) error {
	var lined *lineError
	if errors.As(err, &lined) {
		return err
	}

	if src, ok := source.(LineSource); ok && src.Line() > 0 {
		return &lineError{line: src.Line(), err: err}
	}

	return err
}

func lineOf(err error) int {
	var lined *lineError
	if errors.As(err, &lined) {
		return lined.line
	}

	return 0
}

func typeName(ty reflect.Type) string {
	if ty == nil {
		return "nil"
	}

	return ty.String()
}
