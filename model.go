package remodel

import (
	"maps"
	"reflect"
)

// Model is implemented by values that carry a bag of extra attributes next to their
// declared attributes. Properties a type does not declare are routed into the bag
// when decoding and written after the declared properties when encoding.
//
// Embed [Extras] into a struct to implement Model.
type Model interface {
	// ExtraAttributes returns the bag of undeclared attributes. It may return nil.
	ExtraAttributes() map[string]any

	// SetAttribute sets one undeclared attribute.
	SetAttribute(name string, value any)
}

var tyModel = reflect.TypeFor[Model]()

// Extras implements Model. The zero value is an empty bag.
type Extras struct {
	extra map[string]any
}

func (e *Extras) ExtraAttributes() map[string]any {
	return e.extra
}

func (e *Extras) SetAttribute(name string, value any) {
	if e.extra == nil {
		e.extra = map[string]any{}
	}

	e.extra[name] = value
}

// Attribute returns one undeclared attribute.
func (e *Extras) Attribute(name string) (any, bool) {
	value, ok := e.extra[name]
	return value, ok
}

// DeleteAttribute removes one undeclared attribute.
func (e *Extras) DeleteAttribute(name string) {
	delete(e.extra, name)
}

// Generic is a model without declared attributes. Objects without a discriminator
// that are decoded into a Model interface become a *Generic.
type Generic struct {
	Extras
}

var tyGeneric = reflect.TypeFor[Generic]()

// NewGeneric returns a Generic holding a copy of attributes.
func NewGeneric(attributes map[string]any) *Generic {
	return &Generic{Extras: Extras{extra: maps.Clone(attributes)}}
}
