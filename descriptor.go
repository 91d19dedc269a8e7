package remodel

import (
	"reflect"
	"slices"
	"strings"
)

// DiscriminatorKey is the reserved property naming the type id of a serialized value.
const DiscriminatorKey = "@c"

// property is one declared property of a descriptor.
type property struct {
	name      string
	index     []int
	ty        reflect.Type
	nested    bool
	omitEmpty bool
}

// Descriptor holds the compiled serialization rules of one type. It is immutable.
type Descriptor struct {
	typeID     string
	ty         reflect.Type
	properties []property
	byName     map[string]int
	extras     bool
	registered bool
}

// TypeID returns the id written as discriminator.
func (d *Descriptor) TypeID() string {
	return d.typeID
}

// Type returns the struct type described.
func (d *Descriptor) Type() reflect.Type {
	return d.ty
}

// PropertyOrder returns the names of the declared properties in the order they are written.
func (d *Descriptor) PropertyOrder() []string {
	names := make([]string, 0, len(d.properties))
	for _, prop := range d.properties {
		names = append(names, prop.name)
	}

	return names
}

func (d *Descriptor) DiscriminatorKey() string {
	return DiscriminatorKey
}

// BindsExtraAttributes reports whether the type implements Model, so undeclared
// properties are routed into its bag.
func (d *Descriptor) BindsExtraAttributes() bool {
	return d.extras
}

// Registered reports whether the descriptor was compiled from a registered Meta.
func (d *Descriptor) Registered() bool {
	return d.registered
}

// Declares reports whether name is a declared property.
func (d *Descriptor) Declares(name string) bool {
	_, ok := d.byName[name]
	return ok
}

func (d *Descriptor) String() string {
	return d.typeID + "{" + strings.Join(d.PropertyOrder(), ", ") + "}"
}

func newDescriptor(typeID string, ty reflect.Type, properties []property, registered bool) *Descriptor {
	properties = orderProperties(properties)

	byName := make(map[string]int, len(properties))
	for idx, prop := range properties {
		byName[prop.name] = idx
	}

	return &Descriptor{
		typeID:     typeID,
		ty:         ty,
		properties: properties,
		byName:     byName,
		extras:     reflect.PointerTo(ty).Implements(tyModel),
		registered: registered,
	}
}

// orderProperties moves id and version to the front, the rest keep their order.
func orderProperties(properties []property) []property {
	rank := func(p property) int {
		switch p.name {
		case "id":
			return 0
		case "version":
			return 1
		default:
			return 2
		}
	}

	ordered := slices.Clone(properties)
	slices.SortStableFunc(ordered, func(a, b property) int {
		return rank(a) - rank(b)
	})

	return ordered
}
