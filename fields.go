package remodel

import (
	"reflect"
	"slices"
	"strings"
)

// structField is an exported field of a struct type, possibly promoted from an embedded struct.
type structField struct {
	Name      string
	Type      reflect.Type
	Index     []int
	OmitEmpty bool
}

// fieldsOf lists the fields of ty that take part in serialization, in declaration order.
// Fields of embedded structs are promoted following the rules of encoding/json: the
// shallowest field wins, on equal depth a single explicitly named field wins, otherwise
// the name is dropped.
func fieldsOf(ty reflect.Type, structTag string) []structField {
	if ty.Kind() != reflect.Struct {
		panic("not a struct")
	}

	type queued struct {
		Type        reflect.Type
		ParentIndex []int
	}

	type candidate struct {
		Explicit bool
		Field    structField
	}

	queue := []queued{{Type: ty}}

	candidates := map[string][]candidate{}

	var order []string

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		for idx := range item.Type.NumField() {
			fi := item.Type.Field(idx)
			if !fi.IsExported() && !fi.Anonymous {
				continue
			}

			name, explicit := nameOf(fi, structTag)
			if name == "" {
				continue
			}

			// allocate a new slice by capping the parents index
			parent := item.ParentIndex
			index := append(parent[:len(parent):len(parent)], fi.Index...)

			if fi.Anonymous && !explicit {
				// only embedded structs are walked, embedded pointers are not followed
				if fi.Type.Kind() == reflect.Struct {
					queue = append(queue, queued{fi.Type, index})
				}

				continue
			}

			if !fi.IsExported() {
				continue
			}

			if len(candidates[name]) == 0 {
				order = append(order, name)
			}

			candidates[name] = append(candidates[name], candidate{
				Explicit: explicit,
				Field: structField{
					Name:      name,
					Index:     index,
					Type:      fi.Type,
					OmitEmpty: hasOption(fi, structTag, "omitempty"),
				},
			})
		}
	}

	var fields []structField

	for _, name := range order {
		// bfs order: candidates are sorted by depth, shallowest first
		named := candidates[name]

		depth := len(named[0].Field.Index)
		visible := slices.DeleteFunc(slices.Clone(named), func(c candidate) bool {
			return len(c.Field.Index) != depth
		})

		if len(visible) == 1 {
			fields = append(fields, visible[0].Field)
			continue
		}

		explicit := slices.DeleteFunc(visible, func(c candidate) bool { return !c.Explicit })
		if len(explicit) == 1 {
			fields = append(fields, explicit[0].Field)
			continue
		}

		// ambiguous, the name is ignored
	}

	return fields
}

func nameOf(fi reflect.StructField, structTag string) (name string, explicit bool) {
	tag := fi.Tag.Get(structTag)

	if tag == "" {
		return fi.Name, false
	}

	if tag == "-" {
		return "", true
	}

	idx := strings.IndexByte(tag, ',')
	switch {
	case idx == -1:
		return tag, true

	case idx > 0:
		return tag[:idx], true

	default:
		// options only, e.g. ",omitempty"
		return fi.Name, false
	}
}

// hasOption reports whether the struct tag of fi lists option after the name.
func hasOption(fi reflect.StructField, structTag, option string) bool {
	tag := fi.Tag.Get(structTag)

	idx := strings.IndexByte(tag, ',')
	if idx == -1 {
		return false
	}

	return slices.Contains(strings.Split(tag[idx+1:], ","), option)
}
