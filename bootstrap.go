package remodel

import (
	"fmt"
	"reflect"
)

// MetaDocument is the serialized form of a Meta.
type MetaDocument struct {
	ID         string              `json:"id"`
	Type       string              `json:"type,omitempty"`
	Attributes []AttributeDocument `json:"attributes"`
}

// AttributeDocument is the serialized form of an Attribute.
type AttributeDocument struct {
	Name   string `json:"name"`
	Nested bool   `json:"nested,omitempty"`
}

var tyMetaDocument = reflect.TypeFor[MetaDocument]()
var tyAttributeDocument = reflect.TypeFor[AttributeDocument]()

// LoadMetas reads a list of meta documents. The Go type of each meta is looked up in types
// by the document's type, or by its id if the document names no type. Use the Bootstrap
// mapper, as no Meta is needed to read the documents.
func LoadMetas(m *Mapper, text []byte, types map[string]reflect.Type) ([]Meta, error) {
	documents, err := DeserializeAs[[]MetaDocument](m, text)
	if err != nil {
		return nil, fmt.Errorf("read meta documents: %w", err)
	}

	metas := make([]Meta, 0, len(documents))

	for _, document := range documents {
		typeName := document.Type
		if typeName == "" {
			typeName = document.ID
		}

		ty, ok := types[typeName]
		if !ok {
			return nil, fmt.Errorf("meta %q: %w", document.ID, &UnknownTypeError{TypeID: typeName})
		}

		attributes := make([]Attribute, 0, len(document.Attributes))
		for _, attr := range document.Attributes {
			attributes = append(attributes, Attribute{Name: attr.Name, Nested: attr.Nested})
		}

		metas = append(metas, Meta{
			TypeID:     document.ID,
			Attributes: attributes,
			ModelType:  ty,
		})
	}

	return metas, nil
}

// DumpMetas writes metas as a list of meta documents. The Go type name is written when it
// differs from the type id.
func DumpMetas(m *Mapper, metas []Meta) ([]byte, error) {
	documents := make([]MetaDocument, 0, len(metas))

	for _, meta := range metas {
		document := MetaDocument{ID: meta.TypeID}

		if meta.ModelType != nil {
			if name := structTypeOf(meta.ModelType).Name(); name != meta.TypeID {
				document.Type = name
			}
		}

		for _, attr := range meta.Attributes {
			document.Attributes = append(document.Attributes, AttributeDocument{Name: attr.Name, Nested: attr.Nested})
		}

		documents = append(documents, document)
	}

	return m.Serialize(documents)
}
