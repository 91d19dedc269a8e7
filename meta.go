package remodel

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Attribute is one declared attribute of a model type.
type Attribute struct {
	Name string

	// Nested marks attributes holding polymorphic values. Struct values stored under a
	// nested attribute always carry a discriminator.
	Nested bool
}

// Attr declares a plain attribute.
func Attr(name string) Attribute {
	return Attribute{Name: name}
}

// NestedAttr declares an attribute holding polymorphic values.
func NestedAttr(name string) Attribute {
	return Attribute{Name: name, Nested: true}
}

// Meta describes one model type: its stable type id, its declared attributes in order and
// the Go type implementing it. A Meta must not be changed after it was published.
type Meta struct {
	TypeID     string
	Attributes []Attribute

	// ModelType is a struct type or a pointer to a struct type.
	ModelType reflect.Type
}

// NewMeta describes the model type T.
func NewMeta[T any](typeID string, attributes ...Attribute) Meta {
	return Meta{
		TypeID:     typeID,
		Attributes: attributes,
		ModelType:  reflect.TypeFor[T](),
	}
}

// MetaRegistry supplies the metadata of all registered model types. It is only read.
type MetaRegistry interface {
	// FetchAll returns all metas in registration order.
	FetchAll() []Meta

	// Get returns the meta of one type. Returns a *MetaNotFoundError if there is none.
	Get(typeID string) (Meta, error)
}

// TypeIndex is optionally implemented by a MetaRegistry to look up the type id of a Go type
// without scanning FetchAll.
type TypeIndex interface {
	TypeIDOf(ty reflect.Type) (string, bool)
}

// MetaStore is an in-memory MetaRegistry. It is safe for concurrent use.
type MetaStore struct {
	mu     sync.RWMutex
	order  []string
	metas  map[string]Meta
	byType map[reflect.Type]string
}

var _ MetaRegistry = &MetaStore{}
var _ TypeIndex = &MetaStore{}

// NewMetaStore returns a store holding the given metas.
func NewMetaStore(metas ...Meta) (*MetaStore, error) {
	store := &MetaStore{}

	var errs []error
	for _, meta := range metas {
		errs = append(errs, store.Publish(meta))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return store, nil
}

// MustMetaStore is like NewMetaStore but panics on error.
func MustMetaStore(metas ...Meta) *MetaStore {
	store, err := NewMetaStore(metas...)
	if err != nil {
		panic(err)
	}

	return store
}

// Publish adds a meta. Type ids and Go types can only be published once.
func (s *MetaStore) Publish(meta Meta) error {
	if meta.TypeID == "" {
		return fmt.Errorf("publish meta: %w", &InvalidMetaError{Reason: "empty type id"})
	}

	if meta.ModelType == nil {
		return fmt.Errorf("publish meta: %w", &InvalidMetaError{TypeID: meta.TypeID, Reason: "no model type"})
	}

	ty := structTypeOf(meta.ModelType)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.metas[meta.TypeID]; ok {
		return fmt.Errorf("publish meta %q: type id already published", meta.TypeID)
	}

	if other, ok := s.byType[ty]; ok {
		return fmt.Errorf("publish meta %q: go type %s already published as %q", meta.TypeID, ty, other)
	}

	if s.metas == nil {
		s.metas = map[string]Meta{}
		s.byType = map[reflect.Type]string{}
	}

	meta.Attributes = slices.Clone(meta.Attributes)

	s.metas[meta.TypeID] = meta
	s.byType[ty] = meta.TypeID
	s.order = append(s.order, meta.TypeID)

	return nil
}

func (s *MetaStore) FetchAll() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]Meta, 0, len(s.order))
	for _, typeID := range s.order {
		metas = append(metas, s.metas[typeID])
	}

	return metas
}

func (s *MetaStore) Get(typeID string) (Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.metas[typeID]
	if !ok {
		return Meta{}, &MetaNotFoundError{TypeID: typeID}
	}

	return meta, nil
}

func (s *MetaStore) TypeIDOf(ty reflect.Type) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeID, ok := s.byType[structTypeOf(ty)]
	return typeID, ok
}

// structTypeOf strips pointers from ty.
func structTypeOf(ty reflect.Type) reflect.Type {
	for ty.Kind() == reflect.Pointer {
		ty = ty.Elem()
	}

	return ty
}
