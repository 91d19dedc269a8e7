package remodel

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Compiler turns metas into descriptors. Each type id is compiled at most once, also
// under concurrent first use. Descriptors are cached for the lifetime of the Compiler.
type Compiler struct {
	metas     MetaRegistry
	structTag string
	logger    *zap.Logger

	// *Descriptor of registered types by type id
	cache  sync.Map
	flight singleflight.Group

	// type ids of registered go types, by reflect.Type
	typeIDs sync.Map

	// descriptors of unregistered go types, by reflect.Type and by type id
	implicitMu   sync.Mutex
	implicit     sync.Map
	implicitByID sync.Map
}

// NewCompiler returns a Compiler reading from metas.
func NewCompiler(metas MetaRegistry, opts Options) *Compiler {
	opts = opts.withDefaults()

	c := &Compiler{
		metas:     metas,
		structTag: opts.StructTag,
		logger:    opts.Logger.Named("compiler"),
	}

	// types that are always known without registration
	for _, ty := range []reflect.Type{tyGeneric, tyMetaDocument, tyAttributeDocument} {
		if _, err := c.Implicit(ty); err != nil {
			panic(err)
		}
	}

	return c
}

// Compile returns the descriptor of a registered type id.
func (c *Compiler) Compile(typeID string) (*Descriptor, error) {
	if cached, ok := c.cache.Load(typeID); ok {
		return cached.(*Descriptor), nil
	}

	desc, err, _ := c.flight.Do(typeID, func() (any, error) {
		// an earlier flight may have finished between the cache miss and now
		if cached, ok := c.cache.Load(typeID); ok {
			return cached, nil
		}

		meta, err := c.metas.Get(typeID)
		if err != nil {
			var notFound *MetaNotFoundError
			if errors.As(err, &notFound) {
				return nil, err
			}

			return nil, fmt.Errorf("fetch meta %q: %w", typeID, err)
		}

		desc, err := c.generate(meta)
		if err != nil {
			return nil, err
		}

		c.cache.Store(typeID, desc)
		c.typeIDs.Store(desc.ty, typeID)

		return desc, nil
	})

	if err != nil {
		return nil, err
	}

	return desc.(*Descriptor), nil
}

func (c *Compiler) generate(meta Meta) (*Descriptor, error) {
	if meta.ModelType == nil {
		return nil, &InvalidMetaError{TypeID: meta.TypeID, Reason: "no model type"}
	}

	ty := structTypeOf(meta.ModelType)
	if ty.Kind() != reflect.Struct {
		return nil, &InvalidMetaError{TypeID: meta.TypeID, Reason: fmt.Sprintf("model type %s is not a struct", ty)}
	}

	fields := map[string]structField{}
	for _, field := range fieldsOf(ty, c.structTag) {
		fields[field.Name] = field
	}

	properties := make([]property, 0, len(meta.Attributes))
	seen := make(map[string]struct{}, len(meta.Attributes))

	for _, attr := range meta.Attributes {
		if err := checkAttributeName(meta.TypeID, attr.Name, seen); err != nil {
			return nil, err
		}

		field, ok := fields[attr.Name]
		if !ok {
			return nil, &InvalidMetaError{
				TypeID: meta.TypeID,
				Reason: fmt.Sprintf("attribute %q has no exported field in %s", attr.Name, ty),
			}
		}

		properties = append(properties, property{
			name:      attr.Name,
			index:     field.Index,
			ty:        field.Type,
			nested:    attr.Nested,
			omitEmpty: field.OmitEmpty,
		})
	}

	desc := newDescriptor(meta.TypeID, ty, properties, true)

	c.logger.Debug("Compiled descriptor",
		zap.String("typeID", desc.typeID),
		zap.Stringer("type", ty),
		zap.Strings("properties", desc.PropertyOrder()),
		zap.Bool("extraAttributes", desc.extras),
	)

	return desc, nil
}

func checkAttributeName(typeID, name string, seen map[string]struct{}) error {
	switch {
	case name == "":
		return &AttributeNameCollisionError{TypeID: typeID, Name: name, Reason: "empty name"}

	case name == DiscriminatorKey:
		return &AttributeNameCollisionError{TypeID: typeID, Name: name, Reason: "reserved for the discriminator"}
	}

	if _, ok := seen[name]; ok {
		return &AttributeNameCollisionError{TypeID: typeID, Name: name, Reason: "declared twice"}
	}

	seen[name] = struct{}{}
	return nil
}

// Implicit returns a descriptor derived from the exported fields of ty, used for types
// without a Meta. Its type id is the name of the Go type.
func (c *Compiler) Implicit(ty reflect.Type) (*Descriptor, error) {
	ty = structTypeOf(ty)

	if cached, ok := c.implicit.Load(ty); ok {
		return cached.(*Descriptor), nil
	}

	if ty.Kind() != reflect.Struct {
		return nil, NotSupportedError{Type: ty}
	}

	c.implicitMu.Lock()
	defer c.implicitMu.Unlock()

	if cached, ok := c.implicit.Load(ty); ok {
		return cached.(*Descriptor), nil
	}

	typeID := ty.Name()
	if typeID == "" {
		typeID = ty.String()
	}

	var properties []property
	seen := map[string]struct{}{}

	for _, field := range fieldsOf(ty, c.structTag) {
		if err := checkAttributeName(typeID, field.Name, seen); err != nil {
			return nil, err
		}

		properties = append(properties, property{
			name:      field.Name,
			index:     field.Index,
			ty:        field.Type,
			omitEmpty: field.OmitEmpty,
		})
	}

	desc := newDescriptor(typeID, ty, properties, false)

	c.implicit.Store(ty, desc)

	// the first go type claims a name
	c.implicitByID.LoadOrStore(typeID, desc)

	c.logger.Debug("Derived implicit descriptor",
		zap.String("typeID", typeID),
		zap.Stringer("type", ty),
	)

	return desc, nil
}

// DescriptorOf returns the descriptor of a Go type. Registered types are compiled from their
// Meta. Other types get an implicit descriptor, unless requireMeta is set.
func (c *Compiler) DescriptorOf(ty reflect.Type, requireMeta bool) (*Descriptor, error) {
	ty = structTypeOf(ty)

	if typeID, ok := c.typeIDOf(ty); ok {
		return c.Compile(typeID)
	}

	if requireMeta {
		return nil, &MetaNotFoundError{GoType: ty}
	}

	return c.Implicit(ty)
}

func (c *Compiler) typeIDOf(ty reflect.Type) (string, bool) {
	if cached, ok := c.typeIDs.Load(ty); ok {
		return cached.(string), true
	}

	if index, ok := c.metas.(TypeIndex); ok {
		return index.TypeIDOf(ty)
	}

	for _, meta := range c.metas.FetchAll() {
		if meta.ModelType != nil && structTypeOf(meta.ModelType) == ty {
			return meta.TypeID, true
		}
	}

	return "", false
}

// Resolve returns the descriptor named by a discriminator. Unknown type ids fail with an
// *UnknownTypeError. With allowImplicit, names of implicit descriptors resolve too.
func (c *Compiler) Resolve(typeID string, allowImplicit bool) (*Descriptor, error) {
	desc, err := c.lookup(typeID, allowImplicit)

	var notFound *MetaNotFoundError
	if errors.As(err, &notFound) {
		return nil, &UnknownTypeError{TypeID: typeID}
	}

	return desc, err
}

func (c *Compiler) lookup(typeID string, allowImplicit bool) (*Descriptor, error) {
	desc, err := c.Compile(typeID)

	var notFound *MetaNotFoundError
	if allowImplicit && errors.As(err, &notFound) {
		if cached, ok := c.implicitByID.Load(typeID); ok {
			return cached.(*Descriptor), nil
		}
	}

	return desc, err
}

// implements reports whether the pointer to any registered type implements the interface ty.
func (c *Compiler) implements(ty reflect.Type) bool {
	for _, meta := range c.metas.FetchAll() {
		if meta.ModelType != nil && reflect.PointerTo(structTypeOf(meta.ModelType)).Implements(ty) {
			return true
		}
	}

	return false
}

// Warm compiles all registered metas and returns the joined errors.
func (c *Compiler) Warm() error {
	var errs []error

	for _, meta := range c.metas.FetchAll() {
		if _, err := c.Compile(meta.TypeID); err != nil {
			errs = append(errs, fmt.Errorf("compile %q: %w", meta.TypeID, err))
		}
	}

	return errors.Join(errs...)
}
