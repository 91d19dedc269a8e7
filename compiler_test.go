package remodel

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingRegistry counts meta lookups.
type countingRegistry struct {
	*MetaStore
	gets atomic.Int32
}

func (c *countingRegistry) Get(typeID string) (Meta, error) {
	c.gets.Add(1)

	// widen the window for concurrent compiles
	time.Sleep(10 * time.Millisecond)

	return c.MetaStore.Get(typeID)
}

func TestCompileOnce(t *testing.T) {
	metas := &countingRegistry{MetaStore: MustMetaStore(testMetas()...)}
	compiler := NewCompiler(metas, DefaultOptions())

	const callers = 64

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*Descriptor, callers)

	for idx := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			desc, err := compiler.Compile("Invoice")
			if err == nil {
				results[idx] = desc
			}
		}()
	}

	close(start)
	wg.Wait()

	require.EqualValues(t, 1, metas.gets.Load())

	for _, desc := range results {
		require.NotNil(t, desc)
		require.Same(t, results[0], desc)
	}

	// later calls hit the cache
	desc, err := compiler.Compile("Invoice")
	require.NoError(t, err)
	require.Same(t, results[0], desc)
	require.EqualValues(t, 1, metas.gets.Load())
}

func TestCompilePropertyOrder(t *testing.T) {
	compiler := NewCompiler(MustMetaStore(testMetas()...), DefaultOptions())

	desc, err := compiler.Compile("Invoice")
	require.NoError(t, err)

	require.Equal(t, "Invoice", desc.TypeID())
	require.Equal(t, reflect.TypeFor[Invoice](), desc.Type())
	require.Equal(t, []string{"id", "version", "total"}, desc.PropertyOrder())
	require.Equal(t, "@c", desc.DiscriminatorKey())
	require.True(t, desc.BindsExtraAttributes())
	require.True(t, desc.Registered())
	require.True(t, desc.Declares("total"))
	require.False(t, desc.Declares("note"))
	require.Equal(t, "Invoice{id, version, total}", desc.String())

	// pointer model types describe the struct
	desc, err = compiler.Compile("Drawing")
	require.NoError(t, err)
	require.Equal(t, reflect.TypeFor[Drawing](), desc.Type())
	require.Equal(t, []string{"id", "title", "shapes"}, desc.PropertyOrder())
	require.False(t, desc.BindsExtraAttributes())
}

func TestCompileMetaNotFound(t *testing.T) {
	compiler := NewCompiler(MustMetaStore(), DefaultOptions())

	_, err := compiler.Compile("Invoice")

	var notFound *MetaNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "Invoice", notFound.TypeID)
}

func TestCompileAttributeNameCollision(t *testing.T) {
	tests := map[string]Meta{
		"declared twice": NewMeta[Invoice]("Invoice", Attr("id"), Attr("id")),
		"discriminator":  NewMeta[Invoice]("Invoice", Attr("id"), Attr(DiscriminatorKey)),
		"empty":          NewMeta[Invoice]("Invoice", Attr("")),
	}

	for name, meta := range tests {
		t.Run(name, func(t *testing.T) {
			compiler := NewCompiler(MustMetaStore(meta), DefaultOptions())

			_, err := compiler.Compile("Invoice")

			var collision *AttributeNameCollisionError
			require.ErrorAs(t, err, &collision)
			require.Equal(t, "Invoice", collision.TypeID)
		})
	}
}

func TestCompileInvalidMeta(t *testing.T) {
	tests := map[string]Meta{
		"missing field": NewMeta[Invoice]("Invoice", Attr("customer")),
		"not a struct":  NewMeta[int]("Invoice"),
	}

	for name, meta := range tests {
		t.Run(name, func(t *testing.T) {
			compiler := NewCompiler(MustMetaStore(meta), DefaultOptions())

			_, err := compiler.Compile("Invoice")

			var invalid *InvalidMetaError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, "Invoice", invalid.TypeID)
		})
	}
}

func TestCompileErrorsAreNotCached(t *testing.T) {
	metas := MustMetaStore()
	compiler := NewCompiler(metas, DefaultOptions())

	_, err := compiler.Compile("Circle")
	require.Error(t, err)

	require.NoError(t, metas.Publish(NewMeta[Circle]("Circle", Attr("radius"))))

	desc, err := compiler.Compile("Circle")
	require.NoError(t, err)
	require.Equal(t, []string{"radius"}, desc.PropertyOrder())
}

func TestDescriptorOf(t *testing.T) {
	compiler := NewCompiler(MustMetaStore(testMetas()...), DefaultOptions())

	desc, err := compiler.DescriptorOf(reflect.TypeFor[*Invoice](), true)
	require.NoError(t, err)
	require.True(t, desc.Registered())

	_, err = compiler.DescriptorOf(reflect.TypeFor[ServerConfig](), true)

	var notFound *MetaNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, reflect.TypeFor[ServerConfig](), notFound.GoType)

	desc, err = compiler.DescriptorOf(reflect.TypeFor[ServerConfig](), false)
	require.NoError(t, err)
	require.False(t, desc.Registered())
	require.Equal(t, "ServerConfig", desc.TypeID())
	require.Equal(t, []string{"host", "port", "tags"}, desc.PropertyOrder())

	// implicit descriptors are derived once
	again, err := compiler.Implicit(reflect.TypeFor[*ServerConfig]())
	require.NoError(t, err)
	require.Same(t, desc, again)
}

// registryWithoutIndex hides the TypeIndex of a MetaStore.
type registryWithoutIndex struct {
	store *MetaStore
}

func (r registryWithoutIndex) FetchAll() []Meta {
	return r.store.FetchAll()
}

func (r registryWithoutIndex) Get(typeID string) (Meta, error) {
	return r.store.Get(typeID)
}

func TestDescriptorOfWithoutTypeIndex(t *testing.T) {
	compiler := NewCompiler(registryWithoutIndex{store: MustMetaStore(testMetas()...)}, DefaultOptions())

	desc, err := compiler.DescriptorOf(reflect.TypeFor[Square](), true)
	require.NoError(t, err)
	require.Equal(t, "Square", desc.TypeID())
}

func TestResolve(t *testing.T) {
	compiler := NewCompiler(MustMetaStore(testMetas()...), DefaultOptions())

	desc, err := compiler.Resolve("Circle", false)
	require.NoError(t, err)
	require.Equal(t, reflect.TypeFor[Circle](), desc.Type())

	_, err = compiler.Resolve("Triangle", false)

	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "Triangle", unknown.TypeID)

	// implicit names only resolve if asked for
	_, err = compiler.Resolve("Generic", false)
	require.ErrorAs(t, err, &unknown)

	desc, err = compiler.Resolve("Generic", true)
	require.NoError(t, err)
	require.Equal(t, reflect.TypeFor[Generic](), desc.Type())
	require.True(t, desc.BindsExtraAttributes())
	require.Empty(t, desc.PropertyOrder())
}

func TestWarm(t *testing.T) {
	compiler := NewCompiler(MustMetaStore(testMetas()...), DefaultOptions())
	require.NoError(t, compiler.Warm())

	broken := NewCompiler(MustMetaStore(
		NewMeta[Circle]("Circle", Attr("radius")),
		NewMeta[Square]("Square", Attr("radius")),
	), DefaultOptions())

	err := broken.Warm()

	var invalid *InvalidMetaError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "Square", invalid.TypeID)
}
