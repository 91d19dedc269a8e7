package remodel

import (
	"github.com/go-gum/remodel/codec"
	"go.uber.org/zap"
)

// Options configures a Registry.
type Options struct {
	// Logger receives debug output about compilation and warnings about values that
	// could not be pretty printed.
	Logger *zap.Logger

	// Syntax of the text read and written by the mappers.
	Syntax codec.Syntax

	// StructTag names the struct tag that renames fields.
	StructTag string
}

// DefaultOptions returns options that log nothing and read and write JSON.
func DefaultOptions() Options {
	return Options{
		Logger:    zap.NewNop(),
		Syntax:    codec.JSON,
		StructTag: "json",
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()

	if o.Logger == nil {
		o.Logger = defaults.Logger
	}

	if o.Syntax == nil {
		o.Syntax = defaults.Syntax
	}

	if o.StructTag == "" {
		o.StructTag = defaults.StructTag
	}

	return o
}

// Registry holds a compiler and one Mapper per profile. Build it once and pass it to
// whatever needs to map values.
type Registry struct {
	compiler *Compiler

	bootstrap *Mapper
	config    *Mapper
	typed     *Mapper
	pretty    *Mapper
}

// NewRegistry builds a Registry reading metas from the given MetaRegistry. A nil
// MetaRegistry is treated as empty.
func NewRegistry(metas MetaRegistry, opts Options) *Registry {
	opts = opts.withDefaults()

	if metas == nil {
		metas = &MetaStore{}
	}

	logger := opts.Logger.Named("remodel")
	compiler := NewCompiler(metas, Options{Logger: logger, StructTag: opts.StructTag})

	r := &Registry{compiler: compiler}

	r.pretty = newMapper(prettyPrint, compiler, opts.Syntax, logger)
	r.bootstrap = newMapper(bootstrap, compiler, opts.Syntax, logger)
	r.config = newMapper(config, compiler, opts.Syntax, logger)
	r.typed = newMapper(typed, compiler, opts.Syntax, logger)

	for _, m := range []*Mapper{r.bootstrap, r.config, r.typed} {
		m.pretty = r.pretty
	}

	return r
}

// Compiler returns the compiler shared by all mappers.
func (r *Registry) Compiler() *Compiler {
	return r.compiler
}

func (r *Registry) Bootstrap() *Mapper {
	return r.bootstrap
}

func (r *Registry) Config() *Mapper {
	return r.config
}

func (r *Registry) Typed() *Mapper {
	return r.typed
}

func (r *Registry) PrettyPrint() *Mapper {
	return r.pretty
}

// Mapper returns the mapper of a profile by name.
func (r *Registry) Mapper(name string) (*Mapper, bool) {
	switch name {
	case bootstrap.Name:
		return r.bootstrap, true
	case config.Name:
		return r.config, true
	case typed.Name:
		return r.typed, true
	case prettyPrint.Name:
		return r.pretty, true
	default:
		return nil, false
	}
}
