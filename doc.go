// Package remodel converts model values to and from text, driven by metadata.
//
// A [Meta] describes a model type: its stable type id, its attributes in order and the Go
// struct implementing it. Metas live in a [MetaRegistry], e.g. a [MetaStore]. A [Compiler]
// turns each Meta into a [Descriptor] once and caches it.
//
// A [Registry] offers one [Mapper] per [Profile]:
//
//   - [BootstrapProfile] reads and writes metadata documents before any Meta is known.
//   - [ConfigProfile] reads configuration files. It accepts comments and ignores unknown keys.
//   - [TypedProfile] carries registered models with their type id in the "@c" property.
//   - [PrettyPrintProfile] renders any value for logs and never fails.
//
// Types embedding [Extras] implement [Model] and keep properties they do not declare in a
// bag, so documents survive a read-modify-write cycle unchanged.
//
// Decoding pulls values out of a [Source]. Text is read into a codec tree first, but any
// other Source works as well, e.g. URL query values:
//
//	reg := remodel.NewRegistry(nil, remodel.DefaultOptions())
//	params, err := remodel.UnmarshalNew[Params](reg.Config(), QuerySource(r.URL.Query()))
package remodel
