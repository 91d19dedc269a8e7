// Package codec reads and writes the generic value tree that remodel maps typed values onto.
//
// A tree is built from a small set of Go values:
//
//   - [*Object] for objects. Keys keep their order, which is what lets a discriminator
//     property or an id/version pair stay in front.
//   - []any for arrays.
//   - string, bool and nil for the respective scalars.
//   - [Number] for decoded numbers. The literal is kept so that no precision is lost before the
//     target type is known. The write side also accepts int64, uint64 and float64.
//
// A [Syntax] turns a tree into text and back. Two syntaxes are provided: [JSON], which accepts
// line and block comments on read when asked to, and [YAML]. Neither emits comments.
package codec
