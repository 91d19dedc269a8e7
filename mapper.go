package remodel

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-gum/remodel/codec"
	"go.uber.org/zap"
)

// Mapper converts between Go values and text following one Profile. A Mapper is safe for
// concurrent use. Mappers are obtained from a Registry.
type Mapper struct {
	profile  Profile
	compiler *Compiler
	syntax   codec.Syntax
	source   string
	logger   *zap.Logger

	encoder *encoder
	decoder *decoder

	// mapper used by PrettyPrint, nil for the pretty print mapper itself
	pretty *Mapper
}

func newMapper(profile Profile, compiler *Compiler, syntax codec.Syntax, logger *zap.Logger) *Mapper {
	return &Mapper{
		profile:  profile,
		compiler: compiler,
		syntax:   syntax,
		logger:   logger.With(zap.String("profile", profile.Name)),
		encoder:  &encoder{profile: profile, compiler: compiler},
		decoder:  newDecoder(profile, compiler, false),
	}
}

// Profile returns the profile this Mapper applies.
func (m *Mapper) Profile() Profile {
	return m.profile
}

// Syntax returns the text syntax this Mapper reads and writes.
func (m *Mapper) Syntax() codec.Syntax {
	return m.syntax
}

// WithSource returns a Mapper that names the origin of decoded text, e.g. a file name,
// in its errors.
func (m *Mapper) WithSource(name string) *Mapper {
	derived := *m
	derived.source = name
	return &derived
}

// WithSyntax returns a Mapper reading and writing another text syntax.
func (m *Mapper) WithSyntax(syntax codec.Syntax) *Mapper {
	derived := *m
	derived.syntax = syntax
	return &derived
}

// RequireValues returns a Mapper that fails with ErrNoValue when a declared property
// is missing.
func (m *Mapper) RequireValues() *Mapper {
	if m.decoder.requireValues {
		return m
	}

	derived := *m
	derived.decoder = newDecoder(m.profile, m.compiler, true)
	return &derived
}

// Serialize writes value as text.
func (m *Mapper) Serialize(value any) ([]byte, error) {
	tree, err := m.ToTree(value)
	if err != nil {
		return nil, err
	}

	text, err := m.syntax.Encode(tree, codec.EncodeOptions{
		Indent:           m.profile.Formatting == Indented,
		DiscriminatorKey: DiscriminatorKey,
	})

	if err != nil {
		return nil, &SerializationError{Type: reflect.TypeOf(value), Err: err}
	}

	return text, nil
}

// ToTree converts value into a codec tree, the way Serialize would before writing text.
func (m *Mapper) ToTree(value any) (any, error) {
	if m.profile.RequireMeta {
		if err := m.requireMeta(reflect.TypeOf(value)); err != nil {
			return nil, err
		}
	}

	tree, err := m.encoder.encode(value)
	if err != nil {
		return nil, &SerializationError{Type: reflect.TypeOf(value), Err: err}
	}

	return tree, nil
}

// requireMeta fails if ty is a struct type without registered Meta.
func (m *Mapper) requireMeta(ty reflect.Type) error {
	if ty == nil || ty == tyObject {
		return nil
	}

	ty = structTypeOf(ty)
	if ty.Kind() != reflect.Struct {
		return nil
	}

	_, err := m.compiler.DescriptorOf(ty, true)
	return err
}

// Deserialize reads text into a new value and returns a pointer to it. With an inline
// discriminator the concrete type is named by the text, falling back to defaultTypeID.
// Without, defaultTypeID is used.
func (m *Mapper) Deserialize(text []byte, defaultTypeID string) (any, error) {
	tree, err := m.readTree(text)
	if err != nil {
		return nil, err
	}

	source := TreeSource(tree)

	var desc *Descriptor

	typeID, ok, err := m.discriminatorOf(source)
	switch {
	case err != nil:
		return nil, m.deserializationError(err)

	case ok:
		desc, err = m.compiler.Resolve(typeID, m.profile.TagImplicit)

	case defaultTypeID == "":
		return nil, m.deserializationError(withLine(source, errors.New("no discriminator and no default type")))

	default:
		desc, err = m.compiler.lookup(defaultTypeID, m.profile.TagImplicit)
	}

	if err != nil {
		return nil, err
	}

	target := reflect.New(desc.ty)
	if err := m.decoder.decode(source, target.Elem()); err != nil {
		return nil, m.deserializationError(err)
	}

	return target.Interface(), nil
}

// DeserializeInto reads text into target, which must be a non-nil pointer. Like
// encoding/json, properties missing in text keep their current value. If target
// points to an interface, the concrete type is named by the discriminator.
func (m *Mapper) DeserializeInto(text []byte, target any) error {
	targetValue, err := pointerTarget(target)
	if err != nil {
		return err
	}

	if m.profile.RequireMeta {
		if err := m.requireMeta(targetValue.Type()); err != nil {
			return err
		}
	}

	tree, err := m.readTree(text)
	if err != nil {
		return err
	}

	if err := m.decoder.decode(TreeSource(tree), targetValue); err != nil {
		return m.deserializationError(err)
	}

	return nil
}

// DeserializeAs reads text into a new value of type T.
func DeserializeAs[T any](m *Mapper, text []byte) (T, error) {
	var target T
	err := m.DeserializeInto(text, &target)
	return target, err
}

// Update reads text into the existing target and returns target. Declared properties present
// in text are overwritten, others keep their value. Extra attributes are merged key by key.
// If text can not be applied, target is left unchanged.
func (m *Mapper) Update(text []byte, target any) (any, error) {
	tree, err := m.readTree(text)
	if err != nil {
		return nil, err
	}

	if err := m.update(tree, target); err != nil {
		return nil, err
	}

	return target, nil
}

// Merge applies the properties of source onto target, as if source was serialized and
// passed to Update.
func (m *Mapper) Merge(source, target any) (any, error) {
	tree, err := m.encoder.encode(source)
	if err != nil {
		return nil, &SerializationError{Type: reflect.TypeOf(source), Err: err}
	}

	if err := m.update(tree, target); err != nil {
		return nil, err
	}

	return target, nil
}

func (m *Mapper) update(tree any, target any) error {
	targetValue, err := pointerTarget(target)
	if err != nil {
		return err
	}

	if targetValue.Kind() != reflect.Struct {
		return fmt.Errorf("update target %T: %w", target, ErrNotSupported)
	}

	desc, err := m.compiler.DescriptorOf(targetValue.Type(), false)
	if err != nil {
		return err
	}

	source := TreeSource(tree)

	// an update never changes the type of its target
	typeID, ok, err := discriminatorOf(source)
	if err != nil {
		return m.deserializationError(err)
	}

	if ok && typeID != desc.typeID {
		return &PartialUpdateConflictError{TargetTypeID: desc.typeID, SourceTypeID: typeID}
	}

	// a failing update leaves target unchanged
	if err := m.decoder.decode(source, reflect.New(targetValue.Type()).Elem()); err != nil {
		return m.deserializationError(err)
	}

	if err := m.decoder.decode(source, targetValue); err != nil {
		return m.deserializationError(err)
	}

	m.logger.Debug("Updated value in place", zap.String("typeID", desc.typeID))

	return nil
}

// Convert projects value onto the type registered as targetTypeID without going through
// text. value may be a model, a *Generic, a map or a *codec.Object.
func (m *Mapper) Convert(value any, targetTypeID string) (any, error) {
	desc, err := m.compiler.lookup(targetTypeID, m.profile.TagImplicit)
	if err != nil {
		return nil, err
	}

	target := reflect.New(desc.ty)
	if err := m.convertInto(value, target.Elem()); err != nil {
		return nil, fmt.Errorf("convert %T to %q: %w", value, targetTypeID, err)
	}

	return target.Interface(), nil
}

// ConvertTo projects value onto a new value of type T.
func ConvertTo[T any](m *Mapper, value any) (T, error) {
	var target T
	if err := m.convertInto(value, reflect.ValueOf(&target).Elem()); err != nil {
		return target, fmt.Errorf("convert %T to %s: %w", value, reflect.TypeFor[T](), err)
	}

	return target, nil
}

func (m *Mapper) convertInto(value any, target reflect.Value) error {
	tree, err := m.encoder.encode(value)
	if err != nil {
		return &SerializationError{Type: reflect.TypeOf(value), Err: err}
	}

	// the type of the source is not carried over
	if obj, ok := tree.(*codec.Object); ok {
		if _, tagged := obj.Get(DiscriminatorKey); tagged {
			tree = withoutKey(obj, DiscriminatorKey)
		}
	}

	if err := m.decoder.decode(TreeSource(tree), target); err != nil {
		return &DeserializationError{Line: lineOf(err), Err: err}
	}

	return nil
}

// ToMap converts value into its untyped representation. Objects become map[string]any,
// numbers int64, uint64 or float64. Discriminators are kept as ordinary keys.
func (m *Mapper) ToMap(value any) (map[string]any, error) {
	tree, err := m.encoder.encode(value)
	if err != nil {
		return nil, &SerializationError{Type: reflect.TypeOf(value), Err: err}
	}

	plain, err := plainOf(tree)
	if err != nil {
		return nil, err
	}

	mapValue, ok := plain.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value of type %T is not an object: %w", value, ErrNotSupported)
	}

	return mapValue, nil
}

// Unmarshal applies source to target, which must be a non-nil pointer.
func (m *Mapper) Unmarshal(source Source, target any) error {
	targetValue, err := pointerTarget(target)
	if err != nil {
		return err
	}

	if err := m.decoder.decode(source, targetValue); err != nil {
		return m.deserializationError(err)
	}

	return nil
}

// UnmarshalNew applies source to a new value of type T.
func UnmarshalNew[T any](m *Mapper, source Source) (T, error) {
	var target T
	err := m.Unmarshal(source, &target)
	return target, err
}

// PrettyPrint renders value for humans using the PrettyPrint profile, whatever the
// profile of m. It never fails: if value can not be rendered, it returns
// "<type-name>#<identity>".
func (m *Mapper) PrettyPrint(value any) (text string) {
	pretty := m.pretty
	if pretty == nil {
		pretty = m
	}

	defer func() {
		if r := recover(); r != nil {
			pretty.logger.Warn("Pretty print panicked",
				zap.String("type", typeName(reflect.TypeOf(value))),
				zap.Any("panic", r),
			)

			text = fallbackString(value)
		}
	}()

	encoded, err := pretty.Serialize(value)
	if err != nil {
		pretty.logger.Warn("Pretty print failed",
			zap.String("type", typeName(reflect.TypeOf(value))),
			zap.Error(err),
		)

		return fallbackString(value)
	}

	return string(encoded)
}

// fallbackString returns "<type-name>#<identity>" for a value. The identity is the address
// of reference values and zero otherwise. It must not touch the registry, which may be
// the reason for the failure.
func fallbackString(value any) string {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return "nil#0"
	}

	name := v.Type().String()

	var identity uintptr
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		identity = v.Pointer()
	}

	return fmt.Sprintf("%s#%x", name, identity)
}

func (m *Mapper) readTree(text []byte) (any, error) {
	tree, err := m.syntax.Decode(text, codec.DecodeOptions{
		AllowComments: m.profile.AllowComments,
		Source:        m.source,
	})

	if err != nil {
		deErr := &DeserializationError{Source: m.source, Err: err}

		var syntaxErr *codec.SyntaxError
		if errors.As(err, &syntaxErr) {
			deErr.Line = syntaxErr.Line
			deErr.Column = syntaxErr.Column
		}

		return nil, deErr
	}

	return tree, nil
}

func (m *Mapper) discriminatorOf(source Source) (string, bool, error) {
	if !m.profile.inline() {
		return "", false, nil
	}

	return discriminatorOf(source)
}

func (m *Mapper) deserializationError(err error) error {
	return &DeserializationError{Source: m.source, Line: lineOf(err), Err: err}
}

func pointerTarget(target any) (reflect.Value, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("target of type %T is not a non-nil pointer: %w", target, ErrNotSupported)
	}

	return rv.Elem(), nil
}

// withoutKey returns a copy of obj without key.
func withoutKey(obj *codec.Object, key string) *codec.Object {
	copied := codec.NewObject(obj.Len())
	copied.Line = obj.Line

	for k, v := range obj.All() {
		if k != key {
			copied.Set(k, v)
		}
	}

	return copied
}

// plainOf converts a codec tree into maps, slices and scalars.
func plainOf(tree any) (any, error) {
	switch tree := tree.(type) {
	case *codec.Object:
		values := make(map[string]any, tree.Len())
		for key, value := range tree.All() {
			plain, err := plainOf(value)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}

			values[key] = plain
		}

		return values, nil

	case []any:
		values := make([]any, 0, len(tree))
		for idx, value := range tree {
			plain, err := plainOf(value)
			if err != nil {
				return nil, fmt.Errorf("element idx=%d: %w", idx, err)
			}

			values = append(values, plain)
		}

		return values, nil

	case codec.Number:
		return dynamicNumber(TreeSource(tree))

	default:
		return tree, nil
	}
}
