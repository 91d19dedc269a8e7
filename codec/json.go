package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/tailscale/hujson"
)

// JSON reads and writes JSON text. With DecodeOptions.AllowComments it also reads
// line and block comments and trailing commas.
var JSON Syntax = jsonSyntax{}

type jsonSyntax struct{}

func (jsonSyntax) Name() string {
	return "json"
}

func (jsonSyntax) Encode(tree any, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, tree, opts); err != nil {
		return nil, err
	}

	if !opts.Indent {
		return buf.Bytes(), nil
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent: %w", err)
	}

	return indented.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, value any, opts EncodeOptions) error {
	switch value := value.(type) {
	case nil:
		buf.WriteString("null")

	case bool:
		buf.WriteString(strconv.FormatBool(value))

	case string:
		return writeJSONString(buf, value)

	case Number:
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("number literal %q: %w", string(value), ErrUnsupportedValue)
		}

		buf.WriteString(string(value))

	case int:
		buf.WriteString(strconv.FormatInt(int64(value), 10))

	case int64:
		buf.WriteString(strconv.FormatInt(value, 10))

	case uint64:
		buf.WriteString(strconv.FormatUint(value, 10))

	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("float %v: %w", value, ErrUnsupportedValue)
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}

		buf.Write(encoded)

	case *Object:
		buf.WriteByte('{')

		first := true
		for _, key := range value.orderedKeys(opts.DiscriminatorKey) {
			propertyValue := value.values[key]
			if propertyValue == nil && !opts.IncludeNulls {
				continue
			}

			if !first {
				buf.WriteByte(',')
			}

			first = false

			if err := writeJSONString(buf, key); err != nil {
				return err
			}

			buf.WriteByte(':')

			if err := writeJSON(buf, propertyValue, opts); err != nil {
				return fmt.Errorf("property %q: %w", key, err)
			}
		}

		buf.WriteByte('}')

	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		obj := NewObject(len(keys))
		for _, key := range keys {
			obj.Set(key, value[key])
		}

		return writeJSON(buf, obj, opts)

	case []any:
		buf.WriteByte('[')

		for idx, element := range value {
			if idx > 0 {
				buf.WriteByte(',')
			}

			if err := writeJSON(buf, element, opts); err != nil {
				return fmt.Errorf("element idx=%d: %w", idx, err)
			}
		}

		buf.WriteByte(']')

	default:
		return fmt.Errorf("tree value of type %T: %w", value, ErrUnsupportedValue)
	}

	return nil
}

func writeJSONString(buf *bytes.Buffer, value string) error {
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(value); err != nil {
		return err
	}

	// Encode terminates each value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

func (jsonSyntax) Decode(text []byte, opts DecodeOptions) (any, error) {
	if opts.AllowComments {
		// Standardize blanks out comments and trailing commas, offsets stay valid.
		standard, err := hujson.Standardize(slices.Clone(text))
		if err != nil {
			return nil, &SyntaxError{Source: opts.Source, Line: lineOf(err), Err: err}
		}

		text = standard
	}

	decoder := json.NewDecoder(bytes.NewReader(text))
	decoder.UseNumber()

	p := jsonParser{
		decoder: decoder,
		lines:   newLineIndex(text),
		source:  opts.Source,
		length:  int64(len(text)),
	}

	tree, err := p.value()
	if err != nil {
		return nil, err
	}

	// only whitespace may follow the value
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, p.errorAt(decoder.InputOffset(), errors.New("unexpected data after top-level value"))
	}

	return tree, nil
}

type jsonParser struct {
	decoder *json.Decoder
	lines   lineIndex
	source  string
	length  int64
}

func (p *jsonParser) value() (any, error) {
	token, err := p.decoder.Token()
	if err != nil {
		return nil, p.wrap(err)
	}

	switch token := token.(type) {
	case json.Delim:
		switch token {
		case '{':
			return p.object()
		case '[':
			return p.array()
		default:
			return nil, p.errorAt(p.decoder.InputOffset(), fmt.Errorf("unexpected delimiter %q", token))
		}

	case json.Number:
		return Number(token), nil

	case string, bool, nil:
		return token, nil

	default:
		return nil, p.errorAt(p.decoder.InputOffset(), fmt.Errorf("unexpected token %v", token))
	}
}

func (p *jsonParser) object() (*Object, error) {
	line, _ := p.lines.position(p.decoder.InputOffset() - 1)
	obj := &Object{Line: line}

	for p.decoder.More() {
		keyToken, err := p.decoder.Token()
		if err != nil {
			return nil, p.wrap(err)
		}

		key, ok := keyToken.(string)
		if !ok {
			return nil, p.errorAt(p.decoder.InputOffset(), fmt.Errorf("object key %v is not a string", keyToken))
		}

		value, err := p.value()
		if err != nil {
			return nil, err
		}

		obj.Set(key, value)
	}

	// consume the closing brace
	if _, err := p.decoder.Token(); err != nil {
		return nil, p.wrap(err)
	}

	return obj, nil
}

func (p *jsonParser) array() ([]any, error) {
	values := []any{}

	for p.decoder.More() {
		value, err := p.value()
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	// consume the closing bracket
	if _, err := p.decoder.Token(); err != nil {
		return nil, p.wrap(err)
	}

	return values, nil
}

// wrap positions a decoder error. json.SyntaxError.Offset only counts bytes seen by
// value decoding in token mode, so the decoder's input offset is used instead. It
// points at the start of the offending token.
func (p *jsonParser) wrap(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return p.errorAt(p.length, io.ErrUnexpectedEOF)
	}

	return p.errorAt(p.decoder.InputOffset(), err)
}

func (p *jsonParser) errorAt(offset int64, err error) error {
	line, column := p.lines.position(max(offset, 0))
	return &SyntaxError{Source: p.source, Line: line, Column: column, Err: err}
}
