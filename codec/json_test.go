package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONDecodeKeepsOrder(t *testing.T) {
	tree, err := JSON.Decode([]byte(`{"b": 1, "a": [true, null, "x"], "c": {"z": 1.5}}`), DecodeOptions{})
	require.NoError(t, err)

	obj := tree.(*Object)
	require.Equal(t, []string{"b", "a", "c"}, obj.Keys())

	b, _ := obj.Get("b")
	require.Equal(t, Number("1"), b)

	a, _ := obj.Get("a")
	require.Equal(t, []any{true, nil, "x"}, a)

	c, _ := obj.Get("c")
	require.Equal(t, []string{"z"}, c.(*Object).Keys())
}

func TestJSONDecodeLineNumbers(t *testing.T) {
	text := "{\n  \"a\": {\n    \"b\": 1\n  },\n  \"c\": tru\n}"

	_, err := JSON.Decode([]byte(text), DecodeOptions{Source: "settings.json"})

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Equal(t, 5, syntaxErr.Line)
	require.Equal(t, "settings.json", syntaxErr.Source)
	require.Contains(t, syntaxErr.Error(), "settings.json")
}

func TestJSONDecodeObjectLine(t *testing.T) {
	tree, err := JSON.Decode([]byte("{\n\"a\":\n  {\"b\": 1}\n}"), DecodeOptions{})
	require.NoError(t, err)

	obj := tree.(*Object)
	require.Equal(t, 1, obj.Line)

	inner, _ := obj.Get("a")
	require.Equal(t, 3, inner.(*Object).Line)
}

func TestJSONDecodeComments(t *testing.T) {
	text := []byte(`{
  // the port to listen on
  "port": 8080,
  /* block
     comment */
  "host": "localhost",
}`)

	_, err := JSON.Decode(text, DecodeOptions{})
	require.Error(t, err)

	tree, err := JSON.Decode(text, DecodeOptions{AllowComments: true})
	require.NoError(t, err)
	require.Equal(t, []string{"port", "host"}, tree.(*Object).Keys())
}

func TestJSONDecodeCommentsKeepLines(t *testing.T) {
	text := "{\n// comment\n\"a\": 1,\n\"b\": }"

	_, err := JSON.Decode([]byte(text), DecodeOptions{AllowComments: true})

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Equal(t, 4, syntaxErr.Line)
}

func TestJSONDecodeTrailingData(t *testing.T) {
	_, err := JSON.Decode([]byte(`{"a": 1} {"b": 2}`), DecodeOptions{})

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestJSONDecodeEmpty(t *testing.T) {
	_, err := JSON.Decode([]byte("  "), DecodeOptions{})

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestJSONEncodeDiscriminatorFirst(t *testing.T) {
	obj := NewObject(3)
	obj.Set("id", "I1")
	obj.Set("total", int64(42))
	obj.Set("@c", "Invoice")
	obj.Set("note", nil)

	text, err := JSON.Encode(obj, EncodeOptions{DiscriminatorKey: "@c"})
	require.NoError(t, err)
	require.Equal(t, `{"@c":"Invoice","id":"I1","total":42}`, string(text))

	text, err = JSON.Encode(obj, EncodeOptions{IncludeNulls: true})
	require.NoError(t, err)
	require.Equal(t, `{"id":"I1","total":42,"@c":"Invoice","note":null}`, string(text))
}

func TestJSONEncodeIndent(t *testing.T) {
	obj := NewObject(2)
	obj.Set("a", []any{int64(1), 2.5})
	obj.Set("b", map[string]any{"y": true, "x": "<tag>"})

	text, err := JSON.Encode(obj, EncodeOptions{Indent: true})
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": [\n    1,\n    2.5\n  ],\n  \"b\": {\n    \"x\": \"<tag>\",\n    \"y\": true\n  }\n}", string(text))
}

func TestJSONEncodeUnsupported(t *testing.T) {
	_, err := JSON.Encode([]any{make(chan int)}, EncodeOptions{})
	require.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestObjectDelete(t *testing.T) {
	obj := NewObject(3)
	obj.Set("a", 1)
	obj.Set("b", 2)
	obj.Set("a", 3)
	obj.Delete("a")
	obj.Delete("missing")

	require.Equal(t, []string{"b"}, obj.Keys())
	require.Equal(t, 1, obj.Len())
}

func TestLineIndexPosition(t *testing.T) {
	lines := newLineIndex([]byte("ab\ncd\n\nef"))

	tests := []struct {
		Offset       int64
		Line, Column int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3},
		{3, 2, 1},
		{6, 3, 1},
		{7, 4, 1},
		{8, 4, 2},
	}

	for _, test := range tests {
		line, column := lines.position(test.Offset)
		require.Equal(t, test.Line, line, "offset %d", test.Offset)
		require.Equal(t, test.Column, column, "offset %d", test.Offset)
	}
}

// objectPerLine returns an array of count objects, the object at index i on line i+2.
func objectPerLine(count int) []byte {
	lines := make([]string, 0, count+2)
	lines = append(lines, "[")

	for idx := range count {
		if idx < count-1 {
			lines = append(lines, `{"a":1},`)
		} else {
			lines = append(lines, `{"a":1}`)
		}
	}

	lines = append(lines, "]")

	return []byte(strings.Join(lines, "\n"))
}

func TestJSONObjectLinesInLargeDocument(t *testing.T) {
	tree, err := JSON.Decode(objectPerLine(20000), DecodeOptions{})
	require.NoError(t, err)

	values := tree.([]any)
	require.Len(t, values, 20000)
	require.Equal(t, 2, values[0].(*Object).Line)
	require.Equal(t, 20001, values[19999].(*Object).Line)
}

func BenchmarkJSONDecodeObjectPerLine(b *testing.B) {
	text := objectPerLine(40000)

	b.ResetTimer()

	for range b.N {
		if _, err := JSON.Decode(text, DecodeOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
