package remodel

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeOrder(t *testing.T) {
	type Entry struct {
		Extras
		Version int    `json:"version"`
		Name    string `json:"name"`
		ID      string `json:"id"`
	}

	reg := NewRegistry(MustMetaStore(NewMeta[Entry]("Entry", Attr("name"), Attr("version"), Attr("id"))), DefaultOptions())

	entry := &Entry{ID: "e1", Version: 2, Name: "first"}
	entry.SetAttribute("zeta", 1)
	entry.SetAttribute("alpha", 2)

	text, err := reg.Typed().Serialize(entry)
	require.NoError(t, err)
	require.Equal(t, `{"@c":"Entry","id":"e1","version":2,"name":"first","alpha":2,"zeta":1}`, string(text))
}

func TestEncodeMapsSorted(t *testing.T) {
	reg := NewRegistry(nil, DefaultOptions())

	text, err := reg.Config().Serialize(map[int]string{10: "b", 2: "a"})
	require.NoError(t, err)
	require.JSONEq(t, `{"10":"b","2":"a"}`, string(text))
	require.Less(t, bytes.Index(text, []byte(`"10"`)), bytes.Index(text, []byte(`"2"`)))
}

func TestEncodeTextMarshaler(t *testing.T) {
	type Endpoint struct {
		IP      net.IP    `json:"ip"`
		Started time.Time `json:"started"`
	}

	reg := NewRegistry(nil, DefaultOptions())

	endpoint := Endpoint{
		IP:      net.IPv4(10, 0, 0, 1),
		Started: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	values, err := reg.Config().ToMap(endpoint)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"ip": "10.0.0.1", "started": "2024-05-01T12:00:00Z"}, values)

	decoded, err := ConvertTo[Endpoint](reg.Config(), endpoint)
	require.NoError(t, err)
	require.True(t, endpoint.IP.Equal(decoded.IP))
	require.True(t, endpoint.Started.Equal(decoded.Started))
}

func TestEncodeOmitEmpty(t *testing.T) {
	type Settings struct {
		Name    string `json:"name"`
		Comment string `json:"comment,omitempty"`
		Retries int    `json:"retries,omitempty"`
	}

	reg := NewRegistry(nil, DefaultOptions())

	values, err := reg.Config().ToMap(Settings{Name: "a"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "a"}, values)

	values, err = reg.Config().ToMap(Settings{Retries: 3})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "", "retries": int64(3)}, values)
}

func TestEncodeSharedReferences(t *testing.T) {
	type Leaf struct{ Name string }

	type Tree struct {
		Left  *Leaf
		Right *Leaf
	}

	reg := NewRegistry(nil, DefaultOptions())

	// the same pointer twice is not a cycle
	leaf := &Leaf{Name: "x"}
	values, err := reg.Config().ToMap(Tree{Left: leaf, Right: leaf})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"Left":  map[string]any{"Name": "x"},
		"Right": map[string]any{"Name": "x"},
	}, values)

	type Ring struct {
		Items []any
	}

	ring := &Ring{Items: make([]any, 1)}
	ring.Items[0] = ring.Items

	_, err = reg.Config().ToMap(ring)
	require.ErrorIs(t, err, ErrCycle)
}

func TestEncodeNestedAttributeTagsValues(t *testing.T) {
	type Payload struct {
		Kind string `json:"kind"`
	}

	type Envelope struct {
		ID      string `json:"id"`
		Payload any    `json:"payload"`
		Plain   any    `json:"plain"`
	}

	reg := NewRegistry(MustMetaStore(
		NewMeta[Envelope]("Envelope", Attr("id"), NestedAttr("payload"), Attr("plain")),
	), DefaultOptions())

	values, err := reg.PrettyPrint().ToMap(Envelope{ID: "e1", Payload: Payload{Kind: "a"}, Plain: Payload{Kind: "b"}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"@c":      "Envelope",
		"id":      "e1",
		"payload": map[string]any{"@c": "Payload", "kind": "a"},
		"plain":   map[string]any{"kind": "b"},
	}, values)

	// bootstrap tags every struct
	values, err = reg.Bootstrap().ToMap(Envelope{ID: "e1", Plain: Payload{Kind: "b"}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"@c": "Payload", "kind": "b"}, values["plain"])
}

func TestEncodeNullsOmitted(t *testing.T) {
	type Node struct {
		Name     string            `json:"name"`
		Parent   *Node             `json:"parent"`
		Labels   map[string]string `json:"labels"`
		Children []*Node           `json:"children"`
		Value    any               `json:"value"`
	}

	reg := NewRegistry(nil, DefaultOptions())

	text, err := reg.Config().Serialize(Node{Name: "root", Children: []*Node{nil}})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"root","children":[null]}`, string(text))
}
