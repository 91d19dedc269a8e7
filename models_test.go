package remodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type Invoice struct {
	Extras

	ID      string  `json:"id"`
	Version int     `json:"version"`
	Total   float64 `json:"total"`
}

type Shape interface {
	Model
	Area() float64
}

type Circle struct {
	Extras
	Radius float64 `json:"radius"`
}

func (c *Circle) Area() float64 {
	return math.Pi * c.Radius * c.Radius
}

type Square struct {
	Extras
	Side float64 `json:"side"`
}

func (s *Square) Area() float64 {
	return s.Side * s.Side
}

type Drawing struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Shapes []Shape `json:"shapes"`
}

type ServerConfig struct {
	Host string   `json:"host"`
	Port int      `json:"port"`
	Tags []string `json:"tags"`
}

func testMetas() []Meta {
	return []Meta{
		NewMeta[Invoice]("Invoice", Attr("total"), Attr("version"), Attr("id")),
		NewMeta[Circle]("Circle", Attr("radius")),
		NewMeta[Square]("Square", Attr("side")),
		NewMeta[*Drawing]("Drawing", Attr("title"), Attr("id"), NestedAttr("shapes")),
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return testRegistryWithLogger(t, zap.NewNop())
}

func testRegistryWithLogger(t *testing.T, logger *zap.Logger) *Registry {
	t.Helper()

	metas, err := NewMetaStore(testMetas()...)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Logger = logger

	return NewRegistry(metas, opts)
}
