package codec

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupportedValue is returned when a tree contains a value the syntax cannot write.
var ErrUnsupportedValue = errors.New("unsupported value")

// EncodeOptions controls how a tree is written.
type EncodeOptions struct {
	// Indent enables multi-line output.
	Indent bool

	// IncludeNulls writes object properties with a nil value. They are skipped otherwise.
	IncludeNulls bool

	// DiscriminatorKey, when set, is written first in every object that carries it.
	DiscriminatorKey string
}

// DecodeOptions controls how text is read.
type DecodeOptions struct {
	// AllowComments accepts line and block comments where the syntax does not have them natively.
	AllowComments bool

	// Source names the origin of the text, e.g. a file name. It is only used in errors.
	Source string
}

// Syntax converts between a value tree and text.
type Syntax interface {
	// Name returns a short name like "json".
	Name() string

	// Encode writes a tree as text.
	Encode(tree any, opts EncodeOptions) ([]byte, error)

	// Decode reads text into a tree. Errors reading malformed text are of type *SyntaxError.
	Decode(text []byte, opts DecodeOptions) (any, error)
}

// SyntaxError reports malformed text.
type SyntaxError struct {
	Source string
	Line   int
	Column int
	Err    error
}

func (e *SyntaxError) Error() string {
	var b strings.Builder
	b.WriteString("syntax error")

	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}

	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}

	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// lineIndex maps byte offsets to 1-based line and column numbers.
type lineIndex []int

func newLineIndex(text []byte) lineIndex {
	starts := lineIndex{0}
	for idx, ch := range text {
		if ch == '\n' {
			starts = append(starts, idx+1)
		}
	}

	return starts
}

func (l lineIndex) position(offset int64) (line, column int) {
	// number of line starts not after offset
	line = sort.Search(len(l), func(idx int) bool {
		return int64(l[idx]) > offset
	})

	line = max(line, 1)

	return line, int(offset) - l[line-1] + 1
}

var lineInMessage = regexp.MustCompile(`line (\d+)`)

// lineOf extracts a line number from an error message of a third party parser, zero if none.
func lineOf(err error) int {
	match := lineInMessage.FindStringSubmatch(err.Error())
	if match == nil {
		return 0
	}

	line, _ := strconv.Atoi(match[1])
	return line
}
