package remodel

import (
	"fmt"
	"math"
	"strconv"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

var (
	notSigned   = []string{"foobar", "", "1e4"}
	notUnsigned = []string{"foobar", "", "1e4", "-1"}
)

// textBounds describes how the textual form of a T is read: both ends of its range
// must round trip, everything else fails.
type textBounds[T any] struct {
	Min, Max       string
	MinOut, MaxOut T

	OutOfRange []string
	Invalid    []string
	Valid      []string
}

// boundsCheck runs against a Source constructor.
type boundsCheck func(t *testing.T, m *Mapper, toSource func(string) Source)

func checkBounds[T any](b textBounds[T]) boundsCheck {
	return func(t *testing.T, m *Mapper, toSource func(string) Source) {
		var zero T

		t.Run(fmt.Sprintf("%T", zero), func(t *testing.T) {
			for in, out := range map[string]T{b.Min: b.MinOut, b.Max: b.MaxOut} {
				actual, err := UnmarshalNew[T](m, toSource(in))
				require.NoError(t, err, "input %q", in)
				require.Equal(t, out, actual)
			}

			for _, in := range b.OutOfRange {
				actual, err := UnmarshalNew[T](m, toSource(in))
				require.ErrorIs(t, err, strconv.ErrRange, "input %q", in)
				require.Equal(t, zero, actual)
			}

			for _, in := range b.Invalid {
				actual, err := UnmarshalNew[T](m, toSource(in))
				require.ErrorIs(t, err, ErrNotSupported, "input %q", in)
				require.Equal(t, zero, actual)
			}

			for _, in := range b.Valid {
				_, err := UnmarshalNew[T](m, toSource(in))
				require.NoError(t, err, "input %q", in)
			}
		})
	}
}

func scalarBounds() []boundsCheck {
	maxUint64 := strconv.FormatUint(math.MaxUint64, 10)

	checks := []boundsCheck{
		checkBounds(textBounds[int8]{Min: "-128", MinOut: -128, Max: "127", MaxOut: 127,
			OutOfRange: []string{"-129", "128"}, Invalid: notSigned}),

		checkBounds(textBounds[int16]{Min: "-32768", MinOut: -32768, Max: "32767", MaxOut: 32767,
			OutOfRange: []string{"-32769", "32768"}, Invalid: notSigned}),

		checkBounds(textBounds[int32]{Min: "-2147483648", MinOut: math.MinInt32, Max: "2147483647", MaxOut: math.MaxInt32,
			OutOfRange: []string{"-2147483649", "2147483648"}, Invalid: notSigned}),

		checkBounds(textBounds[int64]{Min: "-9223372036854775808", MinOut: math.MinInt64, Max: "9223372036854775807", MaxOut: math.MaxInt64,
			OutOfRange: []string{"-9223372036854775809", "9223372036854775808"}, Invalid: notSigned}),

		checkBounds(textBounds[uint8]{Min: "0", Max: "255", MaxOut: math.MaxUint8,
			OutOfRange: []string{"256"}, Invalid: notUnsigned}),

		checkBounds(textBounds[uint16]{Min: "0", Max: "65535", MaxOut: math.MaxUint16,
			OutOfRange: []string{"65536"}, Invalid: notUnsigned}),

		checkBounds(textBounds[uint32]{Min: "0", Max: "4294967295", MaxOut: math.MaxUint32,
			OutOfRange: []string{"4294967296"}, Invalid: notUnsigned}),

		checkBounds(textBounds[uint64]{Min: "0", Max: maxUint64, MaxOut: math.MaxUint64,
			OutOfRange: []string{"18446744073709551616"}, Invalid: notUnsigned}),

		checkBounds(textBounds[bool]{Min: "true", MinOut: true, Max: "false",
			Invalid: notUnsigned}),

		checkBounds(textBounds[float64]{Min: "-1234.5", MinOut: -1234.5, Max: "1235.5", MaxOut: 1235.5,
			Valid: []string{"1e4", "-1", "0.0024"}, Invalid: []string{"foobar", ""}}),
	}

	if unsafe.Sizeof(int(0)) == 8 {
		checks = append(checks,
			checkBounds(textBounds[int]{Min: "-9223372036854775808", MinOut: math.MinInt, Max: "9223372036854775807", MaxOut: math.MaxInt,
				OutOfRange: []string{"-9223372036854775809", "9223372036854775808"}, Invalid: notSigned}),

			checkBounds(textBounds[uint]{Min: "0", Max: maxUint64, MaxOut: math.MaxUint,
				OutOfRange: []string{"18446744073709551616"}, Invalid: notUnsigned}),
		)
	}

	return checks
}

func TestStringSource(t *testing.T) {
	for _, check := range scalarBounds() {
		check(t, configMapper(), func(value string) Source { return StringSource(value) })
	}
}

func TestSimpleStringSource(t *testing.T) {
	for _, check := range scalarBounds() {
		check(t, configMapper(), func(value string) Source { return simpleStringSource{Value: value} })
	}
}

func TestStringSourceKind(t *testing.T) {
	require.Equal(t, KindString, kindOf(StringSource("1")))
	require.Equal(t, KindUnknown, kindOf(simpleStringSource{Value: "1"}))

	_, err := StringSource("a").Get("b")
	require.ErrorIs(t, err, ErrNotSupported)
}

// simpleStringSource has no sized integer methods, values are range checked by the decoder.
type simpleStringSource struct {
	EmptySource
	Value string
}

func (s simpleStringSource) Bool() (bool, error) {
	return StringSource(s.Value).Bool()
}

func (s simpleStringSource) Float() (float64, error) {
	return StringSource(s.Value).Float()
}

func (s simpleStringSource) Int() (int64, error) {
	return StringSource(s.Value).Int()
}

func (s simpleStringSource) Uint() (uint64, error) {
	return StringSource(s.Value).Uint()
}

func (s simpleStringSource) String() (string, error) {
	return "", ErrNotSupported
}
