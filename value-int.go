package remodel

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gum/remodel/codec"
)

// intOf converts a numeric tree value to an int64.
func intOf(value any) (int64, error) {
	switch value := value.(type) {
	case codec.Number:
		intValue, err := value.Int64()
		return handleSyntaxErr(string(value), intValue, err)

	case int64:
		return value, nil

	case uint64:
		if value > math.MaxInt64 {
			return 0, fmt.Errorf("invalid int64 value %d: %w", value, strconv.ErrRange)
		}

		return int64(value), nil

	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("float %v is not an integer: %w", value, ErrNotSupported)
		}

		if value < math.MinInt64 || value >= math.MaxInt64 {
			return 0, fmt.Errorf("invalid int64 value %v: %w", value, strconv.ErrRange)
		}

		return int64(value), nil

	default:
		return 0, ErrNotSupported
	}
}

// uintOf converts a numeric tree value to an uint64.
func uintOf(value any) (uint64, error) {
	switch value := value.(type) {
	case codec.Number:
		uintValue, err := value.Uint64()
		return handleSyntaxErr(string(value), uintValue, err)

	case uint64:
		return value, nil

	case int64:
		if value < 0 {
			return 0, fmt.Errorf("negative value %d: %w", value, ErrNotSupported)
		}

		return uint64(value), nil

	case float64:
		if value < 0 || value != math.Trunc(value) {
			return 0, fmt.Errorf("float %v is not an unsigned integer: %w", value, ErrNotSupported)
		}

		if value >= math.MaxUint64 {
			return 0, fmt.Errorf("invalid uint64 value %v: %w", value, strconv.ErrRange)
		}

		return uint64(value), nil

	default:
		return 0, ErrNotSupported
	}
}

// floatOf converts a numeric tree value to a float64.
func floatOf(value any) (float64, error) {
	switch value := value.(type) {
	case codec.Number:
		floatValue, err := value.Float64()
		return handleSyntaxErr(string(value), floatValue, err)

	case float64:
		return value, nil

	case int64:
		return float64(value), nil

	case uint64:
		return float64(value), nil

	default:
		return 0, ErrNotSupported
	}
}

// dynamicNumber picks the Go representation of a number decoded into an interface:
// int64 for integers, uint64 for integers above the int64 range, float64 otherwise.
func dynamicNumber(source Source) (any, error) {
	if intValue, err := source.Int(); err == nil {
		return intValue, nil
	}

	if uintValue, err := source.Uint(); err == nil {
		return uintValue, nil
	}

	floatValue, err := source.Float()
	if err != nil {
		return nil, fmt.Errorf("get number value: %w", err)
	}

	return floatValue, nil
}
