package ops

import (
	"math"

	"github.com/joeycumines/go-opcore/operr"
	"github.com/joeycumines/go-opcore/resource"
)

// Args are the positional arguments of one op call, as passed by the
// caller (e.g. values exported from a script engine).
type Args []any

func (a Args) missing(i int) error {
	return operr.Newf(operr.KindInvalidArgument, "argument %d is required", i)
}

func (a Args) invalid(i int, want string) error {
	return operr.Newf(operr.KindInvalidArgument, "argument %d must be %s, got %T", i, want, a[i])
}

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Int returns argument i as an integer. Floats must be integral.
func (a Args) Int(i int) (int64, error) {
	if i >= len(a) {
		return 0, a.missing(i)
	}
	switch v := a[i].(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, a.invalid(i, "an integer in range")
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, a.invalid(i, "an integer")
		}
		return int64(v), nil
	case resource.ID:
		return int64(v), nil
	default:
		return 0, a.invalid(i, "an integer")
	}
}

// IntOr is Int, returning def when argument i is absent or nil.
func (a Args) IntOr(i int, def int64) (int64, error) {
	if i >= len(a) || a[i] == nil {
		return def, nil
	}
	return a.Int(i)
}

// ResourceID returns argument i as a resource id.
func (a Args) ResourceID(i int) (resource.ID, error) {
	v, err := a.Int(i)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > math.MaxUint32 {
		return 0, a.invalid(i, "a resource id")
	}
	return resource.ID(v), nil
}

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
	if i >= len(a) {
		return "", a.missing(i)
	}
	if s, ok := a[i].(string); ok {
		return s, nil
	}
	return "", a.invalid(i, "a string")
}

// Bytes returns argument i as a byte slice. Strings are converted.
func (a Args) Bytes(i int) ([]byte, error) {
	if i >= len(a) {
		return nil, a.missing(i)
	}
	switch v := a[i].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, a.invalid(i, "bytes")
	}
}
