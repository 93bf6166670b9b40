package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface over the values a Record can hold.
//
// Scalars are Null, String, Int, Float, Bool, Time and Bytes. Nested
// relationship values are One (a single child record, possibly absent)
// and Many (an ordered list of child records).
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is an explicit SQL NULL.
type Null struct{}

func (Null) irValue() {}

// String is a text value.
type String string

func (String) irValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) irValue() {}

// Float is a floating point value.
type Float float64

func (Float) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Time is a timestamp value as returned by drivers that parse
// DATETIME columns.
type Time time.Time

func (Time) irValue() {}

// Bytes is a binary value.
type Bytes []byte

func (Bytes) irValue() {}

// One holds the child record of a one-to-one edge. A nil Record means
// the child is absent.
type One struct {
	Record *Record
}

func (One) irValue() {}

// Many holds the ordered child records of a one-to-many edge.
type Many []*Record

func (Many) irValue() {}

// IsScalar reports whether v is a column value rather than a nested
// relationship value.
func IsScalar(v Value) bool {
	switch v.(type) {
	case One, Many, nil:
		return false
	default:
		return true
	}
}

// IsNull reports whether v is Null. A nil Value counts as Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromAny converts a native Go value into a Value.
//
// Maps become One, slices of maps (or records) become Many. Numbers keep
// their integer-ness: json.Number and *big.Int are decoded as Int when
// they fit in int64 and as Float otherwise. Unsupported types are an
// error, so cardinality mistakes surface at construction time.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case *Record:
		return One{Record: val}, nil
	case []*Record:
		return Many(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return uintValue(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	case *big.Int:
		if val.IsInt64() {
			return Int(val.Int64()), nil
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return Float(f), nil
	case time.Time:
		return Time(val), nil
	case map[string]any:
		rec, err := FromMap(val)
		if err != nil {
			return nil, err
		}
		return One{Record: rec}, nil
	case []map[string]any:
		many := make(Many, 0, len(val))
		for i, m := range val {
			rec, err := FromMap(m)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			many = append(many, rec)
		}
		return many, nil
	case []any:
		many := make(Many, 0, len(val))
		for i, elem := range val {
			nested, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			one, ok := nested.(One)
			if !ok || one.Record == nil {
				return nil, fmt.Errorf("[%d]: list elements must be records, got %T", i, elem)
			}
			many = append(many, one.Record)
		}
		return many, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func uintValue(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d out of int64 range", n)
	}
	return Int(int64(n)), nil
}

// FromDB converts a value scanned from database/sql into a Value.
// Byte slices are treated as text since drivers return TEXT columns
// that way when the declared type is unknown.
func FromDB(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case int64:
		return Int(val)
	case float64:
		return Float(val)
	case bool:
		return Bool(val)
	case []byte:
		return String(string(val))
	case string:
		return String(val)
	case time.Time:
		return Time(val)
	default:
		if conv, err := FromAny(val); err == nil && IsScalar(conv) {
			return conv
		}
		return String(fmt.Sprint(val))
	}
}

// ToAny converts a Value back into a native Go value. Scalars become
// driver-compatible values; One becomes map[string]any (or nil) and Many
// becomes []any.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return time.Time(val)
	case Bytes:
		return []byte(val)
	case One:
		if val.Record == nil {
			return nil
		}
		return val.Record.ToMap()
	case Many:
		out := make([]any, len(val))
		for i, rec := range val {
			out[i] = rec.ToMap()
		}
		return out
	default:
		return nil
	}
}

// TimeLayout is the text form used for Time values in keys and JSON.
const TimeLayout = "2006-01-02 15:04:05"

// Format renders a scalar for display. Nested values render as their
// JSON form.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Time:
		return time.Time(val).UTC().Format(TimeLayout)
	case Bytes:
		return string(val)
	default:
		b, err := marshalValue(v)
		if err != nil {
			return fmt.Sprintf("<%T>", v)
		}
		return string(b)
	}
}

// sortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func sortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.SortFunc(out, compareKeysRFC8785)
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785. Go's default string comparison uses UTF-8,
// which orders supplementary characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
