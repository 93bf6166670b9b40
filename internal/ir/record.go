package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"
)

// Record is an ordered mapping from column or property name to Value.
//
// Insertion order is preserved by Keys and by JSON encoding. Setting an
// existing key keeps its original position.
type Record struct {
	keys []string
	vals map[string]Value
}

// Pair is a key-value pair for Record construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewRecord(P("id", Int(3)), P("name", String("Dave")))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewRecord creates a Record from pairs in order.
func NewRecord(pairs ...Pair) *Record {
	r := &Record{vals: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		r.Set(p.Key, p.Value)
	}
	return r
}

// FromMap converts a native map into a Record. Map iteration order is not
// stable, so keys are inserted in sorted order.
func FromMap(m map[string]any) (*Record, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	r := NewRecord()
	for _, k := range sortedKeys(keys) {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		r.Set(k, v)
	}
	return r, nil
}

// MustFromMap is FromMap that panics on error. Intended for fixtures.
func MustFromMap(m map[string]any) *Record {
	r, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Has reports whether key is present (a Null value counts as present).
func (r *Record) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.vals[key]
	return ok
}

// Get returns the value for key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Value returns the value for key, or Null when absent.
func (r *Record) Value(key string) Value {
	if v, ok := r.Get(key); ok {
		return v
	}
	return Null{}
}

// Set stores value under key and returns r for chaining. A nil value is
// stored as Null.
func (r *Record) Set(key string, value Value) *Record {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if value == nil {
		value = Null{}
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = value
	return r
}

// Delete removes key.
func (r *Record) Delete(key string) {
	if r == nil {
		return
	}
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.keys)
}

// Merge copies every key of other into r, overwriting existing values.
func (r *Record) Merge(other *Record) *Record {
	if other == nil {
		return r
	}
	for _, k := range other.keys {
		r.Set(k, other.vals[k])
	}
	return r
}

// Clone returns a deep copy. Nested records are cloned too.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		keys: slices.Clone(r.keys),
		vals: make(map[string]Value, len(r.vals)),
	}
	for k, v := range r.vals {
		out.vals[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case One:
		return One{Record: val.Record.Clone()}
	case Many:
		out := make(Many, len(val))
		for i, rec := range val {
			out[i] = rec.Clone()
		}
		return out
	case Bytes:
		return Bytes(slices.Clone([]byte(val)))
	default:
		return v
	}
}

// Subset returns a new Record holding only the given keys that are
// present in r, in the order given.
func (r *Record) Subset(keys ...string) *Record {
	out := NewRecord()
	for _, k := range keys {
		if v, ok := r.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// Filter returns a new Record holding the keys of r for which keep
// returns true, in r's order.
func (r *Record) Filter(keep func(key string, value Value) bool) *Record {
	out := NewRecord()
	if r == nil {
		return out
	}
	for _, k := range r.keys {
		if keep(k, r.vals[k]) {
			out.Set(k, r.vals[k])
		}
	}
	return out
}

// ToMap converts the record into native Go values (see ToAny).
func (r *Record) ToMap() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = ToAny(r.vals[k])
	}
	return out
}

// Equal reports whether both records hold the same keys with strictly
// equal values, ignoring key order.
func (r *Record) Equal(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	for _, k := range r.Keys() {
		ov, ok := other.Get(k)
		if !ok || !valuesEqual(r.vals[k], ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case One:
		bv, ok := b.(One)
		if !ok {
			return false
		}
		if av.Record == nil || bv.Record == nil {
			return av.Record == nil && bv.Record == nil
		}
		return av.Record.Equal(bv.Record)
	case Many:
		bv, ok := b.(Many)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Time:
		bv, ok := b.(Time)
		return ok && time.Time(av).Equal(time.Time(bv))
	default:
		return a == b
	}
}

// String renders the record as JSON.
func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<record: %v>", err)
	}
	return string(b)
}

// MarshalJSON encodes the record as a JSON object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalValue(r.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalValue marshals a Value to JSON bytes.
func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Time:
		return json.Marshal(time.Time(val).UTC().Format(TimeLayout))
	case Bytes:
		return json.Marshal(string(val))
	case One:
		return val.Record.MarshalJSON()
	case Many:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, rec := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := rec.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalJSON decodes a JSON object keeping key order. Objects become
// One, arrays of objects become Many, integral numbers become Int.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}
	rec, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// ParseRecord decodes a single JSON object into a Record.
func ParseRecord(data []byte) (*Record, error) {
	r := NewRecord()
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseRecords decodes either a JSON object or an array of objects.
func ParseRecords(data []byte) ([]*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		many, err := decodeArray(dec)
		if err != nil {
			return nil, err
		}
		return many, nil
	}
	rec, err := ParseRecord(trimmed)
	if err != nil {
		return nil, err
	}
	return []*Record{rec}, nil
}

// decodeObject reads object members after the opening brace.
func decodeObject(dec *json.Decoder) (*Record, error) {
	r := NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		r.Set(key, val)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return r, nil
}

// decodeArray reads array elements after the opening bracket. Every
// element must be an object.
func decodeArray(dec *json.Decoder) (Many, error) {
	many := Many{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("[%d]: list elements must be objects", len(many))
		}
		rec, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", len(many), err)
		}
		many = append(many, rec)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return many, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch val := tok.(type) {
	case json.Delim:
		switch val {
		case '{':
			rec, err := decodeObject(dec)
			if err != nil {
				return nil, err
			}
			return One{Record: rec}, nil
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", val)
		}
	case nil:
		return Null{}, nil
	default:
		return FromAny(val)
	}
}
