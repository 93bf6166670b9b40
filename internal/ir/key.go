package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ScalarKey returns a normalized token for a scalar so that values which
// compare loosely equal produce the same token.
//
// Numbers and numeric strings normalize to the same token (Int(7),
// Float(7) and String("7") all match). Strings are NFC normalized so
// canonically equivalent text matches. Null only matches Null.
func ScalarKey(v Value) (string, error) {
	switch val := v.(type) {
	case nil, Null:
		return "n", nil
	case Int:
		return "v:" + strconv.FormatInt(int64(val), 10), nil
	case Float:
		return "v:" + formatNumber(float64(val)), nil
	case Bool:
		if val {
			return "v:1", nil
		}
		return "v:0", nil
	case String:
		return stringKey(string(val)), nil
	case Bytes:
		return stringKey(string(val)), nil
	case Time:
		return "s:" + time.Time(val).UTC().Format(TimeLayout), nil
	default:
		return "", fmt.Errorf("%T is not a scalar", v)
	}
}

func stringKey(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return "v:" + strconv.FormatInt(n, 10)
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return "v:" + formatNumber(f)
		}
	}
	return "s:" + norm.NFC.String(s)
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// LooselyEqual reports whether two scalars compare equal under ScalarKey
// normalization. Nested values are never loosely equal.
func LooselyEqual(a, b Value) bool {
	ka, err := ScalarKey(a)
	if err != nil {
		return false
	}
	kb, err := ScalarKey(b)
	if err != nil {
		return false
	}
	return ka == kb
}

// KeyOf returns a composite key for the given columns of r. Missing
// columns are treated as Null.
func KeyOf(r *Record, columns []string) (string, error) {
	parts := make([]string, len(columns))
	for i, c := range columns {
		k, err := ScalarKey(r.Value(c))
		if err != nil {
			return "", fmt.Errorf("column %q: %w", c, err)
		}
		parts[i] = k
	}
	b, err := json.Marshal(parts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Text returns the exact text form of a scalar. Numbers render in their
// shortest decimal form, so Int(230) and String("230") share a text, but
// strings are taken verbatim: "007" and "7" differ, as do canonically
// equivalent Unicode spellings. Null has no text form and reports false.
func Text(v Value) (string, bool) {
	switch val := v.(type) {
	case nil, Null:
		return "", false
	case Int:
		return strconv.FormatInt(int64(val), 10), true
	case Float:
		return formatNumber(float64(val)), true
	case Bool:
		if val {
			return "1", true
		}
		return "", true
	case String:
		return string(val), true
	case Bytes:
		return string(val), true
	case Time:
		return time.Time(val).UTC().Format(TimeLayout), true
	default:
		return "", false
	}
}

// SameText reports whether two scalars have the same exact text form.
// Null only matches Null. Nested values never match.
func SameText(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	ta, ok := Text(a)
	if !ok {
		return false
	}
	tb, ok := Text(b)
	if !ok {
		return false
	}
	return ta == tb
}
