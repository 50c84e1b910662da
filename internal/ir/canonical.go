package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-hash computation (spec hash, data hash).
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Numbers use shortest round-trip decimal form; NaN and Inf are errors
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case DataInt:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case DataReal:
		return marshalCanonicalNumber(float64(val))
	case DataIntVector:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return val[i], true })
	case DataRealVector:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return val[i], true })
	case DataMatrix:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return DataRealVector(val[i]), true })
	case DataPayload:
		return marshalCanonicalPayload(val)
	case string:
		return marshalCanonicalString(val)
	case int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(nil, val, 10), nil
	case float64:
		return marshalCanonicalNumber(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return val[i], true })
	case []float64:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return val[i], true })
	case []int64:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return val[i], true })
	case []string:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) { return val[i], true })
	case map[string]any:
		return marshalCanonicalMap(val)
	default:
		// Structs (ModelSpec and friends) round-trip through encoding/json
		// into a generic map before canonical serialization.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonical JSON: pre-marshal %T: %w", v, err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var generic any
		if err := dec.Decode(&generic); err != nil {
			return nil, fmt.Errorf("canonical JSON: re-decode %T: %w", v, err)
		}
		return marshalCanonicalGeneric(generic)
	}
}

// marshalCanonicalGeneric handles values decoded from JSON with UseNumber.
func marshalCanonicalGeneric(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return strconv.AppendInt(nil, n, 10), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("canonical JSON: bad number %q", val)
		}
		return marshalCanonicalNumber(f)
	case string:
		return marshalCanonicalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		return marshalCanonicalSlice(len(val), func(i int) (any, bool) {
			elem := val[i]
			if elem == nil {
				return nil, false
			}
			return elem, true
		})
	case map[string]any:
		return marshalCanonicalMap(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalSlice(n int, at func(int) (any, bool)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		elem, ok := at(i)
		if !ok {
			return nil, fmt.Errorf("array[%d]: null is forbidden in canonical JSON", i)
		}
		var (
			b   []byte
			err error
		)
		if g, isNum := elem.(json.Number); isNum {
			b, err = marshalCanonicalGeneric(g)
		} else {
			b, err = marshalCanonical(elem)
		}
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeysRFC8785(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonicalGeneric(m[k])
		if err != nil {
			// Values may also be concrete DataValues when built by hand.
			valBytes, err = marshalCanonical(m[k])
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalCanonicalPayload(p DataPayload) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(p[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func sortKeysRFC8785(keys []string) {
	// Insertion sort is fine: payload and spec objects are small.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && compareKeysRFC8785(keys[j], keys[j-1]) < 0; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

// marshalCanonicalNumber renders a float per RFC 8785 number serialization:
// the ES6 Number-to-string form (shortest round-trip decimal, integral
// values without a fractional part, negative zero normalized to zero).
// NaN and infinities cannot appear in JSON and are errors.
func marshalCanonicalNumber(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number is forbidden in canonical JSON: %v", f)
	}
	if f == 0 {
		// Covers -0.0 as well: RFC 8785 serializes it as "0".
		return []byte("0"), nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(nil, int64(f), 10), nil
	}
	return appendES6Number(nil, f), nil
}

// appendES6Number formats a nonzero finite float the way ES6 Number.toString
// does: plain decimal notation while 1e-6 <= |f| < 1e21, exponential notation
// outside that range with the exponent's leading zeros stripped ("1e-7",
// "2e+21"). Go's 'e' verb pads the exponent to two digits, so the exponent
// is rewritten after formatting.
func appendES6Number(dst []byte, f float64) []byte {
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.AppendFloat(dst, f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.LastIndexByte(s, 'e')
	mantissa, exp := s[:i], s[i+1:]
	sign := ""
	if exp[0] == '+' || exp[0] == '-' {
		sign, exp = exp[:1], exp[1:]
	}
	exp = strings.TrimLeft(exp, "0")
	dst = append(dst, mantissa...)
	dst = append(dst, 'e')
	dst = append(dst, sign...)
	return append(dst, exp...)
}

// marshalCanonicalString produces canonical JSON string with NFC
// normalization. RFC 8785 compliance:
//   - No HTML escaping (<, >, & are NOT escaped)
//   - U+2028 and U+2029 are NOT escaped
//   - Only control characters (U+0000-U+001F), backslash, and quote escape
func marshalCanonicalString(s string) ([]byte, error) {
	// NFC normalize at serialization boundary
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's json.Encoder escapes U+2028/U+2029 for JavaScript compatibility,
	// violating RFC 8785. Unescape them, but leave \\u2028 (literal
	// backslash followed by "u2028" text) untouched.
	result = unescapeU2028U2029(result)

	return result, nil
}

// unescapeU2028U2029 converts \u2028 and \u2029 escape sequences to literal
// characters per RFC 8785, preserving sequences preceded by an odd number of
// backslashes (those encode literal backslash text, not the character).
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 6
				continue
			}
		}
		out = append(out, data[i])
		i++
	}
	return out
}
