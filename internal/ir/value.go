package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// DataValue is a sealed interface over the value shapes an inference engine
// accepts in a data payload. Only DataInt, DataReal, DataIntVector,
// DataRealVector and DataMatrix implement it.
type DataValue interface {
	dataValue() // Sealed - only these types implement it
}

// DataInt is a scalar integer (counts, dimensions).
type DataInt int64

func (DataInt) dataValue() {}

// DataReal is a scalar real.
type DataReal float64

func (DataReal) dataValue() {}

// DataIntVector is an integer vector (index arrays, ordinal outcomes).
type DataIntVector []int64

func (DataIntVector) dataValue() {}

// DataRealVector is a real vector.
type DataRealVector []float64

func (DataRealVector) dataValue() {}

// DataMatrix is a row-major real matrix (covariate designs).
type DataMatrix [][]float64

func (DataMatrix) dataValue() {}

// DataPayload maps data-block variable names to values. This is the
// structured payload handed to the inference engine, and the input to
// DataHash. Use SortedKeys for deterministic iteration.
type DataPayload map[string]DataValue

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which can produce a different order.
func (p DataPayload) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. Uses unicode/utf16.Encode for correct surrogate handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for DataPayload with sorted keys.
// This is the encoding written for engine consumption (e.g. a CmdStan data
// file). It is NOT canonical JSON - use MarshalCanonical for hashing.
func (p DataPayload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range p.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalDataValue(p[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalDataValue marshals a DataValue to JSON bytes.
func MarshalDataValue(v DataValue) ([]byte, error) {
	switch val := v.(type) {
	case DataInt:
		return json.Marshal(int64(val))
	case DataReal:
		return json.Marshal(float64(val))
	case DataIntVector:
		return json.Marshal([]int64(val))
	case DataRealVector:
		return json.Marshal([]float64(val))
	case DataMatrix:
		return json.Marshal([][]float64(val))
	default:
		return nil, fmt.Errorf("unknown DataValue type: %T", v)
	}
}

// Int extracts a scalar int variable from the payload.
func (p DataPayload) Int(name string) (int64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("payload variable %q not found", name)
	}
	n, ok := v.(DataInt)
	if !ok {
		return 0, fmt.Errorf("payload variable %q is %T, want int", name, v)
	}
	return int64(n), nil
}

// IntVector extracts an integer vector variable from the payload.
func (p DataPayload) IntVector(name string) ([]int64, error) {
	v, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("payload variable %q not found", name)
	}
	vec, ok := v.(DataIntVector)
	if !ok {
		return nil, fmt.Errorf("payload variable %q is %T, want int vector", name, v)
	}
	return []int64(vec), nil
}

// RealVector extracts a real vector variable from the payload.
func (p DataPayload) RealVector(name string) ([]float64, error) {
	v, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("payload variable %q not found", name)
	}
	vec, ok := v.(DataRealVector)
	if !ok {
		return nil, fmt.Errorf("payload variable %q is %T, want real vector", name, v)
	}
	return []float64(vec), nil
}

// Matrix extracts a matrix variable from the payload.
func (p DataPayload) Matrix(name string) ([][]float64, error) {
	v, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("payload variable %q not found", name)
	}
	m, ok := v.(DataMatrix)
	if !ok {
		return nil, fmt.Errorf("payload variable %q is %T, want matrix", name, v)
	}
	return [][]float64(m), nil
}
