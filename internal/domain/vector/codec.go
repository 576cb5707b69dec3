// Package vector holds the reference-vector encoding contract and the
// similarity math used to match items against taxonomy categories.
//
// Encoding v1 is a binary blob:
//
//	byte 0     magic 'V'
//	byte 1     version (1)
//	bytes 2-5  dimension, uint32 little-endian
//	bytes 6-   dimension x float32 little-endian
//
// Decode also accepts the legacy delimited text form "[0.1,0.2,...]" that
// older category rows were written with.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	magic         byte = 'V'
	VersionV1     byte = 1
	headerSize         = 6
	bytesPerValue      = 4
	// MaxDimensions bounds decoded vectors so a corrupt header cannot
	// trigger a huge allocation.
	MaxDimensions = 16384
)

// Encode serializes v using the current (v1) encoding.
func Encode(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, ErrEmptyVector
	}
	if len(v) > MaxDimensions {
		return nil, fmt.Errorf("%w: %d dimensions exceeds %d", ErrMalformed, len(v), MaxDimensions)
	}
	if err := checkFinite(v); err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+len(v)*bytesPerValue)
	buf[0] = magic
	buf[1] = VersionV1
	binary.LittleEndian.PutUint32(buf[2:headerSize], uint32(len(v)))
	for i, f := range v {
		off := headerSize + i*bytesPerValue
		binary.LittleEndian.PutUint32(buf[off:off+bytesPerValue], math.Float32bits(f))
	}
	return buf, nil
}

// Decode parses either a v1 blob or the legacy text form. A nil or blank
// input yields (nil, nil): the category simply has no reference vector.
func Decode(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == magic {
		return decodeBinary(data)
	}
	return DecodeText(string(data))
}

func decodeBinary(data []byte) ([]float32, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrMalformed, len(data))
	}
	if data[1] != VersionV1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[1])
	}

	dim := int(binary.LittleEndian.Uint32(data[2:headerSize]))
	if dim == 0 || dim > MaxDimensions {
		return nil, fmt.Errorf("%w: dimension %d", ErrMalformed, dim)
	}
	if want := headerSize + dim*bytesPerValue; len(data) != want {
		return nil, fmt.Errorf("%w: expected %d bytes for %d dimensions, got %d", ErrMalformed, want, dim, len(data))
	}

	out := make([]float32, dim)
	for i := range out {
		off := headerSize + i*bytesPerValue
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+bytesPerValue]))
	}
	if err := checkFinite(out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeText parses the delimited text form, e.g. "[0.12, -0.5, 1e-3]".
// Surrounding brackets are optional; values are separated by commas.
func DecodeText(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyVector
	}

	parts := strings.Split(s, ",")
	if len(parts) > MaxDimensions {
		return nil, fmt.Errorf("%w: %d dimensions exceeds %d", ErrMalformed, len(parts), MaxDimensions)
	}
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
		out[i] = float32(f)
	}
	if err := checkFinite(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkFinite(v []float32) error {
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}
