// dtype.go - Datentypen und Kodierung der Tensorwerte
//
// Enthält:
// - DType: Safetensors-Datentyp-Kennungen
// - decode: Rohbytes → float32 (F32, F16, BF16, F64, I32, I64)
// - encode: float32 → Rohbytes (F32, F16, BF16)

package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType names an element type as written in a safetensors header.
type DType string

const (
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
	F64  DType = "F64"
	I32  DType = "I32"
	I64  DType = "I64"
)

// Size returns the width of one element in bytes, or 0 for unknown types.
func (d DType) Size() int {
	switch d {
	case F16, BF16:
		return 2
	case F32, I32:
		return 4
	case F64, I64:
		return 8
	}
	return 0
}

// ParseDType accepts safetensors names and the common aliases.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(s) {
	case "f32", "fp32", "float32":
		return F32, nil
	case "f16", "fp16", "float16":
		return F16, nil
	case "bf16", "bfloat16":
		return BF16, nil
	case "f64", "float64":
		return F64, nil
	case "i32", "int32":
		return I32, nil
	case "i64", "int64":
		return I64, nil
	}
	return "", fmt.Errorf("safetensors: unknown dtype %q", s)
}

func decode(dtype DType, b []byte) ([]float32, error) {
	size := dtype.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrCorrupt, dtype)
	}
	if len(b)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %s", ErrCorrupt, len(b), dtype)
	}

	if dtype == BF16 {
		return bfloat16.DecodeFloat32(b), nil
	}

	out := make([]float32, len(b)/size)
	for i := range out {
		p := b[i*size:]
		switch dtype {
		case F32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p))
		case F16:
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(p)).Float32()
		case F64:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(p)))
		case I32:
			out[i] = float32(int32(binary.LittleEndian.Uint32(p)))
		case I64:
			out[i] = float32(int64(binary.LittleEndian.Uint64(p)))
		}
	}
	return out, nil
}

func encode(dtype DType, data []float32) ([]byte, error) {
	switch dtype {
	case BF16:
		return bfloat16.EncodeFloat32(data), nil
	case F16:
		b := make([]byte, 2*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(v).Bits())
		}
		return b, nil
	case F32:
		b := make([]byte, 4*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
		}
		return b, nil
	}
	return nil, fmt.Errorf("safetensors: cannot write dtype %q", dtype)
}
