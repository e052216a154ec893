package packet

import (
	"encoding/binary"
	"math"
)

// SampleType identifies the binary layout of a single sample element.
type SampleType int

// Sample types known to the data path. Binary, String and Struct samples are
// carried through packets untouched; typed readers only convert numeric types.
const (
	SampleTypeUndefined SampleType = iota
	SampleTypeFloat32
	SampleTypeFloat64
	SampleTypeUInt8
	SampleTypeInt8
	SampleTypeUInt16
	SampleTypeInt16
	SampleTypeUInt32
	SampleTypeInt32
	SampleTypeUInt64
	SampleTypeInt64
	SampleTypeRangeInt64
	SampleTypeComplexFloat32
	SampleTypeComplexFloat64
	SampleTypeBinary
	SampleTypeString
	SampleTypeStruct
	SampleTypeNull
)

var sampleTypeNames = map[SampleType]string{
	SampleTypeUndefined:      "Undefined",
	SampleTypeFloat32:        "Float32",
	SampleTypeFloat64:        "Float64",
	SampleTypeUInt8:          "UInt8",
	SampleTypeInt8:           "Int8",
	SampleTypeUInt16:         "UInt16",
	SampleTypeInt16:          "Int16",
	SampleTypeUInt32:         "UInt32",
	SampleTypeInt32:          "Int32",
	SampleTypeUInt64:         "UInt64",
	SampleTypeInt64:          "Int64",
	SampleTypeRangeInt64:     "RangeInt64",
	SampleTypeComplexFloat32: "ComplexFloat32",
	SampleTypeComplexFloat64: "ComplexFloat64",
	SampleTypeBinary:         "Binary",
	SampleTypeString:         "String",
	SampleTypeStruct:         "Struct",
	SampleTypeNull:           "Null",
}

// String returns the name of the sample type.
func (st SampleType) String() string {
	if name, ok := sampleTypeNames[st]; ok {
		return name
	}
	return "Unknown"
}

// Size returns the size in bytes of one element, or 0 for variable-size and
// composite types.
func (st SampleType) Size() int {
	switch st {
	case SampleTypeUInt8, SampleTypeInt8:
		return 1
	case SampleTypeUInt16, SampleTypeInt16:
		return 2
	case SampleTypeFloat32, SampleTypeUInt32, SampleTypeInt32:
		return 4
	case SampleTypeFloat64, SampleTypeUInt64, SampleTypeInt64, SampleTypeComplexFloat32:
		return 8
	case SampleTypeRangeInt64, SampleTypeComplexFloat64:
		return 16
	default:
		return 0
	}
}

// IsNumeric reports whether samples of this type are a single real number.
func (st SampleType) IsNumeric() bool {
	switch st {
	case SampleTypeFloat32, SampleTypeFloat64,
		SampleTypeUInt8, SampleTypeInt8,
		SampleTypeUInt16, SampleTypeInt16,
		SampleTypeUInt32, SampleTypeInt32,
		SampleTypeUInt64, SampleTypeInt64:
		return true
	default:
		return false
	}
}

// IsInteger reports whether the type is one of the integer kinds.
func (st SampleType) IsInteger() bool {
	return st.IsNumeric() && st != SampleTypeFloat32 && st != SampleTypeFloat64
}

// ReadFloat64 decodes element i of buf as float64.
func ReadFloat64(buf []byte, st SampleType, i int) float64 {
	switch st {
	case SampleTypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	case SampleTypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	case SampleTypeUInt8:
		return float64(buf[i])
	case SampleTypeInt8:
		return float64(int8(buf[i]))
	case SampleTypeUInt16:
		return float64(binary.LittleEndian.Uint16(buf[i*2:]))
	case SampleTypeInt16:
		return float64(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	case SampleTypeUInt32:
		return float64(binary.LittleEndian.Uint32(buf[i*4:]))
	case SampleTypeInt32:
		return float64(int32(binary.LittleEndian.Uint32(buf[i*4:])))
	case SampleTypeUInt64:
		return float64(binary.LittleEndian.Uint64(buf[i*8:]))
	case SampleTypeInt64:
		return float64(int64(binary.LittleEndian.Uint64(buf[i*8:])))
	default:
		return 0
	}
}

// ReadInt64 decodes element i of buf as int64. Floats are truncated.
func ReadInt64(buf []byte, st SampleType, i int) int64 {
	switch st {
	case SampleTypeInt64:
		return int64(binary.LittleEndian.Uint64(buf[i*8:]))
	case SampleTypeUInt64:
		return int64(binary.LittleEndian.Uint64(buf[i*8:]))
	case SampleTypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(buf[i*4:])))
	case SampleTypeUInt32:
		return int64(binary.LittleEndian.Uint32(buf[i*4:]))
	case SampleTypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	case SampleTypeUInt16:
		return int64(binary.LittleEndian.Uint16(buf[i*2:]))
	case SampleTypeInt8:
		return int64(int8(buf[i]))
	case SampleTypeUInt8:
		return int64(buf[i])
	default:
		return int64(ReadFloat64(buf, st, i))
	}
}

// WriteFloat64 encodes v as element i of buf.
func WriteFloat64(buf []byte, st SampleType, i int, v float64) {
	switch st {
	case SampleTypeFloat32:
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	case SampleTypeFloat64:
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	default:
		WriteInt64(buf, st, i, int64(v))
	}
}

// WriteInt64 encodes v as element i of buf.
func WriteInt64(buf []byte, st SampleType, i int, v int64) {
	switch st {
	case SampleTypeUInt8, SampleTypeInt8:
		buf[i] = byte(v)
	case SampleTypeUInt16, SampleTypeInt16:
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	case SampleTypeUInt32, SampleTypeInt32:
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	case SampleTypeUInt64, SampleTypeInt64:
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	case SampleTypeFloat32, SampleTypeFloat64:
		WriteFloat64(buf, st, i, float64(v))
	}
}

// EncodeFloat64s packs values into a buffer of the given numeric sample type.
func EncodeFloat64s(st SampleType, values []float64) []byte {
	buf := make([]byte, len(values)*st.Size())
	for i, v := range values {
		WriteFloat64(buf, st, i, v)
	}
	return buf
}

// EncodeInt64s packs values into a buffer of the given numeric sample type.
func EncodeInt64s(st SampleType, values []int64) []byte {
	buf := make([]byte, len(values)*st.Size())
	for i, v := range values {
		WriteInt64(buf, st, i, v)
	}
	return buf
}
