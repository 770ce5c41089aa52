package client

import (
	"fmt"
	"math"
	"strings"
)

// RegisterType identifies one of the four Modbus register tables.
type RegisterType uint8

const (
	Coil RegisterType = iota + 1
	DiscreteInput
	InputRegister
	HoldingRegister
)

// registerTypes is the canonical order batched reads are issued in.
var registerTypes = [...]RegisterType{Coil, DiscreteInput, InputRegister, HoldingRegister}

func (t RegisterType) String() string {
	switch t {
	case Coil:
		return "coil"
	case DiscreteInput:
		return "discrete input"
	case InputRegister:
		return "input register"
	case HoldingRegister:
		return "holding register"
	}
	return fmt.Sprintf("register type %d", uint8(t))
}

// IsBit reports whether the table is bit-addressed. Coils and discrete
// inputs hold one bit per address; the other tables hold 16-bit words.
func (t RegisterType) IsBit() bool {
	return t == Coil || t == DiscreteInput
}

// Register describes one logical register: which table it lives in,
// where it starts and how many consecutive bits or words it occupies.
type Register interface {
	Type() RegisterType
	StartAddress() uint16
	Size() uint16
}

// ValueType is the wire encoding of a numeric register value.
type ValueType uint8

const (
	U16 ValueType = iota
	S16
	U32
	S32
	U64
	S64
	F32
	F64
)

// Words returns the number of 16-bit registers the encoding occupies.
func (v ValueType) Words() uint16 {
	switch v {
	case U16, S16:
		return 1
	case U32, S32, F32:
		return 2
	default:
		return 4
	}
}

func (v ValueType) String() string {
	switch v {
	case U16:
		return "u16"
	case S16:
		return "s16"
	case U32:
		return "u32"
	case S32:
		return "s32"
	case U64:
		return "u64"
	case S64:
		return "s64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("value type %d", uint8(v))
}

// ParseValueType maps a device-description type name to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(s) {
	case "u16", "uint16", "":
		return U16, nil
	case "s16", "int16":
		return S16, nil
	case "u32", "uint32":
		return U32, nil
	case "s32", "int32":
		return S32, nil
	case "u64", "uint64":
		return U64, nil
	case "s64", "int64":
		return S64, nil
	case "f32", "float32":
		return F32, nil
	case "f64", "float64":
		return F64, nil
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// WordOrder is the register order of multi-word values. The default
// places the most significant word at the lowest address; some devices
// store words the other way around.
type WordOrder uint8

const (
	HighWordFirst WordOrder = iota
	LowWordFirst
)

// BitRegister is a single coil or discrete input.
type BitRegister struct {
	Name string
	Kind RegisterType // Coil or DiscreteInput
	Addr uint16
}

func (r BitRegister) Type() RegisterType   { return r.Kind }
func (r BitRegister) StartAddress() uint16 { return r.Addr }
func (r BitRegister) Size() uint16         { return 1 }

// Value extracts the register's bit from a read session.
func (r BitRegister) Value(ses *ReadSession) (bool, error) {
	return ses.Bit(r.Kind, r.Addr)
}

// NumericRegister is an input or holding register holding a numeric
// value, possibly spanning several consecutive 16-bit words.
type NumericRegister struct {
	Name     string
	Kind     RegisterType // InputRegister or HoldingRegister
	Addr     uint16
	Encoding ValueType
	Order    WordOrder
	Scale    float64 // multiplier applied on decode; 0 means unscaled
	Unit     string
}

func (r NumericRegister) Type() RegisterType   { return r.Kind }
func (r NumericRegister) StartAddress() uint16 { return r.Addr }
func (r NumericRegister) Size() uint16         { return r.Encoding.Words() }

func (r NumericRegister) scale() float64 {
	if r.Scale == 0 {
		return 1
	}
	return r.Scale
}

// Value pulls the register's words out of a read session and decodes
// them into an engineering-unit value.
func (r NumericRegister) Value(ses *ReadSession) (float64, error) {
	n := r.Size()
	words := make([]uint16, n)
	for i := uint16(0); i < n; i++ {
		w, err := ses.Word(r.Kind, r.Addr+i)
		if err != nil {
			return 0, err
		}
		words[i] = w
	}
	raw := composeWords(words, r.Order)

	var v float64
	switch r.Encoding {
	case U16:
		v = float64(uint16(raw))
	case S16:
		v = float64(int16(raw))
	case U32:
		v = float64(uint32(raw))
	case S32:
		v = float64(int32(raw))
	case U64:
		v = float64(raw)
	case S64:
		v = float64(int64(raw))
	case F32:
		f := math.Float32frombits(uint32(raw))
		if math.IsNaN(float64(f)) {
			return 0, fmt.Errorf("%w: %s %d: NaN bit pattern", ErrEncoding, r.Kind, r.Addr)
		}
		v = float64(f)
	case F64:
		f := math.Float64frombits(raw)
		if math.IsNaN(f) {
			return 0, fmt.Errorf("%w: %s %d: NaN bit pattern", ErrEncoding, r.Kind, r.Addr)
		}
		v = f
	default:
		return 0, fmt.Errorf("%w: %s %d: unknown encoding %d", ErrEncoding, r.Kind, r.Addr, r.Encoding)
	}

	return v * r.scale(), nil
}

// EncodeValue converts an engineering-unit value into register words in
// wire order, ready for a holding-register write. It is the exact
// inverse of Value for all finite representable inputs; anything that
// falls outside the encoding's range after the inverse scale fails with
// ErrEncoding.
func (r NumericRegister) EncodeValue(value float64) ([]uint16, error) {
	raw := value / r.scale()

	var bits uint64
	switch r.Encoding {
	case U16, S16, U32, S32, U64, S64:
		n := math.Round(raw)
		lo, hi := r.Encoding.intBounds()
		if math.IsNaN(n) || n < lo || n >= hi {
			return nil, fmt.Errorf("%w: %v out of range for %s", ErrEncoding, value, r.Encoding)
		}
		if n < 0 {
			bits = uint64(int64(n))
		} else {
			bits = uint64(n)
		}
	case F32:
		if math.IsNaN(raw) || math.Abs(raw) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %v not representable as %s", ErrEncoding, value, r.Encoding)
		}
		bits = uint64(math.Float32bits(float32(raw)))
	case F64:
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return nil, fmt.Errorf("%w: %v not representable as %s", ErrEncoding, value, r.Encoding)
		}
		bits = math.Float64bits(raw)
	default:
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrEncoding, r.Encoding)
	}

	return decomposeWords(bits, r.Size(), r.Order), nil
}

// intBounds returns the half-open [lo, hi) range of an integer
// encoding. The bounds are powers of two, exact in float64; inclusive
// 64-bit maxima are not (float64(math.MaxInt64) rounds up to 2^63 and
// would let out-of-range values wrap on conversion).
func (v ValueType) intBounds() (lo, hi float64) {
	switch v {
	case U16:
		return 0, 1 << 16
	case S16:
		return -(1 << 15), 1 << 15
	case U32:
		return 0, 1 << 32
	case S32:
		return -(1 << 31), 1 << 31
	case U64:
		return 0, 1 << 64
	default: // S64
		return -(1 << 63), 1 << 63
	}
}

func composeWords(words []uint16, order WordOrder) uint64 {
	var raw uint64
	if order == LowWordFirst {
		for i := len(words) - 1; i >= 0; i-- {
			raw = raw<<16 | uint64(words[i])
		}
	} else {
		for _, w := range words {
			raw = raw<<16 | uint64(w)
		}
	}
	return raw
}

func decomposeWords(raw uint64, count uint16, order WordOrder) []uint16 {
	words := make([]uint16, count)
	for i := range words {
		shift := uint(16 * (int(count) - 1 - i))
		if order == LowWordFirst {
			shift = uint(16 * i)
		}
		words[i] = uint16(raw >> shift)
	}
	return words
}
