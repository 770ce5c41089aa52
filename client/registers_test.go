package client

import (
	"errors"
	"math"
	"testing"
)

func sessionWithWords(kind RegisterType, addr uint16, words []uint16) *ReadSession {
	ses := NewReadSession()
	for i, w := range words {
		ses.PutWord(kind, addr+uint16(i), w)
	}
	return ses
}

func TestBitRegister_Value(t *testing.T) {
	ses := NewReadSession()
	ses.PutBit(Coil, 3, true)

	r := BitRegister{Name: "pump", Kind: Coil, Addr: 3}
	v, err := r.Value(ses)
	if err != nil {
		t.Fatalf("Value() err=%v", err)
	}
	if !v {
		t.Fatalf("expected true")
	}

	missing := BitRegister{Kind: Coil, Addr: 4}
	if _, err := missing.Value(ses); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}
}

func TestNumericRegister_SignedDecode(t *testing.T) {
	r := NumericRegister{Kind: HoldingRegister, Addr: 0, Encoding: S16}
	ses := sessionWithWords(HoldingRegister, 0, []uint16{0xFFFE})

	v, err := r.Value(ses)
	if err != nil {
		t.Fatalf("Value() err=%v", err)
	}
	if v != -2 {
		t.Fatalf("got %v, want -2", v)
	}
}

func TestNumericRegister_ScaledDecode(t *testing.T) {
	r := NumericRegister{Kind: InputRegister, Addr: 10, Encoding: U16, Scale: 0.1}
	ses := sessionWithWords(InputRegister, 10, []uint16{234})

	v, err := r.Value(ses)
	if err != nil {
		t.Fatalf("Value() err=%v", err)
	}
	if math.Abs(v-23.4) > 1e-9 {
		t.Fatalf("got %v, want 23.4", v)
	}
}

func TestNumericRegister_WordOrder(t *testing.T) {
	high := NumericRegister{Kind: HoldingRegister, Addr: 0, Encoding: U32}
	words, err := high.EncodeValue(0x12345678)
	if err != nil {
		t.Fatalf("EncodeValue() err=%v", err)
	}
	if words[0] != 0x1234 || words[1] != 0x5678 {
		t.Fatalf("high word first: got %04x %04x", words[0], words[1])
	}

	low := NumericRegister{Kind: HoldingRegister, Addr: 0, Encoding: U32, Order: LowWordFirst}
	words, err = low.EncodeValue(0x12345678)
	if err != nil {
		t.Fatalf("EncodeValue() err=%v", err)
	}
	if words[0] != 0x5678 || words[1] != 0x1234 {
		t.Fatalf("low word first: got %04x %04x", words[0], words[1])
	}
}

func TestNumericRegister_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		reg  NumericRegister
		v    float64
	}{
		{"u16", NumericRegister{Kind: HoldingRegister, Encoding: U16}, 54321},
		{"s16 negative", NumericRegister{Kind: HoldingRegister, Encoding: S16}, -1234},
		{"u32", NumericRegister{Kind: HoldingRegister, Encoding: U32}, 3000000000},
		{"s32 negative", NumericRegister{Kind: HoldingRegister, Encoding: S32}, -2000000000},
		{"s64 negative", NumericRegister{Kind: HoldingRegister, Encoding: S64}, -281474976710656},
		{"s64 min", NumericRegister{Kind: HoldingRegister, Encoding: S64}, -math.Ldexp(1, 63)},
		{"u64", NumericRegister{Kind: HoldingRegister, Encoding: U64}, 281474976710656},
		{"f32", NumericRegister{Kind: HoldingRegister, Encoding: F32}, 3.5},
		{"f64", NumericRegister{Kind: HoldingRegister, Encoding: F64}, -123.456},
		{"scaled s16", NumericRegister{Kind: HoldingRegister, Encoding: S16, Scale: 0.5}, -17.5},
		{"low word first s32", NumericRegister{Kind: HoldingRegister, Encoding: S32, Order: LowWordFirst}, -99999},
	}

	for _, tc := range cases {
		words, err := tc.reg.EncodeValue(tc.v)
		if err != nil {
			t.Fatalf("%s: EncodeValue() err=%v", tc.name, err)
		}
		if int(tc.reg.Size()) != len(words) {
			t.Fatalf("%s: %d words for size %d", tc.name, len(words), tc.reg.Size())
		}

		ses := sessionWithWords(tc.reg.Kind, tc.reg.Addr, words)
		got, err := tc.reg.Value(ses)
		if err != nil {
			t.Fatalf("%s: Value() err=%v", tc.name, err)
		}
		if math.Abs(got-tc.v) > 1e-6 {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.v)
		}
	}
}

func TestNumericRegister_Float32SpanWithScale(t *testing.T) {
	// 32-bit value across addresses (100,101), scale 0.1: decoding the
	// encoded words reproduces the value within the scale tolerance.
	r := NumericRegister{Kind: HoldingRegister, Addr: 100, Encoding: F32, Scale: 0.1}

	words, err := r.EncodeValue(12.3)
	if err != nil {
		t.Fatalf("EncodeValue() err=%v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}

	ses := sessionWithWords(HoldingRegister, 100, words)
	got, err := r.Value(ses)
	if err != nil {
		t.Fatalf("Value() err=%v", err)
	}
	if math.Abs(got-12.3) > 0.1 {
		t.Fatalf("got %v, want 12.3 within 0.1", got)
	}
}

func TestNumericRegister_EncodeOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		reg  NumericRegister
		v    float64
	}{
		{"u16 too large", NumericRegister{Encoding: U16}, 70000},
		{"u16 negative", NumericRegister{Encoding: U16}, -1},
		{"s16 too small", NumericRegister{Encoding: S16}, -40000},
		{"s64 at 2^63", NumericRegister{Encoding: S64}, math.Ldexp(1, 63)},
		{"s64 below min", NumericRegister{Encoding: S64}, -math.Ldexp(1, 64)},
		{"u64 at 2^64", NumericRegister{Encoding: U64}, math.Ldexp(1, 64)},
		{"scaled overflow", NumericRegister{Encoding: S16, Scale: 0.001}, 100},
		{"f32 overflow", NumericRegister{Encoding: F32}, math.MaxFloat64},
		{"nan", NumericRegister{Encoding: F64}, math.NaN()},
	}

	for _, tc := range cases {
		if _, err := tc.reg.EncodeValue(tc.v); !errors.Is(err, ErrEncoding) {
			t.Fatalf("%s: expected ErrEncoding, got %v", tc.name, err)
		}
	}
}

func TestNumericRegister_DecodeNaN(t *testing.T) {
	r := NumericRegister{Kind: HoldingRegister, Addr: 0, Encoding: F32}
	ses := sessionWithWords(HoldingRegister, 0, []uint16{0x7FC0, 0x0000})

	if _, err := r.Value(ses); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestNumericRegister_MissingWord(t *testing.T) {
	// Only the first word of a two-word value is present.
	r := NumericRegister{Kind: HoldingRegister, Addr: 0, Encoding: U32}
	ses := sessionWithWords(HoldingRegister, 0, []uint16{1})

	if _, err := r.Value(ses); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}
}
