package value

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// ─── Key encoding ─────────────────────────────────────────────────────────────
//
// Encoded values sort bytewise in the same order Compare gives within one
// kind. Layout: one kind byte, then
//
//	INT     8 bytes big-endian, sign bit flipped
//	FLOAT   8 bytes big-endian IEEE-754, negatives inverted; NaN encodes as zeros
//	STRING  raw bytes up to the end of the buffer

// Encode appends the order-preserving encoding of v to dst.
func Encode(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.kind))
	switch v.kind {
	case KindInt:
		dst = binary.BigEndian.AppendUint64(dst, uint64(v.i)^(1<<63))
	case KindFloat:
		dst = binary.BigEndian.AppendUint64(dst, floatBits(v.f))
	case KindString:
		dst = append(dst, v.s...)
	}
	return dst
}

// Decode parses a buffer produced by Encode. The whole buffer is consumed.
func Decode(b []byte) (Value, error) {
	if len(b) == 0 {
		return Value{}, errors.New("value: decode: empty buffer")
	}
	kind, rest := Kind(b[0]), b[1:]
	switch kind {
	case KindInt, KindFloat:
		if len(rest) != 8 {
			return Value{}, errors.Newf("value: decode %s: want 8 bytes, got %d", kind, len(rest))
		}
		u := binary.BigEndian.Uint64(rest)
		if kind == KindInt {
			return NewInt(int64(u ^ (1 << 63))), nil
		}
		return NewFloat(bitsFloat(u)), nil
	case KindString:
		return NewString(string(rest)), nil
	default:
		return Value{}, errors.Newf("value: decode: unknown kind byte %d", b[0])
	}
}

func floatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	u := math.Float64bits(f)
	if u&(1<<63) != 0 {
		return ^u
	}
	return u | (1 << 63)
}

func bitsFloat(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}
