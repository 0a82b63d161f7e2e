package tdp

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ubitVarFPWidths is the width table used by read_ubit_var_fp (spec §4.1):
// a 2-bit prefix selects how many further bits follow.
var ubitVarFPWidths = [4]uint{2, 4, 10, 17}

// BitReader extracts variable-width bit and byte fields from a buffer.
// Position is tracked in bits; reading past the end of buf is an error, and
// BitReader never zero-fills. All multi-byte reads are little-endian.
//
// Reset rebinds a BitReader to a new buffer without allocating, so one
// reader can be reused across packets (spec §5 "Allocation").
type BitReader struct {
	buf []byte
	pos int64 // bit position
	end int64 // buf's length in bits
}

// NewBitReader constructs a BitReader over buf.
func NewBitReader(buf []byte) *BitReader {
	r := new(BitReader)
	r.Reset(buf)
	return r
}

// Reset rebinds r to buf and zeroes its position, so the reader can be
// pooled across packets instead of reallocated.
func (r *BitReader) Reset(buf []byte) {
	r.buf = buf
	r.pos = 0
	r.end = int64(len(buf)) * 8
}

// BitPosition returns the current read position in bits.
func (r *BitReader) BitPosition() int64 { return r.pos }

// BitsLeft returns the number of unread bits remaining.
func (r *BitReader) BitsLeft() int64 { return r.end - r.pos }

func (r *BitReader) need(n int64) error {
	if n < 0 || n > r.BitsLeft() {
		return newError(errCodeTruncated, r.pos, "need more bits than remain")
	}
	return nil
}

// ReadBits reads the next n (0..=64) bits as an unsigned integer, least
// significant bit first, matching the wire's little-endian bit packing.
func (r *BitReader) ReadBits(n uint) (uint64, error) {
	if n > 64 {
		return 0, newError(errCodeTruncated, r.pos, "bit count exceeds 64")
	}
	if err := r.need(int64(n)); err != nil {
		return 0, err
	}

	var out uint64
	var shift uint
	remaining := n
	bitPos := r.pos
	for remaining > 0 {
		byteIdx := bitPos >> 3
		bitInByte := uint(bitPos & 7)
		avail := 8 - bitInByte
		take := avail
		if take > remaining {
			take = remaining
		}
		mask := byte((1 << take) - 1)
		bits := (r.buf[byteIdx] >> bitInByte) & mask
		out |= uint64(bits) << shift
		shift += take
		remaining -= take
		bitPos += int64(take)
	}
	r.pos += int64(n)
	return out, nil
}

// ReadBit reads a single bit as a bool.
func (r *BitReader) ReadBit() (bool, error) {
	v, err := r.ReadBits(1)
	return v != 0, err
}

// ReadByte reads the next byte-aligned-or-not 8 bits.
func (r *BitReader) ReadByte() (uint8, error) {
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// ReadVarint32 reads an unsigned LEB128 varint, per-byte 7 bits with a
// continuation bit, capped at 32 significant bits.
func (r *BitReader) ReadVarint32() (uint32, error) {
	v, err := r.readVarint(35)
	return uint32(v), err
}

// ReadVarint64 reads an unsigned LEB128 varint capped at 64 significant
// bits.
func (r *BitReader) ReadVarint64() (uint64, error) {
	return r.readVarint(70)
}

func (r *BitReader) readVarint(maxBits uint) (uint64, error) {
	var out uint64
	var shift uint
	for {
		if shift >= maxBits {
			return 0, newError(errCodeVarintOverflow, r.pos, "")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		out |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return out, nil
		}
		shift += 7
	}
}

// ReadSignedVarint32 reads a zig-zag encoded varint and returns the decoded
// signed value, using the same zig-zag scheme as protobuf (protowire's
// DecodeZigZag) since the replay format's signed varints are wire-compatible
// with it.
func (r *BitReader) ReadSignedVarint32() (int32, error) {
	v, err := r.ReadVarint64()
	if err != nil {
		return 0, err
	}
	return int32(protowire.DecodeZigZag(v)), nil
}

// ReadSignedVarint64 reads a zig-zag encoded 64-bit varint.
func (r *BitReader) ReadSignedVarint64() (int64, error) {
	v, err := r.ReadVarint64()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

// ReadUBitVarFP implements the replay-specific variable-width prefix read
// from spec §4.1: a 2-bit prefix p selects {2,4,10,17} further bits, which
// are concatenated after the prefix.
func (r *BitReader) ReadUBitVarFP() (uint32, error) {
	prefix, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	width := ubitVarFPWidths[prefix]
	rest, err := r.ReadBits(width)
	if err != nil {
		return 0, err
	}
	return uint32(prefix) | (uint32(rest) << 2), nil
}

// ReadString reads a null-terminated UTF-8 string. The read need not be
// byte-aligned: each character is the next 8 bits.
func (r *BitReader) ReadString() (string, error) {
	start := r.pos
	var s []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			r.pos = start
			return "", newError(errCodeTruncated, start, "unterminated string")
		}
		if b == 0 {
			return string(s), nil
		}
		s = append(s, b)
	}
}

// ReadCoord reads a Source-engine packed float coordinate: an integer part
// flag, fractional part flag, optional sign, then up to 14 integer bits and
// 5 fractional bits.
func (r *BitReader) ReadCoord() (float32, error) {
	hasInt, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	hasFrac, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	if !hasInt && !hasFrac {
		return 0, nil
	}

	negative, err := r.ReadBit()
	if err != nil {
		return 0, err
	}

	var intVal uint64
	if hasInt {
		v, err := r.ReadBits(14)
		if err != nil {
			return 0, err
		}
		intVal = v + 1
	}

	var fracVal uint64
	if hasFrac {
		v, err := r.ReadBits(5)
		if err != nil {
			return 0, err
		}
		fracVal = v
	}

	value := float32(intVal) + float32(fracVal)*(1.0/32.0)
	if negative {
		value = -value
	}
	return value, nil
}

// ReadBitCoord reads the simpler "bit coord" variant used for some
// low-precision fields: a presence bit, then a 32-bit IEEE float if present.
func (r *BitReader) ReadBitCoord() (float32, error) {
	present, err := r.ReadBit()
	if err != nil || !present {
		return 0, err
	}
	bits, err := r.ReadBits(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(bits)), nil
}

// ReadAngle reads an angle quantized to n bits over a full circle.
func (r *BitReader) ReadAngle(bits uint) (float32, error) {
	v, err := r.ReadBits(bits)
	if err != nil {
		return 0, err
	}
	return float32(v) * (360.0 / float32(uint64(1)<<bits)), nil
}

// ReadFloat32 reads a raw, unquantized IEEE-754 32-bit float.
func (r *BitReader) ReadFloat32() (float32, error) {
	v, err := r.ReadBits(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// Align advances the position to the next byte boundary.
func (r *BitReader) Align() {
	if rem := r.pos % 8; rem != 0 {
		r.pos += 8 - rem
	}
}

// ReadBytes reads n raw bytes. At a byte boundary it returns a sub-slice of
// the buffer; otherwise each byte is the next 8 bits, copied out.
func (r *BitReader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(int64(n) * 8); err != nil {
		return nil, err
	}
	if r.pos%8 != 0 {
		out := make([]byte, n)
		for i := range out {
			out[i], _ = r.ReadByte()
		}
		return out, nil
	}
	start := r.pos / 8
	out := r.buf[start : start+int64(n)]
	r.pos += int64(n) * 8
	return out, nil
}
