package tdp

import "math"

// QuantizeFlags are the flag bits controlling the quantized-float algorithm
// (spec §4.3).
type QuantizeFlags uint8

const (
	QuantizeRoundDown QuantizeFlags = 1 << iota
	QuantizeRoundUp
	QuantizeEncodeZeroExactly
	QuantizeEncodeIntegersExactly
)

// QuantizedFloatSpec holds the (bits, range, flags) parameters for decoding
// a quantized float field (spec §4.3).
type QuantizedFloatSpec struct {
	Bits  uint
	Low   float32
	High  float32
	Flags QuantizeFlags
}

// step is (high-low) / ((1<<bits)-1), the per-unit value of one quantized
// increment.
func (q QuantizedFloatSpec) step() float32 {
	return (q.High - q.Low) / float32((uint64(1)<<q.Bits)-1)
}

// decode reads a quantized float from r according to q.
func (q QuantizedFloatSpec) decode(r *BitReader) (float32, error) {
	if q.Flags&QuantizeEncodeZeroExactly != 0 {
		isZero, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if isZero {
			return 0, nil
		}
	}

	if q.Flags&QuantizeEncodeIntegersExactly != 0 {
		noFrac, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if noFrac {
			signed, err := r.ReadBit()
			if err != nil {
				return 0, err
			}
			v, err := r.ReadBits(intBitsForRange(q.Low, q.High))
			if err != nil {
				return 0, err
			}
			out := float32(v)
			if signed {
				out = -out
			}
			return out, nil
		}
	}

	raw, err := r.ReadBits(q.Bits)
	if err != nil {
		return 0, err
	}

	value := q.Low + q.step()*float32(raw)
	switch {
	case q.Flags&QuantizeRoundDown != 0 && value < q.Low:
		value = q.Low
	case q.Flags&QuantizeRoundUp != 0 && value > q.High:
		value = q.High
	}
	return value, nil
}

// intBitsForRange picks enough bits to exactly represent the integer range
// [low, high] when the integers-exactly flag is set.
func intBitsForRange(low, high float32) uint {
	span := uint64(math.Ceil(float64(high - low)))
	bits := uint(0)
	for (uint64(1) << bits) <= span {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return bits
}

// decodeFunc is a decoder as defined in spec §4.3: a function from a
// BitReader to a FieldValue.
type decodeFunc func(r *BitReader) (FieldValue, error)

// encoderKey is the selection tuple from spec §4.3: (resolved base name,
// encoder name, bit count, low, high, encoder flags).
type encoderKey struct {
	baseName     string
	encoderName  string
	bitCount     int
	lowValue     float32
	highValue    float32
	encoderFlags int32
}

// namedEncoders implements precedence rule 1: encoder-name overrides that
// win regardless of base type.
var namedEncoders = map[string]decodeFunc{
	"coord": func(r *BitReader) (FieldValue, error) {
		v, err := r.ReadCoord()
		return NewF32(v), err
	},
	"simtime": func(r *BitReader) (FieldValue, error) {
		v, err := r.ReadVarint32()
		return NewF32(float32(v) * (1.0 / 64.0)), err
	},
	"runetime": func(r *BitReader) (FieldValue, error) {
		v, err := r.ReadFloat32()
		return NewF32(v), err
	},
	"qangle_precise": func(r *BitReader) (FieldValue, error) {
		var out Vec3
		for i := range out {
			v, err := r.ReadAngle(32)
			if err != nil {
				return FieldValue{}, err
			}
			out[i] = v
		}
		return NewVec3(out), nil
	},
}

// buildDecoder implements the decoder-registry precedence order from spec
// §4.3 for a leaf (non-container) field. resolvedBase is the field's
// (possibly generic-element) base type name.
func buildDecoder(resolvedBase string, k encoderKey) decodeFunc {
	if fn, ok := namedEncoders[k.encoderName]; ok {
		return fn
	}

	switch resolvedBase {
	case "int8", "int16", "int32", "int64":
		if k.bitCount > 0 {
			bits := uint(k.bitCount)
			return func(r *BitReader) (FieldValue, error) {
				v, err := r.ReadBits(bits)
				return NewI64(signExtend(v, bits)), err
			}
		}
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadSignedVarint64()
			return NewI64(v), err
		}
	case "uint8", "uint16", "uint32", "uint64":
		if k.bitCount > 0 {
			bits := uint(k.bitCount)
			return func(r *BitReader) (FieldValue, error) {
				v, err := r.ReadBits(bits)
				return NewU64(v), err
			}
		}
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadVarint64()
			return NewU64(v), err
		}
	case "float32", "float":
		if k.bitCount > 0 && k.bitCount < 32 {
			q := QuantizedFloatSpec{
				Bits: uint(k.bitCount), Low: k.lowValue, High: k.highValue,
				Flags: QuantizeFlags(k.encoderFlags),
			}
			return func(r *BitReader) (FieldValue, error) {
				v, err := q.decode(r)
				return NewF32(v), err
			}
		}
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadFloat32()
			return NewF32(v), err
		}
	case "bool":
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadBit()
			return NewBool(v), err
		}
	case "Vector":
		return vectorDecoder(k, 3)
	case "QAngle":
		return vectorDecoder(k, 3)
	case "Vector2D":
		return vectorDecoder(k, 2)
	case "Vector4D":
		return vectorDecoder(k, 4)
	case "CHandle", "CGameSceneNodeHandle", "CUtlStringToken":
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadVarint32()
			return NewHandle(Handle(v)), err
		}
	case "CUtlString", "CUtlSymbolLarge":
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadString()
			return NewString(v), err
		}
	case "Quaternion":
		return func(r *BitReader) (FieldValue, error) {
			var out Quaternion
			for i := range out {
				v, err := r.ReadFloat32()
				if err != nil {
					return FieldValue{}, err
				}
				out[i] = v
			}
			return NewQuaternion(out), nil
		}
	default:
		return func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadVarint64()
			return NewU64(v), err
		}
	}
}

func vectorDecoder(k encoderKey, n int) decodeFunc {
	scalar := buildDecoder("float32", k)
	return func(r *BitReader) (FieldValue, error) {
		var out Vec4
		for i := 0; i < n; i++ {
			fv, err := scalar(r)
			if err != nil {
				return FieldValue{}, err
			}
			f, err := fv.Float32()
			if err != nil {
				return FieldValue{}, err
			}
			out[i] = f
		}
		switch n {
		case 2:
			return NewVec2(Vec2{out[0], out[1]}), nil
		case 4:
			return NewVec4(out), nil
		default:
			return NewVec3(Vec3{out[0], out[1], out[2]}), nil
		}
	}
}

// signExtend interprets the low `bits` bits of v as a two's-complement
// signed integer.
func signExtend(v uint64, bits uint) int64 {
	if bits == 64 {
		return int64(v)
	}
	signBit := uint64(1) << (bits - 1)
	v &= (uint64(1) << bits) - 1
	if v&signBit != 0 {
		return int64(v) - int64(uint64(1)<<bits)
	}
	return int64(v)
}
