package tdp

import "fmt"

// ValueKind tags the payload held by a FieldValue. Ordering matches the
// decoder registry's precedence list in spec §4.3 so a wire form maps back
// to a single tag deterministically (spec §9 "Polymorphic FieldValue").
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindI32
	KindI64
	KindU32
	KindU64
	KindF32
	KindBool
	KindVector3
	KindVector2
	KindVector4
	KindHandle
	KindString
	KindQuaternion
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindString:
		return "string"
	case KindVector2:
		return "vec2"
	case KindVector3:
		return "vec3"
	case KindVector4:
		return "vec4"
	case KindQuaternion:
		return "quaternion"
	case KindHandle:
		return "handle"
	default:
		return "invalid"
	}
}

// Vec2, Vec3, Vec4, Quaternion are the small fixed-arity float tuples
// FieldValue can carry.
type (
	Vec2       [2]float32
	Vec3       [3]float32
	Vec4       [4]float32
	Quaternion [4]float32
)

// Handle is a decoded entity handle (spec §3): (serial<<14)|index, or
// sentinel-valued if the referenced entity does not exist.
type Handle uint32

// FieldValue is a tagged union over the primitive kinds a decoded field can
// hold (spec §3). Use NewXxx constructors to build one and Kind plus the
// checked accessors (Bool, Int64, Float32, ...) to read it back; there is no
// open interface hierarchy (spec §9).
type FieldValue struct {
	kind ValueKind
	b    bool
	i    int64
	u    uint64
	f    float32
	s    string
	v4   Vec4 // also backs Vec2/Vec3/Quaternion
}

func NewBool(v bool) FieldValue       { return FieldValue{kind: KindBool, b: v} }
func NewI32(v int32) FieldValue       { return FieldValue{kind: KindI32, i: int64(v)} }
func NewU32(v uint32) FieldValue      { return FieldValue{kind: KindU32, u: uint64(v)} }
func NewI64(v int64) FieldValue       { return FieldValue{kind: KindI64, i: v} }
func NewU64(v uint64) FieldValue      { return FieldValue{kind: KindU64, u: v} }
func NewF32(v float32) FieldValue     { return FieldValue{kind: KindF32, f: v} }
func NewString(v string) FieldValue   { return FieldValue{kind: KindString, s: v} }
func NewHandle(v Handle) FieldValue   { return FieldValue{kind: KindHandle, u: uint64(v)} }

func NewVec2(v Vec2) FieldValue {
	return FieldValue{kind: KindVector2, v4: Vec4{v[0], v[1]}}
}

func NewVec3(v Vec3) FieldValue {
	return FieldValue{kind: KindVector3, v4: Vec4{v[0], v[1], v[2]}}
}

func NewVec4(v Vec4) FieldValue {
	return FieldValue{kind: KindVector4, v4: v}
}

func NewQuaternion(v Quaternion) FieldValue {
	return FieldValue{kind: KindQuaternion, v4: Vec4(v)}
}

// Kind reports the tag of this FieldValue.
func (v FieldValue) Kind() ValueKind { return v.kind }

// IsValid reports whether v carries a real payload.
func (v FieldValue) IsValid() bool { return v.kind != KindInvalid }

func (v FieldValue) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindI32, KindI64:
		return fmt.Sprintf("%d", v.i)
	case KindU32, KindU64, KindHandle:
		return fmt.Sprintf("%d", v.u)
	case KindF32:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindVector2:
		return fmt.Sprintf("(%g, %g)", v.v4[0], v.v4[1])
	case KindVector3:
		return fmt.Sprintf("(%g, %g, %g)", v.v4[0], v.v4[1], v.v4[2])
	case KindVector4, KindQuaternion:
		return fmt.Sprintf("(%g, %g, %g, %g)", v.v4[0], v.v4[1], v.v4[2], v.v4[3])
	default:
		return "<invalid>"
	}
}

// Bool returns the boolean payload, or a ConversionError if v is not a bool.
func (v FieldValue) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, &ConversionError{Have: v.kind.String(), Want: "bool"}
	}
	return v.b, nil
}

// Int64 returns any integer-kinded payload widened to int64.
func (v FieldValue) Int64() (int64, error) {
	switch v.kind {
	case KindI32, KindI64:
		return v.i, nil
	case KindU32, KindU64, KindHandle:
		return int64(v.u), nil
	default:
		return 0, &ConversionError{Have: v.kind.String(), Want: "int64"}
	}
}

// Uint64 returns any integer-kinded payload widened to uint64.
func (v FieldValue) Uint64() (uint64, error) {
	switch v.kind {
	case KindU32, KindU64, KindHandle:
		return v.u, nil
	case KindI32, KindI64:
		return uint64(v.i), nil
	default:
		return 0, &ConversionError{Have: v.kind.String(), Want: "uint64"}
	}
}

// Float32 returns the float payload.
func (v FieldValue) Float32() (float32, error) {
	if v.kind != KindF32 {
		return 0, &ConversionError{Have: v.kind.String(), Want: "f32"}
	}
	return v.f, nil
}

// Str returns the string payload.
func (v FieldValue) Str() (string, error) {
	if v.kind != KindString {
		return "", &ConversionError{Have: v.kind.String(), Want: "string"}
	}
	return v.s, nil
}

// Handle returns the handle payload.
func (v FieldValue) Handle() (Handle, error) {
	if v.kind != KindHandle {
		return 0, &ConversionError{Have: v.kind.String(), Want: "handle"}
	}
	return Handle(v.u), nil
}

// Vector2, Vector3, Vector4 and QuaternionValue return the corresponding
// float-tuple payload.
func (v FieldValue) Vector2() (Vec2, error) {
	if v.kind != KindVector2 {
		return Vec2{}, &ConversionError{Have: v.kind.String(), Want: "vec2"}
	}
	return Vec2{v.v4[0], v.v4[1]}, nil
}

func (v FieldValue) Vector3() (Vec3, error) {
	if v.kind != KindVector3 {
		return Vec3{}, &ConversionError{Have: v.kind.String(), Want: "vec3"}
	}
	return Vec3{v.v4[0], v.v4[1], v.v4[2]}, nil
}

func (v FieldValue) Vector4() (Vec4, error) {
	if v.kind != KindVector4 {
		return Vec4{}, &ConversionError{Have: v.kind.String(), Want: "vec4"}
	}
	return v.v4, nil
}

func (v FieldValue) QuaternionValue() (Quaternion, error) {
	if v.kind != KindQuaternion {
		return Quaternion{}, &ConversionError{Have: v.kind.String(), Want: "quaternion"}
	}
	return Quaternion(v.v4), nil
}
