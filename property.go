package tdp

// Property reads a dotted property name off an entity and converts it to T,
// replacing the macro-per-type accessors of the original implementation
// (spec SUPPLEMENTED FEATURES, original_source/d2-stampede). T must be one
// of the concrete kinds FieldValue can hold; an incompatible T yields a
// ConversionError.
func Property[T any](e *Entity, name string) (T, error) {
	var zero T
	v, err := e.Get(name)
	if err != nil {
		return zero, err
	}
	return convertTo[T](v)
}

// MustProperty is Property but panics on error, for call sites that have
// already established the field exists (e.g. inside an OnEntity observer
// for a class known to carry it).
func MustProperty[T any](e *Entity, name string) T {
	v, err := Property[T](e, name)
	if err != nil {
		panic(err)
	}
	return v
}

// convertTo dispatches to FieldValue's checked accessors by T's concrete
// type. Using a type switch on T's zero value (as any) keeps this a single
// function instead of one per type, at the cost of the reflection-free type
// switch below being exhaustive over FieldValue's closed kind set.
func convertTo[T any](v FieldValue) (T, error) {
	var zero T
	switch any(zero).(type) {
	case bool:
		x, err := v.Bool()
		return any(x).(T), err
	case int32:
		x, err := v.Int64()
		return any(int32(x)).(T), err
	case int64:
		x, err := v.Int64()
		return any(x).(T), err
	case uint32:
		x, err := v.Uint64()
		return any(uint32(x)).(T), err
	case uint64:
		x, err := v.Uint64()
		return any(x).(T), err
	case float32:
		x, err := v.Float32()
		return any(x).(T), err
	case string:
		x, err := v.Str()
		return any(x).(T), err
	case Vec2:
		x, err := v.Vector2()
		return any(x).(T), err
	case Vec3:
		x, err := v.Vector3()
		return any(x).(T), err
	case Vec4:
		x, err := v.Vector4()
		return any(x).(T), err
	case Quaternion:
		x, err := v.QuaternionValue()
		return any(x).(T), err
	case Handle:
		x, err := v.Handle()
		return any(x).(T), err
	default:
		return zero, &ConversionError{Have: v.Kind().String(), Want: "unsupported"}
	}
}
