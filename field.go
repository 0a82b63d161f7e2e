package tdp

// Model is the field-model tag from spec §3/§4.4, chosen at schema load
// from a field's FieldType and raw var_type.
type Model int

const (
	ModelSimple Model = iota
	ModelFixedArray
	ModelFixedTable
	ModelVariableArray
	ModelVariableTable
)

// String names a Model for debug output. Note: the Rust source this was
// distilled from (original_source/d2-stampede/src/field.rs,
// FieldModels::as_string) has its match arms shifted by one relative to the
// enum's own ordinals; that is a bug in the original and is deliberately
// not reproduced here (spec SUPPLEMENTED FEATURES).
func (m Model) String() string {
	switch m {
	case ModelSimple:
		return "simple"
	case ModelFixedArray:
		return "fixed-array"
	case ModelFixedTable:
		return "fixed-table"
	case ModelVariableArray:
		return "variable-array"
	case ModelVariableTable:
		return "variable-table"
	default:
		return "unknown-model"
	}
}

// containerClasses are the CUtlVector-family base names that make a field a
// VariableArray/VariableTable (spec §4.4).
var containerClasses = map[string]bool{
	"CUtlVector":                    true,
	"CNetworkUtlVectorBase":         true,
	"CUtlVectorEmbeddedNetworkVar":  true,
}

// Field is one row in a Serializer (spec §3).
type Field struct {
	VarName    string
	VarType    string
	FieldType  *FieldType
	Serializer *Serializer // non-nil iff this field has a child serializer

	BitCount     int
	LowValue     float32
	HighValue    float32
	EncoderFlags int32
	EncoderName  string

	Model Model

	decoder      decodeFunc // leaf
	baseDecoder  decodeFunc // container header
	childDecoder decodeFunc // container element
}

// leafTyped reports whether ft names a leaf (non-nested-serializer) value,
// used by model assignment to distinguish FixedArray/VariableArray from
// FixedTable/VariableTable.
func (f *Field) leafTyped() bool {
	return f.Serializer == nil
}

// assignModel implements spec §4.4's model-assignment rules and binds the
// decoder(s) appropriate to the chosen model.
func (f *Field) assignModel() {
	switch {
	case f.FieldType != nil && f.FieldType.ArraySize > 0:
		if f.leafTyped() {
			f.Model = ModelFixedArray
		} else {
			f.Model = ModelFixedTable
		}
	case f.FieldType != nil && containerClasses[f.FieldType.BaseName]:
		if f.leafTyped() {
			f.Model = ModelVariableArray
		} else {
			f.Model = ModelVariableTable
		}
	case f.Serializer != nil:
		f.Model = ModelFixedTable
	default:
		f.Model = ModelSimple
	}

	key := encoderKey{
		encoderName:  f.EncoderName,
		bitCount:     f.BitCount,
		lowValue:     f.LowValue,
		highValue:    f.HighValue,
		encoderFlags: f.EncoderFlags,
	}

	switch f.Model {
	case ModelSimple, ModelFixedArray:
		key.baseName = leafBaseName(f.FieldType)
		f.decoder = buildDecoder(key.baseName, key)
	case ModelFixedTable:
		f.baseDecoder = func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadBit()
			return NewBool(v), err
		}
	case ModelVariableArray:
		f.baseDecoder = func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadVarint32()
			return NewU32(v), err
		}
		elemKey := key
		elemKey.baseName = leafBaseName(f.FieldType.Generic)
		f.childDecoder = buildDecoder(elemKey.baseName, elemKey)
	case ModelVariableTable:
		f.baseDecoder = func(r *BitReader) (FieldValue, error) {
			v, err := r.ReadVarint32()
			return NewU32(v), err
		}
	}
}

// leafBaseName resolves the base type name a leaf decoder should key off
// of: for array/container types, that's the element type.
func leafBaseName(ft *FieldType) string {
	if ft == nil {
		return ""
	}
	return ft.BaseName
}

// decoderFor resolves the decoder to use for a path within this field's
// subtree; pos is the depth just below this field's own index in fp. This
// follows the pos/model matrix in
// original_source/src/field.rs get_decoder_for_field_path.
func (f *Field) decoderFor(fp FieldPath, pos int) decodeFunc {
	switch f.Model {
	case ModelFixedArray:
		return f.decoder
	case ModelFixedTable:
		if fp.Last() == pos-1 {
			return f.baseDecoder
		}
		return f.Serializer.decoderForPath(fp, pos)
	case ModelVariableArray:
		if fp.Last() == pos {
			return f.childDecoder
		}
		return f.baseDecoder
	case ModelVariableTable:
		if fp.Last() >= pos+1 {
			return f.Serializer.decoderForPath(fp, pos+1)
		}
		return f.baseDecoder
	default:
		return f.decoder
	}
}
