package tdp

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Schema holds every Class and Serializer loaded from the one-shot schema
// message (spec §3, §4.4, §6 "schema(bytes)"). It is immutable once built.
type Schema struct {
	serializers map[serializerKey]*Serializer
	classes     map[int32]*Class
	classByName map[string]*Class
}

type serializerKey struct {
	name    string
	version int32
}

// rawField/rawSerializer mirror the wire shape of the embedded
// "flattened serializer" protobuf message this package hand-parses, the
// same way the teacher's parse.go hand-parses protobuf wire format instead
// of going through full reflection (spec DOMAIN STACK). Field numbers:
//
//	FlattenedSerializerField: 1 var_type_sym, 2 var_name_sym, 3 bit_count,
//	  4 low_value, 5 high_value, 6 encode_flags, 7 field_serializer_name_sym,
//	  8 field_serializer_version, 9 var_encoder_sym, 10 send_node_sym.
//	FlattenedSerializer: 1 serializer_name_sym, 2 serializer_version,
//	  3 fields_index (repeated, packed varint).
//	Schema message: 1 symbols (repeated string), 2 fields (repeated
//	  FlattenedSerializerField), 3 serializers (repeated FlattenedSerializer).
type rawField struct {
	varTypeSym             int32
	varNameSym              int32
	bitCount                int32
	lowValue                float32
	highValue               float32
	encodeFlags             int32
	fieldSerializerNameSym  int32
	fieldSerializerVersion  int32
	varEncoderSym           int32
	hasSerializerName       bool
}

type rawSerializer struct {
	nameSym     int32
	version     int32
	fieldsIndex []int32
}

// LoadSchema parses the one-shot flattened-serializer message and builds
// every Class and Serializer it names. Returns a SchemaError (wrapped as
// ErrSchema) on any malformed input.
func LoadSchema(data []byte) (*Schema, error) {
	var symbols []string
	var fields []rawField
	var sers []rawSerializer
	var classDefs []struct {
		id   int32
		name string
		ser  serializerKey
	}

	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, newError(errCodeSchema, 0, "bad tag")
		}
		b = b[n:]

		switch num {
		case 1: // symbols
			s, nn, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			symbols = append(symbols, s)
			b = b[nn:]
		case 2: // fields
			msg, nn, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			f, err := parseRawField(msg)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			b = b[nn:]
		case 3: // serializers
			msg, nn, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			s, err := parseRawSerializer(msg)
			if err != nil {
				return nil, err
			}
			sers = append(sers, s)
			b = b[nn:]
		case 4: // classes: id + serializer name/version (class_id, name_sym, serializer_name_sym, serializer_version)
			msg, nn, err := consumeBytes(b, typ)
			if err != nil {
				return nil, err
			}
			id, name, serKey, err := parseClassDef(msg, symbols)
			if err != nil {
				return nil, err
			}
			classDefs = append(classDefs, struct {
				id   int32
				name string
				ser  serializerKey
			}{id, name, serKey})
			b = b[nn:]
		default:
			nn := protowire.ConsumeFieldValue(num, typ, b)
			if nn < 0 {
				return nil, newError(errCodeSchema, 0, "bad field value")
			}
			b = b[nn:]
		}
	}

	resolve := func(sym int32) string {
		if sym < 0 || int(sym) >= len(symbols) {
			return ""
		}
		return symbols[sym]
	}

	sc := &Schema{
		serializers: make(map[serializerKey]*Serializer),
		classes:     make(map[int32]*Class),
		classByName: make(map[string]*Class),
	}

	// Pass 1: shells for every named serializer, so forward/cyclic-looking
	// references during field population can always resolve (spec §9
	// "build Serializers bottom-up into an immutable registry").
	for _, rs := range sers {
		key := serializerKey{name: resolve(rs.nameSym), version: rs.version}
		if _, ok := sc.serializers[key]; !ok {
			sc.serializers[key] = newSerializer(key.name, key.version)
		}
	}

	// Pass 2: populate fields now that every serializer shell exists.
	for _, rs := range sers {
		key := serializerKey{name: resolve(rs.nameSym), version: rs.version}
		ser := sc.serializers[key]
		for _, fi := range rs.fieldsIndex {
			if int(fi) < 0 || int(fi) >= len(fields) {
				return nil, newError(errCodeSchema, 0, "field index out of range")
			}
			rf := fields[fi]
			ft, err := ParseFieldType(resolve(rf.varTypeSym))
			if err != nil {
				return nil, fmt.Errorf("tdp: %w: %v", ErrSchema, err)
			}
			f := &Field{
				VarName:      resolve(rf.varNameSym),
				VarType:      resolve(rf.varTypeSym),
				FieldType:    ft,
				BitCount:     int(rf.bitCount),
				LowValue:     rf.lowValue,
				HighValue:    rf.highValue,
				EncoderFlags: rf.encodeFlags,
				EncoderName:  resolve(rf.varEncoderSym),
			}
			if rf.hasSerializerName {
				childKey := serializerKey{name: resolve(rf.fieldSerializerNameSym), version: rf.fieldSerializerVersion}
				child, ok := sc.serializers[childKey]
				if !ok {
					return nil, newError(errCodeSchema, 0, "unresolved child serializer "+childKey.name)
				}
				f.Serializer = child
			}
			f.assignModel()
			ser.Fields = append(ser.Fields, f)
		}
	}

	// Classes reference a (name, version) serializer pair.
	for _, cd := range classDefs {
		ser, ok := sc.serializers[cd.ser]
		if !ok {
			return nil, newError(errCodeSchema, 0, "class "+cd.name+" references unknown serializer")
		}
		c := &Class{ID: cd.id, Name: cd.name, Serializer: ser}
		sc.classes[cd.id] = c
		sc.classByName[cd.name] = c
	}

	return sc, nil
}

// ClassByID looks up a Class by its wire id.
func (s *Schema) ClassByID(id int32) (*Class, error) {
	c, ok := s.classes[id]
	if !ok {
		return nil, lookupErr(ClassNotFound, "%d", id)
	}
	return c, nil
}

// ClassByName looks up a Class by its registered name.
func (s *Schema) ClassByName(name string) (*Class, error) {
	c, ok := s.classByName[name]
	if !ok {
		return nil, lookupErr(ClassNotFound, "%s", name)
	}
	return c, nil
}

// ClassCount reports how many classes the schema defines, used to size the
// per-entity class-id bit field (spec §4.7 "bits = ceil(log2(class_count))").
func (s *Schema) ClassCount() int { return len(s.classes) }

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, newError(errCodeSchema, 0, "expected string")
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", 0, newError(errCodeSchema, 0, "bad length-delimited value")
	}
	return string(v), n, nil
}

func consumeBytes(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, newError(errCodeSchema, 0, "expected embedded message")
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, newError(errCodeSchema, 0, "bad length-delimited value")
	}
	return v, n, nil
}

func parseRawField(b []byte) (rawField, error) {
	var f rawField
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, newError(errCodeSchema, 0, "bad field tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			f.varTypeSym = int32(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			f.varNameSym = int32(v)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			f.bitCount = int32(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeFixed32(b)
			f.lowValue = math.Float32frombits(v)
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeFixed32(b)
			f.highValue = math.Float32frombits(v)
			b = b[n:]
		case 6:
			v, n := protowire.ConsumeVarint(b)
			f.encodeFlags = int32(v)
			b = b[n:]
		case 7:
			v, n := protowire.ConsumeVarint(b)
			f.fieldSerializerNameSym = int32(v)
			f.hasSerializerName = true
			b = b[n:]
		case 8:
			v, n := protowire.ConsumeVarint(b)
			f.fieldSerializerVersion = int32(v)
			b = b[n:]
		case 9:
			v, n := protowire.ConsumeVarint(b)
			f.varEncoderSym = int32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, newError(errCodeSchema, 0, "bad field value")
			}
			b = b[n:]
		}
	}
	return f, nil
}

func parseRawSerializer(b []byte) (rawSerializer, error) {
	var s rawSerializer
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, newError(errCodeSchema, 0, "bad serializer tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			s.nameSym = int32(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			s.version = int32(v)
			b = b[n:]
		case 3:
			if typ == protowire.BytesType {
				packed, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return s, newError(errCodeSchema, 0, "bad packed fields_index")
				}
				for len(packed) > 0 {
					v, nn := protowire.ConsumeVarint(packed)
					if nn < 0 {
						return s, newError(errCodeSchema, 0, "bad packed varint")
					}
					s.fieldsIndex = append(s.fieldsIndex, int32(v))
					packed = packed[nn:]
				}
				b = b[n:]
			} else {
				v, n := protowire.ConsumeVarint(b)
				s.fieldsIndex = append(s.fieldsIndex, int32(v))
				b = b[n:]
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return s, newError(errCodeSchema, 0, "bad field value")
			}
			b = b[n:]
		}
	}
	return s, nil
}

// parseClassDef reads one class_t entry: 1 class_id, 2 class_name_sym,
// 3 serializer_name_sym, 4 serializer_version.
func parseClassDef(b []byte, symbols []string) (id int32, name string, key serializerKey, err error) {
	var nameSym, serNameSym, serVersion int32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, "", serializerKey{}, newError(errCodeSchema, 0, "bad class tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			id = int32(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			nameSym = int32(v)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			serNameSym = int32(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			serVersion = int32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, "", serializerKey{}, newError(errCodeSchema, 0, "bad field value")
			}
			b = b[n:]
		}
	}
	resolve := func(sym int32) string {
		if sym < 0 || int(sym) >= len(symbols) {
			return ""
		}
		return symbols[sym]
	}
	return id, resolve(nameSym), serializerKey{name: resolve(serNameSym), version: serVersion}, nil
}
