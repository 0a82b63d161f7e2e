package tdp

import (
	"fmt"
	"strconv"
	"strings"
)

// Serializer is an ordered list of Fields plus a memoized name->FieldPath
// cache (spec §3, §4.4). Serializers form a DAG identified by (name,
// version); identical pairs are shared via the Schema's serializer map.
type Serializer struct {
	Name    string
	Version int32
	Fields  []*Field

	pathCache map[string]FieldPath
}

// newSerializer allocates an empty serializer; fields are appended during
// schema load once all referenced serializers exist.
func newSerializer(name string, version int32) *Serializer {
	return &Serializer{Name: name, Version: version, pathCache: make(map[string]FieldPath)}
}

// PathForName resolves a dotted property name to a FieldPath by walking
// segment by segment (spec §4.4): 4-digit segments index into array/table
// slots; under a VariableTable a 4-digit slot index is followed by the child
// serializer's field name ("m_vecPlayers.0003.m_iScore"). Results are cached.
func (s *Serializer) PathForName(name string) (FieldPath, error) {
	if p, ok := s.pathCache[name]; ok {
		return p, nil
	}
	fp := NewFieldPath()
	if err := s.fieldPathForName(&fp, name); err != nil {
		return FieldPath{}, err
	}
	s.pathCache[name] = fp
	return fp, nil
}

func (s *Serializer) fieldPathForName(fp *FieldPath, name string) error {
	head, rest, hasRest := splitDotted(name)

	for i, f := range s.Fields {
		if f.VarName != head {
			continue
		}
		fp.Set(fp.Last(), int32(i))
		if !hasRest {
			return nil
		}
		return f.fieldPathForChild(fp, rest)
	}
	return lookupErr(PropertyNotFound, "%s (serializer %s)", name, s.Name)
}

// fieldPathForChild continues resolving a dotted name into f's subtree,
// per original_source/src/field.rs get_field_path_for_name.
func (f *Field) fieldPathForChild(fp *FieldPath, seg string) error {
	switch f.Model {
	case ModelSimple:
		return fieldPathParseError("simple field cannot have a child segment")
	case ModelFixedArray, ModelVariableArray:
		n, err := strconv.Atoi(seg)
		if err != nil || len(seg) != 4 {
			return fieldPathParseError("expected 4-digit array index, got " + seg)
		}
		fp.Down()
		fp.Set(fp.Last(), int32(n))
		return nil
	case ModelFixedTable:
		fp.Down()
		return f.Serializer.fieldPathForName(fp, seg)
	case ModelVariableTable:
		if len(seg) < 6 || seg[4] != '.' {
			return fieldPathParseError("expected 6-char table segment, got " + seg)
		}
		n, err := strconv.Atoi(seg[:4])
		if err != nil {
			return fieldPathParseError("expected 4-digit table index, got " + seg)
		}
		fp.Down()
		fp.Set(fp.Last(), int32(n))
		fp.Down()
		return f.Serializer.fieldPathForName(fp, seg[5:])
	}
	return fieldPathParseError("unknown model")
}

// NameForPath is the inverse of PathForName (spec §8 invariant 3): it
// renders the dotted property name a FieldPath resolves to.
func (s *Serializer) NameForPath(fp FieldPath) (string, error) {
	parts, err := s.nameForPath(fp, 0)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "."), nil
}

func (s *Serializer) nameForPath(fp FieldPath, pos int) ([]string, error) {
	idx := fp.Get(pos)
	if int(idx) < 0 || int(idx) >= len(s.Fields) {
		return nil, lookupErr(PropertyNotFound, "field path %s out of range in %s", fp.String(), s.Name)
	}
	f := s.Fields[idx]
	out := []string{f.VarName}

	switch f.Model {
	case ModelSimple:
	case ModelFixedArray, ModelVariableArray:
		if fp.Last() == pos+1 {
			out = append(out, fmt.Sprintf("%04d", fp.Get(pos+1)))
		}
	case ModelFixedTable:
		if fp.Last() >= pos+1 {
			rest, err := f.Serializer.nameForPath(fp, pos+1)
			if err != nil {
				return nil, err
			}
			out = append(out, rest...)
		}
	case ModelVariableTable:
		if fp.Last() >= pos+1 {
			out = append(out, fmt.Sprintf("%04d", fp.Get(pos+1)))
			if fp.Last() >= pos+2 {
				rest, err := f.Serializer.nameForPath(fp, pos+2)
				if err != nil {
					return nil, err
				}
				out = append(out, rest...)
			}
		}
	}
	return out, nil
}

// TypeForPath resolves the FieldType a FieldPath ultimately names.
func (s *Serializer) TypeForPath(fp FieldPath) (*FieldType, error) {
	return s.typeForPath(fp, 0)
}

func (s *Serializer) typeForPath(fp FieldPath, pos int) (*FieldType, error) {
	idx := fp.Get(pos)
	if int(idx) < 0 || int(idx) >= len(s.Fields) {
		return nil, lookupErr(PropertyNotFound, "field path %s out of range in %s", fp.String(), s.Name)
	}
	f := s.Fields[idx]

	switch f.Model {
	case ModelFixedArray:
		return f.FieldType, nil
	case ModelFixedTable:
		if fp.Last() > pos {
			return f.Serializer.typeForPath(fp, pos+1)
		}
	case ModelVariableArray:
		if fp.Last() == pos+1 {
			return f.FieldType.Generic, nil
		}
	case ModelVariableTable:
		if fp.Last() >= pos+2 {
			return f.Serializer.typeForPath(fp, pos+2)
		}
	}
	return f.FieldType, nil
}

// decoderForPath resolves the decoder bound to the field a path names,
// matching original_source/src/field.rs get_decoder_for_field_path.
func (s *Serializer) decoderForPath(fp FieldPath, pos int) decodeFunc {
	idx := fp.Get(pos)
	if int(idx) < 0 || int(idx) >= len(s.Fields) {
		return nil
	}
	return s.Fields[idx].decoderFor(fp, pos+1)
}

// allPaths enumerates every populated leaf path in st against this
// serializer's shape, used by the entity dump (supplemented feature). It
// does not materialize FieldState nodes (unlike childAt); absent subtrees
// simply contribute nothing.
func (s *Serializer) allPaths(fp *FieldPath, st *FieldState) []FieldPath {
	var out []FieldPath
	if st == nil || st.children == nil {
		return out
	}
	for i, f := range s.Fields {
		idx := int32(i)
		fp.Set(fp.Last(), idx)
		slot, present := st.children[idx]
		if !present {
			continue
		}

		switch f.Model {
		case ModelSimple:
			if slot.isLeaf {
				out = append(out, *fp)
			}
		case ModelFixedArray, ModelVariableArray:
			if slot.isLeaf || slot.child == nil {
				continue
			}
			fp.Down()
			for k, elemSlot := range slot.child.children {
				if !elemSlot.isLeaf {
					continue
				}
				fp.Set(fp.Last(), k)
				out = append(out, *fp)
			}
			fp.Up(1)
		case ModelFixedTable:
			if slot.isLeaf || slot.child == nil {
				continue
			}
			fp.Down()
			out = append(out, f.Serializer.allPaths(fp, slot.child)...)
			fp.Up(1)
		case ModelVariableTable:
			if slot.isLeaf || slot.child == nil {
				continue
			}
			fp.Down()
			for k, elemSlot := range slot.child.children {
				if elemSlot.isLeaf || elemSlot.child == nil {
					continue
				}
				fp.Set(fp.Last(), k)
				fp.Down()
				out = append(out, f.Serializer.allPaths(fp, elemSlot.child)...)
				fp.Up(1)
			}
			fp.Up(1)
		}
	}
	return out
}

func splitDotted(s string) (head, rest string, hasRest bool) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
