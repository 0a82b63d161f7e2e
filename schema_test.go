package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// appendField builds one FlattenedSerializerField message (field numbers
// documented in schema.go's rawField comment).
func appendField(b []byte, varTypeSym, varNameSym int32) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(varTypeSym))
	msg = protowire.AppendTag(msg, 2, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(varNameSym))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, msg)
	return b
}

// appendSerializer builds one FlattenedSerializer message referencing
// fields by index.
func appendSerializer(b []byte, nameSym, version int32, fieldIdx []int32) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(nameSym))
	msg = protowire.AppendTag(msg, 2, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(version))
	var packed []byte
	for _, fi := range fieldIdx {
		packed = protowire.AppendVarint(packed, uint64(fi))
	}
	msg = protowire.AppendTag(msg, 3, protowire.BytesType)
	msg = protowire.AppendBytes(msg, packed)

	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, msg)
	return b
}

// appendClass builds one class_t message.
func appendClass(b []byte, id, nameSym, serNameSym, serVersion int32) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(id))
	msg = protowire.AppendTag(msg, 2, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(nameSym))
	msg = protowire.AppendTag(msg, 3, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(serNameSym))
	msg = protowire.AppendTag(msg, 4, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(serVersion))

	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, msg)
	return b
}

func appendSymbol(b []byte, s string) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, s)
	return b
}

func TestLoadSchemaBuildsClassesAndFields(t *testing.T) {
	t.Parallel()
	// symbols: 0="int32" 1="m_health" 2="CFoo"
	var msg []byte
	msg = appendSymbol(msg, "int32")
	msg = appendSymbol(msg, "m_health")
	msg = appendSymbol(msg, "CFoo")
	msg = appendField(msg, 0, 1) // field 0: int32 m_health
	msg = appendSerializer(msg, 2, 0, []int32{0})
	msg = appendClass(msg, 42, 2, 2, 0)

	sc, err := LoadSchema(msg)
	require.NoError(t, err)
	require.Equal(t, 1, sc.ClassCount())

	class, err := sc.ClassByID(42)
	require.NoError(t, err)
	require.Equal(t, "CFoo", class.Name)
	require.Len(t, class.Serializer.Fields, 1)
	require.Equal(t, "m_health", class.Serializer.Fields[0].VarName)
	require.Equal(t, ModelSimple, class.Serializer.Fields[0].Model)

	byName, err := sc.ClassByName("CFoo")
	require.NoError(t, err)
	require.Equal(t, class, byName)

	fp, err := class.Serializer.PathForName("m_health")
	require.NoError(t, err)
	require.Equal(t, int32(0), fp.Get(0))
}

func TestLoadSchemaUnresolvedChildSerializerErrors(t *testing.T) {
	t.Parallel()
	var msg []byte
	msg = appendSymbol(msg, "CFoo")
	msg = appendSymbol(msg, "CBar") // never declared as a serializer
	// field claims a child serializer that is never defined.
	var fieldMsg []byte
	fieldMsg = protowire.AppendTag(fieldMsg, 1, protowire.VarintType)
	fieldMsg = protowire.AppendVarint(fieldMsg, 0)
	fieldMsg = protowire.AppendTag(fieldMsg, 7, protowire.VarintType)
	fieldMsg = protowire.AppendVarint(fieldMsg, 1)
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendBytes(msg, fieldMsg)
	msg = appendSerializer(msg, 0, 0, []int32{0})

	_, err := LoadSchema(msg)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSchema)
}

func TestLoadSchemaUnknownClassLookup(t *testing.T) {
	t.Parallel()
	sc, err := LoadSchema(nil)
	require.NoError(t, err)
	require.Equal(t, 0, sc.ClassCount())

	_, err = sc.ClassByID(1)
	require.Error(t, err)
	var le *LookupError
	require.ErrorAs(t, err, &le)
	require.Equal(t, ClassNotFound, le.Kind)
}
