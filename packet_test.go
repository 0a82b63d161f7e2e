package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// buildSingleFieldSchema returns a one-class, one-field (8-bit int32
// "m_health") schema with class id 0, so the packet decoder's
// ceil(log2(class_count)) class-id field needs zero bits.
func buildSingleFieldSchema(t *testing.T) *Schema {
	t.Helper()
	var msg []byte
	msg = appendSymbol(msg, "int32")
	msg = appendSymbol(msg, "m_health")
	msg = appendSymbol(msg, "CFoo")

	var fieldMsg []byte
	fieldMsg = protowire.AppendTag(fieldMsg, 1, protowire.VarintType)
	fieldMsg = protowire.AppendVarint(fieldMsg, 0)
	fieldMsg = protowire.AppendTag(fieldMsg, 2, protowire.VarintType)
	fieldMsg = protowire.AppendVarint(fieldMsg, 1)
	fieldMsg = protowire.AppendTag(fieldMsg, 3, protowire.VarintType)
	fieldMsg = protowire.AppendVarint(fieldMsg, 8) // bit_count
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendBytes(msg, fieldMsg)

	msg = appendSerializer(msg, 2, 0, []int32{0})
	msg = appendClass(msg, 0, 2, 2, 0)

	sc, err := LoadSchema(msg)
	require.NoError(t, err)
	return sc
}

// healthFieldUpdate writes a single field-path op stream setting field
// index 0 ("m_health") to value, followed by Finish.
func healthFieldUpdate(t *testing.T, value uint64) []byte {
	t.Helper()
	w := &bitWriter{}
	writeOp(w, codeFor(t, opPlusOne))
	w.writeBits(value, 8)
	writeOp(w, codeFor(t, opFieldPathEncodeFinish))
	return w.bytes()
}

func TestDecodePacketEntitiesCreateThenUpdateThenDelete(t *testing.T) {
	t.Parallel()
	sc := buildSingleFieldSchema(t)
	ents := NewEntities()
	baseline, err := decodeBaseline(sc.classes[0].Serializer, healthFieldUpdate(t, 100))
	require.NoError(t, err)
	baselineFor := func(c *Class) (*FieldState, error) { return baseline, nil }

	// --- Create at index 0, serial 1, delta overrides health to 42.
	w := &bitWriter{}
	w.writeBits(0, 6) // delta index advance -> index 0
	w.writeBits(cmdCreate, 2)
	// classIDBits is 0 for a single-class schema; nothing to write.
	w.writeBits(1, 17) // serial
	w.writeVarint32(0) // unused trailer
	healthUpdate := healthFieldUpdate(t, 42)
	for _, b := range healthUpdate {
		w.writeBits(uint64(b), 8)
	}

	events, err := DecodePacketEntities(sc, ents, baselineFor, PacketEntities{UpdatedEntries: 1, EntityData: w.bytes()})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, Created, events[0].kind)

	e, err := ents.ByIndex(0)
	require.NoError(t, err)
	v, err := e.Get("m_health")
	require.NoError(t, err)
	i, _ := v.Int64()
	require.Equal(t, int64(42), i, "delta must override the baseline's 100")

	// --- Update: health becomes 7.
	w2 := &bitWriter{}
	w2.writeBits(0, 6)
	w2.writeBits(cmdUpdate, 2)
	upd := healthFieldUpdate(t, 7)
	for _, b := range upd {
		w2.writeBits(uint64(b), 8)
	}
	events, err = DecodePacketEntities(sc, ents, baselineFor, PacketEntities{UpdatedEntries: 1, EntityData: w2.bytes()})
	require.NoError(t, err)
	require.Equal(t, Updated, events[0].kind)

	v, err = e.Get("m_health")
	require.NoError(t, err)
	i, _ = v.Int64()
	require.Equal(t, int64(7), i)

	// --- Delete, no create following.
	w3 := &bitWriter{}
	w3.writeBits(0, 6)
	w3.writeBits(cmdDelete, 2)
	w3.writeBit(false) // no create follows
	events, err = DecodePacketEntities(sc, ents, baselineFor, PacketEntities{UpdatedEntries: 1, EntityData: w3.bytes()})
	require.NoError(t, err)
	require.Equal(t, Deleted, events[0].kind)

	_, err = ents.ByIndex(0)
	require.Error(t, err)
}

func TestDecodePacketEntitiesLeaveIsNoop(t *testing.T) {
	t.Parallel()
	sc := buildSingleFieldSchema(t)
	ents := NewEntities()
	baselineFor := func(c *Class) (*FieldState, error) { return NewFieldState(), nil }

	w := &bitWriter{}
	w.writeBits(0, 6)
	w.writeBits(cmdLeave, 2)

	events, err := DecodePacketEntities(sc, ents, baselineFor, PacketEntities{UpdatedEntries: 1, EntityData: w.bytes()})
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestDecodePacketEntitiesIndexAdvanceSkipsGaps(t *testing.T) {
	t.Parallel()
	sc := buildSingleFieldSchema(t)
	ents := NewEntities()
	baseline := NewFieldState()
	baselineFor := func(c *Class) (*FieldState, error) { return baseline, nil }

	w := &bitWriter{}
	w.writeBits(4, 6) // delta 4 -> index = -1 + 4 + 1 = 4
	w.writeBits(cmdCreate, 2)
	w.writeBits(1, 17)
	w.writeVarint32(0)
	fin := healthFieldUpdate(t, 1)
	for _, b := range fin {
		w.writeBits(uint64(b), 8)
	}

	events, err := DecodePacketEntities(sc, ents, baselineFor, PacketEntities{UpdatedEntries: 1, EntityData: w.bytes()})
	require.NoError(t, err)
	require.Equal(t, uint32(4), events[0].index)

	_, err = ents.ByIndex(4)
	require.NoError(t, err)
}
