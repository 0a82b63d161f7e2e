package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type recordingObserver struct {
	BaseObserver
	schemaLoaded bool
	created      []uint32
	updated      []uint32
	ticksStarted []uint32
	ticksEnded   []uint32
}

func (o *recordingObserver) OnSchemaLoaded(ctx *Context, sc *Schema) { o.schemaLoaded = true }
func (o *recordingObserver) OnTickStart(ctx *Context, tick uint32)   { o.ticksStarted = append(o.ticksStarted, tick) }
func (o *recordingObserver) OnTickEnd(ctx *Context, tick uint32)     { o.ticksEnded = append(o.ticksEnded, tick) }
func (o *recordingObserver) OnEntity(ctx *Context, kind EventKind, e *Entity) {
	switch kind {
	case Created:
		o.created = append(o.created, e.Index())
	case Updated:
		o.updated = append(o.updated, e.Index())
	}
}

// schemaBytesFor builds the same one-class, one-field (8-bit int32
// "m_health", class id 0) schema wire bytes as buildSingleFieldSchema in
// packet_test.go, independently, since LoadSchema only accepts raw bytes.
func schemaBytesFor(t *testing.T) []byte {
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
	return msg
}

func buildCreatePacket(t *testing.T, index, serial uint32, value uint64) PacketEntities {
	t.Helper()
	w := &bitWriter{}
	w.writeBits(uint64(index), 6) // single entity, delta from index -1
	w.writeBits(cmdCreate, 2)
	// classIDBits is 0 for a single-class schema.
	w.writeBits(uint64(serial), 17)
	w.writeVarint32(0) // unused trailer
	upd := healthFieldUpdate(t, value)
	for _, b := range upd {
		w.writeBits(uint64(b), 8)
	}
	return PacketEntities{UpdatedEntries: 1, EntityData: w.bytes()}
}

// stringTableSingleRowUpdate builds a one-row update blob setting key to an
// uncompressed value, matching stringtable.go's DecodeUpdate wire order.
func stringTableSingleRowUpdate(t *testing.T, key string, value []byte) []byte {
	t.Helper()
	w := &bitWriter{}
	w.writeBit(true)  // incrementing index
	w.writeBit(true)  // has key
	w.writeBit(false) // literal key, no history
	w.writeString(key)
	w.writeBit(true)  // has value
	w.writeBit(false) // not compressed
	w.writeVarint32(uint32(len(value)))
	for _, b := range value {
		w.writeBits(uint64(b), 8)
	}
	return w.bytes()
}

func TestDecoderFullPipeline(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	d := NewDecoder(WithObserver(obs))

	require.NoError(t, d.LoadSchema(schemaBytesFor(t)))
	require.True(t, obs.schemaLoaded)
	require.Equal(t, 1, d.Schema().ClassCount())

	// Publish an instance baseline for class 0 with health=100.
	d.DecodeStringTableCreate(StringTableMeta{Name: instanceBaselineTableName})
	baselineUpdate := stringTableSingleRowUpdate(t, "0", healthFieldUpdate(t, 100))
	require.NoError(t, d.DecodeStringTableUpdate(instanceBaselineTableName, baselineUpdate, 1))

	pkt := buildCreatePacket(t, 0, 1, 55)
	require.NoError(t, d.DecodeTick(10, pkt))

	require.Equal(t, []uint32{0}, obs.created)
	require.Equal(t, []uint32{10}, obs.ticksStarted)
	require.Equal(t, []uint32{10}, obs.ticksEnded)

	e, err := d.Entities().ByIndex(0)
	require.NoError(t, err)
	v, err := e.Get("m_health")
	require.NoError(t, err)
	i, _ := v.Int64()
	require.Equal(t, int64(55), i, "delta must win over the published baseline of 100")
}

func TestDecoderLoadSchemaIsOneShot(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	data := schemaBytesFor(t)
	require.NoError(t, d.LoadSchema(data))
	first := d.Schema()
	require.NoError(t, d.LoadSchema(data))
	require.Same(t, first, d.Schema(), "a second delivery must not reparse")
}

func TestDecoderTickBeforeSchemaErrors(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	err := d.DecodeTick(1, PacketEntities{})
	require.Error(t, err)
}

func TestDecoderStringTableUpdateUnknownClassWarnsWhenNotStrict(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	require.NoError(t, d.LoadSchema(schemaBytesFor(t)))
	d.DecodeStringTableCreate(StringTableMeta{Name: instanceBaselineTableName})
	// key "77" maps to no class in this schema.
	update := stringTableSingleRowUpdate(t, "77", healthFieldUpdate(t, 1))
	require.NoError(t, d.DecodeStringTableUpdate(instanceBaselineTableName, update, 1))
}

func TestDecoderStringTableUpdateUnknownClassErrorsWhenStrict(t *testing.T) {
	t.Parallel()
	d := NewDecoder(WithStrictSchema(true))
	require.NoError(t, d.LoadSchema(schemaBytesFor(t)))
	d.DecodeStringTableCreate(StringTableMeta{Name: instanceBaselineTableName})
	update := stringTableSingleRowUpdate(t, "77", healthFieldUpdate(t, 1))
	err := d.DecodeStringTableUpdate(instanceBaselineTableName, update, 1)
	require.Error(t, err)
}

func TestPropertyGenericHelpers(t *testing.T) {
	t.Parallel()
	class := testClass(0, "CFoo")
	class.Serializer.Fields = append(class.Serializer.Fields, &Field{
		VarName: "m_health", Model: ModelSimple, FieldType: &FieldType{BaseName: "int32"},
	})
	ents := NewEntities()
	e, err := ents.create(0, 1, class, NewFieldState())
	require.NoError(t, err)
	e.state.Set(leafPath(0), NewI32(9))

	v, err := Property[int32](e, "m_health")
	require.NoError(t, err)
	require.Equal(t, int32(9), v)

	require.Equal(t, int32(9), MustProperty[int32](e, "m_health"))

	_, err = Property[string](e, "m_health")
	require.Error(t, err)
}
