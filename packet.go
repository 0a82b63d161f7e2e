package tdp

import "math/bits"

// entity command bits (spec §4.7, §4.9).
const (
	cmdUpdate = 0b00
	cmdLeave  = 0b01
	cmdCreate = 0b10
	cmdDelete = 0b11
)

// PacketEntities is the top-level input message the packet decoder consumes
// (spec §4.9).
type PacketEntities struct {
	UpdatedEntries uint32
	IsDelta        bool
	Baseline       uint8
	UpdateBaseline bool
	EntityData     []byte
}

// entityEvent pairs an index with the kind of change applied to it, so the
// driver can notify observers "in order of ascending index" (spec §4.9
// step 4) after the packet fully applies.
type entityEvent struct {
	kind   EventKind
	entity *Entity // nil for Deleted, since the slot has already been cleared
	index  uint32
}

// baselineSource resolves the decoded default FieldState for a class,
// backed by the instancebaseline string table (spec §4.7, §GLOSSARY
// "Baseline").
type baselineSource func(class *Class) (*FieldState, error)

// DecodePacketEntities implements spec §4.9: it reads updated_entries
// entity headers from pkt.EntityData, applies create/update/delete/leave
// ops against entities, and returns the events to dispatch, in ascending
// index order. A mid-packet error aborts the packet; already-applied
// writes are left in place, per spec §5 ("replays are delta streams and
// partial application corrupts downstream ticks").
func DecodePacketEntities(schema *Schema, entities *Entities, baselineFor baselineSource, pkt PacketEntities) ([]entityEvent, error) {
	r := NewBitReader(pkt.EntityData)
	classIDBits := bitsNeeded(schema.ClassCount())

	var events []entityEvent
	index := int64(-1)
	enum := NewFieldPathEnumerator()

	for i := uint32(0); i < pkt.UpdatedEntries; i++ {
		delta, err := r.ReadBits(6)
		if err != nil {
			return events, err
		}
		index += int64(delta) + 1

		cmd, err := r.ReadBits(2)
		if err != nil {
			return events, err
		}

		switch cmd {
		case cmdLeave:
			// no state change, no event.

		case cmdCreate:
			ev, err := applyCreate(schema, entities, baselineFor, r, uint32(index), classIDBits, enum)
			if err != nil {
				return events, err
			}
			events = append(events, ev)

		case cmdUpdate:
			e, err := entities.update(uint32(index))
			if err != nil {
				return events, err
			}
			if err := applyDelta(e.class.Serializer, r, e.state, enum); err != nil {
				return events, err
			}
			events = append(events, entityEvent{kind: Updated, entity: e, index: uint32(index)})

		case cmdDelete:
			entities.delete(uint32(index))
			events = append(events, entityEvent{kind: Deleted, index: uint32(index)})

			hasCreate, err := r.ReadBit()
			if err != nil {
				return events, err
			}
			if hasCreate {
				ev, err := applyCreate(schema, entities, baselineFor, r, uint32(index), classIDBits, enum)
				if err != nil {
					return events, err
				}
				events = append(events, ev)
			}
		}
	}

	return events, nil
}

// applyCreate implements the Create per-entity header from spec §4.7: a new
// class id, a new serial, a trailing unused varint, then baseline-then-delta
// application.
func applyCreate(schema *Schema, entities *Entities, baselineFor baselineSource, r *BitReader, index uint32, classIDBits uint, enum *FieldPathEnumerator) (entityEvent, error) {
	classID, err := r.ReadBits(classIDBits)
	if err != nil {
		return entityEvent{}, err
	}
	serial, err := r.ReadBits(17)
	if err != nil {
		return entityEvent{}, err
	}
	if _, err := r.ReadVarint32(); err != nil { // unused trailer
		return entityEvent{}, err
	}

	class, err := schema.ClassByID(int32(classID))
	if err != nil {
		return entityEvent{}, err
	}
	baseline, err := baselineFor(class)
	if err != nil {
		return entityEvent{}, err
	}

	e, err := entities.create(index, uint32(serial), class, baseline)
	if err != nil {
		return entityEvent{}, err
	}
	if err := applyDelta(class.Serializer, r, e.state, enum); err != nil {
		return entityEvent{}, err
	}
	return entityEvent{kind: Created, entity: e, index: index}, nil
}

// applyDelta runs the field-path enumerator over r and, for each emitted
// path, resolves the field's decoder via the serializer graph and writes
// one value into state (spec §4.9 step 3). It also implements the "path may
// refer to a newly-grown array element" edge case by never requiring the
// element to already exist — FieldState.Set materializes intermediate nodes
// on demand.
func applyDelta(ser *Serializer, r *BitReader, state *FieldState, enum *FieldPathEnumerator) error {
	enum.Reset()
	for {
		path, ok, err := enum.Next(r)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		decode := ser.decoderForPath(path, 0)
		if decode == nil {
			return newError(errCodeUnknownField, r.BitPosition(), path.String())
		}
		v, err := decode(r)
		if err != nil {
			return err
		}
		state.Set(path, v)
	}
}

// decodeBaseline fully decodes a class baseline's bit-packed default
// FieldState from its instancebaseline row (spec §4.7, §4.8).
func decodeBaseline(ser *Serializer, raw []byte) (*FieldState, error) {
	st := NewFieldState()
	r := NewBitReader(raw)
	enum := NewFieldPathEnumerator()
	if err := applyDelta(ser, r, st, enum); err != nil {
		return nil, err
	}
	return st, nil
}

// bitsNeeded returns ceil(log2(n)), with n<=1 needing 0 bits (spec §4.7).
func bitsNeeded(n int) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len(uint(n - 1)))
}
