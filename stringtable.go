package tdp

import (
	"github.com/golang/snappy"
)

// historyRingSize is the bounded key-history window updates delta-encode
// keys against (spec §4.8).
const historyRingSize = 32

// StringTableMeta describes a table's shape at creation time (spec §4.8).
type StringTableMeta struct {
	Name               string
	MaxEntries         int
	UserDataFixedSize  int
	UserDataFixedFlag  bool
}

// StringTable is a named, replica-synchronized table of (key, value) rows
// (spec §4.8). Keys are delta-encoded against a bounded history ring on
// update.
type StringTable struct {
	meta StringTableMeta

	keys    []string
	values  [][]byte
	byKey   map[string]int

	history    [historyRingSize]string
	historyLen int
}

// NewStringTable constructs an empty table from its creation metadata.
func NewStringTable(meta StringTableMeta) *StringTable {
	return &StringTable{meta: meta, byKey: make(map[string]int)}
}

// Name returns the table's name.
func (t *StringTable) Name() string { return t.meta.Name }

// Get returns the value bytes for key.
func (t *StringTable) Get(key string) ([]byte, bool) {
	idx, ok := t.byKey[key]
	if !ok {
		return nil, false
	}
	return t.values[idx], true
}

// Len returns the number of rows currently in the table.
func (t *StringTable) Len() int { return len(t.keys) }

// set inserts or overwrites a row and records its key in the history ring.
func (t *StringTable) set(key string, value []byte) {
	t.pushHistory(key)
	if idx, ok := t.byKey[key]; ok {
		t.values[idx] = value
		return
	}
	t.byKey[key] = len(t.keys)
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
}

func (t *StringTable) pushHistory(key string) {
	copy(t.history[1:], t.history[:historyRingSize-1])
	t.history[0] = key
	if t.historyLen < historyRingSize {
		t.historyLen++
	}
}

// DecodeUpdate applies a sequence of row ops from a string-table update
// blob (spec §4.8). count bounds how many ops to apply, as provided by the
// containing framing message. Returns the keys touched, in update order,
// for OnStringTableChanged.
func (t *StringTable) DecodeUpdate(data []byte, count int) ([]string, error) {
	r := NewBitReader(data)
	var touched []string
	index := -1

	for i := 0; i < count; i++ {
		incr, err := r.ReadBit()
		if err != nil {
			return touched, err
		}
		if incr {
			index++
		} else {
			hasExplicit, err := r.ReadBit()
			if err != nil {
				return touched, err
			}
			if hasExplicit {
				v, err := r.ReadVarint32()
				if err != nil {
					return touched, err
				}
				index = int(v)
			} else {
				delta, err := r.ReadBits(5)
				if err != nil {
					return touched, err
				}
				index += int(delta) + 1
			}
		}

		hasKey, err := r.ReadBit()
		if err != nil {
			return touched, err
		}
		var key string
		if hasKey {
			key, err = t.decodeKey(r)
			if err != nil {
				return touched, err
			}
		} else if index >= 0 && index < len(t.keys) {
			key = t.keys[index]
		}

		hasValue, err := r.ReadBit()
		if err != nil {
			return touched, err
		}
		var value []byte
		if hasValue {
			value, err = t.decodeValue(r)
			if err != nil {
				return touched, err
			}
		}

		if key != "" {
			t.set(key, value)
			touched = append(touched, key)
		}
	}
	return touched, nil
}

// decodeKey implements the back-reference key scheme from spec §4.8: a
// usesHistory bit selects between a literal key and a
// (back_index, prefix_len) reference into the 32-slot ring followed by a
// literal suffix.
func (t *StringTable) decodeKey(r *BitReader) (string, error) {
	usesHistory, err := r.ReadBit()
	if err != nil {
		return "", err
	}
	if !usesHistory {
		return r.ReadString()
	}

	backIdx, err := r.ReadBits(5)
	if err != nil {
		return "", err
	}
	prefixLen, err := r.ReadVarint32()
	if err != nil {
		return "", err
	}
	suffix, err := r.ReadString()
	if err != nil {
		return "", err
	}

	if int(backIdx) >= t.historyLen {
		return suffix, nil
	}
	base := t.history[backIdx]
	pl := int(prefixLen)
	if pl > len(base) {
		pl = len(base)
	}
	return base[:pl] + suffix, nil
}

// decodeValue reads a row's value payload: a compression flag, a varint
// length, and that many raw or snappy-compressed bytes (spec §4.8 "raw or
// lz-prefixed").
func (t *StringTable) decodeValue(r *BitReader) ([]byte, error) {
	compressed, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	length, err := r.ReadVarint32()
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	if !compressed {
		return append([]byte(nil), raw...), nil
	}
	out, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, newError(errCodeSchema, r.BitPosition(), "bad snappy payload: "+err.Error())
	}
	return out, nil
}

// StringTables is the set of named tables the decoder maintains (spec
// §4.8).
type StringTables struct {
	byName map[string]*StringTable
}

// NewStringTables returns an empty set.
func NewStringTables() *StringTables {
	return &StringTables{byName: make(map[string]*StringTable)}
}

// Create registers a new named table.
func (s *StringTables) Create(meta StringTableMeta) *StringTable {
	t := NewStringTable(meta)
	s.byName[meta.Name] = t
	return t
}

// ByName returns a registered table.
func (s *StringTables) ByName(name string) (*StringTable, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, lookupErr(PropertyNotFound, "string table %s", name)
	}
	return t, nil
}

// instanceBaselineTableName is the well-known table holding per-class
// default FieldStates (spec §4.8, §GLOSSARY "Baseline").
const instanceBaselineTableName = "instancebaseline"
