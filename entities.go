package tdp

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"golang.org/x/term"
)

// EntitiesCapacity is the fixed slot count of the Entities table (spec §3,
// §4.7).
const EntitiesCapacity = 8192

// indexMask extracts the 14-bit index from a handle (spec §3).
const indexMask = 0x3FFF

// EventKind classifies an entity change dispatched to observers (spec §2,
// §4.7).
type EventKind int

const (
	Created EventKind = iota
	Updated
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "Created"
	case Updated:
		return "Updated"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Entity is one networked game object (spec §3).
type Entity struct {
	index  uint32
	serial uint32
	class  *Class
	state  *FieldState
}

// Index returns the entity's 14-bit slot index.
func (e *Entity) Index() uint32 { return e.index }

// Serial returns the entity's 18-bit serial number.
func (e *Entity) Serial() uint32 { return e.serial }

// Handle returns (serial<<14)|index (spec §3, invariant 1).
func (e *Entity) Handle() uint32 { return e.serial<<14 | e.index }

// Class returns the entity's shared Class.
func (e *Entity) Class() *Class { return e.class }

// Get resolves a dotted property name (spec §6 "Property query API") and
// returns its current value.
func (e *Entity) Get(name string) (FieldValue, error) {
	fp, err := e.class.Serializer.PathForName(name)
	if err != nil {
		return FieldValue{}, err
	}
	v, ok := e.state.Get(fp)
	if !ok {
		return FieldValue{}, lookupErr(PropertyNotFound, "%s on %s", name, e.class.Name)
	}
	return v, nil
}

// String renders a table of this entity's populated field paths, names,
// types and values (spec SUPPLEMENTED FEATURES, original Rust Display).
func (e *Entity) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "entity %s (class %s)\n", fmt.Sprint(e.Handle()), e.class.Name)

	fp := NewFieldPath()
	paths := e.class.Serializer.allPaths(&fp, e.state)
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })

	for _, p := range paths {
		name, _ := e.class.Serializer.NameForPath(p)
		ft, _ := e.class.Serializer.TypeForPath(p)
		v, _ := e.state.Get(p)
		fmt.Fprintf(&b, "  %-24s %-28s %-20s %s\n", p.String(), name, ft.String(), v.String())
	}
	return b.String()
}

// Entities is the fixed-capacity slot array holding live entities (spec §3,
// §4.7).
type Entities struct {
	slots [EntitiesCapacity]*Entity
}

// NewEntities returns an empty table.
func NewEntities() *Entities { return &Entities{} }

// ByIndex returns the live entity at a raw slot index.
func (t *Entities) ByIndex(index uint32) (*Entity, error) {
	if index >= EntitiesCapacity {
		return nil, lookupErr(IndexNotFound, "%d", index)
	}
	e := t.slots[index]
	if e == nil {
		return nil, lookupErr(IndexNotFound, "%d", index)
	}
	return e, nil
}

// ByHandle resolves a handle to its entity; a mismatched serial is
// HandleNotFound, never a silent success (spec §4.9 edge cases).
func (t *Entities) ByHandle(handle uint32) (*Entity, error) {
	index := handle & indexMask
	if index >= EntitiesCapacity {
		return nil, lookupErr(HandleNotFound, "%d", handle)
	}
	e := t.slots[index]
	if e == nil || e.Handle() != handle {
		return nil, lookupErr(HandleNotFound, "%d", handle)
	}
	return e, nil
}

// ByClassID returns the first live entity of the given class id
// (spec SUPPLEMENTED FEATURES, original_source/d2-stampede entity.rs
// get_by_class_id).
func (t *Entities) ByClassID(id int32) (*Entity, error) {
	for e := range t.All() {
		if e.class.ID == id {
			return e, nil
		}
	}
	return nil, lookupErr(ClassNotFound, "%d", id)
}

// ByClassName returns the first live entity of the given class name.
func (t *Entities) ByClassName(name string) (*Entity, error) {
	for e := range t.All() {
		if e.class.Name == name {
			return e, nil
		}
	}
	return nil, lookupErr(ClassNotFound, "%s", name)
}

// All iterates live entities in slot order, skipping empty slots
// (spec SUPPLEMENTED FEATURES).
func (t *Entities) All() iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		for _, e := range t.slots {
			if e == nil {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// create implements spec §4.7's create op for an already resolved Class:
// clone the baseline FieldState (copy-on-create), store it at index, return
// the new Entity for the caller to emit Created with.
func (t *Entities) create(index, serial uint32, class *Class, baseline *FieldState) (*Entity, error) {
	if index >= EntitiesCapacity {
		return nil, lookupErr(IndexNotFound, "%d", index)
	}
	state, err := cloneBaseline(baseline)
	if err != nil {
		return nil, err
	}
	e := &Entity{index: index, serial: serial, class: class, state: state}
	t.slots[index] = e
	return e, nil
}

// cloneBaseline deep-copies a class baseline so each entity starts with its
// own independent FieldState tree (spec §1 "copy-on-create delta
// application"). FieldState's storage is a package-private sparse map of
// pointers to small unexported structs, which a reflection-based deep copier cannot safely
// reach, so the clone walks the tree directly; go-deepcopy is used instead
// where this package clones plain exported structs (see DecodeOptions.clone
// in options.go).
func cloneBaseline(baseline *FieldState) (*FieldState, error) {
	if baseline == nil {
		return NewFieldState(), nil
	}
	return baseline.clone(), nil
}

// clone returns a deep copy of s.
func (s *FieldState) clone() *FieldState {
	if s == nil || s.children == nil {
		return NewFieldState()
	}
	out := &FieldState{children: make(map[int32]*fieldStateSlot, len(s.children))}
	for idx, slot := range s.children {
		if slot.isLeaf {
			out.children[idx] = &fieldStateSlot{leaf: slot.leaf, isLeaf: true}
		} else {
			out.children[idx] = &fieldStateSlot{child: slot.child.clone()}
		}
	}
	return out
}

// update returns the entity in an occupied slot so the caller can mutate its
// FieldState in place; an empty slot is IndexNotFound (spec §4.7).
func (t *Entities) update(index uint32) (*Entity, error) {
	return t.ByIndex(index)
}

// delete clears a slot (spec §4.7).
func (t *Entities) delete(index uint32) {
	if index < EntitiesCapacity {
		t.slots[index] = nil
	}
}

// String renders a table of every live entity (spec SUPPLEMENTED FEATURES,
// original Rust `impl Display for Entities` using prettytable), column
// widths clamped to the terminal width when one is detected.
func (t *Entities) String() string {
	width := 120
	if w, _, err := term.GetSize(0); err == nil && w > 0 {
		width = w
	}
	nameWidth := width - 40
	if nameWidth < 10 {
		nameWidth = 10
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-10s %-12s %s\n", "idx", "serial", "handle", "class")
	for e := range t.All() {
		name := e.class.Name
		if len(name) > nameWidth {
			name = name[:nameWidth]
		}
		fmt.Fprintf(&b, "%-8d %-10d %-12d %s\n", e.index, e.serial, e.Handle(), name)
	}
	return b.String()
}
