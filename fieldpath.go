package tdp

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxFieldPathDepth is the maximum depth a FieldPath can reach (spec §3).
const MaxFieldPathDepth = 7

// FieldPath is a bounded vector of small unsigned indices plus a cursor
// identifying the deepest used slot (spec §3, §9 "Path representation"). It
// is a fixed-size value type, not a growable container, so the Huffman
// operations in §4.5 can mutate it in place cheaply.
type FieldPath struct {
	path [MaxFieldPathDepth]int32
	last int
}

// NewFieldPath returns a path positioned at the root: a single index slot
// initialized to -1 with last==0, matching the starting state the Huffman
// decoder assumes before any PushOneLeft* op.
func NewFieldPath() FieldPath {
	var p FieldPath
	p.path[0] = -1
	return p
}

// Last returns the cursor identifying the deepest populated slot.
func (p *FieldPath) Last() int { return p.last }

// Get returns the index at depth n.
func (p *FieldPath) Get(n int) int32 { return p.path[n] }

// Set writes the index at depth n.
func (p *FieldPath) Set(n int, v int32) { p.path[n] = v }

// Down pushes the cursor one level deeper, starting the new slot at -1.
func (p *FieldPath) Down() {
	p.last++
	if p.last < MaxFieldPathDepth {
		p.path[p.last] = -1
	}
}

// Up pops the cursor n levels shallower.
func (p *FieldPath) Up(n int) {
	p.last -= n
}

// Equal reports whether p and q name the same path: same last cursor and
// matching indices up to it (spec §3).
func (p FieldPath) Equal(q FieldPath) bool {
	if p.last != q.last {
		return false
	}
	for i := 0; i <= p.last; i++ {
		if p.path[i] != q.path[i] {
			return false
		}
	}
	return true
}

// Indices returns the populated prefix [0, last] as a plain slice, for
// callers that want to range over it (e.g. the serializer's name walk).
func (p FieldPath) Indices() []int32 {
	return append([]int32(nil), p.path[:p.last+1]...)
}

// String renders the populated prefix as a dotted list of indices, used by
// the entity dump (spec §9 original Rust Display impl) and warning logs.
func (p FieldPath) String() string {
	parts := make([]string, p.last+1)
	for i := 0; i <= p.last; i++ {
		parts[i] = strconv.Itoa(int(p.path[i]))
	}
	return strings.Join(parts, ".")
}

func fieldPathParseError(msg string) error {
	return fmt.Errorf("tdp: %s", msg)
}
