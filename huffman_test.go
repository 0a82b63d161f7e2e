package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// codeFor returns the Huffman bit sequence (LSB-first write order) for op,
// by walking the tree built from opWeights.
func codeFor(t *testing.T, op fieldPathOp) []bool {
	t.Helper()
	var path []bool
	var walk func(n *huffmanNode, acc []bool) []bool
	walk = func(n *huffmanNode, acc []bool) []bool {
		if n.isLeaf() {
			if n.op == op {
				return append([]bool(nil), acc...)
			}
			return nil
		}
		if r := walk(n.left, append(acc, false)); r != nil {
			return r
		}
		return walk(n.right, append(acc, true))
	}
	path = walk(fieldPathHuffmanRoot, nil)
	require.NotNil(t, path, "op %d not found in huffman tree", op)
	return path
}

func writeOp(w *bitWriter, code []bool) {
	for _, b := range code {
		w.writeBit(b)
	}
}

func TestDecodeFieldPathOpRoundTrip(t *testing.T) {
	t.Parallel()
	for op := fieldPathOp(0); op < opCount; op++ {
		op := op
		w := &bitWriter{}
		writeOp(w, codeFor(t, op))
		r := NewBitReader(w.bytes())
		got, err := decodeFieldPathOp(r)
		require.NoError(t, err)
		require.Equal(t, op, got)
	}
}

func TestFieldPathEnumeratorPlusOneThenFinish(t *testing.T) {
	t.Parallel()
	w := &bitWriter{}
	writeOp(w, codeFor(t, opPushOneLeftDeltaZero))
	writeOp(w, codeFor(t, opPlusOne))
	writeOp(w, codeFor(t, opFieldPathEncodeFinish))

	r := NewBitReader(w.bytes())
	enum := NewFieldPathEnumerator()

	path, ok, err := enum.Next(r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, path.Last())
	require.Equal(t, int32(0), path.Get(1))

	path, ok, err = enum.Next(r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(1), path.Get(1))

	_, ok, err = enum.Next(r)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFieldPathEnumeratorPushPop(t *testing.T) {
	t.Parallel()
	w := &bitWriter{}
	writeOp(w, codeFor(t, opPushOneLeftDeltaOne)) // push to depth 1, value 1
	writeOp(w, codeFor(t, opPopOnePlusOne))       // pop back to depth 0, +1
	writeOp(w, codeFor(t, opFieldPathEncodeFinish))

	r := NewBitReader(w.bytes())
	enum := NewFieldPathEnumerator()

	path, ok, err := enum.Next(r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, path.Last())
	require.Equal(t, int32(1), path.Get(1))

	path, ok, err = enum.Next(r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, path.Last())
	require.Equal(t, int32(0), path.Get(0))
}
