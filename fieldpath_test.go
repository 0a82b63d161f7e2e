package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldPathDownSetUp(t *testing.T) {
	t.Parallel()
	p := NewFieldPath()
	require.Equal(t, 0, p.Last())
	p.Set(0, 5)
	require.Equal(t, int32(5), p.Get(0))

	p.Down()
	p.Set(p.Last(), 3)
	require.Equal(t, 1, p.Last())
	require.Equal(t, int32(3), p.Get(1))

	p.Up(1)
	require.Equal(t, 0, p.Last())
	require.Equal(t, int32(5), p.Get(0))
}

func TestFieldPathEqual(t *testing.T) {
	t.Parallel()
	a := NewFieldPath()
	a.Set(0, 2)
	b := NewFieldPath()
	b.Set(0, 2)
	require.True(t, a.Equal(b))

	b.Set(0, 3)
	require.False(t, a.Equal(b))
}

func TestFieldPathStringAndIndices(t *testing.T) {
	t.Parallel()
	p := NewFieldPath()
	p.Set(0, 1)
	p.Down()
	p.Set(p.Last(), 4)
	require.Equal(t, "1.4", p.String())
	require.Equal(t, []int32{1, 4}, p.Indices())
}
