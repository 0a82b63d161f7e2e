package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testClass(id int32, name string) *Class {
	return &Class{ID: id, Name: name, Serializer: newSerializer(name, 0)}
}

func TestEntitiesCreateUpdateDelete(t *testing.T) {
	t.Parallel()
	ents := NewEntities()
	class := testClass(7, "CBaseEntity")
	baseline := NewFieldState()
	baseline.Set(leafPath(0), NewI32(10))

	e, err := ents.create(5, 2, class, baseline)
	require.NoError(t, err)
	require.Equal(t, uint32(5), e.Index())
	require.Equal(t, uint32(2), e.Serial())
	require.Equal(t, uint32(2)<<14|5, e.Handle())

	got, err := ents.ByIndex(5)
	require.NoError(t, err)
	require.Same(t, e, got)

	byHandle, err := ents.ByHandle(e.Handle())
	require.NoError(t, err)
	require.Same(t, e, byHandle)

	// wrong serial at the same index must not resolve.
	_, err = ents.ByHandle(1<<14 | 5)
	require.Error(t, err)

	updated, err := ents.update(5)
	require.NoError(t, err)
	require.Same(t, e, updated)

	ents.delete(5)
	_, err = ents.ByIndex(5)
	require.Error(t, err)
}

func TestEntitiesCreateClonesBaselineIndependently(t *testing.T) {
	t.Parallel()
	ents := NewEntities()
	class := testClass(1, "CFoo")
	baseline := NewFieldState()
	baseline.Set(leafPath(0), NewI32(1))

	a, err := ents.create(0, 1, class, baseline)
	require.NoError(t, err)
	b, err := ents.create(1, 1, class, baseline)
	require.NoError(t, err)

	a.state.Set(leafPath(0), NewI32(100))

	v, ok := b.state.Get(leafPath(0))
	require.True(t, ok)
	i, _ := v.Int64()
	require.Equal(t, int64(1), i, "entity clones must not share baseline state")
}

func TestEntitiesByClassIDAndName(t *testing.T) {
	t.Parallel()
	ents := NewEntities()
	class := testClass(3, "CBasePlayer")
	_, err := ents.create(0, 1, class, NewFieldState())
	require.NoError(t, err)

	e, err := ents.ByClassID(3)
	require.NoError(t, err)
	require.Equal(t, "CBasePlayer", e.Class().Name)

	e, err = ents.ByClassName("CBasePlayer")
	require.NoError(t, err)
	require.Equal(t, int32(3), e.Class().ID)

	_, err = ents.ByClassID(999)
	require.Error(t, err)
}

func TestEntitiesAllSkipsEmptySlots(t *testing.T) {
	t.Parallel()
	ents := NewEntities()
	class := testClass(1, "C")
	_, err := ents.create(10, 1, class, NewFieldState())
	require.NoError(t, err)
	_, err = ents.create(20, 1, class, NewFieldState())
	require.NoError(t, err)

	var indices []uint32
	for e := range ents.All() {
		indices = append(indices, e.Index())
	}
	require.Equal(t, []uint32{10, 20}, indices)
}

func TestEntityGetResolvesProperty(t *testing.T) {
	t.Parallel()
	ser := newSerializer("CFoo", 0)
	ser.Fields = append(ser.Fields, &Field{VarName: "m_health", Model: ModelSimple, FieldType: &FieldType{BaseName: "int32"}})
	class := &Class{ID: 1, Name: "CFoo", Serializer: ser}

	ents := NewEntities()
	e, err := ents.create(0, 1, class, NewFieldState())
	require.NoError(t, err)
	e.state.Set(leafPath(0), NewI32(77))

	v, err := e.Get("m_health")
	require.NoError(t, err)
	i, _ := v.Int64()
	require.Equal(t, int64(77), i)

	_, err = e.Get("m_missing")
	require.Error(t, err)
	var le *LookupError
	require.ErrorAs(t, err, &le)
	require.Equal(t, PropertyNotFound, le.Kind)
}
