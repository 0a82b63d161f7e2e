package tdp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFieldTypeSimple(t *testing.T) {
	t.Parallel()
	ft, err := ParseFieldType("int32")
	require.NoError(t, err)
	require.Equal(t, "int32", ft.BaseName)
	require.Nil(t, ft.Generic)
	require.Zero(t, ft.ArraySize)
}

func TestParseFieldTypeGeneric(t *testing.T) {
	t.Parallel()
	ft, err := ParseFieldType("CUtlVector< CHandle< CBaseEntity > >")
	require.NoError(t, err)
	require.Equal(t, "CUtlVector", ft.BaseName)
	require.NotNil(t, ft.Generic)
	require.Equal(t, "CHandle", ft.Generic.BaseName)
	require.NotNil(t, ft.Generic.Generic)
	require.Equal(t, "CBaseEntity", ft.Generic.Generic.BaseName)
}

func TestParseFieldTypeFixedArray(t *testing.T) {
	t.Parallel()
	ft, err := ParseFieldType("float32[32]")
	require.NoError(t, err)
	require.Equal(t, "float32", ft.BaseName)
	require.Equal(t, 32, ft.ArraySize)
}

func TestParseFieldTypePointer(t *testing.T) {
	t.Parallel()
	ft, err := ParseFieldType("CBodyComponent*")
	require.NoError(t, err)
	require.True(t, ft.Pointer)
}

func TestParseFieldTypeInvalid(t *testing.T) {
	t.Parallel()
	_, err := ParseFieldType("CUtlVector<")
	require.Error(t, err)
	var perr *FieldTypeParseError
	require.ErrorAs(t, err, &perr)
}

func TestFieldTypeStringRoundTrips(t *testing.T) {
	t.Parallel()
	ft, err := ParseFieldType("CNetworkUtlVectorBase< CHandle< CBaseEntity > >")
	require.NoError(t, err)
	require.Contains(t, ft.String(), "CNetworkUtlVectorBase")
	require.Contains(t, ft.String(), "CHandle")
}
