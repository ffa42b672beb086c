package bpfmap

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func keyOf(i uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, i)
	return b
}

func TestArrayMapAllSlotsPopulatedFromCreation(t *testing.T) {
	m, err := NewArrayMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 4})
	require.NoError(t, err)

	v, ok, err := m.Lookup(keyOf(0))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, make([]byte, 8), v)
}

func TestArrayMapUpdateAndLookup(t *testing.T) {
	m, err := NewArrayMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 4})
	require.NoError(t, err)

	require.NoError(t, m.Update(keyOf(2), EncodeValue(42), UpdateAny))
	v, ok, err := m.Lookup(keyOf(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 42, DecodeValue(v))
}

func TestArrayMapOutOfRangeIndex(t *testing.T) {
	m, err := NewArrayMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 4})
	require.NoError(t, err)

	_, ok, err := m.Lookup(keyOf(99))
	require.NoError(t, err)
	require.False(t, ok)

	err = m.Update(keyOf(99), EncodeValue(1), UpdateAny)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestArrayMapDeleteIsNoOp(t *testing.T) {
	m, err := NewArrayMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 4})
	require.NoError(t, err)

	require.NoError(t, m.Update(keyOf(1), EncodeValue(7), UpdateAny))
	require.NoError(t, m.Delete(keyOf(1)))

	v, ok, err := m.Lookup(keyOf(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 7, DecodeValue(v))
}

func TestArrayMapRejectsWrongKeySize(t *testing.T) {
	_, err := NewArrayMap(Definition{KeySize: 8, ValueSize: 8, MaxEntries: 4})
	require.Error(t, err)
}
