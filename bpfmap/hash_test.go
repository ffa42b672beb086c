package bpfmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashMapUpdateLookupDelete(t *testing.T) {
	m, err := NewHashMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 8}, false)
	require.NoError(t, err)

	require.NoError(t, m.Update(keyOf(1), EncodeValue(10), UpdateAny))
	v, ok, err := m.Lookup(keyOf(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 10, DecodeValue(v))

	require.NoError(t, m.Delete(keyOf(1)))
	_, ok, err = m.Lookup(keyOf(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashMapCreateOnlyAndUpdateOnly(t *testing.T) {
	m, err := NewHashMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 8}, false)
	require.NoError(t, err)

	require.NoError(t, m.Update(keyOf(1), EncodeValue(1), UpdateCreateOnly))
	err = m.Update(keyOf(1), EncodeValue(2), UpdateCreateOnly)
	require.ErrorIs(t, err, ErrKeyExists)

	err = m.Update(keyOf(2), EncodeValue(1), UpdateOnly)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestHashMapRejectsLRUWhenProfileDisallows(t *testing.T) {
	_, err := NewHashMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 8, Flags: FlagLRU}, false)
	require.Error(t, err)
}

func TestHashMapFullWithoutLRU(t *testing.T) {
	m, err := NewHashMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 2, Flags: FlagNone}, false)
	require.NoError(t, err)

	// MaxEntries is 2, so the third insertion is past the limit and fails
	// with ErrMapFull.
	inserted := 0
	for i := uint32(0); i < 8; i++ {
		if err := m.Update(keyOf(i), EncodeValue(int64(i)), UpdateAny); err != nil {
			require.ErrorIs(t, err, ErrMapFull)
			break
		}
		inserted++
	}
	require.Greater(t, inserted, 0)
}

func TestHashMapLRUEvictsOldest(t *testing.T) {
	m, err := NewHashMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 2, Flags: FlagLRU}, true)
	require.NoError(t, err)

	require.NoError(t, m.Update(keyOf(1), EncodeValue(1), UpdateAny))
	require.NoError(t, m.Update(keyOf(2), EncodeValue(2), UpdateAny))
	// touch key 1 so key 2 becomes the least-recently-used entry
	_, _, err = m.Lookup(keyOf(1))
	require.NoError(t, err)

	require.NoError(t, m.Update(keyOf(3), EncodeValue(3), UpdateAny))

	_, ok, err := m.Lookup(keyOf(2))
	require.NoError(t, err)
	require.False(t, ok, "least-recently-used key should have been evicted")

	_, ok, err = m.Lookup(keyOf(1))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHashMapRejectsWrongSizes(t *testing.T) {
	m, err := NewHashMap(Definition{KeySize: 4, ValueSize: 8, MaxEntries: 8}, false)
	require.NoError(t, err)

	require.ErrorIs(t, m.Update([]byte{1, 2, 3}, EncodeValue(1), UpdateAny), ErrInvalidKeySize)
	require.ErrorIs(t, m.Update(keyOf(1), []byte{1, 2, 3}, UpdateAny), ErrInvalidValueSize)
}
