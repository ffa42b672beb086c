package bpfmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeSeriesPushAndLastN(t *testing.T) {
	ts, err := NewTimeSeriesMap(Definition{ValueSize: 8, MaxEntries: 3})
	require.NoError(t, err)

	ts.Push(100, 1)
	ts.Push(200, 2)
	ts.Push(300, 3)

	last2 := ts.LastN(2)
	require.Len(t, last2, 2)
	require.Equal(t, int64(200), last2[0].TimestampNanos)
	require.Equal(t, int64(300), last2[1].TimestampNanos)
}

func TestTimeSeriesOverwritesOldestWhenFull(t *testing.T) {
	ts, err := NewTimeSeriesMap(Definition{ValueSize: 8, MaxEntries: 2})
	require.NoError(t, err)

	ts.Push(1, 1)
	ts.Push(2, 2)
	ts.Push(3, 3) // overwrites the (1,1) slot

	all := ts.LastN(10)
	require.Len(t, all, 2)
	require.Equal(t, int64(2), all[0].TimestampNanos)
	require.Equal(t, int64(3), all[1].TimestampNanos)
}

func TestTimeSeriesBetween(t *testing.T) {
	ts, err := NewTimeSeriesMap(Definition{ValueSize: 8, MaxEntries: 8})
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		ts.Push(i*100, i)
	}

	got := ts.Between(150, 350)
	require.Len(t, got, 2)
	require.Equal(t, int64(200), got[0].TimestampNanos)
	require.Equal(t, int64(300), got[1].TimestampNanos)
}

func TestTimeSeriesStats(t *testing.T) {
	ts, err := NewTimeSeriesMap(Definition{ValueSize: 8, MaxEntries: 8})
	require.NoError(t, err)

	for i := int64(1); i <= 4; i++ {
		ts.Push(i, i*10)
	}

	s := ts.StatsAll()
	require.Equal(t, 4, s.Count)
	require.EqualValues(t, 10, s.Min)
	require.EqualValues(t, 40, s.Max)
	require.EqualValues(t, 100, s.Sum)
	require.InDelta(t, 25.0, s.Mean, 0.0001)
}

func TestTimeSeriesStatsOnEmptyRange(t *testing.T) {
	ts, err := NewTimeSeriesMap(Definition{ValueSize: 8, MaxEntries: 8})
	require.NoError(t, err)

	s := ts.StatsBetween(0, 100)
	require.Equal(t, Stats{}, s)
}

func TestTimeSeriesRejectsWrongValueSize(t *testing.T) {
	_, err := NewTimeSeriesMap(Definition{ValueSize: 4, MaxEntries: 8})
	require.Error(t, err)
}
