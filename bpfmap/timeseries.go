package bpfmap

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

// Sample is one (timestamp, value) pair as returned by range queries.
type Sample struct {
	TimestampNanos int64
	Value          int64
}

// Stats is the aggregate computed over an inspected range (§4.3). Sum is
// defined to wrap on overflow, matching ordinary int64 two's-complement
// arithmetic.
type Stats struct {
	Count int
	Min   int64
	Max   int64
	Sum   int64
	Mean  float64
}

// TimeSeriesMap is a circular buffer of (timestamp, value) pairs sized to
// MaxEntries (§3, §4.3). Push overwrites the oldest slot when full. Values
// are fixed 8-byte little-endian signed integers, the only representation
// the aggregate-statistics operations can meaningfully reduce over.
type TimeSeriesMap struct {
	def Definition
	mu  sync.RWMutex

	timestamps []int64
	values     []int64
	next       int // index the next Push writes to
	count      int // number of populated slots, <= MaxEntries
}

// NewTimeSeriesMap allocates a TimeSeriesMap from def. def.ValueSize must
// be 8.
func NewTimeSeriesMap(def Definition) (*TimeSeriesMap, error) {
	if def.ValueSize != 8 {
		return nil, errors.Wrap(ErrInvalidValueSize, "time series values are 8-byte signed integers")
	}
	if def.MaxEntries == 0 {
		return nil, errors.New("bpfmap: time series requires MaxEntries > 0")
	}
	return &TimeSeriesMap{
		def:        def,
		timestamps: make([]int64, def.MaxEntries),
		values:     make([]int64, def.MaxEntries),
	}, nil
}

func (t *TimeSeriesMap) Definition() Definition { return t.def }

// Push appends a (timestamp, value) pair, overwriting the oldest entry if
// the buffer is full. Timestamps are expected to be monotonic, but Push
// does not enforce it — an out-of-order push simply lands in its slot and
// ordered range queries will see it out of place, matching a circular
// buffer's actual behavior under misuse.
func (t *TimeSeriesMap) Push(timestampNanos int64, value int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timestamps[t.next] = timestampNanos
	t.values[t.next] = value
	t.next = (t.next + 1) % len(t.timestamps)
	if t.count < len(t.timestamps) {
		t.count++
	}
}

// orderedLocked returns up to count populated samples in insertion order,
// oldest first. Caller holds t.mu.
func (t *TimeSeriesMap) orderedLocked() []Sample {
	out := make([]Sample, 0, t.count)
	start := (t.next - t.count + len(t.timestamps)) % len(t.timestamps)
	for i := 0; i < t.count; i++ {
		idx := (start + i) % len(t.timestamps)
		out = append(out, Sample{TimestampNanos: t.timestamps[idx], Value: t.values[idx]})
	}
	return out
}

// LastN returns the most recent min(n, count) samples, oldest first.
func (t *TimeSeriesMap) LastN(n int) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := t.orderedLocked()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Between returns every populated sample with t0 <= timestamp <= t1,
// scanning at most MaxEntries entries (§4.3).
func (t *TimeSeriesMap) Between(t0, t1 int64) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Sample
	for _, s := range t.orderedLocked() {
		if s.TimestampNanos >= t0 && s.TimestampNanos <= t1 {
			out = append(out, s)
		}
	}
	return out
}

// StatsBetween computes count/min/max/sum/mean over the samples in
// [t0, t1].
func (t *TimeSeriesMap) StatsBetween(t0, t1 int64) Stats {
	samples := t.Between(t0, t1)
	return computeStats(samples)
}

// StatsAll computes the aggregate over every populated sample.
func (t *TimeSeriesMap) StatsAll() Stats {
	t.mu.RLock()
	all := t.orderedLocked()
	t.mu.RUnlock()
	return computeStats(all)
}

func computeStats(samples []Sample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	s := Stats{Count: len(samples), Min: samples[0].Value, Max: samples[0].Value}
	for _, sample := range samples {
		if sample.Value < s.Min {
			s.Min = sample.Value
		}
		if sample.Value > s.Max {
			s.Max = sample.Value
		}
		s.Sum += sample.Value // wraps on overflow, as int64 arithmetic does
	}
	s.Mean = float64(s.Sum) / float64(s.Count)
	return s
}

// Lookup, Update, and Delete satisfy the Map interface's shape; a time
// series is not keyed storage in the sense Array/Hash are, so every call
// reports ErrKindMismatch — callers use Push/LastN/Between/StatsBetween
// instead.
func (t *TimeSeriesMap) Lookup([]byte) ([]byte, bool, error)     { return nil, false, ErrKindMismatch }
func (t *TimeSeriesMap) Update([]byte, []byte, UpdateFlag) error { return ErrKindMismatch }
func (t *TimeSeriesMap) Delete([]byte) error                     { return ErrKindMismatch }

// EncodeValue / DecodeValue convert between the int64 representation and
// the raw little-endian bytes a map-value pointer in bytecode would see.
func EncodeValue(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

func DecodeValue(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}
