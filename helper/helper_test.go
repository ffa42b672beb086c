package helper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/khost"
)

// fakeMemory is a minimal Memory for exercising helpers in isolation: a
// flat byte arena for ordinary addresses, plus a side table of minted
// map-value pointers in a disjoint address band.
type fakeMemory struct {
	arena   []byte
	minted  map[uint64][]byte
	nextPtr uint64
}

func newFakeMemory(arena []byte) *fakeMemory {
	return &fakeMemory{arena: arena, minted: make(map[uint64][]byte), nextPtr: 1 << 40}
}

func (m *fakeMemory) ReadBytes(addr uint64, length uint32) ([]byte, error) {
	if v, ok := m.minted[addr]; ok {
		return v[:length], nil
	}
	return m.arena[addr : addr+uint64(length)], nil
}

func (m *fakeMemory) WriteBytes(addr uint64, data []byte) error {
	if v, ok := m.minted[addr]; ok {
		copy(v, data)
		return nil
	}
	copy(m.arena[addr:], data)
	return nil
}

func (m *fakeMemory) NewMapValuePointer(value []byte) uint64 {
	p := m.nextPtr
	m.nextPtr++
	m.minted[p] = value
	return p
}

type fakeClock struct{ n int64 }

func (c fakeClock) MonotonicNanos() int64 { return c.n }

type fakeSink struct{ lines []string }

func (s *fakeSink) WriteLog(line string) { s.lines = append(s.lines, line) }

type fakeMapProvider struct {
	maps map[uint32]bpfmap.Map
}

func (p fakeMapProvider) MapByID(id uint32) (bpfmap.Map, bool) {
	m, ok := p.maps[id]
	return m, ok
}

func TestTimeHelperReturnsClockValue(t *testing.T) {
	h := NewTimeMonotonicNanos(fakeClock{n: 12345})
	v, err := h.Invoke(nil, [5]uint64{})
	require.NoError(t, err)
	require.EqualValues(t, 12345, v)
}

func TestTracePrintWritesBoundedString(t *testing.T) {
	sink := &fakeSink{}
	h := NewTracePrint(sink)
	mem := newFakeMemory([]byte("hello world"))
	v, err := h.Invoke(mem, [5]uint64{0, 5})
	require.NoError(t, err)
	require.EqualValues(t, 5, v)
	require.Equal(t, []string{"hello"}, sink.lines)
}

func TestMapLookupMintsPointerOnHit(t *testing.T) {
	m, err := bpfmap.NewArrayMap(bpfmap.Definition{KeySize: 4, ValueSize: 8, MaxEntries: 4})
	require.NoError(t, err)
	require.NoError(t, m.Update(keyBytes(1), bpfmap.EncodeValue(99), bpfmap.UpdateAny))

	h := NewMapLookup(fakeMapProvider{maps: map[uint32]bpfmap.Map{7: m}})
	mem := newFakeMemory(keyBytes(1))
	ptr, err := h.Invoke(mem, [5]uint64{7, 0})
	require.NoError(t, err)
	require.NotZero(t, ptr)

	value, err := mem.ReadBytes(ptr, 8)
	require.NoError(t, err)
	require.EqualValues(t, 99, bpfmap.DecodeValue(value))
}

func TestMapLookupReturnsZeroOnMiss(t *testing.T) {
	m, err := bpfmap.NewArrayMap(bpfmap.Definition{KeySize: 4, ValueSize: 8, MaxEntries: 1})
	require.NoError(t, err)
	h := NewMapLookup(fakeMapProvider{maps: map[uint32]bpfmap.Map{7: m}})
	mem := newFakeMemory(keyBytes(99))
	ptr, err := h.Invoke(mem, [5]uint64{7, 0})
	require.NoError(t, err)
	require.Zero(t, ptr, "out-of-range array index is a miss, not an error, from the helper's view")
}

func TestMapUpdateAndDelete(t *testing.T) {
	m, err := bpfmap.NewHashMap(bpfmap.Definition{KeySize: 4, ValueSize: 8, MaxEntries: 8}, false)
	require.NoError(t, err)
	provider := fakeMapProvider{maps: map[uint32]bpfmap.Map{1: m}}

	arena := append(keyBytes(5), bpfmap.EncodeValue(77)...)
	mem := newFakeMemory(arena)

	upd := NewMapUpdate(provider)
	status, err := upd.Invoke(mem, [5]uint64{1, 0, 4, uint64(bpfmap.UpdateAny)})
	require.NoError(t, err)
	require.Zero(t, int64(status))

	v, ok, err := m.Lookup(keyBytes(5))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 77, bpfmap.DecodeValue(v))

	del := NewMapDelete(provider)
	status, err = del.Invoke(mem, [5]uint64{1, 0})
	require.NoError(t, err)
	require.Zero(t, int64(status))

	_, ok, err = m.Lookup(keyBytes(5))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRingBufferOutputHelper(t *testing.T) {
	rb, err := bpfmap.NewRingBuffer(bpfmap.Definition{Capacity: 4096})
	require.NoError(t, err)
	defer rb.Close()

	provider := fakeMapProvider{maps: map[uint32]bpfmap.Map{3: rb}}
	h := NewRingBufferOutput(provider)
	mem := newFakeMemory([]byte("payload!"))
	status, err := h.Invoke(mem, [5]uint64{3, 0, 8})
	require.NoError(t, err)
	require.Zero(t, int64(status))

	dst := make([]byte, 64)
	n, err := rb.Poll(dst)
	require.NoError(t, err)
	require.Equal(t, "payload!", string(dst[:n]))
}

func TestPlatformFamilyRegistersAllHelpers(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterPlatformFamily(reg, noopPlatform{}))
	for _, id := range []uint32{IDGPIORead, IDGPIOWrite, IDPWMSetDuty, IDSensorRead, IDEmergencyStop} {
		_, ok := reg.Lookup(id)
		require.True(t, ok)
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewTimeMonotonicNanos(fakeClock{})))
	err := reg.Register(NewTimeMonotonicNanos(fakeClock{}))
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func keyBytes(i uint32) []byte {
	return []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
}

type noopPlatform struct{}

func (noopPlatform) GPIORead(uint32, uint32) (bool, error)       { return false, nil }
func (noopPlatform) GPIOWrite(uint32, uint32, bool) error        { return nil }
func (noopPlatform) PWMSetDutyCycle(uint32, uint32, uint32) error { return nil }
func (noopPlatform) SensorRead(uint32, uint32) (int64, error)    { return 0, nil }
func (noopPlatform) EmergencyStop() error                        { return nil }

var _ khost.PlatformIO = noopPlatform{}
