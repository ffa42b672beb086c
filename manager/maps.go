package manager

import (
	"github.com/pkg/errors"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
)

// ErrMapNotFound is returned by any operation naming an unregistered map
// identifier.
var ErrMapNotFound = errors.New("manager: map not found")

// CreateMap allocates a map of the kind def declares and registers it
// under a fresh identifier (§4.8 MAP_CREATE). It implements
// prog.MapCreator, so the ELF loader can create a program's declared maps
// directly through a Manager, and helper.MapProvider, so the helper
// registry's map-lookup/update/delete/ringbuf-output helpers resolve
// against the same table (§4.6).
func (m *Manager) CreateMap(def bpfmap.Definition) (uint32, error) {
	mp, err := m.newMap(def)
	if err != nil {
		return 0, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.nextMapID++
	id := m.nextMapID
	m.maps[id] = mp
	m.mapDefs[id] = def
	return id, nil
}

func (m *Manager) newMap(def bpfmap.Definition) (bpfmap.Map, error) {
	switch def.Kind {
	case bpfmap.KindArray:
		return bpfmap.NewArrayMap(def)
	case bpfmap.KindHash:
		return bpfmap.NewHashMap(def, m.profile.LRUHashEvictionAllowed)
	case bpfmap.KindRingBuffer:
		return bpfmap.NewRingBuffer(def)
	case bpfmap.KindTimeSeries:
		return bpfmap.NewTimeSeriesMap(def)
	default:
		return nil, errors.Errorf("manager: unrecognized map kind %d", def.Kind)
	}
}

// MapByID implements helper.MapProvider.
func (m *Manager) MapByID(id uint32) (bpfmap.Map, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	mp, ok := m.maps[id]
	return mp, ok
}

// MapDefinition returns the Definition a map was created with, so callers
// validating a user pointer know the key/value sizes to check against
// without ever trusting a caller-supplied size (§4.8: "key and value sizes
// for map operations are taken from the map's stored definition").
func (m *Manager) MapDefinition(id uint32) (bpfmap.Definition, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	def, ok := m.mapDefs[id]
	return def, ok
}

// DeleteMap removes a map from the table. It does not check whether any
// registered program still references it by id; per §9 programs reference
// maps only by identifier, never by pointer, so a dangling reference simply
// resolves to "not found" at the next helper call rather than dereferencing
// freed memory.
func (m *Manager) DeleteMap(id uint32) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	mp, ok := m.maps[id]
	if !ok {
		return ErrMapNotFound
	}
	if closer, ok := mp.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	delete(m.maps, id)
	delete(m.mapDefs, id)
	return nil
}

// Lookup, Update, and Delete on a single map, by id — the direct backing
// for the MAP_LOOKUP/MAP_UPDATE/MAP_DELETE system calls (§4.8), key and
// value sizes always taken from the map's own stored definition.
func (m *Manager) MapLookup(id uint32, key []byte) (value []byte, found bool, err error) {
	mp, ok := m.MapByID(id)
	if !ok {
		return nil, false, ErrMapNotFound
	}
	return mp.Lookup(key)
}

func (m *Manager) MapUpdate(id uint32, key, value []byte, flag bpfmap.UpdateFlag) error {
	mp, ok := m.MapByID(id)
	if !ok {
		return ErrMapNotFound
	}
	return mp.Update(key, value, flag)
}

func (m *Manager) MapDelete(id uint32, key []byte) error {
	mp, ok := m.MapByID(id)
	if !ok {
		return ErrMapNotFound
	}
	return mp.Delete(key)
}

// ErrNotRingBuffer is returned by PollRingBuffer when id names a map that
// is not a ring buffer.
var ErrNotRingBuffer = errors.New("manager: map is not a ring buffer")

// PollRingBuffer copies one pending record out of the ring buffer named by
// id, backing the RINGBUF_POLL system call (§4.8).
func (m *Manager) PollRingBuffer(id uint32, dst []byte) (int, error) {
	mp, ok := m.MapByID(id)
	if !ok {
		return 0, ErrMapNotFound
	}
	rb, ok := mp.(*bpfmap.RingBuffer)
	if !ok {
		return 0, ErrNotRingBuffer
	}
	return rb.Poll(dst)
}
