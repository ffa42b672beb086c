package bpfmap

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

// ArrayMap is a dense vector of MaxEntries value slots, indexed by a 32-bit
// key interpreted as an index (§3, §4.3). All slots exist from creation,
// zeroed; Lookup/Update are O(1); Delete is a documented no-op.
type ArrayMap struct {
	def     Definition
	mu      sync.RWMutex
	storage []byte
}

// NewArrayMap allocates an ArrayMap from def. def.KeySize must be 4 (a
// 32-bit index).
func NewArrayMap(def Definition) (*ArrayMap, error) {
	if def.KeySize != 4 {
		return nil, errors.Wrap(ErrInvalidKeySize, "array map keys are a 32-bit index")
	}
	return &ArrayMap{
		def:     def,
		storage: make([]byte, int(def.MaxEntries)*int(def.ValueSize)),
	}, nil
}

func (m *ArrayMap) Definition() Definition { return m.def }

func (m *ArrayMap) index(key []byte) (int, error) {
	if len(key) != 4 {
		return 0, ErrInvalidKeySize
	}
	idx := binary.LittleEndian.Uint32(key)
	if idx >= m.def.MaxEntries {
		return 0, ErrKeyNotFound
	}
	return int(idx), nil
}

func (m *ArrayMap) Lookup(key []byte) ([]byte, bool, error) {
	idx, err := m.index(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := int(m.def.ValueSize)
	out := make([]byte, vs)
	copy(out, m.storage[idx*vs:(idx+1)*vs])
	return out, true, nil
}

func (m *ArrayMap) Update(key, value []byte, flag UpdateFlag) error {
	if len(value) != int(m.def.ValueSize) {
		return ErrInvalidValueSize
	}
	idx, err := m.index(key)
	if err != nil {
		return err
	}
	// Every slot exists from creation, so CreateOnly never has a "key
	// exists" case to reject and UpdateOnly never has a missing-key case:
	// Array has no absence after construction.
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := int(m.def.ValueSize)
	copy(m.storage[idx*vs:(idx+1)*vs], value)
	return nil
}

// Delete is a no-op for Array maps (§3): every slot always exists.
func (m *ArrayMap) Delete(key []byte) error {
	if _, err := m.index(key); err != nil {
		return err
	}
	return nil
}
