package bpfmap

import (
	"bytes"
	"hash/maphash"
	"sync"

	"github.com/pkg/errors"
)

// maxLoadFactor bounds how full the table may become (§4.3 "Load factor
// capped such that insertion fails before degrading below a documented
// bound"): NewHashMap sizes the table so MaxEntries entries stay within
// it, and Update fails past MaxEntries.
const maxLoadFactor = 0.75

type hashSlot struct {
	used  bool
	tomb  bool
	key   []byte
	value []byte
	tick  uint64 // last-touched clock value, for LRU eviction
}

// HashMap is a set of (key, value) pairs addressed by linear probing over a
// power-of-two capacity (the next one at or above MaxEntries, doubled
// until MaxEntries fits under maxLoadFactor), with
// tombstones on delete (§3, §4.3). With FlagLRU set (and permitted by the
// active profile) it evicts the least recently touched entry instead of
// failing when full.
type HashMap struct {
	def      Definition
	mu       sync.RWMutex
	slots    []hashSlot
	count    int
	seed     maphash.Seed
	lru      bool
	clock    uint64
}

// NewHashMap allocates a HashMap from def. lruAllowed gates whether
// def.Flags&FlagLRU may actually take effect, matching §4.1's "the cloud
// profile may additionally offer" — an embedded build rejects the flag
// outright rather than silently ignoring it.
func NewHashMap(def Definition, lruAllowed bool) (*HashMap, error) {
	if def.Flags&FlagLRU != 0 && !lruAllowed {
		return nil, errors.New("bpfmap: LRU hash eviction is not permitted by this profile")
	}
	capacity := nextPow2(def.MaxEntries)
	if capacity == 0 {
		capacity = 1
	}
	for float64(def.MaxEntries) > float64(capacity)*maxLoadFactor {
		capacity <<= 1
	}
	return &HashMap{
		def:   def,
		slots: make([]hashSlot, capacity),
		seed:  maphash.MakeSeed(),
		lru:   def.Flags&FlagLRU != 0,
	}, nil
}

func nextPow2(n uint32) int {
	if n == 0 {
		return 0
	}
	p := 1
	for p < int(n) {
		p <<= 1
	}
	return p
}

func (m *HashMap) Definition() Definition { return m.def }

func (m *HashMap) hashOf(key []byte) int {
	var h maphash.Hash
	h.SetSeed(m.seed)
	h.Write(key)
	return int(h.Sum64() % uint64(len(m.slots)))
}

// probe returns the slot index matching key (found=true), or the first
// empty-or-tombstone slot index (found=false) that a fresh insert should
// use, scanning at most len(slots) slots.
func (m *HashMap) probe(key []byte) (idx int, found bool) {
	start := m.hashOf(key)
	firstFree := -1
	n := len(m.slots)
	for i := 0; i < n; i++ {
		j := (start + i) % n
		s := &m.slots[j]
		if !s.used {
			if s.tomb {
				if firstFree < 0 {
					firstFree = j
				}
				continue
			}
			if firstFree >= 0 {
				return firstFree, false
			}
			return j, false
		}
		if bytes.Equal(s.key, key) {
			return j, true
		}
	}
	return firstFree, false
}

func (m *HashMap) Lookup(key []byte) ([]byte, bool, error) {
	if len(key) != int(m.def.KeySize) {
		return nil, false, ErrInvalidKeySize
	}
	m.mu.Lock() // write lock: LRU touch mutates tick under read access too
	defer m.mu.Unlock()
	idx, found := m.probe(key)
	if !found {
		return nil, false, nil
	}
	m.clock++
	m.slots[idx].tick = m.clock
	out := make([]byte, len(m.slots[idx].value))
	copy(out, m.slots[idx].value)
	return out, true, nil
}

func (m *HashMap) Update(key, value []byte, flag UpdateFlag) error {
	if len(key) != int(m.def.KeySize) {
		return ErrInvalidKeySize
	}
	if len(value) != int(m.def.ValueSize) {
		return ErrInvalidValueSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, found := m.probe(key)
	if found {
		if flag == UpdateCreateOnly {
			return ErrKeyExists
		}
		m.clock++
		m.slots[idx].value = append([]byte(nil), value...)
		m.slots[idx].tick = m.clock
		return nil
	}
	if flag == UpdateOnly {
		return ErrKeyNotFound
	}
	if idx < 0 || m.count >= int(m.def.MaxEntries) {
		if m.lru && m.evictLRULocked() >= 0 {
			idx, _ = m.probe(key)
			return m.insertLocked(idx, key, value)
		}
		return ErrMapFull
	}
	return m.insertLocked(idx, key, value)
}

func (m *HashMap) insertLocked(idx int, key, value []byte) error {
	m.clock++
	m.slots[idx] = hashSlot{
		used:  true,
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
		tick:  m.clock,
	}
	m.count++
	return nil
}

func (m *HashMap) evictLRULocked() int {
	victim := -1
	var oldest uint64
	for i := range m.slots {
		if !m.slots[i].used {
			continue
		}
		if victim < 0 || m.slots[i].tick < oldest {
			victim = i
			oldest = m.slots[i].tick
		}
	}
	if victim >= 0 {
		m.slots[victim] = hashSlot{tomb: true}
		m.count--
	}
	return victim
}

func (m *HashMap) Delete(key []byte) error {
	if len(key) != int(m.def.KeySize) {
		return ErrInvalidKeySize
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, found := m.probe(key)
	if !found {
		return ErrKeyNotFound
	}
	m.slots[idx] = hashSlot{tomb: true}
	m.count--
	return nil
}
