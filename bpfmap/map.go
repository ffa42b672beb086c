// Package bpfmap implements the map family (§3, §4.3): Array, Hash,
// RingBuffer, and TimeSeries containers sharing one contract. Ring buffers
// are lock-free by construction (bpfmap/ringbuf.go); Array and Hash use an
// internal read/write lock, since they are read from both the event
// dispatcher and the system-call path concurrently.
package bpfmap

import "github.com/pkg/errors"

// Kind identifies a map implementation.
type Kind uint8

const (
	KindArray Kind = iota
	KindHash
	KindRingBuffer
	KindTimeSeries
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindHash:
		return "hash"
	case KindRingBuffer:
		return "ringbuffer"
	case KindTimeSeries:
		return "timeseries"
	default:
		return "unknown"
	}
}

// Flag modifies creation-time behavior of a map.
type Flag uint32

const (
	FlagNone Flag = 0
	// FlagLRU, on a Hash map, enables the least-recently-used eviction
	// variant (§3: "the cloud profile may additionally offer ..."). It is
	// rejected at creation time under a profile that does not allow it.
	FlagLRU Flag = 1 << 0
)

// Definition is the fixed record a map is created from (§3 "Map
// definition"). Sizes are fixed at creation; KeySize/ValueSize are
// meaningless for RingBuffer, which is sized by Capacity alone.
type Definition struct {
	Kind       Kind
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	Flags      Flag

	// Capacity is the RingBuffer's byte capacity; must be a power of two.
	// Unused by the other kinds.
	Capacity uint32
}

// UpdateFlag selects Update's create/overwrite semantics.
type UpdateFlag uint8

const (
	// UpdateAny creates the key if absent, overwrites it if present.
	UpdateAny UpdateFlag = iota
	// UpdateCreateOnly fails with ErrKeyExists if the key is present.
	UpdateCreateOnly
	// UpdateOnly fails with ErrKeyNotFound if the key is absent.
	UpdateOnly
)

// Errors common to the map family (§7 "Map errors").
var (
	ErrKeyNotFound      = errors.New("bpfmap: key not found")
	ErrKeyExists        = errors.New("bpfmap: key exists")
	ErrMapFull          = errors.New("bpfmap: map full")
	ErrInvalidKeySize   = errors.New("bpfmap: invalid key size")
	ErrInvalidValueSize = errors.New("bpfmap: invalid value size")
	ErrWouldOverflow    = errors.New("bpfmap: would overflow")
	ErrKindMismatch     = errors.New("bpfmap: helper kind mismatch")
)

// Map is the contract every map kind implements (§4.3).
type Map interface {
	// Definition returns the fixed record the map was created from.
	Definition() Definition

	// Lookup returns the value bytes for key, or ok=false if absent. The
	// returned slice is a copy; callers must not assume it aliases
	// internal storage across a subsequent Update.
	Lookup(key []byte) (value []byte, ok bool, err error)

	// Update inserts or overwrites key according to flag.
	Update(key, value []byte, flag UpdateFlag) error

	// Delete removes key. It is a documented no-op for Array.
	Delete(key []byte) error
}
