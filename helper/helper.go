// Package helper implements the helper registry (§4.6): in-kernel
// callbacks invocable from bytecode through the call instruction, each
// with a declared argument/return signature the verifier checks calls
// against and a stable numeric identifier the call instruction encodes.
package helper

import "github.com/pkg/errors"

// ArgKind classifies one helper argument (or return value) for the
// verifier's signature check (§4.4 check 9, §4.6).
type ArgKind uint8

const (
	// ArgVoid is the zero value: "no return value" for Signature.Return,
	// or "argument slot unused" for a trailing Signature.Args entry. It
	// is deliberately the zero value so a Signature literal that leaves
	// trailing Args entries unset reads as "this helper takes fewer than
	// five arguments", not as an implicit extra ArgScalar requirement.
	ArgVoid ArgKind = iota
	// ArgScalar accepts any initialized scalar register.
	ArgScalar
	// ArgPtrBytes accepts a pointer to a byte region; SizeArg names the
	// (zero-based) preceding argument index whose scalar value is the
	// region's length, or SizeConst is used if SizeArg is negative. The
	// verifier checks that the argument is a stack, map-value, or context
	// pointer; it does not check the region's length against SizeArg or
	// SizeConst.
	ArgPtrBytes
	// ArgPtrMap accepts a pointer to a map of MapKind (bpfmap.Kind,
	// stored as a plain uint8 here to avoid an import cycle with
	// bpfmap; callers compare against bpfmap.Kind's numeric values).
	ArgPtrMap
	// ArgPtrContext accepts the context pointer implicitly available to
	// every program.
	ArgPtrContext
)

// Arg fully describes one argument position in a Signature.
type Arg struct {
	Kind      ArgKind
	MapKind   uint8 // meaningful only when Kind == ArgPtrMap
	SizeArg   int   // meaningful only when Kind == ArgPtrBytes; -1 means SizeConst
	SizeConst uint32
}

// Signature is a helper's declared contract (§4.6).
type Signature struct {
	Args   [5]Arg
	Return ArgKind
}

// Memory is the per-invocation view of a program's addressable space that
// a helper needs: the engine implements it once per call so a helper can
// resolve pointer arguments and mint new ones (e.g. the pointer a map
// lookup returns) without helpers importing the engine package directly.
type Memory interface {
	// ReadBytes copies length bytes starting at addr, failing if addr is
	// not within a bounded-pointer region the verifier proved safe.
	ReadBytes(addr uint64, length uint32) ([]byte, error)
	// WriteBytes copies data to addr, under the same bound as ReadBytes.
	WriteBytes(addr uint64, data []byte) error
	// NewMapValuePointer mints an address for value, valid only for the
	// remainder of the current invocation, implementing the "generic
	// pointer" category of §4.4 for a map-value pointer of known size.
	NewMapValuePointer(value []byte) uint64
}

// Func is a helper's implementation: the per-invocation memory view, the
// five packed argument registers, and a 64-bit return value (or an error
// the caller treats as a negative status per the calling convention of
// the helper it belongs to).
type Func func(mem Memory, args [5]uint64) (uint64, error)

// Helper is one registered entry.
type Helper struct {
	ID        uint32
	Name      string
	Signature Signature
	Invoke    Func
}

// Stable helper ids shared by every program and both execution engines
// (§6 "Helper numeric ids").
const (
	IDTimeMonotonicNanos  uint32 = 1
	IDTracePrint          uint32 = 2
	IDMapLookup           uint32 = 3
	IDMapUpdate           uint32 = 4
	IDMapDelete           uint32 = 5
	IDRingBufferOutput    uint32 = 6
	// Platform-specific ids start at 64 so a build that omits the
	// platform family never collides with a future core helper.
	IDGPIORead       uint32 = 64
	IDGPIOWrite      uint32 = 65
	IDPWMSetDuty     uint32 = 66
	IDSensorRead     uint32 = 67
	IDEmergencyStop  uint32 = 68
)

var (
	// ErrAlreadyRegistered is returned by Registry.Register for a
	// duplicate id.
	ErrAlreadyRegistered = errors.New("helper: id already registered")
	// ErrNotFound is returned by Registry.Lookup-adjacent callers that
	// need an error rather than a boolean.
	ErrNotFound = errors.New("helper: id not found")
)

// Registry is the set of helpers a build makes available, keyed by
// stable id. It is built once at startup and is read-only thereafter;
// concurrent Lookup calls need no synchronization.
type Registry struct {
	byID map[uint32]*Helper
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint32]*Helper)}
}

// Register adds h. It fails if h.ID is already registered, since helper
// ids are meant to be stable and collision-free for the lifetime of a
// build (§4.6).
func (r *Registry) Register(h *Helper) error {
	if _, exists := r.byID[h.ID]; exists {
		return errors.Wrapf(ErrAlreadyRegistered, "helper id %d (%s)", h.ID, h.Name)
	}
	r.byID[h.ID] = h
	return nil
}

// Lookup returns the helper registered under id, or ok=false.
func (r *Registry) Lookup(id uint32) (*Helper, bool) {
	h, ok := r.byID[id]
	return h, ok
}
