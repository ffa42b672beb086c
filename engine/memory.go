package engine

// Synthetic address-space regions a running program's pointer registers
// resolve into. These are process-local fabricated addresses, never real
// memory addresses — each invocation gets a fresh vmMemory, so the
// regions never need to be reserved against anything else in the host
// process (§4.5 "four bounded-pointer schemes").
const (
	stackRegionBase     = uint64(1) << 46
	contextRegionBase   = uint64(1) << 47
	mapValueRegionBase  = uint64(1) << 48
	mapValueRegionAlign = 8
)

// vmMemory is the per-invocation backing store for one program run: its
// stack buffer, its context record, and the map-value pointers minted
// during the call by helpers such as map-lookup. It implements
// helper.Memory directly, so helpers registered against the manager's
// MapProvider run unmodified under the interpreter (and, for the subset
// the native engine defers to it, under the native engine's fallback
// path too).
type vmMemory struct {
	stack []byte
	ctx   []byte

	minted   map[uint64][]byte
	nextMint uint64
}

func newVMMemory(maxStackBytes int) *vmMemory {
	return &vmMemory{
		stack:  make([]byte, maxStackBytes),
		ctx:    make([]byte, ContextSize),
		minted: make(map[uint64][]byte),
	}
}

// stackTop is the address loaded into the frame-pointer register before a
// program runs: the high end of the stack buffer, since stack offsets are
// always zero or negative relative to it (§3, §4.4 check 5).
func (m *vmMemory) stackTop() uint64 {
	return stackRegionBase + uint64(len(m.stack))
}

func (m *vmMemory) contextPtr() uint64 {
	return contextRegionBase
}

// mintRegion copies data into a freshly assigned address in the
// map-value region and returns that address. It backs both
// NewMapValuePointer and the context payload pointer (engine/context.go),
// both of which are the same "generic pointer over a known-size object"
// category from §4.4.
func (m *vmMemory) mintRegion(data []byte) uint64 {
	addr := mapValueRegionBase + m.nextMint
	stored := append([]byte(nil), data...)
	m.minted[addr] = stored
	grown := len(stored)
	if rem := grown % mapValueRegionAlign; rem != 0 {
		grown += mapValueRegionAlign - rem
	}
	m.nextMint += uint64(grown) + mapValueRegionAlign
	return addr
}

// resolve returns the live byte window [addr, addr+length) backing one of
// the three regions, or ErrInvalidMemoryAccess if addr/length falls
// outside all of them. The returned slice aliases live storage: callers
// that hand it to ReadBytes copy out of it before returning.
func (m *vmMemory) resolve(addr uint64, length uint32) ([]byte, error) {
	if region, ok := windowWithin(stackRegionBase, m.stack, addr, length); ok {
		return region, nil
	}
	if region, ok := windowWithin(contextRegionBase, m.ctx, addr, length); ok {
		return region, nil
	}
	for base, data := range m.minted {
		if region, ok := windowWithin(base, data, addr, length); ok {
			return region, nil
		}
	}
	return nil, ErrInvalidMemoryAccess
}

func windowWithin(base uint64, data []byte, addr uint64, length uint32) ([]byte, bool) {
	if addr < base {
		return nil, false
	}
	off := addr - base
	if off > uint64(len(data)) {
		return nil, false
	}
	end := off + uint64(length)
	if end > uint64(len(data)) {
		return nil, false
	}
	return data[off:end], true
}

// ReadBytes implements helper.Memory.
func (m *vmMemory) ReadBytes(addr uint64, length uint32) ([]byte, error) {
	region, err := m.resolve(addr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, region)
	return out, nil
}

// WriteBytes implements helper.Memory.
func (m *vmMemory) WriteBytes(addr uint64, data []byte) error {
	region, err := m.resolve(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(region, data)
	return nil
}

// NewMapValuePointer implements helper.Memory.
func (m *vmMemory) NewMapValuePointer(value []byte) uint64 {
	return m.mintRegion(value)
}
