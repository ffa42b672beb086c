package verifier

import "github.com/pro-utkarshM/axiomOS-sub000/insn"

// regKind is the abstract category a register's value belongs to (§4.4:
// "uninitialized, a known scalar with interval [min, max], or a typed
// pointer").
type regKind uint8

const (
	regUninitialized regKind = iota
	regScalar
	regPtrStack
	regPtrMapValue
	regPtrContext
	regPtrPacket
)

// contextSize is the fixed byte layout size of the Context record (§3):
// large enough for the payload pointer+length pair, the monotonic time,
// and two event-kind-specific fields (for a syscall entry: the syscall
// number and its first argument register), rounded up.
const contextSize = 64

// regState is one register's abstract state at a point in the program.
type regState struct {
	kind regKind

	// min/max bound a scalar's value, or a pointer's offset from its
	// object's base (stack: relative to R10; map value: relative to the
	// lookup result). Meaningless when kind == regUninitialized.
	min, max int64

	// mapValueSize is the statically known size of the object a
	// regPtrMapValue points into (copied from the map definition at the
	// lookup site).
	mapValueSize uint32
	// nullChecked is set once a dominating comparison against zero has
	// been observed on this register (§4.4 tie-breaks: "Access to map
	// values through the pointer ... is tracked as a typed pointer until
	// a dominating null check succeeds").
	nullChecked bool
}

func scalarConst(v int64) regState { return regState{kind: regScalar, min: v, max: v} }

func scalarUnknown() regState { return regState{kind: regScalar, min: minInt64, max: maxInt64} }

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

// isKnownZeroPossible reports whether s's interval contains zero, the
// conservative standard this verifier applies to "can provably be zero
// under any path" (§8 boundary behavior: reject if any path can divide by
// zero).
func (s regState) isKnownZeroPossible() bool {
	return s.kind != regScalar || (s.min <= 0 && 0 <= s.max)
}

// frame is the full register file plus the block-local bookkeeping
// carried alongside it (§4.4: "current stack high-water mark").
type frame struct {
	regs           [insn.RFP + 1]regState
	stackHighWater int64 // most negative stack offset observed, as a positive byte count
}

func (f frame) clone() frame {
	return f // arrays and scalars copy by value; no deep copy needed
}

// widen merges b into a, returning the widened frame and whether the
// result differs from a (i.e. whether further propagation is needed).
func widen(a, b frame) (frame, bool, *Error) {
	out := a
	changed := false
	for i := range a.regs {
		merged, ok := widenReg(a.regs[i], b.regs[i])
		if !ok {
			return out, false, reject(CategoryJoinDidNotConverge, 0, "register r%d has incompatible types across a branch join", i)
		}
		if merged != a.regs[i] {
			changed = true
		}
		out.regs[i] = merged
	}
	if b.stackHighWater > out.stackHighWater {
		out.stackHighWater = b.stackHighWater
		changed = true
	}
	return out, changed, nil
}

func widenReg(a, b regState) (regState, bool) {
	if a.kind == regUninitialized {
		return b, true
	}
	if b.kind == regUninitialized {
		return a, true
	}
	if a.kind != b.kind {
		return regState{}, false
	}
	switch a.kind {
	case regScalar:
		m := a
		if b.min < m.min {
			m.min = b.min
		}
		if b.max > m.max {
			m.max = b.max
		}
		return m, true
	case regPtrStack, regPtrMapValue:
		m := a
		if b.min < m.min {
			m.min = b.min
		}
		if b.max > m.max {
			m.max = b.max
		}
		m.nullChecked = a.nullChecked && b.nullChecked
		return m, true
	default:
		return a, true
	}
}
