package prog

import "sync/atomic"

// refCount is a cheap, allocation-free-on-clone atomic reference count
// backing Handle. This is the "reference-counted shared ownership for
// dispatch snapshots" primitive called for in §9: a dispatch snapshot clone
// is one atomic increment per program, and the program is only destroyed
// when the last Handle is dropped — never torn out from under an
// in-flight snapshot (§8: "the dispatcher takes a snapshot ... A and B both
// execute for that tick").
type refCount struct {
	n      int32
	onZero func()
}

func (rc *refCount) retain() {
	atomic.AddInt32(&rc.n, 1)
}

func (rc *refCount) decrement() {
	if atomic.AddInt32(&rc.n, -1) == 0 && rc.onZero != nil {
		rc.onZero()
	}
}

// Handle is a reference-counted, co-owned pointer to a verified, immutable
// Program. The registry holds one Handle for as long as a program is
// loaded; the attachment table holds another for as long as it is
// attached; a dispatch snapshot clones whichever Handles are attached at
// the moment the snapshot is taken and drops them after execution.
type Handle struct {
	Program *Program
	rc      *refCount
}

// NewHandle wraps program in a fresh Handle with an initial reference count
// of one. onZero, if non-nil, runs exactly once, when the last clone of
// this handle is dropped.
func NewHandle(program *Program, onZero func()) Handle {
	return Handle{Program: program, rc: &refCount{n: 1, onZero: onZero}}
}

// Clone returns a new Handle sharing ownership of the same Program. It is
// safe to call concurrently with Drop from other Handles of the same
// program, and never allocates beyond the returned struct.
func (h Handle) Clone() Handle {
	h.rc.retain()
	return h
}

// Drop releases this Handle's reference. Once every clone has been
// dropped, the release callback supplied to NewHandle runs — this is the
// "reclaim on last handle drop" policy §9 calls for, replacing the
// reference implementation's deferred-reclaim bug.
func (h Handle) Drop() {
	h.rc.decrement()
}
