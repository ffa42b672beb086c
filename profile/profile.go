// Package profile carries the single compile-time choice that every other
// component threads through: the deployment profile (embedded vs. cloud).
// There is no per-program configuration that changes these bounds, and the
// profile is never observable to loaded programs — identical bytecode must
// produce identical results on both profiles wherever both accept it.
package profile

// FailurePolicy describes what happens to a program after a runtime error.
type FailurePolicy int

const (
	// FailStop detaches a program that failed at runtime; it does not run
	// again until an operator re-attaches it.
	FailStop FailurePolicy = iota
	// FailRestartable leaves the program attached; the surrounding caller
	// may retry.
	FailRestartable
)

// MapMemorySource describes where map storage is allocated from.
type MapMemorySource int

const (
	// MapMemoryFixedRegion allocates out of a pre-reserved, fixed-size
	// region. Individual maps are never freed back to the OS.
	MapMemoryFixedRegion MapMemorySource = iota
	// MapMemoryHeap allocates and frees normally.
	MapMemoryHeap
)

// Profile bundles the resource budgets and capability flags of §4.1. It is
// a plain value, not an interface — there is exactly one live implementation
// per build, selected by build tags on profile_embedded.go / profile_cloud.go.
type Profile struct {
	Name string

	MaxStackBytes      int
	MaxInstructionCount int

	NativeCodeGenAllowed bool
	MapMemorySource      MapMemorySource
	MapResizeAllowed     bool

	// AttachQueueDepth bounds the attachment table's per-(kind,target)
	// dispatch sequence: Attach fails once a target holds this many programs.
	AttachQueueDepth int

	Failure FailurePolicy

	// LRUHashEvictionAllowed enables the least-recently-used hash variant
	// (§3: "the cloud profile may additionally offer ... ").
	LRUHashEvictionAllowed bool
}

// Current returns the single profile baked into this build. Exactly one of
// profile_embedded.go or profile_cloud.go is compiled, each defining the
// package-level value current that this function returns; selecting zero or
// two leaves current undefined or declared twice, a compile error that
// profile_guard.go documents.
func Current() Profile {
	return current
}
