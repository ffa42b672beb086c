// Package prog defines the Program container: an ordered, finite,
// immutable-after-verification sequence of instructions plus the metadata
// the verifier and manager attach to it (§3 "Program").
package prog

import "github.com/pro-utkarshM/axiomOS-sub000/insn"

// Program is immutable after verification; construction happens through
// Builder and annotation happens through MarkVerified once the verifier
// accepts it. Programs
// never reference maps by pointer, only by identifier (§9 "no cyclic
// references"), so no destructor needs to walk back-references.
type Program struct {
	// ID is assigned by the manager's registry on insertion; it is zero
	// for a program that has not yet been registered.
	ID uint32

	Kind         Kind
	Instructions insn.Instructions

	// StackDepth is the verifier-proven upper bound, in bytes, across all
	// reachable execution paths. It is -1 until the verifier annotates it.
	StackDepth int

	// MapIDs is the set of map identifiers referenced by this program's
	// helper calls, discovered during verification or ELF relocation.
	MapIDs []uint32

	// License is carried for ELF-loaded programs; raw instruction-vector
	// programs leave it empty.
	License string

	verified bool
}

// Verified reports whether the streaming verifier has accepted this
// program. No execution path may run an unverified program (§3
// invariants).
func (p *Program) Verified() bool { return p.verified }

// MarkVerified records the verifier's acceptance; the manager calls it with
// the verifier's Result when it registers a program. It populates
// StackDepth and MapIDs and freezes the program against further mutation by
// convention (callers must not mutate Instructions after this point).
func (p *Program) MarkVerified(stackDepth int, mapIDs []uint32) {
	p.StackDepth = stackDepth
	p.MapIDs = mapIDs
	p.verified = true
}

// Encode serializes the program's instructions to their raw byte form.
func (p *Program) Encode() []byte {
	return p.Instructions.Encode()
}

// ReferencesMap reports whether id is among the maps this program's helper
// calls touch.
func (p *Program) ReferencesMap(id uint32) bool {
	for _, m := range p.MapIDs {
		if m == id {
			return true
		}
	}
	return false
}
