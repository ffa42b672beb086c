package engine

import (
	"sync"

	"github.com/pro-utkarshM/axiomOS-sub000/insn"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

// Native is the profile-gated code-generating engine of §4.5. Where the
// host architecture and the program's instruction mix both support it, a
// program is translated to host-native code once at load time and
// reused across every subsequent Run; otherwise Native defers to an
// Interpreter so every program still executes correctly (the
// semantic-consistency invariant of §8 applies only to programs it
// actually compiled, never to the fallback path, which simply *is* the
// interpreter).
//
// The supported subset is deliberately narrow: 64-bit ALU and branch
// instructions operating purely on the register file, plus exit. Loads,
// stores, division/modulo, and helper calls fall back to the
// interpreter — see compile (native_amd64.go) and DESIGN.md for why.
type Native struct {
	interp *Interpreter

	mu    sync.Mutex
	cache map[uint32]*compiledProgram
}

// NewNative builds a Native engine backed by fallback for programs (or
// whole architectures) the code generator does not cover.
func NewNative(interp *Interpreter) *Native {
	return &Native{interp: interp, cache: make(map[uint32]*compiledProgram)}
}

func (n *Native) Run(p *prog.Program, ctx Context) (uint64, error) {
	if !p.Verified() {
		return 0, ErrProgramNotVerified
	}
	cp, err := n.compiled(p)
	if err != nil {
		if err == ErrNativeUnsupported {
			return n.interp.Run(p, ctx)
		}
		return 0, err
	}
	return cp.run(n.interp.maxStackBytes, ctx)
}

func (n *Native) compiled(p *prog.Program) (*compiledProgram, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cp, ok := n.cache[p.ID]; ok {
		return cp, nil
	}
	cp, err := compile(insn.Instructions(p.Instructions))
	if err != nil {
		return nil, err
	}
	n.cache[p.ID] = cp
	return cp, nil
}

// Forget evicts id's compiled code, if any, from the cache and unmaps its
// executable region. It is safe to call for an id that was never
// compiled (the fallback-to-interpreter path leaves no cache entry) or
// already forgotten.
func (n *Native) Forget(id uint32) error {
	n.mu.Lock()
	cp, ok := n.cache[id]
	if ok {
		delete(n.cache, id)
	}
	n.mu.Unlock()
	if !ok {
		return nil
	}
	return cp.close()
}
