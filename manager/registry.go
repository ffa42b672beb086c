package manager

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pro-utkarshM/axiomOS-sub000/insn"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

// ErrProgramNotFound is returned by any operation naming an unregistered
// program identifier.
var ErrProgramNotFound = errors.New("manager: program not found")

// nativeForgetter is implemented by engine.Native; the manager evicts a
// program's compiled native code (a real PROT_EXEC mapping, not just
// GC'able memory) through this interface rather than importing engine.Native
// directly, so an Interpreter-only build has nothing to evict.
type nativeForgetter interface {
	Forget(id uint32) error
}

// LoadRaw builds a program from a raw instruction vector, verifies it, and
// registers it (§4.7 "registry ... identifiers are monotonically
// assigned"). The returned identifier is what PROG_ATTACH and PROG_DETACH
// name the program by.
func (m *Manager) LoadRaw(kind prog.Kind, instructions insn.Instructions) (uint32, error) {
	b := prog.NewBuilder(kind, m.profile.MaxInstructionCount)
	for _, ins := range instructions {
		b.Append(ins)
	}
	p, err := b.Build()
	if err != nil {
		return 0, errors.Wrap(err, "building program")
	}
	return m.register(p)
}

// LoadObject decodes an ELF-like object (§6), creating whichever maps it
// declares and patching its relocations, before verifying and registering
// the resulting program.
func (m *Manager) LoadObject(obj *prog.Object, kind prog.Kind) (uint32, error) {
	p, err := prog.LoadObject(obj, m, kind, m.profile.MaxInstructionCount)
	if err != nil {
		return 0, errors.Wrap(err, "loading object")
	}
	return m.register(p)
}

// register runs the streaming verifier over p and, on acceptance, assigns
// it an identifier and inserts it into the registry under the manager's
// lock (§4.7: "guarded by a mutual-exclusion primitive held only during
// load, unload, and attachment-table edits").
func (m *Manager) register(p *prog.Program) (uint32, error) {
	res, err := m.verify.Verify(p.Instructions)
	if err != nil {
		return 0, errors.Wrap(err, "verification rejected program")
	}
	p.MarkVerified(res.StackDepth, res.MapIDs)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.nextProgID++
	id := m.nextProgID
	p.ID = id
	m.programs[id] = prog.NewHandle(p, m.onHandleZero(id))
	return id, nil
}

// onHandleZero returns the release callback passed to prog.NewHandle: once
// the last Handle to a program drops, its compiled native code (if any)
// is evicted so the executable mapping does not outlive the program.
func (m *Manager) onHandleZero(id uint32) func() {
	return func() {
		f, ok := m.exec.(nativeForgetter)
		if !ok {
			return
		}
		if err := f.Forget(id); err != nil {
			m.logger.Error("failed to evict native code", zap.Uint32("program_id", id), zap.Error(err))
		}
	}
}

// Unload removes a program from the registry. It does not detach it from
// the attachment table first — callers are expected to detach explicitly,
// and any snapshot already taken (or attachment still present) keeps the
// program alive via its own cloned Handle until dropped (§4.7 "a program
// unloaded mid-event continues to execute until the last snapshot
// reference drops").
func (m *Manager) Unload(id uint32) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	h, ok := m.programs[id]
	if !ok {
		return ErrProgramNotFound
	}
	delete(m.programs, id)
	h.Drop()
	return nil
}

// Lookup returns the registered program at id, without affecting its
// reference count.
func (m *Manager) Lookup(id uint32) (*prog.Program, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	h, ok := m.programs[id]
	if !ok {
		return nil, false
	}
	return h.Program, true
}
