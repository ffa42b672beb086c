package manager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/engine"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
	"github.com/pro-utkarshM/axiomOS-sub000/profile"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

type fixedClock struct{ n int64 }

func (c fixedClock) MonotonicNanos() int64 { return c.n }

func testProfile() profile.Profile {
	return profile.Profile{
		Name:                "test",
		MaxStackBytes:       512,
		MaxInstructionCount: 4096,
		AttachQueueDepth:    8,
	}
}

func returnOneProgram() insn.Instructions {
	return insn.Instructions{
		insn.Mov64Imm(insn.R0, 1),
		insn.Exit(),
	}
}

func TestManagerLoadAndLookup(t *testing.T) {
	m := New(Config{Profile: testProfile(), Clock: fixedClock{}})

	id, err := m.LoadRaw(prog.KindTimerTick, returnOneProgram())
	require.NoError(t, err)
	require.Equal(t, uint32(1), id)

	p, ok := m.Lookup(id)
	require.True(t, ok)
	require.True(t, p.Verified())
	require.Equal(t, prog.KindTimerTick, p.Kind)
}

func TestManagerLoadAssignsMonotonicIDs(t *testing.T) {
	m := New(Config{Profile: testProfile(), Clock: fixedClock{}})

	first, err := m.LoadRaw(prog.KindTimerTick, returnOneProgram())
	require.NoError(t, err)
	second, err := m.LoadRaw(prog.KindTimerTick, returnOneProgram())
	require.NoError(t, err)
	require.Equal(t, first+1, second)
}

func TestManagerUnloadRemovesFromRegistry(t *testing.T) {
	m := New(Config{Profile: testProfile(), Clock: fixedClock{}})

	id, err := m.LoadRaw(prog.KindTimerTick, returnOneProgram())
	require.NoError(t, err)

	require.NoError(t, m.Unload(id))
	_, ok := m.Lookup(id)
	require.False(t, ok)

	require.ErrorIs(t, m.Unload(id), ErrProgramNotFound)
}

func TestManagerMapCreateLookupUpdateDelete(t *testing.T) {
	m := New(Config{Profile: testProfile(), Clock: fixedClock{}})

	id, err := m.CreateMap(bpfmap.Definition{
		Kind:       bpfmap.KindHash,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 4,
	})
	require.NoError(t, err)

	key := make([]byte, 4)
	require.NoError(t, m.MapUpdate(id, key, bpfmap.EncodeValue(42), bpfmap.UpdateAny))

	value, found, err := m.MapLookup(id, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(42), bpfmap.DecodeValue(value))

	require.NoError(t, m.MapDelete(id, key))
	_, found, err = m.MapLookup(id, key)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, m.DeleteMap(id))
	_, err = m.MapLookup(id, key)
	require.ErrorIs(t, err, ErrMapNotFound)
}

func TestManagerAttachRejectsKindMismatch(t *testing.T) {
	m := New(Config{Profile: testProfile(), Clock: fixedClock{}})

	id, err := m.LoadRaw(prog.KindGPIOEdge, returnOneProgram())
	require.NoError(t, err)

	err = m.Attach(TimerTargetAll(), id)
	require.Error(t, err)
}

func TestManagerAttachDetachAndDispatch(t *testing.T) {
	m := New(Config{Profile: testProfile(), Clock: fixedClock{}})

	prog1, err := m.LoadRaw(prog.KindTimerTick, returnOneProgram())
	require.NoError(t, err)
	prog2, err := m.LoadRaw(prog.KindTimerTick, returnOneProgram())
	require.NoError(t, err)

	target := TimerTargetAll()
	require.NoError(t, m.Attach(target, prog1))
	require.NoError(t, m.Attach(target, prog2))

	require.ErrorIs(t, m.Attach(target, prog1), ErrAlreadyAttached)

	m.Dispatch(target, engine.NewTimerContext(1))
	require.Equal(t, uint64(0), m.ErrorCount())

	require.NoError(t, m.Detach(target, prog1))
	require.ErrorIs(t, m.Detach(target, prog1), ErrNotAttached)
}
