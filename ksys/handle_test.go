package ksys

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/errcode"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
	"github.com/pro-utkarshM/axiomOS-sub000/manager"
	"github.com/pro-utkarshM/axiomOS-sub000/profile"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

type fixedClock struct{ n int64 }

func (c fixedClock) MonotonicNanos() int64 { return c.n }

func testManager() *manager.Manager {
	return manager.New(manager.Config{
		Profile: profile.Profile{
			Name:                "test",
			MaxStackBytes:       512,
			MaxInstructionCount: 4096,
			AttachQueueDepth:    8,
		},
		Clock: fixedClock{},
	})
}

func putUint32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }
func putUint64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:off+8], v) }

func TestHandleMapCreateLookupUpdateDelete(t *testing.T) {
	mgr := testManager()
	user := UserSpace{Base: 0x1000, Data: make([]byte, 4096)}

	createAttr := make([]byte, mapCreateAttrSize)
	putUint32(createAttr, 0, uint32(bpfmap.KindHash))
	putUint32(createAttr, 4, 4)  // key size
	putUint32(createAttr, 8, 8)  // value size
	putUint32(createAttr, 12, 4) // max entries

	res := HandleCommand(CmdMapCreate, createAttr, user, mgr, nil)
	require.GreaterOrEqual(t, res, int64(1))
	mapID := uint32(res)

	// Lay out key (offset 0..4, within user space) and value to write
	// (offset 16..24) at fixed addresses inside the user region.
	keyAddr := user.Base + 0
	valueAddr := user.Base + 16
	putUint64(user.Data, 0, 0) // key = 0 at data offset 0
	putUint64(user.Data, 16, 77)

	updateAttr := make([]byte, mapUpdateAttrSize)
	putUint32(updateAttr, 0, mapID)
	putUint32(updateAttr, 4, uint32(bpfmap.UpdateAny))
	putUint64(updateAttr, 8, keyAddr)
	putUint64(updateAttr, 16, valueAddr)

	require.Equal(t, int64(0), HandleCommand(CmdMapUpdate, updateAttr, user, mgr, nil))

	outAddr := user.Base + 32
	lookupAttr := make([]byte, mapLookupAttrSize)
	putUint32(lookupAttr, 0, mapID)
	putUint64(lookupAttr, 8, keyAddr)
	putUint64(lookupAttr, 16, outAddr)

	require.Equal(t, int64(0), HandleCommand(CmdMapLookup, lookupAttr, user, mgr, nil))
	require.Equal(t, int64(77), bpfmap.DecodeValue(user.Data[32:40]))

	deleteAttr := make([]byte, mapDeleteAttrSize)
	putUint32(deleteAttr, 0, mapID)
	putUint64(deleteAttr, 8, keyAddr)
	require.Equal(t, int64(0), HandleCommand(CmdMapDelete, deleteAttr, user, mgr, nil))

	require.Equal(t, errcode.NotFound, HandleCommand(CmdMapLookup, lookupAttr, user, mgr, nil))
}

func TestHandleMapUpdateRejectsOutOfRangePointer(t *testing.T) {
	mgr := testManager()
	user := UserSpace{Base: 0x1000, Data: make([]byte, 64)}

	createAttr := make([]byte, mapCreateAttrSize)
	putUint32(createAttr, 0, uint32(bpfmap.KindArray))
	putUint32(createAttr, 4, 4)
	putUint32(createAttr, 8, 8)
	putUint32(createAttr, 12, 4)
	res := HandleCommand(CmdMapCreate, createAttr, user, mgr, nil)
	mapID := uint32(res)

	updateAttr := make([]byte, mapUpdateAttrSize)
	putUint32(updateAttr, 0, mapID)
	putUint32(updateAttr, 4, uint32(bpfmap.UpdateAny))
	putUint64(updateAttr, 8, user.Base)
	putUint64(updateAttr, 16, user.Base+1000)

	require.Equal(t, errcode.BadAddress, HandleCommand(CmdMapUpdate, updateAttr, user, mgr, nil))
}

func TestHandleMapCreateRejectsShortAttr(t *testing.T) {
	mgr := testManager()
	user := UserSpace{Base: 0x1000, Data: make([]byte, 64)}
	require.Equal(t, errcode.InvalidArg, HandleCommand(CmdMapCreate, []byte{1, 2, 3}, user, mgr, nil))
}

func TestHandleProgLoadAttachDetach(t *testing.T) {
	mgr := testManager()
	user := UserSpace{Base: 0x1000, Data: make([]byte, 4096)}

	code := insn.Instructions{
		insn.Mov64Imm(insn.R0, 1),
		insn.Exit(),
	}.Encode()
	copy(user.Data[0:], code)

	loadAttr := make([]byte, progLoadAttrSize)
	putUint32(loadAttr, 0, uint32(prog.KindTimerTick))
	putUint32(loadAttr, 4, uint32(len(code)))
	putUint64(loadAttr, 8, user.Base)

	res := HandleCommand(CmdProgLoad, loadAttr, user, mgr, nil)
	require.GreaterOrEqual(t, res, int64(1))
	progID := uint32(res)

	attachAttr := make([]byte, attachAttrSize)
	putUint32(attachAttr, 0, progID)
	putUint32(attachAttr, 4, uint32(manager.EventTimerTick))
	putUint32(attachAttr, 24, 1) // All = true

	require.Equal(t, int64(0), HandleCommand(CmdProgAttach, attachAttr, user, mgr, nil))
	require.Equal(t, int64(0), HandleCommand(CmdProgDetach, attachAttr, user, mgr, nil))
	require.Equal(t, errcode.NotFound, HandleCommand(CmdProgDetach, attachAttr, user, mgr, nil))
}

func TestHandleUnknownCommand(t *testing.T) {
	mgr := testManager()
	user := UserSpace{Base: 0x1000, Data: make([]byte, 16)}
	require.Equal(t, errcode.NotImplemented, HandleCommand(Command(999), nil, user, mgr, nil))
}
