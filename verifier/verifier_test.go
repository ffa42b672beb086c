package verifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/helper"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

func testRegistry(t *testing.T) *helper.Registry {
	t.Helper()
	reg := helper.NewRegistry()
	require.NoError(t, reg.Register(helper.NewTimeMonotonicNanos(fixedClock{})))
	require.NoError(t, reg.Register(helper.NewMapLookup(noMaps{})))
	require.NoError(t, reg.Register(helper.NewMapUpdate(noMaps{})))
	return reg
}

type fixedClock struct{}

func (fixedClock) MonotonicNanos() int64 { return 0 }

type noMaps struct{}

func (noMaps) MapByID(uint32) (bpfmap.Map, bool) { return nil, false }

func TestVerifyAcceptsReturnConstant(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Imm(insn.R0, 42),
		insn.Exit(),
	}
	res, err := v.Verify(prog)
	require.NoError(t, err)
	require.Equal(t, 0, res.StackDepth)
}

func TestVerifyRejectsWriteToFramePointer(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Imm(insn.RFP, 0),
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryFrameWrite)
}

func TestVerifyRejectsUninitializedRead(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Reg(insn.R0, insn.R2), // r2 never written
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryUninitializedRead)
}

func TestVerifyRejectsExitWithUninitializedReturn(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryUninitializedRead)
}

func TestVerifyRejectsDivisionByImmediateZero(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Imm(insn.R0, 10),
		insn.ALU64Imm(insn.OpDiv, insn.R0, 0),
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryDivisionByZeroConstant)
}

func TestVerifyRejectsUnboundedBackwardBranch(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Imm(insn.R0, 0),
		insn.Ja(-1), // jumps to itself forever, no induction variable
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryUnboundedLoop)
}

func TestVerifyAcceptsBoundedBackwardBranch(t *testing.T) {
	v := New(1000, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Imm(insn.R1, 10),                           // 0: r1 = 10
		insn.ALU64Imm(insn.OpSub, insn.R1, 1),                // 1: r1 -= 1
		insn.JumpImm(true, insn.OpJGT, insn.R1, 0, -2),       // 2: if r1 > 0 goto 1
		insn.Mov64Imm(insn.R0, 0),                            // 3: r0 = 0
		insn.Exit(),                                          // 4
	}
	res, err := v.Verify(prog)
	require.NoError(t, err)
	require.Equal(t, 0, res.StackDepth)
}

func TestVerifyRejectsTooManyInstructions(t *testing.T) {
	v := New(2, 8192, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Imm(insn.R0, 1),
		insn.Mov64Imm(insn.R0, 2),
		insn.Mov64Imm(insn.R0, 3),
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryVerificationBudgetExhausted)
}

func TestVerifyStackAccessWithinBounds(t *testing.T) {
	v := New(1000, 64, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Reg(insn.R1, insn.RFP),
		insn.StoreImm(8, insn.R1, -8, 7),
		insn.LoadReg(8, insn.R0, insn.R1, -8),
		insn.Exit(),
	}
	res, err := v.Verify(prog)
	require.NoError(t, err)
	require.Equal(t, 8, res.StackDepth)
}

func TestVerifyRejectsStackAccessOutOfBounds(t *testing.T) {
	v := New(1000, 8, testRegistry(t), nil)
	prog := insn.Instructions{
		insn.Mov64Reg(insn.R1, insn.RFP),
		insn.StoreImm(8, insn.R1, -16, 7), // profile allows only 8 bytes
		insn.Mov64Imm(insn.R0, 0),
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryMemoryOutOfBoundsStack)
}

func TestVerifyRejectsUnresolvedMapValuePointerUse(t *testing.T) {
	reg := testRegistry(t)
	v := New(1000, 8192, reg, map[uint32]bpfmap.Definition{1: {KeySize: 4, ValueSize: 8}})
	prog := insn.Instructions{
		insn.LoadImm64(insn.R1, 1), // map id 1
		insn.Mov64Reg(insn.R2, insn.RFP),
		insn.ALU64Imm(insn.OpAdd, insn.R2, -4),
		insn.StoreImm(4, insn.R2, 0, 0),
		insn.CallHelper(int32(helper.IDMapLookup)),
		insn.LoadReg(8, insn.R3, insn.R0, 0), // used without a null check
		insn.Mov64Reg(insn.R0, insn.R3),
		insn.Exit(),
	}
	_, err := v.Verify(prog)
	requireCategory(t, err, CategoryUnresolvedMapValuePointer)
}

func TestVerifyAcceptsMapValuePointerAfterNullCheck(t *testing.T) {
	reg := testRegistry(t)
	v := New(1000, 8192, reg, map[uint32]bpfmap.Definition{1: {KeySize: 4, ValueSize: 8}})
	prog := insn.Instructions{
		insn.LoadImm64(insn.R1, 1),
		insn.Mov64Reg(insn.R2, insn.RFP),
		insn.ALU64Imm(insn.OpAdd, insn.R2, -4),
		insn.StoreImm(4, insn.R2, 0, 0),
		insn.CallHelper(int32(helper.IDMapLookup)),
		insn.JumpImm(true, insn.OpJEq, insn.R0, 0, 2), // if null, skip the deref
		insn.LoadReg(8, insn.R3, insn.R0, 0),
		insn.Mov64Reg(insn.R0, insn.R3),
		insn.Exit(),
		insn.Mov64Imm(insn.R0, 0),
		insn.Exit(),
	}
	res, err := v.Verify(prog)
	require.NoError(t, err)
	require.Contains(t, res.MapIDs, uint32(1))
}

func requireCategory(t *testing.T, err error, want Category) {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*Error)
	require.True(t, ok, "expected *verifier.Error, got %T", err)
	require.Equal(t, want, verr.Category)
}
