package insn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	prog := insn.Instructions{
		insn.Mov64Imm(insn.R0, 42),
		insn.ALU64Imm(insn.OpAdd, insn.R0, 1),
		insn.LoadImm64(insn.R1, 0x1122334455667788),
		insn.JumpImm(true, insn.OpJEq, insn.R0, 43, 1),
		insn.Ja(-1),
		insn.CallHelper(3),
		insn.Exit(),
	}

	raw := prog.Encode()
	decoded, err := insn.DecodeAll(raw)
	require.NoError(t, err)
	require.Equal(t, raw, decoded.Encode())
	require.Equal(t, prog.Count(), decoded.Count())
}

func TestWideImmReconstructsValue(t *testing.T) {
	want := uint64(0x1122334455667788)
	ins := insn.LoadImm64(insn.R1, want)
	require.True(t, ins.IsWide())
	require.Equal(t, int64(want), ins.Imm64())
	require.Equal(t, 2, ins.Slots())
}

func TestOpcodeRoundTrip(t *testing.T) {
	op := insn.Encode(insn.ClassALU64, insn.SrcReg, insn.OpXor)
	require.Equal(t, insn.ClassALU64, op.Class())
	require.Equal(t, insn.SrcReg, op.Src())
	require.Equal(t, insn.OpXor, op.Op())
}

func TestFrameRegisterIsReadOnlyByConvention(t *testing.T) {
	require.Equal(t, insn.R10, insn.RFP)
	require.True(t, insn.RFP.Valid())
}

func TestDecodeShortBuffer(t *testing.T) {
	_, _, err := insn.Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, insn.ErrShortBuffer)
}
