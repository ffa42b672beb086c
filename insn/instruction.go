package insn

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Size is the fixed width of one instruction record (§3).
const Size = 8

// ErrShortBuffer is returned by Decode when fewer than Size bytes remain.
var ErrShortBuffer = errors.New("insn: short buffer")

// Instruction is the fixed eight-byte record described in §3: an opcode
// byte, packed destination+source register nibbles, a signed 16-bit branch
// offset, and a signed 32-bit immediate. A "load double-word immediate"
// wide instruction is represented as a single Instruction value whose
// Next field carries the second slot (that slot is never itself encoded
// standalone — Encode on the first slot emits both).
type Instruction struct {
	Opcode Opcode
	Dst    Register
	Src    Register
	Offset int16
	Imm    int32

	// Next holds the second 8-byte slot of a wide ("load double-word
	// immediate") instruction. It is nil for every other instruction.
	Next *Instruction
}

// IsWide reports whether ins is the first slot of a two-slot wide
// instruction.
func (ins *Instruction) IsWide() bool {
	return ins.Opcode.Class() == ClassLoad && ins.Opcode.Op() == OpWDWImm
}

// Imm64 reconstructs the 64-bit immediate of a wide instruction from its
// two slots: the low 32 bits come from the first slot's Imm, the high 32
// bits from the second slot's Imm.
func (ins *Instruction) Imm64() int64 {
	if ins.Next == nil {
		return int64(ins.Imm)
	}
	return int64(uint64(uint32(ins.Imm)) | uint64(uint32(ins.Next.Imm))<<32)
}

// Slots returns the number of 8-byte records ins occupies: 2 for a wide
// instruction, 1 otherwise.
func (ins *Instruction) Slots() int {
	if ins.IsWide() {
		return 2
	}
	return 1
}

// Encode appends ins (and, for a wide instruction, its second slot) to buf
// in the fixed little-endian layout and returns the result.
func (ins *Instruction) Encode(buf []byte) []byte {
	buf = encodeSlot(buf, uint8(ins.Opcode), ins.Dst, ins.Src, ins.Offset, ins.Imm)
	if ins.Next != nil {
		buf = encodeSlot(buf, uint8(ins.Next.Opcode), ins.Next.Dst, ins.Next.Src, ins.Next.Offset, ins.Next.Imm)
	}
	return buf
}

func encodeSlot(buf []byte, op uint8, dst, src Register, off int16, imm int32) []byte {
	var rp regPair
	rp.setDst(dst)
	rp.setSrc(src)
	var rec [Size]byte
	rec[0] = op
	rec[1] = uint8(rp)
	binary.LittleEndian.PutUint16(rec[2:4], uint16(off))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(imm))
	return append(buf, rec[:]...)
}

// Decode reads one instruction (two slots if it is a wide load-immediate)
// from the front of buf, returning the instruction and the number of bytes
// consumed.
func Decode(buf []byte) (*Instruction, int, error) {
	if len(buf) < Size {
		return nil, 0, ErrShortBuffer
	}
	ins := decodeSlot(buf[:Size])
	if !ins.IsWide() {
		return ins, Size, nil
	}
	if len(buf) < 2*Size {
		return nil, 0, errors.Wrap(ErrShortBuffer, "wide instruction second slot")
	}
	ins.Next = decodeSlot(buf[Size : 2*Size])
	return ins, 2 * Size, nil
}

func decodeSlot(rec []byte) *Instruction {
	rp := regPair(rec[1])
	return &Instruction{
		Opcode: Opcode(rec[0]),
		Dst:    rp.dst(),
		Src:    rp.src(),
		Offset: int16(binary.LittleEndian.Uint16(rec[2:4])),
		Imm:    int32(binary.LittleEndian.Uint32(rec[4:8])),
	}
}

// String renders ins in a disassembly-like form, grounded on the
// human-readable instruction printer this bytecode model descends from.
func (ins *Instruction) String() string {
	op := ins.Opcode
	switch op.Class() {
	case ClassLoad, ClassStore:
		if ins.IsWide() {
			return fmt.Sprintf("lddw %s, #%#x", ins.Dst, uint64(ins.Imm64()))
		}
		verb := "ld"
		if op.Class() == ClassStore {
			verb = "st"
		}
		size := map[int]string{1: "b", 2: "h", 4: "w", 8: "dw"}[op.Width()]
		if op.Src() == SrcReg {
			return fmt.Sprintf("%sx%s %s, [%s%+d]", verb, size, ins.Dst, ins.Src, ins.Offset)
		}
		return fmt.Sprintf("%s%s [%s%+d], #%d", verb, size, ins.Dst, ins.Offset, ins.Imm)
	case ClassALU32, ClassALU64:
		suffix := ""
		if op.Class() == ClassALU32 {
			suffix = "32"
		}
		name := aluNames[op.Op()]
		if op.Op() == OpNeg {
			return fmt.Sprintf("neg%s %s", suffix, ins.Dst)
		}
		if op.Src() == SrcReg {
			return fmt.Sprintf("%s%s %s, %s", name, suffix, ins.Dst, ins.Src)
		}
		return fmt.Sprintf("%s%s %s, #%d", name, suffix, ins.Dst, ins.Imm)
	case ClassJump32, ClassJump64:
		suffix := ""
		if op.Class() == ClassJump32 {
			suffix = "32"
		}
		name := jmpNames[op.Op()]
		if op.Src() == SrcReg {
			return fmt.Sprintf("%s%s %s, %s, %+d", name, suffix, ins.Dst, ins.Src, ins.Offset)
		}
		return fmt.Sprintf("%s%s %s, #%d, %+d", name, suffix, ins.Dst, ins.Imm, ins.Offset)
	case ClassControl:
		switch op.Op() {
		case OpJA:
			return fmt.Sprintf("ja %+d", ins.Offset)
		case OpCall:
			return fmt.Sprintf("call #%d", ins.Imm)
		case OpExit:
			return "exit"
		}
	}
	return fmt.Sprintf("unknown(%#02x)", uint8(op))
}

var aluNames = map[Op]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpLsh: "lsh", OpRsh: "rsh",
	OpArsh: "arsh", OpNeg: "neg", OpMov: "mov",
}

var jmpNames = map[Op]string{
	OpJEq: "jeq", OpJNE: "jne", OpJLT: "jlt", OpJLE: "jle",
	OpJGT: "jgt", OpJGE: "jge", OpJSLT: "jslt", OpJSLE: "jsle",
	OpJSGT: "jsgt", OpJSGE: "jsge", OpJSet: "jset",
}

// Constructors mirror the family of helper constructors the instruction
// model descends from (BPFIDst, BPFIDstImm, BPFIDstOffImm, ...), one per
// operand shape actually used by this ISA.

// Mov64Imm builds "dst = imm" (64-bit).
func Mov64Imm(dst Register, imm int32) *Instruction {
	return &Instruction{Opcode: Encode(ClassALU64, SrcImm, OpMov), Dst: dst, Imm: imm}
}

// Mov64Reg builds "dst = src" (64-bit).
func Mov64Reg(dst, src Register) *Instruction {
	return &Instruction{Opcode: Encode(ClassALU64, SrcReg, OpMov), Dst: dst, Src: src}
}

// ALU64Imm builds a 64-bit ALU instruction against an immediate.
func ALU64Imm(op Op, dst Register, imm int32) *Instruction {
	return &Instruction{Opcode: Encode(ClassALU64, SrcImm, op), Dst: dst, Imm: imm}
}

// ALU64Reg builds a 64-bit ALU instruction against a register.
func ALU64Reg(op Op, dst, src Register) *Instruction {
	return &Instruction{Opcode: Encode(ClassALU64, SrcReg, op), Dst: dst, Src: src}
}

// ALU32Imm builds a 32-bit ALU instruction against an immediate.
func ALU32Imm(op Op, dst Register, imm int32) *Instruction {
	return &Instruction{Opcode: Encode(ClassALU32, SrcImm, op), Dst: dst, Imm: imm}
}

// ALU32Reg builds a 32-bit ALU instruction against a register.
func ALU32Reg(op Op, dst, src Register) *Instruction {
	return &Instruction{Opcode: Encode(ClassALU32, SrcReg, op), Dst: dst, Src: src}
}

// LoadImm64 builds the two-slot "load double-word immediate" wide
// instruction.
func LoadImm64(dst Register, imm uint64) *Instruction {
	first := &Instruction{Opcode: Encode(ClassLoad, SrcImm, OpWDWImm), Dst: dst, Imm: int32(uint32(imm))}
	first.Next = &Instruction{Imm: int32(uint32(imm >> 32))}
	return first
}

// LoadReg builds "dst = *(width)(src + off)".
func LoadReg(width int, dst, src Register, off int16) *Instruction {
	return &Instruction{Opcode: Encode(ClassLoad, SrcReg, Op(width)), Dst: dst, Src: src, Offset: off}
}

// StoreReg builds "*(width)(dst + off) = src".
func StoreReg(width int, dst Register, off int16, src Register) *Instruction {
	return &Instruction{Opcode: Encode(ClassStore, SrcReg, Op(width)), Dst: dst, Src: src, Offset: off}
}

// StoreImm builds "*(width)(dst + off) = imm".
func StoreImm(width int, dst Register, off int16, imm int32) *Instruction {
	return &Instruction{Opcode: Encode(ClassStore, SrcImm, Op(width)), Dst: dst, Offset: off, Imm: imm}
}

// JumpImm builds a conditional branch comparing dst against an immediate.
func JumpImm(wide bool, op Op, dst Register, imm int32, off int16) *Instruction {
	cls := ClassJump32
	if wide {
		cls = ClassJump64
	}
	return &Instruction{Opcode: Encode(cls, SrcImm, op), Dst: dst, Imm: imm, Offset: off}
}

// JumpReg builds a conditional branch comparing dst against src.
func JumpReg(wide bool, op Op, dst, src Register, off int16) *Instruction {
	cls := ClassJump32
	if wide {
		cls = ClassJump64
	}
	return &Instruction{Opcode: Encode(cls, SrcReg, op), Dst: dst, Src: src, Offset: off}
}

// Ja builds an unconditional branch.
func Ja(off int16) *Instruction {
	return &Instruction{Opcode: Encode(ClassControl, SrcImm, OpJA), Offset: off}
}

// CallHelper builds a helper-call instruction naming a registered helper id.
func CallHelper(id int32) *Instruction {
	return &Instruction{Opcode: Encode(ClassControl, SrcImm, OpCall), Imm: id}
}

// Exit builds the program-terminating instruction.
func Exit() *Instruction {
	return &Instruction{Opcode: Encode(ClassControl, SrcImm, OpExit)}
}
