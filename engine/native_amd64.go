//go:build amd64

package engine

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

// compiledProgram is an executable region produced by compile, holding
// x86-64 machine code translated from a verified program's 64-bit ALU
// and branch instructions (§4.5 "Native code generator").
type compiledProgram struct {
	code []byte
}

// runNativeCode is implemented in native_amd64.s: it loads code into a
// register and calls it with regs in RDI, per the System V AMD64
// calling convention the generated code itself assumes.
func runNativeCode(code uintptr, regs *[insn.RFP + 1]uint64) uint64

func (cp *compiledProgram) run(maxStackBytes int, ctx Context) (uint64, error) {
	var regs [insn.RFP + 1]uint64
	mem := newVMMemory(maxStackBytes)
	mem.ctx = ctx.encode(mem)
	regs[insn.RFP] = mem.stackTop()
	regs[insn.R1] = mem.contextPtr()
	ret := runNativeCode(uintptr(unsafe.Pointer(&cp.code[0])), &regs)
	return ret, nil
}

// close unmaps the PROT_EXEC region backing cp. Called once, when cp is
// evicted from Native's cache (see Native.Forget) — the executable
// mapping is a real OS resource, not GC'able memory, so eviction from the
// cache alone would otherwise leak it for the life of the process.
func (cp *compiledProgram) close() error {
	if len(cp.code) == 0 {
		return nil
	}
	return unix.Munmap(cp.code)
}

// compile translates program into a fresh PROT_EXEC region, or returns
// ErrNativeUnsupported, unwrapped (Native.Run compares against it
// directly), the first time it meets an
// instruction outside the supported subset: anything other than
// ClassALU64, ClassJump64, OpJA, and OpExit. Loads, stores, div/mod, and
// helper calls are left to the interpreter (see native.go's doc comment).
func compile(program insn.Instructions) (*compiledProgram, error) {
	n := len(program)
	lengths := make([]int, n)
	for i, ins := range program {
		l, err := instructionLength(ins)
		if err != nil {
			return nil, err
		}
		lengths[i] = l
	}
	offsets := make([]int, n+1)
	for i, l := range lengths {
		offsets[i+1] = offsets[i] + l
	}

	buf := make([]byte, 0, offsets[n])
	for i, ins := range program {
		b, err := emitInstruction(ins, i, offsets, n)
		if err != nil {
			return nil, err
		}
		if len(b) != lengths[i] {
			return nil, errors.New("engine: native codegen emitted a different length than it counted")
		}
		buf = append(buf, b...)
	}

	region, err := unix.Mmap(-1, 0, len(buf), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "mapping executable region")
	}
	copy(region, buf)
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(region)
		return nil, errors.Wrap(err, "protecting executable region")
	}
	return &compiledProgram{code: region}, nil
}

func instructionLength(ins *insn.Instruction) (int, error) {
	switch ins.Opcode.Class() {
	case insn.ClassALU64:
		return aluLength(ins)
	case insn.ClassJump64:
		return 17, nil
	case insn.ClassControl:
		switch ins.Opcode.Op() {
		case insn.OpJA:
			return 5, nil
		case insn.OpExit:
			return 5, nil
		default:
			return 0, ErrNativeUnsupported
		}
	default:
		return 0, ErrNativeUnsupported
	}
}

func aluLength(ins *insn.Instruction) (int, error) {
	op := ins.Opcode.Op()
	srcReg := ins.Opcode.Src() == insn.SrcReg
	switch op {
	case insn.OpMov:
		return 8, nil
	case insn.OpNeg:
		return 11, nil
	case insn.OpDiv, insn.OpMod:
		return 0, ErrNativeUnsupported
	case insn.OpLsh, insn.OpRsh, insn.OpArsh:
		if srcReg {
			return 15, nil
		}
		return 12, nil
	case insn.OpMul:
		if srcReg {
			return 16, nil
		}
		return 15, nil
	case insn.OpAdd, insn.OpSub, insn.OpAnd, insn.OpOr, insn.OpXor:
		return 15, nil
	default:
		return 0, ErrNativeUnsupported
	}
}

func emitInstruction(ins *insn.Instruction, idx int, offsets []int, n int) ([]byte, error) {
	switch ins.Opcode.Class() {
	case insn.ClassALU64:
		return emitALU(ins)
	case insn.ClassJump64:
		return emitJump(ins, idx, offsets, n)
	case insn.ClassControl:
		switch ins.Opcode.Op() {
		case insn.OpJA:
			return emitJA(ins, idx, offsets, n)
		case insn.OpExit:
			return concatBytes(regMemOp(0x8B, 0, insn.R0), []byte{0xC3}), nil
		}
	}
	return nil, ErrNativeUnsupported
}

// regOffset is the byte offset of register r within the regs array
// runNativeCode's second argument points at.
func regOffset(r insn.Register) byte { return byte(8 * int(r)) }

// regMemOp builds "op hostReg, [RDI+disp8]" (opcode 0x8B, a load) or
// "op [RDI+disp8], hostReg" (opcode 0x89, a store); hostReg 0 selects
// RAX, 1 selects RCX.
func regMemOp(opcode byte, hostReg byte, memReg insn.Register) []byte {
	modrm := byte(0x47) | (hostReg << 3)
	return []byte{0x48, opcode, modrm, regOffset(memReg)}
}

func leImm32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func emitALU(ins *insn.Instruction) ([]byte, error) {
	op := ins.Opcode.Op()
	srcReg := ins.Opcode.Src() == insn.SrcReg

	switch op {
	case insn.OpMov:
		if srcReg {
			return concatBytes(regMemOp(0x8B, 0, ins.Src), regMemOp(0x89, 0, ins.Dst)), nil
		}
		return concatBytes([]byte{0x48, 0xC7, 0x47, regOffset(ins.Dst)}, leImm32(ins.Imm)), nil
	case insn.OpNeg:
		return concatBytes(regMemOp(0x8B, 0, ins.Dst), []byte{0x48, 0xF7, 0xD8}, regMemOp(0x89, 0, ins.Dst)), nil
	case insn.OpDiv, insn.OpMod:
		return nil, ErrNativeUnsupported
	}

	loadDst := regMemOp(0x8B, 0, ins.Dst)
	storeDst := regMemOp(0x89, 0, ins.Dst)
	if srcReg {
		loadSrc := regMemOp(0x8B, 1, ins.Src)
		opBytes, err := aluRegOpBytes(op)
		if err != nil {
			return nil, err
		}
		return concatBytes(loadDst, loadSrc, opBytes, storeDst), nil
	}
	opBytes, err := aluImmOpBytes(op, ins.Imm)
	if err != nil {
		return nil, err
	}
	return concatBytes(loadDst, opBytes, storeDst), nil
}

// aluRegOpBytes computes "RAX = RAX <op> RCX" for a two-register ALU op.
func aluRegOpBytes(op insn.Op) ([]byte, error) {
	switch op {
	case insn.OpAdd:
		return []byte{0x48, 0x01, 0xC8}, nil
	case insn.OpSub:
		return []byte{0x48, 0x29, 0xC8}, nil
	case insn.OpAnd:
		return []byte{0x48, 0x21, 0xC8}, nil
	case insn.OpOr:
		return []byte{0x48, 0x09, 0xC8}, nil
	case insn.OpXor:
		return []byte{0x48, 0x31, 0xC8}, nil
	case insn.OpMul:
		return []byte{0x48, 0x0F, 0xAF, 0xC1}, nil
	case insn.OpLsh:
		return []byte{0x48, 0xD3, 0xE0}, nil
	case insn.OpRsh:
		return []byte{0x48, 0xD3, 0xE8}, nil
	case insn.OpArsh:
		return []byte{0x48, 0xD3, 0xF8}, nil
	default:
		return nil, ErrNativeUnsupported
	}
}

// aluImmOpBytes computes "RAX = RAX <op> imm32" for an immediate ALU op.
func aluImmOpBytes(op insn.Op, imm int32) ([]byte, error) {
	immOp := func(n byte) []byte {
		return concatBytes([]byte{0x48, 0x81, 0xC0 | (n << 3)}, leImm32(imm))
	}
	switch op {
	case insn.OpAdd:
		return immOp(0), nil
	case insn.OpOr:
		return immOp(1), nil
	case insn.OpAnd:
		return immOp(4), nil
	case insn.OpSub:
		return immOp(5), nil
	case insn.OpXor:
		return immOp(6), nil
	case insn.OpMul:
		return concatBytes([]byte{0x48, 0x69, 0xC0}, leImm32(imm)), nil
	case insn.OpLsh:
		return []byte{0x48, 0xC1, 0xE0, byte(imm)}, nil
	case insn.OpRsh:
		return []byte{0x48, 0xC1, 0xE8, byte(imm)}, nil
	case insn.OpArsh:
		return []byte{0x48, 0xC1, 0xF8, byte(imm)}, nil
	default:
		return nil, ErrNativeUnsupported
	}
}

func emitJump(ins *insn.Instruction, idx int, offsets []int, n int) ([]byte, error) {
	target := idx + 1 + int(ins.Offset)
	if target < 0 || target > n {
		return nil, ErrNativeUnsupported
	}
	op := ins.Opcode.Op()
	useTest := op == insn.OpJSet
	srcReg := ins.Opcode.Src() == insn.SrcReg

	loadDst := regMemOp(0x8B, 0, ins.Dst)
	var cmpBytes []byte
	if srcReg {
		loadSrc := regMemOp(0x8B, 1, ins.Src)
		var test []byte
		if useTest {
			test = []byte{0x48, 0x85, 0xC8}
		} else {
			test = []byte{0x48, 0x39, 0xC8}
		}
		cmpBytes = concatBytes(loadDst, loadSrc, test)
	} else {
		var test []byte
		if useTest {
			test = concatBytes([]byte{0x48, 0xF7, 0xC0}, leImm32(ins.Imm))
		} else {
			test = concatBytes([]byte{0x48, 0x81, 0xF8}, leImm32(ins.Imm))
		}
		cmpBytes = concatBytes(loadDst, test)
	}

	var cc byte
	if useTest {
		cc = 0x85 // JNZ
	} else {
		switch op {
		case insn.OpJEq:
			cc = 0x84
		case insn.OpJNE:
			cc = 0x85
		case insn.OpJLT:
			cc = 0x82
		case insn.OpJLE:
			cc = 0x86
		case insn.OpJGT:
			cc = 0x87
		case insn.OpJGE:
			cc = 0x83
		case insn.OpJSLT:
			cc = 0x8C
		case insn.OpJSLE:
			cc = 0x8E
		case insn.OpJSGT:
			cc = 0x8F
		case insn.OpJSGE:
			cc = 0x8D
		default:
			return nil, ErrNativeUnsupported
		}
	}

	rel := int32(offsets[target] - offsets[idx+1])
	jcc := concatBytes([]byte{0x0F, cc}, leImm32(rel))
	return concatBytes(cmpBytes, jcc), nil
}

func emitJA(ins *insn.Instruction, idx int, offsets []int, n int) ([]byte, error) {
	target := idx + 1 + int(ins.Offset)
	if target < 0 || target > n {
		return nil, ErrNativeUnsupported
	}
	rel := int32(offsets[target] - offsets[idx+1])
	return concatBytes([]byte{0xE9}, leImm32(rel)), nil
}

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
