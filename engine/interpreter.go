package engine

import (
	"github.com/pkg/errors"

	"github.com/pro-utkarshM/axiomOS-sub000/helper"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

// Engine is the contract both execution engines satisfy (§4.5): a
// verified program plus a context produces a 64-bit return value or a
// runtime error. Invocation is synchronous and engines must be safe to
// call concurrently from distinct goroutines, since each call allocates
// only per-invocation state on the caller's stack (its own vmMemory and
// register array) and otherwise touches no shared mutable state.
type Engine interface {
	Run(p *prog.Program, ctx Context) (uint64, error)
}

// Interpreter is the tight dispatch-loop engine of §4.5, always present
// regardless of profile. One Interpreter is built per profile/helper
// combination and reused across every Run call.
type Interpreter struct {
	helpers        *helper.Registry
	maxStackBytes  int
	runtimeInsnCap int
}

// NewInterpreter builds an Interpreter. maxStackBytes sizes the stack
// buffer addressed through the frame-pointer register; runtimeInsnCap is
// the defensive runtime instruction ceiling enforced independently of
// the verifier's static budget (§4.5, §5 "Timeouts").
func NewInterpreter(helpers *helper.Registry, maxStackBytes, runtimeInsnCap int) *Interpreter {
	return &Interpreter{helpers: helpers, maxStackBytes: maxStackBytes, runtimeInsnCap: runtimeInsnCap}
}

// Run executes p against ctx to completion. p must have been accepted by
// the verifier; the interpreter trusts its proofs and performs no
// redundant data-flow analysis, only the bounds checks intrinsic to
// resolving an address (§4.5).
func (it *Interpreter) Run(p *prog.Program, ctx Context) (uint64, error) {
	if !p.Verified() {
		return 0, ErrProgramNotVerified
	}
	mem := newVMMemory(it.maxStackBytes)
	mem.ctx = ctx.encode(mem)

	var regs [insn.RFP + 1]uint64
	regs[insn.RFP] = mem.stackTop()
	regs[insn.R1] = mem.contextPtr()

	program := p.Instructions
	idx := 0
	steps := 0
	for {
		if idx < 0 || idx >= len(program) {
			return 0, errors.Wrap(ErrInvalidMemoryAccess, "instruction pointer left the program")
		}
		steps++
		if steps > it.runtimeInsnCap {
			return 0, ErrRuntimeBudgetExceeded
		}

		ins := program[idx]
		next, ret, done, err := it.step(mem, &regs, idx, ins)
		if err != nil {
			return 0, err
		}
		if done {
			return ret, nil
		}
		idx = next
	}
}

func (it *Interpreter) step(mem *vmMemory, regs *[insn.RFP + 1]uint64, idx int, ins *insn.Instruction) (next int, ret uint64, done bool, err error) {
	switch ins.Opcode.Class() {
	case insn.ClassALU32, insn.ClassALU64:
		if err := it.execALU(regs, ins); err != nil {
			return 0, 0, false, err
		}
		return idx + 1, 0, false, nil
	case insn.ClassLoad:
		if err := it.execLoad(mem, regs, ins); err != nil {
			return 0, 0, false, err
		}
		if ins.IsWide() {
			return idx + 1, 0, false, nil
		}
		return idx + 1, 0, false, nil
	case insn.ClassStore:
		if err := it.execStore(mem, regs, ins); err != nil {
			return 0, 0, false, err
		}
		return idx + 1, 0, false, nil
	case insn.ClassJump32, insn.ClassJump64:
		return idx + 1 + it.branchDelta(regs, ins), 0, false, nil
	case insn.ClassControl:
		return it.execControl(mem, regs, idx, ins)
	default:
		return 0, 0, false, errors.Errorf("engine: unrecognized instruction class at %d", idx)
	}
}

func (it *Interpreter) execALU(regs *[insn.RFP + 1]uint64, ins *insn.Instruction) error {
	op := ins.Opcode.Op()
	if op == insn.OpMov {
		if ins.Opcode.Src() == insn.SrcReg {
			regs[ins.Dst] = regs[ins.Src]
		} else {
			regs[ins.Dst] = uint64(int64(ins.Imm))
		}
		return nil
	}
	if op == insn.OpNeg {
		regs[ins.Dst] = uint64(-int64(regs[ins.Dst]))
		return nil
	}

	var src uint64
	if ins.Opcode.Src() == insn.SrcReg {
		src = regs[ins.Src]
	} else {
		src = uint64(int64(ins.Imm))
	}
	dst := regs[ins.Dst]

	var result uint64
	switch op {
	case insn.OpAdd:
		result = dst + src
	case insn.OpSub:
		result = dst - src
	case insn.OpMul:
		result = dst * src
	case insn.OpAnd:
		result = dst & src
	case insn.OpOr:
		result = dst | src
	case insn.OpXor:
		result = dst ^ src
	case insn.OpLsh:
		result = dst << (src & 63)
	case insn.OpRsh:
		result = dst >> (src & 63)
	case insn.OpArsh:
		result = uint64(int64(dst) >> (src & 63))
	case insn.OpDiv, insn.OpMod:
		// The verifier rejects compile-time-zero divisors; a zero
		// divisor that still reaches here ends the run with
		// ErrDivisionByZero rather than dividing.
		if src == 0 {
			return ErrDivisionByZero
		} else if op == insn.OpDiv {
			result = dst / src
		} else {
			result = dst % src
		}
	}
	if ins.Opcode.Class() == insn.ClassALU32 {
		result &= 0xFFFFFFFF
	}
	regs[ins.Dst] = result
	return nil
}

func (it *Interpreter) execLoad(mem *vmMemory, regs *[insn.RFP + 1]uint64, ins *insn.Instruction) error {
	if ins.IsWide() {
		regs[ins.Dst] = uint64(ins.Imm64())
		return nil
	}
	addr := uint64(int64(regs[ins.Src]) + int64(ins.Offset))
	width := ins.Opcode.Width()
	data, err := mem.ReadBytes(addr, uint32(width))
	if err != nil {
		return err
	}
	regs[ins.Dst] = decodeWidth(data, width)
	return nil
}

func (it *Interpreter) execStore(mem *vmMemory, regs *[insn.RFP + 1]uint64, ins *insn.Instruction) error {
	addr := uint64(int64(regs[ins.Dst]) + int64(ins.Offset))
	width := ins.Opcode.Width()
	var value uint64
	if ins.Opcode.Src() == insn.SrcReg {
		value = regs[ins.Src]
	} else {
		value = uint64(int64(ins.Imm))
	}
	return mem.WriteBytes(addr, encodeWidth(value, width))
}

func (it *Interpreter) branchDelta(regs *[insn.RFP + 1]uint64, ins *insn.Instruction) int {
	dst := regs[ins.Dst]
	var src uint64
	if ins.Opcode.Src() == insn.SrcReg {
		src = regs[ins.Src]
	} else {
		src = uint64(int64(ins.Imm))
	}

	var taken bool
	switch ins.Opcode.Op() {
	case insn.OpJEq:
		taken = dst == src
	case insn.OpJNE:
		taken = dst != src
	case insn.OpJLT:
		taken = dst < src
	case insn.OpJLE:
		taken = dst <= src
	case insn.OpJGT:
		taken = dst > src
	case insn.OpJGE:
		taken = dst >= src
	case insn.OpJSLT:
		taken = int64(dst) < int64(src)
	case insn.OpJSLE:
		taken = int64(dst) <= int64(src)
	case insn.OpJSGT:
		taken = int64(dst) > int64(src)
	case insn.OpJSGE:
		taken = int64(dst) >= int64(src)
	case insn.OpJSet:
		taken = dst&src != 0
	}
	if taken {
		return int(ins.Offset)
	}
	return 0
}

func (it *Interpreter) execControl(mem *vmMemory, regs *[insn.RFP + 1]uint64, idx int, ins *insn.Instruction) (int, uint64, bool, error) {
	switch ins.Opcode.Op() {
	case insn.OpJA:
		return idx + 1 + int(ins.Offset), 0, false, nil
	case insn.OpCall:
		if err := it.execCall(mem, regs, ins); err != nil {
			return 0, 0, false, err
		}
		return idx + 1, 0, false, nil
	case insn.OpExit:
		return 0, regs[insn.R0], true, nil
	default:
		return 0, 0, false, errors.Errorf("engine: unrecognized control op at %d", idx)
	}
}

func (it *Interpreter) execCall(mem *vmMemory, regs *[insn.RFP + 1]uint64, ins *insn.Instruction) error {
	h, ok := it.helpers.Lookup(uint32(ins.Imm))
	if !ok {
		return errors.Wrapf(ErrUnknownHelper, "id %d", ins.Imm)
	}
	args := [5]uint64{regs[insn.R1], regs[insn.R2], regs[insn.R3], regs[insn.R4], regs[insn.R5]}
	result, err := h.Invoke(mem, args)
	if err != nil {
		return errors.Wrapf(ErrHelperFailed, "%s: %v", h.Name, err)
	}
	regs[insn.R0] = result
	return nil
}

func decodeWidth(data []byte, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(data[i]) << (8 * i)
	}
	return v
}

func encodeWidth(v uint64, width int) []byte {
	out := make([]byte, width)
	for i := 0; i < width; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}
