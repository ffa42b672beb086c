package verifier

import (
	"github.com/pro-utkarshM/axiomOS-sub000/helper"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

// step applies the effect of one instruction to f (mutated in place for
// the straight-line case) and reports how control continues from idx.
// The returned stack high-water mark is this instruction's own
// contribution, in bytes, to the running maximum the caller tracks
// across the whole program.
func (v *Verifier) step(program insn.Instructions, idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	if !recognizedOpcode(ins.Opcode) {
		return stepOutcome{}, 0, reject(CategoryUnknownOpcode, idx, "opcode %#02x not recognized", uint8(ins.Opcode))
	}

	switch ins.Opcode.Class() {
	case insn.ClassALU32, insn.ClassALU64:
		return v.stepALU(idx, ins, f)
	case insn.ClassLoad:
		return v.stepLoad(idx, ins, f)
	case insn.ClassStore:
		return v.stepStore(idx, ins, f)
	case insn.ClassJump32, insn.ClassJump64:
		return v.stepJump(program, idx, ins, f)
	case insn.ClassControl:
		return v.stepControl(idx, ins, f)
	default:
		return stepOutcome{}, 0, reject(CategoryUnknownOpcode, idx, "unhandled class %s", ins.Opcode.Class())
	}
}

func straightLine() stepOutcome { return stepOutcome{fallsThrough: true} }

func (v *Verifier) stepALU(idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	if ins.Dst == insn.RFP {
		return stepOutcome{}, 0, reject(CategoryFrameWrite, idx, "write to r10 (frame pointer)")
	}
	op := ins.Opcode.Op()
	dst := f.regs[ins.Dst]

	if op == insn.OpMov {
		if ins.Opcode.Src() == insn.SrcReg {
			if f.regs[ins.Src].kind == regUninitialized {
				return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "mov reads uninitialized r%d", ins.Src)
			}
			f.regs[ins.Dst] = f.regs[ins.Src]
		} else {
			f.regs[ins.Dst] = scalarConst(int64(ins.Imm))
		}
		return straightLine(), 0, nil
	}

	if op == insn.OpNeg {
		if dst.kind == regUninitialized {
			return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "neg reads uninitialized r%d", ins.Dst)
		}
		f.regs[ins.Dst] = scalarUnknown()
		return straightLine(), 0, nil
	}

	if dst.kind == regUninitialized {
		return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "r%d used before being written", ins.Dst)
	}

	var srcState regState
	if ins.Opcode.Src() == insn.SrcReg {
		srcState = f.regs[ins.Src]
		if srcState.kind == regUninitialized {
			return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "alu reads uninitialized r%d", ins.Src)
		}
	} else {
		srcState = scalarConst(int64(ins.Imm))
	}

	if op == insn.OpDiv || op == insn.OpMod {
		if srcState.isKnownZeroPossible() {
			return stepOutcome{}, 0, reject(CategoryDivisionByZeroConstant, idx, "divisor may be zero")
		}
		f.regs[ins.Dst] = scalarUnknown()
		return straightLine(), 0, nil
	}

	if (op == insn.OpAdd || op == insn.OpSub) && (dst.kind == regPtrStack || dst.kind == regPtrMapValue) {
		if srcState.kind != regScalar {
			cat := CategoryMemoryOutOfBoundsStack
			if dst.kind == regPtrMapValue {
				cat = CategoryMemoryOutOfBoundsMapValue
			}
			return stepOutcome{}, 0, reject(cat, idx, "pointer arithmetic requires a bounded scalar, got %d", srcState.kind)
		}
		deltaMin, deltaMax := srcState.min, srcState.max
		if op == insn.OpSub {
			deltaMin, deltaMax = -srcState.max, -srcState.min
		}
		next := dst
		next.min += deltaMin
		next.max += deltaMax
		f.regs[ins.Dst] = next
		if next.kind == regPtrStack {
			if m := -next.min; m > 0 {
				return straightLine(), m, nil
			}
		}
		return straightLine(), 0, nil
	}

	if dst.kind != regScalar {
		return stepOutcome{}, 0, reject(CategoryMemoryOutOfBoundsStack, idx, "non-add/sub arithmetic on a pointer register r%d", ins.Dst)
	}
	f.regs[ins.Dst] = scalarUnknown()
	return straightLine(), 0, nil
}

// boundsForPointer validates an access of the given width at ins.Offset
// against base's tracked bounds, returning the stack high-water
// contribution (nonzero only for stack pointers) or a typed error.
func (v *Verifier) boundsForPointer(idx int, base regState, off int16, width int) (int64, *Error) {
	switch base.kind {
	case regPtrStack:
		lo := base.min + int64(off)
		hi := lo + int64(width)
		if hi > 0 || lo < -v.maxStackBytes {
			return 0, reject(CategoryMemoryOutOfBoundsStack, idx, "stack access [%d,%d) outside [-%d,0)", lo, hi, v.maxStackBytes)
		}
		return -lo, nil
	case regPtrMapValue:
		if !base.nullChecked {
			return 0, reject(CategoryUnresolvedMapValuePointer, idx, "map-value pointer used without a dominating null check")
		}
		lo := base.min + int64(off)
		hi := lo + int64(width)
		if lo < 0 || hi > int64(base.mapValueSize) {
			return 0, reject(CategoryMemoryOutOfBoundsMapValue, idx, "map-value access [%d,%d) outside [0,%d)", lo, hi, base.mapValueSize)
		}
		return 0, nil
	case regPtrContext:
		lo := base.min + int64(off)
		hi := lo + int64(width)
		if lo < 0 || hi > contextSize {
			return 0, reject(CategoryMemoryOutOfBoundsContext, idx, "context access [%d,%d) outside [0,%d)", lo, hi, contextSize)
		}
		return 0, nil
	case regPtrPacket:
		// No helper in this build ever produces a packet pointer; this
		// branch exists so the category is reachable if a future helper
		// family introduces one, per §4.4's object-type enumeration.
		return 0, reject(CategoryMemoryOutOfBoundsPacket, idx, "packet pointers are not produced by any helper in this build")
	default:
		return 0, reject(CategoryUninitializedRead, idx, "base register is not a valid pointer (kind=%d)", base.kind)
	}
}

func (v *Verifier) stepLoad(idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	if ins.Dst == insn.RFP {
		return stepOutcome{}, 0, reject(CategoryFrameWrite, idx, "write to r10 (frame pointer)")
	}
	if ins.IsWide() {
		f.regs[ins.Dst] = scalarConst(ins.Imm64())
		return straightLine(), 0, nil
	}
	base := f.regs[ins.Src]
	hw, err := v.boundsForPointer(idx, base, ins.Offset, ins.Opcode.Width())
	if err != nil {
		return stepOutcome{}, 0, err
	}
	f.regs[ins.Dst] = scalarUnknown()
	return straightLine(), hw, nil
}

func (v *Verifier) stepStore(idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	base := f.regs[ins.Dst]
	if ins.Opcode.Src() == insn.SrcReg && f.regs[ins.Src].kind == regUninitialized {
		return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "store reads uninitialized r%d", ins.Src)
	}
	hw, err := v.boundsForPointer(idx, base, ins.Offset, ins.Opcode.Width())
	if err != nil {
		return stepOutcome{}, 0, err
	}
	return straightLine(), hw, nil
}

func (v *Verifier) stepJump(program insn.Instructions, idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	if f.regs[ins.Dst].kind == regUninitialized {
		return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "branch reads uninitialized r%d", ins.Dst)
	}
	srcIsReg := ins.Opcode.Src() == insn.SrcReg
	if srcIsReg && f.regs[ins.Src].kind == regUninitialized {
		return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "branch reads uninitialized r%d", ins.Src)
	}

	target := idx + 1 + int(ins.Offset)
	if target <= idx {
		if srcIsReg {
			return stepOutcome{}, 0, reject(CategoryUnboundedLoop, idx, "backward branch comparing two registers has no provable bound")
		}
		if err := v.provableBackwardBound(program, target, idx, ins); err != nil {
			return stepOutcome{}, 0, err
		}
	}

	fallFrame := f.clone()
	branchFrame := f.clone()
	op := ins.Opcode.Op()
	if !srcIsReg && ins.Imm == 0 && f.regs[ins.Dst].kind == regPtrMapValue {
		switch op {
		case insn.OpJEq:
			fallFrame.regs[ins.Dst].nullChecked = true
		case insn.OpJNE:
			branchFrame.regs[ins.Dst].nullChecked = true
		}
	}

	*f = fallFrame
	return stepOutcome{
		fallsThrough: true,
		branches:     []branchTarget{{idx: target, f: branchFrame}},
	}, 0, nil
}

func (v *Verifier) stepControl(idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	switch ins.Opcode.Op() {
	case insn.OpJA:
		target := idx + 1 + int(ins.Offset)
		if target <= idx {
			return stepOutcome{}, 0, reject(CategoryUnboundedLoop, idx, "unconditional backward branch has no provable bound")
		}
		return stepOutcome{branches: []branchTarget{{idx: target, f: *f}}}, 0, nil
	case insn.OpCall:
		return v.stepCall(idx, ins, f)
	case insn.OpExit:
		if f.regs[insn.R0].kind == regUninitialized {
			return stepOutcome{}, 0, reject(CategoryUninitializedRead, idx, "exit reads uninitialized r0")
		}
		return stepOutcome{exit: true}, 0, nil
	default:
		return stepOutcome{}, 0, reject(CategoryUnknownOpcode, idx, "unrecognized control op %d", ins.Opcode.Op())
	}
}

func (v *Verifier) stepCall(idx int, ins *insn.Instruction, f *frame) (stepOutcome, int64, *Error) {
	h, ok := v.helpers.Lookup(uint32(ins.Imm))
	if !ok {
		return stepOutcome{}, 0, reject(CategoryHelperSignatureMismatch, idx, "no helper registered with id %d", ins.Imm)
	}
	argRegs := [5]insn.Register{insn.R1, insn.R2, insn.R3, insn.R4, insn.R5}
	for i, arg := range h.Signature.Args {
		if arg.Kind == helper.ArgVoid {
			continue
		}
		rs := f.regs[argRegs[i]]
		if rs.kind == regUninitialized {
			return stepOutcome{}, 0, reject(CategoryHelperSignatureMismatch, idx, "helper %s argument %d (r%d) is uninitialized", h.Name, i, argRegs[i])
		}
		switch {
		case arg.Kind == helper.ArgScalar && rs.kind != regScalar,
			arg.Kind == helper.ArgPtrBytes && rs.kind != regPtrStack && rs.kind != regPtrMapValue && rs.kind != regPtrContext,
			arg.Kind == helper.ArgPtrContext && rs.kind != regPtrContext:
			return stepOutcome{}, 0, reject(CategoryHelperSignatureMismatch, idx, "helper %s argument %d (r%d) has the wrong kind", h.Name, i, argRegs[i])
		}
	}

	// Map-lookup's result type is a pointer sized by whichever map r1
	// names, captured before the argument registers are clobbered below.
	var lookedUpValueSize uint32
	if uint32(ins.Imm) == helper.IDMapLookup {
		if mapID := f.regs[insn.R1]; mapID.kind == regScalar && mapID.min == mapID.max {
			if def, ok := v.maps[uint32(mapID.min)]; ok {
				lookedUpValueSize = def.ValueSize
			}
		}
	}

	for i := insn.R1; i <= insn.R5; i++ {
		f.regs[i] = regState{}
	}
	switch uint32(ins.Imm) {
	case helper.IDMapLookup:
		f.regs[insn.R0] = regState{kind: regPtrMapValue, mapValueSize: lookedUpValueSize}
	default:
		f.regs[insn.R0] = scalarUnknown()
	}
	return straightLine(), 0, nil
}

// provableBackwardBound implements the verifier's structural stand-in for
// full induction-variable analysis (§4.4 check 7): it requires the branch
// to compare a register against a compile-time immediate, and requires
// the loop body to contain a matching add/sub-by-immediate update to that
// same register. This recognizes the ordinary counted-loop idiom without
// performing full interval propagation across iterations, which is the
// deliberate scope this reimplementation settles for (see DESIGN.md).
func (v *Verifier) provableBackwardBound(program insn.Instructions, target, branchIdx int, br *insn.Instruction) *Error {
	for i := target; i <= branchIdx; i++ {
		body := program[i]
		if body.Dst != br.Dst {
			continue
		}
		cls := body.Opcode.Class()
		if cls != insn.ClassALU32 && cls != insn.ClassALU64 {
			continue
		}
		op := body.Opcode.Op()
		if (op == insn.OpAdd || op == insn.OpSub) && body.Opcode.Src() == insn.SrcImm && body.Imm != 0 {
			return nil
		}
	}
	return reject(CategoryUnboundedLoop, branchIdx, "no recognized induction-variable update to r%d in the loop body", br.Dst)
}
