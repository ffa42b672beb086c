package verifier

import (
	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/helper"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

// maxJoinRevisits bounds how many times a single instruction index may be
// re-processed as branch paths join on it before widening is declared
// non-convergent (§4.4 tie-breaks: "a fixed small number of revisits").
const maxJoinRevisits = 5

// Verifier decides whether a program is safe to register (§4.4). One
// Verifier is built per profile/helper-registry/map-table combination and
// reused across every Verify call; it holds no per-program state itself.
type Verifier struct {
	maxInsn       int
	maxStackBytes int64
	helpers       *helper.Registry
	maps          map[uint32]bpfmap.Definition
}

// New builds a Verifier. maxInsn and maxStackBytes come from the active
// profile (§4.1); helpers is the registry call instructions are checked
// against; maps is the set of map definitions a program may reference,
// keyed by the identifier a wide load-immediate constant names.
func New(maxInsn int, maxStackBytes int64, helpers *helper.Registry, maps map[uint32]bpfmap.Definition) *Verifier {
	return &Verifier{maxInsn: maxInsn, maxStackBytes: maxStackBytes, helpers: helpers, maps: maps}
}

// Result is what a successful Verify call annotates the program with.
type Result struct {
	StackDepth int
	MapIDs     []uint32
}

type workItem struct {
	idx int
	f   frame
}

type stepOutcome struct {
	exit         bool
	fallsThrough bool
	branches     []branchTarget
}

type branchTarget struct {
	idx int
	f   frame
}

// Verify runs the single forward pass described in §4.4 and returns the
// proven stack depth and referenced map set on acceptance.
func (v *Verifier) Verify(program insn.Instructions) (Result, error) {
	n := len(program)
	if n == 0 {
		return Result{}, reject(CategoryUnreachableExit, 0, "empty program")
	}

	visited := make([]*frame, n)
	visitCount := make([]int, n)
	mapIDs := make(map[uint32]bool)
	var maxStackHighWater int64
	reachedExit := false
	budget := 0

	initial := frame{}
	initial.regs[insn.R1] = regState{kind: regPtrContext}
	initial.regs[insn.RFP] = regState{kind: regPtrStack}

	queue := []workItem{{idx: 0, f: initial}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		idx, f := item.idx, item.f

		for idx < n {
			budget++
			if budget > v.maxInsn {
				return Result{}, reject(CategoryVerificationBudgetExhausted, idx, "instruction visit budget of %d exceeded", v.maxInsn)
			}

			ins := program[idx]
			isTerminal := ins.Opcode.Class() == insn.ClassControl && ins.Opcode.Op() == insn.OpExit

			// A terminal instruction has no continuation for any later
			// instruction to depend on, so distinct paths reaching it
			// (e.g. a null-checked and a not-yet-checked view of the same
			// pointer register) never need to agree on a merged type —
			// each is checked independently and none are stored for a
			// join that will never happen.
			if !isTerminal {
				if visitCount[idx] > 0 {
					merged, changed, werr := widen(*visited[idx], f)
					if werr != nil {
						werr.InsnIndex = idx
						return Result{}, werr
					}
					visitCount[idx]++
					if !changed {
						break
					}
					if visitCount[idx] > maxJoinRevisits {
						return Result{}, reject(CategoryJoinDidNotConverge, idx, "register state did not converge after %d revisits", maxJoinRevisits)
					}
					f = merged
					visited[idx] = &f
				} else {
					visitCount[idx] = 1
					cp := f
					visited[idx] = &cp
				}
			}

			outcome, stackHW, verr := v.step(program, idx, ins, &f)
			if verr != nil {
				return Result{}, verr
			}
			if stackHW > maxStackHighWater {
				maxStackHighWater = stackHW
			}
			v.collectMapID(ins, &mapIDs)

			if outcome.exit {
				reachedExit = true
				break
			}
			for _, bt := range outcome.branches {
				if bt.idx < 0 || bt.idx >= n {
					return Result{}, reject(CategoryInvalidBranchTarget, idx, "branch target %d out of range [0,%d)", bt.idx, n)
				}
				queue = append(queue, workItem{idx: bt.idx, f: bt.f})
			}
			if !outcome.fallsThrough {
				break
			}
			idx++
		}
	}

	if !reachedExit {
		return Result{}, reject(CategoryUnreachableExit, n-1, "no reachable path ends in an exit instruction")
	}
	if maxStackHighWater > v.maxStackBytes {
		return Result{}, reject(CategoryStackDepthExceeded, 0, "proven stack depth %d exceeds profile limit %d", maxStackHighWater, v.maxStackBytes)
	}

	ids := make([]uint32, 0, len(mapIDs))
	for id := range mapIDs {
		ids = append(ids, id)
	}
	return Result{StackDepth: int(maxStackHighWater), MapIDs: ids}, nil
}

// collectMapID records a wide load-immediate's constant as a referenced
// map id when it names a map this Verifier was constructed with — an
// overapproximation (not every 64-bit constant is a map id) that errs
// toward tracking too much rather than missing a real reference.
func (v *Verifier) collectMapID(ins *insn.Instruction, into *map[uint32]bool) {
	if !ins.IsWide() {
		return
	}
	val := ins.Imm64()
	if val < 0 || val > int64(^uint32(0)) {
		return
	}
	if _, ok := v.maps[uint32(val)]; ok {
		(*into)[uint32(val)] = true
	}
}

func recognizedOpcode(op insn.Opcode) bool {
	if !op.Class().Valid() {
		return false
	}
	switch op.Class() {
	case insn.ClassALU32, insn.ClassALU64:
		return op.Op() <= insn.OpMov
	case insn.ClassJump32, insn.ClassJump64:
		return op.Op() <= insn.OpJSet
	case insn.ClassLoad, insn.ClassStore:
		switch op.Op() {
		case insn.OpWidth1, insn.OpWidth2, insn.OpWidth4, insn.OpWidth8:
			return true
		case insn.OpWDWImm:
			return op.Class() == insn.ClassLoad
		default:
			return false
		}
	case insn.ClassControl:
		return op.Op() <= insn.OpExit
	default:
		return false
	}
}
