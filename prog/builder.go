package prog

import (
	"github.com/pkg/errors"

	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

// Construction errors. These are distinct from verification errors: they
// are syntactic properties the builder can check without any data-flow
// analysis (§4.2 "Semantic checks belong to the verifier").
var (
	ErrEmptyProgram        = errors.New("prog: program has no instructions")
	ErrTooManyInstructions = errors.New("prog: instruction count exceeds profile cap")
	ErrNoTerminatingExit   = errors.New("prog: no control-exit instruction present")
	ErrMalformedOpcode     = errors.New("prog: malformed opcode")
)

// Builder appends instructions and produces a finished Program or a
// construction error. It does not perform data-flow analysis; that is the
// streaming verifier's job.
type Builder struct {
	kind       Kind
	maxInsn    int
	license    string
	insns      insn.Instructions
	malformed  int
	sawExit    bool
}

// NewBuilder starts a program of the given kind. maxInsn is the profile's
// MaxInstructionCount; passing it explicitly keeps Builder independent of
// which profile is compiled in, so it stays usable from tests built under
// either tag.
func NewBuilder(kind Kind, maxInsn int) *Builder {
	return &Builder{kind: kind, maxInsn: maxInsn, malformed: -1}
}

// License records the program's license string for ELF-sourced programs.
func (b *Builder) License(license string) *Builder {
	b.license = license
	return b
}

// Append adds one instruction. It is chainable; malformed-opcode detection
// is deferred to Build so callers can keep appending without checking an
// error after every call, matching the ergonomics of the instruction
// constructors in package insn.
func (b *Builder) Append(ins *insn.Instruction) *Builder {
	if !classAndOpCoherent(ins) && b.malformed < 0 {
		b.malformed = len(b.insns)
	}
	if ins.Opcode.Class() == insn.ClassControl && ins.Opcode.Op() == insn.OpExit {
		b.sawExit = true
	}
	b.insns = append(b.insns, ins)
	return b
}

// classAndOpCoherent rejects opcodes whose class and op nibble combination
// cannot correspond to any real instruction shape: an ALU class carrying a
// jump-only op value (or vice versa), or a Load/Store class whose width
// isn't one of 1/2/4/8 bytes (or the wide-immediate marker on Load).
func classAndOpCoherent(ins *insn.Instruction) bool {
	switch ins.Opcode.Class() {
	case insn.ClassALU32, insn.ClassALU64:
		return ins.Opcode.Op() <= insn.OpMov
	case insn.ClassJump32, insn.ClassJump64:
		return ins.Opcode.Op() <= insn.OpJSet
	case insn.ClassControl:
		return ins.Opcode.Op() <= insn.OpExit
	case insn.ClassLoad:
		switch ins.Opcode.Op() {
		case insn.OpWidth1, insn.OpWidth2, insn.OpWidth4, insn.OpWidth8, insn.OpWDWImm:
			return true
		}
		return false
	case insn.ClassStore:
		switch ins.Opcode.Op() {
		case insn.OpWidth1, insn.OpWidth2, insn.OpWidth4, insn.OpWidth8:
			return true
		}
		return false
	default:
		return false
	}
}

// Build finishes the program, returning a construction error if the
// instruction count is zero or exceeds the profile cap, if no instruction
// anywhere in the sequence is a control-exit, or if Append ever saw a
// syntactically malformed opcode.
func (b *Builder) Build() (*Program, error) {
	if len(b.insns) == 0 {
		return nil, ErrEmptyProgram
	}
	if b.malformed >= 0 {
		return nil, errors.Wrapf(ErrMalformedOpcode, "instruction %d", b.malformed)
	}
	count := insn.Instructions(b.insns).Count()
	if count > b.maxInsn {
		return nil, errors.Wrapf(ErrTooManyInstructions, "%d > cap %d", count, b.maxInsn)
	}
	if !b.sawExit {
		return nil, ErrNoTerminatingExit
	}
	return &Program{
		Kind:         b.kind,
		Instructions: append(insn.Instructions(nil), b.insns...),
		StackDepth:   -1,
		License:      b.license,
	}, nil
}
