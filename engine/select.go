package engine

import (
	"github.com/pro-utkarshM/axiomOS-sub000/helper"
	"github.com/pro-utkarshM/axiomOS-sub000/profile"
)

// runtimeBudgetMultiplier bounds the interpreter's defensive runtime
// instruction cap as a multiple of the profile's verifier-time budget. A
// program's verified bound is on abstract-interpretation visits, not on
// runtime iteration count, so the runtime cap must allow headroom for
// loop bodies the verifier proved bounded but visited once (§5
// "Timeouts": "guard against verifier bugs", not re-derive the proof).
const runtimeBudgetMultiplier = 64

// New builds the engine a given profile selects: the interpreter alone
// when native code generation is not permitted, or a Native engine
// (itself backed by the same interpreter as its fallback) when it is.
func New(p profile.Profile, helpers *helper.Registry) Engine {
	interp := NewInterpreter(helpers, p.MaxStackBytes, p.MaxInstructionCount*runtimeBudgetMultiplier)
	if !p.NativeCodeGenAllowed {
		return interp
	}
	return NewNative(interp)
}
