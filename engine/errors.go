// Package engine implements the execution engines of §4.5: a
// always-present interpreter and a profile-gated native code generator,
// sharing one contract — a verified program plus a context produces a
// 64-bit return value or a runtime error.
package engine

import "github.com/pkg/errors"

// Runtime error taxonomy (§4.5, §7 "Runtime errors"). Both engines must
// agree on these so a caller cannot distinguish which engine ran a
// program from its error alone.
var (
	ErrProgramNotVerified    = errors.New("engine: program has not been accepted by the verifier")
	ErrDivisionByZero        = errors.New("engine: division by zero")
	ErrInvalidMemoryAccess   = errors.New("engine: invalid memory access")
	ErrHelperFailed          = errors.New("engine: helper call failed")
	ErrRuntimeBudgetExceeded = errors.New("engine: runtime instruction budget exceeded")
	ErrUnknownHelper         = errors.New("engine: call to unregistered helper id")

	// ErrNativeUnsupported is returned by the native code generator's
	// compile step for an instruction outside its supported subset; the
	// caller falls back to the interpreter for that program (see
	// native.go and DESIGN.md).
	ErrNativeUnsupported = errors.New("engine: instruction not supported by native code generator")
)
