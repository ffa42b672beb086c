//go:build !amd64

package engine

import "github.com/pro-utkarshM/axiomOS-sub000/insn"

// compiledProgram has no fields on a non-amd64 host: compile always
// fails with ErrNativeUnsupported, so Native.Run falls back to the
// interpreter for every program. This keeps the cloud profile's
// NativeCodeGenAllowed flag meaningful on amd64 deployments without
// making the package uncompilable elsewhere.
type compiledProgram struct{}

func (cp *compiledProgram) run(maxStackBytes int, ctx Context) (uint64, error) {
	return 0, ErrNativeUnsupported
}

func (cp *compiledProgram) close() error { return nil }

func compile(program insn.Instructions) (*compiledProgram, error) {
	return nil, ErrNativeUnsupported
}
