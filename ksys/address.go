// Package ksys implements the system-call surface of §4.8: a single
// command dispatcher, fixed little-endian attribute layouts per command,
// and the mandatory user-pointer validation every embedded pointer goes
// through before a dereference.
package ksys

import "github.com/pkg/errors"

// Validation errors for embedded user pointers (§4.8 check 2).
var (
	ErrOutOfRange = errors.New("ksys: user pointer outside caller's address space")
	ErrMisaligned = errors.New("ksys: user pointer alignment does not match target type")
)

// UserSpace models the calling process's address space as the one bounded
// region HandleCommand is permitted to read embedded pointers from and
// write results to. A real kernel validates a raw virtual address against
// the calling process's VMA and copies across a privilege boundary; this
// subsystem *is* the kernel side (§1), so the caller-supplied bound
// stands in for that check, and Data is the already-mapped backing store
// (the moral equivalent of copy_from_user/copy_to_user having already
// happened at the true boundary below this package).
type UserSpace struct {
	Base uint64
	Data []byte
}

// validate checks addr/length/align per §4.8 check 2: addr and addr+length
// both lie within [Base, Base+len(Data)), and addr is a multiple of align
// (align 1 for byte buffers with no scalar alignment requirement).
func (u UserSpace) validate(addr uint64, length uint32, align uint32) error {
	if align > 1 && addr%uint64(align) != 0 {
		return ErrMisaligned
	}
	if addr < u.Base {
		return ErrOutOfRange
	}
	off := addr - u.Base
	end := off + uint64(length)
	if end < off || end > uint64(len(u.Data)) {
		return ErrOutOfRange
	}
	return nil
}

// ReadAt copies length bytes at addr out of the caller's address space,
// validating it first.
func (u UserSpace) ReadAt(addr uint64, length uint32, align uint32) ([]byte, error) {
	if err := u.validate(addr, length, align); err != nil {
		return nil, err
	}
	off := addr - u.Base
	out := make([]byte, length)
	copy(out, u.Data[off:off+uint64(length)])
	return out, nil
}

// WriteAt copies data into the caller's address space at addr, validating
// it first.
func (u UserSpace) WriteAt(addr uint64, data []byte, align uint32) error {
	if err := u.validate(addr, uint32(len(data)), align); err != nil {
		return err
	}
	off := addr - u.Base
	copy(u.Data[off:], data)
	return nil
}
