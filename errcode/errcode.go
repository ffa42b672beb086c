// Package errcode holds the small, stable set of negative integers
// surfaced to user space (§6 "Error codes") and the mapping from this
// subsystem's internal, typed errors onto them. It imports only bpfmap
// (for the sentinel errors it flattens), which does not import errcode
// back; helper and ksys depend on errcode, so it carries no risk of
// import cycles.
package errcode

import (
	"github.com/pkg/errors"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
)

// Stable negative status codes (§6).
const (
	Generic        int64 = -1
	NotFound       int64 = -2
	OutOfMemory    int64 = -12
	BadAddress     int64 = -14
	InvalidArg     int64 = -22
	NotImplemented int64 = -38
	Unsupported    int64 = -95
)

// FromMapError flattens a bpfmap error to the codes above (§7 "Map
// errors"). Any error not recognized here falls back to Generic.
func FromMapError(err error) int64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bpfmap.ErrKeyNotFound):
		return NotFound
	case errors.Is(err, bpfmap.ErrKeyExists):
		return InvalidArg
	case errors.Is(err, bpfmap.ErrMapFull):
		return OutOfMemory
	case errors.Is(err, bpfmap.ErrInvalidKeySize), errors.Is(err, bpfmap.ErrInvalidValueSize):
		return InvalidArg
	case errors.Is(err, bpfmap.ErrWouldOverflow):
		return OutOfMemory
	case errors.Is(err, bpfmap.ErrKindMismatch):
		return InvalidArg
	default:
		return Generic
	}
}
