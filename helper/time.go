package helper

import "github.com/pro-utkarshM/axiomOS-sub000/khost"

// NewTimeMonotonicNanos builds the time family's sole member (§4.6): pure,
// never fails, returns the host's current monotonic nanosecond count.
func NewTimeMonotonicNanos(clock khost.TimeSource) *Helper {
	return &Helper{
		ID:   IDTimeMonotonicNanos,
		Name: "time_monotonic_nanos",
		Signature: Signature{
			Return: ArgScalar,
		},
		Invoke: func(Memory, [5]uint64) (uint64, error) {
			return uint64(clock.MonotonicNanos()), nil
		},
	}
}
