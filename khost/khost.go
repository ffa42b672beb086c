// Package khost declares the narrow set of services this subsystem
// consumes from, and exposes back to, the surrounding kernel (§1, §9).
// Every dependency on the host is expressed as one of these interfaces so
// that the subsystem itself stays free of platform-specific imports; a
// concrete kernel build supplies implementations at construction time.
package khost

import "time"

// TimeSource supplies monotonic time to the time helper family and to
// event contexts. It must never go backward.
type TimeSource interface {
	MonotonicNanos() int64
}

// RealTime is the TimeSource backed by the host clock.
type RealTime struct{}

func (RealTime) MonotonicNanos() int64 { return time.Now().UnixNano() }

// ScopedLock is a narrow mutual-exclusion primitive the program manager
// holds only during load, unload, and attachment-table edits (§4.7). It is
// expressed as an interface, rather than sync.Mutex directly, so a
// platform build can substitute an interrupt-disabling spinlock.
type ScopedLock interface {
	Lock()
	Unlock()
}

// LogSink is the host-provided byte sink the diagnostic helper and
// boundary-level error logging write to (§4.6, §6 "Serial log sink").
// Presence is mandatory; width and throughput are not specified by the
// subsystem.
type LogSink interface {
	WriteLog(line string)
}

// PlatformIO is the narrow hardware-facing surface the platform helper
// family (GPIO, PWM, sensor, emergency-stop) is built on (§4.6). Its
// presence is a build-time property: a cloud build may supply a no-op or
// simulated implementation, an embedded build a real one.
type PlatformIO interface {
	GPIORead(chip, line uint32) (high bool, err error)
	GPIOWrite(chip, line uint32, high bool) error
	PWMSetDutyCycle(chip, channel uint32, dutyPermille uint32) error
	SensorRead(device, channel uint32) (raw int64, err error)
	EmergencyStop() error
}
