package engine

import "encoding/binary"

// ContextSize is the fixed byte layout of the Context record (§3): large
// enough for the payload pointer+length pair, the monotonic time, and the
// widest event-kind-specific field pair, rounded up. It must match the
// verifier package's own contextSize constant, since both describe the
// same wire layout from opposite ends (the verifier bounds-checks access
// to it; the engine materializes it).
const ContextSize = 64

// Event-source kinds a Context may describe (§4.7, mirrored by the
// manager package's dispatch table keys).
const (
	EventKindTimer   uint32 = 1
	EventKindGPIO    uint32 = 2
	EventKindPWM     uint32 = 3
	EventKindSensor  uint32 = 4
	EventKindSyscall uint32 = 5
)

// Context is the read-only input handed to a running program (§3). The
// two kind-specific fields are interpreted according to EventKind: GPIO
// uses Field0 for the line value and Field1 for the edge direction; PWM
// uses Field0 for duty cycle and Field1 for period; Sensor uses Field0
// for the raw sample and Field1 for the channel; Syscall uses Field0 for
// the syscall number and Field1 for its first argument register.
type Context struct {
	EventKind      uint32
	MonotonicNanos int64
	Payload        []byte
	Field0         int64
	Field1         int64
}

// NewTimerContext builds a Context for a timer-tick dispatch.
func NewTimerContext(monotonicNanos int64) Context {
	return Context{EventKind: EventKindTimer, MonotonicNanos: monotonicNanos}
}

// NewGPIOContext builds a Context for a GPIO-edge dispatch.
func NewGPIOContext(monotonicNanos int64, line, edge int64) Context {
	return Context{EventKind: EventKindGPIO, MonotonicNanos: monotonicNanos, Field0: line, Field1: edge}
}

// NewPWMContext builds a Context for a PWM-cycle dispatch.
func NewPWMContext(monotonicNanos int64, dutyCycle, period int64) Context {
	return Context{EventKind: EventKindPWM, MonotonicNanos: monotonicNanos, Field0: dutyCycle, Field1: period}
}

// NewSensorContext builds a Context for a sensor-sample dispatch.
func NewSensorContext(monotonicNanos int64, rawSample, channel int64) Context {
	return Context{EventKind: EventKindSensor, MonotonicNanos: monotonicNanos, Field0: rawSample, Field1: channel}
}

// NewSyscallContext builds a Context for a system-call entry dispatch
// (the "pre"/"post" distinction of §4.7 is carried by the manager's
// attach table, not by the context itself).
func NewSyscallContext(monotonicNanos int64, syscallNo, arg0 int64, payload []byte) Context {
	return Context{EventKind: EventKindSyscall, MonotonicNanos: monotonicNanos, Field0: syscallNo, Field1: arg0, Payload: payload}
}

// encode materializes ctx into its fixed little-endian layout, minting
// the payload (if any) into mem's map-value region so bytecode can reach
// it through the same generic-pointer category a map lookup uses.
func (ctx Context) encode(mem *vmMemory) []byte {
	buf := make([]byte, ContextSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(ctx.MonotonicNanos))
	var payloadAddr uint64
	if len(ctx.Payload) > 0 {
		payloadAddr = mem.mintRegion(ctx.Payload)
	}
	binary.LittleEndian.PutUint64(buf[8:16], payloadAddr)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(ctx.Payload)))
	binary.LittleEndian.PutUint32(buf[20:24], ctx.EventKind)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(ctx.Field0))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(ctx.Field1))
	return buf
}
