package prog

// Kind tags what family of event source a program is meant to run under.
// It mirrors the event-source kinds of §4.7 so a program can be rejected at
// attach time if its kind doesn't match the attach point.
type Kind uint8

const (
	KindUnspecified Kind = iota
	KindTimerTick
	KindGPIOEdge
	KindPWMCycle
	KindSensorSample
	KindSyscallEntry
)

func (k Kind) String() string {
	switch k {
	case KindTimerTick:
		return "timer-tick"
	case KindGPIOEdge:
		return "gpio-edge"
	case KindPWMCycle:
		return "pwm-cycle"
	case KindSensorSample:
		return "sensor-sample"
	case KindSyscallEntry:
		return "syscall-entry"
	default:
		return "unspecified"
	}
}
