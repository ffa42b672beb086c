package manager

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pro-utkarshM/axiomOS-sub000/engine"
	"github.com/pro-utkarshM/axiomOS-sub000/profile"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

// EventKind is one of the stable small integers §4.7 tabulates.
type EventKind uint8

const (
	EventTimerTick    EventKind = 1
	EventGPIOEdge     EventKind = 2
	EventPWMCycle     EventKind = 3
	EventSensorSample EventKind = 4
	EventSyscallEntry EventKind = 5
)

// SyscallPhase distinguishes the pre/post variant §4.7 allows for
// EventSyscallEntry; it is the zero value (and ignored) for every other
// kind.
type SyscallPhase uint8

const (
	PhaseNone SyscallPhase = iota
	PhasePre
	PhasePost
)

// AttachTarget names one (event-source kind, target) dispatch point
// (§4.7). The three scalar fields hold whichever kind-specific
// discriminator applies — (chip, line, edge) for GPIO, (chip, channel) for
// PWM, (device, channel) for sensor samples, (syscall number) for syscall
// entry — and All selects the "tick frequency or 'all'" / "syscall number
// or 'all'" wildcard forms. Being a plain comparable struct, it is usable
// directly as a map key with no separate canonicalization step.
type AttachTarget struct {
	Kind  EventKind
	Phase SyscallPhase
	A, B, C uint32
	All   bool
}

// TimerTarget names a timer-tick dispatch point at the given frequency.
func TimerTarget(frequencyHz uint32) AttachTarget {
	return AttachTarget{Kind: EventTimerTick, A: frequencyHz}
}

// TimerTargetAll names the "every tick" dispatch point.
func TimerTargetAll() AttachTarget {
	return AttachTarget{Kind: EventTimerTick, All: true}
}

// GPIOTarget names a GPIO-edge dispatch point.
func GPIOTarget(chip, line, edge uint32) AttachTarget {
	return AttachTarget{Kind: EventGPIOEdge, A: chip, B: line, C: edge}
}

// PWMTarget names a PWM-cycle dispatch point.
func PWMTarget(chip, channel uint32) AttachTarget {
	return AttachTarget{Kind: EventPWMCycle, A: chip, B: channel}
}

// SensorTarget names a sensor-sample dispatch point.
func SensorTarget(device, channel uint32) AttachTarget {
	return AttachTarget{Kind: EventSensorSample, A: device, B: channel}
}

// SyscallTarget names a syscall-entry dispatch point for one syscall
// number and pre/post phase.
func SyscallTarget(phase SyscallPhase, syscallNo uint32) AttachTarget {
	return AttachTarget{Kind: EventSyscallEntry, Phase: phase, A: syscallNo}
}

// SyscallTargetAll names the "every syscall" dispatch point for a phase.
func SyscallTargetAll(phase SyscallPhase) AttachTarget {
	return AttachTarget{Kind: EventSyscallEntry, Phase: phase, All: true}
}

// ErrAlreadyAttached is returned by Attach when progID is already present
// at target.
var ErrAlreadyAttached = errors.New("manager: program already attached at target")

// Attach binds progID to target, appending it to the end of target's
// dispatch sequence so ordering follows insertion order (§4.7
// "Ordering"). It is rejected if the program's declared Kind does not
// correspond to target's event-source kind (§4.7's kind tag exists
// precisely so this mismatch is caught at attach time, not at dispatch),
// and once target already holds the profile's AttachQueueDepth programs.
func (m *Manager) Attach(target AttachTarget, progID uint32) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	h, ok := m.programs[progID]
	if !ok {
		return ErrProgramNotFound
	}
	if !kindMatches(target.Kind, h.Program.Kind) {
		return errors.Errorf("manager: program %d has kind %s, cannot attach to event kind %d", progID, h.Program.Kind, target.Kind)
	}
	for _, existing := range m.attach[target] {
		if existing.Program.ID == progID {
			return ErrAlreadyAttached
		}
	}
	if len(m.attach[target]) >= m.profile.AttachQueueDepth {
		return errors.Errorf("manager: target already holds %d programs (attach queue depth)", m.profile.AttachQueueDepth)
	}
	m.attach[target] = append(m.attach[target], h.Clone())
	return nil
}

func kindMatches(event EventKind, progKind prog.Kind) bool {
	switch event {
	case EventTimerTick:
		return progKind == prog.KindTimerTick
	case EventGPIOEdge:
		return progKind == prog.KindGPIOEdge
	case EventPWMCycle:
		return progKind == prog.KindPWMCycle
	case EventSensorSample:
		return progKind == prog.KindSensorSample
	case EventSyscallEntry:
		return progKind == prog.KindSyscallEntry
	default:
		return false
	}
}

// ErrNotAttached is returned by Detach when progID is not present at
// target.
var ErrNotAttached = errors.New("manager: program not attached at target")

// Detach removes progID from target's dispatch sequence. It does not
// affect any dispatch snapshot already taken (§5 "Cancellation").
func (m *Manager) Detach(target AttachTarget, progID uint32) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	handles := m.attach[target]
	for i, h := range handles {
		if h.Program.ID == progID {
			h.Drop()
			m.attach[target] = append(handles[:i], handles[i+1:]...)
			return nil
		}
	}
	return ErrNotAttached
}

// snapshot clones the handle slice attached at target under the manager's
// lock and returns it — the "cheap copy" §4.7's dispatch contract calls
// for. The caller must release no further lock and must Drop every
// returned handle once it is done executing them.
func (m *Manager) snapshot(target AttachTarget) []prog.Handle {
	m.lock.Lock()
	defer m.lock.Unlock()
	src := m.attach[target]
	if len(src) == 0 {
		return nil
	}
	out := make([]prog.Handle, len(src))
	for i, h := range src {
		out[i] = h.Clone()
	}
	return out
}

// Dispatch runs every program attached at target, in insertion order,
// against ctx (§4.7 "Dispatch contract — critical"). The manager's lock is
// held only long enough to clone the snapshot; every program executes
// with no manager lock held, so a helper invoked mid-program may safely
// re-enter the manager (e.g. a map lookup) without deadlocking. A
// program's runtime error is logged and counted but never stops the
// sequence (§5 "Ordering"); under the embedded profile's FailStop policy
// the failing program is additionally detached from target so it does not
// run again until an operator re-attaches it (§4.1), which Detach's own
// locking makes safe to do here with no manager lock held.
func (m *Manager) Dispatch(target AttachTarget, ctx engine.Context) {
	handles := m.snapshot(target)
	defer func() {
		for _, h := range handles {
			h.Drop()
		}
	}()

	for _, h := range handles {
		if _, err := m.exec.Run(h.Program, ctx); err != nil {
			m.countError()
			m.logger.Error("program execution failed",
				zap.Uint32("program_id", h.Program.ID),
				zap.Error(err),
			)
			if m.profile.Failure == profile.FailStop {
				if derr := m.Detach(target, h.Program.ID); derr != nil && derr != ErrNotAttached {
					m.logger.Error("failed to detach program after runtime error",
						zap.Uint32("program_id", h.Program.ID),
						zap.Error(derr),
					)
				}
			}
		}
	}
}
