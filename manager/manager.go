// Package manager implements the program manager of §4.7: the canonical
// program registry, the attachment table, and the dispatch contract that
// snapshots attached programs under lock and executes them after the lock
// is released.
package manager

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/engine"
	"github.com/pro-utkarshM/axiomOS-sub000/helper"
	"github.com/pro-utkarshM/axiomOS-sub000/internal/klog"
	"github.com/pro-utkarshM/axiomOS-sub000/khost"
	"github.com/pro-utkarshM/axiomOS-sub000/profile"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
	"github.com/pro-utkarshM/axiomOS-sub000/verifier"
)

// Config supplies the host-provided services a Manager is built from. Lock
// defaults to a plain sync.Mutex (which already satisfies khost.ScopedLock)
// if left nil; an embedded build may instead pass an interrupt-disabling
// spinlock.
type Config struct {
	Profile  profile.Profile
	Clock    khost.TimeSource
	LogSink  khost.LogSink
	Platform khost.PlatformIO // nil if this build has no platform family
	Lock     khost.ScopedLock
	Logger   *zap.Logger
}

// Manager owns the registry, the attachment table, and the engine used to
// run attached programs. One Manager exists per running subsystem
// instance (§4.7, §9: "a single address space owns one manager").
type Manager struct {
	lock khost.ScopedLock

	profile profile.Profile
	helpers *helper.Registry
	verify  *verifier.Verifier
	exec    engine.Engine
	logger  *zap.Logger

	nextProgID uint32
	programs   map[uint32]prog.Handle

	nextMapID uint32
	maps      map[uint32]bpfmap.Map
	mapDefs   map[uint32]bpfmap.Definition

	attach map[AttachTarget][]prog.Handle

	errorCount uint64
}

// New builds a Manager. Its helper registry, verifier, and engine
// are all wired from cfg.Profile (§4.1: "every other component threads
// through" the profile), so a Manager for the embedded profile rejects
// exactly the programs and map flags the embedded profile is documented to
// reject.
func New(cfg Config) *Manager {
	lock := cfg.Lock
	if lock == nil {
		lock = &sync.Mutex{}
	}
	logger := cfg.Logger
	if logger == nil {
		if cfg.LogSink != nil {
			// The mandatory serial log sink doubles as the default
			// structured-logging backend (§7 "boundary logging is
			// mandatory"), so a caller that wires only LogSink still gets
			// Dispatch's runtime-error logging instead of silently losing
			// it to a no-op logger.
			logger = klog.New(cfg.LogSink.WriteLog, zapcore.InfoLevel)
		} else {
			logger = zap.NewNop()
		}
	}

	m := &Manager{
		lock:     lock,
		profile:  cfg.Profile,
		logger:   logger,
		programs: make(map[uint32]prog.Handle),
		maps:     make(map[uint32]bpfmap.Map),
		mapDefs:  make(map[uint32]bpfmap.Definition),
		attach:   make(map[AttachTarget][]prog.Handle),
	}

	helpers := helper.NewRegistry()
	mustRegister(helpers, helper.NewTimeMonotonicNanos(cfg.Clock))
	mustRegister(helpers, helper.NewMapLookup(m))
	mustRegister(helpers, helper.NewMapUpdate(m))
	mustRegister(helpers, helper.NewMapDelete(m))
	mustRegister(helpers, helper.NewRingBufferOutput(m))
	if cfg.LogSink != nil {
		mustRegister(helpers, helper.NewTracePrint(cfg.LogSink))
	}
	if cfg.Platform != nil {
		if err := helper.RegisterPlatformFamily(helpers, cfg.Platform); err != nil {
			// Only reachable if the platform family's own ids collided
			// with one just registered above, which would be a build
			// defect, not a runtime condition — panic is appropriate.
			panic(err)
		}
	}
	m.helpers = helpers

	m.verify = verifier.New(cfg.Profile.MaxInstructionCount, int64(cfg.Profile.MaxStackBytes), helpers, m.mapDefs)
	m.exec = engine.New(cfg.Profile, helpers)

	return m
}

func mustRegister(reg *helper.Registry, h *helper.Helper) {
	if err := reg.Register(h); err != nil {
		panic(err)
	}
}

// ErrorCount returns the number of runtime errors logged across every
// Dispatch call so far (§5 "runtime errors are logged and counted").
func (m *Manager) ErrorCount() uint64 {
	return atomic.LoadUint64(&m.errorCount)
}

func (m *Manager) countError() {
	atomic.AddUint64(&m.errorCount, 1)
}
