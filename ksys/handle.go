package ksys

import (
	"go.uber.org/zap"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/errcode"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
	"github.com/pro-utkarshM/axiomOS-sub000/manager"
	"github.com/pro-utkarshM/axiomOS-sub000/prog"
)

// addrAlign is the alignment this dispatcher requires of every embedded
// user pointer: none of the attribute layouts embed anything wider than a
// byte buffer, so every ReadAt/WriteAt below passes 1.
const addrAlign = 1

// HandleCommand is the single entry point for the system-call surface
// (§4.8): it decodes attr according to cmd's fixed layout, validates every
// embedded user pointer against user, and dispatches to mgr. The return
// value is a non-negative success result (a new identifier, a byte count)
// or one of errcode's negative status codes. Every non-trivial failure is
// logged through logger before it crosses back out (§7 "logging at the
// boundary is mandatory for every non-trivial failure"); logger may be
// nil, in which case logging is a no-op.
func HandleCommand(cmd Command, attr []byte, user UserSpace, mgr *manager.Manager, logger *zap.Logger) int64 {
	if logger == nil {
		logger = zap.NewNop()
	}

	var code int64
	switch cmd {
	case CmdMapCreate:
		code = handleMapCreate(attr, mgr)
	case CmdMapLookup:
		code = handleMapLookup(attr, user, mgr)
	case CmdMapUpdate:
		code = handleMapUpdate(attr, user, mgr)
	case CmdMapDelete:
		code = handleMapDelete(attr, user, mgr)
	case CmdProgLoad:
		code = handleProgLoad(attr, user, mgr)
	case CmdProgAttach:
		code = handleProgAttach(attr, mgr)
	case CmdProgDetach:
		code = handleProgDetach(attr, mgr)
	case CmdRingbufPoll:
		code = handleRingbufPoll(attr, user, mgr)
	default:
		code = errcode.NotImplemented
	}

	if code < 0 {
		logger.Error("system call rejected",
			zap.Uint32("command", uint32(cmd)),
			zap.Int64("errcode", code),
		)
	}
	return code
}

// addrErr maps both UserSpace validation failures to errcode's single
// bad-address status (§6): out-of-range and misaligned pointers are
// distinguished internally but not at the system-call boundary.
func addrErr(err error) int64 {
	return errcode.BadAddress
}

func handleMapCreate(attr []byte, mgr *manager.Manager) int64 {
	a, err := decodeMapCreateAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	if a.Kind > uint32(bpfmap.KindTimeSeries) {
		return errcode.InvalidArg
	}
	def := bpfmap.Definition{
		Kind:       bpfmap.Kind(a.Kind),
		KeySize:    a.KeySize,
		ValueSize:  a.ValueSize,
		MaxEntries: a.MaxEntries,
		Flags:      bpfmap.Flag(a.Flags),
		Capacity:   a.Capacity,
	}
	id, err := mgr.CreateMap(def)
	if err != nil {
		return errcode.FromMapError(err)
	}
	return int64(id)
}

func handleMapLookup(attr []byte, user UserSpace, mgr *manager.Manager) int64 {
	a, err := decodeMapLookupAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	def, ok := mgr.MapDefinition(a.MapID)
	if !ok {
		return errcode.NotFound
	}
	key, err := user.ReadAt(a.KeyAddr, def.KeySize, addrAlign)
	if err != nil {
		return addrErr(err)
	}
	value, found, err := mgr.MapLookup(a.MapID, key)
	if err != nil {
		return errcode.FromMapError(err)
	}
	if !found {
		return errcode.NotFound
	}
	if err := user.WriteAt(a.ValueAddr, value, addrAlign); err != nil {
		return addrErr(err)
	}
	return 0
}

func handleMapUpdate(attr []byte, user UserSpace, mgr *manager.Manager) int64 {
	a, err := decodeMapUpdateAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	def, ok := mgr.MapDefinition(a.MapID)
	if !ok {
		return errcode.NotFound
	}
	key, err := user.ReadAt(a.KeyAddr, def.KeySize, addrAlign)
	if err != nil {
		return addrErr(err)
	}
	value, err := user.ReadAt(a.ValueAddr, def.ValueSize, addrAlign)
	if err != nil {
		return addrErr(err)
	}
	if err := mgr.MapUpdate(a.MapID, key, value, bpfmap.UpdateFlag(a.Flag)); err != nil {
		return errcode.FromMapError(err)
	}
	return 0
}

func handleMapDelete(attr []byte, user UserSpace, mgr *manager.Manager) int64 {
	a, err := decodeMapDeleteAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	def, ok := mgr.MapDefinition(a.MapID)
	if !ok {
		return errcode.NotFound
	}
	key, err := user.ReadAt(a.KeyAddr, def.KeySize, addrAlign)
	if err != nil {
		return addrErr(err)
	}
	if err := mgr.MapDelete(a.MapID, key); err != nil {
		return errcode.FromMapError(err)
	}
	return 0
}

func handleProgLoad(attr []byte, user UserSpace, mgr *manager.Manager) int64 {
	a, err := decodeProgLoadAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	code, err := user.ReadAt(a.CodeAddr, a.CodeLen, addrAlign)
	if err != nil {
		return addrErr(err)
	}
	instructions, err := insn.DecodeAll(code)
	if err != nil {
		return errcode.InvalidArg
	}
	id, err := mgr.LoadRaw(prog.Kind(a.Kind), instructions)
	if err != nil {
		return errcode.InvalidArg
	}
	return int64(id)
}

func handleProgAttach(attr []byte, mgr *manager.Manager) int64 {
	a, err := decodeAttachAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	target := manager.AttachTarget{
		Kind:  manager.EventKind(a.EventKind),
		Phase: manager.SyscallPhase(a.Phase),
		A:     a.A,
		B:     a.B,
		C:     a.C,
		All:   a.All != 0,
	}
	if err := mgr.Attach(target, a.ProgID); err != nil {
		return errcode.InvalidArg
	}
	return 0
}

func handleProgDetach(attr []byte, mgr *manager.Manager) int64 {
	a, err := decodeAttachAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	target := manager.AttachTarget{
		Kind:  manager.EventKind(a.EventKind),
		Phase: manager.SyscallPhase(a.Phase),
		A:     a.A,
		B:     a.B,
		C:     a.C,
		All:   a.All != 0,
	}
	if err := mgr.Detach(target, a.ProgID); err != nil {
		return errcode.NotFound
	}
	return 0
}

func handleRingbufPoll(attr []byte, user UserSpace, mgr *manager.Manager) int64 {
	a, err := decodeRingbufPollAttr(attr)
	if err != nil {
		return errcode.InvalidArg
	}
	dst := make([]byte, a.DstLen)
	n, err := mgr.PollRingBuffer(a.MapID, dst)
	if err != nil {
		return errcode.FromMapError(err)
	}
	if n == 0 {
		return 0
	}
	if err := user.WriteAt(a.DstAddr, dst[:n], addrAlign); err != nil {
		return addrErr(err)
	}
	return int64(n)
}
