package ksys

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Command is one of the stable command codes of §4.8.
type Command uint32

const (
	CmdMapCreate   Command = 0
	CmdMapLookup   Command = 1
	CmdMapUpdate   Command = 2
	CmdMapDelete   Command = 3
	CmdProgLoad    Command = 5
	CmdProgAttach  Command = 8
	CmdProgDetach  Command = 9
	CmdRingbufPoll Command = 37
)

// ErrShortAttr is returned when the caller's declared length is smaller
// than the command's attribute layout (§4.8 check 1).
var ErrShortAttr = errors.New("ksys: attribute length shorter than command's layout")

// mapCreateAttr is MAP_CREATE's attribute record: a bpfmap.Definition
// flattened to 24 bytes, six uint32 fields in declaration order.
type mapCreateAttr struct {
	Kind       uint32
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	Flags      uint32
	Capacity   uint32
}

const mapCreateAttrSize = 24

func decodeMapCreateAttr(b []byte) (mapCreateAttr, error) {
	if len(b) < mapCreateAttrSize {
		return mapCreateAttr{}, ErrShortAttr
	}
	return mapCreateAttr{
		Kind:       binary.LittleEndian.Uint32(b[0:4]),
		KeySize:    binary.LittleEndian.Uint32(b[4:8]),
		ValueSize:  binary.LittleEndian.Uint32(b[8:12]),
		MaxEntries: binary.LittleEndian.Uint32(b[12:16]),
		Flags:      binary.LittleEndian.Uint32(b[16:20]),
		Capacity:   binary.LittleEndian.Uint32(b[20:24]),
	}, nil
}

// mapLookupAttr is MAP_LOOKUP's attribute record. ValueSize is never read
// from here (§4.8: "value sizes for map operations are taken from the
// map's stored definition"); the field layout only carries the map id and
// the two user pointers.
type mapLookupAttr struct {
	MapID      uint32
	KeyAddr    uint64
	ValueAddr  uint64
}

const mapLookupAttrSize = 24 // 4 + 4 pad + 8 + 8

func decodeMapLookupAttr(b []byte) (mapLookupAttr, error) {
	if len(b) < mapLookupAttrSize {
		return mapLookupAttr{}, ErrShortAttr
	}
	return mapLookupAttr{
		MapID:     binary.LittleEndian.Uint32(b[0:4]),
		KeyAddr:   binary.LittleEndian.Uint64(b[8:16]),
		ValueAddr: binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// mapUpdateAttr is MAP_UPDATE's attribute record.
type mapUpdateAttr struct {
	MapID     uint32
	Flag      uint32
	KeyAddr   uint64
	ValueAddr uint64
}

const mapUpdateAttrSize = 24

func decodeMapUpdateAttr(b []byte) (mapUpdateAttr, error) {
	if len(b) < mapUpdateAttrSize {
		return mapUpdateAttr{}, ErrShortAttr
	}
	return mapUpdateAttr{
		MapID:     binary.LittleEndian.Uint32(b[0:4]),
		Flag:      binary.LittleEndian.Uint32(b[4:8]),
		KeyAddr:   binary.LittleEndian.Uint64(b[8:16]),
		ValueAddr: binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// mapDeleteAttr is MAP_DELETE's attribute record.
type mapDeleteAttr struct {
	MapID   uint32
	KeyAddr uint64
}

const mapDeleteAttrSize = 16 // 4 + 4 pad + 8

func decodeMapDeleteAttr(b []byte) (mapDeleteAttr, error) {
	if len(b) < mapDeleteAttrSize {
		return mapDeleteAttr{}, ErrShortAttr
	}
	return mapDeleteAttr{
		MapID:   binary.LittleEndian.Uint32(b[0:4]),
		KeyAddr: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// progLoadAttr is PROG_LOAD's attribute record, for the raw-instruction-
// vector loading path (§6 "raw instruction vectors"); ELF-like object
// loading is exposed directly on the manager for embedders that parse
// their own object format, not through this syscall.
type progLoadAttr struct {
	Kind    uint32
	CodeLen uint32
	CodeAddr uint64
}

const progLoadAttrSize = 16

func decodeProgLoadAttr(b []byte) (progLoadAttr, error) {
	if len(b) < progLoadAttrSize {
		return progLoadAttr{}, ErrShortAttr
	}
	return progLoadAttr{
		Kind:     binary.LittleEndian.Uint32(b[0:4]),
		CodeLen:  binary.LittleEndian.Uint32(b[4:8]),
		CodeAddr: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// attachAttr is shared by PROG_ATTACH and PROG_DETACH: a program id plus
// the (event-source kind, target) pair of §4.7.
type attachAttr struct {
	ProgID    uint32
	EventKind uint32
	Phase     uint32
	A, B, C   uint32
	All       uint32
}

const attachAttrSize = 28

func decodeAttachAttr(b []byte) (attachAttr, error) {
	if len(b) < attachAttrSize {
		return attachAttr{}, ErrShortAttr
	}
	return attachAttr{
		ProgID:    binary.LittleEndian.Uint32(b[0:4]),
		EventKind: binary.LittleEndian.Uint32(b[4:8]),
		Phase:     binary.LittleEndian.Uint32(b[8:12]),
		A:         binary.LittleEndian.Uint32(b[12:16]),
		B:         binary.LittleEndian.Uint32(b[16:20]),
		C:         binary.LittleEndian.Uint32(b[20:24]),
		All:       binary.LittleEndian.Uint32(b[24:28]),
	}, nil
}

// ringbufPollAttr is RINGBUF_POLL's attribute record.
type ringbufPollAttr struct {
	MapID  uint32
	DstAddr uint64
	DstLen uint32
}

const ringbufPollAttrSize = 24 // 4 + 4 pad + 8 + 4 + 4 pad

func decodeRingbufPollAttr(b []byte) (ringbufPollAttr, error) {
	if len(b) < ringbufPollAttrSize {
		return ringbufPollAttr{}, ErrShortAttr
	}
	return ringbufPollAttr{
		MapID:   binary.LittleEndian.Uint32(b[0:4]),
		DstAddr: binary.LittleEndian.Uint64(b[8:16]),
		DstLen:  binary.LittleEndian.Uint32(b[16:20]),
	}, nil
}
