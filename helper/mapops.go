package helper

import (
	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/errcode"
)

// MapProvider resolves a map identifier to the map it names. The program
// manager implements this; helper does not depend on manager to avoid an
// import cycle (manager depends on helper to build its registry).
type MapProvider interface {
	MapByID(id uint32) (bpfmap.Map, bool)
}

// Outputter is implemented by map kinds that support the ring-buffer
// output operation. Only bpfmap.RingBuffer does.
type Outputter interface {
	Output(payload []byte) error
}

// NewMapLookup builds the map-lookup helper (§6, id 3). args[0] is the
// map id, args[1] the address of a KeySize-byte key. On a hit it mints a
// generic pointer to the value and returns its address; on a miss it
// returns 0 (a null pointer the verifier requires a dominating check
// against before any load/store through it).
func NewMapLookup(maps MapProvider) *Helper {
	return &Helper{
		ID:   IDMapLookup,
		Name: "map_lookup",
		Signature: Signature{
			Args: [5]Arg{
				{Kind: ArgScalar},
				{Kind: ArgPtrBytes, SizeArg: -1, SizeConst: 0}, // size resolved per-map at dispatch
			},
			Return: ArgScalar,
		},
		Invoke: func(mem Memory, args [5]uint64) (uint64, error) {
			m, ok := maps.MapByID(uint32(args[0]))
			if !ok {
				return 0, nil
			}
			key, err := mem.ReadBytes(args[1], m.Definition().KeySize)
			if err != nil {
				return 0, err
			}
			value, found, err := m.Lookup(key)
			if err != nil {
				return uint64(int64(errcode.FromMapError(err))), nil
			}
			if !found {
				return 0, nil
			}
			return mem.NewMapValuePointer(value), nil
		},
	}
}

// NewMapUpdate builds the map-update helper (§6, id 4). args[0] map id,
// args[1] key address, args[2] value address, args[3] update flag.
func NewMapUpdate(maps MapProvider) *Helper {
	return &Helper{
		ID:   IDMapUpdate,
		Name: "map_update",
		Signature: Signature{
			Args: [5]Arg{
				{Kind: ArgScalar},
				{Kind: ArgPtrBytes, SizeArg: -1},
				{Kind: ArgPtrBytes, SizeArg: -1},
				{Kind: ArgScalar},
			},
			Return: ArgScalar,
		},
		Invoke: func(mem Memory, args [5]uint64) (uint64, error) {
			m, ok := maps.MapByID(uint32(args[0]))
			if !ok {
				return uint64(int64(errcode.NotFound)), nil
			}
			def := m.Definition()
			key, err := mem.ReadBytes(args[1], def.KeySize)
			if err != nil {
				return 0, err
			}
			value, err := mem.ReadBytes(args[2], def.ValueSize)
			if err != nil {
				return 0, err
			}
			err = m.Update(key, value, bpfmap.UpdateFlag(args[3]))
			return uint64(int64(errcode.FromMapError(err))), nil
		},
	}
}

// NewMapDelete builds the map-delete helper (§6, id 5). args[0] map id,
// args[1] key address.
func NewMapDelete(maps MapProvider) *Helper {
	return &Helper{
		ID:   IDMapDelete,
		Name: "map_delete",
		Signature: Signature{
			Args: [5]Arg{
				{Kind: ArgScalar},
				{Kind: ArgPtrBytes, SizeArg: -1},
			},
			Return: ArgScalar,
		},
		Invoke: func(mem Memory, args [5]uint64) (uint64, error) {
			m, ok := maps.MapByID(uint32(args[0]))
			if !ok {
				return uint64(int64(errcode.NotFound)), nil
			}
			key, err := mem.ReadBytes(args[1], m.Definition().KeySize)
			if err != nil {
				return 0, err
			}
			return uint64(int64(errcode.FromMapError(m.Delete(key)))), nil
		},
	}
}

// NewRingBufferOutput builds the ring-buffer-output helper (§6, id 6).
// args[0] map id, args[1] payload address, args[2] payload length.
func NewRingBufferOutput(maps MapProvider) *Helper {
	return &Helper{
		ID:   IDRingBufferOutput,
		Name: "ringbuf_output",
		Signature: Signature{
			Args: [5]Arg{
				{Kind: ArgScalar},
				{Kind: ArgPtrBytes, SizeArg: 2},
				{Kind: ArgScalar},
			},
			Return: ArgScalar,
		},
		Invoke: func(mem Memory, args [5]uint64) (uint64, error) {
			m, ok := maps.MapByID(uint32(args[0]))
			if !ok {
				return uint64(int64(errcode.NotFound)), nil
			}
			out, ok := m.(Outputter)
			if !ok {
				return uint64(int64(errcode.InvalidArg)), nil
			}
			payload, err := mem.ReadBytes(args[1], uint32(args[2]))
			if err != nil {
				return 0, err
			}
			if err := out.Output(payload); err != nil {
				return uint64(int64(errcode.FromMapError(err))), nil
			}
			return 0, nil
		},
	}
}
