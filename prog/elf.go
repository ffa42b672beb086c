package prog

import (
	"github.com/pkg/errors"

	"github.com/pro-utkarshM/axiomOS-sub000/bpfmap"
	"github.com/pro-utkarshM/axiomOS-sub000/insn"
)

// Object is the ELF-like container §6 describes: a code section, a license
// section, a table of referenced map definitions, and a relocation table
// that patches map references in the code to registry identifiers once the
// maps those references name have actually been created. Its parser does
// not depend on a full ELF implementation — it only ever reads these four
// logical sections, however they arrive (an in-memory Object here; a real
// on-disk ELF would be decoded into one upstream of this package).
type Object struct {
	License string
	Code    []byte
	Maps    []bpfmap.Definition

	// Relocations name, by logical instruction index into the decoded
	// Code, a wide load-immediate instruction whose 64-bit immediate is
	// replaced with the registry identifier assigned to Maps[MapIndex].
	Relocations []Relocation
}

// Relocation patches one map reference.
type Relocation struct {
	InsnIndex int
	MapIndex  int
}

// MapCreator is the narrow slice of the program manager's map-creation
// surface the ELF loader needs. The manager satisfies it directly.
type MapCreator interface {
	CreateMap(def bpfmap.Definition) (uint32, error)
}

// ErrRelocationOutOfRange is returned when a relocation names an
// instruction index or map index outside the decoded object.
var ErrRelocationOutOfRange = errors.New("prog: relocation out of range")

// LoadObject creates every map the object declares, decodes its code
// section, applies relocations against the newly created map identifiers,
// and builds the resulting Program. It performs no verification; the
// caller (ordinarily the manager's LoadObject) runs the streaming
// verifier over the result before registering it.
func LoadObject(obj *Object, mc MapCreator, kind Kind, maxInsn int) (*Program, error) {
	mapIDs := make([]uint32, len(obj.Maps))
	for i, def := range obj.Maps {
		id, err := mc.CreateMap(def)
		if err != nil {
			return nil, errors.Wrapf(err, "creating map %d from object", i)
		}
		mapIDs[i] = id
	}

	instructions, err := insn.DecodeAll(obj.Code)
	if err != nil {
		return nil, errors.Wrap(err, "decoding object code section")
	}

	for _, reloc := range obj.Relocations {
		if reloc.InsnIndex < 0 || reloc.InsnIndex >= len(instructions) {
			return nil, errors.Wrapf(ErrRelocationOutOfRange, "instruction index %d", reloc.InsnIndex)
		}
		if reloc.MapIndex < 0 || reloc.MapIndex >= len(mapIDs) {
			return nil, errors.Wrapf(ErrRelocationOutOfRange, "map index %d", reloc.MapIndex)
		}
		target := instructions[reloc.InsnIndex]
		if !target.IsWide() {
			return nil, errors.Wrapf(ErrRelocationOutOfRange, "instruction %d is not a wide load", reloc.InsnIndex)
		}
		target.Imm = int32(mapIDs[reloc.MapIndex])
		if target.Next != nil {
			target.Next.Imm = 0
		}
	}

	b := NewBuilder(kind, maxInsn).License(obj.License)
	for _, ins := range instructions {
		b.Append(ins)
	}
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	p.MapIDs = mapIDs
	return p, nil
}
