package insn

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Instructions is an ordered sequence of instructions, the lowest-level
// construct a program is built from.
type Instructions []*Instruction

// String renders the sequence one instruction per line, matching the
// format produced by the disassembly helper this model descends from.
func (is Instructions) String() string {
	return is.StringIndent(0)
}

// StringIndent renders the sequence with each line prefixed by r tab
// characters.
func (is Instructions) StringIndent(r int) string {
	var buf strings.Builder
	indent := strings.Repeat("\t", r)
	for i, ins := range is {
		buf.WriteString(indent)
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(": ")
		buf.WriteString(ins.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

// Encode serializes the whole sequence to its raw byte form. Round-tripping
// through Decode must reproduce it exactly (§8 round-trip property).
func (is Instructions) Encode() []byte {
	var buf []byte
	for _, ins := range is {
		buf = ins.Encode(buf)
	}
	return buf
}

// DecodeAll parses buf into a full Instructions sequence, consuming every
// byte. It returns an error if buf does not divide evenly into instruction
// slots.
func DecodeAll(buf []byte) (Instructions, error) {
	var out Instructions
	for len(buf) > 0 {
		ins, n, err := Decode(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding instruction %d", len(out))
		}
		out = append(out, ins)
		buf = buf[n:]
	}
	return out, nil
}

// Count returns the number of logical instructions (a wide instruction
// counts once, matching how the verifier counts visits against
// MaxInstructionCount, not how many 8-byte slots it occupies).
func (is Instructions) Count() int {
	return len(is)
}

// SlotCount returns the total number of 8-byte slots the sequence occupies.
func (is Instructions) SlotCount() int {
	n := 0
	for _, ins := range is {
		n += ins.Slots()
	}
	return n
}
