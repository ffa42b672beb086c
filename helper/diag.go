package helper

import (
	"unsafe"

	"github.com/pro-utkarshM/axiomOS-sub000/khost"
)

// maxTraceLen bounds the diagnostic helper's byte string (§4.6 "formats a
// bounded-length byte string"); a program cannot use trace-print to spam
// the log sink with an unbounded write.
const maxTraceLen = 256

// NewTracePrint builds the diagnostic family's sole member: copies a
// bounded byte string out of the caller's memory and writes it to sink.
// args[0] is the base address, args[1] the claimed length.
func NewTracePrint(sink khost.LogSink) *Helper {
	return &Helper{
		ID:   IDTracePrint,
		Name: "trace_print",
		Signature: Signature{
			Args: [5]Arg{
				{Kind: ArgPtrBytes, SizeArg: -1, SizeConst: maxTraceLen},
				{Kind: ArgScalar},
			},
			Return: ArgScalar,
		},
		Invoke: func(mem Memory, args [5]uint64) (uint64, error) {
			length := uint32(args[1])
			if length > maxTraceLen {
				length = maxTraceLen
			}
			buf, err := mem.ReadBytes(args[0], length)
			if err != nil {
				return 0, err
			}
			sink.WriteLog(bytesToString(buf))
			return uint64(len(buf)), nil
		},
	}
}

// bytesToString avoids an extra copy for a log-only, read-only use.
func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
