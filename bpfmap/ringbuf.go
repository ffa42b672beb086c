package bpfmap

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Ring-buffer record header flags (§6).
const (
	recFlagValid     uint32 = 1 << 0
	recFlagDiscarded uint32 = 1 << 1
)

const recHeaderSize = 8 // 4-byte length + 4-byte flags

// ErrBufferTooSmall is returned by Poll when the caller's destination is
// smaller than the next record's payload; the consumer position is not
// advanced, so a retry with a larger buffer succeeds.
var ErrBufferTooSmall = errors.New("bpfmap: destination buffer too small for record")

// RingBuffer is the single-producer/single-consumer lock-free byte ring of
// §3/§6. Its memory layout is bit-exact for user-space compatibility: a
// page-aligned region of 8+8+Capacity bytes — producer position, consumer
// position, then the data area — backed by a real memory mapping so the
// same region can, on a real kernel, be mapped again into the consuming
// user process.
type RingBuffer struct {
	def      Definition
	region   []byte
	prodPos  *uint64
	consPos  *uint64
	data     []byte
	capacity uint32
}

// NewRingBuffer allocates a ring buffer of def.Capacity bytes, which must
// be a power of two.
func NewRingBuffer(def Definition) (*RingBuffer, error) {
	if def.Capacity == 0 || def.Capacity&(def.Capacity-1) != 0 {
		return nil, errors.New("bpfmap: ring buffer capacity must be a power of two")
	}
	size := int(recHeaderSize*2) + int(def.Capacity)
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "bpfmap: mmap ring buffer region")
	}
	rb := &RingBuffer{
		def:      def,
		region:   region,
		prodPos:  (*uint64)(unsafe.Pointer(&region[0])),
		consPos:  (*uint64)(unsafe.Pointer(&region[8])),
		data:     region[16:],
		capacity: def.Capacity,
	}
	return rb, nil
}

func (r *RingBuffer) Definition() Definition { return r.def }

// Close releases the mapped region. It is not part of the Map interface
// (Array/Hash have nothing to unmap) but every ring buffer owner must call
// it when the map is destroyed.
func (r *RingBuffer) Close() error {
	return unix.Munmap(r.region)
}

func align8(n uint32) uint32 {
	return (n + 7) &^ 7
}

// Reserve atomically advances the producer position to claim space for a
// record of the given payload length, returning the data-area offset at
// which the caller should write exactly length payload bytes before
// calling Submit or Discard with the same offset. It fails with
// ErrWouldOverflow, without advancing the producer, if the record (plus
// any padding needed to avoid wrapping mid-record) does not fit in the
// space the consumer has not yet caught up to.
func (r *RingBuffer) Reserve(length uint32) (payloadOffset uint32, err error) {
	payloadSpace := align8(length)
	total := recHeaderSize + payloadSpace

	prod := atomic.LoadUint64(r.prodPos)
	cons := atomic.LoadUint64(r.consPos)
	used := uint32(prod - cons)
	free := r.capacity - used

	offset := uint32(prod) % r.capacity
	var padding uint32
	if offset+total > r.capacity {
		padding = r.capacity - offset
	}

	if free < padding+total {
		return 0, ErrWouldOverflow
	}

	if padding > 0 {
		r.writeHeader(offset, padding-recHeaderSize, recFlagDiscarded)
		offset = 0
	}

	hdrOffset := offset
	r.writeHeader(hdrOffset, length, 0)

	atomic.StoreUint64(r.prodPos, prod+uint64(padding)+uint64(total))

	return (hdrOffset + recHeaderSize) % r.capacity, nil
}

func (r *RingBuffer) writeHeader(offset, length, flags uint32) {
	binary.LittleEndian.PutUint32(r.data[offset:offset+4], length)
	binary.LittleEndian.PutUint32(r.data[offset+4:offset+8], flags)
}

func (r *RingBuffer) headerOffsetFor(payloadOffset uint32) uint32 {
	return (payloadOffset - recHeaderSize + r.capacity) % r.capacity
}

// WritePayload copies src into the data area at the offset Reserve
// returned. It is the producer's responsibility to call this (or write
// directly through the same offset) before Submit.
func (r *RingBuffer) WritePayload(payloadOffset uint32, src []byte) {
	copy(r.data[payloadOffset:], src)
}

// Submit marks the record at payloadOffset valid, making it visible to the
// consumer.
func (r *RingBuffer) Submit(payloadOffset uint32) {
	hdr := r.headerOffsetFor(payloadOffset)
	flags := binary.LittleEndian.Uint32(r.data[hdr+4 : hdr+8])
	binary.LittleEndian.PutUint32(r.data[hdr+4:hdr+8], flags|recFlagValid)
}

// Discard marks the record at payloadOffset discarded. The producer
// position has already advanced past it (Reserve's contract); the
// consumer skips discarded records without surfacing them.
func (r *RingBuffer) Discard(payloadOffset uint32) {
	hdr := r.headerOffsetFor(payloadOffset)
	flags := binary.LittleEndian.Uint32(r.data[hdr+4 : hdr+8])
	binary.LittleEndian.PutUint32(r.data[hdr+4:hdr+8], flags|recFlagDiscarded)
}

// Output is the convenience the bytecode-visible ring-buffer-output helper
// (§4.6, id 6) invokes: reserve, copy, submit, in one non-blocking,
// non-allocating call.
func (r *RingBuffer) Output(payload []byte) error {
	off, err := r.Reserve(uint32(len(payload)))
	if err != nil {
		return err
	}
	r.WritePayload(off, payload)
	r.Submit(off)
	return nil
}

// Poll copies at most one valid, non-discarded record into dst, skipping
// over any discarded (or padding) records in between, and returns its
// length, or zero if the ring is empty relative to the consumer's
// position. This backs the RINGBUF_POLL system call (§4.8).
func (r *RingBuffer) Poll(dst []byte) (int, error) {
	for {
		prod := atomic.LoadUint64(r.prodPos)
		cons := atomic.LoadUint64(r.consPos)
		if cons >= prod {
			return 0, nil
		}
		offset := uint32(cons) % r.capacity
		length := binary.LittleEndian.Uint32(r.data[offset : offset+4])
		flags := binary.LittleEndian.Uint32(r.data[offset+4 : offset+8])

		total := recHeaderSize + align8(length)
		if flags&recFlagDiscarded != 0 {
			atomic.StoreUint64(r.consPos, cons+uint64(total))
			continue
		}
		if flags&recFlagValid == 0 {
			// Not yet submitted; nothing more to deliver right now.
			return 0, nil
		}
		if int(length) > len(dst) {
			return 0, ErrBufferTooSmall
		}
		copy(dst, r.data[offset+recHeaderSize:offset+recHeaderSize+length])
		atomic.StoreUint64(r.consPos, cons+uint64(total))
		return int(length), nil
	}
}

// Lookup, Update, and Delete satisfy the Map interface's shape for
// consistency with the other kinds, but a ring buffer is not keyed storage
// — every call reports ErrKindMismatch.
func (r *RingBuffer) Lookup([]byte) ([]byte, bool, error)     { return nil, false, ErrKindMismatch }
func (r *RingBuffer) Update([]byte, []byte, UpdateFlag) error { return ErrKindMismatch }
func (r *RingBuffer) Delete([]byte) error                     { return ErrKindMismatch }
