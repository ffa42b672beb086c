package bpfmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferOutputAndPollRoundTrip(t *testing.T) {
	rb, err := NewRingBuffer(Definition{Kind: KindRingBuffer, Capacity: 4096})
	require.NoError(t, err)
	defer rb.Close()

	require.NoError(t, rb.Output([]byte("hello")))
	require.NoError(t, rb.Output([]byte("world!!")))

	dst := make([]byte, 64)
	n, err := rb.Poll(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(dst[:n]))

	n, err = rb.Poll(dst)
	require.NoError(t, err)
	require.Equal(t, "world!!", string(dst[:n]))

	n, err = rb.Poll(dst)
	require.NoError(t, err)
	require.Equal(t, 0, n, "ring buffer should be empty relative to the consumer")
}

func TestRingBufferPollTooSmallDestinationDoesNotAdvance(t *testing.T) {
	rb, err := NewRingBuffer(Definition{Capacity: 4096})
	require.NoError(t, err)
	defer rb.Close()

	require.NoError(t, rb.Output([]byte("a payload longer than four")))

	small := make([]byte, 4)
	_, err = rb.Poll(small)
	require.ErrorIs(t, err, ErrBufferTooSmall)

	big := make([]byte, 64)
	n, err := rb.Poll(big)
	require.NoError(t, err)
	require.Equal(t, "a payload longer than four", string(big[:n]))
}

func TestRingBufferRejectsNonPowerOfTwoCapacity(t *testing.T) {
	_, err := NewRingBuffer(Definition{Capacity: 100})
	require.Error(t, err)
}

func TestRingBufferWouldOverflow(t *testing.T) {
	rb, err := NewRingBuffer(Definition{Capacity: 32})
	require.NoError(t, err)
	defer rb.Close()

	payload := make([]byte, 20)
	require.NoError(t, rb.Output(payload))
	err = rb.Output(payload)
	require.ErrorIs(t, err, ErrWouldOverflow)
}

func TestRingBufferDiscardSkipsRecord(t *testing.T) {
	rb, err := NewRingBuffer(Definition{Capacity: 4096})
	require.NoError(t, err)
	defer rb.Close()

	off, err := rb.Reserve(5)
	require.NoError(t, err)
	rb.WritePayload(off, []byte("dummy"))
	rb.Discard(off)

	require.NoError(t, rb.Output([]byte("kept")))

	dst := make([]byte, 64)
	n, err := rb.Poll(dst)
	require.NoError(t, err)
	require.Equal(t, "kept", string(dst[:n]))
}

func TestRingBufferKindMismatchForKeyedOps(t *testing.T) {
	rb, err := NewRingBuffer(Definition{Capacity: 4096})
	require.NoError(t, err)
	defer rb.Close()

	_, _, err = rb.Lookup(nil)
	require.ErrorIs(t, err, ErrKindMismatch)
	require.ErrorIs(t, rb.Update(nil, nil, UpdateAny), ErrKindMismatch)
	require.ErrorIs(t, rb.Delete(nil), ErrKindMismatch)
}
