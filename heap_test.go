package alloctrack

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestRawHeap_mallocFreeRoundtrip(t *testing.T) {
	p := osHeap.malloc(64)
	require.NotZero(t, p)
	require.GreaterOrEqual(t, osHeap.usableSize(p), 64)

	// the block is writable
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 64)
	for i := range b {
		b[i] = byte(i)
	}
	require.Equal(t, byte(63), b[63])

	osHeap.free(p)
}

func TestRawHeap_callocZeroes(t *testing.T) {
	p := osHeap.calloc(128)
	require.NotZero(t, p)
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 128)
	for i := range b {
		require.Zero(t, b[i])
	}
	osHeap.free(p)
}

func TestRawHeap_reallocPreservesPrefix(t *testing.T) {
	p := osHeap.malloc(16)
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 16)
	for i := range b {
		b[i] = byte(i + 1)
	}

	p = osHeap.realloc(p, 1024)
	require.NotZero(t, p)
	b = unsafe.Slice((*byte)(unsafe.Pointer(p)), 16)
	for i := range b {
		require.Equal(t, byte(i+1), b[i])
	}
	osHeap.free(p)
}
