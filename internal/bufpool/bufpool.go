// Package bufpool pools the wire codec's transient decode buffers,
// reducing GC pressure from short-lived per-request allocations.
//
// Buffers come in three size classes matched to Cape's frame shapes:
// small covers headers, names, and paths; medium covers directory
// listings; large covers file content streams. Requests above the large
// class are allocated directly and never pooled, so a single oversized
// upload cannot pin memory for the life of the process.
package bufpool

import "sync"

const (
	smallSize  = 4 << 10  // headers, usernames, paths
	mediumSize = 64 << 10 // directory listings
	largeSize  = 1 << 20  // file content streams
)

var (
	smallPool  = sync.Pool{New: func() any { return make([]byte, smallSize) }}
	mediumPool = sync.Pool{New: func() any { return make([]byte, mediumSize) }}
	largePool  = sync.Pool{New: func() any { return make([]byte, largeSize) }}
)

// Get returns a buffer of length size drawn from the smallest class that
// fits. The contents are unspecified; the caller must fill the buffer
// before reading it. Pass the buffer to Put when done.
func Get(size int) []byte {
	switch {
	case size < 0:
		return nil
	case size <= smallSize:
		return smallPool.Get().([]byte)[:size]
	case size <= mediumSize:
		return mediumPool.Get().([]byte)[:size]
	case size <= largeSize:
		return largePool.Get().([]byte)[:size]
	default:
		return make([]byte, size)
	}
}

// GetUint32 is Get for length fields decoded straight off the wire,
// which the codec bounds to 32 bits before any allocation happens.
func GetUint32(size uint32) []byte {
	return Get(int(size))
}

// Put returns a buffer to its size class. Buffers that were allocated
// above the large class (or never came from the pool) are left to the
// GC.
func Put(buf []byte) {
	switch cap(buf) {
	case smallSize:
		smallPool.Put(buf[:smallSize])
	case mediumSize:
		mediumPool.Put(buf[:mediumSize])
	case largeSize:
		largePool.Put(buf[:largeSize])
	}
}
