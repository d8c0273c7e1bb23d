package util

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// CacheLinePad separates groups of hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicUint64 is an atomic uint64 padded to exactly one cache line.
// Per-shard counters use it so that shards do not false-share.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// PaddedMutex is a sync.Mutex padded to one cache line, for lock stripes.
type PaddedMutex struct {
	sync.Mutex
	_ [CacheLineSize - unsafe.Sizeof(sync.Mutex{})]byte
}

var (
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedMutex{}))]byte
)
