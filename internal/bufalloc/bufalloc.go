// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bufalloc implements the per-worker buffer allocator: a
// contiguous, page-aligned pool of equally sized datagram buffers
// tracked by a [bitarr.T], sized from CPU cache topology.
//
// An Allocator is owned exclusively by one worker and is never called
// from more than one goroutine; none of its operations take a lock.
package bufalloc

import (
	"fmt"

	"code.hybscloud.com/udipe/internal/bitarr"
	"code.hybscloud.com/udipe/internal/logging"
	"code.hybscloud.com/udipe/internal/topology"
)

// MaxBuffers is the capacity limit: at most 64 buffers per worker.
const MaxBuffers = 64

// ConfigFunc is the optional per-thread config callback. Returning 0
// for either field requests the auto policy for that field.
type ConfigFunc func(cpus topology.CPUSet) (bufferSize, bufferCount int)

// Allocator is a fixed pool of equally sized page-aligned buffers.
type Allocator struct {
	pool        []byte
	bits        *bitarr.T
	bufferSize  int
	bufferCount int
	logger      logging.Logger
	locked      bool
}

// New resolves sizing (auto or via cfg) and acquires the backing pool
// through the real-time-allocate primitive: page-aligned, pre-faulted,
// best-effort locked into RAM.
func New(logger logging.Logger, lookup topology.Lookup, cpus topology.CPUSet, cfg ConfigFunc) (*Allocator, error) {
	logger = logging.OrDefault(logger)

	bufferSize, bufferCount := 0, 0
	if cfg != nil {
		bufferSize, bufferCount = cfg(cpus)
	}

	page := lookup.PageSize()
	if bufferSize <= 0 {
		l1 := lookup.L1(cpus)
		bufferSize = roundUpToPage((l1*80)/100, page)
	} else {
		bufferSize = roundUpToPage(bufferSize, page)
	}

	if bufferCount <= 0 {
		l2 := lookup.L2(cpus)
		bufferCount = l2 / bufferSize
		if bufferCount < 1 {
			bufferCount = 1
		}
		if bufferCount > MaxBuffers {
			logger.Warn("buffer allocator: auto-sizing would exceed capacity limit, capping",
				"computed", bufferCount, "limit", MaxBuffers)
			bufferCount = MaxBuffers
		}
	} else if bufferCount > MaxBuffers {
		return nil, fmt.Errorf("bufalloc: buffer count %d exceeds limit %d", bufferCount, MaxBuffers)
	}

	pool, locked, err := acquirePool(bufferSize*bufferCount, page)
	if err != nil {
		return nil, err
	}
	if !locked {
		logger.Warn("buffer allocator: failed to lock pool into RAM, continuing without mlock")
	}

	return &Allocator{
		pool:        pool,
		bits:        bitarr.New(bufferCount, true),
		bufferSize:  bufferSize,
		bufferCount: bufferCount,
		logger:      logger,
		locked:      locked,
	}, nil
}

// BufferSize returns the resolved per-buffer size in bytes.
func (a *Allocator) BufferSize() int { return a.bufferSize }

// BufferCount returns the resolved buffer count.
func (a *Allocator) BufferCount() int { return a.bufferCount }

// Allocate returns a free buffer and clears its availability bit, or nil
// when no buffer is free. Never blocks: callers treat nil as a
// back-pressure signal (resource-exhausted).
func (a *Allocator) Allocate() []byte {
	idx, ok := a.bits.FindFirst(true)
	if !ok {
		return nil
	}
	a.bits.Set(idx, false)
	off := idx * a.bufferSize
	return a.pool[off : off+a.bufferSize : off+a.bufferSize]
}

// Liberate returns buf to the pool. buf must be a slice previously
// returned by Allocate and not yet liberated; violating this is a
// programming error and panics rather than corrupting the bit array.
func (a *Allocator) Liberate(buf []byte) {
	idx := a.indexOf(buf)
	if a.bits.Get(idx) {
		panic("bufalloc: double liberate of buffer")
	}
	if debugZeroOnLiberate {
		for i := range buf {
			buf[i] = 0
		}
	}
	a.bits.Set(idx, true)
}

func (a *Allocator) indexOf(buf []byte) int {
	if len(buf) != a.bufferSize {
		panic("bufalloc: buffer length does not match pool buffer size")
	}
	// bufferOffset (offset.go) computes buf's byte offset from the pool's
	// base address with unsafe pointer arithmetic. Allocate only hands out
	// whole buffers, so a buffer from this pool starts on a buffer boundary.
	off := bufferOffset(a.pool, buf)
	if off < 0 || off%a.bufferSize != 0 || off/a.bufferSize >= a.bufferCount {
		panic("bufalloc: buffer not owned by this pool")
	}
	return off / a.bufferSize
}

// Finalize checks that every bit is available. If a buffer is still
// allocated it returns an error and keeps the pool (Context.Finalise
// treats that error as fatal); otherwise it releases the backing pool.
func (a *Allocator) Finalize() error {
	if a.bits.Count(true) != a.bufferCount {
		return fmt.Errorf("bufalloc: finalisation with live buffers outstanding (%d/%d free)",
			a.bits.Count(true), a.bufferCount)
	}
	return releasePool(a.pool, a.locked)
}

func roundUpToPage(n, page int) int {
	if page <= 0 {
		page = 4096
	}
	if n <= 0 {
		n = page
	}
	return ((n + page - 1) / page) * page
}
