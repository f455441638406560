// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmdqueue implements the per-worker command queue: a single
// memory page laid out as three cache-aligned regions (worker block,
// producer block, ring storage), with blocking producers serialised by
// a mutex and a lock-free, single-consumer worker side.
//
// Producers are deliberately blocking rather than lock-free (step 2: "If
// full, wait on the condition variable") — the design trades
// producer-side lock-freedom for a page-bounded ring and simple,
// provable FIFO-per-producer ordering.
package cmdqueue

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/udipe/internal/waitaddr"
)

// DefaultPageSize is used when a caller does not know the host's actual
// page size (the real value comes from the topology capability).
const DefaultPageSize = 4096

// headerSlots accounts for the two regions (worker block, producer
// block) that share the page with ring storage: ring capacity is
// (page/granule) − 2.
const headerSlots = 2

// pad prevents false sharing between the regions below
// (false-sharing granule, ≥128B x86_64 / ≥64B aarch64 — 128 is safe on both).
type pad [128]byte

// Queue is one worker's command queue: MPSC, blocking producers,
// lock-free single consumer.
//
// readIdx/writeIdx are monotonically increasing uint32 counters (not
// wrapped into [0,capacity) directly); slot index is idx%capacity.
// Unsigned subtraction makes write-read wrap correctly at 2^32, so the
// queue is empty when write==read and full when write-read==capacity —
// the same invariant an explicit mod-2×capacity comparison would
// state, specialised to this non-doubled index scheme.
type Queue[T any] struct {
	_ pad
	// Worker block.
	readIdx  atomic.Uint32 // owned exclusively by the worker
	writeIdx atomic.Uint32 // published by producers; watched by the worker
	spaceMu  sync.Mutex
	spaceCnd *sync.Cond // producers block here when the ring is full
	_        pad
	// Producer block.
	producerMu sync.Mutex
	_          pad
	// Ring storage.
	slots    []T
	capacity uint32
}

// New creates a queue sized to fit one memory page of pageSize bytes,
// given the caller's command record type. Panics if a single record
// plus the two header regions cannot fit in one page.
func New[T any](pageSize int) *Queue[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var zero T
	granule := int(sizeofApprox(zero))
	if granule <= 0 {
		granule = 1
	}
	capacity := pageSize/granule - headerSlots
	if capacity < 1 {
		panic("cmdqueue: page size too small to hold even one command slot")
	}
	q := &Queue[T]{
		slots:    make([]T, capacity),
		capacity: uint32(capacity),
	}
	q.spaceCnd = sync.NewCond(&q.spaceMu)
	return q
}

// Cap returns the ring's command capacity.
func (q *Queue[T]) Cap() int { return int(q.capacity) }

// Enqueue implements the producer protocol: lock the producer mutex,
// wait for space, publish the record, wake the worker.
func (q *Queue[T]) Enqueue(cmd T) {
	q.producerMu.Lock()
	defer q.producerMu.Unlock()

	for {
		write := q.writeIdx.Load()
		read := q.readIdx.Load()
		if write-read < q.capacity {
			break
		}
		q.spaceMu.Lock()
		for q.writeIdx.Load()-q.readIdx.Load() >= q.capacity {
			q.spaceCnd.Wait()
		}
		q.spaceMu.Unlock()
	}

	write := q.writeIdx.Load()
	q.slots[write%q.capacity] = cmd
	q.writeIdx.Store(write + 1)

	// Checked after the publish: if the worker had caught up with the old
	// write index it may be parked on it, and a check made before the
	// store could miss a worker that drained the ring in between.
	if q.readIdx.Load() == write {
		waitaddr.WakeAll(&q.writeIdx)
	}
}

// Dequeue implements the consumer protocol: no lock, the worker parks
// on wait-on-address when the ring is empty.
func (q *Queue[T]) Dequeue() T {
	for {
		write := q.writeIdx.Load()
		read := q.readIdx.Load()
		if write != read {
			break
		}
		waitaddr.Wait(&q.writeIdx, write, waitaddr.Infinite)
	}

	read := q.readIdx.Load()
	cmd := q.slots[read%q.capacity]
	q.readIdx.Store(read + 1)

	// Checked after the store, so a producer that saw the ring full
	// before this dequeue is always signalled.
	if q.writeIdx.Load()-read == q.capacity {
		q.spaceMu.Lock()
		q.spaceCnd.Signal()
		q.spaceMu.Unlock()
	}
	return cmd
}

// TryDequeue is the non-blocking variant used by a draining worker that
// must not park: it returns (zero, false) instead of waiting.
func (q *Queue[T]) TryDequeue() (T, bool) {
	write := q.writeIdx.Load()
	read := q.readIdx.Load()
	if write == read {
		var zero T
		return zero, false
	}
	cmd := q.slots[read%q.capacity]
	q.readIdx.Store(read + 1)
	if q.writeIdx.Load()-read == q.capacity {
		q.spaceMu.Lock()
		q.spaceCnd.Signal()
		q.spaceMu.Unlock()
	}
	return cmd, true
}

// Len reports the number of commands currently queued. Approximate under
// concurrent producers; exact from the single consumer's point of view.
func (q *Queue[T]) Len() int {
	return int(q.writeIdx.Load() - q.readIdx.Load())
}
