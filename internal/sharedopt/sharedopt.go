// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sharedopt implements the shared-options pool: a fixed
// 32-slot arena for oversized command options (connect options) that
// must be handed to several workers with reference-counted hand-off.
//
// The pool's availability bitmap is a plain sync/atomic.Uint32 rather
// than an atomix word: [waitaddr.Wait]/WakeOne take the raw address of
// the word they park on, so the word watched by wait-on-address must be
// exactly what the standard library's futex-adjacent primitives expect.
// Everything else in a slot (its refcount, its abort flag) is an atomix
// type, matching the rest of the core.
package sharedopt

import (
	"math/rand/v2"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/udipe/internal/waitaddr"
)

// Slots is the fixed pool size.
const Slots = 32

// Pool is a bounded, reference-counted arena of T, sized exactly Slots.
type Pool[T any] struct {
	availability atomic.Uint32 // bit i = 1 iff slot i is free
	slots        [Slots]slot[T]
}

type slot[T any] struct {
	_        pad
	payload  T
	refcount atomix.Int32
	aborted  atomix.Bool
	_        pad
}

type pad [64]byte

// NewPool creates a pool with every slot free.
func NewPool[T any]() *Pool[T] {
	p := &Pool[T]{}
	if Slots == 32 {
		p.availability.Store(0xFFFFFFFF)
	} else {
		p.availability.Store(uint32(1)<<uint(Slots) - 1)
	}
	return p
}

// Allocate reserves a slot for a connect command fanning out to n
// workers, blocking (via wait-on-address on the availability bitmap)
// until one is free. It returns the slot index and a pointer to its
// payload for the caller to populate before handing the index to workers.
func (p *Pool[T]) Allocate(n int32) (index int, payload *T) {
	for {
		bm := p.availability.Load()
		if bm == 0 {
			waitaddr.Wait(&p.availability, 0, waitaddr.Infinite)
			continue
		}

		idx, ok := p.pickRandomSetBit(bm)
		if !ok {
			continue
		}

		bit := uint32(1) << uint(idx)
		if !p.clearBit(bit) {
			continue // another client raced us for this slot; retry
		}

		// Go's atomic.Uint32 operations are sequentially consistent,
		// which subsumes the acquire fence needed here: this
		// CompareAndSwap synchronises-with the release store in
		// deallocate() that most recently set this bit.
		s := &p.slots[idx]
		s.aborted.StoreRelaxed(false)
		s.refcount.StoreRelease(n)
		return idx, &s.payload
	}
}

// clearBit attempts a relaxed fetch_and of ^bit on the availability
// word. Returns false if the bit was already clear (lost the race).
func (p *Pool[T]) clearBit(bit uint32) bool {
	for {
		old := p.availability.Load()
		if old&bit == 0 {
			return false
		}
		if p.availability.CompareAndSwap(old, old&^bit) {
			return true
		}
	}
}

func (p *Pool[T]) pickRandomSetBit(bm uint32) (int, bool) {
	count := popcount32(bm)
	if count == 0 {
		return -1, false
	}
	target := rand.IntN(count)
	for i := 0; i < Slots; i++ {
		if bm&(1<<uint(i)) == 0 {
			continue
		}
		if target == 0 {
			return i, true
		}
		target--
	}
	return -1, false
}

// Abort marks the slot as rolled back: workers that have not yet
// published success observe this flag (release-stored) and skip
// publication.
func (p *Pool[T]) Abort(index int) {
	p.slots[index].aborted.StoreRelease(true)
}

// Aborted reports whether the slot has been marked for rollback.
func (p *Pool[T]) Aborted(index int) bool {
	return p.slots[index].aborted.LoadAcquire()
}

// Liberate implements a worker's release of its reference to a slot:
// fast path when the worker can tell it is the sole remaining
// reference, slow path (fetch_sub) otherwise. Exactly one of the N
// releases observes refcount reaching zero and deallocates.
func (p *Pool[T]) Liberate(index int) {
	s := &p.slots[index]
	if s.refcount.LoadAcquire() == 1 {
		s.refcount.StoreRelease(0)
		p.deallocate(index)
		return
	}
	if s.refcount.AddAcqRel(-1) == 0 {
		p.deallocate(index)
	}
}

func (p *Pool[T]) deallocate(index int) {
	var zero T
	p.slots[index].payload = zero
	bit := uint32(1) << uint(index)
	for {
		old := p.availability.Load()
		if p.availability.CompareAndSwap(old, old|bit) {
			if old == 0 {
				waitaddr.WakeOne(&p.availability)
			}
			return
		}
	}
}

// Payload returns a pointer to the slot's payload without affecting its
// refcount, for a worker that already holds a reference.
func (p *Pool[T]) Payload(index int) *T {
	return &p.slots[index].payload
}

func popcount32(x uint32) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
