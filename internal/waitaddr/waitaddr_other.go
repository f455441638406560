// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package waitaddr

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Portable fallback for platforms without a futex syscall. No ecosystem
// library in the retrieval pack supplies a portable address-based park
// primitive, so this stripes a fixed table of sync.Mutex/sync.Cond pairs
// keyed by address identity, following the textbook "parking lot"
// construction. Lock-free on the fast path is not achievable this way;
// it is only used off the Linux hot path exercised in production.
const stripes = 256

type stripe struct {
	mu   sync.Mutex
	cond *sync.Cond
}

var table [stripes]stripe

func init() {
	for i := range table {
		table[i].cond = sync.NewCond(&table[i].mu)
	}
}

func stripeFor(addr *atomic.Uint32) *stripe {
	h := uintptr(unsafe.Pointer(addr))
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return &table[h%stripes]
}

func wait(addr *atomic.Uint32, expected uint32, timeout time.Duration) bool {
	s := stripeFor(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr.Load() != expected {
		return true
	}

	done := make(chan struct{})
	var timedOut atomic.Bool
	if timeout != Infinite {
		timer := time.AfterFunc(timeout, func() {
			timedOut.Store(true)
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		defer timer.Stop()
	}
	_ = done

	for addr.Load() == expected && !timedOut.Load() {
		s.cond.Wait()
	}
	return !timedOut.Load()
}

func wakeAll(addr *atomic.Uint32) {
	s := stripeFor(addr)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// wakeOne degrades to a broadcast: a stripe is shared by many addresses,
// so Signal could wake a waiter parked on a different address and leave
// every waiter on addr asleep.
func wakeOne(addr *atomic.Uint32) {
	s := stripeFor(addr)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}
