// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package waitaddr implements the 32-bit address-based park/unpark
// primitive that backs future completion and resource-availability
// signalling across the core.
//
// Wait performs the value check and the registration-to-wait transition
// as a single atomic transaction: no wakeup can be lost if the watched
// word changes between the caller's load and the park call. WakeAll is
// the default everywhere; WakeOne is an optimisation for serialised
// downstream resources only.
package waitaddr

import (
	"sync/atomic"
	"time"
)

// NonBlocking is the timeout value meaning "check and return immediately".
const NonBlocking = 1 * time.Nanosecond

// Infinite is the timeout value meaning "block until woken".
const Infinite = time.Duration(1<<63 - 1)

// Wait blocks the caller while *addr == expected, until another thread
// calls WakeAll/WakeOne on addr, the timeout elapses, or a spurious
// wakeup occurs.
//
// Returns true if the call may have observed a notification (the caller
// must re-check the watched state), false if it definitely timed out.
// A timeout of NonBlocking never parks: it degrades to a single load.
// A timeout of Infinite blocks until woken or spuriously resumed.
func Wait(addr *atomic.Uint32, expected uint32, timeout time.Duration) bool {
	if addr.Load() != expected {
		return true
	}
	if timeout <= NonBlocking {
		return addr.Load() != expected
	}
	return wait(addr, expected, timeout)
}

// WakeAll releases every thread currently parked on addr.
func WakeAll(addr *atomic.Uint32) {
	wakeAll(addr)
}

// WakeOne releases at least one thread parked on addr.
//
// Some platforms cannot distinguish a single waiter from the set and
// degrade this to WakeAll; callers must not depend on exactly-one
// semantics for correctness, only for avoiding a thundering herd.
func WakeOne(addr *atomic.Uint32) {
	wakeOne(addr)
}
