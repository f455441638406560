// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/udipe/internal/waitaddr"
)

// Notifier states. A single "done" terminal value stands in for
// distinguishing which command finished: this repository's Result
// already carries everything a caller needs to know about what
// completed, so the notifier only needs to distinguish pending/done/
// invalid, not which of several command-ids finished.
const (
	notifierPending uint32 = 0
	notifierInvalid uint32 = 1
	notifierDone    uint32 = 2
)

// pad prevents false sharing between a Future's notifier and its result
// payload, and between adjacent Futures in a slice.
type futurePad [128]byte

// Result is the payload a worker writes before publishing a Future.
type Result struct {
	Status Status
	Kind   CommandKind
	N      int      // bytes transferred by send/recv
	Data   []byte   // datagram bytes for recv (a sub-slice of RecvOptions.Buffer)
	ConnID ConnID   // populated by a successful connect
	Errno  int      // raw OS error code when Status == StatusSocketError
}

// Future is the fixed-size completion slot a client receives from a
// StartK call. Ownership: created by the submitting client, written
// exactly once by a worker, read by any number of client threads, and
// returned to a free list after a successful wait.
type Future struct {
	_        futurePad
	notifier atomic.Uint32
	result   Result
	_        futurePad
}

var futurePool = sync.Pool{New: func() any { return &Future{} }}

// newFuture obtains a clean Future from the free list. This repository
// uses sync.Pool, the Go ecosystem's per-P free list, as the idiomatic
// stand-in for a thread-local free list.
func newFuture() *Future {
	f := futurePool.Get().(*Future)
	f.notifier.Store(notifierPending)
	f.result = Result{}
	return f
}

// Done reports whether the future has completed.
func (f *Future) Done() bool {
	return f.notifier.Load() != notifierPending
}

// Wait blocks until the future completes or timeout elapses. On
// timeout it returns a Result with Status == StatusPending and leaves
// the future usable — the caller may Wait again or let it complete
// asynchronously.
func (f *Future) Wait(timeout Duration) Result {
	budget := timeout.resolve(DurationInfinite)
	deadline := time.Now().Add(budget)
	if budget == time.Duration(1<<63-1) {
		deadline = time.Time{} // never
	}

	for {
		if n := f.notifier.Load(); n != notifierPending {
			return f.readAndRecycle()
		}

		remaining := waitaddr.Infinite
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				if n := f.notifier.Load(); n != notifierPending {
					return f.readAndRecycle()
				}
				return Result{Status: StatusPending}
			}
		}
		waitaddr.Wait(&f.notifier, notifierPending, remaining)
	}
}

// readAndRecycle reads the published payload (the acquire-load above
// already paired with the worker's release store) and, since this is a
// successful wait, recycles the future onto the free list.
func (f *Future) readAndRecycle() Result {
	r := f.result
	f.recycle()
	return r
}

func (f *Future) recycle() {
	f.notifier.Store(notifierInvalid)
	futurePool.Put(f)
}

// publish is called by the worker exactly once per command: write the
// payload, then release-publish the notifier, then wake every waiter.
// The non-pending store happens-after the payload writes.
func (f *Future) publish(r Result) {
	f.result = r
	f.notifier.Store(notifierDone)
	waitaddr.WakeAll(&f.notifier)
}
