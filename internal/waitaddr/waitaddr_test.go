// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package waitaddr_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/udipe/internal/waitaddr"
)

func TestWaitNonBlockingReturnsImmediately(t *testing.T) {
	var addr atomic.Uint32
	start := time.Now()
	ok := waitaddr.Wait(&addr, 0, waitaddr.NonBlocking)
	if ok {
		t.Fatalf("expected false: value still equals expected, so a nonblocking wait times out at once")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("NonBlocking wait took too long: %v", elapsed)
	}
}

func TestWaitReturnsImmediatelyWhenValueAlreadyChanged(t *testing.T) {
	var addr atomic.Uint32
	addr.Store(1)
	if !waitaddr.Wait(&addr, 0, waitaddr.Infinite) {
		t.Fatalf("expected true: value already differs from expected")
	}
}

func TestWaitTimesOut(t *testing.T) {
	var addr atomic.Uint32
	start := time.Now()
	ok := waitaddr.Wait(&addr, 0, 20*time.Millisecond)
	if ok {
		t.Fatalf("expected timeout (false), got true")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

// TestNoLostWakeup checks the no-lost-wakeup property: a wait issued
// before a store+wake must observe the wake, however narrow the race
// window.
func TestNoLostWakeup(t *testing.T) {
	for i := 0; i < 200; i++ {
		var addr atomic.Uint32
		var wg sync.WaitGroup
		wg.Add(1)

		ready := make(chan struct{})
		go func() {
			defer wg.Done()
			close(ready)
			if !waitaddr.Wait(&addr, 0, waitaddr.Infinite) {
				t.Errorf("waiter reported timeout despite infinite timeout")
			}
		}()

		<-ready
		time.Sleep(time.Millisecond)
		addr.Store(1)
		waitaddr.WakeAll(&addr)
		wg.Wait()
	}
}

func TestWakeOneReleasesAtLeastOne(t *testing.T) {
	var addr atomic.Uint32
	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	released := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			waitaddr.Wait(&addr, 0, waitaddr.Infinite)
			released <- struct{}{}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	addr.Store(1)
	waitaddr.WakeOne(&addr)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("WakeOne released no waiter within timeout")
	}
	addr.Store(2)
	waitaddr.WakeAll(&addr)
	wg.Wait()
}
