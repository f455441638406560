// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sharedopt_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/udipe/internal/sharedopt"
)

type connectOptsStub struct {
	localIface string
}

func TestAllocateLiberateSingleWorker(t *testing.T) {
	p := sharedopt.NewPool[connectOptsStub]()
	idx, payload := p.Allocate(1)
	payload.localIface = "eth0"

	if got := p.Payload(idx).localIface; got != "eth0" {
		t.Fatalf("payload not visible through index: %q", got)
	}
	p.Liberate(idx)

	// Slot must be reusable after full release.
	idx2, _ := p.Allocate(1)
	p.Liberate(idx2)
}

// TestRefcountSoundness checks that a slot's bit is set exactly when
// its refcount reaches zero, and that no slot is reused while any
// worker still references it.
func TestRefcountSoundness(t *testing.T) {
	p := sharedopt.NewPool[connectOptsStub]()
	const n = 4
	idx, _ := p.Allocate(n)

	var wg sync.WaitGroup
	released := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			p.Liberate(idx)
			released <- 1
		}()
	}
	wg.Wait()
	close(released)
	count := 0
	for range released {
		count++
	}
	if count != n {
		t.Fatalf("expected %d liberations observed, got %d", n, count)
	}

	// The slot must now be allocatable again — if it were double-freed
	// or freed early, a concurrent Allocate could have observed it free
	// while references were still outstanding above.
	idx2, _ := p.Allocate(1)
	p.Liberate(idx2)
}

func TestAllocateBlocksWhenExhausted(t *testing.T) {
	p := sharedopt.NewPool[connectOptsStub]()
	indices := make([]int, sharedopt.Slots)
	for i := range indices {
		idx, _ := p.Allocate(1)
		indices[i] = idx
	}

	done := make(chan struct{})
	go func() {
		idx, _ := p.Allocate(1)
		p.Liberate(idx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Allocate returned before any slot was freed")
	case <-time.After(30 * time.Millisecond):
	}

	p.Liberate(indices[0])

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Allocate did not unblock after a slot was freed")
	}

	for _, idx := range indices[1:] {
		p.Liberate(idx)
	}
}

func TestAbortFlagObservedAfterRelease(t *testing.T) {
	p := sharedopt.NewPool[connectOptsStub]()
	idx, _ := p.Allocate(2)
	if p.Aborted(idx) {
		t.Fatalf("new slot must not start aborted")
	}
	p.Abort(idx)
	if !p.Aborted(idx) {
		t.Fatalf("Abort must be observable via Aborted")
	}
	p.Liberate(idx)
	p.Liberate(idx)
}
