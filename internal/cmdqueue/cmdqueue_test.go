// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmdqueue_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/udipe/internal/cmdqueue"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := cmdqueue.New[int](256)
	for i := 0; i < q.Cap(); i++ {
		q.Enqueue(i)
	}
	for i := 0; i < q.Cap(); i++ {
		if got := q.Dequeue(); got != i {
			t.Fatalf("Dequeue() = %d, want %d", got, i)
		}
	}
}

// TestBackpressure checks the boundary scenario: at capacity, the next
// producer blocks; after one dequeue, exactly one producer is released.
func TestBackpressure(t *testing.T) {
	q := cmdqueue.New[int](256)
	for i := 0; i < q.Cap(); i++ {
		q.Enqueue(i)
	}

	released := make(chan struct{})
	go func() {
		q.Enqueue(q.Cap()) // capacity+1-th enqueue must block
		close(released)
	}()

	select {
	case <-released:
		t.Fatalf("Enqueue returned before any space was freed")
	case <-time.After(30 * time.Millisecond):
	}

	q.Dequeue()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("blocked Enqueue did not unblock after a Dequeue freed space")
	}
}

// TestFIFOPerProducer: for any two commands enqueued by one goroutine
// holding the producer lock once each, the worker dequeues them in
// submission order.
func TestFIFOPerProducer(t *testing.T) {
	q := cmdqueue.New[int](1024)
	const n = 500
	done := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			q.Enqueue(i)
		}
		close(done)
	}()

	for i := 0; i < n; i++ {
		if got := q.Dequeue(); got != i {
			t.Fatalf("out of order at %d: got %d", i, got)
		}
	}
	<-done
}

func TestMultipleProducersNoLoss(t *testing.T) {
	q := cmdqueue.New[int](2048)
	const producers = 8
	const perProducer = 200
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(base*perProducer + i)
			}
		}(p)
	}

	seen := make(map[int]bool, producers*perProducer)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		for i := 0; i < producers*perProducer; i++ {
			v := q.Dequeue()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}
		close(done)
	}()

	wg.Wait()
	<-done
	if len(seen) != producers*perProducer {
		t.Fatalf("expected %d distinct values, got %d", producers*perProducer, len(seen))
	}
}

func TestTryDequeueEmpty(t *testing.T) {
	q := cmdqueue.New[int](256)
	if _, ok := q.TryDequeue(); ok {
		t.Fatalf("TryDequeue on empty queue should report false")
	}
	q.Enqueue(7)
	v, ok := q.TryDequeue()
	if !ok || v != 7 {
		t.Fatalf("TryDequeue() = (%d,%v), want (7,true)", v, ok)
	}
}
