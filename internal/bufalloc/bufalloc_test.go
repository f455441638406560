// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bufalloc_test

import (
	"testing"

	"code.hybscloud.com/udipe/internal/bufalloc"
	"code.hybscloud.com/udipe/internal/logging"
	"code.hybscloud.com/udipe/internal/topology"
)

type fakeLookup struct{ l1, l2, page int }

func (f fakeLookup) L1(topology.CPUSet) int { return f.l1 }
func (f fakeLookup) L2(topology.CPUSet) int { return f.l2 }
func (f fakeLookup) PageSize() int          { return f.page }
func (f fakeLookup) Cores() []topology.CPUSet {
	return []topology.CPUSet{{0}}
}

// TestSizingFromCallback exercises a worked sizing example: callback
// returns (9216, 42) with page size 4096 → buffer_size rounds up to
// 12288, buffer_count stays 42.
func TestSizingFromCallback(t *testing.T) {
	lookup := fakeLookup{l1: 32 * 1024, l2: 2 * 1024 * 1024, page: 4096}
	cfg := func(topology.CPUSet) (int, int) { return 9216, 42 }

	a, err := bufalloc.New(logging.Null(), lookup, topology.CPUSet{0}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Finalize()

	if got := a.BufferSize(); got != 12288 {
		t.Fatalf("BufferSize() = %d, want 12288", got)
	}
	if got := a.BufferCount(); got != 42 {
		t.Fatalf("BufferCount() = %d, want 42", got)
	}

	bufs := make([][]byte, 0, 42)
	for i := 0; i < 42; i++ {
		b := a.Allocate()
		if b == nil {
			t.Fatalf("allocation %d unexpectedly returned nil", i)
		}
		bufs = append(bufs, b)
	}
	if b := a.Allocate(); b != nil {
		t.Fatalf("43rd allocation should return nil, got a buffer")
	}
	for _, b := range bufs {
		a.Liberate(b)
	}
}

// TestAllocateLiberateRoundTrip checks the round-trip law: an
// allocate/liberate sequence up to buffer_count never returns nil.
func TestAllocateLiberateRoundTrip(t *testing.T) {
	lookup := fakeLookup{l1: 32 * 1024, l2: 256 * 1024, page: 4096}
	a, err := bufalloc.New(logging.Null(), lookup, topology.CPUSet{0}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Finalize()

	n := a.BufferCount()
	for round := 0; round < 3; round++ {
		bufs := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			b := a.Allocate()
			if b == nil {
				t.Fatalf("round %d: allocation %d returned nil within capacity", round, i)
			}
			bufs = append(bufs, b)
		}
		for _, b := range bufs {
			a.Liberate(b)
		}
	}
}

func TestAutoSizingCapsAt64(t *testing.T) {
	lookup := fakeLookup{l1: 32 * 1024, l2: 64 * 1024 * 1024, page: 4096}
	a, err := bufalloc.New(logging.Null(), lookup, topology.CPUSet{0}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Finalize()
	if got := a.BufferCount(); got > bufalloc.MaxBuffers {
		t.Fatalf("BufferCount() = %d, must be capped at %d", got, bufalloc.MaxBuffers)
	}
}

func TestFinalizeFailsWithLiveBuffers(t *testing.T) {
	lookup := fakeLookup{l1: 32 * 1024, l2: 256 * 1024, page: 4096}
	a, err := bufalloc.New(logging.Null(), lookup, topology.CPUSet{0}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := a.Allocate()
	if b == nil {
		t.Fatalf("expected a free buffer")
	}
	if err := a.Finalize(); err == nil {
		t.Fatalf("expected Finalize to fail with a live buffer outstanding")
	}
	a.Liberate(b)
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize after liberation: %v", err)
	}
}
