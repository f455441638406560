// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/udipe/internal/logging"
	"code.hybscloud.com/udipe/internal/sockio"
	"code.hybscloud.com/udipe/internal/topology"
)

// errFakeOpenFailed simulates an ordinary socket-open failure (not a
// feature-unsupported one), so StatusSocketError is the expected
// classification wherever fakeIO is told to fail an Open call.
var errFakeOpenFailed = errors.New("fake: socket open failed")

// fakeTopology reports n single-CPU cores and otherwise conservative
// defaults, so tests can pin down the worker count deterministically.
type fakeTopology struct{ n int }

func (fakeTopology) L1(topology.CPUSet) int    { return 32 * 1024 }
func (fakeTopology) L2(topology.CPUSet) int    { return 256 * 1024 }
func (fakeTopology) PageSize() int             { return 4096 }
func (f fakeTopology) Cores() []topology.CPUSet {
	cores := make([]topology.CPUSet, f.n)
	for i := range cores {
		cores[i] = topology.CPUSet{i}
	}
	return cores
}

// fakeTimeout is the net.Error a fake socket's Recv returns once its
// deadline elapses with nothing delivered.
type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "fake: i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

// fakeRegistry is the in-memory rendezvous a pair of fake sockets uses
// in place of a real kernel UDP stack: one buffered inbox per local
// address string.
type fakeRegistry struct {
	mu      sync.Mutex
	inboxes map[string]chan []byte
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{inboxes: make(map[string]chan []byte)}
}

func (r *fakeRegistry) inbox(addr string) chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.inboxes[addr]
	if !ok {
		ch = make(chan []byte, 16)
		r.inboxes[addr] = ch
	}
	return ch
}

// fakeIO opens fakeSockets wired through a shared registry. failOn, if
// non-empty, names the 1-based Open call indices that should fail —
// enough to simulate one worker's connect failing mid fan-out.
type fakeIO struct {
	reg      *fakeRegistry
	calls    atomic.Int64
	failOn   map[int64]bool
	opened   []*fakeSocket
	openedMu sync.Mutex
}

func (f *fakeIO) Open(p sockio.Params) (sockio.Socket, error) {
	n := f.calls.Add(1)
	if f.failOn[n] {
		return nil, errFakeOpenFailed
	}
	local := ""
	if p.Local != nil {
		local = p.Local.String()
	}
	remote := ""
	if p.Remote != nil {
		remote = p.Remote.String()
	}
	s := &fakeSocket{reg: f.reg, local: local, remote: remote}
	f.openedMu.Lock()
	f.opened = append(f.opened, s)
	f.openedMu.Unlock()
	return s, nil
}

type fakeSocket struct {
	reg           *fakeRegistry
	local, remote string
	deadline      time.Time
	closed        atomic.Bool
}

func (s *fakeSocket) Send(buf []byte) (int, error) {
	cp := append([]byte(nil), buf...)
	select {
	case s.reg.inbox(s.remote) <- cp:
		return len(buf), nil
	default:
		return 0, &sockio.ErrUnsupportedFeature{Feature: "fake-inbox-full"}
	}
}

func (s *fakeSocket) Recv(buf []byte) (sockio.Datagram, error) {
	var timeout <-chan time.Time
	if !s.deadline.IsZero() {
		d := time.Until(s.deadline)
		if d <= 0 {
			return sockio.Datagram{}, fakeTimeout{}
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case data := <-s.reg.inbox(s.local):
		return sockio.Datagram{Segments: [][]byte{data}}, nil
	case <-timeout:
		return sockio.Datagram{}, fakeTimeout{}
	}
}

func (s *fakeSocket) SetDeadline(t time.Time) error { s.deadline = t; return nil }
func (s *fakeSocket) Close() error                  { s.closed.Store(true); return nil }

func testOptions(extra ...Option) []Option {
	base := []Option{
		WithTopology(fakeTopology{n: 1}),
		WithLogger(logging.Null()),
	}
	return append(base, extra...)
}

// TestLoopbackEcho connects two endpoints, sends from one, and recvs
// on the other.
func TestLoopbackEcho(t *testing.T) {
	reg := newFakeRegistry()
	io := &fakeIO{reg: reg}

	ctx, err := Initialise(testOptions(WithSocketIO(io))...)
	if err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer ctx.Finalise()

	a := addr("127.0.0.1", 9001)
	b := addr("127.0.0.1", 9002)

	ra := ctx.Connect(ConnectOptions{Local: a, Remote: b, Direction: DirectionInOut})
	if ra.Status != StatusOK {
		t.Fatalf("connect a: %v", ra.Status)
	}
	rb := ctx.Connect(ConnectOptions{Local: b, Remote: a, Direction: DirectionInOut})
	if rb.Status != StatusOK {
		t.Fatalf("connect b: %v", rb.Status)
	}

	sr := ctx.Send(ra.ConnID, SendOptions{Data: []byte("ping")})
	if sr.Status != StatusOK || sr.N != 4 {
		t.Fatalf("send: %+v", sr)
	}

	buf := make([]byte, 64)
	rr := ctx.Recv(rb.ConnID, RecvOptions{Buffer: buf})
	if rr.Status != StatusOK || string(buf[:rr.N]) != "ping" {
		t.Fatalf("recv: %+v %q", rr, buf[:rr.N])
	}
}

// TestRecvTimeout checks that a recv on a connection with nothing
// delivered reports StatusTimeout.
func TestRecvTimeout(t *testing.T) {
	reg := newFakeRegistry()
	io := &fakeIO{reg: reg}

	ctx, err := Initialise(testOptions(WithSocketIO(io))...)
	if err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer ctx.Finalise()

	a := addr("127.0.0.1", 9101)
	b := addr("127.0.0.1", 9102)
	r := ctx.Connect(ConnectOptions{
		Local: a, Remote: b, Direction: DirectionInOut,
		RecvTimeout: Duration(20 * time.Millisecond),
	})
	if r.Status != StatusOK {
		t.Fatalf("connect: %v", r.Status)
	}

	buf := make([]byte, 64)
	rr := ctx.Recv(r.ConnID, RecvOptions{Buffer: buf})
	if rr.Status != StatusTimeout {
		t.Fatalf("want StatusTimeout, got %+v", rr)
	}
}

// TestWaitAllTimeout checks that a collective wait with a tighter
// deadline than any pending recv reports incompletion without losing
// track of which futures are still outstanding.
func TestWaitAllTimeout(t *testing.T) {
	reg := newFakeRegistry()
	io := &fakeIO{reg: reg}

	ctx, err := Initialise(testOptions(WithSocketIO(io))...)
	if err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer ctx.Finalise()

	a := addr("127.0.0.1", 9201)
	b := addr("127.0.0.1", 9202)
	r := ctx.Connect(ConnectOptions{
		Local: a, Remote: b, Direction: DirectionInOut,
		RecvTimeout: Duration(500 * time.Millisecond),
	})
	if r.Status != StatusOK {
		t.Fatalf("connect: %v", r.Status)
	}

	buf := make([]byte, 64)
	f, err := ctx.StartRecv(r.ConnID, RecvOptions{Buffer: buf})
	if err != nil {
		t.Fatalf("StartRecv: %v", err)
	}

	done, results := WaitAll([]*Future{f}, Duration(10*time.Millisecond))
	if done {
		t.Fatalf("expected WaitAll to report incomplete")
	}
	if results[0].Status != StatusPending {
		t.Fatalf("want StatusPending, got %+v", results[0])
	}
}

// TestConnectFanoutRollback checks that when one worker in a
// multithreaded connect's affinity set fails to open its socket, every
// worker rolls back and the caller sees a single failure result.
func TestConnectFanoutRollback(t *testing.T) {
	reg := newFakeRegistry()
	io := &fakeIO{reg: reg, failOn: map[int64]bool{2: true}}

	ctx, err := Initialise(testOptions(WithWorkerCount(3), WithSocketIO(io))...)
	if err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer ctx.Finalise()

	a := addr("127.0.0.1", 9301)
	b := addr("127.0.0.1", 9302)
	r := ctx.Connect(ConnectOptions{
		Local: a, Remote: b, Direction: DirectionInOut,
		AllowMultithreading: true,
	})
	if r.Status != StatusSocketError {
		t.Fatalf("want StatusSocketError, got %+v", r)
	}

	if _, err := ctx.routeConnection(r.ConnID); err == nil {
		t.Fatalf("expected no connection to be registered after rollback")
	}

	io.openedMu.Lock()
	defer io.openedMu.Unlock()
	for _, s := range io.opened {
		if !s.closed.Load() {
			t.Fatalf("socket opened during a failed fan-out was never rolled back")
		}
	}
}

// TestConnectFanoutSuccess covers the success path of the same
// scenario: every worker commits and the connection is usable from any
// of them.
func TestConnectFanoutSuccess(t *testing.T) {
	reg := newFakeRegistry()
	io := &fakeIO{reg: reg}

	ctx, err := Initialise(testOptions(WithWorkerCount(3), WithSocketIO(io))...)
	if err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	defer ctx.Finalise()

	a := addr("127.0.0.1", 9401)
	b := addr("127.0.0.1", 9402)
	ra := ctx.Connect(ConnectOptions{Local: a, Remote: b, Direction: DirectionInOut, AllowMultithreading: true})
	if ra.Status != StatusOK {
		t.Fatalf("connect a: %+v", ra)
	}
	rb := ctx.Connect(ConnectOptions{Local: b, Remote: a, Direction: DirectionInOut})
	if rb.Status != StatusOK {
		t.Fatalf("connect b: %+v", rb)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.Send(ra.ConnID, SendOptions{Data: []byte("x")})
		}()
	}
	wg.Wait()

	buf := make([]byte, 8)
	got := 0
	for got < 6 {
		rr := ctx.Recv(rb.ConnID, RecvOptions{Buffer: buf})
		if rr.Status != StatusOK {
			t.Fatalf("recv: %+v", rr)
		}
		got += rr.N
	}
}

func addr(ip string, port uint16) Address {
	return Address{IP: net.ParseIP(ip), Port: port}
}
