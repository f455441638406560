// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/udipe/internal/bufalloc"
	"code.hybscloud.com/udipe/internal/cmdqueue"
	"code.hybscloud.com/udipe/internal/sockio"
)

// sockState is one worker's view of a connection it participates in:
// the opened socket and the direction/timeout knobs Send/Recv need
// without re-reading the (by then liberated) shared-options slot.
type sockState struct {
	sock        sockio.Socket
	direction   Direction
	sendTimeout Duration
	recvTimeout Duration
}

// connectFanout coordinates a multithreaded connect across every worker
// in the affinity set. Every participating worker calls attempt, then
// barrier, then either commits or rolls back its own socket — no worker
// ever touches another worker's sockets map.
type connectFanout struct {
	wg         sync.WaitGroup
	remaining  atomic.Int32 // starts at N; the worker that drives it to 0 publishes
	failed     atomic.Bool
	failResult atomic.Value // holds a Result, written by whichever worker fails first
	future     *Future
	connID     ConnID
	slot       int
	workers    []int
	allowMT    bool
}

// worker runs one command-processing loop: Idle (blocked in Dequeue),
// Executing (inside handle), and, after the shutdown sentinel, Stopped.
// There is no separate Draining state machine value: FIFO order
// through the single queue already guarantees every command submitted
// before shutdown completes before the sentinel is dequeued.
type worker struct {
	id      int
	ctx     *Context
	queue   *cmdqueue.Queue[Command]
	buf     *bufalloc.Allocator
	sockets map[ConnID]sockState
	stopped chan struct{}
}

func (w *worker) run() {
	defer close(w.stopped)
	for {
		cmd := w.queue.Dequeue()
		if cmd.kind == kindShutdown {
			w.drainRemaining()
			return
		}
		w.handle(cmd)
	}
}

// drainRemaining finishes whatever FIFO-preceding work is still queued
// behind the shutdown sentinel's own enqueue race window: Finalise
// enqueues shutdown after every client-visible call has returned, so in
// practice this only ever sees an empty queue, but a non-blocking sweep
// costs nothing and honors "completes outstanding work" defensively.
func (w *worker) drainRemaining() {
	for {
		cmd, ok := w.queue.TryDequeue()
		if !ok {
			return
		}
		if cmd.kind == kindShutdown {
			continue
		}
		w.handle(cmd)
	}
}

func (w *worker) handle(cmd Command) {
	switch cmd.kind {
	case CommandConnect:
		w.handleConnect(cmd)
	case CommandDisconnect:
		w.handleDisconnect(cmd)
	case CommandSend:
		w.handleSend(cmd)
	case CommandRecv:
		w.handleRecv(cmd)
	case CommandSendStream:
		w.handleSendStream(cmd)
	case CommandRecvStream:
		w.handleRecvStream(cmd)
	case CommandReplyStream:
		w.handleReplyStream(cmd)
	}
}

func (w *worker) handleConnect(cmd Command) {
	fanout, _ := cmd.aux.(*connectFanout)
	opts := w.ctx.opts.Payload(int(cmd.sharedSlot))

	params := sockio.Params{
		Local:          opts.Local.UDPAddr(),
		Remote:         opts.Remote.UDPAddr(),
		Direction:      opts.Direction,
		SendTimeout:    opts.SendTimeout.resolve(DurationInfinite),
		RecvTimeout:    opts.RecvTimeout.resolve(DurationInfinite),
		SendBufferSize: int(opts.SendBufferSize),
		RecvBufferSize: int(opts.RecvBufferSize),
		Priority:       opts.Priority,
		GSO:            opts.GSO,
		GRO:            opts.GRO,
		Timestamping:   opts.Timestamping,
		GSOSegmentSize: opts.GSOSegmentSize,
	}
	sock, err := w.ctx.cfg.socketIO.Open(params)

	if fanout == nil {
		// single-threaded connect: no barrier, no sibling to race with.
		if err != nil {
			w.ctx.opts.Liberate(int(cmd.sharedSlot))
			cmd.future.publish(connectErrorResult(err))
			return
		}
		w.sockets[cmd.connHandle] = sockState{sock: sock, direction: opts.Direction, sendTimeout: opts.SendTimeout, recvTimeout: opts.RecvTimeout}
		w.ctx.connMu.Lock()
		w.ctx.connections[cmd.connHandle] = &connRecord{workers: []int{w.id}, allowMultithreading: false}
		w.ctx.connMu.Unlock()
		w.ctx.opts.Liberate(int(cmd.sharedSlot))
		cmd.future.publish(Result{Status: StatusOK, Kind: CommandConnect, ConnID: cmd.connHandle})
		return
	}

	if err != nil {
		failResult := connectErrorResult(err)
		if fanout.failed.CompareAndSwap(false, true) {
			fanout.failResult.Store(failResult)
		}
		w.ctx.opts.Abort(fanout.slot)
	}
	fanout.wg.Done()
	fanout.wg.Wait()

	if fanout.failed.Load() {
		if err == nil {
			_ = sock.Close()
		}
	} else if err == nil {
		w.sockets[cmd.connHandle] = sockState{sock: sock, direction: opts.Direction, sendTimeout: opts.SendTimeout, recvTimeout: opts.RecvTimeout}
	}
	// Every participant drops its own reference to the N-ref slot, and
	// only the last one to finish its commit/rollback publishes.
	w.ctx.opts.Liberate(fanout.slot)

	if fanout.remaining.Add(-1) != 0 {
		return
	}
	if fanout.failed.Load() {
		r, _ := fanout.failResult.Load().(Result)
		r.Kind = CommandConnect
		fanout.future.publish(r)
		return
	}
	w.ctx.connMu.Lock()
	w.ctx.connections[fanout.connID] = &connRecord{workers: fanout.workers, allowMultithreading: fanout.allowMT}
	w.ctx.connMu.Unlock()
	fanout.future.publish(Result{Status: StatusOK, Kind: CommandConnect, ConnID: fanout.connID})
}

func (w *worker) handleDisconnect(cmd Command) {
	st, ok := w.sockets[cmd.connHandle]
	if ok {
		_ = st.sock.Close()
		delete(w.sockets, cmd.connHandle)
	}
	w.ctx.connMu.Lock()
	delete(w.ctx.connections, cmd.connHandle)
	w.ctx.connMu.Unlock()
	if cmd.future != nil {
		cmd.future.publish(Result{Status: StatusOK, Kind: CommandDisconnect, ConnID: cmd.connHandle})
	}
}

func (w *worker) handleSend(cmd Command) {
	st, ok := w.sockets[cmd.connHandle]
	if !ok {
		cmd.future.publish(Result{Status: StatusSocketError, Kind: CommandSend})
		return
	}
	if st.direction == DirectionIn {
		cmd.future.publish(Result{Status: StatusInvalidDirection, Kind: CommandSend})
		return
	}
	_ = st.sock.SetDeadline(deadlineFrom(st.sendTimeout))
	n, err := st.sock.Send(cmd.send.Data)
	if err != nil {
		cmd.future.publish(sendRecvErrorResult(CommandSend, err))
		return
	}
	cmd.future.publish(Result{Status: StatusOK, Kind: CommandSend, N: n, ConnID: cmd.connHandle})
}

func (w *worker) handleRecv(cmd Command) {
	st, ok := w.sockets[cmd.connHandle]
	if !ok {
		cmd.future.publish(Result{Status: StatusSocketError, Kind: CommandRecv})
		return
	}
	if st.direction == DirectionOut {
		cmd.future.publish(Result{Status: StatusInvalidDirection, Kind: CommandRecv})
		return
	}
	buf := w.buf.Allocate()
	if buf == nil {
		cmd.future.publish(Result{Status: StatusResourceExhausted, Kind: CommandRecv})
		return
	}
	defer w.buf.Liberate(buf)

	_ = st.sock.SetDeadline(deadlineFrom(st.recvTimeout))
	dg, err := st.sock.Recv(buf)
	if err != nil {
		cmd.future.publish(sendRecvErrorResult(CommandRecv, err))
		return
	}
	total := 0
	for _, seg := range dg.Segments {
		total += len(seg)
	}
	if total > len(cmd.recv.Buffer) {
		cmd.future.publish(Result{Status: StatusBufferTooSmall, Kind: CommandRecv, ConnID: cmd.connHandle})
		return
	}
	n := 0
	for _, seg := range dg.Segments {
		n += copy(cmd.recv.Buffer[n:], seg)
	}
	cmd.future.publish(Result{Status: StatusOK, Kind: CommandRecv, N: n, Data: cmd.recv.Buffer[:n], ConnID: cmd.connHandle})
}

func (w *worker) handleSendStream(cmd Command) {
	st, ok := w.sockets[cmd.connHandle]
	if !ok {
		cmd.future.publish(Result{Status: StatusSocketError, Kind: CommandSendStream})
		return
	}
	buf := w.buf.Allocate()
	if buf == nil {
		cmd.future.publish(Result{Status: StatusResourceExhausted, Kind: CommandSendStream})
		return
	}
	defer w.buf.Liberate(buf)

	for {
		n, cont := cmd.stream.Callback.OnProduce(buf)
		if n > 0 {
			_ = st.sock.SetDeadline(deadlineFrom(st.sendTimeout))
			if _, err := st.sock.Send(buf[:n]); err != nil {
				cmd.future.publish(sendRecvErrorResult(CommandSendStream, err))
				return
			}
		}
		if !cont {
			break
		}
	}
	cmd.future.publish(Result{Status: StatusOK, Kind: CommandSendStream, ConnID: cmd.connHandle})
}

func (w *worker) handleRecvStream(cmd Command) {
	st, ok := w.sockets[cmd.connHandle]
	if !ok {
		cmd.future.publish(Result{Status: StatusSocketError, Kind: CommandRecvStream})
		return
	}
	buf := w.buf.Allocate()
	if buf == nil {
		cmd.future.publish(Result{Status: StatusResourceExhausted, Kind: CommandRecvStream})
		return
	}
	defer w.buf.Liberate(buf)

	for {
		_ = st.sock.SetDeadline(deadlineFrom(st.recvTimeout))
		dg, err := st.sock.Recv(buf)
		if err != nil {
			cmd.future.publish(sendRecvErrorResult(CommandRecvStream, err))
			return
		}
		n := 0
		for _, seg := range dg.Segments {
			n += copy(buf[n:], seg)
		}
		if !cmd.stream.Callback.OnConsume(buf[:n]) {
			break
		}
	}
	cmd.future.publish(Result{Status: StatusOK, Kind: CommandRecvStream, ConnID: cmd.connHandle})
}

func (w *worker) handleReplyStream(cmd Command) {
	st, ok := w.sockets[cmd.connHandle]
	if !ok {
		cmd.future.publish(Result{Status: StatusSocketError, Kind: CommandReplyStream})
		return
	}
	inBuf := w.buf.Allocate()
	if inBuf == nil {
		cmd.future.publish(Result{Status: StatusResourceExhausted, Kind: CommandReplyStream})
		return
	}
	defer w.buf.Liberate(inBuf)
	outBuf := w.buf.Allocate()
	if outBuf == nil {
		cmd.future.publish(Result{Status: StatusResourceExhausted, Kind: CommandReplyStream})
		return
	}
	defer w.buf.Liberate(outBuf)

	for {
		_ = st.sock.SetDeadline(deadlineFrom(st.recvTimeout))
		dg, err := st.sock.Recv(inBuf)
		if err != nil {
			cmd.future.publish(sendRecvErrorResult(CommandReplyStream, err))
			return
		}
		n := 0
		for _, seg := range dg.Segments {
			n += copy(inBuf[n:], seg)
		}
		if !cmd.stream.Callback.OnConsume(inBuf[:n]) {
			break
		}
		outN, cont := cmd.stream.Callback.OnProduce(outBuf)
		if outN > 0 {
			_ = st.sock.SetDeadline(deadlineFrom(st.sendTimeout))
			if _, err := st.sock.Send(outBuf[:outN]); err != nil {
				cmd.future.publish(sendRecvErrorResult(CommandReplyStream, err))
				return
			}
		}
		if !cont {
			break
		}
	}
	cmd.future.publish(Result{Status: StatusOK, Kind: CommandReplyStream, ConnID: cmd.connHandle})
}
