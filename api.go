// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

// This file is the public command surface: one StartK / K pair per
// command kind. Every synchronous K is Wait(StartK(...), indefinite),
// so only the asynchronous half does real work; when StartK returns an
// error instead of a future, K returns a Result with StatusSocketError.

// StartConnect submits a connect command and returns immediately.
// When opts.AllowMultithreading is set (or, if left at its default,
// the Context's WithAllowMultithreadingDefault is), the connect fans out
// to the full worker affinity set and the returned ConnID only becomes
// valid once every worker has committed.
func (ctx *Context) StartConnect(opts ConnectOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	if !opts.AllowMultithreading {
		opts.AllowMultithreading = ctx.cfg.allowMultithreading
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	f := newFuture()
	connID := ConnID(ctx.nextConnID.Add(1))

	if !opts.AllowMultithreading {
		slot, payload := ctx.opts.Allocate(1)
		*payload = opts
		w := ctx.pickWorker()
		w.queue.Enqueue(Command{kind: CommandConnect, future: f, connHandle: connID, sharedSlot: int32(slot)})
		return f, nil
	}

	affinity := ctx.pickAffinitySet()
	slot, payload := ctx.opts.Allocate(int32(len(affinity)))
	*payload = opts
	fanout := &connectFanout{
		future:  f,
		connID:  connID,
		slot:    slot,
		workers: affinity,
		allowMT: true,
	}
	fanout.remaining.Store(int32(len(affinity)))
	fanout.wg.Add(len(affinity))
	for _, id := range affinity {
		ctx.workers[id].queue.Enqueue(Command{kind: CommandConnect, future: f, connHandle: connID, sharedSlot: int32(slot), aux: fanout})
	}
	return f, nil
}

// Connect is the synchronous form of StartConnect.
func (ctx *Context) Connect(opts ConnectOptions) Result {
	f, err := ctx.StartConnect(opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}

// StartDisconnect submits a disconnect command.
func (ctx *Context) StartDisconnect(id ConnID, _ DisconnectOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	w, err := ctx.routeConnection(id)
	if err != nil {
		return nil, err
	}
	f := newFuture()
	w.queue.Enqueue(Command{kind: CommandDisconnect, future: f, connHandle: id})
	return f, nil
}

// Disconnect is the synchronous form of StartDisconnect.
func (ctx *Context) Disconnect(id ConnID, opts DisconnectOptions) Result {
	f, err := ctx.StartDisconnect(id, opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}

// StartSend submits a send command.
func (ctx *Context) StartSend(id ConnID, opts SendOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	w, err := ctx.routeConnection(id)
	if err != nil {
		return nil, err
	}
	f := newFuture()
	w.queue.Enqueue(Command{kind: CommandSend, future: f, connHandle: id, send: opts})
	return f, nil
}

// Send is the synchronous form of StartSend.
func (ctx *Context) Send(id ConnID, opts SendOptions) Result {
	f, err := ctx.StartSend(id, opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}

// StartRecv submits a recv command.
func (ctx *Context) StartRecv(id ConnID, opts RecvOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	w, err := ctx.routeConnection(id)
	if err != nil {
		return nil, err
	}
	f := newFuture()
	w.queue.Enqueue(Command{kind: CommandRecv, future: f, connHandle: id, recv: opts})
	return f, nil
}

// Recv is the synchronous form of StartRecv.
func (ctx *Context) Recv(id ConnID, opts RecvOptions) Result {
	f, err := ctx.StartRecv(id, opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}

// StartSendStream submits a send-stream command: the worker
// calls opts.Callback.OnProduce repeatedly until it reports cont=false.
func (ctx *Context) StartSendStream(id ConnID, opts StreamOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	w, err := ctx.routeConnection(id)
	if err != nil {
		return nil, err
	}
	f := newFuture()
	w.queue.Enqueue(Command{kind: CommandSendStream, future: f, connHandle: id, stream: opts})
	return f, nil
}

// SendStream is the synchronous form of StartSendStream.
func (ctx *Context) SendStream(id ConnID, opts StreamOptions) Result {
	f, err := ctx.StartSendStream(id, opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}

// StartRecvStream submits a recv-stream command: the worker
// calls opts.Callback.OnConsume for each received datagram until it
// reports cont=false.
func (ctx *Context) StartRecvStream(id ConnID, opts StreamOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	w, err := ctx.routeConnection(id)
	if err != nil {
		return nil, err
	}
	f := newFuture()
	w.queue.Enqueue(Command{kind: CommandRecvStream, future: f, connHandle: id, stream: opts})
	return f, nil
}

// RecvStream is the synchronous form of StartRecvStream.
func (ctx *Context) RecvStream(id ConnID, opts StreamOptions) Result {
	f, err := ctx.StartRecvStream(id, opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}

// StartReplyStream submits a reply-stream command: the worker
// alternates OnConsume/OnProduce until either reports cont=false.
func (ctx *Context) StartReplyStream(id ConnID, opts StreamOptions) (*Future, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	w, err := ctx.routeConnection(id)
	if err != nil {
		return nil, err
	}
	f := newFuture()
	w.queue.Enqueue(Command{kind: CommandReplyStream, future: f, connHandle: id, stream: opts})
	return f, nil
}

// ReplyStream is the synchronous form of StartReplyStream.
func (ctx *Context) ReplyStream(id ConnID, opts StreamOptions) Result {
	f, err := ctx.StartReplyStream(id, opts)
	if err != nil {
		return Result{Status: StatusSocketError}
	}
	return f.Wait(DurationInfinite)
}
