// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/udipe/internal/bufalloc"
	"code.hybscloud.com/udipe/internal/cmdqueue"
	"code.hybscloud.com/udipe/internal/logging"
	"code.hybscloud.com/udipe/internal/sharedopt"
	"code.hybscloud.com/udipe/internal/topology"
	"code.hybscloud.com/udipe/internal/waitaddr"
)

// ConnID is the opaque handle a successful connect command returns.
// Internally it indexes nothing by itself; Context.connections
// resolves it to the owning worker set.
type ConnID uint64

// Context aggregates the connect-option pool, the worker handles, each
// worker's queue, and the dispatch policy. Created by Initialise,
// destroyed by Finalise.
type Context struct {
	cfg     Config
	opts    *sharedopt.Pool[ConnectOptions]
	workers []*worker

	rrCounter atomic.Uint64 // round-robin dispatch counter

	connMu      sync.Mutex
	connections map[ConnID]*connRecord
	nextConnID  atomic.Uint64

	closed atomic.Bool
}

// connRecord is dispatch metadata for one live connection: which
// workers own it, and whether commands may be routed to any of them.
type connRecord struct {
	workers             []int
	allowMultithreading bool
	nextWorker          atomic.Uint64 // round-robin among owning workers
}

// Initialise creates a Context: reads logging/allocator config, spawns
// workers (topology-aware round robin, one per physical core, unless
// WithWorkerCount overrides it), allocates per-worker queues and buffer
// pools, and the shared-options pool.
func Initialise(opts ...Option) (*Context, error) {
	cfg := newConfig(opts)
	waitaddr.SetLogger(cfg.logger)

	cores := cfg.topology.Cores()
	n := cfg.workerCount
	if n <= 0 {
		n = len(cores)
		if n == 0 {
			n = 1
		}
	}

	ctx := &Context{
		cfg:         cfg,
		opts:        sharedopt.NewPool[ConnectOptions](),
		connections: make(map[ConnID]*connRecord),
	}

	for i := 0; i < n; i++ {
		cpus := topology.CPUSet{i}
		if i < len(cores) {
			cpus = cores[i]
		}
		buf, err := bufallocNew(cfg, cpus)
		if err != nil {
			ctx.shutdownPartial(i)
			err = wrapf("initialise", "worker %d: %v", i, err)
			fatal(cfg.logger, err)
			return nil, err
		}
		w := &worker{
			id:      i,
			ctx:     ctx,
			queue:   cmdqueue.New[Command](cfg.queuePageSize),
			buf:     buf,
			sockets: make(map[ConnID]sockState),
			stopped: make(chan struct{}),
		}
		ctx.workers = append(ctx.workers, w)
		go w.run()
	}

	return ctx, nil
}

// Finalise broadcasts shutdown to every worker, waits for drain, joins
// workers, and liberates pools. After this call starts, no public API
// call may be made with this context.
func (ctx *Context) Finalise() error {
	if !ctx.closed.CompareAndSwap(false, true) {
		return ErrContextClosed
	}
	for _, w := range ctx.workers {
		w.queue.Enqueue(Command{kind: kindShutdown})
	}
	var firstErr error
	for _, w := range ctx.workers {
		<-w.stopped
		if err := w.buf.Finalize(); err != nil {
			fatal(ctx.cfg.logger, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (ctx *Context) shutdownPartial(spawned int) {
	for i := 0; i < spawned; i++ {
		ctx.workers[i].queue.Enqueue(Command{kind: kindShutdown})
		<-ctx.workers[i].stopped
		_ = ctx.workers[i].buf.Finalize()
	}
}

func (ctx *Context) checkOpen() error {
	if ctx.closed.Load() {
		return ErrContextClosed
	}
	return nil
}

// pickWorker implements the default round-robin dispatch policy.
func (ctx *Context) pickWorker() *worker {
	i := ctx.rrCounter.Add(1) - 1
	return ctx.workers[int(i%uint64(len(ctx.workers)))]
}

// pickAffinitySet returns the full worker set: the simplest concrete
// affinity-set policy when no finer-grained affinity is configured. A
// multithreaded connection fans out to every worker in it; a
// single-threaded one is routed to one worker chosen round robin from
// it.
func (ctx *Context) pickAffinitySet() []int {
	ids := make([]int, len(ctx.workers))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// routeConnection resolves which worker owns (or, for a multithreaded
// connection, should next receive) a command for an existing connection.
func (ctx *Context) routeConnection(id ConnID) (*worker, error) {
	ctx.connMu.Lock()
	rec, ok := ctx.connections[id]
	ctx.connMu.Unlock()
	if !ok {
		return nil, wrapf("dispatch", "unknown connection %d", id)
	}
	if !rec.allowMultithreading || len(rec.workers) == 1 {
		return ctx.workers[rec.workers[0]], nil
	}
	i := rec.nextWorker.Add(1) - 1
	return ctx.workers[rec.workers[int(i%uint64(len(rec.workers)))]], nil
}

func bufallocNew(cfg Config, cpus topology.CPUSet) (*bufalloc.Allocator, error) {
	return bufalloc.New(logging.OrDefault(cfg.logger), cfg.topology, cpus, cfg.perThreadBufferCfg)
}
