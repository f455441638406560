// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"code.hybscloud.com/udipe/internal/bufalloc"
	"code.hybscloud.com/udipe/internal/logging"
	"code.hybscloud.com/udipe/internal/sockio"
	"code.hybscloud.com/udipe/internal/topology"
)

// Config configures a Context: logging, allocator sizing, worker count,
// and the socket I/O capability. Built through functional options
// rather than a flag or env parser — parsing a static
// configuration format is left to the embedder.
type Config struct {
	logger              logging.Logger
	topology            topology.Lookup
	socketIO            sockio.IO
	workerCount         int
	perThreadBufferCfg  bufalloc.ConfigFunc
	allowMultithreading bool
	queuePageSize       int
}

// Option configures a Config.
type Option func(*Config)

// WithLogger supplies the Logger capability.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithTopology overrides the default cache-size lookup capability.
func WithTopology(t topology.Lookup) Option {
	return func(c *Config) { c.topology = t }
}

// WithSocketIO overrides the default socket I/O capability.
func WithSocketIO(io sockio.IO) Option {
	return func(c *Config) { c.socketIO = io }
}

// WithWorkerCount fixes the worker pool size. Zero (the default) means
// "topology-aware round robin, one worker per physical core".
func WithWorkerCount(n int) Option {
	return func(c *Config) { c.workerCount = n }
}

// WithBufferConfig supplies the per-thread buffer-sizing callback. A
// nil callback (the default) requests full auto-sizing.
func WithBufferConfig(fn bufalloc.ConfigFunc) Option {
	return func(c *Config) { c.perThreadBufferCfg = fn }
}

// WithAllowMultithreadingDefault sets the value ConnectOptions.AllowMultithreading
// takes when a caller leaves it false. A connect call can turn multithreading
// on when this default is off, but cannot turn it off when this default is on:
// a false field is treated as unset.
func WithAllowMultithreadingDefault(v bool) Option {
	return func(c *Config) { c.allowMultithreading = v }
}

// WithQueuePageSize overrides the memory-page size each worker's command
// queue is sized to fit. Defaults to the host page size.
func WithQueuePageSize(n int) Option {
	return func(c *Config) { c.queuePageSize = n }
}

func newConfig(opts []Option) Config {
	c := Config{}
	for _, o := range opts {
		o(&c)
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.topology == nil {
		c.topology = topology.NewDefault()
	}
	if c.socketIO == nil {
		c.socketIO = sockio.NewDefault()
	}
	if c.queuePageSize <= 0 {
		c.queuePageSize = c.topology.PageSize()
	}
	return c
}
