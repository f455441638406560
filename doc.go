// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package udipe is an asynchronous, multi-worker UDP I/O engine.
//
// A Context owns a fixed pool of worker goroutines, each with its own
// bounded command queue and buffer pool. Client goroutines never touch a
// socket directly; instead they submit one of seven command kinds
// (connect, disconnect, send, recv, send-stream, recv-stream,
// reply-stream) and receive a *Future back immediately. A worker
// dequeues the command, performs the I/O, and publishes a Result into
// the future exactly once.
//
// # Asynchronous and synchronous forms
//
// Every command has two entry points: StartK submits the command and
// returns its Future without waiting; K is StartK followed by an
// unbounded Wait, for callers who have no use for overlap. Futures
// support individual waits with a timeout (Future.Wait), and collective
// waits across many in flight at once (WaitAll, WaitAny).
//
// # Connections
//
// Connect accepts a ConnectOptions describing local/remote addresses,
// direction, timeouts, buffer sizes, and the GSO/GRO/timestamping
// tristates. By default a connection is owned by exactly one worker,
// chosen round robin; setting AllowMultithreading fans the connect out
// to every worker, after which Send/Recv/stream commands against that
// ConnID are themselves round-robined across the owning set. A
// multithreaded connect either succeeds on every worker or is rolled
// back on every worker — there is no partially connected state visible
// to a caller.
//
// # Error handling
//
// Two tiers exist, deliberately kept apart. Pre-acceptance failures —
// a closed Context, malformed ConnectOptions — are reported as
// ordinary Go errors from the StartK call before a command ever reaches
// a queue. Everything that can go wrong once a command is accepted —
// a socket error, a timeout, an unsupported kernel feature, a resource
// shortage — is reported through Result.Status on the future, because a
// single command's failure must never abort a worker mid-drain. See
// Status for the full set of outcomes, and errors.go for the sentinel
// errors used at the pre-acceptance boundary.
//
// # Example
//
//	ctx, err := udipe.Initialise()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ctx.Finalise()
//
//	r := ctx.Connect(udipe.ConnectOptions{
//		Remote:    udipe.Address{IP: net.ParseIP("127.0.0.1"), Port: 9999},
//		Direction: udipe.DirectionInOut,
//	})
//	if r.Status != udipe.StatusOK {
//		log.Fatal(r.Status)
//	}
//	sendResult := ctx.Send(r.ConnID, udipe.SendOptions{Data: []byte("ping")})
//	_ = sendResult
package udipe
