// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"fmt"

	"code.hybscloud.com/udipe/internal/sockio"
)

// CommandKind enumerates the seven command kinds. kindAbsent
// is a distinguished sentinel used only for uninitialised ring slots and
// must never appear on an enqueued command — [Queue.Enqueue] callers
// never construct one directly, only via the StartK helpers in api.go.
type CommandKind uint8

const (
	kindAbsent CommandKind = iota
	CommandConnect
	CommandDisconnect
	CommandSend
	CommandRecv
	CommandSendStream
	CommandRecvStream
	CommandReplyStream
	// kindShutdown is an internal, never-public command a worker's queue
	// receives exactly once, from Finalise. Ordering through the same
	// queue as every other command is what gives drain its "completes
	// outstanding work first" guarantee: by the time a worker dequeues
	// it, every command submitted before Finalise was called has already
	// run.
	kindShutdown
)

func (k CommandKind) String() string {
	switch k {
	case CommandConnect:
		return "connect"
	case CommandDisconnect:
		return "disconnect"
	case CommandSend:
		return "send"
	case CommandRecv:
		return "recv"
	case CommandSendStream:
		return "send-stream"
	case CommandRecvStream:
		return "recv-stream"
	case CommandReplyStream:
		return "reply-stream"
	default:
		return "absent"
	}
}

// StreamCallback is the polymorphic capability a streaming command
// invokes on the worker thread. A send-stream command only calls
// OnProduce; a recv-stream command only calls OnConsume; a
// reply-stream command calls both. Implementations must be
// non-blocking, and — if the owning connection has AllowMultithreading
// set — thread-safe, since a multithreaded connection may invoke the
// same callback concurrently from more than one worker.
type StreamCallback interface {
	// OnConsume receives one datagram (or one GRO batch, concatenated
	// per-segment) and reports whether the stream should continue.
	OnConsume(datagram []byte) (cont bool)
	// OnProduce writes the next outgoing datagram into buf, returning
	// the number of bytes written and whether the stream should continue.
	OnProduce(buf []byte) (n int, cont bool)
}

// Tristate mirrors sockio.Tristate at the public boundary.
type Tristate = sockio.Tristate

const (
	TristateDefault = sockio.TristateDefault
	TristateTrue    = sockio.TristateTrue
	TristateFalse   = sockio.TristateFalse
)

// Direction mirrors sockio.Direction at the public boundary.
type Direction = sockio.Direction

const (
	DirectionIn    = sockio.DirectionIn
	DirectionOut   = sockio.DirectionOut
	DirectionInOut = sockio.DirectionInOut
)

// ConnectOptions is the oversized connect-options payload. It lives
// in a [sharedopt] slot, never inline in a Command, because it does
// not fit a command's false-sharing granule.
type ConnectOptions struct {
	Local, Remote      Address
	LocalInterface     string
	Direction          Direction
	SendTimeout        Duration
	RecvTimeout        Duration
	SendBufferSize     int64 // bytes, <= 2^31-1
	RecvBufferSize     int64 // bytes, <= 2^31-1
	Priority           uint8
	GSO, GRO           Tristate
	Timestamping       Tristate
	GSOSegmentSize     int
	AllowMultithreading bool
}

// Validate checks the invariants connect options must satisfy:
// matching address families, direction consistent with which
// timeouts/buffers are set, and GSOSegmentSize requiring GSO=true.
func (o *ConnectOptions) Validate() error {
	if !sameFamily(o.Local, o.Remote) {
		return fmt.Errorf("%w: local and remote address families differ", ErrInvalidOptions)
	}
	if o.SendBufferSize < 0 || o.SendBufferSize > 1<<31-1 {
		return fmt.Errorf("%w: send buffer size out of range", ErrInvalidOptions)
	}
	if o.RecvBufferSize < 0 || o.RecvBufferSize > 1<<31-1 {
		return fmt.Errorf("%w: recv buffer size out of range", ErrInvalidOptions)
	}
	switch o.Direction {
	case DirectionIn:
		if o.SendTimeout != DurationDefault || o.SendBufferSize != 0 {
			return fmt.Errorf("%w: direction=in must not set send timeout/buffer", ErrInvalidOptions)
		}
	case DirectionOut:
		if o.RecvTimeout != DurationDefault || o.RecvBufferSize != 0 {
			return fmt.Errorf("%w: direction=out must not set recv timeout/buffer", ErrInvalidOptions)
		}
	case DirectionInOut:
		// both directions' fields are legal.
	default:
		return fmt.Errorf("%w: unknown direction", ErrInvalidOptions)
	}
	if o.GSOSegmentSize != 0 && o.GSO != TristateTrue {
		return fmt.Errorf("%w: nonzero GSO segment size requires GSO=true", ErrInvalidOptions)
	}
	return nil
}

// DisconnectOptions carries nothing beyond the connection handle, which
// Command.connHandle already holds.
type DisconnectOptions struct{}

// SendOptions is the inline (non-oversized) payload for a send command.
type SendOptions struct {
	Data []byte
}

// RecvOptions is the inline payload for a recv command.
type RecvOptions struct {
	Buffer []byte // caller-supplied destination
}

// StreamOptions is the inline payload shared by the three streaming
// command kinds.
type StreamOptions struct {
	Callback StreamCallback
}

// Command is the fixed-size record delivered to a worker together with
// its completion slot. Go has no raw union, so the oversized connect
// payload is never inlined here — it lives in the shared-options pool
// and is referenced by sharedSlot. The hot fields (kind, future) come
// first so the tag lands within the first cache line.
type Command struct {
	kind       CommandKind
	future     *Future
	connHandle ConnID
	sharedSlot int32 // index into the context's sharedopt pool; only CommandConnect sets it
	send       SendOptions
	recv       RecvOptions
	stream     StreamOptions
	aux        any // *connectFanout for CommandConnect, nil otherwise
}
