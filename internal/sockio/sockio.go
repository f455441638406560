// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sockio defines the socket I/O capability the worker loop
// consumes as an external collaborator: the actual socket/GRO/GSO
// syscalls live behind this interface, and the core only consumes a
// socket I/O capability.
package sockio

import (
	"net"
	"time"
)

// Direction mirrors a connect option's direction tri-state.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionInOut
)

// Tristate models the {default, true, false} toggles for GSO/GRO/timestamping.
type Tristate uint8

const (
	TristateDefault Tristate = iota
	TristateTrue
	TristateFalse
)

// Params is the subset of connect options a socket needs to be
// opened and configured. It is constructed from udipe.ConnectOptions by
// the worker loop; sockio never sees the shared-options slot itself.
type Params struct {
	Local, Remote  net.Addr // *net.UDPAddr of matching family
	Direction      Direction
	SendTimeout    time.Duration
	RecvTimeout    time.Duration
	SendBufferSize int
	RecvBufferSize int
	Priority       uint8
	GSO, GRO       Tristate
	Timestamping   Tristate
	GSOSegmentSize int
}

// Datagram is one I/O result: either a single UDP payload or, when GRO
// is active, a batch the kernel coalesced into one receive call.
type Datagram struct {
	Segments [][]byte // one element unless GRO produced a batch
}

// Socket is a single opened, configured UDP endpoint.
type Socket interface {
	// Send writes buf as one datagram (or, if GSO is active and buf is
	// longer than the negotiated segment size, as a GSO-segmented send).
	Send(buf []byte) (n int, err error)
	// Recv reads into buf, returning the datagram(s) received. With GRO
	// inactive, len(Datagram.Segments) == 1.
	Recv(buf []byte) (Datagram, error)
	// SetDeadline applies the configured send/recv timeouts.
	SetDeadline(t time.Time) error
	Close() error
}

// IO opens sockets. NewDefault returns the platform's default implementation.
type IO interface {
	Open(p Params) (Socket, error)
}

// ErrUnsupportedFeature is returned by Open/Send/Recv when the requested
// feature (e.g. GRO) is requested but the running kernel/platform lacks it.
type ErrUnsupportedFeature struct{ Feature string }

func (e *ErrUnsupportedFeature) Error() string {
	return "sockio: unsupported feature: " + e.Feature
}
