// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package sockio

import (
	"net"
	"time"
)

// plainUDP is the non-Linux fallback: a request for GSO, GRO,
// timestamping or a nonzero priority is reported as feature-unsupported,
// since none of them is applied on this platform.
type plainUDP struct{}

// NewDefault returns the default socket I/O capability for this platform.
func NewDefault() IO { return plainUDP{} }

func (plainUDP) Open(p Params) (Socket, error) {
	if p.GSO == TristateTrue || p.GRO == TristateTrue {
		return nil, &ErrUnsupportedFeature{Feature: "GSO/GRO"}
	}
	if p.Timestamping == TristateTrue {
		return nil, &ErrUnsupportedFeature{Feature: "timestamping"}
	}
	if p.Priority > 0 {
		return nil, &ErrUnsupportedFeature{Feature: "priority"}
	}
	local, _ := p.Local.(*net.UDPAddr)
	remote, _ := p.Remote.(*net.UDPAddr)

	var conn *net.UDPConn
	var err error
	if remote != nil {
		conn, err = net.DialUDP("udp", local, remote)
	} else {
		conn, err = net.ListenUDP("udp", local)
	}
	if err != nil {
		return nil, err
	}
	if p.SendBufferSize > 0 {
		_ = conn.SetWriteBuffer(p.SendBufferSize)
	}
	if p.RecvBufferSize > 0 {
		_ = conn.SetReadBuffer(p.RecvBufferSize)
	}
	return &plainSocket{conn: conn}, nil
}

type plainSocket struct{ conn *net.UDPConn }

func (s *plainSocket) Send(buf []byte) (int, error) { return s.conn.Write(buf) }

func (s *plainSocket) Recv(buf []byte) (Datagram, error) {
	n, err := s.conn.Read(buf)
	if err != nil {
		return Datagram{}, err
	}
	return Datagram{Segments: [][]byte{buf[:n]}}, nil
}

func (s *plainSocket) SetDeadline(t time.Time) error { return s.conn.SetDeadline(t) }
func (s *plainSocket) Close() error                  { return s.conn.Close() }
