// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package sockio

import (
	"encoding/binary"
	"net"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// udpGSOGRO is the default [IO], backed by net.UDPConn for the datagram
// path and golang.org/x/sys/unix for the GSO/GRO/timestamping/priority
// socket options that make up the "socket I/O" capability the core
// merely consumes.
type udpGSOGRO struct{}

// NewDefault returns the default Linux socket I/O capability.
func NewDefault() IO { return udpGSOGRO{} }

func (udpGSOGRO) Open(p Params) (Socket, error) {
	var conn *net.UDPConn
	var err error

	local, _ := p.Local.(*net.UDPAddr)
	remote, _ := p.Remote.(*net.UDPAddr)

	switch {
	case remote != nil:
		conn, err = net.DialUDP(udpNetwork(remote), local, remote)
	default:
		conn, err = net.ListenUDP(udpNetwork(local), local)
	}
	if err != nil {
		return nil, err
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = applySockopts(int(fd), p)
	})
	if ctrlErr != nil {
		_ = conn.Close()
		return nil, ctrlErr
	}
	if sockErr != nil {
		_ = conn.Close()
		return nil, sockErr
	}

	return &udpSocket{
		conn:           conn,
		gso:            p.GSO == TristateTrue,
		gro:            p.GRO == TristateTrue,
		gsoSegmentSize: p.GSOSegmentSize,
	}, nil
}

func udpNetwork(a *net.UDPAddr) string {
	if a != nil && a.IP.To4() == nil && a.IP.To16() != nil {
		return "udp6"
	}
	return "udp4"
}

func applySockopts(fd int, p Params) error {
	if p.SendBufferSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, p.SendBufferSize); err != nil {
			return err
		}
	}
	if p.RecvBufferSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, p.RecvBufferSize); err != nil {
			return err
		}
	}
	if p.Priority > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PRIORITY, int(p.Priority)); err != nil {
			return err
		}
	}
	if p.Timestamping == TristateTrue {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPNS, 1); err != nil {
			return &ErrUnsupportedFeature{Feature: "timestamping"}
		}
	}
	if p.GRO == TristateTrue {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_UDP, unix.UDP_GRO, 1); err != nil {
			return &ErrUnsupportedFeature{Feature: "GRO"}
		}
	}
	return nil
}

type udpSocket struct {
	conn           *net.UDPConn
	gso, gro       bool
	gsoSegmentSize int
}

func (s *udpSocket) Send(buf []byte) (int, error) {
	if !s.gso || s.gsoSegmentSize <= 0 || len(buf) <= s.gsoSegmentSize {
		return s.conn.Write(buf)
	}
	return s.sendGSO(buf)
}

// sendGSO writes buf in one sendmsg carrying a UDP_SEGMENT ancillary
// message, so the kernel splits it into gsoSegmentSize-byte datagrams
// instead of the caller issuing one syscall per segment.
func (s *udpSocket) sendGSO(buf []byte) (int, error) {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	oob := gsoControlMessage(s.gsoSegmentSize)
	var n int
	var sendErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		n, sendErr = unix.SendmsgN(int(fd), buf, oob, nil, 0)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return n, sendErr
}

// gsoControlMessage builds the cmsg that pairs with a sendmsg call to
// request UDP_SEGMENT kernel-side splitting at segmentSize bytes.
func gsoControlMessage(segmentSize int) []byte {
	oob := make([]byte, unix.CmsgSpace(2))
	h := (*unix.Cmsghdr)(unsafe.Pointer(&oob[0]))
	h.Level = unix.IPPROTO_UDP
	h.Type = unix.UDP_SEGMENT
	h.SetLen(unix.CmsgLen(2))
	binary.NativeEndian.PutUint16(oob[unix.CmsgLen(0):], uint16(segmentSize))
	return oob
}

func (s *udpSocket) Recv(buf []byte) (Datagram, error) {
	if !s.gro {
		n, err := s.conn.Read(buf)
		if err != nil {
			return Datagram{}, err
		}
		return Datagram{Segments: [][]byte{buf[:n]}}, nil
	}
	return s.recvGRO(buf)
}

// recvGRO reads one coalesced batch and, if the kernel attached a
// UDP_GRO cmsg reporting the per-datagram segment size, splits buf
// into that many segments. Without the cmsg (GRO coalesced nothing
// this call) the whole read is a single segment.
func (s *udpSocket) recvGRO(buf []byte) (Datagram, error) {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return Datagram{}, err
	}
	oob := make([]byte, unix.CmsgSpace(2))
	var n, oobn int
	var recvErr error
	ctrlErr := raw.Read(func(fd uintptr) bool {
		n, oobn, _, _, recvErr = unix.Recvmsg(int(fd), buf, oob, 0)
		return recvErr != unix.EAGAIN
	})
	if ctrlErr != nil {
		return Datagram{}, ctrlErr
	}
	if recvErr != nil {
		return Datagram{}, recvErr
	}
	segSize := groSegmentSize(oob[:oobn])
	if segSize <= 0 || segSize >= n {
		return Datagram{Segments: [][]byte{buf[:n]}}, nil
	}
	var segments [][]byte
	for off := 0; off < n; off += segSize {
		end := off + segSize
		if end > n {
			end = n
		}
		segments = append(segments, buf[off:end])
	}
	return Datagram{Segments: segments}, nil
}

// groSegmentSize parses a UDP_GRO ancillary message out of oob, returning
// the per-datagram size the kernel coalesced, or 0 if none is present.
func groSegmentSize(oob []byte) int {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0
	}
	for _, m := range msgs {
		if m.Header.Level == unix.IPPROTO_UDP && m.Header.Type == unix.UDP_GRO && len(m.Data) >= 2 {
			return int(binary.NativeEndian.Uint16(m.Data))
		}
	}
	return 0
}

func (s *udpSocket) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}
