// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/udipe/internal/logging"
)

// ErrWouldBlock is the would-block sentinel, an alias for [iox.ErrWouldBlock]
// for ecosystem consistency with the rest of the hybscloud stack. The
// shared-options pool and the buffer allocator do not return it: the pool
// blocks until a slot is free, and the allocator returns nil.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// Status is the closed set of result kinds a command's future can
// carry. Recoverable conditions are reported this way — not as a Go
// error crossing the command/future boundary — so the worker never
// aborts on a command-level failure and continues draining its queue.
type Status uint8

const (
	// StatusOK indicates the command completed successfully.
	StatusOK Status = iota
	// StatusPending is reported by a timed-out wait; the future remains usable.
	StatusPending
	// StatusTimeout indicates the command's own deadline (e.g. recv timeout) elapsed.
	StatusTimeout
	// StatusAddressFamilyMismatch indicates local/remote address families differ.
	StatusAddressFamilyMismatch
	// StatusInvalidDirection indicates direction is inconsistent with the
	// timeouts/buffer sizes set.
	StatusInvalidDirection
	// StatusBufferTooSmall indicates the caller's buffer could not hold the datagram.
	StatusBufferTooSmall
	// StatusSocketError indicates an OS-level socket failure; Result.Errno carries the code.
	StatusSocketError
	// StatusFeatureUnsupported indicates a requested feature (GRO/GSO/timestamping)
	// is unavailable on this OS/kernel.
	StatusFeatureUnsupported
	// StatusResourceExhausted indicates the worker found no free pool
	// buffer for the command; it does not retry.
	StatusResourceExhausted
)

// String renders the status as a lowercase, hyphenated tag.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPending:
		return "pending"
	case StatusTimeout:
		return "timeout"
	case StatusAddressFamilyMismatch:
		return "address-family-mismatch"
	case StatusInvalidDirection:
		return "invalid-direction"
	case StatusBufferTooSmall:
		return "buffer-too-small"
	case StatusSocketError:
		return "socket-error"
	case StatusFeatureUnsupported:
		return "feature-unsupported"
	case StatusResourceExhausted:
		return "resource-exhausted"
	default:
		return "unknown-status"
	}
}

// Sentinel errors surfaced by the public API before a command is even
// accepted (closed context, malformed options) — these never flow
// through a future, unlike Status above.
var (
	ErrContextClosed     = errors.New("udipe: context is finalised")
	ErrInvalidOptions    = errors.New("udipe: invalid command options")
	ErrConnectRolledBack = errors.New("udipe: connect fan-out rolled back")
)

// osExit is overridden in tests so fatal() is exercisable without
// killing the test binary.
var osExit = defaultOSExit

// fatal logs a descriptive message through the Logger capability and
// exits the process with a non-zero status.
func fatal(logger logging.Logger, err error) {
	logging.OrDefault(logger).Error("fatal error, exiting", "error", err)
	osExit(1)
}

func wrapf(component, format string, args ...any) error {
	return fmt.Errorf("udipe: %s: "+format, append([]any{component}, args...)...)
}
