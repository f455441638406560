// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package waitaddr

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// wait parks on the Linux futex backing addr. A transient EINTR or
// spurious EAGAIN/EWOULDBLOCK race is indistinguishable from a real
// wakeup to the caller and requires no special handling; any other
// errno is a futex contract violation and is fatal.
func wait(addr *atomic.Uint32, expected uint32, timeout time.Duration) bool {
	var ts *unix.Timespec
	if timeout != Infinite {
		if timeout < 0 {
			timeout = 0
		}
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	ptr := (*uint32)(unsafe.Pointer(addr))
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(ptr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expected),
		uintptr(unsafe.Pointer(ts)),
		0, 0,
	)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return true
	case unix.ETIMEDOUT:
		return false
	default:
		fatal("waitaddr: futex wait contract violation: " + errno.Error())
		return false
	}
}

func wakeAll(addr *atomic.Uint32) {
	futexWake(addr, 1<<31-1)
}

func wakeOne(addr *atomic.Uint32) {
	futexWake(addr, 1)
}

func futexWake(addr *atomic.Uint32, n uintptr) {
	ptr := (*uint32)(unsafe.Pointer(addr))
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(ptr)),
		uintptr(unix.FUTEX_WAKE),
		n,
		0, 0, 0,
	)
	if errno != 0 {
		fatal("waitaddr: futex wake contract violation: " + errno.Error())
	}
}
