// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package bufalloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// acquirePool implements the real-time-allocate primitive:
// page-aligned (mmap always returns page-aligned regions),
// pre-faulted (MAP_POPULATE), best-effort locked into RAM (mlock).
//
// A failure to lock is not fatal; a failure to allocate is, and is
// surfaced as an error for the caller to treat as fatal.
func acquirePool(size, _ int) (pool []byte, locked bool, err error) {
	if size <= 0 {
		size = unix.Getpagesize()
	}
	mem, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_POPULATE)
	if err != nil {
		return nil, false, fmt.Errorf("bufalloc: mmap failed: %w", err)
	}
	if err := unix.Mlock(mem); err != nil {
		return mem, false, nil
	}
	return mem, true, nil
}

func releasePool(pool []byte, locked bool) error {
	if len(pool) == 0 {
		return nil
	}
	if locked {
		_ = unix.Munlock(pool)
	}
	return unix.Munmap(pool)
}
