// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package bufalloc

import "unsafe"

func alignRem(b []byte, page int) uintptr {
	if len(b) == 0 || page <= 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0])) % uintptr(page)
}

// acquirePool falls back to a plain heap allocation on platforms without
// mmap/mlock semantics reachable via golang.org/x/sys/unix; page
// alignment and RAM-locking guarantees are best-effort only here.
func acquirePool(size, page int) ([]byte, bool, error) {
	if page <= 0 {
		page = 4096
	}
	if size <= 0 {
		size = page
	}
	// Over-allocate by one page to carve out an aligned sub-slice.
	raw := make([]byte, size+page)
	off := 0
	if rem := int(alignRem(raw, page)); rem != 0 {
		off = page - rem
	}
	return raw[off : off+size : off+size], false, nil
}

func releasePool([]byte, bool) error { return nil }
