// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import "time"

// Duration is the public wire type for every timeout in the API: an
// unsigned 64-bit nanosecond count with three reserved values.
type Duration uint64

const (
	// DurationDefault (0) means "default per calling API"; callers at
	// the public boundary must translate it before it reaches the
	// wait-on-address primitive, which has no notion of "default".
	DurationDefault Duration = 0
	// DurationNonBlocking (1ns) means "check and return immediately".
	DurationNonBlocking Duration = 1
	// DurationInfinite means "block indefinitely".
	DurationInfinite Duration = 1<<64 - 1
)

// resolve translates DurationDefault into fallback, and converts to
// time.Duration for the wait-on-address primitive and net.Conn deadlines.
func (d Duration) resolve(fallback Duration) time.Duration {
	if d == DurationDefault {
		d = fallback
	}
	switch d {
	case DurationInfinite:
		return time.Duration(1<<63 - 1)
	case DurationNonBlocking:
		return 1 * time.Nanosecond
	default:
		return time.Duration(d)
	}
}
