// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"errors"
	"net"
	"syscall"
	"time"

	"code.hybscloud.com/udipe/internal/sockio"
)

// deadlineFrom converts a Duration into the absolute time.Time
// sock.SetDeadline expects; DurationInfinite maps to the zero Time,
// net.Conn's own spelling of "no deadline".
func deadlineFrom(d Duration) time.Time {
	resolved := d.resolve(DurationInfinite)
	if resolved == time.Duration(1<<63-1) {
		return time.Time{}
	}
	return time.Now().Add(resolved)
}

// errnoOf extracts the raw OS error code underneath a socket error, 0 if
// none is present.
func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

// connectErrorResult classifies a connect-time socket error into a Status.
func connectErrorResult(err error) Result {
	var unsupported *sockio.ErrUnsupportedFeature
	if errors.As(err, &unsupported) {
		return Result{Status: StatusFeatureUnsupported, Kind: CommandConnect}
	}
	return Result{Status: StatusSocketError, Kind: CommandConnect, Errno: errnoOf(err)}
}

// sendRecvErrorResult classifies a send/recv-time socket error: a
// net.Error reporting Timeout() maps to StatusTimeout, a
// feature-unsupported sentinel maps to StatusFeatureUnsupported,
// everything else is a generic socket error carrying the errno.
func sendRecvErrorResult(kind CommandKind, err error) Result {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Result{Status: StatusTimeout, Kind: kind}
	}
	var unsupported *sockio.ErrUnsupportedFeature
	if errors.As(err, &unsupported) {
		return Result{Status: StatusFeatureUnsupported, Kind: kind}
	}
	return Result{Status: StatusSocketError, Kind: kind, Errno: errnoOf(err)}
}
