// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package waitaddr

import "code.hybscloud.com/udipe/internal/logging"

// logger receives the descriptive message a futex contract violation
// logs before the process exits. SetLogger lets Initialise propagate
// the caller's configured Logger down to this package, which otherwise
// has no path back to the Context that owns it.
var logger logging.Logger = logging.Default()

// SetLogger overrides the Logger used by this package's fatal path.
func SetLogger(l logging.Logger) {
	logger = logging.OrDefault(l)
}

// osExit is overridden in tests so fatal is exercisable without killing
// the test binary.
var osExit = defaultOSExit

// fatal logs a descriptive message and exits the process: a futex
// syscall returning anything other than a transient race or a timeout
// means the kernel contract this package depends on has been violated,
// which is unrecoverable.
func fatal(message string) {
	logger.Error(message)
	osExit(1)
}
