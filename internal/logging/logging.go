// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logging wraps the Logger capability the core consumes as an
// external collaborator. The default implementation is
// [github.com/hashicorp/go-hclog]; callers may supply any hclog.Logger,
// including a no-op one.
package logging

import "github.com/hashicorp/go-hclog"

// Logger is the capability the core depends on for warnings and the
// descriptive message attached to a fatal exit.
type Logger = hclog.Logger

// Default returns a reasonably quiet leveled logger suitable for a
// library embedded in someone else's process.
func Default() Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "udipe",
		Level: hclog.Warn,
	})
}

// Null returns a logger that discards everything, for embedders that
// wire their own observability out-of-band.
func Null() Logger {
	return hclog.NewNullLogger()
}

// OrDefault returns l if non-nil, else Default().
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
