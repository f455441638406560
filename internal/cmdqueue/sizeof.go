// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmdqueue

import "unsafe"

func sizeofApprox[T any](zero T) uintptr {
	return unsafe.Sizeof(zero)
}
