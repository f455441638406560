// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"time"

	"code.hybscloud.com/spin"
)

// WaitAll awaits every future in futures, up to timeout.
// Returns true iff every future completed in time; on a false return,
// every completed future has already been consumed (and is no longer in
// futures' backing Future objects' usable state from the caller's
// perspective — callers should not Wait on it again), and every future
// still pending remains usable.
func WaitAll(futures []*Future, timeout Duration) (bool, []Result) {
	budget := timeout.resolve(DurationInfinite)
	deadline := time.Now().Add(budget)
	infinite := budget == time.Duration(1<<63-1)

	results := make([]Result, len(futures))
	allDone := true
	for i, f := range futures {
		if f == nil {
			results[i] = Result{Status: StatusPending}
			allDone = false
			continue
		}
		var remaining Duration
		if infinite {
			remaining = DurationInfinite
		} else {
			left := time.Until(deadline)
			if left <= 0 {
				if !f.Done() {
					results[i] = Result{Status: StatusPending}
					allDone = false
					continue
				}
				left = 0
			}
			remaining = Duration(left)
		}
		r := f.Wait(remaining)
		results[i] = r
		if r.Status == StatusPending {
			allDone = false
		}
	}
	return allDone, results
}

// WaitAny waits for at least one future in futures to complete, up to
// timeout. Returns the number completed and, if positions is
// non-nil and has capacity, fills it with their indices in completion
// order.
//
// Go's wait-on-address primitive has no descriptor form to hand to a
// poller, so this implementation scans repeatedly with
// code.hybscloud.com/spin's bounded-spin backoff between scans — the
// same trade-off a lock-free queue makes while waiting out a contended
// CAS loop, applied here to a contended set of futures.
func WaitAny(futures []*Future, positions []int, timeout Duration) (int, []Result) {
	budget := timeout.resolve(DurationInfinite)
	deadline := time.Now().Add(budget)
	infinite := budget == time.Duration(1<<63-1)

	results := make([]Result, len(futures))
	order := make([]int, 0, len(futures))
	remainingIdx := make([]int, 0, len(futures))
	for i, f := range futures {
		if f != nil {
			remainingIdx = append(remainingIdx, i)
		}
	}

	sw := spin.Wait{}
	for {
		progressed := false
		for k := 0; k < len(remainingIdx); {
			i := remainingIdx[k]
			if futures[i].Done() {
				results[i] = futures[i].Wait(DurationNonBlocking)
				order = append(order, i)
				remainingIdx[k] = remainingIdx[len(remainingIdx)-1]
				remainingIdx = remainingIdx[:len(remainingIdx)-1]
				progressed = true
				continue
			}
			k++
		}
		if len(order) > 0 {
			break
		}
		if !infinite && !time.Now().Before(deadline) {
			break
		}
		if progressed {
			sw = spin.Wait{}
			continue
		}
		sw.Once()
	}

	for _, i := range remainingIdx {
		results[i] = Result{Status: StatusPending}
	}
	if positions != nil {
		n := len(order)
		if n > len(positions) {
			n = len(positions)
		}
		copy(positions, order[:n])
	}
	return len(order), results
}
