// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bitarr implements a dense boolean array: one machine word
// per 64 bits, O(length/W) scan operations, and a padding contract
// that keeps bits beyond length from ever being reported as set by a
// search.
//
// Storage is backed by [github.com/bits-and-blooms/bitset]; the ops the
// core needs beyond plain get/set/count — range_set, range_alleq, and a
// find_next that wraps — are layered on top of its word-level primitives.
package bitarr

import "github.com/bits-and-blooms/bitset"

// W is the number of bits per backing word on every supported architecture.
const W = 64

// T is a fixed-length dense bit array.
type T struct {
	bits   *bitset.BitSet
	length uint
}

// New creates a bit array of the given length, all bits set to v.
func New(length int, v bool) *T {
	if length < 0 {
		panic("bitarr: negative length")
	}
	t := &T{bits: bitset.New(uint(length)), length: uint(length)}
	if v {
		t.RangeSet(0, length, true)
	}
	return t
}

// Len returns the array's length in bits.
func (t *T) Len() int { return int(t.length) }

// Get returns the bit at index i.
func (t *T) Get(i int) bool {
	t.checkIndex(i)
	return t.bits.Test(uint(i))
}

// Set assigns the bit at index i.
func (t *T) Set(i int, v bool) {
	t.checkIndex(i)
	if v {
		t.bits.Set(uint(i))
	} else {
		t.bits.Clear(uint(i))
	}
}

// Count returns the number of bits equal to v.
func (t *T) Count(v bool) int {
	c := int(t.bits.Count())
	if v {
		return c
	}
	return int(t.length) - c
}

// RangeSet assigns every bit in [lo, hi) to v.
func (t *T) RangeSet(lo, hi int, v bool) {
	t.checkRange(lo, hi)
	for i := lo; i < hi; i++ {
		if v {
			t.bits.Set(uint(i))
		} else {
			t.bits.Clear(uint(i))
		}
	}
}

// RangeAllEq reports whether every bit in [lo, hi) equals v.
func (t *T) RangeAllEq(lo, hi int, v bool) bool {
	t.checkRange(lo, hi)
	if !v {
		next, ok := t.bits.NextSet(uint(lo))
		return !ok || next >= uint(hi)
	}
	next, ok := t.bits.NextClear(uint(lo))
	return !ok || next >= uint(hi)
}

// FindFirst returns the smallest index with Get(k) == v, or (-1, false)
// if no such index exists.
func (t *T) FindFirst(v bool) (int, bool) {
	return t.FindNext(0, false, v)
}

// FindNext returns the smallest index k >= start with Get(k) == v. If
// wrap is true and no such index exists in [start, length), the search
// continues from 0 up to start (exclusive), so the whole array is
// covered exactly once per call.
func (t *T) FindNext(start int, wrap bool, v bool) (int, bool) {
	if start < 0 || uint(start) > t.length {
		panic("bitarr: index out of range")
	}
	if idx, ok := t.findFrom(uint(start), v); ok {
		return int(idx), true
	}
	if wrap && start > 0 {
		if idx, ok := t.findFrom(0, v); ok && idx < uint(start) {
			return int(idx), true
		}
	}
	return -1, false
}

func (t *T) findFrom(start uint, v bool) (uint, bool) {
	if v {
		idx, ok := t.bits.NextSet(start)
		if !ok || idx >= t.length {
			return 0, false
		}
		return idx, true
	}
	idx, ok := t.bits.NextClear(start)
	if !ok || idx >= t.length {
		return 0, false
	}
	return idx, true
}

// Clone returns an independent copy of t.
func (t *T) Clone() *T {
	return &T{bits: t.bits.Clone(), length: t.length}
}

// ClearAll sets every bit to false.
func (t *T) ClearAll() {
	t.bits.ClearAll()
}

func (t *T) checkIndex(i int) {
	if i < 0 || uint(i) >= t.length {
		panic("bitarr: index out of range")
	}
}

func (t *T) checkRange(lo, hi int) {
	if lo < 0 || hi < lo || uint(hi) > t.length {
		panic("bitarr: range out of bounds")
	}
}
