// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package topology

import (
	"os"
	"sort"

	"github.com/shirou/gopsutil/v3/cpu"
)

// gopsutilLookup is the default [Lookup], backed by
// github.com/shirou/gopsutil/v3/cpu. Cores() returns one CPUSet per
// distinct PhysicalID/CoreID pair among the cpu.InfoStat entries, so
// hyperthread siblings reporting the same pair count once; an entry with
// neither ID set counts as a core of its own.
type gopsutilLookup struct {
	infos    []cpu.InfoStat
	pageSize int
}

// NewDefault builds the default cache-topology capability.
func NewDefault() Lookup {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return &gopsutilLookup{pageSize: os.Getpagesize()}
	}
	return &gopsutilLookup{infos: infos, pageSize: os.Getpagesize()}
}

func (g *gopsutilLookup) L1(_ CPUSet) int {
	// gopsutil does not expose L1 size, so this always returns the
	// architecture-typical default.
	return defaultL1
}

func (g *gopsutilLookup) L2(set CPUSet) int {
	if len(g.infos) == 0 {
		return defaultL2
	}
	min := 0
	for _, idx := range set {
		if idx < 0 || idx >= len(g.infos) {
			continue
		}
		sz := int(g.infos[idx].CacheSize) * 1024
		if sz <= 0 {
			continue
		}
		if min == 0 || sz < min {
			min = sz
		}
	}
	if min == 0 {
		return defaultL2
	}
	return min
}

func (g *gopsutilLookup) PageSize() int {
	if g.pageSize <= 0 {
		return defaultPageSize
	}
	return g.pageSize
}

func (g *gopsutilLookup) Cores() []CPUSet {
	if len(g.infos) == 0 {
		return []CPUSet{{0}}
	}
	sets := make([]CPUSet, 0, len(g.infos))
	seenCore := make(map[string]bool, len(g.infos))
	for i, info := range g.infos {
		key := info.PhysicalID + "/" + info.CoreID
		if key == "/" || !seenCore[key] {
			seenCore[key] = true
			sets = append(sets, CPUSet{i})
		}
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i][0] < sets[j][0] })
	return sets
}
