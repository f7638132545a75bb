// Copyright 2015 Google Inc. All Rights Reserved.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resource implements the first-fit extent allocator. A
// single Map type backs both the physical-core allocator (coremap,
// unit = one click) and the swap-space allocator (swapmap); callers
// choose the unit by how they size their calls, and kernel sizes both
// maps in clicks.
package resource

import "sort"

// Extent is a disjoint, non-adjacent run of free units starting at
// Base with length Length. A Map never stores two extents that touch
// or overlap; adjacent frees are coalesced by Free.
type Extent struct {
	Base   uint64
	Length uint64
}

// Map is an ordered sequence of free extents covering a single
// resource. Not safe for concurrent access: Map takes no lock, so
// callers that share one Map must serialize their calls themselves.
type Map struct {
	// INVARIANT: extents is sorted by Base, ascending.
	// INVARIANT: no two elements are adjacent or overlapping.
	// INVARIANT: every element has Length > 0.
	extents []Extent
}

// New returns a Map with a single free extent [0, size).
func New(size uint64) *Map {
	if size == 0 {
		return &Map{}
	}
	return &Map{extents: []Extent{{Base: 0, Length: size}}}
}

// Alloc scans extents in order and returns the low `size` units of the
// first extent whose length is at least `size`, shrinking or removing
// that extent. It returns (0, false) if no extent is large enough,
// mirroring the original's "fails by returning 0, not by signalling
// error state" contract.
func (m *Map) Alloc(size uint64) (base uint64, ok bool) {
	if size == 0 {
		return 0, false
	}

	for i := range m.extents {
		e := &m.extents[i]
		if e.Length < size {
			continue
		}

		base = e.Base
		if e.Length == size {
			m.extents = append(m.extents[:i], m.extents[i+1:]...)
		} else {
			e.Base += size
			e.Length -= size
		}
		return base, true
	}

	return 0, false
}

// Free inserts the extent [base, base+size) back into the map, merging
// with a neighbour on either side when the new extent is adjacent to
// it.
func (m *Map) Free(base, size uint64) {
	if size == 0 {
		return
	}

	idx := sort.Search(len(m.extents), func(i int) bool {
		return m.extents[i].Base >= base
	})

	m.extents = append(m.extents, Extent{})
	copy(m.extents[idx+1:], m.extents[idx:])
	m.extents[idx] = Extent{Base: base, Length: size}

	// Merge with the following neighbour first so indices stay valid.
	if idx+1 < len(m.extents) {
		cur := &m.extents[idx]
		next := m.extents[idx+1]
		if cur.Base+cur.Length == next.Base {
			cur.Length += next.Length
			m.extents = append(m.extents[:idx+1], m.extents[idx+2:]...)
		}
	}

	// Then with the preceding neighbour.
	if idx > 0 {
		prev := &m.extents[idx-1]
		cur := m.extents[idx]
		if prev.Base+prev.Length == cur.Base {
			prev.Length += cur.Length
			m.extents = append(m.extents[:idx], m.extents[idx+1:]...)
		}
	}
}

// FreeSpace returns the sum of all free extent lengths.
func (m *Map) FreeSpace() uint64 {
	var total uint64
	for _, e := range m.extents {
		total += e.Length
	}
	return total
}

// Extents returns a copy of the current free-extent list, for
// invariant checking and tests. Callers must not mutate the returned
// slice's backing array in a way that would be visible to the Map.
func (m *Map) Extents() []Extent {
	out := make([]Extent, len(m.extents))
	copy(out, m.extents)
	return out
}
