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

package resource_test

import (
	"testing"

	"github.com/retrokernel/v6core/resource"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestMap(t *testing.T) { RunTests(t) }

type MapTest struct {
	m *resource.Map
}

func init() { RegisterTestSuite(&MapTest{}) }

func (t *MapTest) SetUp(ti *TestInfo) {
	t.m = resource.New(100)
}

func (t *MapTest) FreshMapIsOneExtent() {
	ExpectThat(t.m.Extents(), ElementsAre(resource.Extent{Base: 0, Length: 100}))
	ExpectEq(100, t.m.FreeSpace())
}

func (t *MapTest) AllocShrinksFromTheFront() {
	base, ok := t.m.Alloc(30)
	AssertTrue(ok)
	ExpectEq(0, base)
	ExpectThat(t.m.Extents(), ElementsAre(resource.Extent{Base: 30, Length: 70}))
}

func (t *MapTest) AllocExactLengthRemovesExtent() {
	_, ok := t.m.Alloc(100)
	AssertTrue(ok)
	ExpectThat(t.m.Extents(), ElementsAre())
}

func (t *MapTest) AllocFailsWhenNothingFits() {
	_, ok := t.m.Alloc(101)
	ExpectFalse(ok)
	ExpectEq(100, t.m.FreeSpace())
}

func (t *MapTest) AllocSkipsExtentsThatAreTooSmall() {
	// Carve the map into [0,10) used, [10,20) free, [20,30) used, [30,100) free.
	_, ok := t.m.Alloc(10)
	AssertTrue(ok)
	mid, ok := t.m.Alloc(10)
	AssertTrue(ok)
	_, ok = t.m.Alloc(10) // [20,30)
	AssertTrue(ok)
	t.m.Free(mid, 10) // [10,20) is free again; gives us a small hole.

	// Now carve out [30, 100) as used so only the small hole is free.
	_, ok = t.m.Alloc(70)
	AssertTrue(ok)
	ExpectThat(t.m.Extents(), ElementsAre(resource.Extent{Base: 10, Length: 10}))

	base, ok := t.m.Alloc(10)
	AssertTrue(ok)
	ExpectEq(10, base)
	ExpectThat(t.m.Extents(), ElementsAre())
}

func (t *MapTest) FreeMergesWithBothNeighbours() {
	lo, ok := t.m.Alloc(10) // [0,10)
	AssertTrue(ok)
	mid, ok := t.m.Alloc(10) // [10,20)
	AssertTrue(ok)
	hi, ok := t.m.Alloc(10) // [20,30)
	AssertTrue(ok)

	t.m.Free(lo, 10)
	t.m.Free(30, 0) // no-op: zero length
	ExpectThat(
		t.m.Extents(),
		ElementsAre(
			resource.Extent{Base: 0, Length: 10},
			resource.Extent{Base: 30, Length: 70}))

	// Free [20,30), which joins [30,100); then freeing the middle hole
	// should merge [0,10), [10,20) and [20,100) into one extent.
	t.m.Free(hi, 10)
	t.m.Free(mid, 10)
	ExpectThat(t.m.Extents(), ElementsAre(resource.Extent{Base: 0, Length: 100}))
}

func (t *MapTest) FreeWithoutAdjacentNeighboursInsertsNewExtent() {
	t.m = resource.New(0)
	t.m.Free(50, 10)
	t.m.Free(10, 5)
	ExpectThat(
		t.m.Extents(),
		ElementsAre(
			resource.Extent{Base: 10, Length: 5},
			resource.Extent{Base: 50, Length: 10}))
}
