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

package proctab_test

import (
	"testing"

	"github.com/retrokernel/v6core/errno"
	"github.com/retrokernel/v6core/fildes"
	"github.com/retrokernel/v6core/proctab"
	"github.com/retrokernel/v6core/resource"

	. "github.com/jacobsa/ogletest"
)

func TestTable(t *testing.T) { RunTests(t) }

type TableTest struct {
	core  *resource.Map
	swap  *resource.Map
	fd    *fildes.Table
	procs *proctab.Table
	init  *proctab.Process
}

func init() { RegisterTestSuite(&TableTest{}) }

func (t *TableTest) SetUp(ti *TestInfo) {
	t.core = resource.New(256)
	t.swap = resource.New(256)
	t.fd = fildes.NewTable(nil)
	t.procs = proctab.NewTable(t.core, t.swap, t.fd)

	t.init = proctab.NewProcess(1, &fildes.Descriptors{})
	t.procs.Insert(t.init)
}

func (t *TableTest) NewprocAssignsAFreshPidAndSharesDescriptors() {
	child, err := t.procs.Newproc(t.init)
	AssertEq(nil, err)
	ExpectEq(1, child.Ppid)
	ExpectTrue(child.Pid != t.init.Pid)

	got, ok := t.procs.Lookup(child.Pid)
	ExpectTrue(ok)
	ExpectEq(child, got)
}

func (t *TableTest) ExpandGrowsAndShrinksResidentSize() {
	err := t.procs.Expand(t.init, 10, nil)
	AssertEq(nil, err)
	ExpectEq(uint32(10), t.init.Size)

	err = t.procs.Expand(t.init, 4, nil)
	AssertEq(nil, err)
	ExpectEq(uint32(4), t.init.Size)
}

func (t *TableTest) ExpandFailsWithEnomemWhenCoreIsExhausted() {
	err := t.procs.Expand(t.init, 300, nil)
	ExpectEq(errno.ENOMEM, err)
}

func (t *TableTest) EstaburRejectsLayoutsThatOverflowTheClickBudget() {
	_, err := proctab.Estabur([]uint32{100, 50})
	ExpectEq(errno.ENOMEM, err)
}

func (t *TableTest) EstaburLaysOutSegmentsBackToBack() {
	addrs, err := proctab.Estabur([]uint32{10, 20, 5})
	AssertEq(nil, err)
	ExpectEq(uint32(0), addrs[0])
	ExpectEq(uint32(10), addrs[1])
	ExpectEq(uint32(30), addrs[2])
}
