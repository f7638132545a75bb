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

package proctab

import (
	"github.com/jacobsa/gcloud/syncutil"

	"github.com/retrokernel/v6core/errno"
	"github.com/retrokernel/v6core/fildes"
	"github.com/retrokernel/v6core/resource"
)

// Table is the system-wide process table.
type Table struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	core *resource.Map // core-memory click allocator
	swap *resource.Map // swap-space click allocator
	fd   *fildes.Table

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nextPid int

	// GUARDED_BY(mu)
	procs map[int]*Process
}

// NewTable creates a process table backed by the given core and swap
// click allocators.
func NewTable(core, swap *resource.Map, fd *fildes.Table) *Table {
	t := &Table{core: core, swap: swap, fd: fd, nextPid: 1, procs: make(map[int]*Process)}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *Table) checkInvariants() {
	for pid, p := range t.procs {
		if p.Pid != pid {
			panic("proctab: table key does not match process's own pid")
		}
	}
}

// Insert adds a process created outside of Newproc (the bootstrap
// process a kernel starts with) to the table.
func (t *Table) Insert(p *Process) {
	t.mu.Lock()
	t.procs[p.Pid] = p
	if p.Pid >= t.nextPid {
		t.nextPid = p.Pid + 1
	}
	t.mu.Unlock()
}

// Lookup returns the process with the given pid, if any.
func (t *Table) Lookup(pid int) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	return p, ok
}

// Snapshot returns every process currently in the table, the input
// sched.Swtch and sched.Swapper scan each tick.
func (t *Table) Snapshot() []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	procs := make([]*Process, 0, len(t.procs))
	for _, p := range t.procs {
		procs = append(procs, p)
	}
	return procs
}

// Newproc implements newproc: allocate a pid and a process-table slot
// for a child of parent, duplicating its descriptor table and sharing its
// text segment, per the classic fork semantics. The child's Cwd is the
// parent's inode pointer, copied without taking a new reference on that
// inode. The child starts in StatusRun with no resident core
// allocated yet; a caller typically follows with Expand to give it a
// data segment of its own.
func (t *Table) Newproc(parent *Process) (*Process, error) {
	parent.Mu.Lock()
	childDescriptors := parent.Descriptors.Fork(t.fd)
	cwd := parent.Cwd
	text := parent.Text
	parent.Mu.Unlock()

	if text != nil {
		text.AddUser()
	}

	t.mu.Lock()
	pid := t.nextPid
	t.nextPid++

	child := &Process{
		Pid:         pid,
		Ppid:        parent.Pid,
		Status:      StatusRun,
		Descriptors: childDescriptors,
		Cwd:         cwd,
		Text:        text,
	}
	child.Mu = syncutil.NewInvariantMutex(child.checkInvariants)
	t.procs[pid] = child
	t.mu.Unlock()

	return child, nil
}

// Exit removes p from the table. Callers are expected to have already
// closed its descriptors and released its core/swap allocation.
func (t *Table) Exit(p *Process) {
	p.Mu.Lock()
	p.Status = StatusZombie
	p.Mu.Unlock()

	t.mu.Lock()
	delete(t.procs, p.Pid)
	t.mu.Unlock()
}

// Expand implements expand: grow or shrink p's resident data region to
// newSize clicks. Growing retries once by asking the swapper to make
// room (via onExhausted) if the core allocator is full, then fails
// with ENOMEM.
func (t *Table) Expand(p *Process, newSize uint32, onExhausted func()) error {
	p.Mu.Lock()
	oldAddr, oldSize := p.Addr, p.Size
	p.Mu.Unlock()

	if newSize <= oldSize {
		if oldSize > 0 {
			t.core.Free(uint64(oldAddr), uint64(oldSize))
		}
		base, ok := t.core.Alloc(uint64(newSize))
		if !ok {
			return errno.ENOMEM
		}
		p.Mu.Lock()
		p.Addr, p.Size = uint32(base), newSize
		p.Flags |= FlagLoad
		p.Mu.Unlock()
		return nil
	}

	base, ok := t.core.Alloc(uint64(newSize))
	if !ok && onExhausted != nil {
		onExhausted()
		base, ok = t.core.Alloc(uint64(newSize))
	}
	if !ok {
		return errno.ENOMEM
	}

	if oldSize > 0 {
		t.core.Free(uint64(oldAddr), uint64(oldSize))
	}

	p.Mu.Lock()
	p.Addr, p.Size = uint32(base), newSize
	p.Flags |= FlagLoad
	p.Mu.Unlock()
	return nil
}

// Estabur implements estabur: validate that the requested
// text/data/stack segment sizes fit within MaxClicks total and do not
// exceed MaxSegments entries, and lay out their virtual addresses back
// to back.
func Estabur(sizes []uint32) (addrs []uint32, err error) {
	if len(sizes) > MaxSegments {
		return nil, errno.ENOMEM
	}

	var total uint32
	addrs = make([]uint32, len(sizes))
	for i, s := range sizes {
		addrs[i] = total
		total += s
		if total > MaxClicks {
			return nil, errno.ENOMEM
		}
	}
	return addrs, nil
}
