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

// Package proctab implements the process table, newproc/fork, expand,
// and estabur: the bookkeeping layer that sits above resource.Map
// (core/swap allocation), fildes (descriptor inheritance), and incore
// (current-directory/text references).
package proctab

import (
	"github.com/google/uuid"
	"github.com/jacobsa/gcloud/syncutil"

	"github.com/retrokernel/v6core/fildes"
	"github.com/retrokernel/v6core/incore"
)

// Status is a process's scheduling state.
type Status int

const (
	StatusSleep Status = iota
	StatusWait
	StatusRun
	StatusIdle
	StatusZombie
)

// Flag bits carried alongside Status.
type Flag uint8

const (
	FlagLoad Flag = 1 << iota // resident in core, as opposed to swapped out
	FlagSys                   // executing a system call, not interruptible by a signal
	FlagLock                  // temporarily pinned in core (e.g. during I/O)
	FlagSwap                  // a swap of this process is already in flight
)

// MaxClicks is the largest resident size (in clicks) estabur accepts.
const MaxClicks = 128

// MaxSegments is the largest number of virtual segments estabur lays out.
const MaxSegments = 8

// Process is one process-table entry.
type Process struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	Pid  int
	Ppid int

	/////////////////////////
	// Mutable state
	/////////////////////////

	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	Status Status
	Flags  Flag
	Prio   int

	// GUARDED_BY(Mu)
	Uid, Gid int
	Tty      int

	// Addr is the resident core address (in clicks) when Flags&FlagLoad
	// is set, or the swap-image address otherwise.
	//
	// GUARDED_BY(Mu)
	Addr uint32
	Size uint32 // resident size, in clicks

	// WaitChan is the rendezvous value this process is asleep on, valid
	// only while Status == StatusSleep.
	//
	// GUARDED_BY(Mu)
	WaitChan uint64

	// Signal is a pending signal number, or zero.
	//
	// GUARDED_BY(Mu)
	Signal int

	// ResidentTicks and SwappedTicks are the tick counts sched's swap-out
	// victim and swap-in candidate selection compare against its
	// thresholds. kernel's swapOut and swapIn reset them to zero; nothing
	// in this module increments them.
	//
	// GUARDED_BY(Mu)
	ResidentTicks int
	SwappedTicks  int

	// SwapGeneration tags the most recent swap-out image written for this
	// process, the way a GCS object generation number tags a version of
	// an object's contents. It is the zero UUID until the first swap-out,
	// so a swap-in candidate with no generation yet is never mistaken for
	// one with a stale image actually sitting on the swap device.
	//
	// GUARDED_BY(Mu)
	SwapGeneration uuid.UUID

	// LastError is the most recent errno a syscall on this process
	// returned, kept for diagnostics. It is not part of the original V6
	// process table but is a natural, inspectable addition given this
	// simulation has no real user-space to report errors to otherwise.
	//
	// GUARDED_BY(Mu)
	LastError error

	// Descriptors is this process's open-file-descriptor table.
	//
	// GUARDED_BY(Mu)
	Descriptors *fildes.Descriptors

	// Cwd is the current-directory inode of this process. Newproc copies
	// it from the parent without taking a new reference on the inode.
	//
	// GUARDED_BY(Mu)
	Cwd *incore.Inode

	// Text is shared read-only program text this process was forked
	// sharing with its parent, or nil if it has a private text segment.
	//
	// GUARDED_BY(Mu)
	Text *TextSegment
}

func (p *Process) checkInvariants() {
	if p.Size > MaxClicks {
		panic("proctab: process resident size exceeds the click budget")
	}
}

// NewProcess creates a process-table entry outside of Newproc's fork
// path, for bootstrapping the first process (pid 0/1) a kernel starts
// with no parent to inherit from.
func NewProcess(pid int, descriptors *fildes.Descriptors) *Process {
	p := &Process{Pid: pid, Status: StatusRun, Descriptors: descriptors}
	p.Mu = syncutil.NewInvariantMutex(p.checkInvariants)
	return p
}

// TextSegment is a program text region potentially shared by several
// processes forked from the same image.
type TextSegment struct {
	mu    syncutil.InvariantMutex
	addr  uint32
	size  uint32
	users int
}

func (t *TextSegment) checkInvariants() {
	if t.users < 0 {
		panic("proctab: negative text segment user count")
	}
}

// NewTextSegment creates a text region with a single initial user.
func NewTextSegment(addr, size uint32) *TextSegment {
	t := &TextSegment{addr: addr, size: size, users: 1}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

// AddUser records another process sharing this text segment.
func (t *TextSegment) AddUser() {
	t.mu.Lock()
	t.users++
	t.mu.Unlock()
}

// RemoveUser drops a user, reporting whether it was the last one.
func (t *TextSegment) RemoveUser() (last bool) {
	t.mu.Lock()
	t.users--
	last = t.users == 0
	t.mu.Unlock()
	return
}
