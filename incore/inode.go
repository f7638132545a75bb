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

// Package incore implements the in-core inode cache: iget/iput/prele
// over a table keyed by (device, inode number), with the
// reference-counted teardown discipline that also backs AllocInode/IFree
// and Access. It depends on fsalloc for on-disk layout and the free
// lists; fsalloc does not depend back on incore (see the note atop
// fsalloc/layout.go).
package incore

import (
	"fmt"
	"time"

	"github.com/jacobsa/gcloud/syncutil"

	"github.com/retrokernel/v6core/clock"
	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/fsalloc"
)

// Key identifies an in-core inode slot.
type Key struct {
	Dev diskio.Dev
	Ino uint32
}

// Inode is one in-core inode table entry: the on-disk fields plus the
// reference count, lock, wanted flag, and dirty flag.
type Inode struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	cache *Cache

	/////////////////////////
	// Constant data
	/////////////////////////

	key Key

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Mu guards everything below and must be held across any method
	// documented as requiring it.
	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	mode  uint16
	nlink uint8
	uid   uint8
	gid   uint8
	size  uint32
	addr  [fsalloc.NumDirect]uint16
	atime [2]uint16
	mtime [2]uint16

	// refs is the lookup/reference count; it reaches zero exactly when no
	// file descriptor, current-directory pointer, or other in-core
	// structure still names this inode, at which point the entry is
	// recycled.
	//
	// GUARDED_BY(Mu)
	refs lookupCount

	// busy is the exclusive per-inode lock iget/iput serialize on; wanted
	// records that some goroutine is asleep waiting for it to clear.
	//
	// GUARDED_BY(Mu)
	busy   bool
	wanted bool
	dirty  bool
}

var _ fmt.Stringer = &Inode{}

func (in *Inode) String() string {
	return fmt.Sprintf("inode{dev=%v ino=%d refs=%d}", in.key.Dev, in.key.Ino, in.refs.count)
}

func (in *Inode) checkInvariants() {
	if in.refs.count == 0 {
		panic("incore: live Inode with zero reference count")
	}
}

// Key returns the (device, inode number) identity of this entry.
// Does not require the lock to be held.
func (in *Inode) Key() Key { return in.key }

// Mode returns the on-disk mode word.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Mode() uint16 { return in.mode }

// SetMode updates the on-disk mode word and marks the inode dirty.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) SetMode(m uint16) {
	in.mode = m
	in.dirty = true
}

// Nlink returns the link count.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Nlink() uint8 { return in.nlink }

// SetNlink updates the link count and marks the inode dirty.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) SetNlink(n uint8) {
	in.nlink = n
	in.dirty = true
}

// Owner returns the owning uid/gid.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Owner() (uid, gid uint8) { return in.uid, in.gid }

// SetOwner updates the owning uid/gid and marks the inode dirty.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) SetOwner(uid, gid uint8) {
	in.uid, in.gid = uid, gid
	in.dirty = true
}

// Size returns the file size in bytes.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Size() uint32 { return in.size }

// SetSize updates the file size and marks the inode dirty.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) SetSize(size uint32) {
	in.size = size
	in.dirty = true
}

// Addr returns the direct block address table.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Addr() [fsalloc.NumDirect]uint16 { return in.addr }

// SetAddr replaces a single direct block address and marks the inode
// dirty.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) SetAddr(i int, block uint16) {
	in.addr[i] = block
	in.dirty = true
}

// Allocated reports whether the ALLOC bit is set in the mode word.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Allocated() bool { return in.mode&fsalloc.ModeAlloc != 0 }

// Dirty reports whether this entry differs from its on-disk record.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Dirty() bool { return in.dirty }

// Mtime returns the last-modified time recorded on this inode.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Mtime() time.Time { return fsalloc.UnpackTime(in.mtime) }

// Atime returns the last-accessed time recorded on this inode.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Atime() time.Time { return fsalloc.UnpackTime(in.atime) }

// Touch stamps the inode's modify time from clk and marks it dirty, the
// way writei updates mtime on every write.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) Touch(clk clock.Clock) {
	in.mtime = fsalloc.PackTime(clk.Now())
	in.dirty = true
}

// TouchAtime stamps the inode's access time from clk and marks it dirty,
// the way readi sets IACC to force the new atime out on the next iupdat.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (in *Inode) TouchAtime(clk clock.Clock) {
	in.atime = fsalloc.PackTime(clk.Now())
	in.dirty = true
}

func (in *Inode) toDisk() fsalloc.OnDiskInode {
	var o fsalloc.OnDiskInode
	o.Mode = in.mode
	o.Nlink = in.nlink
	o.Uid = in.uid
	o.Gid = in.gid
	o.SetSize(in.size)
	o.Addr = in.addr
	o.Atime = in.atime
	o.Mtime = in.mtime
	return o
}

func (in *Inode) fromDisk(o fsalloc.OnDiskInode) {
	in.mode = o.Mode
	in.nlink = o.Nlink
	in.uid = o.Uid
	in.gid = o.Gid
	in.size = o.Size()
	in.addr = o.Addr
	in.atime = o.Atime
	in.mtime = o.Mtime
}
