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

package incore

import (
	"context"

	"github.com/jacobsa/gcloud/syncutil"

	"github.com/retrokernel/v6core/bufcache"
	"github.com/retrokernel/v6core/clock"
	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/errno"
	"github.com/retrokernel/v6core/fsalloc"
	"github.com/retrokernel/v6core/sleepq"
)

const inodeWaitChan sleepq.Chan = 1

// Cache is the in-core inode table, built over a buffer pool and a
// filesystem's on-disk superblock.
type Cache struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	pool *bufcache.Pool
	sb   *fsalloc.Superblock
	clk  clock.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Mu guards the table itself; each Inode has its own Mu for its field
	// data.
	//
	// LOCK ORDERING: Cache.Mu < Inode.Mu. An Inode's Mu may be acquired
	// while holding this one (Iget does so to test and set the busy bit),
	// never the other way round.
	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	sq sleepq.Queue

	// GUARDED_BY(Mu)
	table map[Key]*Inode
}

// NewCache creates an inode cache over pool, backed by sb's free lists
// and geometry.
func NewCache(pool *bufcache.Pool, sb *fsalloc.Superblock) *Cache {
	c := &Cache{
		pool:  pool,
		sb:    sb,
		clk:   clock.RealClock{},
		table: make(map[Key]*Inode),
	}
	c.Mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

// SetClock overrides the clock used for atime/mtime stamping, for tests
// that need deterministic timestamps instead of the wall clock.
func (c *Cache) SetClock(clk clock.Clock) { c.clk = clk }

func (c *Cache) checkInvariants() {
	for k, in := range c.table {
		if in.key != k {
			panic("incore: table key does not match inode's own key")
		}
	}
}

func (c *Cache) waitChan(k Key) sleepq.Chan {
	return sleepq.Chan(k.Ino)<<8 ^ sleepq.Chan(k.Dev) ^ inodeWaitChan
}

// Iget returns the in-core inode for (dev, ino), reading it from disk on
// a cache miss, and increments its reference count. If another holder
// currently has the slot locked, the caller sleeps until it clears.
func (c *Cache) Iget(ctx context.Context, dev diskio.Dev, ino uint32) (*Inode, error) {
	key := Key{Dev: dev, Ino: ino}

	for {
		c.Mu.Lock()
		in, ok := c.table[key]
		if ok {
			in.Mu.Lock()
			if in.busy {
				in.wanted = true
				in.Mu.Unlock()
				c.Mu.Unlock()
				if err := c.sq.Sleep(ctx, c.waitChan(key), true); err != nil {
					return nil, err
				}
				continue
			}
			in.busy = true
			in.refs.Inc()
			in.Mu.Unlock()
			c.Mu.Unlock()
			return in, nil
		}

		in = &Inode{cache: c, key: key, busy: true}
		in.refs = lookupCount{destroy: func() error { return c.destroy(in) }}
		in.refs.Inc()
		in.Mu = syncutil.NewInvariantMutex(in.checkInvariants)
		c.table[key] = in
		c.Mu.Unlock()

		if err := c.readFromDisk(ctx, in); err != nil {
			c.Mu.Lock()
			delete(c.table, key)
			c.Mu.Unlock()
			return nil, err
		}

		return in, nil
	}
}

func (c *Cache) readFromDisk(ctx context.Context, in *Inode) error {
	block, offset := fsalloc.BlockOf(in.key.Ino)
	buf := c.pool.Bread(ctx, in.key.Dev, block)
	defer c.pool.Brelse(buf)
	if buf.Error() {
		return errno.EIO
	}

	rec := fsalloc.UnmarshalInode(buf.Data()[offset : offset+fsalloc.InodeSize])

	in.Mu.Lock()
	in.fromDisk(rec)
	in.TouchAtime(c.clk)
	in.Mu.Unlock()
	return nil
}

// Unlock clears the exclusive lock Iget left held on in, waking a
// waiter if one exists. It leaves the reference count untouched.
func (c *Cache) Unlock(in *Inode) {
	in.Mu.Lock()
	wanted := in.wanted
	in.busy = false
	in.wanted = false
	in.Mu.Unlock()

	if wanted {
		c.sq.Wakeup(c.waitChan(in.key))
	}
}

// Iput releases one reference on in, writing it back to disk if dirty,
// and frees the slot once the reference count reaches zero.
func (c *Cache) Iput(ctx context.Context, in *Inode) error {
	in.Mu.Lock()
	nlink := in.nlink
	allocated := in.mode&fsalloc.ModeAlloc != 0
	in.Mu.Unlock()

	if nlink == 0 && allocated {
		if err := c.IFree(ctx, in); err != nil {
			return err
		}
	}

	in.Mu.Lock()
	dirty := in.dirty
	in.Mu.Unlock()

	if dirty {
		if err := c.writeBack(ctx, in); err != nil {
			return err
		}
	}

	c.Unlock(in)

	in.Mu.Lock()
	destroyed := in.refs.Dec(1)
	in.Mu.Unlock()

	if destroyed {
		c.Mu.Lock()
		delete(c.table, in.key)
		c.Mu.Unlock()
	}

	return nil
}

// Prele releases one reference without writing back, freeing, or
// unlocking. It is for callers that hold a bare pinning reference
// obtained some other way than a still-locked Iget (for instance a
// cached parent-directory pointer); a caller holding the lock Iget left
// on in must use Iput, or call Unlock before Prele.
func (c *Cache) Prele(in *Inode) {
	in.Mu.Lock()
	destroyed := in.refs.Dec(1)
	in.Mu.Unlock()

	if destroyed {
		c.Mu.Lock()
		delete(c.table, in.key)
		c.Mu.Unlock()
	}
}

func (c *Cache) writeBack(ctx context.Context, in *Inode) error {
	block, offset := fsalloc.BlockOf(in.key.Ino)
	buf := c.pool.Bread(ctx, in.key.Dev, block)

	in.Mu.Lock()
	rec := in.toDisk()
	in.dirty = false
	in.Mu.Unlock()

	encoded := rec.Marshal()
	copy(buf.Data()[offset:offset+fsalloc.InodeSize], encoded[:])
	return c.pool.Bwrite(buf)
}

func (c *Cache) destroy(in *Inode) error {
	return nil
}

// pinned reports whether ino is currently referenced by a live in-core
// entry on this cache's device, the PinnedChecker fsalloc.Superblock's
// RefillFreeInodes needs.
func (c *Cache) pinned(ino uint32) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	in, ok := c.table[Key{Dev: c.sb.Dev, Ino: ino}]
	if !ok {
		return false
	}
	in.Mu.Lock()
	defer in.Mu.Unlock()
	return in.refs.count > 0
}

// AllocInode implements alloc_inode: pop a candidate from the
// free-inode cache, iget it, and make sure it's still free on disk
// (another racer may have grabbed it first); refill the cache by
// scanning the on-disk table when it empties.
func (c *Cache) AllocInode(ctx context.Context) (*Inode, error) {
	for {
		c.sb.WaitIlock(ctx)

		ino, ok := c.sb.PopFreeInode()
		if !ok {
			if err := c.sb.RefillFreeInodes(ctx, c.pool, c.pinned); err != nil {
				return nil, err
			}
			continue
		}

		in, err := c.Iget(ctx, c.sb.Dev, ino)
		if err != nil {
			return nil, err
		}

		in.Mu.Lock()
		free := in.mode&fsalloc.ModeAlloc == 0
		if free {
			in.mode = fsalloc.ModeAlloc
			in.nlink = 0
			in.size = 0
			in.addr = [fsalloc.NumDirect]uint16{}
			in.Touch(c.clk)
		}
		in.Mu.Unlock()

		if free {
			return in, nil
		}

		// Stale hint: someone else already allocated this inode. Drop it
		// and try again.
		if err := c.Iput(ctx, in); err != nil {
			return nil, err
		}
	}
}

// IFree implements ifree: clear the ALLOC bit and opportunistically
// record the number in the free-inode cache.
func (c *Cache) IFree(ctx context.Context, in *Inode) error {
	in.Mu.Lock()
	in.mode &^= fsalloc.ModeAlloc
	in.nlink = 0
	in.dirty = true
	ino := in.key.Ino
	in.Mu.Unlock()

	c.sb.PushFreeInode(ino)
	return nil
}

// Access levels for the Access check.
const (
	AccessRead  = 04
	AccessWrite = 02
	AccessExec  = 01
)

// Access implements the classic owner/group/other permission check,
// with an unconditional pass for the superuser.
// EXCLUSIVE_LOCKS_REQUIRED(in.Mu)
func Access(in *Inode, uid, gid uint8, mode uint8) error {
	if uid == 0 {
		return nil
	}

	var shift uint
	switch {
	case in.uid == uid:
		shift = 6
	case in.gid == gid:
		shift = 3
	default:
		shift = 0
	}

	bits := uint8(in.mode>>shift) & 07
	if bits&mode != mode {
		return errno.EACCES
	}
	return nil
}
