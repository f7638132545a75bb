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

package fsalloc

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/retrokernel/v6core/bufcache"
	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/errno"
	"github.com/retrokernel/v6core/sleepq"
)

// MaxFreeCache is the bounded size of both the free-block and free-inode
// in-core caches.
const MaxFreeCache = 100

// SuperblockBlock is the fixed block number of the superblock.
const SuperblockBlock = 1

const (
	flockChan sleepq.Chan = 1
	ilockChan sleepq.Chan = 2
)

// Superblock is the in-core superblock: filesystem geometry, the bounded
// free-block cache, the bounded free-inode number cache, and the two
// refill lock flags, each guarded with the sleep/wakeup primitive on the
// lock word itself.
type Superblock struct {
	Dev   diskio.Dev
	Isize uint32
	Fsize uint32

	mu sync.Mutex
	sq sleepq.Queue

	// INVARIANT: 0 <= NFree <= MaxFreeCache
	NFree int
	Free  [MaxFreeCache]uint32
	flock bool

	// INVARIANT: 0 <= NInode <= MaxFreeCache
	NInode    int
	FreeInode [MaxFreeCache]uint32
	ilock     bool

	Modified bool
	ReadOnly bool
}

// New creates a fresh in-core superblock with an exhausted free-block
// cache (nfree=1, s_free[0]=0), matching the classic "fresh filesystem"
// bootstrap state. Free is filled by FreeBlock (Format calls it for every
// data block) and FreeInode by RefillFreeInodes; this package has no code
// that reads or writes an on-disk superblock.
func New(dev diskio.Dev, isize, fsize uint32) *Superblock {
	sb := &Superblock{Dev: dev, Isize: isize, Fsize: fsize}
	sb.NFree = 1
	sb.Free[0] = 0
	return sb
}

// ValidateBlock reports errno.EIO-class "bad block" if bno does not lie
// in [isize+2, fsize).
func (sb *Superblock) ValidateBlock(bno uint32) error {
	if bno < sb.Isize+2 || bno >= sb.Fsize {
		return errno.EIO
	}
	return nil
}

func (sb *Superblock) waitFlock(ctx context.Context) {
	for {
		sb.mu.Lock()
		if !sb.flock {
			sb.mu.Unlock()
			return
		}
		sb.mu.Unlock()
		sb.sq.Sleep(ctx, flockChan, false)
	}
}

// AllocBlock implements alloc_block: it waits for any in-progress
// refill, pops a block number from the in-core cache, refilling the
// cache from the on-disk chain if that empties it, and returns a
// zeroed, Busy buffer for the popped block.
func (sb *Superblock) AllocBlock(ctx context.Context, pool *bufcache.Pool) (*bufcache.Buf, error) {
	sb.waitFlock(ctx)

	sb.mu.Lock()
	if sb.NFree == 0 {
		sb.mu.Unlock()
		return nil, errno.ENOSPC
	}

	bno := sb.Free[sb.NFree-1]
	emptiesCache := sb.NFree == 1
	if emptiesCache && bno == 0 {
		// The sentinel: no next free-list block exists. Leave the cache
		// exactly as it was.
		sb.mu.Unlock()
		return nil, errno.ENOSPC
	}

	sb.NFree--
	needsRefill := sb.NFree == 0
	if needsRefill {
		sb.flock = true
	}
	sb.mu.Unlock()

	if needsRefill {
		if err := sb.refillFreeBlocks(ctx, pool, bno); err != nil {
			sb.mu.Lock()
			sb.flock = false
			sb.mu.Unlock()
			sb.sq.Wakeup(flockChan)
			return nil, err
		}
		sb.mu.Lock()
		sb.flock = false
		sb.mu.Unlock()
		sb.sq.Wakeup(flockChan)
	}

	buf := pool.Getblk(ctx, sb.Dev, bno)
	bufcache.Clrbuf(buf)

	sb.mu.Lock()
	sb.Modified = true
	sb.mu.Unlock()

	return buf, nil
}

// refillFreeBlocks reads the free-list chain block at bno (the value
// that was just popped, about to be handed back to the caller as an
// ordinary allocatable block once its chain-header contents have been
// copied into the in-core cache) and copies its count + block numbers
// into sb.Free.
func (sb *Superblock) refillFreeBlocks(ctx context.Context, pool *bufcache.Pool, bno uint32) error {
	buf := pool.Bread(ctx, sb.Dev, bno)
	defer pool.Brelse(buf)
	if buf.Error() {
		return errno.EIO
	}

	data := buf.Data()
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	if count > MaxFreeCache {
		count = MaxFreeCache
	}

	sb.mu.Lock()
	sb.NFree = count
	for i := 0; i < count; i++ {
		sb.Free[i] = uint32(binary.LittleEndian.Uint16(data[2+2*i : 4+2*i]))
	}
	sb.mu.Unlock()

	return nil
}

// FreeBlock implements free_block: the dual of AllocBlock. When the
// cache is full it is written out to bno, preserving the chain, and
// reset to a single entry pointing at bno; otherwise bno is simply
// appended.
func (sb *Superblock) FreeBlock(ctx context.Context, pool *bufcache.Pool, bno uint32) error {
	if err := sb.ValidateBlock(bno); err != nil {
		return err
	}

	sb.mu.Lock()
	full := sb.NFree == MaxFreeCache
	if full {
		var snapshot [MaxFreeCache]uint32
		copy(snapshot[:], sb.Free[:])
		sb.mu.Unlock()

		buf := pool.Getblk(ctx, sb.Dev, bno)
		bufcache.Clrbuf(buf)
		data := buf.Data()
		binary.LittleEndian.PutUint16(data[0:2], MaxFreeCache)
		for i, v := range snapshot {
			binary.LittleEndian.PutUint16(data[2+2*i:4+2*i], uint16(v))
		}
		pool.Bdwrite(buf)

		sb.mu.Lock()
		sb.NFree = 1
		sb.Free[0] = bno
	} else {
		sb.Free[sb.NFree] = bno
		sb.NFree++
	}
	sb.Modified = true
	sb.mu.Unlock()

	return nil
}

// PopFreeInode removes and returns the most recently cached free inode
// number, or ok=false if the cache is empty.
func (sb *Superblock) PopFreeInode() (ino uint32, ok bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.NInode == 0 {
		return 0, false
	}
	sb.NInode--
	return sb.FreeInode[sb.NInode], true
}

// PushFreeInode opportunistically appends ino to the free-inode cache,
// matching ifree's "opportunistically appends... iff the refill lock is
// not held and the cache is not full" rule. It reports whether the hint
// was actually recorded.
func (sb *Superblock) PushFreeInode(ino uint32) (recorded bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.ilock || sb.NInode >= MaxFreeCache {
		return false
	}
	sb.FreeInode[sb.NInode] = ino
	sb.NInode++
	return true
}

// PinnedChecker reports whether an inode number is currently pinned with
// a nonzero reference count in some in-core inode cache. fsalloc has no
// dependency on package incore, which owns that cache; incore supplies
// this callback when it needs a refill.
type PinnedChecker func(ino uint32) bool

// RefillFreeInodes scans the on-disk inode table from inode 1 on every
// call, collecting up to MaxFreeCache inode numbers that
// are both free on disk (mode's ALLOC bit clear) and not pinned. It
// reports errno.ENOSPC if a full scan of the table yields nothing.
func (sb *Superblock) RefillFreeInodes(ctx context.Context, pool *bufcache.Pool, pinned PinnedChecker) error {
	sb.mu.Lock()
	sb.ilock = true
	sb.mu.Unlock()
	defer func() {
		sb.mu.Lock()
		sb.ilock = false
		sb.mu.Unlock()
		sb.sq.Wakeup(ilockChan)
	}()

	total := sb.Isize * InodesPerBlock
	var found []uint32

	for ino := uint32(1); ino <= total && len(found) < MaxFreeCache; ino++ {
		block, offset := BlockOf(ino)
		buf := pool.Bread(ctx, sb.Dev, block)
		free := !buf.Error()
		var mode uint16
		if free {
			mode = binary.LittleEndian.Uint16(buf.Data()[offset : offset+2])
		}
		pool.Brelse(buf)

		if !free || mode&ModeAlloc != 0 {
			continue
		}
		if pinned != nil && pinned(ino) {
			continue
		}
		found = append(found, ino)
	}

	if len(found) == 0 {
		return errno.ENOSPC
	}

	sb.mu.Lock()
	sb.NInode = len(found)
	copy(sb.FreeInode[:], found)
	sb.mu.Unlock()

	return nil
}

// WaitIlock blocks while the inode free-list refill lock is held,
// mirroring the alloc_inode retry discipline.
func (sb *Superblock) WaitIlock(ctx context.Context) {
	for {
		sb.mu.Lock()
		if !sb.ilock {
			sb.mu.Unlock()
			return
		}
		sb.mu.Unlock()
		sb.sq.Sleep(ctx, ilockChan, false)
	}
}
