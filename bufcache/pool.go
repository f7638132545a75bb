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

package bufcache

import (
	"context"
	"sync"

	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/sleepq"
)

// MinBufs is the minimum pool size ("a pool of N (>= 15) buffers").
const MinBufs = 15

type key struct {
	dev   diskio.Dev
	blkno uint32
}

// Pool is the fixed-size buffer cache. The zero value is not usable;
// call NewPool. Not safe for concurrent mutation of the same Buf
// outside of Pool's own methods; callers own a Buf exclusively from
// Getblk/Bread until Brelse.
type Pool struct {
	mu    sync.Mutex
	bufs  []Buf
	hash  map[key]int
	disks map[diskio.Dev]*diskio.Disk
	sq    sleepq.Queue

	// Doubly linked LRU free list over indices into bufs, oldest at
	// lruHead, most-recently-released at lruTail. -1 means empty/unlinked.
	//
	// INVARIANT: a buffer is in this list iff it is not BUSY and holds no
	// outstanding holder.
	lruHead, lruTail int
}

// NewPool creates a cache of n buffers, all initially free and unassigned.
// An n below MinBufs is raised to MinBufs.
func NewPool(n int) *Pool {
	if n < MinBufs {
		n = MinBufs
	}

	p := &Pool{
		bufs:    make([]Buf, n),
		hash:    make(map[key]int),
		disks:   make(map[diskio.Dev]*diskio.Disk),
		lruHead: -1,
		lruTail: -1,
	}

	for i := range p.bufs {
		p.bufs[i].self = i
		p.bufs[i].hashNext = -1
		p.pushTailLocked(i)
	}

	return p
}

// Register attaches a Disk to the pool so that Bread/the write-back
// paths can dispatch to it by device number, mirroring the block half
// of the device switch restricted to the strategy entry.
func (p *Pool) Register(d *diskio.Disk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disks[d.Dev()] = d
}

func chanFor(idx int) sleepq.Chan { return sleepq.Chan(idx) + 1 }

func (p *Pool) unlinkLocked(idx int) {
	b := &p.bufs[idx]
	if b.lruPrev >= 0 {
		p.bufs[b.lruPrev].lruNext = b.lruNext
	} else {
		p.lruHead = b.lruNext
	}
	if b.lruNext >= 0 {
		p.bufs[b.lruNext].lruPrev = b.lruPrev
	} else {
		p.lruTail = b.lruPrev
	}
	b.lruPrev, b.lruNext = -1, -1
}

func (p *Pool) pushTailLocked(idx int) {
	b := &p.bufs[idx]
	b.lruPrev = p.lruTail
	b.lruNext = -1
	if p.lruTail >= 0 {
		p.bufs[p.lruTail].lruNext = idx
	} else {
		p.lruHead = idx
	}
	p.lruTail = idx
}

func (p *Pool) pushHeadLocked(idx int) {
	b := &p.bufs[idx]
	b.lruNext = p.lruHead
	b.lruPrev = -1
	if p.lruHead >= 0 {
		p.bufs[p.lruHead].lruPrev = idx
	} else {
		p.lruTail = idx
	}
	p.lruHead = idx
}

// Getblk returns a buffer assigned to (dev, blkno), marked Busy.
// dev == diskio.NoDev requests an anonymous scratch buffer that is
// never entered into the hash.
func (p *Pool) Getblk(ctx context.Context, dev diskio.Dev, blkno uint32) *Buf {
	for {
		p.mu.Lock()

		if dev != diskio.NoDev {
			if idx, ok := p.hash[key{dev, blkno}]; ok {
				b := &p.bufs[idx]
				if b.flags.has(FlagBusy) {
					b.flags |= FlagWanted
					p.mu.Unlock()
					p.sq.Sleep(ctx, chanFor(idx), true)
					continue
				}
				p.unlinkLocked(idx)
				b.flags |= FlagBusy
				p.mu.Unlock()
				return b
			}
		}

		// No existing holder of this identity: take the LRU free buffer.
		idx := p.lruHead
		if idx < 0 {
			// The pool can never be fully exhausted of free buffers: every
			// buffer not BUSY lives on this list, and a caller can hold at
			// most one BUSY at a time per goroutine in this design.
			p.mu.Unlock()
			panic("bufcache: no free buffers available")
		}

		b := &p.bufs[idx]
		if b.flags.has(FlagDelwri) {
			p.unlinkLocked(idx)
			b.flags |= FlagBusy
			d := p.disks[b.dev]
			p.mu.Unlock()
			p.writeBackAsync(b, d)
			continue
		}

		p.unlinkLocked(idx)
		if b.blkno != 0 || b.dev != 0 {
			delete(p.hash, key{b.dev, b.blkno})
		}
		b.dev = dev
		b.blkno = blkno
		b.flags = FlagBusy
		if dev != diskio.NoDev {
			p.hash[key{dev, blkno}] = idx
		}
		p.mu.Unlock()
		return b
	}
}

// writeBackAsync writes a DELWRI victim out before it's reused and
// releases it, without blocking the caller of Getblk.
func (p *Pool) writeBackAsync(b *Buf, d *diskio.Disk) {
	go func() {
		if d != nil {
			if err := d.WriteBlock(b.blkno, b.Data()); err != nil {
				p.mu.Lock()
				b.flags |= FlagError
				p.mu.Unlock()
			}
		}
		p.mu.Lock()
		b.flags &^= FlagDelwri
		p.mu.Unlock()
		p.Brelse(b)
	}()
}

// Bread is Getblk followed by a synchronous read if the buffer isn't
// already marked Done.
func (p *Pool) Bread(ctx context.Context, dev diskio.Dev, blkno uint32) *Buf {
	b := p.Getblk(ctx, dev, blkno)
	if b.flags.has(FlagDone) {
		return b
	}

	p.mu.Lock()
	d := p.disks[dev]
	p.mu.Unlock()

	if d == nil {
		p.mu.Lock()
		b.flags |= FlagError
		p.mu.Unlock()
		return b
	}

	err := d.ReadBlock(blkno, b.Data())

	p.mu.Lock()
	if err != nil {
		b.flags |= FlagError
	} else {
		b.flags |= FlagDone
		b.flags &^= FlagError
	}
	p.mu.Unlock()

	return b
}

// Brelse clears Busy, wakes any waiter, and returns the buffer to the
// free list: the tail in the common case, the head (for quick reuse)
// if the buffer is in error.
func (p *Pool) Brelse(b *Buf) {
	p.mu.Lock()
	wanted := b.flags.has(FlagWanted)
	b.flags &^= FlagBusy | FlagWanted
	idx := b.self
	isErr := b.flags.has(FlagError)
	if isErr {
		p.pushHeadLocked(idx)
	} else {
		p.pushTailLocked(idx)
	}
	p.mu.Unlock()

	if wanted {
		p.sq.Wakeup(chanFor(idx))
	}
}

// Bwrite synchronously writes b's contents, clearing Delwri. On
// completion it calls Brelse unless the buffer carries the Async flag,
// in which case the caller remains responsible for releasing it.
func (p *Pool) Bwrite(b *Buf) error {
	p.mu.Lock()
	d := p.disks[b.dev]
	b.flags &^= FlagDelwri
	async := b.flags.has(FlagAsync)
	p.mu.Unlock()

	var err error
	if d != nil {
		err = d.WriteBlock(b.blkno, b.Data())
	}

	p.mu.Lock()
	if err != nil {
		b.flags |= FlagError
	} else {
		b.flags &^= FlagError
	}
	p.mu.Unlock()

	if !async {
		p.Brelse(b)
	}
	return err
}

// Bdwrite marks b Delwri and releases it without performing I/O now. It
// also marks b Done, so a later Bread of the same block returns these
// bytes instead of rereading the disk.
func (p *Pool) Bdwrite(b *Buf) {
	p.mu.Lock()
	b.flags |= FlagDelwri | FlagDone
	p.mu.Unlock()
	p.Brelse(b)
}

// Bflush writes back every Delwri buffer matching dev, or all of them
// if dev == diskio.NoDev.
func (p *Pool) Bflush(dev diskio.Dev) {
	for {
		p.mu.Lock()
		var victim *Buf
		for i := range p.bufs {
			b := &p.bufs[i]
			if b.flags.has(FlagDelwri) && !b.flags.has(FlagBusy) &&
				(dev == diskio.NoDev || b.dev == dev) {
				victim = b
				b.flags |= FlagBusy
				p.unlinkLocked(i)
				break
			}
		}
		p.mu.Unlock()

		if victim == nil {
			return
		}
		p.Bwrite(victim)
	}
}

// Clrbuf zeroes the buffer's data area.
func Clrbuf(b *Buf) {
	for i := range b.data {
		b.data[i] = 0
	}
}
