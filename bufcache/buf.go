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

// Package bufcache implements the block buffer cache: a fixed-size pool
// of buffers threaded onto a hash chain keyed by (device, block number)
// and a single global LRU free list, with write-back of DELWRI buffers.
// Hash chains and the LRU list are modeled as index-based lists into the
// buffer array, rather than raw pointer lists, so that the single-owner
// invariant the cache relies on is mechanically checkable.
package bufcache

import (
	"fmt"

	"github.com/retrokernel/v6core/diskio"
)

// Flag is the bitset of buffer state flags.
type Flag uint16

const (
	FlagRead Flag = 1 << iota
	FlagDone
	FlagError
	FlagBusy
	FlagWanted
	FlagAsync
	FlagDelwri
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// Buf is one block buffer: B=512 bytes of data for a (dev, blkno) pair,
// plus the flags and list linkage. External synchronization is provided
// by Pool; a Buf is never touched outside of a call into Pool while not
// BUSY.
type Buf struct {
	dev   diskio.Dev
	blkno uint32
	flags Flag
	data  [diskio.BlockSize]byte

	// index-based intrusive list linkage; -1 means "not linked".
	hashNext int
	lruPrev  int
	lruNext  int

	self int // this buffer's own index in Pool.bufs, for sanity checks
}

// Dev returns the device this buffer is currently assigned to.
func (b *Buf) Dev() diskio.Dev { return b.dev }

// Block returns the block number this buffer is currently assigned to.
func (b *Buf) Block() uint32 { return b.blkno }

// Data returns the buffer's B-byte data area.
func (b *Buf) Data() []byte { return b.data[:] }

// Error reports whether the last I/O on this buffer failed.
func (b *Buf) Error() bool { return b.flags.has(FlagError) }

// Delwri reports whether this buffer carries unwritten dirty data.
func (b *Buf) Delwri() bool { return b.flags.has(FlagDelwri) }

func (b *Buf) String() string {
	return fmt.Sprintf("buf{dev=%v blk=%d flags=%04x}", b.dev, b.blkno, b.flags)
}
