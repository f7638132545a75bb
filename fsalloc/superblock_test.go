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

package fsalloc_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/retrokernel/v6core/bufcache"
	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/errno"
	"github.com/retrokernel/v6core/fsalloc"

	. "github.com/jacobsa/ogletest"
)

func TestSuperblock(t *testing.T) { RunTests(t) }

type SuperblockTest struct {
	dir  string
	dev  diskio.Dev
	disk *diskio.Disk
	pool *bufcache.Pool
}

func init() { RegisterTestSuite(&SuperblockTest{}) }

func (t *SuperblockTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = os.MkdirTemp("", "v6core_fsalloc_test")
	AssertEq(nil, err)

	t.dev = diskio.MakeDev(2, 0)
	t.disk, err = diskio.Open(t.dev, filepath.Join(t.dir, "disk.img"), true, 256)
	AssertEq(nil, err)

	t.pool = bufcache.NewPool(bufcache.MinBufs)
	t.pool.Register(t.disk)
}

func (t *SuperblockTest) TearDown() {
	t.disk.Close()
	os.RemoveAll(t.dir)
}

// A fresh filesystem with isize=10, fsize=200 and an exhausted
// free-block cache (nfree=1, s_free=[0,...]) reports NOSPC and leaves
// the cache untouched.
func (t *SuperblockTest) FreshFilesystemAllocBlockReportsNospcAndLeavesCacheUntouched() {
	sb := fsalloc.New(t.dev, 10, 200)

	buf, err := sb.AllocBlock(context.Background(), t.pool)
	ExpectEq(nil, buf)
	ExpectEq(errno.ENOSPC, err)
	ExpectEq(1, sb.NFree)
	ExpectEq(uint32(0), sb.Free[0])
}

// A superblock with a full (100-entry) free-block cache, all slots
// nonzero, frees block 42. The cache is written out to block 42
// (preserving the old 100 entries as a chain link), and the in-core
// cache collapses to a single entry pointing at block 42.
func (t *SuperblockTest) FreeBlockWithFullCacheWritesChainLinkAndCollapsesCache() {
	sb := fsalloc.New(t.dev, 10, 200)
	sb.NFree = fsalloc.MaxFreeCache
	for i := range sb.Free {
		sb.Free[i] = uint32(50 + i)
	}
	wantChain := sb.Free

	err := sb.FreeBlock(context.Background(), t.pool, 42)
	AssertEq(nil, err)

	ExpectEq(1, sb.NFree)
	ExpectEq(uint32(42), sb.Free[0])

	buf := t.pool.Bread(context.Background(), t.dev, 42)
	defer t.pool.Brelse(buf)
	data := buf.Data()
	ExpectEq(uint16(fsalloc.MaxFreeCache), binary.LittleEndian.Uint16(data[0:2]))
	for i, want := range wantChain {
		got := uint32(binary.LittleEndian.Uint16(data[2+2*i : 4+2*i]))
		AssertEq(want, got)
	}
}

func (t *SuperblockTest) AllocBlockPopsAndZeroesAnOrdinaryCachedBlock() {
	sb := fsalloc.New(t.dev, 10, 200)
	sb.NFree = 2
	sb.Free[0] = 20
	sb.Free[1] = 30

	buf, err := sb.AllocBlock(context.Background(), t.pool)
	AssertEq(nil, err)
	ExpectEq(uint32(30), buf.Block())
	ExpectEq(1, sb.NFree)
	for _, c := range buf.Data() {
		AssertEq(byte(0), c)
	}
	t.pool.Brelse(buf)
}

func (t *SuperblockTest) AllocBlockRefillsFromChainBlockWhenCacheEmpties() {
	sb := fsalloc.New(t.dev, 10, 200)

	// Seed a chain-link block at 99 holding 2 free block numbers.
	chain := t.pool.Getblk(context.Background(), t.dev, 99)
	bufcache.Clrbuf(chain)
	data := chain.Data()
	binary.LittleEndian.PutUint16(data[0:2], 2)
	binary.LittleEndian.PutUint16(data[2:4], 60)
	binary.LittleEndian.PutUint16(data[4:6], 61)
	t.pool.Bwrite(chain)

	sb.NFree = 1
	sb.Free[0] = 99

	buf, err := sb.AllocBlock(context.Background(), t.pool)
	AssertEq(nil, err)
	ExpectEq(uint32(99), buf.Block())
	ExpectEq(2, sb.NFree)
	ExpectEq(uint32(60), sb.Free[0])
	ExpectEq(uint32(61), sb.Free[1])
	t.pool.Brelse(buf)
}

func (t *SuperblockTest) FreeBlockRejectsOutOfRangeBlockNumbers() {
	sb := fsalloc.New(t.dev, 10, 200)
	err := sb.FreeBlock(context.Background(), t.pool, 5) // < isize+2
	ExpectEq(errno.EIO, err)
}

func (t *SuperblockTest) PushAndPopFreeInodeRoundTrip() {
	sb := fsalloc.New(t.dev, 10, 200)
	ok := sb.PushFreeInode(7)
	ExpectTrue(ok)

	ino, ok := sb.PopFreeInode()
	ExpectTrue(ok)
	ExpectEq(uint32(7), ino)

	_, ok = sb.PopFreeInode()
	ExpectFalse(ok)
}

func (t *SuperblockTest) RefillFreeInodesSkipsAllocatedAndPinnedInodes() {
	sb := fsalloc.New(t.dev, 2, 200)
	ctx := context.Background()

	// Inode 1: allocated on disk.
	block, offset := fsalloc.BlockOf(1)
	buf := t.pool.Bread(ctx, t.dev, block)
	rec := fsalloc.OnDiskInode{Mode: fsalloc.ModeAlloc}
	copy(buf.Data()[offset:offset+fsalloc.InodeSize], rec.Marshal()[:])
	t.pool.Bwrite(buf)

	pinned := func(ino uint32) bool { return ino == 2 }

	err := sb.RefillFreeInodes(ctx, t.pool, pinned)
	AssertEq(nil, err)

	for i := 0; i < sb.NInode; i++ {
		AssertFalse(sb.FreeInode[i] == 1)
		AssertFalse(sb.FreeInode[i] == 2)
	}
}
