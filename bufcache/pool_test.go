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

package bufcache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/retrokernel/v6core/bufcache"
	"github.com/retrokernel/v6core/diskio"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestPool(t *testing.T) { RunTests(t) }

type PoolTest struct {
	dir  string
	dev  diskio.Dev
	disk *diskio.Disk
	pool *bufcache.Pool
}

func init() { RegisterTestSuite(&PoolTest{}) }

func (t *PoolTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = os.MkdirTemp("", "v6core_bufcache_test")
	AssertEq(nil, err)

	t.dev = diskio.MakeDev(1, 0)
	t.disk, err = diskio.Open(t.dev, filepath.Join(t.dir, "disk.img"), true, 64)
	AssertEq(nil, err)

	t.pool = bufcache.NewPool(bufcache.MinBufs)
	t.pool.Register(t.disk)
}

func (t *PoolTest) TearDown() {
	t.disk.Close()
	os.RemoveAll(t.dir)
}

func (t *PoolTest) GetblkThenBrelseRoundTripsBytes() {
	b := t.pool.Getblk(context.Background(), t.dev, 5)
	copy(b.Data(), []byte("hello, block"))
	t.pool.Bdwrite(b)
	t.pool.Bflush(t.dev)

	b2 := t.pool.Bread(context.Background(), t.dev, 5)
	ExpectThat(b2.Data()[:12], ElementsAre(
		'h', 'e', 'l', 'l', 'o', ',', ' ', 'b', 'l', 'o', 'c', 'k'))
	t.pool.Brelse(b2)
}

// Two callers racing on the same (dev, blkno) serialize through Getblk
// rather than observing two distinct buffers.
func (t *PoolTest) SecondGetblkWaitsForFirstToRelease() {
	b1 := t.pool.Getblk(context.Background(), t.dev, 9)
	copy(b1.Data(), []byte("first"))

	gotSecond := make(chan *bufcache.Buf, 1)
	go func() {
		gotSecond <- t.pool.Getblk(context.Background(), t.dev, 9)
	}()

	select {
	case <-gotSecond:
		AddFailure("second Getblk returned before the first buffer was released")
	case <-time.After(20 * time.Millisecond):
	}

	t.pool.Brelse(b1)

	select {
	case b2 := <-gotSecond:
		ExpectEq(t.dev, b2.Dev())
		ExpectEq(uint32(9), b2.Block())
		ExpectThat(b2.Data()[:5], ElementsAre('f', 'i', 'r', 's', 't'))
		t.pool.Brelse(b2)
	case <-time.After(time.Second):
		AddFailure("second Getblk never unblocked")
	}
}

// The pool holds bufcache.MinBufs buffers. Touching that many distinct
// blocks (A first, then B, C, ...) fills it; touching one more block, D,
// evicts the least-recently-used one (A) and reuses its buffer, after
// which B, C and D remain resident in their own buffers.
func (t *PoolTest) BlockBeyondPoolSizeEvictsLeastRecentlyUsed() {
	ctx := context.Background()

	held := map[uint32]*bufcache.Buf{}
	for blk := uint32(1); blk <= bufcache.MinBufs; blk++ { // A=1, B=2, C=3, ...
		b := t.pool.Getblk(ctx, t.dev, blk)
		held[blk] = b
		t.pool.Brelse(b)
	}

	dBlk := uint32(bufcache.MinBufs + 1)
	d := t.pool.Getblk(ctx, t.dev, dBlk) // D: forces eviction of A (block 1)
	ExpectEq(held[1], d)
	t.pool.Brelse(d)

	// B, C and D are still resident: fetching them again returns the
	// buffers that already hold them.
	b := t.pool.Getblk(ctx, t.dev, 2)
	c := t.pool.Getblk(ctx, t.dev, 3)
	d2 := t.pool.Getblk(ctx, t.dev, dBlk)
	ExpectEq(held[2], b)
	ExpectEq(held[3], c)
	ExpectEq(d, d2)
	t.pool.Brelse(b)
	t.pool.Brelse(c)
	t.pool.Brelse(d2)
}

func (t *PoolTest) ClrbufZeroesTheDataArea() {
	b := t.pool.Getblk(context.Background(), t.dev, 11)
	copy(b.Data(), []byte("not zero"))
	bufcache.Clrbuf(b)
	for _, c := range b.Data() {
		AssertEq(byte(0), c)
	}
	t.pool.Brelse(b)
}
