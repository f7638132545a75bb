// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/retrokernel/v6core/cfg"
	"github.com/retrokernel/v6core/fildes"
	"github.com/retrokernel/v6core/proctab"

	. "github.com/jacobsa/ogletest"
)

func TestKernel(t *testing.T) { RunTests(t) }

type KernelTest struct {
	dir string
	cfg cfg.Config
}

func init() { RegisterTestSuite(&KernelTest{}) }

func (t *KernelTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = os.MkdirTemp("", "v6core-kernel-test")
	AssertEq(nil, err)

	t.cfg = cfg.GetDefaultConfig()
	t.cfg.Disk.ImagePath = filepath.Join(t.dir, "disk.img")
	t.cfg.FileSystem.Isize = 4
	t.cfg.FileSystem.Fsize = 64
	t.cfg.BufferCache.Buffers = 16
}

func (t *KernelTest) TearDown() {
	os.RemoveAll(t.dir)
}

func (t *KernelTest) OpenFormatsAFreshImageAndAllocatesABlock() {
	ctx := context.Background()

	k, err := Open(ctx, t.cfg)
	AssertEq(nil, err)
	defer k.Close()

	buf, err := k.Superblock.AllocBlock(ctx, k.Pool)
	AssertEq(nil, err)
	ExpectTrue(buf.Data() != nil)
	k.Pool.Brelse(buf)
}

func (t *KernelTest) ReopeningAnExistingImageDoesNotReformat() {
	ctx := context.Background()

	k1, err := Open(ctx, t.cfg)
	AssertEq(nil, err)

	in, err := k1.Inodes.AllocInode(ctx)
	AssertEq(nil, err)
	allocatedIno := in.Key().Ino
	// Give the inode a link so that Iput keeps it allocated on disk.
	in.Mu.Lock()
	in.SetNlink(1)
	in.Mu.Unlock()
	k1.Inodes.Unlock(in)
	AssertEq(nil, k1.Inodes.Iput(ctx, in))
	AssertEq(nil, k1.Close())

	k2, err := Open(ctx, t.cfg)
	AssertEq(nil, err)
	defer k2.Close()

	reread, err := k2.Inodes.Iget(ctx, RootDev, allocatedIno)
	AssertEq(nil, err)
	ExpectTrue(reread.Allocated())
	k2.Inodes.Unlock(reread)
	k2.Inodes.Prele(reread)
}

func (t *KernelTest) SwapOutThenSwapInPreservesResidentSize() {
	ctx := context.Background()

	k, err := Open(ctx, t.cfg)
	AssertEq(nil, err)
	defer k.Close()

	p := proctab.NewProcess(1, &fildes.Descriptors{})
	k.Procs.Insert(p)
	AssertEq(nil, k.Procs.Expand(p, 4, nil))

	AssertEq(nil, k.swapOut(p))
	p.Mu.Lock()
	ExpectEq(proctab.Flag(0), p.Flags&proctab.FlagLoad)
	ExpectFalse(p.SwapGeneration == uuid.Nil)
	p.Mu.Unlock()

	AssertEq(nil, k.swapIn(p))
	p.Mu.Lock()
	ExpectTrue(p.Flags&proctab.FlagLoad != 0)
	ExpectEq(uint32(4), p.Size)
	p.Mu.Unlock()
}

func (t *KernelTest) ListProcessesReturnsEverySnapshotEntry() {
	ctx := context.Background()

	k, err := Open(ctx, t.cfg)
	AssertEq(nil, err)
	defer k.Close()

	p := proctab.NewProcess(7, &fildes.Descriptors{})
	k.Procs.Insert(p)

	procs := k.listProcesses()
	AssertEq(1, len(procs))
	ExpectEq(7, procs[0].Pid)
}
