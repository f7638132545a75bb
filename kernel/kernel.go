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

// Package kernel wires the buffer cache, block/inode allocator, inode
// cache, open-file table, process table and scheduler together into one
// running instance, built up step by step and returned as a single
// value the way a sample filesystem's main assembles a clock, a file
// system, and a connection into one mounted server.
package kernel

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/retrokernel/v6core/bufcache"
	"github.com/retrokernel/v6core/cfg"
	"github.com/retrokernel/v6core/clock"
	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/fildes"
	"github.com/retrokernel/v6core/fsalloc"
	"github.com/retrokernel/v6core/incore"
	"github.com/retrokernel/v6core/proctab"
	"github.com/retrokernel/v6core/resource"
	"github.com/retrokernel/v6core/sched"
)

// RootDev is the device number the root (and, in this single-disk
// simulation, only) filesystem is mounted on.
const RootDev diskio.Dev = 0

// Kernel is one running instance: a disk image, the buffer cache and
// allocators layered on top of it, and the process table and scheduler
// that drive them.
type Kernel struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	Disk *diskio.Disk
	Clk  clock.Clock

	/////////////////////////
	// Constant data
	/////////////////////////

	Config cfg.Config

	/////////////////////////
	// Mutable state
	/////////////////////////

	Pool       *bufcache.Pool
	Superblock *fsalloc.Superblock
	Inodes     *incore.Cache
	Files      *fildes.Table
	Devsw      *fildes.Devsw
	Core       *resource.Map
	Swap       *resource.Map
	Procs      *proctab.Table
	Swapper    *sched.Swapper
}

// Open mounts the disk image named by config.Disk.ImagePath (creating it,
// formatted fresh, if it does not exist) and wires up every in-core
// subsystem on top of it.
func Open(ctx context.Context, config cfg.Config) (*Kernel, error) {
	if config.Disk.ImagePath == "" {
		return nil, fmt.Errorf("kernel: disk.image-path is required")
	}

	capacity := int64(config.FileSystem.Fsize)
	create := false
	if _, err := diskio.StatSize(config.Disk.ImagePath); err != nil {
		create = true
	}

	disk, err := diskio.Open(RootDev, config.Disk.ImagePath, create, capacity)
	if err != nil {
		return nil, fmt.Errorf("opening disk image: %w", err)
	}

	pool := bufcache.NewPool(config.BufferCache.Buffers)
	pool.Register(disk)

	sb := fsalloc.New(RootDev, config.FileSystem.Isize, config.FileSystem.Fsize)
	if create {
		if err := fsalloc.Format(ctx, pool, sb); err != nil {
			disk.Close()
			return nil, fmt.Errorf("formatting fresh filesystem: %w", err)
		}
	}

	clk := clock.RealClock{}

	inodes := incore.NewCache(pool, sb)
	inodes.SetClock(clk)
	files := fildes.NewTable(inodes)
	devsw := fildes.NewDevsw()

	core := resource.New(uint64(config.Memory.CoreClicks))
	swap := resource.New(uint64(config.Memory.SwapClicks))
	procs := proctab.NewTable(core, swap, files)

	k := &Kernel{
		Disk:       disk,
		Clk:        clk,
		Config:     config,
		Pool:       pool,
		Superblock: sb,
		Inodes:     inodes,
		Files:      files,
		Devsw:      devsw,
		Core:       core,
		Swap:       swap,
		Procs:      procs,
	}

	k.Swapper = sched.NewSwapper(procs, k.listProcesses, k.swapIn, k.swapOut, clk)

	return k, nil
}

// Close flushes dirty buffers and releases the disk image.
func (k *Kernel) Close() error {
	k.Pool.Bflush(RootDev)
	return k.Disk.Close()
}

func (k *Kernel) listProcesses() []*proctab.Process {
	return k.Procs.Snapshot()
}

// swapOut evicts p's resident image: its core allocation is released back
// to the core map and FlagLoad is cleared, marking it swapped. No bytes
// are copied and no space is taken from k.Swap: it updates the process's
// bookkeeping and stamps a new SwapGeneration.
func (k *Kernel) swapOut(p *proctab.Process) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if p.Flags&proctab.FlagLoad == 0 {
		return nil
	}
	if p.Size > 0 {
		k.Core.Free(uint64(p.Addr), uint64(p.Size))
	}
	p.Flags &^= proctab.FlagLoad
	p.ResidentTicks = 0
	p.SwapGeneration = uuid.New()
	return nil
}

// swapIn brings p's image back into core, the dual of swapOut.
func (k *Kernel) swapIn(p *proctab.Process) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if p.Flags&proctab.FlagLoad != 0 {
		return nil
	}
	if p.Size > 0 {
		addr, ok := k.Core.Alloc(uint64(p.Size))
		if !ok {
			return fmt.Errorf("kernel: core exhausted swapping in pid %d", p.Pid)
		}
		p.Addr = uint32(addr)
	}
	p.Flags |= proctab.FlagLoad
	p.SwappedTicks = 0
	return nil
}
