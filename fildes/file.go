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

// Package fildes implements the open-file table, per-process
// descriptor tables, and device switch: ufalloc/falloc and
// closef/closei, plus block/char device dispatch.
package fildes

import (
	"sync"

	"github.com/jacobsa/gcloud/syncutil"

	"github.com/retrokernel/v6core/incore"
	"github.com/retrokernel/v6core/sleepq"
)

// Open mode bits.
const (
	FRead  = 01
	FWrite = 02
	FPipe  = 04
)

// File is one open-file-table entry: a (mode, offset, inode) triple
// shared by every descriptor that was dup'd or inherited from the same
// open call.
type File struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	inode *incore.Inode

	/////////////////////////
	// Mutable state
	/////////////////////////

	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	mode   int
	offset uint32
	refs   int
}

func (f *File) checkInvariants() {
	if f.refs < 0 {
		panic("fildes: negative open-file reference count")
	}
}

// Inode returns the inode backing this open file.
func (f *File) Inode() *incore.Inode { return f.inode }

// Mode returns the FRead/FWrite/FPipe bits this file was opened with.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (f *File) Mode() int { return f.mode }

// Offset returns the current byte offset for reads/writes through this
// entry.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (f *File) Offset() uint32 { return f.offset }

// SetOffset updates the current byte offset.
// EXCLUSIVE_LOCKS_REQUIRED(Mu)
func (f *File) SetOffset(off uint32) { f.offset = off }

// Table is the system-wide open-file table plus the per-process
// descriptor tables layered on top of it.
type Table struct {
	mu    sync.Mutex
	sq    sleepq.Queue
	cache *incore.Cache
	files map[*File]struct{}
}

// NewTable creates an empty open-file table backed by cache for
// inode release on close.
func NewTable(cache *incore.Cache) *Table {
	return &Table{cache: cache, files: make(map[*File]struct{})}
}

// Falloc implements falloc: allocate a fresh open-file-table entry for
// in, opened with the given mode, with a single reference.
func (t *Table) Falloc(in *incore.Inode, mode int) *File {
	f := &File{inode: in, mode: mode, refs: 1}
	f.Mu = syncutil.NewInvariantMutex(f.checkInvariants)

	t.mu.Lock()
	t.files[f] = struct{}{}
	t.mu.Unlock()

	return f
}

// Dup increments f's reference count, for a descriptor table that
// wants to share the same open-file entry (fork, dup).
func (t *Table) Dup(f *File) {
	f.Mu.Lock()
	f.refs++
	f.Mu.Unlock()
}
