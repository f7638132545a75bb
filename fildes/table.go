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

package fildes

import (
	"context"
	"unsafe"

	"github.com/retrokernel/v6core/errno"
	"github.com/retrokernel/v6core/incore"
	"github.com/retrokernel/v6core/sleepq"
)

func uintptrOf(f *File) uintptr { return uintptr(unsafe.Pointer(f)) }

// NumFile is the classic per-process descriptor table size.
const NumFile = 20

// Descriptors is one process's file descriptor table: a fixed array of
// open-file-table pointers indexed by descriptor number.
type Descriptors struct {
	slots [NumFile]*File
}

// Ufalloc implements ufalloc: find the lowest-numbered unused
// descriptor and bind it to f.
func (d *Descriptors) Ufalloc(f *File) (fd int, err error) {
	for i, s := range d.slots {
		if s == nil {
			d.slots[i] = f
			return i, nil
		}
	}
	return -1, errno.EMFILE
}

// Get returns the open-file-table entry bound to fd.
func (d *Descriptors) Get(fd int) (*File, error) {
	if fd < 0 || fd >= NumFile || d.slots[fd] == nil {
		return nil, errno.EBADF
	}
	return d.slots[fd], nil
}

// Clear unbinds fd without closing the underlying File.
func (d *Descriptors) Clear(fd int) {
	if fd >= 0 && fd < NumFile {
		d.slots[fd] = nil
	}
}

// Fork duplicates every bound descriptor into a new table,
// incrementing each File's reference count, per descriptor
// inheritance.
func (d *Descriptors) Fork(t *Table) *Descriptors {
	var child Descriptors
	for i, f := range d.slots {
		if f != nil {
			t.Dup(f)
			child.slots[i] = f
		}
	}
	return &child
}

// pipeReadChan/pipeWriteChan return the sleep channels pipe
// readers/writers rendezvous on for a given File. Read and write sides
// use distinct channels so that a reader blocked for data and a writer
// blocked for room don't collide.
func pipeReadChan(f *File) sleepq.Chan  { return sleepq.Chan(uintptrOf(f))<<1 | 0 }
func pipeWriteChan(f *File) sleepq.Chan { return sleepq.Chan(uintptrOf(f))<<1 | 1 }

// Closef implements closef: drop one reference to f, and once the last
// reference is gone, release the inode and (for pipes) wake both the
// reader and the writer so each observes EOF/closed rather than
// sleeping forever.
func (t *Table) Closef(ctx context.Context, f *File) error {
	f.Mu.Lock()
	f.refs--
	last := f.refs == 0
	isPipe := f.mode&FPipe != 0
	f.Mu.Unlock()

	if !last {
		return nil
	}

	t.mu.Lock()
	delete(t.files, f)
	t.mu.Unlock()

	if isPipe {
		t.sq.Wakeup(pipeReadChan(f))
		t.sq.Wakeup(pipeWriteChan(f))
	}

	return t.Closei(ctx, f.inode)
}

// Closei implements closei: release the cache's reference on in via
// Iput, which writes it back and frees it on disk if its link count
// has dropped to zero.
func (t *Table) Closei(ctx context.Context, in *incore.Inode) error {
	return t.cache.Iput(ctx, in)
}
