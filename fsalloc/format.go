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

	"github.com/retrokernel/v6core/bufcache"
)

// Format lays out a fresh filesystem on sb's device: it zeroes the inode
// list (blocks [2, isize+2)) and builds the on-disk free-block chain by
// freeing every data block in [isize+2, fsize) through sb's own FreeBlock,
// the same primitive a running kernel uses, so the chain it produces is
// exactly what a kernel that has been freeing blocks since boot would have
// built. sb must be a freshly New-constructed superblock: Format relies
// on the sentinel New leaves at the bottom of the free-block stack
// (NFree=1, Free[0]=0) to terminate the chain it builds.
func Format(ctx context.Context, pool *bufcache.Pool, sb *Superblock) error {
	for block := uint32(2); block < sb.Isize+2; block++ {
 buf := pool.Getblk(ctx, sb.Dev, block)
 bufcache.Clrbuf(buf)
 if err := pool.Bwrite(buf); err != nil {
 return err
 }
	}

	for bno := sb.Isize + 2; bno < sb.Fsize; bno++ {
 if err := sb.FreeBlock(ctx, pool, bno); err != nil {
 return err
 }
	}

	return nil
}
