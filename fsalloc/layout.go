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

// Package fsalloc implements the on-disk filesystem layout, the
// per-filesystem free-block chain, and the free-inode number cache, all
// layered on bufcache.Pool. The inode cache proper (iget/iput) lives in
// package incore, which depends on fsalloc for the on-disk record format
// and the free lists; fsalloc does not depend on incore, matching the
// original kernel's alloc.c, which manipulates the inode table directly
// rather than through any cache abstraction.
package fsalloc

import (
	"encoding/binary"
	"time"
)

// NumDirect is the number of block address slots an on-disk inode
// carries.
const NumDirect = 8

// InodeSize is the on-disk size of one inode record.
const InodeSize = 32

// InodesPerBlock is K in the inode addressing formula.
const InodesPerBlock = 512 / InodeSize

// OnDiskInode is the 32-byte packed little-endian inode record.
type OnDiskInode struct {
	Mode     uint16
	Nlink    uint8
	Uid      uint8
	Gid      uint8
	SizeHigh uint8
	SizeLow  uint16
	Addr     [NumDirect]uint16
	Atime    [2]uint16
	Mtime    [2]uint16
}

// Size returns the inode's 24-bit size field as a single value.
func (o *OnDiskInode) Size() uint32 {
	return uint32(o.SizeHigh)<<16 | uint32(o.SizeLow)
}

// SetSize packs a size back into SizeHigh/SizeLow, truncating to 24 bits.
func (o *OnDiskInode) SetSize(size uint32) {
	size &= 0xFFFFFF
	o.SizeHigh = uint8(size >> 16)
	o.SizeLow = uint16(size)
}

// PackTime encodes a wall-clock time as the two-word (high, low) split of
// a 32-bit Unix timestamp the on-disk inode record stores its Atime and
// Mtime fields as.
func PackTime(t time.Time) [2]uint16 {
	secs := uint32(t.Unix())
	return [2]uint16{uint16(secs >> 16), uint16(secs)}
}

// UnpackTime is the inverse of PackTime.
func UnpackTime(w [2]uint16) time.Time {
	secs := uint32(w[0])<<16 | uint32(w[1])
	return time.Unix(int64(secs), 0).UTC()
}

// Marshal encodes the inode into a 32-byte little-endian record.
func (o *OnDiskInode) Marshal() [InodeSize]byte {
	var buf [InodeSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], o.Mode)
	buf[2] = o.Nlink
	buf[3] = o.Uid
	buf[4] = o.Gid
	buf[5] = o.SizeHigh
	binary.LittleEndian.PutUint16(buf[6:8], o.SizeLow)
	for i, a := range o.Addr {
		binary.LittleEndian.PutUint16(buf[8+2*i:10+2*i], a)
	}
	binary.LittleEndian.PutUint16(buf[24:26], o.Atime[0])
	binary.LittleEndian.PutUint16(buf[26:28], o.Atime[1])
	binary.LittleEndian.PutUint16(buf[28:30], o.Mtime[0])
	binary.LittleEndian.PutUint16(buf[30:32], o.Mtime[1])
	return buf
}

// UnmarshalInode decodes a 32-byte little-endian record.
func UnmarshalInode(buf []byte) OnDiskInode {
	var o OnDiskInode
	o.Mode = binary.LittleEndian.Uint16(buf[0:2])
	o.Nlink = buf[2]
	o.Uid = buf[3]
	o.Gid = buf[4]
	o.SizeHigh = buf[5]
	o.SizeLow = binary.LittleEndian.Uint16(buf[6:8])
	for i := range o.Addr {
		o.Addr[i] = binary.LittleEndian.Uint16(buf[8+2*i : 10+2*i])
	}
	o.Atime[0] = binary.LittleEndian.Uint16(buf[24:26])
	o.Atime[1] = binary.LittleEndian.Uint16(buf[26:28])
	o.Mtime[0] = binary.LittleEndian.Uint16(buf[28:30])
	o.Mtime[1] = binary.LittleEndian.Uint16(buf[30:32])
	return o
}

// BlockOf returns the block number holding inode ino (1-based) and the
// byte offset of its 32-byte record within that block:
// inode N lives at byte offset ((N-1) mod K) * 32 of block 2 + (N-1)/K.
func BlockOf(ino uint32) (block uint32, offset int) {
	idx := ino - 1
	block = 2 + idx/InodesPerBlock
	offset = int(idx%InodesPerBlock) * InodeSize
	return
}

// Mode bits, octal.
const (
	ModeAlloc        uint16 = 0100000
	ModeDir          uint16 = 0040000
	ModeCharSpecial  uint16 = 0020000
	ModeBlockSpecial uint16 = 0060000
	ModeLarge        uint16 = 0010000
	ModeSUID         uint16 = 04000
	ModeSGID         uint16 = 02000
	ModeSticky       uint16 = 01000
	ModeRWXOwner     uint16 = 0700
	ModeRWXGroup     uint16 = 070
	ModeRWXOther     uint16 = 07
)
