// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package diskio is the thin synchronous strategy layer: a disk image
// file addressed by (device, block-number), read and written one
// B=512 byte block at a time. Real interrupt-driven completion,
// request queues, and multiple physical spindles are out of scope;
// bufcache only ever needs a call that blocks until the bytes are on
// or off the platter.
package diskio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BlockSize is the fixed block size in bytes.
const BlockSize = 512

// Dev identifies a device: high byte major, low byte minor. NoDev is
// the "no device" sentinel (-1) used by the buffer cache and mount
// table.
type Dev int32

const NoDev Dev = -1

func (d Dev) Major() byte { return byte(uint32(d) >> 8) }
func (d Dev) Minor() byte { return byte(uint32(d)) }

// MakeDev packs a (major, minor) pair the way mkdev(3) does.
func MakeDev(major, minor byte) Dev {
	return Dev(uint32(major)<<8 | uint32(minor))
}

// Disk is a single block device backed by a regular file, addressed
// by block number. One Disk corresponds to one entry in the block
// half of the device switch; its ReadBlock and WriteBlock methods do the
// transfers that entry's "strategy" function pointer would perform.
type Disk struct {
	dev  Dev
	file *os.File
}

// Open opens (or creates, if create is true) a disk image file of a given
// capacity in blocks and wraps it as a Disk identified by dev.
func Open(dev Dev, path string, create bool, capacityBlocks int64) (*Disk, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	if create {
		if err := f.Truncate(capacityBlocks * BlockSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate %q: %w", path, err)
		}
	}

	return &Disk{dev: dev, file: f}, nil
}

// Dev returns the device number this Disk answers to.
func (d *Disk) Dev() Dev { return d.dev }

// Close releases the underlying file descriptor.
func (d *Disk) Close() error {
	return d.file.Close()
}

// ReadBlock synchronously reads block blkno into buf, which must be
// exactly BlockSize bytes. This is the "strategy" contract bread relies
// on: it returns once the bytes are in memory, full stop.
func (d *Disk) ReadBlock(blkno uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("diskio: buffer must be %d bytes, got %d", BlockSize, len(buf))
	}

	n, err := unix.Pread(int(d.file.Fd()), buf, int64(blkno)*BlockSize)
	if err != nil {
		return fmt.Errorf("pread block %d: %w", blkno, err)
	}
	if n != BlockSize {
		return fmt.Errorf("pread block %d: short read (%d bytes)", blkno, n)
	}

	return nil
}

// WriteBlock synchronously writes buf, which must be exactly BlockSize
// bytes, to block blkno.
func (d *Disk) WriteBlock(blkno uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("diskio: buffer must be %d bytes, got %d", BlockSize, len(buf))
	}

	n, err := unix.Pwrite(int(d.file.Fd()), buf, int64(blkno)*BlockSize)
	if err != nil {
		return fmt.Errorf("pwrite block %d: %w", blkno, err)
	}
	if n != BlockSize {
		return fmt.Errorf("pwrite block %d: short write (%d bytes)", blkno, n)
	}

	return nil
}
