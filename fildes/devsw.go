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

	"github.com/retrokernel/v6core/errno"
)

// BlockDriver is the strategy entry a block device registers in the
// switch table.
type BlockDriver interface {
	Strategy(ctx context.Context, minor byte, write bool, blkno uint32, data []byte) error
}

// CharDriver is the read/write pair a character device registers.
type CharDriver interface {
	Read(ctx context.Context, minor byte, p []byte) (int, error)
	Write(ctx context.Context, minor byte, p []byte) (int, error)
}

// Devsw is the device switch: dispatch by major number to a registered
// block or character driver.
type Devsw struct {
	block map[byte]BlockDriver
	char  map[byte]CharDriver
}

// NewDevsw creates an empty device switch table.
func NewDevsw() *Devsw {
	return &Devsw{block: make(map[byte]BlockDriver), char: make(map[byte]CharDriver)}
}

// RegisterBlock binds a block driver to a major number.
func (s *Devsw) RegisterBlock(major byte, d BlockDriver) { s.block[major] = d }

// RegisterChar binds a character driver to a major number.
func (s *Devsw) RegisterChar(major byte, d CharDriver) { s.char[major] = d }

// Block dispatches to the block driver for major, reporting errno.ENXIO
// if none is registered.
func (s *Devsw) Block(major byte) (BlockDriver, error) {
	d, ok := s.block[major]
	if !ok {
		return nil, errno.ENXIO
	}
	return d, nil
}

// Char dispatches to the character driver for major, reporting
// errno.ENXIO if none is registered.
func (s *Devsw) Char(major byte) (CharDriver, error) {
	d, ok := s.char[major]
	if !ok {
		return nil, errno.ENXIO
	}
	return d, nil
}
