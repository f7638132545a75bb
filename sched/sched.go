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

// Package sched implements swtch, the priority process selector, and
// sched, process 0's swapper loop. Swtch keeps no rotating cursor: among
// equal-priority processes it returns the first one in the slice it is
// given.
package sched

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jacobsa/gcloud/syncutil"

	"github.com/retrokernel/v6core/clock"
	"github.com/retrokernel/v6core/proctab"
)

// Hysteresis constants governing the swapper's victim selection: a
// process must have been resident at least minResidentTicks before it
// is considered for eviction, and once swapped out must wait
// minSwappedTicks before being swapped back in, to avoid thrashing a
// process back and forth.
const (
	minResidentTicks = 2
	minSwappedTicks  = 3
	period           = 5 * time.Millisecond
)

// Swtch scans the table for the highest-priority resident (StatusRun,
// FlagLoad) process and returns it, or nil if none is runnable (the
// idle loop).
func Swtch(procs []*proctab.Process) *proctab.Process {
	var best *proctab.Process
	bestPrio := int(^uint(0) >> 1)

	for _, p := range procs {
		p.Mu.Lock()
		runnable := p.Status == proctab.StatusRun && p.Flags&proctab.FlagLoad != 0
		prio := p.Prio
		p.Mu.Unlock()

		if runnable && prio < bestPrio {
			best = p
			bestPrio = prio
		}
	}

	return best
}

// Swapper runs process 0's loop: periodically find the runnable
// swapped-out process that has been swapped out longest, try to bring it
// into core, and if that fails evict a resident victim via swapOut and
// try once more.
type Swapper struct {
	mu      syncutil.InvariantMutex
	procs   *proctab.Table
	list    func() []*proctab.Process
	swapIn  func(p *proctab.Process) error
	swapOut func(p *proctab.Process) error
	clk     clock.Clock
}

func (s *Swapper) checkInvariants() {}

// NewSwapper builds a swapper. list returns a snapshot of all
// processes; swapIn/swapOut perform the actual core<->disk image
// transfer and are expected to block until the swap I/O completes. clk
// paces the loop's period wait, so tests can drive it with a
// clock.SimulatedClock instead of waiting on the wall clock.
func NewSwapper(procs *proctab.Table, list func() []*proctab.Process, swapIn, swapOut func(*proctab.Process) error, clk clock.Clock) *Swapper {
	s := &Swapper{procs: procs, list: list, swapIn: swapIn, swapOut: swapOut, clk: clk}
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

// Run executes the swapper loop until ctx is cancelled, logging every
// pass that fails.
func (s *Swapper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clk.After(period):
		}

		if err := s.runOnce(); err != nil {
			log.Printf("sched: swap pass failed: %v", err)
		}
	}
}

func (s *Swapper) runOnce() error {
	procs := s.list()

	candidate := s.pickSwapInCandidate(procs)
	if candidate == nil {
		return nil
	}

	err := s.swapIn(candidate)
	if err == nil {
		return nil
	}

	victim := s.pickSwapOutVictim(procs, candidate)
	if victim == nil {
		return err
	}
	if err := s.swapOut(victim); err != nil {
		return err
	}

	return s.swapIn(candidate)
}

// pickSwapInCandidate selects the swapped-out runnable process that
// has waited longest, once it has waited at least minSwappedTicks and
// actually has a swap image to bring back (SwapGeneration set by a
// prior swapOut; a process never yet swapped out has nothing to read
// and is skipped).
func (s *Swapper) pickSwapInCandidate(procs []*proctab.Process) *proctab.Process {
	var best *proctab.Process
	var bestWait int

	for _, p := range procs {
		p.Mu.Lock()
		eligible := p.Status == proctab.StatusRun && p.Flags&proctab.FlagLoad == 0 &&
			p.SwappedTicks >= minSwappedTicks && p.SwapGeneration != uuid.Nil
		wait := p.SwappedTicks
		p.Mu.Unlock()

		if eligible && wait > bestWait {
			best = p
			bestWait = wait
		}
	}

	return best
}

// pickSwapOutVictim selects a resident process (other than candidate)
// that has been resident at least minResidentTicks, preferring the one
// resident longest.
func (s *Swapper) pickSwapOutVictim(procs []*proctab.Process, candidate *proctab.Process) *proctab.Process {
	var best *proctab.Process
	var bestResident int

	for _, p := range procs {
		if p == candidate {
			continue
		}
		p.Mu.Lock()
		eligible := p.Flags&proctab.FlagLoad != 0 && p.ResidentTicks >= minResidentTicks
		resident := p.ResidentTicks
		p.Mu.Unlock()

		if eligible && resident > bestResident {
			best = p
			bestResident = resident
		}
	}

	return best
}
