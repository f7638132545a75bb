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

package sched_test

import (
	"context"
	"testing"
	"time"

	"github.com/retrokernel/v6core/clock"
	"github.com/retrokernel/v6core/fildes"
	"github.com/retrokernel/v6core/proctab"
	"github.com/retrokernel/v6core/sched"

	. "github.com/jacobsa/ogletest"
)

func TestSched(t *testing.T) { RunTests(t) }

type SchedTest struct{}

func init() { RegisterTestSuite(&SchedTest{}) }

func mkProc(pid, prio int, status proctab.Status, flags proctab.Flag) *proctab.Process {
	p := proctab.NewProcess(pid, &fildes.Descriptors{})
	p.Mu.Lock()
	p.Prio = prio
	p.Status = status
	p.Flags = flags
	p.Mu.Unlock()
	return p
}

func (t *SchedTest) SwtchPicksTheHighestPriorityRunnableProcess() {
	a := mkProc(1, 5, proctab.StatusRun, proctab.FlagLoad)
	b := mkProc(2, 2, proctab.StatusRun, proctab.FlagLoad)
	c := mkProc(3, 1, proctab.StatusSleep, proctab.FlagLoad)

	got := sched.Swtch([]*proctab.Process{a, b, c})
	ExpectEq(b, got)
}

func (t *SchedTest) SwtchReturnsNilWhenNothingIsRunnable() {
	a := mkProc(1, 5, proctab.StatusSleep, proctab.FlagLoad)
	got := sched.Swtch([]*proctab.Process{a})
	ExpectTrue(got == nil)
}

// RunReturnsPromptlyOnContextCancellation exercises the swapper loop's
// clock-paced wait: it must prefer an already-done ctx over the
// clock.SimulatedClock's After channel, which sits pending at the start
// of every pass.
func (t *SchedTest) RunReturnsPromptlyOnContextCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clk := clock.NewSimulatedClock(time.Time{})
	s := sched.NewSwapper(
		nil,
		func() []*proctab.Process { return nil },
		func(*proctab.Process) error { return nil },
		func(*proctab.Process) error { return nil },
		clk,
	)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		AddFailure("Run did not return after context cancellation")
	}
}
