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

// Package sleepq implements the sleep/wakeup rendezvous primitive. It
// is deliberately ignorant of processes, priorities, and LOAD/SWAP
// state: it only parks and releases goroutines. bufcache, fsalloc,
// incore and fildes call it directly; nothing in this module records a
// process's wait channel or priority around a Sleep.
package sleepq

import (
	"context"
	"sync"

	"github.com/retrokernel/v6core/errno"
)

// Chan is a wait channel: an arbitrary integer identifying a
// rendezvous point. Callers conventionally derive one from the
// address of the resource being waited on (a buffer, a lock word, a
// pipe inode) by way of a stable numeric handle.
type Chan uint64

// Queue holds the waiters currently blocked on each Chan. The zero
// value is usable.
type Queue struct {
	mu      sync.Mutex
	waiters map[Chan][]chan struct{}
}

// Sleep blocks the calling goroutine until Wakeup(ch) is called, or
// until ctx is done when interruptible is true. Every awakened
// sleeper must re-test its condition on return: wakeups are unordered
// and offer no promise that whatever was being waited for still
// holds. Returns errno.EINTR if ctx was done before a matching Wakeup
// arrived. Uninterruptible sleepers (interruptible == false) ignore
// ctx entirely: they run to device-driven wakeup and are never
// abandoned.
func (q *Queue) Sleep(ctx context.Context, ch Chan, interruptible bool) error {
	waiter := make(chan struct{})

	q.mu.Lock()
	if q.waiters == nil {
		q.waiters = make(map[Chan][]chan struct{})
	}
	q.waiters[ch] = append(q.waiters[ch], waiter)
	q.mu.Unlock()

	if !interruptible {
		<-waiter
		return nil
	}

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		q.removeWaiter(ch, waiter)
		return errno.EINTR
	}
}

func (q *Queue) removeWaiter(ch Chan, waiter chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ws := q.waiters[ch]
	for i, w := range ws {
		if w == waiter {
			// A waiter still listed here has not been woken: Wakeup removes
			// a channel's waiters from the map before closing them. Closing
			// it is harmless, since its sleeper has already stopped
			// listening.
			select {
			case <-w:
			default:
				close(w)
			}
			q.waiters[ch] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(q.waiters[ch]) == 0 {
		delete(q.waiters, ch)
	}
}

// Wakeup marks every current waiter on ch runnable and returns how
// many there were. This is unordered: all matching sleepers are
// released, and the scheduler's priority rule (not this queue)
// determines who actually runs next.
func (q *Queue) Wakeup(ch Chan) int {
	q.mu.Lock()
	ws := q.waiters[ch]
	delete(q.waiters, ch)
	q.mu.Unlock()

	for _, w := range ws {
		close(w)
	}
	return len(ws)
}

// Waiting reports whether any goroutine is currently asleep on ch.
func (q *Queue) Waiting(ch Chan) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters[ch]) > 0
}
