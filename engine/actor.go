// Copyright 2025 PolyCrypt GmbH
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

package engine

import (
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
)

var (
	ErrMailboxFull  = errors.New("channel mailbox is full")
	ErrActorStopped = errors.New("channel actor stopped")
)

// task runs on the goroutine of an actor.
type task func(a *actor)

// actor serializes everything that touches one channel: mutations of its
// ledger and the cranks of the objectives it owns. An objective is owned by
// the first channel it lists.
type actor struct {
	id         channel.ID
	ledger     fn.Option[channel.Ledger]
	objectives map[protocol.ObjectiveID]protocol.Objective

	mu      pkgsync.Mutex
	queue   []task
	limit   int
	stopped bool
	wake    chan struct{}
}

func newActor(id channel.ID, ledger fn.Option[channel.Ledger], limit int) *actor {
	return &actor{
		id:         id,
		ledger:     ledger,
		objectives: make(map[protocol.ObjectiveID]protocol.Objective),
		limit:      limit,
		wake:       make(chan struct{}, 1),
	}
}

// post enqueues t without bound. It is used for work derived from inputs the
// engine already accepted, so that actors never block on each other.
func (a *actor) post(t task) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrActorStopped
	}
	a.queue = append(a.queue, t)
	a.signal()
	return nil
}

// tell enqueues t unless the mailbox already holds limit tasks. It is used
// for inputs from peers and users.
func (a *actor) tell(t task) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrActorStopped
	}
	if len(a.queue) >= a.limit {
		return ErrMailboxFull
	}
	a.queue = append(a.queue, t)
	a.signal()
	return nil
}

func (a *actor) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *actor) pop() (task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 || a.stopped {
		return nil, false
	}
	t := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return t, true
}

// run processes tasks until stop is closed. Pending tasks are discarded.
func (a *actor) run(stop <-chan struct{}) {
	defer func() {
		a.mu.Lock()
		a.stopped = true
		a.queue = nil
		a.mu.Unlock()
	}()
	for {
		select {
		case <-stop:
			return
		case <-a.wake:
		}
		for {
			select {
			case <-stop:
				return
			default:
			}
			t, ok := a.pop()
			if !ok {
				break
			}
			t(a)
		}
	}
}

// running returns the ids of the objectives the actor owns.
func (a *actor) running() []protocol.ObjectiveID {
	ids := make([]protocol.ObjectiveID, 0, len(a.objectives))
	for id := range a.objectives {
		ids = append(ids, id)
	}
	return ids
}
