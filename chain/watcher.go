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

package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"perun.network/go-perun/log"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
)

const (
	DefaultBufferSize                  = 1024
	DefaultSubscriptionPollingInterval = time.Duration(5) * time.Second
)

// Watcher polls the adjudicator for the watched channels and emits an event
// for every change it observes.
type Watcher struct {
	cl           client.Client
	clock        clock.Clock
	pollInterval time.Duration
	events       chan event.Event

	mu       pkgsync.Mutex
	channels map[channel.ID]client.ChannelInfo

	closer pkgsync.Closer
	log    log.Embedding
}

func NewWatcher(cl client.Client, clk clock.Clock, pollInterval time.Duration) *Watcher {
	return &Watcher{
		cl:           cl,
		clock:        clk,
		pollInterval: pollInterval,
		events:       make(chan event.Event, DefaultBufferSize),
		channels:     make(map[channel.ID]client.ChannelInfo),
		log:          log.MakeEmbedding(log.Default()),
	}
}

// Events returns the stream of observed chain events. It is closed when the
// watcher is closed.
func (w *Watcher) Events() <-chan event.Event {
	return w.events
}

// Watch starts observing id. Changes are reported relative to the chain
// state at the first poll.
func (w *Watcher) Watch(id channel.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.channels[id]; !ok {
		w.channels[id] = client.ChannelInfo{}
	}
}

func (w *Watcher) Unwatch(id channel.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.channels, id)
}

// Run polls until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Log().Info("Listening for channel state changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closer.Closed():
			return nil
		case <-w.clock.TickAfter(w.pollInterval):
			w.Poll(ctx)
		}
	}
}

// Poll queries every watched channel once and emits the differences to the
// previous poll.
func (w *Watcher) Poll(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer.IsClosed() {
		return
	}

	for id, prev := range w.channels {
		next, err := w.cl.GetChannelInfo(ctx, id)
		if err != nil {
			w.log.Log().WithField("channel", id.Hex()).Warnf("Error while polling channel: %v", err)
			continue
		}
		w.channels[id] = next
		for _, ev := range Differences(id, prev, next) {
			w.log.Log().WithField("channel", id.Hex()).Debugf("Found event: %v", ev.GetType())
			select {
			case w.events <- ev:
			default:
				w.log.Log().Errorf("Event buffer full, dropping %v", ev.GetType())
			}
		}
	}
}

// Close stops the watcher and closes the event stream.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.closer.Close(); err != nil {
		return err
	}
	close(w.events)
	return nil
}

// Differences translates the change from prev to next into events.
func Differences(id channel.ID, prev, next client.ChannelInfo) []event.Event {
	var events []event.Event
	if prevHoldings(prev).Cmp(next.Holdings) != 0 {
		events = append(events, event.FundingUpdated{Channel: id, Amount: next.Holdings, Finalized: true})
	}
	if next.Cleared > prev.Cleared {
		// The specific event comes first so that challengers see the
		// answering state.
		switch next.ClearedBy {
		case client.TxRespond:
			events = append(events, event.RespondWithMove{Channel: id, State: next.ClearingState.Clone()})
		case client.TxRefute:
			events = append(events, event.Refuted{Channel: id})
		}
		events = append(events, event.ChallengeCleared{Channel: id, NewTurnNumRecord: next.TurnNumRecord})
	}
	if next.Challenged && (!prev.Challenged || !prev.FinalizesAt.Equal(next.FinalizesAt)) {
		events = append(events, event.ChallengeRegistered{
			Channel:        id,
			FinalizesAt:    next.FinalizesAt,
			DisputedStates: next.DisputedStates,
		})
	}
	if next.Expired && !prev.Expired {
		events = append(events, event.ChallengeExpired{Channel: id})
	}
	if next.Concluded && !prev.Concluded {
		events = append(events, event.Concluded{Channel: id})
	}
	return events
}

func prevHoldings(info client.ChannelInfo) *big.Int {
	if info.Holdings == nil {
		return new(big.Int)
	}
	return info.Holdings
}
