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

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/protocol/dispute"
)

func fromOption[A any](o fn.Option[A]) (A, bool) {
	if o.IsNone() {
		var zero A
		return zero, false
	}
	return o.UnsafeFromSome(), true
}

// putLedger persists l and makes it the ledger of a.
func (e *Engine) putLedger(a *actor, l channel.Ledger) error {
	if err := e.store.PutChannel(l); err != nil {
		return errors.WithMessage(err, "persisting ledger")
	}
	a.ledger = fn.Some(l)
	return nil
}

// extend adds ss to the ledger l. Stale states leave l unchanged.
func extend(l channel.Ledger, ss channel.SignedState) (channel.Ledger, bool, error) {
	latest := l.Latest()
	var (
		next channel.Ledger
		err  error
	)
	switch {
	case ss.Hash() == latest.Hash():
		next, err = l.AddSignatures(ss)
	case ss.State.TurnNum == latest.State.TurnNum+1:
		next, err = l.TryAppend(ss)
		if err != nil && ss.SignedByAll() {
			next, err = l.Checkpoint(ss)
		}
	case ss.State.TurnNum > latest.State.TurnNum && ss.SignedByAll():
		next, err = l.Checkpoint(ss)
	default:
		return l, false, nil
	}
	if err != nil {
		return l, false, err
	}
	return next, true, nil
}

// storeState records the supported state ss, creating the ledger of a if
// necessary.
func (e *Engine) storeState(a *actor, ss channel.SignedState) {
	logger := e.log.Log().WithField("channel", a.id.Hex())
	l, ok := fromOption(a.ledger)
	if !ok {
		myIndex := ss.State.IndexOf(e.signer.Address())
		if myIndex < 0 {
			logger.Error("Not a participant of stored state")
			return
		}
		var err error
		if ss.State.TurnNum == 0 {
			l, err = channel.Initialize(ss, myIndex)
		} else {
			l, err = channel.RestoreLedger(ss.State.Constants, myIndex, []channel.SignedState{ss},
				fn.None[channel.Funding](), fn.None[channel.ChallengeRecord](), false)
		}
		if err != nil {
			logger.Errorf("Creating ledger: %v", err)
			return
		}
		if err := e.putLedger(a, l); err != nil {
			logger.Error(err)
			return
		}
		e.watcher.Watch(a.id)
		logger.Infof("Opened ledger at turn %d", ss.State.TurnNum)
		return
	}

	next, changed, err := extend(l, ss)
	if err != nil {
		logger.Errorf("Storing state %d: %v", ss.State.TurnNum, err)
		return
	}
	if changed {
		if err := e.putLedger(a, next); err != nil {
			logger.Error(err)
		}
	}
}

// absorb adds states received from a peer to the ledger of a. Unknown
// channels are not opened by peers.
func (e *Engine) absorb(a *actor, states []channel.SignedState) {
	l, ok := fromOption(a.ledger)
	if !ok {
		return
	}
	changed := false
	for _, ss := range states {
		next, ok, err := extend(l, ss)
		if err != nil {
			e.log.Log().WithField("channel", a.id.Hex()).Debugf("Ignoring state %d: %v", ss.State.TurnNum, err)
			continue
		}
		if ok {
			l, changed = next, true
		}
	}
	if changed {
		if err := e.putLedger(a, l); err != nil {
			e.log.Log().Error(err)
		}
	}
}

// setFunding records how the channel of a is funded and tells the
// objectives depending on it.
func (e *Engine) setFunding(a *actor, f protocol.SetFunding) {
	latest := channel.SignedState{}
	if l, ok := fromOption(a.ledger); ok {
		next := l.WithFunding(f.Funding)
		if err := e.putLedger(a, next); err != nil {
			e.log.Log().Error(err)
			return
		}
		latest = next.SupportedState().UnwrapOr(channel.SignedState{})
	}
	e.log.Log().WithField("channel", a.id.Hex()).Infof("Funded with %v", f.Amount)
	e.broadcast(event.LedgerFunded{Channel: a.id, Amount: f.Amount, Latest: latest})
}

func (e *Engine) closeChannel(a *actor) {
	e.watcher.Unwatch(a.id)
	l, ok := fromOption(a.ledger)
	if !ok || l.Closed() {
		return
	}
	if err := e.putLedger(a, l.Close()); err != nil {
		e.log.Log().Error(err)
		return
	}
	e.log.Log().WithField("channel", a.id.Hex()).Info("Channel closed")
}

// chainEvent hands an event observed on chain to the actor of its channel.
func (e *Engine) chainEvent(ev event.Event) {
	err := e.post(ev.GetID(), func(a *actor) {
		e.applyChainEvent(a, ev)
		e.broadcast(ev)
	})
	if err != nil {
		e.log.Log().Debugf("Dropping %v: %v", ev.GetType(), err)
	}
}

// applyChainEvent records ev in the ledger of a. A challenge nobody here
// registered starts a responder.
func (e *Engine) applyChainEvent(a *actor, ev event.Event) {
	l, ok := fromOption(a.ledger)
	if !ok {
		return
	}
	switch ev := ev.(type) {
	case event.ChallengeRegistered:
		record := channel.ChallengeRecord{ExpiresAt: ev.FinalizesAt, DisputedStates: ev.DisputedStates}
		l = l.WithChallenge(record)
		if err := e.putLedger(a, l); err != nil {
			e.log.Log().Error(err)
			return
		}
		e.respond(a, l, record)
	case event.ChallengeCleared:
		if err := e.putLedger(a, l.ClearChallenge()); err != nil {
			e.log.Log().Error(err)
		}
	case event.Concluded:
		e.closeChannel(a)
	}
}

func (e *Engine) respond(a *actor, l channel.Ledger, record channel.ChallengeRecord) {
	for _, t := range []protocol.Type{protocol.TypeChallenger, protocol.TypeResponder} {
		if _, ok := a.objectives[protocol.MakeObjectiveID(t, a.id)]; ok {
			return
		}
	}
	r, err := dispute.NewResponder(l, record)
	if err != nil {
		e.log.Log().WithField("channel", a.id.Hex()).Errorf("Creating responder: %v", err)
		return
	}
	e.route(r)
	e.start(a, r, false)
}
