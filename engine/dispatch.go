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
	"context"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/protocol/directfund"
	"perun.network/perun-nitro-engine/protocol/ledgerfund"
)

// replaceable reports whether a terminated objective of type t may be
// started again on the same channel.
func replaceable(t protocol.Type) bool {
	return t == protocol.TypeChallenger || t == protocol.TypeResponder
}

// start adds o to the actor owning it and cranks it once. A proposed
// objective is sent to the peers first. start reports false if o is
// already running or completed.
func (e *Engine) start(a *actor, o protocol.Objective, propose bool) bool {
	logger := e.log.Log().WithField("objective", o.ID())
	if _, ok := a.objectives[o.ID()]; ok {
		logger.Debug("Objective already running")
		return false
	}
	stored, err := e.store.GetObjective(o.ID())
	if err != nil {
		logger.Errorf("Loading objective: %v", err)
		return false
	}
	if stored.IsSome() && !replaceable(o.Type()) {
		logger.Debug("Objective already completed")
		return false
	}

	if err := e.store.PutObjective(o); err != nil {
		logger.Errorf("Persisting objective: %v", err)
		return false
	}
	a.objectives[o.ID()] = o
	e.metrics.Objectives.Inc()
	logger.Infof("Started objective in %s", o.Status())

	if propose {
		if p, ok := o.(protocol.Proposer); ok {
			msg, err := p.Propose()
			if err != nil {
				logger.Errorf("Proposing objective: %v", err)
			} else {
				e.send(msg)
			}
		}
	}
	e.crank(a, o.ID(), event.Nudge{Channel: a.id, Now: e.clock.Now()})
	return true
}

// crank applies ev to the objective id owned by a, persists the result and
// executes the requested actions.
func (e *Engine) crank(a *actor, id protocol.ObjectiveID, ev event.Event) {
	logger := e.log.Log().WithField("objective", id)
	o, ok := a.objectives[id]
	if !ok {
		logger.Debugf("Dropping %v for objective that is not running", ev.GetType())
		e.metrics.Dropped.WithLabelValues("not_running").Inc()
		return
	}
	h := e.handlers[o.Type()]
	if !h.Accepts.Contains(ev.GetType()) {
		logger.Debugf("Dropping %v not handled by %s", ev.GetType(), o.Type())
		e.metrics.Dropped.WithLabelValues("not_accepted").Inc()
		return
	}

	next, actions, err := h.Crank(o, ev, e.signer)
	e.metrics.Cranks.WithLabelValues(string(o.Type()), ev.GetType().String()).Inc()
	if err != nil {
		logger.Errorf("Cranking with %v: %v", ev.GetType(), err)
		return
	}
	if next.Status() != o.Status() {
		if reason := next.Failure(); reason != protocol.ReasonNone {
			logger.Warnf("%s -> %s: %s", o.Status(), next.Status(), reason)
		} else {
			logger.Infof("%s -> %s", o.Status(), next.Status())
		}
	}

	if err := e.store.PutObjective(next); err != nil {
		logger.Errorf("Persisting objective: %v", err)
		return
	}
	if next.Terminal() {
		delete(a.objectives, id)
		e.unroute(next)
		e.metrics.Objectives.Dec()
		e.metrics.Terminal.WithLabelValues(string(next.Type()), string(next.Status())).Inc()
	} else {
		a.objectives[id] = next
	}
	e.execute(next, actions)
}

// crankOn cranks the objective id on its owning actor.
func (e *Engine) crankOn(id protocol.ObjectiveID, ev event.Event) {
	_, ch, err := id.Split()
	if err != nil {
		e.log.Log().Errorf("Routing %v: %v", ev.GetType(), err)
		return
	}
	if err := e.post(ch, func(a *actor) { e.crank(a, id, ev) }); err != nil {
		e.log.Log().Debugf("Dropping %v: %v", ev.GetType(), err)
	}
}

// broadcast cranks every objective subscribed to the channel of ev.
func (e *Engine) broadcast(ev event.Event) {
	for _, id := range e.subscribers(ev.GetID()) {
		e.crankOn(id, ev)
	}
}

func (e *Engine) execute(o protocol.Objective, actions []protocol.Action) {
	for _, act := range actions {
		e.metrics.Actions.WithLabelValues(act.Type().String()).Inc()
		switch act := act.(type) {
		case protocol.SendMessage:
			e.send(act)
		case protocol.Deposit:
			e.deposit(act)
		case protocol.SubmitTransaction:
			e.submit(act)
		case protocol.RequestDirectFunding:
			e.requestDirectFunding(act)
		case protocol.RequestLedgerFunding:
			e.requestLedgerFunding(o.ID(), act)
		case protocol.StoreState:
			e.onLedger(act.State.ChannelID(), func(a *actor) { e.storeState(a, act.State) })
		case protocol.SetFunding:
			e.onLedger(act.Channel, func(a *actor) { e.setFunding(a, act) })
		case protocol.CloseChannel:
			e.onLedger(act.Channel, e.closeChannel)
		default:
			e.log.Log().Errorf("Unknown action %v", act.Type())
		}
	}
}

func (e *Engine) onLedger(id channel.ID, t task) {
	if err := e.post(id, t); err != nil {
		e.log.Log().WithField("channel", id.Hex()).Errorf("Scheduling ledger update: %v", err)
	}
}

func (e *Engine) deposit(d protocol.Deposit) {
	e.watcher.Watch(d.Channel)
	e.async(func(ctx context.Context) {
		e.broadcast(e.funder.Fund(ctx, d))
		e.watcher.Poll(ctx)
	})
}

func (e *Engine) submit(s protocol.SubmitTransaction) {
	e.watcher.Watch(s.Tx.Channel)
	e.async(func(ctx context.Context) {
		for _, ev := range e.adj.Submit(ctx, s.Tx) {
			e.crankOn(s.Objective, ev)
		}
		e.watcher.Poll(ctx)
	})
}

func (e *Engine) requestDirectFunding(r protocol.RequestDirectFunding) {
	o, err := directfund.New(r.Opening, r.MyIndex, e.deadline())
	if err != nil {
		e.log.Log().Errorf("Requested direct funding: %v", err)
		return
	}
	e.route(o)
	e.onLedger(owner(o), func(a *actor) { e.start(a, o, true) })
}

// requestLedgerFunding funds r.Target from r.Ledger. A zero ledger is
// resolved to a funded ledger between the participants of the deductions.
// Failures are reported to origin.
func (e *Engine) requestLedgerFunding(origin protocol.ObjectiveID, r protocol.RequestLedgerFunding) {
	reject := func(reason string) {
		_, ch, _ := origin.Split()
		e.crankOn(origin, event.Rejected{Channel: ch, Reason: reason})
	}

	ledger := r.Ledger
	if ledger == (channel.ID{}) {
		resolved, err := e.findLedger(r)
		if err != nil {
			reject(err.Error())
			return
		}
		ledger = resolved
	}

	e.onLedger(ledger, func(a *actor) {
		l, ok := fromOption(a.ledger)
		if !ok || l.Closed() {
			reject(ErrUnknownChannel.Error())
			return
		}
		supported, ok := fromOption(l.SupportedState())
		if !ok {
			reject("ledger has no supported state")
			return
		}
		o, err := ledgerfund.New(r.Target, supported, l.MyIndex(), r.Deductions, e.deadline())
		if err != nil {
			reject(err.Error())
			return
		}
		e.route(o)
		e.onLedger(owner(o), func(b *actor) { e.start(b, o, true) })
	})
}

// findLedger selects a funded open ledger whose participants are exactly
// those paid by the deductions of r.
func (e *Engine) findLedger(r protocol.RequestLedgerFunding) (channel.ID, error) {
	ledgers, err := e.store.Channels()
	if err != nil {
		return channel.ID{}, err
	}
	want := make(map[channel.Destination]struct{}, len(r.Deductions))
	for _, item := range r.Deductions {
		want[item.Destination] = struct{}{}
	}
	for _, l := range ledgers {
		if l.ID() == r.Target || l.Closed() || l.Funding().IsNone() || l.SupportedState().IsNone() {
			continue
		}
		parts := l.Constants().Participants
		if len(parts) != len(want) {
			continue
		}
		match := true
		for _, p := range parts {
			if _, ok := want[p.Destination]; !ok {
				match = false
				break
			}
		}
		if match {
			return l.ID(), nil
		}
	}
	return channel.ID{}, ErrNoLedger
}
