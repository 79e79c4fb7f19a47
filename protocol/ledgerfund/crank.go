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

package ledgerfund

import (
	"github.com/lightningnetwork/lnd/fn/v2"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

// Accepts lists the events a ledger funding objective handles.
var Accepts = event.NewSet(
	event.EventTypeStatesReceived,
	event.EventTypeLedgerFunded,
	event.EventTypeRejected,
	event.EventTypeNudge,
)

// Crank advances o by ev.
func Crank(o Objective, ev event.Event, signer channel.Signer) (Objective, []protocol.Action, error) {
	if !Accepts.Contains(ev.GetType()) {
		protocol.Unexpected(protocol.TypeLedgerFund, ev)
	}
	if o.Terminal() {
		return o, nil, nil
	}

	next := o.clone()
	switch ev := ev.(type) {
	case event.StatesReceived:
		if ev.Channel != o.LedgerID {
			return o, nil, nil
		}
		var reason protocol.FailureReason
		next, reason = next.receive(ev.States)
		if reason != protocol.ReasonNone {
			return o.fail(reason), nil, nil
		}
	case event.LedgerFunded:
		if ev.Channel != o.LedgerID || o.Latest.IsSome() {
			return o, nil, nil
		}
		if ev.Latest.ChannelID() != o.LedgerID {
			return o.fail(protocol.ReasonChannelMismatch), nil, nil
		}
		if err := channel.ValidateSignatures(ev.Latest); err != nil {
			return o.fail(protocol.ReasonFromError(err)), nil, nil
		}
		if !ev.Latest.SignedByAll() {
			return o.fail(protocol.ReasonInvalid), nil, nil
		}
		next.Latest = fn.Some(ev.Latest.Clone())
	case event.Rejected:
		return o.fail(protocol.ReasonRejected), nil, nil
	case event.Nudge:
		if !o.Deadline.IsZero() && !ev.Now.Before(o.Deadline) {
			return o.fail(protocol.ReasonTimedOut), nil, nil
		}
	}

	return next.progress(o, signer)
}

// receive merges ledger proposals for the target. Other ledger states are
// ignored.
func (o Objective) receive(states []channel.SignedState) (Objective, protocol.FailureReason) {
	for _, ss := range states {
		if ss.ChannelID() != o.LedgerID || !o.proposesTarget(ss) {
			continue
		}
		if o.Update.IsNone() {
			if err := channel.ValidateSignatures(ss); err != nil {
				return o, protocol.ReasonFromError(err)
			}
			o.Pending = appendPending(o.Pending, ss)
			continue
		}
		update, err := o.Update.UnsafeFromSome().Merge(ss)
		if err != nil {
			return o, protocol.ReasonFromError(err)
		}
		o.Update = fn.Some(update)
	}
	return o, protocol.ReasonNone
}

func appendPending(pending []channel.SignedState, ss channel.SignedState) []channel.SignedState {
	for i, p := range pending {
		if p.Hash() == ss.Hash() {
			merged, _ := p.Merge(ss)
			pending[i] = merged
			return pending
		}
	}
	return append(pending, ss.Clone())
}

func (o Objective) progress(prev Objective, signer channel.Signer) (Objective, []protocol.Action, error) {
	var actions []protocol.Action

	if o.Latest.IsNone() {
		o.status = StatusWaitForNewLedgerFunding
		if !o.RequestedDirectFunding {
			actions = append(actions, protocol.RequestDirectFunding{
				Opening: o.Opening.UnsafeFromSome().Clone(),
				MyIndex: o.MyIndex,
			})
			o.RequestedDirectFunding = true
		}
		return o, actions, nil
	}

	o.status = StatusWaitForExistingLedgerFunding
	if o.Update.IsNone() {
		latest := o.Latest.UnsafeFromSome()
		update, err := NewConsensusUpdate(latest.State, o.Deductions, o.Target)
		if err != nil {
			return o.fail(protocol.ReasonFromError(err)), nil, nil
		}
		for _, ss := range o.Pending {
			if update, err = update.Merge(ss); err != nil {
				return o.fail(protocol.ReasonFromError(err)), nil, nil
			}
		}
		o.Pending = nil
		o.Update = fn.Some(update)
	}

	update := o.Update.UnsafeFromSome()
	if !update.SignedBy(signer) {
		signed, err := update.Sign(signer)
		if err != nil {
			return prev, nil, err
		}
		update = signed
		o.Update = fn.Some(update)
		actions = append(actions, protocol.SendTo(update.Proposal.State.Constants, o.MyIndex, update.Proposal))
	}
	if !update.Complete() {
		return o, actions, nil
	}

	o.status = protocol.StatusSuccess
	actions = append(actions,
		protocol.StoreState{State: update.Proposal.Clone()},
		protocol.SetFunding{
			Channel: o.Target,
			Funding: channel.IndirectFunding{LedgerID: o.LedgerID},
			Amount:  o.Amount(),
		},
	)
	return o, actions, nil
}

// CrankObjective adapts Crank to protocol.CrankFunc.
func CrankObjective(o protocol.Objective, ev event.Event, signer channel.Signer) (protocol.Objective, []protocol.Action, error) {
	obj, ok := o.(Objective)
	if !ok {
		panic("ledgerfund: cranking foreign objective")
	}
	next, actions, err := Crank(obj, ev, signer)
	return next, actions, err
}
