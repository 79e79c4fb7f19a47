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

package virtualfund

import (
	"math/big"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

// Accepts lists the events a virtual funding objective handles.
var Accepts = event.NewSet(
	event.EventTypeStatesReceived,
	event.EventTypeLedgerFunded,
	event.EventTypeRejected,
	event.EventTypeNudge,
)

// Crank advances o by ev.
func Crank(o Objective, ev event.Event, signer channel.Signer) (Objective, []protocol.Action, error) {
	if !Accepts.Contains(ev.GetType()) {
		protocol.Unexpected(protocol.TypeVirtualFund, ev)
	}
	if o.Terminal() {
		return o, nil, nil
	}

	next := o.clone()
	switch ev := ev.(type) {
	case event.StatesReceived:
		var reason protocol.FailureReason
		next, reason = next.mergeStates(ev.States)
		if reason != protocol.ReasonNone {
			return o.fail(reason), nil, nil
		}
	case event.LedgerFunded:
		if ev.Channel != o.GuarantorID() || ev.Amount == nil {
			return o, nil, nil
		}
		next.GuarantorFunding = new(big.Int).Set(ev.Amount)
	case event.Rejected:
		return o.fail(protocol.ReasonRejected), nil, nil
	case event.Nudge:
	}

	return next.progress(o, signer)
}

func (o Objective) ownsChannel(id channel.ID) bool {
	for _, c := range o.Channels() {
		if c == id {
			return true
		}
	}
	return false
}

func (o Objective) mergeStates(states []channel.SignedState) (Objective, protocol.FailureReason) {
	for _, ss := range states {
		if !o.ownsChannel(ss.ChannelID()) {
			continue
		}
		slot, ok := o.slotOf(ss.Hash())
		if !ok {
			return o, protocol.ReasonReceivedUnexpectedState
		}
		if err := channel.ValidateSignatures(ss); err != nil {
			return o, protocol.ReasonFromError(err)
		}
		o.Signatures[slot] = o.Signatures[slot].With(ss.Signatures)
	}
	return o, protocol.ReasonNone
}

// sign signs slot s if needed and sends it to the other participants of its
// channel.
func (o *Objective) sign(s Slot, signer channel.Signer) (protocol.Action, error) {
	if o.Signatures[s].SignedBy(signer.Address()) {
		return nil, nil
	}
	state := o.State(s)
	entry, err := channel.SignState(state, signer)
	if err != nil {
		return nil, err
	}
	o.Signatures[s] = o.Signatures[s].With([]channel.SignatureEntry{entry})
	return protocol.SendTo(state.Constants, state.IndexOf(signer.Address()), o.signed(s)), nil
}

func (o Objective) prefundComplete() bool {
	for _, s := range prefundSlots {
		if !o.complete(s) {
			return false
		}
	}
	return true
}

func (o Objective) progress(prev Objective, signer channel.Signer) (Objective, []protocol.Action, error) {
	var actions []protocol.Action

	for _, s := range prefundSlots {
		a, err := o.sign(s, signer)
		if err != nil {
			return prev, nil, err
		}
		if a != nil {
			actions = append(actions, a)
		}
	}
	if !o.prefundComplete() {
		o.status = StatusWaitForCompletePrefund
		return o, actions, nil
	}
	if !prev.prefundComplete() {
		for _, s := range prefundSlots {
			actions = append(actions, protocol.StoreState{State: o.signed(s)})
		}
	}

	if !o.RequestedLedgerFunding {
		actions = append(actions, protocol.RequestLedgerFunding{
			Target:     o.GuarantorID(),
			Ledger:     o.LedgerID,
			Amount:     o.Amount(),
			Deductions: o.Deductions(),
		})
		o.RequestedLedgerFunding = true
	}
	if o.GuarantorFunding.Cmp(o.Amount()) < 0 {
		o.status = StatusWaitForCompleteFunding
		return o, actions, nil
	}

	a, err := o.sign(SlotJointFundsTarget, signer)
	if err != nil {
		return prev, nil, err
	}
	if a != nil {
		actions = append(actions, a)
	}
	if !o.complete(SlotJointFundsTarget) {
		o.status = StatusWaitForCompletePostFund
		return o, actions, nil
	}

	o.status = protocol.StatusSuccess
	actions = append(actions,
		protocol.StoreState{State: o.signed(SlotJointFundsTarget)},
		protocol.SetFunding{
			Channel: o.TargetID(),
			Funding: channel.VirtualFunding{JointChannelID: o.JointID()},
			Amount:  o.Amount(),
		},
	)
	return o, actions, nil
}

// CrankObjective adapts Crank to protocol.CrankFunc.
func CrankObjective(o protocol.Objective, ev event.Event, signer channel.Signer) (protocol.Objective, []protocol.Action, error) {
	obj, ok := o.(Objective)
	if !ok {
		panic("virtualfund: cranking foreign objective")
	}
	next, actions, err := Crank(obj, ev, signer)
	return next, actions, err
}
