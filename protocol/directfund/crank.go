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

package directfund

import (
	"math/big"

	"github.com/lightningnetwork/lnd/fn/v2"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

// Accepts lists the events a direct funding objective handles.
var Accepts = event.NewSet(
	event.EventTypeStatesReceived,
	event.EventTypeFundingUpdated,
	event.EventTypeDepositSubmitted,
	event.EventTypeDepositFailed,
	event.EventTypeNudge,
)

// Crank advances o by ev.
func Crank(o Objective, ev event.Event, signer channel.Signer) (Objective, []protocol.Action, error) {
	if !Accepts.Contains(ev.GetType()) {
		protocol.Unexpected(protocol.TypeDirectFund, ev)
	}
	if o.Terminal() {
		return o, nil, nil
	}

	next := o.clone()
	switch ev := ev.(type) {
	case event.StatesReceived:
		if ev.Channel != o.ChannelID() {
			return o, nil, nil
		}
		var reason protocol.FailureReason
		next, reason = next.mergeStates(ev.States)
		if reason != protocol.ReasonNone {
			return o.fail(reason), nil, nil
		}
	case event.FundingUpdated:
		amount := ev.Amount
		if amount == nil {
			amount = new(big.Int)
		}
		next.Funding = channel.DirectFunding{Amount: new(big.Int).Set(amount), Finalized: ev.Finalized}
		if amount.Cmp(next.DepositMilestones().After) >= 0 {
			next.FundingRequest = fn.None[FundingRequest]()
		}
	case event.DepositSubmitted:
		next.FundingRequest = fn.Some(FundingRequest{Tx: ev.Tx, Attempt: ev.Attempt})
	case event.DepositFailed:
		next.FundingRequest = fn.None[FundingRequest]()
	case event.Nudge:
		if !o.FundingDeadline.IsZero() && !ev.Now.Before(o.FundingDeadline) && !o.fullyFunded() {
			return o.fail(protocol.ReasonTimedOutWhileFunding), nil, nil
		}
	}

	return next.progress(o, signer)
}

// mergeStates merges the signatures of the fund setup states among states.
func (o Objective) mergeStates(states []channel.SignedState) (Objective, protocol.FailureReason) {
	for _, ss := range states {
		if ss.ChannelID() != o.ChannelID() {
			continue
		}
		hash := ss.Hash()
		if hash != o.PreFundSetup.Hash && hash != o.PostFundSetup.Hash {
			return o, protocol.ReasonReceivedUnexpectedState
		}
		if err := channel.ValidateSignatures(ss); err != nil {
			return o, protocol.ReasonFromError(err)
		}
		if hash == o.PreFundSetup.Hash {
			o.PreFundSetup = o.PreFundSetup.With(ss.Signatures)
		} else {
			o.PostFundSetup = o.PostFundSetup.With(ss.Signatures)
		}
	}
	return o, protocol.ReasonNone
}

func (o Objective) progress(prev Objective, signer channel.Signer) (Objective, []protocol.Action, error) {
	var actions []protocol.Action
	n := o.Opening.NumParts()
	consts := o.Opening.Constants

	if !o.PreFundSetup.SignedBy(signer.Address()) {
		entry, err := channel.SignState(o.PreFundSetupState(), signer)
		if err != nil {
			return prev, nil, err
		}
		o.PreFundSetup = o.PreFundSetup.With([]channel.SignatureEntry{entry})
		actions = append(actions, protocol.SendTo(consts, o.MyIndex, o.signedPreFundSetup()))
	}
	if o.PreFundSetup.Count() < n {
		o.status = StatusWaitForPreFundSetup
		return o, actions, nil
	}
	if prev.PreFundSetup.Count() < n {
		actions = append(actions, protocol.StoreState{State: o.signedPreFundSetup()})
	}

	if !o.fullyFunded() {
		m := o.DepositMilestones()
		funding := o.fundingAmount()
		if funding.Cmp(m.Before) < 0 || funding.Cmp(m.After) >= 0 {
			o.status = StatusWaitForFundingEvents
			return o, actions, nil
		}
		// Our turn. At most one deposit is outstanding.
		o.status = StatusSafeToDeposit
		if o.FundingRequest.IsNone() {
			actions = append(actions, protocol.Deposit{
				Channel:      o.ChannelID(),
				ExpectedHeld: new(big.Int).Set(funding),
				Amount:       new(big.Int).Sub(m.After, funding),
			})
			o.FundingRequest = fn.Some(FundingRequest{})
		}
		return o, actions, nil
	}

	if !o.PostFundSetup.SignedBy(signer.Address()) {
		entry, err := channel.SignState(o.PostFundSetupState(), signer)
		if err != nil {
			return prev, nil, err
		}
		o.PostFundSetup = o.PostFundSetup.With([]channel.SignatureEntry{entry})
		actions = append(actions, protocol.SendTo(consts, o.MyIndex, o.signedPostFundSetup()))
	}
	if o.PostFundSetup.Count() < n {
		o.status = StatusWaitForPostFundSetup
		return o, actions, nil
	}

	o.status = protocol.StatusSuccess
	o.FundingRequest = fn.None[FundingRequest]()
	actions = append(actions,
		protocol.StoreState{State: o.signedPostFundSetup()},
		protocol.SetFunding{
			Channel: o.ChannelID(),
			Funding: channel.DirectFunding{Amount: new(big.Int).Set(o.fundingAmount()), Finalized: true},
			Amount:  o.DepositMilestones().Total,
		},
	)
	return o, actions, nil
}

// Resume drops a deposit that was requested but never reported as submitted,
// so the next crank requests it again, and repeats our last setup message.
func (o Objective) Resume() (protocol.Objective, []protocol.Action) {
	if o.Terminal() {
		return o, nil
	}
	next := o.clone()
	if o.FundingRequest.IsSome() && o.FundingRequest.UnsafeFromSome().Tx == "" {
		next.FundingRequest = fn.None[FundingRequest]()
	}

	me := o.Opening.Participants[o.MyIndex].SigningAddress
	consts := o.Opening.Constants
	var actions []protocol.Action
	switch o.status {
	case StatusWaitForPreFundSetup:
		if !o.PreFundSetup.SignedBy(me) {
			break
		}
		msg, err := o.Propose()
		if err != nil {
			msg = protocol.SendTo(consts, o.MyIndex)
		}
		msg.States = []channel.SignedState{o.signedPreFundSetup()}
		actions = append(actions, msg)
	case StatusSafeToDeposit, StatusWaitForFundingEvents:
		actions = append(actions, protocol.SendTo(consts, o.MyIndex, o.signedPreFundSetup()))
	case StatusWaitForPostFundSetup:
		if o.PostFundSetup.SignedBy(me) {
			actions = append(actions, protocol.SendTo(consts, o.MyIndex, o.signedPostFundSetup()))
		}
	}
	return next, actions
}

// CrankObjective adapts Crank to protocol.CrankFunc.
func CrankObjective(o protocol.Objective, ev event.Event, signer channel.Signer) (protocol.Objective, []protocol.Action, error) {
	obj, ok := o.(Objective)
	if !ok {
		panic("directfund: cranking foreign objective")
	}
	next, actions, err := Crank(obj, ev, signer)
	return next, actions, err
}
