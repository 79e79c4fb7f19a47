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

// Package dispute drives on-chain challenges. The challenger registers the
// latest two states of a channel with the adjudicator and waits for the
// other participants to move. The responder answers a challenge registered
// by someone else, refuting it or moving the channel on.
//
// Both objectives keep a copy of the channel's ledger taken when they were
// created and extended by the states received since.
package dispute

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

const (
	StatusApproveChallenge         protocol.Status = "ApproveChallenge"
	StatusWaitForTransaction       protocol.Status = "WaitForTransaction"
	StatusWaitForResponseOrTimeout protocol.Status = "WaitForResponseOrTimeout"
	StatusAcknowledgeResponse      protocol.Status = "AcknowledgeResponse"
	StatusAcknowledgeTimeout       protocol.Status = "AcknowledgeTimeout"
	StatusAcknowledgeFailure       protocol.Status = "AcknowledgeFailure"
	// StatusSuccessOpen ends a challenge that was answered. The channel
	// stays open.
	StatusSuccessOpen protocol.Status = "SuccessOpen"
	// StatusSuccessClosed ends a challenge that expired. The channel is
	// concluded.
	StatusSuccessClosed protocol.Status = "SuccessClosed"
)

const (
	ReasonChannelDoesNotExist  protocol.FailureReason = "ChannelDoesNotExist"
	ReasonNotFullyOpen         protocol.FailureReason = "NotFullyOpen"
	ReasonAlreadyHaveLatest    protocol.FailureReason = "AlreadyHaveLatest"
	ReasonLatestWhileApproving protocol.FailureReason = "LatestWhileApproving"
	ReasonDeclinedByUser       protocol.FailureReason = "DeclinedByUser"
)

// ChallengerAccepts lists the events a challenger handles.
var ChallengerAccepts = event.NewSet(
	event.EventTypeStatesReceived,
	event.EventTypeChallengeApproved,
	event.EventTypeChallengeDenied,
	event.EventTypeTransactionSubmitted,
	event.EventTypeTransactionConfirmed,
	event.EventTypeTransactionFailed,
	event.EventTypeChallengeRegistered,
	event.EventTypeRespondWithMove,
	event.EventTypeRefuted,
	event.EventTypeChallengeCleared,
	event.EventTypeChallengeExpired,
	event.EventTypeAcknowledged,
	event.EventTypeExitChallenge,
	event.EventTypeNudge,
)

// Challenger is a challenge we register on chain.
type Challenger struct {
	status  protocol.Status
	failure protocol.FailureReason

	ChannelID channel.ID
	// Ledger is None if the channel is unknown.
	Ledger fn.Option[channel.Ledger]
	// Tx is the hash of the force move once submitted.
	Tx        string
	ExpiresAt time.Time
}

// NewChallenger creates the challenge of channel id. A channel that is not
// fully open, or where it is our turn, cannot be challenged; the objective
// then starts in StatusAcknowledgeFailure.
func NewChallenger(id channel.ID, ledger fn.Option[channel.Ledger]) Challenger {
	o := Challenger{status: StatusApproveChallenge, ChannelID: id, Ledger: ledger}
	if reason := o.check(ReasonAlreadyHaveLatest); reason != protocol.ReasonNone {
		return o.acknowledgeFailure(reason)
	}
	return o
}

// check returns why the channel cannot be challenged. ourTurn is reported if
// we hold the latest state.
func (o Challenger) check(ourTurn protocol.FailureReason) protocol.FailureReason {
	if o.Ledger.IsNone() {
		return ReasonChannelDoesNotExist
	}
	l := o.Ledger.UnsafeFromSome()
	switch {
	case l.ID() != o.ChannelID:
		return protocol.ReasonChannelMismatch
	case !l.IsFullyOpen():
		return ReasonNotFullyOpen
	case l.OurTurn():
		return ourTurn
	}
	return protocol.ReasonNone
}

func (o Challenger) ID() protocol.ObjectiveID {
	return protocol.MakeObjectiveID(protocol.TypeChallenger, o.ChannelID)
}

func (Challenger) Type() protocol.Type { return protocol.TypeChallenger }

func (o Challenger) Status() protocol.Status { return o.status }

func (o Challenger) Failure() protocol.FailureReason { return o.failure }

func (o Challenger) Terminal() bool {
	switch o.status {
	case StatusSuccessOpen, StatusSuccessClosed, protocol.StatusFailure:
		return true
	}
	return false
}

func (o Challenger) Channels() []channel.ID {
	return []channel.ID{o.ChannelID}
}

// CrankChallenger advances o by ev.
func CrankChallenger(o Challenger, ev event.Event, signer channel.Signer) (Challenger, []protocol.Action, error) {
	if !ChallengerAccepts.Contains(ev.GetType()) {
		protocol.Unexpected(protocol.TypeChallenger, ev)
	}
	if o.Terminal() {
		return o, nil, nil
	}

	next := o
	var actions []protocol.Action
	switch ev := ev.(type) {
	case event.StatesReceived:
		next.absorb(ev.States...)
	case event.ChallengeApproved:
		if o.status != StatusApproveChallenge {
			break
		}
		if reason := o.check(ReasonLatestWhileApproving); reason != protocol.ReasonNone {
			return o.acknowledgeFailure(reason), nil, nil
		}
		window := o.Ledger.UnsafeFromSome().Window()
		tx, err := client.NewForceMove(window[len(window)-2:], signer)
		if err != nil {
			return o, nil, err
		}
		next.status = StatusWaitForTransaction
		actions = append(actions, protocol.SubmitTransaction{Objective: o.ID(), Tx: tx})
	case event.ChallengeDenied:
		if o.status == StatusApproveChallenge {
			return o.acknowledgeFailure(ReasonDeclinedByUser), nil, nil
		}
	case event.TransactionSubmitted:
		if o.status == StatusWaitForTransaction {
			next.Tx = ev.Tx
		}
	case event.TransactionConfirmed:
		if o.status != StatusWaitForTransaction {
			break
		}
		next.status = StatusWaitForResponseOrTimeout
		if next.ExpiresAt.IsZero() {
			l := o.Ledger.UnsafeFromSome()
			next.ExpiresAt = event.ExpiresAt(ev.At, l.Latest().State.ChallengeDuration)
		}
	case event.TransactionFailed:
		if o.status == StatusWaitForTransaction {
			return o.acknowledgeFailure(protocol.ReasonTransactionFailed), nil, nil
		}
	case event.ChallengeRegistered:
		if o.status == StatusWaitForTransaction || o.status == StatusWaitForResponseOrTimeout {
			next.ExpiresAt = ev.FinalizesAt
		}
	case event.RespondWithMove:
		if o.status != StatusWaitForResponseOrTimeout {
			break
		}
		next.status = StatusAcknowledgeResponse
		next.absorb(ev.State)
		actions = append(actions, protocol.StoreState{State: ev.State.Clone()})
	case event.Refuted, event.ChallengeCleared:
		if o.status == StatusWaitForResponseOrTimeout {
			next.status = StatusAcknowledgeResponse
		}
	case event.ChallengeExpired:
		if o.status != StatusWaitForResponseOrTimeout {
			break
		}
		next.status = StatusAcknowledgeTimeout
		actions = append(actions, protocol.CloseChannel{Channel: o.ChannelID})
	case event.Acknowledged:
		switch o.status {
		case StatusAcknowledgeResponse:
			next.status = StatusSuccessOpen
		case StatusAcknowledgeTimeout:
			next.status = StatusSuccessClosed
		case StatusAcknowledgeFailure:
			next.status = protocol.StatusFailure
		}
	case event.ExitChallenge:
		if o.status == StatusAcknowledgeFailure {
			next.status = protocol.StatusFailure
			break
		}
		next.status = StatusSuccessClosed
	case event.Nudge:
	}
	return next, actions, nil
}

func (o *Challenger) absorb(states ...channel.SignedState) {
	if o.Ledger.IsNone() {
		return
	}
	o.Ledger = fn.Some(absorb(o.Ledger.UnsafeFromSome(), states...))
}

// acknowledgeFailure records reason. The objective fails once the failure is
// acknowledged.
func (o Challenger) acknowledgeFailure(reason protocol.FailureReason) Challenger {
	next := o
	next.status = StatusAcknowledgeFailure
	next.failure = reason
	return next
}

// CrankChallengerObjective adapts CrankChallenger to protocol.CrankFunc.
func CrankChallengerObjective(o protocol.Objective, ev event.Event, signer channel.Signer) (protocol.Objective, []protocol.Action, error) {
	obj, ok := o.(Challenger)
	if !ok {
		panic("dispute: cranking foreign challenger")
	}
	next, actions, err := CrankChallenger(obj, ev, signer)
	return next, actions, err
}
