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

package dispute

import (
	"time"

	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

const (
	StatusWaitForApproval        protocol.Status = "WaitForApproval"
	StatusWaitForResponse        protocol.Status = "WaitForResponse"
	StatusWaitForAcknowledgement protocol.Status = "WaitForAcknowledgement"
)

// ResponderAccepts lists the events a responder handles.
var ResponderAccepts = event.NewSet(
	event.EventTypeStatesReceived,
	event.EventTypeRespondApproved,
	event.EventTypeResponseProvided,
	event.EventTypeTransactionSubmitted,
	event.EventTypeTransactionConfirmed,
	event.EventTypeTransactionFailed,
	event.EventTypeChallengeRegistered,
	event.EventTypeChallengeCleared,
	event.EventTypeChallengeExpired,
	event.EventTypeConcluded,
	event.EventTypeAcknowledged,
	event.EventTypeExitChallenge,
	event.EventTypeNudge,
)

// Responder answers a challenge registered by another participant.
type Responder struct {
	status  protocol.Status
	failure protocol.FailureReason

	Ledger channel.Ledger
	// Challenge is the challenged state.
	Challenge channel.SignedState
	ExpiresAt time.Time
	Tx        string
}

// NewResponder creates the response to the challenge c on the channel of l.
func NewResponder(l channel.Ledger, c channel.ChallengeRecord) (Responder, error) {
	if len(c.DisputedStates) == 0 {
		return Responder{}, errors.New("challenge without states")
	}
	challenge := c.DisputedStates[len(c.DisputedStates)-1]
	if challenge.ChannelID() != l.ID() {
		return Responder{}, errors.WithMessage(channel.ErrChannelMismatch, "challenged state")
	}
	return Responder{
		status:    StatusWaitForApproval,
		Ledger:    l,
		Challenge: challenge.Clone(),
		ExpiresAt: c.ExpiresAt,
	}, nil
}

func (o Responder) ID() protocol.ObjectiveID {
	return protocol.MakeObjectiveID(protocol.TypeResponder, o.Ledger.ID())
}

func (Responder) Type() protocol.Type { return protocol.TypeResponder }

func (o Responder) Status() protocol.Status { return o.status }

func (o Responder) Failure() protocol.FailureReason { return o.failure }

func (o Responder) Terminal() bool {
	return o.status == protocol.StatusSuccess || o.status == protocol.StatusFailure
}

func (o Responder) Channels() []channel.ID {
	return []channel.ID{o.Ledger.ID()}
}

// CrankResponder advances o by ev.
func CrankResponder(o Responder, ev event.Event, signer channel.Signer) (Responder, []protocol.Action, error) {
	if !ResponderAccepts.Contains(ev.GetType()) {
		protocol.Unexpected(protocol.TypeResponder, ev)
	}
	if o.Terminal() {
		return o, nil, nil
	}

	next := o
	var actions []protocol.Action
	switch ev := ev.(type) {
	case event.StatesReceived:
		next.Ledger = absorb(o.Ledger, ev.States...)
	case event.RespondApproved:
		if o.status != StatusWaitForApproval {
			break
		}
		r := ChooseResponse(o.Ledger, o.Challenge.State)
		switch r.Kind {
		case Refute:
			actions = append(actions, o.submit(client.NewRefute(r.State)))
			next.status = StatusWaitForTransaction
		case RespondWithExistingMove:
			actions = append(actions, o.submit(client.NewRespond(r.State)))
			next.status = StatusWaitForTransaction
		default:
			next.status = StatusWaitForResponse
		}
	case event.ResponseProvided:
		if o.status != StatusWaitForResponse {
			break
		}
		if reason := o.checkMove(ev.State, signer); reason != protocol.ReasonNone {
			return o.fail(reason), nil, nil
		}
		entry, err := channel.SignState(ev.State, signer)
		if err != nil {
			return o, nil, err
		}
		ss := channel.SignedState{State: ev.State.Clone(), Signatures: []channel.SignatureEntry{entry}}
		next.Ledger = absorb(o.Ledger, ss)
		next.status = StatusWaitForTransaction
		actions = append(actions,
			protocol.StoreState{State: ss},
			protocol.SendTo(ss.State.Constants, o.Ledger.MyIndex(), ss),
			o.submit(client.NewRespond(ss)),
		)
	case event.TransactionSubmitted:
		if o.status == StatusWaitForTransaction {
			next.Tx = ev.Tx
		}
	case event.TransactionConfirmed:
		if o.status == StatusWaitForTransaction {
			next.status = StatusWaitForAcknowledgement
		}
	case event.TransactionFailed:
		if o.status == StatusWaitForTransaction {
			return o.fail(protocol.ReasonTransactionFailed), nil, nil
		}
	case event.ChallengeRegistered:
		next.ExpiresAt = ev.FinalizesAt
	case event.ChallengeCleared, event.Concluded:
		// Someone else ended the challenge before we answered it. Our own
		// response is confirmed by its transaction.
		switch o.status {
		case StatusWaitForApproval, StatusWaitForResponse:
			next.status = protocol.StatusSuccess
		}
	case event.ChallengeExpired:
		switch o.status {
		case StatusWaitForApproval, StatusWaitForResponse, StatusWaitForTransaction:
			next.status = StatusAcknowledgeTimeout
			actions = append(actions, protocol.CloseChannel{Channel: o.Ledger.ID()})
		}
	case event.Acknowledged:
		switch o.status {
		case StatusWaitForAcknowledgement:
			next.status = protocol.StatusSuccess
		case StatusAcknowledgeTimeout:
			return o.fail(protocol.ReasonTimeOut), nil, nil
		}
	case event.ExitChallenge:
		if o.status == StatusAcknowledgeTimeout {
			return o.fail(protocol.ReasonTimeOut), nil, nil
		}
	case event.Nudge:
	}
	return next, actions, nil
}

// checkMove validates s as the move answering the challenge.
func (o Responder) checkMove(s channel.State, signer channel.Signer) protocol.FailureReason {
	switch {
	case s.ChannelID() != o.Ledger.ID():
		return protocol.ReasonChannelMismatch
	case s.TurnNum != o.Challenge.State.TurnNum+1:
		return protocol.ReasonOutOfOrder
	case !channel.IsAuthorizedSigner(s, signer.Address()):
		return protocol.ReasonUnauthorizedSigner
	}
	return protocol.ReasonNone
}

func (o Responder) submit(tx client.Transaction) protocol.SubmitTransaction {
	return protocol.SubmitTransaction{Objective: o.ID(), Tx: tx}
}

func (o Responder) fail(reason protocol.FailureReason) Responder {
	next := o
	next.status = protocol.StatusFailure
	next.failure = reason
	return next
}

// CrankResponderObjective adapts CrankResponder to protocol.CrankFunc.
func CrankResponderObjective(o protocol.Objective, ev event.Event, signer channel.Signer) (protocol.Objective, []protocol.Action, error) {
	obj, ok := o.(Responder)
	if !ok {
		panic("dispute: cranking foreign responder")
	}
	next, actions, err := CrankResponder(obj, ev, signer)
	return next, actions, err
}
