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

package payment

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/protocol/dispute"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// PaymentChannel is a funded two party channel.
type PaymentChannel struct {
	client *PaymentClient
	id     channel.ID
}

func newPaymentChannel(c *PaymentClient, id channel.ID) *PaymentChannel {
	return &PaymentChannel{client: c, id: id}
}

// ID returns the channel id.
func (ch *PaymentChannel) ID() channel.ID {
	return ch.id
}

// GetChannel returns the ledger of the channel.
func (ch *PaymentChannel) GetChannel() (channel.Ledger, error) {
	l, err := ch.client.engine.Channel(ch.id)
	if err != nil {
		return channel.Ledger{}, err
	}
	return l.UnwrapOrErr(errors.New("channel not stored"))
}

// Balances returns the payouts of the latest state, ours first.
func (ch *PaymentChannel) Balances() (mine, theirs *big.Int, err error) {
	l, err := ch.GetChannel()
	if err != nil {
		return nil, nil, err
	}
	return balances(l)
}

func balances(l channel.Ledger) (mine, theirs *big.Int, err error) {
	alloc, ok := channel.AsAllocation(l.Latest().State.Outcome)
	if !ok {
		return nil, nil, errors.New("outcome is not an allocation")
	}
	parts := l.Constants().Participants
	me := l.MyIndex()
	return alloc.Amount(parts[me].Destination), alloc.Amount(parts[1-me].Destination), nil
}

// AwaitTurn waits until the channel holds a state of at least turnNum.
func (ch *PaymentChannel) AwaitTurn(ctx context.Context, turnNum uint64) error {
	return ch.client.await(ctx, func() (bool, error) {
		l, err := ch.GetChannel()
		return err == nil && l.Latest().State.TurnNum >= turnNum, err
	})
}

// SendPayment pays amount to the peer. It waits until it is our turn.
func (ch *PaymentChannel) SendPayment(ctx context.Context, amount *big.Int) error {
	var l channel.Ledger
	err := ch.client.await(ctx, func() (bool, error) {
		var err error
		l, err = ch.GetChannel()
		if err != nil {
			return false, err
		}
		if l.Closed() {
			return false, errors.New("channel closed")
		}
		return l.OurTurn(), nil
	})
	if err != nil {
		return err
	}

	mine, theirs, err := balances(l)
	if err != nil {
		return err
	}
	if mine.Cmp(amount) < 0 {
		return errors.WithMessagef(ErrInsufficientBalance, "paying %v from %v", amount, mine)
	}
	parts := l.Constants().Participants
	me := l.MyIndex()
	outcome := make(channel.Allocation, 2)
	outcome[me] = channel.AllocationItem{Destination: parts[me].Destination, Amount: new(big.Int).Sub(mine, amount)}
	outcome[1-me] = channel.AllocationItem{Destination: parts[1-me].Destination, Amount: new(big.Int).Add(theirs, amount)}

	latest := l.Latest().State
	_, err = ch.client.engine.Move(ctx, latest.WithTurnNum(latest.TurnNum+1).WithOutcome(outcome))
	return err
}

// Settle closes the channel on chain. The participant who moved last
// registers a challenge and waits for it to expire. The other one waits for
// the channel to close and acknowledges the challenge it did not answer.
func (ch *PaymentChannel) Settle(ctx context.Context) error {
	l, err := ch.GetChannel()
	if err != nil {
		return err
	}
	if l.OurTurn() {
		return ch.awaitClosed(ctx)
	}

	e := ch.client.engine
	id, err := e.Challenge(ctx, ch.id)
	if err != nil {
		return err
	}
	if err := ch.deliver(id, event.ChallengeApproved{Channel: ch.id}); err != nil {
		return err
	}
	o, err := ch.client.awaitObjective(ctx, id, dispute.StatusAcknowledgeTimeout, dispute.StatusAcknowledgeResponse)
	if err != nil {
		return err
	}
	if err := ch.deliver(id, event.Acknowledged{Channel: ch.id}); err != nil {
		return err
	}
	if o.Status() == dispute.StatusAcknowledgeResponse {
		return errors.New("challenge was answered")
	}
	_, err = ch.client.awaitObjective(ctx, id, dispute.StatusSuccessClosed)
	return err
}

func (ch *PaymentChannel) awaitClosed(ctx context.Context) error {
	rid := protocol.MakeObjectiveID(protocol.TypeResponder, ch.id)
	if _, err := ch.client.awaitObjective(ctx, rid, dispute.StatusAcknowledgeTimeout); err != nil {
		return err
	}
	// The responder fails with a timeout once acknowledged.
	if err := ch.deliver(rid, event.Acknowledged{Channel: ch.id}); err != nil {
		return err
	}
	return ch.client.await(ctx, func() (bool, error) {
		l, err := ch.GetChannel()
		return err == nil && l.Closed(), err
	})
}

func (ch *PaymentChannel) deliver(id protocol.ObjectiveID, ev event.Event) error {
	env, err := protocol.NewEnvelope(id, ev)
	if err != nil {
		return err
	}
	return ch.client.engine.Deliver(env)
}
