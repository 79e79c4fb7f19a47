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

// Package payment implements two party payment channels on top of an engine.
package payment

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/engine"
	"perun.network/perun-nitro-engine/protocol"
)

const DefaultPollInterval = time.Duration(20) * time.Millisecond

var ErrObjectiveFailed = errors.New("objective failed")

// PaymentClient opens and accepts payment channels of one participant.
type PaymentClient struct {
	engine            *engine.Engine
	address           common.Address
	challengeDuration uint64
	chainID           *big.Int
	clock             clock.Clock
	pollInterval      time.Duration

	mu    pkgsync.Mutex
	known map[channel.ID]struct{}
	nonce uint64
}

// SetupPaymentClient creates the payment client of the participant signing
// with address on e.
func SetupPaymentClient(e *engine.Engine, address common.Address, chainID *big.Int, challengeDuration uint64, clk clock.Clock) *PaymentClient {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &PaymentClient{
		engine:            e,
		address:           address,
		challengeDuration: challengeDuration,
		chainID:           new(big.Int).Set(chainID),
		clock:             clk,
		pollInterval:      DefaultPollInterval,
		known:             make(map[channel.ID]struct{}),
		nonce:             uint64(clk.Now().UnixNano()),
	}
}

// Participant describes this client to its peers.
func (c *PaymentClient) Participant() channel.Participant {
	return channel.Participant{
		SigningAddress: c.address,
		Destination:    channel.AddressToDestination(c.address),
		ParticipantID:  c.engine.ID(),
	}
}

// OpenChannel opens a channel with peer in which each side deposits balance
// and waits until it is funded.
func (c *PaymentClient) OpenChannel(ctx context.Context, peer channel.Participant, balance *big.Int) (*PaymentChannel, error) {
	c.mu.Lock()
	c.nonce++
	nonce := c.nonce
	c.mu.Unlock()

	me := c.Participant()
	opening := channel.State{
		Constants: channel.Constants{
			ChainID:           new(big.Int).Set(c.chainID),
			ChannelNonce:      nonce,
			Participants:      []channel.Participant{me, peer},
			ChallengeDuration: c.challengeDuration,
		},
		Outcome: channel.Allocation{
			{Destination: me.Destination, Amount: new(big.Int).Set(balance)},
			{Destination: peer.Destination, Amount: new(big.Int).Set(balance)},
		},
	}
	id, err := c.engine.FundDirect(ctx, opening)
	if err != nil {
		return nil, errors.WithMessage(err, "proposing channel")
	}
	if _, err := c.awaitObjective(ctx, id, protocol.StatusSuccess); err != nil {
		return nil, err
	}
	c.remember(opening.ChannelID())
	return newPaymentChannel(c, opening.ChannelID()), nil
}

// AcceptedChannel waits for a funded channel this client did not see
// before.
func (c *PaymentClient) AcceptedChannel(ctx context.Context) (*PaymentChannel, error) {
	var found channel.ID
	err := c.await(ctx, func() (bool, error) {
		ledgers, err := c.engine.Channels()
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, l := range ledgers {
			if _, ok := c.known[l.ID()]; ok || l.Funding().IsNone() || l.Closed() {
				continue
			}
			c.known[l.ID()] = struct{}{}
			found = l.ID()
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return newPaymentChannel(c, found), nil
}

func (c *PaymentClient) remember(id channel.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[id] = struct{}{}
}

// Shutdown closes the engine of the client.
func (c *PaymentClient) Shutdown() error {
	return c.engine.Close()
}

// await polls cond until it holds.
func (c *PaymentClient) await(ctx context.Context, cond func() (bool, error)) error {
	for {
		ok, err := cond()
		if err != nil || ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.TickAfter(c.pollInterval):
		}
	}
}

// awaitObjective waits until the objective id reaches one of statuses. A
// failure ends the wait with ErrObjectiveFailed.
func (c *PaymentClient) awaitObjective(ctx context.Context, id protocol.ObjectiveID, statuses ...protocol.Status) (protocol.Objective, error) {
	var o protocol.Objective
	err := c.await(ctx, func() (bool, error) {
		stored, err := c.engine.Objective(id)
		if err != nil || stored.IsNone() {
			return false, err
		}
		o = stored.UnsafeFromSome()
		if o.Status() == protocol.StatusFailure {
			return false, errors.WithMessagef(ErrObjectiveFailed, "%s: %s", id, o.Failure())
		}
		for _, s := range statuses {
			if o.Status() == s {
				return true, nil
			}
		}
		return false, nil
	})
	return o, err
}
