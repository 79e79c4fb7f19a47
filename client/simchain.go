// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/wallet"
)

// SimChain is an in-memory adjudicator. Transactions are included
// immediately and challenge windows are measured on the given clock.
type SimChain struct {
	mu       sync.Mutex
	clock    clock.Clock
	channels map[channel.ID]*simChannel
	txCount  uint64
	failNext map[TxKind]int
}

type simChannel struct {
	holdings       *big.Int
	turnNumRecord  uint64
	challenged     bool
	finalizesAt    time.Time
	disputedStates []channel.SignedState
	challengeTurn  uint64
	clearedBy      TxKind
	clearingState  channel.SignedState
	cleared        uint64
	concluded      bool
}

var _ Client = (*SimChain)(nil)

func NewSimChain(clk clock.Clock) *SimChain {
	return &SimChain{
		clock:    clk,
		channels: make(map[channel.ID]*simChannel),
		failNext: make(map[TxKind]int),
	}
}

// FailNext makes the next n transactions of the given kind revert.
func (c *SimChain) FailNext(kind TxKind, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext[kind] += n
}

func (c *SimChain) channel(id channel.ID) *simChannel {
	ch, ok := c.channels[id]
	if !ok {
		ch = &simChannel{holdings: new(big.Int)}
		c.channels[id] = ch
	}
	return ch
}

func (ch *simChannel) expired(now time.Time) bool {
	return ch.challenged && !now.Before(ch.finalizesAt)
}

func (ch *simChannel) finalized(now time.Time) bool {
	return ch.concluded || ch.expired(now)
}

func (c *SimChain) Submit(ctx context.Context, tx Transaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNext[tx.Kind] > 0 {
		c.failNext[tx.Kind]--
		return "", errors.WithMessage(ErrTxReverted, "injected failure")
	}

	now := c.clock.Now()
	ch := c.channel(tx.Channel)
	if ch.finalized(now) {
		return "", errors.WithMessage(ErrTxReverted, "channel finalized")
	}

	var err error
	switch tx.Kind {
	case TxDeposit:
		err = ch.deposit(tx)
	case TxForceMove:
		err = ch.forceMove(tx, now)
	case TxRespond:
		err = ch.respond(tx.Latest())
	case TxRefute:
		err = ch.refute(tx.Latest())
	case TxCheckpoint:
		err = ch.checkpoint(tx.Latest())
	case TxConclude:
		err = ch.conclude(tx.Latest())
	}
	if err != nil {
		return "", errors.WithMessagef(ErrTxReverted, "%v: %v", tx.Kind, err)
	}
	c.txCount++
	return fmt.Sprintf("0x%016x", c.txCount), nil
}

func (c *SimChain) GetChannelInfo(ctx context.Context, id channel.ID) (ChannelInfo, error) {
	if err := ctx.Err(); err != nil {
		return ChannelInfo{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := c.channel(id)
	info := ChannelInfo{
		Holdings:      new(big.Int).Set(ch.holdings),
		TurnNumRecord: ch.turnNumRecord,
		Challenged:    ch.challenged,
		FinalizesAt:   ch.finalizesAt,
		Expired:       ch.expired(c.clock.Now()),
		ClearedBy:     ch.clearedBy,
		ClearingState: ch.clearingState.Clone(),
		Cleared:       ch.cleared,
		Concluded:     ch.concluded,
	}
	for _, ss := range ch.disputedStates {
		info.DisputedStates = append(info.DisputedStates, ss.Clone())
	}
	return info, nil
}

func (ch *simChannel) deposit(tx Transaction) error {
	if ch.holdings.Cmp(tx.ExpectedHeld) < 0 {
		return errors.Errorf("holdings %v below expected %v", ch.holdings, tx.ExpectedHeld)
	}
	target := new(big.Int).Add(tx.ExpectedHeld, tx.Amount)
	if ch.holdings.Cmp(target) < 0 {
		ch.holdings = target
	}
	return nil
}

func moverSigned(ss channel.SignedState) error {
	if err := channel.ValidateSignatures(ss); err != nil {
		return err
	}
	mover := ss.State.Mover(ss.State.TurnNum).SigningAddress
	if !ss.SignedBy(mover) {
		return errors.Errorf("turn %d not signed by mover", ss.State.TurnNum)
	}
	return nil
}

func (ch *simChannel) forceMove(tx Transaction, now time.Time) error {
	for i, ss := range tx.States {
		if err := moverSigned(ss); err != nil {
			return err
		}
		if i > 0 && ss.State.TurnNum != tx.States[i-1].State.TurnNum+1 {
			return errors.New("support proof not contiguous")
		}
	}
	latest := tx.Latest()
	if latest.State.TurnNum < ch.turnNumRecord || (ch.challenged && latest.State.TurnNum == ch.turnNumRecord) {
		return errors.Errorf("turn %d is stale", latest.State.TurnNum)
	}
	challenger, err := wallet.Backend.RecoverSigner(channel.HashChallenge(latest.Hash()), tx.ChallengerSig)
	if err != nil {
		return err
	}
	if challenger != tx.Challenger || latest.State.IndexOf(challenger) < 0 {
		return errors.New("challenger is not a participant")
	}
	ch.challenged = true
	ch.challengeTurn = latest.State.TurnNum
	ch.turnNumRecord = latest.State.TurnNum
	ch.finalizesAt = event.ExpiresAt(now, latest.State.ChallengeDuration)
	ch.disputedStates = nil
	for _, ss := range tx.States {
		ch.disputedStates = append(ch.disputedStates, ss.Clone())
	}
	return nil
}

func (ch *simChannel) clear(kind TxKind, ss channel.SignedState) {
	ch.challenged = false
	ch.finalizesAt = time.Time{}
	ch.disputedStates = nil
	ch.clearedBy = kind
	ch.clearingState = ss.Clone()
	ch.cleared++
}

func (ch *simChannel) respond(ss channel.SignedState) error {
	if !ch.challenged {
		return errors.New("no challenge to respond to")
	}
	if ss.State.TurnNum != ch.turnNumRecord+1 {
		return errors.Errorf("response at turn %d, want %d", ss.State.TurnNum, ch.turnNumRecord+1)
	}
	if err := moverSigned(ss); err != nil {
		return err
	}
	ch.turnNumRecord = ss.State.TurnNum
	ch.clear(TxRespond, ss)
	return nil
}

func (ch *simChannel) refute(ss channel.SignedState) error {
	if !ch.challenged {
		return errors.New("no challenge to refute")
	}
	n := uint64(ss.State.NumParts())
	if ss.State.TurnNum <= ch.challengeTurn || ss.State.TurnNum%n != ch.challengeTurn%n {
		return errors.Errorf("turn %d does not refute turn %d", ss.State.TurnNum, ch.challengeTurn)
	}
	if err := moverSigned(ss); err != nil {
		return err
	}
	ch.clear(TxRefute, ss)
	return nil
}

func (ch *simChannel) checkpoint(ss channel.SignedState) error {
	if err := moverSigned(ss); err != nil {
		return err
	}
	if ss.State.TurnNum <= ch.turnNumRecord {
		return errors.Errorf("checkpoint turn %d not after %d", ss.State.TurnNum, ch.turnNumRecord)
	}
	ch.turnNumRecord = ss.State.TurnNum
	if ch.challenged {
		ch.clear(TxCheckpoint, ss)
	}
	return nil
}

func (ch *simChannel) conclude(ss channel.SignedState) error {
	if !ss.State.IsFinal {
		return errors.New("state is not final")
	}
	if err := channel.ValidateSignatures(ss); err != nil {
		return err
	}
	if !ss.SignedByAll() {
		return errors.New("final state not signed by all")
	}
	ch.concluded = true
	ch.challenged = false
	ch.disputedStates = nil
	return nil
}
