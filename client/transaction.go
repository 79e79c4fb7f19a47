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
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wallet"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

type TxKind uint8

const (
	TxDeposit TxKind = iota
	TxForceMove
	TxRespond
	TxRefute
	TxCheckpoint
	TxConclude
)

func (k TxKind) String() string {
	switch k {
	case TxDeposit:
		return "deposit"
	case TxForceMove:
		return "forceMove"
	case TxRespond:
		return "respond"
	case TxRefute:
		return "refute"
	case TxCheckpoint:
		return "checkpoint"
	case TxConclude:
		return "conclude"
	default:
		return fmt.Sprintf("TxKind(%d)", uint8(k))
	}
}

// Transaction is a call to the adjudicator. Deposits use ExpectedHeld and
// Amount, all other kinds carry States, latest last. A force move is
// additionally signed by the challenger.
type Transaction struct {
	Kind          TxKind
	Channel       channel.ID
	ExpectedHeld  *big.Int
	Amount        *big.Int
	States        []channel.SignedState
	Challenger    common.Address
	ChallengerSig wallet.Sig
}

// NewDeposit deposits amount into id, expecting expectedHeld to be held
// already.
func NewDeposit(id channel.ID, expectedHeld, amount *big.Int) Transaction {
	return Transaction{
		Kind:         TxDeposit,
		Channel:      id,
		ExpectedHeld: new(big.Int).Set(expectedHeld),
		Amount:       new(big.Int).Set(amount),
	}
}

// NewForceMove registers a challenge with the given support proof. The
// challenger signs the hash of the latest state.
func NewForceMove(states []channel.SignedState, challenger channel.Signer) (Transaction, error) {
	if len(states) == 0 {
		return Transaction{}, errors.WithMessage(ErrInvalidTransaction, "force move without states")
	}
	tx := newStatesTx(TxForceMove, states...)
	sig, err := challenger.SignHash(channel.HashChallenge(tx.Latest().Hash()))
	if err != nil {
		return Transaction{}, errors.WithMessage(err, "signing challenge")
	}
	tx.Challenger = challenger.Address()
	tx.ChallengerSig = sig
	return tx, nil
}

func NewRespond(ss channel.SignedState) Transaction {
	return newStatesTx(TxRespond, ss)
}

func NewRefute(ss channel.SignedState) Transaction {
	return newStatesTx(TxRefute, ss)
}

func NewCheckpoint(ss channel.SignedState) Transaction {
	return newStatesTx(TxCheckpoint, ss)
}

func NewConclude(ss channel.SignedState) Transaction {
	return newStatesTx(TxConclude, ss)
}

func newStatesTx(kind TxKind, states ...channel.SignedState) Transaction {
	tx := Transaction{Kind: kind, Channel: states[len(states)-1].ChannelID()}
	for _, ss := range states {
		tx.States = append(tx.States, ss.Clone())
	}
	return tx
}

// Latest returns the last state carried by tx.
func (tx Transaction) Latest() channel.SignedState {
	return tx.States[len(tx.States)-1]
}

// Validate checks that tx is well formed. It does not check it against the
// chain.
func (tx Transaction) Validate() error {
	if tx.Kind == TxDeposit {
		if tx.Amount == nil || tx.Amount.Sign() <= 0 {
			return errors.WithMessage(ErrInvalidTransaction, "deposit amount must be positive")
		}
		if tx.ExpectedHeld == nil || tx.ExpectedHeld.Sign() < 0 {
			return errors.WithMessage(ErrInvalidTransaction, "negative expected holdings")
		}
		return nil
	}
	if tx.Kind > TxConclude {
		return errors.WithMessagef(ErrInvalidTransaction, "unknown kind %v", tx.Kind)
	}
	if len(tx.States) == 0 {
		return errors.WithMessagef(ErrInvalidTransaction, "%v without states", tx.Kind)
	}
	if tx.Kind != TxForceMove && len(tx.States) != 1 {
		return errors.WithMessagef(ErrInvalidTransaction, "%v carries %d states", tx.Kind, len(tx.States))
	}
	for _, ss := range tx.States {
		if ss.ChannelID() != tx.Channel {
			return errors.WithMessage(ErrInvalidTransaction, "states of different channels")
		}
	}
	return nil
}

// Clone returns a deep copy of tx.
func (tx Transaction) Clone() Transaction {
	clone := tx
	if tx.ExpectedHeld != nil {
		clone.ExpectedHeld = new(big.Int).Set(tx.ExpectedHeld)
	}
	if tx.Amount != nil {
		clone.Amount = new(big.Int).Set(tx.Amount)
	}
	if tx.States != nil {
		clone.States = make([]channel.SignedState, len(tx.States))
		for i, ss := range tx.States {
			clone.States[i] = ss.Clone()
		}
	}
	if tx.ChallengerSig != nil {
		clone.ChallengerSig = append(wallet.Sig{}, tx.ChallengerSig...)
	}
	return clone
}
