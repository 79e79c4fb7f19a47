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
	"math/big"
	"time"

	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
)

var (
	ErrTxReverted      = errors.New("transaction reverted")
	ErrNoChallenge     = errors.New("no challenge registered after force move")
	ErrStillChallenged = errors.New("challenge still registered after response")
	ErrNotConcluded    = errors.New("channel not concluded after conclude")
)

// ChannelInfo is the adjudicator's view of a channel.
type ChannelInfo struct {
	Holdings      *big.Int
	TurnNumRecord uint64

	Challenged     bool
	FinalizesAt    time.Time
	DisputedStates []channel.SignedState
	// Expired is set once a registered challenge elapsed unanswered.
	Expired bool

	// ClearedBy and ClearingState describe how the last challenge was
	// cleared, if any.
	ClearedBy     TxKind
	ClearingState channel.SignedState
	Cleared       uint64 // number of challenges cleared so far

	Concluded bool
}

// Client is the chain adapter boundary.
type Client interface {
	// Submit broadcasts tx and returns its id once included.
	Submit(ctx context.Context, tx Transaction) (string, error)
	GetChannelInfo(ctx context.Context, id channel.ID) (ChannelInfo, error)
}

// ContractBackend submits adjudicator calls and checks their effect on the
// channel.
type ContractBackend struct {
	cl     Client
	signer channel.Signer
}

func NewContractBackend(cl Client, signer channel.Signer) *ContractBackend {
	return &ContractBackend{cl: cl, signer: signer}
}

// GetClient returns the underlying client.
func (cb *ContractBackend) GetClient() Client {
	return cb.cl
}

// GetSigner returns the signer used for challenges.
func (cb *ContractBackend) GetSigner() channel.Signer {
	return cb.signer
}

func (cb *ContractBackend) Deposit(ctx context.Context, id channel.ID, expectedHeld, amount *big.Int) (string, error) {
	tx := NewDeposit(id, expectedHeld, amount)
	txID, err := cb.submit(ctx, tx)
	if err != nil {
		return "", err
	}
	info, err := cb.cl.GetChannelInfo(ctx, id)
	if err != nil {
		return txID, errors.WithMessage(err, "could not get channel info")
	}
	if info.Holdings.Cmp(new(big.Int).Add(expectedHeld, amount)) < 0 {
		return txID, errors.Errorf("holdings %v below expected after deposit", info.Holdings)
	}
	return txID, nil
}

// ForceMove registers a challenge with the given support proof.
func (cb *ContractBackend) ForceMove(ctx context.Context, states []channel.SignedState) (string, error) {
	tx, err := NewForceMove(states, cb.signer)
	if err != nil {
		return "", err
	}
	return cb.Send(ctx, tx)
}

// Send submits a prepared adjudicator call and checks its effect.
func (cb *ContractBackend) Send(ctx context.Context, tx Transaction) (string, error) {
	txID, err := cb.submit(ctx, tx)
	if err != nil {
		return "", err
	}
	info, err := cb.cl.GetChannelInfo(ctx, tx.Channel)
	if err != nil {
		return txID, errors.WithMessage(err, "could not get channel info")
	}
	switch tx.Kind {
	case TxForceMove:
		if !info.Challenged {
			return txID, ErrNoChallenge
		}
	case TxRespond, TxRefute:
		if info.Challenged {
			return txID, ErrStillChallenged
		}
	case TxConclude:
		if !info.Concluded {
			return txID, ErrNotConcluded
		}
	}
	return txID, nil
}

func (cb *ContractBackend) GetChannelInfo(ctx context.Context, id channel.ID) (ChannelInfo, error) {
	return cb.cl.GetChannelInfo(ctx, id)
}

func (cb *ContractBackend) submit(ctx context.Context, tx Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	txID, err := cb.cl.Submit(ctx, tx)
	if err != nil {
		return "", errors.WithMessagef(err, "error while submitting %v", tx.Kind)
	}
	return txID, nil
}
