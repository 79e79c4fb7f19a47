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

package chain

import (
	"context"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
)

var ErrNotSupported = errors.New("state is not supported by all participants")

// Adjudicator submits dispute transactions.
type Adjudicator struct {
	cb    *client.ContractBackend
	clock clock.Clock
	log   log.Embedding
}

func NewAdjudicator(cb *client.ContractBackend, clk clock.Clock) *Adjudicator {
	return &Adjudicator{
		cb:    cb,
		clock: clk,
		log:   log.MakeEmbedding(log.Default()),
	}
}

// Submit sends tx and reports its outcome as the events of the transaction
// submission protocol: TransactionSubmitted followed by TransactionConfirmed,
// or TransactionFailed.
func (a *Adjudicator) Submit(ctx context.Context, tx client.Transaction) []event.Event {
	logger := a.log.Log().WithField("channel", tx.Channel.Hex())
	txID, err := a.cb.Send(ctx, tx)
	if err != nil {
		logger.Warnf("%v failed: %v", tx.Kind, err)
		return []event.Event{event.TransactionFailed{Channel: tx.Channel, Tx: txID, Reason: err.Error()}}
	}
	logger.Infof("%v included in %s", tx.Kind, txID)
	return []event.Event{
		event.TransactionSubmitted{Channel: tx.Channel, Tx: txID},
		event.TransactionConfirmed{Channel: tx.Channel, Tx: txID, At: a.clock.Now()},
	}
}

// Checkpoint records ss on chain, clearing a challenge it supersedes.
func (a *Adjudicator) Checkpoint(ctx context.Context, ss channel.SignedState) (string, error) {
	return a.cb.Send(ctx, client.NewCheckpoint(ss))
}

// Conclude finalizes the channel with the final state ss, which must be
// signed by every participant.
func (a *Adjudicator) Conclude(ctx context.Context, ss channel.SignedState) (string, error) {
	if !ss.State.IsFinal || !ss.SignedByAll() {
		return "", ErrNotSupported
	}
	return a.cb.Send(ctx, client.NewConclude(ss))
}
