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

// Package chain executes the chain related actions of the engine and turns
// changes of the adjudicator into events.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

const MaxIterationsUntilAbort = 20
const DefaultPollingInterval = time.Duration(6) * time.Second

var ErrFundingAborted = errors.New("deposit not included")

type Funder struct {
	cb              *client.ContractBackend
	clock           clock.Clock
	maxIters        int
	pollingInterval time.Duration
	log             log.Embedding
}

func NewFunder(cb *client.ContractBackend, clk clock.Clock) *Funder {
	return &Funder{
		cb:              cb,
		clock:           clk,
		maxIters:        MaxIterationsUntilAbort,
		pollingInterval: DefaultPollingInterval,
		log:             log.MakeEmbedding(log.Default()),
	}
}

// WithPolling sets the number of attempts and the time between them.
func (f *Funder) WithPolling(maxIters int, interval time.Duration) *Funder {
	f.maxIters = maxIters
	f.pollingInterval = interval
	return f
}

// Fund executes d. It retries until the deposit is included or the holdings
// already reach the target, and reports the outcome as an event.
func (f *Funder) Fund(ctx context.Context, d protocol.Deposit) event.Event {
	target := new(big.Int).Add(d.ExpectedHeld, d.Amount)
	logger := f.log.Log().WithField("channel", d.Channel.Hex())

	var lastErr error
	for i := 0; i < f.maxIters; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return event.DepositFailed{Channel: d.Channel, Reason: ctx.Err().Error()}
			case <-f.clock.TickAfter(f.pollingInterval):
			}
		}

		info, err := f.cb.GetChannelInfo(ctx, d.Channel)
		if err != nil {
			logger.Warnf("Error while polling holdings: %v", err)
			lastErr = err
			continue
		}
		if info.Holdings.Cmp(target) >= 0 {
			logger.Debug("Holdings already reach the deposit target")
			return event.DepositSubmitted{Channel: d.Channel, Attempt: uint32(i + 1)}
		}
		if info.Holdings.Cmp(d.ExpectedHeld) < 0 {
			logger.Debugf("Waiting for holdings %v to reach %v", info.Holdings, d.ExpectedHeld)
			lastErr = errors.Errorf("holdings %v below expected %v", info.Holdings, d.ExpectedHeld)
			continue
		}

		tx, err := f.cb.Deposit(ctx, d.Channel, info.Holdings, new(big.Int).Sub(target, info.Holdings))
		if err != nil {
			logger.Warnf("Deposit attempt %d failed: %v", i+1, err)
			lastErr = err
			continue
		}
		logger.Infof("Deposited %v in %s", d.Amount, tx)
		return event.DepositSubmitted{Channel: d.Channel, Tx: tx, Attempt: uint32(i + 1)}
	}
	err := errors.WithMessagef(ErrFundingAborted, "after %d attempts: %v", f.maxIters, lastErr)
	return event.DepositFailed{Channel: d.Channel, Reason: err.Error()}
}
