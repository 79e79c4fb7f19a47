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

package payment_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/engine"
	"perun.network/perun-nitro-engine/payment"
	"perun.network/perun-nitro-engine/store"
	"perun.network/perun-nitro-engine/wallet"
)

const (
	testTimeout       = 20 * time.Second
	challengeDuration = 60
)

var chainID = big.NewInt(1337)

// setupClients runs two engines on a shared simulated chain. The test clock
// advances one second every few milliseconds until the test ends.
func setupClients(t *testing.T) (alice, bob *payment.PaymentClient) {
	rng := pkgtest.Prng(t)
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	sim := client.NewSimChain(clk)
	bus := engine.NewLocalBus()

	stop := make(chan struct{})
	ticked := make(chan struct{})
	go func() {
		defer close(ticked)
		for {
			select {
			case <-stop:
				return
			case <-time.After(2 * time.Millisecond):
				clk.SetTime(clk.Now().Add(time.Second))
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-ticked
	})

	cfg := engine.DefaultConfig()
	cfg.MaxFundingWait = 0
	cfg.PollingInterval = time.Second
	cfg.NudgeInterval = time.Second

	clients := make([]*payment.PaymentClient, 2)
	for i, name := range []string{"alice", "bob"} {
		acc, err := wallet.NewRandomAccount(rng)
		require.NoError(t, err)
		e, err := engine.New(cfg, engine.Deps{
			Signer:    acc,
			Store:     store.NewMemStore(store.DecoderFromHandlers(engine.Handlers())),
			Transport: bus.Connect(name),
			Chain:     sim,
			Clock:     clk,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()
		c := payment.SetupPaymentClient(e, acc.Address(), chainID, challengeDuration, clk)
		t.Cleanup(func() {
			cancel()
			_ = c.Shutdown()
			<-done
		})
		clients[i] = c
	}
	return clients[0], clients[1]
}

func TestHappyPayment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	alice, bob := setupClients(t)

	var bobChannel *payment.PaymentChannel
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bobChannel, err = bob.AcceptedChannel(gctx)
		return err
	})
	aliceChannel, err := alice.OpenChannel(ctx, bob.Participant(), big.NewInt(1000))
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	require.Equal(t, aliceChannel.ID(), bobChannel.ID())

	require.NoError(t, aliceChannel.SendPayment(ctx, big.NewInt(10)))
	require.NoError(t, bobChannel.SendPayment(ctx, big.NewInt(50)))

	// Funding ends at turn 3, the two payments are turns 4 and 5.
	require.NoError(t, aliceChannel.AwaitTurn(ctx, 5))
	mine, theirs, err := aliceChannel.Balances()
	require.NoError(t, err)
	require.Zero(t, mine.Cmp(big.NewInt(1040)))
	require.Zero(t, theirs.Cmp(big.NewInt(960)))
	mine, theirs, err = bobChannel.Balances()
	require.NoError(t, err)
	require.Zero(t, mine.Cmp(big.NewInt(960)))
	require.Zero(t, theirs.Cmp(big.NewInt(1040)))

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { return aliceChannel.Settle(gctx) })
	g.Go(func() error { return bobChannel.Settle(gctx) })
	require.NoError(t, g.Wait())

	for _, ch := range []*payment.PaymentChannel{aliceChannel, bobChannel} {
		l, err := ch.GetChannel()
		require.NoError(t, err)
		require.True(t, l.Closed())
	}
}

func TestInsufficientBalance(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	alice, bob := setupClients(t)

	ch, err := alice.OpenChannel(ctx, bob.Participant(), big.NewInt(5))
	require.NoError(t, err)
	require.ErrorIs(t, ch.SendPayment(ctx, big.NewInt(6)), payment.ErrInsufficientBalance)
}
