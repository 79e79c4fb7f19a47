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

package chain_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/chain"
	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
)

type setup struct {
	*ctest.Setup
	clock *clock.TestClock
	sim   *client.SimChain
	cb    *client.ContractBackend
}

func newSetup(t *testing.T) setup {
	t.Helper()
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	sim := client.NewSimChain(clk)
	return setup{Setup: s, clock: clk, sim: sim, cb: client.NewContractBackend(sim, s.Accounts[0])}
}

func TestFunder(t *testing.T) {
	s := newSetup(t)
	id := s.Constants.ID()
	ctx := context.Background()
	funder := chain.NewFunder(s.cb, clock.NewDefaultClock()).WithPolling(3, time.Millisecond)

	ev := funder.Fund(ctx, protocol.Deposit{Channel: id, ExpectedHeld: big.NewInt(0), Amount: big.NewInt(5)})
	submitted, ok := ev.(event.DepositSubmitted)
	require.True(t, ok, "got %v", ev.GetType())
	require.NotEmpty(t, submitted.Tx)
	require.Equal(t, uint32(1), submitted.Attempt)

	info, err := s.sim.GetChannelInfo(ctx, id)
	require.NoError(t, err)
	require.Zero(t, info.Holdings.Cmp(big.NewInt(5)))

	t.Run("already funded", func(t *testing.T) {
		ev := funder.Fund(ctx, protocol.Deposit{Channel: id, ExpectedHeld: big.NewInt(0), Amount: big.NewInt(5)})
		submitted, ok := ev.(event.DepositSubmitted)
		require.True(t, ok)
		require.Empty(t, submitted.Tx)
	})

	t.Run("holdings never reach expected", func(t *testing.T) {
		ev := funder.Fund(ctx, protocol.Deposit{Channel: id, ExpectedHeld: big.NewInt(7), Amount: big.NewInt(5)})
		failed, ok := ev.(event.DepositFailed)
		require.True(t, ok)
		require.Contains(t, failed.Reason, chain.ErrFundingAborted.Error())
	})

	t.Run("reverted deposits", func(t *testing.T) {
		s.sim.FailNext(client.TxDeposit, 3)
		ev := funder.Fund(ctx, protocol.Deposit{Channel: id, ExpectedHeld: big.NewInt(5), Amount: big.NewInt(5)})
		require.Equal(t, event.EventTypeDepositFailed, ev.GetType())

		ev = funder.Fund(ctx, protocol.Deposit{Channel: id, ExpectedHeld: big.NewInt(5), Amount: big.NewInt(5)})
		require.Equal(t, event.EventTypeDepositSubmitted, ev.GetType())
	})
}

func TestAdjudicator(t *testing.T) {
	s := newSetup(t)
	id := s.Constants.ID()
	ctx := context.Background()
	adj := chain.NewAdjudicator(s.cb, s.clock)

	// Alice registers the turns 7 and 8.
	tx, err := client.NewForceMove([]channel.SignedState{s.Signed(7, 1, 1), s.Signed(8, 1, 1)}, s.Accounts[0])
	require.NoError(t, err)

	s.sim.FailNext(client.TxForceMove, 1)
	events := adj.Submit(ctx, tx)
	require.Len(t, events, 1)
	require.Equal(t, event.EventTypeTransactionFailed, events[0].GetType())

	events = adj.Submit(ctx, tx)
	require.Len(t, events, 2)
	submitted := events[0].(event.TransactionSubmitted)
	confirmed := events[1].(event.TransactionConfirmed)
	require.Equal(t, submitted.Tx, confirmed.Tx)
	require.Equal(t, id, confirmed.Channel)
	require.Equal(t, s.clock.Now(), confirmed.At)

	_, err = adj.Checkpoint(ctx, s.Signed(9, 1, 1))
	require.NoError(t, err)
	info, err := s.sim.GetChannelInfo(ctx, id)
	require.NoError(t, err)
	require.False(t, info.Challenged)
	require.Equal(t, client.TxCheckpoint, info.ClearedBy)

	_, err = adj.Conclude(ctx, s.Signed(10, 1, 1))
	require.ErrorIs(t, err, chain.ErrNotSupported)
	final := s.State(10, 1, 1)
	final.IsFinal = true
	_, err = adj.Conclude(ctx, ctest.SignAll(final, s.Accounts))
	require.NoError(t, err)
}

func TestWatcher(t *testing.T) {
	s := newSetup(t)
	id := s.Constants.ID()
	ctx := context.Background()
	w := chain.NewWatcher(s.sim, s.clock, time.Second)
	w.Watch(id)

	next := func() event.Event {
		t.Helper()
		select {
		case ev := <-w.Events():
			return ev
		default:
			require.FailNow(t, "no event")
			return nil
		}
	}
	requireNone := func() {
		t.Helper()
		select {
		case ev := <-w.Events():
			require.FailNowf(t, "unexpected event", "%v", ev.GetType())
		default:
		}
	}

	w.Poll(ctx)
	requireNone()

	_, err := s.cb.Deposit(ctx, id, big.NewInt(0), big.NewInt(3))
	require.NoError(t, err)
	w.Poll(ctx)
	funding := next().(event.FundingUpdated)
	require.Zero(t, funding.Amount.Cmp(big.NewInt(3)))
	require.True(t, funding.Finalized)

	_, err = s.cb.ForceMove(ctx, []channel.SignedState{s.Signed(4, 1, 1), s.Signed(5, 1, 1)})
	require.NoError(t, err)
	w.Poll(ctx)
	registered := next().(event.ChallengeRegistered)
	require.Len(t, registered.DisputedStates, 2)
	require.Equal(t, s.clock.Now().Add(60*time.Second), registered.FinalizesAt)
	w.Poll(ctx)
	requireNone()

	_, err = s.cb.Send(ctx, client.NewRespond(s.Signed(6, 1, 1)))
	require.NoError(t, err)
	w.Poll(ctx)
	moved := next().(event.RespondWithMove)
	require.Equal(t, uint64(6), moved.State.State.TurnNum)
	cleared := next().(event.ChallengeCleared)
	require.Equal(t, uint64(6), cleared.NewTurnNumRecord)

	_, err = s.cb.ForceMove(ctx, []channel.SignedState{s.Signed(6, 1, 1), s.Signed(7, 1, 1)})
	require.NoError(t, err)
	w.Poll(ctx)
	require.Equal(t, event.EventTypeChallengeRegistered, next().GetType())
	s.clock.SetTime(s.clock.Now().Add(2 * time.Minute))
	w.Poll(ctx)
	require.Equal(t, event.ChallengeExpired{Channel: id}, next())
	requireNone()

	w.Unwatch(id)
	require.NoError(t, w.Close())
	_, ok := <-w.Events()
	require.False(t, ok)
	require.Error(t, w.Close())
}

func TestDifferences(t *testing.T) {
	s := newSetup(t)
	id := s.Constants.ID()
	at := time.Unix(1_700_000_060, 0)

	tests := []struct {
		name       string
		prev, next client.ChannelInfo
		want       []event.EventType
	}{
		{"nothing", client.ChannelInfo{Holdings: big.NewInt(1)}, client.ChannelInfo{Holdings: big.NewInt(1)}, nil},
		{"funding", client.ChannelInfo{}, client.ChannelInfo{Holdings: big.NewInt(1)}, []event.EventType{event.EventTypeFundingUpdated}},
		{
			"refuted",
			client.ChannelInfo{Holdings: new(big.Int), Challenged: true},
			client.ChannelInfo{Holdings: new(big.Int), Cleared: 1, ClearedBy: client.TxRefute},
			[]event.EventType{event.EventTypeRefuted, event.EventTypeChallengeCleared},
		},
		{
			"challenge moved",
			client.ChannelInfo{Holdings: new(big.Int), Challenged: true, FinalizesAt: at},
			client.ChannelInfo{Holdings: new(big.Int), Challenged: true, FinalizesAt: at.Add(time.Minute)},
			[]event.EventType{event.EventTypeChallengeRegistered},
		},
		{
			"concluded",
			client.ChannelInfo{Holdings: new(big.Int)},
			client.ChannelInfo{Holdings: new(big.Int), Concluded: true},
			[]event.EventType{event.EventTypeConcluded},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []event.EventType
			for _, ev := range chain.Differences(id, tc.prev, tc.next) {
				require.Equal(t, id, ev.GetID())
				got = append(got, ev.GetType())
			}
			require.Equal(t, tc.want, got)
		})
	}
}
