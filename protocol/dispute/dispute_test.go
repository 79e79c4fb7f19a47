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

package dispute_test

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
	"perun.network/perun-nitro-engine/client"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/protocol/dispute"
)

type crankFunc[O protocol.Objective] func(O, event.Event, channel.Signer) (O, []protocol.Action, error)

type party[O protocol.Objective] struct {
	t      *testing.T
	obj    O
	signer channel.Signer
	crankF crankFunc[O]
}

func challenger(t *testing.T, obj dispute.Challenger, signer channel.Signer) *party[dispute.Challenger] {
	return &party[dispute.Challenger]{t: t, obj: obj, signer: signer, crankF: dispute.CrankChallenger}
}

func responder(t *testing.T, obj dispute.Responder, signer channel.Signer) *party[dispute.Responder] {
	return &party[dispute.Responder]{t: t, obj: obj, signer: signer, crankF: dispute.CrankResponder}
}

// crank applies ev twice and checks that the second application changes
// nothing.
func (p *party[O]) crank(ev event.Event) []protocol.Action {
	p.t.Helper()
	next, actions, err := p.crankF(p.obj, ev, p.signer)
	require.NoError(p.t, err)

	again, repeated, err := p.crankF(next, ev, p.signer)
	require.NoError(p.t, err)
	require.Empty(p.t, repeated)
	requireSameObjective(p.t, next, again)

	p.obj = next
	return actions
}

func requireSameObjective(t *testing.T, a, b protocol.Objective) {
	t.Helper()
	x, err := a.MarshalBinary()
	require.NoError(t, err)
	y, err := b.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, x, y)
}

func findAction[A protocol.Action](t *testing.T, actions []protocol.Action) A {
	t.Helper()
	for _, a := range actions {
		if x, ok := a.(A); ok {
			return x
		}
	}
	var zero A
	require.Failf(t, "action not found", "%T", zero)
	return zero
}

// submit includes the transaction of a on chain and returns the events the
// adjudicator reports for it.
func submit(t *testing.T, chain *client.SimChain, clk clock.Clock, a protocol.SubmitTransaction) (event.TransactionSubmitted, event.TransactionConfirmed) {
	t.Helper()
	txID, err := chain.Submit(context.Background(), a.Tx)
	require.NoError(t, err)
	id := a.Tx.Channel
	return event.TransactionSubmitted{Channel: id, Tx: txID},
		event.TransactionConfirmed{Channel: id, Tx: txID, At: clk.Now()}
}

func TestChooseResponse(t *testing.T) {
	rng := pkgtest.Prng(t)
	two := ctest.NewSetup(rng, 2)
	three := ctest.NewSetup(rng, 3)

	tests := []struct {
		name      string
		ledger    channel.Ledger
		challenge channel.State
		kind      dispute.ResponseKind
		turn      uint64
	}{
		{"existing move", two.Ledger(0, 8, 1, 1), two.State(7, 1, 1), dispute.RespondWithExistingMove, 8},
		{"refute with latest", two.Ledger(0, 9, 1, 1), two.State(7, 1, 1), dispute.Refute, 9},
		{"refute with penultimate", two.Ledger(1, 9, 1, 1), two.State(6, 1, 1), dispute.Refute, 8},
		{"challenge is latest", two.Ledger(0, 7, 1, 1), two.State(7, 1, 1), dispute.RespondWithNewMove, 0},
		{"conflicting challenge", two.Ledger(0, 8, 1, 1), two.State(7, 2, 0), dispute.RespondWithNewMove, 0},
		{"three parties", three.Ledger(0, 6, 1, 1, 1), three.State(3, 1, 1, 1), dispute.Refute, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := dispute.ChooseResponse(tc.ledger, tc.challenge)
			require.Equal(t, tc.kind, r.Kind, r.Kind.String())
			if tc.kind != dispute.RespondWithNewMove {
				require.Equal(t, tc.turn, r.State.State.TurnNum)
			}
		})
	}
}

func TestChallengerInit(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()

	tests := []struct {
		name   string
		ledger fn.Option[channel.Ledger]
		reason protocol.FailureReason
	}{
		{"unknown channel", fn.None[channel.Ledger](), dispute.ReasonChannelDoesNotExist},
		{"not fully open", fn.Some(s.Ledger(0, 0, 1, 1)), dispute.ReasonNotFullyOpen},
		{"our turn", fn.Some(s.Ledger(0, 7, 1, 1)), dispute.ReasonAlreadyHaveLatest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alice := challenger(t, dispute.NewChallenger(id, tc.ledger), s.Accounts[0])
			require.Equal(t, dispute.StatusAcknowledgeFailure, alice.obj.Status())
			require.Equal(t, tc.reason, alice.obj.Failure())
			require.Empty(t, alice.crank(event.ChallengeApproved{Channel: id}))
			require.Equal(t, dispute.StatusAcknowledgeFailure, alice.obj.Status())

			require.Empty(t, alice.crank(event.Acknowledged{Channel: id}))
			require.Equal(t, protocol.StatusFailure, alice.obj.Status())
			require.Equal(t, tc.reason, alice.obj.Failure())
			require.True(t, alice.obj.Terminal())
		})
	}
}

func TestChallengerApproval(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()

	t.Run("denied", func(t *testing.T) {
		alice := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(0, 8, 1, 1))), s.Accounts[0])
		require.Equal(t, dispute.StatusApproveChallenge, alice.obj.Status())
		require.Empty(t, alice.crank(event.ChallengeDenied{Channel: id}))
		require.Equal(t, dispute.ReasonDeclinedByUser, alice.obj.Failure())
		require.Empty(t, alice.crank(event.ExitChallenge{Channel: id}))
		require.Equal(t, protocol.StatusFailure, alice.obj.Status())
	})

	t.Run("latest arrives while approving", func(t *testing.T) {
		alice := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(0, 8, 1, 1))), s.Accounts[0])
		require.Empty(t, alice.crank(event.StatesReceived{Channel: id, States: []channel.SignedState{s.Signed(9, 1, 1)}}))
		require.Empty(t, alice.crank(event.ChallengeApproved{Channel: id}))
		require.Equal(t, dispute.StatusAcknowledgeFailure, alice.obj.Status())
		require.Equal(t, dispute.ReasonLatestWhileApproving, alice.obj.Failure())
	})

	t.Run("transaction failed", func(t *testing.T) {
		chain := client.NewSimChain(clock.NewTestClock(time.Unix(1_700_000_000, 0)))
		chain.FailNext(client.TxForceMove, 1)
		alice := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(0, 8, 1, 1))), s.Accounts[0])
		sub := findAction[protocol.SubmitTransaction](t, alice.crank(event.ChallengeApproved{Channel: id}))
		_, err := chain.Submit(context.Background(), sub.Tx)
		require.ErrorIs(t, err, client.ErrTxReverted)

		require.Empty(t, alice.crank(event.TransactionFailed{Channel: id, Reason: err.Error()}))
		require.Equal(t, protocol.ReasonTransactionFailed, alice.obj.Failure())
		require.Empty(t, alice.crank(event.Acknowledged{Channel: id}))
		require.Equal(t, protocol.StatusFailure, alice.obj.Status())
	})
}

func TestChallengeTimeout(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	chain := client.NewSimChain(clk)

	alice := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(0, 8, 1, 1))), s.Accounts[0])
	actions := alice.crank(event.ChallengeApproved{Channel: id})
	require.Len(t, actions, 1)
	sub := findAction[protocol.SubmitTransaction](t, actions)
	require.Equal(t, alice.obj.ID(), sub.Objective)
	require.Equal(t, client.TxForceMove, sub.Tx.Kind)
	require.Equal(t, s.Accounts[0].Address(), sub.Tx.Challenger)
	require.Len(t, sub.Tx.States, 2)
	require.Equal(t, uint64(8), sub.Tx.Latest().State.TurnNum)
	require.Equal(t, dispute.StatusWaitForTransaction, alice.obj.Status())

	submitted, confirmed := submit(t, chain, clk, sub)
	require.Empty(t, alice.crank(submitted))
	require.Equal(t, submitted.Tx, alice.obj.Tx)
	require.Empty(t, alice.crank(confirmed))
	require.Equal(t, dispute.StatusWaitForResponseOrTimeout, alice.obj.Status())
	require.Equal(t, clk.Now().Add(60*time.Second), alice.obj.ExpiresAt)

	info, err := chain.GetChannelInfo(context.Background(), id)
	require.NoError(t, err)
	require.True(t, info.Challenged)
	require.Empty(t, alice.crank(event.ChallengeRegistered{Channel: id, FinalizesAt: info.FinalizesAt, DisputedStates: info.DisputedStates}))
	require.True(t, info.FinalizesAt.Equal(alice.obj.ExpiresAt))

	clk.SetTime(info.FinalizesAt.Add(time.Second))
	info, err = chain.GetChannelInfo(context.Background(), id)
	require.NoError(t, err)
	require.True(t, info.Expired)

	actions = alice.crank(event.ChallengeExpired{Channel: id})
	require.Equal(t, dispute.StatusAcknowledgeTimeout, alice.obj.Status())
	require.Equal(t, protocol.CloseChannel{Channel: id}, findAction[protocol.CloseChannel](t, actions))

	require.Empty(t, alice.crank(event.Acknowledged{Channel: id}))
	require.Equal(t, dispute.StatusSuccessClosed, alice.obj.Status())
	require.True(t, alice.obj.Terminal())
	require.Empty(t, alice.crank(event.RespondWithMove{Channel: id, State: s.Signed(9, 1, 1)}))
}

func TestRespondWithExistingMove(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	chain := client.NewSimChain(clk)

	// Bob challenges at turn 7. Alice already signed turn 8.
	bob := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(1, 7, 1, 1))), s.Accounts[1])
	sub := findAction[protocol.SubmitTransaction](t, bob.crank(event.ChallengeApproved{Channel: id}))
	_, confirmed := submit(t, chain, clk, sub)
	bob.crank(confirmed)

	info, err := chain.GetChannelInfo(context.Background(), id)
	require.NoError(t, err)
	resp, err := dispute.NewResponder(s.Ledger(0, 8, 1, 1), channel.ChallengeRecord{
		ExpiresAt:      info.FinalizesAt,
		DisputedStates: info.DisputedStates,
	})
	require.NoError(t, err)
	alice := responder(t, resp, s.Accounts[0])
	require.Equal(t, dispute.StatusWaitForApproval, alice.obj.Status())
	require.Equal(t, uint64(7), alice.obj.Challenge.State.TurnNum)

	actions := alice.crank(event.RespondApproved{Channel: id})
	require.Len(t, actions, 1)
	respond := findAction[protocol.SubmitTransaction](t, actions)
	require.Equal(t, client.TxRespond, respond.Tx.Kind)
	// The stored turn 8 is sent as is.
	stored8 := s.Signed(8, 1, 1)
	require.Equal(t, stored8.Hash(), respond.Tx.Latest().Hash())
	require.Equal(t, stored8.Signatures, respond.Tx.Latest().Signatures)
	require.Equal(t, dispute.StatusWaitForTransaction, alice.obj.Status())

	submitted, confirmed := submit(t, chain, clk, respond)
	alice.crank(submitted)
	alice.crank(confirmed)
	require.Equal(t, dispute.StatusWaitForAcknowledgement, alice.obj.Status())
	require.Empty(t, alice.crank(event.Acknowledged{Channel: id}))
	require.Equal(t, protocol.StatusSuccess, alice.obj.Status())

	info, err = chain.GetChannelInfo(context.Background(), id)
	require.NoError(t, err)
	require.False(t, info.Challenged)
	require.Equal(t, client.TxRespond, info.ClearedBy)
	require.Equal(t, uint64(8), info.TurnNumRecord)

	actions = bob.crank(event.RespondWithMove{Channel: id, State: info.ClearingState})
	require.Equal(t, dispute.StatusAcknowledgeResponse, bob.obj.Status())
	stored := findAction[protocol.StoreState](t, actions)
	require.Equal(t, uint64(8), stored.State.State.TurnNum)
	require.Equal(t, uint64(8), bob.obj.Ledger.UnsafeFromSome().Latest().State.TurnNum)
	bob.crank(event.Acknowledged{Channel: id})
	require.Equal(t, dispute.StatusSuccessOpen, bob.obj.Status())
}

func TestRespondWithNewMove(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	chain := client.NewSimChain(clk)

	bob := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(1, 7, 1, 1))), s.Accounts[1])
	sub := findAction[protocol.SubmitTransaction](t, bob.crank(event.ChallengeApproved{Channel: id}))
	submit(t, chain, clk, sub)
	record := channel.ChallengeRecord{ExpiresAt: clk.Now().Add(time.Minute), DisputedStates: sub.Tx.States}

	newResponder := func(t *testing.T) *party[dispute.Responder] {
		t.Helper()
		resp, err := dispute.NewResponder(s.Ledger(0, 7, 1, 1), record)
		require.NoError(t, err)
		alice := responder(t, resp, s.Accounts[0])
		require.Empty(t, alice.crank(event.RespondApproved{Channel: id}))
		require.Equal(t, dispute.StatusWaitForResponse, alice.obj.Status())
		return alice
	}

	t.Run("valid move", func(t *testing.T) {
		alice := newResponder(t)
		move := s.State(8, 0, 2)
		actions := alice.crank(event.ResponseProvided{Channel: id, State: move})
		require.Len(t, actions, 3)

		stored := findAction[protocol.StoreState](t, actions)
		require.Equal(t, move.Hash(), stored.State.Hash())
		require.True(t, stored.State.SignedBy(s.Accounts[0].Address()))
		msg := findAction[protocol.SendMessage](t, actions)
		require.Equal(t, []string{s.Constants.Participants[1].ParticipantID}, msg.To)
		respond := findAction[protocol.SubmitTransaction](t, actions)
		require.Equal(t, client.TxRespond, respond.Tx.Kind)
		require.Equal(t, uint64(8), alice.obj.Ledger.Latest().State.TurnNum)

		_, err := chain.Submit(context.Background(), respond.Tx)
		require.NoError(t, err)
	})

	t.Run("invalid moves", func(t *testing.T) {
		other := ctest.NewSetup(rng, 2)
		for _, tc := range []struct {
			move   channel.State
			reason protocol.FailureReason
		}{
			{s.State(9, 1, 1), protocol.ReasonOutOfOrder},
			{other.State(8, 1, 1), protocol.ReasonChannelMismatch},
		} {
			alice := newResponder(t)
			require.Empty(t, alice.crank(event.ResponseProvided{Channel: id, State: tc.move}))
			require.Equal(t, protocol.StatusFailure, alice.obj.Status())
			require.Equal(t, tc.reason, alice.obj.Failure())
		}
	})
}

func TestRefute(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	chain := client.NewSimChain(clk)

	// Bob registers turn 7 although he already signed turn 9.
	bob := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(1, 7, 1, 1))), s.Accounts[1])
	sub := findAction[protocol.SubmitTransaction](t, bob.crank(event.ChallengeApproved{Channel: id}))
	_, confirmed := submit(t, chain, clk, sub)
	bob.crank(confirmed)

	resp, err := dispute.NewResponder(s.Ledger(0, 9, 1, 1), channel.ChallengeRecord{DisputedStates: sub.Tx.States})
	require.NoError(t, err)
	alice := responder(t, resp, s.Accounts[0])
	refute := findAction[protocol.SubmitTransaction](t, alice.crank(event.RespondApproved{Channel: id}))
	require.Equal(t, client.TxRefute, refute.Tx.Kind)
	require.Equal(t, uint64(9), refute.Tx.Latest().State.TurnNum)
	submit(t, chain, clk, refute)

	info, err := chain.GetChannelInfo(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, client.TxRefute, info.ClearedBy)

	require.Empty(t, bob.crank(event.Refuted{Channel: id}))
	require.Equal(t, dispute.StatusAcknowledgeResponse, bob.obj.Status())
}

func TestResponderTimeout(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()
	record := channel.ChallengeRecord{DisputedStates: []channel.SignedState{s.Signed(6, 1, 1), s.Signed(7, 1, 1)}}

	resp, err := dispute.NewResponder(s.Ledger(0, 7, 1, 1), record)
	require.NoError(t, err)
	alice := responder(t, resp, s.Accounts[0])
	actions := alice.crank(event.ChallengeExpired{Channel: id})
	require.Equal(t, protocol.CloseChannel{Channel: id}, findAction[protocol.CloseChannel](t, actions))
	require.Equal(t, dispute.StatusAcknowledgeTimeout, alice.obj.Status())
	require.Empty(t, alice.crank(event.RespondApproved{Channel: id}))
	require.Empty(t, alice.crank(event.Acknowledged{Channel: id}))
	require.Equal(t, protocol.StatusFailure, alice.obj.Status())
	require.Equal(t, protocol.ReasonTimeOut, alice.obj.Failure())

	t.Run("transaction failed", func(t *testing.T) {
		resp, err := dispute.NewResponder(s.Ledger(0, 8, 1, 1), record)
		require.NoError(t, err)
		alice := responder(t, resp, s.Accounts[0])
		alice.crank(event.RespondApproved{Channel: id})
		require.Empty(t, alice.crank(event.TransactionFailed{Channel: id}))
		require.Equal(t, protocol.ReasonTransactionFailed, alice.obj.Failure())
	})

	t.Run("invalid challenge", func(t *testing.T) {
		_, err := dispute.NewResponder(s.Ledger(0, 7, 1, 1), channel.ChallengeRecord{})
		require.Error(t, err)
		other := ctest.NewSetup(rng, 2)
		_, err = dispute.NewResponder(s.Ledger(0, 7, 1, 1), channel.ChallengeRecord{
			DisputedStates: []channel.SignedState{other.Signed(7, 1, 1)},
		})
		require.ErrorIs(t, err, channel.ErrChannelMismatch)
	})
}

func TestResponderChallengeEnded(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()
	record := channel.ChallengeRecord{DisputedStates: []channel.SignedState{s.Signed(6, 1, 1), s.Signed(7, 1, 1)}}

	for _, ended := range []event.Event{
		event.ChallengeCleared{Channel: id, NewTurnNumRecord: 8},
		event.Concluded{Channel: id},
	} {
		resp, err := dispute.NewResponder(s.Ledger(0, 7, 1, 1), record)
		require.NoError(t, err)
		alice := responder(t, resp, s.Accounts[0])
		require.Empty(t, alice.crank(ended))
		require.Equal(t, protocol.StatusSuccess, alice.obj.Status())
		require.True(t, alice.obj.Terminal())

		resp, err = dispute.NewResponder(s.Ledger(0, 7, 1, 1), record)
		require.NoError(t, err)
		alice = responder(t, resp, s.Accounts[0])
		alice.crank(event.RespondApproved{Channel: id})
		require.Equal(t, dispute.StatusWaitForResponse, alice.obj.Status())
		require.Empty(t, alice.crank(ended))
		require.Equal(t, protocol.StatusSuccess, alice.obj.Status())
	}

	t.Run("own response pending", func(t *testing.T) {
		resp, err := dispute.NewResponder(s.Ledger(0, 8, 1, 1), record)
		require.NoError(t, err)
		alice := responder(t, resp, s.Accounts[0])
		alice.crank(event.RespondApproved{Channel: id})
		require.Equal(t, dispute.StatusWaitForTransaction, alice.obj.Status())
		alice.crank(event.ChallengeCleared{Channel: id, NewTurnNumRecord: 8})
		require.Equal(t, dispute.StatusWaitForTransaction, alice.obj.Status())
		alice.crank(event.TransactionConfirmed{Channel: id})
		require.Equal(t, dispute.StatusWaitForAcknowledgement, alice.obj.Status())
	})

	t.Run("after timeout", func(t *testing.T) {
		resp, err := dispute.NewResponder(s.Ledger(0, 7, 1, 1), record)
		require.NoError(t, err)
		alice := responder(t, resp, s.Accounts[0])
		alice.crank(event.ChallengeExpired{Channel: id})
		alice.crank(event.Concluded{Channel: id})
		require.Equal(t, dispute.StatusAcknowledgeTimeout, alice.obj.Status())
	})
}

func TestForeignEvents(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()

	c := dispute.NewChallenger(id, fn.Some(s.Ledger(0, 8, 1, 1)))
	require.PanicsWithError(t, "RespondApproved delivered to Challenger: unexpected event for protocol", func() {
		_, _, _ = dispute.CrankChallenger(c, event.RespondApproved{Channel: id}, s.Accounts[0])
	})
	r, err := dispute.NewResponder(s.Ledger(0, 8, 1, 1), channel.ChallengeRecord{DisputedStates: []channel.SignedState{s.Signed(7, 1, 1)}})
	require.NoError(t, err)
	require.Panics(t, func() {
		_, _, _ = dispute.CrankResponder(r, event.FundingUpdated{Channel: id}, s.Accounts[0])
	})
}

func TestCodec(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	id := s.Constants.ID()

	alice := challenger(t, dispute.NewChallenger(id, fn.Some(s.Ledger(0, 8, 1, 1))), s.Accounts[0])
	alice.crank(event.ChallengeApproved{Channel: id})
	alice.crank(event.TransactionSubmitted{Channel: id, Tx: "0x01"})
	alice.crank(event.ChallengeRegistered{Channel: id, FinalizesAt: time.Unix(1_700_000_060, 0)})

	resp, err := dispute.NewResponder(s.Ledger(0, 8, 1, 1), channel.ChallengeRecord{
		ExpiresAt:      time.Unix(1_700_000_060, 0),
		DisputedStates: []channel.SignedState{s.Signed(7, 1, 1)},
	})
	require.NoError(t, err)

	objectives := []struct {
		obj    protocol.Objective
		decode func([]byte) (protocol.Objective, error)
	}{
		{alice.obj, dispute.DecodeChallenger},
		{dispute.NewChallenger(id, fn.None[channel.Ledger]()), dispute.DecodeChallenger},
		{resp, dispute.DecodeResponder},
	}
	for _, o := range objectives {
		data, err := o.obj.MarshalBinary()
		require.NoError(t, err)
		decoded, err := o.decode(data)
		require.NoError(t, err)
		require.Equal(t, o.obj.ID(), decoded.ID())
		require.Equal(t, o.obj.Status(), decoded.Status())
		require.Equal(t, o.obj.Failure(), decoded.Failure())
		requireSameObjective(t, o.obj, decoded)
	}

	_, err = dispute.DecodeResponder([]byte{0, 1, 2})
	require.Error(t, err)

	require.Equal(t, protocol.TypeChallenger, dispute.ChallengerHandler().Type)
	require.Nil(t, dispute.ChallengerHandler().Join)
	require.True(t, dispute.ResponderHandler().Accepts.Contains(event.EventTypeResponseProvided))
}
