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

package wire_test

import (
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"
	"pgregory.net/rapid"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wallet"
	wtest "perun.network/perun-nitro-engine/wallet/test"
	"perun.network/perun-nitro-engine/wire"
)

func randomSignedState(rng *rand.Rand) channel.SignedState {
	n := 1 + rng.Intn(3)
	accs := wtest.NewRandomAccounts(rng, n)
	c := ctest.NewConstants(rng, accs...)
	state := ctest.NewRandomState(rng, c, rng.Uint64()%1000)
	var signers []channel.Signer
	for _, acc := range accs {
		if rng.Intn(2) == 0 {
			signers = append(signers, acc)
		}
	}
	return ctest.Sign(state, signers...)
}

func TestSignedStateRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rng := rand.New(rand.NewSource(rapid.Int64().Draw(t, "seed")))
		ss := randomSignedState(rng)

		v, err := wire.MakeSignedState(ss)
		require.NoError(t, err)
		decoded, err := wire.ToSignedState(v)
		require.NoError(t, err)

		require.True(t, ss.State.Equal(decoded.State))
		require.Equal(t, ss.Hash(), decoded.Hash())
		require.Equal(t, ss.Signatures, decoded.Signatures)
	})
}

func TestSignedStateRecoversSigner(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	ss := ctest.SignAll(s.State(3, 1, 2), s.Accounts)

	// The signer field is not transmitted, so a forged one is replaced.
	forged := ss.Clone()
	forged.Signatures[0].Signer = wtest.NewRandomAddress(rng)
	v, err := wire.MakeSignedState(forged)
	require.NoError(t, err)
	decoded, err := wire.ToSignedState(v)
	require.NoError(t, err)
	require.True(t, decoded.SignedByAll())
	require.NoError(t, channel.ValidateSignatures(decoded))

	unsigned := channel.SignedState{State: s.State(0, 1, 2)}
	v, err = wire.MakeSignedState(unsigned)
	require.NoError(t, err)
	decoded, err = wire.ToSignedState(v)
	require.NoError(t, err)
	require.Nil(t, decoded.Signatures)

	bad := ss.Clone()
	bad.Signatures[0].Signature = wallet.Sig(repeat(1, 10))
	_, err = wire.MakeSignedState(bad)
	require.Error(t, err)
}

func TestSignedHash(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 3)
	sh := ctest.SignAll(s.State(5, 1, 2, 3), s.Accounts).SignedHash()

	v, err := wire.MakeSignedHash(sh)
	require.NoError(t, err)
	decoded, err := wire.ToSignedHash(v)
	require.NoError(t, err)
	require.Equal(t, sh.Hash, decoded.Hash)
	require.Equal(t, sh.Signatures, decoded.Signatures)
	require.Equal(t, 3, decoded.Count())
}

func TestMessageRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rng := rand.New(rand.NewSource(rapid.Int64().Draw(t, "seed")))
		msg := wire.Message{
			From: rapid.StringMatching(`[a-z0-9-]{0,16}`).Draw(t, "from"),
			To:   rapid.StringMatching(`[a-z0-9-]{0,16}`).Draw(t, "to"),
		}
		for i := rapid.IntRange(0, 3).Draw(t, "states"); i > 0; i-- {
			msg.States = append(msg.States, randomSignedState(rng))
		}
		for i := rapid.IntRange(0, 2).Draw(t, "objectives"); i > 0; i-- {
			id := ctest.NewRandomDestination(rng)
			data := make([]byte, rng.Intn(32))
			rng.Read(data)
			msg.Objectives = append(msg.Objectives, protocol.SharedObjective{
				ID:   protocol.MakeObjectiveID(protocol.TypeDirectFund, id),
				Type: protocol.TypeDirectFund,
				Data: data,
			})
		}
		for i := rapid.IntRange(0, 2).Draw(t, "requests"); i > 0; i-- {
			msg.Requests = append(msg.Requests, wire.ChannelRequest{Channel: ctest.NewRandomDestination(rng)})
		}

		data, err := msg.MarshalBinary()
		require.NoError(t, err)
		var decoded wire.Message
		require.NoError(t, decoded.UnmarshalBinary(data))

		require.Equal(t, msg.From, decoded.From)
		require.Equal(t, msg.To, decoded.To)
		require.Len(t, decoded.States, len(msg.States))
		for i := range msg.States {
			require.True(t, msg.States[i].State.Equal(decoded.States[i].State))
			require.Equal(t, msg.States[i].Signatures, decoded.States[i].Signatures)
		}
		require.Equal(t, msg.Requests, decoded.Requests)
		require.Equal(t, msg.Empty(), decoded.Empty())

		res, err := decoded.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, res)
	})
}

func TestSplit(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 3)
	ss := s.Signed(0, 1, 2, 3)

	msgs := wire.Split("me", protocol.SendTo(s.Constants, 1, ss))
	require.Len(t, msgs, 2)
	require.Equal(t, s.Constants.Participants[0].ParticipantID, msgs[0].To)
	require.Equal(t, s.Constants.Participants[2].ParticipantID, msgs[1].To)
	for _, m := range msgs {
		require.Equal(t, "me", m.From)
		require.Len(t, m.States, 1)
	}
}

func TestChannelRecord(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	base := s.Ledger(1, 3, 4, 6)
	disputed := base.Window()

	ledgers := map[string]channel.Ledger{
		"plain":     base,
		"direct":    base.WithFunding(channel.DirectFunding{Amount: big.NewInt(10), Finalized: true}),
		"indirect":  base.WithFunding(channel.IndirectFunding{LedgerID: ctest.NewRandomDestination(rng)}),
		"virtual":   base.WithFunding(channel.VirtualFunding{JointChannelID: ctest.NewRandomDestination(rng)}),
		"guarantee": base.WithFunding(channel.GuaranteeFunding{GuarantorChannelID: ctest.NewRandomDestination(rng)}),
		"challenge": base.WithChallenge(channel.ChallengeRecord{
			ExpiresAt:      time.Unix(1700000000, 0),
			DisputedStates: disputed,
		}),
		"closed": base.Close(),
	}
	for name, l := range ledgers {
		t.Run(name, func(t *testing.T) {
			data, err := wire.MarshalLedger(l)
			require.NoError(t, err)
			decoded, err := wire.UnmarshalLedger(data)
			require.NoError(t, err)

			require.Equal(t, l.ID(), decoded.ID())
			require.Equal(t, l.MyIndex(), decoded.MyIndex())
			require.Equal(t, l.Status(), decoded.Status())
			require.Equal(t, l.Closed(), decoded.Closed())
			require.Equal(t, l.Latest().Hash(), decoded.Latest().Hash())
			require.Equal(t, l.Funding().IsSome(), decoded.Funding().IsSome())
			require.Equal(t, l.Challenge().IsSome(), decoded.Challenge().IsSome())
			l.Challenge().WhenSome(func(c channel.ChallengeRecord) {
				got := decoded.Challenge().UnsafeFromSome()
				require.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
				require.Len(t, got.DisputedStates, len(c.DisputedStates))
			})

			res, err := wire.MarshalLedger(decoded)
			require.NoError(t, err)
			require.Equal(t, data, res)
		})
	}
	require.True(t, fn.MapOptionZ(ledgers["direct"].Funding(), func(f channel.Funding) bool {
		return f.Type() == channel.FundingTypeDirect
	}))
}
