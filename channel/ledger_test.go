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

package channel_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"
	"pgregory.net/rapid"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
)

func TestInitialize(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)

	_, err := channel.Initialize(s.Signed(1, 5, 5), 0)
	require.ErrorIs(t, err, channel.ErrInvalidFirstState)

	// turn 0 belongs to participant 0
	_, err = channel.Initialize(ctest.Sign(s.State(0, 5, 5), s.Accounts[1]), 1)
	require.ErrorIs(t, err, channel.ErrUnauthorizedSigner)

	l, err := channel.Initialize(s.Signed(0, 5, 5), 1)
	require.NoError(t, err)
	require.Equal(t, channel.LedgerInitialized, l.Status())
	require.False(t, l.IsFullyOpen())
	require.True(t, l.Penultimate().IsNone())
	require.True(t, l.OurTurn())
	require.Equal(t, s.Constants.ID(), l.ID())
}

func TestTryAppend(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	l := s.Ledger(0, 0, 5, 5)

	t.Run("unauthorized signer", func(t *testing.T) {
		// The signer is checked before the turn number.
		_, err := l.TryAppend(ctest.Sign(s.State(3, 5, 5), s.Accounts[0]))
		require.ErrorIs(t, err, channel.ErrUnauthorizedSigner)
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := l.TryAppend(s.Signed(3, 5, 5))
		require.ErrorIs(t, err, channel.ErrOutOfOrder)
		_, err = l.TryAppend(s.Signed(0, 5, 5))
		require.ErrorIs(t, err, channel.ErrOutOfOrder)
	})

	t.Run("channel mismatch", func(t *testing.T) {
		other := s.Constants.Clone()
		other.ChannelNonce++
		state := ctest.NewState(other, 1, 5, 5)
		_, err := l.TryAppend(ctest.SignByMover(state, s.Accounts))
		require.ErrorIs(t, err, channel.ErrChannelMismatch)
	})

	t.Run("window slides", func(t *testing.T) {
		next, err := l.TryAppend(s.Signed(1, 4, 6))
		require.NoError(t, err)
		require.True(t, next.IsFullyOpen())
		require.Equal(t, channel.LedgerFullyOpen, next.Status())
		require.False(t, l.IsFullyOpen(), "receiver must not change")

		next, err = next.TryAppend(s.Signed(2, 3, 7))
		require.NoError(t, err)
		window := next.Window()
		require.Len(t, window, 2)
		require.EqualValues(t, 1, window[0].State.TurnNum)
		require.EqualValues(t, 2, next.Latest().State.TurnNum)
		require.EqualValues(t, 1, next.Penultimate().UnsafeFromSome().State.TurnNum)
	})

	t.Run("closed", func(t *testing.T) {
		_, err := l.Close().TryAppend(s.Signed(1, 5, 5))
		require.ErrorIs(t, err, channel.ErrChannelClosed)
		require.Equal(t, channel.LedgerClosed, l.Close().Status())
	})
}

func TestCheckpointAndAddSignatures(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	l := s.Ledger(1, 0, 5, 5)

	_, err := l.Checkpoint(s.Signed(3, 5, 5))
	require.ErrorIs(t, err, channel.ErrUnauthorizedSigner)

	postFS := ctest.SignAll(s.State(3, 5, 5), s.Accounts)
	next, err := l.Checkpoint(postFS)
	require.NoError(t, err)
	require.EqualValues(t, 3, next.Latest().State.TurnNum)
	require.Len(t, next.Window(), 1)

	_, err = next.Checkpoint(postFS)
	require.ErrorIs(t, err, channel.ErrOutOfOrder)

	preFS := ctest.Sign(s.State(0, 5, 5), s.Accounts[1])
	merged, err := l.AddSignatures(preFS)
	require.NoError(t, err)
	require.True(t, merged.Latest().SignedByAll())

	_, err = l.AddSignatures(postFS)
	require.ErrorIs(t, err, channel.ErrUnknownState)
}

func TestOurTurn(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 3)
	for turn := uint64(0); turn < 6; turn++ {
		for me := 0; me < 3; me++ {
			l := s.Ledger(me, turn, 1, 1, 1)
			require.Equal(t, int((turn+1)%3) == me, l.OurTurn())
		}
	}
}

// TestTurnMonotonicity checks that only the next turn is ever accepted and
// that the window stays contiguous.
func TestTurnMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rng := rand.New(rand.NewSource(rapid.Int64().Draw(rt, "seed")))
		n := rapid.IntRange(2, 4).Draw(rt, "participants")
		s := ctest.NewSetup(rng, n)
		l := s.Ledger(0, 0, make([]int64, n)...)

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			last := l.Latest().State.TurnNum
			turn := uint64(rapid.IntRange(0, int(last)+2).Draw(rt, "turn"))
			next, err := l.TryAppend(s.Signed(turn, make([]int64, n)...))
			if turn == last+1 {
				require.NoError(rt, err)
				l = next
			} else {
				require.ErrorIs(rt, err, channel.ErrOutOfOrder)
			}
			window := l.Window()
			require.LessOrEqual(rt, len(window), n)
			for j := 1; j < len(window); j++ {
				require.Equal(rt, window[j-1].State.TurnNum+1, window[j].State.TurnNum)
			}
		}
	})
}

// TestSignerAuthorization checks that a turn is only accepted when signed by
// the participant at turnNum mod n.
func TestSignerAuthorization(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rng := rand.New(rand.NewSource(rapid.Int64().Draw(rt, "seed")))
		n := rapid.IntRange(2, 4).Draw(rt, "participants")
		s := ctest.NewSetup(rng, n)
		last := uint64(rapid.IntRange(0, 8).Draw(rt, "last"))
		l := s.Ledger(0, last, make([]int64, n)...)

		signer := rapid.IntRange(0, n-1).Draw(rt, "signer")
		state := s.State(last+1, make([]int64, n)...)
		_, err := l.TryAppend(ctest.Sign(state, s.Accounts[signer]))
		if uint64(signer) == (last+1)%uint64(n) {
			require.NoError(rt, err)
		} else {
			require.ErrorIs(rt, err, channel.ErrUnauthorizedSigner)
		}
		require.Equal(rt, uint64(signer) == (last+1)%uint64(n),
			channel.IsAuthorizedSigner(state, s.Accounts[signer].Address()))
	})
}
