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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
)

func TestHashing(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	state := ctest.NewRandomState(rng, s.Constants, 4)

	require.Equal(t, state.Hash(), state.Clone().Hash())
	require.NotEqual(t, state.Hash(), state.WithTurnNum(5).Hash())
	require.NotEqual(t, state.Hash(), state.WithOutcome(ctest.NewRandomAllocation(rng, 2)).Hash())

	other := s.Constants.Clone()
	other.ChannelNonce++
	require.NotEqual(t, s.Constants.ID(), other.ID())
	require.Equal(t, s.Constants.ID(), state.ChannelID())
}

func TestSignAndRecover(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 2)
	state := s.State(1, 5, 5)

	entry, err := channel.SignState(state, s.Accounts[1])
	require.NoError(t, err)
	signer, err := channel.RecoverSigner(state, entry.Signature)
	require.NoError(t, err)
	require.Equal(t, s.Accounts[1].Address(), signer)
	require.True(t, channel.IsAuthorizedSigner(state, signer))
	require.False(t, channel.IsAuthorizedSigner(state, s.Accounts[0].Address()))

	again, err := channel.SignState(state, s.Accounts[1])
	require.NoError(t, err)
	require.Equal(t, entry, again)
}

func TestMergeSignatures(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := ctest.NewSetup(rng, 3)
	state := s.State(0, 1, 1, 1)

	entries := make([]channel.SignatureEntry, 3)
	for i, acc := range s.Accounts {
		e, err := channel.SignState(state, acc)
		require.NoError(t, err)
		entries[i] = e
	}

	merged := channel.MergeSignatures(entries[:2], entries[1:])
	require.Len(t, merged, 3)
	for i := 1; i < len(merged); i++ {
		require.Negative(t, bytes.Compare(merged[i-1].Signer.Bytes(), merged[i].Signer.Bytes()))
	}
	require.Equal(t, merged, channel.MergeSignatures(merged, entries))
	require.Equal(t, merged, channel.MergeSignatures(entries[2:], entries[:2]))

	ss := channel.SignedState{State: state, Signatures: merged}
	require.True(t, ss.SignedByAll())
	require.NoError(t, channel.ValidateSignatures(ss))

	outsider := ctest.NewSetup(rng, 1).Accounts[0]
	bad, err := ss.AddSignature(outsider)
	require.NoError(t, err)
	require.ErrorIs(t, channel.ValidateSignatures(bad), channel.ErrUnauthorizedSigner)

	spoofed := ss.Clone()
	spoofed.Signatures[0].Signer = spoofed.Signatures[1].Signer
	require.ErrorIs(t, channel.ValidateSignatures(spoofed), channel.ErrUnauthorizedSigner)
}
