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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	ctest "perun.network/perun-nitro-engine/channel/test"
	wtest "perun.network/perun-nitro-engine/wallet/test"
	"perun.network/perun-nitro-engine/wire"
)

func TestParticipant(t *testing.T) {
	x := []byte{0, 0, 0, 17, 0, 0, 0, 1, 0, 0, 0, 3, 0, 0, 0, 15, 0, 0, 0, 4, 97, 100, 100, 114, 0, 0, 0, 13, 0, 0, 0, 20, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 0, 0, 0, 15, 0, 0, 0, 4, 100, 101, 115, 116, 0, 0, 0, 13, 0, 0, 0, 32, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 0, 0, 0, 15, 0, 0, 0, 2, 105, 100, 0, 0, 0, 0, 0, 14, 0, 0, 0, 5, 97, 108, 105, 99, 101, 0, 0, 0}
	v, err := wire.DecodeScVal(x)
	require.NoError(t, err)
	p, err := wire.ParticipantFromScVal(v)
	require.NoError(t, err)

	part := wire.ToParticipant(p)
	addr := common.BytesToAddress([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	require.Equal(t, addr, part.SigningAddress)
	require.Equal(t, common.BytesToHash(addr.Bytes()), part.Destination)
	require.Equal(t, "alice", part.ParticipantID)

	res, err := wire.Marshal(wire.MakeParticipant(part))
	require.NoError(t, err)
	require.Equal(t, x, res)
}

func TestParticipantLength(t *testing.T) {
	p := wire.Participant{SigningAddress: make([]byte, 19), Destination: make([]byte, 32)}
	_, err := p.ToScVal()
	require.Error(t, err)

	p = wire.Participant{SigningAddress: make([]byte, 20), Destination: make([]byte, 31)}
	_, err = p.ToScVal()
	require.Error(t, err)
}

func TestParamsConversion(t *testing.T) {
	rng := pkgtest.Prng(t)

	for n := 1; n <= 4; n++ {
		accs := wtest.NewRandomAccounts(rng, n)
		first := ctest.NewConstants(rng, accs...)

		params, err := wire.MakeParams(first)
		require.NoError(t, err)
		data, err := params.MarshalBinary()
		require.NoError(t, err)

		var decoded wire.Params
		require.NoError(t, decoded.UnmarshalBinary(data))
		last := wire.ToConstants(decoded)

		require.True(t, first.Equal(last))
		require.Equal(t, first.ID(), last.ID())

		again, err := wire.MakeParams(last)
		require.NoError(t, err)
		res, err := again.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, res)
	}
}

func TestParamsInvalid(t *testing.T) {
	var p wire.Params
	require.Error(t, p.UnmarshalBinary([]byte{0, 0, 0, 0, 0, 0, 0, 1}))

	v, err := wire.MakeOutcome(nil)
	require.NoError(t, err)
	_, err = wire.ParamsFromScVal(v)
	require.ErrorIs(t, err, wire.ErrUnexpectedType)
}
