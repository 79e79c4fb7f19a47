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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
	"perun.network/perun-nitro-engine/wire"
)

func TestOutcome(t *testing.T) {
	x := []byte{0, 0, 0, 16, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 15, 0, 0, 0, 10, 97, 108, 108, 111, 99, 97, 116, 105, 111, 110, 0, 0, 0, 0, 0, 16, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 17, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 15, 0, 0, 0, 6, 97, 109, 111, 117, 110, 116, 0, 0, 0, 0, 0, 11, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 15, 0, 0, 0, 11, 100, 101, 115, 116, 105, 110, 97, 116, 105, 111, 110, 0, 0, 0, 0, 13, 0, 0, 0, 32, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 170, 0, 0, 0, 17, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 15, 0, 0, 0, 6, 97, 109, 111, 117, 110, 116, 0, 0, 0, 0, 0, 11, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0, 15, 0, 0, 0, 11, 100, 101, 115, 116, 105, 110, 97, 116, 105, 111, 110, 0, 0, 0, 0, 13, 0, 0, 0, 32, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187, 187}
	v, err := wire.DecodeScVal(x)
	require.NoError(t, err)
	o, err := wire.ToOutcome(v)
	require.NoError(t, err)

	alloc, ok := channel.AsAllocation(o)
	require.True(t, ok)
	expected := channel.Allocation{
		{Destination: common.BytesToHash(repeat(0xaa, 32)), Amount: big.NewInt(5)},
		{Destination: common.BytesToHash(repeat(0xbb, 32)), Amount: big.NewInt(7)},
	}
	require.True(t, expected.Equal(alloc))

	v, err = wire.MakeOutcome(alloc)
	require.NoError(t, err)
	res, err := wire.EncodeScVal(v)
	require.NoError(t, err)
	require.Equal(t, x, res)
}

func TestOutcomeVariants(t *testing.T) {
	rng := pkgtest.Prng(t)

	outcomes := []channel.Outcome{
		nil,
		channel.Allocation{},
		ctest.NewRandomAllocation(rng, 3),
		ctest.NewRandomGuarantee(rng, 3),
		channel.Guarantee{Target: ctest.NewRandomDestination(rng)},
	}
	for _, o := range outcomes {
		v, err := wire.MakeOutcome(o)
		require.NoError(t, err)
		decoded, err := wire.ToOutcome(v)
		require.NoError(t, err)
		if o == nil {
			require.Nil(t, decoded)
			continue
		}
		require.Equal(t, o.Type(), decoded.Type())
		h1, err := channel.HashOutcome(o)
		require.NoError(t, err)
		h2, err := channel.HashOutcome(decoded)
		require.NoError(t, err)
		require.Equal(t, h1, h2)
	}
}

func TestAmountBounds(t *testing.T) {
	_, err := wire.MakeAmount(big.NewInt(-1))
	require.Error(t, err)

	_, err = wire.MakeAmount(new(big.Int).Add(wire.MaxAmount, big.NewInt(1)))
	require.Error(t, err)

	v, err := wire.MakeAmount(wire.MaxAmount)
	require.NoError(t, err)
	a, err := wire.ToAmount(v)
	require.NoError(t, err)
	require.Zero(t, a.Cmp(wire.MaxAmount))

	v, err = wire.MakeAmount(nil)
	require.NoError(t, err)
	a, err = wire.ToAmount(v)
	require.NoError(t, err)
	require.Zero(t, a.Sign())
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
