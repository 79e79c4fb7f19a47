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

package test

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wallet"
)

// NewRandomDestination returns a random destination.
func NewRandomDestination(rng *rand.Rand) channel.Destination {
	var d channel.Destination
	rng.Read(d[:])
	return d
}

// NewRandomAmount returns a random amount in [0, max).
func NewRandomAmount(rng *rand.Rand, max int64) *big.Int {
	return big.NewInt(rng.Int63n(max))
}

// NewRandomAllocation returns an allocation with n random entries.
func NewRandomAllocation(rng *rand.Rand, n int) channel.Allocation {
	alloc := make(channel.Allocation, n)
	for i := range alloc {
		alloc[i] = channel.AllocationItem{
			Destination: NewRandomDestination(rng),
			Amount:      NewRandomAmount(rng, 1_000_000),
		}
	}
	return alloc
}

// NewRandomGuarantee returns a guarantee with n random destinations.
func NewRandomGuarantee(rng *rand.Rand, n int) channel.Guarantee {
	g := channel.Guarantee{Target: NewRandomDestination(rng)}
	for i := 0; i < n; i++ {
		g.Destinations = append(g.Destinations, NewRandomDestination(rng))
	}
	return g
}

// NewConstants builds the constants of a channel between accs.
func NewConstants(rng *rand.Rand, accs ...*wallet.Account) channel.Constants {
	parts := make([]channel.Participant, len(accs))
	for i, acc := range accs {
		parts[i] = channel.Participant{
			SigningAddress: acc.Address(),
			Destination:    channel.AddressToDestination(acc.Address()),
			ParticipantID:  fmt.Sprintf("peer-%s", acc.Address().Hex()[2:10]),
		}
	}
	return channel.Constants{
		ChainID:           big.NewInt(1337),
		ChannelNonce:      rng.Uint64(),
		Participants:      parts,
		AppDefinition:     common.Address{},
		ChallengeDuration: 60,
	}
}

// NewState returns a state of c at turnNum paying amounts[i] to participant i.
func NewState(c channel.Constants, turnNum uint64, amounts ...int64) channel.State {
	alloc := make(channel.Allocation, len(amounts))
	for i, a := range amounts {
		alloc[i] = channel.AllocationItem{
			Destination: c.Participants[i].Destination,
			Amount:      big.NewInt(a),
		}
	}
	return channel.State{
		Constants: c.Clone(),
		TurnNum:   turnNum,
		Outcome:   alloc,
	}
}

// NewRandomState returns a state of c at turnNum with random app data and a
// random outcome.
func NewRandomState(rng *rand.Rand, c channel.Constants, turnNum uint64) channel.State {
	var outcome channel.Outcome
	if rng.Intn(4) == 0 {
		outcome = NewRandomGuarantee(rng, 1+rng.Intn(3))
	} else {
		outcome = NewRandomAllocation(rng, 1+rng.Intn(4))
	}
	appData := make([]byte, rng.Intn(64))
	rng.Read(appData)
	return channel.State{
		Constants: c.Clone(),
		TurnNum:   turnNum,
		IsFinal:   rng.Intn(8) == 0,
		Outcome:   outcome,
		AppData:   appData,
	}
}

// Sign signs state with signers or panics.
func Sign(state channel.State, signers ...channel.Signer) channel.SignedState {
	ss, err := channel.NewSignedState(state, signers...)
	if err != nil {
		panic(err)
	}
	return ss
}

// SignByMover signs state with the account whose turn it is.
func SignByMover(state channel.State, accs []*wallet.Account) channel.SignedState {
	return Sign(state, accs[state.TurnNum%uint64(len(accs))])
}

// SignAll signs state with every account.
func SignAll(state channel.State, accs []*wallet.Account) channel.SignedState {
	signers := make([]channel.Signer, len(accs))
	for i, acc := range accs {
		signers[i] = acc
	}
	return Sign(state, signers...)
}
