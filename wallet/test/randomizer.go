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
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-nitro-engine/wallet"
)

// NewRandomAccount returns a fresh account or panics.
func NewRandomAccount(rng *rand.Rand) *wallet.Account {
	acc, err := wallet.NewRandomAccount(rng)
	if err != nil {
		panic(err)
	}
	return acc
}

// NewRandomAccounts returns n fresh accounts.
func NewRandomAccounts(rng *rand.Rand, n int) []*wallet.Account {
	accs := make([]*wallet.Account, n)
	for i := range accs {
		accs[i] = NewRandomAccount(rng)
	}
	return accs
}

// NewRandomAddress returns the address of a fresh account.
func NewRandomAddress(rng *rand.Rand) common.Address {
	return NewRandomAccount(rng).Address()
}

// NewRandomWallet returns a wallet holding n fresh accounts.
func NewRandomWallet(rng *rand.Rand, n int) (*wallet.EphemeralWallet, []*wallet.Account) {
	w := wallet.NewEphemeralWallet()
	accs := NewRandomAccounts(rng, n)
	for _, acc := range accs {
		if err := w.AddAccount(acc); err != nil {
			panic(err)
		}
	}
	return w, accs
}
