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

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wallet"
	wtest "perun.network/perun-nitro-engine/wallet/test"
)

// Setup is a channel between freshly generated accounts.
type Setup struct {
	Accounts  []*wallet.Account
	Constants channel.Constants
}

// NewSetup creates a channel with n participants.
func NewSetup(rng *rand.Rand, n int) *Setup {
	accs := wtest.NewRandomAccounts(rng, n)
	return &Setup{Accounts: accs, Constants: NewConstants(rng, accs...)}
}

// State returns a state at turnNum with the given amounts.
func (s *Setup) State(turnNum uint64, amounts ...int64) channel.State {
	return NewState(s.Constants, turnNum, amounts...)
}

// Signed returns a state at turnNum signed by its mover.
func (s *Setup) Signed(turnNum uint64, amounts ...int64) channel.SignedState {
	return SignByMover(s.State(turnNum, amounts...), s.Accounts)
}

// Ledger builds a ledger for participant myIndex holding the states
// 0..lastTurn, each signed by its mover. Only the last n states are retained.
func (s *Setup) Ledger(myIndex int, lastTurn uint64, amounts ...int64) channel.Ledger {
	l, err := channel.Initialize(s.Signed(0, amounts...), myIndex)
	if err != nil {
		panic(err)
	}
	for t := uint64(1); t <= lastTurn; t++ {
		l, err = l.TryAppend(s.Signed(t, amounts...))
		if err != nil {
			panic(err)
		}
	}
	return l
}
