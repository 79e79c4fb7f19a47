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

package wallet_test

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/wallet"
	wtest "perun.network/perun-nitro-engine/wallet/test"
)

// TestEphemeralWallet tests the ephemeral wallet implementation.
func TestEphemeralWallet(t *testing.T) {
	rng := pkgtest.Prng(t)
	w := wallet.NewEphemeralWallet()

	acc, err := w.AddNewAccount(rng)
	require.NoError(t, err)

	unlockedAccount, err := w.Unlock(acc.Address())
	require.NoError(t, err)
	require.Equal(t, acc.Address(), unlockedAccount.Address())

	require.ErrorIs(t, w.AddAccount(acc), wallet.ErrAccountExists)

	_, err = w.Unlock(wtest.NewRandomAddress(rng))
	require.ErrorIs(t, err, wallet.ErrAccountNotFound)

	msg := []byte("hello world")
	sig, err := unlockedAccount.SignData(msg)
	require.NoError(t, err)

	valid, err := wallet.Backend.VerifySignature(crypto.Keccak256Hash(msg), sig, acc.Address())
	require.NoError(t, err)
	require.True(t, valid)
}

func TestSignHashDeterministic(t *testing.T) {
	rng := pkgtest.Prng(t)
	acc := wtest.NewRandomAccount(rng)
	h := common.BytesToHash([]byte("pls sign me"))

	sig1, err := acc.SignHash(h)
	require.NoError(t, err)
	sig2, err := acc.SignHash(h)
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)
	require.Len(t, sig1, wallet.SignatureLength)

	decoded, err := wallet.Backend.DecodeSig(bytes.NewReader(sig1))
	require.NoError(t, err)
	require.Equal(t, sig1, decoded)
}

func TestRecoverSigner(t *testing.T) {
	rng := pkgtest.Prng(t)
	acc := wtest.NewRandomAccount(rng)
	other := wtest.NewRandomAccount(rng)
	h := common.BytesToHash([]byte("state"))

	sig, err := acc.SignHash(h)
	require.NoError(t, err)

	signer, err := wallet.Backend.RecoverSigner(h, sig)
	require.NoError(t, err)
	require.Equal(t, acc.Address(), signer)

	valid, err := wallet.Backend.VerifySignature(h, sig, other.Address())
	require.NoError(t, err)
	require.False(t, valid)

	_, err = wallet.Backend.RecoverSigner(h, sig[:10])
	require.ErrorIs(t, err, wallet.ErrInvalidSignature)

	bad := append(wallet.Sig{}, sig...)
	bad[crypto.RecoveryIDOffset] = 7
	_, err = wallet.Backend.RecoverSigner(h, bad)
	require.ErrorIs(t, err, wallet.ErrInvalidSignature)
}

func TestSortAddresses(t *testing.T) {
	rng := pkgtest.Prng(t)
	addrs := make([]common.Address, 8)
	for i := range addrs {
		addrs[i] = wtest.NewRandomAddress(rng)
	}
	wallet.SortAddresses(addrs)
	for i := 1; i < len(addrs); i++ {
		require.Equal(t, -1, wallet.Cmp(addrs[i-1], addrs[i]))
	}

	raw := addrs[0].Bytes()
	decoded, err := wallet.AddressFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, addrs[0], decoded)
	_, err = wallet.AddressFromBytes(raw[1:])
	require.Error(t, err)
}
