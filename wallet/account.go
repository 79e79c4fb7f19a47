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

package wallet

import (
	"crypto/ecdsa"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// privateKeyLength is the length of a raw secp256k1 private key.
const privateKeyLength = 32

// Account is used for signing channel states.
type Account struct {
	// privateKey is the secp256k1 private key of the account.
	privateKey *ecdsa.PrivateKey
}

// NewAccount wraps the given private key.
func NewAccount(key *ecdsa.PrivateKey) (*Account, error) {
	if key == nil {
		return nil, errors.New("nil private key")
	}
	return &Account{privateKey: key}, nil
}

// NewAccountFromHex parses a hex encoded private key.
func NewAccountFromHex(hexKey string) (*Account, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.WithMessage(err, "parsing private key")
	}
	return &Account{privateKey: key}, nil
}

// NewRandomAccount creates a new account with a private key drawn from rng.
func NewRandomAccount(rng *rand.Rand) (*Account, error) {
	raw := make([]byte, privateKeyLength)
	for {
		if _, err := rng.Read(raw); err != nil {
			return nil, err
		}
		// ToECDSA rejects zero and out-of-range scalars, draw again.
		key, err := crypto.ToECDSA(raw)
		if err == nil {
			return &Account{privateKey: key}, nil
		}
	}
}

// Address returns the signing address of the account.
func (a Account) Address() common.Address {
	return crypto.PubkeyToAddress(a.privateKey.PublicKey)
}

// SignHash signs the Ethereum signed-message digest of hash. Signing is
// deterministic (RFC 6979).
func (a Account) SignHash(hash common.Hash) (Sig, error) {
	if a.privateKey == nil {
		return nil, errors.New("account has no private key")
	}
	sig, err := crypto.Sign(digest(hash), a.privateKey)
	if err != nil {
		return nil, errors.WithMessage(err, "signing hash")
	}
	return sig, nil
}

// SignData signs keccak256(data).
func (a Account) SignData(data []byte) (Sig, error) {
	return a.SignHash(crypto.Keccak256Hash(data))
}
