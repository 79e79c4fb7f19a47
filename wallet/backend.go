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
	"io"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignatureLength is the length of a [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

// Sig is a recoverable secp256k1 signature.
type Sig []byte

// ErrInvalidSignature is returned when a signature does not recover to a
// well-formed address.
var ErrInvalidSignature = errors.New("invalid signature")

type backend struct{}

// Backend is the signature backend of the engine.
var Backend = backend{}

// digest returns the Ethereum signed-message digest of hash.
func digest(hash common.Hash) []byte {
	return accounts.TextHash(hash.Bytes())
}

// DecodeSig decodes a signature of length SignatureLength from the reader.
func (b backend) DecodeSig(reader io.Reader) (Sig, error) {
	sig := make(Sig, SignatureLength)
	if _, err := io.ReadFull(reader, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// RecoverSigner returns the address that produced sig over hash.
func (b backend) RecoverSigner(hash common.Hash, sig Sig) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, errors.WithMessagef(ErrInvalidSignature, "length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, errors.WithMessage(ErrInvalidSignature, "recovery id out of range")
	}
	pub, err := crypto.SigToPub(digest(hash), sig)
	if err != nil {
		return common.Address{}, errors.WithMessage(ErrInvalidSignature, err.Error())
	}
	addr := crypto.PubkeyToAddress(*pub)
	if addr == (common.Address{}) {
		return common.Address{}, errors.WithMessage(ErrInvalidSignature, "zero address")
	}
	return addr, nil
}

// VerifySignature checks that sig over hash was produced by addr.
func (b backend) VerifySignature(hash common.Hash, sig Sig, addr common.Address) (bool, error) {
	signer, err := b.RecoverSigner(hash, sig)
	if err != nil {
		return false, err
	}
	return signer == addr, nil
}
