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

package channel

import (
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/wallet"
)

// Signer signs state hashes.
type Signer interface {
	Address() common.Address
	SignHash(hash common.Hash) (wallet.Sig, error)
}

func hashBytes(b []byte) common.Hash {
	return crypto.Keccak256Hash(b)
}

// CalcID calculates the channel ID from its constants.
func CalcID(c Constants) ID {
	bytes, err := EncodeChannelID(c)
	if err != nil {
		log.Panicf("encoding channel id: %v", err)
	}
	return hashBytes(bytes)
}

// HashOutcome returns the hash of an encoded outcome.
func HashOutcome(o Outcome) (common.Hash, error) {
	bytes, err := EncodeOutcome(o)
	if err != nil {
		return common.Hash{}, err
	}
	return hashBytes(bytes), nil
}

// HashState returns the hash participants sign. It panics on states that
// cannot be encoded, which only happens for states without an outcome.
func HashState(s State) common.Hash {
	bytes, err := EncodeState(s)
	if err != nil {
		log.Panicf("encoding state: %v", err)
	}
	return hashBytes(bytes)
}

// HashChallenge returns the hash a challenger signs to dispute the state
// with hash stateHash.
func HashChallenge(stateHash common.Hash) common.Hash {
	bytes, err := EncodeChallenge(stateHash)
	if err != nil {
		log.Panicf("encoding challenge: %v", err)
	}
	return hashBytes(bytes)
}

// SignState signs the hash of state.
func SignState(state State, signer Signer) (SignatureEntry, error) {
	sig, err := signer.SignHash(state.Hash())
	if err != nil {
		return SignatureEntry{}, errors.WithMessage(err, "signing state")
	}
	return SignatureEntry{Signer: signer.Address(), Signature: sig}, nil
}

// RecoverSigner recovers the address that signed state.
func RecoverSigner(state State, sig wallet.Sig) (common.Address, error) {
	return wallet.Backend.RecoverSigner(state.Hash(), sig)
}

// IsAuthorizedSigner reports whether addr is the participant whose turn it is
// at state.TurnNum.
func IsAuthorizedSigner(state State, addr common.Address) bool {
	if len(state.Participants) == 0 {
		return false
	}
	return state.Mover(state.TurnNum).SigningAddress == addr
}

// ValidateSignatures checks that every signature of ss recovers to its
// stated signer and that every signer is a participant.
func ValidateSignatures(ss SignedState) error {
	hash := ss.State.Hash()
	for _, entry := range ss.Signatures {
		signer, err := wallet.Backend.RecoverSigner(hash, entry.Signature)
		if err != nil {
			return errors.WithMessage(ErrUnauthorizedSigner, err.Error())
		}
		if signer != entry.Signer {
			return errors.WithMessagef(ErrUnauthorizedSigner, "signature by %s claims %s", signer.Hex(), entry.Signer.Hex())
		}
		if ss.State.IndexOf(signer) < 0 {
			return errors.WithMessagef(ErrUnauthorizedSigner, "%s is not a participant", signer.Hex())
		}
	}
	return nil
}
