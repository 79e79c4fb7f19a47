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

package wire

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wallet"
	"perun.network/perun-nitro-engine/wire/scval"
)

// Signatures travel without their signer. The signer is recovered from the
// signed hash when decoding.
const (
	SymbolSignedState xdr.ScSymbol = "state"
	SymbolSignedHash  xdr.ScSymbol = "hash"
	SymbolSignedSigs  xdr.ScSymbol = "sigs"
)

const sigLength = 65

func makeSigs(entries []channel.SignatureEntry) (xdr.ScVal, error) {
	sigs := make(xdr.ScVec, len(entries))
	for i, e := range entries {
		if len(e.Signature) != sigLength {
			return xdr.ScVal{}, errors.Errorf("signature %d has length %d", i, len(e.Signature))
		}
		sigs[i] = scval.MustWrapScBytes(append(xdr.ScBytes{}, e.Signature...))
	}
	return scval.WrapVec(sigs)
}

func toSigs(hash common.Hash, vec xdr.ScVec) ([]channel.SignatureEntry, error) {
	entries := make([]channel.SignatureEntry, 0, len(vec))
	for i, v := range vec {
		b, ok := v.GetBytes()
		if !ok {
			return nil, errors.WithMessagef(ErrUnexpectedType, "signature %d: expected bytes", i)
		}
		sig := wallet.Sig(append([]byte{}, b...))
		signer, err := wallet.Backend.RecoverSigner(hash, sig)
		if err != nil {
			return nil, errors.WithMessagef(err, "signature %d", i)
		}
		entries = append(entries, channel.SignatureEntry{Signer: signer, Signature: sig})
	}
	return channel.MergeSignatures(nil, entries), nil
}

// MakeSignedState encodes a state together with its signatures.
func MakeSignedState(ss channel.SignedState) (xdr.ScVal, error) {
	state, err := MakeStateScVal(ss.State)
	if err != nil {
		return xdr.ScVal{}, err
	}
	sigs, err := makeSigs(ss.Signatures)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolSignedState, SymbolSignedSigs},
		[]xdr.ScVal{state, sigs},
	)
}

// ToSignedState decodes a value written by MakeSignedState.
func ToSignedState(v xdr.ScVal) (channel.SignedState, error) {
	m, err := GetSymbolScMap(v, 2) //nolint:gomnd
	if err != nil {
		return channel.SignedState{}, errors.WithMessage(err, "decoding signed state")
	}
	stateVal, err := GetScMapValueFromSymbol(SymbolSignedState, m)
	if err != nil {
		return channel.SignedState{}, err
	}
	state, err := ToStateFromScVal(stateVal)
	if err != nil {
		return channel.SignedState{}, err
	}
	vec, err := GetVecFromSymbol(SymbolSignedSigs, m)
	if err != nil {
		return channel.SignedState{}, err
	}
	sigs, err := toSigs(state.Hash(), vec)
	if err != nil {
		return channel.SignedState{}, err
	}
	return channel.SignedState{State: state, Signatures: sigs}, nil
}

// MakeSignedStates encodes a list of signed states.
func MakeSignedStates(states []channel.SignedState) (xdr.ScVal, error) {
	vec := make(xdr.ScVec, len(states))
	for i, ss := range states {
		v, err := MakeSignedState(ss)
		if err != nil {
			return xdr.ScVal{}, errors.WithMessagef(err, "state %d", i)
		}
		vec[i] = v
	}
	return scval.WrapVec(vec)
}

// ToSignedStates decodes a list written by MakeSignedStates. An empty list
// decodes to nil.
func ToSignedStates(vec xdr.ScVec) ([]channel.SignedState, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	states := make([]channel.SignedState, len(vec))
	for i, v := range vec {
		ss, err := ToSignedState(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "state %d", i)
		}
		states[i] = ss
	}
	return states, nil
}

// MakeSignedHash encodes a hash together with its signatures.
func MakeSignedHash(sh channel.SignedHash) (xdr.ScVal, error) {
	sigs, err := makeSigs(sh.Signatures)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolSignedHash, SymbolSignedSigs},
		[]xdr.ScVal{MakeHash(sh.Hash), sigs},
	)
}

// ToSignedHash decodes a value written by MakeSignedHash.
func ToSignedHash(v xdr.ScVal) (channel.SignedHash, error) {
	m, err := GetSymbolScMap(v, 2) //nolint:gomnd
	if err != nil {
		return channel.SignedHash{}, errors.WithMessage(err, "decoding signed hash")
	}
	hash, err := GetHashFromSymbol(SymbolSignedHash, m)
	if err != nil {
		return channel.SignedHash{}, err
	}
	vec, err := GetVecFromSymbol(SymbolSignedSigs, m)
	if err != nil {
		return channel.SignedHash{}, err
	}
	sigs, err := toSigs(hash, vec)
	if err != nil {
		return channel.SignedHash{}, err
	}
	return channel.SignedHash{Hash: hash, Signatures: sigs}, nil
}
