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
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/wallet"
)

// SignatureEntry is a signature together with the address it recovers to.
type SignatureEntry struct {
	Signer    common.Address
	Signature wallet.Sig
}

// SignedState is a state plus the signatures collected on it.
type SignedState struct {
	State      State
	Signatures []SignatureEntry
}

// SignedHash tracks the signatures collected on a state known only by hash.
type SignedHash struct {
	Hash       common.Hash
	Signatures []SignatureEntry
}

// MergeSignatures returns the union of existing and incoming, de-duplicated
// by signer and sorted by signer address. On duplicates the existing entry
// wins.
func MergeSignatures(existing, incoming []SignatureEntry) []SignatureEntry {
	seen := make(map[common.Address]struct{}, len(existing)+len(incoming))
	merged := make([]SignatureEntry, 0, len(existing)+len(incoming))
	for _, list := range [][]SignatureEntry{existing, incoming} {
		for _, e := range list {
			if _, ok := seen[e.Signer]; ok {
				continue
			}
			seen[e.Signer] = struct{}{}
			merged = append(merged, SignatureEntry{
				Signer:    e.Signer,
				Signature: append(wallet.Sig{}, e.Signature...),
			})
		}
	}
	if len(merged) == 0 {
		return nil
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].Signer.Bytes(), merged[j].Signer.Bytes()) < 0
	})
	return merged
}

func signedBy(sigs []SignatureEntry, addr common.Address) bool {
	for _, e := range sigs {
		if e.Signer == addr {
			return true
		}
	}
	return false
}

func cloneSignatures(sigs []SignatureEntry) []SignatureEntry {
	if sigs == nil {
		return nil
	}
	clone := make([]SignatureEntry, len(sigs))
	for i, e := range sigs {
		clone[i] = SignatureEntry{Signer: e.Signer, Signature: append(wallet.Sig{}, e.Signature...)}
	}
	return clone
}

// NewSignedState signs state with each signer.
func NewSignedState(state State, signers ...Signer) (SignedState, error) {
	ss := SignedState{State: state.Clone()}
	for _, s := range signers {
		entry, err := SignState(state, s)
		if err != nil {
			return SignedState{}, err
		}
		ss.Signatures = MergeSignatures(ss.Signatures, []SignatureEntry{entry})
	}
	return ss, nil
}

// Hash returns the hash of the signed state.
func (ss SignedState) Hash() common.Hash {
	return ss.State.Hash()
}

// ChannelID returns the channel of the signed state.
func (ss SignedState) ChannelID() ID {
	return ss.State.ChannelID()
}

// SignedBy reports whether addr signed ss.
func (ss SignedState) SignedBy(addr common.Address) bool {
	return signedBy(ss.Signatures, addr)
}

// SignedByAll reports whether every participant signed ss.
func (ss SignedState) SignedByAll() bool {
	for _, p := range ss.State.Participants {
		if !ss.SignedBy(p.SigningAddress) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of ss.
func (ss SignedState) Clone() SignedState {
	return SignedState{State: ss.State.Clone(), Signatures: cloneSignatures(ss.Signatures)}
}

// Merge adds the signatures of other, which must sign the same state.
func (ss SignedState) Merge(other SignedState) (SignedState, error) {
	if ss.Hash() != other.Hash() {
		return SignedState{}, errors.New("cannot merge signatures of different states")
	}
	return SignedState{
		State:      ss.State.Clone(),
		Signatures: MergeSignatures(ss.Signatures, other.Signatures),
	}, nil
}

// AddSignature signs ss with signer.
func (ss SignedState) AddSignature(signer Signer) (SignedState, error) {
	entry, err := SignState(ss.State, signer)
	if err != nil {
		return SignedState{}, err
	}
	return SignedState{
		State:      ss.State.Clone(),
		Signatures: MergeSignatures(ss.Signatures, []SignatureEntry{entry}),
	}, nil
}

// SignedHash returns the hash and signatures of ss.
func (ss SignedState) SignedHash() SignedHash {
	return SignedHash{Hash: ss.Hash(), Signatures: cloneSignatures(ss.Signatures)}
}

// SignedBy reports whether addr signed sh.
func (sh SignedHash) SignedBy(addr common.Address) bool {
	return signedBy(sh.Signatures, addr)
}

// Count returns the number of collected signatures.
func (sh SignedHash) Count() int {
	return len(sh.Signatures)
}

// With returns sh with the signatures of incoming merged in.
func (sh SignedHash) With(incoming []SignatureEntry) SignedHash {
	return SignedHash{Hash: sh.Hash, Signatures: MergeSignatures(sh.Signatures, incoming)}
}

// Clone returns a deep copy of sh.
func (sh SignedHash) Clone() SignedHash {
	return SignedHash{Hash: sh.Hash, Signatures: cloneSignatures(sh.Signatures)}
}
