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

package ledgerfund

import (
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
)

// ConsensusUpdate collects signatures on a proposed ledger state. The update
// is final once more than half of the participants signed it.
type ConsensusUpdate struct {
	Proposal channel.SignedState
}

// NewConsensusUpdate proposes the successor of latest that moves deductions
// into an entry paying target.
func NewConsensusUpdate(latest channel.State, deductions channel.Allocation, target channel.ID) (ConsensusUpdate, error) {
	alloc, ok := channel.AsAllocation(latest.Outcome)
	if !ok {
		return ConsensusUpdate{}, errors.New("ledger outcome must be an allocation")
	}
	next, err := channel.AllocateToTarget(alloc, deductions, target)
	if err != nil {
		return ConsensusUpdate{}, err
	}
	proposal := latest.WithTurnNum(latest.TurnNum + 1).WithOutcome(next)
	return ConsensusUpdate{Proposal: channel.SignedState{State: proposal}}, nil
}

// Threshold is the number of signatures that make the update final.
func (c ConsensusUpdate) Threshold() int {
	return c.Proposal.State.NumParts()/2 + 1 //nolint:gomnd
}

func (c ConsensusUpdate) Complete() bool {
	return len(c.Proposal.Signatures) >= c.Threshold()
}

func (c ConsensusUpdate) SignedBy(signer channel.Signer) bool {
	return c.Proposal.SignedBy(signer.Address())
}

// Sign adds the signature of signer.
func (c ConsensusUpdate) Sign(signer channel.Signer) (ConsensusUpdate, error) {
	signed, err := c.Proposal.AddSignature(signer)
	if err != nil {
		return c, err
	}
	return ConsensusUpdate{Proposal: signed}, nil
}

// Merge adds the signatures of ss, which must carry the proposed state.
func (c ConsensusUpdate) Merge(ss channel.SignedState) (ConsensusUpdate, error) {
	if ss.Hash() != c.Proposal.Hash() {
		return c, channel.ErrUnknownState
	}
	if err := channel.ValidateSignatures(ss); err != nil {
		return c, err
	}
	merged, err := c.Proposal.Merge(ss)
	if err != nil {
		return c, err
	}
	return ConsensusUpdate{Proposal: merged}, nil
}

func (c ConsensusUpdate) Clone() ConsensusUpdate {
	return ConsensusUpdate{Proposal: c.Proposal.Clone()}
}
