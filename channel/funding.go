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
	"math/big"
	"time"
)

// FundingType tags the variants of Funding.
type FundingType uint8

const (
	FundingTypeDirect    FundingType = iota // deposits held by the adjudicator
	FundingTypeIndirect                     // allocated by a ledger channel
	FundingTypeVirtual                      // backed by a joint channel
	FundingTypeGuarantee                    // backed by a guarantor channel
)

// Funding describes how a channel's allocation is backed. Channels are
// referenced by ID only.
type Funding interface {
	Type() FundingType
	funding()
}

type (
	// DirectFunding is the amount held on chain as last observed.
	DirectFunding struct {
		Amount    *big.Int
		Finalized bool
	}

	// IndirectFunding is funding allocated by the ledger channel LedgerID.
	IndirectFunding struct {
		LedgerID ID
	}

	// VirtualFunding is funding through the joint channel JointChannelID.
	VirtualFunding struct {
		JointChannelID ID
	}

	// GuaranteeFunding is funding guaranteed by GuarantorChannelID.
	GuaranteeFunding struct {
		GuarantorChannelID ID
	}
)

func (DirectFunding) funding()    {}
func (IndirectFunding) funding()  {}
func (VirtualFunding) funding()   {}
func (GuaranteeFunding) funding() {}

// Type implements Funding.
func (DirectFunding) Type() FundingType { return FundingTypeDirect }

// Type implements Funding.
func (IndirectFunding) Type() FundingType { return FundingTypeIndirect }

// Type implements Funding.
func (VirtualFunding) Type() FundingType { return FundingTypeVirtual }

// Type implements Funding.
func (GuaranteeFunding) Type() FundingType { return FundingTypeGuarantee }

// ChallengeRecord is attached to a channel while a challenge is registered
// on chain.
type ChallengeRecord struct {
	ExpiresAt      time.Time
	DisputedStates []SignedState
}

// Expired reports whether the challenge has expired at now.
func (c ChallengeRecord) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Clone returns a deep copy of c.
func (c ChallengeRecord) Clone() ChallengeRecord {
	states := make([]SignedState, len(c.DisputedStates))
	for i, s := range c.DisputedStates {
		states[i] = s.Clone()
	}
	return ChallengeRecord{ExpiresAt: c.ExpiresAt, DisputedStates: states}
}
