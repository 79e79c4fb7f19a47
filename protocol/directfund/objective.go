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

// Package directfund funds a channel from on-chain deposits. Participants
// deposit in the order of the opening allocation, each waiting until the
// holdings cover every allocation item before its own.
package directfund

import (
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
)

const (
	StatusWaitForPreFundSetup  protocol.Status = "WaitForPreFundSetup"
	StatusSafeToDeposit        protocol.Status = "SafeToDeposit"
	StatusWaitForFundingEvents protocol.Status = "WaitForFundingEvents"
	StatusWaitForPostFundSetup protocol.Status = "WaitForPostFundSetup"
)

// FundingRequest is an outstanding deposit of ours.
type FundingRequest struct {
	Tx      string
	Attempt uint32
}

// Objective is the direct funding run of one participant.
type Objective struct {
	status  protocol.Status
	failure protocol.FailureReason

	MyIndex         int
	Opening         channel.State
	PreFundSetup    channel.SignedHash
	PostFundSetup   channel.SignedHash
	Funding         channel.DirectFunding
	FundingRequest  fn.Option[FundingRequest]
	FundingDeadline time.Time
}

// New creates the objective of participant myIndex for the channel opened by
// opening. A zero deadline disables the funding timeout.
func New(opening channel.State, myIndex int, deadline time.Time) (Objective, error) {
	if opening.TurnNum != 0 {
		return Objective{}, errors.WithMessagef(channel.ErrInvalidFirstState, "got turn %d", opening.TurnNum)
	}
	if myIndex < 0 || myIndex >= opening.NumParts() {
		return Objective{}, errors.Errorf("index %d out of range", myIndex)
	}
	if _, ok := channel.AsAllocation(opening.Outcome); !ok {
		return Objective{}, errors.New("opening outcome must be an allocation")
	}
	o := Objective{
		status:          StatusWaitForPreFundSetup,
		MyIndex:         myIndex,
		Opening:         opening.Clone(),
		Funding:         channel.DirectFunding{Amount: new(big.Int)},
		FundingRequest:  fn.None[FundingRequest](),
		FundingDeadline: deadline,
	}
	o.PreFundSetup = channel.SignedHash{Hash: o.PreFundSetupState().Hash()}
	o.PostFundSetup = channel.SignedHash{Hash: o.PostFundSetupState().Hash()}
	return o, nil
}

func (o Objective) ID() protocol.ObjectiveID {
	return protocol.MakeObjectiveID(protocol.TypeDirectFund, o.ChannelID())
}

func (Objective) Type() protocol.Type { return protocol.TypeDirectFund }

func (o Objective) Status() protocol.Status { return o.status }

func (o Objective) Failure() protocol.FailureReason { return o.failure }

func (o Objective) Terminal() bool {
	return o.status == protocol.StatusSuccess || o.status == protocol.StatusFailure
}

func (o Objective) Channels() []channel.ID {
	return []channel.ID{o.ChannelID()}
}

func (o Objective) ChannelID() channel.ID {
	return o.Opening.ChannelID()
}

// PreFundSetupState is the opening state at turn 0.
func (o Objective) PreFundSetupState() channel.State {
	return o.Opening.Clone()
}

// PostFundSetupState is the opening outcome at turn 2n-1.
func (o Objective) PostFundSetupState() channel.State {
	return o.Opening.WithTurnNum(PostFundSetupTurn(o.Opening.NumParts()))
}

// PostFundSetupTurn returns the turn of the post fund setup of a channel with
// n participants.
func PostFundSetupTurn(n int) uint64 {
	return uint64(2*n - 1) //nolint:gomnd
}

func (o Objective) clone() Objective {
	clone := o
	clone.Opening = o.Opening.Clone()
	clone.PreFundSetup = o.PreFundSetup.Clone()
	clone.PostFundSetup = o.PostFundSetup.Clone()
	clone.Funding = channel.DirectFunding{Amount: new(big.Int).Set(o.fundingAmount()), Finalized: o.Funding.Finalized}
	return clone
}

func (o Objective) fail(reason protocol.FailureReason) Objective {
	next := o.clone()
	next.status = protocol.StatusFailure
	next.failure = reason
	return next
}

func (o Objective) fundingAmount() *big.Int {
	if o.Funding.Amount == nil {
		return new(big.Int)
	}
	return o.Funding.Amount
}

func (o Objective) allocation() channel.Allocation {
	alloc, _ := channel.AsAllocation(o.Opening.Outcome)
	return alloc
}

// Milestones are the holdings at which our deposit is due, complete and the
// channel fully funded.
type Milestones struct {
	Before *big.Int
	After  *big.Int
	Total  *big.Int
}

// DepositMilestones computes the milestones of the participant at myIndex.
// A participant without an allocation item never deposits.
func (o Objective) DepositMilestones() Milestones {
	alloc := o.allocation()
	dest := o.Opening.Participants[o.MyIndex].Destination
	total := alloc.Total()
	before := new(big.Int)
	for _, item := range alloc {
		if item.Destination == dest {
			amount := item.Amount
			if amount == nil {
				amount = new(big.Int)
			}
			return Milestones{Before: before, After: new(big.Int).Add(before, amount), Total: total}
		}
		if item.Amount != nil {
			before.Add(before, item.Amount)
		}
	}
	return Milestones{Before: new(big.Int).Set(total), After: new(big.Int).Set(total), Total: total}
}

func (o Objective) fullyFunded() bool {
	return o.Funding.Finalized && o.fundingAmount().Cmp(o.DepositMilestones().Total) >= 0
}

func (o Objective) signedPreFundSetup() channel.SignedState {
	return channel.SignedState{State: o.PreFundSetupState(), Signatures: o.PreFundSetup.Clone().Signatures}
}

func (o Objective) signedPostFundSetup() channel.SignedState {
	return channel.SignedState{State: o.PostFundSetupState(), Signatures: o.PostFundSetup.Clone().Signatures}
}
