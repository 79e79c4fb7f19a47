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

// Package ledgerfund funds a target channel from a ledger channel shared by
// the same participants. The ledger outcome moves the deducted amounts into a
// single entry paying the target. A ledger that does not exist yet is opened
// and funded directly first.
package ledgerfund

import (
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
)

const (
	StatusWaitForNewLedgerFunding      protocol.Status = "WaitForNewLedgerFunding"
	StatusWaitForExistingLedgerFunding protocol.Status = "WaitForExistingLedgerFunding"
)

// Objective is the ledger funding run of one ledger participant.
type Objective struct {
	status  protocol.Status
	failure protocol.FailureReason

	MyIndex    int
	Target     channel.ID
	LedgerID   channel.ID
	Deductions channel.Allocation
	// Opening is the opening state of a ledger that still needs funding.
	Opening                fn.Option[channel.State]
	RequestedDirectFunding bool
	// Latest is the supported ledger state the update builds on.
	Latest fn.Option[channel.SignedState]
	Update fn.Option[ConsensusUpdate]
	// Pending holds proposals of peers received before Latest was known.
	Pending  []channel.SignedState
	Deadline time.Time
}

func newObjective(target channel.ID, consts channel.Constants, myIndex int, deductions channel.Allocation, deadline time.Time) (Objective, error) {
	if myIndex < 0 || myIndex >= consts.NumParts() {
		return Objective{}, errors.Errorf("index %d out of range", myIndex)
	}
	ledgerID := consts.ID()
	if ledgerID == target {
		return Objective{}, errors.New("channel cannot fund itself")
	}
	for _, d := range deductions {
		if d.Amount == nil || d.Amount.Sign() < 0 {
			return Objective{}, errors.Errorf("invalid deduction for %s", d.Destination.Hex())
		}
	}
	return Objective{
		MyIndex:    myIndex,
		Target:     target,
		LedgerID:   ledgerID,
		Deductions: deductions.CloneAllocation(),
		Opening:    fn.None[channel.State](),
		Latest:     fn.None[channel.SignedState](),
		Update:     fn.None[ConsensusUpdate](),
		Deadline:   deadline,
	}, nil
}

// New funds target from the ledger whose latest supported state is latest.
// A zero deadline disables the timeout.
func New(target channel.ID, latest channel.SignedState, myIndex int, deductions channel.Allocation, deadline time.Time) (Objective, error) {
	if !latest.SignedByAll() {
		return Objective{}, errors.New("ledger state is not supported")
	}
	if _, ok := channel.AsAllocation(latest.State.Outcome); !ok {
		return Objective{}, errors.New("ledger outcome must be an allocation")
	}
	o, err := newObjective(target, latest.State.Constants, myIndex, deductions, deadline)
	if err != nil {
		return Objective{}, err
	}
	o.status = StatusWaitForExistingLedgerFunding
	o.Latest = fn.Some(latest.Clone())
	return o, nil
}

// NewLedgerFunding funds target from a new ledger opened by opening, which is
// funded directly first.
func NewLedgerFunding(target channel.ID, opening channel.State, myIndex int, deductions channel.Allocation, deadline time.Time) (Objective, error) {
	if opening.TurnNum != 0 {
		return Objective{}, errors.WithMessagef(channel.ErrInvalidFirstState, "got turn %d", opening.TurnNum)
	}
	if _, ok := channel.AsAllocation(opening.Outcome); !ok {
		return Objective{}, errors.New("opening outcome must be an allocation")
	}
	o, err := newObjective(target, opening.Constants, myIndex, deductions, deadline)
	if err != nil {
		return Objective{}, err
	}
	o.status = StatusWaitForNewLedgerFunding
	o.Opening = fn.Some(opening.Clone())
	return o, nil
}

func (o Objective) ID() protocol.ObjectiveID {
	return protocol.MakeObjectiveID(protocol.TypeLedgerFund, o.Target)
}

func (Objective) Type() protocol.Type { return protocol.TypeLedgerFund }

func (o Objective) Status() protocol.Status { return o.status }

func (o Objective) Failure() protocol.FailureReason { return o.failure }

func (o Objective) Terminal() bool {
	return o.status == protocol.StatusSuccess || o.status == protocol.StatusFailure
}

// Channels lists the target and the ledger.
func (o Objective) Channels() []channel.ID {
	return []channel.ID{o.Target, o.LedgerID}
}

// Amount is the value moved to the target.
func (o Objective) Amount() *big.Int {
	return o.Deductions.Total()
}

func (o Objective) ledgerConstants() channel.Constants {
	if o.Latest.IsSome() {
		return o.Latest.UnsafeFromSome().State.Constants
	}
	return o.Opening.UnsafeFromSome().Constants
}

// proposesTarget reports whether ss allocates to the target, which marks it
// as a funding proposal for it.
func (o Objective) proposesTarget(ss channel.SignedState) bool {
	alloc, ok := channel.AsAllocation(ss.State.Outcome)
	if !ok {
		return false
	}
	for _, item := range alloc {
		if item.Destination == o.Target {
			return true
		}
	}
	return false
}

func (o Objective) clone() Objective {
	clone := o
	clone.Deductions = o.Deductions.CloneAllocation()
	if o.Opening.IsSome() {
		clone.Opening = fn.Some(o.Opening.UnsafeFromSome().Clone())
	}
	if o.Latest.IsSome() {
		clone.Latest = fn.Some(o.Latest.UnsafeFromSome().Clone())
	}
	if o.Update.IsSome() {
		clone.Update = fn.Some(o.Update.UnsafeFromSome().Clone())
	}
	if o.Pending != nil {
		clone.Pending = make([]channel.SignedState, len(o.Pending))
		for i, ss := range o.Pending {
			clone.Pending[i] = ss.Clone()
		}
	}
	return clone
}

func (o Objective) fail(reason protocol.FailureReason) Objective {
	next := o.clone()
	next.status = protocol.StatusFailure
	next.failure = reason
	return next
}
