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

// Package virtualfund funds a channel between two leaves that share no ledger
// channel. Both leaves and a hub open a joint channel, and every leaf opens a
// guarantor channel with the hub that is funded from their shared ledger. The
// joint channel then moves the leaves' funds to the target.
//
// Only the leaf role is implemented.
package virtualfund

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
)

const (
	StatusWaitForCompletePrefund  protocol.Status = "WaitForCompletePrefund"
	StatusWaitForCompleteFunding  protocol.Status = "WaitForCompleteFunding"
	StatusWaitForCompletePostFund protocol.Status = "WaitForCompletePostFund"
)

const (
	Left  = 0
	Right = 1
)

// Slot names a state whose signatures the objective collects.
type Slot uint8

const (
	SlotTarget           Slot = iota // target pre fund setup
	SlotJoint                        // joint pre fund setup
	SlotGuarantor                    // guarantor pre fund setup
	SlotJointFundsTarget             // joint update paying the target

	slotCount
)

// Slots lists all slots.
var Slots = [slotCount]Slot{SlotTarget, SlotJoint, SlotGuarantor, SlotJointFundsTarget}

var slotNames = [slotCount]string{"target", "joint", "guarantor", "jointFundsTarget"}

func (s Slot) String() string {
	if s < slotCount {
		return slotNames[s]
	}
	return fmt.Sprintf("Slot(%d)", uint8(s))
}

// slotStates maps every slot to the state it collects signatures on.
var slotStates = [slotCount]func(Objective) channel.State{
	SlotTarget:           Objective.TargetPreFundSetup,
	SlotJoint:            Objective.JointPreFundSetup,
	SlotGuarantor:        Objective.GuarantorPreFundSetup,
	SlotJointFundsTarget: Objective.JointFundsTarget,
}

var prefundSlots = []Slot{SlotTarget, SlotJoint, SlotGuarantor}

// Objective is the virtual funding run of one leaf.
type Objective struct {
	status  protocol.Status
	failure protocol.FailureReason

	// MyIndex is Left or Right in the target channel.
	MyIndex int
	Target  channel.State
	Hub     channel.Participant
	// LedgerID is the ledger shared with the hub. A zero ID lets the host
	// pick it.
	LedgerID               channel.ID
	Signatures             [slotCount]channel.SignedHash
	RequestedLedgerFunding bool
	GuarantorFunding       *big.Int
}

// New creates the objective of the leaf at myIndex of the target opened by
// target. The guarantor is funded from ledger.
func New(target channel.State, myIndex int, hub channel.Participant, ledger channel.ID) (Objective, error) {
	if target.TurnNum != 0 {
		return Objective{}, errors.WithMessagef(channel.ErrInvalidFirstState, "got turn %d", target.TurnNum)
	}
	if target.NumParts() != 2 { //nolint:gomnd
		return Objective{}, errors.Errorf("target needs two participants, got %d", target.NumParts())
	}
	if myIndex != Left && myIndex != Right {
		return Objective{}, errors.Errorf("index %d is not a leaf", myIndex)
	}
	if target.IndexOf(hub.SigningAddress) >= 0 {
		return Objective{}, errors.New("hub must not take part in the target")
	}
	alloc, ok := channel.AsAllocation(target.Outcome)
	if !ok || len(alloc) != 2 { //nolint:gomnd
		return Objective{}, errors.New("target outcome must allocate to both leaves")
	}
	for i, item := range alloc {
		if item.Destination != target.Participants[i].Destination || item.Amount == nil {
			return Objective{}, errors.Errorf("target allocation item %d does not pay leaf %d", i, i)
		}
	}

	o := Objective{
		status:           StatusWaitForCompletePrefund,
		MyIndex:          myIndex,
		Target:           target.Clone(),
		Hub:              hub,
		LedgerID:         ledger,
		GuarantorFunding: new(big.Int),
	}
	if err := ValidateJointOutcome(o.jointAllocation(), alloc, hub); err != nil {
		return Objective{}, err
	}
	for _, s := range Slots {
		o.Signatures[s] = channel.SignedHash{Hash: o.State(s).Hash()}
	}
	return o, nil
}

// ValidateJointOutcome checks that joint pays each leaf its target amount and
// the hub their sum, in the order left, hub, right.
func ValidateJointOutcome(joint, target channel.Allocation, hub channel.Participant) error {
	if len(joint) != 3 || len(target) != 2 { //nolint:gomnd
		return errors.New("malformed joint outcome")
	}
	total := target.Total()
	switch {
	case joint[0].Destination != target[0].Destination || joint[0].Amount.Cmp(target[0].Amount) != 0:
		return errors.New("joint outcome does not pay the left leaf")
	case joint[1].Destination != hub.Destination || joint[1].Amount.Cmp(total) != 0:
		return errors.New("joint outcome does not pay the hub")
	case joint[2].Destination != target[1].Destination || joint[2].Amount.Cmp(target[1].Amount) != 0:
		return errors.New("joint outcome does not pay the right leaf")
	}
	return nil
}

func (o Objective) ID() protocol.ObjectiveID {
	return protocol.MakeObjectiveID(protocol.TypeVirtualFund, o.TargetID())
}

func (Objective) Type() protocol.Type { return protocol.TypeVirtualFund }

func (o Objective) Status() protocol.Status { return o.status }

func (o Objective) Failure() protocol.FailureReason { return o.failure }

func (o Objective) Terminal() bool {
	return o.status == protocol.StatusSuccess || o.status == protocol.StatusFailure
}

// Channels lists the target, joint and guarantor channels.
func (o Objective) Channels() []channel.ID {
	return []channel.ID{o.TargetID(), o.JointID(), o.GuarantorID()}
}

func (o Objective) TargetID() channel.ID { return o.Target.ChannelID() }

func (o Objective) JointID() channel.ID { return o.JointConstants().ID() }

func (o Objective) GuarantorID() channel.ID { return o.GuarantorConstants().ID() }

func (o Objective) me() channel.Participant {
	return o.Target.Participants[o.MyIndex]
}

func (o Objective) other() int {
	return 1 - o.MyIndex
}

func (o Objective) targetAllocation() channel.Allocation {
	alloc, _ := channel.AsAllocation(o.Target.Outcome)
	return alloc
}

// Amount is the value of the target.
func (o Objective) Amount() *big.Int {
	return o.targetAllocation().Total()
}

// JointConstants are the constants of the joint channel between left, hub
// and right.
func (o Objective) JointConstants() channel.Constants {
	c := o.Target.Constants.Clone()
	c.Participants = []channel.Participant{o.Target.Participants[Left], o.Hub, o.Target.Participants[Right]}
	c.ChannelNonce = o.Target.ChannelNonce + 1
	return c
}

// GuarantorConstants are the constants of the guarantor channel between this
// leaf and the hub.
func (o Objective) GuarantorConstants() channel.Constants {
	c := o.Target.Constants.Clone()
	c.Participants = []channel.Participant{o.me(), o.Hub}
	c.ChannelNonce = o.Target.ChannelNonce + 2 + uint64(o.MyIndex) //nolint:gomnd
	return c
}

func (o Objective) jointAllocation() channel.Allocation {
	target := o.targetAllocation()
	return channel.Allocation{
		{Destination: target[Left].Destination, Amount: new(big.Int).Set(target[Left].Amount)},
		{Destination: o.Hub.Destination, Amount: target.Total()},
		{Destination: target[Right].Destination, Amount: new(big.Int).Set(target[Right].Amount)},
	}
}

// TargetPreFundSetup is the opening state of the target.
func (o Objective) TargetPreFundSetup() channel.State {
	return o.Target.Clone()
}

// JointPreFundSetup is the opening state of the joint channel.
func (o Objective) JointPreFundSetup() channel.State {
	return channel.State{Constants: o.JointConstants(), Outcome: o.jointAllocation()}
}

// GuarantorPreFundSetup is the opening state of the guarantor channel. It
// guarantees the joint channel, paying the target first.
func (o Objective) GuarantorPreFundSetup() channel.State {
	return channel.State{
		Constants: o.GuarantorConstants(),
		Outcome: channel.Guarantee{
			Target:       o.JointID(),
			Destinations: []channel.Destination{o.TargetID(), o.me().Destination, o.Hub.Destination},
		},
	}
}

// JointFundsTarget is the joint update that pays the target and refunds the
// hub.
func (o Objective) JointFundsTarget() channel.State {
	total := o.Amount()
	return o.JointPreFundSetup().WithTurnNum(1).WithOutcome(channel.Allocation{
		{Destination: o.TargetID(), Amount: total},
		{Destination: o.Hub.Destination, Amount: new(big.Int).Set(total)},
	})
}

// Deductions are taken from the ledger with the hub: the hub covers the other
// leaf and this leaf covers itself.
func (o Objective) Deductions() channel.Allocation {
	target := o.targetAllocation()
	return channel.Allocation{
		{Destination: o.Hub.Destination, Amount: new(big.Int).Set(target[o.other()].Amount)},
		{Destination: o.me().Destination, Amount: new(big.Int).Set(target[o.MyIndex].Amount)},
	}
}

// State returns the state collected in slot s.
func (o Objective) State(s Slot) channel.State {
	return slotStates[s](o)
}

// Required is the number of signatures slot s needs: every participant of
// its channel.
func (o Objective) Required(s Slot) int {
	return o.State(s).NumParts()
}

func (o Objective) complete(s Slot) bool {
	return o.Signatures[s].Count() >= o.Required(s)
}

func (o Objective) signed(s Slot) channel.SignedState {
	return channel.SignedState{State: o.State(s), Signatures: o.Signatures[s].Clone().Signatures}
}

// slotOf finds the slot expecting hash.
func (o Objective) slotOf(hash channel.ID) (Slot, bool) {
	for _, s := range Slots {
		if o.Signatures[s].Hash == hash {
			return s, true
		}
	}
	return 0, false
}

func (o Objective) clone() Objective {
	clone := o
	clone.Target = o.Target.Clone()
	for i := range o.Signatures {
		clone.Signatures[i] = o.Signatures[i].Clone()
	}
	clone.GuarantorFunding = new(big.Int)
	if o.GuarantorFunding != nil {
		clone.GuarantorFunding.Set(o.GuarantorFunding)
	}
	return clone
}

func (o Objective) fail(reason protocol.FailureReason) Objective {
	next := o.clone()
	next.status = protocol.StatusFailure
	next.failure = reason
	return next
}
