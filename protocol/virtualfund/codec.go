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

package virtualfund

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolStatus                 xdr.ScSymbol = "status"
	SymbolFailure                xdr.ScSymbol = "failure"
	SymbolMyIndex                xdr.ScSymbol = "my_index"
	SymbolTarget                 xdr.ScSymbol = "target"
	SymbolHub                    xdr.ScSymbol = "hub"
	SymbolLedger                 xdr.ScSymbol = "ledger"
	SymbolSignatures             xdr.ScSymbol = "signatures"
	SymbolRequestedLedgerFunding xdr.ScSymbol = "requested_ledger_funding"
	SymbolGuarantorFunding       xdr.ScSymbol = "guarantor_funding"
)

const objectiveFields = 9

func (o Objective) ToScVal() (xdr.ScVal, error) {
	target, err := wire.MakeStateScVal(o.Target)
	if err != nil {
		return xdr.ScVal{}, err
	}
	hub, err := wire.MakeParticipant(o.Hub).ToScVal()
	if err != nil {
		return xdr.ScVal{}, err
	}
	sigs := make(xdr.ScVec, slotCount)
	for i, sh := range o.Signatures {
		if sigs[i], err = wire.MakeSignedHash(sh); err != nil {
			return xdr.ScVal{}, errors.WithMessagef(err, "slot %s", Slot(i))
		}
	}
	sigsVal, err := scval.WrapVec(sigs)
	if err != nil {
		return xdr.ScVal{}, err
	}
	funding, err := wire.MakeAmount(o.GuarantorFunding)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return wire.WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStatus,
			SymbolFailure,
			SymbolMyIndex,
			SymbolTarget,
			SymbolHub,
			SymbolLedger,
			SymbolSignatures,
			SymbolRequestedLedgerFunding,
			SymbolGuarantorFunding,
		},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(o.status)),
			scval.MustWrapScString(xdr.ScString(o.failure)),
			scval.MustWrapUint32(xdr.Uint32(o.MyIndex)),
			target,
			hub,
			wire.MakeHash(o.LedgerID),
			sigsVal,
			scval.MustWrapBool(o.RequestedLedgerFunding),
			funding,
		},
	)
}

func (o *Objective) FromScVal(v xdr.ScVal) error {
	m, err := wire.GetSymbolScMap(v, objectiveFields)
	if err != nil {
		return errors.WithMessage(err, "decoding virtual funding objective")
	}
	status, err := wire.GetStringFromSymbol(SymbolStatus, m)
	if err != nil {
		return err
	}
	failure, err := wire.GetStringFromSymbol(SymbolFailure, m)
	if err != nil {
		return err
	}
	myIndex, err := wire.GetUint32FromSymbol(SymbolMyIndex, m)
	if err != nil {
		return err
	}
	targetVal, err := wire.GetScMapValueFromSymbol(SymbolTarget, m)
	if err != nil {
		return err
	}
	target, err := wire.ToStateFromScVal(targetVal)
	if err != nil {
		return err
	}
	hubVal, err := wire.GetScMapValueFromSymbol(SymbolHub, m)
	if err != nil {
		return err
	}
	hub, err := wire.ParticipantFromScVal(hubVal)
	if err != nil {
		return err
	}
	ledger, err := wire.GetHashFromSymbol(SymbolLedger, m)
	if err != nil {
		return err
	}
	sigsVec, err := wire.GetVecFromSymbol(SymbolSignatures, m)
	if err != nil {
		return err
	}
	if len(sigsVec) != int(slotCount) {
		return errors.Errorf("expected %d signature slots, got %d", slotCount, len(sigsVec))
	}
	requested, err := wire.GetBoolFromSymbol(SymbolRequestedLedgerFunding, m)
	if err != nil {
		return err
	}
	funding, err := wire.GetAmountFromSymbol(SymbolGuarantorFunding, m)
	if err != nil {
		return err
	}

	decoded, err := New(target, int(myIndex), wire.ToParticipant(hub), ledger)
	if err != nil {
		return err
	}
	for i, sv := range sigsVec {
		sh, err := wire.ToSignedHash(sv)
		if err != nil {
			return errors.WithMessagef(err, "slot %s", Slot(i))
		}
		if sh.Hash != decoded.Signatures[i].Hash {
			return errors.Errorf("slot %s holds a foreign hash", Slot(i))
		}
		decoded.Signatures[i] = sh
	}
	decoded.status = protocol.Status(status)
	decoded.failure = protocol.FailureReason(failure)
	decoded.RequestedLedgerFunding = requested
	decoded.GuarantorFunding = funding
	*o = decoded
	return nil
}

func (o Objective) MarshalBinary() ([]byte, error) {
	return wire.Marshal(o)
}

func (o *Objective) UnmarshalBinary(data []byte) error {
	return wire.Unmarshal(data, o)
}

// Decode deserializes an objective written by MarshalBinary.
func Decode(data []byte) (protocol.Objective, error) {
	var o Objective
	if err := o.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return o, nil
}

// Join builds the objective of the other leaf, signing with me, from a
// proposal. The ledger with the hub is left to the host.
func Join(data []byte, me common.Address) (protocol.Objective, error) {
	var proposed Objective
	if err := proposed.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	myIndex := proposed.Target.IndexOf(me)
	if myIndex < 0 {
		return nil, errors.Errorf("%s is not a leaf", me.Hex())
	}
	o, err := New(proposed.Target, myIndex, proposed.Hub, channel.ID{})
	if err != nil {
		return nil, err
	}
	// Signatures on shared channels are kept.
	for _, s := range []Slot{SlotTarget, SlotJoint, SlotJointFundsTarget} {
		ss := proposed.signed(s)
		if err := channel.ValidateSignatures(ss); err != nil {
			return nil, err
		}
		o.Signatures[s] = o.Signatures[s].With(ss.Signatures)
	}
	return o, nil
}

// Handler is the dispatch table entry of virtual funding.
func Handler() protocol.Handler {
	return protocol.Handler{
		Type:    protocol.TypeVirtualFund,
		Accepts: Accepts,
		Crank:   CrankObjective,
		Decode:  Decode,
		Join:    Join,
	}
}

// Share proposes o to the other leaf.
func (o Objective) Share() (protocol.SharedObjective, error) {
	data, err := o.MarshalBinary()
	if err != nil {
		return protocol.SharedObjective{}, err
	}
	return protocol.SharedObjective{ID: o.ID(), Type: protocol.TypeVirtualFund, Data: data}, nil
}

// Propose returns the message proposing o to the other leaf.
func (o Objective) Propose() (protocol.SendMessage, error) {
	shared, err := o.Share()
	if err != nil {
		return protocol.SendMessage{}, err
	}
	msg := protocol.SendTo(o.Target.Constants, o.MyIndex)
	msg.Objectives = []protocol.SharedObjective{shared}
	return msg, nil
}
