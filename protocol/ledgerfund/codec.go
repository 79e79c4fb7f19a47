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
	SymbolLedger                 xdr.ScSymbol = "ledger"
	SymbolDeductions             xdr.ScSymbol = "deductions"
	SymbolOpening                xdr.ScSymbol = "opening"
	SymbolRequestedDirectFunding xdr.ScSymbol = "requested_direct_funding"
	SymbolLatest                 xdr.ScSymbol = "latest"
	SymbolUpdate                 xdr.ScSymbol = "update"
	SymbolPending                xdr.ScSymbol = "pending"
	SymbolDeadline               xdr.ScSymbol = "deadline"
)

const objectiveFields = 12

func makeUpdate(u ConsensusUpdate) (xdr.ScVal, error) {
	return wire.MakeSignedState(u.Proposal)
}

func toUpdate(v xdr.ScVal) (ConsensusUpdate, error) {
	ss, err := wire.ToSignedState(v)
	if err != nil {
		return ConsensusUpdate{}, err
	}
	return ConsensusUpdate{Proposal: ss}, nil
}

func (o Objective) ToScVal() (xdr.ScVal, error) {
	deductions, err := wire.MakeAllocation(o.Deductions)
	if err != nil {
		return xdr.ScVal{}, err
	}
	opening, err := wire.MakeOptionalState(o.Opening)
	if err != nil {
		return xdr.ScVal{}, err
	}
	latest, err := wire.MakeOptionalSignedState(o.Latest)
	if err != nil {
		return xdr.ScVal{}, err
	}
	update, err := wire.MakeOption(o.Update, makeUpdate)
	if err != nil {
		return xdr.ScVal{}, err
	}
	pending, err := wire.MakeSignedStates(o.Pending)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return wire.WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStatus,
			SymbolFailure,
			SymbolMyIndex,
			SymbolTarget,
			SymbolLedger,
			SymbolDeductions,
			SymbolOpening,
			SymbolRequestedDirectFunding,
			SymbolLatest,
			SymbolUpdate,
			SymbolPending,
			SymbolDeadline,
		},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(o.status)),
			scval.MustWrapScString(xdr.ScString(o.failure)),
			scval.MustWrapUint32(xdr.Uint32(o.MyIndex)),
			wire.MakeHash(o.Target),
			wire.MakeHash(o.LedgerID),
			deductions,
			opening,
			scval.MustWrapBool(o.RequestedDirectFunding),
			latest,
			update,
			pending,
			wire.MakeTime(o.Deadline),
		},
	)
}

func (o *Objective) FromScVal(v xdr.ScVal) error {
	m, err := wire.GetSymbolScMap(v, objectiveFields)
	if err != nil {
		return errors.WithMessage(err, "decoding ledger funding objective")
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
	target, err := wire.GetHashFromSymbol(SymbolTarget, m)
	if err != nil {
		return err
	}
	ledgerID, err := wire.GetHashFromSymbol(SymbolLedger, m)
	if err != nil {
		return err
	}
	deductionsVal, err := wire.GetScMapValueFromSymbol(SymbolDeductions, m)
	if err != nil {
		return err
	}
	deductions, err := wire.ToAllocation(deductionsVal)
	if err != nil {
		return err
	}
	opening, err := wire.GetOptionFromSymbol(SymbolOpening, m, wire.ToStateFromScVal)
	if err != nil {
		return err
	}
	requested, err := wire.GetBoolFromSymbol(SymbolRequestedDirectFunding, m)
	if err != nil {
		return err
	}
	latest, err := wire.GetOptionFromSymbol(SymbolLatest, m, wire.ToSignedState)
	if err != nil {
		return err
	}
	update, err := wire.GetOptionFromSymbol(SymbolUpdate, m, toUpdate)
	if err != nil {
		return err
	}
	pendingVec, err := wire.GetVecFromSymbol(SymbolPending, m)
	if err != nil {
		return err
	}
	pending, err := wire.ToSignedStates(pendingVec)
	if err != nil {
		return err
	}
	deadline, err := wire.GetTimeFromSymbol(SymbolDeadline, m)
	if err != nil {
		return err
	}
	if opening.IsNone() && latest.IsNone() {
		return errors.New("ledger funding objective without ledger")
	}
	if len(deductions) == 0 {
		deductions = nil
	}

	o.status = protocol.Status(status)
	o.failure = protocol.FailureReason(failure)
	o.MyIndex = int(myIndex)
	o.Target = target
	o.LedgerID = ledgerID
	o.Deductions = deductions
	o.Opening = opening
	o.RequestedDirectFunding = requested
	o.Latest = latest
	o.Update = update
	o.Pending = pending
	o.Deadline = deadline
	if o.MyIndex >= o.ledgerConstants().NumParts() {
		return errors.Errorf("index %d out of range", myIndex)
	}
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

// Join builds the objective of the ledger participant signing with me from a
// proposal of a peer.
func Join(data []byte, me common.Address) (protocol.Objective, error) {
	var proposed Objective
	if err := proposed.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	myIndex := proposed.ledgerConstants().IndexOf(me)
	if myIndex < 0 {
		return nil, errors.Errorf("%s is not a ledger participant", me.Hex())
	}
	if proposed.Latest.IsNone() {
		opening := proposed.Opening.UnsafeFromSome()
		return NewLedgerFunding(proposed.Target, opening, myIndex, proposed.Deductions, proposed.Deadline)
	}
	latest := proposed.Latest.UnsafeFromSome()
	if err := channel.ValidateSignatures(latest); err != nil {
		return nil, err
	}
	o, err := New(proposed.Target, latest, myIndex, proposed.Deductions, proposed.Deadline)
	if err != nil {
		return nil, err
	}
	// The proposer's signatures on the update are kept.
	var pending []channel.SignedState
	proposed.Update.WhenSome(func(u ConsensusUpdate) {
		pending = append(pending, u.Proposal)
	})
	for _, ss := range pending {
		if err := channel.ValidateSignatures(ss); err != nil {
			return nil, err
		}
	}
	o.Pending = pending
	return o, nil
}

// Handler is the dispatch table entry of ledger funding.
func Handler() protocol.Handler {
	return protocol.Handler{
		Type:    protocol.TypeLedgerFund,
		Accepts: Accepts,
		Crank:   CrankObjective,
		Decode:  Decode,
		Join:    Join,
	}
}

// Share proposes o to its peers.
func (o Objective) Share() (protocol.SharedObjective, error) {
	data, err := o.MarshalBinary()
	if err != nil {
		return protocol.SharedObjective{}, err
	}
	return protocol.SharedObjective{ID: o.ID(), Type: protocol.TypeLedgerFund, Data: data}, nil
}

// Propose returns the message proposing o to the other ledger participants.
func (o Objective) Propose() (protocol.SendMessage, error) {
	shared, err := o.Share()
	if err != nil {
		return protocol.SendMessage{}, err
	}
	msg := protocol.SendTo(o.ledgerConstants(), o.MyIndex)
	msg.Objectives = []protocol.SharedObjective{shared}
	return msg, nil
}
