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

package directfund

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolStatus          xdr.ScSymbol = "status"
	SymbolFailure         xdr.ScSymbol = "failure"
	SymbolMyIndex         xdr.ScSymbol = "my_index"
	SymbolOpening         xdr.ScSymbol = "opening"
	SymbolPreFundSetup    xdr.ScSymbol = "pre_fund_setup"
	SymbolPostFundSetup   xdr.ScSymbol = "post_fund_setup"
	SymbolFunding         xdr.ScSymbol = "funding"
	SymbolFundingRequest  xdr.ScSymbol = "funding_request"
	SymbolFundingDeadline xdr.ScSymbol = "funding_deadline"
	SymbolTx              xdr.ScSymbol = "tx"
	SymbolAttempt         xdr.ScSymbol = "attempt"
)

func makeRequest(r fn.Option[FundingRequest]) (xdr.ScVal, error) {
	if r.IsNone() {
		return wire.MakeTagged(wire.SymbolNone)
	}
	req := r.UnsafeFromSome()
	m, err := wire.WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolTx, SymbolAttempt},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(req.Tx)),
			scval.MustWrapUint32(xdr.Uint32(req.Attempt)),
		},
	)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return wire.MakeTagged(wire.SymbolSome, m)
}

func toRequest(v xdr.ScVal) (fn.Option[FundingRequest], error) {
	none := fn.None[FundingRequest]()
	tag, payload, err := wire.ToTagged(v)
	if err != nil {
		return none, err
	}
	if tag == wire.SymbolNone {
		return none, nil
	}
	pv, err := payload.UnwrapOrErr(errors.New("missing funding request"))
	if err != nil {
		return none, err
	}
	m, err := wire.GetSymbolScMap(pv, 2) //nolint:gomnd
	if err != nil {
		return none, err
	}
	tx, err := wire.GetStringFromSymbol(SymbolTx, m)
	if err != nil {
		return none, err
	}
	attempt, err := wire.GetUint32FromSymbol(SymbolAttempt, m)
	if err != nil {
		return none, err
	}
	return fn.Some(FundingRequest{Tx: tx, Attempt: attempt}), nil
}

func (o Objective) ToScVal() (xdr.ScVal, error) {
	opening, err := wire.MakeStateScVal(o.Opening)
	if err != nil {
		return xdr.ScVal{}, err
	}
	preFS, err := wire.MakeSignedHash(o.PreFundSetup)
	if err != nil {
		return xdr.ScVal{}, err
	}
	postFS, err := wire.MakeSignedHash(o.PostFundSetup)
	if err != nil {
		return xdr.ScVal{}, err
	}
	funding, err := wire.MakeFunding(fn.Some[channel.Funding](o.Funding))
	if err != nil {
		return xdr.ScVal{}, err
	}
	request, err := makeRequest(o.FundingRequest)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return wire.WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStatus,
			SymbolFailure,
			SymbolMyIndex,
			SymbolOpening,
			SymbolPreFundSetup,
			SymbolPostFundSetup,
			SymbolFunding,
			SymbolFundingRequest,
			SymbolFundingDeadline,
		},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(o.status)),
			scval.MustWrapScString(xdr.ScString(o.failure)),
			scval.MustWrapUint32(xdr.Uint32(o.MyIndex)),
			opening,
			preFS,
			postFS,
			funding,
			request,
			wire.MakeTime(o.FundingDeadline),
		},
	)
}

func (o *Objective) FromScVal(v xdr.ScVal) error {
	m, err := wire.GetSymbolScMap(v, 9) //nolint:gomnd
	if err != nil {
		return errors.WithMessage(err, "decoding direct funding objective")
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
	openingVal, err := wire.GetScMapValueFromSymbol(SymbolOpening, m)
	if err != nil {
		return err
	}
	opening, err := wire.ToStateFromScVal(openingVal)
	if err != nil {
		return err
	}
	preFSVal, err := wire.GetScMapValueFromSymbol(SymbolPreFundSetup, m)
	if err != nil {
		return err
	}
	preFS, err := wire.ToSignedHash(preFSVal)
	if err != nil {
		return err
	}
	postFSVal, err := wire.GetScMapValueFromSymbol(SymbolPostFundSetup, m)
	if err != nil {
		return err
	}
	postFS, err := wire.ToSignedHash(postFSVal)
	if err != nil {
		return err
	}
	fundingVal, err := wire.GetScMapValueFromSymbol(SymbolFunding, m)
	if err != nil {
		return err
	}
	funding, err := wire.ToFunding(fundingVal)
	if err != nil {
		return err
	}
	direct, ok := funding.UnwrapOr(nil).(channel.DirectFunding)
	if !ok {
		return errors.New("expected direct funding")
	}
	requestVal, err := wire.GetScMapValueFromSymbol(SymbolFundingRequest, m)
	if err != nil {
		return err
	}
	request, err := toRequest(requestVal)
	if err != nil {
		return err
	}
	deadline, err := wire.GetTimeFromSymbol(SymbolFundingDeadline, m)
	if err != nil {
		return err
	}
	if int(myIndex) >= opening.NumParts() {
		return errors.Errorf("index %d out of range", myIndex)
	}
	o.status = protocol.Status(status)
	o.failure = protocol.FailureReason(failure)
	o.MyIndex = int(myIndex)
	o.Opening = opening
	o.PreFundSetup = preFS
	o.PostFundSetup = postFS
	o.Funding = direct
	o.FundingRequest = request
	o.FundingDeadline = deadline
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

// Join builds the objective of the participant signing with me from a
// proposal of a peer.
func Join(data []byte, me common.Address) (protocol.Objective, error) {
	var proposed Objective
	if err := proposed.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	myIndex := proposed.Opening.IndexOf(me)
	if myIndex < 0 {
		return nil, errors.Errorf("%s is not a participant", me.Hex())
	}
	o, err := New(proposed.Opening, myIndex, proposed.FundingDeadline)
	if err != nil {
		return nil, err
	}
	// Signatures the proposer already collected are kept.
	preFS := proposed.signedPreFundSetup()
	if err := channel.ValidateSignatures(preFS); err != nil {
		return nil, err
	}
	o.PreFundSetup = o.PreFundSetup.With(preFS.Signatures)
	return o, nil
}

// Handler is the dispatch table entry of direct funding.
func Handler() protocol.Handler {
	return protocol.Handler{
		Type:    protocol.TypeDirectFund,
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
	return protocol.SharedObjective{ID: o.ID(), Type: protocol.TypeDirectFund, Data: data}, nil
}

// Propose returns the message proposing o to the other participants.
func (o Objective) Propose() (protocol.SendMessage, error) {
	shared, err := o.Share()
	if err != nil {
		return protocol.SendMessage{}, err
	}
	msg := protocol.SendTo(o.Opening.Constants, o.MyIndex)
	msg.Objectives = []protocol.SharedObjective{shared}
	return msg, nil
}
