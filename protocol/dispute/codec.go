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

package dispute

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolStatus    xdr.ScSymbol = "status"
	SymbolFailure   xdr.ScSymbol = "failure"
	SymbolChannel   xdr.ScSymbol = "channel"
	SymbolLedger    xdr.ScSymbol = "ledger"
	SymbolChallenge xdr.ScSymbol = "challenge"
	SymbolTx        xdr.ScSymbol = "tx"
	SymbolExpiresAt xdr.ScSymbol = "expires_at"
)

const (
	challengerFields = 6
	responderFields  = 6
)

func makeLedger(l channel.Ledger) (xdr.ScVal, error) {
	return wire.Channel{Ledger: l}.ToScVal()
}

func toLedger(v xdr.ScVal) (channel.Ledger, error) {
	var c wire.Channel
	err := c.FromScVal(v)
	return c.Ledger, err
}

func (o Challenger) ToScVal() (xdr.ScVal, error) {
	ledger, err := wire.MakeOption(o.Ledger, makeLedger)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return wire.WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStatus,
			SymbolFailure,
			SymbolChannel,
			SymbolLedger,
			SymbolTx,
			SymbolExpiresAt,
		},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(o.status)),
			scval.MustWrapScString(xdr.ScString(o.failure)),
			wire.MakeHash(o.ChannelID),
			ledger,
			scval.MustWrapScString(xdr.ScString(o.Tx)),
			wire.MakeTime(o.ExpiresAt),
		},
	)
}

func (o *Challenger) FromScVal(v xdr.ScVal) error {
	m, err := wire.GetSymbolScMap(v, challengerFields)
	if err != nil {
		return errors.WithMessage(err, "decoding challenger")
	}
	status, err := wire.GetStringFromSymbol(SymbolStatus, m)
	if err != nil {
		return err
	}
	failure, err := wire.GetStringFromSymbol(SymbolFailure, m)
	if err != nil {
		return err
	}
	id, err := wire.GetHashFromSymbol(SymbolChannel, m)
	if err != nil {
		return err
	}
	ledger, err := wire.GetOptionFromSymbol(SymbolLedger, m, toLedger)
	if err != nil {
		return err
	}
	tx, err := wire.GetStringFromSymbol(SymbolTx, m)
	if err != nil {
		return err
	}
	expiresAt, err := wire.GetTimeFromSymbol(SymbolExpiresAt, m)
	if err != nil {
		return err
	}
	*o = Challenger{
		status:    protocol.Status(status),
		failure:   protocol.FailureReason(failure),
		ChannelID: id,
		Ledger:    ledger,
		Tx:        tx,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (o Challenger) MarshalBinary() ([]byte, error) {
	return wire.Marshal(o)
}

func (o *Challenger) UnmarshalBinary(data []byte) error {
	return wire.Unmarshal(data, o)
}

// DecodeChallenger deserializes a challenger written by MarshalBinary.
func DecodeChallenger(data []byte) (protocol.Objective, error) {
	var o Challenger
	if err := o.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return o, nil
}

func (o Responder) ToScVal() (xdr.ScVal, error) {
	ledger, err := makeLedger(o.Ledger)
	if err != nil {
		return xdr.ScVal{}, err
	}
	challenge, err := wire.MakeSignedState(o.Challenge)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return wire.WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStatus,
			SymbolFailure,
			SymbolLedger,
			SymbolChallenge,
			SymbolTx,
			SymbolExpiresAt,
		},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(o.status)),
			scval.MustWrapScString(xdr.ScString(o.failure)),
			ledger,
			challenge,
			scval.MustWrapScString(xdr.ScString(o.Tx)),
			wire.MakeTime(o.ExpiresAt),
		},
	)
}

func (o *Responder) FromScVal(v xdr.ScVal) error {
	m, err := wire.GetSymbolScMap(v, responderFields)
	if err != nil {
		return errors.WithMessage(err, "decoding responder")
	}
	status, err := wire.GetStringFromSymbol(SymbolStatus, m)
	if err != nil {
		return err
	}
	failure, err := wire.GetStringFromSymbol(SymbolFailure, m)
	if err != nil {
		return err
	}
	ledgerVal, err := wire.GetScMapValueFromSymbol(SymbolLedger, m)
	if err != nil {
		return err
	}
	ledger, err := toLedger(ledgerVal)
	if err != nil {
		return err
	}
	challengeVal, err := wire.GetScMapValueFromSymbol(SymbolChallenge, m)
	if err != nil {
		return err
	}
	challenge, err := wire.ToSignedState(challengeVal)
	if err != nil {
		return err
	}
	if challenge.ChannelID() != ledger.ID() {
		return errors.WithMessage(channel.ErrChannelMismatch, "challenged state")
	}
	tx, err := wire.GetStringFromSymbol(SymbolTx, m)
	if err != nil {
		return err
	}
	expiresAt, err := wire.GetTimeFromSymbol(SymbolExpiresAt, m)
	if err != nil {
		return err
	}
	*o = Responder{
		status:    protocol.Status(status),
		failure:   protocol.FailureReason(failure),
		Ledger:    ledger,
		Challenge: challenge,
		ExpiresAt: expiresAt,
		Tx:        tx,
	}
	return nil
}

func (o Responder) MarshalBinary() ([]byte, error) {
	return wire.Marshal(o)
}

func (o *Responder) UnmarshalBinary(data []byte) error {
	return wire.Unmarshal(data, o)
}

// DecodeResponder deserializes a responder written by MarshalBinary.
func DecodeResponder(data []byte) (protocol.Objective, error) {
	var o Responder
	if err := o.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return o, nil
}

// ChallengerHandler is the dispatch table entry of the challenger. Challenges
// are never proposed to peers.
func ChallengerHandler() protocol.Handler {
	return protocol.Handler{
		Type:    protocol.TypeChallenger,
		Accepts: ChallengerAccepts,
		Crank:   CrankChallengerObjective,
		Decode:  DecodeChallenger,
	}
}

// ResponderHandler is the dispatch table entry of the responder.
func ResponderHandler() protocol.Handler {
	return protocol.Handler{
		Type:    protocol.TypeResponder,
		Accepts: ResponderAccepts,
		Crank:   CrankResponderObjective,
		Decode:  DecodeResponder,
	}
}
