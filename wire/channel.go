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

package wire

import (
	"bytes"

	"github.com/pkg/errors"
	xdr3 "github.com/stellar/go-xdr/xdr3"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolChannelParams    xdr.ScSymbol = "params"
	SymbolChannelMyIndex   xdr.ScSymbol = "my_index"
	SymbolChannelWindow    xdr.ScSymbol = "window"
	SymbolChannelFunding   xdr.ScSymbol = "funding"
	SymbolChannelChallenge xdr.ScSymbol = "challenge"
	SymbolChannelClosed    xdr.ScSymbol = "closed"
)

// Channel is the persisted record of a channel.Ledger.
type Channel struct {
	Ledger channel.Ledger
}

// ToScVal converts a Channel to an xdr.ScVal.
func (c Channel) ToScVal() (xdr.ScVal, error) {
	params, err := MakeParams(c.Ledger.Constants())
	if err != nil {
		return xdr.ScVal{}, err
	}
	paramsVal, err := params.ToScVal()
	if err != nil {
		return xdr.ScVal{}, err
	}
	window, err := MakeSignedStates(c.Ledger.Window())
	if err != nil {
		return xdr.ScVal{}, err
	}
	funding, err := MakeFunding(c.Ledger.Funding())
	if err != nil {
		return xdr.ScVal{}, err
	}
	challenge, err := MakeChallenge(c.Ledger.Challenge())
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolChannelParams,
			SymbolChannelMyIndex,
			SymbolChannelWindow,
			SymbolChannelFunding,
			SymbolChannelChallenge,
			SymbolChannelClosed,
		},
		[]xdr.ScVal{
			paramsVal,
			scval.MustWrapUint32(xdr.Uint32(c.Ledger.MyIndex())),
			window,
			funding,
			challenge,
			scval.MustWrapBool(c.Ledger.Closed()),
		},
	)
}

// FromScVal converts an xdr.ScVal to a Channel.
func (c *Channel) FromScVal(v xdr.ScVal) error {
	m, err := GetSymbolScMap(v, 6) //nolint:gomnd
	if err != nil {
		return errors.WithMessage(err, "decoding channel")
	}
	paramsVal, err := GetScMapValueFromSymbol(SymbolChannelParams, m)
	if err != nil {
		return err
	}
	params, err := ParamsFromScVal(paramsVal)
	if err != nil {
		return err
	}
	myIndex, err := GetUint32FromSymbol(SymbolChannelMyIndex, m)
	if err != nil {
		return err
	}
	windowVec, err := GetVecFromSymbol(SymbolChannelWindow, m)
	if err != nil {
		return err
	}
	window, err := ToSignedStates(windowVec)
	if err != nil {
		return err
	}
	fundingVal, err := GetScMapValueFromSymbol(SymbolChannelFunding, m)
	if err != nil {
		return err
	}
	funding, err := ToFunding(fundingVal)
	if err != nil {
		return err
	}
	challengeVal, err := GetScMapValueFromSymbol(SymbolChannelChallenge, m)
	if err != nil {
		return err
	}
	challenge, err := ToChallenge(challengeVal)
	if err != nil {
		return err
	}
	closed, err := GetBoolFromSymbol(SymbolChannelClosed, m)
	if err != nil {
		return err
	}
	ledger, err := channel.RestoreLedger(ToConstants(params), int(myIndex), window, funding, challenge, closed)
	if err != nil {
		return errors.WithMessage(err, "restoring ledger")
	}
	c.Ledger = ledger
	return nil
}

func (c Channel) EncodeTo(e *xdr3.Encoder) error {
	v, err := c.ToScVal()
	if err != nil {
		return err
	}
	return v.EncodeTo(e)
}

func (c *Channel) DecodeFrom(d *xdr3.Decoder) (int, error) {
	var v xdr.ScVal
	i, err := d.Decode(&v)
	if err != nil {
		return i, err
	}
	return i, c.FromScVal(v)
}

func (c Channel) MarshalBinary() ([]byte, error) {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	err := c.EncodeTo(e)
	return buf.Bytes(), err
}

func (c *Channel) UnmarshalBinary(data []byte) error {
	d := xdr3.NewDecoder(bytes.NewReader(data))
	_, err := c.DecodeFrom(d)
	return err
}

// MarshalLedger serializes a ledger.
func MarshalLedger(l channel.Ledger) ([]byte, error) {
	return Channel{Ledger: l}.MarshalBinary()
}

// UnmarshalLedger deserializes a ledger written by MarshalLedger.
func UnmarshalLedger(data []byte) (channel.Ledger, error) {
	var c Channel
	err := c.UnmarshalBinary(data)
	return c.Ledger, err
}
