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
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolParamsChainID           xdr.ScSymbol = "chain_id"
	SymbolParamsNonce             xdr.ScSymbol = "nonce"
	SymbolParamsParticipants      xdr.ScSymbol = "participants"
	SymbolParamsAppDefinition     xdr.ScSymbol = "app_definition"
	SymbolParamsChallengeDuration xdr.ScSymbol = "challenge_duration"
)

// Params is the wire form of channel.Constants.
type Params struct {
	ChainID           xdr.UInt256Parts
	Nonce             xdr.Uint64
	Participants      []Participant
	AppDefinition     xdr.ScBytes
	ChallengeDuration xdr.Uint64
}

func (p Params) ToScVal() (xdr.ScVal, error) {
	if len(p.AppDefinition) != common.AddressLength {
		return xdr.ScVal{}, errors.New("invalid app definition length")
	}
	chainID, err := scval.WrapUInt256Parts(p.ChainID)
	if err != nil {
		return xdr.ScVal{}, err
	}
	nonce, err := scval.WrapUint64(p.Nonce)
	if err != nil {
		return xdr.ScVal{}, err
	}
	parts := make(xdr.ScVec, len(p.Participants))
	for i, part := range p.Participants {
		if parts[i], err = part.ToScVal(); err != nil {
			return xdr.ScVal{}, err
		}
	}
	participants, err := scval.WrapVec(parts)
	if err != nil {
		return xdr.ScVal{}, err
	}
	app, err := scval.WrapScBytes(p.AppDefinition)
	if err != nil {
		return xdr.ScVal{}, err
	}
	challengeDuration, err := scval.WrapUint64(p.ChallengeDuration)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolParamsChainID,
			SymbolParamsNonce,
			SymbolParamsParticipants,
			SymbolParamsAppDefinition,
			SymbolParamsChallengeDuration,
		},
		[]xdr.ScVal{chainID, nonce, participants, app, challengeDuration},
	)
}

func (p *Params) FromScVal(v xdr.ScVal) error {
	m, err := GetSymbolScMap(v, 5) //nolint:gomnd
	if err != nil {
		return errors.WithMessage(err, "decoding params")
	}
	chainIDVal, err := GetScMapValueFromSymbol(SymbolParamsChainID, m)
	if err != nil {
		return err
	}
	chainID, ok := chainIDVal.GetU256()
	if !ok {
		return errors.New("expected u256 decoding chain id")
	}
	nonce, err := GetUint64FromSymbol(SymbolParamsNonce, m)
	if err != nil {
		return err
	}
	partsVec, err := GetVecFromSymbol(SymbolParamsParticipants, m)
	if err != nil {
		return err
	}
	parts := make([]Participant, len(partsVec))
	for i, pv := range partsVec {
		if parts[i], err = ParticipantFromScVal(pv); err != nil {
			return err
		}
	}
	app, err := GetBytesFromSymbol(SymbolParamsAppDefinition, m)
	if err != nil {
		return err
	}
	if len(app) != common.AddressLength {
		return errors.New("invalid app definition length")
	}
	challengeDuration, err := GetUint64FromSymbol(SymbolParamsChallengeDuration, m)
	if err != nil {
		return err
	}
	p.ChainID = chainID
	p.Nonce = xdr.Uint64(nonce)
	p.Participants = parts
	p.AppDefinition = app
	p.ChallengeDuration = xdr.Uint64(challengeDuration)
	return nil
}

func (p Params) MarshalBinary() ([]byte, error) {
	return Marshal(p)
}

func (p *Params) UnmarshalBinary(data []byte) error {
	return Unmarshal(data, p)
}

func ParamsFromScVal(v xdr.ScVal) (Params, error) {
	var p Params
	err := (&p).FromScVal(v)
	return p, err
}

func MakeParams(c channel.Constants) (Params, error) {
	chainID, err := MakeUInt256Parts(c.ChainID)
	if err != nil {
		return Params{}, errors.WithMessage(err, "chain id")
	}
	parts := make([]Participant, len(c.Participants))
	for i, p := range c.Participants {
		parts[i] = MakeParticipant(p)
	}
	return Params{
		ChainID:           chainID,
		Nonce:             xdr.Uint64(c.ChannelNonce),
		Participants:      parts,
		AppDefinition:     append(xdr.ScBytes{}, c.AppDefinition.Bytes()...),
		ChallengeDuration: xdr.Uint64(c.ChallengeDuration),
	}, nil
}

func ToConstants(p Params) channel.Constants {
	parts := make([]channel.Participant, len(p.Participants))
	for i, part := range p.Participants {
		parts[i] = ToParticipant(part)
	}
	return channel.Constants{
		ChainID:           ToBigInt(p.ChainID),
		ChannelNonce:      uint64(p.Nonce),
		Participants:      parts,
		AppDefinition:     common.BytesToAddress(p.AppDefinition),
		ChallengeDuration: uint64(p.ChallengeDuration),
	}
}
