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
	SymbolParticipantAddr xdr.ScSymbol = "addr"
	SymbolParticipantDest xdr.ScSymbol = "dest"
	SymbolParticipantID   xdr.ScSymbol = "id"
)

// Participant is the wire form of channel.Participant.
type Participant struct {
	SigningAddress xdr.ScBytes
	Destination    xdr.ScBytes
	ParticipantID  xdr.ScString
}

// ToScVal encodes a Participant to an xdr.ScVal.
func (p Participant) ToScVal() (xdr.ScVal, error) {
	if len(p.SigningAddress) != common.AddressLength {
		return xdr.ScVal{}, errors.New("invalid signing address length")
	}
	if len(p.Destination) != common.HashLength {
		return xdr.ScVal{}, errors.New("invalid destination length")
	}
	addr, err := scval.WrapScBytes(p.SigningAddress)
	if err != nil {
		return xdr.ScVal{}, err
	}
	dest, err := scval.WrapScBytes(p.Destination)
	if err != nil {
		return xdr.ScVal{}, err
	}
	id, err := scval.WrapScString(p.ParticipantID)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolParticipantAddr, SymbolParticipantDest, SymbolParticipantID},
		[]xdr.ScVal{addr, dest, id},
	)
}

// FromScVal decodes a Participant from an xdr.ScVal.
func (p *Participant) FromScVal(v xdr.ScVal) error {
	m, err := GetSymbolScMap(v, 3) //nolint:gomnd
	if err != nil {
		return errors.WithMessage(err, "decoding participant")
	}
	addr, err := GetBytesFromSymbol(SymbolParticipantAddr, m)
	if err != nil {
		return err
	}
	if len(addr) != common.AddressLength {
		return errors.New("invalid signing address length")
	}
	dest, err := GetBytesFromSymbol(SymbolParticipantDest, m)
	if err != nil {
		return err
	}
	if len(dest) != common.HashLength {
		return errors.New("invalid destination length")
	}
	id, err := GetStringFromSymbol(SymbolParticipantID, m)
	if err != nil {
		return err
	}
	p.SigningAddress = addr
	p.Destination = dest
	p.ParticipantID = xdr.ScString(id)
	return nil
}

func ParticipantFromScVal(v xdr.ScVal) (Participant, error) {
	var p Participant
	err := (&p).FromScVal(v)
	return p, err
}

func MakeParticipant(p channel.Participant) Participant {
	return Participant{
		SigningAddress: append(xdr.ScBytes{}, p.SigningAddress.Bytes()...),
		Destination:    append(xdr.ScBytes{}, p.Destination.Bytes()...),
		ParticipantID:  xdr.ScString(p.ParticipantID),
	}
}

func ToParticipant(p Participant) channel.Participant {
	return channel.Participant{
		SigningAddress: common.BytesToAddress(p.SigningAddress),
		Destination:    common.BytesToHash(p.Destination),
		ParticipantID:  string(p.ParticipantID),
	}
}
