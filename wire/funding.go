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
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolNone      xdr.ScSymbol = "none"
	SymbolSome      xdr.ScSymbol = "some"
	SymbolDirect    xdr.ScSymbol = "direct"
	SymbolIndirect  xdr.ScSymbol = "indirect"
	SymbolVirtual   xdr.ScSymbol = "virtual"
	SymbolGuarantee xdr.ScSymbol = "guarantee"

	SymbolFundingAmount    xdr.ScSymbol = "amount"
	SymbolFundingFinalized xdr.ScSymbol = "finalized"

	SymbolChallengeExpiresAt xdr.ScSymbol = "expires_at"
	SymbolChallengeDisputed  xdr.ScSymbol = "disputed_states"
)

// MakeTagged wraps payload into a tagged vector. Without payload only the
// tag is written.
func MakeTagged(tag xdr.ScSymbol, payload ...xdr.ScVal) (xdr.ScVal, error) {
	if len(payload) > 1 {
		return xdr.ScVal{}, errors.New("at most one payload")
	}
	vec := append(xdr.ScVec{scval.MustWrapScSymbol(tag)}, payload...)
	return scval.WrapVec(vec)
}

// ToTagged splits a tagged vector into its tag and optional payload.
func ToTagged(v xdr.ScVal) (xdr.ScSymbol, fn.Option[xdr.ScVal], error) {
	vec, ok := v.GetVec()
	if !ok || vec == nil || len(*vec) == 0 || len(*vec) > 2 {
		return "", fn.None[xdr.ScVal](), errors.WithMessage(ErrUnexpectedType, "expected tagged vec")
	}
	tag, ok := (*vec)[0].GetSym()
	if !ok {
		return "", fn.None[xdr.ScVal](), errors.WithMessage(ErrUnexpectedType, "expected tag symbol")
	}
	if len(*vec) == 1 {
		return tag, fn.None[xdr.ScVal](), nil
	}
	return tag, fn.Some((*vec)[1]), nil
}

// MakeFunding encodes an optional funding descriptor.
func MakeFunding(f fn.Option[channel.Funding]) (xdr.ScVal, error) {
	if f.IsNone() {
		return MakeTagged(SymbolNone)
	}
	switch f := f.UnsafeFromSome().(type) {
	case channel.DirectFunding:
		amount, err := MakeAmount(f.Amount)
		if err != nil {
			return xdr.ScVal{}, err
		}
		m, err := WrapSymbolScMap(
			[]xdr.ScSymbol{SymbolFundingAmount, SymbolFundingFinalized},
			[]xdr.ScVal{amount, scval.MustWrapBool(f.Finalized)},
		)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return MakeTagged(SymbolDirect, m)
	case channel.IndirectFunding:
		return MakeTagged(SymbolIndirect, MakeHash(f.LedgerID))
	case channel.VirtualFunding:
		return MakeTagged(SymbolVirtual, MakeHash(f.JointChannelID))
	case channel.GuaranteeFunding:
		return MakeTagged(SymbolGuarantee, MakeHash(f.GuarantorChannelID))
	default:
		return xdr.ScVal{}, errors.Errorf("unknown funding type %T", f)
	}
}

func payloadHash(payload fn.Option[xdr.ScVal]) (channel.ID, error) {
	v, err := payload.UnwrapOrErr(errors.New("missing payload"))
	if err != nil {
		return channel.ID{}, err
	}
	b, ok := v.GetBytes()
	if !ok {
		return channel.ID{}, errors.WithMessage(ErrUnexpectedType, "expected bytes")
	}
	return ToHash(b)
}

// ToFunding decodes a value written by MakeFunding.
func ToFunding(v xdr.ScVal) (fn.Option[channel.Funding], error) {
	none := fn.None[channel.Funding]()
	tag, payload, err := ToTagged(v)
	if err != nil {
		return none, errors.WithMessage(err, "decoding funding")
	}
	switch tag {
	case SymbolNone:
		return none, nil
	case SymbolDirect:
		pv, err := payload.UnwrapOrErr(errors.New("missing direct funding payload"))
		if err != nil {
			return none, err
		}
		m, err := GetSymbolScMap(pv, 2) //nolint:gomnd
		if err != nil {
			return none, err
		}
		amount, err := GetAmountFromSymbol(SymbolFundingAmount, m)
		if err != nil {
			return none, err
		}
		finalized, err := GetBoolFromSymbol(SymbolFundingFinalized, m)
		if err != nil {
			return none, err
		}
		return fn.Some[channel.Funding](channel.DirectFunding{Amount: amount, Finalized: finalized}), nil
	case SymbolIndirect, SymbolVirtual, SymbolGuarantee:
		id, err := payloadHash(payload)
		if err != nil {
			return none, err
		}
		var f channel.Funding
		switch tag {
		case SymbolIndirect:
			f = channel.IndirectFunding{LedgerID: id}
		case SymbolVirtual:
			f = channel.VirtualFunding{JointChannelID: id}
		default:
			f = channel.GuaranteeFunding{GuarantorChannelID: id}
		}
		return fn.Some(f), nil
	default:
		return none, errors.Errorf("unknown funding tag %q", tag)
	}
}

// MakeChallenge encodes an optional challenge record.
func MakeChallenge(c fn.Option[channel.ChallengeRecord]) (xdr.ScVal, error) {
	if c.IsNone() {
		return MakeTagged(SymbolNone)
	}
	rec := c.UnsafeFromSome()
	states, err := MakeSignedStates(rec.DisputedStates)
	if err != nil {
		return xdr.ScVal{}, err
	}
	m, err := WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolChallengeExpiresAt, SymbolChallengeDisputed},
		[]xdr.ScVal{MakeTime(rec.ExpiresAt), states},
	)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return MakeTagged(SymbolSome, m)
}

// ToChallenge decodes a value written by MakeChallenge.
func ToChallenge(v xdr.ScVal) (fn.Option[channel.ChallengeRecord], error) {
	none := fn.None[channel.ChallengeRecord]()
	tag, payload, err := ToTagged(v)
	if err != nil {
		return none, errors.WithMessage(err, "decoding challenge")
	}
	if tag == SymbolNone {
		return none, nil
	}
	if tag != SymbolSome {
		return none, errors.Errorf("unknown challenge tag %q", tag)
	}
	pv, err := payload.UnwrapOrErr(errors.New("missing challenge payload"))
	if err != nil {
		return none, err
	}
	m, err := GetSymbolScMap(pv, 2) //nolint:gomnd
	if err != nil {
		return none, err
	}
	expiresAt, err := GetTimeFromSymbol(SymbolChallengeExpiresAt, m)
	if err != nil {
		return none, err
	}
	vec, err := GetVecFromSymbol(SymbolChallengeDisputed, m)
	if err != nil {
		return none, err
	}
	states, err := ToSignedStates(vec)
	if err != nil {
		return none, err
	}
	return fn.Some(channel.ChallengeRecord{ExpiresAt: expiresAt, DisputedStates: states}), nil
}
