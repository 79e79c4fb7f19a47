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
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/wire/scval"
)

// Outcomes are encoded as tagged vectors: the variant symbol followed by
// its payload.
const (
	SymbolOutcomeNone       xdr.ScSymbol = "none"
	SymbolOutcomeAllocation xdr.ScSymbol = "allocation"
	SymbolOutcomeGuarantee  xdr.ScSymbol = "guarantee"

	SymbolItemDestination xdr.ScSymbol = "destination"
	SymbolItemAmount      xdr.ScSymbol = "amount"

	SymbolGuaranteeTarget       xdr.ScSymbol = "target"
	SymbolGuaranteeDestinations xdr.ScSymbol = "destinations"
)

func makeAllocationItem(item channel.AllocationItem) (xdr.ScVal, error) {
	amount, err := MakeAmount(item.Amount)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolItemDestination, SymbolItemAmount},
		[]xdr.ScVal{MakeHash(item.Destination), amount},
	)
}

func toAllocationItem(v xdr.ScVal) (channel.AllocationItem, error) {
	m, err := GetSymbolScMap(v, 2) //nolint:gomnd
	if err != nil {
		return channel.AllocationItem{}, errors.WithMessage(err, "decoding allocation item")
	}
	dest, err := GetHashFromSymbol(SymbolItemDestination, m)
	if err != nil {
		return channel.AllocationItem{}, err
	}
	amount, err := GetAmountFromSymbol(SymbolItemAmount, m)
	if err != nil {
		return channel.AllocationItem{}, err
	}
	return channel.AllocationItem{Destination: dest, Amount: amount}, nil
}

// MakeAllocation encodes an allocation as a vector of items.
func MakeAllocation(a channel.Allocation) (xdr.ScVal, error) {
	items := make(xdr.ScVec, len(a))
	for i, item := range a {
		v, err := makeAllocationItem(item)
		if err != nil {
			return xdr.ScVal{}, errors.WithMessagef(err, "allocation item %d", i)
		}
		items[i] = v
	}
	return scval.WrapVec(items)
}

// ToAllocation decodes a vector of allocation items.
func ToAllocation(v xdr.ScVal) (channel.Allocation, error) {
	vec, ok := v.GetVec()
	if !ok || vec == nil {
		return nil, errors.WithMessage(ErrUnexpectedType, "expected vec decoding allocation")
	}
	a := make(channel.Allocation, len(*vec))
	for i, iv := range *vec {
		item, err := toAllocationItem(iv)
		if err != nil {
			return nil, errors.WithMessagef(err, "allocation item %d", i)
		}
		a[i] = item
	}
	return a, nil
}

func makeGuarantee(g channel.Guarantee) (xdr.ScVal, error) {
	dests := make(xdr.ScVec, len(g.Destinations))
	for i, d := range g.Destinations {
		dests[i] = MakeHash(d)
	}
	destsVal, err := scval.WrapVec(dests)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolGuaranteeTarget, SymbolGuaranteeDestinations},
		[]xdr.ScVal{MakeHash(g.Target), destsVal},
	)
}

func toGuarantee(v xdr.ScVal) (channel.Guarantee, error) {
	m, err := GetSymbolScMap(v, 2) //nolint:gomnd
	if err != nil {
		return channel.Guarantee{}, errors.WithMessage(err, "decoding guarantee")
	}
	target, err := GetHashFromSymbol(SymbolGuaranteeTarget, m)
	if err != nil {
		return channel.Guarantee{}, err
	}
	vec, err := GetVecFromSymbol(SymbolGuaranteeDestinations, m)
	if err != nil {
		return channel.Guarantee{}, err
	}
	dests := make([]channel.Destination, len(vec))
	for i, dv := range vec {
		b, ok := dv.GetBytes()
		if !ok {
			return channel.Guarantee{}, errors.WithMessage(ErrUnexpectedType, "expected bytes decoding destination")
		}
		if dests[i], err = ToHash(b); err != nil {
			return channel.Guarantee{}, err
		}
	}
	return channel.Guarantee{Target: target, Destinations: dests}, nil
}

// MakeOutcome encodes an outcome. A nil outcome is encoded as the none
// variant.
func MakeOutcome(o channel.Outcome) (xdr.ScVal, error) {
	var (
		tag     xdr.ScSymbol
		payload xdr.ScVal
		err     error
	)
	switch o := o.(type) {
	case nil:
		return scval.WrapVec(xdr.ScVec{scval.MustWrapScSymbol(SymbolOutcomeNone)})
	case channel.Allocation:
		tag = SymbolOutcomeAllocation
		payload, err = MakeAllocation(o)
	case channel.Guarantee:
		tag = SymbolOutcomeGuarantee
		payload, err = makeGuarantee(o)
	default:
		return xdr.ScVal{}, errors.Errorf("unknown outcome type %T", o)
	}
	if err != nil {
		return xdr.ScVal{}, err
	}
	return scval.WrapVec(xdr.ScVec{scval.MustWrapScSymbol(tag), payload})
}

// ToOutcome decodes an outcome written by MakeOutcome.
func ToOutcome(v xdr.ScVal) (channel.Outcome, error) {
	vec, ok := v.GetVec()
	if !ok || vec == nil || len(*vec) == 0 {
		return nil, errors.WithMessage(ErrUnexpectedType, "expected tagged vec decoding outcome")
	}
	tag, ok := (*vec)[0].GetSym()
	if !ok {
		return nil, errors.WithMessage(ErrUnexpectedType, "expected outcome tag")
	}
	switch {
	case tag == SymbolOutcomeNone && len(*vec) == 1:
		return nil, nil
	case tag == SymbolOutcomeAllocation && len(*vec) == 2: //nolint:gomnd
		return ToAllocation((*vec)[1])
	case tag == SymbolOutcomeGuarantee && len(*vec) == 2: //nolint:gomnd
		return toGuarantee((*vec)[1])
	default:
		return nil, errors.Errorf("invalid outcome variant %q of length %d", tag, len(*vec))
	}
}
