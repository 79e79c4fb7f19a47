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
)

// MakeOption encodes o as a tagged none or some value.
func MakeOption[A any](o fn.Option[A], encode func(A) (xdr.ScVal, error)) (xdr.ScVal, error) {
	if o.IsNone() {
		return MakeTagged(SymbolNone)
	}
	v, err := encode(o.UnsafeFromSome())
	if err != nil {
		return xdr.ScVal{}, err
	}
	return MakeTagged(SymbolSome, v)
}

// ToOption decodes a value written by MakeOption.
func ToOption[A any](v xdr.ScVal, decode func(xdr.ScVal) (A, error)) (fn.Option[A], error) {
	none := fn.None[A]()
	tag, payload, err := ToTagged(v)
	if err != nil {
		return none, err
	}
	switch tag {
	case SymbolNone:
		return none, nil
	case SymbolSome:
		pv, err := payload.UnwrapOrErr(errors.New("missing optional payload"))
		if err != nil {
			return none, err
		}
		a, err := decode(pv)
		if err != nil {
			return none, err
		}
		return fn.Some(a), nil
	default:
		return none, errors.WithMessagef(ErrUnexpectedType, "option tag %s", tag)
	}
}

// GetOptionFromSymbol decodes the optional value stored under key.
func GetOptionFromSymbol[A any](key xdr.ScSymbol, m xdr.ScMap, decode func(xdr.ScVal) (A, error)) (fn.Option[A], error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return fn.None[A](), err
	}
	o, err := ToOption(v, decode)
	if err != nil {
		return o, errors.WithMessagef(err, "decoding %s", key)
	}
	return o, nil
}

// MakeOptionalState encodes an optional unsigned state.
func MakeOptionalState(o fn.Option[channel.State]) (xdr.ScVal, error) {
	return MakeOption(o, MakeStateScVal)
}

// MakeOptionalSignedState encodes an optional signed state.
func MakeOptionalSignedState(o fn.Option[channel.SignedState]) (xdr.ScVal, error) {
	return MakeOption(o, MakeSignedState)
}
