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
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/wire/scval"
)

// MaxAmount is the largest amount that can be represented in the wire format.
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)) //nolint:gomnd

// MakeUInt256Parts converts a big.Int to xdr.UInt256Parts.
// It returns an error if the big.Int is negative or too large.
//
//nolint:gomnd
func MakeUInt256Parts(i *big.Int) (xdr.UInt256Parts, error) {
	if i == nil {
		i = new(big.Int)
	}
	if i.Sign() < 0 {
		return xdr.UInt256Parts{}, errors.New("expected non-negative amount")
	}
	if i.Cmp(MaxAmount) > 0 {
		return xdr.UInt256Parts{}, errors.New("amount too large")
	}
	b := i.FillBytes(make([]byte, 32))
	return xdr.UInt256Parts{
		HiHi: xdr.Uint64(binary.BigEndian.Uint64(b[0:8])),
		HiLo: xdr.Uint64(binary.BigEndian.Uint64(b[8:16])),
		LoHi: xdr.Uint64(binary.BigEndian.Uint64(b[16:24])),
		LoLo: xdr.Uint64(binary.BigEndian.Uint64(b[24:32])),
	}, nil
}

// ToBigInt converts xdr.UInt256Parts to a big.Int.
//
//nolint:gomnd
func ToBigInt(p xdr.UInt256Parts) *big.Int {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[0:8], uint64(p.HiHi))
	binary.BigEndian.PutUint64(b[8:16], uint64(p.HiLo))
	binary.BigEndian.PutUint64(b[16:24], uint64(p.LoHi))
	binary.BigEndian.PutUint64(b[24:32], uint64(p.LoLo))
	return new(big.Int).SetBytes(b)
}

// MakeAmount wraps an amount into a u256 value.
func MakeAmount(i *big.Int) (xdr.ScVal, error) {
	parts, err := MakeUInt256Parts(i)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return scval.WrapUInt256Parts(parts)
}

// ToAmount unwraps a u256 value.
func ToAmount(v xdr.ScVal) (*big.Int, error) {
	parts, ok := v.GetU256()
	if !ok {
		return nil, errors.WithMessage(ErrUnexpectedType, "expected u256")
	}
	return ToBigInt(parts), nil
}

func GetAmountFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (*big.Int, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return nil, err
	}
	a, err := ToAmount(v)
	return a, errors.WithMessage(err, string(key))
}

// MakeHash wraps a 32 byte hash.
func MakeHash(h common.Hash) xdr.ScVal {
	return scval.MustWrapScBytes(append(xdr.ScBytes{}, h.Bytes()...))
}

func ToHash(b xdr.ScBytes) (common.Hash, error) {
	if len(b) != common.HashLength {
		return common.Hash{}, errors.Errorf("expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func GetHashFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (common.Hash, error) {
	b, err := GetBytesFromSymbol(key, m)
	if err != nil {
		return common.Hash{}, err
	}
	h, err := ToHash(b)
	return h, errors.WithMessage(err, string(key))
}

// MakeAddress wraps a 20 byte address.
func MakeAddress(a common.Address) xdr.ScVal {
	return scval.MustWrapScBytes(append(xdr.ScBytes{}, a.Bytes()...))
}

func GetAddressFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (common.Address, error) {
	b, err := GetBytesFromSymbol(key, m)
	if err != nil {
		return common.Address{}, err
	}
	if len(b) != common.AddressLength {
		return common.Address{}, errors.Errorf("%s: expected %d bytes, got %d", key, common.AddressLength, len(b))
	}
	return common.BytesToAddress(b), nil
}

// MakeTime encodes t as nanoseconds since the epoch. The zero time is
// encoded as 0.
func MakeTime(t time.Time) xdr.ScVal {
	if t.IsZero() {
		return scval.MustWrapInt64(0)
	}
	return scval.MustWrapInt64(xdr.Int64(t.UnixNano()))
}

func GetTimeFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (time.Time, error) {
	ns, err := GetInt64FromSymbol(key, m)
	if err != nil || ns == 0 {
		return time.Time{}, err
	}
	return time.Unix(0, ns), nil
}
