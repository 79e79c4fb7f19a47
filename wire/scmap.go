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
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/wire/scval"
)

var ErrUnexpectedType = errors.New("unexpected xdr value type")

// MakeSymbolScMap creates a xdr.ScMap from a slice of symbols and a slice of values.
// The entries are sorted lexicographically by symbol. We expect that keys does not contain duplicates.
func MakeSymbolScMap(keys []xdr.ScSymbol, values []xdr.ScVal) (xdr.ScMap, error) {
	if len(keys) != len(values) {
		return xdr.ScMap{}, errors.New("keys and values must have the same length")
	}
	m := make(xdr.ScMap, len(keys))
	for i, k := range keys {
		m[i] = xdr.ScMapEntry{
			Key: scval.MustWrapScSymbol(k),
			Val: values[i],
		}
	}
	sort.Slice(m, func(i, j int) bool {
		return strings.Compare(string(m[i].Key.MustSym()), string(m[j].Key.MustSym())) < 0
	})
	return m, nil
}

// WrapSymbolScMap is MakeSymbolScMap followed by wrapping the map into a value.
func WrapSymbolScMap(keys []xdr.ScSymbol, values []xdr.ScVal) (xdr.ScVal, error) {
	m, err := MakeSymbolScMap(keys, values)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return scval.WrapScMap(m)
}

func GetScMapEntry(key xdr.ScVal, m xdr.ScMap) (xdr.ScMapEntry, error) {
	for _, v := range m {
		if v.Key.Equals(key) {
			return v, nil
		}
	}

	return xdr.ScMapEntry{}, errors.New("key not found")
}

func GetMapValue(key xdr.ScVal, m xdr.ScMap) (xdr.ScVal, error) {
	entry, err := GetScMapEntry(key, m)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return entry.Val, nil
}

func GetScMapValueFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (xdr.ScVal, error) {
	keyVal, err := scval.WrapScSymbol(key)
	if err != nil {
		return xdr.ScVal{}, err
	}
	v, err := GetMapValue(keyVal, m)
	return v, errors.WithMessage(err, string(key))
}

// GetSymbolScMap returns the map held by v and checks that it has size
// entries.
func GetSymbolScMap(v xdr.ScVal, size int) (xdr.ScMap, error) {
	m, ok := v.GetMap()
	if !ok || m == nil {
		return nil, errors.WithMessage(ErrUnexpectedType, "expected map")
	}
	if len(*m) != size {
		return nil, errors.Errorf("expected map of length %d, got %d", size, len(*m))
	}
	return *m, nil
}

func GetBytesFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (xdr.ScBytes, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return nil, err
	}
	b, ok := v.GetBytes()
	if !ok {
		return nil, errors.WithMessagef(ErrUnexpectedType, "%s: expected bytes", key)
	}
	return b, nil
}

func GetStringFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (string, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return "", err
	}
	s, ok := v.GetStr()
	if !ok {
		return "", errors.WithMessagef(ErrUnexpectedType, "%s: expected string", key)
	}
	return string(s), nil
}

func GetUint64FromSymbol(key xdr.ScSymbol, m xdr.ScMap) (uint64, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return 0, err
	}
	u, ok := v.GetU64()
	if !ok {
		return 0, errors.WithMessagef(ErrUnexpectedType, "%s: expected uint64", key)
	}
	return uint64(u), nil
}

func GetUint32FromSymbol(key xdr.ScSymbol, m xdr.ScMap) (uint32, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return 0, err
	}
	u, ok := v.GetU32()
	if !ok {
		return 0, errors.WithMessagef(ErrUnexpectedType, "%s: expected uint32", key)
	}
	return uint32(u), nil
}

func GetInt64FromSymbol(key xdr.ScSymbol, m xdr.ScMap) (int64, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return 0, err
	}
	i, ok := v.GetI64()
	if !ok {
		return 0, errors.WithMessagef(ErrUnexpectedType, "%s: expected int64", key)
	}
	return int64(i), nil
}

func GetBoolFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (bool, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return false, err
	}
	b, ok := v.GetB()
	if !ok {
		return false, errors.WithMessagef(ErrUnexpectedType, "%s: expected bool", key)
	}
	return b, nil
}

func GetVecFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (xdr.ScVec, error) {
	v, err := GetScMapValueFromSymbol(key, m)
	if err != nil {
		return nil, err
	}
	vec, ok := v.GetVec()
	if !ok || vec == nil {
		return nil, errors.WithMessagef(ErrUnexpectedType, "%s: expected vec", key)
	}
	return *vec, nil
}
