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

package wallet

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// AddressBinaryLen is the length of the binary representation of an address,
// in bytes.
const AddressBinaryLen = common.AddressLength

// AddressFromBytes decodes an address from its binary representation.
func AddressFromBytes(data []byte) (common.Address, error) {
	if len(data) != AddressBinaryLen {
		return common.Address{}, fmt.Errorf("unexpected address length %d, want %d", len(data), AddressBinaryLen) //nolint: goerr113
	}
	return common.BytesToAddress(data), nil
}

// Cmp checks ordering of two addresses.
//
//	0 if a==b,
//
// -1 if a < b,
// +1 if a > b.
func Cmp(a, b common.Address) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// SortAddresses sorts addrs in ascending byte order.
func SortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return Cmp(addrs[i], addrs[j]) < 0
	})
}
