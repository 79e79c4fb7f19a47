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

package channel

import (
	"math/big"

	"github.com/pkg/errors"
)

// AllocateToTarget moves the deducted amounts out of the ledger allocation
// into a single new entry paying target. Entries keep their order, the target
// entry is appended last and zero-amount entries are dropped. The total of
// the allocation is preserved.
func AllocateToTarget(ledger Allocation, deductions Allocation, target ID) (Allocation, error) {
	result := ledger.CloneAllocation()
	total := new(big.Int)
	for _, d := range deductions {
		if d.Amount == nil || d.Amount.Sign() == 0 {
			continue
		}
		if d.Amount.Sign() < 0 {
			return nil, errors.Errorf("negative deduction for %s", d.Destination.Hex())
		}
		idx := -1
		for i, item := range result {
			if item.Destination == d.Destination {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errors.WithMessage(ErrDestinationMissing, d.Destination.Hex())
		}
		remaining := new(big.Int)
		if result[idx].Amount != nil {
			remaining.Set(result[idx].Amount)
		}
		remaining.Sub(remaining, d.Amount)
		if remaining.Sign() < 0 {
			return nil, errors.WithMessagef(ErrInsufficientFunds, "%s short by %s", d.Destination.Hex(), new(big.Int).Neg(remaining))
		}
		result[idx].Amount = remaining
		total.Add(total, d.Amount)
	}
	result = append(result, AllocationItem{Destination: target, Amount: total})

	out := make(Allocation, 0, len(result))
	for _, item := range result {
		if item.Amount != nil && item.Amount.Sign() > 0 {
			out = append(out, item)
		}
	}
	return out, nil
}
