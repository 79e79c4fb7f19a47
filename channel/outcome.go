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
	"fmt"
	"math/big"
)

// OutcomeType tags the variants of Outcome.
type OutcomeType uint8

const (
	OutcomeTypeAllocation OutcomeType = iota // ordered payouts
	OutcomeTypeGuarantee                     // backs another channel
)

func (t OutcomeType) String() string {
	switch t {
	case OutcomeTypeAllocation:
		return "allocation"
	case OutcomeTypeGuarantee:
		return "guarantee"
	default:
		return fmt.Sprintf("OutcomeType(%d)", uint8(t))
	}
}

// Outcome is the division of a channel's funds. It is either an Allocation
// or a Guarantee.
type Outcome interface {
	Type() OutcomeType
	Clone() Outcome
	outcome()
}

// AllocationItem pays Amount to Destination.
type AllocationItem struct {
	Destination Destination
	Amount      *big.Int
}

// Allocation is an ordered list of payouts.
type Allocation []AllocationItem

// Guarantee backs the channel Target with the funds of the guarantor
// channel, paying out to Destinations in priority order.
type Guarantee struct {
	Target       ID
	Destinations []Destination
}

func (Allocation) outcome() {}
func (Guarantee) outcome()  {}

// Type implements Outcome.
func (Allocation) Type() OutcomeType { return OutcomeTypeAllocation }

// Type implements Outcome.
func (Guarantee) Type() OutcomeType { return OutcomeTypeGuarantee }

// Clone implements Outcome.
func (a Allocation) Clone() Outcome {
	return a.CloneAllocation()
}

// CloneAllocation returns a deep copy of a.
func (a Allocation) CloneAllocation() Allocation {
	if a == nil {
		return nil
	}
	clone := make(Allocation, len(a))
	for i, item := range a {
		clone[i] = AllocationItem{Destination: item.Destination, Amount: cloneInt(item.Amount)}
	}
	return clone
}

// Clone implements Outcome.
func (g Guarantee) Clone() Outcome {
	return Guarantee{
		Target:       g.Target,
		Destinations: append([]Destination(nil), g.Destinations...),
	}
}

// Total returns the sum of all amounts.
func (a Allocation) Total() *big.Int {
	total := new(big.Int)
	for _, item := range a {
		if item.Amount != nil {
			total.Add(total, item.Amount)
		}
	}
	return total
}

// Amount returns the amount paid to dest, or zero.
func (a Allocation) Amount(dest Destination) *big.Int {
	for _, item := range a {
		if item.Destination == dest && item.Amount != nil {
			return new(big.Int).Set(item.Amount)
		}
	}
	return new(big.Int)
}

// Equal reports whether a and b pay the same amounts in the same order.
func (a Allocation) Equal(b Allocation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Destination != b[i].Destination || cmpInt(a[i].Amount, b[i].Amount) != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether g and h are the same guarantee.
func (g Guarantee) Equal(h Guarantee) bool {
	if g.Target != h.Target || len(g.Destinations) != len(h.Destinations) {
		return false
	}
	for i := range g.Destinations {
		if g.Destinations[i] != h.Destinations[i] {
			return false
		}
	}
	return true
}

// AsAllocation returns o as an Allocation.
func AsAllocation(o Outcome) (Allocation, bool) {
	a, ok := o.(Allocation)
	return a, ok
}

func outcomesEqual(a, b Outcome) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Allocation:
		y, ok := b.(Allocation)
		return ok && x.Equal(y)
	case Guarantee:
		y, ok := b.(Guarantee)
		return ok && x.Equal(y)
	default:
		panic(fmt.Sprintf("unknown outcome type %T", a))
	}
}
