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

//nolint:golint
package channel

import (
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// This part of the package encodes channels the same way the adjudicator
// contract does with abi.encode().

var (
	abiUint8     = mustNewType("uint8")
	abiUint64    = mustNewType("uint64")
	abiUint256   = mustNewType("uint256")
	abiUint256s  = mustNewType("uint256[]")
	abiBool      = mustNewType("bool")
	abiBytes     = mustNewType("bytes")
	abiBytes32   = mustNewType("bytes32")
	abiBytes32s  = mustNewType("bytes32[]")
	abiAddress   = mustNewType("address")
	abiAddresses = mustNewType("address[]")
	abiString    = mustNewType("string")
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		log.Panicf("creating abi type %s: %v", t, err)
	}
	return typ
}

func arguments(types ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// EncodeChannelID encodes the fields the channel ID is derived from.
func EncodeChannelID(c Constants) ([]byte, error) {
	addrs := make([]common.Address, len(c.Participants))
	for i, p := range c.Participants {
		addrs[i] = p.SigningAddress
	}
	chainID := c.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	return arguments(abiUint256, abiAddresses, abiUint256).Pack(
		chainID,
		addrs,
		new(big.Int).SetUint64(c.ChannelNonce),
	)
}

// EncodeOutcome encodes an outcome as with abi.encode().
func EncodeOutcome(o Outcome) ([]byte, error) {
	switch out := o.(type) {
	case Allocation:
		dests := make([]common.Hash, len(out))
		amounts := make([]*big.Int, len(out))
		for i, item := range out {
			dests[i] = item.Destination
			amounts[i] = item.Amount
			if amounts[i] == nil {
				amounts[i] = new(big.Int)
			}
		}
		return arguments(abiUint8, abiBytes32s, abiUint256s).Pack(
			uint8(OutcomeTypeAllocation), dests, amounts)
	case Guarantee:
		dests := append([]common.Hash{}, out.Destinations...)
		return arguments(abiUint8, abiBytes32, abiBytes32s).Pack(
			uint8(OutcomeTypeGuarantee), out.Target, dests)
	case nil:
		return nil, errors.New("nil outcome")
	default:
		return nil, fmt.Errorf("unknown outcome type %T", o) //nolint: goerr113
	}
}

// EncodeState encodes the state as with abi.encode() in the adjudicator.
func EncodeState(s State) ([]byte, error) {
	outcome, err := EncodeOutcome(s.Outcome)
	if err != nil {
		return nil, errors.WithMessage(err, "encoding outcome")
	}
	return arguments(abiBytes32, abiBytes, abiBytes32, abiUint64, abiBool, abiAddress, abiUint64).Pack(
		s.ChannelID(),
		append([]byte{}, s.AppData...),
		hashBytes(outcome),
		s.TurnNum,
		s.IsFinal,
		s.AppDefinition,
		s.ChallengeDuration,
	)
}

// EncodeChallenge encodes the message a challenger signs to register a
// challenge on the state with hash stateHash.
func EncodeChallenge(stateHash common.Hash) ([]byte, error) {
	return arguments(abiBytes32, abiString).Pack(stateHash, "forceMove")
}
