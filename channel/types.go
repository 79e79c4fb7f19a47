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
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// ID uniquely identifies a channel.
	ID = common.Hash

	// Destination is a payout target: a left-padded address or a channel ID.
	Destination = common.Hash
)

// AddressToDestination left-pads addr to a Destination.
func AddressToDestination(addr common.Address) Destination {
	return common.BytesToHash(addr.Bytes())
}

// Participant is a channel member.
type Participant struct {
	SigningAddress common.Address
	Destination    Destination
	// ParticipantID addresses wire messages to this participant.
	ParticipantID string
}

// Constants identify a channel and never change during its lifetime.
type Constants struct {
	ChainID           *big.Int
	ChannelNonce      uint64
	Participants      []Participant
	AppDefinition     common.Address
	ChallengeDuration uint64 // seconds
}

// NumParts returns the number of participants.
func (c Constants) NumParts() int {
	return len(c.Participants)
}

// ID calculates the channel ID of c.
func (c Constants) ID() ID {
	return CalcID(c)
}

// IndexOf returns the index of the participant signing with addr, or -1.
func (c Constants) IndexOf(addr common.Address) int {
	for i, p := range c.Participants {
		if p.SigningAddress == addr {
			return i
		}
	}
	return -1
}

// Mover returns the participant allowed to sign turnNum.
func (c Constants) Mover(turnNum uint64) Participant {
	return c.Participants[turnNum%uint64(len(c.Participants))]
}

// Clone returns a deep copy of c.
func (c Constants) Clone() Constants {
	clone := c
	clone.ChainID = cloneInt(c.ChainID)
	clone.Participants = append([]Participant(nil), c.Participants...)
	return clone
}

// Equal reports whether c and other describe the same channel.
func (c Constants) Equal(other Constants) bool {
	if cmpInt(c.ChainID, other.ChainID) != 0 ||
		c.ChannelNonce != other.ChannelNonce ||
		c.AppDefinition != other.AppDefinition ||
		c.ChallengeDuration != other.ChallengeDuration ||
		len(c.Participants) != len(other.Participants) {
		return false
	}
	for i := range c.Participants {
		if c.Participants[i] != other.Participants[i] {
			return false
		}
	}
	return true
}

// State is one entry of a channel.
type State struct {
	Constants
	TurnNum uint64
	IsFinal bool
	Outcome Outcome
	AppData []byte
}

// ChannelID returns the ID of the channel the state belongs to.
func (s State) ChannelID() ID {
	return s.Constants.ID()
}

// Hash returns the hash signed by participants.
func (s State) Hash() common.Hash {
	return HashState(s)
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	clone := s
	clone.Constants = s.Constants.Clone()
	if s.Outcome != nil {
		clone.Outcome = s.Outcome.Clone()
	}
	if s.AppData != nil {
		clone.AppData = append([]byte{}, s.AppData...)
	}
	return clone
}

// Equal reports whether s and other are the same state.
func (s State) Equal(other State) bool {
	return s.TurnNum == other.TurnNum &&
		s.IsFinal == other.IsFinal &&
		bytes.Equal(s.AppData, other.AppData) &&
		s.Constants.Equal(other.Constants) &&
		outcomesEqual(s.Outcome, other.Outcome)
}

// WithTurnNum returns a copy of s at turnNum.
func (s State) WithTurnNum(turnNum uint64) State {
	clone := s.Clone()
	clone.TurnNum = turnNum
	return clone
}

// WithOutcome returns a copy of s carrying outcome.
func (s State) WithOutcome(outcome Outcome) State {
	clone := s.Clone()
	clone.Outcome = outcome.Clone()
	return clone
}

// WithFinal returns a final copy of s.
func (s State) WithFinal() State {
	clone := s.Clone()
	clone.IsFinal = true
	return clone
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func cmpInt(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}
