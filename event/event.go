// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"fmt"
	"math/big"
	"time"

	"perun.network/perun-nitro-engine/channel"
)

type EventType int

const (
	EventTypeFundingUpdated      EventType = iota // holdings observed on chain
	EventTypeDepositSubmitted                     // our deposit transaction was broadcast
	EventTypeDepositFailed                        // our deposit transaction did not land
	EventTypeChallengeRegistered                  // a challenge was registered on chain
	EventTypeChallengeCleared                     // a challenge was answered on chain
	EventTypeConcluded                            // the channel was concluded on chain
	EventTypeChallengeExpired                     // the challenge window elapsed
	EventTypeRespondWithMove                      // the challenged party answered with a new state
	EventTypeRefuted                              // the challenged party refuted
	EventTypeTransactionSubmitted
	EventTypeTransactionConfirmed
	EventTypeTransactionFailed
	EventTypeStatesReceived // signed states arrived from a peer
	EventTypeChallengeApproved
	EventTypeChallengeDenied
	EventTypeRespondApproved
	EventTypeResponseProvided
	EventTypeAcknowledged
	EventTypeExitChallenge
	EventTypeLedgerFunded // a funding objective for a channel completed
	EventTypeRejected     // the counterparty rejected an objective
	EventTypeNudge        // wall-clock tick
)

var eventTypeNames = map[EventType]string{
	EventTypeFundingUpdated:       "FundingUpdated",
	EventTypeDepositSubmitted:     "DepositSubmitted",
	EventTypeDepositFailed:        "DepositFailed",
	EventTypeChallengeRegistered:  "ChallengeRegistered",
	EventTypeChallengeCleared:     "ChallengeCleared",
	EventTypeConcluded:            "Concluded",
	EventTypeChallengeExpired:     "ChallengeExpired",
	EventTypeRespondWithMove:      "RespondWithMove",
	EventTypeRefuted:              "Refuted",
	EventTypeTransactionSubmitted: "TransactionSubmitted",
	EventTypeTransactionConfirmed: "TransactionConfirmed",
	EventTypeTransactionFailed:    "TransactionFailed",
	EventTypeStatesReceived:       "StatesReceived",
	EventTypeChallengeApproved:    "ChallengeApproved",
	EventTypeChallengeDenied:      "ChallengeDenied",
	EventTypeRespondApproved:      "RespondApproved",
	EventTypeResponseProvided:     "ResponseProvided",
	EventTypeAcknowledged:         "Acknowledged",
	EventTypeExitChallenge:        "ExitChallenge",
	EventTypeLedgerFunded:         "LedgerFunded",
	EventTypeRejected:             "Rejected",
	EventTypeNudge:                "Nudge",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// IsChainEvent reports whether events of type t originate from the chain
// adapter and are broadcast to every objective touching the channel.
func (t EventType) IsChainEvent() bool {
	return t <= EventTypeRefuted
}

type (
	// Event is the closed family of inputs to a crank.
	Event interface {
		GetID() channel.ID
		GetType() EventType
	}

	FundingUpdated struct {
		Channel   channel.ID
		Amount    *big.Int
		Finalized bool
	}

	DepositSubmitted struct {
		Channel channel.ID
		Tx      string
		Attempt uint32
	}

	DepositFailed struct {
		Channel channel.ID
		Reason  string
	}

	ChallengeRegistered struct {
		Channel        channel.ID
		FinalizesAt    time.Time
		DisputedStates []channel.SignedState
	}

	ChallengeCleared struct {
		Channel          channel.ID
		NewTurnNumRecord uint64
	}

	Concluded struct {
		Channel channel.ID
	}

	ChallengeExpired struct {
		Channel channel.ID
	}

	// RespondWithMove carries the state the challenged party moved with.
	RespondWithMove struct {
		Channel channel.ID
		State   channel.SignedState
	}

	Refuted struct {
		Channel channel.ID
	}

	TransactionSubmitted struct {
		Channel channel.ID
		Tx      string
	}

	// TransactionConfirmed reports the inclusion of Tx at time At.
	TransactionConfirmed struct {
		Channel channel.ID
		Tx      string
		At      time.Time
	}

	TransactionFailed struct {
		Channel channel.ID
		Tx      string
		Reason  string
	}

	StatesReceived struct {
		Channel channel.ID
		From    string
		States  []channel.SignedState
	}

	ChallengeApproved struct {
		Channel channel.ID
	}

	ChallengeDenied struct {
		Channel channel.ID
	}

	RespondApproved struct {
		Channel channel.ID
	}

	// ResponseProvided carries the unsigned state chosen as the new move.
	ResponseProvided struct {
		Channel channel.ID
		State   channel.State
	}

	Acknowledged struct {
		Channel channel.ID
	}

	ExitChallenge struct {
		Channel channel.ID
	}

	// LedgerFunded reports that the funding objective of Channel completed.
	// Latest is the channel's latest supported state at that point.
	LedgerFunded struct {
		Channel channel.ID
		Amount  *big.Int
		Latest  channel.SignedState
	}

	Rejected struct {
		Channel channel.ID
		Reason  string
	}

	Nudge struct {
		Channel channel.ID
		Now     time.Time
	}
)

func (e FundingUpdated) GetID() channel.ID       { return e.Channel }
func (e DepositSubmitted) GetID() channel.ID     { return e.Channel }
func (e DepositFailed) GetID() channel.ID        { return e.Channel }
func (e ChallengeRegistered) GetID() channel.ID  { return e.Channel }
func (e ChallengeCleared) GetID() channel.ID     { return e.Channel }
func (e Concluded) GetID() channel.ID            { return e.Channel }
func (e ChallengeExpired) GetID() channel.ID     { return e.Channel }
func (e RespondWithMove) GetID() channel.ID      { return e.Channel }
func (e Refuted) GetID() channel.ID              { return e.Channel }
func (e TransactionSubmitted) GetID() channel.ID { return e.Channel }
func (e TransactionConfirmed) GetID() channel.ID { return e.Channel }
func (e TransactionFailed) GetID() channel.ID    { return e.Channel }
func (e StatesReceived) GetID() channel.ID       { return e.Channel }
func (e ChallengeApproved) GetID() channel.ID    { return e.Channel }
func (e ChallengeDenied) GetID() channel.ID      { return e.Channel }
func (e RespondApproved) GetID() channel.ID      { return e.Channel }
func (e ResponseProvided) GetID() channel.ID     { return e.Channel }
func (e Acknowledged) GetID() channel.ID         { return e.Channel }
func (e ExitChallenge) GetID() channel.ID        { return e.Channel }
func (e LedgerFunded) GetID() channel.ID         { return e.Channel }
func (e Rejected) GetID() channel.ID             { return e.Channel }
func (e Nudge) GetID() channel.ID                { return e.Channel }

func (FundingUpdated) GetType() EventType       { return EventTypeFundingUpdated }
func (DepositSubmitted) GetType() EventType     { return EventTypeDepositSubmitted }
func (DepositFailed) GetType() EventType        { return EventTypeDepositFailed }
func (ChallengeRegistered) GetType() EventType  { return EventTypeChallengeRegistered }
func (ChallengeCleared) GetType() EventType     { return EventTypeChallengeCleared }
func (Concluded) GetType() EventType            { return EventTypeConcluded }
func (ChallengeExpired) GetType() EventType     { return EventTypeChallengeExpired }
func (RespondWithMove) GetType() EventType      { return EventTypeRespondWithMove }
func (Refuted) GetType() EventType              { return EventTypeRefuted }
func (TransactionSubmitted) GetType() EventType { return EventTypeTransactionSubmitted }
func (TransactionConfirmed) GetType() EventType { return EventTypeTransactionConfirmed }
func (TransactionFailed) GetType() EventType    { return EventTypeTransactionFailed }
func (StatesReceived) GetType() EventType       { return EventTypeStatesReceived }
func (ChallengeApproved) GetType() EventType    { return EventTypeChallengeApproved }
func (ChallengeDenied) GetType() EventType      { return EventTypeChallengeDenied }
func (RespondApproved) GetType() EventType      { return EventTypeRespondApproved }
func (ResponseProvided) GetType() EventType     { return EventTypeResponseProvided }
func (Acknowledged) GetType() EventType         { return EventTypeAcknowledged }
func (ExitChallenge) GetType() EventType        { return EventTypeExitChallenge }
func (LedgerFunded) GetType() EventType         { return EventTypeLedgerFunded }
func (Rejected) GetType() EventType             { return EventTypeRejected }
func (Nudge) GetType() EventType                { return EventTypeNudge }

// Set is a set of event types.
type Set map[EventType]struct{}

// NewSet returns the set of the given types.
func NewSet(types ...EventType) Set {
	s := make(Set, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether t is in s.
func (s Set) Contains(t EventType) bool {
	_, ok := s[t]
	return ok
}
