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

package protocol

import (
	"fmt"
	"math/big"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/client"
)

type ActionType uint8

const (
	ActionTypeSendMessage ActionType = iota
	ActionTypeDeposit
	ActionTypeSubmitTransaction
	ActionTypeRequestLedgerFunding
	ActionTypeRequestDirectFunding
	ActionTypeStoreState
	ActionTypeSetFunding
	ActionTypeCloseChannel
)

func (t ActionType) String() string {
	switch t {
	case ActionTypeSendMessage:
		return "SendMessage"
	case ActionTypeDeposit:
		return "Deposit"
	case ActionTypeSubmitTransaction:
		return "SubmitTransaction"
	case ActionTypeRequestLedgerFunding:
		return "RequestLedgerFunding"
	case ActionTypeRequestDirectFunding:
		return "RequestDirectFunding"
	case ActionTypeStoreState:
		return "StoreState"
	case ActionTypeSetFunding:
		return "SetFunding"
	case ActionTypeCloseChannel:
		return "CloseChannel"
	default:
		return fmt.Sprintf("ActionType(%d)", uint8(t))
	}
}

type (
	// Action is a side effect requested by a crank. The engine executes
	// actions after persisting the objective that emitted them.
	Action interface {
		Type() ActionType
		action()
	}

	// SendMessage sends signed states and objective proposals to the
	// participants identified by To.
	SendMessage struct {
		To         []string
		States     []channel.SignedState
		Objectives []SharedObjective
	}

	// Deposit asks the funder to raise the holdings of Channel from
	// ExpectedHeld by Amount.
	Deposit struct {
		Channel      channel.ID
		ExpectedHeld *big.Int
		Amount       *big.Int
	}

	// SubmitTransaction asks the adjudicator to submit Tx on behalf of
	// Objective.
	SubmitTransaction struct {
		Objective ObjectiveID
		Tx        client.Transaction
	}

	// RequestLedgerFunding asks for Target to be funded by reallocating
	// Deductions of the ledger channel Ledger.
	RequestLedgerFunding struct {
		Target     channel.ID
		Ledger     channel.ID
		Amount     *big.Int
		Deductions channel.Allocation
	}

	// RequestDirectFunding asks for the channel opened by Opening to be
	// funded on chain, with this participant at MyIndex.
	RequestDirectFunding struct {
		Opening channel.State
		MyIndex int
	}

	// StoreState records a supported state in the ledger of its channel.
	StoreState struct {
		State channel.SignedState
	}

	// SetFunding records how Channel is funded. Amount is the value the
	// funding covers.
	SetFunding struct {
		Channel channel.ID
		Funding channel.Funding
		Amount  *big.Int
	}

	CloseChannel struct {
		Channel channel.ID
	}
)

func (SendMessage) action()          {}
func (Deposit) action()              {}
func (SubmitTransaction) action()    {}
func (RequestLedgerFunding) action() {}
func (RequestDirectFunding) action() {}
func (StoreState) action()           {}
func (SetFunding) action()           {}
func (CloseChannel) action()         {}

func (SendMessage) Type() ActionType          { return ActionTypeSendMessage }
func (Deposit) Type() ActionType              { return ActionTypeDeposit }
func (SubmitTransaction) Type() ActionType    { return ActionTypeSubmitTransaction }
func (RequestLedgerFunding) Type() ActionType { return ActionTypeRequestLedgerFunding }
func (RequestDirectFunding) Type() ActionType { return ActionTypeRequestDirectFunding }
func (StoreState) Type() ActionType           { return ActionTypeStoreState }
func (SetFunding) Type() ActionType           { return ActionTypeSetFunding }
func (CloseChannel) Type() ActionType         { return ActionTypeCloseChannel }

// SendTo returns a SendMessage of states to every participant of c but the
// one at index me.
func SendTo(c channel.Constants, me int, states ...channel.SignedState) SendMessage {
	msg := SendMessage{}
	for i, p := range c.Participants {
		if i != me {
			msg.To = append(msg.To, p.ParticipantID)
		}
	}
	for _, ss := range states {
		msg.States = append(msg.States, ss.Clone())
	}
	return msg
}
