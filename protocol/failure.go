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
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
)

// FailureReason is the structured reason of a failed objective.
type FailureReason string

const (
	ReasonNone                    FailureReason = ""
	ReasonUnauthorizedSigner      FailureReason = "UnauthorizedSigner"
	ReasonOutOfOrder              FailureReason = "OutOfOrder"
	ReasonReceivedUnexpectedState FailureReason = "ReceivedUnexpectedState"
	ReasonChannelMismatch         FailureReason = "ChannelMismatch"
	ReasonInsufficientFunds       FailureReason = "InsufficientFunds"
	ReasonDestinationMissing      FailureReason = "DestinationMissing"
	ReasonTimedOutWhileFunding    FailureReason = "TimedOutWhileFunding"
	ReasonTimeOut                 FailureReason = "TimeOut"
	ReasonTimedOut                FailureReason = "TimedOut"
	ReasonTransactionFailed       FailureReason = "TransactionFailed"
	ReasonRejected                FailureReason = "Rejected"
	ReasonInvalid                 FailureReason = "Invalid"
)

// ReasonFromError maps the channel error kinds onto failure reasons.
func ReasonFromError(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, channel.ErrUnauthorizedSigner):
		return ReasonUnauthorizedSigner
	case errors.Is(err, channel.ErrOutOfOrder):
		return ReasonOutOfOrder
	case errors.Is(err, channel.ErrChannelMismatch):
		return ReasonChannelMismatch
	case errors.Is(err, channel.ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, channel.ErrDestinationMissing):
		return ReasonDestinationMissing
	case errors.Is(err, channel.ErrUnknownState):
		return ReasonReceivedUnexpectedState
	default:
		return ReasonInvalid
	}
}

// ErrUnexpectedEvent is raised when an event reaches a protocol that can
// never handle events of its type. It indicates a routing bug.
var ErrUnexpectedEvent = errors.New("unexpected event for protocol")
