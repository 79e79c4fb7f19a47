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

import "github.com/pkg/errors"

var (
	ErrInvalidFirstState  = errors.New("first state must have turn number 0")
	ErrUnauthorizedSigner = errors.New("state not signed by an authorized signer")
	ErrOutOfOrder         = errors.New("state turn number is out of order")
	ErrChannelMismatch    = errors.New("state does not belong to the channel")
	ErrChannelClosed      = errors.New("channel is closed")
	ErrUnknownState       = errors.New("state hash does not match the latest state")

	ErrDestinationMissing = errors.New("destination missing from ledger allocation")
	ErrInsufficientFunds  = errors.New("insufficient funds in ledger allocation")
)
