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
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
)

// CrankFunc advances an objective by one event. Business failures are
// encoded in the returned objective; the error is reserved for failures of
// the signer.
type CrankFunc func(o Objective, ev event.Event, signer channel.Signer) (Objective, []Action, error)

// Handler is the dispatch table entry of a protocol.
type Handler struct {
	Type Type
	// Accepts lists the event types the protocol handles. Other events are
	// routing bugs.
	Accepts event.Set
	Crank   CrankFunc
	Decode  func(data []byte) (Objective, error)
	// Join builds the local objective of the participant me from a peer's
	// proposal. Nil if the protocol is never proposed.
	Join func(data []byte, me common.Address) (Objective, error)
}

// Envelope addresses an event to one objective.
type Envelope struct {
	Objective ObjectiveID
	Protocol  Type
	Event     event.Event
}

// NewEnvelope addresses ev to the objective id.
func NewEnvelope(id ObjectiveID, ev event.Event) (Envelope, error) {
	t, _, err := id.Split()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Objective: id, Protocol: t, Event: ev}, nil
}

// Unexpected panics with ErrUnexpectedEvent. Cranks call it for events
// outside their protocol's family.
func Unexpected(t Type, ev event.Event) {
	panic(errors.WithMessagef(ErrUnexpectedEvent, "%v delivered to %s", ev.GetType(), t))
}
