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

// Package protocol defines what all protocol objectives have in common: their
// identity, their status vocabulary, the actions a crank may emit and the
// table entry through which the engine drives them.
package protocol

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
)

// Type tags a protocol.
type Type string

const (
	TypeDirectFund  Type = "DirectFunding"
	TypeLedgerFund  Type = "LedgerFunding"
	TypeVirtualFund Type = "VirtualFunding"
	TypeChallenger  Type = "Challenger"
	TypeResponder   Type = "Responder"
)

// Types lists every protocol tag.
var Types = []Type{TypeDirectFund, TypeLedgerFund, TypeVirtualFund, TypeChallenger, TypeResponder}

// ObjectiveID identifies an objective as {type}-{channelId}.
type ObjectiveID string

var ErrInvalidObjectiveID = errors.New("invalid objective id")

func MakeObjectiveID(t Type, id channel.ID) ObjectiveID {
	return ObjectiveID(fmt.Sprintf("%s-%s", t, id.Hex()))
}

// Split returns the protocol tag and channel of id.
func (id ObjectiveID) Split() (Type, channel.ID, error) {
	tag, hex, ok := strings.Cut(string(id), "-")
	if !ok || len(hex) != 2+2*common.HashLength || !strings.HasPrefix(hex, "0x") {
		return "", channel.ID{}, errors.WithMessage(ErrInvalidObjectiveID, string(id))
	}
	for _, t := range Types {
		if Type(tag) == t {
			return t, common.HexToHash(hex), nil
		}
	}
	return "", channel.ID{}, errors.WithMessagef(ErrInvalidObjectiveID, "unknown type %q", tag)
}

// Status names the stage an objective is in.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
)

// Objective is the durable state of one protocol run. Objectives are values;
// cranking returns a new one.
type Objective interface {
	ID() ObjectiveID
	Type() Type
	Status() Status
	// Failure is the reason of a failed objective, empty otherwise.
	Failure() FailureReason
	// Terminal reports whether the objective accepts no further events.
	Terminal() bool
	// Channels lists every channel the objective reads events from. The
	// first entry is the channel owning the objective.
	Channels() []channel.ID
	encoding.BinaryMarshaler
}

// Proposer is implemented by objectives that are proposed to peers when they
// are started locally.
type Proposer interface {
	Propose() (SendMessage, error)
}

// Resumer is implemented by objectives whose pending side effects may have
// been lost when the host stopped between persisting and executing a crank.
// Resume returns the objective to continue with and the actions to execute
// again.
type Resumer interface {
	Resume() (Objective, []Action)
}

// SharedObjective proposes an objective to a peer.
type SharedObjective struct {
	ID   ObjectiveID
	Type Type
	Data []byte
}
