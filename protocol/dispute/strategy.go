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

package dispute

import (
	"fmt"

	"perun.network/perun-nitro-engine/channel"
)

// ResponseKind is the way a challenge is answered.
type ResponseKind uint8

const (
	// RespondWithNewMove waits for the application to provide the next
	// state.
	RespondWithNewMove ResponseKind = iota
	// RespondWithExistingMove answers with a stored state that follows the
	// challenge.
	RespondWithExistingMove
	// Refute answers with a later state of the challenged mover.
	Refute
)

func (k ResponseKind) String() string {
	switch k {
	case RespondWithNewMove:
		return "RespondWithNewMove"
	case RespondWithExistingMove:
		return "RespondWithExistingMove"
	case Refute:
		return "Refute"
	default:
		return fmt.Sprintf("ResponseKind(%d)", uint8(k))
	}
}

// Response is the chosen answer to a challenge. State is unset for
// RespondWithNewMove.
type Response struct {
	Kind  ResponseKind
	State channel.SignedState
}

// mover is the index of the participant signing s.
func mover(s channel.State) int {
	return int(s.TurnNum % uint64(s.NumParts()))
}

// canRefuteWith reports whether s, signed by the mover of challenge, is later
// than challenge.
func canRefuteWith(s, challenge channel.State) bool {
	return s.TurnNum > challenge.TurnNum && mover(s) == mover(challenge)
}

// ChooseResponse picks the answer to challenge from the states retained by l.
// Refuting is preferred over responding with a stored move.
func ChooseResponse(l channel.Ledger, challenge channel.State) Response {
	latest := l.Latest()
	if canRefuteWith(latest.State, challenge) {
		return Response{Kind: Refute, State: latest}
	}
	pen := l.Penultimate()
	if pen.IsNone() {
		return Response{Kind: RespondWithNewMove}
	}
	penultimate := pen.UnsafeFromSome()
	if canRefuteWith(penultimate.State, challenge) {
		return Response{Kind: Refute, State: penultimate}
	}
	if penultimate.Hash() == challenge.Hash() && mover(latest.State) != mover(challenge) {
		return Response{Kind: RespondWithExistingMove, State: latest}
	}
	return Response{Kind: RespondWithNewMove}
}

// absorb adds states of l's channel to l. States that do not extend l are
// dropped.
func absorb(l channel.Ledger, states ...channel.SignedState) channel.Ledger {
	for _, ss := range states {
		if ss.ChannelID() != l.ID() {
			continue
		}
		var (
			next channel.Ledger
			err  error
		)
		switch {
		case ss.Hash() == l.Latest().Hash():
			next, err = l.AddSignatures(ss)
		case ss.SignedByAll():
			next, err = l.Checkpoint(ss)
		default:
			next, err = l.TryAppend(ss)
		}
		if err == nil {
			l = next
		}
	}
	return l
}
