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

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/wallet"
)

// LedgerStatus is the lifecycle stage of a Ledger.
type LedgerStatus uint8

const (
	LedgerUnknown     LedgerStatus = iota // no state seen yet
	LedgerInitialized                     // holds fewer states than participants
	LedgerFullyOpen                       // holds a full round of states
	LedgerClosed                          // concluded, accepts nothing
)

func (s LedgerStatus) String() string {
	switch s {
	case LedgerUnknown:
		return "unknown"
	case LedgerInitialized:
		return "initialized"
	case LedgerFullyOpen:
		return "fully-open"
	case LedgerClosed:
		return "closed"
	default:
		return fmt.Sprintf("LedgerStatus(%d)", uint8(s))
	}
}

// Ledger is the retained window of signed states of one channel. A Ledger is
// a value: every mutation returns a new Ledger and leaves the receiver as is.
type Ledger struct {
	id        ID
	constants Constants
	myIndex   int
	window    []SignedState
	funding   fn.Option[Funding]
	challenge fn.Option[ChallengeRecord]
	closed    bool
}

// Initialize creates a ledger from the first state of a channel.
func Initialize(first SignedState, myIndex int) (Ledger, error) {
	if first.State.TurnNum != 0 {
		return Ledger{}, errors.WithMessagef(ErrInvalidFirstState, "got turn %d", first.State.TurnNum)
	}
	if myIndex < 0 || myIndex >= first.State.NumParts() {
		return Ledger{}, errors.Errorf("index %d out of range for %d participants", myIndex, first.State.NumParts())
	}
	if err := checkMoverSigned(first.State.Constants, first); err != nil {
		return Ledger{}, err
	}
	return Ledger{
		id:        first.ChannelID(),
		constants: first.State.Constants.Clone(),
		myIndex:   myIndex,
		window:    []SignedState{first.Clone()},
		funding:   fn.None[Funding](),
		challenge: fn.None[ChallengeRecord](),
	}, nil
}

// RestoreLedger rebuilds a ledger from persisted parts.
func RestoreLedger(constants Constants, myIndex int, window []SignedState, funding fn.Option[Funding], challenge fn.Option[ChallengeRecord], closed bool) (Ledger, error) {
	if len(window) == 0 || len(window) > constants.NumParts() {
		return Ledger{}, errors.Errorf("invalid window size %d", len(window))
	}
	l := Ledger{
		id:        constants.ID(),
		constants: constants.Clone(),
		myIndex:   myIndex,
		funding:   funding,
		challenge: challenge,
		closed:    closed,
	}
	for i, ss := range window {
		if ss.ChannelID() != l.id {
			return Ledger{}, ErrChannelMismatch
		}
		if i > 0 && ss.State.TurnNum != window[i-1].State.TurnNum+1 {
			return Ledger{}, ErrOutOfOrder
		}
		l.window = append(l.window, ss.Clone())
	}
	return l, nil
}

// checkMoverSigned validates the signatures of ss against the participants of
// c and requires the mover of ss to be among the signers.
func checkMoverSigned(c Constants, ss SignedState) error {
	hash := ss.State.Hash()
	moverSigned := false
	mover := c.Mover(ss.State.TurnNum).SigningAddress
	for _, entry := range ss.Signatures {
		signer, err := wallet.Backend.RecoverSigner(hash, entry.Signature)
		if err != nil {
			return errors.WithMessage(ErrUnauthorizedSigner, err.Error())
		}
		if signer != entry.Signer || c.IndexOf(signer) < 0 {
			return errors.WithMessagef(ErrUnauthorizedSigner, "signer %s on %s", signer.Hex(), hash.Hex())
		}
		if signer == mover {
			moverSigned = true
		}
	}
	if !moverSigned {
		return errors.WithMessagef(ErrUnauthorizedSigner, "turn %d not signed by mover %s", ss.State.TurnNum, mover.Hex())
	}
	return nil
}

func (l Ledger) checkConstants(s State) error {
	switch {
	case s.ChannelID() != l.id:
		return errors.WithMessage(ErrChannelMismatch, "channel id")
	case s.ChannelNonce != l.constants.ChannelNonce:
		return errors.WithMessage(ErrChannelMismatch, "nonce")
	case s.AppDefinition != l.constants.AppDefinition:
		return errors.WithMessage(ErrChannelMismatch, "app definition")
	case !l.constants.Equal(s.Constants):
		return errors.WithMessage(ErrChannelMismatch, "participants")
	}
	return nil
}

func (l Ledger) clone() Ledger {
	clone := l
	clone.constants = l.constants.Clone()
	clone.window = make([]SignedState, len(l.window))
	for i, ss := range l.window {
		clone.window[i] = ss.Clone()
	}
	return clone
}

// TryAppend validates ss and appends it as the next turn. The receiver is
// never modified; on error it stays the current ledger.
func (l Ledger) TryAppend(ss SignedState) (Ledger, error) {
	if l.closed {
		return l, ErrChannelClosed
	}
	if err := checkMoverSigned(l.constants, ss); err != nil {
		return l, err
	}
	if last := l.Latest().State.TurnNum; ss.State.TurnNum != last+1 {
		return l, errors.WithMessagef(ErrOutOfOrder, "got turn %d after %d", ss.State.TurnNum, last)
	}
	if err := l.checkConstants(ss.State); err != nil {
		return l, err
	}
	next := l.clone()
	next.window = append(next.window, ss.Clone())
	if len(next.window) > next.constants.NumParts() {
		next.window = next.window[1:]
	}
	return next, nil
}

// Checkpoint replaces the window with ss, which must be signed by every
// participant and be later than the latest state.
func (l Ledger) Checkpoint(ss SignedState) (Ledger, error) {
	if l.closed {
		return l, ErrChannelClosed
	}
	if err := ValidateSignatures(ss); err != nil {
		return l, err
	}
	if !ss.SignedByAll() {
		return l, errors.WithMessage(ErrUnauthorizedSigner, "checkpoint not signed by all participants")
	}
	if last := l.Latest().State.TurnNum; ss.State.TurnNum <= last {
		return l, errors.WithMessagef(ErrOutOfOrder, "checkpoint turn %d not after %d", ss.State.TurnNum, last)
	}
	if err := l.checkConstants(ss.State); err != nil {
		return l, err
	}
	next := l.clone()
	next.window = []SignedState{ss.Clone()}
	return next, nil
}

// AddSignatures merges the signatures of ss into the latest state, which must
// have the same hash.
func (l Ledger) AddSignatures(ss SignedState) (Ledger, error) {
	if l.closed {
		return l, ErrChannelClosed
	}
	if ss.Hash() != l.Latest().Hash() {
		return l, ErrUnknownState
	}
	if err := ValidateSignatures(ss); err != nil {
		return l, err
	}
	next := l.clone()
	last := len(next.window) - 1
	next.window[last].Signatures = MergeSignatures(next.window[last].Signatures, ss.Signatures)
	return next, nil
}

// ID returns the channel ID.
func (l Ledger) ID() ID {
	return l.id
}

// Constants returns the channel constants.
func (l Ledger) Constants() Constants {
	return l.constants.Clone()
}

// MyIndex returns our participant index.
func (l Ledger) MyIndex() int {
	return l.myIndex
}

// Me returns our participant.
func (l Ledger) Me() Participant {
	return l.constants.Participants[l.myIndex]
}

// Status returns the lifecycle stage of the ledger.
func (l Ledger) Status() LedgerStatus {
	switch {
	case l.closed:
		return LedgerClosed
	case len(l.window) == 0:
		return LedgerUnknown
	case l.IsFullyOpen():
		return LedgerFullyOpen
	default:
		return LedgerInitialized
	}
}

// IsFullyOpen reports whether the window holds a full round of states.
func (l Ledger) IsFullyOpen() bool {
	return len(l.window) > 0 && len(l.window) == l.constants.NumParts()
}

// Latest returns the most recent state.
func (l Ledger) Latest() SignedState {
	return l.window[len(l.window)-1].Clone()
}

// Penultimate returns the state before the latest one, if retained.
func (l Ledger) Penultimate() fn.Option[SignedState] {
	if len(l.window) < 2 {
		return fn.None[SignedState]()
	}
	return fn.Some(l.window[len(l.window)-2].Clone())
}

// Window returns the retained states, oldest first.
func (l Ledger) Window() []SignedState {
	return l.clone().window
}

// OurTurn reports whether we sign the next turn.
func (l Ledger) OurTurn() bool {
	next := l.Latest().State.TurnNum + 1
	return int(next%uint64(l.constants.NumParts())) == l.myIndex
}

// Funding returns the funding descriptor.
func (l Ledger) Funding() fn.Option[Funding] {
	return l.funding
}

// WithFunding returns a copy of l recording f.
func (l Ledger) WithFunding(f Funding) Ledger {
	next := l.clone()
	next.funding = fn.Some(f)
	return next
}

// Challenge returns the registered challenge.
func (l Ledger) Challenge() fn.Option[ChallengeRecord] {
	return l.challenge
}

// WithChallenge returns a copy of l with the registered challenge c.
func (l Ledger) WithChallenge(c ChallengeRecord) Ledger {
	next := l.clone()
	next.challenge = fn.Some(c.Clone())
	return next
}

// ClearChallenge returns a copy of l without a challenge.
func (l Ledger) ClearChallenge() Ledger {
	next := l.clone()
	next.challenge = fn.None[ChallengeRecord]()
	return next
}

// Close returns a closed copy of l.
func (l Ledger) Close() Ledger {
	next := l.clone()
	next.closed = true
	return next
}

// Closed reports whether the channel is concluded.
func (l Ledger) Closed() bool {
	return l.closed
}

// SupportedState returns the latest retained state signed by every
// participant.
func (l Ledger) SupportedState() fn.Option[SignedState] {
	for i := len(l.window) - 1; i >= 0; i-- {
		if l.window[i].SignedByAll() {
			return fn.Some(l.window[i].Clone())
		}
	}
	return fn.None[SignedState]()
}
