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

// Package store persists channel ledgers and protocol objectives. Records are
// kept in their wire encoding so that a restarted engine decodes them exactly
// like a peer's message.
package store

import (
	"io"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
)

var (
	ErrCorruptStore   = errors.New("store is corrupted")
	ErrStoreClosed    = errors.New("store is closed")
	ErrUnknownDecoder = errors.New("no decoder for objective type")
)

// Decoder restores an objective of type t from its binary encoding.
type Decoder func(t protocol.Type, data []byte) (protocol.Objective, error)

// Store is the durable state of an engine. Objectives are written before
// the actions of the crank that produced them are executed.
type Store interface {
	GetChannel(id channel.ID) (fn.Option[channel.Ledger], error)
	PutChannel(l channel.Ledger) error
	// Channels returns every stored ledger, ordered by channel id.
	Channels() ([]channel.Ledger, error)

	GetObjective(id protocol.ObjectiveID) (fn.Option[protocol.Objective], error)
	PutObjective(o protocol.Objective) error
	// Objectives returns every stored objective, ordered by objective id.
	Objectives() ([]protocol.Objective, error)

	io.Closer
}

// DecoderFromHandlers builds a Decoder from a protocol dispatch table.
func DecoderFromHandlers(handlers map[protocol.Type]protocol.Handler) Decoder {
	return func(t protocol.Type, data []byte) (protocol.Objective, error) {
		h, ok := handlers[t]
		if !ok || h.Decode == nil {
			return nil, errors.WithMessage(ErrUnknownDecoder, string(t))
		}
		return h.Decode(data)
	}
}

func decodeObjective(decode Decoder, id protocol.ObjectiveID, data []byte) (protocol.Objective, error) {
	t, _, err := id.Split()
	if err != nil {
		return nil, errors.WithMessage(ErrCorruptStore, err.Error())
	}
	o, err := decode(t, data)
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding %s", id)
	}
	if o.ID() != id {
		return nil, errors.WithMessagef(ErrCorruptStore, "objective %s stored under %s", o.ID(), id)
	}
	return o, nil
}
