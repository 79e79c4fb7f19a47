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

package store

import (
	"sort"

	"github.com/lightningnetwork/lnd/fn/v2"
	"polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire"
)

// MemStore keeps encoded records in memory. Reads decode a fresh copy, so
// callers never share state with the store.
type MemStore struct {
	mu         sync.Mutex
	decode     Decoder
	channels   map[channel.ID][]byte
	objectives map[protocol.ObjectiveID][]byte
	closed     bool
}

var _ Store = (*MemStore)(nil)

func NewMemStore(decode Decoder) *MemStore {
	return &MemStore{
		decode:     decode,
		channels:   make(map[channel.ID][]byte),
		objectives: make(map[protocol.ObjectiveID][]byte),
	}
}

func (s *MemStore) GetChannel(id channel.ID) (fn.Option[channel.Ledger], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fn.None[channel.Ledger](), ErrStoreClosed
	}
	data, ok := s.channels[id]
	if !ok {
		return fn.None[channel.Ledger](), nil
	}
	l, err := wire.UnmarshalLedger(data)
	if err != nil {
		return fn.None[channel.Ledger](), err
	}
	return fn.Some(l), nil
}

func (s *MemStore) PutChannel(l channel.Ledger) error {
	data, err := wire.MarshalLedger(l)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.channels[l.ID()] = data
	return nil
}

func (s *MemStore) Channels() ([]channel.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	ids := make([]channel.ID, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	ledgers := make([]channel.Ledger, 0, len(ids))
	for _, id := range ids {
		l, err := wire.UnmarshalLedger(s.channels[id])
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

func (s *MemStore) GetObjective(id protocol.ObjectiveID) (fn.Option[protocol.Objective], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fn.None[protocol.Objective](), ErrStoreClosed
	}
	data, ok := s.objectives[id]
	if !ok {
		return fn.None[protocol.Objective](), nil
	}
	o, err := decodeObjective(s.decode, id, data)
	if err != nil {
		return fn.None[protocol.Objective](), err
	}
	return fn.Some(o), nil
}

func (s *MemStore) PutObjective(o protocol.Objective) error {
	data, err := o.MarshalBinary()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.objectives[o.ID()] = data
	return nil
}

func (s *MemStore) Objectives() ([]protocol.Objective, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	ids := make([]protocol.ObjectiveID, 0, len(s.objectives))
	for id := range s.objectives {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	objs := make([]protocol.Objective, 0, len(ids))
	for _, id := range ids {
		o, err := decodeObjective(s.decode, id, s.objectives[id])
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.closed = true
	return nil
}
