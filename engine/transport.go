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

package engine

import (
	"context"

	"github.com/pkg/errors"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/perun-nitro-engine/wire"
)

const DefaultInboxSize = 1024

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrInboxFull   = errors.New("peer inbox is full")
)

// Transport carries wire messages between participants. ID is the
// ParticipantID the transport receives for.
type Transport interface {
	ID() string
	Send(ctx context.Context, msg wire.Message) error
	Receive() <-chan wire.Message
	Close() error
}

// LocalBus connects endpoints in the same process. Messages are encoded on
// send and decoded on delivery, so peers never share memory.
type LocalBus struct {
	mu        pkgsync.Mutex
	endpoints map[string]*Endpoint
}

func NewLocalBus() *LocalBus {
	return &LocalBus{endpoints: make(map[string]*Endpoint)}
}

// Connect returns the endpoint of id. Connecting an id again replaces its
// previous endpoint.
func (b *LocalBus) Connect(id string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep := &Endpoint{id: id, bus: b, inbox: make(chan wire.Message, DefaultInboxSize)}
	b.endpoints[id] = ep
	return ep
}

func (b *LocalBus) deliver(ctx context.Context, to string, data []byte) error {
	b.mu.Lock()
	ep, ok := b.endpoints[to]
	b.mu.Unlock()
	if !ok {
		return errors.WithMessage(ErrUnknownPeer, to)
	}

	var msg wire.Message
	if err := msg.UnmarshalBinary(data); err != nil {
		return errors.WithMessage(err, "decoding message")
	}
	select {
	case ep.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.WithMessage(ErrInboxFull, to)
	}
}

func (b *LocalBus) disconnect(ep *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.endpoints[ep.id] == ep {
		delete(b.endpoints, ep.id)
	}
}

// Endpoint is the Transport of one participant on a LocalBus.
type Endpoint struct {
	id     string
	bus    *LocalBus
	inbox  chan wire.Message
	closer pkgsync.Closer
}

var _ Transport = (*Endpoint)(nil)

func (e *Endpoint) ID() string {
	return e.id
}

func (e *Endpoint) Send(ctx context.Context, msg wire.Message) error {
	if e.closer.IsClosed() {
		return errors.New("endpoint closed")
	}
	msg.From = e.id
	data, err := msg.MarshalBinary()
	if err != nil {
		return errors.WithMessage(err, "encoding message")
	}
	return e.bus.deliver(ctx, msg.To, data)
}

func (e *Endpoint) Receive() <-chan wire.Message {
	return e.inbox
}

func (e *Endpoint) Close() error {
	if err := e.closer.Close(); err != nil {
		return err
	}
	e.bus.disconnect(e)
	return nil
}
