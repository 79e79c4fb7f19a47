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
	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/event"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire"
)

func (e *Engine) send(a protocol.SendMessage) {
	for _, msg := range wire.Split(e.transport.ID(), a) {
		if err := e.transport.Send(e.ctx, msg); err != nil {
			e.log.Log().WithField("to", msg.To).Warnf("Sending message: %v", err)
		}
	}
}

// receive handles a message of a peer: proposals first, then states, then
// requests for states.
func (e *Engine) receive(msg wire.Message) {
	logger := e.log.Log().WithField("from", msg.From)
	if msg.Empty() {
		logger.Debug("Ignoring empty message")
		return
	}
	for _, shared := range msg.Objectives {
		e.join(msg.From, shared)
	}

	var order []channel.ID
	byChannel := make(map[channel.ID][]channel.SignedState)
	for _, ss := range msg.States {
		id := ss.ChannelID()
		if _, ok := byChannel[id]; !ok {
			order = append(order, id)
		}
		byChannel[id] = append(byChannel[id], ss)
	}
	for _, id := range order {
		states := byChannel[id]
		err := e.tell(id, func(a *actor) {
			e.absorb(a, states)
			e.broadcast(event.StatesReceived{Channel: id, From: msg.From, States: states})
		})
		if err != nil {
			logger.Warnf("Dropping states of %s: %v", id.Hex(), err)
		}
	}

	for _, r := range msg.Requests {
		e.answer(msg.From, r)
	}
}

// join starts the local objective proposed by from.
func (e *Engine) join(from string, shared protocol.SharedObjective) {
	logger := e.log.Log().WithField("from", from).WithField("objective", shared.ID)
	h, ok := e.handlers[shared.Type]
	if !ok || h.Join == nil {
		logger.Warnf("Dropping proposal of unknown protocol %q", shared.Type)
		e.metrics.Dropped.WithLabelValues("unknown_protocol").Inc()
		return
	}
	o, err := h.Join(shared.Data, e.signer.Address())
	if err != nil {
		logger.Warnf("Dropping invalid proposal: %v", err)
		e.metrics.Dropped.WithLabelValues("invalid_proposal").Inc()
		return
	}
	if o.ID() != shared.ID {
		logger.Warnf("Dropping proposal of %s", o.ID())
		e.metrics.Dropped.WithLabelValues("invalid_proposal").Inc()
		return
	}
	// Routes are registered before the states following the proposal
	// reach any actor.
	e.route(o)
	if err := e.tell(owner(o), func(a *actor) { e.start(a, o, false) }); err != nil {
		logger.Warnf("Dropping proposal: %v", err)
	}
}

// answer sends the retained states of r.Channel to the participant from.
func (e *Engine) answer(from string, r wire.ChannelRequest) {
	err := e.tell(r.Channel, func(a *actor) {
		l, ok := fromOption(a.ledger)
		if !ok {
			return
		}
		for _, p := range l.Constants().Participants {
			if p.ParticipantID == from {
				e.send(protocol.SendMessage{To: []string{from}, States: l.Window()})
				return
			}
		}
		e.log.Log().WithField("from", from).Warn("Channel requested by non-participant")
	})
	if err != nil {
		e.log.Log().WithField("from", from).Warnf("Dropping request: %v", err)
	}
}
