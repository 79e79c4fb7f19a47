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

package wire

import (
	"bytes"

	"github.com/pkg/errors"
	xdr3 "github.com/stellar/go-xdr/xdr3"
	"github.com/stellar/go/xdr"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolMessageFrom       xdr.ScSymbol = "from"
	SymbolMessageTo         xdr.ScSymbol = "to"
	SymbolMessageStates     xdr.ScSymbol = "states"
	SymbolMessageObjectives xdr.ScSymbol = "objectives"
	SymbolMessageRequests   xdr.ScSymbol = "requests"

	SymbolObjectiveID   xdr.ScSymbol = "id"
	SymbolObjectiveType xdr.ScSymbol = "type"
	SymbolObjectiveData xdr.ScSymbol = "data"

	SymbolRequestGetChannel xdr.ScSymbol = "get_channel"
)

// ChannelRequest asks the recipient for the retained states of Channel.
type ChannelRequest struct {
	Channel channel.ID
}

// Message is the unit exchanged between participants.
type Message struct {
	From       string
	To         string
	States     []channel.SignedState
	Objectives []protocol.SharedObjective
	Requests   []ChannelRequest
}

// Empty reports whether m carries no payload.
func (m Message) Empty() bool {
	return len(m.States) == 0 && len(m.Objectives) == 0 && len(m.Requests) == 0
}

func makeSharedObjective(o protocol.SharedObjective) (xdr.ScVal, error) {
	return WrapSymbolScMap(
		[]xdr.ScSymbol{SymbolObjectiveID, SymbolObjectiveType, SymbolObjectiveData},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(o.ID)),
			scval.MustWrapScString(xdr.ScString(o.Type)),
			scval.MustWrapScBytes(append(xdr.ScBytes{}, o.Data...)),
		},
	)
}

func toSharedObjective(v xdr.ScVal) (protocol.SharedObjective, error) {
	m, err := GetSymbolScMap(v, 3) //nolint:gomnd
	if err != nil {
		return protocol.SharedObjective{}, errors.WithMessage(err, "decoding shared objective")
	}
	id, err := GetStringFromSymbol(SymbolObjectiveID, m)
	if err != nil {
		return protocol.SharedObjective{}, err
	}
	typ, err := GetStringFromSymbol(SymbolObjectiveType, m)
	if err != nil {
		return protocol.SharedObjective{}, err
	}
	data, err := GetBytesFromSymbol(SymbolObjectiveData, m)
	if err != nil {
		return protocol.SharedObjective{}, err
	}
	return protocol.SharedObjective{
		ID:   protocol.ObjectiveID(id),
		Type: protocol.Type(typ),
		Data: append([]byte{}, data...),
	}, nil
}

func makeRequest(r ChannelRequest) (xdr.ScVal, error) {
	return MakeTagged(SymbolRequestGetChannel, MakeHash(r.Channel))
}

func toRequest(v xdr.ScVal) (ChannelRequest, error) {
	tag, payload, err := ToTagged(v)
	if err != nil {
		return ChannelRequest{}, err
	}
	if tag != SymbolRequestGetChannel {
		return ChannelRequest{}, errors.Errorf("unknown request %q", tag)
	}
	id, err := payloadHash(payload)
	return ChannelRequest{Channel: id}, err
}

func (m Message) ToScVal() (xdr.ScVal, error) {
	states, err := MakeSignedStates(m.States)
	if err != nil {
		return xdr.ScVal{}, err
	}
	objectives := make(xdr.ScVec, len(m.Objectives))
	for i, o := range m.Objectives {
		if objectives[i], err = makeSharedObjective(o); err != nil {
			return xdr.ScVal{}, err
		}
	}
	requests := make(xdr.ScVec, len(m.Requests))
	for i, r := range m.Requests {
		if requests[i], err = makeRequest(r); err != nil {
			return xdr.ScVal{}, err
		}
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolMessageFrom,
			SymbolMessageTo,
			SymbolMessageStates,
			SymbolMessageObjectives,
			SymbolMessageRequests,
		},
		[]xdr.ScVal{
			scval.MustWrapScString(xdr.ScString(m.From)),
			scval.MustWrapScString(xdr.ScString(m.To)),
			states,
			scval.MustWrapVec(objectives),
			scval.MustWrapVec(requests),
		},
	)
}

func (m *Message) FromScVal(v xdr.ScVal) error {
	sm, err := GetSymbolScMap(v, 5) //nolint:gomnd
	if err != nil {
		return errors.WithMessage(err, "decoding message")
	}
	from, err := GetStringFromSymbol(SymbolMessageFrom, sm)
	if err != nil {
		return err
	}
	to, err := GetStringFromSymbol(SymbolMessageTo, sm)
	if err != nil {
		return err
	}
	statesVec, err := GetVecFromSymbol(SymbolMessageStates, sm)
	if err != nil {
		return err
	}
	states, err := ToSignedStates(statesVec)
	if err != nil {
		return err
	}
	objectivesVec, err := GetVecFromSymbol(SymbolMessageObjectives, sm)
	if err != nil {
		return err
	}
	var objectives []protocol.SharedObjective
	for _, ov := range objectivesVec {
		o, err := toSharedObjective(ov)
		if err != nil {
			return err
		}
		objectives = append(objectives, o)
	}
	requestsVec, err := GetVecFromSymbol(SymbolMessageRequests, sm)
	if err != nil {
		return err
	}
	var requests []ChannelRequest
	for _, rv := range requestsVec {
		r, err := toRequest(rv)
		if err != nil {
			return err
		}
		requests = append(requests, r)
	}
	m.From = from
	m.To = to
	m.States = states
	m.Objectives = objectives
	m.Requests = requests
	return nil
}

func (m Message) EncodeTo(e *xdr3.Encoder) error {
	v, err := m.ToScVal()
	if err != nil {
		return err
	}
	return v.EncodeTo(e)
}

func (m *Message) DecodeFrom(d *xdr3.Decoder) (int, error) {
	var v xdr.ScVal
	i, err := d.Decode(&v)
	if err != nil {
		return i, err
	}
	return i, m.FromScVal(v)
}

func (m Message) MarshalBinary() ([]byte, error) {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	err := m.EncodeTo(e)
	return buf.Bytes(), err
}

func (m *Message) UnmarshalBinary(data []byte) error {
	d := xdr3.NewDecoder(bytes.NewReader(data))
	_, err := m.DecodeFrom(d)
	return err
}

// Split turns a SendMessage action into one message per recipient.
func Split(from string, a protocol.SendMessage) []Message {
	msgs := make([]Message, 0, len(a.To))
	for _, to := range a.To {
		msgs = append(msgs, Message{
			From:       from,
			To:         to,
			States:     a.States,
			Objectives: a.Objectives,
		})
	}
	return msgs
}
