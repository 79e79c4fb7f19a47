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
	"perun.network/perun-nitro-engine/wire/scval"
)

const (
	SymbolStateParams  xdr.ScSymbol = "params"
	SymbolStateTurnNum xdr.ScSymbol = "turn_num"
	SymbolStateIsFinal xdr.ScSymbol = "is_final"
	SymbolStateOutcome xdr.ScSymbol = "outcome"
	SymbolStateAppData xdr.ScSymbol = "app_data"
)

const stateFields = 5

type State struct {
	Params  Params
	TurnNum xdr.Uint64
	IsFinal bool
	Outcome channel.Outcome
	AppData xdr.ScBytes
}

func (s State) ToScVal() (xdr.ScVal, error) {
	params, err := s.Params.ToScVal()
	if err != nil {
		return xdr.ScVal{}, err
	}
	turnNum, err := scval.WrapUint64(s.TurnNum)
	if err != nil {
		return xdr.ScVal{}, err
	}
	isFinal, err := scval.WrapBool(s.IsFinal)
	if err != nil {
		return xdr.ScVal{}, err
	}
	outcome, err := MakeOutcome(s.Outcome)
	if err != nil {
		return xdr.ScVal{}, err
	}
	appData, err := scval.WrapScBytes(append(xdr.ScBytes{}, s.AppData...))
	if err != nil {
		return xdr.ScVal{}, err
	}
	return WrapSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStateParams,
			SymbolStateTurnNum,
			SymbolStateIsFinal,
			SymbolStateOutcome,
			SymbolStateAppData,
		},
		[]xdr.ScVal{params, turnNum, isFinal, outcome, appData},
	)
}

func (s *State) FromScVal(v xdr.ScVal) error {
	m, err := GetSymbolScMap(v, stateFields)
	if err != nil {
		return errors.WithMessage(err, "decoding state")
	}
	paramsVal, err := GetScMapValueFromSymbol(SymbolStateParams, m)
	if err != nil {
		return err
	}
	params, err := ParamsFromScVal(paramsVal)
	if err != nil {
		return err
	}
	turnNum, err := GetUint64FromSymbol(SymbolStateTurnNum, m)
	if err != nil {
		return err
	}
	isFinal, err := GetBoolFromSymbol(SymbolStateIsFinal, m)
	if err != nil {
		return err
	}
	outcomeVal, err := GetScMapValueFromSymbol(SymbolStateOutcome, m)
	if err != nil {
		return err
	}
	outcome, err := ToOutcome(outcomeVal)
	if err != nil {
		return err
	}
	appData, err := GetBytesFromSymbol(SymbolStateAppData, m)
	if err != nil {
		return err
	}
	if len(appData) == 0 {
		appData = nil
	}
	s.Params = params
	s.TurnNum = xdr.Uint64(turnNum)
	s.IsFinal = isFinal
	s.Outcome = outcome
	s.AppData = appData
	return nil
}

func (s State) EncodeTo(e *xdr3.Encoder) error {
	v, err := s.ToScVal()
	if err != nil {
		return err
	}
	return v.EncodeTo(e)
}

func (s *State) DecodeFrom(d *xdr3.Decoder) (int, error) {
	var v xdr.ScVal
	i, err := d.Decode(&v)
	if err != nil {
		return i, err
	}
	return i, s.FromScVal(v)
}

func (s State) MarshalBinary() ([]byte, error) {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	err := s.EncodeTo(e)
	return buf.Bytes(), err
}

func (s *State) UnmarshalBinary(data []byte) error {
	d := xdr3.NewDecoder(bytes.NewReader(data))
	_, err := s.DecodeFrom(d)
	return err
}

func StateFromScVal(v xdr.ScVal) (State, error) {
	var s State
	err := (&s).FromScVal(v)
	return s, err
}

func MakeState(state channel.State) (State, error) {
	params, err := MakeParams(state.Constants)
	if err != nil {
		return State{}, err
	}
	var outcome channel.Outcome
	if state.Outcome != nil {
		outcome = state.Outcome.Clone()
	}
	return State{
		Params:  params,
		TurnNum: xdr.Uint64(state.TurnNum),
		IsFinal: state.IsFinal,
		Outcome: outcome,
		AppData: append(xdr.ScBytes(nil), state.AppData...),
	}, nil
}

func ToState(s State) channel.State {
	var outcome channel.Outcome
	if s.Outcome != nil {
		outcome = s.Outcome.Clone()
	}
	var appData []byte
	if len(s.AppData) > 0 {
		appData = append([]byte{}, s.AppData...)
	}
	return channel.State{
		Constants: ToConstants(s.Params),
		TurnNum:   uint64(s.TurnNum),
		IsFinal:   s.IsFinal,
		Outcome:   outcome,
		AppData:   appData,
	}
}

// MakeStateScVal encodes a state into a value.
func MakeStateScVal(state channel.State) (xdr.ScVal, error) {
	s, err := MakeState(state)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return s.ToScVal()
}

// ToStateFromScVal decodes a state from a value.
func ToStateFromScVal(v xdr.ScVal) (channel.State, error) {
	s, err := StateFromScVal(v)
	if err != nil {
		return channel.State{}, err
	}
	return ToState(s), nil
}
