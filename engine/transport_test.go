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

package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
	"perun.network/perun-nitro-engine/engine"
	"perun.network/perun-nitro-engine/wire"
)

func TestLocalBus(t *testing.T) {
	ctx := context.Background()
	rng := pkgtest.Prng(t)
	setup := ctest.NewSetup(rng, 2)
	bus := engine.NewLocalBus()
	a, b := bus.Connect("a"), bus.Connect("b")
	require.Equal(t, "a", a.ID())

	msg := wire.Message{To: "b", States: []channel.SignedState{setup.Signed(0, 1, 2)}}
	require.NoError(t, a.Send(ctx, msg))
	got := <-b.Receive()
	require.Equal(t, "a", got.From)
	require.Len(t, got.States, 1)
	require.Equal(t, msg.States[0].Hash(), got.States[0].Hash())
	require.Equal(t, msg.States[0].Signatures, got.States[0].Signatures)

	require.ErrorIs(t, a.Send(ctx, wire.Message{To: "c"}), engine.ErrUnknownPeer)

	// A reconnected endpoint replaces the old one.
	b2 := bus.Connect("b")
	require.NoError(t, a.Send(ctx, wire.Message{To: "b", States: msg.States}))
	select {
	case <-b.Receive():
		t.Fatal("message delivered to replaced endpoint")
	case got := <-b2.Receive():
		require.Equal(t, "a", got.From)
	}

	require.NoError(t, b.Close())
	require.NoError(t, a.Send(ctx, wire.Message{To: "b", States: msg.States}))
	require.NoError(t, b2.Close())
	require.ErrorIs(t, a.Send(ctx, wire.Message{To: "b", States: msg.States}), engine.ErrUnknownPeer)
	require.Error(t, b2.Send(ctx, wire.Message{To: "a", States: msg.States}))
	require.Error(t, b2.Close())
}

func TestLocalBusInboxFull(t *testing.T) {
	ctx := context.Background()
	bus := engine.NewLocalBus()
	a := bus.Connect("a")
	bus.Connect("b")
	req := []wire.ChannelRequest{{}}
	for i := 0; i < engine.DefaultInboxSize; i++ {
		require.NoError(t, a.Send(ctx, wire.Message{To: "b", Requests: req}))
	}
	require.ErrorIs(t, a.Send(ctx, wire.Message{To: "b", Requests: req}), engine.ErrInboxFull)
}
