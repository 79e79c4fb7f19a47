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

package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-nitro-engine/channel"
	ctest "perun.network/perun-nitro-engine/channel/test"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/protocol/directfund"
	"perun.network/perun-nitro-engine/protocol/dispute"
	"perun.network/perun-nitro-engine/store"
	"perun.network/perun-nitro-engine/wire"
)

var handlers = map[protocol.Type]protocol.Handler{
	protocol.TypeDirectFund: directfund.Handler(),
	protocol.TypeChallenger: dispute.ChallengerHandler(),
	protocol.TypeResponder:  dispute.ResponderHandler(),
}

type factory func(t *testing.T) store.Store

func stores() map[string]factory {
	decode := store.DecoderFromHandlers(handlers)
	return map[string]factory{
		"mem": func(t *testing.T) store.Store {
			return store.NewMemStore(decode)
		},
		"bolt": func(t *testing.T) store.Store {
			s, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "engine.db"), decode)
			require.NoError(t, err)
			return s
		},
	}
}

func requireSameBytes(t *testing.T, a, b interface{ MarshalBinary() ([]byte, error) }) {
	t.Helper()
	x, err := a.MarshalBinary()
	require.NoError(t, err)
	y, err := b.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, x, y)
}

func TestStore(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			rng := pkgtest.Prng(t)
			s := newStore(t)
			setups := []*ctest.Setup{ctest.NewSetup(rng, 2), ctest.NewSetup(rng, 3)}

			none, err := s.GetChannel(setups[0].Constants.ID())
			require.NoError(t, err)
			require.True(t, none.IsNone())

			for _, setup := range setups {
				require.NoError(t, s.PutChannel(setup.Ledger(0, 1, 4, 4)))
			}
			// Overwrites replace the record.
			updated := setups[0].Ledger(1, 5, 4, 4)
			require.NoError(t, s.PutChannel(updated))

			got, err := s.GetChannel(updated.ID())
			require.NoError(t, err)
			requireSameBytes(t, wire.Channel{Ledger: updated}, wire.Channel{Ledger: got.UnsafeFromSome()})
			require.Equal(t, uint64(5), got.UnsafeFromSome().Latest().State.TurnNum)

			all, err := s.Channels()
			require.NoError(t, err)
			require.Len(t, all, 2)

			df, err := directfund.New(setups[0].State(0, 4, 4), 0, time.Time{})
			require.NoError(t, err)
			responder, err := dispute.NewResponder(updated, channel.ChallengeRecord{
				DisputedStates: []channel.SignedState{setups[0].Signed(5, 4, 4)},
			})
			require.NoError(t, err)

			for _, o := range []protocol.Objective{df, responder} {
				require.NoError(t, s.PutObjective(o))
				got, err := s.GetObjective(o.ID())
				require.NoError(t, err)
				require.True(t, got.IsSome())
				requireSameBytes(t, o, got.UnsafeFromSome())
			}

			objs, err := s.Objectives()
			require.NoError(t, err)
			require.Len(t, objs, 2)

			missing, err := s.GetObjective(protocol.MakeObjectiveID(protocol.TypeChallenger, updated.ID()))
			require.NoError(t, err)
			require.True(t, missing.IsNone())

			require.NoError(t, s.Close())
		})
	}
}

func TestUnknownType(t *testing.T) {
	rng := pkgtest.Prng(t)
	setup := ctest.NewSetup(rng, 2)
	s := store.NewMemStore(store.DecoderFromHandlers(map[protocol.Type]protocol.Handler{}))

	df, err := directfund.New(setup.State(0, 1, 1), 1, time.Time{})
	require.NoError(t, err)
	require.NoError(t, s.PutObjective(df))
	_, err = s.GetObjective(df.ID())
	require.ErrorIs(t, err, store.ErrUnknownDecoder)
}

func TestMemStoreClosed(t *testing.T) {
	rng := pkgtest.Prng(t)
	setup := ctest.NewSetup(rng, 2)
	s := store.NewMemStore(store.DecoderFromHandlers(handlers))
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.PutChannel(setup.Ledger(0, 0, 1, 1)), store.ErrStoreClosed)
	_, err := s.Channels()
	require.ErrorIs(t, err, store.ErrStoreClosed)
	require.ErrorIs(t, s.Close(), store.ErrStoreClosed)
}

func TestBoltStoreReopen(t *testing.T) {
	rng := pkgtest.Prng(t)
	setup := ctest.NewSetup(rng, 2)
	path := filepath.Join(t.TempDir(), "engine.db")
	decode := store.DecoderFromHandlers(handlers)

	s, err := store.OpenBoltStore(path, decode)
	require.NoError(t, err)
	l := setup.Ledger(0, 3, 2, 2)
	require.NoError(t, s.PutChannel(l))
	require.NoError(t, s.Close())

	s, err = store.OpenBoltStore(path, decode)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.Channels()
	require.NoError(t, err)
	require.Len(t, all, 1)
	requireSameBytes(t, wire.Channel{Ledger: l}, wire.Channel{Ledger: all[0]})
}
