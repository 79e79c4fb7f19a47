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
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"perun.network/perun-nitro-engine/channel"
)

func TestActorOrder(t *testing.T) {
	a := newActor(channel.ID{1}, fn.None[channel.Ledger](), 10)
	stop := make(chan struct{})
	defer close(stop)
	go a.run(stop)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, a.post(func(*actor) { got = append(got, i) }))
	}
	require.NoError(t, a.post(func(*actor) { close(done) }))
	<-done
	for i, v := range got {
		require.Equal(t, i, v)
	}
	require.Len(t, got, 100)
}

func TestActorMailboxLimit(t *testing.T) {
	a := newActor(channel.ID{1}, fn.None[channel.Ledger](), 2)
	// Not running yet, so the queue fills up.
	require.NoError(t, a.tell(func(*actor) {}))
	require.NoError(t, a.tell(func(*actor) {}))
	require.ErrorIs(t, a.tell(func(*actor) {}), ErrMailboxFull)
	// Internal work is never refused.
	require.NoError(t, a.post(func(*actor) {}))

	stop := make(chan struct{})
	go a.run(stop)
	require.Eventually(t, func() bool {
		return a.tell(func(*actor) {}) == nil
	}, time.Second, time.Millisecond)

	close(stop)
	require.Eventually(t, func() bool {
		return a.post(func(*actor) {}) == ErrActorStopped
	}, time.Second, time.Millisecond)
}
