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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"perun.network/perun-nitro-engine/engine"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, engine.DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(c *engine.Config)
	}{
		{"negative funding wait", func(c *engine.Config) { c.MaxFundingWait = -time.Second }},
		{"zero challenge duration", func(c *engine.Config) { c.DefaultChallengeDuration = 0 }},
		{"zero nudge interval", func(c *engine.Config) { c.NudgeInterval = 0 }},
		{"zero polling interval", func(c *engine.Config) { c.PollingInterval = 0 }},
		{"no deposit attempts", func(c *engine.Config) { c.MaxIterationsUntilAbort = 0 }},
		{"no mailbox", func(c *engine.Config) { c.MailboxSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := engine.DefaultConfig()
			tt.modify(&c)
			require.ErrorIs(t, c.Validate(), engine.ErrInvalidConfig)
		})
	}

	c := engine.DefaultConfig()
	c.MaxFundingWait = 0
	require.NoError(t, c.Validate())
}
