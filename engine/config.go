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
	"time"

	"github.com/pkg/errors"

	"perun.network/perun-nitro-engine/chain"
)

const (
	DefaultChallengeDuration = uint64(60)
	DefaultMaxFundingWait    = time.Duration(10) * time.Minute
	DefaultNudgeInterval     = time.Duration(1) * time.Second
	DefaultMailboxSize       = 1024
)

var ErrInvalidConfig = errors.New("invalid engine configuration")

// Config holds the tunables of an engine. The tags are read by go-flags.
type Config struct {
	MaxFundingWait           time.Duration `long:"maxfundingwait" description:"Time a funding objective may wait for deposits before it fails. Zero disables the timeout."`
	DefaultChallengeDuration uint64        `long:"challengeduration" description:"Challenge duration in seconds of channels opened by this node."`
	NudgeInterval            time.Duration `long:"nudgeinterval" description:"Interval of the timeout checks of running objectives."`
	PollingInterval          time.Duration `long:"pollinginterval" description:"Interval at which the adjudicator is polled for changes."`
	MaxIterationsUntilAbort  int           `long:"maxiterations" description:"Number of deposit attempts before a deposit is reported as failed."`
	MailboxSize              int           `long:"mailboxsize" description:"Number of pending inputs a channel accepts from peers and users."`
	DBPath                   string        `long:"dbpath" description:"Path of the bolt database. Empty keeps all state in memory."`
	LogLevel                 string        `long:"loglevel" description:"Logging level: trace, debug, info, warn or error."`
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		MaxFundingWait:           DefaultMaxFundingWait,
		DefaultChallengeDuration: DefaultChallengeDuration,
		NudgeInterval:            DefaultNudgeInterval,
		PollingInterval:          chain.DefaultSubscriptionPollingInterval,
		MaxIterationsUntilAbort:  chain.MaxIterationsUntilAbort,
		MailboxSize:              DefaultMailboxSize,
		LogLevel:                 "info",
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxFundingWait < 0:
		return errors.WithMessage(ErrInvalidConfig, "negative funding wait")
	case c.DefaultChallengeDuration == 0:
		return errors.WithMessage(ErrInvalidConfig, "challenge duration must be positive")
	case c.NudgeInterval <= 0:
		return errors.WithMessage(ErrInvalidConfig, "nudge interval must be positive")
	case c.PollingInterval <= 0:
		return errors.WithMessage(ErrInvalidConfig, "polling interval must be positive")
	case c.MaxIterationsUntilAbort <= 0:
		return errors.WithMessage(ErrInvalidConfig, "deposit attempts must be positive")
	case c.MailboxSize <= 0:
		return errors.WithMessage(ErrInvalidConfig, "mailbox size must be positive")
	}
	return nil
}
