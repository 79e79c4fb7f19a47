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

package wire_test

import (
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/require"

	"perun.network/perun-nitro-engine/wire"
	"perun.network/perun-nitro-engine/wire/scval"
)

func TestBoolField(t *testing.T) {
	m, err := wire.MakeSymbolScMap(
		[]xdr.ScSymbol{"no", "yes", "count"},
		[]xdr.ScVal{scval.MustWrapBool(false), scval.MustWrapBool(true), scval.MustWrapUint32(1)},
	)
	require.NoError(t, err)

	yes, err := wire.GetBoolFromSymbol("yes", m)
	require.NoError(t, err)
	require.True(t, yes)
	no, err := wire.GetBoolFromSymbol("no", m)
	require.NoError(t, err)
	require.False(t, no)

	_, err = wire.GetBoolFromSymbol("count", m)
	require.ErrorIs(t, err, wire.ErrUnexpectedType)
}
