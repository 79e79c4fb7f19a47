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

// Package channel contains the data model of state channels: constants,
// outcomes, states and their signatures, together with the Ledger that
// accepts signed states one turn at a time.
// States are hashed with the ABI encoding used by the on-chain adjudicator,
// and every accepted state must be signed by the participant whose turn it is.
package channel
