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

package event

import "time"

// ExpiresAt returns the end of a challenge window of challDurSec seconds
// starting at now.
func ExpiresAt(now time.Time, challDurSec uint64) time.Time {
	return now.Add(MakeTime(challDurSec))
}

// MakeTime creates a new time from the argument.
func MakeTime(challDurSec uint64) time.Duration {
	return time.Duration(challDurSec) * time.Second
}
