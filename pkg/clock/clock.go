// Copyright 2024 The Parca Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package clock provides the monotonic time source all measurements are taken
// against. Calendar time is never used for interval measurement, so wall-clock
// adjustments (NTP slew, manual changes) cannot skew readings.
package clock

import (
	"errors"
	"strings"
	"time"
)

// ErrClockUnavailable is returned when the platform cannot provide a
// monotonic clock. Callers are expected to treat this as fatal rather than
// fall back to calendar time.
var ErrClockUnavailable = errors.New("clock: no monotonic clock available")

// Clock is a monotonic, high-resolution time source. Readings are reported as
// the duration elapsed since the Clock was created, so successive reads never
// decrease within a process.
type Clock struct {
	epoch time.Time
}

// New returns a Clock after verifying that the runtime actually carries a
// monotonic reading. The check is deliberately done once, up front: silently
// degrading to wall-clock deltas would make every downstream measurement
// subject to unbounded timer drift.
func New() (Clock, error) {
	first := time.Now()
	// A time.Time that carries a monotonic reading prints a trailing
	// "m=±<value>" component; its absence means the runtime could not
	// obtain one.
	if !strings.Contains(first.String(), " m=") {
		return Clock{}, ErrClockUnavailable
	}
	if second := time.Now(); second.Before(first) {
		return Clock{}, ErrClockUnavailable
	}
	return Clock{epoch: first}, nil
}

// Now returns the duration elapsed since the Clock's epoch.
func (c Clock) Now() time.Duration {
	return time.Since(c.epoch)
}

// Epoch returns the wall-clock instant the Clock was created at. It exists so
// reports can anchor relative offsets to calendar time; it must not be used
// for interval arithmetic.
func (c Clock) Epoch() time.Time {
	return c.epoch
}
