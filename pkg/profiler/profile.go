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

package profiler

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/common/model"

	"github.com/parca-dev/chrono/pkg/calltree"
)

// Profile is the sealed output of one Session. It is plain data: external
// renderers consume it without re-running any measurement.
type Profile struct {
	// StartedAt anchors the profile to calendar time for reporting. All
	// measured intervals below come from the monotonic clock.
	StartedAt time.Time
	// Wall is the total elapsed time of the session.
	Wall time.Duration
	// Interval is the sampling cadence the session ran at.
	Interval time.Duration
	// TotalSamples is the number of stack samples folded into Root.
	TotalSamples int64
	// Root is the aggregated call tree. Its count equals TotalSamples.
	Root *calltree.Node
	// Labels identify the profiled workload.
	Labels model.LabelSet
	// Truncated is set when the session was cut short by its deadline; the
	// profile is still valid, just time-truncated.
	Truncated bool
}

// ID returns a stable identity for the profile derived from its label set
// and start instant.
func (p *Profile) ID() uint64 {
	sep := []byte{'\xff'}

	names := make([]string, 0, len(p.Labels))
	for name := range p.Labels {
		names = append(names, string(name))
	}
	sort.Strings(names)

	h := xxhash.New()
	for _, name := range names {
		_, _ = h.WriteString(name)
		_, _ = h.Write(sep)
		_, _ = h.WriteString(string(p.Labels[model.LabelName(name)]))
		_, _ = h.Write(sep)
	}
	var buf [8]byte
	v := uint64(p.StartedAt.UnixNano())
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
