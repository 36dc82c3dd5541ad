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

// Package convert renders sealed profiles into external formats: pprof for
// the usual tooling (go tool pprof, speedscope, Parca) and Brendan Gregg's
// collapsed stack format for flame-graph scripts. Conversion never re-runs
// any measurement.
package convert

import (
	"fmt"
	"sort"

	"github.com/google/pprof/profile"
	"github.com/prometheus/common/model"

	"github.com/parca-dev/chrono/pkg/calltree"
	"github.com/parca-dev/chrono/pkg/profiler"
)

// ToPprof converts a sealed Profile into the pprof format. Each call-tree
// node with self samples becomes one pprof sample whose location chain is the
// node's path, leaf first. Period metadata carries the sampling interval so
// consumers can reconstruct time estimates from sample counts.
func ToPprof(p *profiler.Profile) (*profile.Profile, error) {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: "samples",
			Unit: "count",
		}},
		TimeNanos:     p.StartedAt.UnixNano(),
		DurationNanos: int64(p.Wall),
		PeriodType: &profile.ValueType{
			Type: "cpu",
			Unit: "nanoseconds",
		},
		Period: int64(p.Interval),
	}

	labelNames := make([]string, 0, len(p.Labels))
	for name := range p.Labels {
		labelNames = append(labelNames, string(name))
	}
	sort.Strings(labelNames)
	for _, name := range labelNames {
		prof.Comments = append(prof.Comments,
			fmt.Sprintf("%s=%s", name, p.Labels[model.LabelName(name)]))
	}

	b := &pprofBuilder{
		prof:      prof,
		locations: map[string]*profile.Location{},
	}
	b.walk(p.Root, nil)

	if err := prof.CheckValid(); err != nil {
		return nil, fmt.Errorf("converting profile to pprof: %w", err)
	}
	return prof, nil
}

type pprofBuilder struct {
	prof      *profile.Profile
	locations map[string]*profile.Location
}

// walk emits one sample per tree node with self samples. The path is the
// ancestor chain excluding the synthetic root; children are visited in label
// order so conversion is deterministic.
func (b *pprofBuilder) walk(n *calltree.Node, path []*profile.Location) {
	if n.Label != calltree.RootLabel {
		path = append(path, b.location(n.Label))
		if self := n.SelfCount(); self > 0 {
			// pprof wants the leaf first.
			locs := make([]*profile.Location, len(path))
			for i, loc := range path {
				locs[len(path)-1-i] = loc
			}
			b.prof.Sample = append(b.prof.Sample, &profile.Sample{
				Location: locs,
				Value:    []int64{self},
			})
		}
	}

	labels := make([]string, 0, len(n.Children))
	for label := range n.Children {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		b.walk(n.Children[label], path)
	}
}

// location returns the pprof location for a region label, creating the
// location and its function on first use. Labels are logical regions, not
// addresses, so one location per label is exact.
func (b *pprofBuilder) location(label string) *profile.Location {
	if loc, ok := b.locations[label]; ok {
		return loc
	}

	fn := &profile.Function{
		ID:   uint64(len(b.prof.Function) + 1),
		Name: label,
	}
	b.prof.Function = append(b.prof.Function, fn)

	loc := &profile.Location{
		ID:   uint64(len(b.prof.Location) + 1),
		Line: []profile.Line{{Function: fn}},
	}
	b.prof.Location = append(b.prof.Location, loc)

	b.locations[label] = loc
	return loc
}
