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

// Package stats reduces raw benchmark durations into robust summary
// statistics and ranks candidates against each other. Everything here is a
// pure function over sealed results; nothing mutates its input.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/parca-dev/chrono/pkg/bench"
)

// DefaultQuantile is the summary quantile reported when callers have no
// opinion.
const DefaultQuantile = 0.95

var (
	ErrNoSamples       = errors.New("stats: result has no samples")
	ErrInvalidQuantile = errors.New("stats: quantile must be within [0, 1]")
)

// Summary holds the derived statistics of one sealed benchmark result, all in
// nanosecond durations. Recomputed on demand, never stored alongside the raw
// samples.
type Summary struct {
	Label    string        `json:"label"`
	Count    int           `json:"count"`
	Min      time.Duration `json:"min"`
	Median   time.Duration `json:"median"`
	Mean     time.Duration `json:"mean"`
	Max      time.Duration `json:"max"`
	Quantile time.Duration `json:"quantile"`
	// Q is the quantile the Quantile field was computed at.
	Q float64 `json:"q"`
}

// Summarize computes min, median, mean, max and the requested quantile for a
// sealed result. A result with a single sample collapses every statistic to
// that sample. A result with zero samples (a fully unevaluable candidate) is
// a reportable error, not a zero-value summary.
func Summarize(res *bench.Result, q float64) (Summary, error) {
	if q < 0 || q > 1 || math.IsNaN(q) {
		return Summary{}, fmt.Errorf("%w: got %v", ErrInvalidQuantile, q)
	}
	ds := res.Durations()
	if len(ds) == 0 {
		return Summary{}, fmt.Errorf("%w: candidate %q", ErrNoSamples, res.Label())
	}

	sorted := make([]time.Duration, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range ds {
		total += d
	}

	return Summary{
		Label:    res.Label(),
		Count:    len(ds),
		Min:      sorted[0],
		Median:   median(sorted),
		Mean:     total / time.Duration(len(ds)),
		Max:      sorted[len(sorted)-1],
		Quantile: quantile(sorted, q),
		Q:        q,
	}, nil
}

// median uses the standard convention: the middle order statistic for odd
// lengths, the average of the two middle ones for even lengths.
func median(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quantile linearly interpolates between order statistics.
func quantile(sorted []time.Duration, q float64) time.Duration {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	// Round the interpolated term: truncation would turn float rounding in h
	// (e.g. 0.95*4 = 3.799...98) into an off-by-one nanosecond.
	return sorted[lo] + time.Duration(math.Round(frac*float64(sorted[lo+1]-sorted[lo])))
}

// Rank orders candidate labels by ascending median duration, declaring a
// fastest candidate first. Ties break by ascending mean, then
// lexicographically by label, so the ordering is never ambiguous.
// Unevaluable results are placed last (ordered by label among themselves)
// rather than excluded, so callers can still see them in reports.
func Rank(results map[string]*bench.Result) []string {
	type entry struct {
		label       string
		median      time.Duration
		mean        time.Duration
		unevaluable bool
	}

	entries := make([]entry, 0, len(results))
	for label, res := range results {
		e := entry{label: label}
		s, err := Summarize(res, DefaultQuantile)
		if err != nil {
			e.unevaluable = true
		} else {
			e.median = s.Median
			e.mean = s.Mean
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.unevaluable != b.unevaluable {
			return !a.unevaluable
		}
		if a.unevaluable {
			return a.label < b.label
		}
		if a.median != b.median {
			return a.median < b.median
		}
		if a.mean != b.mean {
			return a.mean < b.mean
		}
		return a.label < b.label
	})

	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.label
	}
	return labels
}
