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

package bench

import (
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/parca-dev/chrono/pkg/clock"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := clock.New()
	require.NoError(t, err)
	return NewRunner(log.NewNopLogger(), prometheus.NewRegistry(), c)
}

func TestRunValidation(t *testing.T) {
	r := newTestRunner(t)

	t.Run("emptyCandidateSet", func(t *testing.T) {
		_, err := r.Run(nil, 10)
		require.ErrorIs(t, err, ErrEmptyCandidateSet)
	})

	t.Run("invalidReplicateCount", func(t *testing.T) {
		_, err := r.Run([]Candidate{{Label: "a", Run: func() error { return nil }}}, 0)
		require.ErrorIs(t, err, ErrInvalidReplicateCount)
	})

	t.Run("duplicateLabel", func(t *testing.T) {
		_, err := r.Run([]Candidate{
			{Label: "a", Run: func() error { return nil }},
			{Label: "a", Run: func() error { return nil }},
		}, 10)
		require.ErrorIs(t, err, ErrDuplicateLabel)
	})
}

func TestRunRecordsExactlyTimesDurations(t *testing.T) {
	r := newTestRunner(t)

	results, err := r.Run([]Candidate{
		{Label: "a", Run: func() error { return nil }},
		{Label: "b", Run: func() error { return nil }},
	}, 37)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 37, results["a"].Len())
	require.Equal(t, 37, results["b"].Len())
	require.Empty(t, results["a"].Failures())

	for _, d := range results["a"].Durations() {
		require.GreaterOrEqual(t, int64(d), int64(0))
	}
}

// Every candidate must run exactly once per round: no candidate may run twice
// before another has run once. Verified by sequence inspection, not timing.
func TestRunInterleavesRoundRobin(t *testing.T) {
	r := newTestRunner(t)

	var order []string
	record := func(label string) func() error {
		return func() error {
			order = append(order, label)
			return nil
		}
	}

	const times = 25
	_, err := r.Run([]Candidate{
		{Label: "a", Run: record("a")},
		{Label: "b", Run: record("b")},
		{Label: "c", Run: record("c")},
	}, times)
	require.NoError(t, err)
	require.Len(t, order, 3*times)

	for round := 0; round < times; round++ {
		require.Equal(t, []string{"a", "b", "c"}, order[round*3:round*3+3], "round %d", round)
	}
}

func TestRunIsolatesFaults(t *testing.T) {
	r := newTestRunner(t)

	boom := errors.New("boom")
	flaky := 0
	results, err := r.Run([]Candidate{
		{Label: "good", Run: func() error { return nil }},
		{Label: "flaky", Run: func() error {
			flaky++
			if flaky%2 == 0 {
				return boom
			}
			return nil
		}},
	}, 10)
	require.NoError(t, err)

	require.Equal(t, 10, results["good"].Len())
	require.Equal(t, 5, results["flaky"].Len())

	failures := results["flaky"].Failures()
	require.Len(t, failures, 5)
	require.ErrorIs(t, failures[0], boom)
	require.Equal(t, "flaky", failures[0].Label)
	require.False(t, results["flaky"].Unevaluable())
}

func TestRunMarksUnevaluableCandidate(t *testing.T) {
	r := newTestRunner(t)

	results, err := r.Run([]Candidate{
		{Label: "good", Run: func() error { return nil }},
		{Label: "bad", Run: func() error { return errors.New("always") }},
	}, 5)
	require.NoError(t, err)

	require.True(t, results["bad"].Unevaluable())
	require.Equal(t, 0, results["bad"].Len())
	require.Len(t, results["bad"].Failures(), 5)
	require.False(t, results["good"].Unevaluable())
}

func TestRunCapturesPanics(t *testing.T) {
	r := newTestRunner(t)

	results, err := r.Run([]Candidate{
		{Label: "panics", Run: func() error { panic("kaboom") }},
	}, 3)
	require.NoError(t, err)

	require.True(t, results["panics"].Unevaluable())
	failures := results["panics"].Failures()
	require.Len(t, failures, 3)
	require.Contains(t, failures[0].Error(), "kaboom")
}

func TestResultAccessorsReturnCopies(t *testing.T) {
	r := newTestRunner(t)

	results, err := r.Run([]Candidate{
		{Label: "a", Run: func() error { return nil }},
	}, 4)
	require.NoError(t, err)

	res := results["a"]
	ds := res.Durations()
	ds[0] = -1
	require.NotEqual(t, ds[0], res.Durations()[0])
}
