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

// Package bench implements a statistical micro-benchmark harness. A Runner
// times repeated invocations of named candidate operations and produces one
// sealed Result per candidate.
package bench

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parca-dev/chrono/pkg/clock"
)

// DefaultReplicates is the replicate count used when callers have no opinion.
const DefaultReplicates = 100

var (
	ErrEmptyCandidateSet     = errors.New("bench: empty candidate set")
	ErrInvalidReplicateCount = errors.New("bench: replicate count must be at least 1")
	ErrDuplicateLabel        = errors.New("bench: duplicate candidate label")
)

// Candidate is one named, zero-argument unit of work to be measured. Any
// state the operation needs is captured by its closure. Candidates are never
// mutated once handed to a Runner.
type Candidate struct {
	Label string
	Run   func() error
}

// EvaluationError records a single faulted invocation of a candidate. Faults
// are captured per attempt so one misbehaving candidate cannot invalidate the
// measurements of the others.
type EvaluationError struct {
	Label   string
	Attempt int
	Err     error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("bench: candidate %q attempt %d: %v", e.Label, e.Attempt, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Result holds the ordered per-invocation durations of one candidate.
// Insertion order is execution order. A Result is produced incrementally
// during a run and sealed once the run completes; accessors hand out copies
// so the sealed data cannot be mutated afterwards.
type Result struct {
	label     string
	durations []time.Duration
	failures  []*EvaluationError
}

// Label returns the candidate label this Result belongs to.
func (r *Result) Label() string { return r.label }

// Len returns the number of successfully measured invocations.
func (r *Result) Len() int { return len(r.durations) }

// Durations returns a copy of the recorded durations in execution order.
func (r *Result) Durations() []time.Duration {
	out := make([]time.Duration, len(r.durations))
	copy(out, r.durations)
	return out
}

// Failures returns the faults captured during the run, if any.
func (r *Result) Failures() []*EvaluationError {
	out := make([]*EvaluationError, len(r.failures))
	copy(out, r.failures)
	return out
}

// Unevaluable reports whether the candidate faulted on every single attempt.
// This is distinct from a candidate that legitimately measured zero elapsed
// time on each invocation.
func (r *Result) Unevaluable() bool {
	return len(r.durations) == 0 && len(r.failures) > 0
}

// Runner executes candidates and collects timing samples. A Runner is
// single-threaded per run by design: interleaving fairness depends on
// sequential, uninterrupted timing of each repetition.
type Runner struct {
	logger  log.Logger
	clock   clock.Clock
	metrics *metrics
}

func NewRunner(logger log.Logger, reg prometheus.Registerer, c clock.Clock) *Runner {
	return &Runner{
		logger:  logger,
		clock:   c,
		metrics: newMetrics(reg),
	}
}

// Run measures every candidate `times` times and returns one Result per
// candidate label. Repetitions are interleaved round-robin across candidates
// so transient system load is distributed evenly over all of them instead of
// biasing whichever happened to run first or last.
//
// Candidate return values are discarded the instant the stop reading is
// taken; the Runner retains no reference to them. Faults (returned errors and
// panics) are captured as EvaluationErrors on the faulting candidate's Result
// and do not abort the run.
func (r *Runner) Run(candidates []Candidate, times int) (map[string]*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}
	if times < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidReplicateCount, times)
	}

	results := make(map[string]*Result, len(candidates))
	for _, c := range candidates {
		if _, ok := results[c.Label]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, c.Label)
		}
		results[c.Label] = &Result{
			label:     c.Label,
			durations: make([]time.Duration, 0, times),
		}
	}

	for round := 0; round < times; round++ {
		for _, c := range candidates {
			res := results[c.Label]
			d, err := r.measure(c)
			if err != nil {
				r.metrics.invocations.WithLabelValues("error").Inc()
				res.failures = append(res.failures, &EvaluationError{
					Label:   c.Label,
					Attempt: round,
					Err:     err,
				})
				continue
			}
			r.metrics.invocations.WithLabelValues("success").Inc()
			res.durations = append(res.durations, d)
		}
	}

	for _, res := range results {
		if res.Unevaluable() {
			level.Warn(r.logger).Log(
				"msg", "candidate faulted on every attempt",
				"candidate", res.label,
				"attempts", times,
			)
		}
	}

	return results, nil
}

// measure times exactly one invocation. The clock reads bracket the call as
// tightly as possible so result handling never leaks into the measurement
// window.
func (r *Runner) measure(c Candidate) (time.Duration, error) {
	var (
		start, end time.Duration
		err        error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				end = r.clock.Now()
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		start = r.clock.Now()
		err = c.Run()
		end = r.clock.Now()
	}()
	if err != nil {
		return 0, err
	}
	return end - start, nil
}
