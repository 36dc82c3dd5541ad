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

// Package profiler orchestrates a sampler and a call-tree aggregator around
// an arbitrary unit of work and yields a finished, sealed Profile.
package profiler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"

	"github.com/parca-dev/chrono/pkg/calltree"
	"github.com/parca-dev/chrono/pkg/clock"
	"github.com/parca-dev/chrono/pkg/sampler"
	"github.com/parca-dev/chrono/pkg/stacktrace"
)

// Workload is a unit of work that exposes its own labeled stack. Run must
// honor ctx cancellation if deadline-bounded sessions are wanted; Stack is
// invoked concurrently by the sampler and must be safe at arbitrary points of
// Run's execution.
type Workload interface {
	Run(ctx context.Context) error
	Stack() []stacktrace.Frame
}

// TrackedWorkload is the common Workload implementation: a function
// instrumented through a stacktrace.Tracker.
type TrackedWorkload struct {
	tracker *stacktrace.Tracker
	run     func(context.Context, *stacktrace.Tracker) error
}

func NewTrackedWorkload(run func(context.Context, *stacktrace.Tracker) error) *TrackedWorkload {
	return &TrackedWorkload{
		tracker: stacktrace.NewTracker(),
		run:     run,
	}
}

func (w *TrackedWorkload) Run(ctx context.Context) error {
	return w.run(ctx, w.tracker)
}

func (w *TrackedWorkload) Stack() []stacktrace.Frame {
	return w.tracker.Snapshot()
}

// AbortError reports that the profiled work faulted or was cut short. The
// session still returns the partial Profile collected up to that point
// alongside it.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("profiler: session aborted: %v", e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Session profiles workloads. A Session is reusable; every Profile call runs
// its own single-use sampler.
type Session struct {
	logger         log.Logger
	clock          clock.Clock
	interval       time.Duration
	labels         model.LabelSet
	samplerMetrics *sampler.Metrics
}

type SessionOption func(*Session)

// WithInterval sets the sampling cadence. Defaults to sampler.DefaultInterval.
func WithInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.interval = d }
}

// WithLabels attaches an identifying label set to produced profiles.
func WithLabels(ls model.LabelSet) SessionOption {
	return func(s *Session) { s.labels = ls }
}

func NewSession(logger log.Logger, reg prometheus.Registerer, c clock.Clock, opts ...SessionOption) *Session {
	s := &Session{
		logger:         logger,
		clock:          c,
		interval:       sampler.DefaultInterval,
		samplerMetrics: sampler.NewMetrics(reg),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile starts a sampler, runs the workload to completion and folds the
// collected samples into a sealed Profile. The caller suspends until the
// workload finishes or ctx expires.
//
// If the workload faults, sampling still stops cleanly and the partial
// Profile is returned together with an AbortError wrapping the fault. If ctx
// expires first, the returned Profile is marked Truncated and carries
// everything sampled up to the deadline; the workload goroutine is left to
// wind down on its own via ctx.
func (s *Session) Profile(ctx context.Context, w Workload) (*Profile, error) {
	smplr := sampler.New(s.logger, s.samplerMetrics, s.clock)

	startedAt := time.Now()
	start := s.clock.Now()
	if err := smplr.Start(s.interval, w.Stack); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	var (
		werr      error
		truncated bool
	)
	select {
	case werr = <-done:
	case <-ctx.Done():
		truncated = true
		werr = ctx.Err()
		level.Warn(s.logger).Log("msg", "profiling session cut short by deadline", "err", werr)
	}

	samples := smplr.Stop()
	root := calltree.Fold(samples)
	wall := s.clock.Now() - start

	profile := &Profile{
		StartedAt:    startedAt,
		Wall:         wall,
		Interval:     s.interval,
		TotalSamples: root.Count,
		Root:         root,
		Labels:       s.labels,
		Truncated:    truncated,
	}

	level.Debug(s.logger).Log(
		"msg", "profiling session finished",
		"wall", wall,
		"samples", root.Count,
		"truncated", truncated,
	)

	if werr != nil {
		return profile, &AbortError{Err: werr}
	}
	return profile, nil
}
