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

// Package sampler implements interval-based stack sampling. A Sampler fires
// at a fixed cadence, captures the instrumented computation's current stack
// through a caller-supplied provider, and buffers the resulting samples until
// Stop drains them.
package sampler

import (
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"

	"github.com/parca-dev/chrono/pkg/clock"
	"github.com/parca-dev/chrono/pkg/stacktrace"
)

// DefaultInterval is the sampling cadence used when callers have no opinion.
// 10ms (100Hz) balances resolution against capture overhead.
const DefaultInterval = 10 * time.Millisecond

const defaultQueueCapacity = 8192

var (
	ErrInvalidInterval = errors.New("sampler: interval must be positive")
	ErrAlreadyStarted  = errors.New("sampler: already started")
	ErrNilProvider     = errors.New("sampler: nil stack provider")
)

// StackProvider returns the current frame sequence of the computation being
// profiled, root first. It is invoked from the sampling goroutine at
// arbitrary points of the computation's execution and must not mutate
// computation state.
type StackProvider func() []stacktrace.Frame

// Sample is one stack snapshot: the offset since the sampler was started and
// the frames captured at that instant. Samples are created by the Sampler and
// consumed read-only by the aggregator.
type Sample struct {
	Offset time.Duration
	Frames []stacktrace.Frame
}

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Sampler is a single-use Idle → Running → Stopped state machine. Sampling
// runs on its own goroutine, concurrently with the instrumented computation;
// the two make progress independently. The sample queue is bounded: a tick
// that finds it full is skipped and counted rather than stalling either side,
// which reduces resolution but never corrupts results.
type Sampler struct {
	logger  log.Logger
	clock   clock.Clock
	metrics *Metrics

	queue *xsync.MPMCQueueOf[Sample]
	state *atomic.Int32
	start time.Duration

	// mtx serializes Start/Stop transitions so the running state is never
	// observable before done/finished are assigned.
	mtx      sync.Mutex
	done     chan struct{}
	finished chan struct{}
}

type Option func(*options)

type options struct {
	queueCapacity int
}

// WithQueueCapacity bounds the number of samples buffered between Start and
// Stop. Once full, further ticks are skipped.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

func New(logger log.Logger, m *Metrics, c clock.Clock, opts ...Option) *Sampler {
	o := options{queueCapacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return &Sampler{
		logger:  logger,
		clock:   c,
		metrics: m,
		queue:   xsync.NewMPMCQueueOf[Sample](o.queueCapacity),
		state:   atomic.NewInt32(stateIdle),
	}
}

// Start transitions Idle → Running and begins firing every interval. Each
// firing invokes the provider and enqueues the captured sample. Under load
// the actual firing period may exceed the interval, but a tick is never fired
// early and never double-counted.
func (s *Sampler) Start(interval time.Duration, provider StackProvider) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if provider == nil {
		return ErrNilProvider
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyStarted
	}

	s.start = s.clock.Now()
	s.done = make(chan struct{})
	s.finished = make(chan struct{})

	go s.run(interval, provider)
	return nil
}

func (s *Sampler) run(interval time.Duration, provider StackProvider) {
	defer close(s.finished)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.capture(provider)
		}
	}
}

func (s *Sampler) capture(provider StackProvider) {
	sample := Sample{
		Offset: s.clock.Now() - s.start,
		Frames: provider(),
	}
	if !s.queue.TryEnqueue(sample) {
		s.metrics.skippedTicks.Inc()
		level.Debug(s.logger).Log("msg", "sample queue full, skipping tick", "offset", sample.Offset)
		return
	}
	s.metrics.samples.Inc()
}

// Stop transitions Running → Stopped, stops firing and returns all buffered
// samples in capture order. Stop is idempotent: on an already stopped (or
// never started) sampler it returns whatever remains in the buffer, which
// after the first call is nothing.
func (s *Sampler) Stop() []Sample {
	s.mtx.Lock()
	if s.state.CompareAndSwap(stateRunning, stateStopped) {
		close(s.done)
		<-s.finished
	} else {
		s.state.CompareAndSwap(stateIdle, stateStopped)
	}
	s.mtx.Unlock()

	var samples []Sample
	for {
		sample, ok := s.queue.TryDequeue()
		if !ok {
			return samples
		}
		samples = append(samples, sample)
	}
}

// Running reports whether the sampler is currently firing.
func (s *Sampler) Running() bool {
	return s.state.Load() == stateRunning
}
