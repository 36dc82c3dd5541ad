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

// Package stacktrace lets a computation expose its own logical call stack to
// the sampler. Labels are supplied explicitly by instrumentation, for example
// "stage:load" or "stage:plot"; there is no automatic walking of machine
// stacks.
package stacktrace

import "sync"

// Frame identifies one labeled code region at a given depth of the tracked
// stack. Depth 0 is the root region. Frame sequences are always root first.
type Frame struct {
	Label string `json:"label"`
	Depth int    `json:"depth"`
}

// Tracker maintains the current labeled region stack of one computation.
// The computation calls Enter/Exit (or Do) as it moves between regions, and a
// concurrent sampler calls Snapshot at arbitrary points. Snapshot never
// mutates tracker state, so captures cannot perturb the computation beyond
// the time the lock is held for the copy.
type Tracker struct {
	mtx    sync.Mutex
	labels []string
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Enter pushes a labeled region onto the stack.
func (t *Tracker) Enter(label string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.labels = append(t.labels, label)
}

// Exit pops the innermost region. Exiting with an empty stack is a no-op so
// unbalanced instrumentation degrades to coarser attribution instead of
// panicking mid-measurement.
func (t *Tracker) Exit() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if len(t.labels) > 0 {
		t.labels = t.labels[:len(t.labels)-1]
	}
}

// Do runs fn inside the given labeled region.
func (t *Tracker) Do(label string, fn func()) {
	t.Enter(label)
	defer t.Exit()
	fn()
}

// Snapshot returns a copy of the current frame sequence, root first. An empty
// slice means the computation is currently outside any labeled region.
func (t *Tracker) Snapshot() []Frame {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	frames := make([]Frame, len(t.labels))
	for i, label := range t.labels {
		frames[i] = Frame{Label: label, Depth: i}
	}
	return frames
}

// Depth returns the current stack depth.
func (t *Tracker) Depth() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.labels)
}
