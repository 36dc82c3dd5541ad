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

package stacktrace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerEnterExit(t *testing.T) {
	tr := NewTracker()
	require.Empty(t, tr.Snapshot())

	tr.Enter("stage:load")
	tr.Enter("parse")

	frames := tr.Snapshot()
	require.Equal(t, []Frame{
		{Label: "stage:load", Depth: 0},
		{Label: "parse", Depth: 1},
	}, frames)

	tr.Exit()
	require.Equal(t, []Frame{{Label: "stage:load", Depth: 0}}, tr.Snapshot())

	tr.Exit()
	require.Empty(t, tr.Snapshot())

	// Unbalanced exit must not panic.
	tr.Exit()
	require.Equal(t, 0, tr.Depth())
}

func TestTrackerDoRestoresStack(t *testing.T) {
	tr := NewTracker()

	tr.Do("outer", func() {
		require.Equal(t, 1, tr.Depth())
		tr.Do("inner", func() {
			require.Equal(t, []Frame{
				{Label: "outer", Depth: 0},
				{Label: "inner", Depth: 1},
			}, tr.Snapshot())
		})
		require.Equal(t, 1, tr.Depth())
	})
	require.Equal(t, 0, tr.Depth())
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Enter("a")

	frames := tr.Snapshot()
	frames[0].Label = "mutated"
	require.Equal(t, "a", tr.Snapshot()[0].Label)
}

// Snapshot must be safe to call while the tracked computation is moving
// between regions.
func TestConcurrentSnapshot(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Do("stage:load", func() {
				tr.Do("inner", func() {})
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			frames := tr.Snapshot()
			require.LessOrEqual(t, len(frames), 2)
			for d, f := range frames {
				require.Equal(t, d, f.Depth)
			}
		}
	}()
	wg.Wait()
}
