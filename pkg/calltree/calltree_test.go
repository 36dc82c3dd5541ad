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

package calltree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parca-dev/chrono/pkg/sampler"
	"github.com/parca-dev/chrono/pkg/stacktrace"
)

func sampleOf(labels ...string) sampler.Sample {
	frames := make([]stacktrace.Frame, len(labels))
	for i, l := range labels {
		frames[i] = stacktrace.Frame{Label: l, Depth: i}
	}
	return sampler.Sample{Frames: frames}
}

func TestFoldCounts(t *testing.T) {
	root := Fold([]sampler.Sample{
		sampleOf("load"),
		sampleOf("load", "parse"),
		sampleOf("load", "parse"),
		sampleOf("plot"),
	})

	require.Equal(t, RootLabel, root.Label)
	require.EqualValues(t, 4, root.Count)

	load := root.Children["load"]
	require.NotNil(t, load)
	require.EqualValues(t, 3, load.Count)
	require.EqualValues(t, 1, load.SelfCount())

	parse := load.Children["parse"]
	require.NotNil(t, parse)
	require.EqualValues(t, 2, parse.Count)
	require.EqualValues(t, 2, parse.SelfCount())

	plot := root.Children["plot"]
	require.NotNil(t, plot)
	require.EqualValues(t, 1, plot.Count)
}

func TestFoldEmptyFramesGoUnlabeled(t *testing.T) {
	root := Fold([]sampler.Sample{
		sampleOf(),
		sampleOf("load"),
		sampleOf(),
	})

	require.EqualValues(t, 3, root.Count)
	require.EqualValues(t, 2, root.Children[UnlabeledLabel].Count)
	require.EqualValues(t, 1, root.Children["load"].Count)
}

// A node's inclusive count is never smaller than the sum of its children's.
func TestInclusiveCountInvariant(t *testing.T) {
	root := Fold([]sampler.Sample{
		sampleOf("a"),
		sampleOf("a", "b"),
		sampleOf("a", "b", "c"),
		sampleOf("a", "d"),
		sampleOf(),
		sampleOf("e"),
	})

	var check func(n *Node)
	check = func(n *Node) {
		var childSum int64
		for _, c := range n.Children {
			childSum += c.Count
			check(c)
		}
		require.GreaterOrEqual(t, n.Count, childSum, "node %q", n.Label)
		require.GreaterOrEqual(t, n.SelfCount(), int64(0), "node %q", n.Label)
	}
	check(root)
}

func TestFoldIsDeterministic(t *testing.T) {
	samples := []sampler.Sample{
		sampleOf("a", "b"),
		sampleOf("a"),
		sampleOf(),
		sampleOf("c", "b"),
		sampleOf("a", "b"),
	}

	require.Equal(t, Fold(samples), Fold(samples))
}

func TestAggregatorStreamsLikeFold(t *testing.T) {
	samples := []sampler.Sample{
		sampleOf("a"),
		sampleOf("a", "b"),
		sampleOf("c"),
	}

	agg := NewAggregator()
	for _, s := range samples {
		agg.Add(s)
	}
	require.Equal(t, Fold(samples), agg.Tree())
}

func TestTimeEstimate(t *testing.T) {
	root := Fold([]sampler.Sample{
		sampleOf("a"),
		sampleOf("a"),
		sampleOf("a"),
	})

	require.Equal(t, 30*time.Millisecond, root.Children["a"].TimeEstimate(10*time.Millisecond))
}
