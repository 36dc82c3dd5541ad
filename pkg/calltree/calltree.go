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

// Package calltree folds sampled stack traces into a weighted call tree,
// attributing elapsed time to code regions. Folding is a pure reduction over
// the sample log: the same ordered sample sequence always produces the same
// tree.
package calltree

import (
	"time"

	"github.com/parca-dev/chrono/pkg/sampler"
)

const (
	// RootLabel names the synthetic root every tree hangs off.
	RootLabel = "root"
	// UnlabeledLabel names the synthetic child that absorbs samples taken
	// while the computation was outside any labeled region.
	UnlabeledLabel = "unlabeled"
)

// Node is one code region in the aggregated tree, keyed by its label under
// its parent. Count is inclusive: every sample increments each ancestor on
// its path exactly once, so a node's count is never smaller than the sum of
// its children's counts. The structure is plain data so external renderers
// can serialize it directly.
type Node struct {
	Label    string           `json:"label"`
	Count    int64            `json:"count"`
	Children map[string]*Node `json:"children,omitempty"`
}

// SelfCount is the number of samples attributed to this node exclusively,
// i.e. its inclusive count minus what its descendants account for.
func (n *Node) SelfCount() int64 {
	c := n.Count
	for _, child := range n.Children {
		c -= child.Count
	}
	return c
}

// TimeEstimate converts the inclusive sample count into elapsed time at the
// given sampling interval.
func (n *Node) TimeEstimate(interval time.Duration) time.Duration {
	return time.Duration(n.Count) * interval
}

func (n *Node) child(label string) *Node {
	if n.Children == nil {
		n.Children = map[string]*Node{}
	}
	c, ok := n.Children[label]
	if !ok {
		c = &Node{Label: label}
		n.Children[label] = c
	}
	return c
}

// Aggregator incrementally folds samples into a tree. It exists so sessions
// can aggregate streams without retaining the raw sample log; Fold is the
// one-shot convenience over it.
type Aggregator struct {
	root *Node
}

func NewAggregator() *Aggregator {
	return &Aggregator{root: &Node{Label: RootLabel}}
}

// Add folds one sample into the tree. The sample's frames are walked root
// first, locating or creating a child per label and incrementing its count,
// which attributes one unit of inclusive time to every ancestor and one unit
// of self time to the deepest frame. Samples with no frames land on the
// synthetic unlabeled child.
func (a *Aggregator) Add(s sampler.Sample) {
	a.root.Count++
	if len(s.Frames) == 0 {
		a.root.child(UnlabeledLabel).Count++
		return
	}
	cur := a.root
	for _, f := range s.Frames {
		cur = cur.child(f.Label)
		cur.Count++
	}
}

// Tree returns the root of the aggregated tree. The root's count equals the
// total number of samples folded so far.
func (a *Aggregator) Tree() *Node {
	return a.root
}

// Fold reduces an ordered sample sequence to its call tree root.
func Fold(samples []sampler.Sample) *Node {
	a := NewAggregator()
	for _, s := range samples {
		a.Add(s)
	}
	return a.Tree()
}
