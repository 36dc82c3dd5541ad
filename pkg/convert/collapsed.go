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

package convert

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/parca-dev/chrono/pkg/calltree"
	"github.com/parca-dev/chrono/pkg/profiler"
)

// WriteCollapsed writes the profile's call tree in collapsed stack format:
// one "region;region;... count" line per tree node with self samples, sorted
// lexicographically. The output feeds flamegraph.pl and compatible tools
// unchanged.
func WriteCollapsed(w io.Writer, p *profiler.Profile) error {
	var lines []string
	collectCollapsed(p.Root, nil, &lines)
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("writing collapsed stack: %w", err)
		}
	}
	return nil
}

func collectCollapsed(n *calltree.Node, path []string, lines *[]string) {
	if n.Label != calltree.RootLabel {
		path = append(path, n.Label)
		if self := n.SelfCount(); self > 0 {
			*lines = append(*lines, fmt.Sprintf("%s %d", strings.Join(path, ";"), self))
		}
	}
	for _, child := range n.Children {
		collectCollapsed(child, path, lines)
	}
}
