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

package sampler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared across the single-use Samplers of a session, so they
// are created once per registry rather than per Sampler.
type Metrics struct {
	samples      prometheus.Counter
	skippedTicks prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		samples: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chrono_sampler_samples_total",
				Help: "Total number of stack samples captured.",
			},
		),
		skippedTicks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chrono_sampler_skipped_ticks_total",
				Help: "Total number of sampling ticks skipped because the sample queue was full.",
			},
		),
	}
}
