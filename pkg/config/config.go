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

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"

	"github.com/parca-dev/chrono/pkg/bench"
	"github.com/parca-dev/chrono/pkg/sampler"
	"github.com/parca-dev/chrono/pkg/stats"
)

var (
	ErrEmptyConfig = errors.New("empty config")

	errInvalidReplicates = errors.New("replicates must be at least 1")
	errInvalidQuantile   = errors.New("quantile must be within [0, 1]")
	errInvalidInterval   = errors.New("sampling_interval must be positive")
	errInvalidDeadline   = errors.New("session_deadline must not be negative")
)

// Config holds the measurement settings of one chrono run. Everything is
// explicit: there is no ambient state a run can pick settings up from.
type Config struct {
	// Replicates is the number of timed invocations per benchmark candidate.
	Replicates int `yaml:"replicates,omitempty"`
	// Quantile is the summary quantile reported next to min/median/mean/max.
	Quantile float64 `yaml:"quantile,omitempty"`
	// SamplingInterval is the stack-sampling cadence of profiling sessions.
	SamplingInterval model.Duration `yaml:"sampling_interval,omitempty"`
	// SessionDeadline bounds one profiling session; zero means no deadline.
	SessionDeadline model.Duration `yaml:"session_deadline,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Replicates:       bench.DefaultReplicates,
		Quantile:         stats.DefaultQuantile,
		SamplingInterval: model.Duration(sampler.DefaultInterval),
	}
}

func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<error creating config string: %s>", err)
	}
	return string(b)
}

func (c *Config) Validate() error {
	if c.Replicates < 1 {
		return fmt.Errorf("%w: got %d", errInvalidReplicates, c.Replicates)
	}
	if c.Quantile < 0 || c.Quantile > 1 {
		return fmt.Errorf("%w: got %v", errInvalidQuantile, c.Quantile)
	}
	if c.SamplingInterval <= 0 {
		return fmt.Errorf("%w: got %s", errInvalidInterval, time.Duration(c.SamplingInterval))
	}
	if c.SessionDeadline < 0 {
		return fmt.Errorf("%w: got %s", errInvalidDeadline, time.Duration(c.SessionDeadline))
	}
	return nil
}

// Load parses the YAML input b into a Config. Omitted fields keep their
// defaults.
func Load(b []byte) (*Config, error) {
	if len(b) == 0 {
		return nil, ErrEmptyConfig
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses the given YAML file into a Config.
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(content)
	if err != nil {
		return nil, fmt.Errorf("parsing YAML file %s: %w", filename, err)
	}
	return cfg, nil
}
