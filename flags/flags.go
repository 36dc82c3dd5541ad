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

package flags

import (
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"

	"github.com/parca-dev/chrono/pkg/logger"
)

// Flags is the command line surface of the chrono binary. Measurement
// settings can also come from a YAML config file; explicit flags win.
type Flags struct {
	Log         FlagsLogs `embed:""                 prefix:"log-"`
	HTTPAddress string    `default:"127.0.0.1:7171" help:"Address to bind HTTP server to."`
	Version     bool      `help:"Show application version."`

	ConfigPath string `default:"" help:"Path to YAML config file."`

	Replicates       int           `default:"100"  help:"Number of timed invocations per benchmark candidate."`
	Quantile         float64       `default:"0.95" help:"Summary quantile to report."`
	SamplingInterval time.Duration `default:"10ms" help:"Stack sampling interval for profiling sessions."`
	SessionDeadline  time.Duration `default:"0"    help:"Deadline for one profiling session. 0 means none."`

	OutputPprof     string `default:"chrono.pb.gz"   help:"Path to write the pprof-formatted profile to."`
	OutputCollapsed string `default:"chrono.folded"  help:"Path to write the collapsed-stack profile to."`
}

// FlagsLogs mirrors the logging setup of the other Parca binaries.
type FlagsLogs struct {
	Level  string `default:"info"   enum:"error,warn,info,debug" help:"Log level."`
	Format string `default:"logfmt" enum:"logfmt,json"           help:"Configure if structured logging as JSON or as logfmt."`
}

// ConfigureLogger constructs the process logger from the logging flags.
func (f FlagsLogs) ConfigureLogger() log.Logger {
	return logger.NewLogger(f.Level, f.Format, "chrono")
}

// Parse parses the command line into Flags, exiting with usage output on
// invalid input.
func Parse() Flags {
	flags := Flags{}
	kong.Parse(&flags)
	return flags
}
