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

// Command chrono benchmarks and profiles a built-in synthetic workload and
// writes the resulting profile in pprof and collapsed-stack formats. It
// exists to exercise the toolkit end to end; the library packages under pkg/
// are the actual product.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	okrun "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/model"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/parca-dev/chrono/flags"
	"github.com/parca-dev/chrono/pkg/bench"
	"github.com/parca-dev/chrono/pkg/clock"
	"github.com/parca-dev/chrono/pkg/config"
	"github.com/parca-dev/chrono/pkg/convert"
	"github.com/parca-dev/chrono/pkg/profiler"
	"github.com/parca-dev/chrono/pkg/stacktrace"
	"github.com/parca-dev/chrono/pkg/stats"
	"github.com/parca-dev/chrono/pkg/template"
)

var (
	version string
	commit  string
	date    string
)

// status holds the data rendered on the root page. The measure goroutine
// writes it while the http server reads it.
type status struct {
	mu   sync.Mutex
	page template.StatusPage
}

func newStatus(version, cfg string) *status {
	return &status{page: template.StatusPage{Version: version, Config: cfg}}
}

func (s *status) setBenchmarks(rows []template.BenchmarkRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page.Benchmarks = rows
}

func (s *status) setProfile(p *template.ProfileStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page.Profile = p
}

func (s *status) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if err := template.StatusPageTemplate.Execute(w, page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func main() {
	f := flags.Parse()

	if f.Version {
		fmt.Printf("chrono %s (commit: %s, date: %s)\n", version, commit, date)
		os.Exit(0)
	}

	logger := f.Log.ConfigureLogger()

	intro := figure.NewColorFigure("Chrono", "roman", "yellow", true)
	intro.Print()

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) {
		level.Info(logger).Log("msg", fmt.Sprintf(format, a...))
	})); err != nil {
		level.Warn(logger).Log("msg", "failed to set GOMAXPROCS automatically", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := run(logger, reg, f); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, reg *prometheus.Registry, f flags.Flags) error {
	cfg := config.Default()
	if f.ConfigPath != "" {
		var err error
		cfg, err = config.LoadFile(f.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		cfg.Replicates = f.Replicates
		cfg.Quantile = f.Quantile
		cfg.SamplingInterval = model.Duration(f.SamplingInterval)
		cfg.SessionDeadline = model.Duration(f.SessionDeadline)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	level.Debug(logger).Log("msg", "chrono initialized", "version", version, "config", cfg.String())

	ctx := context.Background()
	var g okrun.Group

	st := newStatus(version, cfg.String())

	mux := http.NewServeMux()
	mux.Handle("/", st)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", f.HTTPAddress)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", f.HTTPAddress, err)
	}
	srv := &http.Server{Handler: mux}
	g.Add(func() error {
		level.Info(logger).Log("msg", "http server listening", "addr", ln.Addr())
		return srv.Serve(ln)
	}, func(error) {
		_ = srv.Close()
	})

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			if err := measure(ctx, logger, reg, cfg, f, st); err != nil {
				cancel()
				return err
			}
			// Keep serving the status page and metrics until interrupted.
			level.Info(logger).Log("msg", "measurement complete, serving status page", "addr", f.HTTPAddress)
			<-ctx.Done()
			return ctx.Err()
		}, func(error) {
			cancel()
		})
	}

	g.Add(okrun.SignalHandler(ctx, os.Interrupt))

	err = g.Run()
	var sig okrun.SignalError
	if errors.As(err, &sig) {
		level.Info(logger).Log("msg", "terminating on signal", "signal", sig.Signal)
		return nil
	}
	return err
}

// measure runs the demo benchmark and profiling session, then writes the
// profile outputs.
func measure(ctx context.Context, logger log.Logger, reg *prometheus.Registry, cfg *config.Config, f flags.Flags, st *status) error {
	cl, err := clock.New()
	if err != nil {
		// No usable monotonic clock makes every measurement meaningless.
		return err
	}

	runner := bench.NewRunner(logger, reg, cl)
	results, err := runner.Run(demoCandidates(), cfg.Replicates)
	if err != nil {
		return err
	}

	ranking := stats.Rank(results)
	rows := make([]template.BenchmarkRow, 0, len(ranking))
	for i, label := range ranking {
		s, err := stats.Summarize(results[label], cfg.Quantile)
		if err != nil {
			level.Warn(logger).Log("msg", "candidate unevaluable", "candidate", label, "err", err)
			rows = append(rows, template.BenchmarkRow{Rank: i + 1, Label: label, Unevaluable: true})
			continue
		}
		rows = append(rows, template.BenchmarkRow{
			Rank:     i + 1,
			Label:    label,
			Count:    s.Count,
			Min:      s.Min,
			Median:   s.Median,
			Mean:     s.Mean,
			Max:      s.Max,
			Quantile: s.Quantile,
		})
		level.Info(logger).Log(
			"msg", "benchmark candidate summarized",
			"rank", i+1,
			"candidate", label,
			"replicates", humanize.Comma(int64(s.Count)),
			"min", s.Min,
			"median", s.Median,
			"mean", s.Mean,
			"max", s.Max,
			fmt.Sprintf("p%d", int(cfg.Quantile*100)), s.Quantile,
		)
	}
	st.setBenchmarks(rows)
	level.Info(logger).Log("msg", "fastest candidate", "candidate", ranking[0])

	if d := time.Duration(cfg.SessionDeadline); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	session := profiler.NewSession(logger, reg, cl,
		profiler.WithInterval(time.Duration(cfg.SamplingInterval)),
		profiler.WithLabels(model.LabelSet{"workload": "demo"}),
	)

	profile, err := session.Profile(ctx, profiler.NewTrackedWorkload(demoWorkload))
	if err != nil {
		// A partial profile is still worth writing out.
		level.Warn(logger).Log("msg", "profiling session aborted", "err", err)
	}
	if profile == nil {
		return err
	}
	level.Info(logger).Log(
		"msg", "profiling session finished",
		"id", fmt.Sprintf("%x", profile.ID()),
		"wall", profile.Wall,
		"samples", humanize.Comma(profile.TotalSamples),
		"truncated", profile.Truncated,
	)
	st.setProfile(&template.ProfileStatus{
		ID:           fmt.Sprintf("%x", profile.ID()),
		Labels:       profile.Labels,
		Wall:         profile.Wall,
		Interval:     profile.Interval,
		TotalSamples: profile.TotalSamples,
		Truncated:    profile.Truncated,
	})

	var eg errgroup.Group
	eg.Go(func() error { return writePprof(f.OutputPprof, profile) })
	eg.Go(func() error { return writeCollapsed(f.OutputCollapsed, profile) })
	if err := eg.Wait(); err != nil {
		return err
	}

	level.Info(logger).Log("msg", "profiles written", "pprof", f.OutputPprof, "collapsed", f.OutputCollapsed)
	return nil
}

func writePprof(path string, p *profiler.Profile) error {
	prof, err := convert.ToPprof(p)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return prof.Write(file)
}

func writeCollapsed(path string, p *profiler.Profile) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return convert.WriteCollapsed(file, p)
}

// demoCandidates compares three ways of assembling the same string, a
// workload small enough to need statistical treatment to tell apart.
func demoCandidates() []bench.Candidate {
	words := make([]string, 64)
	for i := range words {
		words[i] = fmt.Sprintf("word-%d", i)
	}

	return []bench.Candidate{
		{Label: "strings.Join", Run: func() error {
			_ = strings.Join(words, " ")
			return nil
		}},
		{Label: "strings.Builder", Run: func() error {
			var b strings.Builder
			for i, w := range words {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(w)
			}
			_ = b.String()
			return nil
		}},
		{Label: "concat", Run: func() error {
			var s string
			for i, w := range words {
				if i > 0 {
					s += " "
				}
				s += w
			}
			return nil
		}},
	}
}

// demoWorkload hashes in two labeled stages of different sizes so the
// resulting flame graph has an obvious shape.
func demoWorkload(ctx context.Context, tr *stacktrace.Tracker) error {
	var err error
	tr.Do("stage:load", func() {
		err = hashRounds(ctx, 4<<20)
	})
	if err != nil {
		return err
	}
	tr.Do("stage:plot", func() {
		err = hashRounds(ctx, 1<<20)
	})
	return err
}

func hashRounds(ctx context.Context, bytes int) error {
	buf := make([]byte, 4096)
	sum := sha256.Sum256(buf)
	for done := len(buf); done < bytes; done += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(buf, sum[:])
		sum = sha256.Sum256(buf)
	}
	_ = sum
	return nil
}
