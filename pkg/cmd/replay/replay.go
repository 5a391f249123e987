// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package replay

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pingcap/chunkq/pkg/cmd/util"
	"github.com/pingcap/chunkq/pkg/config"
	"github.com/pingcap/chunkq/pkg/container/queue"
	cerror "github.com/pingcap/chunkq/pkg/errors"
	"github.com/pingcap/chunkq/pkg/replay"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options defines flags for the `replay` command.
type options struct {
	configFile    string
	chunkCapacity int
	allocator     string
	chunkBudget   int
	metricsName   string
	rate          int
	metrics       bool
	summary       bool

	cfg *config.Config
}

// newOptions creates new options for the `replay` command.
func newOptions() *options {
	return &options{}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to the replay to it.
func (o *options) addFlags(cmd *cobra.Command) {
	defaultCfg := config.GetDefaultConfig()
	cmd.Flags().StringVar(&o.configFile, "config", "", "path of the configuration file")
	cmd.Flags().IntVar(&o.chunkCapacity, "chunk-capacity", defaultCfg.ChunkCapacity, "number of elements in a chunk")
	cmd.Flags().StringVar(&o.allocator, "allocator", defaultCfg.Allocator, "chunk allocator (etc: heap|pool)")
	cmd.Flags().IntVar(&o.chunkBudget, "chunk-budget", defaultCfg.ChunkBudget, "max chunks alive at once, 0 means unlimited")
	cmd.Flags().StringVar(&o.metricsName, "metrics-name", defaultCfg.MetricsName, "label of the allocator metrics")
	cmd.Flags().IntVar(&o.rate, "rate", 0, "max operations per second, 0 means unlimited")
	cmd.Flags().BoolVar(&o.metrics, "metrics", false, "print allocator metrics after the run")
	cmd.Flags().BoolVar(&o.summary, "summary", false, "print the run summary in JSON format")
}

// complete loads the config file and applies the flags that were set
// explicitly on top of it.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := config.GetDefaultConfig()
	flags := cmd.Flags()
	if o.configFile != "" {
		if err := cfg.ConfigFromFile(o.configFile); err != nil {
			return errors.Trace(err)
		}
		// The [log] section of the file applies unless the persistent log
		// flags were given.
		logCfg := *cfg.Log
		if flags.Changed("log-level") {
			logCfg.Level, _ = flags.GetString("log-level")
		}
		if flags.Changed("log-file") {
			logCfg.File, _ = flags.GetString("log-file")
		}
		if err := util.InitCmd(cmd, &logCfg); err != nil {
			return errors.Trace(err)
		}
	}
	if flags.Changed("chunk-capacity") {
		cfg.ChunkCapacity = o.chunkCapacity
	}
	if flags.Changed("allocator") {
		cfg.Allocator = o.allocator
	}
	if flags.Changed("chunk-budget") {
		cfg.ChunkBudget = o.chunkBudget
	}
	if flags.Changed("metrics-name") {
		cfg.MetricsName = o.metricsName
	}
	if err := cfg.ValidateAndAdjust(); err != nil {
		return errors.Trace(err)
	}
	o.cfg = cfg
	return nil
}

// run runs the `replay` command.
func (o *options) run(cmd *cobra.Command, args []string) error {
	input, name, err := util.OpenInput(cmd, args)
	if err != nil {
		return cerror.WrapError(cerror.ErrOpenScriptFile, err, args[0])
	}
	ops, err := replay.Parse(input)
	input.Close()
	if err != nil {
		return errors.Trace(err)
	}
	log.Info("replay script",
		zap.String("script", name),
		zap.Int("operations", len(ops)),
		zap.Stringer("config", o.cfg))

	registry := prometheus.NewRegistry()
	queue.InitMetrics(registry)
	alloc := replay.NewAllocator(o.cfg)
	defer alloc.Close()

	q := queue.New(
		queue.WithChunkCapacity[string](o.cfg.ChunkCapacity),
		queue.WithAllocator[string](alloc))
	summary, runErr := replay.NewExecutor(q, cmd.OutOrStdout(), replay.WithRate(o.rate)).Run(cmd.Context(), ops)
	q.Release()
	log.Info("replay finished",
		zap.Int("operations", summary.Ops),
		zap.Int("pushed", summary.Pushed),
		zap.Int("popped", summary.Popped),
		zap.Int("maxChunks", summary.MaxChunks),
		zap.Error(runErr))

	if o.summary {
		if err := util.JSONPrint(cmd, summary); err != nil {
			return errors.Trace(err)
		}
	}
	if o.metrics {
		if err := printMetrics(cmd, registry, o.cfg.MetricsName); err != nil {
			return errors.Trace(err)
		}
	}
	return runErr
}

// printMetrics prints the samples labelled with name, one per line.
func printMetrics(cmd *cobra.Command, gatherer prometheus.Gatherer, name string) error {
	families, err := gatherer.Gather()
	if err != nil {
		return errors.Trace(err)
	}
	for _, family := range families {
		lines := make([]string, 0, len(family.GetMetric()))
		for _, m := range family.GetMetric() {
			if labelValue(m, "name") != name {
				continue
			}
			lines = append(lines, formatSample(family.GetName(), m))
		}
		sort.Strings(lines)
		for _, line := range lines {
			cmd.Println(line)
		}
	}
	return nil
}

func labelValue(m *dto.Metric, label string) string {
	for _, pair := range m.GetLabel() {
		if pair.GetName() == label {
			return pair.GetValue()
		}
	}
	return ""
}

func formatSample(family string, m *dto.Metric) string {
	var b strings.Builder
	b.WriteString(family)
	b.WriteByte('{')
	for i, pair := range m.GetLabel() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(pair.GetName())
		b.WriteString(`="`)
		b.WriteString(pair.GetValue())
		b.WriteByte('"')
	}
	b.WriteString("} ")
	var value float64
	switch {
	case m.GetCounter() != nil:
		value = m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		value = m.GetGauge().GetValue()
	}
	b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	return b.String()
}

// NewCmdReplay creates the `replay` command.
func NewCmdReplay() *cobra.Command {
	o := newOptions()
	command := &cobra.Command{
		Use:   "replay [script]",
		Short: "Replay an operation script against a chunked queue",
		Long: `Replay reads an operation script from the given file, or from stdin when
no file is given, and applies it to a queue of strings. Each line holds one
operation: push <v>, emplace <v>, pop [n], front, back, size, empty, flush
or chunks. Blank lines and lines starting with '#' are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd); err != nil {
				return err
			}
			return o.run(cmd, args)
		},
	}
	o.addFlags(command)

	return command
}
