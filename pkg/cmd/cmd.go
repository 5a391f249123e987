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

package cmd

import (
	"context"
	"os"

	"github.com/pingcap/chunkq/pkg/cmd/bench"
	"github.com/pingcap/chunkq/pkg/cmd/replay"
	"github.com/pingcap/chunkq/pkg/cmd/util"
	"github.com/pingcap/chunkq/pkg/cmd/version"
	"github.com/pingcap/chunkq/pkg/logutil"
	"github.com/spf13/cobra"
)

// options defines the persistent flags of the root command.
type options struct {
	logLevel string
	logFile  string
}

// addFlags receives a *cobra.Command reference and binds
// flags related to logging to it.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level (etc: debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&o.logFile, "log-file", "", "log file path, logs go to stdout when empty")
}

// NewCmd creates the root command.
func NewCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "chunkq",
		Short: "Replay and benchmark chunked FIFO queues",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := &logutil.Config{Level: o.logLevel, File: o.logFile}
			logCfg.Adjust()
			return util.InitCmd(cmd, logCfg)
		},
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	o.addFlags(cmd)

	cmd.AddCommand(replay.NewCmdReplay())
	cmd.AddCommand(bench.NewCmdBench())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}

// Run runs the root command and exits with code 1 on failure.
func Run() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := util.InitSignalHandling(cancel)
	defer stop()

	return NewCmd().ExecuteContext(ctx)
}
