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

package util

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap/chunkq/pkg/logutil"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// InitCmd initializes the logger of a command.
func InitCmd(cmd *cobra.Command, logCfg *logutil.Config) error {
	if err := logutil.InitLogger(logCfg); err != nil {
		cmd.PrintErrf("init logger error %v\n", errors.ErrorStack(err))
		return errors.Trace(err)
	}
	log.Info("init log", zap.String("file", logCfg.File), zap.String("level", logCfg.Level))
	return nil
}

// InitSignalHandling cancels the context bound to cancel on the first
// SIGHUP, SIGINT, SIGTERM or SIGQUIT. The returned function stops the
// handling and must be called once the command returns.
func InitSignalHandling(cancel context.CancelFunc) (stop func()) {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sc:
			log.Info("got signal, prepare to shutdown", zap.Stringer("signal", sig))
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sc)
		close(done)
	}
}

// OpenInput opens the file named by args[0], or the input of cmd when no
// argument is given.
func OpenInput(cmd *cobra.Command, args []string) (io.ReadCloser, string, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), "stdin", nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	return f, args[0], nil
}

// JSONPrint will output the data in JSON format.
func JSONPrint(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	cmd.Printf("%s\n", data)
	return nil
}

// CheckErr prints err and exits with code 1 if err is not nil.
func CheckErr(err error) {
	cobra.CheckErr(err)
}
