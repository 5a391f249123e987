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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	cerror "github.com/pingcap/chunkq/pkg/errors"
	"github.com/pingcap/chunkq/pkg/logutil"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Allocator kinds.
const (
	AllocatorHeap = "heap"
	AllocatorPool = "pool"
)

const (
	defaultChunkCapacity = 128
	defaultAllocator     = AllocatorHeap
	defaultMetricsName   = "chunkq"

	maxChunkCapacity = 1 << 20
)

// Config is the configuration of the queues created by chunkq.
type Config struct {
	Log *logutil.Config `toml:"log" json:"log"`

	// ChunkCapacity is the number of elements stored in every chunk.
	ChunkCapacity int `toml:"chunk-capacity" json:"chunk-capacity"`
	// Allocator is the allocator policy, heap or pool.
	Allocator string `toml:"allocator" json:"allocator"`
	// ChunkBudget limits the number of chunks alive at the same time,
	// 0 means unlimited.
	ChunkBudget int `toml:"chunk-budget" json:"chunk-budget"`
	// MetricsName labels the allocator metrics.
	MetricsName string `toml:"metrics-name" json:"metrics-name"`
}

// GetDefaultConfig returns a default config.
func GetDefaultConfig() *Config {
	return &Config{
		Log: &logutil.Config{
			Level: "info",
		},
		ChunkCapacity: defaultChunkCapacity,
		Allocator:     defaultAllocator,
		MetricsName:   defaultMetricsName,
	}
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		log.Error("marshal config to json failed", zap.Error(err))
	}
	return string(cfg)
}

// Toml returns TOML format representation of config.
func (c *Config) Toml() (string, error) {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", errors.Trace(err)
	}
	return b.String(), nil
}

// Adjust fills the unset items with default values.
func (c *Config) Adjust() {
	if c.Log == nil {
		c.Log = &logutil.Config{}
	}
	c.Log.Adjust()
	if c.ChunkCapacity == 0 {
		c.ChunkCapacity = defaultChunkCapacity
	}
	if c.Allocator == "" {
		c.Allocator = defaultAllocator
	}
	c.Allocator = strings.ToLower(c.Allocator)
	if c.MetricsName == "" {
		c.MetricsName = defaultMetricsName
	}
}

// Validate checks every item and reports all the problems at once.
func (c *Config) Validate() error {
	var errs error
	if c.ChunkCapacity <= 0 || c.ChunkCapacity > maxChunkCapacity {
		errs = multierr.Append(errs, fmt.Errorf(
			"chunk-capacity must be in [1, %d], got %d", maxChunkCapacity, c.ChunkCapacity))
	}
	switch c.Allocator {
	case AllocatorHeap, AllocatorPool:
	default:
		errs = multierr.Append(errs, fmt.Errorf(
			"allocator must be %s or %s, got %q", AllocatorHeap, AllocatorPool, c.Allocator))
	}
	if c.ChunkBudget < 0 {
		errs = multierr.Append(errs, fmt.Errorf(
			"chunk-budget must not be negative, got %d", c.ChunkBudget))
	}
	if errs == nil {
		return nil
	}

	msgs := make([]string, 0, len(multierr.Errors(errs)))
	for _, err := range multierr.Errors(errs) {
		msgs = append(msgs, err.Error())
	}
	return cerror.ErrInvalidConfig.GenWithStackByArgs(strings.Join(msgs, "; "))
}

// ValidateAndAdjust adjusts and then validates the config.
func (c *Config) ValidateAndAdjust() error {
	c.Adjust()
	return c.Validate()
}

// ConfigFromFile loads config from file and merges items into Config.
// Unknown items are rejected.
func (c *Config) ConfigFromFile(path string) error {
	metaData, err := toml.DecodeFile(path, c)
	if err != nil {
		return cerror.WrapError(cerror.ErrDecodeConfigFile, err, path)
	}
	return checkUndecodedItems(path, metaData)
}

// ConfigFromString loads config from a TOML string.
func (c *Config) ConfigFromString(data string) error {
	metaData, err := toml.Decode(data, c)
	if err != nil {
		return cerror.WrapError(cerror.ErrDecodeConfigFile, err, "<string>")
	}
	return checkUndecodedItems("<string>", metaData)
}

func checkUndecodedItems(path string, metaData toml.MetaData) error {
	undecoded := metaData.Undecoded()
	if len(undecoded) > 0 {
		undecodedItems := make([]string, 0, len(undecoded))
		for _, item := range undecoded {
			undecodedItems = append(undecodedItems, item.String())
		}
		return cerror.ErrConfigUnknownItem.GenWithStackByArgs(path, strings.Join(undecodedItems, ","))
	}
	return nil
}
