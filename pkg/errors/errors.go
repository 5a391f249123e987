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

package errors

import (
	"github.com/pingcap/errors"
)

// errors
var (
	// container related errors
	ErrEmptyContainer = errors.Normalize(
		"container is empty, cannot access %s element",
		errors.RFCCodeText("CHUNKQ:ErrEmptyContainer"),
	)
	ErrAllocationFailure = errors.Normalize(
		"allocate chunk of %d slots failed",
		errors.RFCCodeText("CHUNKQ:ErrAllocationFailure"),
	)
	ErrChunkBudgetExhausted = errors.Normalize(
		"chunk budget exhausted, %d chunks in use",
		errors.RFCCodeText("CHUNKQ:ErrChunkBudgetExhausted"),
	)
	// ErrInternalInvariant is only used to build panic messages, a broken
	// invariant is never returned to the caller.
	ErrInternalInvariant = errors.Normalize(
		"queue invariant violated: %s",
		errors.RFCCodeText("CHUNKQ:ErrInternalInvariant"),
	)

	// replay related errors
	ErrScriptSyntax = errors.Normalize(
		"syntax error at line %d: %s",
		errors.RFCCodeText("CHUNKQ:ErrScriptSyntax"),
	)
	ErrScriptRead = errors.Normalize(
		"read script failed",
		errors.RFCCodeText("CHUNKQ:ErrScriptRead"),
	)
	ErrOpenScriptFile = errors.Normalize(
		"open script file %s failed",
		errors.RFCCodeText("CHUNKQ:ErrOpenScriptFile"),
	)

	// config related errors
	ErrInvalidConfig = errors.Normalize(
		"invalid config: %s",
		errors.RFCCodeText("CHUNKQ:ErrInvalidConfig"),
	)
	ErrDecodeConfigFile = errors.Normalize(
		"decode config file %s failed",
		errors.RFCCodeText("CHUNKQ:ErrDecodeConfigFile"),
	)
	ErrConfigUnknownItem = errors.Normalize(
		"config file %s contained unknown configuration options: %s",
		errors.RFCCodeText("CHUNKQ:ErrConfigUnknownItem"),
	)
)
