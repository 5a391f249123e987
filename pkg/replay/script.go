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
	"bufio"
	"io"
	"strconv"
	"strings"

	cerror "github.com/pingcap/chunkq/pkg/errors"
)

// OpType is the type of a script operation.
type OpType int

// Operation types.
const (
	OpPush OpType = iota
	OpEmplace
	OpPop
	OpFront
	OpBack
	OpSize
	OpEmpty
	OpFlush
	OpChunks
)

var opNames = map[OpType]string{
	OpPush:    "push",
	OpEmplace: "emplace",
	OpPop:     "pop",
	OpFront:   "front",
	OpBack:    "back",
	OpSize:    "size",
	OpEmpty:   "empty",
	OpFlush:   "flush",
	OpChunks:  "chunks",
}

var opTypes = func() map[string]OpType {
	m := make(map[string]OpType, len(opNames))
	for tp, name := range opNames {
		m[name] = tp
	}
	return m
}()

func (t OpType) String() string {
	if name, ok := opNames[t]; ok {
		return name
	}
	return "unknown"
}

// Op is a single line of a script.
type Op struct {
	Type OpType
	// Value is the pushed value of push and emplace.
	Value string
	// Count is the number of repetitions of pop.
	Count int
	// Line is the 1-based line number in the script.
	Line int
}

// Parse reads a script. Blank lines and lines starting with '#' are skipped.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		op, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, cerror.WrapError(cerror.ErrScriptRead, err)
	}
	return ops, nil
}

// ParseString reads a script from a string.
func ParseString(script string) ([]Op, error) {
	return Parse(strings.NewReader(script))
}

func parseLine(line string, lineNo int) (Op, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	tp, ok := opTypes[strings.ToLower(cmd)]
	if !ok {
		return Op{}, cerror.ErrScriptSyntax.GenWithStackByArgs(lineNo, "unknown command "+strconv.Quote(cmd))
	}

	op := Op{Type: tp, Line: lineNo}
	switch tp {
	case OpPush, OpEmplace:
		if arg == "" {
			return Op{}, cerror.ErrScriptSyntax.GenWithStackByArgs(lineNo, tp.String()+" needs a value")
		}
		op.Value = arg
	case OpPop:
		op.Count = 1
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return Op{}, cerror.ErrScriptSyntax.GenWithStackByArgs(lineNo, "pop count must be a positive integer")
			}
			op.Count = n
		}
	default:
		if arg != "" {
			return Op{}, cerror.ErrScriptSyntax.GenWithStackByArgs(lineNo, tp.String()+" takes no argument")
		}
	}
	return op, nil
}
