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

// WrapError generates a new error based on the given `err` and records
// `err` as the cause.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

// Is reports whether any error in err's chain is a normalized error with the
// same RFC code as target.
func Is(err error, target *errors.Error) bool {
	for err != nil {
		if e, ok := err.(*errors.Error); ok && e.RFCCode() == target.RFCCode() {
			return true
		}
		err = next(err)
	}
	return false
}

// RFCCode returns the RFC code of the first normalized error in err's chain.
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	for err != nil {
		if e, ok := err.(*errors.Error); ok {
			return e.RFCCode(), true
		}
		err = next(err)
	}
	return "", false
}

func next(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	default:
		return nil
	}
}
