// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRequestFailed         = errors.New("could not complete the request")
	ErrCredentialReselection = errors.New("the selected API key cannot access this model, select a different key and retry")
	ErrInvalidQuery          = errors.New("invalid query")
)

// EntityNotFound is the backend message that signals a key without access to
// the video model.
const EntityNotFound = "Requested entity was not found"

// Error is returned by every aggregator operation. Message is safe to show to
// a caller; Cause carries the internal detail for logs.
type Error struct {
	Op      string
	Message string
	Kind    error
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func newError(op string, kind, cause error) *Error {
	return &Error{Op: op, Message: kind.Error(), Kind: kind, Cause: cause}
}

func invalid(op, reason string) *Error {
	return &Error{Op: op, Message: reason, Kind: ErrInvalidQuery}
}

// mentionsEntityNotFound walks the whole chain, including joined errors.
func mentionsEntityNotFound(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), EntityNotFound) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return mentionsEntityNotFound(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if mentionsEntityNotFound(e) {
				return true
			}
		}
	}
	return false
}
