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

// Package cor is a small Chain of Responsibility toolkit used by the
// asynchronous render workflow. A Chain runs its Commands in order over one
// shared Context; the output of each command becomes the input of the next.
//
// Interfaces:
//   - Context: The data bag, error list and request context shared by a run.
//   - Command: One unit of work.
//   - Chain: A Command made of ordered Commands.
package cor

import (
	"context"
)

// Well-known Context keys used to pipe data between consecutive commands.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context carries the state of one chain run.
type Context interface {
	// SetContext replaces the request context, e.g. with a span context.
	SetContext(ctx context.Context)
	GetContext() context.Context

	Add(key string, value any) Context
	Get(key string) any
	Remove(key string)

	// AddError records the failure of the named command.
	AddError(name string, err error)
	GetErrors() map[string]error
	HasErrors() bool
	// Err joins every recorded error, nil when there are none.
	Err() error

	// OnClose registers a release function run by Close in reverse order.
	OnClose(fn func())
	Close()
}

// Command is one step of a workflow.
type Command interface {
	GetName() string
	GetInputParam() string
	GetOutputParam() string
	IsExecutable(ctx Context) bool
	Execute(ctx Context)
}

// Chain is a Command that runs other commands in order.
type Chain interface {
	Command
	ContinueOnFailure(bool) Chain
	AddCommand(command Command) Chain
}

// Value returns the value at key when it holds a T.
func Value[T any](c Context, key string) (T, bool) {
	v, ok := c.Get(key).(T)
	return v, ok
}
