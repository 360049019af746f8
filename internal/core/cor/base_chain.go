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

package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain runs its commands in order, each in its own span.
//
// Logic Flow:
//  1. Stop before a command when the request context is done, or when an
//     earlier command failed and ContinueOnFailure is off.
//  2. Skip a command whose IsExecutable is false and record why.
//  3. After each command move CtxOut to CtxIn for the next one.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable only needs a request context; the first command checks its input.
func (c *BaseChain) IsExecutable(ctx Context) bool {
	return ctx != nil && ctx.GetContext() != nil
}

func (c *BaseChain) Execute(chCtx Context) {
	parent := chCtx.GetContext()
	outer, chainSpan := c.Tracer.Start(parent, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()
	defer chCtx.SetContext(parent)

	for _, command := range c.commands {
		if err := outer.Err(); err != nil {
			chCtx.AddError(c.GetName(), fmt.Errorf("chain stopped before %s: %w", command.GetName(), err))
			break
		}
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}

		cmdCtx, span := c.Tracer.Start(outer, command.GetName())
		chCtx.SetContext(cmdCtx)
		if command.IsExecutable(chCtx) {
			command.Execute(chCtx)
		} else {
			chCtx.AddError(command.GetName(), fmt.Errorf("command %s is not executable, missing %s", command.GetName(), command.GetInputParam()))
		}
		chCtx.SetContext(outer)

		if err, failed := chCtx.GetErrors()[command.GetName()]; failed {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		out := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if out != nil {
			chCtx.Add(CtxIn, out)
		}
		chCtx.Remove(CtxOut)
	}

	if chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Error, "chain failed")
	} else {
		chainSpan.SetStatus(codes.Ok, "")
	}
}
