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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MeterName is the instrumentation scope of workflow metrics.
const MeterName = "github.com/jaycherian/broll-scout/workflow"

// BaseCommand holds what every command shares: a name, its input and output
// keys, a tracer and success/error counters. Embed it and implement Execute.
type BaseCommand struct {
	Name            string
	InputParamName  string
	OutputParamName string
	Tracer          trace.Tracer

	successes metric.Int64Counter
	failures  metric.Int64Counter
}

// NewBaseCommand creates the tracer and the "<name>.success" and
// "<name>.error" counters for a command.
func NewBaseCommand(name string) *BaseCommand {
	meter := otel.Meter(MeterName)
	successes, err := meter.Int64Counter(fmt.Sprintf("%s.success", name))
	if err != nil {
		slog.Error("failed to create success counter", "command", name, "error", err)
	}
	failures, err := meter.Int64Counter(fmt.Sprintf("%s.error", name))
	if err != nil {
		slog.Error("failed to create error counter", "command", name, "error", err)
	}
	return &BaseCommand{
		Name:      name,
		Tracer:    otel.Tracer(name),
		successes: successes,
		failures:  failures,
	}
}

func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable requires a request context and a value at the input key.
func (c *BaseCommand) IsExecutable(ctx Context) bool {
	return ctx != nil && ctx.GetContext() != nil && ctx.Get(c.GetInputParam()) != nil
}

func (c *BaseCommand) GetInputParam() string {
	if c.InputParamName == "" {
		return CtxIn
	}
	return c.InputParamName
}

func (c *BaseCommand) GetOutputParam() string {
	if c.OutputParamName == "" {
		return CtxOut
	}
	return c.OutputParamName
}

// Succeed stores out under the output key and counts a success.
func (c *BaseCommand) Succeed(ctx Context, out any) {
	if c.successes != nil {
		c.successes.Add(ctx.GetContext(), 1)
	}
	ctx.Add(c.GetOutputParam(), out)
}

// Fail records err against the command and counts a failure.
func (c *BaseCommand) Fail(ctx Context, err error) {
	if c.failures != nil {
		c.failures.Add(ctx.GetContext(), 1)
	}
	slog.ErrorContext(ctx.GetContext(), "command failed", "command", c.Name, "error", err)
	ctx.AddError(c.Name, err)
}
