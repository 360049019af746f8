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

// Package fanout issues independent backend calls concurrently and joins on
// all of them.
//
// Logic Flow:
//  1. The caller hands over an ordered list of tasks. Each task writes its
//     result into a slot it owns (a local captured by its closure), so tasks
//     never share mutable state.
//  2. Every task is submitted to a bounded goroutine pool and runs inside its
//     own OpenTelemetry span.
//  3. A task that returns an error or panics only affects its own slot in the
//     returned error slice. Siblings keep running and are never cancelled.
//  4. Run returns after every task has settled. The error slice is index
//     aligned with the task list.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPanic wraps a panic recovered from a task.
var ErrPanic = errors.New("task panicked")

// Task is one independent unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Executor runs tasks on a bounded pool. A zero MaxConcurrency means no bound.
type Executor struct {
	MaxConcurrency int
	tracer         trace.Tracer
}

// NewExecutor creates an executor limited to maxConcurrency goroutines.
func NewExecutor(maxConcurrency int) *Executor {
	return &Executor{
		MaxConcurrency: maxConcurrency,
		tracer:         otel.Tracer("fanout-executor"),
	}
}

// Run executes all tasks concurrently and waits for every one of them.
func (e *Executor) Run(ctx context.Context, tasks ...Task) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	p := pool.New()
	if e.MaxConcurrency > 0 {
		p = p.WithMaxGoroutines(e.MaxConcurrency)
	}
	for i, task := range tasks {
		i, task := i, task
		p.Go(func() {
			errs[i] = e.invoke(ctx, i, task)
		})
	}
	p.Wait()
	return errs
}

// invoke runs a single task inside a span and converts a panic into an error.
func (e *Executor) invoke(ctx context.Context, index int, task Task) (err error) {
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer("fanout-executor")
	}
	spanCtx, span := tracer.Start(ctx, fmt.Sprintf("fanout.%s", task.Name))
	span.SetAttributes(attribute.Int("fanout.index", index))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanic, task.Name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "settled")
		}
		span.End()
	}()

	if task.Run == nil {
		return fmt.Errorf("task %s has no function", task.Name)
	}
	return task.Run(spanCtx)
}

// Outcome is the settled result of one call in a homogeneous fan-out.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Collect runs fn n times concurrently and returns the outcomes in index order.
func Collect[T any](ctx context.Context, e *Executor, name string, n int, fn func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], n)
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		i := i
		tasks[i] = Task{
			Name: fmt.Sprintf("%s-%d", name, i+1),
			Run: func(ctx context.Context) error {
				v, err := fn(ctx, i)
				out[i].Value = v
				return err
			},
		}
	}
	for i, err := range e.Run(ctx, tasks...) {
		out[i].Err = err
	}
	return out
}
