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

package fanout_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/fanout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunKeepsTaskOrder makes the first task the slowest so completion order
// is the reverse of submission order.
func TestRunKeepsTaskOrder(t *testing.T) {
	e := fanout.NewExecutor(0)
	results := make([]int, 3)

	tasks := make([]fanout.Task, 3)
	for i := range tasks {
		i := i
		tasks[i] = fanout.Task{Name: "slot", Run: func(ctx context.Context) error {
			time.Sleep(time.Duration(3-i) * 10 * time.Millisecond)
			results[i] = i * 10
			if i == 1 {
				return errors.New("boom")
			}
			return nil
		}}
	}

	errs := e.Run(context.Background(), tasks...)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.EqualError(t, errs[1], "boom")
	assert.NoError(t, errs[2])
	assert.Equal(t, []int{0, 10, 20}, results)
}

// TestRunIsolatesFailures checks that neither an error nor a panic stops the
// siblings and that the context handed to siblings is not cancelled.
func TestRunIsolatesFailures(t *testing.T) {
	e := fanout.NewExecutor(2)
	var completed atomic.Int32

	errs := e.Run(context.Background(),
		fanout.Task{Name: "panics", Run: func(ctx context.Context) error { panic("bad payload") }},
		fanout.Task{Name: "fails", Run: func(ctx context.Context) error { return errors.New("quota") }},
		fanout.Task{Name: "slow", Run: func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			completed.Add(1)
			return nil
		}},
		fanout.Task{Name: "nil"},
	)

	assert.ErrorIs(t, errs[0], fanout.ErrPanic)
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
	assert.Error(t, errs[3])
	assert.Equal(t, int32(1), completed.Load())
}

// TestRunIsAJoinBarrier verifies Run does not return before the slowest task.
func TestRunIsAJoinBarrier(t *testing.T) {
	e := fanout.NewExecutor(0)
	var done atomic.Bool
	start := time.Now()

	e.Run(context.Background(),
		fanout.Task{Name: "fast", Run: func(ctx context.Context) error { return errors.New("early failure") }},
		fanout.Task{Name: "slow", Run: func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			done.Store(true)
			return nil
		}},
	)

	assert.True(t, done.Load())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRunWithNoTasks(t *testing.T) {
	assert.Empty(t, fanout.NewExecutor(1).Run(context.Background()))
}

func TestCollect(t *testing.T) {
	e := fanout.NewExecutor(4)
	outcomes := fanout.Collect(context.Background(), e, "square", 5, func(ctx context.Context, i int) (int, error) {
		if i == 3 {
			return 0, errors.New("skipped")
		}
		return i * i, nil
	})

	require.Len(t, outcomes, 5)
	for i, o := range outcomes {
		if i == 3 {
			assert.False(t, o.OK())
			continue
		}
		assert.True(t, o.OK())
		assert.Equal(t, i*i, o.Value)
	}
}
