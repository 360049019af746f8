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

// Package poller drives long-running video synthesis jobs to completion.
//
// State machine: submitted -> polling -> {completed, failed}.
//
// Logic Flow:
//  1. The caller submits a job and passes the returned operation handle to Run.
//  2. While the handle is not done, the poller sleeps for the interval and
//     issues one status check. Sleeps and checks honour the context.
//  3. A status-check error or a job-level error ends polling immediately. The
//     status check itself is never retried.
//  4. Exceeding MaxAttempts or Timeout ends polling with ErrTimeout.
//  5. On completion the media locator is resolved into a blob (the resolver
//     attaches the access credential) and a media store creates a fetchable
//     reference for it.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrTimeout   = errors.New("video operation did not complete in time")
	ErrJobFailed = errors.New("video operation failed")
	ErrNoLocator = errors.New("completed video operation has no media locator")
)

// StatusChecker re-reads the state of an operation.
type StatusChecker interface {
	CheckVideo(ctx context.Context, op *model.VideoOperation) (*model.VideoOperation, error)
}

// Config bounds the polling loop. Zero MaxAttempts or Timeout disables that bound.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// DefaultConfig polls every five seconds for at most ten minutes.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Second, MaxAttempts: 120, Timeout: 10 * time.Minute}
}

// Poller polls one operation at a time; it holds no per-job state and can be
// shared between concurrent jobs.
type Poller struct {
	cfg      Config
	checker  StatusChecker
	resolver MediaResolver
	store    MediaStore
	tracer   trace.Tracer
}

// New creates a poller. A nil store keeps resolved blobs in memory only.
func New(checker StatusChecker, cfg Config, resolver MediaResolver, store MediaStore) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:      cfg,
		checker:  checker,
		resolver: resolver,
		store:    store,
		tracer:   otel.Tracer("video-poller"),
	}
}

// WithChecker returns a copy of the poller that checks status through checker.
// It is used when a fresh backend client is created for a video call.
func (p *Poller) WithChecker(checker StatusChecker) *Poller {
	out := *p
	out.checker = checker
	return &out
}

// Wait polls until the operation completes and returns its media locator.
func (p *Poller) Wait(ctx context.Context, op *model.VideoOperation) (string, error) {
	if op == nil {
		return "", fmt.Errorf("%w: no operation handle", ErrJobFailed)
	}
	parent := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	spanCtx, span := p.tracer.Start(ctx, "poll-video-operation")
	defer span.End()
	span.SetAttributes(attribute.String("operation", op.Name))

	attempts := 0
	for !op.Done {
		if p.cfg.MaxAttempts > 0 && attempts >= p.cfg.MaxAttempts {
			span.SetStatus(codes.Error, "max attempts reached")
			return "", fmt.Errorf("%w: %d status checks", ErrTimeout, attempts)
		}
		if err := sleep(spanCtx, p.cfg.Interval); err != nil {
			if parent.Err() != nil {
				return "", parent.Err()
			}
			span.SetStatus(codes.Error, "timeout")
			return "", fmt.Errorf("%w: %v elapsed", ErrTimeout, p.cfg.Timeout)
		}

		attempts++
		next, err := p.checker.CheckVideo(spanCtx, op)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "status check failed")
			return "", fmt.Errorf("status check %d for %s failed: %w", attempts, op.Name, err)
		}
		if next == nil {
			return "", fmt.Errorf("%w: status check %d returned no operation", ErrJobFailed, attempts)
		}
		op = next
		slog.DebugContext(spanCtx, "polled video operation", "operation", op.Name, "attempt", attempts, "done", op.Done)
	}
	span.SetAttributes(attribute.Int("attempts", attempts))

	if op.Error != "" {
		span.SetStatus(codes.Error, op.Error)
		return "", fmt.Errorf("%w: %s", ErrJobFailed, op.Error)
	}
	if op.Locator == "" {
		span.SetStatus(codes.Error, "missing locator")
		return "", ErrNoLocator
	}
	span.SetStatus(codes.Ok, "completed")
	return op.Locator, nil
}

// Run polls the operation to completion, then returns the resolved media.
func (p *Poller) Run(ctx context.Context, op *model.VideoOperation) (*model.MediaBlob, error) {
	locator, err := p.Wait(ctx, op)
	if err != nil {
		return nil, err
	}
	if p.resolver == nil {
		return nil, fmt.Errorf("no media resolver configured for %s", locator)
	}
	blob, err := p.resolver.Resolve(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media locator: %w", err)
	}
	if p.store != nil {
		ref, err := p.store.Put(ctx, blob)
		if err != nil {
			return nil, fmt.Errorf("failed to store resolved media: %w", err)
		}
		blob.Reference = ref
	}
	return blob, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
