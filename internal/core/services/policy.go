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
	"context"
	"log/slog"

	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for aggregator metrics.
const MeterName = "github.com/jaycherian/broll-scout"

// Policy decides whether a failed sub-call degrades the result or aborts the
// operation.
//
// Logic Flow:
//  1. A nil error settles nothing.
//  2. A call named in the fatal set aborts the operation. The error returned
//     to the caller is ErrCredentialReselection when a video failure mentions
//     EntityNotFound anywhere in its chain, ErrInvalidQuery when the cause is
//     already an invalid query, and ErrRequestFailed otherwise.
//  3. Any other call is absorbed: it is logged, counted and reported back so
//     the caller can list it as degraded.
type Policy struct {
	fatal    map[string]struct{}
	degraded metric.Int64Counter
	failed   metric.Int64Counter
}

// NewPolicy returns the default policy. Grounded search, the scene shot list,
// the script breakdown and the video job are fatal.
func NewPolicy() *Policy {
	return NewPolicyWithFatal(prompt.CallSearch, prompt.CallSceneShots, prompt.CallScript, prompt.CallVideo)
}

// NewPolicyWithFatal returns a policy treating exactly the named calls as fatal.
func NewPolicyWithFatal(calls ...string) *Policy {
	p := &Policy{fatal: make(map[string]struct{}, len(calls))}
	for _, c := range calls {
		p.fatal[c] = struct{}{}
	}
	meter := otel.Meter(MeterName)
	var err error
	if p.degraded, err = meter.Int64Counter("aggregator.subcall.degraded"); err != nil {
		slog.Error("failed to create degraded counter", "error", err)
	}
	if p.failed, err = meter.Int64Counter("aggregator.subcall.failed"); err != nil {
		slog.Error("failed to create failed counter", "error", err)
	}
	return p
}

// IsFatal reports whether a failure of call aborts the operation.
func (p *Policy) IsFatal(call string) bool {
	_, ok := p.fatal[call]
	return ok
}

// Settle applies the policy to the outcome of one sub-call.
func (p *Policy) Settle(ctx context.Context, op, call string, err error) (absorbed bool, fatal error) {
	if err == nil {
		return false, nil
	}
	if p.IsFatal(call) {
		return false, p.Fail(ctx, op, call, err)
	}
	p.Absorb(ctx, op, call, err)
	return true, nil
}

// Absorb records a degradable failure.
func (p *Policy) Absorb(ctx context.Context, op, call string, err error) {
	slog.WarnContext(ctx, "sub-call degraded", "operation", op, "call", call, "error", err)
	if p.degraded != nil {
		p.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op), attribute.String("call", call)))
	}
}

// Fail records a fatal failure and returns the caller-facing error.
func (p *Policy) Fail(ctx context.Context, op, call string, err error) error {
	if e, ok := err.(*Error); ok {
		return e
	}
	slog.ErrorContext(ctx, "sub-call failed", "operation", op, "call", call, "error", err)
	if p.failed != nil {
		p.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op), attribute.String("call", call)))
	}
	if call == prompt.CallVideo && mentionsEntityNotFound(err) {
		return newError(op, ErrCredentialReselection, err)
	}
	return newError(op, ErrRequestFailed, err)
}
