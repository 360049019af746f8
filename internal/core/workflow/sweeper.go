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

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/broll-scout/internal/cloud"
	"github.com/robfig/cron/v3"
)

// RenderBucket is the part of the render store the sweeper needs.
// *cloud.GCSStore satisfies it.
type RenderBucket interface {
	List(ctx context.Context) ([]cloud.ObjectInfo, error)
	Delete(ctx context.Context, name string) error
}

// RenderSweeper deletes delivered renders once they are older than MaxAge.
// Signed URLs stop working at expiry anyway; the sweep keeps the bucket from
// growing without bound.
type RenderSweeper struct {
	bucket RenderBucket
	maxAge time.Duration
	now    func() time.Time
}

// NewRenderSweeper creates a sweeper. A non-positive maxAge means 24 hours.
func NewRenderSweeper(bucket RenderBucket, maxAge time.Duration) *RenderSweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &RenderSweeper{bucket: bucket, maxAge: maxAge, now: time.Now}
}

// Sweep deletes every expired object and returns how many were removed.
// Deletion continues past individual failures; the first one is returned.
func (s *RenderSweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := s.bucket.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.maxAge)
	deleted := 0
	var firstErr error
	for _, obj := range objects {
		if !obj.Created.Before(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := s.bucket.Delete(ctx, obj.Name); err != nil {
			slog.WarnContext(ctx, "failed to delete expired render", "object", obj.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}

// Schedule registers the sweep on a new cron scheduler. The caller starts and
// stops the returned scheduler.
func (s *RenderSweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			slog.Error("render sweep failed", "deleted", n, "error", err)
			return
		}
		slog.Info("render sweep complete", "deleted", n)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", spec, err)
	}
	return c, nil
}
