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

package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jaycherian/broll-scout/internal/core/cor"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VideoGenerator produces a delivered video for a prompt.
// *services.Aggregator satisfies it.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, text string, opts model.VideoOptions) (*model.MediaBlob, error)
}

// VideoRender runs the video synthesis for a RenderRequest and outputs a
// RenderResult.
//
// A failed render is an outcome, not a command failure: the result carries
// the caller-safe error message and the chain continues so the result is
// announced. Only a cancelled or expired context fails the command, which
// leaves the message unacknowledged for redelivery. A RenderResult arriving as
// input is a request the reader rejected and is passed through untouched.
type VideoRender struct {
	cor.BaseCommand
	generator VideoGenerator
}

func NewVideoRender(name string, generator VideoGenerator) *VideoRender {
	return &VideoRender{BaseCommand: *cor.NewBaseCommand(name), generator: generator}
}

func (c *VideoRender) Execute(ctx cor.Context) {
	if rejected, ok := cor.Value[*model.RenderResult](ctx, c.GetInputParam()); ok {
		c.Succeed(ctx, rejected)
		return
	}
	req, ok := cor.Value[*model.RenderRequest](ctx, c.GetInputParam())
	if !ok {
		c.Fail(ctx, errors.New("expected a render request"))
		return
	}
	reqCtx := ctx.GetContext()
	trace.SpanFromContext(reqCtx).SetAttributes(attribute.String("render.job_id", req.JobID))

	result := &model.RenderResult{JobID: req.JobID, Prompt: req.Prompt}
	blob, err := c.generator.GenerateVideo(reqCtx, req.Prompt, req.Options)
	if err != nil {
		if ctxErr := reqCtx.Err(); ctxErr != nil {
			c.Fail(ctx, ctxErr)
			return
		}
		result.Error = publicMessage(err)
		slog.WarnContext(reqCtx, "render failed", "job_id", req.JobID, "error", err)
		c.Succeed(ctx, result)
		return
	}

	result.Reference = blob.Reference
	result.MIMEType = blob.MIMEType
	slog.InfoContext(reqCtx, "render complete", "job_id", req.JobID, "reference", blob.Reference)
	c.Succeed(ctx, result)
}

// publicMessage returns the part of err that can leave the service.
func publicMessage(err error) string {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return services.ErrRequestFailed.Error()
}
