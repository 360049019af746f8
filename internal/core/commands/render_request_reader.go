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

// Package commands holds the steps of the asynchronous render workflow. Each
// step embeds cor.BaseCommand, reads the previous step's output from CtxIn
// and leaves its own result in CtxOut.
//
// This file defines the first step. It turns the raw Pub/Sub payload into a
// RenderRequest.
//
// Logic Flow:
//  1. Read the JSON payload from the input parameter.
//  2. Unmarshal it into a model.RenderRequest. A malformed payload or an
//     empty prompt becomes a rejected RenderResult, which later steps pass
//     through to the completion topic so the message is acked once.
//  3. Assign a job ID when the sender did not supply one.
//  4. Fill the unset video options from the configured defaults.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jaycherian/broll-scout/internal/core/cor"
	"github.com/jaycherian/broll-scout/internal/core/model"
)

// Reasons a render request is rejected without rendering.
var (
	ErrEmptyPrompt      = errors.New("render request has an empty prompt")
	ErrMalformedRequest = errors.New("render request is not valid JSON")
)

// RenderRequestReader parses a render request message.
type RenderRequestReader struct {
	cor.BaseCommand
	defaults model.VideoOptions
}

// NewRenderRequestReader creates the reader. defaults fill any option the
// message leaves at its zero value.
func NewRenderRequestReader(name string, defaults model.VideoOptions) *RenderRequestReader {
	return &RenderRequestReader{BaseCommand: *cor.NewBaseCommand(name), defaults: defaults}
}

func (c *RenderRequestReader) Execute(ctx cor.Context) {
	in, ok := cor.Value[string](ctx, c.GetInputParam())
	if !ok {
		c.Fail(ctx, fmt.Errorf("expected a string payload at %s", c.GetInputParam()))
		return
	}

	var req model.RenderRequest
	if err := json.Unmarshal([]byte(in), &req); err != nil {
		c.reject(ctx, &req, ErrMalformedRequest, err)
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		c.reject(ctx, &req, ErrEmptyPrompt, nil)
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	req.Options = withDefaults(req.Options, c.defaults)
	c.Succeed(ctx, &req)
}

// reject outputs a failed RenderResult. Redelivering the message would fail
// the same way, so the command itself succeeds.
func (c *RenderRequestReader) reject(ctx cor.Context, req *model.RenderRequest, reason, cause error) {
	slog.WarnContext(ctx.GetContext(), "render request rejected", "job_id", req.JobID, "reason", reason, "error", cause)
	c.Succeed(ctx, &model.RenderResult{JobID: req.JobID, Prompt: req.Prompt, Error: reason.Error()})
}

func withDefaults(opts, defaults model.VideoOptions) model.VideoOptions {
	if opts.Resolution == "" {
		opts.Resolution = defaults.Resolution
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = defaults.AspectRatio
	}
	if opts.Count == 0 {
		opts.Count = defaults.Count
	}
	return opts
}
