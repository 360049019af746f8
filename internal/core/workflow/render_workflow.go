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

// Package workflow assembles commands into the pipelines the service runs in
// the background. This file defines the render workflow that serves queued
// video requests.
package workflow

import (
	"github.com/jaycherian/broll-scout/internal/core/commands"
	"github.com/jaycherian/broll-scout/internal/core/cor"
	"github.com/jaycherian/broll-scout/internal/core/model"
)

// RenderWorkflow turns one render request message into an announced result.
//
// Logic Flow:
//  1. Parse the message into a RenderRequest, filling default options.
//  2. Generate and deliver the video through the aggregator.
//  3. Publish the RenderResult, success or failure, on the completion topic.
//
// The listener acks the message when the chain records no error. A render
// that fails is published with its error and acked; a cancelled context or a
// publish failure leaves the message for redelivery.
type RenderWorkflow struct {
	cor.BaseCommand
	generator commands.VideoGenerator
	publisher commands.Publisher
	defaults  model.VideoOptions
	chain     cor.Chain
}

// NewRenderWorkflow builds the workflow and its chain.
//
// Inputs:
//   - generator: Produces the video, normally the aggregator.
//   - publisher: The completion topic.
//   - defaults: Options applied where a request leaves them unset.
func NewRenderWorkflow(generator commands.VideoGenerator, publisher commands.Publisher, defaults model.VideoOptions) *RenderWorkflow {
	w := &RenderWorkflow{
		BaseCommand: *cor.NewBaseCommand("render-workflow"),
		generator:   generator,
		publisher:   publisher,
		defaults:    defaults,
	}
	w.initializeChain()
	return w
}

func (w *RenderWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewRenderRequestReader("render-request-reader", w.defaults))
	out.AddCommand(commands.NewVideoRender("video-render", w.generator))
	out.AddCommand(commands.NewRenderResultPublisher("render-result-publisher", w.publisher))
	w.chain = out
}

func (w *RenderWorkflow) Execute(ctx cor.Context) {
	w.chain.Execute(ctx)
}
