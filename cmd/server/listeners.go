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

// Package main contains the wiring of the Pub/Sub listeners to the background
// workflows.
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/broll-scout/internal/cloud"
	"github.com/jaycherian/broll-scout/internal/core/services"
	"github.com/jaycherian/broll-scout/internal/core/workflow"
)

// SetupListeners attaches the render workflow to the render request
// subscription and starts it. Without both the subscription and the
// completion topic, queued renders are disabled.
func SetupListeners(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients, agg *services.Aggregator) {
	listener, hasListener := clients.PubSubListeners[RenderRequests]
	publisher, hasPublisher := clients.Publishers[RenderComplete]
	if !hasListener || !hasPublisher {
		slog.Info("render listener disabled", "subscription", hasListener, "completion_topic", hasPublisher)
		return
	}

	render := workflow.NewRenderWorkflow(agg, publisher, config.Video.Defaults)
	listener.SetCommand(render)
	listener.Listen(ctx)
}
