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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/broll-scout/internal/core/cor"
	"github.com/jaycherian/broll-scout/internal/core/model"
)

// Publisher sends one payload and returns the message ID.
// *cloud.TopicPublisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, data []byte) (string, error)
}

// RenderResultPublisher announces a RenderResult on the completion topic. Its
// output is the published message ID.
type RenderResultPublisher struct {
	cor.BaseCommand
	publisher Publisher
}

func NewRenderResultPublisher(name string, publisher Publisher) *RenderResultPublisher {
	return &RenderResultPublisher{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher}
}

func (c *RenderResultPublisher) Execute(ctx cor.Context) {
	result, ok := cor.Value[*model.RenderResult](ctx, c.GetInputParam())
	if !ok {
		c.Fail(ctx, errors.New("expected a render result"))
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.Fail(ctx, fmt.Errorf("failed to marshal render result %s: %w", result.JobID, err))
		return
	}
	id, err := c.publisher.Publish(ctx.GetContext(), data)
	if err != nil {
		c.Fail(ctx, fmt.Errorf("failed to publish render result %s: %w", result.JobID, err))
		return
	}
	slog.InfoContext(ctx.GetContext(), "render result published", "job_id", result.JobID, "message_id", id)
	c.Succeed(ctx, id)
}
