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

// Package workflow_test exercises the background workflows end to end against
// the stub backend. TestMain loads the test configuration and installs
// telemetry without exporters.
package workflow_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jaycherian/broll-scout/internal/cloud"
	"github.com/jaycherian/broll-scout/internal/core/fanout"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
	"github.com/jaycherian/broll-scout/internal/telemetry"
	test "github.com/jaycherian/broll-scout/internal/testutil"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const tName = "github.com/jaycherian/broll-scout/tests/workflow"

var (
	ctx    context.Context
	config *cloud.Config
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

func TestMain(m *testing.M) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())

	config = test.GetConfig()
	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		cancel()
		panic(err)
	}
	logger.Info("starting workflow tests")

	code := m.Run()
	_ = shutdown(ctx)
	cancel()
	os.Exit(code)
}

func newAggregator(b services.Backend) *services.Aggregator {
	cfg := cloud.PollerConfig(config.Video)
	cfg.Interval = time.Millisecond
	p := poller.New(nil, cfg, test.StubResolver{}, nil)
	return services.NewAggregator(b, prompt.DefaultBuilder(), fanout.NewExecutor(config.Application.ThreadPoolSize), p)
}
