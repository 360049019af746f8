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

// Package main contains the setup of the application state: configuration,
// external clients, the aggregator and the HTTP handlers.
//
// Functions:
//   - SetupOS: Points the configuration loader at the configs directory unless
//     the environment already does.
//   - GetConfig: Loads the configuration and secrets once.
//   - InitState: Creates the clients and wires the aggregator, the handlers,
//     the render listener and the sweeper.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/broll-scout/internal/api"
	"github.com/jaycherian/broll-scout/internal/cloud"
	"github.com/jaycherian/broll-scout/internal/core/fanout"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
	"github.com/jaycherian/broll-scout/internal/core/workflow"
	"github.com/robfig/cron/v3"
)

// Logical names of the Pub/Sub resources in the configuration.
const (
	RenderRequests = "RenderRequests"
	RenderComplete = "RenderComplete"
)

// StateManager holds the shared dependencies of the server.
type StateManager struct {
	config     *cloud.Config
	cloud      *cloud.ServiceClients
	aggregator *services.Aggregator
	handlers   *api.Handlers
	sweeper    *cron.Cron
}

var state = &StateManager{}

// SetupOS defaults the configuration prefix to "configs" and the runtime to
// "local". Values already in the environment win.
func SetupOS() error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

// GetConfig loads the configuration on first use.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup os: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	if err := cloud.LoadSecrets(config); err != nil {
		return nil, err
	}
	state.config = config
	return config, nil
}

// InitState creates every client and wires the application.
//
// Logic Flow:
//  1. Create the clients the configuration enables.
//  2. Build the aggregator: prompt builder from the configured templates,
//     bounded fan-out executor, video poller with the configured resolver and
//     store, the backend factory for video calls and, when enabled, BigQuery
//     analytics.
//  3. Build the HTTP handlers over the aggregator.
//  4. Attach the render workflow to the render request subscription.
//  5. Schedule the render sweeper when renders are delivered to a bucket.
func InitState(ctx context.Context) error {
	config, err := GetConfig()
	if err != nil {
		return err
	}

	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = clients

	builder, err := prompt.NewBuilder(prompt.Templates(config.PromptTemplates), config.Video.Defaults)
	if err != nil {
		return err
	}
	store := clients.MediaStore(config)
	p := poller.New(nil, cloud.PollerConfig(config.Video), clients.MediaResolver(config), store)

	agg := services.NewAggregator(clients.Backend, builder, fanout.NewExecutor(config.Application.ThreadPoolSize), p)
	agg.Factory = clients.BackendFactory(config)
	if config.Application.Variations > 0 {
		agg.Variations = config.Application.Variations
	}
	analytics := analyticsService(config, clients)
	if analytics != nil {
		agg.Analytics = analytics
	}
	state.aggregator = agg

	state.handlers = &api.Handlers{
		Creative:      agg,
		VideoDefaults: config.Video.Defaults,
	}
	if analytics != nil {
		state.handlers.Stats = analytics
	}
	if jobs, ok := clients.Publishers[RenderRequests]; ok {
		state.handlers.Jobs = jobs
	}

	SetupListeners(ctx, config, clients, agg)

	if gcs, ok := store.(*cloud.GCSStore); ok && config.Sweeper.Schedule != "" {
		maxAge := time.Duration(config.Sweeper.MaxAgeHours) * time.Hour
		state.sweeper, err = workflow.NewRenderSweeper(gcs, maxAge).Schedule(ctx, config.Sweeper.Schedule)
		if err != nil {
			return err
		}
		state.sweeper.Start()
		slog.Info("render sweeper scheduled", "schedule", config.Sweeper.Schedule, "max_age", maxAge)
	}
	return nil
}

func analyticsService(config *cloud.Config, clients *cloud.ServiceClients) *services.AnalyticsService {
	if clients.BiqQueryClient == nil {
		return nil
	}
	return &services.AnalyticsService{
		BigqueryClient: clients.BiqQueryClient,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		Table:          config.BigQueryDataSource.Table,
	}
}

// CloseState stops the sweeper and releases the clients.
func CloseState() {
	if state.sweeper != nil {
		<-state.sweeper.Stop().Done()
	}
	if state.cloud != nil {
		state.cloud.Close()
	}
}
