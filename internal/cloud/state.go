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

// Package cloud provides components for interacting with Google Cloud services.
// This file manages the lifecycle of every external client the application
// uses. Only the generative client is mandatory; storage, Pub/Sub, BigQuery,
// IAM and Redis are created when the configuration asks for them.
//
// Structs:
//   - ServiceClients: Holds the initialized clients, listeners, publishers and
//     the generative backend.
//
// Functions:
//   - NewCloudServiceClients: Creates everything the configuration enables.
//   - Close: Releases every client that was created.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/jaycherian/broll-scout/internal/core/services"
	"google.golang.org/genai"
)

// Credential modes for video media fetches.
const (
	CredentialHeader = "header"
	CredentialQuery  = "query"
)

// ServiceClients is a container for the application's external clients.
// Optional clients are nil when disabled.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BiqQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient
	Cache           *RedisCache
	Fallback        *OpenAIFallback
	Backend         *GenAIBackend
	PubSubListeners map[string]*PubSubListener
	Publishers      map[string]*TopicPublisher
}

// Close releases every client that was created. It is safe on a partially
// initialized container.
func (c *ServiceClients) Close() {
	for name, p := range c.Publishers {
		slog.Info("stopping publisher", "topic", name)
		p.Stop()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BiqQueryClient != nil {
		_ = c.BiqQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

// NewCloudServiceClients initializes the clients the configuration enables.
//
// Logic Flow:
//  1. Create the genai client and the backend with its optional OpenAI
//     fallback and Redis cache.
//  2. Create a storage client when a render bucket is configured, and an IAM
//     client when URLs must be signed.
//  3. Create a Pub/Sub client when any subscription or topic is configured,
//     with one listener per subscription and one publisher per topic.
//  4. Create a BigQuery client when analytics are enabled.
//
// Inputs:
//   - ctx: The context for client creation.
//   - config: The loaded application configuration, secrets included.
//
// Outputs:
//   - *ServiceClients: The initialized container.
//   - error: The first creation error. Clients created before it are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (clients *ServiceClients, err error) {
	clients = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		Publishers:      make(map[string]*TopicPublisher),
	}
	defer func() {
		if err != nil {
			clients.Close()
			clients = nil
		}
	}()

	if clients.GenAIClient, err = NewGenAIClient(ctx, config); err != nil {
		return clients, fmt.Errorf("error creating genai client: %w", err)
	}

	var opts []BackendOption
	if config.Fallback.Enabled {
		clients.Fallback = NewOpenAIFallback(config.Fallback.APIKey, config.Fallback.Model)
		if clients.Fallback != nil {
			opts = append(opts, WithFallback(clients.Fallback))
		} else {
			slog.Warn("fallback enabled without " + EnvOpenAIAPIKey + ", continuing without it")
		}
	}
	if config.Cache.Enabled {
		if clients.Cache, err = NewRedisCache(ctx, config.Cache); err != nil {
			return clients, err
		}
		opts = append(opts, WithCache(clients.Cache))
	}
	if clients.Backend, err = NewGenAIBackend(clients.GenAIClient, config, opts...); err != nil {
		return clients, err
	}

	if config.Storage.RenderBucket != "" {
		if clients.StorageClient, err = storage.NewClient(ctx); err != nil {
			return clients, err
		}
		if config.Application.SignerServiceAccountEmail != "" {
			if clients.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
				return clients, err
			}
		}
	}

	if len(config.TopicSubscriptions) > 0 || len(config.Topics) > 0 {
		if clients.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
			return clients, err
		}
		for key, sub := range config.TopicSubscriptions {
			listener, err := NewPubSubListener(clients.PubsubClient, sub.Name, nil)
			if err != nil {
				return clients, err
			}
			clients.PubSubListeners[key] = listener
		}
		for key, topic := range config.Topics {
			clients.Publishers[key] = NewTopicPublisher(clients.PubsubClient, topic)
		}
	}

	if config.BigQueryDataSource.Enabled {
		if clients.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
			return clients, err
		}
	}
	return clients, nil
}

// BackendFactory returns a factory that builds a fresh backend from the
// current environment, so an API key selected after a credential failure is
// picked up by the next video request. The cache and fallback are shared.
func (c *ServiceClients) BackendFactory(config *Config) services.BackendFactory {
	return func(ctx context.Context) (services.Backend, error) {
		fresh := *config
		if err := LoadSecrets(&fresh); err != nil {
			return nil, err
		}
		client, err := NewGenAIClient(ctx, &fresh)
		if err != nil {
			return nil, err
		}
		var opts []BackendOption
		if c.Fallback != nil {
			opts = append(opts, WithFallback(c.Fallback))
		}
		if c.Cache != nil {
			opts = append(opts, WithCache(c.Cache))
		}
		return NewGenAIBackend(client, &fresh, opts...)
	}
}

// CurrentAPIKey returns a lookup that re-reads the secrets on every call, so
// media fetches use the same key BackendFactory hands to the next video job.
func CurrentAPIKey(config *Config) poller.KeyLookup {
	return func() string {
		fresh := *config
		if err := LoadSecrets(&fresh); err != nil {
			slog.Warn("failed to reload secrets, using the startup key", "error", err)
			return ""
		}
		return fresh.Application.APIKey
	}
}

// MediaResolver routes video locators: https through an HTTP fetch carrying
// the current API key, gs:// through the storage client when one exists.
func (c *ServiceClients) MediaResolver(config *Config) poller.MediaResolver {
	lookup := CurrentAPIKey(config)
	var credential poller.CredentialAttacher = poller.APIKeyHeader{Key: config.Application.APIKey, Lookup: lookup}
	if config.Video.Credential == CredentialQuery {
		credential = poller.APIKeyQuery{Key: config.Application.APIKey, Lookup: lookup}
	}
	if config.Application.Backend == BackendVertex {
		credential = nil
	}
	httpResolver := poller.NewHTTPResolver(credential)
	resolvers := poller.SchemeResolver{"https": httpResolver, "http": httpResolver}
	if c.StorageClient != nil {
		resolvers["gs"] = &GCSResolver{StorageClient: c.StorageClient}
	}
	return resolvers
}

// MediaStore returns where resolved videos are delivered: the render bucket
// when configured, else a local directory.
func (c *ServiceClients) MediaStore(config *Config) poller.MediaStore {
	if c.StorageClient != nil {
		return NewGCSStore(c.StorageClient, c.IAMClient, config.Storage, config.Application.SignerServiceAccountEmail)
	}
	return poller.LocalStore{Dir: config.Storage.LocalDir}
}

// PollerConfig converts the video section into poller bounds. Zero values
// keep the poller defaults.
func PollerConfig(v VideoPolling) poller.Config {
	cfg := poller.DefaultConfig()
	if v.IntervalSeconds > 0 {
		cfg.Interval = secondsOf(v.IntervalSeconds)
	}
	if v.MaxAttempts > 0 {
		cfg.MaxAttempts = v.MaxAttempts
	}
	if v.TimeoutSeconds > 0 {
		cfg.Timeout = secondsOf(v.TimeoutSeconds)
	}
	return cfg
}

func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}
