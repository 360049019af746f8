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
// This file wraps a generative model handle with a rate limiter so every
// capability stays inside its quota.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: A model name, its base generation config and
//     a token bucket limiter.
//
// Functions:
//   - NewQuotaAwareModel: Creates a new instance of the wrapped model.
//   - GenerateContent: Waits for the limiter, then calls the model.
package cloud

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel pairs a model with its generation config and a
// rate limiter. The config is never mutated; per-request settings are applied
// to a copy.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
	Breaker                 *CircuitBreaker
}

// NewQuotaAwareModel wraps a model. requestsPerSecond is both the refill rate
// and the burst size; values below one mean one request per second.
//
// Inputs:
//   - config: The base generation config for the model.
//   - name: The model name, e.g. "gemini-2.5-flash".
//   - handle: The Models service of a genai client.
//   - requestsPerSecond: The quota expressed in requests per second.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	if config == nil {
		config = &genai.GenerateContentConfig{}
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond),
		Breaker:                 NewCircuitBreaker(0, 0),
	}
}

// Wait blocks until the limiter admits one request or ctx is done.
func (q *QuotaAwareGenerativeAIModel) Wait(ctx context.Context) error {
	if q.RateLimit == nil {
		return nil
	}
	return q.RateLimit.Wait(ctx)
}

// Config returns a shallow copy of the base config for per-request changes.
func (q *QuotaAwareGenerativeAIModel) Config() *genai.GenerateContentConfig {
	c := *q.GenerativeContentConfig
	return &c
}

// GenerateContent waits for quota and calls the model once. A nil config uses
// the base config.
//
// Logic Flow:
//  1. Block on the limiter. A cancelled context aborts the wait.
//  2. Call the model with the supplied or base config.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := q.Wait(ctx); err != nil {
		return nil, err
	}
	if config == nil {
		config = q.GenerativeContentConfig
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, config)
}
