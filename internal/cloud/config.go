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

// Package cloud defines the application configuration, loaded from TOML files,
// and the adapters that connect the aggregator to Google Cloud and the
// generative backends.
//
// Structs:
//   - GenAIModel: Settings for one generative model, keyed by capability.
//   - Storage: The render bucket and signed URL settings.
//   - VideoPolling: Poll bounds and defaults for video synthesis.
//   - Cache: Redis settings for the grounded search cache.
//   - Fallback: OpenAI settings used when the primary text model fails.
//   - BigQueryDataSource: The analytics dataset and table.
//   - TopicSubscription: One Pub/Sub subscription.
//   - Config: The root configuration.
package cloud

import (
	"github.com/jaycherian/broll-scout/internal/core/model"
	"google.golang.org/genai"
)

// DefaultSafetySettings leaves every harm category unblocked. Creative
// references often describe violence or nightlife, which the default
// thresholds reject.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Backend names accepted in application.backend.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// BigQueryDataSource is where aggregation records are written.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"` // The BigQuery dataset.
	Table       string `toml:"table"`   // The aggregation table.
	Enabled     bool   `toml:"enabled"` // Records are dropped when false.
}

// PromptTemplates overrides the built-in instruction templates. Each template
// is rendered with .Query, and where relevant .Hint, .Example and .Location.
type PromptTemplates struct {
	Search     string `toml:"search"`
	Analysis   string `toml:"analysis"`
	Variation  string `toml:"variation"`
	Preview    string `toml:"preview"`
	SceneShots string `toml:"scene_shots"`
	Script     string `toml:"script"`
	Video      string `toml:"video"`
	Locations  string `toml:"locations"`
	Speech     string `toml:"speech"`
}

// GenAIModel configures the model serving one request capability.
type GenAIModel struct {
	Model              string  `toml:"model"`               // The model name, e.g. "gemini-2.5-flash".
	SystemInstructions string  `toml:"system_instructions"` // Optional system instructions.
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"` // Response MIME type, e.g. "application/json".
	RateLimit          int     `toml:"rate_limit"`    // Requests per second, also the burst size.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage configures where rendered videos are delivered.
type Storage struct {
	RenderBucket     string `toml:"render_bucket"`      // Bucket receiving rendered videos. Empty keeps them local.
	RenderPrefix     string `toml:"render_prefix"`      // Object prefix, e.g. "renders/".
	LocalDir         string `toml:"local_dir"`          // Directory for local media when no bucket is set.
	SignedURLMinutes int    `toml:"signed_url_minutes"` // Lifetime of delivered signed URLs.
}

// VideoPolling bounds the long-running video poller.
type VideoPolling struct {
	IntervalSeconds int                `toml:"interval_seconds"`
	MaxAttempts     int                `toml:"max_attempts"`
	TimeoutSeconds  int                `toml:"timeout_seconds"`
	Credential      string             `toml:"credential"` // "header" or "query": how the key is attached to media fetches.
	Defaults        model.VideoOptions `toml:"defaults"`
}

// Cache configures the Redis cache in front of grounded search.
type Cache struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	DB         int    `toml:"db"`
	TTLMinutes int    `toml:"ttl_minutes"`
	Password   string `toml:"-"` // From REDIS_PASSWORD.
}

// Fallback configures the OpenAI provider used for text and structured
// completion when the primary model fails.
type Fallback struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
	APIKey  string `toml:"-"` // From OPENAI_API_KEY.
}

// Breaker configures the circuit breaker guarding the backend.
type Breaker struct {
	FailureThreshold int `toml:"failure_threshold"`
	ResetSeconds     int `toml:"reset_seconds"`
}

// Sweeper configures the job that expires delivered renders.
type Sweeper struct {
	Schedule    string `toml:"schedule"` // Cron expression, e.g. "@hourly".
	MaxAgeHours int    `toml:"max_age_hours"`
}

// Config represents the overall configuration for the application, loaded from TOML files.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		Backend                   string `toml:"backend"`                      // "gemini" (API key) or "vertex".
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // Bound on concurrent sub-calls per aggregation.
		Variations                int    `toml:"variations"`                   // Preview images per search.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		APIKey                    string `toml:"-"`                            // From GEMINI_API_KEY.
	} `toml:"application"`
	Telemetry struct {
		Exporter string `toml:"exporter"` // "gcp" or "none".
	} `toml:"telemetry"`
	Storage            Storage                      `toml:"storage"`
	Video              VideoPolling                 `toml:"video"`
	Cache              Cache                        `toml:"cache"`
	Fallback           Fallback                     `toml:"fallback"`
	Breaker            Breaker                      `toml:"breaker"`
	Sweeper            Sweeper                      `toml:"sweeper"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by logical name, e.g. "RenderRequests".
	Topics             map[string]string            `toml:"topics"`              // Publish topics keyed by logical name, e.g. "RenderComplete".
	AgentModels        map[string]GenAIModel        `toml:"agent_models"`        // Keyed by capability, e.g. "grounded-search".
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// The maps are initialized so the TOML decoder can populate them.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		Topics:             make(map[string]string),
		AgentModels:        make(map[string]GenAIModel),
	}
}
