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
// This file contains GenAIBackend, the services.Backend implementation that
// talks to Gemini, Imagen-class image models, Veo and the TTS models through
// the google.golang.org/genai client.
//
// Every capability has its own quota-aware model. Text and structured calls
// may fall back to OpenAI. Grounded search responses may be cached in Redis.
// Each capability has its own circuit breaker, so a failing image model
// never blocks grounded search.
package cloud

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// DefaultModels maps each capability to the model used when the
// configuration names none.
var DefaultModels = map[prompt.Capability]string{
	prompt.CapabilityText:           "gemini-2.5-flash",
	prompt.CapabilityStructured:     "gemini-2.5-flash",
	prompt.CapabilityGroundedSearch: "gemini-2.5-flash",
	prompt.CapabilityGroundedMaps:   "gemini-2.5-flash",
	prompt.CapabilityImage:          "gemini-2.5-flash-image",
	prompt.CapabilityVideo:          "veo-3.0-fast-generate-001",
	prompt.CapabilitySpeech:         "gemini-2.5-flash-preview-tts",
}

var errEmptyResponse = errors.New("model returned an empty response")

// GenAIBackend implements services.Backend on a genai client.
type GenAIBackend struct {
	client   *genai.Client
	models   map[prompt.Capability]*QuotaAwareGenerativeAIModel
	fallback TextCompleter
	cache    ResponseCache
	// videoOutput is the gs:// prefix Vertex writes videos to, empty on the
	// Gemini API, which serves them over HTTPS.
	videoOutput string

	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

// BackendOption customizes a GenAIBackend.
type BackendOption func(*GenAIBackend)

// WithFallback enables the text fallback provider.
func WithFallback(f TextCompleter) BackendOption {
	return func(b *GenAIBackend) { b.fallback = f }
}

// WithCache enables the grounded search cache.
func WithCache(c ResponseCache) BackendOption {
	return func(b *GenAIBackend) { b.cache = c }
}

// WithBreakers replaces every capability's breaker with a fresh one using the
// given threshold and reset timeout.
func WithBreakers(failureThreshold int, resetTimeout time.Duration) BackendOption {
	return func(b *GenAIBackend) {
		for _, m := range b.models {
			m.Breaker = NewCircuitBreaker(failureThreshold, resetTimeout)
		}
	}
}

// NewGenAIClient creates the genai client for the configured backend. The
// Gemini API backend needs an API key; Vertex uses application default
// credentials with the project and location.
func NewGenAIClient(ctx context.Context, config *Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{}
	switch config.Application.Backend {
	case BackendVertex:
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.Application.GoogleProjectId
		cc.Location = config.Application.GoogleLocation
	case BackendGemini, "":
		if config.Application.APIKey == "" {
			return nil, fmt.Errorf("%s is required for the gemini backend", EnvGeminiAPIKey)
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = config.Application.APIKey
	default:
		return nil, fmt.Errorf("unknown backend %q", config.Application.Backend)
	}
	return genai.NewClient(ctx, cc)
}

// NewGenAIBackend builds one quota-aware model per capability from
// config.AgentModels, falling back to DefaultModels.
//
// Inputs:
//   - client: An initialized genai client.
//   - config: The application configuration.
//   - opts: Optional fallback, cache and breaker.
//
// Outputs:
//   - *GenAIBackend: The backend.
//   - error: An error when a metric instrument cannot be created.
func NewGenAIBackend(client *genai.Client, config *Config, opts ...BackendOption) (*GenAIBackend, error) {
	meter := otel.GetMeterProvider().Meter(services.MeterName)
	inputTokens, err := meter.Int64Counter("genai.tokens.input", metric.WithDescription("Prompt tokens sent to the generative backend"))
	if err != nil {
		return nil, err
	}
	outputTokens, err := meter.Int64Counter("genai.tokens.output", metric.WithDescription("Tokens generated by the generative backend"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("genai.retries", metric.WithDescription("Retried generative backend calls"))
	if err != nil {
		return nil, err
	}

	b := &GenAIBackend{
		client:       client,
		models:       make(map[prompt.Capability]*QuotaAwareGenerativeAIModel),
		inputTokens:  inputTokens,
		outputTokens: outputTokens,
		retries:      retries,
	}
	if config.Application.Backend == BackendVertex && config.Storage.RenderBucket != "" {
		b.videoOutput = GCSScheme + config.Storage.RenderBucket + "/" + strings.TrimPrefix(config.Storage.RenderPrefix, "/")
	}
	for capability, name := range DefaultModels {
		settings, ok := config.AgentModels[string(capability)]
		if !ok || settings.Model == "" {
			settings.Model = name
		}
		m := NewQuotaAwareModel(generationConfig(settings), settings.Model, client.Models, settings.RateLimit)
		m.Breaker = NewCircuitBreaker(config.Breaker.FailureThreshold, secondsOf(config.Breaker.ResetSeconds))
		b.models[capability] = m
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// generationConfig turns model settings into a base genai config. Zero values
// are left unset so the model defaults apply.
func generationConfig(settings GenAIModel) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: settings.OutputFormat,
		MaxOutputTokens:  settings.MaxTokens,
	}
	if settings.Temperature > 0 {
		cfg.Temperature = genai.Ptr(settings.Temperature)
	}
	if settings.TopP > 0 {
		cfg.TopP = genai.Ptr(settings.TopP)
	}
	if settings.TopK > 0 {
		cfg.TopK = genai.Ptr(settings.TopK)
	}
	if settings.SystemInstructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(settings.SystemInstructions, genai.RoleUser)
	}
	return cfg
}

// Model returns the wrapped model serving a capability.
func (b *GenAIBackend) Model(capability prompt.Capability) *QuotaAwareGenerativeAIModel {
	return b.models[capability]
}

// contents places the attachments ahead of the instruction in one user turn.
func contents(req prompt.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Instruction))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// generate runs one model call guarded by the model's breaker.
func (b *GenAIBackend) generate(ctx context.Context, req prompt.Request, m *QuotaAwareGenerativeAIModel, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := m.Breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", req.Name, m.ModelName, err)
	}
	resp, err := GenerateMultiModalResponse(ctx, b.inputTokens, b.outputTokens, b.retries, 0, m, contents(req), cfg)
	if err != nil {
		recordOutcome(ctx, m.Breaker, err)
		return nil, fmt.Errorf("%s on %s failed: %w", req.Name, m.ModelName, err)
	}
	m.Breaker.RecordSuccess()
	return resp, nil
}

// recordOutcome counts only transient failures against a breaker. Client
// errors such as a rejected prompt say nothing about backend health.
func recordOutcome(ctx context.Context, cb *CircuitBreaker, err error) {
	if ctx.Err() != nil {
		return
	}
	if retryable(err) {
		cb.RecordFailure()
		return
	}
	cb.RecordSuccess()
}

// Complete answers a free-text request.
func (b *GenAIBackend) Complete(ctx context.Context, req prompt.Request) (string, error) {
	resp, err := b.generate(ctx, req, b.models[prompt.CapabilityText], nil)
	if err == nil {
		if text := strings.TrimSpace(ResponseText(resp)); text != "" {
			return text, nil
		}
		err = fmt.Errorf("%s: %w", req.Name, errEmptyResponse)
	}
	return b.fallbackText(ctx, req, false, err)
}

// CompleteStructured answers with JSON constrained to req.Schema.
func (b *GenAIBackend) CompleteStructured(ctx context.Context, req prompt.Request) ([]byte, error) {
	m := b.models[prompt.CapabilityStructured]
	cfg := m.Config()
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = req.Schema

	resp, err := b.generate(ctx, req, m, cfg)
	if err == nil {
		if text := ExtractJSON(ResponseText(resp)); text != "" {
			return []byte(text), nil
		}
		err = fmt.Errorf("%s: %w", req.Name, errEmptyResponse)
	}
	text, err := b.fallbackText(ctx, req, true, err)
	if err != nil {
		return nil, err
	}
	return []byte(ExtractJSON(text)), nil
}

// fallbackText retries a failed text request on the fallback provider. A
// request with attachments is never sent there.
func (b *GenAIBackend) fallbackText(ctx context.Context, req prompt.Request, jsonOnly bool, primaryErr error) (string, error) {
	if b.fallback == nil || req.HasAttachments() || ctx.Err() != nil {
		return "", primaryErr
	}
	slog.WarnContext(ctx, "primary model failed, using fallback", "call", req.Name, "error", primaryErr)
	text, err := b.fallback.CompleteText(ctx, req, jsonOnly)
	if err != nil {
		return "", errors.Join(primaryErr, err)
	}
	return text, nil
}

// GroundedSearch answers with Google Search or Google Maps grounding,
// depending on req.Capability, and returns the grounding sources as citations.
func (b *GenAIBackend) GroundedSearch(ctx context.Context, req prompt.Request) (*services.GroundedResponse, error) {
	key := CacheKey(string(req.Capability), req.Instruction)
	if b.cache != nil && !req.HasAttachments() {
		if hit, ok, err := b.cache.Get(ctx, key); err != nil {
			slog.WarnContext(ctx, "grounded cache read failed", "error", err)
		} else if ok {
			return hit, nil
		}
	}

	capability := prompt.CapabilityGroundedSearch
	tool := &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	if req.Capability == prompt.CapabilityGroundedMaps {
		capability = prompt.CapabilityGroundedMaps
		tool = &genai.Tool{GoogleMaps: &genai.GoogleMaps{}}
	}
	m := b.models[capability]
	cfg := m.Config()
	cfg.Tools = []*genai.Tool{tool}
	// Grounding tools cannot be combined with a JSON response type.
	cfg.ResponseMIMEType = ""

	resp, err := b.generate(ctx, req, m, cfg)
	if err != nil {
		return nil, err
	}
	out := &services.GroundedResponse{
		Text:      strings.TrimSpace(ResponseText(resp)),
		Citations: GroundingCitations(resp),
	}

	if b.cache != nil && !req.HasAttachments() {
		if err := b.cache.Set(ctx, key, out); err != nil {
			slog.WarnContext(ctx, "grounded cache write failed", "error", err)
		}
	}
	return out, nil
}

// GroundingCitations collects web and map grounding chunks from every
// candidate in order.
func GroundingCitations(resp *genai.GenerateContentResponse) []model.Citation {
	if resp == nil {
		return nil
	}
	var out []model.Citation
	for _, candidate := range resp.Candidates {
		if candidate.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			switch {
			case chunk == nil:
			case chunk.Web != nil:
				title := chunk.Web.Title
				if title == "" {
					title = chunk.Web.Domain
				}
				out = append(out, model.WebCitation(title, chunk.Web.URI))
			case chunk.Maps != nil:
				out = append(out, model.MapCitation(chunk.Maps.Title, chunk.Maps.URI))
			}
		}
	}
	return out
}

// SynthesizeImage returns the first inline image of the response, or nil when
// the model answered with text only.
func (b *GenAIBackend) SynthesizeImage(ctx context.Context, req prompt.Request) (*model.GeneratedImage, error) {
	m := b.models[prompt.CapabilityImage]
	cfg := m.Config()
	cfg.ResponseModalities = []string{string(genai.ModalityText), string(genai.ModalityImage)}
	cfg.ResponseMIMEType = ""

	resp, err := b.generate(ctx, req, m, cfg)
	if err != nil {
		return nil, err
	}
	blob := inlineData(resp, "image/")
	if blob == nil {
		return nil, nil
	}
	return &model.GeneratedImage{MIMEType: blob.MIMEType, Data: blob.Data}, nil
}

// Synthesize returns base64 encoded speech audio.
func (b *GenAIBackend) Synthesize(ctx context.Context, req prompt.Request) (string, error) {
	m := b.models[prompt.CapabilitySpeech]
	cfg := m.Config()
	cfg.ResponseModalities = []string{string(genai.ModalityAudio)}
	cfg.ResponseMIMEType = ""
	voice := req.Voice
	if voice == "" {
		voice = prompt.DefaultVoice
	}
	cfg.SpeechConfig = &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
		},
	}

	resp, err := b.generate(ctx, req, m, cfg)
	if err != nil {
		return "", err
	}
	blob := inlineData(resp, "audio/")
	if blob == nil || len(blob.Data) == 0 {
		return "", fmt.Errorf("%s: %w", req.Name, errEmptyResponse)
	}
	return base64.StdEncoding.EncodeToString(blob.Data), nil
}

// inlineData returns the first inline part whose MIME type has prefix.
func inlineData(resp *genai.GenerateContentResponse, prefix string) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, prefix) {
				return part.InlineData
			}
		}
	}
	return nil
}

// SubmitVideo starts a video job. The first image attachment, if any, is the
// starting frame.
func (b *GenAIBackend) SubmitVideo(ctx context.Context, req prompt.Request) (*model.VideoOperation, error) {
	m := b.models[prompt.CapabilityVideo]
	if err := m.Breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", req.Name, m.ModelName, err)
	}
	if err := m.Wait(ctx); err != nil {
		return nil, err
	}

	cfg := &genai.GenerateVideosConfig{OutputGCSURI: b.videoOutput}
	if req.Video != nil {
		cfg.NumberOfVideos = req.Video.Count
		cfg.AspectRatio = req.Video.AspectRatio
		cfg.Resolution = req.Video.Resolution
	}
	var image *genai.Image
	for _, a := range req.Attachments {
		if strings.HasPrefix(a.MIMEType, "image/") {
			image = &genai.Image{ImageBytes: a.Data, MIMEType: a.MIMEType}
			break
		}
	}

	op, err := b.client.Models.GenerateVideos(ctx, m.ModelName, req.Instruction, image, cfg)
	if err != nil {
		recordOutcome(ctx, m.Breaker, err)
		return nil, fmt.Errorf("%s on %s failed: %w", req.Name, m.ModelName, err)
	}
	m.Breaker.RecordSuccess()
	return videoOperation(op), nil
}

// CheckVideo fetches the current state of a video job.
func (b *GenAIBackend) CheckVideo(ctx context.Context, op *model.VideoOperation) (*model.VideoOperation, error) {
	current, err := b.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
	if err != nil {
		return nil, err
	}
	return videoOperation(current), nil
}

// videoOperation maps a genai operation onto the backend-neutral handle.
func videoOperation(op *genai.GenerateVideosOperation) *model.VideoOperation {
	if op == nil {
		return nil
	}
	out := &model.VideoOperation{Name: op.Name, Done: op.Done}
	if !op.Done {
		return out
	}
	if op.Error != nil {
		out.Error = fmt.Sprint(op.Error["message"])
		if out.Error == "" || out.Error == "<nil>" {
			out.Error = fmt.Sprint(op.Error)
		}
		return out
	}
	if op.Response == nil {
		return out
	}
	for _, generated := range op.Response.GeneratedVideos {
		if generated != nil && generated.Video != nil && generated.Video.URI != "" {
			out.Locator = generated.Video.URI
			return out
		}
	}
	if len(op.Response.RAIMediaFilteredReasons) > 0 {
		out.Error = strings.Join(op.Response.RAIMediaFilteredReasons, "; ")
	}
	return out
}

var _ services.Backend = (*GenAIBackend)(nil)
