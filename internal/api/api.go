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

// Package api exposes the aggregator over HTTP with gin. Every route lives
// under the router group handed to Register, normally "/api/v1".
//
// Routes:
//   - POST /search: Single-shot aggregation, JSON or multipart with an image.
//   - POST /scenes, /scripts: Scene and script breakdowns.
//   - POST /locations, /previews, /speech: Location scouting, lens previews
//     and narration audio.
//   - POST /videos, /videos/jobs: Synchronous video generation and queued
//     render jobs.
//   - GET /links, /lenses, /stats: Deep links, lens presets and the dashboard.
//
// Errors are mapped to 400 for invalid input, 409 with the
// "credential_reselection" code when the video key must be replaced, and 502
// with a generic message for everything else. Internal detail is logged only.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/broll-scout/internal/core/commands"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/services"
)

// CodeCredentialReselection tells the client to pick another API key.
const CodeCredentialReselection = "credential_reselection"

// DefaultMaxUploadBytes bounds multipart reference images.
const DefaultMaxUploadBytes = 10 << 20

// Creative is the aggregator surface the handlers call.
// *services.Aggregator satisfies it.
type Creative interface {
	Search(ctx context.Context, q model.CreativeQuery) (*model.AggregateResult, error)
	BreakdownScene(ctx context.Context, q model.CreativeQuery) ([]model.SceneShot, error)
	BreakdownScript(ctx context.Context, q model.CreativeQuery) ([]model.ScriptSegment, error)
	ScoutLocations(ctx context.Context, query, near string) (*services.LocationReport, error)
	GeneratePreview(ctx context.Context, q model.CreativeQuery, lensID string) (*model.GeneratedImage, error)
	GenerateVideo(ctx context.Context, text string, opts model.VideoOptions) (*model.MediaBlob, error)
	Speak(ctx context.Context, text, voice string) (*model.AudioClip, error)
	Links(text string) ([]model.QuickLink, error)
}

// Handlers holds the dependencies of every route.
type Handlers struct {
	Creative       Creative
	Jobs           commands.Publisher   // Optional. /videos/jobs answers 503 without it.
	Stats          services.StatsSource // Optional. /stats answers 503 without it.
	VideoDefaults  model.VideoOptions
	MaxUploadBytes int64
}

// Register adds every route to r.
func (h *Handlers) Register(r *gin.RouterGroup) {
	CreativeRouter(r, h)
	VideoRouter(r, h)
	Dashboard(r, h)
}

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError maps err onto a status and a caller-safe body.
func respondError(c *gin.Context, err error) {
	var svcErr *services.Error
	message := services.ErrRequestFailed.Error()
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: message})
	case errors.Is(err, services.ErrCredentialReselection):
		slog.WarnContext(c.Request.Context(), "credential reselection required", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusConflict, ErrorBody{Error: services.ErrCredentialReselection.Error(), Code: CodeCredentialReselection})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, ErrorBody{Error: services.ErrRequestFailed.Error()})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: message})
}
