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

// Package services contains the creative request aggregator: the entry
// operations that turn a shot, scene or script description into backend calls
// and assemble their results.
package services

import (
	"context"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
)

// GroundedResponse is the text of a grounded call and the citations taken
// from its grounding metadata.
type GroundedResponse struct {
	Text      string
	Citations []model.Citation
}

// Backend is the generative backend contract. Each method maps to one request
// capability. Implementations must be safe for concurrent use.
type Backend interface {
	// Complete returns free text.
	Complete(ctx context.Context, req prompt.Request) (string, error)
	// CompleteStructured returns the raw JSON produced under req.Schema.
	CompleteStructured(ctx context.Context, req prompt.Request) ([]byte, error)
	// GroundedSearch runs a web or maps grounded call depending on the
	// request capability.
	GroundedSearch(ctx context.Context, req prompt.Request) (*GroundedResponse, error)
	// SynthesizeImage returns nil without an error when no image was produced.
	SynthesizeImage(ctx context.Context, req prompt.Request) (*model.GeneratedImage, error)
	// SubmitVideo starts a video job.
	SubmitVideo(ctx context.Context, req prompt.Request) (*model.VideoOperation, error)
	// CheckVideo re-reads the state of a video job.
	CheckVideo(ctx context.Context, op *model.VideoOperation) (*model.VideoOperation, error)
	// Synthesize returns base64 encoded 16-bit PCM speech.
	Synthesize(ctx context.Context, req prompt.Request) (string, error)
}

// BackendFactory builds a backend with freshly resolved credentials. Video
// calls use it so a newly selected key is picked up without touching shared
// state.
type BackendFactory func(ctx context.Context) (Backend, error)
