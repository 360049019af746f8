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

package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"go.opentelemetry.io/otel/attribute"
)

var errNoOperation = errors.New("backend returned no video operation")

// GenerateVideo submits a video job and polls it to completion.
//
// Logic Flow:
//  1. When a BackendFactory is configured a fresh backend is built for this
//     call, so a key selected after a credential failure is used.
//  2. The job is submitted and handed to the poller, which checks status
//     through the same backend.
//  3. The completed job's locator is resolved into a blob with a fetchable
//     reference.
//  4. Any failure is fatal. A failure mentioning EntityNotFound surfaces
//     ErrCredentialReselection so the caller can ask for a different key.
func (a *Aggregator) GenerateVideo(ctx context.Context, text string, opts model.VideoOptions) (*model.MediaBlob, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpVideo)
	defer span.End()

	q, err := model.NewCreativeQuery(text, model.ModeSingleShot, nil)
	if err != nil {
		return nil, invalid(OpVideo, err.Error())
	}
	rec := model.NewAggregationRecord(OpVideo, q)
	defer func() { a.record(ctx, rec, started) }()

	backend := a.Backend
	if a.Factory != nil {
		fresh, err := a.Factory(ctx)
		if err != nil {
			rec.Failed = true
			return nil, a.Policy.Fail(ctx, OpVideo, prompt.CallVideo, err)
		}
		backend = fresh
	}

	req := a.Builder.Video(q.Text, opts)
	op, err := backend.SubmitVideo(ctx, req)
	if err == nil && op == nil {
		err = errNoOperation
	}
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpVideo, req.Name, err)
	}
	slog.InfoContext(ctx, "video job submitted", "operation", op.Name)

	blob, err := a.Poller.WithChecker(backend).Run(ctx, op)
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpVideo, req.Name, err)
	}
	span.SetAttributes(attribute.String("video.mime_type", blob.MIMEType), attribute.Int("video.size", blob.Size))
	return blob, nil
}

// Speak synthesizes narration for text with the named prebuilt voice.
func (a *Aggregator) Speak(ctx context.Context, text, voice string) (*model.AudioClip, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpSpeech)
	defer span.End()

	q, err := model.NewCreativeQuery(text, model.ModeScriptBreakdown, nil)
	if err != nil {
		return nil, invalid(OpSpeech, err.Error())
	}
	rec := model.NewAggregationRecord(OpSpeech, q)
	defer func() { a.record(ctx, rec, started) }()

	req := a.Builder.Speech(q.Text, strings.TrimSpace(voice))
	payload, err := a.Backend.Synthesize(ctx, req)
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpSpeech, req.Name, err)
	}
	clip, err := DecodeSpeech(payload)
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpSpeech, req.Name, err)
	}
	return clip, nil
}
