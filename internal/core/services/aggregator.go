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
	"log/slog"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/fanout"
	"github.com/jaycherian/broll-scout/internal/core/merger"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used in spans, errors and analytics records.
const (
	OpSearch          = "search"
	OpSceneBreakdown  = "scene-breakdown"
	OpScriptBreakdown = "script-breakdown"
	OpVideo           = "video"
	OpLocations       = "locations"
	OpPreview         = "preview"
	OpSpeech          = "speech"
)

// DefaultVariations is the number of preview images generated per search.
const DefaultVariations = 3

// Aggregator runs the creative request operations. It keeps no per-call
// state; every call works on its own locals, so one Aggregator serves
// concurrent requests.
type Aggregator struct {
	Backend    Backend
	Factory    BackendFactory // Optional. Used for video calls when set.
	Builder    *prompt.Builder
	Executor   *fanout.Executor
	Poller     *poller.Poller
	Policy     *Policy
	Analytics  Recorder // Optional.
	Variations int

	tracer trace.Tracer
}

// NewAggregator wires an aggregator with the default policy and variation count.
func NewAggregator(backend Backend, builder *prompt.Builder, executor *fanout.Executor, p *poller.Poller) *Aggregator {
	return &Aggregator{
		Backend:    backend,
		Builder:    builder,
		Executor:   executor,
		Poller:     p,
		Policy:     NewPolicy(),
		Variations: DefaultVariations,
		tracer:     otel.Tracer("creative-aggregator"),
	}
}

func (a *Aggregator) start(ctx context.Context, op string) (context.Context, trace.Span) {
	tracer := a.tracer
	if tracer == nil {
		tracer = otel.Tracer("creative-aggregator")
	}
	return tracer.Start(ctx, op)
}

// Search runs a single-shot aggregation.
//
// Logic Flow:
//  1. The prompt builder produces the grounded search, the structured
//     analysis and the preview variation requests.
//  2. All of them are dispatched at once through the fan-out executor. Each
//     task writes into its own local.
//  3. Every settled sub-call goes through the policy. A failed grounded
//     search aborts with ErrRequestFailed; a failed analysis or variation is
//     absorbed and listed in Degraded.
//  4. The merger builds the aggregate from whatever settled successfully.
func (a *Aggregator) Search(ctx context.Context, q model.CreativeQuery) (*model.AggregateResult, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpSearch)
	defer span.End()

	if q.Mode != model.ModeSingleShot {
		return nil, invalid(OpSearch, "search requires the single-shot mode")
	}
	rec := model.NewAggregationRecord(OpSearch, q)
	defer func() { a.record(ctx, rec, started) }()

	reqs := a.Builder.ForQuery(q, a.Variations)
	searchReq, analysisReq, variationReqs := reqs[0], reqs[1], reqs[2:]

	var grounded *GroundedResponse
	var analysis *model.StructuredAnalysis
	images := make([]*model.GeneratedImage, len(variationReqs))

	tasks := []fanout.Task{
		{Name: searchReq.Name, Run: func(ctx context.Context) (err error) {
			grounded, err = a.Backend.GroundedSearch(ctx, searchReq)
			return err
		}},
		{Name: analysisReq.Name, Run: func(ctx context.Context) error {
			raw, err := a.Backend.CompleteStructured(ctx, analysisReq)
			if err != nil {
				return err
			}
			analysis, err = model.ParseStructuredAnalysis(raw)
			return err
		}},
	}
	for i, req := range variationReqs {
		i, req := i, req
		tasks = append(tasks, fanout.Task{Name: req.Name, Run: func(ctx context.Context) (err error) {
			images[i], err = a.Backend.SynthesizeImage(ctx, req)
			return err
		}})
	}

	parts := merger.Parts{}
	for i, err := range a.Executor.Run(ctx, tasks...) {
		absorbed, fatal := a.Policy.Settle(ctx, OpSearch, tasks[i].Name, err)
		if fatal != nil {
			rec.Failed = true
			span.SetStatus(codes.Error, fatal.Error())
			return nil, fatal
		}
		if absorbed {
			parts.Degraded = append(parts.Degraded, tasks[i].Name)
			if tasks[i].Name == analysisReq.Name {
				analysis = nil
			}
		}
	}

	if grounded != nil {
		parts.Summary = grounded.Text
		parts.Citations = grounded.Citations
	}
	parts.Analysis = analysis
	for _, img := range images {
		if img != nil {
			parts.Variations = append(parts.Variations, *img)
		}
	}

	result := merger.Merge(q, parts)
	rec.ID = result.ID
	rec.SourceCount = len(result.Sources)
	rec.ClipCount = len(result.FoundClips)
	rec.Degraded = append(rec.Degraded, result.Degraded...)
	span.SetAttributes(
		attribute.String("aggregate.id", result.ID),
		attribute.Int("aggregate.sources", len(result.Sources)),
		attribute.Int("aggregate.degraded", len(result.Degraded)),
	)
	return result, nil
}

// Links returns the quick-search deep links for a query without any backend
// call.
func (a *Aggregator) Links(text string) ([]model.QuickLink, error) {
	q, err := model.NewCreativeQuery(text, model.ModeSingleShot, nil)
	if err != nil {
		return nil, invalid("links", err.Error())
	}
	return merger.QuickSearchLinks(q.Text), nil
}

// record writes the analytics row. Analytics failures never fail the operation.
func (a *Aggregator) record(ctx context.Context, rec *model.AggregationRecord, started time.Time) {
	if a.Analytics == nil || rec == nil {
		return
	}
	rec.LatencyMs = time.Since(started).Milliseconds()
	if err := a.Analytics.Record(ctx, rec); err != nil {
		slog.WarnContext(ctx, "failed to record aggregation", "operation", rec.Operation, "error", err)
	}
}
