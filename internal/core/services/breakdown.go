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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/merger"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"go.opentelemetry.io/otel/attribute"
)

var errNoImage = errors.New("backend produced no image")

// BreakdownScene asks for a shot list covering the scene. A backend or parse
// failure aborts the operation.
func (a *Aggregator) BreakdownScene(ctx context.Context, q model.CreativeQuery) ([]model.SceneShot, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpSceneBreakdown)
	defer span.End()

	rec := model.NewAggregationRecord(OpSceneBreakdown, q)
	defer func() { a.record(ctx, rec, started) }()

	req := a.Builder.SceneShots(q)
	shots, err := structured[[]model.SceneShot](ctx, a.Backend, req)
	if err == nil && len(shots) == 0 {
		err = errors.New("empty shot list")
	}
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpSceneBreakdown, req.Name, err)
	}
	for i := range shots {
		if shots[i].Number <= 0 {
			shots[i].Number = i + 1
		}
	}
	rec.SourceCount = len(shots)
	span.SetAttributes(attribute.Int("shots", len(shots)))
	return shots, nil
}

// BreakdownScript splits a narration script into segments, each paired with a
// visual search phrase. A backend or parse failure aborts the operation.
func (a *Aggregator) BreakdownScript(ctx context.Context, q model.CreativeQuery) ([]model.ScriptSegment, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpScriptBreakdown)
	defer span.End()

	rec := model.NewAggregationRecord(OpScriptBreakdown, q)
	defer func() { a.record(ctx, rec, started) }()

	req := a.Builder.ScriptBreakdown(q)
	segments, err := structured[[]model.ScriptSegment](ctx, a.Backend, req)
	if err == nil && len(segments) == 0 {
		err = errors.New("empty script breakdown")
	}
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpScriptBreakdown, req.Name, err)
	}
	rec.SourceCount = len(segments)
	span.SetAttributes(attribute.Int("segments", len(segments)))
	return segments, nil
}

// LocationReport is the outcome of a location scouting call.
type LocationReport struct {
	Summary   string              `json:"summary"`
	Locations []model.MapLocation `json:"locations"`
}

// ScoutLocations runs a maps grounded call. Each distinct map citation becomes
// a location with the placeholder sun windows attached.
func (a *Aggregator) ScoutLocations(ctx context.Context, query, near string) (*LocationReport, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpLocations)
	defer span.End()

	q, err := model.NewCreativeQuery(query, model.ModeSingleShot, nil)
	if err != nil {
		return nil, invalid(OpLocations, err.Error())
	}
	rec := model.NewAggregationRecord(OpLocations, q)
	defer func() { a.record(ctx, rec, started) }()

	req := a.Builder.Locations(q.Text, strings.TrimSpace(near))
	resp, err := a.Backend.GroundedSearch(ctx, req)
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpLocations, req.Name, err)
	}

	report := &LocationReport{Summary: model.NoSummary, Locations: make([]model.MapLocation, 0)}
	if resp == nil {
		return report, nil
	}
	if strings.TrimSpace(resp.Text) != "" {
		report.Summary = resp.Text
	}
	for _, c := range merger.DedupeCitations(resp.Citations) {
		if !c.IsMap() {
			continue
		}
		report.Locations = append(report.Locations, model.MapLocation{Title: c.Title, URI: c.URI, Sun: model.PlaceholderSun()})
	}
	rec.SourceCount = len(report.Locations)
	return report, nil
}

// GeneratePreview renders one preview image through the named lens preset. An
// empty lens id selects the default lens.
func (a *Aggregator) GeneratePreview(ctx context.Context, q model.CreativeQuery, lensID string) (*model.GeneratedImage, error) {
	started := time.Now()
	ctx, span := a.start(ctx, OpPreview)
	defer span.End()

	lens, ok := prompt.LensByID(lensID)
	if !ok {
		return nil, invalid(OpPreview, fmt.Sprintf("unknown lens %q", lensID))
	}
	rec := model.NewAggregationRecord(OpPreview, q)
	defer func() { a.record(ctx, rec, started) }()

	req := a.Builder.Preview(q, lens)
	img, err := a.Backend.SynthesizeImage(ctx, req)
	if err == nil && img == nil {
		err = errNoImage
	}
	if err != nil {
		rec.Failed = true
		return nil, a.Policy.Fail(ctx, OpPreview, req.Name, err)
	}
	span.SetAttributes(attribute.String("lens", lens.ID))
	return img, nil
}

// structured runs a structured completion and decodes it into T. A decode
// failure is reported like a transport failure.
func structured[T any](ctx context.Context, b Backend, req prompt.Request) (T, error) {
	var out T
	raw, err := b.CompleteStructured(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to parse %s response: %w", req.Name, err)
	}
	return out, nil
}
