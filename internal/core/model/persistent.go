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

// This file, `persistent.go`, holds the records that leave the aggregator:
// the AggregateResult handed back to the caller and the analytics row that is
// streamed to BigQuery for every top-level operation. Neither is read back to
// restore a session.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NoSummary is the summary used when the grounded search returned no text.
const NoSummary = "No summary available."

// AggregateResult is the top-level record returned by a single-shot search.
// The structured analysis fields are flattened onto it and are either all
// copied from a parsed analysis or all absent.
type AggregateResult struct {
	ID         string      `json:"id"`
	Query      string      `json:"query"`
	Mode       Mode        `json:"mode"`
	Summary    string      `json:"summary"`
	Sources    []Citation  `json:"sources"`
	FoundClips []FoundClip `json:"foundClips"`
	QuickLinks []QuickLink `json:"quickLinks"`

	Vibe            *Vibe             `json:"vibe,omitempty"`
	TechSpecs       *TechSpecs        `json:"techSpecs,omitempty"`
	CameraSettings  *CameraSettings   `json:"cameraSettings,omitempty"`
	LightingDiagram []LightNode       `json:"lightingDiagram,omitempty"`
	Audio           *AudioSuggestions `json:"audio,omitempty"`

	PreviewURI string           `json:"previewUri,omitempty"`
	VideoURI   string           `json:"videoUri,omitempty"`
	Variations []GeneratedImage `json:"variations,omitempty"`

	// Degraded names the sub-calls whose failure was absorbed.
	Degraded  []string  `json:"degraded,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAggregateResult creates an empty aggregate for a query. The identifier is
// a random UUID assigned here, never taken from the backend, so two searches
// for the same text still get different ids.
func NewAggregateResult(q CreativeQuery) *AggregateResult {
	return &AggregateResult{
		ID:         uuid.NewString(),
		Query:      q.Text,
		Mode:       q.Mode,
		Summary:    NoSummary,
		Sources:    make([]Citation, 0),
		FoundClips: make([]FoundClip, 0),
		QuickLinks: make([]QuickLink, 0),
		CreatedAt:  time.Now(),
	}
}

// ApplyAnalysis copies every structured field from the analysis. A nil
// analysis clears all of them.
func (r *AggregateResult) ApplyAnalysis(a *StructuredAnalysis) {
	if a == nil {
		r.Vibe, r.TechSpecs, r.CameraSettings, r.LightingDiagram, r.Audio = nil, nil, nil, nil, nil
		return
	}
	r.Vibe = a.Vibe
	r.TechSpecs = a.TechSpecs
	r.CameraSettings = a.CameraSettings
	r.LightingDiagram = a.LightingDiagram
	r.Audio = a.Audio
}

// HasAnalysis reports whether any structured field is present.
func (r *AggregateResult) HasAnalysis() bool {
	return r.Vibe != nil || r.TechSpecs != nil || r.CameraSettings != nil || r.LightingDiagram != nil || r.Audio != nil
}

// AggregationRecord is the analytics row written for each top-level operation.
type AggregationRecord struct {
	ID          string    `json:"id" bigquery:"id"`
	Operation   string    `json:"operation" bigquery:"operation"`
	Mode        string    `json:"mode" bigquery:"mode"`
	Query       string    `json:"query" bigquery:"query"`
	SourceCount int       `json:"source_count" bigquery:"source_count"`
	ClipCount   int       `json:"clip_count" bigquery:"clip_count"`
	Degraded    []string  `json:"degraded" bigquery:"degraded"`
	Failed      bool      `json:"failed" bigquery:"failed"`
	LatencyMs   int64     `json:"latency_ms" bigquery:"latency_ms"`
	CreateDate  time.Time `json:"create_date" bigquery:"create_date"`
}

// NewAggregationRecord starts a record for an operation. Callers fill in the
// counts and latency once the operation settles.
func NewAggregationRecord(operation string, q CreativeQuery) *AggregationRecord {
	return &AggregationRecord{
		ID:         uuid.NewString(),
		Operation:  operation,
		Mode:       string(q.Mode),
		Query:      q.Text,
		Degraded:   make([]string, 0),
		CreateDate: time.Now(),
	}
}

// OperationStat is one row of the dashboard summary.
type OperationStat struct {
	Operation string  `json:"operation" bigquery:"operation"`
	Mode      string  `json:"mode" bigquery:"mode"`
	Total     int64   `json:"total" bigquery:"total"`
	Failed    int64   `json:"failed" bigquery:"failed"`
	Degraded  int64   `json:"degraded" bigquery:"degraded"`
	AvgMs     float64 `json:"avg_ms" bigquery:"avg_ms"`
}
