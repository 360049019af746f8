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

// Package prompt turns a creative query into backend request descriptors.
//
// The builder never talks to the backend. Every method is a pure function of
// its inputs and the templates the builder was constructed with, so the same
// query always produces the same descriptors.
//
// Logic Flow:
//  1. NewBuilder parses the instruction templates once. Built-in defaults are
//     used for any template the configuration does not override.
//  2. Each builder method renders one template with the query text (and a
//     lens or variation hint where relevant) into the instruction string.
//  3. Structured requests get a declarative output schema; grounded requests
//     get a tool capability; media requests get their output options.
//  4. A reference image is never rendered into the instruction. It travels as
//     an attachment and the instruction is prefixed with a style directive.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"google.golang.org/genai"
)

// Capability is the class of backend model a request targets.
type Capability string

const (
	CapabilityText           Capability = "text"
	CapabilityStructured     Capability = "structured"
	CapabilityGroundedSearch Capability = "grounded-search"
	CapabilityGroundedMaps   Capability = "grounded-maps"
	CapabilityImage          Capability = "image"
	CapabilityVideo          Capability = "video"
	CapabilitySpeech         Capability = "speech"
)

// Names of the sub-calls. They show up in spans, logs, metrics and in
// AggregateResult.Degraded.
const (
	CallSearch     = "grounded-search"
	CallAnalysis   = "structured-analysis"
	CallVariation  = "variation"
	CallPreview    = "lens-preview"
	CallSceneShots = "scene-shot-list"
	CallScript     = "script-breakdown"
	CallVideo      = "video"
	CallLocations  = "location-scout"
	CallSpeech     = "speech"
)

// ReferenceStyleDirective prefixes instructions that carry a reference image.
const ReferenceStyleDirective = "Derive the color palette, lighting and overall visual style from the attached reference image. "

// DefaultVoice is the prebuilt voice used when a speech request names none.
const DefaultVoice = "Kore"

// Attachment is an auxiliary binary payload sent next to the instruction.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// Request describes one backend call.
type Request struct {
	Name        string
	Capability  Capability
	Instruction string
	Schema      *genai.Schema       // Declared output shape, structured requests only.
	Attachments []Attachment        // Reference images and other auxiliary payloads.
	Video       *model.VideoOptions // Output options, video requests only.
	Voice       string              // Prebuilt voice, speech requests only.
}

// HasAttachments reports whether the request carries any auxiliary payload.
func (r Request) HasAttachments() bool {
	return len(r.Attachments) > 0
}

// Templates holds optional instruction template overrides. Empty fields keep
// the built-in default.
type Templates struct {
	Search     string
	Analysis   string
	Variation  string
	Preview    string
	SceneShots string
	Script     string
	Video      string
	Locations  string
	Speech     string
}

// templateData is what every instruction template is rendered with.
type templateData struct {
	Query    string
	Hint     string
	Example  string
	Location string
}

// Builder renders request descriptors.
type Builder struct {
	search     *template.Template
	analysis   *template.Template
	variation  *template.Template
	preview    *template.Template
	sceneShots *template.Template
	script     *template.Template
	video      *template.Template
	locations  *template.Template
	speech     *template.Template

	videoDefaults model.VideoOptions
	scriptExample string
}

// NewBuilder parses the templates, falling back to the defaults for every
// empty override. It fails only when an override is not a valid template.
func NewBuilder(overrides Templates, videoDefaults model.VideoOptions) (*Builder, error) {
	pick := func(name, override, fallback string) (*template.Template, error) {
		src := fallback
		if override != "" {
			src = override
		}
		t, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		return t, nil
	}

	b := &Builder{videoDefaults: videoDefaults}
	var err error
	if b.search, err = pick("search", overrides.Search, defaultSearchTemplate); err != nil {
		return nil, err
	}
	if b.analysis, err = pick("analysis", overrides.Analysis, defaultAnalysisTemplate); err != nil {
		return nil, err
	}
	if b.variation, err = pick("variation", overrides.Variation, defaultVariationTemplate); err != nil {
		return nil, err
	}
	if b.preview, err = pick("preview", overrides.Preview, defaultPreviewTemplate); err != nil {
		return nil, err
	}
	if b.sceneShots, err = pick("scene-shots", overrides.SceneShots, defaultSceneShotsTemplate); err != nil {
		return nil, err
	}
	if b.script, err = pick("script", overrides.Script, defaultScriptTemplate); err != nil {
		return nil, err
	}
	if b.video, err = pick("video", overrides.Video, defaultVideoTemplate); err != nil {
		return nil, err
	}
	if b.locations, err = pick("locations", overrides.Locations, defaultLocationsTemplate); err != nil {
		return nil, err
	}
	if b.speech, err = pick("speech", overrides.Speech, defaultSpeechTemplate); err != nil {
		return nil, err
	}

	example, _ := json.Marshal(model.GetExampleScriptSegments())
	b.scriptExample = string(example)

	if b.videoDefaults.Count <= 0 {
		b.videoDefaults.Count = 1
	}
	return b, nil
}

// DefaultBuilder returns a builder with only the built-in templates.
func DefaultBuilder() *Builder {
	b, err := NewBuilder(Templates{}, model.VideoOptions{Resolution: "720p", AspectRatio: "16:9", Count: 1})
	if err != nil {
		panic(err)
	}
	return b
}

// render executes a template. The template data is fixed, so an execution
// error can only come from a broken override; the raw query is used then.
func (b *Builder) render(t *template.Template, data templateData) string {
	var buffer bytes.Buffer
	if err := t.Execute(&buffer, data); err != nil {
		slog.Warn("failed to render prompt template, using raw query", "template", t.Name(), "error", err)
		return data.Query
	}
	return buffer.String()
}

// withReference prefixes the style directive and attaches the image.
func withReference(r Request, q model.CreativeQuery) Request {
	if !q.HasReferenceImage() {
		return r
	}
	r.Instruction = ReferenceStyleDirective + r.Instruction
	r.Attachments = append(r.Attachments, Attachment{Data: q.ReferenceImage.Data, MIMEType: q.ReferenceImage.MIMEType})
	return r
}

// Search builds the grounded search request of a single-shot aggregation.
func (b *Builder) Search(q model.CreativeQuery) Request {
	return Request{
		Name:        CallSearch,
		Capability:  CapabilityGroundedSearch,
		Instruction: b.render(b.search, templateData{Query: q.Text}),
	}
}

// Analysis builds the schema-constrained analysis request.
func (b *Builder) Analysis(q model.CreativeQuery) Request {
	return withReference(Request{
		Name:        CallAnalysis,
		Capability:  CapabilityStructured,
		Instruction: b.render(b.analysis, templateData{Query: q.Text}),
		Schema:      AnalysisSchema(),
	}, q)
}

// Variations builds n preview image requests, each with its own framing hint.
func (b *Builder) Variations(q model.CreativeQuery, n int) []Request {
	out := make([]Request, 0, n)
	for i := 0; i < n; i++ {
		hint := VariationHints[i%len(VariationHints)]
		out = append(out, withReference(Request{
			Name:        fmt.Sprintf("%s-%d", CallVariation, i+1),
			Capability:  CapabilityImage,
			Instruction: b.render(b.variation, templateData{Query: q.Text, Hint: hint}),
		}, q))
	}
	return out
}

// Preview builds a lens-aware image request. The lens hint is appended so the
// query stays at the start of the instruction.
func (b *Builder) Preview(q model.CreativeQuery, lens Lens) Request {
	return withReference(Request{
		Name:        CallPreview,
		Capability:  CapabilityImage,
		Instruction: b.render(b.preview, templateData{Query: q.Text, Hint: lens.Phrase()}),
	}, q)
}

// SceneShots builds the shot-list request of a scene breakdown.
func (b *Builder) SceneShots(q model.CreativeQuery) Request {
	return Request{
		Name:        CallSceneShots,
		Capability:  CapabilityStructured,
		Instruction: b.render(b.sceneShots, templateData{Query: q.Text}),
		Schema:      SceneShotsSchema(),
	}
}

// ScriptBreakdown builds the segment request of a script breakdown.
func (b *Builder) ScriptBreakdown(q model.CreativeQuery) Request {
	return Request{
		Name:        CallScript,
		Capability:  CapabilityStructured,
		Instruction: b.render(b.script, templateData{Query: q.Text, Example: b.scriptExample}),
		Schema:      ScriptSchema(),
	}
}

// Video builds a video synthesis request. Zero-valued options fall back to the
// configured defaults.
func (b *Builder) Video(prompt string, opts model.VideoOptions) Request {
	merged := b.videoDefaults
	if opts.Resolution != "" {
		merged.Resolution = opts.Resolution
	}
	if opts.AspectRatio != "" {
		merged.AspectRatio = opts.AspectRatio
	}
	if opts.Count > 0 {
		merged.Count = opts.Count
	}
	return Request{
		Name:        CallVideo,
		Capability:  CapabilityVideo,
		Instruction: b.render(b.video, templateData{Query: prompt}),
		Video:       &merged,
	}
}

// Locations builds a maps-grounded location scouting request. near is an
// optional place name that narrows the search.
func (b *Builder) Locations(query string, near string) Request {
	return Request{
		Name:        CallLocations,
		Capability:  CapabilityGroundedMaps,
		Instruction: b.render(b.locations, templateData{Query: query, Location: near}),
	}
}

// Speech builds a narration request.
func (b *Builder) Speech(text string, voice string) Request {
	if voice == "" {
		voice = DefaultVoice
	}
	return Request{
		Name:        CallSpeech,
		Capability:  CapabilitySpeech,
		Instruction: b.render(b.speech, templateData{Query: text}),
		Voice:       voice,
	}
}

// ForQuery returns the ordered request list for a query's mode. Single-shot
// yields search, analysis and the variation requests in that order.
func (b *Builder) ForQuery(q model.CreativeQuery, variations int) []Request {
	switch q.Mode {
	case model.ModeSceneBreakdown:
		return []Request{b.SceneShots(q)}
	case model.ModeScriptBreakdown:
		return []Request{b.ScriptBreakdown(q)}
	default:
		out := []Request{b.Search(q), b.Analysis(q)}
		return append(out, b.Variations(q, variations)...)
	}
}
