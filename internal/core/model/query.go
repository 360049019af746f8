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

// Package model defines the core data structures for the B-Roll Scout
// aggregator. This file holds the inbound side of the model: the creative
// query a caller submits and the optional reference image that travels with it.
//
// A CreativeQuery is treated as immutable once submitted. It is passed by value
// everywhere in the core so that no component can change the text or the
// attached image of a query that another goroutine is still working on.
package model

import (
	"fmt"
	"strings"
)

// Mode selects which aggregation flow a query is routed through.
type Mode string

const (
	ModeSingleShot      Mode = "single-shot"      // One shot: grounded search, analysis and preview variations.
	ModeSceneBreakdown  Mode = "scene-breakdown"  // A scene description is split into a shot list.
	ModeScriptBreakdown Mode = "script-breakdown" // A script is split into narration segments.
)

// Modes lists every supported mode in a stable order.
var Modes = []Mode{ModeSingleShot, ModeSceneBreakdown, ModeScriptBreakdown}

// ParseMode converts a caller-supplied string into a Mode. An empty string
// defaults to single-shot.
func ParseMode(in string) (Mode, error) {
	if strings.TrimSpace(in) == "" {
		return ModeSingleShot, nil
	}
	for _, m := range Modes {
		if string(m) == strings.ToLower(strings.TrimSpace(in)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", in)
}

// ReferenceImage is an image supplied by the user to steer the visual style of
// the analysis and preview requests. The aggregator never looks inside Data.
type ReferenceImage struct {
	Data     []byte `json:"data"`     // Raw image bytes.
	MIMEType string `json:"mimeType"` // Declared or sniffed media type, e.g. "image/png".
}

// CreativeQuery is the user-supplied request that starts every aggregation.
type CreativeQuery struct {
	Text           string          `json:"text"`                     // The shot, scene or script description.
	Mode           Mode            `json:"mode"`                     // The aggregation flow to run.
	ReferenceImage *ReferenceImage `json:"referenceImage,omitempty"` // Optional style reference.
}

// NewCreativeQuery builds a query after trimming the text and rejecting empty
// input. The reference image is copied so later changes to the caller's slice
// cannot leak into the query.
func NewCreativeQuery(text string, mode Mode, ref *ReferenceImage) (CreativeQuery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CreativeQuery{}, fmt.Errorf("query text is empty")
	}
	q := CreativeQuery{Text: text, Mode: mode}
	if q.Mode == "" {
		q.Mode = ModeSingleShot
	}
	if ref != nil && len(ref.Data) > 0 {
		data := make([]byte, len(ref.Data))
		copy(data, ref.Data)
		q.ReferenceImage = &ReferenceImage{Data: data, MIMEType: ref.MIMEType}
	}
	return q, nil
}

// HasReferenceImage reports whether a non-empty reference image is attached.
func (q CreativeQuery) HasReferenceImage() bool {
	return q.ReferenceImage != nil && len(q.ReferenceImage.Data) > 0
}
