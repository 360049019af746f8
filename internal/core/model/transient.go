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

// This file, `transient.go`, contains the in-memory results of the single-call
// flows (scene and script breakdown, location scouting, video and speech
// synthesis) and the intermediate media containers that are passed between
// the poller, the resolvers and the render workflow.
package model

import (
	"encoding/base64"
	"fmt"
)

// SceneShot is one entry of a scene breakdown shot list.
type SceneShot struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	ShotType    string `json:"shotType,omitempty"`    // e.g. "wide", "insert", "over the shoulder".
	SearchQuery string `json:"searchQuery,omitempty"` // Stock-footage search text for the shot.
}

// ScriptSegment is one narration line of a script breakdown, together with
// the footage to search for and how long it should be on screen.
type ScriptSegment struct {
	Narration       string  `json:"narration"`
	VisualSearch    string  `json:"visualSearch"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// SunWindow holds golden and blue hour guidance for a location.
type SunWindow struct {
	GoldenHour  string `json:"goldenHour"`
	BlueHour    string `json:"blueHour"`
	Approximate bool   `json:"approximate"`
}

// PlaceholderSun returns the fixed sun guidance attached to every location.
// It is not computed from coordinates.
func PlaceholderSun() *SunWindow {
	return &SunWindow{
		GoldenHour:  "first hour after sunrise, last hour before sunset",
		BlueHour:    "20-30 minutes before sunrise, 20-30 minutes after sunset",
		Approximate: true,
	}
}

// MapLocation is a filming location suggested by maps grounding.
type MapLocation struct {
	Title string     `json:"title"`
	URI   string     `json:"uri"`
	Sun   *SunWindow `json:"sun,omitempty"`
}

// VideoOptions controls the output of a video synthesis job.
type VideoOptions struct {
	Resolution  string `json:"resolution,omitempty" toml:"resolution"`     // "720p" or "1080p".
	AspectRatio string `json:"aspectRatio,omitempty" toml:"aspect_ratio"` // "16:9" or "9:16".
	Count       int32  `json:"count,omitempty" toml:"count"`
}

// VideoOperation is the opaque handle of an asynchronous video job.
type VideoOperation struct {
	Name    string `json:"name"`
	Done    bool   `json:"done"`
	Locator string `json:"locator,omitempty"` // Media locator, set once Done and successful.
	Error   string `json:"error,omitempty"`   // Job-level failure reported by the backend.
}

// Failed reports whether the job finished with an error.
func (o *VideoOperation) Failed() bool {
	return o != nil && o.Done && o.Error != ""
}

// GeneratedImage is an image produced by the backend.
type GeneratedImage struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// DataURI renders the image as an inline data URI.
func (g GeneratedImage) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", g.MIMEType, base64.StdEncoding.EncodeToString(g.Data))
}

// MediaBlob is fetched media held in memory, plus the fetchable reference
// created for it by a media store.
type MediaBlob struct {
	Data      []byte `json:"-"`
	MIMEType  string `json:"mimeType"`
	Size      int    `json:"size"`
	Reference string `json:"reference,omitempty"`
}

// AudioClip is decoded speech audio. The backend returns 16-bit mono PCM.
type AudioClip struct {
	Data       []byte `json:"-"`
	MIMEType   string `json:"mimeType"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// RenderRequest is the message that asks the render workflow to produce a video.
type RenderRequest struct {
	JobID   string       `json:"job_id"`
	Prompt  string       `json:"prompt"`
	Options VideoOptions `json:"options"`
}

// RenderResult announces the outcome of a render job.
type RenderResult struct {
	JobID     string `json:"job_id"`
	Prompt    string `json:"prompt"`
	Reference string `json:"reference,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	Error     string `json:"error,omitempty"`
}
