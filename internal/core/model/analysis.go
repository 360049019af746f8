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

package model

import (
	"encoding/json"
	"errors"
)

// LightRole is the position a light plays in a lighting setup.
type LightRole string

const (
	LightRoleKey        LightRole = "Key"
	LightRoleFill       LightRole = "Fill"
	LightRoleBack       LightRole = "Back"
	LightRoleBackground LightRole = "Background"
)

// LightRoles lists the allowed roles in the order they are declared to the backend.
var LightRoles = []LightRole{LightRoleKey, LightRoleFill, LightRoleBack, LightRoleBackground}

// Vibe is the color and mood read of a shot.
type Vibe struct {
	Colors []string `json:"colors,omitempty"` // Ordered color tokens, e.g. "#0ff", "teal".
	Mood   []string `json:"mood,omitempty"`   // Mood tags, e.g. "melancholic".
}

// TechSpecs describes the recommended capture setup.
type TechSpecs struct {
	Lens           string `json:"lens,omitempty"`
	Lighting       string `json:"lighting,omitempty"`
	FrameRate      string `json:"frameRate,omitempty"`
	CameraMovement string `json:"cameraMovement,omitempty"`
}

// CameraSettings are kept as free text because the backend answers in camera
// jargon ("1/50", "f/2.8", "5600K") rather than numbers.
type CameraSettings struct {
	ISO          string `json:"iso,omitempty"`
	Aperture     string `json:"aperture,omitempty"`
	ShutterAngle string `json:"shutterAngle,omitempty"`
	WhiteBalance string `json:"whiteBalance,omitempty"`
}

// LightNode is one light in a top-down lighting diagram.
type LightNode struct {
	Role     LightRole `json:"role"`
	Angle    float64   `json:"angle"`    // Degrees in [0,360) around the subject.
	Distance float64   `json:"distance"` // Relative distance from the subject.
	Color    string    `json:"color"`
}

// AudioSuggestions proposes sound design for the shot.
type AudioSuggestions struct {
	SoundEffects []string `json:"soundEffects,omitempty"`
	MusicMood    string   `json:"musicMood,omitempty"`
}

// StructuredAnalysis is the schema-constrained answer of the analysis call.
// Every field is optional; the backend may omit any of them.
type StructuredAnalysis struct {
	Vibe            *Vibe             `json:"vibe,omitempty"`
	TechSpecs       *TechSpecs        `json:"techSpecs,omitempty"`
	CameraSettings  *CameraSettings   `json:"cameraSettings,omitempty"`
	LightingDiagram []LightNode       `json:"lightingDiagram,omitempty"`
	Audio           *AudioSuggestions `json:"audio,omitempty"`
}

// ErrEmptyAnalysis is returned when the payload is blank.
var ErrEmptyAnalysis = errors.New("empty analysis payload")

// ParseStructuredAnalysis decodes a constrained-JSON payload. It either returns
// the whole record as given or an error; it never returns a partially filled
// record.
func ParseStructuredAnalysis(raw []byte) (*StructuredAnalysis, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyAnalysis
	}
	out := &StructuredAnalysis{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
