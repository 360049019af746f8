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

// This file, `examples.go`, provides hardcoded example instances of the
// structured records. The script example is rendered into the script
// breakdown prompt as a few-shot sample; the analysis and shot list examples
// back the stub backends used in tests.
package model

// GetExampleAnalysis returns a fully populated analysis for a night exterior.
func GetExampleAnalysis() *StructuredAnalysis {
	return &StructuredAnalysis{
		Vibe: &Vibe{
			Colors: []string{"#0b1d3a", "#ff2e88", "#19f0ff"},
			Mood:   []string{"moody", "lonely", "electric"},
		},
		TechSpecs: &TechSpecs{
			Lens:           "35mm anamorphic",
			Lighting:       "practical neon signage with a soft top light",
			FrameRate:      "24fps",
			CameraMovement: "slow dolly in",
		},
		CameraSettings: &CameraSettings{
			ISO:          "ISO 1600",
			Aperture:     "f/2.0",
			ShutterAngle: "180°",
			WhiteBalance: "4300K",
		},
		LightingDiagram: []LightNode{
			{Role: LightRoleKey, Angle: 45, Distance: 1.5, Color: "#ff2e88"},
			{Role: LightRoleFill, Angle: 315, Distance: 2, Color: "#19f0ff"},
			{Role: LightRoleBack, Angle: 180, Distance: 1, Color: "#ffffff"},
		},
		Audio: &AudioSuggestions{
			SoundEffects: []string{"rain on pavement", "distant traffic", "neon hum"},
			MusicMood:    "slow synthwave",
		},
	}
}

// GetExampleSceneShots returns a short shot list for a kitchen scene.
func GetExampleSceneShots() []SceneShot {
	return []SceneShot{
		{Number: 1, Description: "Establishing shot of a busy restaurant kitchen", ShotType: "wide", SearchQuery: "busy restaurant kitchen wide shot"},
		{Number: 2, Description: "Chef slicing herbs on a wooden board", ShotType: "insert", SearchQuery: "chef chopping herbs macro"},
		{Number: 3, Description: "Flames rise from a pan as the chef flips vegetables", ShotType: "medium", SearchQuery: "pan flambe kitchen slow motion"},
	}
}

// GetExampleScriptSegments returns a breakdown of a two-line narration.
func GetExampleScriptSegments() []ScriptSegment {
	return []ScriptSegment{
		{Narration: "Every city has a heartbeat.", VisualSearch: "city timelapse night traffic", DurationSeconds: 3.5},
		{Narration: "You just have to slow down to hear it.", VisualSearch: "person walking slowly crowded street", DurationSeconds: 4},
	}
}
