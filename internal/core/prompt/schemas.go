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

package prompt

import (
	"github.com/jaycherian/broll-scout/internal/core/model"
	"google.golang.org/genai"
)

// Output schemas for the structured requests. Each call returns a fresh tree
// so a caller can never modify a schema shared with another request.

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func numberSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

func stringListSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Description: description, Items: &genai.Schema{Type: genai.TypeString}}
}

func objectSchema(properties map[string]*genai.Schema, order ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: properties, PropertyOrdering: order}
}

// AnalysisSchema declares the shape of model.StructuredAnalysis.
func AnalysisSchema() *genai.Schema {
	roles := make([]string, 0, len(model.LightRoles))
	for _, r := range model.LightRoles {
		roles = append(roles, string(r))
	}

	lightNode := objectSchema(map[string]*genai.Schema{
		"role":     {Type: genai.TypeString, Enum: roles, Format: "enum"},
		"angle":    numberSchema("Angle in degrees around the subject, 0 is camera position, in [0,360)"),
		"distance": numberSchema("Relative distance from the subject"),
		"color":    stringSchema("Light color as a hex code or gel name"),
	}, "role", "angle", "distance", "color")
	lightNode.Required = []string{"role", "angle", "distance", "color"}

	return objectSchema(map[string]*genai.Schema{
		"vibe": objectSchema(map[string]*genai.Schema{
			"colors": stringListSchema("Ordered color palette tokens"),
			"mood":   stringListSchema("Mood tags"),
		}, "colors", "mood"),
		"techSpecs": objectSchema(map[string]*genai.Schema{
			"lens":           stringSchema("Lens choice"),
			"lighting":       stringSchema("Lighting description"),
			"frameRate":      stringSchema("Frame rate"),
			"cameraMovement": stringSchema("Camera movement"),
		}, "lens", "lighting", "frameRate", "cameraMovement"),
		"cameraSettings": objectSchema(map[string]*genai.Schema{
			"iso":          stringSchema("ISO"),
			"aperture":     stringSchema("Aperture"),
			"shutterAngle": stringSchema("Shutter angle"),
			"whiteBalance": stringSchema("White balance"),
		}, "iso", "aperture", "shutterAngle", "whiteBalance"),
		"lightingDiagram": {Type: genai.TypeArray, Items: lightNode},
		"audio": objectSchema(map[string]*genai.Schema{
			"soundEffects": stringListSchema("Sound effects"),
			"musicMood":    stringSchema("Music mood"),
		}, "soundEffects", "musicMood"),
	}, "vibe", "techSpecs", "cameraSettings", "lightingDiagram", "audio")
}

// SceneShotsSchema declares an array of model.SceneShot.
func SceneShotsSchema() *genai.Schema {
	shot := objectSchema(map[string]*genai.Schema{
		"number":      {Type: genai.TypeInteger, Description: "Shot number starting at 1"},
		"description": stringSchema("What the shot shows"),
		"shotType":    stringSchema("Shot type such as wide, medium, close-up or insert"),
		"searchQuery": stringSchema("Short stock footage search query"),
	}, "number", "description", "shotType", "searchQuery")
	shot.Required = []string{"number", "description", "searchQuery"}
	return &genai.Schema{Type: genai.TypeArray, Items: shot}
}

// ScriptSchema declares an array of model.ScriptSegment.
func ScriptSchema() *genai.Schema {
	segment := objectSchema(map[string]*genai.Schema{
		"narration":       stringSchema("Narration line"),
		"visualSearch":    stringSchema("Stock footage search that illustrates the line"),
		"durationSeconds": numberSchema("Estimated spoken duration in seconds"),
	}, "narration", "visualSearch", "durationSeconds")
	segment.Required = []string{"narration", "visualSearch", "durationSeconds"}
	return &genai.Schema{Type: genai.TypeArray, Items: segment}
}
