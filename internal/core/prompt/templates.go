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

// Built-in instruction templates. Each one can be replaced from the
// [prompt_templates] table of the configuration.
const (
	defaultSearchTemplate = `Find real stock footage, b-roll and reference clips for this shot: "{{.Query}}".
Summarize what kind of footage exists, which sites carry it and which search terms work best.
Keep the summary under 120 words.`

	defaultAnalysisTemplate = `You are a director of photography preparing a shot: "{{.Query}}".
Describe the vibe as an ordered list of color tokens and mood tags, the technical specs (lens, lighting, frame rate, camera movement),
camera settings written as a camera operator would say them (ISO, aperture, shutter angle, white balance),
a lighting diagram of up to four lights with their role, angle in degrees around the subject, relative distance and color,
and audio suggestions (sound effects and a music mood).`

	defaultVariationTemplate = `Photorealistic storyboard frame of "{{.Query}}", {{.Hint}}. Cinematic lighting, no text, no watermark.`

	defaultPreviewTemplate = `Photorealistic preview frame of "{{.Query}}". {{.Hint}} No text, no watermark.`

	defaultSceneShotsTemplate = `Break this scene into an ordered shot list a b-roll editor could search for.
For every shot give its number, a one-sentence description, the shot type and a short stock footage search query.

Scene: {{.Query}}`

	defaultScriptTemplate = `Split this script into narration segments for a b-roll edit.
For every segment return the narration line, a short stock footage search that illustrates it and the estimated spoken duration in seconds.
Answer in the same shape as this example: {{.Example}}

Script: {{.Query}}`

	defaultVideoTemplate = `Cinematic b-roll shot, realistic, smooth camera motion: {{.Query}}`

	defaultLocationsTemplate = `Suggest real places to film this shot: "{{.Query}}"{{if .Location}} near {{.Location}}{{end}}.
For each place say in one sentence why it fits the shot.`

	defaultSpeechTemplate = `Read in a calm documentary narrator voice: {{.Query}}`
)

// VariationHints are the framing hints cycled over the preview variations.
var VariationHints = []string{
	"wide establishing framing",
	"medium framing centered on the subject",
	"tight close-up on the key detail",
	"low angle with strong foreground depth",
}
