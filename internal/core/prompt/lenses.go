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

import "fmt"

// Lens is a preset used to steer preview image synthesis.
type Lens struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FocalLength int    `json:"focalLength"`
	Hint        string `json:"hint"` // One sentence on the optical character of the lens.
}

// Phrase is the text appended to a preview instruction.
func (l Lens) Phrase() string {
	return fmt.Sprintf("Shot on a %dmm %s lens. %s", l.FocalLength, l.Name, l.Hint)
}

// Lenses are the four fixed presets.
var Lenses = []Lens{
	{ID: "wide-24mm", Name: "wide", FocalLength: 24, Hint: "Expansive field of view with deep focus and slight edge stretch that exaggerates space."},
	{ID: "standard-50mm", Name: "standard", FocalLength: 50, Hint: "Natural perspective close to human vision with gentle background separation."},
	{ID: "portrait-85mm", Name: "portrait", FocalLength: 85, Hint: "Flattering compression with creamy bokeh that isolates the subject."},
	{ID: "telephoto-135mm", Name: "telephoto", FocalLength: 135, Hint: "Strong compression that stacks planes together and melts the background."},
}

// DefaultLens is used when a preview request names no lens.
var DefaultLens = Lenses[1]

// LensByID finds a preset. An empty id returns the default lens.
func LensByID(id string) (Lens, bool) {
	if id == "" {
		return DefaultLens, true
	}
	for _, l := range Lenses {
		if l.ID == id {
			return l, true
		}
	}
	return Lens{}, false
}
