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

// CitationKind tags the variant of a grounding citation.
type CitationKind string

const (
	CitationWeb CitationKind = "web" // A web search result.
	CitationMap CitationKind = "map" // A maps/places result.
)

// Citation is a title and URI pair taken from grounding metadata.
// Kind distinguishes web results from map results.
type Citation struct {
	Kind  CitationKind `json:"kind"`
	Title string       `json:"title"`
	URI   string       `json:"uri"`
}

// WebCitation builds a web citation.
func WebCitation(title, uri string) Citation {
	return Citation{Kind: CitationWeb, Title: title, URI: uri}
}

// MapCitation builds a map citation.
func MapCitation(title, uri string) Citation {
	return Citation{Kind: CitationMap, Title: title, URI: uri}
}

// IsMap reports whether the citation came from maps grounding.
func (c Citation) IsMap() bool {
	return c.Kind == CitationMap
}

// FoundClip is a citation shown as a clip card, with the host it points to and
// a preview image used as its thumbnail.
type FoundClip struct {
	Title     string `json:"title"`
	URI       string `json:"uri"`
	Domain    string `json:"domain"`
	Thumbnail string `json:"thumbnail,omitempty"` // data URI of one of the preview variations.
}

// AccessType groups quick-search platforms by how footage is licensed.
type AccessType string

const (
	AccessFree   AccessType = "free"
	AccessPaid   AccessType = "paid"
	AccessSocial AccessType = "social"
)

// QuickLink is a deep link into a stock or social platform's search page.
type QuickLink struct {
	Platform string     `json:"platform"`
	URL      string     `json:"url"`
	Access   AccessType `json:"access"`
}
