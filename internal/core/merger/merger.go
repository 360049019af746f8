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

// Package merger assembles the settled fan-out results of a single-shot
// search into one aggregate.
//
// Logic Flow:
//  1. The summary is copied verbatim, or replaced by model.NoSummary when the
//     grounded search produced no text.
//  2. Citations without a URI are dropped and the rest are deduplicated by
//     exact URI, keeping the first one seen.
//  3. The first MaxFoundClips citations become clip cards. Thumbnails are
//     assigned from the preview variations by index modulo their count.
//  4. Quick-search links are templated from the query text.
//  5. The structured analysis is copied through whole, or not at all.
package merger

import (
	"net/url"
	"strings"

	"github.com/jaycherian/broll-scout/internal/core/model"
)

// MaxFoundClips bounds the clip cards built from citations.
const MaxFoundClips = 4

// Parts holds what each fan-out sub-call contributed. A nil or empty field is
// an absent contribution.
type Parts struct {
	Summary    string
	Citations  []model.Citation
	Analysis   *model.StructuredAnalysis
	Variations []model.GeneratedImage
	Degraded   []string
}

// Merge builds the aggregate for q. It never fails.
func Merge(q model.CreativeQuery, p Parts) *model.AggregateResult {
	out := model.NewAggregateResult(q)

	if s := strings.TrimSpace(p.Summary); s != "" {
		out.Summary = p.Summary
	}

	out.Sources = DedupeCitations(p.Citations)
	out.Variations = append(out.Variations, p.Variations...)
	out.FoundClips = BuildFoundClips(out.Sources, p.Variations)
	out.QuickLinks = QuickSearchLinks(q.Text)
	out.ApplyAnalysis(p.Analysis)
	if len(p.Degraded) > 0 {
		out.Degraded = append(out.Degraded, p.Degraded...)
	}
	return out
}

// DedupeCitations drops citations without a URI and removes repeated URIs,
// preserving first-seen order.
func DedupeCitations(in []model.Citation) []model.Citation {
	out := make([]model.Citation, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if c.URI == "" {
			continue
		}
		if _, ok := seen[c.URI]; ok {
			continue
		}
		seen[c.URI] = struct{}{}
		if c.Kind == "" {
			c.Kind = model.CitationWeb
		}
		out = append(out, c)
	}
	return out
}

// BuildFoundClips turns up to MaxFoundClips citations into clip cards. The
// citations are expected to be deduplicated already.
func BuildFoundClips(citations []model.Citation, images []model.GeneratedImage) []model.FoundClip {
	n := len(citations)
	if n > MaxFoundClips {
		n = MaxFoundClips
	}
	clips := make([]model.FoundClip, 0, n)
	for i := 0; i < n; i++ {
		c := citations[i]
		clip := model.FoundClip{
			Title:  c.Title,
			URI:    c.URI,
			Domain: DomainOf(c.URI),
		}
		if len(images) > 0 {
			clip.Thumbnail = images[i%len(images)].DataURI()
		}
		clips = append(clips, clip)
	}
	return clips
}

// DomainOf returns the URI's host without a leading "www.". Unparsable URIs
// yield an empty string.
func DomainOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
