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

package merger

import (
	"net/url"
	"strings"

	"github.com/jaycherian/broll-scout/internal/core/model"
)

// Platform is a stock or social site with a search URL template. The query is
// substituted for "%s".
type Platform struct {
	Name     string
	Template string
	Access   model.AccessType
	// PathEscape selects path escaping for templates that put the query in the
	// path instead of the query string.
	PathEscape bool
}

// Platforms is ordered free, paid, social.
var Platforms = []Platform{
	{Name: "Pexels", Template: "https://www.pexels.com/search/videos/%s/", Access: model.AccessFree, PathEscape: true},
	{Name: "Pixabay", Template: "https://pixabay.com/videos/search/%s/", Access: model.AccessFree, PathEscape: true},
	{Name: "Mixkit", Template: "https://mixkit.co/free-stock-video/discover/?q=%s", Access: model.AccessFree},
	{Name: "Videvo", Template: "https://www.videvo.net/search/?q=%s", Access: model.AccessFree},
	{Name: "Coverr", Template: "https://coverr.co/s?q=%s", Access: model.AccessFree},

	{Name: "Artgrid", Template: "https://artgrid.io/search?term=%s", Access: model.AccessPaid},
	{Name: "Storyblocks", Template: "https://www.storyblocks.com/video/search/%s", Access: model.AccessPaid, PathEscape: true},
	{Name: "Shutterstock", Template: "https://www.shutterstock.com/video/search/%s", Access: model.AccessPaid, PathEscape: true},
	{Name: "Pond5", Template: "https://www.pond5.com/search?kw=%s&media=footage", Access: model.AccessPaid},
	{Name: "Adobe Stock", Template: "https://stock.adobe.com/search/video?k=%s", Access: model.AccessPaid},

	{Name: "YouTube", Template: "https://www.youtube.com/results?search_query=%s", Access: model.AccessSocial},
	{Name: "Vimeo", Template: "https://vimeo.com/search?q=%s", Access: model.AccessSocial},
	{Name: "TikTok", Template: "https://www.tiktok.com/search?q=%s", Access: model.AccessSocial},
	{Name: "Instagram", Template: "https://www.instagram.com/explore/search/keyword/?q=%s", Access: model.AccessSocial},
}

// QuickSearchLinks renders every platform template for the query. The result
// depends only on the query text.
func QuickSearchLinks(query string) []model.QuickLink {
	query = strings.TrimSpace(query)
	links := make([]model.QuickLink, 0, len(Platforms))
	for _, p := range Platforms {
		links = append(links, model.QuickLink{
			Platform: p.Name,
			URL:      p.Link(query),
			Access:   p.Access,
		})
	}
	return links
}

// Link renders the platform's search URL for query.
func (p Platform) Link(query string) string {
	escaped := url.QueryEscape(query)
	if p.PathEscape {
		escaped = url.PathEscape(query)
	}
	return strings.Replace(p.Template, "%s", escaped, 1)
}
