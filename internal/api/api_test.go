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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/broll-scout/internal/api"
	"github.com/jaycherian/broll-scout/internal/core/fanout"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
	test "github.com/jaycherian/broll-scout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const tName = "github.com/jaycherian/broll-scout/tests/api"

var logger = otelslog.NewLogger(tName)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Info("starting api tests")
	os.Exit(m.Run())
}

// pngHeader is enough of a PNG for type sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type memPublisher struct {
	msgs [][]byte
}

func (p *memPublisher) Publish(_ context.Context, data []byte) (string, error) {
	p.msgs = append(p.msgs, data)
	return "msg-42", nil
}

type fixedStats []model.OperationStat

func (s fixedStats) Stats(context.Context, int) ([]model.OperationStat, error) {
	return s, nil
}

func newRouter(stub *test.StubBackend, h *api.Handlers) *gin.Engine {
	p := poller.New(nil, poller.Config{Interval: time.Millisecond, MaxAttempts: 20, Timeout: 5 * time.Second}, test.StubResolver{}, nil)
	h.Creative = services.NewAggregator(stub, prompt.DefaultBuilder(), fanout.NewExecutor(4), p)
	r := gin.New()
	h.Register(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSearchJSON(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/search", api.QueryRequest{Query: "chef cooking macro"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode[model.AggregateResult](t, w)
	assert.Equal(t, "chef cooking macro", out.Query)
	assert.NotEmpty(t, out.ID)
	assert.Len(t, out.Sources, 2)
	assert.NotNil(t, out.Vibe)
	assert.NotEmpty(t, out.QuickLinks)
}

func TestSearchMultipartWithImage(t *testing.T) {
	stub := test.NewStubBackend()
	r := newRouter(stub, &api.Handlers{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("query", "foggy pine forest at dawn"))
	part, err := mw.CreateFormFile("image", "ref.png")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var attached bool
	for _, rq := range stub.Recorded() {
		for _, a := range rq.Attachments {
			if a.MIMEType == "image/png" {
				attached = true
			}
		}
	}
	assert.True(t, attached)
}

func TestSearchMultipartRejectsNonImage(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("query", "foggy pine forest"))
	part, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("just some text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchInvalidInput(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/search", api.QueryRequest{Query: "   "}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/search", api.QueryRequest{Query: "x", Mode: "script-breakdown"}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/search", nil).Code)
}

func TestSearchFatalFailureIsGeneric(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Errors[prompt.CallSearch] = errors.New("dial tcp 10.0.0.1:443: connection refused")
	r := newRouter(stub, &api.Handlers{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/search", api.QueryRequest{Query: "rainy neon alley"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[api.ErrorBody](t, w)
	assert.Equal(t, services.ErrRequestFailed.Error(), body.Error)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

func TestScenesAndScripts(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/scenes", api.QueryRequest{Query: "a chase through a night market"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scenes := decode[struct {
		Shots []model.SceneShot `json:"shots"`
	}](t, w)
	assert.NotEmpty(t, scenes.Shots)

	w = doJSON(t, r, http.MethodPost, "/api/v1/scripts", api.QueryRequest{Query: "The city wakes. Trains hum."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scripts := decode[struct {
		Segments []model.ScriptSegment `json:"segments"`
	}](t, w)
	assert.NotEmpty(t, scripts.Segments)
}

func TestVideoCredentialReselection(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Errors[test.CheckVideoKey] = errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND")
	r := newRouter(stub, &api.Handlers{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/videos", api.VideoRequest{Prompt: "drone over fjord"})
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[api.ErrorBody](t, w)
	assert.Equal(t, api.CodeCredentialReselection, body.Code)
}

func TestVideoSynchronous(t *testing.T) {
	stub := test.NewStubBackend()
	r := newRouter(stub, &api.Handlers{VideoDefaults: model.VideoOptions{Resolution: "720p", AspectRatio: "16:9", Count: 1}})

	w := doJSON(t, r, http.MethodPost, "/api/v1/videos", api.VideoRequest{Prompt: "drone over fjord", Options: model.VideoOptions{AspectRatio: "9:16"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	blob := decode[model.MediaBlob](t, w)
	assert.Equal(t, test.StubLocator, blob.Reference)
	assert.Equal(t, "video/mp4", blob.MIMEType)

	reqs := stub.Recorded()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "9:16", reqs[0].Video.AspectRatio)
	assert.Equal(t, "720p", reqs[0].Video.Resolution)
}

func TestVideoJobs(t *testing.T) {
	pub := &memPublisher{}
	r := newRouter(test.NewStubBackend(), &api.Handlers{Jobs: pub, VideoDefaults: model.VideoOptions{Resolution: "720p"}})

	w := doJSON(t, r, http.MethodPost, "/api/v1/videos/jobs", api.VideoRequest{Prompt: "timelapse of clouds over mountains"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	accepted := decode[api.JobAccepted](t, w)
	assert.Equal(t, "msg-42", accepted.MessageID)
	assert.NotEmpty(t, accepted.JobID)

	require.Len(t, pub.msgs, 1)
	var req model.RenderRequest
	require.NoError(t, json.Unmarshal(pub.msgs[0], &req))
	assert.Equal(t, accepted.JobID, req.JobID)
	assert.Equal(t, "720p", req.Options.Resolution)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/videos/jobs", api.VideoRequest{}).Code)
}

func TestVideoJobsDisabled(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/videos/jobs", api.VideoRequest{Prompt: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLocations(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/locations", api.LocationRequest{Query: "abandoned pier", Near: "Lisbon"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[services.LocationReport](t, w)
	assert.Len(t, report.Locations, 2)
}

func TestPreview(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/previews", api.QueryRequest{Query: "portrait in golden hour", Lens: "portrait-85mm"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[api.PreviewResponse](t, w)
	assert.Equal(t, "portrait-85mm", out.Lens)
	assert.True(t, strings.HasPrefix(out.DataURI, "data:image/png;base64,"))

	w = doJSON(t, r, http.MethodPost, "/api/v1/previews", api.QueryRequest{Query: "x", Lens: "fisheye-8mm"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpeechReturnsWAV(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/speech", api.SpeechRequest{Text: "The city never sleeps."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", string(w.Body.Bytes()[:4]))
	assert.Equal(t, 44+4, w.Body.Len())
}

func TestLinksAndLenses(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/links?q=neon%20rain", nil)
	require.Equal(t, http.StatusOK, w.Code)
	links := decode[[]model.QuickLink](t, w)
	require.NotEmpty(t, links)
	assert.Contains(t, links[0].URL, "neon")

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/links", nil).Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/lenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]prompt.Lens](t, w), len(prompt.Lenses))
}

func TestStats(t *testing.T) {
	stats := fixedStats{{Operation: services.OpSearch, Mode: "single-shot", Total: 3, Failed: 1}}
	r := newRouter(test.NewStubBackend(), &api.Handlers{Stats: stats})

	w := doJSON(t, r, http.MethodGet, "/api/v1/stats?hours=6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Hours      int                   `json:"hours"`
		Operations []model.OperationStat `json:"operations"`
	}](t, w)
	assert.Equal(t, 6, out.Hours)
	assert.Equal(t, int64(3), out.Operations[0].Total)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/stats?hours=zero", nil).Code)

	disabled := newRouter(test.NewStubBackend(), &api.Handlers{})
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, disabled, http.MethodGet, "/api/v1/stats", nil).Code)
}

func TestJSONReferenceImageIsChecked(t *testing.T) {
	stub := test.NewStubBackend()
	r := newRouter(stub, &api.Handlers{})
	body := api.QueryRequest{Query: "foggy pine forest", ReferenceImage: &model.ReferenceImage{Data: pngHeader, MIMEType: "image/jpeg"}}
	w := doJSON(t, r, http.MethodPost, "/api/v1/search", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sniffed bool
	for _, rq := range stub.Recorded() {
		for _, a := range rq.Attachments {
			if a.MIMEType == "image/png" {
				sniffed = true
			}
		}
	}
	assert.True(t, sniffed)

	text := api.QueryRequest{Query: "foggy pine forest", ReferenceImage: &model.ReferenceImage{Data: []byte("just some text"), MIMEType: "image/png"}}
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/search", text).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/previews", text).Code)
}

func TestJSONReferenceImageRespectsUploadCap(t *testing.T) {
	r := newRouter(test.NewStubBackend(), &api.Handlers{MaxUploadBytes: 8})
	body := api.QueryRequest{Query: "foggy pine forest", ReferenceImage: &model.ReferenceImage{Data: pngHeader, MIMEType: "image/png"}}

	w := doJSON(t, r, http.MethodPost, "/api/v1/search", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[api.ErrorBody](t, w).Error, "exceeds")
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/previews", body).Code)
}
