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

package services_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/fanout"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
	test "github.com/jaycherian/broll-scout/internal/testutil"
	"github.com/zeebo/assert"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const tName = "github.com/jaycherian/broll-scout/tests/services"

var logger = otelslog.NewLogger(tName)

func TestMain(m *testing.M) {
	logger.Info("starting services tests")
	os.Exit(m.Run())
}

type memRecorder struct {
	mu   sync.Mutex
	recs []*model.AggregationRecord
}

func (m *memRecorder) Record(_ context.Context, rec *model.AggregationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func newAggregator(b services.Backend) *services.Aggregator {
	p := poller.New(nil, poller.Config{Interval: time.Millisecond, MaxAttempts: 20, Timeout: 5 * time.Second}, test.StubResolver{}, nil)
	return services.NewAggregator(b, prompt.DefaultBuilder(), fanout.NewExecutor(4), p)
}

func singleShot(t *testing.T, text string) model.CreativeQuery {
	t.Helper()
	q, err := model.NewCreativeQuery(text, model.ModeSingleShot, nil)
	assert.NoError(t, err)
	return q
}

// TestSearchChefCookingMacro returns two citations sharing one URI and a
// valid analysis payload.
func TestSearchChefCookingMacro(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Citations = []model.Citation{
		model.WebCitation("Chef macro", "https://www.pexels.com/video/chef/"),
		model.WebCitation("Chef macro again", "https://www.pexels.com/video/chef/"),
	}
	rec := &memRecorder{}
	agg := newAggregator(stub)
	agg.Analytics = rec

	out, err := agg.Search(context.Background(), singleShot(t, "chef cooking macro"))
	assert.NoError(t, err)

	assert.Equal(t, len(out.Sources), 1)
	assert.Equal(t, len(out.FoundClips), 1)
	assert.NotNil(t, out.Vibe)
	assert.NotNil(t, out.TechSpecs)
	assert.NotNil(t, out.CameraSettings)
	assert.NotNil(t, out.Audio)
	assert.Equal(t, len(out.LightingDiagram), 3)
	assert.Equal(t, len(out.Variations), services.DefaultVariations)
	assert.Equal(t, len(out.Degraded), 0)
	assert.That(t, strings.HasPrefix(out.FoundClips[0].Thumbnail, "data:image/png;base64,"))

	assert.Equal(t, len(rec.recs), 1)
	assert.Equal(t, rec.recs[0].ID, out.ID)
	assert.Equal(t, rec.recs[0].SourceCount, 1)
	assert.False(t, rec.recs[0].Failed)
}

// TestSearchRoundTrip checks that the query text reaches every request sent to
// the backend.
func TestSearchRoundTrip(t *testing.T) {
	stub := test.NewStubBackend()
	_, err := newAggregator(stub).Search(context.Background(), singleShot(t, "rainy neon alley"))
	assert.NoError(t, err)

	reqs := stub.Recorded()
	assert.Equal(t, len(reqs), 2+services.DefaultVariations)
	for _, r := range reqs {
		echoed, err := stub.Complete(context.Background(), r)
		assert.NoError(t, err)
		assert.That(t, strings.Contains(echoed, "rainy neon alley"))
	}
}

func TestSearchAnalysisFailureLeavesFieldsAbsent(t *testing.T) {
	for name, mutate := range map[string]func(*test.StubBackend){
		"transport": func(s *test.StubBackend) { s.Errors[prompt.CallAnalysis] = errors.New("quota exhausted") },
		"parse":     func(s *test.StubBackend) { s.AnalysisJSON = `{"vibe": {"colors": [` },
	} {
		t.Run(name, func(t *testing.T) {
			stub := test.NewStubBackend()
			mutate(stub)

			out, err := newAggregator(stub).Search(context.Background(), singleShot(t, "rainy neon alley"))
			assert.NoError(t, err)
			assert.False(t, out.HasAnalysis())
			assert.Nil(t, out.Vibe)
			assert.Nil(t, out.TechSpecs)
			assert.Nil(t, out.CameraSettings)
			assert.Nil(t, out.LightingDiagram)
			assert.Nil(t, out.Audio)
			assert.DeepEqual(t, out.Degraded, []string{prompt.CallAnalysis})
			assert.Equal(t, len(out.Sources), 2)
		})
	}
}

func TestSearchVariationFailuresAreDegraded(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Errors[prompt.CallVariation] = errors.New("safety block")

	out, err := newAggregator(stub).Search(context.Background(), singleShot(t, "rainy neon alley"))
	assert.NoError(t, err)
	assert.Equal(t, len(out.Variations), 0)
	assert.Equal(t, len(out.Degraded), services.DefaultVariations)
	assert.Equal(t, out.FoundClips[0].Thumbnail, "")
	assert.That(t, out.HasAnalysis())
}

func TestSearchGroundedFailureIsFatal(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Errors[prompt.CallSearch] = errors.New("connection reset")
	rec := &memRecorder{}
	agg := newAggregator(stub)
	agg.Analytics = rec

	out, err := agg.Search(context.Background(), singleShot(t, "rainy neon alley"))
	assert.Nil(t, out)
	assert.That(t, errors.Is(err, services.ErrRequestFailed))

	var svcErr *services.Error
	assert.That(t, errors.As(err, &svcErr))
	assert.Equal(t, svcErr.Message, "could not complete the request")
	assert.Equal(t, svcErr.Op, services.OpSearch)
	assert.That(t, rec.recs[0].Failed)
}

func TestSearchSummaryFallback(t *testing.T) {
	stub := test.NewStubBackend()
	stub.SearchText = ""
	out, err := newAggregator(stub).Search(context.Background(), singleShot(t, "rainy neon alley"))
	assert.NoError(t, err)
	assert.Equal(t, out.Summary, model.NoSummary)
}

func TestSearchRejectsBreakdownModes(t *testing.T) {
	q, err := model.NewCreativeQuery("a chef prepares dinner", model.ModeSceneBreakdown, nil)
	assert.NoError(t, err)
	_, err = newAggregator(test.NewStubBackend()).Search(context.Background(), q)
	assert.That(t, errors.Is(err, services.ErrInvalidQuery))
}

// TestSearchIDsAreUnique runs concurrent searches on one aggregator.
func TestSearchIDsAreUnique(t *testing.T) {
	agg := newAggregator(test.NewStubBackend())
	q := singleShot(t, "rainy neon alley")
	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := agg.Search(context.Background(), q)
			if err == nil {
				ids[i] = out.ID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.That(t, id != "")
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestBreakdownScene(t *testing.T) {
	q, err := model.NewCreativeQuery("a chef prepares dinner service", model.ModeSceneBreakdown, nil)
	assert.NoError(t, err)

	stub := test.NewStubBackend()
	shots, err := newAggregator(stub).BreakdownScene(context.Background(), q)
	assert.NoError(t, err)
	assert.DeepEqual(t, shots, model.GetExampleSceneShots())

	stub.SceneJSON = "not json"
	_, err = newAggregator(stub).BreakdownScene(context.Background(), q)
	assert.That(t, errors.Is(err, services.ErrRequestFailed))
}

func TestBreakdownScript(t *testing.T) {
	q, err := model.NewCreativeQuery("Every city has a heartbeat.", model.ModeScriptBreakdown, nil)
	assert.NoError(t, err)

	stub := test.NewStubBackend()
	segments, err := newAggregator(stub).BreakdownScript(context.Background(), q)
	assert.NoError(t, err)
	assert.DeepEqual(t, segments, model.GetExampleScriptSegments())

	stub.Errors[prompt.CallScript] = errors.New("deadline exceeded")
	_, err = newAggregator(stub).BreakdownScript(context.Background(), q)
	assert.That(t, errors.Is(err, services.ErrRequestFailed))
}

func TestGenerateVideoPollsToCompletion(t *testing.T) {
	stub := test.NewStubBackend()
	blob, err := newAggregator(stub).GenerateVideo(context.Background(), "drone over fjord", model.VideoOptions{})
	assert.NoError(t, err)
	assert.Equal(t, stub.CheckCalls, 3)
	assert.Equal(t, blob.Reference, test.StubLocator)
	assert.Equal(t, blob.MIMEType, "video/mp4")
}

// TestGenerateVideoCredentialReselection fails the status check with the
// entity-not-found message.
func TestGenerateVideoCredentialReselection(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Errors[test.CheckVideoKey] = errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND, Details: []")

	_, err := newAggregator(stub).GenerateVideo(context.Background(), "drone over fjord", model.VideoOptions{})
	assert.That(t, errors.Is(err, services.ErrCredentialReselection))
	assert.False(t, errors.Is(err, services.ErrRequestFailed))

	var svcErr *services.Error
	assert.That(t, errors.As(err, &svcErr))
	assert.That(t, svcErr.Message != "could not complete the request")
}

func TestGenerateVideoOtherFailuresAreGeneric(t *testing.T) {
	stub := test.NewStubBackend()
	stub.Errors[test.CheckVideoKey] = errors.New("internal error")

	_, err := newAggregator(stub).GenerateVideo(context.Background(), "drone over fjord", model.VideoOptions{})
	assert.That(t, errors.Is(err, services.ErrRequestFailed))
	assert.False(t, errors.Is(err, services.ErrCredentialReselection))
}

func TestGenerateVideoUsesFactory(t *testing.T) {
	shared := test.NewStubBackend()
	shared.Errors[prompt.CallVideo] = errors.New("stale key")
	fresh := test.NewStubBackend()

	agg := newAggregator(shared)
	agg.Factory = func(ctx context.Context) (services.Backend, error) { return fresh, nil }

	_, err := agg.GenerateVideo(context.Background(), "drone over fjord", model.VideoOptions{AspectRatio: "9:16"})
	assert.NoError(t, err)
	assert.Equal(t, len(shared.Recorded()), 0)
	reqs := fresh.Recorded()
	assert.Equal(t, len(reqs), 1)
	assert.Equal(t, reqs[0].Video.AspectRatio, "9:16")
}

func TestScoutLocations(t *testing.T) {
	stub := test.NewStubBackend()
	stub.MapCitations = append(stub.MapCitations, stub.MapCitations[0], model.WebCitation("blog", "https://blog.example"))

	report, err := newAggregator(stub).ScoutLocations(context.Background(), "abandoned train station", "Lisbon")
	assert.NoError(t, err)
	assert.Equal(t, len(report.Locations), 2)
	for _, l := range report.Locations {
		assert.NotNil(t, l.Sun)
	}
	assert.That(t, strings.Contains(stub.Recorded()[0].Instruction, "Lisbon"))

	_, err = newAggregator(stub).ScoutLocations(context.Background(), "  ", "")
	assert.That(t, errors.Is(err, services.ErrInvalidQuery))
}

func TestGeneratePreview(t *testing.T) {
	stub := test.NewStubBackend()
	agg := newAggregator(stub)
	q := singleShot(t, "rainy neon alley")

	img, err := agg.GeneratePreview(context.Background(), q, "portrait-85mm")
	assert.NoError(t, err)
	assert.Equal(t, img.MIMEType, "image/png")

	_, err = agg.GeneratePreview(context.Background(), q, "fisheye")
	assert.That(t, errors.Is(err, services.ErrInvalidQuery))

	stub.Image = nil
	_, err = agg.GeneratePreview(context.Background(), q, "")
	assert.That(t, errors.Is(err, services.ErrRequestFailed))
}

func TestSpeak(t *testing.T) {
	stub := test.NewStubBackend()
	clip, err := newAggregator(stub).Speak(context.Background(), "Every city has a heartbeat.", "")
	assert.NoError(t, err)
	assert.DeepEqual(t, clip.Data, []byte{0, 1, 2, 3})
	assert.Equal(t, stub.Recorded()[0].Voice, prompt.DefaultVoice)

	wav := services.EncodeWAV(clip)
	assert.Equal(t, len(wav), 44+4)
	assert.Equal(t, string(wav[0:4]), "RIFF")
	assert.Equal(t, string(wav[8:12]), "WAVE")
	assert.Equal(t, string(wav[36:40]), "data")

	stub.SpeechPayload = "%%%"
	_, err = newAggregator(stub).Speak(context.Background(), "Every city has a heartbeat.", "")
	assert.That(t, errors.Is(err, services.ErrRequestFailed))
}

func TestLinks(t *testing.T) {
	agg := newAggregator(test.NewStubBackend())
	a, err := agg.Links("rainy neon alley")
	assert.NoError(t, err)
	b, err := agg.Links("rainy neon alley")
	assert.NoError(t, err)
	assert.DeepEqual(t, a, b)

	_, err = agg.Links("")
	assert.That(t, errors.Is(err, services.ErrInvalidQuery))
}

func TestPolicy(t *testing.T) {
	p := services.NewPolicy()
	assert.That(t, p.IsFatal(prompt.CallSearch))
	assert.That(t, p.IsFatal(prompt.CallVideo))
	assert.False(t, p.IsFatal(prompt.CallAnalysis))
	assert.False(t, p.IsFatal("variation-2"))

	absorbed, fatal := p.Settle(context.Background(), "search", prompt.CallAnalysis, errors.New("x"))
	assert.That(t, absorbed)
	assert.NoError(t, fatal)

	absorbed, fatal = p.Settle(context.Background(), "search", prompt.CallSearch, nil)
	assert.False(t, absorbed)
	assert.NoError(t, fatal)

	wrapped := errors.Join(errors.New("poll"), errors.New(services.EntityNotFound))
	_, fatal = p.Settle(context.Background(), "video", prompt.CallVideo, wrapped)
	assert.That(t, errors.Is(fatal, services.ErrCredentialReselection))
}

// handlelessBackend accepts a video job without returning its operation.
type handlelessBackend struct {
	*test.StubBackend
}

func (handlelessBackend) SubmitVideo(context.Context, prompt.Request) (*model.VideoOperation, error) {
	return nil, nil
}

func TestGenerateVideoWithoutOperationFails(t *testing.T) {
	stub := test.NewStubBackend()
	rec := &memRecorder{}
	agg := newAggregator(handlelessBackend{stub})
	agg.Analytics = rec

	blob, err := agg.GenerateVideo(context.Background(), "drone over fjord", model.VideoOptions{})
	assert.Nil(t, blob)
	assert.That(t, errors.Is(err, services.ErrRequestFailed))
	assert.Equal(t, len(rec.recs), 1)
	assert.That(t, rec.recs[0].Failed)
}

// TestLiteralAggregatorServesConcurrentSearches builds the aggregator without
// NewAggregator, so no tracer is set, and shares it between goroutines.
func TestLiteralAggregatorServesConcurrentSearches(t *testing.T) {
	stub := test.NewStubBackend()
	p := poller.New(nil, poller.Config{Interval: time.Millisecond, MaxAttempts: 20, Timeout: 5 * time.Second}, test.StubResolver{}, nil)
	agg := &services.Aggregator{
		Backend:    stub,
		Builder:    prompt.DefaultBuilder(),
		Executor:   fanout.NewExecutor(4),
		Poller:     p,
		Policy:     services.NewPolicy(),
		Variations: 1,
	}

	q := singleShot(t, "harbor at dawn")
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = agg.Search(context.Background(), q)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
