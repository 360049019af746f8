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

package poller_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChecker returns the scripted operations in order.
type scriptedChecker struct {
	script []*model.VideoOperation
	err    error
	calls  int
}

func (s *scriptedChecker) CheckVideo(_ context.Context, op *model.VideoOperation) (*model.VideoOperation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls > len(s.script) {
		return op, nil
	}
	return s.script[s.calls-1], nil
}

type memResolver struct {
	locators []string
}

func (m *memResolver) Resolve(_ context.Context, locator string) (*model.MediaBlob, error) {
	m.locators = append(m.locators, locator)
	return poller.NewBlob([]byte("video"), "video/mp4"), nil
}

type memStore struct{}

func (memStore) Put(_ context.Context, blob *model.MediaBlob) (string, error) {
	return "mem://" + blob.MIMEType, nil
}

func fastConfig() poller.Config {
	return poller.Config{Interval: time.Millisecond, MaxAttempts: 50, Timeout: time.Second}
}

func pending() *model.VideoOperation {
	return &model.VideoOperation{Name: "operations/abc"}
}

// TestRunIssuesOneCheckPerPendingState submits a pending job whose status goes
// pending, pending, done. Exactly three checks are expected.
func TestRunIssuesOneCheckPerPendingState(t *testing.T) {
	checker := &scriptedChecker{script: []*model.VideoOperation{
		pending(),
		pending(),
		{Name: "operations/abc", Done: true, Locator: "https://media.example/v.mp4"},
	}}
	resolver := &memResolver{}
	p := poller.New(checker, fastConfig(), resolver, memStore{})

	blob, err := p.Run(context.Background(), pending())
	require.NoError(t, err)
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, []string{"https://media.example/v.mp4"}, resolver.locators)
	assert.Equal(t, "mem://video/mp4", blob.Reference)
}

func TestWaitReturnsImmediatelyWhenDone(t *testing.T) {
	checker := &scriptedChecker{}
	p := poller.New(checker, fastConfig(), nil, nil)

	loc, err := p.Wait(context.Background(), &model.VideoOperation{Done: true, Locator: "gs://b/o.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "gs://b/o.mp4", loc)
	assert.Equal(t, 0, checker.calls)
}

func TestWaitStopsAtMaxAttempts(t *testing.T) {
	checker := &scriptedChecker{}
	cfg := fastConfig()
	cfg.MaxAttempts = 4
	p := poller.New(checker, cfg, nil, nil)

	_, err := p.Wait(context.Background(), pending())
	assert.ErrorIs(t, err, poller.ErrTimeout)
	assert.Equal(t, 4, checker.calls)
}

func TestWaitStopsAtTimeout(t *testing.T) {
	checker := &scriptedChecker{}
	p := poller.New(checker, poller.Config{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}, nil, nil)

	_, err := p.Wait(context.Background(), pending())
	assert.ErrorIs(t, err, poller.ErrTimeout)
}

func TestWaitHonoursCancellation(t *testing.T) {
	checker := &scriptedChecker{}
	p := poller.New(checker, poller.Config{Interval: 10 * time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	_, err := p.Wait(ctx, pending())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, poller.ErrTimeout)
}

func TestWaitSurfacesJobFailure(t *testing.T) {
	checker := &scriptedChecker{script: []*model.VideoOperation{
		{Name: "operations/abc", Done: true, Error: "content policy"},
	}}
	p := poller.New(checker, fastConfig(), nil, nil)

	_, err := p.Wait(context.Background(), pending())
	assert.ErrorIs(t, err, poller.ErrJobFailed)
	assert.Contains(t, err.Error(), "content policy")
}

// TestWaitDoesNotRetryCheckErrors expects a single check before giving up.
func TestWaitDoesNotRetryCheckErrors(t *testing.T) {
	checker := &scriptedChecker{err: errors.New("503 unavailable")}
	p := poller.New(checker, fastConfig(), nil, nil)

	_, err := p.Wait(context.Background(), pending())
	assert.Error(t, err)
	assert.Equal(t, 1, checker.calls)
}

func TestWaitRequiresLocator(t *testing.T) {
	p := poller.New(&scriptedChecker{}, fastConfig(), nil, nil)
	_, err := p.Wait(context.Background(), &model.VideoOperation{Done: true})
	assert.ErrorIs(t, err, poller.ErrNoLocator)
}

func TestHTTPResolverAttachesCredential(t *testing.T) {
	mp4 := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}
	var gotKey, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotHeader = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(mp4)
	}))
	defer srv.Close()

	blob, err := poller.NewHTTPResolver(poller.APIKeyQuery{Key: "k1"}).Resolve(context.Background(), srv.URL+"/v?alt=media")
	require.NoError(t, err)
	assert.Equal(t, "k1", gotKey)
	assert.Equal(t, "video/mp4", blob.MIMEType)
	assert.Equal(t, len(mp4), blob.Size)

	_, err = poller.NewHTTPResolver(poller.APIKeyHeader{Key: "k2"}).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "k2", gotHeader)
}

func TestHTTPResolverRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := poller.NewHTTPResolver(nil).Resolve(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestSchemeResolver(t *testing.T) {
	mem := &memResolver{}
	r := poller.SchemeResolver{"gs": mem}

	_, err := r.Resolve(context.Background(), "gs://bucket/renders/a.mp4")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "ftp://host/a.mp4")
	assert.Error(t, err)
}

func TestSniffMIME(t *testing.T) {
	assert.Equal(t, "text/plain", poller.SniffMIME([]byte("hello"), "text/plain; charset=utf-8"))
	assert.Equal(t, "application/octet-stream", poller.SniffMIME([]byte("hello"), ""))
}

func TestLocalStoreWritesFile(t *testing.T) {
	dir := t.TempDir()
	ref, err := poller.LocalStore{Dir: dir}.Put(context.Background(), &model.MediaBlob{Data: []byte("abc"), MIMEType: "video/mp4"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "file://"))

	data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.True(t, strings.HasSuffix(ref, ".mp4"))
}

func TestCredentialLookupWins(t *testing.T) {
	var gotHeader, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-goog-api-key")
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte("clip"))
	}))
	defer srv.Close()

	current := "rotated-key"
	lookup := func() string { return current }
	_, err := poller.NewHTTPResolver(poller.APIKeyHeader{Key: "startup-key", Lookup: lookup}).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "rotated-key", gotHeader)

	_, err = poller.NewHTTPResolver(poller.APIKeyQuery{Key: "startup-key", Lookup: lookup}).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "rotated-key", gotKey)

	current = ""
	_, err = poller.NewHTTPResolver(poller.APIKeyHeader{Key: "startup-key", Lookup: lookup}).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "startup-key", gotHeader)
}

func TestReadLimited(t *testing.T) {
	data, err := poller.ReadLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = poller.ReadLimited(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, poller.ErrMediaTooLarge)
}

func TestHTTPResolverRejectsOversizedMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	r := poller.NewHTTPResolver(nil)
	r.MaxBytes = 32
	blob, err := r.Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, poller.ErrMediaTooLarge)
	assert.Nil(t, blob)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "mp4", poller.ExtensionFor("video/mp4"))
	assert.Equal(t, "png", poller.ExtensionFor("image/png"))
	assert.Equal(t, "", poller.ExtensionFor("application/x-unknown"))
}
