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

package cloud_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/broll-scout/internal/cloud"
	test "github.com/jaycherian/broll-scout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigLayers(t *testing.T) {
	config := test.GetConfig()
	assert.Equal(t, "broll-scout", config.Application.Name)
	assert.Equal(t, "broll-scout-test", config.Application.GoogleProjectId)
	assert.Equal(t, "none", config.Telemetry.Exporter)
	assert.Equal(t, 10, config.Video.MaxAttempts)
	assert.Equal(t, "720p", config.Video.Defaults.Resolution)
	assert.Equal(t, "veo-3.0-fast-generate-001", config.AgentModels["video"].Model)
	assert.Equal(t, "aggregations", config.BigQueryDataSource.Table)

	polling := cloud.PollerConfig(config.Video)
	assert.Equal(t, time.Second, polling.Interval)
	assert.Equal(t, 10, polling.MaxAttempts)
	assert.Equal(t, 30*time.Second, polling.Timeout)
}

func TestLoadConfigRejectsBadToml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application\nname = 1"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "test")

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()
	dotFile := filepath.Join(dir, "secrets.env")
	require.NoError(t, os.WriteFile(dotFile, []byte("OPENAI_API_KEY=sk-from-file\n"), 0o600))
	t.Setenv(cloud.EnvDotFile, dotFile)
	t.Setenv(cloud.EnvGeminiAPIKey, "gemini-from-env")
	t.Setenv(cloud.EnvOpenAIAPIKey, "")
	t.Setenv(cloud.EnvRedisPassword, "")
	require.NoError(t, os.Unsetenv(cloud.EnvOpenAIAPIKey))

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadSecrets(config))
	assert.Equal(t, "gemini-from-env", config.Application.APIKey)
	assert.Equal(t, "sk-from-file", config.Fallback.APIKey)
	assert.Empty(t, config.Cache.Password)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1,2]\n```":         `[1,2]`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, cloud.ExtractJSON(in), in)
	}
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := cloud.ParseGCSURI("gs://renders/renders/broll-1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "renders", bucket)
	assert.Equal(t, "renders/broll-1.mp4", object)

	bucket, object, err = cloud.ParseGCSURI("https://storage.googleapis.com/b/o.mp4")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "o.mp4", object)

	_, _, err = cloud.ParseGCSURI("https://example.com/o.mp4")
	assert.Error(t, err)
	_, _, err = cloud.ParseGCSURI("gs://bucket-only")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	a := cloud.CacheKey("grounded-search", "rainy alley")
	assert.Equal(t, a, cloud.CacheKey("grounded-search", "rainy alley"))
	assert.NotEqual(t, a, cloud.CacheKey("grounded-maps", "rainy alley"))
	assert.Contains(t, a, cloud.CacheKeyPrefix)
}

func TestGCSStoreObjectName(t *testing.T) {
	store := cloud.NewGCSStore(nil, nil, cloud.Storage{RenderBucket: "b", RenderPrefix: "renders/"}, "")
	name := store.ObjectName("video/mp4")
	assert.Regexp(t, `^renders/broll-[0-9a-f-]{36}\.mp4$`, name)
	assert.Equal(t, time.Hour, store.Expires)
}

func TestMediaResolverUsesReplacedKey(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-goog-api-key")
		_, _ = w.Write([]byte("clip"))
	}))
	defer srv.Close()

	t.Setenv(cloud.EnvDotFile, filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv(cloud.EnvGeminiAPIKey, "old-key")
	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadSecrets(config))
	resolver := (&cloud.ServiceClients{}).MediaResolver(config)

	t.Setenv(cloud.EnvGeminiAPIKey, "new-key")
	_, err := resolver.Resolve(context.Background(), srv.URL+"/video.mp4")
	require.NoError(t, err)
	assert.Equal(t, "new-key", gotHeader)
	assert.Equal(t, "new-key", cloud.CurrentAPIKey(config)())
}
