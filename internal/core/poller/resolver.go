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

package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/jaycherian/broll-scout/internal/core/model"
)

// DefaultMaxMediaBytes caps how much of a resolved video is read into memory.
const DefaultMaxMediaBytes int64 = 512 << 20

// ErrMediaTooLarge is returned when a resolved medium exceeds the read cap.
var ErrMediaTooLarge = errors.New("media exceeds the size limit")

// ReadLimited reads all of r, failing with ErrMediaTooLarge instead of
// truncating when more than limit bytes are available. A non-positive limit
// means DefaultMaxMediaBytes.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxMediaBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMediaTooLarge, limit)
	}
	return data, nil
}

// MediaResolver turns a media locator returned by the backend into a blob.
type MediaResolver interface {
	Resolve(ctx context.Context, locator string) (*model.MediaBlob, error)
}

// MediaStore creates a fetchable reference for a resolved blob.
type MediaStore interface {
	Put(ctx context.Context, blob *model.MediaBlob) (string, error)
}

// CredentialAttacher adds the access credential to a media fetch.
type CredentialAttacher interface {
	Attach(req *http.Request)
}

// KeyLookup returns the API key to use right now, or "" when none is set.
type KeyLookup func() string

// currentKey prefers the lookup, so a key replaced after startup is used by
// the next fetch.
func currentKey(static string, lookup KeyLookup) string {
	if lookup != nil {
		if k := lookup(); k != "" {
			return k
		}
	}
	return static
}

// APIKeyQuery appends the key as a "key" query parameter.
type APIKeyQuery struct {
	Key    string
	Lookup KeyLookup
}

func (a APIKeyQuery) Attach(req *http.Request) {
	key := currentKey(a.Key, a.Lookup)
	if key == "" {
		return
	}
	q := req.URL.Query()
	q.Set("key", key)
	req.URL.RawQuery = q.Encode()
}

// APIKeyHeader sends the key in the x-goog-api-key header.
type APIKeyHeader struct {
	Key    string
	Lookup KeyLookup
}

func (a APIKeyHeader) Attach(req *http.Request) {
	if key := currentKey(a.Key, a.Lookup); key != "" {
		req.Header.Set("x-goog-api-key", key)
	}
}

// HTTPResolver fetches http(s) locators with a credential attached.
type HTTPResolver struct {
	Client     *http.Client
	Credential CredentialAttacher
	MaxBytes   int64
}

// NewHTTPResolver creates a resolver using the default HTTP client.
func NewHTTPResolver(credential CredentialAttacher) *HTTPResolver {
	return &HTTPResolver{Client: http.DefaultClient, Credential: credential, MaxBytes: DefaultMaxMediaBytes}
}

func (r *HTTPResolver) Resolve(ctx context.Context, locator string) (*model.MediaBlob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid media locator: %w", err)
	}
	if r.Credential != nil {
		r.Credential.Attach(req)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned %s", resp.Status)
	}

	data, err := ReadLimited(resp.Body, r.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	return NewBlob(data, resp.Header.Get("Content-Type")), nil
}

// SchemeResolver routes a locator to a resolver by URL scheme.
type SchemeResolver map[string]MediaResolver

func (s SchemeResolver) Resolve(ctx context.Context, locator string) (*model.MediaBlob, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("invalid media locator: %w", err)
	}
	r, ok := s[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("no resolver for scheme %q", u.Scheme)
	}
	return r.Resolve(ctx, locator)
}

// NewBlob wraps data, sniffing the media type from its magic bytes. The
// declared type is used only when sniffing fails.
func NewBlob(data []byte, declared string) *model.MediaBlob {
	return &model.MediaBlob{Data: data, MIMEType: SniffMIME(data, declared), Size: len(data)}
}

// SniffMIME detects the media type of data.
func SniffMIME(data []byte, declared string) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if declared != "" {
		if i := strings.Index(declared, ";"); i >= 0 {
			declared = declared[:i]
		}
		return strings.TrimSpace(declared)
	}
	return "application/octet-stream"
}

// LocalStore writes blobs to files under Dir and returns file:// references.
type LocalStore struct {
	Dir string
}

func (s LocalStore) Put(_ context.Context, blob *model.MediaBlob) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := ExtensionFor(blob.MIMEType)
	if ext != "" {
		ext = "." + ext
	}
	path := filepath.Join(dir, "broll-"+uuid.NewString()+ext)
	if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// ExtensionFor maps a MIME type to a registered file extension, or "" when
// unknown. When several extensions share a type the alphabetically first wins.
func ExtensionFor(mime string) string {
	found := ""
	filetype.Types.Range(func(k, v any) bool {
		t, ok := v.(types.Type)
		ext, _ := k.(string)
		if ok && t.MIME.Value == mime && (found == "" || ext < found) {
			found = ext
		}
		return true
	})
	return found
}
