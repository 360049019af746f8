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

// Package cloud provides components for interacting with Google Cloud services.
// This file contains the Cloud Storage side of video delivery: a media store
// that uploads rendered clips and hands out V4 signed URLs, a resolver for
// gs:// locators, and the listing and deletion used by the render sweeper.
//
// Structs:
//   - GCSStore: Uploads, signs, lists and deletes rendered media.
//   - GCSResolver: Reads gs:// objects into memory.
//
// Functions:
//   - ParseGCSURI: Splits a gs:// or storage URL into bucket and object.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/poller"
	"google.golang.org/api/iterator"
)

// Prefixes accepted by ParseGCSURI.
const (
	GCSScheme        = "gs://"
	GCSPublicPrefix  = "https://storage.googleapis.com/"
	GCSBrowserPrefix = "https://storage.mtls.cloud.google.com/"
)

// ParseGCSURI splits a Cloud Storage reference into bucket and object names.
//
// Inputs:
//   - uri: A gs:// URI or a storage.googleapis.com style URL.
//
// Outputs:
//   - bucket, object: The components of the reference.
//   - error: An error when the reference is not a Cloud Storage object.
func ParseGCSURI(uri string) (bucket string, object string, err error) {
	var rest string
	switch {
	case strings.HasPrefix(uri, GCSScheme):
		rest = strings.TrimPrefix(uri, GCSScheme)
	case strings.HasPrefix(uri, GCSPublicPrefix):
		rest = strings.TrimPrefix(uri, GCSPublicPrefix)
	case strings.HasPrefix(uri, GCSBrowserPrefix):
		rest = strings.TrimPrefix(uri, GCSBrowserPrefix)
	default:
		return "", "", fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", uri)
	}
	return parts[0], parts[1], nil
}

// ObjectInfo is the part of an object's attributes the sweeper needs.
type ObjectInfo struct {
	Name    string
	Created time.Time
}

// GCSStore writes rendered media to a bucket. When SignerEmail is set the
// returned reference is a V4 signed URL signed through the IAM credentials
// API; otherwise it is the gs:// URI.
type GCSStore struct {
	StorageClient *storage.Client
	IAMClient     *credentials.IamCredentialsClient
	Bucket        string
	Prefix        string
	SignerEmail   string
	Expires       time.Duration
}

// NewGCSStore creates a store. A non-positive expiry means 60 minutes.
func NewGCSStore(sc *storage.Client, iam *credentials.IamCredentialsClient, cfg Storage, signerEmail string) *GCSStore {
	expires := time.Duration(cfg.SignedURLMinutes) * time.Minute
	if expires <= 0 {
		expires = time.Hour
	}
	return &GCSStore{
		StorageClient: sc,
		IAMClient:     iam,
		Bucket:        cfg.RenderBucket,
		Prefix:        cfg.RenderPrefix,
		SignerEmail:   signerEmail,
		Expires:       expires,
	}
}

// ObjectName returns the object name for a new clip of the given MIME type.
func (s *GCSStore) ObjectName(mimeType string) string {
	name := "broll-" + uuid.NewString()
	if ext := poller.ExtensionFor(mimeType); ext != "" {
		name += "." + ext
	}
	return path.Join(s.Prefix, name)
}

// Put uploads the blob and returns its delivery reference.
//
// Logic Flow:
//  1. Stream the bytes into a new object under Prefix with the blob's content type.
//  2. Close the writer, which commits the object.
//  3. Sign a GET URL for the object, or fall back to the gs:// URI.
func (s *GCSStore) Put(ctx context.Context, blob *model.MediaBlob) (string, error) {
	name := s.ObjectName(blob.MIMEType)
	writer := s.StorageClient.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	writer.ContentType = blob.MIMEType

	if _, err := writer.Write(blob.Data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write gs://%s/%s: %w", s.Bucket, name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to commit gs://%s/%s: %w", s.Bucket, name, err)
	}
	slog.InfoContext(ctx, "uploaded render", "bucket", s.Bucket, "object", name, "size", blob.Size)

	if s.SignerEmail == "" || s.IAMClient == nil {
		return GCSScheme + s.Bucket + "/" + name, nil
	}
	return s.SignedURL(ctx, name)
}

// SignedURL creates a time-limited GET URL for an object in the bucket.
func (s *GCSStore) SignedURL(ctx context.Context, object string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(s.Expires),
		GoogleAccessID: s.SignerEmail,
		SignBytes: func(b []byte) ([]byte, error) {
			resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}
	u, err := s.StorageClient.Bucket(s.Bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", s.Bucket, object, err)
	}
	return u, nil
}

// List returns every object under Prefix.
func (s *GCSStore) List(ctx context.Context) ([]ObjectInfo, error) {
	out := make([]ObjectInfo, 0)
	it := s.StorageClient.Bucket(s.Bucket).Objects(ctx, &storage.Query{Prefix: s.Prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to list gs://%s/%s: %w", s.Bucket, s.Prefix, err)
		}
		out = append(out, ObjectInfo{Name: attrs.Name, Created: attrs.Created})
	}
	return out, nil
}

// Delete removes one object. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.StorageClient.Bucket(s.Bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", s.Bucket, name, err)
	}
	return nil
}

// GCSResolver resolves gs:// locators, which the Vertex backend returns when
// an output bucket is configured.
type GCSResolver struct {
	StorageClient *storage.Client
	MaxBytes      int64
}

func (r *GCSResolver) Resolve(ctx context.Context, locator string) (*model.MediaBlob, error) {
	bucket, object, err := ParseGCSURI(locator)
	if err != nil {
		return nil, err
	}
	reader, err := r.StorageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", locator, err)
	}
	defer reader.Close()

	data, err := poller.ReadLimited(reader, r.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", locator, err)
	}
	blob := poller.NewBlob(data, reader.Attrs.ContentType)
	blob.Reference = locator
	return blob, nil
}

var (
	_ poller.MediaStore    = (*GCSStore)(nil)
	_ poller.MediaResolver = (*GCSResolver)(nil)
)
