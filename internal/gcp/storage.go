package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// DefaultPublicBaseURL serves objects of publicly readable buckets.
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// StoredObject locates an object written by Put.
type StoredObject struct {
	Bucket    string
	Path      string
	PublicURL string
}

// GSURI returns the gs:// URI of the object.
func (o StoredObject) GSURI() string {
	return fmt.Sprintf("gs://%s/%s", o.Bucket, o.Path)
}

// ObjectStore writes, reads and deletes attestation objects in GCS.
type ObjectStore struct {
	client        *storage.Client
	publicBaseURL string
	retry         RetryPolicy
}

// NewObjectStore creates a storage client. An empty publicBaseURL uses
// DefaultPublicBaseURL.
func NewObjectStore(ctx context.Context, publicBaseURL string, retry RetryPolicy) (*ObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return NewObjectStoreWithClient(client, publicBaseURL, retry), nil
}

// NewObjectStoreWithClient wraps an existing client.
func NewObjectStoreWithClient(client *storage.Client, publicBaseURL string, retry RetryPolicy) *ObjectStore {
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &ObjectStore{client: client, publicBaseURL: publicBaseURL, retry: retry}
}

// Put writes data to bucket/key only if the object does not exist yet. An
// existing object counts as stored, so retried attempts stay idempotent.
func (s *ObjectStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (StoredObject, error) {
	obj := StoredObject{Bucket: bucket, Path: key, PublicURL: PublicURL(s.publicBaseURL, bucket, key)}

	err := Retry(ctx, s.retry, "gcs put "+key, func(ctx context.Context) error {
		w := s.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		w.ContentType = contentType
		w.Metadata = metadata

		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return classifyWriteError(key, err)
		}
		if err := w.Close(); err != nil {
			return classifyWriteError(key, err)
		}
		return nil
	})
	if errors.Is(err, errAlreadyExists) {
		return obj, nil
	}
	if err != nil {
		return StoredObject{}, fmt.Errorf("failed to write to GCS: %w", err)
	}
	return obj, nil
}

var errAlreadyExists = errors.New("object already exists")

func classifyWriteError(key string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusPreconditionFailed:
			slog.Info("SKIPPING: object already exists.", "gcsObject", key)
			return Permanent(errAlreadyExists)
		case gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests && gerr.Code != http.StatusRequestTimeout:
			return Permanent(err)
		}
	}
	return err
}

// Get reads bucket/key, refusing objects larger than maxSize bytes.
func (s *ObjectStore) Get(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	if maxSize > 0 && r.Attrs.Size > maxSize {
		return nil, fmt.Errorf("object gs://%s/%s is %d bytes, limit is %d", bucket, key, r.Attrs.Size, maxSize)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object: %w", err)
	}
	return data, nil
}

// Delete removes bucket/key. A missing object is not an error.
func (s *ObjectStore) Delete(ctx context.Context, bucket, key string) error {
	err := Retry(ctx, s.retry, "gcs delete "+key, func(ctx context.Context) error {
		err := s.client.Bucket(bucket).Object(key).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return classifyWriteError(key, err)
	})
	if err != nil {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Close releases the client.
func (s *ObjectStore) Close() error {
	return s.client.Close()
}

// PublicURL builds the public URL of bucket/key under base.
func PublicURL(base, bucket, key string) string {
	if base == "" {
		base = DefaultPublicBaseURL
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// KeyFromPublicURL is the inverse of PublicURL for base and bucket. It also
// accepts a bare object key.
func KeyFromPublicURL(base, bucket, raw string) (string, error) {
	if base == "" {
		base = DefaultPublicBaseURL
	}
	prefix := strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/"
	if !strings.HasPrefix(raw, prefix) {
		if strings.Contains(raw, "://") {
			return "", fmt.Errorf("url %q is not under %s", raw, prefix)
		}
		return strings.TrimPrefix(raw, "/"), nil
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return "", fmt.Errorf("invalid object path in %q: %w", raw, err)
	}
	return key, nil
}
