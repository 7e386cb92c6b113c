package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/callscribe/internal/services"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// downloadTokenKey is the metadata key Firebase Storage reads download tokens from.
const downloadTokenKey = "firebaseStorageDownloadTokens"

// GCSObjectStore implements services.ObjectStore on a Cloud Storage bucket and
// hands out Firebase Storage token URLs.
type GCSObjectStore struct {
	bucket     *storage.BucketHandle
	bucketName string
	maxRetries int
}

var _ services.ObjectStore = (*GCSObjectStore)(nil)

func NewGCSObjectStore(client *storage.Client, bucketName string) *GCSObjectStore {
	return &GCSObjectStore{bucket: client.Bucket(bucketName), bucketName: bucketName, maxRetries: 4}
}

// Upload writes data to key, replacing any existing object. A fresh download
// token is attached on every write.
func (s *GCSObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < s.maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()

			w := s.bucket.Object(key).NewWriter(writeCtx)
			w.ContentType = contentType
			w.Metadata = map[string]string{downloadTokenKey: uuid.NewString()}

			if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
				_ = w.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", key,
			"attempt", i+1,
			"maxRetries", s.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", key, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", key, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", key, lastErr)
}

// DownloadURL returns the Firebase token URL of key, adding a token to the
// object metadata when it has none.
func (s *GCSObjectStore) DownloadURL(ctx context.Context, key string) (string, error) {
	obj := s.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read attributes of gs://%s/%s: %w", s.bucketName, key, err)
	}
	token := firstToken(attrs.Metadata[downloadTokenKey])
	if token == "" {
		token = uuid.NewString()
		md := map[string]string{downloadTokenKey: token}
		for k, v := range attrs.Metadata {
			if k != downloadTokenKey {
				md[k] = v
			}
		}
		if _, err := obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: md}); err != nil {
			return "", fmt.Errorf("failed to add download token to gs://%s/%s: %w", s.bucketName, key, err)
		}
	}
	return FirebaseDownloadURL(s.bucketName, key, token), nil
}

// FirebaseDownloadURL builds the public token URL of an object.
func FirebaseDownloadURL(bucket, key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(key), url.QueryEscape(token))
}

// firstToken picks the first of a comma separated token list.
func firstToken(tokens string) string {
	tok, _, _ := strings.Cut(tokens, ",")
	return strings.TrimSpace(tok)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	return true
}
