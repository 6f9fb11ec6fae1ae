package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/marutilaminates/laminates_backend/utils"
)

type GCSStore struct {
	client *storage.Client
	bucket string
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Set GCS_CREDENTIALS_JSON to provide explicit JSON (e.g. locally).
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %v", bucketName, err)
	}
	return &GCSStore{client: client, bucket: bucketName}, nil
}

func (s *GCSStore) Put(ctx context.Context, data []byte, contentType string, scope string) (string, error) {
	objectName := NewObjectPath(scope, contentType)

	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", utils.StorageFailed("put", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", utils.StorageFailed("put", objectName, err)
	}
	return objectName, nil
}

func (s *GCSStore) Get(ctx context.Context, path string) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, utils.StorageFailed("get", path, ErrNotExist)
		}
		return nil, utils.StorageFailed("get", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, utils.StorageFailed("get", path, err)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return utils.StorageFailed("delete", path, err)
	}
	return nil
}

func (s *GCSStore) PublicURL(path string) string {
	return utils.BuildObjectAccessURL(path)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
