// Package storage is the blob store for item images and rendered quotation PDFs.
// Objects are addressed by path; every Put allocates a fresh path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marutilaminates/laminates_backend/utils"
)

var ErrNotExist = errors.New("object does not exist")

type Store interface {
	// Put stores data under a new unique path inside scope and returns that path.
	Put(ctx context.Context, data []byte, contentType string, scope string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete is idempotent: a missing path is not an error.
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

// ItemImageScope is where item images of one quotation live.
func ItemImageScope(quotationID string) string {
	return "quotations/" + quotationID + "/items"
}

// QuotationScope is where rendered PDFs of one quotation live.
func QuotationScope(quotationID string) string {
	return "quotations/" + quotationID
}

// BelongsToQuotation reports whether path was allocated under QuotationScope(quotationID).
func BelongsToQuotation(path string, quotationID string) bool {
	return quotationID != "" && strings.HasPrefix(path, QuotationScope(quotationID)+"/")
}

// NewObjectPath builds "<scope>/<millis>-<random>.<ext>".
func NewObjectPath(scope string, contentType string) string {
	return fmt.Sprintf("%s/%s.%s", strings.TrimRight(scope, "/"), utils.GenerateUniqueFilename(), ExtensionFor(contentType))
}

func ExtensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "application/pdf":
		return "pdf"
	}
	return "bin"
}

// New picks the provider from STORAGE_PROVIDER.
func New(ctx context.Context) (Store, error) {
	switch utils.GetStorageProvider() {
	case utils.StorageProviderMemory:
		return NewMemoryStore(), nil
	case utils.StorageProviderGCS:
		return NewGCSStore(ctx)
	}
	return nil, fmt.Errorf("storage provider %q is not supported", utils.GetStorageProvider())
}
