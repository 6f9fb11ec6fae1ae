// Package images validates, compresses and stores item images, and reads them
// back for embedding into quotation PDFs.
package images

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/storage"
	"github.com/marutilaminates/laminates_backend/utils"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Upload is one file received for an item.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Embedded is a stored image ready to be placed into a document.
type Embedded struct {
	Bytes    []byte
	Width    int
	Height   int
	MimeType string
}

// DiscardResult records a best-effort delete. Callers log it and move on.
type DiscardResult struct {
	Path string
	Err  error
}

type Pipeline struct {
	store  storage.Store
	cfg    config.ImageConfig
	logger *logrus.Logger
}

func NewPipeline(store storage.Store, cfg config.ImageConfig, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Pipeline{store: store, cfg: cfg, logger: logger}
}

func (p *Pipeline) MaxPerItem() int {
	return p.cfg.MaxPerItem
}

func (p *Pipeline) Store() storage.Store {
	return p.store
}

// Ingest validates raw against the allow-list and size limit, compresses it when
// configured and stores it under the quotation's item scope.
func (p *Pipeline) Ingest(ctx context.Context, quotationID string, raw []byte, declaredMime string) (string, error) {
	contentType, err := p.check(raw, declaredMime)
	if err != nil {
		return "", err
	}

	data := raw
	if p.cfg.CompressionEnabled && int64(len(raw)) >= p.cfg.MinBytesToCompress {
		compressed, cerr := p.compress(raw)
		if cerr != nil {
			config.LogWarn(p.logger, "images", "Ingest", "compression failed, storing original", quotationID, cerr)
		} else {
			data = compressed
			contentType = "image/jpeg"
		}
	}

	path, err := p.store.Put(ctx, data, contentType, storage.ItemImageScope(quotationID))
	if err != nil {
		return "", err
	}
	return path, nil
}

// check returns the content type to store the file under.
func (p *Pipeline) check(raw []byte, declaredMime string) (string, error) {
	declared := normalizeMime(declaredMime)
	if !allowedMimeTypes[declared] {
		return "", utils.InvalidImage("unsupported image type " + declaredMime)
	}
	if len(raw) == 0 {
		return "", utils.InvalidImage("empty image")
	}
	if p.cfg.MaxSizeBytes > 0 && int64(len(raw)) > p.cfg.MaxSizeBytes {
		return "", utils.ImageTooLarge(int64(len(raw)), p.cfg.MaxSizeBytes)
	}
	sniffed := normalizeMime(mimetype.Detect(raw).String())
	if !allowedMimeTypes[sniffed] {
		return "", utils.InvalidImage("file content is not a supported image")
	}
	return sniffed, nil
}

// compress re-encodes to JPEG. With PreserveDimensions the pixel size is kept,
// otherwise the image is fitted inside MaxWidth x MaxHeight.
func (p *Pipeline) compress(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if !p.cfg.PreserveDimensions {
		img = imaging.Fit(img, p.cfg.MaxWidth, p.cfg.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.cfg.Quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FetchForEmbedding reads a stored image and its pixel size. The size comes from
// the container header; unreadable headers yield 800x600.
func (p *Pipeline) FetchForEmbedding(ctx context.Context, path string) (Embedded, error) {
	data, err := p.store.Get(ctx, path)
	if err != nil {
		return Embedded{}, err
	}
	width, height := Dimensions(data)
	return Embedded{
		Bytes:    data,
		Width:    width,
		Height:   height,
		MimeType: normalizeMime(mimetype.Detect(data).String()),
	}, nil
}

// Dimensions parses the header only.
func Dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return cfg.Width, cfg.Height
}

// Discard deletes path and never fails the caller. The error, if any, is logged and returned in the result.
func (p *Pipeline) Discard(ctx context.Context, path string) DiscardResult {
	if strings.TrimSpace(path) == "" {
		return DiscardResult{Path: path}
	}
	err := p.store.Delete(ctx, path)
	if err != nil {
		config.LogWarn(p.logger, "images", "Discard", "blob delete failed", path, err)
	}
	return DiscardResult{Path: path, Err: err}
}

// DiscardAll returns only the failed results.
func (p *Pipeline) DiscardAll(ctx context.Context, paths []string) []DiscardResult {
	var failed []DiscardResult
	for _, path := range utils.UniqueSlice(paths) {
		if res := p.Discard(ctx, path); res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

func normalizeMime(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" || m == "image/pjpeg" {
		return "image/jpeg"
	}
	return m
}
