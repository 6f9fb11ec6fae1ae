// Package pdf renders a document.Quotation to PDF bytes: it fetches the
// embedded images, runs the layout engine and encodes the resulting ops.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/document"
	"github.com/marutilaminates/laminates_backend/images"
	"github.com/marutilaminates/laminates_backend/layout"
	"github.com/marutilaminates/laminates_backend/utils"
)

const (
	maxEmbedPixels = 600
	embedQuality   = 85
)

// ImageSource is satisfied by *images.Pipeline.
type ImageSource interface {
	FetchForEmbedding(ctx context.Context, path string) (images.Embedded, error)
}

type Options struct {
	Company     layout.Company
	Letterhead  string
	Timeout     time.Duration
	Concurrency int
}

// OptionsFromConfig reads PDF_* and COMPANY_* settings.
func OptionsFromConfig() Options {
	pdfCfg := config.GetPDFConfig()
	co := config.GetCompanyProfile()
	return Options{
		Company: layout.Company{
			Name:    co.Name,
			Tagline: co.Tagline,
			Phone:   co.Phone,
			Email:   co.Email,
			Address: co.Address,
		},
		Letterhead:  pdfCfg.Letterhead,
		Timeout:     pdfCfg.RenderTimeout,
		Concurrency: pdfCfg.FetchConcurrency,
	}
}

type Renderer struct {
	source ImageSource
	opts   Options
	logger *logrus.Logger
}

func NewRenderer(source ImageSource, opts Options, logger *logrus.Logger) *Renderer {
	if logger == nil {
		logger = config.GetLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Renderer{source: source, opts: opts, logger: logger}
}

type normalizedImage struct {
	data   []byte
	width  int
	height int
}

// Render fails with RenderFailed when the timeout expires or encoding fails.
// A single image that cannot be fetched or decoded only costs its placeholder.
func (r *Renderer) Render(ctx context.Context, q document.Quotation) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	fetched, err := r.fetchImages(ctx, imageRefs(q, r.opts.Letterhead), q.ID)
	if err != nil {
		return nil, utils.RenderFailed(err)
	}

	sizes := make(map[string]layout.ImageSize, len(fetched))
	for ref, img := range fetched {
		sizes[ref] = layout.ImageSize{Width: img.width, Height: img.height}
	}

	m := newFontMeasurer()
	result := layout.Layout(q, layout.Options{
		Company:    r.opts.Company,
		Letterhead: r.opts.Letterhead,
		Images:     sizes,
	}, m)

	data, err := encode(encodeInput{
		title:    "Quotation " + q.ID,
		result:   result,
		images:   fetched,
		measurer: m,
	})
	if err != nil {
		return nil, utils.RenderFailed(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, utils.RenderFailed(err)
	}
	return data, nil
}

// imageRefs lists the letterhead and each item's first image, deduplicated and sorted.
func imageRefs(q document.Quotation, letterhead string) []string {
	seen := map[string]bool{}
	var refs []string
	add := func(ref string) {
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	add(letterhead)
	for _, it := range q.Items {
		if ref, ok := it.FirstImage(); ok {
			add(ref)
		}
	}
	sort.Strings(refs)
	return refs
}

// fetchImages downloads refs concurrently. Results land in a map keyed by
// ref, so completion order does not matter.
func (r *Renderer) fetchImages(ctx context.Context, refs []string, quotationID string) (map[string]normalizedImage, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]normalizedImage, len(refs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, ref := range refs {
		g.Go(func() error {
			emb, err := r.source.FetchForEmbedding(gctx, ref)
			if err != nil {
				config.LogWarn(r.logger, "pdf", "fetchImages", "image fetch failed, using placeholder", map[string]string{"quotation_id": quotationID, "path": ref}, err)
				return nil
			}
			img, err := normalize(emb.Bytes)
			if err != nil {
				config.LogWarn(r.logger, "pdf", "fetchImages", "image decode failed, using placeholder", map[string]string{"quotation_id": quotationID, "path": ref}, err)
				return nil
			}
			mu.Lock()
			out[ref] = img
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetching images: %w", err)
	}
	return out, nil
}

// normalize re-encodes any supported image as a JPEG no larger than
// maxEmbedPixels on either side, flattened onto white.
func normalize(data []byte) (normalizedImage, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return normalizedImage{}, err
	}
	src = imaging.Fit(src, maxEmbedPixels, maxEmbedPixels, imaging.Lanczos)
	b := src.Bounds()
	flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), src, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(embedQuality)); err != nil {
		return normalizedImage{}, err
	}
	return normalizedImage{data: buf.Bytes(), width: b.Dx(), height: b.Dy()}, nil
}
