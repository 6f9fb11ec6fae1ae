package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/document"
	"github.com/marutilaminates/laminates_backend/images"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/storage"
	"github.com/marutilaminates/laminates_backend/utils"
)

var tracer = otel.Tracer("laminates-backend")

const (
	pdfContentType = "application/pdf"

	// postCommitSlack is added to the render timeout for the hydrate, upload
	// and cleanup steps that follow a commit.
	postCommitSlack = 30 * time.Second

	NotePDFFailed = "PDF generation failed"
)

type Renderer interface {
	Render(ctx context.Context, q document.Quotation) ([]byte, error)
}

// Outcome is what a write returns. The rows are committed whenever Outcome is
// non-nil; RenderErr reports a PDF that could not be produced afterwards.
type Outcome struct {
	Quotation *models.Quotation
	PDFURL    string
	Note      string
	RenderErr error
}

// QuotationWorkflow orders every quotation write: images are staged first,
// rows are committed in one transaction, and the PDF is rendered last.
type QuotationWorkflow struct {
	store    storage.Store
	pipeline *images.Pipeline
	renderer Renderer
	locker   Locker
	logger   *logrus.Logger
}

func NewQuotationWorkflow(store storage.Store, pipeline *images.Pipeline, renderer Renderer, locker Locker, logger *logrus.Logger) *QuotationWorkflow {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &QuotationWorkflow{
		store:    store,
		pipeline: pipeline,
		renderer: renderer,
		locker:   locker,
		logger:   logger,
	}
}

func (w *QuotationWorkflow) checkUploadCounts(items int, uploads [][]images.Upload, kept func(i int) int) error {
	if len(uploads) > items {
		return utils.Validation("images", fmt.Sprintf("images sent for %d items but only %d items given", len(uploads), items))
	}
	max := w.pipeline.MaxPerItem()
	for i, files := range uploads {
		if len(files)+kept(i) > max {
			return utils.TooManyImages(i, max)
		}
	}
	return nil
}

// stageImages ingests every upload under quotationID. On failure the blobs
// already written are discarded and nothing is returned.
func (w *QuotationWorkflow) stageImages(ctx context.Context, quotationID string, items int, uploads [][]images.Upload) ([][]string, error) {
	ctx, span := tracer.Start(ctx, "stage_images")
	defer span.End()

	staged := make([][]string, items)
	var all []string
	for i, files := range uploads {
		for _, f := range files {
			path, err := w.pipeline.Ingest(ctx, quotationID, f.Data, f.ContentType)
			if err != nil {
				w.pipeline.DiscardAll(ctx, all)
				span.RecordError(err)
				span.SetStatus(codes.Error, "stage images")
				var appErr *utils.AppError
				if errors.As(err, &appErr) && appErr.Index == nil {
					appErr.AtIndex(i)
				}
				return nil, err
			}
			staged[i] = append(staged[i], path)
			all = append(all, path)
		}
	}
	return staged, nil
}

// detached ignores ctx cancellation and is bounded by the render timeout
// plus postCommitSlack.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), config.GetPDFConfig().RenderTimeout+postCommitSlack)
}

func flatten(paths [][]string) []string {
	var out []string
	for _, p := range paths {
		out = append(out, p...)
	}
	return out
}

// Create validates, stages images, commits the rows and then renders.
func (w *QuotationWorkflow) Create(ctx context.Context, input *models.NewQuotation, uploads [][]images.Upload, creatorID *string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "quotation.create")
	defer span.End()

	products, err := input.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.checkUploadCounts(len(input.Items), uploads, func(int) int { return 0 }); err != nil {
		return nil, err
	}

	quotationID := uuid.NewString()
	span.SetAttributes(attribute.String("quotation_id", quotationID))

	staged, err := w.stageImages(ctx, quotationID, len(input.Items), uploads)
	if err != nil {
		return nil, err
	}

	row, err := models.NewQuotationRow(quotationID, input, creatorID)
	if err != nil {
		w.pipeline.DiscardAll(ctx, flatten(staged))
		return nil, err
	}
	items := models.BuildItems(quotationID, input.Items, products, staged)

	post, cancel := detached(ctx)
	defer cancel()
	if err := w.persist(ctx, func(tx *gorm.DB) error {
		return models.InsertQuotation(tx, row, items)
	}); err != nil {
		config.LogError(w.logger, "workflow", "QuotationWorkflow.Create", "persist rows", quotationID, err)
		w.pipeline.DiscardAll(post, flatten(staged))
		return nil, err
	}

	return w.finish(post, quotationID, nil)
}

// Update applies the provided header fields. Items, when given, replace the
// stored ones; each may keep some of its previous images via ExistingImages.
func (w *QuotationWorkflow) Update(ctx context.Context, id string, input *models.UpdateQuotation, uploads [][]images.Upload, editorID *string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "quotation.update")
	span.SetAttributes(attribute.String("quotation_id", id))
	defer span.End()

	unlock, err := w.locker.Lock(ctx, quotationLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	db := config.GetDB()
	current, err := models.GetQuotationGraph(ctx, db, id)
	if err != nil {
		return nil, err
	}
	products, err := input.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if input.Items == nil && len(uploads) > 0 {
		return nil, utils.Validation("items", "images can only be sent together with items")
	}

	oldImages := current.ImagePaths()
	owned := make(map[string]bool, len(oldImages))
	for _, p := range oldImages {
		owned[p] = true
	}

	var staged [][]string
	var items []models.Item
	kept := map[string]bool{}
	if input.Items != nil {
		for i, it := range input.Items {
			for j, p := range it.ExistingImages {
				// Clients may echo back the public URL instead of the key.
				if key := utils.ExtractObjectKeyFromURL(p); key != "" {
					p = key
					it.ExistingImages[j] = key
				}
				if !owned[p] {
					return nil, utils.Validation("existing_images", "image "+p+" does not belong to this quotation").AtIndex(i)
				}
			}
		}
		err := w.checkUploadCounts(len(input.Items), uploads, func(i int) int {
			return len(utils.UniqueSlice(input.Items[i].ExistingImages))
		})
		if err != nil {
			return nil, err
		}
		staged, err = w.stageImages(ctx, id, len(input.Items), uploads)
		if err != nil {
			return nil, err
		}

		paths := make([][]string, len(input.Items))
		for i, it := range input.Items {
			for _, p := range utils.UniqueSlice(it.ExistingImages) {
				paths[i] = append(paths[i], p)
				kept[p] = true
			}
			paths[i] = append(paths[i], staged[i]...)
		}
		items = models.BuildItems(id, input.Items, products, paths)
	}

	if editorID != nil {
		w.logger.WithFields(logrus.Fields{
			"module":       "workflow",
			"funcName":     "QuotationWorkflow.Update",
			"quotation_id": id,
			"editor_id":    *editorID,
		}).Info("updating quotation")
	}

	post, cancel := detached(ctx)
	defer cancel()
	if err := w.persist(ctx, func(tx *gorm.DB) error {
		if err := models.ApplyHeader(tx, id, input); err != nil {
			return err
		}
		if input.Items == nil {
			return nil
		}
		return models.ReplaceItems(tx, id, items)
	}); err != nil {
		config.LogError(w.logger, "workflow", "QuotationWorkflow.Update", "persist rows", id, err)
		w.pipeline.DiscardAll(post, flatten(staged))
		return nil, err
	}

	if input.Items != nil {
		var dropped []string
		for _, p := range oldImages {
			if !kept[p] {
				dropped = append(dropped, p)
			}
		}
		w.pipeline.DiscardAll(post, dropped)
	}

	return w.finish(post, id, current.PDFPath)
}

// Delete removes the rows, then discards the item images and the PDF.
func (w *QuotationWorkflow) Delete(ctx context.Context, id string) (*models.Quotation, error) {
	ctx, span := tracer.Start(ctx, "quotation.delete")
	span.SetAttributes(attribute.String("quotation_id", id))
	defer span.End()

	unlock, err := w.locker.Lock(ctx, quotationLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := models.GetQuotationGraph(ctx, config.GetDB(), id)
	if err != nil {
		return nil, err
	}
	paths := current.ImagePaths()
	if current.PDFPath != nil {
		paths = append(paths, *current.PDFPath)
	}

	if err := w.persist(ctx, func(tx *gorm.DB) error {
		return models.DeleteQuotationRow(tx, id)
	}); err != nil {
		config.LogError(w.logger, "workflow", "QuotationWorkflow.Delete", "delete rows", id, err)
		return nil, err
	}

	post, cancel := detached(ctx)
	defer cancel()
	w.pipeline.DiscardAll(post, paths)
	return current, nil
}

// RegeneratePDF renders the stored quotation again. Unlike create and update
// a render failure is returned as the error.
func (w *QuotationWorkflow) RegeneratePDF(ctx context.Context, id string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "quotation.regenerate_pdf")
	span.SetAttributes(attribute.String("quotation_id", id))
	defer span.End()

	unlock, err := w.locker.Lock(ctx, quotationLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := models.GetQuotationGraph(ctx, config.GetDB(), id)
	if err != nil {
		return nil, err
	}
	path, err := w.renderAndStore(ctx, current)
	if err != nil {
		return nil, err
	}
	if current.PDFPath != nil && *current.PDFPath != path {
		w.pipeline.Discard(ctx, *current.PDFPath)
	}
	return w.outcome(ctx, id, path)
}

func (w *QuotationWorkflow) MarkShared(ctx context.Context, id string, at time.Time) (*models.Quotation, error) {
	db := config.GetDB()
	if err := models.SetLastSharedDate(ctx, db, id, at); err != nil {
		return nil, err
	}
	return models.GetQuotationGraph(ctx, db, id)
}

// GetPublic serves the unauthenticated link. It works only for quotations
// that were shared within the configured number of months before now.
func (w *QuotationWorkflow) GetPublic(ctx context.Context, id string, now time.Time) (*Outcome, error) {
	q, err := models.GetQuotationGraph(ctx, config.GetDB(), id)
	if err != nil {
		return nil, err
	}
	if q.LastSharedDate == nil {
		return nil, utils.Forbidden("quotation has not been shared")
	}
	expires := q.LastSharedDate.AddDate(0, config.PublicLinkExpiryMonths(), 0)
	if now.After(expires) {
		return nil, utils.Forbidden("link expired")
	}
	out := &Outcome{Quotation: q}
	if q.PDFPath != nil {
		out.PDFURL = w.store.PublicURL(*q.PDFPath)
	}
	return out, nil
}

// PDFURL is the public address of the quotation's current PDF, if any.
func (w *QuotationWorkflow) PDFURL(q *models.Quotation) string {
	if q == nil || q.PDFPath == nil {
		return ""
	}
	return w.store.PublicURL(*q.PDFPath)
}

func (w *QuotationWorkflow) persist(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, span := tracer.Start(ctx, "persist_rows")
	defer span.End()

	err := config.GetDB().WithContext(ctx).Transaction(fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist rows")
	}
	return err
}

// finish renders after a commit. A failed render leaves pdf_path as it was
// and is reported through the Outcome; oldPDF is discarded only once the new
// path is stored.
func (w *QuotationWorkflow) finish(ctx context.Context, id string, oldPDF *string) (*Outcome, error) {
	current, err := models.GetQuotationGraph(ctx, config.GetDB(), id)
	if err != nil {
		return nil, err
	}
	path, renderErr := w.renderAndStore(ctx, current)
	if renderErr != nil {
		config.LogError(w.logger, "workflow", "QuotationWorkflow.finish", "render pdf", id, renderErr)
		out := &Outcome{Quotation: current, Note: NotePDFFailed, RenderErr: renderErr}
		out.PDFURL = w.PDFURL(current)
		return out, nil
	}
	if oldPDF != nil && *oldPDF != path {
		w.pipeline.Discard(ctx, *oldPDF)
	}
	return w.outcome(ctx, id, path)
}

func (w *QuotationWorkflow) outcome(ctx context.Context, id string, path string) (*Outcome, error) {
	q, err := models.GetQuotationGraph(ctx, config.GetDB(), id)
	if err != nil {
		return nil, err
	}
	return &Outcome{Quotation: q, PDFURL: w.store.PublicURL(path)}, nil
}

// renderAndStore renders q, stores the PDF and records its path. Any
// failure is a RenderFailed and leaves no new blob behind.
func (w *QuotationWorkflow) renderAndStore(ctx context.Context, q *models.Quotation) (string, error) {
	ctx, span := tracer.Start(ctx, "render_pdf")
	defer span.End()

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render pdf")
		if utils.IsKind(err, utils.KindRenderFailed) {
			return "", err
		}
		return "", utils.RenderFailed(err)
	}

	data, err := w.renderer.Render(ctx, toDocument(q))
	if err != nil {
		return fail(err)
	}
	path, err := w.store.Put(ctx, data, pdfContentType, storage.QuotationScope(q.ID))
	if err != nil {
		return fail(err)
	}
	if err := models.UpdatePDFPath(ctx, config.GetDB(), q.ID, path); err != nil {
		w.pipeline.Discard(ctx, path)
		return fail(err)
	}
	return path, nil
}
