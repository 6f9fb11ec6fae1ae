package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/document"
	"github.com/marutilaminates/laminates_backend/images"
	"github.com/marutilaminates/laminates_backend/layout"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/pdf"
	"github.com/marutilaminates/laminates_backend/storage"
	"github.com/marutilaminates/laminates_backend/utils"
)

type fakeRenderer struct {
	mu       sync.Mutex
	calls    int
	err      error
	last     document.Quotation
	onRender func()
}

func (r *fakeRenderer) Render(ctx context.Context, q document.Quotation) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = q
	if r.onRender != nil {
		r.onRender()
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("%PDF-1.3 " + q.ID), nil
}

// failingStore wraps MemoryStore and fails writes of the given content type.
type failingStore struct {
	*storage.MemoryStore
	failContentType string
}

func (s *failingStore) Put(ctx context.Context, data []byte, contentType string, scope string) (string, error) {
	if contentType == s.failContentType {
		return "", utils.StorageFailed("put", scope, errors.New("bucket unavailable"))
	}
	return s.MemoryStore.Put(ctx, data, contentType, scope)
}

type fixture struct {
	ctx      context.Context
	store    *storage.MemoryStore
	renderer *fakeRenderer
	wf       *QuotationWorkflow
	customer *models.Customer
	product  *models.Product
}

func testImageConfig() config.ImageConfig {
	return config.ImageConfig{
		MaxPerItem:         2,
		MaxSizeBytes:       1 << 20,
		CompressionEnabled: false,
		Quality:            80,
		PreserveDimensions: true,
		MaxWidth:           1200,
		MaxHeight:          1200,
	}
}

func openTestDB(t *testing.T) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase(config.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	config.UseDatabase(db)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
}

func newFixture(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	openTestDB(t)
	ctx := context.Background()

	mem, _ := store.(*storage.MemoryStore)
	if fs, ok := store.(*failingStore); ok {
		mem = fs.MemoryStore
	}
	renderer := &fakeRenderer{}
	pipeline := images.NewPipeline(store, testImageConfig(), nil)
	wf := NewQuotationWorkflow(store, pipeline, renderer, NewKeyedMutex(), config.GetLogger())

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Asha Patel", MobileNo: "9876543210"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Sunmica 1mm", Unit: "SQ.FT"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return &fixture{ctx: ctx, store: mem, renderer: renderer, wf: wf, customer: customer, product: product}
}

func pngUpload(t *testing.T) images.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		img.Set(x, x%30, color.RGBA{200, 10, 10, 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return images.Upload{Filename: "swatch.png", ContentType: "image/png", Data: buf.Bytes()}
}

func (f *fixture) input(n int) *models.NewQuotation {
	items := make([]models.NewItem, n)
	for i := range items {
		items[i] = models.NewItem{ProductID: f.product.ID, Rate: decimal.NewFromInt(100)}
	}
	return &models.NewQuotation{QuotationDate: "2025-08-01", CustomerID: f.customer.ID, Items: items}
}

func countRows[T any](t *testing.T) int64 {
	t.Helper()
	var n int64
	var model T
	if err := config.GetDB().Model(&model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateRejectsZeroItems(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	_, err := f.wf.Create(f.ctx, f.input(0), nil, nil)
	if !utils.IsKind(err, utils.KindValidationFailed) {
		t.Fatalf("Create expected %s, got %v", utils.KindValidationFailed, err)
	}
	if n := countRows[models.Quotation](t); n != 0 {
		t.Fatalf("quotations expected 0, got %d", n)
	}
	if f.renderer.calls != 0 {
		t.Fatalf("renderer calls expected 0, got %d", f.renderer.calls)
	}
}

func TestCreateTooManyImagesWritesNothing(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	uploads := [][]images.Upload{
		{pngUpload(t)},
		{pngUpload(t), pngUpload(t), pngUpload(t)},
	}
	_, err := f.wf.Create(f.ctx, f.input(2), uploads, nil)
	if !utils.IsKind(err, utils.KindTooManyImages) {
		t.Fatalf("Create expected %s, got %v", utils.KindTooManyImages, err)
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Index == nil || *appErr.Index != 1 {
		t.Fatalf("expected index 1, got %+v", appErr)
	}
	if n := countRows[models.Quotation](t); n != 0 {
		t.Fatalf("quotations expected 0, got %d", n)
	}
	if paths := f.store.Paths(); len(paths) != 0 {
		t.Fatalf("blobs expected none, got %v", paths)
	}
}

func TestCreateInvalidImageDiscardsStagedBlobs(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	bad := images.Upload{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}
	uploads := [][]images.Upload{{pngUpload(t)}, {bad}}
	_, err := f.wf.Create(f.ctx, f.input(2), uploads, nil)
	if !utils.IsKind(err, utils.KindInvalidImage) {
		t.Fatalf("Create expected %s, got %v", utils.KindInvalidImage, err)
	}
	if paths := f.store.Paths(); len(paths) != 0 {
		t.Fatalf("staged blobs expected discarded, got %v", paths)
	}
	if n := countRows[models.Item](t); n != 0 {
		t.Fatalf("items expected 0, got %d", n)
	}
}

func TestCreateStoresImagesAndPDF(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	uploads := [][]images.Upload{{pngUpload(t), pngUpload(t)}}
	out, err := f.wf.Create(f.ctx, f.input(2), uploads, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.Note != "" || out.RenderErr != nil {
		t.Fatalf("expected clean outcome, got note %q err %v", out.Note, out.RenderErr)
	}
	q := out.Quotation
	if q.PDFPath == nil || !storage.BelongsToQuotation(*q.PDFPath, q.ID) || !strings.HasSuffix(*q.PDFPath, ".pdf") {
		t.Fatalf("pdf path expected under quotation, got %v", q.PDFPath)
	}
	if !f.store.Has(*q.PDFPath) {
		t.Fatalf("pdf blob %s missing", *q.PDFPath)
	}
	if out.PDFURL == "" {
		t.Fatalf("pdf url expected")
	}
	if len(q.Items) != 2 {
		t.Fatalf("items expected 2, got %d", len(q.Items))
	}
	first := q.Items[0].ImagePaths()
	if len(first) != 2 {
		t.Fatalf("first item images expected 2, got %v", first)
	}
	for _, p := range first {
		if !strings.HasPrefix(p, storage.ItemImageScope(q.ID)+"/") || !f.store.Has(p) {
			t.Fatalf("image %s expected stored under %s", p, storage.ItemImageScope(q.ID))
		}
	}
	if q.Items[0].Unit != "SQ.FT" || q.Items[1].Quantity != 1 {
		t.Fatalf("expected product unit and quantity 1, got %s %d", q.Items[0].Unit, q.Items[1].Quantity)
	}
	if f.renderer.last.Customer.Name != "Asha Patel" || len(f.renderer.last.Items) != 2 {
		t.Fatalf("renderer saw %+v", f.renderer.last.Customer)
	}
}

func TestCreateRenderFailureKeepsRows(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), failContentType: pdfContentType}
	f := newFixture(t, store)

	out, err := f.wf.Create(f.ctx, f.input(3), [][]images.Upload{{pngUpload(t)}}, nil)
	if err != nil {
		t.Fatalf("Create expected success, got %v", err)
	}
	if out.Note != NotePDFFailed {
		t.Fatalf("note expected %q, got %q", NotePDFFailed, out.Note)
	}
	if !utils.IsKind(out.RenderErr, utils.KindRenderFailed) {
		t.Fatalf("render error expected %s, got %v", utils.KindRenderFailed, out.RenderErr)
	}

	q, err := models.GetQuotation(f.ctx, out.Quotation.ID)
	if err != nil {
		t.Fatalf("GetQuotation: %v", err)
	}
	if q.PDFPath != nil {
		t.Fatalf("pdf path expected nil, got %s", *q.PDFPath)
	}
	if len(q.Items) != 3 {
		t.Fatalf("items expected 3, got %d", len(q.Items))
	}
	if len(q.Items[0].ImagePaths()) != 1 {
		t.Fatalf("image expected to survive the render failure")
	}
}

func TestCreateRendersAfterCallerCancels(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	f.renderer.onRender = cancel

	out, err := f.wf.Create(ctx, f.input(1), nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.RenderErr != nil || out.Note != "" {
		t.Fatalf("render expected to survive cancellation, got %v %q", out.RenderErr, out.Note)
	}
	if out.Quotation.PDFPath == nil || !f.store.Has(*out.Quotation.PDFPath) {
		t.Fatalf("pdf expected stored, got %v", out.Quotation.PDFPath)
	}
}

func TestCreateUnknownProductNamesIt(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	input := f.input(1)
	input.Items = append(input.Items, models.NewItem{ProductID: "ghost-product", Rate: decimal.NewFromInt(1)})
	_, err := f.wf.Create(f.ctx, input, nil, nil)
	if !utils.IsKind(err, utils.KindNotFound) || !strings.Contains(err.Error(), "ghost-product") {
		t.Fatalf("Create expected NotFound naming ghost-product, got %v", err)
	}
}

func TestUpdateReplacesItemsAndDiscardsDroppedImages(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(2), [][]images.Upload{{pngUpload(t), pngUpload(t)}, {pngUpload(t)}}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	q := created.Quotation
	keep := q.Items[0].ImagePaths()[0]
	drop := append([]string{q.Items[0].ImagePaths()[1]}, q.Items[1].ImagePaths()...)
	oldPDF := *q.PDFPath

	remarks := "Delivery in 2 weeks"
	input := &models.UpdateQuotation{
		Remarks: &remarks,
		Items: []models.NewItem{
			{ProductID: f.product.ID, Rate: decimal.NewFromInt(250), ExistingImages: []string{keep}},
		},
	}
	out, err := f.wf.Update(f.ctx, q.ID, input, [][]images.Upload{{pngUpload(t)}}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated := out.Quotation
	if len(updated.Items) != 1 {
		t.Fatalf("items expected 1, got %d", len(updated.Items))
	}
	paths := updated.Items[0].ImagePaths()
	if len(paths) != 2 || paths[0] != keep {
		t.Fatalf("images expected kept %s plus one new, got %v", keep, paths)
	}
	for _, p := range drop {
		if f.store.Has(p) {
			t.Fatalf("dropped image %s still stored", p)
		}
	}
	if !f.store.Has(keep) || !f.store.Has(paths[1]) {
		t.Fatalf("kept images expected stored")
	}
	if updated.PDFPath == nil || *updated.PDFPath == oldPDF {
		t.Fatalf("pdf path expected replaced, got %v", updated.PDFPath)
	}
	if f.store.Has(oldPDF) {
		t.Fatalf("old pdf %s expected discarded", oldPDF)
	}
	if updated.Remarks == nil || *updated.Remarks != remarks {
		t.Fatalf("remarks expected %q, got %v", remarks, updated.Remarks)
	}
}

func TestUpdateRejectsForeignExistingImage(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(1), nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	input := &models.UpdateQuotation{Items: []models.NewItem{
		{ProductID: f.product.ID, Rate: decimal.NewFromInt(1), ExistingImages: []string{"quotations/other/items/x.jpg"}},
	}}
	_, err = f.wf.Update(f.ctx, created.Quotation.ID, input, nil, nil)
	if !utils.IsKind(err, utils.KindValidationFailed) {
		t.Fatalf("Update expected %s, got %v", utils.KindValidationFailed, err)
	}
}

func TestUpdateAcceptsExistingImageAsPublicURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/media")
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(1), [][]images.Upload{{pngUpload(t)}}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	key := created.Quotation.Items[0].ImagePaths()[0]
	input := &models.UpdateQuotation{Items: []models.NewItem{
		{ProductID: f.product.ID, Rate: decimal.NewFromInt(1), ExistingImages: []string{f.store.PublicURL(key)}},
	}}
	out, err := f.wf.Update(f.ctx, created.Quotation.ID, input, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	paths := out.Quotation.Items[0].ImagePaths()
	if len(paths) != 1 || paths[0] != key {
		t.Fatalf("images expected [%s], got %v", key, paths)
	}
	if !f.store.Has(key) {
		t.Fatalf("kept image %s expected stored", key)
	}
}

func TestUpdateRenderFailureKeepsOldPDF(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(1), nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oldPDF := *created.Quotation.PDFPath

	f.renderer.err = errors.New("encoder exploded")
	remarks := "changed"
	out, err := f.wf.Update(f.ctx, created.Quotation.ID, &models.UpdateQuotation{Remarks: &remarks}, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Note != NotePDFFailed {
		t.Fatalf("note expected %q, got %q", NotePDFFailed, out.Note)
	}
	if out.Quotation.PDFPath == nil || *out.Quotation.PDFPath != oldPDF || !f.store.Has(oldPDF) {
		t.Fatalf("old pdf expected untouched, got %v", out.Quotation.PDFPath)
	}
}

func TestUpdateMissingQuotation(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	_, err := f.wf.Update(f.ctx, "missing", &models.UpdateQuotation{}, nil, nil)
	if !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("Update expected %s, got %v", utils.KindNotFound, err)
	}
}

func TestDeleteDiscardsBlobs(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(2), [][]images.Upload{{pngUpload(t)}, {pngUpload(t)}}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(f.store.Paths()) != 3 {
		t.Fatalf("blobs expected 3, got %v", f.store.Paths())
	}

	if _, err := f.wf.Delete(f.ctx, created.Quotation.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if paths := f.store.Paths(); len(paths) != 0 {
		t.Fatalf("blobs expected none, got %v", paths)
	}
	if n := countRows[models.Item](t); n != 0 {
		t.Fatalf("items expected 0, got %d", n)
	}
	if _, err := f.wf.Delete(f.ctx, created.Quotation.ID); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("second Delete expected %s, got %v", utils.KindNotFound, err)
	}
}

func TestRegeneratePDF(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(1), nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oldPDF := *created.Quotation.PDFPath

	out, err := f.wf.RegeneratePDF(f.ctx, created.Quotation.ID)
	if err != nil {
		t.Fatalf("RegeneratePDF: %v", err)
	}
	if *out.Quotation.PDFPath == oldPDF || f.store.Has(oldPDF) {
		t.Fatalf("expected a fresh pdf with the old one discarded")
	}

	f.renderer.err = errors.New("boom")
	if _, err := f.wf.RegeneratePDF(f.ctx, created.Quotation.ID); !utils.IsKind(err, utils.KindRenderFailed) {
		t.Fatalf("RegeneratePDF expected %s, got %v", utils.KindRenderFailed, err)
	}
	if !f.store.Has(*out.Quotation.PDFPath) {
		t.Fatalf("current pdf expected kept after a failed regenerate")
	}
}

func TestGetPublicExpiry(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore())

	created, err := f.wf.Create(f.ctx, f.input(1), nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.Quotation.ID
	shared := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	if _, err := f.wf.GetPublic(f.ctx, id, shared); !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("unshared expected %s, got %v", utils.KindForbidden, err)
	}
	if _, err := f.wf.MarkShared(f.ctx, id, shared); err != nil {
		t.Fatalf("MarkShared: %v", err)
	}

	cases := []struct {
		now  time.Time
		kind utils.ErrorKind
	}{
		{shared.AddDate(0, 1, 0), ""},
		{shared.AddDate(0, 3, 0), ""},
		{shared.AddDate(0, 3, 1), utils.KindForbidden},
	}
	for _, tc := range cases {
		out, err := f.wf.GetPublic(f.ctx, id, tc.now)
		if tc.kind == "" {
			if err != nil {
				t.Fatalf("GetPublic(%s) expected success, got %v", tc.now, err)
			}
			if out.PDFURL == "" {
				t.Fatalf("GetPublic(%s) expected a pdf url", tc.now)
			}
			continue
		}
		if !utils.IsKind(err, tc.kind) {
			t.Fatalf("GetPublic(%s) expected %s, got %v", tc.now, tc.kind, err)
		}
	}

	if _, err := f.wf.MarkShared(f.ctx, "missing", shared); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("MarkShared expected %s, got %v", utils.KindNotFound, err)
	}
}

func TestCreateWithRealRenderer(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pipeline := images.NewPipeline(store, testImageConfig(), nil)
	renderer := pdf.NewRenderer(pipeline, pdf.Options{Company: layout.Company{Name: "Maruti Laminates", Phone: "+91 98250 00000"}, Timeout: 10 * time.Second, Concurrency: 2}, nil)
	wf := NewQuotationWorkflow(store, pipeline, renderer, nil, nil)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Asha Patel", MobileNo: "9876543210"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Sunmica 1mm", Unit: "SQ.FT"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	ten := decimal.NewFromInt(10)
	percentage := "PERCENTAGE"
	input := &models.NewQuotation{
		QuotationDate: "2025-08-01",
		CustomerID:    customer.ID,
		Items: []models.NewItem{
			{ProductID: product.ID, Rate: decimal.NewFromInt(100), Discount: &ten, DiscountType: &percentage},
		},
	}
	out, err := wf.Create(ctx, input, [][]images.Upload{{pngUpload(t)}}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.RenderErr != nil {
		t.Fatalf("render: %v", out.RenderErr)
	}
	data, err := store.Get(ctx, *out.Quotation.PDFPath)
	if err != nil {
		t.Fatalf("Get pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("pdf expected %%PDF- header, got %q", data[:8])
	}
}
