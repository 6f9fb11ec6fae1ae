package layout

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marutilaminates/laminates_backend/document"
)

var testMeasurer = MonospaceMeasurer{Advance: 2}

func testOptions() Options {
	return Options{
		Company: Company{
			Name:    "Maruti Laminates",
			Tagline: "Professional Laminates & Interior Solutions",
			Phone:   "+91 1234567890",
			Email:   "info@marutilaminates.com",
			Address: "123 Main Street, City, State - 123456",
		},
		Images: map[string]ImageSize{},
	}
}

func testQuotation(n int) document.Quotation {
	items := make([]document.Item, n)
	for i := range items {
		items[i] = document.Item{
			Product:  document.Product{Name: "Sunmica 1mm", Unit: "PCS"},
			Location: "Kitchen",
			Rate:     decimal.RequireFromString("100.00"),
			Quantity: 2,
			Unit:     "PCS",
			Discount: document.Percentage(decimal.NewFromInt(10)),
		}
	}
	return document.Quotation{
		ID:        "3f0c7a4e-8f61-4d55-9d2e-6e3c1f0b9a21",
		Date:      time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC),
		PriceType: document.PriceInclusiveTax,
		Customer: document.Customer{
			Name:    "Ravi Patel",
			Mobile:  "+91 9876543210",
			Address: "Plot 7, Ring Road, Surat",
			Reference: &document.Referrer{
				Name:   "Mahesh Carpenter",
				Mobile: "9876501234",
			},
		},
		Items: items,
	}
}

func opsWithTag(res Result, tag string) []Op {
	var out []Op
	for _, op := range res.Ops {
		if op.Tag == tag {
			out = append(out, op)
		}
	}
	return out
}

func TestLayout_PaginatesAndRedrawsTableHeader(t *testing.T) {
	for _, n := range []int{1, 5, 6, 12, 13, 40} {
		res := Layout(testQuotation(n), testOptions(), testMeasurer)

		rowPages := map[int]bool{}
		rowsSeen := map[string]bool{}
		for _, op := range res.Ops {
			if strings.HasPrefix(op.Tag, "row:") {
				rowPages[op.Page] = true
				rowsSeen[op.Tag] = true
				if op.Kind == KindRect && op.Y+op.H > BottomLimit+1e-6 {
					t.Fatalf("n=%d: row %s crosses bottom limit at %.2f", n, op.Tag, op.Y+op.H)
				}
			}
		}
		if len(rowsSeen) != n {
			t.Fatalf("n=%d: expected %d rows, got %d", n, n, len(rowsSeen))
		}
		for i := 1; i <= n; i++ {
			if !rowsSeen[RowTag(i)] {
				t.Fatalf("n=%d: row %d missing", n, i)
			}
		}

		headerRects := map[int]int{}
		for _, op := range opsWithTag(res, TagTableHeader) {
			if op.Kind == KindRect {
				headerRects[op.Page]++
			}
		}
		for page := range rowPages {
			if headerRects[page] != 1 {
				t.Fatalf("n=%d: page %d expected 1 table header, got %d", n, page, headerRects[page])
			}
		}
		if len(headerRects) != len(rowPages) {
			t.Fatalf("n=%d: expected table header on %d pages, got %d", n, len(rowPages), len(headerRects))
		}
	}
}

func TestLayout_RowsPerPage(t *testing.T) {
	res := Layout(testQuotation(12), testOptions(), testMeasurer)
	perPage := map[int]map[string]bool{}
	for _, op := range res.Ops {
		if strings.HasPrefix(op.Tag, "row:") {
			if perPage[op.Page] == nil {
				perPage[op.Page] = map[string]bool{}
			}
			perPage[op.Page][op.Tag] = true
		}
	}
	if len(perPage[1]) != 5 {
		t.Fatalf("page 1 expected 5 rows, got %d", len(perPage[1]))
	}
	if len(perPage[2]) != 7 {
		t.Fatalf("page 2 expected 7 rows, got %d", len(perPage[2]))
	}
}

func TestLayout_IsDeterministic(t *testing.T) {
	q := testQuotation(9)
	q.Remarks = "Deliver after 5 pm. Call the site supervisor before unloading."
	q.Items[0].Images = []string{"quotations/q/items/1.jpg"}
	opts := testOptions()
	opts.Images["quotations/q/items/1.jpg"] = ImageSize{Width: 1200, Height: 800}

	a := Layout(q, opts, testMeasurer)
	b := Layout(q, opts, testMeasurer)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical layouts for identical input")
	}
}

func TestLayout_TruncatesLongDescription(t *testing.T) {
	q := testQuotation(1)
	q.Items[0].Description = strings.Repeat("glossy finish laminate sheet ", 40)
	res := Layout(q, testOptions(), testMeasurer)

	cells := columnRects(0, RowHeight)
	productX := cells[colProduct].X + CellPadding
	var lines []Op
	for _, op := range opsWithTag(res, RowTag(1)) {
		if op.Kind == KindText && op.X == productX {
			lines = append(lines, op)
		}
	}
	if len(lines) != RowLineBudget {
		t.Fatalf("expected %d product lines, got %d", RowLineBudget, len(lines))
	}
	last := lines[len(lines)-1].Text
	if !strings.HasSuffix(last, Ellipsis) {
		t.Fatalf("expected last line to end with ellipsis, got %q", last)
	}
	if lines[0].Font.Style != "B" {
		t.Fatalf("expected product name in bold, got style %q", lines[0].Font.Style)
	}
}

func TestLayout_ImagePlacement(t *testing.T) {
	q := testQuotation(3)
	q.Items[0].Images = []string{"a.jpg", "b.jpg"}
	q.Items[1].Images = []string{"missing.jpg"}
	opts := testOptions()
	opts.Images["a.jpg"] = ImageSize{Width: 400, Height: 100}

	res := Layout(q, opts, testMeasurer)

	var image *Op
	for _, op := range opsWithTag(res, RowTag(1)) {
		if op.Kind == KindImage {
			op := op
			image = &op
		}
	}
	if image == nil || image.Image != "a.jpg" {
		t.Fatalf("expected first image a.jpg embedded in row 1, got %+v", image)
	}
	rowY := 0.0
	for _, op := range opsWithTag(res, RowTag(1)) {
		if op.Kind == KindRect {
			rowY = op.Y
			break
		}
	}
	cell := columnRects(rowY, RowHeight)[colImage].inset(CellPadding)
	if !cell.Contains(Rect{X: image.X, Y: image.Y, W: image.W, H: image.H}) {
		t.Fatalf("image %+v outside cell %+v", image, cell)
	}
	if ratio := image.W / image.H; ratio < 3.99 || ratio > 4.01 {
		t.Fatalf("expected aspect ratio 4, got %.3f", ratio)
	}

	var placeholders int
	for _, op := range opsWithTag(res, RowTag(2)) {
		if op.Kind == KindPlaceholder && op.Text == PlaceholderText {
			placeholders++
		}
		if op.Kind == KindImage {
			t.Fatalf("row 2 should not embed an image")
		}
	}
	if placeholders != 1 {
		t.Fatalf("expected 1 placeholder in row 2, got %d", placeholders)
	}

	for _, op := range opsWithTag(res, RowTag(3)) {
		if op.Kind == KindImage || op.Kind == KindPlaceholder {
			t.Fatalf("row 3 has no images, got %s op", op.Kind)
		}
	}
}

func TestLayout_FooterOnLastPageOnly(t *testing.T) {
	for _, n := range []int{1, 5, 12} {
		q := testQuotation(n)
		q.Remarks = "Customer will collect from the warehouse."
		res := Layout(q, testOptions(), testMeasurer)

		footerOps := opsWithTag(res, TagFooter)
		if len(footerOps) == 0 {
			t.Fatalf("n=%d: expected footer ops", n)
		}
		var sawRemarks, sawTotal bool
		for _, op := range footerOps {
			if op.Page != res.Pages {
				t.Fatalf("n=%d: footer op on page %d, expected %d", n, op.Page, res.Pages)
			}
			if op.Text == q.Remarks {
				sawRemarks = true
			}
			if op.Text == "180.00" && n == 1 {
				sawTotal = true
			}
		}
		if !sawRemarks {
			t.Fatalf("n=%d: expected remarks text in footer", n)
		}
		if n == 1 && !sawTotal {
			t.Fatalf("expected total 180.00 in footer")
		}
	}
}

func TestLayout_RemarksOmittedWhenEmpty(t *testing.T) {
	res := Layout(testQuotation(2), testOptions(), testMeasurer)
	for _, op := range opsWithTag(res, TagFooter) {
		if op.Text == "Remarks" {
			t.Fatalf("expected no remarks heading")
		}
	}
}

func TestLayout_PageNumbers(t *testing.T) {
	res := Layout(testQuotation(20), testOptions(), testMeasurer)
	numbers := opsWithTag(res, TagPageNumber)
	if len(numbers) != res.Pages {
		t.Fatalf("expected %d page numbers, got %d", res.Pages, len(numbers))
	}
	for i, op := range numbers {
		want := fmt.Sprintf("Page %d of %d", i+1, res.Pages)
		if op.Text != want || op.Page != i+1 {
			t.Fatalf("expected %q on page %d, got %q on page %d", want, i+1, op.Text, op.Page)
		}
	}
}

func TestLayout_LetterheadReplacesBanner(t *testing.T) {
	opts := testOptions()
	opts.Letterhead = "branding/letterhead.png"
	opts.Images[opts.Letterhead] = ImageSize{Width: 2480, Height: 400}
	res := Layout(testQuotation(1), opts, testMeasurer)

	header := opsWithTag(res, TagHeader)
	if len(header) != 1 || header[0].Kind != KindImage {
		t.Fatalf("expected a single letterhead image op, got %+v", header)
	}

	delete(opts.Images, opts.Letterhead)
	res = Layout(testQuotation(1), opts, testMeasurer)
	header = opsWithTag(res, TagHeader)
	if len(header) < 2 || header[0].Kind != KindRect || header[0].Fill == nil {
		t.Fatalf("expected banner fallback, got %+v", header)
	}
	if header[1].Text != "MARUTI LAMINATES" {
		t.Fatalf("expected company name MARUTI LAMINATES, got %q", header[1].Text)
	}
}

func TestFitRect(t *testing.T) {
	box := Rect{X: 10, Y: 20, W: 30, H: 30}
	cases := []struct {
		src  ImageSize
		want Rect
	}{
		{ImageSize{Width: 200, Height: 100}, Rect{X: 10, Y: 27.5, W: 30, H: 15}},
		{ImageSize{Width: 100, Height: 200}, Rect{X: 17.5, Y: 20, W: 15, H: 30}},
		{ImageSize{Width: 10, Height: 10}, Rect{X: 10, Y: 20, W: 30, H: 30}},
		{ImageSize{}, Rect{X: 10, Y: 23.75, W: 30, H: 22.5}},
	}
	for _, tc := range cases {
		if got := FitRect(tc.src, box); !approxRect(got, tc.want) {
			t.Fatalf("FitRect(%+v) expected %+v, got %+v", tc.src, tc.want, got)
		}
	}
}

func approxRect(a, b Rect) bool {
	near := func(x, y float64) bool { return math.Abs(x-y) < 1e-9 }
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.W, b.W) && near(a.H, b.H)
}
