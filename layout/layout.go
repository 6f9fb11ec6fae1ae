// Package layout turns a document.Quotation into draw instructions for a fixed
// A4 quotation template. It does no I/O: images are referenced by path and
// their pixel sizes are supplied by the caller.
package layout

import (
	"math"

	"github.com/marutilaminates/laminates_backend/document"
)

// Geometry in millimetres.
const (
	PageWidth    = 210.0
	PageHeight   = 297.0
	Margin       = 12.0
	ContentWidth = PageWidth - 2*Margin

	HeaderHeight      = 34.0
	InfoHeight        = 38.0
	TableHeaderHeight = 9.0
	RowHeight         = 32.0
	LineHeight        = 4.5
	CellPadding       = 1.5
	SectionGap        = 4.0
	PageNumberBand    = 10.0

	// BottomLimit is the lowest y any row or footer content may reach.
	BottomLimit = PageHeight - Margin - PageNumberBand
)

// RowLineBudget is how many text lines fit in one table cell.
var RowLineBudget = int(math.Floor((RowHeight - 2*CellPadding) / LineHeight))

type ImageSize struct {
	Width  int
	Height int
}

type Company struct {
	Name    string
	Tagline string
	Phone   string
	Email   string
	Address string
}

type Options struct {
	Company Company
	// Letterhead is an optional image path drawn in place of the banner.
	Letterhead string
	// Images holds every image that could be fetched, keyed by path. A path
	// referenced by the document but absent here is drawn as a placeholder.
	Images map[string]ImageSize
	Terms  []string
}

var DefaultTerms = []string{
	"Rates are valid for 15 days from the quotation date.",
	"Goods once sold will not be taken back or exchanged.",
	"Delivery and unloading charges are extra unless stated otherwise.",
	"Payment: 50% advance with order, balance before dispatch.",
}

type Result struct {
	Pages int
	Ops   []Op
}

type cursor struct {
	page int
	y    float64
}

func (c cursor) advance(dy float64) cursor {
	return cursor{page: c.page, y: c.y + dy}
}

func (c cursor) nextPage() cursor {
	return cursor{page: c.page + 1, y: Margin}
}

func (c cursor) fits(h float64) bool {
	return c.y+h <= BottomLimit+1e-9
}

// Layout is deterministic: the same quotation, options and measurer always
// produce the same ops in the same order.
func Layout(q document.Quotation, opts Options, m Measurer) Result {
	if opts.Terms == nil {
		opts.Terms = DefaultTerms
	}

	var ops []Op
	c := cursor{page: 1, y: Margin}

	c, section := header(c, opts, m)
	ops = append(ops, section...)
	c = c.advance(SectionGap)

	c, section = infoBlock(c, q, m)
	ops = append(ops, section...)
	c = c.advance(SectionGap)

	c, section = itemsTable(c, q.Items, opts, m)
	ops = append(ops, section...)
	c = c.advance(SectionGap)

	c, section = footer(c, q, opts, m)
	ops = append(ops, section...)

	ops = append(ops, pageNumbers(c.page)...)
	return Result{Pages: c.page, Ops: ops}
}

// FitRect scales src to fit inside box, preserving aspect ratio, and centres it.
func FitRect(src ImageSize, box Rect) Rect {
	w, h := float64(src.Width), float64(src.Height)
	if w <= 0 || h <= 0 {
		w, h = 800, 600
	}
	scale := math.Min(box.W/w, box.H/h)
	fw, fh := w*scale, h*scale
	return Rect{X: box.X + (box.W-fw)/2, Y: box.Y + (box.H-fh)/2, W: fw, H: fh}
}
