package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marutilaminates/laminates_backend/document"
)

const (
	TagHeader      = "header"
	TagInfo        = "info"
	TagTableHeader = "table-header"
	TagFooter      = "footer"
	TagPageNumber  = "page-number"

	PlaceholderText = "Image unavailable"

	maxRemarkLines   = 10
	maxTermLines     = 2
	totalBandHeight  = 8.0
	headingHeight    = 5.0
	blockGap         = 3.0
	signatureHeight  = 16.0
	infoLabelWidth   = 24.0
	infoHeadingSpace = 5.5
)

func RowTag(serial int) string {
	return "row:" + strconv.Itoa(serial)
}

type column struct {
	title string
	ratio float64
	align Align
}

var columns = []column{
	{"Sr", .06, AlignCenter},
	{"Product / Description", .28, AlignLeft},
	{"Location", .12, AlignCenter},
	{"Rate", .11, AlignRight},
	{"Unit", .08, AlignLeft},
	{"Qty", .07, AlignCenter},
	{"Discount", .11, AlignRight},
	{"Image", .17, AlignCenter},
}

const (
	colSerial = iota
	colProduct
	colLocation
	colRate
	colUnit
	colQty
	colDiscount
	colImage
)

// columnRects returns the cell boxes of one table row. The last column absorbs rounding.
func columnRects(y float64, h float64) []Rect {
	rects := make([]Rect, len(columns))
	x := Margin
	for i, col := range columns {
		w := ContentWidth * col.ratio
		if i == len(columns)-1 {
			w = Margin + ContentWidth - x
		}
		rects[i] = Rect{X: x, Y: y, W: w, H: h}
		x += w
	}
	return rects
}

type styledLine struct {
	text string
	font Font
}

func styled(lines []string, f Font) []styledLine {
	out := make([]styledLine, len(lines))
	for i, l := range lines {
		out[i] = styledLine{text: l, font: f}
	}
	return out
}

func header(c cursor, opts Options, m Measurer) (cursor, []Op) {
	box := Rect{X: Margin, Y: c.y, W: ContentWidth, H: HeaderHeight}

	if opts.Letterhead != "" {
		if size, ok := opts.Images[opts.Letterhead]; ok {
			r := FitRect(size, box)
			return c.advance(HeaderHeight), []Op{{
				Kind: KindImage, Page: c.page, X: r.X, Y: r.Y, W: r.W, H: r.H, Image: opts.Letterhead, Tag: TagHeader,
			}}
		}
	}

	co := opts.Company
	inner := box.inset(3)
	ops := []Op{rectOp(c.page, box, fill(colorBrand), false, TagHeader)}

	y := box.Y + 4
	ops = append(ops, textOp(c.page, Rect{X: inner.X, Y: y, W: inner.W, H: 10},
		FitLine(m, fontTitle, strings.ToUpper(co.Name), inner.W), fontTitle, AlignCenter, colorWhite, TagHeader))
	y += 11
	if co.Tagline != "" {
		ops = append(ops, textOp(c.page, Rect{X: inner.X, Y: y, W: inner.W, H: 5},
			FitLine(m, fontTagline, co.Tagline, inner.W), fontTagline, AlignCenter, colorWhite, TagHeader))
	}
	y += 6

	var contact []string
	if co.Phone != "" {
		contact = append(contact, "Phone: "+co.Phone)
	}
	if co.Email != "" {
		contact = append(contact, "Email: "+co.Email)
	}
	for _, line := range []string{strings.Join(contact, "  |  "), addressLine(co.Address)} {
		if line == "" {
			continue
		}
		ops = append(ops, textOp(c.page, Rect{X: inner.X, Y: y, W: inner.W, H: LineHeight},
			FitLine(m, fontContact, line, inner.W), fontContact, AlignCenter, colorWhite, TagHeader))
		y += LineHeight
	}
	return c.advance(HeaderHeight), ops
}

func addressLine(address string) string {
	if address == "" {
		return ""
	}
	return "Address: " + address
}

type infoEntry struct {
	label    string
	value    string
	maxLines int
}

func customerEntries(cu document.Customer) []infoEntry {
	entries := []infoEntry{
		{"Name", orDash(cu.Name), 1},
		{"Address", orDash(cu.Address), 2},
		{"Mobile", orDash(cu.Mobile), 1},
	}
	if cu.GSTNumber != "" {
		entries = append(entries, infoEntry{"GSTIN", cu.GSTNumber, 1})
	}
	return entries
}

func quotationEntries(q document.Quotation) []infoEntry {
	entries := []infoEntry{
		{"Quotation No", q.ID, 1},
		{"Date", FormatDate(q.Date), 1},
		{"Prices", q.PriceType.Label(), 1},
	}
	if ref := q.Customer.Reference; ref != nil {
		entries = append(entries, infoEntry{"Referred By", orDash(ref.Name), 1})
		if ref.Mobile != "" {
			entries = append(entries, infoEntry{"Ref. Mobile", ref.Mobile, 1})
		}
	}
	if q.LastShared != nil {
		entries = append(entries, infoEntry{"Last Shared", FormatDate(*q.LastShared), 1})
	}
	return entries
}

func infoBlock(c cursor, q document.Quotation, m Measurer) (cursor, []Op) {
	box := Rect{X: Margin, Y: c.y, W: ContentWidth, H: InfoHeight}
	colW := ContentWidth / 2

	ops := []Op{
		rectOp(c.page, box, nil, true, TagInfo),
		lineOp(c.page, box.X+colW, box.Y, box.X+colW, box.Y+box.H, TagInfo),
	}
	left := Rect{X: box.X, Y: box.Y, W: colW, H: box.H}.inset(2 * CellPadding)
	right := Rect{X: box.X + colW, Y: box.Y, W: colW, H: box.H}.inset(2 * CellPadding)
	ops = append(ops, infoColumn(c.page, left, "Customer Details", customerEntries(q.Customer), m)...)
	ops = append(ops, infoColumn(c.page, right, "Quotation Details", quotationEntries(q), m)...)
	return c.advance(InfoHeight), ops
}

// infoColumn stops emitting entries once the column height is used up.
func infoColumn(page int, area Rect, heading string, entries []infoEntry, m Measurer) []Op {
	ops := []Op{textOp(page, Rect{X: area.X, Y: area.Y, W: area.W, H: infoHeadingSpace},
		heading, fontHeading, AlignLeft, colorBrand, TagInfo)}

	budget := int((area.H - infoHeadingSpace) / LineHeight)
	y := area.Y + infoHeadingSpace
	valueW := area.W - infoLabelWidth
	for _, e := range entries {
		if budget <= 0 {
			break
		}
		maxLines := e.maxLines
		if maxLines > budget {
			maxLines = budget
		}
		lines, _ := Wrap(m, fontBody, e.value, valueW, maxLines)
		if len(lines) == 0 {
			lines = []string{"-"}
		}
		ops = append(ops, textOp(page, Rect{X: area.X, Y: y, W: infoLabelWidth, H: LineHeight},
			e.label+":", fontBodyBold, AlignLeft, colorBrand, TagInfo))
		for _, l := range lines {
			ops = append(ops, textOp(page, Rect{X: area.X + infoLabelWidth, Y: y, W: valueW, H: LineHeight},
				l, fontBody, AlignLeft, colorText, TagInfo))
			y += LineHeight
		}
		budget -= len(lines)
	}
	return ops
}

func tableHeader(c cursor, m Measurer) (cursor, []Op) {
	box := Rect{X: Margin, Y: c.y, W: ContentWidth, H: TableHeaderHeight}
	ops := []Op{rectOp(c.page, box, fill(colorBrand), false, TagTableHeader)}
	for i, r := range columnRects(c.y, TableHeaderHeight) {
		inner := Rect{X: r.X + CellPadding, Y: r.Y, W: r.W - 2*CellPadding, H: r.H}
		ops = append(ops, textOp(c.page, inner, FitLine(m, fontTableHead, columns[i].title, inner.W),
			fontTableHead, AlignCenter, colorWhite, TagTableHeader))
	}
	return c.advance(TableHeaderHeight), ops
}

// itemsTable draws the header row and one row per item, starting a new page
// and redrawing the header whenever the next row would cross BottomLimit.
func itemsTable(c cursor, items []document.Item, opts Options, m Measurer) (cursor, []Op) {
	c, ops := tableHeader(c, m)

	if len(items) == 0 {
		box := Rect{X: Margin, Y: c.y, W: ContentWidth, H: 2 * LineHeight}
		ops = append(ops, textOp(c.page, box, "No items added to this quotation yet.", fontItalic, AlignCenter, colorMuted, RowTag(0)))
		return c.advance(box.H), ops
	}

	for i, it := range items {
		if !c.fits(RowHeight) {
			c = c.nextPage()
			var head []Op
			c, head = tableHeader(c, m)
			ops = append(ops, head...)
		}
		var row []Op
		c, row = itemRow(c, i, it, opts, m)
		ops = append(ops, row...)
	}
	return c, ops
}

func itemRow(c cursor, index int, it document.Item, opts Options, m Measurer) (cursor, []Op) {
	tag := RowTag(index + 1)
	box := Rect{X: Margin, Y: c.y, W: ContentWidth, H: RowHeight}
	cells := columnRects(c.y, RowHeight)

	var ops []Op
	if index%2 == 1 {
		ops = append(ops, rectOp(c.page, box, fill(colorStripe), false, tag))
	}
	for _, r := range cells {
		ops = append(ops, rectOp(c.page, r, nil, true, tag))
	}

	textWidth := func(col int) float64 { return cells[col].W - 2*CellPadding }
	simple := func(col int, value string) []styledLine {
		lines, _ := Wrap(m, fontCell, value, textWidth(col), RowLineBudget)
		return styled(lines, fontCell)
	}

	cellLines := map[int][]styledLine{
		colSerial:   simple(colSerial, strconv.Itoa(index+1)),
		colProduct:  productLines(it, textWidth(colProduct), m),
		colLocation: simple(colLocation, orDash(it.Location)),
		colRate:     simple(colRate, FormatMoney(it.Rate)),
		colUnit:     simple(colUnit, orDash(it.Unit)),
		colQty:      simple(colQty, strconv.Itoa(it.Quantity)),
		colDiscount: simple(colDiscount, FormatDiscount(it.Discount)),
	}
	for col := colSerial; col < colImage; col++ {
		ops = append(ops, cellText(c.page, cells[col], cellLines[col], columns[col].align, tag)...)
	}

	ops = append(ops, imageCell(c.page, cells[colImage], it, opts, m, tag)...)
	return c.advance(RowHeight), ops
}

// productLines puts the product name in bold and fills the rest of the line
// budget with the description.
func productLines(it document.Item, width float64, m Measurer) []styledLine {
	nameLines, truncated := Wrap(m, fontCellBold, orDash(it.Product.Name), width, RowLineBudget)
	lines := styled(nameLines, fontCellBold)

	desc := strings.TrimSpace(it.Description)
	if desc == "" {
		desc = strings.TrimSpace(it.Product.Description)
	}
	if desc == "" {
		return lines
	}

	remaining := RowLineBudget - len(nameLines)
	if remaining <= 0 {
		if !truncated {
			last := &lines[len(lines)-1]
			last.text = ellipsize(m, last.font, last.text, width)
		}
		return lines
	}
	descLines, _ := Wrap(m, fontCell, desc, width, remaining)
	return append(lines, styled(descLines, fontCell)...)
}

func cellText(page int, cell Rect, lines []styledLine, align Align, tag string) []Op {
	inner := cell.inset(CellPadding)
	top := inner.Y + (inner.H-float64(len(lines))*LineHeight)/2
	ops := make([]Op, 0, len(lines))
	for i, l := range lines {
		box := Rect{X: inner.X, Y: top + float64(i)*LineHeight, W: inner.W, H: LineHeight}
		ops = append(ops, textOp(page, box, l.text, l.font, align, colorText, tag))
	}
	return ops
}

func imageCell(page int, cell Rect, it document.Item, opts Options, m Measurer, tag string) []Op {
	inner := cell.inset(CellPadding)
	ref, ok := it.FirstImage()
	if !ok {
		return cellText(page, cell, []styledLine{{text: "-", font: fontCell}}, AlignCenter, tag)
	}
	size, ok := opts.Images[ref]
	if !ok {
		return []Op{Placeholder(page, inner, m, tag)}
	}
	r := FitRect(size, inner)
	return []Op{{Kind: KindImage, Page: page, X: r.X, Y: r.Y, W: r.W, H: r.H, Image: ref, Tag: tag}}
}

// Placeholder is drawn instead of an image that could not be embedded.
func Placeholder(page int, box Rect, m Measurer, tag string) Op {
	op := textOp(page, box, FitLine(m, fontItalic, PlaceholderText, box.W), fontItalic, AlignCenter, colorMuted, tag)
	op.Kind = KindPlaceholder
	return op
}

type footerPlan struct {
	remarks []string
	terms   []string
}

func planFooter(q document.Quotation, opts Options, m Measurer) footerPlan {
	width := ContentWidth - 2*CellPadding
	var plan footerPlan
	if r := strings.TrimSpace(q.Remarks); r != "" {
		plan.remarks, _ = Wrap(m, fontBody, r, width, maxRemarkLines)
	}
	for i, term := range opts.Terms {
		lines, _ := Wrap(m, fontBody, fmt.Sprintf("%d. %s", i+1, term), width, maxTermLines)
		plan.terms = append(plan.terms, lines...)
	}
	return plan
}

func (p footerPlan) height() float64 {
	h := totalBandHeight + blockGap
	if len(p.remarks) > 0 {
		h += headingHeight + float64(len(p.remarks))*LineHeight + blockGap
	}
	if len(p.terms) > 0 {
		h += headingHeight + float64(len(p.terms))*LineHeight + blockGap
	}
	h += LineHeight + blockGap
	return h + signatureHeight
}

// footer is drawn once, on the last page. It moves to a fresh page when it
// does not fit below the table.
func footer(c cursor, q document.Quotation, opts Options, m Measurer) (cursor, []Op) {
	plan := planFooter(q, opts, m)
	if !c.fits(plan.height()) {
		c = c.nextPage()
	}
	page := c.page
	x := Margin + CellPadding
	width := ContentWidth - 2*CellPadding
	var ops []Op

	band := Rect{X: Margin, Y: c.y, W: ContentWidth, H: totalBandHeight}
	ops = append(ops, rectOp(page, band, fill(colorTotalBand), true, TagFooter))
	labelW := ContentWidth * 0.7
	ops = append(ops,
		textOp(page, Rect{X: band.X, Y: band.Y, W: labelW, H: band.H},
			"Total ("+q.PriceType.Label()+")", fontBodyBold, AlignRight, colorBrand, TagFooter),
		textOp(page, Rect{X: band.X + labelW, Y: band.Y, W: ContentWidth - labelW - CellPadding, H: band.H},
			FormatMoney(q.Total()), fontBodyBold, AlignRight, colorBrand, TagFooter),
	)
	y := band.Y + band.H + blockGap

	block := func(heading string, lines []string) {
		ops = append(ops, textOp(page, Rect{X: x, Y: y, W: width, H: headingHeight}, heading, fontHeading, AlignLeft, colorBrand, TagFooter))
		y += headingHeight
		for _, l := range lines {
			ops = append(ops, textOp(page, Rect{X: x, Y: y, W: width, H: LineHeight}, l, fontBody, AlignLeft, colorText, TagFooter))
			y += LineHeight
		}
		y += blockGap
	}
	if len(plan.remarks) > 0 {
		block("Remarks", plan.remarks)
	}
	if len(plan.terms) > 0 {
		block("Terms & Conditions", plan.terms)
	}

	if name := opts.Company.Name; name != "" {
		ops = append(ops, textOp(page, Rect{X: x, Y: y, W: width, H: LineHeight},
			FitLine(m, fontItalic, "Thank you for choosing "+name+"!", width), fontItalic, AlignCenter, colorMuted, TagFooter))
	}

	sig := Rect{X: Margin + ContentWidth/2, Y: BottomLimit - signatureHeight, W: ContentWidth/2 - CellPadding, H: signatureHeight}
	ops = append(ops,
		textOp(page, Rect{X: sig.X, Y: sig.Y, W: sig.W, H: 6},
			FitLine(m, fontBodyBold, "For "+strings.ToUpper(opts.Company.Name), sig.W), fontBodyBold, AlignRight, colorBrand, TagFooter),
		textOp(page, Rect{X: sig.X, Y: sig.Y + sig.H - LineHeight, W: sig.W, H: LineHeight},
			"Authorised Signatory", fontBody, AlignRight, colorText, TagFooter),
	)
	return c, ops
}

func pageNumbers(pages int) []Op {
	ops := make([]Op, 0, pages)
	for p := 1; p <= pages; p++ {
		box := Rect{X: Margin, Y: PageHeight - Margin - 6, W: ContentWidth, H: 6}
		ops = append(ops, textOp(p, box, fmt.Sprintf("Page %d of %d", p, pages), fontPageNumber, AlignCenter, colorMuted, TagPageNumber))
	}
	return ops
}
