package pdf

import (
	"bytes"

	"github.com/jung-kurt/gofpdf"

	"github.com/marutilaminates/laminates_backend/layout"
)

// fontMeasurer measures with gofpdf core font metrics. Not safe for concurrent use.
type fontMeasurer struct {
	doc       *gofpdf.Fpdf
	translate func(string) string
}

func newFontMeasurer() *fontMeasurer {
	doc := gofpdf.New("P", "mm", "A4", "")
	return &fontMeasurer{doc: doc, translate: doc.UnicodeTranslatorFromDescriptor("")}
}

func (m *fontMeasurer) StringWidth(f layout.Font, s string) float64 {
	m.doc.SetFont(f.Family, f.Style, f.Size)
	return m.doc.GetStringWidth(m.translate(s))
}

type encodeInput struct {
	title    string
	result   layout.Result
	images   map[string]normalizedImage
	measurer layout.Measurer
}

func encode(in encodeInput) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	doc.SetCellMargin(0)
	doc.SetTitle(in.title, true)
	doc.SetCreator("laminates-backend", true)
	translate := doc.UnicodeTranslatorFromDescriptor("")

	byPage := make([][]layout.Op, in.result.Pages+1)
	for _, op := range in.result.Ops {
		if op.Page >= 1 && op.Page <= in.result.Pages {
			byPage[op.Page] = append(byPage[op.Page], op)
		}
	}

	registered := map[string]bool{}
	for page := 1; page <= in.result.Pages; page++ {
		doc.AddPage()
		for _, op := range byPage[page] {
			switch op.Kind {
			case layout.KindRect:
				drawRect(doc, op)
			case layout.KindLine:
				doc.SetDrawColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
				doc.SetLineWidth(0.2)
				doc.Line(op.X, op.Y, op.X+op.W, op.Y+op.H)
			case layout.KindText, layout.KindPlaceholder:
				drawText(doc, translate, op)
			case layout.KindImage:
				img, ok := in.images[op.Image]
				if !ok {
					box := layout.Rect{X: op.X, Y: op.Y, W: op.W, H: op.H}
					drawText(doc, translate, layout.Placeholder(op.Page, box, in.measurer, op.Tag))
					continue
				}
				opts := gofpdf.ImageOptions{ImageType: "JPG"}
				if !registered[op.Image] {
					doc.RegisterImageOptionsReader(op.Image, opts, bytes.NewReader(img.data))
					registered[op.Image] = true
				}
				doc.ImageOptions(op.Image, op.X, op.Y, op.W, op.H, false, opts, 0, "")
			}
			if doc.Err() {
				return nil, doc.Error()
			}
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawRect(doc *gofpdf.Fpdf, op layout.Op) {
	style := ""
	if op.Fill != nil {
		doc.SetFillColor(int(op.Fill.R), int(op.Fill.G), int(op.Fill.B))
		style += "F"
	}
	if op.Stroke {
		doc.SetDrawColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
		doc.SetLineWidth(0.2)
		style += "D"
	}
	if style == "" {
		return
	}
	doc.Rect(op.X, op.Y, op.W, op.H, style)
}

func drawText(doc *gofpdf.Fpdf, translate func(string) string, op layout.Op) {
	if op.Text == "" {
		return
	}
	doc.SetFont(op.Font.Family, op.Font.Style, op.Font.Size)
	doc.SetTextColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
	doc.SetXY(op.X, op.Y)
	doc.CellFormat(op.W, op.H, translate(op.Text), "", 0, alignString(op.Align)+"M", false, 0, "")
}

func alignString(a layout.Align) string {
	switch a {
	case layout.AlignCenter:
		return "C"
	case layout.AlignRight:
		return "R"
	}
	return "L"
}
