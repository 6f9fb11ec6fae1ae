package layout

type Kind int

const (
	KindText Kind = iota
	KindRect
	KindLine
	KindImage
	// KindPlaceholder is text drawn where an image could not be embedded.
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRect:
		return "rect"
	case KindLine:
		return "line"
	case KindImage:
		return "image"
	case KindPlaceholder:
		return "placeholder"
	}
	return "unknown"
}

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

type Color struct {
	R, G, B uint8
}

var (
	colorBrand     = Color{44, 62, 80}
	colorText      = Color{50, 50, 50}
	colorMuted     = Color{110, 110, 110}
	colorWhite     = Color{255, 255, 255}
	colorBorder    = Color{200, 200, 200}
	colorStripe    = Color{245, 247, 250}
	colorTotalBand = Color{234, 238, 242}
)

type Font struct {
	Family string
	// Style is "", "B", "I" or "BI".
	Style string
	Size  float64
}

var (
	fontTitle      = Font{"Helvetica", "B", 20}
	fontTagline    = Font{"Helvetica", "", 10}
	fontContact    = Font{"Helvetica", "", 8}
	fontHeading    = Font{"Helvetica", "B", 9.5}
	fontBody       = Font{"Helvetica", "", 8.5}
	fontBodyBold   = Font{"Helvetica", "B", 8.5}
	fontCell       = Font{"Helvetica", "", 8}
	fontCellBold   = Font{"Helvetica", "B", 8}
	fontTableHead  = Font{"Helvetica", "B", 8.5}
	fontItalic     = Font{"Helvetica", "I", 8}
	fontPageNumber = Font{"Helvetica", "", 7.5}
)

// Op is one draw instruction. Coordinates are millimetres from the top-left
// corner of Page (1-based). Text is placed inside the X/Y/W/H box, vertically
// centred, aligned horizontally by Align.
type Op struct {
	Kind   Kind
	Page   int
	X      float64
	Y      float64
	W      float64
	H      float64
	Text   string
	Font   Font
	Align  Align
	Color  Color
	Fill   *Color
	Stroke bool
	// Image is the blob path for KindImage.
	Image string
	// Tag groups ops by section: "header", "info", "table-header", "row:<n>", "footer", "page-number".
	Tag string
}

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Contains(o Rect) bool {
	const eps = 1e-6
	return o.X >= r.X-eps && o.Y >= r.Y-eps && o.X+o.W <= r.X+r.W+eps && o.Y+o.H <= r.Y+r.H+eps
}

func (r Rect) inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, W: r.W - 2*d, H: r.H - 2*d}
}

func fill(c Color) *Color {
	return &c
}

func textOp(page int, box Rect, text string, f Font, a Align, c Color, tag string) Op {
	return Op{Kind: KindText, Page: page, X: box.X, Y: box.Y, W: box.W, H: box.H, Text: text, Font: f, Align: a, Color: c, Tag: tag}
}

func rectOp(page int, box Rect, fillColor *Color, stroke bool, tag string) Op {
	return Op{Kind: KindRect, Page: page, X: box.X, Y: box.Y, W: box.W, H: box.H, Fill: fillColor, Stroke: stroke, Color: colorBorder, Tag: tag}
}

func lineOp(page int, x1, y1, x2, y2 float64, tag string) Op {
	return Op{Kind: KindLine, Page: page, X: x1, Y: y1, W: x2 - x1, H: y2 - y1, Color: colorBorder, Tag: tag}
}
