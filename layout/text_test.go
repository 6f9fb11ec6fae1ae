package layout

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marutilaminates/laminates_backend/document"
)

// At 10pt with Advance 1 every rune is 1mm wide.
var unitMeasurer = MonospaceMeasurer{Advance: 1}
var unitFont = Font{Family: "Helvetica", Size: 10}

func TestWrap(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		width     float64
		maxLines  int
		want      []string
		truncated bool
	}{
		{"fits", "walnut veneer", 20, 3, []string{"walnut veneer"}, false},
		{"greedy", "walnut veneer sheet", 13, 3, []string{"walnut veneer", "sheet"}, false},
		{"long word", "abcdefghij", 4, 5, []string{"abcd", "efgh", "ij"}, false},
		{"newline", "one\ntwo", 20, 3, []string{"one", "two"}, false},
		{"truncated", "aa bb cc dd ee", 5, 2, []string{"aa bb", "cc d…"}, true},
		{"empty", "", 10, 2, nil, false},
	}
	for _, tc := range cases {
		got, truncated := Wrap(unitMeasurer, unitFont, tc.text, tc.width, tc.maxLines)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") || truncated != tc.truncated {
			t.Fatalf("%s: expected %q (truncated=%v), got %q (truncated=%v)", tc.name, tc.want, tc.truncated, got, truncated)
		}
		for _, line := range got {
			if unitMeasurer.StringWidth(unitFont, line) > tc.width {
				t.Fatalf("%s: line %q wider than %.1f", tc.name, line, tc.width)
			}
		}
	}
}

func TestFitLine(t *testing.T) {
	if got := FitLine(unitMeasurer, unitFont, "short", 10); got != "short" {
		t.Fatalf("expected short, got %q", got)
	}
	if got := FitLine(unitMeasurer, unitFont, "much too long", 6); got != "much…" {
		t.Fatalf("expected much…, got %q", got)
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatMoney(decimal.RequireFromString("1234.5")); got != "1234.50" {
		t.Fatalf("FormatMoney expected 1234.50, got %s", got)
	}
	if got := FormatDate(time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)); got != "07/03/2025" {
		t.Fatalf("FormatDate expected 07/03/2025, got %s", got)
	}
	cases := map[string]document.Discount{
		"10%":        document.Percentage(decimal.NewFromInt(10)),
		"12.5%":      document.Percentage(decimal.RequireFromString("12.5")),
		"5.00/piece": document.PerPiece(decimal.NewFromInt(5)),
		"-":          document.NoDiscount(),
	}
	for want, d := range cases {
		if got := FormatDiscount(d); got != want {
			t.Fatalf("FormatDiscount expected %s, got %s", want, got)
		}
	}
}
