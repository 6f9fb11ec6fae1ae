package layout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/marutilaminates/laminates_backend/document"
)

func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatDate renders day/month/year.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

func FormatDiscount(d document.Discount) string {
	switch d.Kind() {
	case document.DiscountPercentage:
		return d.Value().String() + "%"
	case document.DiscountPerPiece:
		return d.Value().StringFixed(2) + "/piece"
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
