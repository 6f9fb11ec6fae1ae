package document

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type DiscountKind int

const (
	DiscountNone DiscountKind = iota
	DiscountPercentage
	DiscountPerPiece
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypePerPiece   = "PER_PIECE"
)

// Discount is one of None, Percentage(v) or PerPiece(v). The zero value is None.
type Discount struct {
	kind  DiscountKind
	value decimal.Decimal
}

func NoDiscount() Discount {
	return Discount{}
}

func Percentage(v decimal.Decimal) Discount {
	return Discount{kind: DiscountPercentage, value: v}
}

func PerPiece(v decimal.Decimal) Discount {
	return Discount{kind: DiscountPerPiece, value: v}
}

// ParseDiscount builds a Discount from the stored nullable pair.
// A nil or zero value without a type is None.
func ParseDiscount(value *decimal.Decimal, discountType *string) (Discount, error) {
	t := ""
	if discountType != nil {
		t = strings.ToUpper(strings.TrimSpace(*discountType))
	}
	if value == nil {
		return NoDiscount(), nil
	}
	if value.IsNegative() {
		return Discount{}, fmt.Errorf("discount must not be negative")
	}
	switch t {
	case DiscountTypePercentage:
		return Percentage(*value), nil
	case DiscountTypePerPiece:
		return PerPiece(*value), nil
	case "":
		if value.IsZero() {
			return NoDiscount(), nil
		}
		return Discount{}, fmt.Errorf("discount_type is required when discount is set")
	}
	return Discount{}, fmt.Errorf("unknown discount_type %q", t)
}

func (d Discount) Kind() DiscountKind {
	return d.kind
}

func (d Discount) Value() decimal.Decimal {
	if d.kind == DiscountNone {
		return decimal.Zero
	}
	return d.value
}

// Type is the persisted name of the kind, nil for None.
func (d Discount) Type() *string {
	var t string
	switch d.kind {
	case DiscountPercentage:
		t = DiscountTypePercentage
	case DiscountPerPiece:
		t = DiscountTypePerPiece
	default:
		return nil
	}
	return &t
}

// Amount is the money taken off rate*qty. Percentages above 100 are not clamped.
func (d Discount) Amount(rate decimal.Decimal, quantity int) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	switch d.kind {
	case DiscountPercentage:
		return rate.Mul(qty).Mul(d.value).Div(decimal.NewFromInt(100))
	case DiscountPerPiece:
		return d.value.Mul(qty)
	case DiscountNone:
		return decimal.Zero
	}
	panic(fmt.Sprintf("document: unhandled discount kind %d", d.kind))
}
