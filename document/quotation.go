// Package document is the read-only view of a fully hydrated quotation. It is
// the only input the layout engine sees.
package document

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceType string

const (
	PriceInclusiveTax PriceType = "INCLUSIVE_TAX"
	PriceExclusiveTax PriceType = "EXCLUSIVE_TAX"
)

func (p PriceType) Label() string {
	switch p {
	case PriceInclusiveTax:
		return "Inclusive of Tax"
	case PriceExclusiveTax:
		return "Exclusive of Tax"
	}
	return string(p)
}

type Person struct {
	Name  string
	Email string
}

type Referrer struct {
	Name     string
	Mobile   string
	Category string
}

type Customer struct {
	Name      string
	Mobile    string
	Address   string
	GSTNumber string
	Reference *Referrer
}

type Product struct {
	Name        string
	Description string
	Unit        string
}

type Item struct {
	Product     Product
	Location    string
	Description string
	Rate        decimal.Decimal
	Quantity    int
	Unit        string
	Discount    Discount
	// Images are blob paths in upload order.
	Images []string
}

type Quotation struct {
	ID         string
	Date       time.Time
	PriceType  PriceType
	Remarks    string
	LastShared *time.Time
	Customer   Customer
	Creator    *Person
	Items      []Item
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Rate.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it Item) DiscountAmount() decimal.Decimal {
	return it.Discount.Amount(it.Rate, it.Quantity)
}

// LineAmount may be negative when the discount exceeds the subtotal.
func (it Item) LineAmount() decimal.Decimal {
	return it.Subtotal().Sub(it.DiscountAmount())
}

// FirstImage returns the path embedded into the PDF row.
func (it Item) FirstImage() (string, bool) {
	for _, p := range it.Images {
		if p != "" {
			return p, true
		}
	}
	return "", false
}

func (q Quotation) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range q.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

func (q Quotation) DiscountTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range q.Items {
		sum = sum.Add(it.DiscountAmount())
	}
	return sum
}

// Total is the sum of line amounts.
func (q Quotation) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range q.Items {
		sum = sum.Add(it.LineAmount())
	}
	return sum
}
