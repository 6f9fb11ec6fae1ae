package reports

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/marutilaminates/laminates_backend/document"
	"github.com/marutilaminates/laminates_backend/layout"
	"github.com/marutilaminates/laminates_backend/models"
)

const quotationSheet = "Quotations"

type ExcelExporter interface {
	GetCellValues() []interface{}
}

var quotationHeadings = []string{
	"Quotation ID", "Date", "Customer", "Mobile", "Product", "Location",
	"Unit", "Quantity", "Rate", "Discount", "Line Amount", "Price Type",
}

// QuotationItemRow is one exported line: a quotation item with its header fields.
type QuotationItemRow struct {
	QuotationID  string
	Date         string
	CustomerName string
	CustomerMob  string
	ProductName  string
	LocationName string
	Unit         string
	Quantity     int
	Rate         float64
	Discount     string
	LineAmount   float64
	PriceType    string
}

func (r QuotationItemRow) GetCellValues() []interface{} {
	return []interface{}{
		r.QuotationID, r.Date, r.CustomerName, r.CustomerMob, r.ProductName, r.LocationName,
		r.Unit, r.Quantity, r.Rate, r.Discount, r.LineAmount, r.PriceType,
	}
}

func quotationItemRows(quotations []models.Quotation) []ExcelExporter {
	var rows []ExcelExporter
	for _, q := range quotations {
		var customerName, customerMobile string
		if q.Customer != nil {
			customerName = q.Customer.Name
			customerMobile = q.Customer.MobileNo
		}
		for _, it := range q.Items {
			discount, err := document.ParseDiscount(it.Discount, it.DiscountType)
			if err != nil {
				discount = document.NoDiscount()
			}
			line := document.Item{Rate: it.Rate, Quantity: it.Quantity, Discount: discount}

			row := QuotationItemRow{
				QuotationID:  q.ID,
				Date:         layout.FormatDate(q.QuotationDate),
				CustomerName: customerName,
				CustomerMob:  customerMobile,
				Unit:         it.Unit,
				Quantity:     it.Quantity,
				Rate:         it.Rate.InexactFloat64(),
				Discount:     layout.FormatDiscount(discount),
				LineAmount:   line.LineAmount().Round(2).InexactFloat64(),
				PriceType:    string(q.PriceType),
			}
			if it.Product != nil {
				row.ProductName = it.Product.Name
			}
			if it.Location != nil {
				row.LocationName = it.Location.Name
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// ExportQuotations builds a workbook with one row per quotation item.
func ExportQuotations(ctx context.Context, filter models.QuotationFilter) (*excelize.File, error) {
	quotations, err := models.FindQuotations(ctx, filter)
	if err != nil {
		return nil, err
	}
	return exportExcel(quotationItemRows(quotations), quotationSheet, quotationHeadings...)
}

func exportExcel(data []ExcelExporter, sheetName string, headings ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	widths := make([]int, len(headings))
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
		widths[i] = len(h)
	}
	lastHeading, _ := excelize.CoordinatesToCellName(len(headings), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeading, bold); err != nil {
		return nil, err
	}

	for r, d := range data {
		for c, value := range d.GetCellValues() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
			if c < len(widths) {
				if n := len(fmt.Sprint(value)); n > widths[c] {
					widths[c] = n
				}
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, float64(w+2)); err != nil {
			return nil, err
		}
	}
	return f, nil
}
