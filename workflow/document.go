package workflow

import (
	"github.com/marutilaminates/laminates_backend/document"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

// toDocument converts a hydrated quotation graph. A stored discount that no
// longer parses is rendered as no discount.
func toDocument(q *models.Quotation) document.Quotation {
	doc := document.Quotation{
		ID:         q.ID,
		Date:       q.QuotationDate,
		PriceType:  document.PriceType(q.PriceType),
		Remarks:    utils.DereferencePtr(q.Remarks),
		LastShared: q.LastSharedDate,
	}
	if c := q.Customer; c != nil {
		doc.Customer = document.Customer{
			Name:      c.Name,
			Mobile:    c.MobileNo,
			Address:   utils.DereferencePtr(c.Address),
			GSTNumber: utils.DereferencePtr(c.GSTNumber),
		}
		if r := c.Reference; r != nil {
			doc.Customer.Reference = &document.Referrer{
				Name:     r.Name,
				Mobile:   utils.DereferencePtr(r.MobileNo),
				Category: r.Category,
			}
		}
	}
	if u := q.Creator; u != nil {
		doc.Creator = &document.Person{Name: u.UserName, Email: u.Email}
	}

	doc.Items = make([]document.Item, 0, len(q.Items))
	for _, it := range q.Items {
		discount, err := document.ParseDiscount(it.Discount, it.DiscountType)
		if err != nil {
			discount = document.NoDiscount()
		}
		item := document.Item{
			Description: utils.DereferencePtr(it.Description),
			Rate:        it.Rate,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			Discount:    discount,
			Images:      it.ImagePaths(),
		}
		if p := it.Product; p != nil {
			item.Product = document.Product{
				Name:        p.Name,
				Description: utils.DereferencePtr(p.Description),
				Unit:        p.Unit,
			}
		}
		if l := it.Location; l != nil {
			item.Location = l.Name
		}
		doc.Items = append(doc.Items, item)
	}
	return doc
}
