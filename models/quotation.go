package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/document"
	"github.com/marutilaminates/laminates_backend/utils"
)

// MaxQuotationItems bounds the items of one quotation and the item index a
// multipart file field may name.
const MaxQuotationItems = 200

const (
	maxRemarksLength     = 1000
	maxDescriptionLength = 1000
)

type Quotation struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	QuotationDate  time.Time  `gorm:"not null" json:"quotation_date"`
	CustomerID     string     `gorm:"type:varchar(36);not null;index" json:"customer_id"`
	Customer       *Customer  `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT" json:"customer,omitempty"`
	LastSharedDate *time.Time `json:"last_shared_date"`
	Remarks        *string    `gorm:"size:1000" json:"remarks"`
	PriceType      PriceType  `gorm:"size:20;not null;default:INCLUSIVE_TAX" json:"price_type"`
	PDFPath        *string    `gorm:"column:pdf_path;size:500" json:"pdf_path"`
	CreatedBy      *string    `gorm:"type:varchar(36);index" json:"created_by"`
	Creator        *User      `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL" json:"creator,omitempty"`
	Items          []Item     `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type Item struct {
	ID           string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	QuotationID  string           `gorm:"type:varchar(36);not null;index" json:"quotation_id"`
	ProductID    string           `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Product      *Product         `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	LocationID   *string          `gorm:"type:varchar(36);index" json:"location_id"`
	Location     *Location        `gorm:"foreignKey:LocationID;constraint:OnDelete:SET NULL" json:"location,omitempty"`
	Description  *string          `gorm:"size:1000" json:"description"`
	Rate         decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"rate"`
	Discount     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount"`
	DiscountType *string          `gorm:"size:20" json:"discount_type"`
	Unit         string           `gorm:"size:20;not null" json:"unit"`
	Images       datatypes.JSON   `json:"images"`
	Quantity     int              `gorm:"not null;default:1" json:"quantity"`
	Position     int              `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Item) TableName() string {
	return "quotation_items"
}

// ImagePaths decodes the stored blob paths. A NULL or malformed column reads as empty.
func (it Item) ImagePaths() []string {
	if len(it.Images) == 0 {
		return nil
	}
	var paths []string
	if err := json.Unmarshal(it.Images, &paths); err != nil {
		return nil
	}
	return paths
}

func (it *Item) SetImagePaths(paths []string) {
	if paths == nil {
		paths = []string{}
	}
	data, _ := json.Marshal(paths)
	it.Images = datatypes.JSON(data)
}

// ImagePaths lists every item image of the quotation in item order.
func (q Quotation) ImagePaths() []string {
	var paths []string
	for _, it := range q.Items {
		paths = append(paths, it.ImagePaths()...)
	}
	return paths
}

type NewItem struct {
	ProductID      string           `json:"product_id"`
	LocationID     *string          `json:"location_id"`
	Description    *string          `json:"description"`
	Rate           decimal.Decimal  `json:"rate"`
	Quantity       *int             `json:"quantity"`
	Unit           *string          `json:"unit"`
	Discount       *decimal.Decimal `json:"discount"`
	DiscountType   *string          `json:"discount_type"`
	ExistingImages []string         `json:"existing_images"`
}

type NewQuotation struct {
	QuotationDate  string    `json:"quotation_date" form:"quotation_date"`
	CustomerID     string    `json:"customer_id" form:"customer_id"`
	LastSharedDate *string   `json:"last_shared_date" form:"last_shared_date"`
	Remarks        *string   `json:"remarks" form:"remarks"`
	PriceType      PriceType `json:"price_type" form:"price_type"`
	Items          []NewItem `json:"items"`
}

// UpdateQuotation leaves a field untouched when it is nil. Items, when
// present, replace the whole item list.
type UpdateQuotation struct {
	QuotationDate  *string    `json:"quotation_date" form:"quotation_date"`
	CustomerID     *string    `json:"customer_id" form:"customer_id"`
	LastSharedDate *string    `json:"last_shared_date" form:"last_shared_date"`
	Remarks        *string    `json:"remarks" form:"remarks"`
	PriceType      *PriceType `json:"price_type" form:"price_type"`
	Items          []NewItem  `json:"items"`
}

type QuotationFilter struct {
	CustomerID string `form:"customer_id"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
}

// Validate checks the fields of one item that need no database access.
func (input *NewItem) Validate(index int) error {
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.LocationID = utils.NilIfEmpty(input.LocationID)
	input.Description = utils.NilIfEmpty(input.Description)
	input.Unit = utils.NilIfEmpty(input.Unit)
	input.DiscountType = utils.NilIfEmpty(input.DiscountType)

	if input.ProductID == "" {
		return utils.Validation("product_id", "product_id is required").AtIndex(index)
	}
	if input.Rate.IsNegative() {
		return utils.Validation("rate", "rate must not be negative").AtIndex(index)
	}
	if input.Quantity == nil {
		one := 1
		input.Quantity = &one
	}
	if *input.Quantity < 1 {
		return utils.Validation("quantity", "quantity must be at least 1").AtIndex(index)
	}
	if input.Unit != nil && !IsValidUnit(*input.Unit) {
		return utils.Validation("unit", "invalid unit "+*input.Unit).AtIndex(index)
	}
	if input.Description != nil && len([]rune(*input.Description)) > maxDescriptionLength {
		return utils.Validation("description", "description cannot exceed 1000 characters").AtIndex(index)
	}
	if input.DiscountType != nil {
		t := strings.ToUpper(*input.DiscountType)
		input.DiscountType = &t
	}
	if _, err := document.ParseDiscount(input.Discount, input.DiscountType); err != nil {
		return utils.Validation("discount", err.Error()).AtIndex(index)
	}
	return nil
}

func validateRemarks(remarks *string) (*string, error) {
	remarks = utils.NilIfEmpty(remarks)
	if remarks != nil && len([]rune(*remarks)) > maxRemarksLength {
		return nil, utils.Validation("remarks", "remarks cannot exceed 1000 characters")
	}
	return remarks, nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	s = utils.NilIfEmpty(s)
	if s == nil {
		return nil, nil
	}
	t, err := utils.ParseDate(*s)
	if err != nil {
		return nil, utils.Validation(field, field+" must be a valid date")
	}
	return &t, nil
}

// Validate checks the header and item fields of a new quotation and that
// every referenced customer, product and location exists.
// Validate normalises input and returns the products its items reference.
func (input *NewQuotation) Validate(ctx context.Context) (map[string]Product, error) {
	if err := input.validateFields(ctx); err != nil {
		return nil, err
	}
	return resolveItemRefs(ctx, input.Items)
}

func (input *NewQuotation) validateFields(ctx context.Context) error {
	if len(input.Items) == 0 {
		return utils.Validation("items", "at least one item is required")
	}
	if len(input.Items) > MaxQuotationItems {
		return utils.Validation("items", fmt.Sprintf("a quotation can have at most %d items", MaxQuotationItems))
	}
	if strings.TrimSpace(input.QuotationDate) == "" {
		return utils.Validation("quotation_date", "quotation_date is required")
	}
	if _, err := utils.ParseDate(input.QuotationDate); err != nil {
		return utils.Validation("quotation_date", "quotation_date must be a valid date")
	}
	if _, err := parseOptionalDate("last_shared_date", input.LastSharedDate); err != nil {
		return err
	}
	remarks, err := validateRemarks(input.Remarks)
	if err != nil {
		return err
	}
	input.Remarks = remarks
	if input.PriceType == "" {
		input.PriceType = PriceTypeInclusiveTax
	}
	input.PriceType = PriceType(strings.ToUpper(string(input.PriceType)))
	if !input.PriceType.IsValid() {
		return utils.Validation("price_type", "invalid price_type")
	}
	for i := range input.Items {
		if err := input.Items[i].Validate(i); err != nil {
			return err
		}
	}

	input.CustomerID = strings.TrimSpace(input.CustomerID)
	if input.CustomerID == "" {
		return utils.Validation("customer_id", "customer_id is required")
	}
	return utils.ValidateResourceId[Customer](ctx, "customer_id", input.CustomerID)
}

// Validate checks the provided fields only. A non-nil empty Items slice is
// rejected the same way as on create. The product map is nil when Items is.
func (input *UpdateQuotation) Validate(ctx context.Context) (map[string]Product, error) {
	if err := input.validateFields(ctx); err != nil {
		return nil, err
	}
	if input.Items == nil {
		return nil, nil
	}
	return resolveItemRefs(ctx, input.Items)
}

func (input *UpdateQuotation) validateFields(ctx context.Context) error {
	if input.QuotationDate != nil {
		if _, err := utils.ParseDate(*input.QuotationDate); err != nil {
			return utils.Validation("quotation_date", "quotation_date must be a valid date")
		}
	}
	if _, err := parseOptionalDate("last_shared_date", input.LastSharedDate); err != nil {
		return err
	}
	if input.Remarks != nil && len([]rune(*input.Remarks)) > maxRemarksLength {
		return utils.Validation("remarks", "remarks cannot exceed 1000 characters")
	}
	if input.PriceType != nil {
		pt := PriceType(strings.ToUpper(string(*input.PriceType)))
		if !pt.IsValid() {
			return utils.Validation("price_type", "invalid price_type")
		}
		input.PriceType = &pt
	}
	if input.Items != nil && len(input.Items) == 0 {
		return utils.Validation("items", "at least one item is required")
	}
	if len(input.Items) > MaxQuotationItems {
		return utils.Validation("items", fmt.Sprintf("a quotation can have at most %d items", MaxQuotationItems))
	}
	for i := range input.Items {
		if err := input.Items[i].Validate(i); err != nil {
			return err
		}
	}
	if input.CustomerID != nil {
		if err := utils.ValidateResourceId[Customer](ctx, "customer_id", *input.CustomerID); err != nil {
			return err
		}
	}
	return nil
}

// resolveItemRefs loads the products named by items and checks that every
// location exists.
func resolveItemRefs(ctx context.Context, items []NewItem) (map[string]Product, error) {
	productIds := make([]string, 0, len(items))
	var locationIds []string
	for _, it := range items {
		productIds = append(productIds, it.ProductID)
		if it.LocationID != nil {
			locationIds = append(locationIds, *it.LocationID)
		}
	}
	products, err := productsByIds(ctx, productIds)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourcesId[Location](ctx, "location_id", locationIds); err != nil {
		return nil, err
	}
	return products, nil
}

// BuildItems turns validated inputs into rows for quotationID. images[i]
// holds the blob paths for item i; the unit falls back to the product's.
func BuildItems(quotationID string, inputs []NewItem, products map[string]Product, images [][]string) []Item {
	items := make([]Item, 0, len(inputs))
	for i, input := range inputs {
		unit := products[input.ProductID].Unit
		if input.Unit != nil {
			unit = *input.Unit
		}
		quantity := 1
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		item := Item{
			QuotationID:  quotationID,
			ProductID:    input.ProductID,
			LocationID:   input.LocationID,
			Description:  input.Description,
			Rate:         input.Rate,
			Discount:     input.Discount,
			DiscountType: input.DiscountType,
			Unit:         unit,
			Quantity:     quantity,
			Position:     i,
		}
		var paths []string
		if i < len(images) {
			paths = images[i]
		}
		item.SetImagePaths(paths)
		items = append(items, item)
	}
	return items
}

// NewQuotationRow builds the header row with a caller-allocated id.
func NewQuotationRow(id string, input *NewQuotation, createdBy *string) (*Quotation, error) {
	date, err := utils.ParseDate(input.QuotationDate)
	if err != nil {
		return nil, utils.Validation("quotation_date", "quotation_date must be a valid date")
	}
	shared, err := parseOptionalDate("last_shared_date", input.LastSharedDate)
	if err != nil {
		return nil, err
	}
	return &Quotation{
		ID:             id,
		QuotationDate:  date,
		CustomerID:     input.CustomerID,
		LastSharedDate: shared,
		Remarks:        input.Remarks,
		PriceType:      input.PriceType,
		CreatedBy:      createdBy,
	}, nil
}

// InsertQuotation writes the header and its items inside tx.
func InsertQuotation(tx *gorm.DB, q *Quotation, items []Item) error {
	if err := tx.Omit("Items", "Customer", "Creator").Create(q).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Omit("Product", "Location").Create(&items).Error
}

// ApplyHeader writes the non-nil header fields of input inside tx.
func ApplyHeader(tx *gorm.DB, id string, input *UpdateQuotation) error {
	updates := map[string]interface{}{}
	if input.QuotationDate != nil {
		date, err := utils.ParseDate(*input.QuotationDate)
		if err != nil {
			return utils.Validation("quotation_date", "quotation_date must be a valid date")
		}
		updates["quotation_date"] = date
	}
	if input.CustomerID != nil {
		updates["customer_id"] = *input.CustomerID
	}
	if input.LastSharedDate != nil {
		shared, err := parseOptionalDate("last_shared_date", input.LastSharedDate)
		if err != nil {
			return err
		}
		updates["last_shared_date"] = shared
	}
	if input.Remarks != nil {
		updates["remarks"] = utils.NilIfEmpty(input.Remarks)
	}
	if input.PriceType != nil {
		updates["price_type"] = *input.PriceType
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&Quotation{}).Where("id = ?", id).Updates(updates).Error
}

// ReplaceItems deletes every item of the quotation and inserts items.
func ReplaceItems(tx *gorm.DB, quotationID string, items []Item) error {
	if err := tx.Where("quotation_id = ?", quotationID).Delete(&Item{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Omit("Product", "Location").Create(&items).Error
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// GetQuotationGraph loads the quotation with everything the document and
// the API need in one read.
func GetQuotationGraph(ctx context.Context, db *gorm.DB, id string) (*Quotation, error) {
	var q Quotation
	err := db.WithContext(ctx).
		Preload("Customer.Reference").
		Preload("Creator").
		Preload("Items", orderedItems).
		Preload("Items.Product").
		Preload("Items.Location").
		Where("id = ?", id).
		First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("quotation_id", "quotation not found")
		}
		return nil, err
	}
	return &q, nil
}

func GetQuotation(ctx context.Context, id string) (*Quotation, error) {
	return GetQuotationGraph(ctx, config.GetDB(), id)
}

// QuotationCreatedAt reads only the creation time, for the edit window check.
func QuotationCreatedAt(ctx context.Context, id string) (time.Time, error) {
	var q Quotation
	err := config.GetDB().WithContext(ctx).Select("id", "created_at").Where("id = ?", id).Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, utils.NotFound("quotation_id", "quotation not found")
	}
	return q.CreatedAt, err
}

func (f QuotationFilter) apply(dbCtx *gorm.DB) (*gorm.DB, error) {
	if f.CustomerID != "" {
		dbCtx = dbCtx.Where("customer_id = ?", f.CustomerID)
	}
	if f.StartDate != "" {
		start, err := utils.ParseDate(f.StartDate)
		if err != nil {
			return nil, utils.Validation("start_date", "start_date must be a valid date")
		}
		dbCtx = dbCtx.Where("quotation_date >= ?", start)
	}
	if f.EndDate != "" {
		end, err := utils.ParseDate(f.EndDate)
		if err != nil {
			return nil, utils.Validation("end_date", "end_date must be a valid date")
		}
		dbCtx = dbCtx.Where("quotation_date <= ?", end)
	}
	return dbCtx, nil
}

// ListQuotations counts quotations only, then preloads the page's graph.
func ListQuotations(ctx context.Context, filter QuotationFilter, page Page) (*PageResult[Quotation], error) {
	db := config.GetDB()
	dbCtx, err := filter.apply(db.WithContext(ctx).Model(&Quotation{}))
	if err != nil {
		return nil, err
	}
	return paginateWith[Quotation](dbCtx, page, "created_at DESC", func(query *gorm.DB) *gorm.DB {
		return query.Preload("Customer").Preload("Creator").
			Preload("Items", orderedItems).Preload("Items.Product").Preload("Items.Location")
	})
}

// FindQuotations returns every quotation matching filter with its graph.
func FindQuotations(ctx context.Context, filter QuotationFilter) ([]Quotation, error) {
	db := config.GetDB()
	dbCtx, err := filter.apply(db.WithContext(ctx).Model(&Quotation{}))
	if err != nil {
		return nil, err
	}
	var quotations []Quotation
	err = dbCtx.Preload("Customer").Preload("Items", orderedItems).Preload("Items.Product").Preload("Items.Location").
		Order("quotation_date ASC").Order("created_at ASC").
		Find(&quotations).Error
	return quotations, err
}

func UpdatePDFPath(ctx context.Context, db *gorm.DB, id string, path string) error {
	return db.WithContext(ctx).Model(&Quotation{}).Where("id = ?", id).Update("pdf_path", path).Error
}

func SetLastSharedDate(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	result := db.WithContext(ctx).Model(&Quotation{}).Where("id = ?", id).Update("last_shared_date", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("quotation_id", "quotation not found")
	}
	return nil
}

// DeleteQuotationRow removes the quotation; items go with it.
func DeleteQuotationRow(tx *gorm.DB, id string) error {
	if err := tx.Where("quotation_id = ?", id).Delete(&Item{}).Error; err != nil {
		return err
	}
	result := tx.Where("id = ?", id).Delete(&Quotation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("quotation_id", "quotation not found")
	}
	return nil
}
