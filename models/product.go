package models

import (
	"context"
	"strings"
	"time"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

type Product struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null;uniqueIndex" json:"name"`
	Description *string   `gorm:"size:1000" json:"description"`
	Unit        string    `gorm:"size:20;not null" json:"unit"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Unit        string  `json:"unit" binding:"required,unit"`
}

func (input *NewProduct) validate(ctx context.Context, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = utils.NilIfEmpty(input.Description)
	if input.Name == "" {
		return utils.Validation("name", "name is required")
	}
	if !IsValidUnit(input.Unit) {
		return utils.Validation("unit", "invalid unit "+input.Unit)
	}
	return utils.ValidateUnique[Product](ctx, "name", input.Name, id)
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	product := Product{
		Name:        input.Name,
		Description: input.Description,
		Unit:        input.Unit,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, translateDuplicate(err, "product name already exists")
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id string, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	product, err := fetch[Product](db.WithContext(ctx), "product_id", id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"name":        input.Name,
		"description": input.Description,
		"unit":        input.Unit,
	}).Error
	if err != nil {
		return nil, translateDuplicate(err, "product name already exists")
	}
	return fetch[Product](db.WithContext(ctx), "product_id", id)
}

// DeleteProduct is blocked while quotation items use the product.
func DeleteProduct(ctx context.Context, id string) (*Product, error) {
	db := config.GetDB()
	product, err := fetch[Product](db.WithContext(ctx), "product_id", id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Item](ctx, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.Conflict("cannot delete product used in quotations", count)
	}

	if err := db.WithContext(ctx).Delete(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id string) (*Product, error) {
	return fetch[Product](config.GetDB().WithContext(ctx), "product_id", id)
}

func ListProducts(ctx context.Context, search string, page Page) (*PageResult[Product], error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Product{})
	if s := strings.TrimSpace(search); s != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+s+"%")
	}
	return paginate[Product](dbCtx, page, "name ASC")
}

// productsByIds loads the distinct ids and reports the ones that do not exist.
func productsByIds(ctx context.Context, ids []string) (map[string]Product, error) {
	missing, err := utils.MissingResourceIds[Product](ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, utils.NotFound("product_id", "product not found: "+strings.Join(missing, ", "))
	}

	var products []Product
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&products).Error; err != nil {
		return nil, err
	}
	byId := make(map[string]Product, len(products))
	for _, p := range products {
		byId[p.ID] = p
	}
	return byId, nil
}
